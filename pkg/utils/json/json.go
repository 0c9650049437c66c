// Package json provides the JSON codec used across quizmind.
// It uses sonic on amd64/arm64 and falls back to encoding/json elsewhere.
package json

import (
	stdjson "encoding/json"
	"io"
	"runtime"

	"github.com/bytedance/sonic"
)

// Engine names.
const (
	EngineSonic = "sonic"
	EngineStd   = "encoding/json"
)

// Encoder is a JSON encoder interface.
type Encoder interface {
	Encode(v any) error
}

// Decoder is a JSON decoder interface.
type Decoder interface {
	Decode(v any) error
}

type codec struct {
	name       string
	marshal    func(v any) ([]byte, error)
	unmarshal  func(data []byte, v any) error
	newEncoder func(w io.Writer) Encoder
	newDecoder func(r io.Reader) Decoder
}

var active = codecFor(runtime.GOARCH)

// codecFor picks sonic where its JIT is supported. sonic.ConfigStd keeps
// encoding/json semantics such as HTML escaping and sorted map keys.
func codecFor(arch string) codec {
	if arch == "amd64" || arch == "arm64" {
		api := sonic.ConfigStd
		return codec{
			name:       EngineSonic,
			marshal:    api.Marshal,
			unmarshal:  api.Unmarshal,
			newEncoder: func(w io.Writer) Encoder { return api.NewEncoder(w) },
			newDecoder: func(r io.Reader) Decoder { return api.NewDecoder(r) },
		}
	}
	return codec{
		name:       EngineStd,
		marshal:    stdjson.Marshal,
		unmarshal:  stdjson.Unmarshal,
		newEncoder: func(w io.Writer) Encoder { return stdjson.NewEncoder(w) },
		newDecoder: func(r io.Reader) Decoder { return stdjson.NewDecoder(r) },
	}
}

// Marshal encodes v into JSON bytes.
func Marshal(v any) ([]byte, error) { return active.marshal(v) }

// Unmarshal decodes JSON bytes into v.
func Unmarshal(data []byte, v any) error { return active.unmarshal(data, v) }

// NewEncoder creates a JSON encoder writing to w.
func NewEncoder(w io.Writer) Encoder { return active.newEncoder(w) }

// NewDecoder creates a JSON decoder reading from r.
func NewDecoder(r io.Reader) Decoder { return active.newDecoder(r) }

// Engine reports which codec is active.
func Engine() string { return active.name }
