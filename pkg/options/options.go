// Package options defines the option group contract shared by every config
// section and helpers for composing sections into a command line.
package options

import (
	"strings"

	"github.com/spf13/pflag"
)

// Join builds a flag prefix from prefixes: Join("a", "b") is "a.b." and
// Join() is "".
func Join(prefixes ...string) string {
	joined := strings.Join(prefixes, ".")
	if joined != "" {
		joined += "."
	}
	return joined
}

// IOptions is implemented by every option group.
type IOptions interface {
	// Validate validates all the required options.
	Validate() []error

	// AddFlags adds flags related to given flagset.
	AddFlags(fs *pflag.FlagSet, prefixes ...string)
}

// Section names an option group. The name is used for the help section and
// the config file key.
type Section struct {
	Name    string
	Options IOptions
}

// ValidateSections validates every section in order and concatenates the
// errors.
func ValidateSections(sections []Section) []error {
	var errs []error
	for _, s := range sections {
		errs = append(errs, s.Options.Validate()...)
	}
	return errs
}
