// Package chunker splits extracted document text into bounded, page-aware
// chunks with character offsets.
//
// Offsets are rune offsets into Result.Text, which is the input text with
// page marker lines removed. Sections written in continuous or right-to-left
// scripts are split by fixed windows; everything else is split on sentence
// boundaries with an overlapping tail carried between chunks.
package chunker

import (
	"unicode"

	"github.com/kart-io/quizmind/internal/pkg/rag/textutil"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
	DefaultMaxChunks    = 500
)

// Config controls chunk sizes. All sizes are in characters (runes).
type Config struct {
	ChunkSize    int
	ChunkOverlap int
	MaxChunks    int
}

// DefaultConfig returns the default chunking configuration.
func DefaultConfig() Config {
	return Config{
		ChunkSize:    DefaultChunkSize,
		ChunkOverlap: DefaultChunkOverlap,
		MaxChunks:    DefaultMaxChunks,
	}
}

// Piece is a single chunk produced by Split.
type Piece struct {
	Text       string
	StartChar  int
	EndChar    int
	PageNumber int
}

// Result is the output of Split.
type Result struct {
	// Text is the cleaned document text the offsets refer to.
	Text string
	// CharLength is the rune length of Text.
	CharLength int
	Pages      int
	Chunks     []Piece
	// Truncated reports that MaxChunks stopped splitting early.
	Truncated bool
}

// Chunker splits text into chunks. It is safe for concurrent use.
type Chunker struct {
	cfg Config
}

// New creates a Chunker, replacing invalid values with defaults.
func New(cfg Config) *Chunker {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.ChunkOverlap < 0 {
		cfg.ChunkOverlap = 0
	}
	if cfg.ChunkOverlap >= cfg.ChunkSize {
		cfg.ChunkOverlap = cfg.ChunkSize / 5
	}
	if cfg.MaxChunks <= 0 {
		cfg.MaxChunks = DefaultMaxChunks
	}
	return &Chunker{cfg: cfg}
}

// Config returns the effective configuration.
func (c *Chunker) Config() Config {
	return c.cfg
}

// Split chunks text.
func (c *Chunker) Split(text string) *Result {
	clean, sections := splitPages(text)
	s := &splitter{
		clean: clean,
		size:  c.cfg.ChunkSize,
		step:  c.cfg.ChunkSize - c.cfg.ChunkOverlap,
		lap:   c.cfg.ChunkOverlap,
		max:   c.cfg.MaxChunks,
	}

	for _, sec := range sections {
		if !s.splitSection(sec) {
			break
		}
	}

	return &Result{
		Text:       string(clean),
		CharLength: len(clean),
		Pages:      len(sections),
		Chunks:     s.chunks,
		Truncated:  s.truncated,
	}
}

type splitter struct {
	clean     []rune
	size      int
	step      int
	lap       int
	max       int
	page      int
	chunks    []Piece
	truncated bool
}

// splitSection returns false once the chunk limit is reached.
func (s *splitter) splitSection(sec section) bool {
	start, end := s.trim(sec.start, sec.end)
	if start >= end {
		return true
	}
	s.page = sec.page

	if end-start <= s.size {
		return s.emit(start, end)
	}
	if textutil.IsWindowScript(string(s.clean[start:end])) {
		return s.windows(start, end)
	}
	return s.sentences(start, end)
}

func (s *splitter) windows(start, end int) bool {
	for i := start; i < end; i += s.step {
		stop := min(i+s.size, end)
		if !s.emit(i, stop) {
			return false
		}
		if stop == end {
			break
		}
	}
	return true
}

func (s *splitter) sentences(start, end int) bool {
	bufStart, bufEnd := -1, -1

	for _, sp := range s.sentenceSpans(start, end) {
		switch {
		case bufStart < 0:
			bufStart, bufEnd = sp[0], sp[1]
		case sp[1]-bufStart <= s.size:
			bufEnd = sp[1]
		default:
			if !s.emit(bufStart, bufEnd) {
				return false
			}
			next := s.overlapStart(bufStart, bufEnd)
			if next < 0 || sp[1]-next > s.size {
				next = sp[0]
			}
			bufStart, bufEnd = next, sp[1]
		}

		// A sentence longer than a chunk is cut into windows.
		for bufEnd-bufStart > s.size {
			if !s.emit(bufStart, bufStart+s.size) {
				return false
			}
			bufStart += s.step
		}
	}

	if bufStart >= 0 {
		return s.emit(bufStart, bufEnd)
	}
	return true
}

// sentenceSpans tiles [start, end) into sentences. Each span includes the
// whitespace that follows its terminal punctuation.
func (s *splitter) sentenceSpans(start, end int) [][2]int {
	var spans [][2]int
	from := start
	for i := start; i < end; i++ {
		if !s.isSentenceEnd(i, end) {
			continue
		}
		j := i + 1
		for j < end && unicode.IsSpace(s.clean[j]) {
			j++
		}
		spans = append(spans, [2]int{from, j})
		from = j
		i = j - 1
	}
	if from < end {
		spans = append(spans, [2]int{from, end})
	}
	return spans
}

func (s *splitter) isSentenceEnd(i, end int) bool {
	switch s.clean[i] {
	case '。', '！', '？':
		return true
	case '.', '!', '?':
		return i+1 == end || unicode.IsSpace(s.clean[i+1])
	}
	return false
}

// overlapStart returns where the next buffer starts so that it repeats the
// last lap characters of [bufStart, bufEnd), moved forward to a word start.
// It returns -1 when no usable tail exists.
func (s *splitter) overlapStart(bufStart, bufEnd int) int {
	if s.lap == 0 {
		return -1
	}
	tail := bufEnd - s.lap
	if tail <= bufStart {
		return -1
	}
	if !unicode.IsSpace(s.clean[tail-1]) {
		for tail < bufEnd && !unicode.IsSpace(s.clean[tail]) {
			tail++
		}
	}
	for tail < bufEnd && unicode.IsSpace(s.clean[tail]) {
		tail++
	}
	if tail >= bufEnd {
		return -1
	}
	return tail
}

func (s *splitter) trim(start, end int) (int, int) {
	for start < end && unicode.IsSpace(s.clean[start]) {
		start++
	}
	for end > start && unicode.IsSpace(s.clean[end-1]) {
		end--
	}
	return start, end
}

// emit appends the trimmed span as a chunk. It returns false once the
// chunk limit has been reached.
func (s *splitter) emit(start, end int) bool {
	if len(s.chunks) >= s.max {
		s.truncated = true
		return false
	}
	start, end = s.trim(start, end)
	if start >= end {
		return true
	}
	s.chunks = append(s.chunks, Piece{
		Text:       string(s.clean[start:end]),
		StartChar:  start,
		EndChar:    end,
		PageNumber: s.page,
	})
	return true
}
