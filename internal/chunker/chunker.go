package chunker

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/dgallion1/statchunk/internal/doctree"
	"github.com/dgallion1/statchunk/internal/scanner"
)

var (
	// ErrInvalidBounds is returned by New when the token bounds are unusable.
	ErrInvalidBounds = errors.New("invalid token bounds")

	// ErrNoChunks is returned by Parse when the text produced no chunks,
	// usually because no section numbers were recognized.
	ErrNoChunks = errors.New("no statute sections found")
)

// Config controls chunk sizes, both in estimated tokens.
type Config struct {
	MinTokens int // Chunks below this are emitted only when they can't be merged.
	MaxTokens int // Hard ceiling for every chunk.
}

// DefaultConfig returns the 50/800 bounds statute indexing was tuned for.
func DefaultConfig() Config {
	return Config{
		MinTokens: 50,
		MaxTokens: 800,
	}
}

// Validate reports whether the bounds are positive and ordered.
func (c Config) Validate() error {
	if c.MinTokens <= 0 || c.MaxTokens <= 0 || c.MinTokens >= c.MaxTokens {
		return fmt.Errorf("%w: min=%d max=%d", ErrInvalidBounds, c.MinTokens, c.MaxTokens)
	}
	return nil
}

// Builder turns sections into bounded chunks. It holds no per-document
// state and is safe for concurrent use.
type Builder struct {
	cfg Config
}

// New returns a Builder, failing fast on bad bounds.
func New(cfg Config) (*Builder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Builder{cfg: cfg}, nil
}

// Config returns the bounds the builder was created with.
func (b *Builder) Config() Config {
	return b.cfg
}

// Parse scans text into sections and chunks each of them. When nothing is
// produced it returns an empty slice together with ErrNoChunks.
func (b *Builder) Parse(text string) ([]doctree.Chunk, error) {
	chunks := []doctree.Chunk{}
	for _, sec := range scanner.Scan(text) {
		chunks = append(chunks, b.Build(sec)...)
	}
	if len(chunks) == 0 {
		return chunks, ErrNoChunks
	}
	return chunks, nil
}

// Build chunks a single section.
func (b *Builder) Build(sec doctree.Section) []doctree.Chunk {
	text := normalize(strings.Join(sec.Lines, " "))
	if text == "" {
		return nil
	}

	e := emitter{sec: sec, max: b.cfg.MaxTokens}

	lead, spans := SplitMarkers(text)
	if spans == nil {
		e.bounded(text, "")
		return e.out
	}

	e.bounded(lead, "")
	for _, span := range spans {
		e.span(span)
	}
	return e.out
}

// emitter accumulates the chunks of one section.
type emitter struct {
	sec doctree.Section
	max int
	out []doctree.Chunk
}

// span emits one marked unit. An oversized span gets a single nested split
// attempt, (1) -> (1)(a); there is no deeper recursion.
func (e *emitter) span(sp Span) {
	if EstimateTokens(sp.Body) <= e.max {
		e.bounded(sp.Body, sp.Marker)
		return
	}

	lead, subs := SplitMarkers(sp.Body)
	if subs == nil {
		e.bounded(sp.Body, sp.Marker)
		return
	}
	e.bounded(lead, sp.Marker)
	for _, sub := range subs {
		e.bounded(sub.Body, sp.Marker+sub.Marker)
	}
}

// bounded emits body under marker, splitting it when it exceeds the maximum.
func (e *emitter) bounded(body, marker string) {
	if body == "" {
		return
	}
	if EstimateTokens(body) <= e.max {
		e.emit(body, marker)
		return
	}

	pieces := SplitSentences(body)
	if pieces == nil {
		e.slice(body, marker)
		return
	}

	var buf string
	for _, piece := range pieces {
		if EstimateTokens(piece) > e.max {
			// A single run-on sentence; nothing to merge it with.
			if buf != "" {
				e.emit(buf, marker)
				buf = ""
			}
			e.slice(piece, marker)
			continue
		}
		if buf == "" {
			buf = piece
			continue
		}
		if next := buf + " " + piece; EstimateTokens(next) <= e.max {
			buf = next
			continue
		}
		e.emit(buf, marker)
		buf = piece
	}
	if buf != "" {
		e.emit(buf, marker)
	}
}

// slice cuts body into consecutive pieces of max*CharsPerToken characters.
func (e *emitter) slice(body, marker string) {
	for _, piece := range hardSplit(body, e.max*CharsPerToken) {
		e.emit(piece, marker)
	}
}

func (e *emitter) emit(text, marker string) {
	e.out = append(e.out, doctree.Chunk{
		Text:         text,
		SectionID:    e.sec.ID,
		SectionTitle: e.sec.Title,
		Subsection:   marker,
		Hierarchy:    e.sec.Hierarchy.Clone(),
		Citation:     doctree.Citation(e.sec.ID, e.sec.Title),
		Tokens:       EstimateTokens(text),
	})
}

// hardSplit cuts text every size characters, dropping pieces that are empty
// once trimmed.
func hardSplit(text string, size int) []string {
	var out []string
	for text != "" {
		cut := runeOffset(text, size)
		if piece := strings.TrimSpace(text[:cut]); piece != "" {
			out = append(out, piece)
		}
		text = text[cut:]
	}
	return out
}

// runeOffset returns the byte offset of the n-th rune in s, or len(s) when s
// is shorter than that.
func runeOffset(s string, n int) int {
	i := 0
	for off := range s {
		if i == n {
			return off
		}
		i++
	}
	return len(s)
}

func isSpaceOrControl(r rune) bool {
	return unicode.IsSpace(r) || unicode.IsControl(r)
}
