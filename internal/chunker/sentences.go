package chunker

import (
	"regexp"
	"strings"
)

// Statutes use semicolons as list separators, so they count as boundaries.
var sentenceBreakRe = regexp.MustCompile(`[.;!?]\s+`)

// SplitSentences breaks text after '.', ';', '!' or '?' when followed by
// whitespace. Punctuation stays with the piece it ends and the text after the
// last break is its own piece. It returns nil when the text has no break at
// all, which callers treat as "no sentence structure".
func SplitSentences(text string) []string {
	locs := sentenceBreakRe.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return nil
	}

	var pieces []string
	start := 0
	for _, loc := range locs {
		if p := strings.TrimSpace(text[start:loc[1]]); p != "" {
			pieces = append(pieces, p)
		}
		start = loc[1]
	}
	if tail := strings.TrimSpace(text[start:]); tail != "" {
		pieces = append(pieces, tail)
	}
	return pieces
}
