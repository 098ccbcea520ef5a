package chunker

import (
	"regexp"
	"strings"
)

// markerRe matches (1), (a), (iv) and their upper-case forms.
var markerRe = regexp.MustCompile(`(?i)\((?:\d+|[a-z]|[ivx]+)\)`)

// Span is one marked unit of a section or subsection body.
type Span struct {
	Marker string // e.g. "(1)"
	Body   string // text after the marker, normalized
}

// SplitMarkers cuts text at every subsection marker. Each span runs from its
// marker to the next one (or the end of text) and the marker itself is not
// part of Body. It returns a nil slice when fewer than two markers are found,
// since a lone marker doesn't describe any structure worth splitting on.
//
// The returned lead is whatever precedes the first marker.
func SplitMarkers(text string) (lead string, spans []Span) {
	locs := markerRe.FindAllStringIndex(text, -1)
	if len(locs) < 2 {
		return "", nil
	}

	spans = make([]Span, 0, len(locs))
	for i, loc := range locs {
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		spans = append(spans, Span{
			Marker: text[loc[0]:loc[1]],
			Body:   normalize(text[loc[1]:end]),
		})
	}
	return normalize(text[:locs[0][0]]), spans
}

// normalize maps control characters to spaces, collapses whitespace runs and
// trims the ends.
func normalize(s string) string {
	return strings.Join(strings.FieldsFunc(s, isSpaceOrControl), " ")
}
