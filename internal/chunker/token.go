package chunker

import "unicode/utf8"

// CharsPerToken is the character-to-token ratio used everywhere a size is
// estimated or a hard slice is cut.
const CharsPerToken = 4

// EstimateTokens returns ceil(chars/4) with a floor of 1. Characters are
// counted as code points.
func EstimateTokens(text string) int {
	n := utf8.RuneCountInString(text)
	tokens := (n + CharsPerToken - 1) / CharsPerToken
	if tokens < 1 {
		tokens = 1
	}
	return tokens
}
