// Package lifecycle advances findings when events that look like them are
// acknowledged.
package lifecycle

import (
	"strings"
	"unicode/utf8"
)

// Matcher decides whether an acknowledged message refers to a finding by
// lexical overlap. It is approximate: it counts how many significant words
// of the message occur as substrings of the finding text.
type Matcher struct {
	// Threshold is the minimum share of significant words that must occur.
	Threshold float64
	// MinWordLength is the shortest token, in runes, that counts as significant.
	MinWordLength int
}

// DefaultMatcher returns the production matcher: half of the 4+ character
// words.
func DefaultMatcher() Matcher {
	return Matcher{Threshold: 0.5, MinWordLength: 4}
}

// SignificantWords lowercases msg, splits it on whitespace and keeps tokens
// of at least minLen runes. Repeated tokens are kept.
func SignificantWords(msg string, minLen int) []string {
	var words []string
	for _, tok := range strings.Fields(strings.ToLower(msg)) {
		if utf8.RuneCountInString(tok) >= minLen {
			words = append(words, tok)
		}
	}
	return words
}

// Overlap returns the share of words found in the lowercased findingText.
// It returns 0 for an empty word list.
func Overlap(words []string, findingText string) float64 {
	if len(words) == 0 {
		return 0
	}
	text := strings.ToLower(findingText)
	hits := 0
	for _, w := range words {
		if strings.Contains(text, w) {
			hits++
		}
	}
	return float64(hits) / float64(len(words))
}

// Matches reports whether message matches findingText. Messages without
// significant words never match.
func (m Matcher) Matches(findingText, message string) bool {
	words := SignificantWords(message, m.MinWordLength)
	if len(words) == 0 {
		return false
	}
	return Overlap(words, findingText) >= m.Threshold
}
