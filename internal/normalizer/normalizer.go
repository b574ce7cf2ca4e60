// Package normalizer turns raw field text into the tokens used by both the
// index and the queries run against it. Indexing and querying must share it.
package normalizer

import (
	"strings"
)

// Normalize lower-cases text, collapses whitespace runs and splits on them.
// Empty or all-whitespace input yields no tokens.
func Normalize(text string) []string {
	return Tokenize(Clean(text))
}

// Clean lower-cases text and collapses every whitespace run into a single
// space, trimming both ends.
func Clean(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

// Tokenize splits cleaned text on spaces.
func Tokenize(cleaned string) []string {
	if cleaned == "" {
		return nil
	}
	return strings.Split(cleaned, " ")
}

// Join renders tokens back into text that normalizes to the same tokens.
func Join(tokens []string) string {
	return strings.Join(tokens, " ")
}

// Frequencies counts each token of a multiset.
func Frequencies(tokens []string) map[string]int {
	freq := make(map[string]int, len(tokens))
	for _, token := range tokens {
		freq[token]++
	}
	return freq
}
