// Package text provides the shared tokenizer used by the auto-linker and the
// ranking index. Tokenization is deterministic and side-effect free so both
// subsystems agree on term boundaries.
package text

import (
	"strings"
	"unicode"
)

const minTokenLength = 3

var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "are": {}, "but": {}, "not": {},
	"you": {}, "all": {}, "can": {}, "her": {}, "was": {}, "one": {},
	"our": {}, "out": {}, "has": {}, "have": {}, "had": {}, "this": {},
	"that": {}, "with": {}, "they": {}, "from": {}, "will": {}, "would": {},
	"there": {}, "their": {}, "what": {}, "about": {}, "which": {}, "when": {},
	"were": {}, "been": {}, "more": {}, "some": {}, "them": {}, "than": {},
	"then": {}, "into": {}, "only": {}, "over": {}, "such": {}, "also": {},
}

// Tokenize lowercases the input, replaces every non-alphanumeric rune with a
// space, splits on whitespace, and drops short tokens and stop words. Empty
// input yields a nil slice.
func Tokenize(input string) []string {
	if strings.TrimSpace(input) == "" {
		return nil
	}
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return ' '
	}, input)
	fields := strings.Fields(cleaned)
	tokens := make([]string, 0, len(fields))
	for _, field := range fields {
		if len(field) < minTokenLength {
			continue
		}
		if _, stop := stopWords[field]; stop {
			continue
		}
		tokens = append(tokens, field)
	}
	if len(tokens) == 0 {
		return nil
	}
	return tokens
}

// UniqueTokens returns the distinct tokens of the input preserving first-seen
// order.
func UniqueTokens(input string) []string {
	tokens := Tokenize(input)
	if len(tokens) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if _, ok := seen[token]; ok {
			continue
		}
		seen[token] = struct{}{}
		out = append(out, token)
	}
	return out
}
