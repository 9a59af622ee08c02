// Package textnorm canonicalises free text for keyword matching.
//
// Normalisation is Unicode case folding (not plain lower-casing, so that
// Cyrillic and other scripts fold correctly) followed by trimming and
// tokenisation on a fixed character class: ASCII digits, Latin letters,
// Cyrillic letters including ё, and the apostrophe.
package textnorm

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
)

var tokenRE = regexp.MustCompile(`(?i)[0-9a-zа-яё']+`)

// Normalized is the result of [Normalize].
type Normalized struct {
	// Text is the case-folded, trimmed input.
	Text string

	// Tokens are the matching words of Text in order of appearance.
	// Duplicates are kept.
	Tokens []string
}

// Normalize folds and tokenises text. It is pure and idempotent:
// Normalize(Normalize(s).Text) equals Normalize(s).
func Normalize(text string) Normalized {
	folded := strings.TrimSpace(Fold(text))
	matches := tokenRE.FindAllString(folded, -1)
	tokens := make([]string, 0, len(matches))
	for _, m := range matches {
		tokens = append(tokens, Fold(m))
	}
	return Normalized{Text: folded, Tokens: tokens}
}

// Fold returns the Unicode case folding of s.
// A fresh Caser is used per call because Casers are not safe for concurrent use.
func Fold(s string) string {
	return cases.Fold().String(s)
}

// TokenSet returns the distinct tokens as a set.
func TokenSet(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}

// Dedup returns items with duplicates and empty strings removed, keeping the
// first occurrence of each.
func Dedup(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, it := range items {
		if it == "" {
			continue
		}
		if _, ok := seen[it]; ok {
			continue
		}
		seen[it] = struct{}{}
		out = append(out, it)
	}
	return out
}
