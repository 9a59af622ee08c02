package practice

import (
	"fmt"
	"strings"

	"github.com/antzucaro/matchr"

	"github.com/MrWong99/speaksmart/internal/textnorm"
)

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85
)

// NearMiss pairs a missing keyword with the transcript word that most likely
// was an attempt at it.
type NearMiss struct {
	Heard    string
	Expected string
	Score    float64
}

// NearMisses finds, for each missing keyword, the transcript token that sounds
// like it. A token qualifies when it shares a Double Metaphone code with the
// keyword and reaches a Jaro-Winkler similarity of 0.70, or, failing that,
// reaches 0.85 on similarity alone. Keywords with no qualifying token are
// omitted. The result never changes the score.
func NearMisses(transcript string, missing []string) []NearMiss {
	tokens := textnorm.Dedup(textnorm.Normalize(transcript).Tokens)
	if len(tokens) == 0 {
		return nil
	}

	var out []NearMiss
	for _, kw := range missing {
		if nm, ok := closest(kw, tokens); ok {
			out = append(out, nm)
		}
	}
	return out
}

// FormatNearMisses renders near misses as one line each.
func FormatNearMisses(misses []NearMiss) string {
	lines := make([]string, 0, len(misses))
	for _, m := range misses {
		lines = append(lines, fmt.Sprintf("Heard %q, expected %q.", m.Heard, m.Expected))
	}
	return strings.Join(lines, "\n")
}

func closest(keyword string, tokens []string) (NearMiss, bool) {
	kwCodes := metaphoneCodes(keyword)

	var best NearMiss
	bestPhonetic := false
	for _, tok := range tokens {
		if tok == keyword {
			continue
		}
		jw := matchr.JaroWinkler(tok, keyword, false)
		if sharesCode(kwCodes, metaphoneCodes(tok)) {
			if jw >= defaultPhoneticThreshold && (!bestPhonetic || jw > best.Score) {
				best = NearMiss{Heard: tok, Expected: keyword, Score: jw}
				bestPhonetic = true
			}
			continue
		}
		if !bestPhonetic && jw >= defaultFuzzyThreshold && jw > best.Score {
			best = NearMiss{Heard: tok, Expected: keyword, Score: jw}
		}
	}
	return best, best.Heard != ""
}

// metaphoneCodes returns the non-empty Double Metaphone codes of word.
func metaphoneCodes(word string) []string {
	p, s := matchr.DoubleMetaphone(word)
	codes := make([]string, 0, 2)
	if p != "" {
		codes = append(codes, p)
	}
	if s != "" && s != p {
		codes = append(codes, s)
	}
	return codes
}

func sharesCode(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}
