// Package practice loads pronunciation-practice phrases and scores a spoken
// answer's transcript against a phrase's keywords.
package practice

import (
	"fmt"
	"strings"

	"github.com/MrWong99/speaksmart/internal/corpus"
	"github.com/MrWong99/speaksmart/internal/textnorm"
)

// Score bands.
const (
	CorrectScore = 0.8
	CloseScore   = 0.5

	// maxHintKeywords caps how many missing keywords are revealed as a hint.
	maxHintKeywords = 6
)

// Phrase is one practice item.
type Phrase struct {
	ID           string   `json:"id" yaml:"id"`
	File         string   `json:"file" yaml:"file"`
	ExpectedText string   `json:"expected_text" yaml:"expected_text"`
	Keywords     []string `json:"keywords" yaml:"keywords"`
}

// Load parses the phrase list at path. A missing file or a document that is
// not a list yields an error wrapping [corpus.ErrConfig].
func Load(path string) ([]Phrase, error) {
	return corpus.LoadList[Phrase](path)
}

// Score is the outcome of [ScoreKeywords]. Found and Missing partition the
// deduplicated keyword list, each in keyword order.
type Score struct {
	Value   float64
	Found   []string
	Missing []string
}

// ScoreKeywords matches keywords against the tokens of transcript.
// Keywords are trimmed, casefolded like the transcript and deduplicated first; an empty result
// scores 0 with empty Found and Missing.
func ScoreKeywords(transcript string, keywords []string) Score {
	tokens := textnorm.TokenSet(textnorm.Normalize(transcript).Tokens)

	cleaned := make([]string, 0, len(keywords))
	for _, k := range keywords {
		cleaned = append(cleaned, textnorm.Fold(strings.TrimSpace(k)))
	}
	unique := textnorm.Dedup(cleaned)
	if len(unique) == 0 {
		return Score{Found: []string{}, Missing: []string{}}
	}

	s := Score{Found: []string{}, Missing: []string{}}
	for _, k := range unique {
		if _, ok := tokens[k]; ok {
			s.Found = append(s.Found, k)
		} else {
			s.Missing = append(s.Missing, k)
		}
	}
	s.Value = float64(len(s.Found)) / float64(len(unique))
	return s
}

// Feedback renders the banded verdict for s, followed by a keyword hint
// when the answer was not perfect.
func Feedback(s Score) string {
	var msg string
	switch {
	case s.Value >= CorrectScore:
		msg = "Correct! Well done."
	case s.Value >= CloseScore:
		msg = "Almost! Try once more."
	default:
		msg = "Let's repeat. Try to say the phrase more precisely."
	}
	if s.Value < 1 && len(s.Missing) > 0 {
		hint := s.Missing
		if len(hint) > maxHintKeywords {
			hint = hint[:maxHintKeywords]
		}
		msg += fmt.Sprintf(" Hint (keywords): %s", strings.Join(hint, ", "))
	}
	return msg
}
