// Package faq answers free-text questions from a small keyword-indexed corpus.
//
// Each item's keyword set is its curated keywords plus the tokens of its
// question. A query is scored against an item as the fraction of the item's
// distinct keywords that appear in the query; the best-scoring item wins and
// corpus order breaks ties.
package faq

import (
	"context"
	"strings"

	"github.com/MrWong99/speaksmart/internal/corpus"
	"github.com/MrWong99/speaksmart/internal/textnorm"
)

// MinScore is the acceptance threshold below which a match is not used as an
// answer.
const MinScore = 0.34

// Item is a single question/answer pair.
type Item struct {
	Question string
	Answer   string

	// Keywords is the deduplicated, order-preserving union of the curated
	// keywords and the question tokens.
	Keywords []string
}

// Match is the best item found for a query.
type Match struct {
	Item  Item
	Score float64
}

// Usable reports whether m clears [MinScore] and carries an answer.
func (m *Match) Usable() bool {
	return m != nil && m.Score >= MinScore && m.Item.Answer != ""
}

// record is the on-disk shape of an FAQ entry.
type record struct {
	Q        string   `json:"q" yaml:"q"`
	Keywords []string `json:"keywords" yaml:"keywords"`
	A        string   `json:"a" yaml:"a"`
}

// Load parses the corpus at path. A missing file or a document that is not a
// list yields an error wrapping [corpus.ErrConfig].
func Load(path string) ([]Item, error) {
	records, err := corpus.LoadList[record](path)
	if err != nil {
		return nil, err
	}
	items := make([]Item, 0, len(records))
	for _, r := range records {
		merged := make([]string, 0, len(r.Keywords))
		for _, k := range r.Keywords {
			merged = append(merged, textnorm.Fold(strings.TrimSpace(k)))
		}
		merged = append(merged, textnorm.Normalize(r.Q).Tokens...)
		items = append(items, Item{
			Question: r.Q,
			Answer:   r.A,
			Keywords: textnorm.Dedup(merged),
		})
	}
	return items, nil
}

// Matcher searches an FAQ corpus file. The file is reloaded on every lookup so
// edits take effect without a restart.
type Matcher struct {
	path string
}

// NewMatcher returns a Matcher reading the corpus at path.
func NewMatcher(path string) *Matcher {
	return &Matcher{path: path}
}

// FindBestAnswer returns the highest-scoring item for query, or nil when the
// query has no tokens or no item shares a keyword with it. Corpus load errors
// are returned as-is.
func (m *Matcher) FindBestAnswer(ctx context.Context, query string) (*Match, error) {
	tokens := textnorm.TokenSet(textnorm.Normalize(query).Tokens)
	if len(tokens) == 0 {
		return nil, nil
	}

	items, err := Load(m.path)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return Best(items, tokens), nil
}

// Best scores every item against the query token set and returns the winner,
// or nil when nothing overlaps.
func Best(items []Item, tokens map[string]struct{}) *Match {
	var best *Match
	for _, it := range items {
		score, ok := Score(it.Keywords, tokens)
		if !ok {
			continue
		}
		if best == nil || score > best.Score {
			best = &Match{Item: it, Score: score}
		}
	}
	return best
}

// Score returns |unique(keywords) ∩ tokens| / |unique(keywords)|. ok is false
// when keywords is empty or nothing overlaps.
func Score(keywords []string, tokens map[string]struct{}) (score float64, ok bool) {
	unique := textnorm.Dedup(keywords)
	if len(unique) == 0 {
		return 0, false
	}
	found := 0
	for _, k := range unique {
		if _, hit := tokens[k]; hit {
			found++
		}
	}
	if found == 0 {
		return 0, false
	}
	return float64(found) / float64(len(unique)), true
}
