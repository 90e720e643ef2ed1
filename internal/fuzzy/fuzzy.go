// Package fuzzy resolves free-text name fragments to canonical roster items.
//
// The default resolver scores candidates with a weighted string ratio built on
// Levenshtein distance: the best of the plain ratio, a sliding partial ratio
// for fragments much shorter than the item, and two token-based ratios that
// ignore word order. Scores are integers in [0,100].
package fuzzy

import (
	"fmt"

	"github.com/toppings/giveandtake/internal/types"
)

// DefaultMinScore is the lowest score accepted as a confident match.
const DefaultMinScore = 50

// Match is the best candidate for a fragment.
type Match struct {
	Item  types.Item
	Score int
}

// NameResolver maps a name fragment to the closest canonical item.
type NameResolver interface {
	Resolve(fragment string, items []types.Item) (Match, error)
}

// NoMatchError reports a fragment that no item matched confidently.
type NoMatchError struct {
	Fragment string
	Best     Match // best candidate found, zero when the roster is empty
}

func (e *NoMatchError) Error() string {
	return fmt.Sprintf("no item matches %q", e.Fragment)
}

// Levenshtein is the default NameResolver.
type Levenshtein struct {
	// MinScore overrides DefaultMinScore when positive.
	MinScore int
}

// NewLevenshtein returns a resolver with the given threshold (0 = default).
func NewLevenshtein(minScore int) *Levenshtein {
	return &Levenshtein{MinScore: minScore}
}

// Resolve returns the highest-scoring item. Ties keep the earlier item.
func (l *Levenshtein) Resolve(fragment string, items []types.Item) (Match, error) {
	threshold := l.MinScore
	if threshold <= 0 {
		threshold = DefaultMinScore
	}

	best := Match{Score: -1}
	for _, item := range items {
		score := WeightedRatio(fragment, string(item))
		if score > best.Score {
			best = Match{Item: item, Score: score}
		}
	}
	if len(items) == 0 {
		return Match{}, &NoMatchError{Fragment: fragment}
	}
	if best.Score < threshold {
		return Match{}, &NoMatchError{Fragment: fragment, Best: best}
	}
	return best, nil
}
