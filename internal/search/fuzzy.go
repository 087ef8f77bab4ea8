package search

import (
	"context"
	"strings"

	"github.com/parsnip-dev/parsnip/internal/graph"
	"github.com/parsnip-dev/parsnip/internal/query"
)

// FuzzyEngine scores entities by subsequence match quality against the
// query text: contiguous runs and matches at word boundaries score higher,
// normalized into [0,1] so scores compose with FuzzyThreshold and with
// HybridEngine's fusion.
type FuzzyEngine struct{}

func (FuzzyEngine) Search(ctx context.Context, q query.Search, entities []*graph.Entity) ([]Hit, error) {
	allProjectIDs := collectProjectIDs(entities)
	pattern := strings.ToLower(strings.TrimSpace(q.Text))

	hits := make([]Hit, 0, len(entities))
	for _, e := range entities {
		if !matchesFilters(e, q, allProjectIDs) {
			continue
		}
		if pattern == "" {
			hits = append(hits, Hit{Entity: e, Score: 1})
			continue
		}
		score, ok := fuzzyScore(pattern, strings.ToLower(searchableText(e)))
		if !ok || score < float64(q.FuzzyThreshold) {
			continue
		}
		hits = append(hits, Hit{Entity: e, Score: score})
	}
	return hits, nil
}

// fuzzyScore reports whether every whitespace-separated atom of pattern is a
// subsequence of text and, if so, a [0,1] quality score averaged across
// atoms. A literal space in the pattern is a separator, not a character to
// match, so "jonh smth" against "john_smith ..." matches atoms "jonh" and
// "smth" independently instead of failing to align a space with
// underscore-joined text.
func fuzzyScore(pattern, text string) (float64, bool) {
	atoms := strings.Fields(pattern)
	if len(atoms) == 0 {
		return 1, true
	}
	if text == "" {
		return 0, false
	}

	tr := []rune(text)
	total := 0.0
	for _, atom := range atoms {
		score, ok := atomScore([]rune(atom), tr)
		if !ok {
			return 0, false
		}
		total += score
	}
	return clamp01(total / float64(len(atoms))), true
}

// atomScore reports whether pr is a subsequence of tr and, if so, a [0,1]
// quality score: 1.0 for a contiguous exact match, decaying as the matched
// characters spread out and as non-matched text grows around them.
func atomScore(pr, tr []rune) (float64, bool) {
	if len(pr) == 0 {
		return 1, true
	}
	if len(tr) == 0 {
		return 0, false
	}

	pi := 0
	runBonus := 0.0
	lastMatch := -2
	firstMatch := -1
	matched := 0
	for ti := 0; ti < len(tr) && pi < len(pr); ti++ {
		if tr[ti] == pr[pi] {
			if firstMatch < 0 {
				firstMatch = ti
			}
			if ti == lastMatch+1 {
				runBonus += 1.0 // contiguous run bonus
			}
			if ti == 0 || tr[ti-1] == ' ' {
				runBonus += 0.5 // word-boundary bonus
			}
			lastMatch = ti
			matched++
			pi++
		}
	}
	if pi < len(pr) {
		return 0, false // not a subsequence
	}

	span := float64(lastMatch - firstMatch + 1)
	density := float64(matched) / span // 1.0 when every char in the span matched
	coverage := float64(matched) / float64(len(tr))
	bonus := runBonus / float64(len(pr))

	score := 0.5*density + 0.2*coverage + 0.3*clamp01(bonus)
	return clamp01(score), true
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
