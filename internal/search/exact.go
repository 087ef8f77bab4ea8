package search

import (
	"context"
	"strings"

	"github.com/parsnip-dev/parsnip/internal/graph"
	"github.com/parsnip-dev/parsnip/internal/query"
)

// ExactEngine matches entities whose searchable text contains the query
// text as a case-insensitive substring. Stateless.
type ExactEngine struct{}

func (ExactEngine) Search(ctx context.Context, q query.Search, entities []*graph.Entity) ([]Hit, error) {
	allProjectIDs := collectProjectIDs(entities)
	text := strings.ToLower(strings.TrimSpace(q.Text))
	hits := make([]Hit, 0, len(entities))
	for _, e := range entities {
		if !matchesFilters(e, q, allProjectIDs) {
			continue
		}
		if text != "" && !strings.Contains(strings.ToLower(searchableText(e)), text) {
			continue
		}
		hits = append(hits, Hit{Entity: e, Score: 1})
	}
	return hits, nil
}

func collectProjectIDs(entities []*graph.Entity) []string {
	seen := map[string]bool{}
	var out []string
	for _, e := range entities {
		if !seen[e.ProjectID] {
			seen[e.ProjectID] = true
			out = append(out, e.ProjectID)
		}
	}
	return out
}
