package engine

import (
	"context"

	"github.com/parsnip-dev/parsnip/internal/graph"
	"github.com/parsnip-dev/parsnip/internal/metrics"
	"github.com/parsnip-dev/parsnip/internal/query"
	"github.com/parsnip-dev/parsnip/internal/search"
)

// Search executes q, first fetching the entity universe q's scope ranges
// over, then delegating scoring/filtering/pagination to the search
// dispatcher.
func (e *Engine) Search(ctx context.Context, q query.Search) ([]search.Hit, query.Info, error) {
	done := metrics.TimeOp("search_" + string(q.Mode))
	success := false
	defer func() { done(success) }()

	entities, err := e.entitiesInScope(ctx, q.Scope)
	if err != nil {
		return nil, query.Info{}, err
	}
	hits, info, err := e.search.Search(ctx, q, entities)
	if err != nil {
		return nil, query.Info{}, err
	}
	success = true
	return hits, info, nil
}

// entitiesInScope resolves q's scope to the concrete entity slice every
// stateless search engine ranks over.
func (e *Engine) entitiesInScope(ctx context.Context, scope query.Scope) ([]*graph.Entity, error) {
	switch scope.Kind {
	case query.ScopeSingle:
		if len(scope.ProjectIDs) == 0 {
			return nil, nil
		}
		return e.backend.ListEntities(ctx, scope.ProjectIDs[0])
	case query.ScopeMultiple:
		var out []*graph.Entity
		for _, id := range scope.ProjectIDs {
			ents, err := e.backend.ListEntities(ctx, id)
			if err != nil {
				return nil, err
			}
			out = append(out, ents...)
		}
		return out, nil
	default: // ScopeAll
		return e.backend.ListEntitiesAllProjects(ctx)
	}
}
