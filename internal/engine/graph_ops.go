package engine

import (
	"context"

	"github.com/parsnip-dev/parsnip/internal/graph"
)

// ReadGraph returns a project's entire subgraph: every entity, plus every
// relation with at least one endpoint in the project (covering relations
// that cross into another project).
func (e *Engine) ReadGraph(ctx context.Context, projectName string) ([]*graph.Entity, []*graph.Relation, error) {
	projectID, err := e.resolveProjectID(ctx, projectName)
	if err != nil {
		return nil, nil, err
	}
	return e.readGraphByID(ctx, projectID)
}

// readGraphByID is ReadGraph's core, taking an already-resolved project id
// so internal callers (traversal) that resolved the project once don't
// re-resolve it by mistakenly treating the id as a name.
func (e *Engine) readGraphByID(ctx context.Context, projectID string) ([]*graph.Entity, []*graph.Relation, error) {
	entities, err := e.backend.ListEntities(ctx, projectID)
	if err != nil {
		return nil, nil, err
	}

	seen := map[string]bool{}
	var relations []*graph.Relation
	for _, ent := range entities {
		rels, err := e.backend.RelationsForEntityGlobal(ctx, ent.ID)
		if err != nil {
			return nil, nil, err
		}
		for _, r := range rels {
			if seen[r.ID] {
				continue
			}
			seen[r.ID] = true
			relations = append(relations, r)
		}
	}
	return entities, relations, nil
}
