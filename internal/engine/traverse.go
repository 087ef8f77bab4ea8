package engine

import (
	"context"
	"fmt"
	"sort"

	"github.com/parsnip-dev/parsnip/internal/graph"
	"github.com/parsnip-dev/parsnip/internal/metrics"
	"github.com/parsnip-dev/parsnip/internal/parsniperr"
	"github.com/parsnip-dev/parsnip/internal/query"
	"github.com/parsnip-dev/parsnip/internal/traversal"
)

// Traverse runs a bounded graph walk rooted at q.Start within projectName
// (or the default project). q.Start/q.Target are entity names; internally
// everything after resolution runs over entity ids the way the traversal
// package expects.
func (e *Engine) Traverse(ctx context.Context, projectName string, q query.Traversal) (traversal.Result, error) {
	done := metrics.TimeOp("traverse")
	success := false
	defer func() { done(success) }()

	projectID, err := e.resolveProjectID(ctx, projectName)
	if err != nil {
		return traversal.Result{}, err
	}
	start, err := e.backend.GetEntity(ctx, projectID, q.Start)
	if err != nil {
		return traversal.Result{}, err
	}

	internalQuery := q
	internalQuery.Start = start.ID
	if q.Target != "" {
		target, err := e.backend.GetEntity(ctx, projectID, q.Target)
		if err != nil {
			return traversal.Result{}, err
		}
		internalQuery.Target = target.ID
	}

	entitiesByID, relations, err := e.projectGraphByID(ctx, projectID)
	if err != nil {
		return traversal.Result{}, err
	}

	result := traversal.Execute(internalQuery, entitiesByID, relations)
	success = true
	return result, nil
}

// ShortestPath is the dedicated path-finding entry point (distinct from the
// general Traverse walk): it resolves start/target, runs BFS or Dijkstra
// depending on weighted, and turns an absent route into a typed NoPath
// error rather than a result with empty Paths. "No route exists" is kept
// distinct from "an endpoint doesn't exist" — the latter still surfaces as
// NotFound, from the entity lookups Traverse already performs.
func (e *Engine) ShortestPath(ctx context.Context, projectName, from, to string, direction graph.Direction, weighted bool) (traversal.Path, error) {
	done := metrics.TimeOp("shortest_path")
	success := false
	defer func() { done(success) }()

	q, err := query.NewTraversal(from, graph.MaxTraversalDepth, direction)
	if err != nil {
		return traversal.Path{}, err
	}
	q.Target = to
	q.Weighted = weighted

	result, err := e.Traverse(ctx, projectName, q)
	if err != nil {
		return traversal.Path{}, err
	}
	if !result.Stats.PathFound {
		return traversal.Path{}, parsniperr.NoPath("shortest_path", fmt.Errorf("no path from %q to %q", from, to))
	}
	success = true
	return resolvePathNames(result.Paths[0], result.Entities), nil
}

// resolvePathNames translates a Path's entity ids back to names using the
// entity set Traverse already fetched, since traversal.Execute works purely
// in ids and callers outside the engine (CLI, MCP) only know entities by
// name.
func resolvePathNames(path traversal.Path, entities []*graph.Entity) traversal.Path {
	byID := make(map[string]string, len(entities))
	for _, e := range entities {
		byID[e.ID] = e.Name
	}
	name := func(id string) string {
		if n, ok := byID[id]; ok {
			return n
		}
		return id
	}

	nodes := make([]string, len(path.Nodes))
	for i, id := range path.Nodes {
		nodes[i] = name(id)
	}
	edges := make([]traversal.Edge, len(path.Edges))
	for i, e := range path.Edges {
		edges[i] = traversal.Edge{From: name(e.From), To: name(e.To), RelationType: e.RelationType, Weight: e.Weight}
	}
	return traversal.Path{Nodes: nodes, Edges: edges, TotalWeight: path.TotalWeight, Length: path.Length}
}

// projectGraphByID fetches every entity owned by projectID (keyed by id)
// plus every relation with at least one endpoint in the project, the same
// universe ReadGraph builds — traversal needs it all upfront since it walks
// a static snapshot rather than re-querying storage per hop. Endpoints of
// cross-project relations live outside the project's own entity list, so
// they are resolved by id and added to the universe too; without them a
// depth-1 walk across a cross-project edge would return the edge but not
// the neighbor.
func (e *Engine) projectGraphByID(ctx context.Context, projectID string) (map[string]*graph.Entity, []*graph.Relation, error) {
	entities, relations, err := e.readGraphByID(ctx, projectID)
	if err != nil {
		return nil, nil, err
	}
	byID := make(map[string]*graph.Entity, len(entities))
	for _, ent := range entities {
		byID[ent.ID] = ent
	}
	for _, r := range relations {
		for _, id := range []string{r.FromEntityID, r.ToEntityID} {
			if _, ok := byID[id]; ok {
				continue
			}
			ent, err := e.backend.GetEntityByID(ctx, id)
			if err != nil {
				if parsniperr.Is(err, parsniperr.KindNotFound) {
					continue
				}
				return nil, nil, err
			}
			byID[ent.ID] = ent
		}
	}
	// Neighbor expansion order is relation id ascending so equal-cost
	// results reproduce across backends.
	sort.Slice(relations, func(i, j int) bool { return relations[i].ID < relations[j].ID })
	return byID, relations, nil
}
