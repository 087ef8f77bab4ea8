// Package traversal implements the bounded graph traversal engine: BFS for
// unweighted shortest path and general bounded walks, and Dijkstra for
// weighted shortest path. Nodes are entity ids; edges are relations
// filtered by direction, relation type, and entity type.
package traversal

import (
	"container/heap"

	"github.com/parsnip-dev/parsnip/internal/graph"
	"github.com/parsnip-dev/parsnip/internal/query"
)

// Edge is one relation traversed along a path.
type Edge struct {
	From, To     string
	RelationType string
	Weight       *float64
}

// Path is one route from start to target.
type Path struct {
	Nodes       []string // entity ids, start..target inclusive
	Edges       []Edge
	TotalWeight float64
	Length      int
}

// Stats records how much of the graph a traversal actually visited.
type Stats struct {
	NodesVisited    int
	EdgesTraversed  int
	MaxDepthReached int
	PathFound       bool
}

// Result is the outcome of one traversal. When Target is set and
// Stats.PathFound is false, this is the distinguished "no path" outcome —
// the traversal ran to completion over a real, reachable start entity, it
// simply didn't connect to target within MaxDepth. That is never reported
// as a NotFound error; NotFound is reserved for a start/target entity id
// that doesn't exist in storage at all.
type Result struct {
	Start            string
	Target           string // empty when this was a general (non-path) walk
	Paths            []Path
	VisitedEntityIDs []string
	Entities         []*graph.Entity
	Relations        []*graph.Relation
	Stats            Stats
}

// Execute runs q over the given entity/relation universe (already fetched
// from storage for the traversal's scope). A target plus Weighted selects
// Dijkstra, a target alone selects BFS path reconstruction, and no target
// runs a filtered bounded walk.
func Execute(q query.Traversal, entitiesByID map[string]*graph.Entity, relations []*graph.Relation) Result {
	if q.Target != "" {
		if q.Weighted {
			return dijkstraPath(q, entitiesByID, relations)
		}
		return bfsPath(q, entitiesByID, relations)
	}
	return filteredBFS(q, entitiesByID, relations)
}

func neighbors(node string, direction graph.Direction, relations []*graph.Relation) []*graph.Relation {
	var out []*graph.Relation
	for _, r := range relations {
		switch direction {
		case graph.DirectionOutgoing:
			if r.FromEntityID == node {
				out = append(out, r)
			}
		case graph.DirectionIncoming:
			if r.ToEntityID == node {
				out = append(out, r)
			}
		default: // Both
			if r.FromEntityID == node || r.ToEntityID == node {
				out = append(out, r)
			}
		}
	}
	return out
}

func relationTypeAllowed(q query.Traversal, relType string) bool {
	if len(q.RelationTypes) == 0 {
		return true
	}
	for _, t := range q.RelationTypes {
		if t == relType {
			return true
		}
	}
	return false
}

func entityTypeAllowed(q query.Traversal, entitiesByID map[string]*graph.Entity, entityID string) bool {
	if len(q.EntityTypes) == 0 {
		return true
	}
	e, ok := entitiesByID[entityID]
	if !ok {
		return true // unknown entity, let storage-level lookups fail elsewhere
	}
	for _, t := range q.EntityTypes {
		if t == e.EntityType {
			return true
		}
	}
	return false
}

type bfsParent struct {
	prev string
	edge Edge
}

func bfsPath(q query.Traversal, entitiesByID map[string]*graph.Entity, relations []*graph.Relation) Result {
	visited := map[string]bool{q.Start: true}
	parent := map[string]bfsParent{}
	type queued struct {
		node  string
		depth int
	}
	queue := []queued{{q.Start, 0}}
	var stats Stats

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		stats.NodesVisited++
		if cur.depth > stats.MaxDepthReached {
			stats.MaxDepthReached = cur.depth
		}

		if cur.node == q.Target {
			stats.PathFound = true
			break
		}
		if cur.depth >= q.MaxDepth {
			continue
		}

		for _, r := range neighbors(cur.node, q.Direction, relations) {
			stats.EdgesTraversed++
			if !relationTypeAllowed(q, r.RelationType) {
				continue
			}
			next := r.ToEntityID
			if r.FromEntityID != cur.node {
				next = r.FromEntityID
			}
			if !entityTypeAllowed(q, entitiesByID, next) {
				continue
			}
			if !visited[next] {
				visited[next] = true
				parent[next] = bfsParent{prev: cur.node, edge: Edge{From: r.FromEntityID, To: r.ToEntityID, RelationType: r.RelationType, Weight: r.Weight}}
				queue = append(queue, queued{next, cur.depth + 1})
			}
		}
	}

	var paths []Path
	if stats.PathFound {
		paths = []Path{reconstructPath(q.Start, q.Target, parent)}
	}
	return buildResult(q, paths, visited, entitiesByID, relations, stats)
}

type dijkstraItem struct {
	node string
	cost float64
}

type dijkstraQueue []dijkstraItem

func (q dijkstraQueue) Len() int           { return len(q) }
func (q dijkstraQueue) Less(i, j int) bool { return q[i].cost < q[j].cost }
func (q dijkstraQueue) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }
func (q *dijkstraQueue) Push(x any)        { *q = append(*q, x.(dijkstraItem)) }
func (q *dijkstraQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

func dijkstraPath(q query.Traversal, entitiesByID map[string]*graph.Entity, relations []*graph.Relation) Result {
	const inf = 1e18
	dist := map[string]float64{q.Start: 0}
	parent := map[string]bfsParent{}
	pq := &dijkstraQueue{{node: q.Start, cost: 0}}
	heap.Init(pq)
	var stats Stats

	for pq.Len() > 0 {
		cur := heap.Pop(pq).(dijkstraItem)
		stats.NodesVisited++

		if cur.node == q.Target {
			stats.PathFound = true
			break
		}
		if best, ok := dist[cur.node]; ok && cur.cost > best {
			continue
		}

		for _, r := range neighbors(cur.node, q.Direction, relations) {
			stats.EdgesTraversed++
			if !relationTypeAllowed(q, r.RelationType) {
				continue
			}
			next := r.ToEntityID
			if r.FromEntityID != cur.node {
				next = r.FromEntityID
			}
			if !entityTypeAllowed(q, entitiesByID, next) {
				continue
			}
			newCost := cur.cost + r.EffectiveWeight()
			existing, ok := dist[next]
			if !ok {
				existing = inf
			}
			if newCost < existing {
				dist[next] = newCost
				parent[next] = bfsParent{prev: cur.node, edge: Edge{From: r.FromEntityID, To: r.ToEntityID, RelationType: r.RelationType, Weight: r.Weight}}
				heap.Push(pq, dijkstraItem{node: next, cost: newCost})
			}
		}
	}

	var paths []Path
	if stats.PathFound {
		paths = []Path{reconstructPath(q.Start, q.Target, parent)}
	}
	visited := make(map[string]bool, len(dist))
	for n := range dist {
		visited[n] = true
	}
	return buildResult(q, paths, visited, entitiesByID, relations, stats)
}

func filteredBFS(q query.Traversal, entitiesByID map[string]*graph.Entity, relations []*graph.Relation) Result {
	visited := map[string]bool{q.Start: true}
	type queued struct {
		node  string
		depth int
	}
	queue := []queued{{q.Start, 0}}
	var stats Stats

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		stats.NodesVisited++
		if cur.depth > stats.MaxDepthReached {
			stats.MaxDepthReached = cur.depth
		}
		if cur.depth >= q.MaxDepth {
			continue
		}

		for _, r := range neighbors(cur.node, q.Direction, relations) {
			stats.EdgesTraversed++
			if !relationTypeAllowed(q, r.RelationType) {
				continue
			}
			next := r.ToEntityID
			if r.FromEntityID != cur.node {
				next = r.FromEntityID
			}
			if !entityTypeAllowed(q, entitiesByID, next) {
				continue
			}
			if !visited[next] {
				visited[next] = true
				queue = append(queue, queued{next, cur.depth + 1})
			}
		}
	}

	return buildResult(q, nil, visited, entitiesByID, relations, stats)
}

func reconstructPath(start, end string, parent map[string]bfsParent) Path {
	nodes := []string{end}
	var edges []Edge
	totalWeight := 0.0
	current := end
	for current != start {
		p, ok := parent[current]
		if !ok {
			break
		}
		weight := 1.0
		if p.edge.Weight != nil {
			weight = *p.edge.Weight
		}
		totalWeight += weight
		edges = append(edges, p.edge)
		nodes = append(nodes, p.prev)
		current = p.prev
	}
	reverseStrings(nodes)
	reverseEdges(edges)
	return Path{Nodes: nodes, Edges: edges, TotalWeight: totalWeight, Length: len(edges)}
}

func reverseStrings(s []string) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

func reverseEdges(s []Edge) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

func buildResult(q query.Traversal, paths []Path, visited map[string]bool, entitiesByID map[string]*graph.Entity, relations []*graph.Relation, stats Stats) Result {
	visitedIDs := make([]string, 0, len(visited))
	for id := range visited {
		visitedIDs = append(visitedIDs, id)
	}
	var entities []*graph.Entity
	for _, id := range visitedIDs {
		if e, ok := entitiesByID[id]; ok {
			entities = append(entities, e)
		}
	}
	var resultRelations []*graph.Relation
	for _, r := range relations {
		if visited[r.FromEntityID] && visited[r.ToEntityID] {
			resultRelations = append(resultRelations, r)
		}
	}
	return Result{
		Start:            q.Start,
		Target:           q.Target,
		Paths:            paths,
		VisitedEntityIDs: visitedIDs,
		Entities:         entities,
		Relations:        resultRelations,
		Stats:            stats,
	}
}
