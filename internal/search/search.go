// Package search implements the multi-mode search engine: exact substring
// matching, fuzzy scoring, BM25 full-text, cosine-similarity vector search,
// and a hybrid fusion of fuzzy+fulltext. Exact/fuzzy/vector are stateless —
// they run directly over whatever entity slice the engine layer hands them.
// Full-text and hybrid need an inverted index, which is what FullTextEngine
// maintains.
package search

import (
	"context"
	"sort"
	"strings"

	"github.com/parsnip-dev/parsnip/internal/graph"
	"github.com/parsnip-dev/parsnip/internal/parsniperr"
	"github.com/parsnip-dev/parsnip/internal/query"
	"github.com/parsnip-dev/parsnip/internal/storage"
)

// Hit pairs an entity with its relevance score, normalized to [0,1] by each
// engine before hybrid fusion happens on top of it.
type Hit struct {
	Entity *graph.Entity
	Score  float64
}

// Engine is the stateless strategy contract: rank (a filtered subset of)
// entities against q. The caller has already resolved q's scope, so every
// entity passed in is in scope.
type Engine interface {
	Search(ctx context.Context, q query.Search, entities []*graph.Entity) ([]Hit, error)
}

// Index is the fulltext engine's capability set for persisted-index
// lifecycle management — the engine layer calls the write hooks when
// entities change so the index never silently goes stale, checks
// NeedsRebuild at open to recover a missing/dirty/corrupt snapshot from the
// primary store, and Closes the index at shutdown.
type Index interface {
	IndexEntity(e *graph.Entity)
	RemoveEntity(entityID string)
	Rebuild(entities []*graph.Entity)
	NeedsRebuild() bool
	Close() error
}

// Dispatcher routes a query to the right Engine by mode, preferring a
// backend's native capability (VectorSearcher, FullTextSearcher) when the
// active storage.Backend offers one.
type Dispatcher struct {
	exact    Engine
	fuzzy    Engine
	vector   Engine
	fulltext *FullTextEngine
	hybrid   *HybridEngine
	backend  storage.Backend
}

// NewDispatcher wires the five strategies together with a memory-only
// full-text index. backend is consulted for VectorSearcher/FullTextSearcher
// capabilities; pass nil to always use the in-process implementations
// (e.g. for memstore/badgerstore).
func NewDispatcher(backend storage.Backend) *Dispatcher {
	return newDispatcher(backend, NewFullTextEngine())
}

// NewDispatcherWithIndex is NewDispatcher with the full-text index
// persisted under indexDir. The caller must check FullTextIndex's
// NeedsRebuild and rescan the primary store when it reports true.
func NewDispatcherWithIndex(backend storage.Backend, indexDir string) (*Dispatcher, error) {
	ft, err := OpenFullTextEngine(indexDir)
	if err != nil {
		return nil, err
	}
	return newDispatcher(backend, ft), nil
}

func newDispatcher(backend storage.Backend, ft *FullTextEngine) *Dispatcher {
	return &Dispatcher{
		exact:    ExactEngine{},
		fuzzy:    FuzzyEngine{},
		vector:   VectorEngine{},
		fulltext: ft,
		hybrid:   NewHybridEngine(FuzzyEngine{}, ft),
		backend:  backend,
	}
}

// FullTextIndex exposes the persisted index so the engine layer can keep it
// current as entities are mutated.
func (d *Dispatcher) FullTextIndex() Index { return d.fulltext }

// Search dispatches q against entities (already scope-fetched by the caller
// from storage) and returns a paginated, scored result set.
func (d *Dispatcher) Search(ctx context.Context, q query.Search, entities []*graph.Entity) ([]Hit, query.Info, error) {
	var hits []Hit
	var err error

	switch q.Mode {
	case query.ModeExact:
		hits, err = d.exact.Search(ctx, q, entities)
	case query.ModeFuzzy:
		hits, err = d.fuzzy.Search(ctx, q, entities)
	case query.ModeFullText:
		hits, err = d.fulltextSearch(ctx, q, entities)
	case query.ModeVector:
		hits, err = d.vectorSearch(ctx, q, entities)
	case query.ModeHybrid:
		hits, err = d.hybrid.Search(ctx, q, entities)
	default:
		return nil, query.Info{}, parsniperr.InvalidInput("search.dispatch", errUnknownMode(q.Mode))
	}
	if err != nil {
		return nil, query.Info{}, err
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		if hits[i].Entity.Name != hits[j].Entity.Name {
			return hits[i].Entity.Name < hits[j].Entity.Name
		}
		return hits[i].Entity.ID < hits[j].Entity.ID
	})
	page, info := query.Paginate(hits, q.Pagination)
	return page, info, nil
}

func (d *Dispatcher) vectorSearch(ctx context.Context, q query.Search, entities []*graph.Entity) ([]Hit, error) {
	if d.backend != nil {
		if vs, ok := d.backend.(storage.VectorSearcher); ok && q.Scope.Kind == query.ScopeSingle {
			ents, distances, err := vs.VectorSearch(ctx, q.Scope.ProjectIDs[0], q.QueryEmbedding, q.Pagination.Offset()+q.Pagination.PageSize)
			if err == nil {
				hits := make([]Hit, 0, len(ents))
				for i, e := range ents {
					sim := 1 - distances[i] // libSQL reports cosine distance; similarity = 1 - distance
					if float32(sim) >= q.SimilarityThreshold {
						hits = append(hits, Hit{Entity: e, Score: sim})
					}
				}
				return hits, nil
			}
		}
	}
	return d.vector.Search(ctx, q, entities)
}

func (d *Dispatcher) fulltextSearch(ctx context.Context, q query.Search, entities []*graph.Entity) ([]Hit, error) {
	if d.backend != nil {
		if fts, ok := d.backend.(storage.FullTextSearcher); ok && q.Scope.Kind == query.ScopeSingle {
			ents, scores, err := fts.FullTextSearch(ctx, q.Scope.ProjectIDs[0], q.Text, q.Pagination.Offset()+q.Pagination.PageSize)
			if err == nil {
				hits := make([]Hit, len(ents))
				for i, e := range ents {
					hits[i] = Hit{Entity: e, Score: scores[i]}
				}
				return hits, nil
			}
		}
	}
	return d.fulltext.Search(ctx, q, entities)
}

// errUnknownMode avoids importing fmt twice across this small file set.
func errUnknownMode(m query.SearchMode) error { return &unknownModeError{mode: m} }

type unknownModeError struct{ mode query.SearchMode }

func (e *unknownModeError) Error() string { return "unknown search mode: " + string(e.mode) }

// searchableText concatenates every text field the exact/fuzzy engines and
// the full-text tokenizer index: name, type, observations, tags.
func searchableText(e *graph.Entity) string {
	parts := make([]string, 0, len(e.Observations)+len(e.Tags)+2)
	parts = append(parts, e.Name, e.EntityType)
	for _, o := range e.Observations {
		parts = append(parts, o.Content)
	}
	parts = append(parts, e.Tags...)
	return strings.Join(parts, " ")
}

// matchesFilters applies the filters shared by every search mode: project
// scope, entity type, and tag match. Filtering happens after scoring so the
// modes agree on what a filter means.
func matchesFilters(e *graph.Entity, q query.Search, allProjectIDs []string) bool {
	if !q.Scope.Includes(e.ProjectID, allProjectIDs) {
		return false
	}
	if len(q.EntityTypes) > 0 {
		found := false
		for _, t := range q.EntityTypes {
			if strings.EqualFold(t, e.EntityType) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(q.Tags) > 0 {
		switch q.TagMatchMode {
		case query.TagMatchAll:
			for _, t := range q.Tags {
				if !hasTagFold(e.Tags, t) {
					return false
				}
			}
		default: // TagMatchAny
			any := false
			for _, t := range q.Tags {
				if hasTagFold(e.Tags, t) {
					any = true
					break
				}
			}
			if !any {
				return false
			}
		}
	}
	return true
}

func hasTagFold(tags []string, t string) bool {
	for _, tag := range tags {
		if strings.EqualFold(tag, t) {
			return true
		}
	}
	return false
}
