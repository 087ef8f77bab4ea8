// Package storage defines the capability interface every backend
// implements: key-addressed primary tables plus multimap secondary
// indexes, all transactional. Upper layers never bypass this interface
// for indexed lookups.
package storage

import (
	"context"

	"github.com/parsnip-dev/parsnip/internal/graph"
)

// CurrentSchemaVersion is the schema version this binary understands.
const CurrentSchemaVersion = 1

// Migratable is implemented by every backend so the engine can detect and
// run schema migrations on open.
type Migratable interface {
	CurrentVersion(ctx context.Context) (int, error)
	Migrate(ctx context.Context, from, to int) error
}

// Backend is the storage capability interface. Every mutating method runs
// in its own read-write transaction; every read observes a consistent
// snapshot. Implementations: badgerstore (durable KV, default), libsqlstore
// (embedded SQL, compat), memstore (in-memory, tests).
type Backend interface {
	Migratable

	// Projects
	CreateProject(ctx context.Context, p *graph.Project) error
	GetProject(ctx context.Context, id string) (*graph.Project, error)
	GetProjectByName(ctx context.Context, name string) (*graph.Project, error)
	ListProjects(ctx context.Context) ([]*graph.Project, error)
	DeleteProject(ctx context.Context, id string) error

	// Entities
	PutEntity(ctx context.Context, e *graph.Entity) error
	GetEntity(ctx context.Context, projectID, name string) (*graph.Entity, error)
	GetEntityByID(ctx context.Context, entityID string) (*graph.Entity, error)
	ListEntities(ctx context.Context, projectID string) ([]*graph.Entity, error)
	ListEntitiesAllProjects(ctx context.Context) ([]*graph.Entity, error)
	EntitiesByTag(ctx context.Context, projectID, tag string) ([]*graph.Entity, error)
	EntitiesByType(ctx context.Context, projectID, entityType string) ([]*graph.Entity, error)
	DeleteEntity(ctx context.Context, projectID, name string) error

	// Relations
	PutRelation(ctx context.Context, r *graph.Relation) error
	GetRelation(ctx context.Context, id string) (*graph.Relation, error)
	FindRelation(ctx context.Context, fromEntityID, toEntityID, relationType string) (*graph.Relation, error)
	OutgoingRelations(ctx context.Context, projectID, entityID string) ([]*graph.Relation, error)
	IncomingRelations(ctx context.Context, projectID, entityID string) ([]*graph.Relation, error)
	AllRelationsAllProjects(ctx context.Context) ([]*graph.Relation, error)
	RelationsForEntityGlobal(ctx context.Context, entityID string) ([]*graph.Relation, error)
	DeleteRelation(ctx context.Context, id string) error

	// Kind names the backend for diagnostics (e.g. health_check): "badger",
	// "libsql", or "memory".
	Kind() string

	Close() error
}

// ErrKeyNotFound-style sentinel helpers live in parsniperr; backends return
// parsniperr.NotFound(...) directly rather than defining their own sentinel
// to keep the Kind taxonomy in one place.

// VectorSearcher is an optional capability: backends that can evaluate
// nearest-neighbor queries natively (libsqlstore, via libSQL's
// vector_top_k/vector_distance_cos) implement it so the search engine can
// skip an in-process brute-force scan. Backends that don't implement it
// (memstore, badgerstore) fall back to the engine's own cosine-similarity
// pass over ListEntities/ListEntitiesAllProjects.
type VectorSearcher interface {
	VectorSearch(ctx context.Context, projectID string, embedding []float32, limit int) ([]*graph.Entity, []float64, error)
}

// FullTextSearcher is an optional capability: backends with a native
// full-text index (libsqlstore, via SQLite FTS5) implement it so the
// search engine can use BM25-ranked matches instead of its in-process
// scorer. The returned scores are backend-native, higher meaning a better
// match (libsqlstore negates FTS5 bm25()); the search engine uses them
// as-is in full-text mode, and hybrid mode does not call this interface.
type FullTextSearcher interface {
	FullTextSearch(ctx context.Context, projectID string, query string, limit int) ([]*graph.Entity, []float64, error)
}
