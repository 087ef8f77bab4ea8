// Package engine implements the graph engine: the single atomic-operation
// contract every driver (CLI, MCP) calls through. It owns nothing storage
// itself persists — it wires a storage.Backend, a search.Dispatcher, and
// the traversal package together, and is the only layer above storage where
// the name/id duality and cross-project relation rules live.
package engine

import (
	"context"
	"fmt"

	"github.com/parsnip-dev/parsnip/internal/graph"
	"github.com/parsnip-dev/parsnip/internal/parsniperr"
	"github.com/parsnip-dev/parsnip/internal/parsniplog"
	"github.com/parsnip-dev/parsnip/internal/search"
	"github.com/parsnip-dev/parsnip/internal/storage"
)

var log = parsniplog.New("engine")

// Engine is the top-level entry point: one per open data directory (or one
// in-memory instance for tests), safe for concurrent use by multiple
// drivers because every mutating call round-trips through the backend's own
// transactional guarantees.
type Engine struct {
	backend storage.Backend
	search  *search.Dispatcher
}

// New wires an Engine over an already-open backend with a memory-only
// full-text index, for tests and throwaway stores.
func New(backend storage.Backend) *Engine {
	return &Engine{
		backend: backend,
		search:  search.NewDispatcher(backend),
	}
}

// NewPersistent wires an Engine whose full-text index is persisted under
// indexDir. A missing, dirty, or corrupt index snapshot is rebuilt by
// scanning the primary store before the engine is handed to callers, so
// queries never see a stale index.
func NewPersistent(ctx context.Context, backend storage.Backend, indexDir string) (*Engine, error) {
	d, err := search.NewDispatcherWithIndex(backend, indexDir)
	if err != nil {
		return nil, err
	}
	e := &Engine{backend: backend, search: d}
	if ft := d.FullTextIndex(); ft.NeedsRebuild() {
		ents, err := backend.ListEntitiesAllProjects(ctx)
		if err != nil {
			return nil, err
		}
		ft.Rebuild(ents)
		log.Info("rebuilt full-text index from primary store (%d entities)", len(ents))
	}
	return e, nil
}

// Close releases the full-text index and the underlying backend.
func (e *Engine) Close() error {
	if err := e.search.FullTextIndex().Close(); err != nil {
		log.Warn("closing full-text index: %v", err)
	}
	return e.backend.Close()
}

// StorageKind names the backend in use ("badger", "libsql", or "memory"),
// for diagnostics such as health_check.
func (e *Engine) StorageKind() string { return e.backend.Kind() }

// --- Projects ---

// CreateProject creates a new project namespace.
func (e *Engine) CreateProject(ctx context.Context, name, description string) (*graph.Project, error) {
	if err := graph.ValidateProjectName(name); err != nil {
		return nil, err
	}
	p := graph.NewProject(name, description)
	if err := e.backend.CreateProject(ctx, p); err != nil {
		return nil, err
	}
	log.Debug("created project %q (%s)", name, p.ID)
	return p, nil
}

// GetProject fetches a project by id.
func (e *Engine) GetProject(ctx context.Context, id string) (*graph.Project, error) {
	return e.backend.GetProject(ctx, id)
}

// GetProjectByName fetches a project by name.
func (e *Engine) GetProjectByName(ctx context.Context, name string) (*graph.Project, error) {
	return e.backend.GetProjectByName(ctx, name)
}

// ListProjects enumerates every known project.
func (e *Engine) ListProjects(ctx context.Context) ([]*graph.Project, error) {
	return e.backend.ListProjects(ctx)
}

// DeleteProject removes a project. A project that still owns entities is
// only deleted when force is set, in which case every owned entity (and
// each entity's relations, cross-project ones included) cascades away in
// the backend's own transaction. Idempotent on an absent id.
func (e *Engine) DeleteProject(ctx context.Context, id string, force bool) error {
	if !force {
		ents, err := e.backend.ListEntities(ctx, id)
		if err != nil {
			return err
		}
		if len(ents) > 0 {
			return parsniperr.InvalidInput("delete_project", fmt.Errorf("project %q has %d entities; pass force to delete anyway", id, len(ents)))
		}
	}
	return e.backend.DeleteProject(ctx, id)
}

// GetOrCreateDefaultProject returns the implicit "default" project used
// when a driver call doesn't name one, creating it lazily on first use.
func (e *Engine) GetOrCreateDefaultProject(ctx context.Context) (*graph.Project, error) {
	p, err := e.backend.GetProjectByName(ctx, graph.DefaultProjectName)
	if err == nil {
		return p, nil
	}
	if !parsniperr.Is(err, parsniperr.KindNotFound) {
		return nil, err
	}
	p = graph.NewProject(graph.DefaultProjectName, "")
	if err := e.backend.CreateProject(ctx, p); err != nil {
		// Another caller may have created it concurrently; re-fetch rather
		// than fail on the race.
		if parsniperr.Is(err, parsniperr.KindAlreadyExists) {
			return e.backend.GetProjectByName(ctx, graph.DefaultProjectName)
		}
		return nil, err
	}
	return p, nil
}

// resolveProjectID resolves a project name to its id, creating the default
// project lazily when name is empty.
func (e *Engine) resolveProjectID(ctx context.Context, name string) (string, error) {
	if name == "" {
		p, err := e.GetOrCreateDefaultProject(ctx)
		if err != nil {
			return "", err
		}
		return p.ID, nil
	}
	p, err := e.backend.GetProjectByName(ctx, name)
	if err != nil {
		return "", err
	}
	return p.ID, nil
}
