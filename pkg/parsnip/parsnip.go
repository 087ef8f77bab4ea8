// Package parsnip is the library-first entry point: open a graph, call
// engine operations directly, no MCP or CLI transport involved.
package parsnip

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/parsnip-dev/parsnip/internal/config"
	"github.com/parsnip-dev/parsnip/internal/engine"
	"github.com/parsnip-dev/parsnip/internal/graph"
	"github.com/parsnip-dev/parsnip/internal/storage"
	"github.com/parsnip-dev/parsnip/internal/storage/badgerstore"
	"github.com/parsnip-dev/parsnip/internal/storage/libsqlstore"
)

// Service provides a library-first API for graph operations without MCP or
// CLI transport.
type Service struct {
	eng *engine.Engine
}

// Open opens the storage backend named by cfg.Backend and wires an Engine
// over it. The full-text index is persisted under <data dir>/index and
// rebuilt from the primary store when missing, dirty, or corrupt.
func Open(cfg Config) (*Service, error) {
	backend, err := openBackend(cfg)
	if err != nil {
		return nil, err
	}
	eng, err := engine.NewPersistent(context.Background(), backend, filepath.Join(dataDirOf(cfg), "index"))
	if err != nil {
		_ = backend.Close()
		return nil, err
	}
	return &Service{eng: eng}, nil
}

func dataDirOf(cfg Config) string {
	if cfg.DataDir != "" {
		return cfg.DataDir
	}
	return config.DefaultDataDir()
}

// OpenEngine wraps an already-constructed Engine, the path cmd/parsnip and
// cmd/parsnip-mcp take since they share one engine between multiple
// commands/tools within a process.
func OpenEngine(eng *engine.Engine) *Service { return &Service{eng: eng} }

// Engine exposes the underlying Engine for callers (drivers) that need the
// full operation set this package doesn't re-wrap.
func (s *Service) Engine() *engine.Engine { return s.eng }

// Close releases the underlying backend.
func (s *Service) Close() error { return s.eng.Close() }

func openBackend(cfg Config) (storage.Backend, error) {
	switch cfg.Backend {
	case "", "badger":
		return badgerstore.Open(filepath.Join(dataDirOf(cfg), "data"))
	case "libsql":
		return libsqlstore.Open(withAuthToken(cfg.LibSQLURL, cfg.LibSQLAuthToken), cfg.EmbeddingDims)
	default:
		return nil, fmt.Errorf("parsnip: unknown storage backend %q", cfg.Backend)
	}
}

// withAuthToken appends authToken as a query parameter the way libSQL's own
// remote-connection URLs carry it, when one is configured and the URL
// doesn't already specify it.
func withAuthToken(dsn, token string) string {
	if token == "" || strings.Contains(dsn, "authToken=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "authToken=" + url.QueryEscape(token)
}

// --- Projects ---

func (s *Service) CreateProject(ctx context.Context, name, description string) (*graph.Project, error) {
	return s.eng.CreateProject(ctx, name, description)
}

func (s *Service) GetProjectByName(ctx context.Context, name string) (*graph.Project, error) {
	return s.eng.GetProjectByName(ctx, name)
}

func (s *Service) ListProjects(ctx context.Context) ([]*graph.Project, error) {
	return s.eng.ListProjects(ctx)
}

// DeleteProject removes a project; a non-empty project is refused unless
// force is set, in which case its entities and their relations cascade.
func (s *Service) DeleteProject(ctx context.Context, id string, force bool) error {
	return s.eng.DeleteProject(ctx, id, force)
}

// --- Entities ---

func (s *Service) CreateEntity(ctx context.Context, project string, spec graph.NewEntitySpec) (*graph.Entity, error) {
	return s.eng.CreateEntity(ctx, project, spec)
}

func (s *Service) CreateEntities(ctx context.Context, project string, specs []graph.NewEntitySpec) ([]*graph.Entity, error) {
	return s.eng.CreateEntities(ctx, project, specs)
}

func (s *Service) GetEntity(ctx context.Context, project, name string) (*graph.Entity, error) {
	return s.eng.GetEntity(ctx, project, name)
}

func (s *Service) UpdateEntity(ctx context.Context, project, name string, spec graph.UpdateEntitySpec) (*graph.Entity, error) {
	return s.eng.UpdateEntity(ctx, project, name, spec)
}

func (s *Service) DeleteEntity(ctx context.Context, project, name string) error {
	return s.eng.DeleteEntity(ctx, project, name)
}

func (s *Service) AddObservations(ctx context.Context, project, name string, texts []string) ([]graph.Observation, error) {
	return s.eng.AddObservations(ctx, project, name, texts)
}

// --- Relations ---

func (s *Service) CreateRelation(ctx context.Context, project string, spec graph.NewRelationSpec) (*graph.Relation, error) {
	return s.eng.CreateRelation(ctx, project, spec)
}

func (s *Service) GetRelations(ctx context.Context, project, entityName string, direction graph.Direction) ([]*graph.Relation, error) {
	return s.eng.GetRelations(ctx, project, entityName, direction)
}

func (s *Service) DeleteRelation(ctx context.Context, project, from, to, relationType string) error {
	return s.eng.DeleteRelation(ctx, project, from, to, relationType)
}

// --- Graph ---

func (s *Service) ReadGraph(ctx context.Context, project string) ([]*graph.Entity, []*graph.Relation, error) {
	return s.eng.ReadGraph(ctx, project)
}
