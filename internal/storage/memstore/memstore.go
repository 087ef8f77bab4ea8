// Package memstore is the in-memory storage backend used by tests; the
// durable parsnip.Open path never selects it. It satisfies the same
// storage.Backend contract as the durable backends, guarded by a single
// sync.RWMutex standing in for a transaction.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/parsnip-dev/parsnip/internal/graph"
	"github.com/parsnip-dev/parsnip/internal/parsniperr"
	"github.com/parsnip-dev/parsnip/internal/storage"
)

type Store struct {
	mu sync.RWMutex

	projectsByID   map[string]*graph.Project
	projectsByName map[string]string // name -> id

	entitiesByKey map[string]*graph.Entity // "projectID\x1fname" -> entity
	entityIndex   map[string]string        // entityID -> "projectID\x1fname"

	relations map[string]*graph.Relation // relationID -> relation

	schemaVersion int
}

var _ storage.Backend = (*Store)(nil)

// New constructs an empty in-memory store at the current schema version.
func New() *Store {
	return &Store{
		projectsByID:   map[string]*graph.Project{},
		projectsByName: map[string]string{},
		entitiesByKey:  map[string]*graph.Entity{},
		entityIndex:    map[string]string{},
		relations:      map[string]*graph.Relation{},
		schemaVersion:  storage.CurrentSchemaVersion,
	}
}

func entityKey(projectID, name string) string { return projectID + "\x1f" + name }

func (s *Store) CurrentVersion(ctx context.Context) (int, error) { return s.schemaVersion, nil }

func (s *Store) Migrate(ctx context.Context, from, to int) error {
	if to > storage.CurrentSchemaVersion {
		return parsniperr.SchemaTooNew("memstore.migrate", fmt.Errorf("requested version %d newer than binary version %d", to, storage.CurrentSchemaVersion))
	}
	if from == to {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schemaVersion = to
	return nil
}

// --- Projects ---

func (s *Store) CreateProject(ctx context.Context, p *graph.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projectsByName[p.Name]; ok {
		return parsniperr.AlreadyExists("memstore.create_project", fmt.Errorf("project %q already exists", p.Name))
	}
	s.projectsByID[p.ID] = p
	s.projectsByName[p.Name] = p.ID
	return nil
}

func (s *Store) GetProject(ctx context.Context, id string) (*graph.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.projectsByID[id]
	if !ok {
		return nil, parsniperr.NotFound("memstore.get_project", fmt.Errorf("project %q not found", id))
	}
	return p, nil
}

func (s *Store) GetProjectByName(ctx context.Context, name string) (*graph.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.projectsByName[name]
	if !ok {
		return nil, parsniperr.NotFound("memstore.get_project_by_name", fmt.Errorf("project %q not found", name))
	}
	return s.projectsByID[id], nil
}

func (s *Store) ListProjects(ctx context.Context) ([]*graph.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*graph.Project, 0, len(s.projectsByID))
	for _, p := range s.projectsByID {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) DeleteProject(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projectsByID[id]
	if !ok {
		return nil // idempotent
	}
	// Cascade: remove every entity owned by this project (which itself
	// cascades to relations touching that entity, globally).
	for key, e := range s.entitiesByKey {
		if e.ProjectID == id {
			s.deleteEntityLocked(e.ProjectID, e.Name)
			delete(s.entitiesByKey, key)
		}
	}
	delete(s.projectsByID, id)
	delete(s.projectsByName, p.Name)
	return nil
}

// --- Entities ---

func (s *Store) PutEntity(ctx context.Context, e *graph.Entity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := entityKey(e.ProjectID, e.Name)
	if existing, ok := s.entitiesByKey[key]; ok && existing.ID != e.ID {
		return parsniperr.AlreadyExists("memstore.put_entity", fmt.Errorf("entity %q already exists in project %q", e.Name, e.ProjectID))
	}
	s.entitiesByKey[key] = e
	s.entityIndex[e.ID] = key
	return nil
}

func (s *Store) GetEntity(ctx context.Context, projectID, name string) (*graph.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entitiesByKey[entityKey(projectID, name)]
	if !ok {
		return nil, parsniperr.NotFound("memstore.get_entity", fmt.Errorf("entity %q not found in project %q", name, projectID))
	}
	return e, nil
}

func (s *Store) GetEntityByID(ctx context.Context, entityID string) (*graph.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key, ok := s.entityIndex[entityID]
	if !ok {
		return nil, parsniperr.NotFound("memstore.get_entity_by_id", fmt.Errorf("entity id %q not found", entityID))
	}
	return s.entitiesByKey[key], nil
}

func (s *Store) ListEntities(ctx context.Context, projectID string) ([]*graph.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*graph.Entity
	for _, e := range s.entitiesByKey {
		if e.ProjectID == projectID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) ListEntitiesAllProjects(ctx context.Context) ([]*graph.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*graph.Entity, 0, len(s.entitiesByKey))
	for _, e := range s.entitiesByKey {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) EntitiesByTag(ctx context.Context, projectID, tag string) ([]*graph.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*graph.Entity
	for _, e := range s.entitiesByKey {
		if e.ProjectID == projectID && e.HasTag(tag) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *Store) EntitiesByType(ctx context.Context, projectID, entityType string) ([]*graph.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*graph.Entity
	for _, e := range s.entitiesByKey {
		if e.ProjectID == projectID && e.EntityType == entityType {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *Store) DeleteEntity(ctx context.Context, projectID, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteEntityLocked(projectID, name)
	return nil
}

// deleteEntityLocked removes the entity and cascades relation deletion.
// Caller holds s.mu.
func (s *Store) deleteEntityLocked(projectID, name string) {
	key := entityKey(projectID, name)
	e, ok := s.entitiesByKey[key]
	if !ok {
		return // idempotent
	}
	delete(s.entitiesByKey, key)
	delete(s.entityIndex, e.ID)
	for id, r := range s.relations {
		if r.FromEntityID == e.ID || r.ToEntityID == e.ID {
			delete(s.relations, id)
		}
	}
}

// --- Relations ---

func (s *Store) PutRelation(ctx context.Context, r *graph.Relation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.relations {
		if existing.FromEntityID == r.FromEntityID && existing.ToEntityID == r.ToEntityID && existing.RelationType == r.RelationType {
			return parsniperr.AlreadyExists("memstore.put_relation", fmt.Errorf("relation %s->%s[%s] already exists", r.FromName, r.ToName, r.RelationType))
		}
	}
	s.relations[r.ID] = r
	return nil
}

func (s *Store) GetRelation(ctx context.Context, id string) (*graph.Relation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.relations[id]
	if !ok {
		return nil, parsniperr.NotFound("memstore.get_relation", fmt.Errorf("relation %q not found", id))
	}
	return r, nil
}

func (s *Store) FindRelation(ctx context.Context, fromEntityID, toEntityID, relationType string) (*graph.Relation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.relations {
		if r.FromEntityID == fromEntityID && r.ToEntityID == toEntityID && r.RelationType == relationType {
			return r, nil
		}
	}
	return nil, parsniperr.NotFound("memstore.find_relation", fmt.Errorf("relation not found"))
}

func (s *Store) OutgoingRelations(ctx context.Context, projectID, entityID string) ([]*graph.Relation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*graph.Relation
	for _, r := range s.relations {
		if r.FromEntityID == entityID && r.FromProjectID == projectID {
			out = append(out, r)
		}
	}
	sortRelations(out)
	return out, nil
}

func (s *Store) IncomingRelations(ctx context.Context, projectID, entityID string) ([]*graph.Relation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*graph.Relation
	for _, r := range s.relations {
		if r.ToEntityID == entityID && r.ToProjectID == projectID {
			out = append(out, r)
		}
	}
	sortRelations(out)
	return out, nil
}

func (s *Store) AllRelationsAllProjects(ctx context.Context) ([]*graph.Relation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*graph.Relation, 0, len(s.relations))
	for _, r := range s.relations {
		out = append(out, r)
	}
	sortRelations(out)
	return out, nil
}

func (s *Store) RelationsForEntityGlobal(ctx context.Context, entityID string) ([]*graph.Relation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*graph.Relation
	for _, r := range s.relations {
		if r.FromEntityID == entityID || r.ToEntityID == entityID {
			out = append(out, r)
		}
	}
	sortRelations(out)
	return out, nil
}

func (s *Store) DeleteRelation(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.relations, id)
	return nil
}

func (s *Store) Close() error { return nil }

// Kind identifies this backend for diagnostics.
func (s *Store) Kind() string { return "memory" }

func sortRelations(rs []*graph.Relation) {
	sort.Slice(rs, func(i, j int) bool { return rs[i].ID < rs[j].ID })
}
