// Package libsqlstore is the embedded-SQL "compat" storage backend: a
// single libSQL/SQLite database file exercising FTS5 full-text search and
// libSQL's native vector_top_k/vector_distance_cos ANN functions when the
// linked libSQL build supports them, probed once at open.
package libsqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/parsnip-dev/parsnip/internal/graph"
	"github.com/parsnip-dev/parsnip/internal/parsniperr"
	"github.com/parsnip-dev/parsnip/internal/parsniplog"
	"github.com/parsnip-dev/parsnip/internal/storage"
)

var log = parsniplog.New("storage/libsql")

// DefaultEmbeddingDims is used when Open isn't given an explicit dimension.
const DefaultEmbeddingDims = 1536

type caps struct {
	checked    bool
	vectorTopK bool
	fts5       bool
}

type Store struct {
	db   *sql.DB
	dims int

	mu   sync.RWMutex
	caps caps

	stmtMu sync.RWMutex
	stmts  map[string]*sql.Stmt
}

var (
	_ storage.Backend          = (*Store)(nil)
	_ storage.VectorSearcher   = (*Store)(nil)
	_ storage.FullTextSearcher = (*Store)(nil)
)

// Open opens (or creates) a libSQL database at path (a file: URL or plain
// path) with the given embedding dimension.
func Open(path string, dims int) (*Store, error) {
	if dims <= 0 {
		dims = DefaultEmbeddingDims
	}
	url := path
	if !strings.HasPrefix(url, "file:") {
		url = "file:" + url
	}
	db, err := sql.Open("libsql", url)
	if err != nil {
		return nil, parsniperr.Storage("libsqlstore.open", err)
	}
	db.SetMaxOpenConns(1) // libSQL's local file driver is not safe for concurrent writers
	s := &Store{db: db, dims: dims, stmts: map[string]*sql.Stmt{}}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	s.detectCapabilities()
	return s, nil
}

func (s *Store) initSchema() error {
	ctx := context.Background()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return parsniperr.Storage("libsqlstore.init_schema", err)
	}
	defer tx.Rollback()
	for _, stmt := range schema(s.dims) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return parsniperr.Storage("libsqlstore.init_schema", fmt.Errorf("exec %q: %w", stmt, err))
		}
	}
	if err := tx.Commit(); err != nil {
		return parsniperr.Storage("libsqlstore.init_schema", err)
	}
	return nil
}

func schema(dims int) []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS schema_meta (key TEXT PRIMARY KEY, value TEXT NOT NULL)`,
		`CREATE TABLE IF NOT EXISTS projects (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			description TEXT NOT NULL DEFAULT '',
			settings TEXT NOT NULL DEFAULT '{}',
			created_at DATETIME NOT NULL
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS entities (
			id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL,
			name TEXT NOT NULL,
			entity_type TEXT NOT NULL,
			observations TEXT NOT NULL DEFAULT '[]',
			tags TEXT NOT NULL DEFAULT '[]',
			metadata TEXT NOT NULL DEFAULT '{}',
			embedding F32_BLOB(%d),
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			UNIQUE(project_id, name)
		)`, dims),
		`CREATE INDEX IF NOT EXISTS idx_entities_project ON entities(project_id)`,
		`CREATE INDEX IF NOT EXISTS idx_entities_project_type ON entities(project_id, entity_type)`,
		`CREATE INDEX IF NOT EXISTS idx_entities_embedding ON entities(libsql_vector_idx(embedding))`,
		`CREATE TABLE IF NOT EXISTS relations (
			id TEXT PRIMARY KEY,
			from_project_id TEXT NOT NULL,
			to_project_id TEXT NOT NULL,
			from_entity_id TEXT NOT NULL,
			from_name TEXT NOT NULL,
			to_entity_id TEXT NOT NULL,
			to_name TEXT NOT NULL,
			relation_type TEXT NOT NULL,
			weight REAL,
			metadata TEXT NOT NULL DEFAULT '{}',
			created_at DATETIME NOT NULL,
			UNIQUE(from_entity_id, to_entity_id, relation_type)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_relations_out ON relations(from_project_id, from_entity_id)`,
		`CREATE INDEX IF NOT EXISTS idx_relations_in ON relations(to_project_id, to_entity_id)`,
		`CREATE INDEX IF NOT EXISTS idx_relations_from_global ON relations(from_entity_id)`,
		`CREATE INDEX IF NOT EXISTS idx_relations_to_global ON relations(to_entity_id)`,
	}
}

// detectCapabilities probes vector_top_k and FTS5 support once at open;
// a build without either degrades to the in-process search engines.
func (s *Store) detectCapabilities() {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	zero := vectorLiteral(make([]float32, s.dims))
	rows, err := s.db.QueryContext(ctx, "SELECT id FROM vector_top_k('idx_entities_embedding', vector32(?), 1) LIMIT 1", zero)
	if rows != nil {
		rows.Close()
	}
	vectorTopK := err == nil

	ctx2, cancel2 := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel2()
	fts5 := false
	if _, err := s.db.ExecContext(ctx2, "CREATE VIRTUAL TABLE IF NOT EXISTS temp._fts5_probe USING fts5(x)"); err == nil {
		_, _ = s.db.ExecContext(ctx2, "DROP TABLE IF EXISTS temp._fts5_probe")
		if _, err := s.db.ExecContext(ctx2, `CREATE VIRTUAL TABLE IF NOT EXISTS fts_entities USING fts5(entity_id UNINDEXED, name, observations)`); err == nil {
			fts5 = true
		} else {
			log.Warn("fts5 probe succeeded but fts_entities table creation failed: %v", err)
		}
	}
	s.mu.Lock()
	s.caps = caps{checked: true, vectorTopK: vectorTopK, fts5: fts5}
	s.mu.Unlock()
	log.Info("capability probe: vector_top_k=%v fts5=%v", vectorTopK, fts5)
}

func (s *Store) hasVectorTopK() bool { s.mu.RLock(); defer s.mu.RUnlock(); return s.caps.vectorTopK }
func (s *Store) hasFTS5() bool       { s.mu.RLock(); defer s.mu.RUnlock(); return s.caps.fts5 }

func (s *Store) prepared(ctx context.Context, sqlText string) (*sql.Stmt, error) {
	s.stmtMu.RLock()
	if stmt, ok := s.stmts[sqlText]; ok {
		s.stmtMu.RUnlock()
		return stmt, nil
	}
	s.stmtMu.RUnlock()
	stmt, err := s.db.PrepareContext(ctx, sqlText)
	if err != nil {
		return nil, err
	}
	s.stmtMu.Lock()
	s.stmts[sqlText] = stmt
	s.stmtMu.Unlock()
	return stmt, nil
}

func (s *Store) Close() error {
	s.stmtMu.Lock()
	for _, stmt := range s.stmts {
		_ = stmt.Close()
	}
	s.stmtMu.Unlock()
	return s.db.Close()
}

// Kind identifies this backend for diagnostics.
func (s *Store) Kind() string { return "libsql" }

// --- schema version ---

func (s *Store) CurrentVersion(ctx context.Context) (int, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM schema_meta WHERE key = 'version'`).Scan(&v)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, parsniperr.Storage("libsqlstore.current_version", err)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, parsniperr.Storage("libsqlstore.current_version", err)
	}
	return n, nil
}

func (s *Store) Migrate(ctx context.Context, from, to int) error {
	if to > storage.CurrentSchemaVersion {
		return parsniperr.SchemaTooNew("libsqlstore.migrate", fmt.Errorf("requested version %d newer than binary version %d", to, storage.CurrentSchemaVersion))
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO schema_meta(key, value) VALUES('version', ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, strconv.Itoa(to))
	if err != nil {
		return parsniperr.MigrationFailed("libsqlstore.migrate", err)
	}
	return nil
}

// --- Projects ---

func (s *Store) CreateProject(ctx context.Context, p *graph.Project) error {
	settings, err := json.Marshal(p.Settings)
	if err != nil {
		return parsniperr.Storage("libsqlstore.create_project", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO projects(id, name, description, settings, created_at) VALUES(?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Description, string(settings), p.CreatedAt)
	if isUniqueViolation(err) {
		return parsniperr.AlreadyExists("libsqlstore.create_project", fmt.Errorf("project %q already exists", p.Name))
	}
	if err != nil {
		return parsniperr.Storage("libsqlstore.create_project", err)
	}
	return nil
}

func scanProject(row interface{ Scan(...any) error }) (*graph.Project, error) {
	var p graph.Project
	var settings string
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &settings, &p.CreatedAt); err != nil {
		return nil, err
	}
	if settings != "" {
		if err := json.Unmarshal([]byte(settings), &p.Settings); err != nil {
			return nil, err
		}
	}
	return &p, nil
}

func (s *Store) GetProject(ctx context.Context, id string) (*graph.Project, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, name, description, settings, created_at FROM projects WHERE id = ?`, id)
	p, err := scanProject(row)
	if err == sql.ErrNoRows {
		return nil, parsniperr.NotFound("libsqlstore.get_project", fmt.Errorf("project %q not found", id))
	}
	if err != nil {
		return nil, parsniperr.Storage("libsqlstore.get_project", err)
	}
	return p, nil
}

func (s *Store) GetProjectByName(ctx context.Context, name string) (*graph.Project, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, name, description, settings, created_at FROM projects WHERE name = ?`, name)
	p, err := scanProject(row)
	if err == sql.ErrNoRows {
		return nil, parsniperr.NotFound("libsqlstore.get_project_by_name", fmt.Errorf("project %q not found", name))
	}
	if err != nil {
		return nil, parsniperr.Storage("libsqlstore.get_project_by_name", err)
	}
	return p, nil
}

func (s *Store) ListProjects(ctx context.Context) ([]*graph.Project, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, description, settings, created_at FROM projects ORDER BY name`)
	if err != nil {
		return nil, parsniperr.Storage("libsqlstore.list_projects", err)
	}
	defer rows.Close()
	var out []*graph.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, parsniperr.Storage("libsqlstore.list_projects", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) DeleteProject(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return parsniperr.Storage("libsqlstore.delete_project", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `SELECT name FROM entities WHERE project_id = ?`, id)
	if err != nil {
		return parsniperr.Storage("libsqlstore.delete_project", err)
	}
	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			rows.Close()
			return parsniperr.Storage("libsqlstore.delete_project", err)
		}
		names = append(names, n)
	}
	rows.Close()

	for _, name := range names {
		if err := deleteEntityTx(ctx, tx, s, id, name); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id); err != nil {
		return parsniperr.Storage("libsqlstore.delete_project", err)
	}
	if err := tx.Commit(); err != nil {
		return parsniperr.Storage("libsqlstore.delete_project", err)
	}
	return nil
}

// --- Entities ---

func (s *Store) PutEntity(ctx context.Context, e *graph.Entity) error {
	observations, err := json.Marshal(e.Observations)
	if err != nil {
		return parsniperr.Storage("libsqlstore.put_entity", err)
	}
	tags, err := json.Marshal(e.Tags)
	if err != nil {
		return parsniperr.Storage("libsqlstore.put_entity", err)
	}
	metadata, err := json.Marshal(e.Metadata)
	if err != nil {
		return parsniperr.Storage("libsqlstore.put_entity", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return parsniperr.Storage("libsqlstore.put_entity", err)
	}
	defer tx.Rollback()

	var existingID string
	err = tx.QueryRowContext(ctx, `SELECT id FROM entities WHERE project_id = ? AND name = ?`, e.ProjectID, e.Name).Scan(&existingID)
	if err != nil && err != sql.ErrNoRows {
		return parsniperr.Storage("libsqlstore.put_entity", err)
	}
	if err == nil && existingID != e.ID {
		return parsniperr.AlreadyExists("libsqlstore.put_entity", fmt.Errorf("entity %q already exists in project %q", e.Name, e.ProjectID))
	}

	var embeddingExpr any
	if len(e.Embedding) > 0 {
		embeddingExpr = vectorLiteral(e.Embedding)
	}

	if err == sql.ErrNoRows {
		insertSQL := `INSERT INTO entities(id, project_id, name, entity_type, observations, tags, metadata, embedding, created_at, updated_at)
			VALUES(?, ?, ?, ?, ?, ?, ?, `
		if embeddingExpr != nil {
			insertSQL += `vector32(?), ?, ?)`
			_, err = tx.ExecContext(ctx, insertSQL, e.ID, e.ProjectID, e.Name, e.EntityType, string(observations), string(tags), string(metadata), embeddingExpr, e.CreatedAt, e.UpdatedAt)
		} else {
			insertSQL += `NULL, ?, ?)`
			_, err = tx.ExecContext(ctx, insertSQL, e.ID, e.ProjectID, e.Name, e.EntityType, string(observations), string(tags), string(metadata), e.CreatedAt, e.UpdatedAt)
		}
	} else {
		updateSQL := `UPDATE entities SET entity_type = ?, observations = ?, tags = ?, metadata = ?, embedding = `
		if embeddingExpr != nil {
			updateSQL += `vector32(?), updated_at = ? WHERE id = ?`
			_, err = tx.ExecContext(ctx, updateSQL, e.EntityType, string(observations), string(tags), string(metadata), embeddingExpr, e.UpdatedAt, e.ID)
		} else {
			updateSQL += `NULL, updated_at = ? WHERE id = ?`
			_, err = tx.ExecContext(ctx, updateSQL, e.EntityType, string(observations), string(tags), string(metadata), e.UpdatedAt, e.ID)
		}
	}
	if err != nil {
		return parsniperr.Storage("libsqlstore.put_entity", err)
	}

	if s.hasFTS5() {
		if _, err := tx.ExecContext(ctx, `DELETE FROM fts_entities WHERE entity_id = ?`, e.ID); err != nil {
			return parsniperr.Storage("libsqlstore.put_entity", err)
		}
		obsText := strings.Join(observationTexts(e.Observations), " ")
		if _, err := tx.ExecContext(ctx, `INSERT INTO fts_entities(entity_id, name, observations) VALUES(?, ?, ?)`, e.ID, e.Name, obsText); err != nil {
			return parsniperr.Storage("libsqlstore.put_entity", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return parsniperr.Storage("libsqlstore.put_entity", err)
	}
	return nil
}

func observationTexts(obs []graph.Observation) []string {
	out := make([]string, len(obs))
	for i, o := range obs {
		out[i] = o.Content
	}
	return out
}

func scanEntity(row interface{ Scan(...any) error }) (*graph.Entity, error) {
	var e graph.Entity
	var observations, tags, metadata string
	var embeddingBytes []byte
	if err := row.Scan(&e.ID, &e.ProjectID, &e.Name, &e.EntityType, &observations, &tags, &metadata, &embeddingBytes, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	if observations != "" {
		if err := json.Unmarshal([]byte(observations), &e.Observations); err != nil {
			return nil, err
		}
	}
	if tags != "" {
		if err := json.Unmarshal([]byte(tags), &e.Tags); err != nil {
			return nil, err
		}
	}
	if metadata != "" {
		if err := json.Unmarshal([]byte(metadata), &e.Metadata); err != nil {
			return nil, err
		}
	}
	if len(embeddingBytes) > 0 && len(embeddingBytes)%4 == 0 {
		e.Embedding = decodeVector(embeddingBytes)
	}
	return &e, nil
}

const entityColumns = `id, project_id, name, entity_type, observations, tags, metadata, embedding, created_at, updated_at`

func (s *Store) GetEntity(ctx context.Context, projectID, name string) (*graph.Entity, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+entityColumns+` FROM entities WHERE project_id = ? AND name = ?`, projectID, name)
	e, err := scanEntity(row)
	if err == sql.ErrNoRows {
		return nil, parsniperr.NotFound("libsqlstore.get_entity", fmt.Errorf("entity %q not found in project %q", name, projectID))
	}
	if err != nil {
		return nil, parsniperr.Storage("libsqlstore.get_entity", err)
	}
	return e, nil
}

func (s *Store) GetEntityByID(ctx context.Context, entityID string) (*graph.Entity, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+entityColumns+` FROM entities WHERE id = ?`, entityID)
	e, err := scanEntity(row)
	if err == sql.ErrNoRows {
		return nil, parsniperr.NotFound("libsqlstore.get_entity_by_id", fmt.Errorf("entity id %q not found", entityID))
	}
	if err != nil {
		return nil, parsniperr.Storage("libsqlstore.get_entity_by_id", err)
	}
	return e, nil
}

func (s *Store) queryEntities(ctx context.Context, where string, args ...any) ([]*graph.Entity, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+entityColumns+` FROM entities WHERE `+where+` ORDER BY name`, args...)
	if err != nil {
		return nil, parsniperr.Storage("libsqlstore.query_entities", err)
	}
	defer rows.Close()
	var out []*graph.Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, parsniperr.Storage("libsqlstore.query_entities", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) ListEntities(ctx context.Context, projectID string) ([]*graph.Entity, error) {
	return s.queryEntities(ctx, "project_id = ?", projectID)
}

func (s *Store) ListEntitiesAllProjects(ctx context.Context) ([]*graph.Entity, error) {
	return s.queryEntities(ctx, "1 = 1")
}

func (s *Store) EntitiesByTag(ctx context.Context, projectID, tag string) ([]*graph.Entity, error) {
	all, err := s.ListEntities(ctx, projectID)
	if err != nil {
		return nil, err
	}
	var out []*graph.Entity
	for _, e := range all {
		if e.HasTag(tag) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *Store) EntitiesByType(ctx context.Context, projectID, entityType string) ([]*graph.Entity, error) {
	return s.queryEntities(ctx, "project_id = ? AND entity_type = ?", projectID, entityType)
}

func (s *Store) DeleteEntity(ctx context.Context, projectID, name string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return parsniperr.Storage("libsqlstore.delete_entity", err)
	}
	defer tx.Rollback()
	if err := deleteEntityTx(ctx, tx, s, projectID, name); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return parsniperr.Storage("libsqlstore.delete_entity", err)
	}
	return nil
}

func deleteEntityTx(ctx context.Context, tx *sql.Tx, s *Store, projectID, name string) error {
	var entityID string
	err := tx.QueryRowContext(ctx, `SELECT id FROM entities WHERE project_id = ? AND name = ?`, projectID, name).Scan(&entityID)
	if err == sql.ErrNoRows {
		return nil // idempotent
	}
	if err != nil {
		return parsniperr.Storage("libsqlstore.delete_entity", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM relations WHERE from_entity_id = ? OR to_entity_id = ?`, entityID, entityID); err != nil {
		return parsniperr.Storage("libsqlstore.delete_entity", err)
	}
	if s.hasFTS5() {
		if _, err := tx.ExecContext(ctx, `DELETE FROM fts_entities WHERE entity_id = ?`, entityID); err != nil {
			return parsniperr.Storage("libsqlstore.delete_entity", err)
		}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM entities WHERE id = ?`, entityID); err != nil {
		return parsniperr.Storage("libsqlstore.delete_entity", err)
	}
	return nil
}

// --- Relations ---

func (s *Store) PutRelation(ctx context.Context, r *graph.Relation) error {
	metadata, err := json.Marshal(r.Metadata)
	if err != nil {
		return parsniperr.Storage("libsqlstore.put_relation", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO relations(id, from_project_id, to_project_id, from_entity_id, from_name, to_entity_id, to_name, relation_type, weight, metadata, created_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.FromProjectID, r.ToProjectID, r.FromEntityID, r.FromName, r.ToEntityID, r.ToName, r.RelationType, r.Weight, string(metadata), r.CreatedAt)
	if isUniqueViolation(err) {
		return parsniperr.AlreadyExists("libsqlstore.put_relation", fmt.Errorf("relation %s->%s[%s] already exists", r.FromName, r.ToName, r.RelationType))
	}
	if err != nil {
		return parsniperr.Storage("libsqlstore.put_relation", err)
	}
	return nil
}

const relationColumns = `id, from_project_id, to_project_id, from_entity_id, from_name, to_entity_id, to_name, relation_type, weight, metadata, created_at`

func scanRelation(row interface{ Scan(...any) error }) (*graph.Relation, error) {
	var r graph.Relation
	var metadata string
	if err := row.Scan(&r.ID, &r.FromProjectID, &r.ToProjectID, &r.FromEntityID, &r.FromName, &r.ToEntityID, &r.ToName, &r.RelationType, &r.Weight, &metadata, &r.CreatedAt); err != nil {
		return nil, err
	}
	if metadata != "" {
		if err := json.Unmarshal([]byte(metadata), &r.Metadata); err != nil {
			return nil, err
		}
	}
	return &r, nil
}

func (s *Store) GetRelation(ctx context.Context, id string) (*graph.Relation, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+relationColumns+` FROM relations WHERE id = ?`, id)
	r, err := scanRelation(row)
	if err == sql.ErrNoRows {
		return nil, parsniperr.NotFound("libsqlstore.get_relation", fmt.Errorf("relation %q not found", id))
	}
	if err != nil {
		return nil, parsniperr.Storage("libsqlstore.get_relation", err)
	}
	return r, nil
}

func (s *Store) FindRelation(ctx context.Context, fromEntityID, toEntityID, relationType string) (*graph.Relation, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+relationColumns+` FROM relations WHERE from_entity_id = ? AND to_entity_id = ? AND relation_type = ?`, fromEntityID, toEntityID, relationType)
	r, err := scanRelation(row)
	if err == sql.ErrNoRows {
		return nil, parsniperr.NotFound("libsqlstore.find_relation", fmt.Errorf("relation not found"))
	}
	if err != nil {
		return nil, parsniperr.Storage("libsqlstore.find_relation", err)
	}
	return r, nil
}

func (s *Store) queryRelations(ctx context.Context, where string, args ...any) ([]*graph.Relation, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+relationColumns+` FROM relations WHERE `+where+` ORDER BY id`, args...)
	if err != nil {
		return nil, parsniperr.Storage("libsqlstore.query_relations", err)
	}
	defer rows.Close()
	var out []*graph.Relation
	for rows.Next() {
		r, err := scanRelation(rows)
		if err != nil {
			return nil, parsniperr.Storage("libsqlstore.query_relations", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) OutgoingRelations(ctx context.Context, projectID, entityID string) ([]*graph.Relation, error) {
	return s.queryRelations(ctx, "from_project_id = ? AND from_entity_id = ?", projectID, entityID)
}

func (s *Store) IncomingRelations(ctx context.Context, projectID, entityID string) ([]*graph.Relation, error) {
	return s.queryRelations(ctx, "to_project_id = ? AND to_entity_id = ?", projectID, entityID)
}

func (s *Store) AllRelationsAllProjects(ctx context.Context) ([]*graph.Relation, error) {
	return s.queryRelations(ctx, "1 = 1")
}

func (s *Store) RelationsForEntityGlobal(ctx context.Context, entityID string) ([]*graph.Relation, error) {
	return s.queryRelations(ctx, "from_entity_id = ? OR to_entity_id = ?", entityID, entityID)
}

func (s *Store) DeleteRelation(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM relations WHERE id = ?`, id)
	if err != nil {
		return parsniperr.Storage("libsqlstore.delete_relation", err)
	}
	return nil
}

// --- Optional capability: native vector search ---

func (s *Store) VectorSearch(ctx context.Context, projectID string, embedding []float32, limit int) ([]*graph.Entity, []float64, error) {
	if len(embedding) == 0 {
		return nil, nil, parsniperr.InvalidInput("libsqlstore.vector_search", fmt.Errorf("query embedding cannot be empty"))
	}
	vec := vectorLiteral(embedding)
	var rows *sql.Rows
	var err error
	if s.hasVectorTopK() {
		q := `WITH vt AS (SELECT id FROM vector_top_k('idx_entities_embedding', vector32(?), ?))
			SELECT e.id, e.project_id, e.name, e.entity_type, e.observations, e.tags, e.metadata, e.embedding, e.created_at, e.updated_at,
			       vector_distance_cos(e.embedding, vector32(?)) AS distance
			FROM vt JOIN entities e ON e.rowid = vt.id
			WHERE e.project_id = ? AND e.embedding IS NOT NULL
			ORDER BY distance ASC LIMIT ?`
		rows, err = s.db.QueryContext(ctx, q, vec, limit, vec, projectID, limit)
		if err != nil && strings.Contains(strings.ToLower(err.Error()), "no such function") {
			s.mu.Lock()
			s.caps.vectorTopK = false
			s.mu.Unlock()
			rows, err = nil, nil
		}
	}
	if rows == nil && err == nil {
		q := `SELECT id, project_id, name, entity_type, observations, tags, metadata, embedding, created_at, updated_at,
		             vector_distance_cos(embedding, vector32(?)) AS distance
			FROM entities WHERE project_id = ? AND embedding IS NOT NULL
			ORDER BY distance ASC LIMIT ?`
		rows, err = s.db.QueryContext(ctx, q, vec, projectID, limit)
	}
	if err != nil {
		return nil, nil, parsniperr.Storage("libsqlstore.vector_search", err)
	}
	defer rows.Close()

	var entities []*graph.Entity
	var distances []float64
	for rows.Next() {
		var e graph.Entity
		var observations, tags, metadata string
		var embeddingBytes []byte
		var distance float64
		if err := rows.Scan(&e.ID, &e.ProjectID, &e.Name, &e.EntityType, &observations, &tags, &metadata, &embeddingBytes, &e.CreatedAt, &e.UpdatedAt, &distance); err != nil {
			return nil, nil, parsniperr.Storage("libsqlstore.vector_search", err)
		}
		_ = json.Unmarshal([]byte(observations), &e.Observations)
		_ = json.Unmarshal([]byte(tags), &e.Tags)
		_ = json.Unmarshal([]byte(metadata), &e.Metadata)
		if len(embeddingBytes) > 0 {
			e.Embedding = decodeVector(embeddingBytes)
		}
		entities = append(entities, &e)
		distances = append(distances, distance)
	}
	return entities, distances, rows.Err()
}

// --- Optional capability: native full-text search ---

func (s *Store) FullTextSearch(ctx context.Context, projectID string, query string, limit int) ([]*graph.Entity, []float64, error) {
	if !s.hasFTS5() {
		return nil, nil, parsniperr.New(parsniperr.KindInvalidInput, "libsqlstore.full_text_search", fmt.Errorf("fts5 unavailable in this libSQL build"))
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT e.id, e.project_id, e.name, e.entity_type, e.observations, e.tags, e.metadata, e.embedding, e.created_at, e.updated_at,
		        bm25(fts_entities) AS rank
		 FROM fts_entities f JOIN entities e ON e.id = f.entity_id
		 WHERE fts_entities MATCH ? AND e.project_id = ?
		 ORDER BY rank LIMIT ?`,
		query, projectID, limit)
	if err != nil {
		return nil, nil, parsniperr.Storage("libsqlstore.full_text_search", err)
	}
	defer rows.Close()
	var entities []*graph.Entity
	var scores []float64
	for rows.Next() {
		var e graph.Entity
		var observations, tags, metadata string
		var embeddingBytes []byte
		var rank float64
		if err := rows.Scan(&e.ID, &e.ProjectID, &e.Name, &e.EntityType, &observations, &tags, &metadata, &embeddingBytes, &e.CreatedAt, &e.UpdatedAt, &rank); err != nil {
			return nil, nil, parsniperr.Storage("libsqlstore.full_text_search", err)
		}
		_ = json.Unmarshal([]byte(observations), &e.Observations)
		_ = json.Unmarshal([]byte(tags), &e.Tags)
		_ = json.Unmarshal([]byte(metadata), &e.Metadata)
		if len(embeddingBytes) > 0 {
			e.Embedding = decodeVector(embeddingBytes)
		}
		entities = append(entities, &e)
		// bm25() returns lower-is-better; invert so higher is more relevant,
		// consistent with the rest of the search engine's score convention.
		scores = append(scores, -rank)
	}
	return entities, scores, rows.Err()
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint")
}

// vectorLiteral renders a float32 vector as the JSON-array text form libSQL's
// vector32() scalar function accepts.
func vectorLiteral(v []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(f), 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}

// decodeVector reads libSQL's little-endian F32_BLOB wire format back into a
// []float32.
func decodeVector(raw []byte) []float32 {
	n := len(raw) / 4
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		bits := uint32(raw[i*4]) | uint32(raw[i*4+1])<<8 | uint32(raw[i*4+2])<<16 | uint32(raw[i*4+3])<<24
		out[i] = math.Float32frombits(bits)
	}
	return out
}
