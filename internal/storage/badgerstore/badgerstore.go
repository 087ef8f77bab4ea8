// Package badgerstore is the default durable embedded storage backend: a
// single github.com/dgraph-io/badger/v4 instance keyed so that every
// multimap secondary index named in the storage design (outgoing/incoming
// edges, tag index, type index) is a byte-ordered key prefix scan. Every
// mutating method runs in exactly one badger read-write transaction, matching the
// "each mutating operation runs in a single read-write transaction"
// requirement.
package badgerstore

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"strings"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/parsnip-dev/parsnip/internal/graph"
	"github.com/parsnip-dev/parsnip/internal/parsniperr"
	"github.com/parsnip-dev/parsnip/internal/parsniplog"
	"github.com/parsnip-dev/parsnip/internal/storage"
)

const sep = "\x1f" // ASCII unit separator; never appears in ids or names we generate

// Key prefixes. Each is followed by sep-joined components so a prefix scan
// on "prefix + components..." enumerates exactly one index.
const (
	prefixProjectByID   = "p#id" + sep
	prefixProjectByName = "p#name" + sep
	prefixEntityByKey   = "e#key" + sep // project_id + sep + name
	prefixEntityByID    = "e#id" + sep
	prefixRelationByID  = "r#id" + sep
	prefixRelOut        = "r#out" + sep // project_id + sep + from_entity_id + sep + relation_id
	prefixRelIn         = "r#in" + sep  // project_id + sep + to_entity_id + sep + relation_id
	prefixRelFromGlobal = "r#fromg" + sep
	prefixRelToGlobal   = "r#tog" + sep
	prefixTag           = "idx#tag" + sep  // project_id + sep + tag + sep + entity_id
	prefixType          = "idx#type" + sep // project_id + sep + type + sep + entity_id
	keySchemaVersion    = "schema#version"
)

var log = parsniplog.New("storage/badger")

type Store struct {
	db *badger.DB
}

var _ storage.Backend = (*Store)(nil)

// Open opens (or creates) a badger store rooted at dir.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, parsniperr.Storage("badgerstore.open", err)
	}
	s := &Store{db: db}
	if err := s.ensureSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureSchema() error {
	return s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(keySchemaVersion))
		if err == badger.ErrKeyNotFound {
			buf := make([]byte, 8)
			binary.BigEndian.PutUint64(buf, uint64(storage.CurrentSchemaVersion))
			return txn.Set([]byte(keySchemaVersion), buf)
		}
		return err
	})
}

func (s *Store) CurrentVersion(ctx context.Context) (int, error) {
	var v int
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keySchemaVersion))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			v = int(binary.BigEndian.Uint64(val))
			return nil
		})
	})
	if err != nil {
		return 0, parsniperr.Storage("badgerstore.current_version", err)
	}
	return v, nil
}

func (s *Store) Migrate(ctx context.Context, from, to int) error {
	if to > storage.CurrentSchemaVersion {
		return parsniperr.SchemaTooNew("badgerstore.migrate", fmt.Errorf("requested version %d newer than binary version %d", to, storage.CurrentSchemaVersion))
	}
	if from == to {
		return nil
	}
	return s.db.Update(func(txn *badger.Txn) error {
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, uint64(to))
		return txn.Set([]byte(keySchemaVersion), buf)
	})
}

func (s *Store) Close() error { return s.db.Close() }

// Kind identifies this backend for diagnostics.
func (s *Store) Kind() string { return "badger" }

func getJSON(txn *badger.Txn, key string, out any) error {
	item, err := txn.Get([]byte(key))
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, out)
	})
}

func setJSON(txn *badger.Txn, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return txn.Set([]byte(key), b)
}

// --- Projects ---

func (s *Store) CreateProject(ctx context.Context, p *graph.Project) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		nameKey := prefixProjectByName + p.Name
		if _, err := txn.Get([]byte(nameKey)); err == nil {
			return parsniperr.AlreadyExists("badgerstore.create_project", fmt.Errorf("project %q already exists", p.Name))
		} else if err != badger.ErrKeyNotFound {
			return err
		}
		if err := setJSON(txn, prefixProjectByID+p.ID, p); err != nil {
			return err
		}
		return txn.Set([]byte(nameKey), []byte(p.ID))
	})
	return wrapTx("badgerstore.create_project", err)
}

func (s *Store) GetProject(ctx context.Context, id string) (*graph.Project, error) {
	var p graph.Project
	err := s.db.View(func(txn *badger.Txn) error { return getJSON(txn, prefixProjectByID+id, &p) })
	if err == badger.ErrKeyNotFound {
		return nil, parsniperr.NotFound("badgerstore.get_project", fmt.Errorf("project %q not found", id))
	}
	if err != nil {
		return nil, parsniperr.Storage("badgerstore.get_project", err)
	}
	return &p, nil
}

func (s *Store) GetProjectByName(ctx context.Context, name string) (*graph.Project, error) {
	var id string
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(prefixProjectByName + name))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			id = string(val)
			return nil
		})
	})
	if err == badger.ErrKeyNotFound {
		return nil, parsniperr.NotFound("badgerstore.get_project_by_name", fmt.Errorf("project %q not found", name))
	}
	if err != nil {
		return nil, parsniperr.Storage("badgerstore.get_project_by_name", err)
	}
	return s.GetProject(ctx, id)
}

func (s *Store) ListProjects(ctx context.Context) ([]*graph.Project, error) {
	var out []*graph.Project
	err := s.db.View(func(txn *badger.Txn) error {
		return scanPrefix(txn, prefixProjectByID, func(_ string, val []byte) error {
			var p graph.Project
			if err := json.Unmarshal(val, &p); err != nil {
				return err
			}
			out = append(out, &p)
			return nil
		})
	})
	if err != nil {
		return nil, parsniperr.Storage("badgerstore.list_projects", err)
	}
	return out, nil
}

func (s *Store) DeleteProject(ctx context.Context, id string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		var p graph.Project
		if err := getJSON(txn, prefixProjectByID+id, &p); err != nil {
			if err == badger.ErrKeyNotFound {
				return nil // idempotent
			}
			return err
		}
		var entityNames []string
		if err := scanPrefix(txn, prefixEntityByKey+id+sep, func(key string, val []byte) error {
			var e graph.Entity
			if err := json.Unmarshal(val, &e); err != nil {
				return err
			}
			entityNames = append(entityNames, e.Name)
			return nil
		}); err != nil {
			return err
		}
		for _, name := range entityNames {
			if err := deleteEntityTxn(txn, id, name); err != nil {
				return err
			}
		}
		if err := txn.Delete([]byte(prefixProjectByID + id)); err != nil {
			return err
		}
		return txn.Delete([]byte(prefixProjectByName + p.Name))
	})
	return wrapTx("badgerstore.delete_project", err)
}

// --- Entities ---

func (s *Store) PutEntity(ctx context.Context, e *graph.Entity) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		key := prefixEntityByKey + e.ProjectID + sep + e.Name
		var existing graph.Entity
		getErr := getJSON(txn, key, &existing)
		if getErr == nil && existing.ID != e.ID {
			return parsniperr.AlreadyExists("badgerstore.put_entity", fmt.Errorf("entity %q already exists in project %q", e.Name, e.ProjectID))
		}
		if getErr == nil {
			// replacing: drop old tag/type index entries first
			for _, t := range existing.Tags {
				_ = txn.Delete([]byte(prefixTag + existing.ProjectID + sep + t + sep + existing.ID))
			}
			_ = txn.Delete([]byte(prefixType + existing.ProjectID + sep + existing.EntityType + sep + existing.ID))
		} else if getErr != badger.ErrKeyNotFound {
			return getErr
		}
		if err := setJSON(txn, key, e); err != nil {
			return err
		}
		if err := txn.Set([]byte(prefixEntityByID+e.ID), []byte(key)); err != nil {
			return err
		}
		for _, t := range e.Tags {
			if err := txn.Set([]byte(prefixTag+e.ProjectID+sep+t+sep+e.ID), nil); err != nil {
				return err
			}
		}
		return txn.Set([]byte(prefixType+e.ProjectID+sep+e.EntityType+sep+e.ID), nil)
	})
	return wrapTx("badgerstore.put_entity", err)
}

func (s *Store) GetEntity(ctx context.Context, projectID, name string) (*graph.Entity, error) {
	var e graph.Entity
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, prefixEntityByKey+projectID+sep+name, &e)
	})
	if err == badger.ErrKeyNotFound {
		return nil, parsniperr.NotFound("badgerstore.get_entity", fmt.Errorf("entity %q not found in project %q", name, projectID))
	}
	if err != nil {
		return nil, parsniperr.Storage("badgerstore.get_entity", err)
	}
	return &e, nil
}

func (s *Store) GetEntityByID(ctx context.Context, entityID string) (*graph.Entity, error) {
	var e graph.Entity
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(prefixEntityByID + entityID))
		if err != nil {
			return err
		}
		var key string
		if err := item.Value(func(val []byte) error { key = string(val); return nil }); err != nil {
			return err
		}
		return getJSON(txn, key, &e)
	})
	if err == badger.ErrKeyNotFound {
		return nil, parsniperr.NotFound("badgerstore.get_entity_by_id", fmt.Errorf("entity id %q not found", entityID))
	}
	if err != nil {
		return nil, parsniperr.Storage("badgerstore.get_entity_by_id", err)
	}
	return &e, nil
}

func (s *Store) ListEntities(ctx context.Context, projectID string) ([]*graph.Entity, error) {
	var out []*graph.Entity
	err := s.db.View(func(txn *badger.Txn) error {
		return scanPrefix(txn, prefixEntityByKey+projectID+sep, func(_ string, val []byte) error {
			var e graph.Entity
			if err := json.Unmarshal(val, &e); err != nil {
				return err
			}
			out = append(out, &e)
			return nil
		})
	})
	if err != nil {
		return nil, parsniperr.Storage("badgerstore.list_entities", err)
	}
	return out, nil
}

func (s *Store) ListEntitiesAllProjects(ctx context.Context) ([]*graph.Entity, error) {
	var out []*graph.Entity
	err := s.db.View(func(txn *badger.Txn) error {
		return scanPrefix(txn, prefixEntityByKey, func(_ string, val []byte) error {
			var e graph.Entity
			if err := json.Unmarshal(val, &e); err != nil {
				return err
			}
			out = append(out, &e)
			return nil
		})
	})
	if err != nil {
		return nil, parsniperr.Storage("badgerstore.list_entities_all_projects", err)
	}
	return out, nil
}

func (s *Store) EntitiesByTag(ctx context.Context, projectID, tag string) ([]*graph.Entity, error) {
	return s.entitiesByIndex(ctx, prefixTag+projectID+sep+tag+sep)
}

func (s *Store) EntitiesByType(ctx context.Context, projectID, entityType string) ([]*graph.Entity, error) {
	return s.entitiesByIndex(ctx, prefixType+projectID+sep+entityType+sep)
}

func (s *Store) entitiesByIndex(ctx context.Context, prefix string) ([]*graph.Entity, error) {
	var out []*graph.Entity
	err := s.db.View(func(txn *badger.Txn) error {
		return scanPrefix(txn, prefix, func(key string, _ []byte) error {
			entityID := key[strings.LastIndex(key, sep)+1:]
			item, err := txn.Get([]byte(prefixEntityByID + entityID))
			if err != nil {
				return err
			}
			var ekey string
			if err := item.Value(func(val []byte) error { ekey = string(val); return nil }); err != nil {
				return err
			}
			var e graph.Entity
			if err := getJSON(txn, ekey, &e); err != nil {
				return err
			}
			out = append(out, &e)
			return nil
		})
	})
	if err != nil {
		return nil, parsniperr.Storage("badgerstore.entities_by_index", err)
	}
	return out, nil
}

func (s *Store) DeleteEntity(ctx context.Context, projectID, name string) error {
	err := s.db.Update(func(txn *badger.Txn) error { return deleteEntityTxn(txn, projectID, name) })
	return wrapTx("badgerstore.delete_entity", err)
}

func deleteEntityTxn(txn *badger.Txn, projectID, name string) error {
	key := prefixEntityByKey + projectID + sep + name
	var e graph.Entity
	if err := getJSON(txn, key, &e); err != nil {
		if err == badger.ErrKeyNotFound {
			return nil // idempotent
		}
		return err
	}
	for _, t := range e.Tags {
		if err := txn.Delete([]byte(prefixTag + projectID + sep + t + sep + e.ID)); err != nil {
			return err
		}
	}
	if err := txn.Delete([]byte(prefixType + projectID + sep + e.EntityType + sep + e.ID)); err != nil {
		return err
	}
	if err := txn.Delete([]byte(prefixEntityByID + e.ID)); err != nil {
		return err
	}
	if err := txn.Delete([]byte(key)); err != nil {
		return err
	}

	// Cascade: delete every relation touching this entity, in any project.
	var relIDs []string
	if err := scanPrefix(txn, prefixRelFromGlobal+e.ID+sep, func(k string, _ []byte) error {
		relIDs = append(relIDs, k[strings.LastIndex(k, sep)+1:])
		return nil
	}); err != nil {
		return err
	}
	if err := scanPrefix(txn, prefixRelToGlobal+e.ID+sep, func(k string, _ []byte) error {
		relIDs = append(relIDs, k[strings.LastIndex(k, sep)+1:])
		return nil
	}); err != nil {
		return err
	}
	for _, id := range relIDs {
		if err := deleteRelationTxn(txn, id); err != nil {
			return err
		}
	}
	return nil
}

// --- Relations ---

func (s *Store) PutRelation(ctx context.Context, r *graph.Relation) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		existing, err := findRelationTxn(txn, r.FromEntityID, r.ToEntityID, r.RelationType)
		if err != nil && parsniperr.KindOf(err) != parsniperr.KindNotFound {
			return err
		}
		if existing != nil {
			return parsniperr.AlreadyExists("badgerstore.put_relation", fmt.Errorf("relation %s->%s[%s] already exists", r.FromName, r.ToName, r.RelationType))
		}
		if err := setJSON(txn, prefixRelationByID+r.ID, r); err != nil {
			return err
		}
		if err := txn.Set([]byte(prefixRelOut+r.FromProjectID+sep+r.FromEntityID+sep+r.ID), nil); err != nil {
			return err
		}
		if err := txn.Set([]byte(prefixRelIn+r.ToProjectID+sep+r.ToEntityID+sep+r.ID), nil); err != nil {
			return err
		}
		if err := txn.Set([]byte(prefixRelFromGlobal+r.FromEntityID+sep+r.ID), nil); err != nil {
			return err
		}
		return txn.Set([]byte(prefixRelToGlobal+r.ToEntityID+sep+r.ID), nil)
	})
	return wrapTx("badgerstore.put_relation", err)
}

func (s *Store) GetRelation(ctx context.Context, id string) (*graph.Relation, error) {
	var r graph.Relation
	err := s.db.View(func(txn *badger.Txn) error { return getJSON(txn, prefixRelationByID+id, &r) })
	if err == badger.ErrKeyNotFound {
		return nil, parsniperr.NotFound("badgerstore.get_relation", fmt.Errorf("relation %q not found", id))
	}
	if err != nil {
		return nil, parsniperr.Storage("badgerstore.get_relation", err)
	}
	return &r, nil
}

func findRelationTxn(txn *badger.Txn, fromEntityID, toEntityID, relationType string) (*graph.Relation, error) {
	var found *graph.Relation
	err := scanPrefix(txn, prefixRelFromGlobal+fromEntityID+sep, func(k string, _ []byte) error {
		if found != nil {
			return nil
		}
		relID := k[strings.LastIndex(k, sep)+1:]
		var r graph.Relation
		if err := getJSON(txn, prefixRelationByID+relID, &r); err != nil {
			return err
		}
		if r.ToEntityID == toEntityID && r.RelationType == relationType {
			found = &r
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, parsniperr.NotFound("badgerstore.find_relation", fmt.Errorf("relation not found"))
	}
	return found, nil
}

func (s *Store) FindRelation(ctx context.Context, fromEntityID, toEntityID, relationType string) (*graph.Relation, error) {
	var r *graph.Relation
	err := s.db.View(func(txn *badger.Txn) error {
		found, ferr := findRelationTxn(txn, fromEntityID, toEntityID, relationType)
		if ferr != nil {
			return ferr
		}
		r = found
		return nil
	})
	if err != nil {
		if parsniperr.KindOf(err) == parsniperr.KindNotFound {
			return nil, err
		}
		return nil, parsniperr.Storage("badgerstore.find_relation", err)
	}
	return r, nil
}

func (s *Store) OutgoingRelations(ctx context.Context, projectID, entityID string) ([]*graph.Relation, error) {
	return s.relationsByIndex(ctx, prefixRelOut+projectID+sep+entityID+sep)
}

func (s *Store) IncomingRelations(ctx context.Context, projectID, entityID string) ([]*graph.Relation, error) {
	return s.relationsByIndex(ctx, prefixRelIn+projectID+sep+entityID+sep)
}

func (s *Store) AllRelationsAllProjects(ctx context.Context) ([]*graph.Relation, error) {
	var out []*graph.Relation
	err := s.db.View(func(txn *badger.Txn) error {
		return scanPrefix(txn, prefixRelationByID, func(_ string, val []byte) error {
			var r graph.Relation
			if err := json.Unmarshal(val, &r); err != nil {
				return err
			}
			out = append(out, &r)
			return nil
		})
	})
	if err != nil {
		return nil, parsniperr.Storage("badgerstore.all_relations_all_projects", err)
	}
	sortByID(out)
	return out, nil
}

func (s *Store) RelationsForEntityGlobal(ctx context.Context, entityID string) ([]*graph.Relation, error) {
	seen := map[string]*graph.Relation{}
	err := s.db.View(func(txn *badger.Txn) error {
		collect := func(prefix string) error {
			return scanPrefix(txn, prefix, func(k string, _ []byte) error {
				relID := k[strings.LastIndex(k, sep)+1:]
				if _, ok := seen[relID]; ok {
					return nil
				}
				var r graph.Relation
				if err := getJSON(txn, prefixRelationByID+relID, &r); err != nil {
					return err
				}
				seen[relID] = &r
				return nil
			})
		}
		if err := collect(prefixRelFromGlobal + entityID + sep); err != nil {
			return err
		}
		return collect(prefixRelToGlobal + entityID + sep)
	})
	if err != nil {
		return nil, parsniperr.Storage("badgerstore.relations_for_entity_global", err)
	}
	out := make([]*graph.Relation, 0, len(seen))
	for _, r := range seen {
		out = append(out, r)
	}
	sortByID(out)
	return out, nil
}

func (s *Store) relationsByIndex(ctx context.Context, prefix string) ([]*graph.Relation, error) {
	var out []*graph.Relation
	err := s.db.View(func(txn *badger.Txn) error {
		return scanPrefix(txn, prefix, func(k string, _ []byte) error {
			relID := k[strings.LastIndex(k, sep)+1:]
			var r graph.Relation
			if err := getJSON(txn, prefixRelationByID+relID, &r); err != nil {
				return err
			}
			out = append(out, &r)
			return nil
		})
	})
	if err != nil {
		return nil, parsniperr.Storage("badgerstore.relations_by_index", err)
	}
	sortByID(out)
	return out, nil
}

func (s *Store) DeleteRelation(ctx context.Context, id string) error {
	err := s.db.Update(func(txn *badger.Txn) error { return deleteRelationTxn(txn, id) })
	return wrapTx("badgerstore.delete_relation", err)
}

func deleteRelationTxn(txn *badger.Txn, id string) error {
	var r graph.Relation
	if err := getJSON(txn, prefixRelationByID+id, &r); err != nil {
		if err == badger.ErrKeyNotFound {
			return nil
		}
		return err
	}
	_ = txn.Delete([]byte(prefixRelOut + r.FromProjectID + sep + r.FromEntityID + sep + r.ID))
	_ = txn.Delete([]byte(prefixRelIn + r.ToProjectID + sep + r.ToEntityID + sep + r.ID))
	_ = txn.Delete([]byte(prefixRelFromGlobal + r.FromEntityID + sep + r.ID))
	_ = txn.Delete([]byte(prefixRelToGlobal + r.ToEntityID + sep + r.ID))
	return txn.Delete([]byte(prefixRelationByID + id))
}

// scanPrefix iterates every key/value with the given prefix, in byte order.
func scanPrefix(txn *badger.Txn, prefix string, fn func(key string, val []byte) error) error {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = true
	opts.Prefix = []byte(prefix)
	it := txn.NewIterator(opts)
	defer it.Close()
	for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
		item := it.Item()
		key := string(item.KeyCopy(nil))
		var val []byte
		if err := item.Value(func(v []byte) error {
			val = append([]byte(nil), v...)
			return nil
		}); err != nil {
			return err
		}
		if err := fn(key, val); err != nil {
			return err
		}
	}
	return nil
}

func sortByID(rs []*graph.Relation) {
	for i := 1; i < len(rs); i++ {
		for j := i; j > 0 && rs[j-1].ID > rs[j].ID; j-- {
			rs[j-1], rs[j] = rs[j], rs[j-1]
		}
	}
}

// wrapTx passes through already-kinded errors (AlreadyExists, SchemaTooNew,
// ...) and wraps anything else as StorageError.
func wrapTx(op string, err error) error {
	if err == nil {
		return nil
	}
	if parsniperr.KindOf(err) != parsniperr.KindUnknown {
		return err
	}
	return parsniperr.Storage(op, err)
}
