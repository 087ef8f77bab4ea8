package badgerstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parsnip-dev/parsnip/internal/graph"
	"github.com/parsnip-dev/parsnip/internal/parsniperr"
	"github.com/parsnip-dev/parsnip/internal/storage"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpenInitializesSchemaVersion(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	v, err := s.CurrentVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, storage.CurrentSchemaVersion, v)
}

func TestReopenPreservesData(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := Open(dir)
	require.NoError(t, err)
	e := graph.NewEntity("p1", "alice", "person")
	e.AddObservation("likes tea")
	require.NoError(t, s.PutEntity(ctx, e))
	require.NoError(t, s.Close())

	s2, err := Open(dir)
	require.NoError(t, err)
	defer s2.Close()

	got, err := s2.GetEntity(ctx, "p1", "alice")
	require.NoError(t, err)
	assert.Equal(t, e.ID, got.ID)
	require.Len(t, got.Observations, 1)
	assert.Equal(t, "likes tea", got.Observations[0].Content)
}

func TestProjectNameUniqueness(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	require.NoError(t, s.CreateProject(ctx, graph.NewProject("work", "")))
	err := s.CreateProject(ctx, graph.NewProject("work", ""))
	assert.True(t, parsniperr.Is(err, parsniperr.KindAlreadyExists))

	p, err := s.GetProjectByName(ctx, "work")
	require.NoError(t, err)
	assert.Equal(t, "work", p.Name)

	_, err = s.GetProjectByName(ctx, "ghost")
	assert.True(t, parsniperr.Is(err, parsniperr.KindNotFound))
}

func TestPutEntityRejectsDuplicateNameInProject(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	first := graph.NewEntity("p1", "alice", "person")
	require.NoError(t, s.PutEntity(ctx, first))

	err := s.PutEntity(ctx, graph.NewEntity("p1", "alice", "person"))
	assert.True(t, parsniperr.Is(err, parsniperr.KindAlreadyExists))

	// Same name, different project: legal.
	require.NoError(t, s.PutEntity(ctx, graph.NewEntity("p2", "alice", "person")))
}

func TestPutEntityUpdateReindexesTagsAndType(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	e := graph.NewEntity("p1", "alice", "person")
	e.AddTag("old")
	require.NoError(t, s.PutEntity(ctx, e))

	// Replace tags and type; the old index entries must disappear.
	updated := e.Clone()
	updated.Tags = []string{"new"}
	updated.EntityType = "human"
	require.NoError(t, s.PutEntity(ctx, updated))

	byOldTag, err := s.EntitiesByTag(ctx, "p1", "old")
	require.NoError(t, err)
	assert.Empty(t, byOldTag)

	byNewTag, err := s.EntitiesByTag(ctx, "p1", "new")
	require.NoError(t, err)
	require.Len(t, byNewTag, 1)
	assert.Equal(t, "alice", byNewTag[0].Name)

	byOldType, err := s.EntitiesByType(ctx, "p1", "person")
	require.NoError(t, err)
	assert.Empty(t, byOldType)

	byNewType, err := s.EntitiesByType(ctx, "p1", "human")
	require.NoError(t, err)
	assert.Len(t, byNewType, 1)
}

func TestDeleteEntityCascadesRelationsAcrossProjects(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	alice := graph.NewEntity("pa", "alice", "person")
	bob := graph.NewEntity("pb", "bob", "person")
	require.NoError(t, s.PutEntity(ctx, alice))
	require.NoError(t, s.PutEntity(ctx, bob))
	require.NoError(t, s.PutRelation(ctx, graph.NewRelation("pa", "pb", alice.ID, "alice", bob.ID, "bob", "knows")))

	// Deleting bob (the target, in another project) must remove the edge.
	require.NoError(t, s.DeleteEntity(ctx, "pb", "bob"))

	rels, err := s.AllRelationsAllProjects(ctx)
	require.NoError(t, err)
	assert.Empty(t, rels)

	out, err := s.OutgoingRelations(ctx, "pa", alice.ID)
	require.NoError(t, err)
	assert.Empty(t, out)

	// idempotent
	assert.NoError(t, s.DeleteEntity(ctx, "pb", "bob"))
}

func TestDuplicateRelationTripleRejected(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	a := graph.NewEntity("p1", "a", "t")
	b := graph.NewEntity("p1", "b", "t")
	require.NoError(t, s.PutEntity(ctx, a))
	require.NoError(t, s.PutEntity(ctx, b))

	require.NoError(t, s.PutRelation(ctx, graph.NewRelation("p1", "p1", a.ID, "a", b.ID, "b", "knows")))

	dup := graph.NewRelation("p1", "p1", a.ID, "a", b.ID, "b", "knows")
	w := 3.0
	dup.Weight = &w
	err := s.PutRelation(ctx, dup)
	assert.True(t, parsniperr.Is(err, parsniperr.KindAlreadyExists))

	// Distinct type between the same endpoints is a separate edge.
	require.NoError(t, s.PutRelation(ctx, graph.NewRelation("p1", "p1", a.ID, "a", b.ID, "b", "likes")))
}

func TestRelationsForEntityGlobal(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	hub := graph.NewEntity("pa", "hub", "t")
	spoke1 := graph.NewEntity("pb", "spoke1", "t")
	spoke2 := graph.NewEntity("pc", "spoke2", "t")
	for _, e := range []*graph.Entity{hub, spoke1, spoke2} {
		require.NoError(t, s.PutEntity(ctx, e))
	}
	require.NoError(t, s.PutRelation(ctx, graph.NewRelation("pa", "pb", hub.ID, "hub", spoke1.ID, "spoke1", "r")))
	require.NoError(t, s.PutRelation(ctx, graph.NewRelation("pc", "pa", spoke2.ID, "spoke2", hub.ID, "hub", "r")))

	rels, err := s.RelationsForEntityGlobal(ctx, hub.ID)
	require.NoError(t, err)
	require.Len(t, rels, 2)
	for i := 1; i < len(rels); i++ {
		assert.Less(t, rels[i-1].ID, rels[i].ID, "global relation scan sorts by id")
	}
}

func TestFindRelation(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	a := graph.NewEntity("p1", "a", "t")
	b := graph.NewEntity("p1", "b", "t")
	require.NoError(t, s.PutEntity(ctx, a))
	require.NoError(t, s.PutEntity(ctx, b))
	r := graph.NewRelation("p1", "p1", a.ID, "a", b.ID, "b", "knows")
	require.NoError(t, s.PutRelation(ctx, r))

	found, err := s.FindRelation(ctx, a.ID, b.ID, "knows")
	require.NoError(t, err)
	assert.Equal(t, r.ID, found.ID)

	_, err = s.FindRelation(ctx, a.ID, b.ID, "hates")
	assert.True(t, parsniperr.Is(err, parsniperr.KindNotFound))
}

func TestDeleteProjectCascades(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	p := graph.NewProject("doomed", "")
	require.NoError(t, s.CreateProject(ctx, p))
	a := graph.NewEntity(p.ID, "a", "t")
	b := graph.NewEntity(p.ID, "b", "t")
	require.NoError(t, s.PutEntity(ctx, a))
	require.NoError(t, s.PutEntity(ctx, b))
	require.NoError(t, s.PutRelation(ctx, graph.NewRelation(p.ID, p.ID, a.ID, "a", b.ID, "b", "r")))

	require.NoError(t, s.DeleteProject(ctx, p.ID))

	ents, err := s.ListEntities(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, ents)

	rels, err := s.AllRelationsAllProjects(ctx)
	require.NoError(t, err)
	assert.Empty(t, rels)

	_, err = s.GetProjectByName(ctx, "doomed")
	assert.True(t, parsniperr.Is(err, parsniperr.KindNotFound))

	// idempotent
	assert.NoError(t, s.DeleteProject(ctx, p.ID))
}

func TestMigrateRejectsNewerSchema(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	assert.NoError(t, s.Migrate(ctx, storage.CurrentSchemaVersion, storage.CurrentSchemaVersion))

	err := s.Migrate(ctx, storage.CurrentSchemaVersion, storage.CurrentSchemaVersion+1)
	assert.True(t, parsniperr.Is(err, parsniperr.KindSchemaTooNew))
}

func TestKind(t *testing.T) {
	s := openStore(t)
	assert.Equal(t, "badger", s.Kind())
}
