package memstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parsnip-dev/parsnip/internal/graph"
	"github.com/parsnip-dev/parsnip/internal/parsniperr"
	"github.com/parsnip-dev/parsnip/internal/storage"
)

func TestProjectCRUD(t *testing.T) {
	ctx := context.Background()
	s := New()

	p := graph.NewProject("work", "day job")
	require.NoError(t, s.CreateProject(ctx, p))

	got, err := s.GetProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "work", got.Name)

	byName, err := s.GetProjectByName(ctx, "work")
	require.NoError(t, err)
	assert.Equal(t, p.ID, byName.ID)

	err = s.CreateProject(ctx, graph.NewProject("work", ""))
	assert.True(t, parsniperr.Is(err, parsniperr.KindAlreadyExists))

	_, err = s.GetProjectByName(ctx, "ghost")
	assert.True(t, parsniperr.Is(err, parsniperr.KindNotFound))

	all, err := s.ListProjects(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestEntityUniquePerProjectNotAcross(t *testing.T) {
	ctx := context.Background()
	s := New()

	e1 := graph.NewEntity("p1", "alice", "person")
	require.NoError(t, s.PutEntity(ctx, e1))

	// Same name in a different project is fine.
	require.NoError(t, s.PutEntity(ctx, graph.NewEntity("p2", "alice", "person")))

	// Same (project, name) under a different id is a uniqueness violation.
	err := s.PutEntity(ctx, graph.NewEntity("p1", "alice", "person"))
	assert.True(t, parsniperr.Is(err, parsniperr.KindAlreadyExists))

	// Re-putting the same entity (same id) is an update, not a violation.
	e1.EntityType = "human"
	require.NoError(t, s.PutEntity(ctx, e1))
}

func TestGetEntityByID(t *testing.T) {
	ctx := context.Background()
	s := New()
	e := graph.NewEntity("p1", "alice", "person")
	require.NoError(t, s.PutEntity(ctx, e))

	got, err := s.GetEntityByID(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Name)

	_, err = s.GetEntityByID(ctx, "ghost")
	assert.True(t, parsniperr.Is(err, parsniperr.KindNotFound))
}

func TestDeleteEntityCascadesRelationsBothSides(t *testing.T) {
	ctx := context.Background()
	s := New()
	a := graph.NewEntity("p1", "a", "t")
	b := graph.NewEntity("p1", "b", "t")
	c := graph.NewEntity("p1", "c", "t")
	for _, e := range []*graph.Entity{a, b, c} {
		require.NoError(t, s.PutEntity(ctx, e))
	}
	require.NoError(t, s.PutRelation(ctx, graph.NewRelation("p1", "p1", a.ID, "a", b.ID, "b", "r")))
	require.NoError(t, s.PutRelation(ctx, graph.NewRelation("p1", "p1", c.ID, "c", a.ID, "a", "r")))

	require.NoError(t, s.DeleteEntity(ctx, "p1", "a"))

	rels, err := s.AllRelationsAllProjects(ctx)
	require.NoError(t, err)
	assert.Empty(t, rels, "no surviving relation may reference a deleted entity on either side")

	// idempotent
	assert.NoError(t, s.DeleteEntity(ctx, "p1", "a"))
}

func TestDuplicateRelationTripleRejected(t *testing.T) {
	ctx := context.Background()
	s := New()
	a := graph.NewEntity("p1", "a", "t")
	b := graph.NewEntity("p1", "b", "t")
	require.NoError(t, s.PutEntity(ctx, a))
	require.NoError(t, s.PutEntity(ctx, b))

	require.NoError(t, s.PutRelation(ctx, graph.NewRelation("p1", "p1", a.ID, "a", b.ID, "b", "knows")))

	// Same triple, different weight: weight is not part of identity.
	dup := graph.NewRelation("p1", "p1", a.ID, "a", b.ID, "b", "knows")
	w := 5.0
	dup.Weight = &w
	err := s.PutRelation(ctx, dup)
	assert.True(t, parsniperr.Is(err, parsniperr.KindAlreadyExists))

	// A distinct type between the same pair is a separate edge.
	require.NoError(t, s.PutRelation(ctx, graph.NewRelation("p1", "p1", a.ID, "a", b.ID, "b", "likes")))
}

func TestCrossProjectRelationGlobalQueries(t *testing.T) {
	ctx := context.Background()
	s := New()
	alice := graph.NewEntity("pa", "alice", "person")
	bob := graph.NewEntity("pb", "bob", "person")
	require.NoError(t, s.PutEntity(ctx, alice))
	require.NoError(t, s.PutEntity(ctx, bob))

	r := graph.NewRelation("pa", "pb", alice.ID, "alice", bob.ID, "bob", "knows")
	require.NoError(t, s.PutRelation(ctx, r))

	all, err := s.AllRelationsAllProjects(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)

	// The caller only knows one endpoint; the edge spans projects.
	forBob, err := s.RelationsForEntityGlobal(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, forBob, 1)
	assert.Equal(t, r.ID, forBob[0].ID)

	out, err := s.OutgoingRelations(ctx, "pa", alice.ID)
	require.NoError(t, err)
	assert.Len(t, out, 1)

	in, err := s.IncomingRelations(ctx, "pb", bob.ID)
	require.NoError(t, err)
	assert.Len(t, in, 1)
}

func TestDeleteProjectCascadesEntitiesAndRelations(t *testing.T) {
	ctx := context.Background()
	s := New()
	p := graph.NewProject("doomed", "")
	require.NoError(t, s.CreateProject(ctx, p))

	a := graph.NewEntity(p.ID, "a", "t")
	b := graph.NewEntity(p.ID, "b", "t")
	outside := graph.NewEntity("other", "c", "t")
	for _, e := range []*graph.Entity{a, b, outside} {
		require.NoError(t, s.PutEntity(ctx, e))
	}
	require.NoError(t, s.PutRelation(ctx, graph.NewRelation(p.ID, p.ID, a.ID, "a", b.ID, "b", "r")))
	require.NoError(t, s.PutRelation(ctx, graph.NewRelation(p.ID, "other", b.ID, "b", outside.ID, "c", "r")))

	require.NoError(t, s.DeleteProject(ctx, p.ID))

	ents, err := s.ListEntities(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, ents)

	// The cross-project edge dies with its endpoint.
	rels, err := s.AllRelationsAllProjects(ctx)
	require.NoError(t, err)
	assert.Empty(t, rels)

	// The outside entity survives.
	_, err = s.GetEntity(ctx, "other", "c")
	assert.NoError(t, err)
}

func TestTagAndTypeIndexes(t *testing.T) {
	ctx := context.Background()
	s := New()
	a := graph.NewEntity("p1", "a", "person")
	a.AddTag("engineer")
	b := graph.NewEntity("p1", "b", "company")
	require.NoError(t, s.PutEntity(ctx, a))
	require.NoError(t, s.PutEntity(ctx, b))

	tagged, err := s.EntitiesByTag(ctx, "p1", "engineer")
	require.NoError(t, err)
	require.Len(t, tagged, 1)
	assert.Equal(t, "a", tagged[0].Name)

	typed, err := s.EntitiesByType(ctx, "p1", "company")
	require.NoError(t, err)
	require.Len(t, typed, 1)
	assert.Equal(t, "b", typed[0].Name)
}

func TestRelationOrderingIsDeterministic(t *testing.T) {
	ctx := context.Background()
	s := New()
	a := graph.NewEntity("p1", "a", "t")
	require.NoError(t, s.PutEntity(ctx, a))
	for _, name := range []string{"b", "c", "d"} {
		e := graph.NewEntity("p1", name, "t")
		require.NoError(t, s.PutEntity(ctx, e))
		require.NoError(t, s.PutRelation(ctx, graph.NewRelation("p1", "p1", a.ID, "a", e.ID, name, "r")))
	}

	out, err := s.OutgoingRelations(ctx, "p1", a.ID)
	require.NoError(t, err)
	require.Len(t, out, 3)
	for i := 1; i < len(out); i++ {
		assert.Less(t, out[i-1].ID, out[i].ID, "relations sort by id ascending")
	}
}

func TestMigrate(t *testing.T) {
	ctx := context.Background()
	s := New()

	v, err := s.CurrentVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, storage.CurrentSchemaVersion, v)

	// N -> N is a no-op.
	assert.NoError(t, s.Migrate(ctx, v, v))

	err = s.Migrate(ctx, v, storage.CurrentSchemaVersion+1)
	assert.True(t, parsniperr.Is(err, parsniperr.KindSchemaTooNew))
}

func TestDeleteRelationIdempotent(t *testing.T) {
	ctx := context.Background()
	s := New()
	assert.NoError(t, s.DeleteRelation(ctx, "never-existed"))
}

func TestKind(t *testing.T) {
	assert.Equal(t, "memory", New().Kind())
}
