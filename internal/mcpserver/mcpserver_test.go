package mcpserver

import (
	"context"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parsnip-dev/parsnip/internal/engine"
	"github.com/parsnip-dev/parsnip/internal/parsniperr"
	"github.com/parsnip-dev/parsnip/internal/storage/memstore"
)

// newTestServer returns a Server wired over a fresh memstore-backed Engine
// with a "proj" project already created, the same fixture engine_test.go
// uses for the layer below.
func newTestServer(t *testing.T) (*Server, *engine.Engine) {
	t.Helper()
	eng := engine.New(memstore.New())
	_, err := eng.CreateProject(context.Background(), "proj", "")
	require.NoError(t, err)
	return New(eng), eng
}

func call[A, R any](ctx context.Context, fn func(context.Context, *mcp.ServerSession, *mcp.CallToolParamsFor[A]) (*mcp.CallToolResultFor[R], error), args A) (*mcp.CallToolResultFor[R], error) {
	return fn(ctx, nil, &mcp.CallToolParamsFor[A]{Arguments: args})
}

func TestHandleCreateAndSearchKnowledge(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestServer(t)

	_, err := call(ctx, s.handleCreateEntities, CreateEntitiesArgs{
		ProjectArgs: ProjectArgs{ProjectName: "proj"},
		Entities: []Entity{
			{Name: "alice", EntityType: "person", Observations: []string{"likes tea"}, Tags: []string{"friend"}},
		},
	})
	require.NoError(t, err)

	res, err := call(ctx, s.handleSearchKnowledge, SearchKnowledgeArgs{
		ProjectArgs: ProjectArgs{ProjectName: "proj"},
		Query:       "alice",
		Mode:        "exact",
	})
	require.NoError(t, err)
	require.Len(t, res.StructuredContent.Entities, 1)
	assert.Equal(t, "alice", res.StructuredContent.Entities[0].Name)
}

func TestHandleCreateEntitiesRejectsDuplicateName(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestServer(t)

	args := CreateEntitiesArgs{
		ProjectArgs: ProjectArgs{ProjectName: "proj"},
		Entities:    []Entity{{Name: "alice", EntityType: "person"}},
	}
	_, err := call(ctx, s.handleCreateEntities, args)
	require.NoError(t, err)

	_, err = call(ctx, s.handleCreateEntities, args)
	require.Error(t, err)
	assert.True(t, parsniperr.Is(err, parsniperr.KindAlreadyExists))
}

func TestHandleAddAndDeleteObservations(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestServer(t)
	_, err := call(ctx, s.handleCreateEntities, CreateEntitiesArgs{
		ProjectArgs: ProjectArgs{ProjectName: "proj"},
		Entities:    []Entity{{Name: "alice", EntityType: "person"}},
	})
	require.NoError(t, err)

	_, err = call(ctx, s.handleAddObservations, AddObservationsArgs{
		ProjectArgs:  ProjectArgs{ProjectName: "proj"},
		EntityName:   "alice",
		Observations: []string{"likes tea", "works at acme"},
	})
	require.NoError(t, err)

	graphRes, err := call(ctx, s.handleReadGraph, ReadGraphArgs{ProjectArgs: ProjectArgs{ProjectName: "proj"}})
	require.NoError(t, err)
	require.Len(t, graphRes.StructuredContent.Entities, 1)
	require.Len(t, graphRes.StructuredContent.Entities[0].Observations, 2)

	// Fetch real observation ids through the engine directly, since the
	// wire Entity type doesn't carry them.
	ent, err := s.engine.GetEntity(ctx, "proj", "alice")
	require.NoError(t, err)
	require.Len(t, ent.Observations, 2)

	_, err = call(ctx, s.handleDeleteObservations, DeleteObservationsArgs{
		ProjectArgs: ProjectArgs{ProjectName: "proj"},
		EntityName:  "alice",
		IDs:         []string{ent.Observations[0].ID},
	})
	require.NoError(t, err)

	ent, err = s.engine.GetEntity(ctx, "proj", "alice")
	require.NoError(t, err)
	assert.Len(t, ent.Observations, 1)
}

func TestHandleCreateRelationsAndNeighbors(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestServer(t)
	_, err := call(ctx, s.handleCreateEntities, CreateEntitiesArgs{
		ProjectArgs: ProjectArgs{ProjectName: "proj"},
		Entities: []Entity{
			{Name: "alice", EntityType: "person"},
			{Name: "bob", EntityType: "person"},
		},
	})
	require.NoError(t, err)

	_, err = call(ctx, s.handleCreateRelations, CreateRelationsArgs{
		ProjectArgs: ProjectArgs{ProjectName: "proj"},
		Relations:   []Relation{{From: "alice", To: "bob", RelationType: "knows"}},
	})
	require.NoError(t, err)

	res, err := call(ctx, s.handleNeighbors, NeighborsArgs{
		ProjectArgs: ProjectArgs{ProjectName: "proj"},
		Name:        "alice",
	})
	require.NoError(t, err)
	require.Len(t, res.StructuredContent.Relations, 1)
	assert.Equal(t, "bob", res.StructuredContent.Relations[0].To)
}

func TestHandleDeleteEntitiesCascadesRelations(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestServer(t)
	_, err := call(ctx, s.handleCreateEntities, CreateEntitiesArgs{
		ProjectArgs: ProjectArgs{ProjectName: "proj"},
		Entities: []Entity{
			{Name: "alice", EntityType: "person"},
			{Name: "bob", EntityType: "person"},
		},
	})
	require.NoError(t, err)
	_, err = call(ctx, s.handleCreateRelations, CreateRelationsArgs{
		ProjectArgs: ProjectArgs{ProjectName: "proj"},
		Relations:   []Relation{{From: "alice", To: "bob", RelationType: "knows"}},
	})
	require.NoError(t, err)

	_, err = call(ctx, s.handleDeleteEntities, DeleteEntitiesArgs{
		ProjectArgs: ProjectArgs{ProjectName: "proj"},
		Names:       []string{"alice"},
	})
	require.NoError(t, err)

	graphRes, err := call(ctx, s.handleReadGraph, ReadGraphArgs{ProjectArgs: ProjectArgs{ProjectName: "proj"}})
	require.NoError(t, err)
	assert.Len(t, graphRes.StructuredContent.Entities, 1)
	assert.Empty(t, graphRes.StructuredContent.Relations)
}

func TestHandleAddAndRemoveTags(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestServer(t)
	_, err := call(ctx, s.handleCreateEntities, CreateEntitiesArgs{
		ProjectArgs: ProjectArgs{ProjectName: "proj"},
		Entities:    []Entity{{Name: "alice", EntityType: "person"}},
	})
	require.NoError(t, err)

	_, err = call(ctx, s.handleAddTags, TagsArgs{
		ProjectArgs: ProjectArgs{ProjectName: "proj"}, EntityName: "alice", Tags: []string{"vip", "friend"},
	})
	require.NoError(t, err)

	ent, err := s.engine.GetEntity(ctx, "proj", "alice")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"vip", "friend"}, ent.Tags)

	_, err = call(ctx, s.handleRemoveTags, TagsArgs{
		ProjectArgs: ProjectArgs{ProjectName: "proj"}, EntityName: "alice", Tags: []string{"vip"},
	})
	require.NoError(t, err)

	ent, err = s.engine.GetEntity(ctx, "proj", "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"friend"}, ent.Tags)
}

func TestHandleListProjects(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestServer(t)
	_, err := call(ctx, s.handleCreateEntities, CreateEntitiesArgs{
		ProjectArgs: ProjectArgs{ProjectName: "proj"},
		Entities:    []Entity{{Name: "alice", EntityType: "person"}},
	})
	require.NoError(t, err)

	res, err := call(ctx, s.handleListProjects, ListProjectsArgs{})
	require.NoError(t, err)
	require.Len(t, res.StructuredContent.Projects, 1)
	assert.Equal(t, "proj", res.StructuredContent.Projects[0].Name)
	assert.Equal(t, 1, res.StructuredContent.Projects[0].EntityCount)
}

func TestHandleTraverseGraphAndWalk(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestServer(t)
	_, err := call(ctx, s.handleCreateEntities, CreateEntitiesArgs{
		ProjectArgs: ProjectArgs{ProjectName: "proj"},
		Entities: []Entity{
			{Name: "a", EntityType: "x"}, {Name: "b", EntityType: "x"}, {Name: "c", EntityType: "x"},
		},
	})
	require.NoError(t, err)
	_, err = call(ctx, s.handleCreateRelations, CreateRelationsArgs{
		ProjectArgs: ProjectArgs{ProjectName: "proj"},
		Relations: []Relation{
			{From: "a", To: "b", RelationType: "next"},
			{From: "b", To: "c", RelationType: "next"},
		},
	})
	require.NoError(t, err)

	walkRes, err := call(ctx, s.handleWalk, WalkArgs{ProjectArgs: ProjectArgs{ProjectName: "proj"}, Start: "a", MaxDepth: 2})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(walkRes.StructuredContent.Entities), 2)

	travRes, err := call(ctx, s.handleTraverseGraph, TraverseGraphArgs{
		ProjectArgs: ProjectArgs{ProjectName: "proj"}, Start: "a", Target: "c", MaxDepth: 5,
	})
	require.NoError(t, err)
	names := make([]string, len(travRes.StructuredContent.Entities))
	for i, e := range travRes.StructuredContent.Entities {
		names[i] = e.Name
	}
	assert.Contains(t, names, "c")
}

func TestHandleShortestPath(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestServer(t)
	_, err := call(ctx, s.handleCreateEntities, CreateEntitiesArgs{
		ProjectArgs: ProjectArgs{ProjectName: "proj"},
		Entities: []Entity{
			{Name: "a", EntityType: "x"}, {Name: "b", EntityType: "x"}, {Name: "c", EntityType: "x"},
		},
	})
	require.NoError(t, err)
	_, err = call(ctx, s.handleCreateRelations, CreateRelationsArgs{
		ProjectArgs: ProjectArgs{ProjectName: "proj"},
		Relations: []Relation{
			{From: "a", To: "b", RelationType: "next"},
			{From: "b", To: "c", RelationType: "next"},
		},
	})
	require.NoError(t, err)

	res, err := call(ctx, s.handleShortestPath, ShortestPathArgs{
		ProjectArgs: ProjectArgs{ProjectName: "proj"}, From: "a", To: "c",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, res.StructuredContent.Nodes)
	assert.Equal(t, 2, res.StructuredContent.Length)
}

func TestHandleShortestPathNoPathIsNotAnError(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestServer(t)
	_, err := call(ctx, s.handleCreateEntities, CreateEntitiesArgs{
		ProjectArgs: ProjectArgs{ProjectName: "proj"},
		Entities:    []Entity{{Name: "a", EntityType: "x"}, {Name: "b", EntityType: "x"}},
	})
	require.NoError(t, err)

	res, err := call(ctx, s.handleShortestPath, ShortestPathArgs{
		ProjectArgs: ProjectArgs{ProjectName: "proj"}, From: "a", To: "b",
	})
	require.NoError(t, err)
	assert.Empty(t, res.StructuredContent.Nodes)
}

func TestHandleHealth(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestServer(t)

	res, err := call(ctx, s.handleHealth, HealthArgs{})
	require.NoError(t, err)
	assert.Equal(t, "parsnip", res.StructuredContent.Name)
	assert.Equal(t, "memory", res.StructuredContent.StorageKind)
	assert.Equal(t, 1, res.StructuredContent.ProjectCount)
}
