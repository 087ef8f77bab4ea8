package parsnip

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parsnip-dev/parsnip/internal/config"
	"github.com/parsnip-dev/parsnip/internal/engine"
	"github.com/parsnip-dev/parsnip/internal/graph"
	"github.com/parsnip-dev/parsnip/internal/storage/memstore"
)

func TestWithAuthToken(t *testing.T) {
	assert.Equal(t, "libsql://host", withAuthToken("libsql://host", ""))
	assert.Equal(t, "libsql://host?authToken=tok", withAuthToken("libsql://host", "tok"))
	assert.Equal(t, "libsql://host?x=1&authToken=tok", withAuthToken("libsql://host?x=1", "tok"))
	assert.Equal(t, "libsql://host?authToken=already", withAuthToken("libsql://host?authToken=already", "tok"))
}

func TestServiceDelegatesToEngine(t *testing.T) {
	ctx := context.Background()
	eng := engine.New(memstore.New())
	_, err := eng.CreateProject(ctx, "proj", "")
	require.NoError(t, err)
	svc := OpenEngine(eng)

	ent, err := svc.CreateEntity(ctx, "proj", graph.NewEntitySpec{Name: "alice", EntityType: "person"})
	require.NoError(t, err)
	assert.Equal(t, "alice", ent.Name)

	got, err := svc.GetEntity(ctx, "proj", "alice")
	require.NoError(t, err)
	assert.Equal(t, ent.ID, got.ID)

	require.NoError(t, svc.Close())
}

func TestOpenBadgerBackend(t *testing.T) {
	svc, err := Open(Config{Backend: "badger", DataDir: t.TempDir()})
	require.NoError(t, err)
	defer svc.Close()

	ctx := context.Background()
	_, err = svc.CreateProject(ctx, "proj", "")
	require.NoError(t, err)

	ent, err := svc.CreateEntity(ctx, "proj", graph.NewEntitySpec{Name: "bob", EntityType: "person"})
	require.NoError(t, err)
	assert.Equal(t, "bob", ent.Name)
}

func TestOpenUnknownBackend(t *testing.T) {
	_, err := Open(Config{Backend: "dynamodb"})
	assert.Error(t, err)
}

func TestWithAuthTokenRoundTripsThroughOpenBackend(t *testing.T) {
	// libsql is exercised indirectly here: withAuthToken is the only piece
	// of openBackend's libsql branch that doesn't require a live connection.
	assert.Equal(t, "file:local.db?authToken=secret", withAuthToken("file:local.db", "secret"))
}

func TestFromInternal(t *testing.T) {
	c := &config.Config{DataDir: "/data"}
	c.Storage.Backend = "libsql"
	c.Storage.LibSQLURL = "libsql://host"
	c.Storage.LibSQLAuthToken = "tok"
	c.Storage.EmbeddingDims = 768

	got := FromInternal(c)
	assert.Equal(t, Config{
		Backend:         "libsql",
		DataDir:         "/data",
		LibSQLURL:       "libsql://host",
		LibSQLAuthToken: "tok",
		EmbeddingDims:   768,
	}, got)
}

func TestDeleteProjectForceGate(t *testing.T) {
	ctx := context.Background()
	eng := engine.New(memstore.New())
	svc := OpenEngine(eng)

	p, err := svc.CreateProject(ctx, "proj", "")
	require.NoError(t, err)
	_, err = svc.CreateEntity(ctx, "proj", graph.NewEntitySpec{Name: "alice", EntityType: "person"})
	require.NoError(t, err)

	err = svc.DeleteProject(ctx, p.ID, false)
	require.Error(t, err, "non-empty project must be refused without force")

	// The refusal changed nothing.
	_, err = svc.GetEntity(ctx, "proj", "alice")
	require.NoError(t, err)

	require.NoError(t, svc.DeleteProject(ctx, p.ID, true))
	_, err = svc.GetProjectByName(ctx, "proj")
	assert.Error(t, err)
}
