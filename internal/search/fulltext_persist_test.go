package search

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parsnip-dev/parsnip/internal/graph"
	"github.com/parsnip-dev/parsnip/internal/query"
)

func TestPersistedIndexSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	ft, err := OpenFullTextEngine(dir)
	require.NoError(t, err)
	assert.True(t, ft.NeedsRebuild(), "fresh directory has no snapshot to trust")
	ft.Rebuild([]*graph.Entity{entity("p1", "alice", "person", "rust programmer")})
	assert.False(t, ft.NeedsRebuild())
	require.NoError(t, ft.Close())

	// Reopen: the snapshot alone must answer queries, no reindexing input.
	ft2, err := OpenFullTextEngine(dir)
	require.NoError(t, err)
	assert.False(t, ft2.NeedsRebuild())

	q := mustBuild(t, query.NewBuilder().Text("rust").Mode(query.ModeFullText))
	hits, err := ft2.Search(ctx, q, nil)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "alice", hits[0].Entity.Name)
}

func TestWriteHooksPersistImmediately(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	ft, err := OpenFullTextEngine(dir)
	require.NoError(t, err)
	ft.Rebuild(nil)
	ft.IndexEntity(entity("p1", "bob", "person", "plays chess"))
	// No Close: the write hook alone must have landed the snapshot.

	ft2, err := OpenFullTextEngine(dir)
	require.NoError(t, err)
	assert.False(t, ft2.NeedsRebuild())
	q := mustBuild(t, query.NewBuilder().Text("chess").Mode(query.ModeFullText))
	hits, err := ft2.Search(ctx, q, nil)
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func TestDirtyMarkerForcesRebuildOnOpen(t *testing.T) {
	dir := t.TempDir()

	ft, err := OpenFullTextEngine(dir)
	require.NoError(t, err)
	ft.Rebuild([]*graph.Entity{entity("p1", "alice", "person", "a fact")})
	require.NoError(t, ft.Close())

	// Simulate a crash between primary commit and snapshot write.
	require.NoError(t, os.WriteFile(filepath.Join(dir, dirtyFile), nil, 0o600))

	ft2, err := OpenFullTextEngine(dir)
	require.NoError(t, err)
	assert.True(t, ft2.NeedsRebuild(), "a dirty-marked snapshot must not be trusted")
}

func TestCorruptSnapshotForcesRebuildOnOpen(t *testing.T) {
	dir := t.TempDir()

	ft, err := OpenFullTextEngine(dir)
	require.NoError(t, err)
	ft.Rebuild([]*graph.Entity{entity("p1", "alice", "person", "a fact")})
	require.NoError(t, ft.Close())

	require.NoError(t, os.WriteFile(filepath.Join(dir, snapshotFile), []byte("{not json"), 0o600))

	ft2, err := OpenFullTextEngine(dir)
	require.NoError(t, err)
	assert.True(t, ft2.NeedsRebuild())
}

func TestRebuildClearsDirtyState(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, dirtyFile), nil, 0o600))

	ft, err := OpenFullTextEngine(dir)
	require.NoError(t, err)
	require.True(t, ft.NeedsRebuild())

	ft.Rebuild([]*graph.Entity{entity("p1", "carol", "person", "likes math")})
	assert.False(t, ft.NeedsRebuild())
	_, err = os.Stat(filepath.Join(dir, dirtyFile))
	assert.True(t, os.IsNotExist(err), "a successful rebuild clears the marker")

	q := mustBuild(t, query.NewBuilder().Text("math").Mode(query.ModeFullText))
	hits, err := ft.Search(ctx, q, nil)
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func TestSnapshotFilePermissions(t *testing.T) {
	dir := t.TempDir()
	ft, err := OpenFullTextEngine(dir)
	require.NoError(t, err)
	ft.Rebuild([]*graph.Entity{entity("p1", "alice", "person", "a fact")})

	info, err := os.Stat(filepath.Join(dir, snapshotFile))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestMemoryOnlyEngineHasNoDiskFootprint(t *testing.T) {
	ft := NewFullTextEngine()
	ft.IndexEntity(entity("p1", "alice", "person", "a fact"))
	assert.False(t, ft.NeedsRebuild())
	assert.NoError(t, ft.Close())
}
