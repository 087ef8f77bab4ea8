package commands

import (
	"bytes"
	"errors"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parsnip-dev/parsnip/internal/config"
	"github.com/parsnip-dev/parsnip/internal/graph"
	"github.com/parsnip-dev/parsnip/internal/parsniperr"
	"github.com/parsnip-dev/parsnip/internal/query"
	"github.com/parsnip-dev/parsnip/internal/search"
)

func TestExitCodeFor(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"nil-kind not found", parsniperr.NotFound("get_entity", nil), 2},
		{"already exists", parsniperr.AlreadyExists("create_entity", nil), 3},
		{"storage error", parsniperr.Storage("open_backend", nil), 4},
		{"integrity error", parsniperr.Integrity("create_entity", nil), 4},
		{"schema too new", parsniperr.SchemaTooNew("open_backend", nil), 4},
		{"migration failed", parsniperr.MigrationFailed("open_backend", nil), 4},
		{"invalid input", parsniperr.InvalidInput("create_entity", nil), 1},
		{"cancelled", parsniperr.Cancelled("search", nil), 1},
		{"no path", parsniperr.NoPath("find_path", nil), 1},
		{"plain not-exist", os.ErrNotExist, 5},
		{"plain permission", os.ErrPermission, 5},
		{"unknown plain error", errors.New("boom"), 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, exitCodeFor(tc.err))
		})
	}
}

func TestRequiresEngine(t *testing.T) {
	assert.False(t, requiresEngine(configGetCmd))
	assert.False(t, requiresEngine(completionsCmd))
	assert.True(t, requiresEngine(searchCmd))
	assert.True(t, requiresEngine(projectListCmd))
}

func TestParseDirection(t *testing.T) {
	cases := []struct {
		in   string
		want graph.Direction
	}{
		{"", graph.DirectionBoth},
		{"both", graph.DirectionBoth},
		{"outgoing", graph.DirectionOutgoing},
		{"out", graph.DirectionOutgoing},
		{"incoming", graph.DirectionIncoming},
		{"in", graph.DirectionIncoming},
	}
	for _, tc := range cases {
		got, err := parseDirection(tc.in)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
	}

	_, err := parseDirection("sideways")
	assert.Error(t, err)
}

func TestParseSearchMode(t *testing.T) {
	cases := []struct {
		in   string
		want query.SearchMode
	}{
		{"", query.ModeExact},
		{"exact", query.ModeExact},
		{"fuzzy", query.ModeFuzzy},
		{"fulltext", query.ModeFullText},
		{"hybrid", query.ModeHybrid},
		{"vector", query.ModeVector},
	}
	for _, tc := range cases {
		got, err := parseSearchMode(tc.in)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
	}

	_, err := parseSearchMode("telepathic")
	assert.Error(t, err)
}

func TestProjectFallsBackToConfig(t *testing.T) {
	prevCfg := cfg
	defer func() { cfg = prevCfg }()

	require.NoError(t, rootCmd.PersistentFlags().Set("project", ""))
	cfg = &config.Config{Project: "from-config"}
	assert.Equal(t, "from-config", project())

	cfg = nil
	assert.Equal(t, "", project())

	require.NoError(t, rootCmd.PersistentFlags().Set("project", "from-flag"))
	assert.Equal(t, "from-flag", project())
	require.NoError(t, rootCmd.PersistentFlags().Set("project", ""))
}

func TestMaxInt(t *testing.T) {
	assert.Equal(t, 5, maxInt(5, 3))
	assert.Equal(t, 5, maxInt(3, 5))
	assert.Equal(t, 1, maxInt(0, 1))
}

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	fn()

	require.NoError(t, w.Close())
	os.Stdout = old

	var buf bytes.Buffer
	_, err = io.Copy(&buf, r)
	require.NoError(t, err)
	return buf.String()
}

func TestPrintEntitiesTableAndJSON(t *testing.T) {
	prevFormat := format
	defer func() { format = prevFormat }()

	ents := []*graph.Entity{
		{Name: "alice", EntityType: "person", Tags: []string{"friend"}},
	}

	format = "table"
	out := captureStdout(t, func() { require.NoError(t, printEntities(ents)) })
	assert.Contains(t, out, "alice")
	assert.Contains(t, out, "person")

	format = "json"
	out = captureStdout(t, func() { require.NoError(t, printEntities(ents)) })
	assert.Contains(t, out, `"name": "alice"`)

	format = "csv"
	out = captureStdout(t, func() { require.NoError(t, printEntities(ents)) })
	assert.Contains(t, out, "alice,person,friend,0")
}

func TestPrintHitsPaginationLine(t *testing.T) {
	prevFormat := format
	defer func() { format = prevFormat }()
	format = "table"

	hits := []search.Hit{}
	info := query.Info{CurrentPage: 0, TotalPages: 0, TotalCount: 0}
	out := captureStdout(t, func() { require.NoError(t, printHits(hits, info)) })
	assert.Contains(t, out, "page 1/1, 0 total")
}
