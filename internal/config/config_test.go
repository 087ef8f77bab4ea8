package config

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, _, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, "badger", cfg.Storage.Backend)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.Search.HybridSearch)
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.NotEmpty(t, cfg.DataDir)
}

func TestLoadEnvOverridesDefault(t *testing.T) {
	t.Setenv("LIBSQL_URL", "file:env-test.db")
	t.Setenv("HYBRID_SEARCH", "1")
	t.Setenv("EMBEDDINGS_PROVIDER", "openai")

	cfg, _, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, "file:env-test.db", cfg.Storage.LibSQLURL)
	assert.True(t, cfg.Search.HybridSearch, "HYBRID_SEARCH=1 should parse truthy")
	assert.Equal(t, "openai", cfg.Search.EmbeddingsProvider)
}

func TestLoadFlagOverridesEnv(t *testing.T) {
	t.Setenv("PARSNIP_PROJECT", "from-env")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"--project", "from-flag"}))

	cfg, _, err := Load(fs)
	require.NoError(t, err)
	assert.Equal(t, "from-flag", cfg.Project)
}

func TestLoadEnvOverridesFileWhenNoFlag(t *testing.T) {
	t.Setenv("PARSNIP_STORAGE_BACKEND", "libsql")

	cfg, _, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, "libsql", cfg.Storage.Backend)
}

func TestWriteDefaultThenLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := FilePath(dir)
	require.NoError(t, WriteDefault(path))

	// Writing again must fail rather than silently clobber an existing file.
	err := WriteDefault(path)
	require.Error(t, err)

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"--data-dir", dir}))

	cfg, _, err := Load(fs)
	require.NoError(t, err)
	assert.Equal(t, "badger", cfg.Storage.Backend)
}

func TestDefaultDataDirNonEmpty(t *testing.T) {
	assert.NotEmpty(t, DefaultDataDir())
}

func TestFilePath(t *testing.T) {
	assert.Equal(t, "/tmp/parsnip/config.toml", FilePath("/tmp/parsnip"))
}
