package parsnip

import "github.com/parsnip-dev/parsnip/internal/config"

// Config exposes a stable wrapper for storage configuration in package
// mode, decoupled from the internal config loader.
type Config struct {
	// Backend selects the storage engine: "badger" (default, durable
	// embedded KV) or "libsql" (embedded/remote SQL, compat mode).
	Backend string

	// DataDir is where badger stores its files; defaults to
	// internal/config.DefaultDataDir() when empty.
	DataDir string

	// LibSQLURL/LibSQLAuthToken/EmbeddingDims only apply when Backend is
	// "libsql".
	LibSQLURL       string
	LibSQLAuthToken string
	EmbeddingDims   int
}

// FromInternal adapts a fully-loaded internal/config.Config (as built by the
// CLI and MCP entrypoints) to the public Config shape.
func FromInternal(c *config.Config) Config {
	return Config{
		Backend:         c.Storage.Backend,
		DataDir:         c.DataDir,
		LibSQLURL:       c.Storage.LibSQLURL,
		LibSQLAuthToken: c.Storage.LibSQLAuthToken,
		EmbeddingDims:   c.Storage.EmbeddingDims,
	}
}
