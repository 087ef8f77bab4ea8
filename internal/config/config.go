// Package config assembles the process-wide Config from defaults,
// config.toml, environment variables, and command-line flags, in that
// increasing order of precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the fully resolved configuration for a parsnip process. Every
// field also has an environment-variable binding (see bindEnv) and a
// mapstructure tag so it can be loaded from config.toml.
type Config struct {
	DataDir string `mapstructure:"data_dir"`
	Project string `mapstructure:"project"`

	Log     LogConfig     `mapstructure:"log"`
	Storage StorageConfig `mapstructure:"storage"`
	Search  SearchConfig  `mapstructure:"search"`
	Server  ServerConfig  `mapstructure:"server"`
}

// LogConfig controls internal/parsniplog's verbosity.
type LogConfig struct {
	Level string `mapstructure:"level"` // debug, info, warn, error, silent
}

// StorageConfig selects and configures the storage.Backend implementation.
type StorageConfig struct {
	Backend         string `mapstructure:"backend"` // badger (default) or libsql
	LibSQLURL       string `mapstructure:"libsql_url"`
	LibSQLAuthToken string `mapstructure:"libsql_auth_token"`
	EmbeddingDims   int    `mapstructure:"embedding_dims"`
}

// SearchConfig controls search-mode defaults and the embeddings provider
// consulted for vector/hybrid search.
type SearchConfig struct {
	HybridSearch       bool   `mapstructure:"hybrid_search"`
	EmbeddingsProvider string `mapstructure:"embeddings_provider"` // openai, ollama, gemini, vertexai, localai, voyageai, or empty to disable
}

// ServerConfig configures the MCP HTTP+SSE transport (stdio needs none of this).
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// RegisterFlags declares the global flags that bind into Load's highest
// precedence layer. Callers (cmd/parsnip's root command) own the FlagSet
// and parse it before calling Load.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("data-dir", "", "override the parsnip data directory")
	fs.String("project", "", "default project name for this invocation")
	fs.String("log-level", "", "log verbosity: debug, info, warn, error, silent")
}

// Load builds a Config by layering, from lowest to highest precedence:
// built-in defaults, config.toml (found in --data-dir or the working
// directory), environment variables, and fs's flags. viper resolves the
// precedence natively; callers needing `config get/set/list` access the
// returned *viper.Viper directly rather than re-implementing it.
func Load(fs *pflag.FlagSet) (*Config, *viper.Viper, error) {
	v := viper.New()
	setDefaults(v)
	bindEnv(v)

	if fs != nil {
		if err := v.BindPFlags(fs); err != nil {
			return nil, nil, fmt.Errorf("bind flags: %w", err)
		}
		for key, name := range map[string]string{"data_dir": "data-dir", "log.level": "log-level"} {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, nil, fmt.Errorf("bind flags: %w", err)
				}
			}
		}
	}

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(DefaultDataDir())
	if dataDir := v.GetString("data_dir"); dataDir != "" {
		v.AddConfigPath(dataDir)
	}
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return nil, nil, fmt.Errorf("read config.toml: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if cfg.DataDir == "" {
		cfg.DataDir = DefaultDataDir()
	}
	return cfg, v, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", "")
	v.SetDefault("project", "")

	v.SetDefault("log.level", "info")

	v.SetDefault("storage.backend", "badger")
	v.SetDefault("storage.libsql_url", "file:./libsql.db")
	v.SetDefault("storage.libsql_auth_token", "")
	v.SetDefault("storage.embedding_dims", 0)

	v.SetDefault("search.hybrid_search", false)
	v.SetDefault("search.embeddings_provider", "")

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
}

// bindEnv wires each key to its environment variable. The LIBSQL_*,
// EMBEDDINGS_PROVIDER, EMBEDDING_DIMS, and HYBRID_SEARCH names are kept
// stable for existing deployments alongside the PARSNIP_* set.
func bindEnv(v *viper.Viper) {
	must := func(key, env string) {
		if err := v.BindEnv(key, env); err != nil {
			panic(fmt.Sprintf("config: bad BindEnv(%q, %q): %v", key, env, err))
		}
	}

	must("data_dir", "PARSNIP_DATA_DIR")
	must("project", "PARSNIP_PROJECT")
	must("log.level", "PARSNIP_LOG")

	must("storage.backend", "PARSNIP_STORAGE_BACKEND")
	must("storage.libsql_url", "LIBSQL_URL")
	must("storage.libsql_auth_token", "LIBSQL_AUTH_TOKEN")
	must("storage.embedding_dims", "EMBEDDING_DIMS")

	must("search.hybrid_search", "HYBRID_SEARCH")
	must("search.embeddings_provider", "EMBEDDINGS_PROVIDER")

	must("server.host", "PARSNIP_SERVER_HOST")
	must("server.port", "PARSNIP_SERVER_PORT")
}

// DefaultDataDir returns the platform-conventional parsnip data directory,
// used when PARSNIP_DATA_DIR/--data-dir/data_dir are all unset.
func DefaultDataDir() string {
	switch runtime.GOOS {
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "parsnip")
		}
	case "darwin":
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, "Library", "Application Support", "parsnip")
		}
	default:
		if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
			return filepath.Join(xdg, "parsnip")
		}
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, ".local", "share", "parsnip")
		}
	}
	return "./.parsnip"
}

// FilePath returns the config.toml path under dataDir.
func FilePath(dataDir string) string {
	return filepath.Join(dataDir, "config.toml")
}

// WriteDefault writes a fresh config.toml populated with defaults to path,
// for the CLI's `config init` subcommand. It fails if path already exists.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config init: %s already exists", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config init: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigType("toml")
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("config init: %w", err)
	}
	return nil
}
