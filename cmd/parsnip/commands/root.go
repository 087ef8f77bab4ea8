// Package commands builds the parsnip CLI's cobra command tree: one file
// per subcommand group, RunE returning a parsniperr so exit-code mapping in
// main() stays mechanical.
package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/parsnip-dev/parsnip/internal/config"
	"github.com/parsnip-dev/parsnip/internal/engine"
	"github.com/parsnip-dev/parsnip/internal/metrics"
	"github.com/parsnip-dev/parsnip/internal/parsniperr"
	"github.com/parsnip-dev/parsnip/internal/parsniplog"
	"github.com/parsnip-dev/parsnip/pkg/parsnip"
)

var log = parsniplog.New("cli")

var (
	cfg     *config.Config
	v       *viper.Viper
	svc     *parsnip.Service
	format  string
	quiet   bool
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:           "parsnip",
	Short:         "A local-first memory graph for AI assistants",
	Long:          "parsnip stores entities, observations, and relations in a local graph, searchable by exact, fuzzy, fulltext, hybrid, or vector match, and walkable by bounded traversal.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		switch cmd.Name() {
		case "init", "completions":
			return nil
		}
		loaded, vv, err := config.Load(cmd.Root().PersistentFlags())
		if err != nil {
			return parsniperr.InvalidInput("load_config", err)
		}
		cfg, v = loaded, vv
		metrics.InitFromEnv()
		if verbose {
			parsniplog.SetLevel(parsniplog.LevelDebug)
		}
		if quiet {
			parsniplog.SetLevel(parsniplog.LevelSilent)
		}
		if requiresEngine(cmd) {
			s, err := parsnip.Open(parsnip.Config{
				Backend:         cfg.Storage.Backend,
				DataDir:         cfg.DataDir,
				LibSQLURL:       cfg.Storage.LibSQLURL,
				LibSQLAuthToken: cfg.Storage.LibSQLAuthToken,
				EmbeddingDims:   cfg.Storage.EmbeddingDims,
			})
			if err != nil {
				return parsniperr.Storage("open_backend", err)
			}
			svc = s
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if svc != nil {
			return svc.Close()
		}
		return nil
	},
}

// requiresEngine reports whether cmd needs an open storage backend. The
// config subcommands operate purely on config.toml/viper and never touch
// storage.
func requiresEngine(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Name() == "config" || c.Name() == "completions" {
			return false
		}
	}
	return true
}

func engineOf() *engine.Engine { return svc.Engine() }

func init() {
	fs := rootCmd.PersistentFlags()
	config.RegisterFlags(fs)
	fs.StringVar(&format, "format", "table", "output format: table, json, csv")
	fs.BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	fs.BoolVarP(&quiet, "quiet", "q", false, "suppress non-error output")
}

// Execute runs the command tree and returns the process exit code mandated
// by the external interface contract: 0 success, 1 usage error, 2
// not-found, 3 already-exists, 4 storage/integrity error, 5 I/O error.
func Execute() int {
	err := rootCmd.Execute()
	if err == nil {
		return 0
	}
	fmt.Fprintln(os.Stderr, "error:", err)
	return exitCodeFor(err)
}

func exitCodeFor(err error) int {
	switch parsniperr.KindOf(err) {
	case parsniperr.KindNotFound:
		return 2
	case parsniperr.KindAlreadyExists:
		return 3
	case parsniperr.KindStorageError, parsniperr.KindIntegrityError,
		parsniperr.KindSchemaTooNew, parsniperr.KindMigrationFailed:
		return 4
	case parsniperr.KindInvalidInput, parsniperr.KindCancelled, parsniperr.KindNoPath:
		return 1
	default:
		if os.IsNotExist(err) || os.IsPermission(err) {
			return 5
		}
		return 1
	}
}
