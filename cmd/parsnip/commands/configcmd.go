package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/parsnip-dev/parsnip/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and edit parsnip's configuration",
}

func init() {
	rootCmd.AddCommand(configCmd)
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print one config value (dotted path, e.g. storage.backend)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		val := v.Get(args[0])
		if val == nil {
			return fmt.Errorf("config get: unknown key %q", args[0])
		}
		fmt.Println(val)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set one config value and persist it to config.toml",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		v.Set(args[0], args[1])
		path := config.FilePath(cfg.DataDir)
		if err := v.WriteConfigAs(path); err != nil {
			return fmt.Errorf("config set: write %s: %w", path, err)
		}
		fmt.Printf("%s = %s\n", args[0], args[1])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print every resolved config value",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return printJSON(v.AllSettings())
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config.toml path this process would use",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println(config.FilePath(cfg.DataDir))
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a fresh config.toml populated with defaults",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dataDir, _ := cmd.Root().PersistentFlags().GetString("data-dir")
		if dataDir == "" {
			dataDir = config.DefaultDataDir()
		}
		path := config.FilePath(dataDir)
		if err := config.WriteDefault(path); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", path)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configGetCmd, configSetCmd, configListCmd, configPathCmd, configInitCmd)
}
