package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/parsnip-dev/parsnip/internal/config"
	"github.com/parsnip-dev/parsnip/internal/graph"
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage projects",
}

func init() {
	rootCmd.AddCommand(projectCmd)
}

var projectDescription string

var projectCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := engineOf().CreateProject(cmd.Context(), args[0], projectDescription)
		if err != nil {
			return err
		}
		return printProjects([]*graph.Project{p})
	},
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every project",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		projects, err := engineOf().ListProjects(cmd.Context())
		if err != nil {
			return err
		}
		return printProjects(projects)
	},
}

// projectUseCmd persists name as the default project into config.toml, so
// subsequent invocations don't need --project repeated.
var projectUseCmd = &cobra.Command{
	Use:   "use <name>",
	Short: "Set the default project for future invocations",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := engineOf().GetProjectByName(cmd.Context(), args[0]); err != nil {
			return err
		}
		v.Set("project", args[0])
		path := config.FilePath(cfg.DataDir)
		if err := v.WriteConfigAs(path); err != nil {
			return fmt.Errorf("project use: write %s: %w", path, err)
		}
		fmt.Printf("default project set to %q\n", args[0])
		return nil
	},
}

var projectStatsCmd = &cobra.Command{
	Use:   "stats [name]",
	Short: "Show entity/relation counts for a project",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := project()
		if len(args) == 1 {
			name = args[0]
		}
		ents, rels, err := engineOf().ReadGraph(cmd.Context(), name)
		if err != nil {
			return err
		}
		if format == "json" {
			return printJSON(struct {
				Project   string `json:"project"`
				Entities  int    `json:"entities"`
				Relations int    `json:"relations"`
			}{name, len(ents), len(rels)})
		}
		fmt.Printf("project:   %s\n", name)
		fmt.Printf("entities:  %d\n", len(ents))
		fmt.Printf("relations: %d\n", len(rels))
		return nil
	},
}

var projectForce bool

var projectDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a project (must be empty unless --force)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := engineOf().GetProjectByName(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if err := engineOf().DeleteProject(cmd.Context(), p.ID, projectForce); err != nil {
			return err
		}
		fmt.Printf("deleted project %q\n", args[0])
		return nil
	},
}

func init() {
	projectCreateCmd.Flags().StringVar(&projectDescription, "description", "", "project description")
	projectDeleteCmd.Flags().BoolVar(&projectForce, "force", false, "delete all owned entities and relations too")

	projectCmd.AddCommand(projectCreateCmd, projectListCmd, projectUseCmd, projectStatsCmd, projectDeleteCmd)
}
