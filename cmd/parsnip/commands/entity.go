package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/parsnip-dev/parsnip/internal/embeddings"
	"github.com/parsnip-dev/parsnip/internal/graph"
)

// embedProvider is built lazily from EMBEDDINGS_PROVIDER on first use of
// --auto-embed, not at process startup, since most invocations never touch
// it and provider construction dials out to read env-configured credentials.
var embedProvider embeddings.Provider
var embedProviderLoaded bool

// autoEmbed computes a single embedding vector from parts by joining them
// into one string and calling the configured provider, the same searchable
// text shape internal/search builds for fuzzy/fulltext scoring.
func autoEmbed(ctx context.Context, parts ...string) ([]float32, error) {
	if !embedProviderLoaded {
		embedProvider = embeddings.NewFromEnv()
		embedProviderLoaded = true
	}
	if embedProvider == nil {
		return nil, fmt.Errorf("--auto-embed requires EMBEDDINGS_PROVIDER to be set")
	}
	vecs, err := embedProvider.Embed(ctx, []string{strings.Join(parts, " ")})
	if err != nil {
		return nil, fmt.Errorf("auto-embed: %w", err)
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("auto-embed: provider %q returned no vectors", embedProvider.Name())
	}
	return vecs[0], nil
}

var entityCmd = &cobra.Command{
	Use:   "entity",
	Short: "Manage entities",
}

func init() {
	rootCmd.AddCommand(entityCmd)
}

var (
	entityType         string
	entityObservations []string
	entityTags         []string
	entityAutoEmbed    bool
)

var entityAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Create an entity",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		spec := graph.NewEntitySpec{
			Name: args[0], EntityType: entityType, Observations: entityObservations, Tags: entityTags,
		}
		if entityAutoEmbed {
			vec, err := autoEmbed(cmd.Context(), append([]string{spec.Name, spec.EntityType}, append(spec.Observations, spec.Tags...)...)...)
			if err != nil {
				return err
			}
			spec.Embedding = vec
		}
		ent, err := engineOf().CreateEntity(cmd.Context(), project(), spec)
		if err != nil {
			return err
		}
		return printEntity(ent)
	},
}

var entityListCmd = &cobra.Command{
	Use:   "list",
	Short: "List entities in a project",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ents, _, err := engineOf().ReadGraph(cmd.Context(), project())
		if err != nil {
			return err
		}
		return printEntities(ents)
	},
}

var entityGetCmd = &cobra.Command{
	Use:   "get <name>",
	Short: "Get an entity by name",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ent, err := engineOf().GetEntity(cmd.Context(), project(), args[0])
		if err != nil {
			return err
		}
		return printEntity(ent)
	},
}

var (
	updateType  string
	updateName  string
	replaceTags bool
	replaceObs  bool
)

var entityUpdateCmd = &cobra.Command{
	Use:   "update <name>",
	Short: "Update an entity's type, name, or tags",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		spec := graph.UpdateEntitySpec{Name: updateName}
		if updateType != "" {
			spec.EntityType = &updateType
		}
		if len(entityTags) > 0 {
			if replaceTags {
				spec.ReplaceTags = entityTags
			} else {
				spec.MergeTags = entityTags
			}
		}
		if len(entityObservations) > 0 {
			if replaceObs {
				spec.ReplaceObservations = entityObservations
			} else {
				spec.MergeObservations = entityObservations
			}
		}
		if entityAutoEmbed {
			name := args[0]
			if updateName != "" {
				name = updateName
			}
			vec, err := autoEmbed(cmd.Context(), append([]string{name, updateType}, append(entityObservations, entityTags...)...)...)
			if err != nil {
				return err
			}
			spec.Embedding = vec
		}
		ent, err := engineOf().UpdateEntity(cmd.Context(), project(), args[0], spec)
		if err != nil {
			return err
		}
		return printEntity(ent)
	},
}

var entityObserveCmd = &cobra.Command{
	Use:   "observe <name> <observation>...",
	Short: "Append observations to an entity",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		added, err := engineOf().AddObservations(cmd.Context(), project(), args[0], args[1:])
		if err != nil {
			return err
		}
		fmt.Printf("added %d observations to %q\n", len(added), args[0])
		return nil
	},
}

var entityDeleteCmd = &cobra.Command{
	Use:   "delete <name>...",
	Short: "Delete entities (cascades relations)",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, name := range args {
			if err := engineOf().DeleteEntity(cmd.Context(), project(), name); err != nil {
				return err
			}
		}
		fmt.Printf("deleted %s\n", strings.Join(args, ", "))
		return nil
	},
}

func init() {
	entityAddCmd.Flags().StringVar(&entityType, "type", "", "entity type")
	entityAddCmd.Flags().StringSliceVar(&entityObservations, "observation", nil, "observation text (repeatable)")
	entityAddCmd.Flags().StringSliceVar(&entityTags, "tag", nil, "tag (repeatable)")
	entityAddCmd.Flags().BoolVar(&entityAutoEmbed, "auto-embed", false, "compute a vector embedding from the entity's text via EMBEDDINGS_PROVIDER")

	entityUpdateCmd.Flags().StringVar(&updateType, "type", "", "new entity type")
	entityUpdateCmd.Flags().StringVar(&updateName, "rename", "", "rename the entity")
	entityUpdateCmd.Flags().StringSliceVar(&entityTags, "tag", nil, "tag to merge or replace (repeatable)")
	entityUpdateCmd.Flags().StringSliceVar(&entityObservations, "observation", nil, "observation to merge or replace (repeatable)")
	entityUpdateCmd.Flags().BoolVar(&replaceTags, "replace-tags", false, "replace the tag set instead of merging")
	entityUpdateCmd.Flags().BoolVar(&replaceObs, "replace-observations", false, "replace observations instead of merging")
	entityUpdateCmd.Flags().BoolVar(&entityAutoEmbed, "auto-embed", false, "recompute the entity's embedding via EMBEDDINGS_PROVIDER")

	entityCmd.AddCommand(entityAddCmd, entityListCmd, entityGetCmd, entityUpdateCmd, entityObserveCmd, entityDeleteCmd)
}

// project returns the --project flag value, or PARSNIP_PROJECT/config's
// default when empty; the engine itself resolves "" to the default project,
// so this just threads cfg.Project through when the flag wasn't set.
func project() string {
	p, _ := rootCmd.PersistentFlags().GetString("project")
	if p != "" {
		return p
	}
	if cfg != nil {
		return cfg.Project
	}
	return ""
}
