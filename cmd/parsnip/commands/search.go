package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/parsnip-dev/parsnip/internal/query"
)

var (
	searchMode           string
	searchEntityTypes    []string
	searchTags           []string
	searchTagMatchAll    bool
	searchFuzzyThreshold float32
	searchPage           int
	searchPageSize       int
	searchAllProjects    bool
)

var searchCmd = &cobra.Command{
	Use:   "search <text>",
	Short: "Search entities by exact, fuzzy, fulltext, or hybrid match",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, err := parseSearchMode(searchMode)
		if err != nil {
			return err
		}
		b := query.NewBuilder().Text(args[0]).Mode(mode).FuzzyThreshold(searchFuzzyThreshold)
		for _, t := range searchEntityTypes {
			b = b.EntityType(t)
		}
		for _, t := range searchTags {
			b = b.Tag(t)
		}
		if searchTagMatchAll {
			b = b.TagMatchMode(query.TagMatchAll)
		}
		b = b.Page(searchPage, searchPageSize)

		if !searchAllProjects {
			proj, err := engineOf().GetProjectByName(cmd.Context(), project())
			if err != nil {
				return err
			}
			b = b.InProject(proj.ID)
		}

		q, err := b.Build()
		if err != nil {
			return err
		}
		hits, info, err := engineOf().Search(cmd.Context(), q)
		if err != nil {
			return err
		}
		return printHits(hits, info)
	},
}

func parseSearchMode(s string) (query.SearchMode, error) {
	switch query.SearchMode(s) {
	case "", query.ModeExact:
		return query.ModeExact, nil
	case query.ModeFuzzy, query.ModeFullText, query.ModeHybrid, query.ModeVector:
		return query.SearchMode(s), nil
	default:
		return "", fmt.Errorf("unknown search mode %q (expected exact, fuzzy, fulltext, hybrid, or vector)", s)
	}
}

func init() {
	searchCmd.Flags().StringVar(&searchMode, "mode", "exact", "exact, fuzzy, fulltext, hybrid, or vector")
	searchCmd.Flags().StringSliceVar(&searchEntityTypes, "entity-type", nil, "restrict to these entity types (repeatable)")
	searchCmd.Flags().StringSliceVar(&searchTags, "tag", nil, "restrict to entities with this tag (repeatable)")
	searchCmd.Flags().BoolVar(&searchTagMatchAll, "match-all-tags", false, "require every --tag instead of any")
	searchCmd.Flags().Float32Var(&searchFuzzyThreshold, "fuzzy-threshold", query.DefaultFuzzyThresh, "minimum fuzzy similarity in [0,1]")
	searchCmd.Flags().IntVar(&searchPage, "page", 0, "zero-indexed page number")
	searchCmd.Flags().IntVar(&searchPageSize, "page-size", query.DefaultPageSize, "results per page")
	searchCmd.Flags().BoolVar(&searchAllProjects, "all-projects", false, "search across every project instead of just the current one")

	rootCmd.AddCommand(searchCmd)
}
