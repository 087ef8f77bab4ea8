package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/parsnip-dev/parsnip/internal/graph"
	"github.com/parsnip-dev/parsnip/internal/query"
)

var relationCmd = &cobra.Command{
	Use:   "relation",
	Short: "Manage relations",
}

func init() {
	rootCmd.AddCommand(relationCmd)
}

var relationWeight float64
var relationWeightSet bool

var relationAddCmd = &cobra.Command{
	Use:   "add <from> <relationType> <to>",
	Short: "Create a relation between two entities",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		spec := graph.NewRelationSpec{From: args[0], RelationType: args[1], To: args[2]}
		if relationWeightSet {
			spec.Weight = &relationWeight
		}
		r, err := engineOf().CreateRelation(cmd.Context(), project(), spec)
		if err != nil {
			return err
		}
		return printRelations([]*graph.Relation{r})
	},
}

var relationFrom string
var relationDirection string

var relationListCmd = &cobra.Command{
	Use:   "list",
	Short: "List relations touching an entity",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if relationFrom == "" {
			return fmt.Errorf("relation list requires --from")
		}
		dir, err := parseDirection(relationDirection)
		if err != nil {
			return err
		}
		rels, err := engineOf().GetRelations(cmd.Context(), project(), relationFrom, dir)
		if err != nil {
			return err
		}
		return printRelations(rels)
	},
}

var relationDeleteCmd = &cobra.Command{
	Use:   "delete <from> <relationType> <to>",
	Short: "Delete a relation by its (from, type, to) triple",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := engineOf().DeleteRelation(cmd.Context(), project(), args[0], args[2], args[1]); err != nil {
			return err
		}
		fmt.Printf("deleted %s -[%s]-> %s\n", args[0], args[1], args[2])
		return nil
	},
}

var (
	traverseTarget        string
	traverseMaxDepth      int
	traverseEntityTypes   []string
	traverseRelationTypes []string
	traverseWeighted      bool
)

var relationTraverseCmd = &cobra.Command{
	Use:   "traverse <start>",
	Short: "Bounded graph walk from a start entity",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := parseDirection(relationDirection)
		if err != nil {
			return err
		}
		maxDepth := traverseMaxDepth
		if maxDepth <= 0 {
			maxDepth = graph.MaxTraversalDepth
		}
		q, err := query.NewTraversal(args[0], maxDepth, dir)
		if err != nil {
			return err
		}
		q.Target = traverseTarget
		q.EntityTypes = traverseEntityTypes
		q.RelationTypes = traverseRelationTypes
		q.Weighted = traverseWeighted

		result, err := engineOf().Traverse(cmd.Context(), project(), q)
		if err != nil {
			return err
		}
		return printEntities(result.Entities)
	},
}

var findPathWeighted bool

var relationFindPathCmd = &cobra.Command{
	Use:   "find-path <from> <to>",
	Short: "Compute the shortest path between two entities",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := parseDirection(relationDirection)
		if err != nil {
			return err
		}
		path, err := engineOf().ShortestPath(cmd.Context(), project(), args[0], args[1], dir, findPathWeighted)
		if err != nil {
			return err
		}
		if format == "json" {
			return printJSON(path)
		}
		fmt.Printf("path (length %d, weight %.2f): %v\n", path.Length, path.TotalWeight, path.Nodes)
		return nil
	},
}

func parseDirection(s string) (graph.Direction, error) {
	switch s {
	case "", "both":
		return graph.DirectionBoth, nil
	case "outgoing", "out":
		return graph.DirectionOutgoing, nil
	case "incoming", "in":
		return graph.DirectionIncoming, nil
	default:
		return "", fmt.Errorf("unknown direction %q (expected outgoing, incoming, or both)", s)
	}
}

func init() {
	relationAddCmd.Flags().Float64Var(&relationWeight, "weight", 0, "edge weight (default unweighted, 1.0)")
	relationAddCmd.Flags().Lookup("weight").DefValue = ""
	relationAddCmd.PreRun = func(cmd *cobra.Command, args []string) {
		relationWeightSet = cmd.Flags().Changed("weight")
	}

	relationListCmd.Flags().StringVar(&relationFrom, "from", "", "entity name to list relations for")
	relationListCmd.Flags().StringVar(&relationDirection, "direction", "both", "outgoing, incoming, or both")

	relationTraverseCmd.Flags().StringVar(&traverseTarget, "target", "", "stop at the first path found to this entity")
	relationTraverseCmd.Flags().IntVar(&traverseMaxDepth, "max-depth", 0, "maximum hop count (default: engine ceiling)")
	relationTraverseCmd.Flags().StringVar(&relationDirection, "direction", "both", "outgoing, incoming, or both")
	relationTraverseCmd.Flags().StringSliceVar(&traverseEntityTypes, "entity-type", nil, "restrict to these entity types (repeatable)")
	relationTraverseCmd.Flags().StringSliceVar(&traverseRelationTypes, "relation-type", nil, "restrict to these relation types (repeatable)")
	relationTraverseCmd.Flags().BoolVar(&traverseWeighted, "weighted", false, "use edge weights instead of hop count")

	relationFindPathCmd.Flags().StringVar(&relationDirection, "direction", "both", "outgoing, incoming, or both")
	relationFindPathCmd.Flags().BoolVar(&findPathWeighted, "weighted", false, "minimize total edge weight instead of hop count")

	relationCmd.AddCommand(relationAddCmd, relationListCmd, relationDeleteCmd, relationTraverseCmd, relationFindPathCmd)
}
