package commands

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/parsnip-dev/parsnip/internal/graph"
	"github.com/parsnip-dev/parsnip/internal/query"
	"github.com/parsnip-dev/parsnip/internal/search"
)

func newTabWriter(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 2, 2, ' ', 0)
}

func printEntities(ents []*graph.Entity) error {
	switch format {
	case "json":
		return printJSON(ents)
	case "csv":
		return writeCSV([]string{"name", "entity_type", "tags", "observations"}, len(ents), func(i int) []string {
			e := ents[i]
			return []string{e.Name, e.EntityType, strings.Join(e.Tags, ";"), strconv.Itoa(len(e.Observations))}
		})
	default:
		tw := newTabWriter(os.Stdout)
		fmt.Fprintln(tw, "NAME\tTYPE\tTAGS\tOBSERVATIONS")
		for _, e := range ents {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", e.Name, e.EntityType, strings.Join(e.Tags, ","), len(e.Observations))
		}
		return tw.Flush()
	}
}

func printRelations(rels []*graph.Relation) error {
	switch format {
	case "json":
		return printJSON(rels)
	case "csv":
		return writeCSV([]string{"from", "to", "relation_type", "weight"}, len(rels), func(i int) []string {
			r := rels[i]
			return []string{r.FromName, r.ToName, r.RelationType, strconv.FormatFloat(r.EffectiveWeight(), 'f', -1, 64)}
		})
	default:
		tw := newTabWriter(os.Stdout)
		fmt.Fprintln(tw, "FROM\tTO\tTYPE\tWEIGHT")
		for _, r := range rels {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%v\n", r.FromName, r.ToName, r.RelationType, r.EffectiveWeight())
		}
		return tw.Flush()
	}
}

func printProjects(projects []*graph.Project) error {
	switch format {
	case "json":
		return printJSON(projects)
	case "csv":
		return writeCSV([]string{"name", "description"}, len(projects), func(i int) []string {
			p := projects[i]
			return []string{p.Name, p.Description}
		})
	default:
		tw := newTabWriter(os.Stdout)
		fmt.Fprintln(tw, "NAME\tDESCRIPTION")
		for _, p := range projects {
			fmt.Fprintf(tw, "%s\t%s\n", p.Name, p.Description)
		}
		return tw.Flush()
	}
}

func printEntity(e *graph.Entity) error {
	if format == "json" {
		return printJSON(e)
	}
	tw := newTabWriter(os.Stdout)
	fmt.Fprintf(tw, "name:\t%s\n", e.Name)
	fmt.Fprintf(tw, "type:\t%s\n", e.EntityType)
	fmt.Fprintf(tw, "tags:\t%s\n", strings.Join(e.Tags, ", "))
	fmt.Fprintf(tw, "observations:\t%d\n", len(e.Observations))
	if err := tw.Flush(); err != nil {
		return err
	}
	for _, o := range e.Observations {
		fmt.Printf("  [%s] %s\n", o.ID, o.Content)
	}
	return nil
}

func printHits(hits []search.Hit, info query.Info) error {
	switch format {
	case "json":
		return printJSON(struct {
			Hits []search.Hit `json:"hits"`
			Page query.Info   `json:"page"`
		}{hits, info})
	case "csv":
		return writeCSV([]string{"name", "entity_type", "score"}, len(hits), func(i int) []string {
			h := hits[i]
			return []string{h.Entity.Name, h.Entity.EntityType, strconv.FormatFloat(h.Score, 'f', 4, 64)}
		})
	default:
		tw := newTabWriter(os.Stdout)
		fmt.Fprintln(tw, "NAME\tTYPE\tSCORE")
		for _, h := range hits {
			fmt.Fprintf(tw, "%s\t%s\t%.4f\n", h.Entity.Name, h.Entity.EntityType, h.Score)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		fmt.Printf("page %d/%d, %d total\n", info.CurrentPage+1, maxInt(info.TotalPages, 1), info.TotalCount)
		return nil
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeCSV(header []string, n int, row func(i int) []string) error {
	w := csv.NewWriter(os.Stdout)
	if err := w.Write(header); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		if err := w.Write(row(i)); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
