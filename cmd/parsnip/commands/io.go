package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/parsnip-dev/parsnip/internal/graph"
	"github.com/parsnip-dev/parsnip/internal/parsniperr"
)

// exportDoc is the on-disk shape for `export`/`import`: a single JSON object
// with keys projects/entities/relations, each an array of records matching
// the graph model's own fields (RFC 3339 timestamps fall out of
// encoding/json's default time.Time marshaling).
type exportDoc struct {
	Projects  []*graph.Project  `json:"projects"`
	Entities  []*graph.Entity   `json:"entities"`
	Relations []*graph.Relation `json:"relations"`
}

var (
	exportAllProjects bool
	exportOut         string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Dump a project (or every project) to a JSON file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := buildExportDoc(cmd)
		if err != nil {
			return err
		}
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return err
		}
		if exportOut == "" || exportOut == "-" {
			_, err := os.Stdout.Write(append(data, '\n'))
			return err
		}
		// Owner-only permissions: exported data may contain full observation text.
		return os.WriteFile(exportOut, data, 0o600)
	},
}

func buildExportDoc(cmd *cobra.Command) (exportDoc, error) {
	var doc exportDoc
	if exportAllProjects {
		projects, err := engineOf().ListProjects(cmd.Context())
		if err != nil {
			return exportDoc{}, err
		}
		doc.Projects = projects
		// A cross-project relation shows up in both endpoint projects'
		// subgraphs; dedupe by id so an import doesn't hit AlreadyExists.
		seenRel := map[string]bool{}
		for _, p := range projects {
			ents, rels, err := engineOf().ReadGraph(cmd.Context(), p.Name)
			if err != nil {
				return exportDoc{}, err
			}
			doc.Entities = append(doc.Entities, ents...)
			for _, r := range rels {
				if !seenRel[r.ID] {
					seenRel[r.ID] = true
					doc.Relations = append(doc.Relations, r)
				}
			}
		}
		return doc, nil
	}

	name := project()
	p, err := engineOf().GetProjectByName(cmd.Context(), name)
	if err != nil {
		return exportDoc{}, err
	}
	ents, rels, err := engineOf().ReadGraph(cmd.Context(), name)
	if err != nil {
		return exportDoc{}, err
	}
	doc.Projects = []*graph.Project{p}
	doc.Entities = ents
	doc.Relations = rels
	return doc, nil
}

var importIn string

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Load a JSON export, creating projects/entities/relations that don't already exist",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var data []byte
		var err error
		if importIn == "" || importIn == "-" {
			data, err = io.ReadAll(os.Stdin)
		} else {
			data, err = os.ReadFile(importIn)
		}
		if err != nil {
			return err
		}

		var doc exportDoc
		if err := json.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("import: invalid export JSON: %w", err)
		}
		return applyImport(cmd, doc)
	},
}

func applyImport(cmd *cobra.Command, doc exportDoc) error {
	projectNames := make(map[string]string, len(doc.Projects)) // old id -> name
	for _, p := range doc.Projects {
		projectNames[p.ID] = p.Name
		if _, err := engineOf().GetProjectByName(cmd.Context(), p.Name); err == nil {
			continue // already exists, leave it alone
		}
		if _, err := engineOf().CreateProject(cmd.Context(), p.Name, p.Description); err != nil {
			return err
		}
	}

	entityNames := make(map[string]string, len(doc.Entities)) // old id -> name
	for _, e := range doc.Entities {
		entityNames[e.ID] = e.Name
		projectName := projectNames[e.ProjectID]
		if projectName == "" {
			projectName = project()
		}
		spec := graph.NewEntitySpec{Name: e.Name, EntityType: e.EntityType, Tags: e.Tags, Metadata: e.Metadata, Embedding: e.Embedding}
		for _, o := range e.Observations {
			spec.Observations = append(spec.Observations, o.Content)
		}
		if _, err := engineOf().CreateEntity(cmd.Context(), projectName, spec); err != nil && !parsniperr.Is(err, parsniperr.KindAlreadyExists) {
			return err
		}
	}

	for _, r := range doc.Relations {
		from, to := entityNames[r.FromEntityID], entityNames[r.ToEntityID]
		if from == "" {
			from = r.FromName
		}
		if to == "" {
			to = r.ToName
		}
		spec := graph.NewRelationSpec{From: from, RelationType: r.RelationType, To: to, Metadata: r.Metadata}
		if r.Weight != nil {
			spec.Weight = r.Weight
		}
		// Cross-project edges keep both endpoint projects; a missing mapping
		// falls back to the current project.
		spec.FromProjectID = projectNames[r.FromProjectID]
		spec.ToProjectID = projectNames[r.ToProjectID]
		projectName := spec.FromProjectID
		if projectName == "" {
			projectName = project()
		}
		if _, err := engineOf().CreateRelation(cmd.Context(), projectName, spec); err != nil && !parsniperr.Is(err, parsniperr.KindAlreadyExists) {
			return err
		}
	}

	fmt.Printf("imported %d projects, %d entities, %d relations\n", len(doc.Projects), len(doc.Entities), len(doc.Relations))
	return nil
}

func init() {
	exportCmd.Flags().BoolVar(&exportAllProjects, "all-projects", false, "export every project instead of just the current one")
	exportCmd.Flags().StringVar(&exportOut, "out", "", "output file (default: stdout)")
	importCmd.Flags().StringVar(&importIn, "in", "", "input file (default: stdin)")

	rootCmd.AddCommand(exportCmd, importCmd)
}
