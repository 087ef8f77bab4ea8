package mcpserver

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/parsnip-dev/parsnip/internal/graph"
	"github.com/parsnip-dev/parsnip/internal/parsniperr"
	"github.com/parsnip-dev/parsnip/internal/query"
	"github.com/parsnip-dev/parsnip/internal/traversal"
)

func (s *Server) handleCreateEntities(
	ctx context.Context, session *mcp.ServerSession, params *mcp.CallToolParamsFor[CreateEntitiesArgs],
) (*mcp.CallToolResultFor[any], error) {
	project := s.getProjectName(params.Arguments.ProjectArgs)
	specs := make([]graph.NewEntitySpec, len(params.Arguments.Entities))
	for i, e := range params.Arguments.Entities {
		specs[i] = graph.NewEntitySpec{
			Name: e.Name, EntityType: e.EntityType, Observations: e.Observations,
			Tags: e.Tags, Metadata: e.Metadata, Embedding: e.Embedding,
		}
	}

	if params.Arguments.AutoEmbed {
		if s.embeddings == nil {
			return nil, fmt.Errorf("create_entities: autoEmbed requires EMBEDDINGS_PROVIDER to be set")
		}
		var texts []string
		var pending []int
		for i, e := range params.Arguments.Entities {
			if len(specs[i].Embedding) == 0 {
				texts = append(texts, entityText(e))
				pending = append(pending, i)
			}
		}
		if len(texts) > 0 {
			vecs, err := s.embeddings.Embed(ctx, texts)
			if err != nil {
				return nil, fmt.Errorf("create_entities: auto-embed: %w", err)
			}
			for j, i := range pending {
				specs[i].Embedding = vecs[j]
			}
		}
	}

	var created []*graph.Entity
	err := timed("create_entities", func() error {
		var err error
		created, err = s.engine.CreateEntities(ctx, project, specs)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create_entities: %w", err)
	}
	return &mcp.CallToolResultFor[any]{
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("created %d entities in project %q", len(created), project)}},
	}, nil
}

func (s *Server) handleSearchKnowledge(
	ctx context.Context, session *mcp.ServerSession, params *mcp.CallToolParamsFor[SearchKnowledgeArgs],
) (*mcp.CallToolResultFor[GraphResult], error) {
	a := params.Arguments
	b := query.NewBuilder().Text(a.Query)
	if a.Mode != "" {
		b = b.Mode(query.SearchMode(a.Mode))
	}
	if a.Threshold != 0 {
		b = b.FuzzyThreshold(a.Threshold).SimilarityThreshold(a.Threshold)
	}
	if len(a.Embedding) > 0 {
		b = b.Embedding(a.Embedding)
	}
	if a.Page != 0 || a.PageSize != 0 {
		b = b.Page(a.Page, a.PageSize)
	}
	if project := s.getProjectName(a.ProjectArgs); project != "" && !a.AllProjects {
		proj, err := s.engine.GetProjectByName(ctx, project)
		if err != nil {
			return nil, fmt.Errorf("search_knowledge: %w", err)
		}
		b = b.InProject(proj.ID)
	}
	q, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("search_knowledge: %w", err)
	}

	var ents []*graph.Entity
	err = timed("search_knowledge", func() error {
		hits, _, err := s.engine.Search(ctx, q)
		if err != nil {
			return err
		}
		ents = make([]*graph.Entity, len(hits))
		for i, h := range hits {
			ents[i] = h.Entity
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("search_knowledge: %w", err)
	}

	return &mcp.CallToolResultFor[GraphResult]{
		Content:           []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("%d matches", len(ents))}},
		StructuredContent: GraphResult{Entities: toWireEntities(ents)},
	}, nil
}

func (s *Server) handleAddObservations(
	ctx context.Context, session *mcp.ServerSession, params *mcp.CallToolParamsFor[AddObservationsArgs],
) (*mcp.CallToolResultFor[any], error) {
	a := params.Arguments
	project := s.getProjectName(a.ProjectArgs)
	var added []graph.Observation
	err := timed("add_observations", func() error {
		var err error
		added, err = s.engine.AddObservations(ctx, project, a.EntityName, a.Observations)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("add_observations: %w", err)
	}
	return &mcp.CallToolResultFor[any]{
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("added %d observations to %q", len(added), a.EntityName)}},
	}, nil
}

func (s *Server) handleDeleteObservations(
	ctx context.Context, session *mcp.ServerSession, params *mcp.CallToolParamsFor[DeleteObservationsArgs],
) (*mcp.CallToolResultFor[any], error) {
	a := params.Arguments
	project := s.getProjectName(a.ProjectArgs)
	var removed int
	err := timed("delete_observations", func() error {
		var err error
		removed, err = s.engine.RemoveObservations(ctx, project, a.EntityName, a.IDs)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("delete_observations: %w", err)
	}
	return &mcp.CallToolResultFor[any]{
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("removed %d observations from %q", removed, a.EntityName)}},
	}, nil
}

func (s *Server) handleCreateRelations(
	ctx context.Context, session *mcp.ServerSession, params *mcp.CallToolParamsFor[CreateRelationsArgs],
) (*mcp.CallToolResultFor[any], error) {
	project := s.getProjectName(params.Arguments.ProjectArgs)
	specs := make([]graph.NewRelationSpec, len(params.Arguments.Relations))
	for i, r := range params.Arguments.Relations {
		specs[i] = graph.NewRelationSpec{From: r.From, To: r.To, RelationType: r.RelationType, Weight: r.Weight}
	}

	var created []*graph.Relation
	err := timed("create_relations", func() error {
		var err error
		created, err = s.engine.CreateRelations(ctx, project, specs)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create_relations: %w", err)
	}
	return &mcp.CallToolResultFor[any]{
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("created %d relations in project %q", len(created), project)}},
	}, nil
}

func (s *Server) handleDeleteEntities(
	ctx context.Context, session *mcp.ServerSession, params *mcp.CallToolParamsFor[DeleteEntitiesArgs],
) (*mcp.CallToolResultFor[any], error) {
	a := params.Arguments
	project := s.getProjectName(a.ProjectArgs)
	err := timed("delete_entities", func() error {
		for _, name := range a.Names {
			if err := s.engine.DeleteEntity(ctx, project, name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("delete_entities: %w", err)
	}
	return &mcp.CallToolResultFor[any]{
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("deleted %d entities in project %q", len(a.Names), project)}},
	}, nil
}

func (s *Server) handleDeleteRelations(
	ctx context.Context, session *mcp.ServerSession, params *mcp.CallToolParamsFor[DeleteRelationsArgs],
) (*mcp.CallToolResultFor[any], error) {
	a := params.Arguments
	project := s.getProjectName(a.ProjectArgs)
	err := timed("delete_relations", func() error {
		for _, r := range a.Relations {
			if err := s.engine.DeleteRelation(ctx, project, r.From, r.To, r.RelationType); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("delete_relations: %w", err)
	}
	return &mcp.CallToolResultFor[any]{
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("deleted %d relations in project %q", len(a.Relations), project)}},
	}, nil
}

func (s *Server) handleReadGraph(
	ctx context.Context, session *mcp.ServerSession, params *mcp.CallToolParamsFor[ReadGraphArgs],
) (*mcp.CallToolResultFor[GraphResult], error) {
	project := s.getProjectName(params.Arguments.ProjectArgs)
	var ents []*graph.Entity
	var rels []*graph.Relation
	err := timed("read_graph", func() error {
		var err error
		ents, rels, err = s.engine.ReadGraph(ctx, project)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("read_graph: %w", err)
	}
	return &mcp.CallToolResultFor[GraphResult]{
		Content:           []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("%d entities, %d relations", len(ents), len(rels))}},
		StructuredContent: GraphResult{Entities: toWireEntities(ents), Relations: toWireRelations(rels)},
	}, nil
}

func (s *Server) handleOpenNodes(
	ctx context.Context, session *mcp.ServerSession, params *mcp.CallToolParamsFor[OpenNodesArgs],
) (*mcp.CallToolResultFor[GraphResult], error) {
	a := params.Arguments
	project := s.getProjectName(a.ProjectArgs)
	var ents []*graph.Entity
	var rels []*graph.Relation
	err := timed("open_nodes", func() error {
		var err error
		ents, err = s.engine.GetEntities(ctx, project, a.Names)
		if err != nil || !a.IncludeRelations {
			return err
		}
		seen := map[string]bool{}
		for _, e := range ents {
			es, err := s.engine.GetRelations(ctx, project, e.Name, graph.DirectionBoth)
			if err != nil {
				return err
			}
			for _, r := range es {
				if !seen[r.ID] {
					seen[r.ID] = true
					rels = append(rels, r)
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("open_nodes: %w", err)
	}
	return &mcp.CallToolResultFor[GraphResult]{
		Content:           []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("opened %d nodes", len(ents))}},
		StructuredContent: GraphResult{Entities: toWireEntities(ents), Relations: toWireRelations(rels)},
	}, nil
}

func (s *Server) handleAddTags(
	ctx context.Context, session *mcp.ServerSession, params *mcp.CallToolParamsFor[TagsArgs],
) (*mcp.CallToolResultFor[any], error) {
	a := params.Arguments
	project := s.getProjectName(a.ProjectArgs)
	err := timed("add_tags", func() error { return s.engine.AddTags(ctx, project, a.EntityName, a.Tags) })
	if err != nil {
		return nil, fmt.Errorf("add_tags: %w", err)
	}
	return &mcp.CallToolResultFor[any]{
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("added %d tags to %q", len(a.Tags), a.EntityName)}},
	}, nil
}

func (s *Server) handleRemoveTags(
	ctx context.Context, session *mcp.ServerSession, params *mcp.CallToolParamsFor[TagsArgs],
) (*mcp.CallToolResultFor[any], error) {
	a := params.Arguments
	project := s.getProjectName(a.ProjectArgs)
	err := timed("remove_tags", func() error { return s.engine.RemoveTags(ctx, project, a.EntityName, a.Tags) })
	if err != nil {
		return nil, fmt.Errorf("remove_tags: %w", err)
	}
	return &mcp.CallToolResultFor[any]{
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("removed %d tags from %q", len(a.Tags), a.EntityName)}},
	}, nil
}

func (s *Server) handleListProjects(
	ctx context.Context, session *mcp.ServerSession, params *mcp.CallToolParamsFor[ListProjectsArgs],
) (*mcp.CallToolResultFor[ListProjectsResult], error) {
	var summaries []ProjectSummary
	err := timed("list_projects", func() error {
		projects, err := s.engine.ListProjects(ctx)
		if err != nil {
			return err
		}
		summaries = make([]ProjectSummary, len(projects))
		for i, p := range projects {
			ents, rels, err := s.engine.ReadGraph(ctx, p.Name)
			if err != nil {
				return err
			}
			summaries[i] = ProjectSummary{
				Name: p.Name, Description: p.Description,
				EntityCount: len(ents), RelationCount: len(rels),
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list_projects: %w", err)
	}
	return &mcp.CallToolResultFor[ListProjectsResult]{
		Content:           []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("%d projects", len(summaries))}},
		StructuredContent: ListProjectsResult{Projects: summaries},
	}, nil
}

func (s *Server) handleTraverseGraph(
	ctx context.Context, session *mcp.ServerSession, params *mcp.CallToolParamsFor[TraverseGraphArgs],
) (*mcp.CallToolResultFor[GraphResult], error) {
	a := params.Arguments
	project := s.getProjectName(a.ProjectArgs)
	dir, err := direction(a.Direction)
	if err != nil {
		return nil, fmt.Errorf("traverse_graph: %w", err)
	}
	maxDepth := a.MaxDepth
	if maxDepth <= 0 {
		maxDepth = graph.MaxTraversalDepth
	}
	q, err := query.NewTraversal(a.Start, maxDepth, dir)
	if err != nil {
		return nil, fmt.Errorf("traverse_graph: %w", err)
	}
	q.Target = a.Target
	q.EntityTypes = a.EntityTypes
	q.RelationTypes = a.RelationTypes
	q.Weighted = a.Weighted

	var result traversal.Result
	err = timed("traverse_graph", func() error {
		var err error
		result, err = s.engine.Traverse(ctx, project, q)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("traverse_graph: %w", err)
	}
	return &mcp.CallToolResultFor[GraphResult]{
		Content:           []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("visited %d entities", len(result.VisitedEntityIDs))}},
		StructuredContent: GraphResult{Entities: toWireEntities(result.Entities), Relations: toWireRelations(result.Relations)},
	}, nil
}

func (s *Server) handleNeighbors(
	ctx context.Context, session *mcp.ServerSession, params *mcp.CallToolParamsFor[NeighborsArgs],
) (*mcp.CallToolResultFor[GraphResult], error) {
	a := params.Arguments
	project := s.getProjectName(a.ProjectArgs)
	dir, err := direction(a.Direction)
	if err != nil {
		return nil, fmt.Errorf("neighbors: %w", err)
	}
	var rels []*graph.Relation
	err = timed("neighbors", func() error {
		var err error
		rels, err = s.engine.GetRelations(ctx, project, a.Name, dir)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("neighbors: %w", err)
	}
	names := map[string]bool{a.Name: true}
	for _, r := range rels {
		names[r.FromName] = true
		names[r.ToName] = true
	}
	nameList := make([]string, 0, len(names))
	for n := range names {
		nameList = append(nameList, n)
	}
	ents, err := s.engine.GetEntities(ctx, project, nameList)
	if err != nil {
		return nil, fmt.Errorf("neighbors: %w", err)
	}
	return &mcp.CallToolResultFor[GraphResult]{
		Content:           []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("%d neighbors", len(ents)-1)}},
		StructuredContent: GraphResult{Entities: toWireEntities(ents), Relations: toWireRelations(rels)},
	}, nil
}

func (s *Server) handleWalk(
	ctx context.Context, session *mcp.ServerSession, params *mcp.CallToolParamsFor[WalkArgs],
) (*mcp.CallToolResultFor[GraphResult], error) {
	a := params.Arguments
	project := s.getProjectName(a.ProjectArgs)
	dir, err := direction(a.Direction)
	if err != nil {
		return nil, fmt.Errorf("walk: %w", err)
	}
	maxDepth := a.MaxDepth
	if maxDepth <= 0 {
		maxDepth = 1
	}
	q, err := query.NewTraversal(a.Start, maxDepth, dir)
	if err != nil {
		return nil, fmt.Errorf("walk: %w", err)
	}

	var result traversal.Result
	err = timed("walk", func() error {
		var err error
		result, err = s.engine.Traverse(ctx, project, q)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("walk: %w", err)
	}
	return &mcp.CallToolResultFor[GraphResult]{
		Content:           []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("walked to %d entities", len(result.VisitedEntityIDs))}},
		StructuredContent: GraphResult{Entities: toWireEntities(result.Entities), Relations: toWireRelations(result.Relations)},
	}, nil
}

func (s *Server) handleShortestPath(
	ctx context.Context, session *mcp.ServerSession, params *mcp.CallToolParamsFor[ShortestPathArgs],
) (*mcp.CallToolResultFor[PathResult], error) {
	a := params.Arguments
	project := s.getProjectName(a.ProjectArgs)
	dir, err := direction(a.Direction)
	if err != nil {
		return nil, fmt.Errorf("shortest_path: %w", err)
	}

	var path traversal.Path
	err = timed("shortest_path", func() error {
		var err error
		path, err = s.engine.ShortestPath(ctx, project, a.From, a.To, dir, a.Weighted)
		return err
	})
	if err != nil {
		if parsniperr.Is(err, parsniperr.KindNoPath) {
			return &mcp.CallToolResultFor[PathResult]{
				Content:           []mcp.Content{&mcp.TextContent{Text: "no path found"}},
				StructuredContent: PathResult{},
			}, nil
		}
		return nil, fmt.Errorf("shortest_path: %w", err)
	}

	rels := make([]Relation, len(path.Edges))
	for i, e := range path.Edges {
		rels[i] = Relation{From: e.From, To: e.To, RelationType: e.RelationType, Weight: e.Weight}
	}
	return &mcp.CallToolResultFor[PathResult]{
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("path of length %d", path.Length)}},
		StructuredContent: PathResult{
			Nodes: path.Nodes, Relations: rels, TotalWeight: path.TotalWeight, Length: path.Length,
		},
	}, nil
}

func (s *Server) handleHealth(
	ctx context.Context, session *mcp.ServerSession, params *mcp.CallToolParamsFor[HealthArgs],
) (*mcp.CallToolResultFor[HealthResult], error) {
	projects, err := s.engine.ListProjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("health_check: %w", err)
	}
	res := HealthResult{Name: "parsnip", Version: version, StorageKind: s.engine.StorageKind(), ProjectCount: len(projects)}
	return &mcp.CallToolResultFor[HealthResult]{
		Content:           []mcp.Content{&mcp.TextContent{Text: "ok"}},
		StructuredContent: res,
	}, nil
}
