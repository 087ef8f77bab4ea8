// Package mcpserver exposes the Graph Engine over the Model Context
// Protocol: JSON-RPC 2.0 tool calls, either over stdio or HTTP+SSE.
package mcpserver

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/parsnip-dev/parsnip/internal/embeddings"
	"github.com/parsnip-dev/parsnip/internal/engine"
	"github.com/parsnip-dev/parsnip/internal/graph"
	"github.com/parsnip-dev/parsnip/internal/metrics"
	"github.com/parsnip-dev/parsnip/internal/parsniperr"
	"github.com/parsnip-dev/parsnip/internal/parsniplog"
)

// version is reported by health_check; there is no separate buildinfo
// package in this repo, so it is a plain constant here.
const version = "0.1.0"

var log = parsniplog.New("mcpserver")

// Server handles MCP protocol communication over the Graph Engine.
type Server struct {
	server     *mcp.Server
	engine     *engine.Engine
	embeddings embeddings.Provider // nil unless EMBEDDINGS_PROVIDER is set; only create_entities' autoEmbed uses it
}

// New builds a Server with every tool registered against eng. The embeddings
// provider is resolved from the environment once here rather than per call,
// matching how the CLI driver lazily builds one on first --auto-embed use.
func New(eng *engine.Engine) *Server {
	srv := mcp.NewServer(&mcp.Implementation{
		Name:    "parsnip",
		Version: version,
	}, nil)

	s := &Server{server: srv, engine: eng, embeddings: embeddings.NewFromEnv()}
	s.setupTools()
	return s
}

func schemaFor[T any]() *jsonschema.Schema {
	s, err := jsonschema.For[T]()
	if err != nil {
		panic(fmt.Sprintf("mcpserver: failed to build schema for %T: %v", *new(T), err))
	}
	return s
}

// setupTools registers the MCP tool table: the core knowledge-graph tools
// plus the traversal convenience tools (neighbors, walk, shortest_path) and
// health_check.
func (s *Server) setupTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "create_entities",
		Title:       "Create Entities",
		Description: "Create new entities with observations, tags, and optional embeddings (or autoEmbed to compute them server-side).",
		InputSchema: schemaFor[CreateEntitiesArgs](),
	}, s.handleCreateEntities)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:         "search_knowledge",
		Title:        "Search Knowledge",
		Description:  "Search entities by exact, fuzzy, fulltext, hybrid, or vector similarity.",
		InputSchema:  schemaFor[SearchKnowledgeArgs](),
		OutputSchema: schemaFor[GraphResult](),
	}, s.handleSearchKnowledge)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "add_observations",
		Title:       "Add Observations",
		Description: "Append observations to an existing entity.",
		InputSchema: schemaFor[AddObservationsArgs](),
	}, s.handleAddObservations)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "delete_observations",
		Title:       "Delete Observations",
		Description: "Delete observations from an entity by id.",
		InputSchema: schemaFor[DeleteObservationsArgs](),
	}, s.handleDeleteObservations)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "create_relations",
		Title:       "Create Relations",
		Description: "Create relations between entities.",
		InputSchema: schemaFor[CreateRelationsArgs](),
	}, s.handleCreateRelations)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "delete_entities",
		Title:       "Delete Entities",
		Description: "Delete entities and every relation touching them.",
		InputSchema: schemaFor[DeleteEntitiesArgs](),
	}, s.handleDeleteEntities)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "delete_relations",
		Title:       "Delete Relations",
		Description: "Delete relations by (from, to, type) triple.",
		InputSchema: schemaFor[DeleteRelationsArgs](),
	}, s.handleDeleteRelations)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:         "read_graph",
		Title:        "Read Graph",
		Description:  "Get the whole entity/relation subgraph of a project.",
		InputSchema:  schemaFor[ReadGraphArgs](),
		OutputSchema: schemaFor[GraphResult](),
	}, s.handleReadGraph)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:         "open_nodes",
		Title:        "Open Nodes",
		Description:  "Retrieve entities by name, with optional connecting relations.",
		InputSchema:  schemaFor[OpenNodesArgs](),
		OutputSchema: schemaFor[GraphResult](),
	}, s.handleOpenNodes)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "add_tags",
		Title:       "Add Tags",
		Description: "Add tags to an entity (set semantics; duplicates are no-ops).",
		InputSchema: schemaFor[TagsArgs](),
	}, s.handleAddTags)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "remove_tags",
		Title:       "Remove Tags",
		Description: "Remove tags from an entity.",
		InputSchema: schemaFor[TagsArgs](),
	}, s.handleRemoveTags)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:         "list_projects",
		Title:        "List Projects",
		Description:  "Enumerate every project with entity/relation counts.",
		InputSchema:  schemaFor[ListProjectsArgs](),
		OutputSchema: schemaFor[ListProjectsResult](),
	}, s.handleListProjects)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:         "traverse_graph",
		Title:        "Traverse Graph",
		Description:  "Bounded graph walk from a start entity, optionally to a target.",
		InputSchema:  schemaFor[TraverseGraphArgs](),
		OutputSchema: schemaFor[GraphResult](),
	}, s.handleTraverseGraph)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:         "neighbors",
		Title:        "Neighbors",
		Description:  "Fetch the 1-hop neighbors of a single entity.",
		InputSchema:  schemaFor[NeighborsArgs](),
		OutputSchema: schemaFor[GraphResult](),
	}, s.handleNeighbors)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:         "walk",
		Title:        "Graph Walk",
		Description:  "Bounded-depth walk from a seed entity without path reconstruction.",
		InputSchema:  schemaFor[WalkArgs](),
		OutputSchema: schemaFor[GraphResult](),
	}, s.handleWalk)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:         "shortest_path",
		Title:        "Shortest Path",
		Description:  "Compute the shortest (optionally weighted) path between two entities.",
		InputSchema:  schemaFor[ShortestPathArgs](),
		OutputSchema: schemaFor[PathResult](),
	}, s.handleShortestPath)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:         "health_check",
		Title:        "Health Check",
		Description:  "Liveness and basic backend stats.",
		InputSchema:  schemaFor[HealthArgs](),
		OutputSchema: schemaFor[HealthResult](),
	}, s.handleHealth)
}

func (s *Server) getProjectName(p ProjectArgs) string { return p.ProjectName }

func direction(s string) (graph.Direction, error) {
	switch s {
	case "", "both":
		return graph.DirectionBoth, nil
	case "outgoing", "out":
		return graph.DirectionOutgoing, nil
	case "incoming", "in":
		return graph.DirectionIncoming, nil
	default:
		return "", parsniperr.InvalidInput("direction", fmt.Errorf("unknown direction %q", s))
	}
}

// entityText builds the same join-everything-with-spaces text
// internal/search's searchableText scores against, so an auto-computed
// embedding is grounded in what a client would otherwise search on.
func entityText(e Entity) string {
	parts := append([]string{e.Name, e.EntityType}, e.Observations...)
	parts = append(parts, e.Tags...)
	return strings.Join(parts, " ")
}

func toWireEntity(e *graph.Entity) Entity {
	obs := make([]string, len(e.Observations))
	for i, o := range e.Observations {
		obs[i] = o.Content
	}
	return Entity{
		Name:         e.Name,
		EntityType:   e.EntityType,
		Observations: obs,
		Tags:         e.Tags,
		Metadata:     e.Metadata,
		Embedding:    e.Embedding,
	}
}

func toWireEntities(ents []*graph.Entity) []Entity {
	out := make([]Entity, len(ents))
	for i, e := range ents {
		out[i] = toWireEntity(e)
	}
	return out
}

func toWireRelation(r *graph.Relation) Relation {
	return Relation{From: r.FromName, To: r.ToName, RelationType: r.RelationType, Weight: r.Weight}
}

func toWireRelations(rels []*graph.Relation) []Relation {
	out := make([]Relation, len(rels))
	for i, r := range rels {
		out[i] = toWireRelation(r)
	}
	return out
}

// timed runs fn, feeding its success/failure into the per-tool timer so
// every handler body doesn't repeat the metrics boilerplate.
func timed(tool string, fn func() error) error {
	done := metrics.TimeTool(tool)
	err := fn()
	done(err == nil)
	return err
}

// Run starts the server over the stdio transport (the MCP client launches
// this process and speaks JSON-RPC over its stdin/stdout).
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, mcp.NewStdioTransport())
}

// RunSSE starts the server over HTTP with a POST endpoint plus an SSE event
// stream at the given address.
func (s *Server) RunSSE(ctx context.Context, addr, endpoint string) error {
	handler := mcp.NewSSEHandler(func(r *http.Request) *mcp.Server { return s.server })
	mux := http.NewServeMux()
	mux.Handle(endpoint, handler)
	httpSrv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	log.Info("MCP server listening on %s%s", addr, endpoint)
	return httpSrv.ListenAndServe()
}
