package mcpserver

// ProjectArgs carries the optional project context every tool accepts; an
// empty ProjectName resolves to the default project (engine.GetOrCreateDefaultProject).
type ProjectArgs struct {
	ProjectName string `json:"projectName,omitempty" jsonschema:"Project to operate on; the default project is used when omitted."`
}

// Entity mirrors graph.Entity for the wire, keeping only what a client needs
// to see (ids are internal plumbing the MCP surface doesn't expose).
type Entity struct {
	Name         string         `json:"name"`
	EntityType   string         `json:"entityType"`
	Observations []string       `json:"observations"`
	Tags         []string       `json:"tags,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	Embedding    []float32      `json:"embedding,omitempty"`
}

// Relation mirrors graph.Relation for the wire.
type Relation struct {
	From         string   `json:"from"`
	To           string   `json:"to"`
	RelationType string   `json:"relationType"`
	Weight       *float64 `json:"weight,omitempty"`
}

// GraphResult is the structured content returned by every tool that hands
// back entities and their relations (search_knowledge, read_graph,
// open_nodes, neighbors, walk, traverse_graph).
type GraphResult struct {
	Entities  []Entity   `json:"entities"`
	Relations []Relation `json:"relations"`
}

// CreateEntitiesArgs is the input to create_entities.
type CreateEntitiesArgs struct {
	ProjectArgs ProjectArgs `json:"projectArgs,omitempty"`
	Entities    []Entity    `json:"entities" jsonschema:"Entities to create."`
	AutoEmbed   bool        `json:"autoEmbed,omitempty" jsonschema:"Compute a vector embedding server-side (via EMBEDDINGS_PROVIDER) for every entity that doesn't already carry one."`
}

// SearchKnowledgeArgs is the input to search_knowledge.
type SearchKnowledgeArgs struct {
	ProjectArgs ProjectArgs `json:"projectArgs,omitempty"`
	Query       string      `json:"query" jsonschema:"Search text."`
	Mode        string      `json:"mode,omitempty" jsonschema:"exact|fuzzy|fulltext|hybrid|vector (default exact)."`
	Embedding   []float32   `json:"embedding,omitempty" jsonschema:"Query embedding, required when mode=vector."`
	Threshold   float32     `json:"threshold,omitempty" jsonschema:"Fuzzy/similarity threshold in [0,1]."`
	Page        int         `json:"page,omitempty"`
	PageSize    int         `json:"pageSize,omitempty"`
	AllProjects bool        `json:"allProjects,omitempty" jsonschema:"Search across every project instead of just projectArgs' project (default true when projectArgs is empty)."`
}

// CreateRelationsArgs is the input to create_relations.
type CreateRelationsArgs struct {
	ProjectArgs ProjectArgs `json:"projectArgs,omitempty"`
	Relations   []Relation  `json:"relations"`
}

// DeleteEntitiesArgs is the input to delete_entities.
type DeleteEntitiesArgs struct {
	ProjectArgs ProjectArgs `json:"projectArgs,omitempty"`
	Names       []string    `json:"names"`
}

// RelationTuple identifies a relation to delete by its uniqueness key.
type RelationTuple struct {
	From         string `json:"from"`
	To           string `json:"to"`
	RelationType string `json:"relationType"`
}

// DeleteRelationsArgs is the input to delete_relations.
type DeleteRelationsArgs struct {
	ProjectArgs ProjectArgs     `json:"projectArgs,omitempty"`
	Relations   []RelationTuple `json:"relations"`
}

// DeleteObservationsArgs is the input to delete_observations.
type DeleteObservationsArgs struct {
	ProjectArgs ProjectArgs `json:"projectArgs,omitempty"`
	EntityName  string      `json:"entityName"`
	IDs         []string    `json:"ids" jsonschema:"Observation ids to remove."`
}

// AddObservationsArgs is the input to add_observations.
type AddObservationsArgs struct {
	ProjectArgs  ProjectArgs `json:"projectArgs,omitempty"`
	EntityName   string      `json:"entityName"`
	Observations []string    `json:"observations"`
}

// TagsArgs is the input to add_tags and remove_tags.
type TagsArgs struct {
	ProjectArgs ProjectArgs `json:"projectArgs,omitempty"`
	EntityName  string      `json:"entityName"`
	Tags        []string    `json:"tags"`
}

// ReadGraphArgs is the input to read_graph.
type ReadGraphArgs struct {
	ProjectArgs ProjectArgs `json:"projectArgs,omitempty"`
}

// OpenNodesArgs is the input to open_nodes.
type OpenNodesArgs struct {
	ProjectArgs      ProjectArgs `json:"projectArgs,omitempty"`
	Names            []string    `json:"names"`
	IncludeRelations bool        `json:"includeRelations,omitempty"`
}

// ListProjectsArgs is the (empty) input to list_projects.
type ListProjectsArgs struct{}

// ProjectSummary is one entry of list_projects' result.
type ProjectSummary struct {
	Name          string `json:"name"`
	Description   string `json:"description,omitempty"`
	EntityCount   int    `json:"entityCount"`
	RelationCount int    `json:"relationCount"`
}

// ListProjectsResult is the structured content of list_projects.
type ListProjectsResult struct {
	Projects []ProjectSummary `json:"projects"`
}

// TraverseGraphArgs is the input to traverse_graph.
type TraverseGraphArgs struct {
	ProjectArgs   ProjectArgs `json:"projectArgs,omitempty"`
	Start         string      `json:"start"`
	Target        string      `json:"target,omitempty" jsonschema:"If set, the walk stops at the first path found to this entity."`
	MaxDepth      int         `json:"maxDepth,omitempty"`
	Direction     string      `json:"direction,omitempty" jsonschema:"outgoing|incoming|both (default both)."`
	EntityTypes   []string    `json:"entityTypes,omitempty"`
	RelationTypes []string    `json:"relationTypes,omitempty"`
	Weighted      bool        `json:"weighted,omitempty"`
}

// NeighborsArgs is the input to the neighbors convenience tool.
type NeighborsArgs struct {
	ProjectArgs ProjectArgs `json:"projectArgs,omitempty"`
	Name        string      `json:"name"`
	Direction   string      `json:"direction,omitempty"`
}

// WalkArgs is the input to the walk convenience tool (traverse_graph without a target).
type WalkArgs struct {
	ProjectArgs ProjectArgs `json:"projectArgs,omitempty"`
	Start       string      `json:"start"`
	MaxDepth    int         `json:"maxDepth,omitempty"`
	Direction   string      `json:"direction,omitempty"`
}

// ShortestPathArgs is the input to the shortest_path convenience tool.
type ShortestPathArgs struct {
	ProjectArgs ProjectArgs `json:"projectArgs,omitempty"`
	From        string      `json:"from"`
	To          string      `json:"to"`
	Direction   string      `json:"direction,omitempty"`
	Weighted    bool        `json:"weighted,omitempty"`
}

// PathResult is the structured content of shortest_path.
type PathResult struct {
	Nodes       []string   `json:"nodes"`
	Relations   []Relation `json:"relations"`
	TotalWeight float64    `json:"totalWeight"`
	Length      int        `json:"length"`
}

// HealthArgs is the (empty) input to health_check.
type HealthArgs struct{}

// HealthResult is the structured content of health_check.
type HealthResult struct {
	Name         string `json:"name"`
	Version      string `json:"version"`
	StorageKind  string `json:"storageKind"`
	ProjectCount int    `json:"projectCount"`
}
