// Package graph owns the Parsnip data model: Project, Entity, Observation,
// and Relation, plus the invariants enforced whenever they are mutated.
package graph

import "time"

// Project is a namespace owning a set of Entities.
type Project struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	Settings    map[string]string `json:"settings,omitempty"`
}

// DefaultProjectName is created lazily on first use of an engine with no
// explicit project.
const DefaultProjectName = "default"

// NewProject constructs a Project with a fresh id and creation timestamp.
func NewProject(name, description string) *Project {
	return &Project{
		ID:          newID(),
		Name:        name,
		Description: description,
		CreatedAt:   time.Now().UTC(),
		Settings:    map[string]string{},
	}
}

// Observation is an append-only fact embedded in an Entity.
type Observation struct {
	ID         string    `json:"id"`
	Content    string    `json:"content"`
	Source     string    `json:"source,omitempty"`
	Confidence *float64  `json:"confidence,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewObservation constructs an Observation with a fresh id and timestamp.
func NewObservation(content string) Observation {
	return Observation{
		ID:        newID(),
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
}

// Entity is a node in the knowledge graph.
type Entity struct {
	ID           string         `json:"id"`
	ProjectID    string         `json:"project_id"`
	Name         string         `json:"name"`
	EntityType   string         `json:"entity_type"`
	Observations []Observation  `json:"observations"`
	Tags         []string       `json:"tags"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	Embedding    []float32      `json:"embedding,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// NewEntity constructs an Entity owned by projectID with a fresh id.
func NewEntity(projectID, name, entityType string) *Entity {
	now := time.Now().UTC()
	return &Entity{
		ID:           newID(),
		ProjectID:    projectID,
		Name:         name,
		EntityType:   entityType,
		Observations: []Observation{},
		Tags:         []string{},
		Metadata:     map[string]any{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// AddObservation appends a new observation and bumps UpdatedAt.
func (e *Entity) AddObservation(content string) Observation {
	obs := NewObservation(content)
	e.Observations = append(e.Observations, obs)
	e.UpdatedAt = time.Now().UTC()
	return obs
}

// RemoveObservations deletes observations whose id is in ids, preserving
// the relative order of survivors. Returns the number removed.
func (e *Entity) RemoveObservations(ids map[string]bool) int {
	if len(ids) == 0 {
		return 0
	}
	kept := e.Observations[:0:0]
	removed := 0
	for _, o := range e.Observations {
		if ids[o.ID] {
			removed++
			continue
		}
		kept = append(kept, o)
	}
	if removed > 0 {
		e.Observations = kept
		e.UpdatedAt = time.Now().UTC()
	}
	return removed
}

// HasTag reports whether tag is present (case-sensitive).
func (e *Entity) HasTag(tag string) bool {
	for _, t := range e.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// AddTag is a no-op if tag is already present; set semantics.
func (e *Entity) AddTag(tag string) bool {
	if e.HasTag(tag) {
		return false
	}
	e.Tags = append(e.Tags, tag)
	e.UpdatedAt = time.Now().UTC()
	return true
}

// RemoveTag is a no-op if tag is absent.
func (e *Entity) RemoveTag(tag string) bool {
	for i, t := range e.Tags {
		if t == tag {
			e.Tags = append(e.Tags[:i], e.Tags[i+1:]...)
			e.UpdatedAt = time.Now().UTC()
			return true
		}
	}
	return false
}

// Clone returns a deep-enough copy for callers that must not alias slices.
func (e *Entity) Clone() *Entity {
	cp := *e
	cp.Observations = append([]Observation(nil), e.Observations...)
	cp.Tags = append([]string(nil), e.Tags...)
	if e.Embedding != nil {
		cp.Embedding = append([]float32(nil), e.Embedding...)
	}
	cp.Metadata = make(map[string]any, len(e.Metadata))
	for k, v := range e.Metadata {
		cp.Metadata[k] = v
	}
	return &cp
}

// Direction constrains which edges a traversal or lookup considers.
type Direction string

const (
	DirectionOutgoing Direction = "outgoing"
	DirectionIncoming Direction = "incoming"
	DirectionBoth     Direction = "both"
)

// Relation is a directed, typed edge. Endpoints may belong to different
// projects; (FromEntityID, ToEntityID, RelationType) is the uniqueness key —
// weight is explicitly not part of identity.
type Relation struct {
	ID            string         `json:"id"`
	FromProjectID string         `json:"from_project_id"`
	ToProjectID   string         `json:"to_project_id"`
	FromEntityID  string         `json:"from_entity_id"`
	FromName      string         `json:"from_name"`
	ToEntityID    string         `json:"to_entity_id"`
	ToName        string         `json:"to_name"`
	RelationType  string         `json:"relation_type"`
	Weight        *float64       `json:"weight,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

// EffectiveWeight returns Weight if set, else the unweighted default 1.0.
func (r *Relation) EffectiveWeight() float64 {
	if r.Weight != nil {
		return *r.Weight
	}
	return 1.0
}

// NewRelation constructs a Relation with a fresh id and timestamp.
func NewRelation(fromProjectID, toProjectID, fromEntityID, fromName, toEntityID, toName, relationType string) *Relation {
	return &Relation{
		ID:            newID(),
		FromProjectID: fromProjectID,
		ToProjectID:   toProjectID,
		FromEntityID:  fromEntityID,
		FromName:      fromName,
		ToEntityID:    toEntityID,
		ToName:        toName,
		RelationType:  relationType,
		Metadata:      map[string]any{},
		CreatedAt:     time.Now().UTC(),
	}
}

// NewEntitySpec carries the fields needed to create an Entity.
type NewEntitySpec struct {
	Name         string
	EntityType   string
	Observations []string
	Tags         []string
	Metadata     map[string]any
	Embedding    []float32
}

// NewRelationSpec carries the fields needed to create a Relation.
type NewRelationSpec struct {
	From          string
	To            string
	RelationType  string
	Weight        *float64
	Metadata      map[string]any
	FromProjectID string // optional; defaults to the caller's project
	ToProjectID   string // optional; defaults to the caller's project
}

// UpdateEntitySpec describes a partial update to an existing entity.
type UpdateEntitySpec struct {
	Name                string
	EntityType          *string
	Embedding           []float32
	MergeObservations   []string
	ReplaceObservations []string
	MergeTags           []string
	ReplaceTags         []string
}
