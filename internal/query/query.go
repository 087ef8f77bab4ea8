// Package query implements the Query Builder & Scope Resolver: it
// normalizes search/traversal inputs and resolves project scope before
// anything reaches storage.
package query

import (
	"fmt"

	"github.com/parsnip-dev/parsnip/internal/graph"
	"github.com/parsnip-dev/parsnip/internal/parsniperr"
)

// SearchMode selects which search engine strategy handles a query.
type SearchMode string

const (
	ModeExact    SearchMode = "exact"
	ModeFuzzy    SearchMode = "fuzzy"
	ModeFullText SearchMode = "fulltext"
	ModeHybrid   SearchMode = "hybrid"
	ModeVector   SearchMode = "vector"
)

// TagMatchMode controls how a multi-tag filter combines.
type TagMatchMode string

const (
	TagMatchAny TagMatchMode = "any"
	TagMatchAll TagMatchMode = "all"
)

// ScopeKind distinguishes the three ways a query can range over projects.
type ScopeKind string

const (
	ScopeSingle   ScopeKind = "single"
	ScopeMultiple ScopeKind = "multiple"
	ScopeAll      ScopeKind = "all"
)

// Scope resolves which project ids a query or traversal ranges over.
type Scope struct {
	Kind       ScopeKind
	ProjectIDs []string // meaningful for Single (len 1) and Multiple
}

// SingleScope restricts to one project.
func SingleScope(projectID string) Scope {
	return Scope{Kind: ScopeSingle, ProjectIDs: []string{projectID}}
}

// MultipleScope unions across the listed projects.
func MultipleScope(projectIDs []string) Scope {
	return Scope{Kind: ScopeMultiple, ProjectIDs: projectIDs}
}

// AllScope iterates every project.
func AllScope() Scope { return Scope{Kind: ScopeAll} }

// Includes reports whether projectID falls within the scope, given the full
// set of known project ids (only consulted for ScopeAll).
func (s Scope) Includes(projectID string, allProjectIDs []string) bool {
	switch s.Kind {
	case ScopeSingle:
		return len(s.ProjectIDs) > 0 && s.ProjectIDs[0] == projectID
	case ScopeMultiple:
		for _, id := range s.ProjectIDs {
			if id == projectID {
				return true
			}
		}
		return false
	case ScopeAll:
		return true
	default:
		return false
	}
}

const (
	DefaultPageSize    = 100
	MaxPageSize        = 1000
	MinPageSize        = 1
	DefaultFuzzyThresh = 0.3
	DefaultSimilarity  = 0.7
)

// Pagination is a zero-indexed page request, bounded to [1, 1000].
type Pagination struct {
	Page     int
	PageSize int
}

// NewPagination validates and normalizes page/page_size; 0 and >1000 fail.
func NewPagination(page, pageSize int) (Pagination, error) {
	if page < 0 {
		return Pagination{}, parsniperr.InvalidInput("pagination", fmt.Errorf("page must be >= 0, got %d", page))
	}
	if pageSize < MinPageSize || pageSize > MaxPageSize {
		return Pagination{}, parsniperr.InvalidInput("pagination", fmt.Errorf("page_size must be in [%d, %d], got %d", MinPageSize, MaxPageSize, pageSize))
	}
	return Pagination{Page: page, PageSize: pageSize}, nil
}

// Offset is the zero-based index of the first record on this page.
func (p Pagination) Offset() int { return p.Page * p.PageSize }

// Info describes the pagination metadata returned alongside a page.
type Info struct {
	CurrentPage     int  `json:"current_page"`
	PageSize        int  `json:"page_size"`
	TotalCount      int  `json:"total_count"`
	TotalPages      int  `json:"total_pages"`
	HasNextPage     bool `json:"has_next_page"`
	HasPreviousPage bool `json:"has_previous_page"`
}

// NewInfo computes pagination metadata for totalCount records.
func NewInfo(currentPage, pageSize, totalCount int) Info {
	totalPages := 0
	if pageSize > 0 {
		totalPages = (totalCount + pageSize - 1) / pageSize
	}
	return Info{
		CurrentPage:     currentPage,
		PageSize:        pageSize,
		TotalCount:      totalCount,
		TotalPages:      totalPages,
		HasNextPage:     currentPage+1 < totalPages,
		HasPreviousPage: currentPage > 0,
	}
}

// Paginate slices items according to p, returning the page and its Info.
func Paginate[T any](items []T, p Pagination) ([]T, Info) {
	info := NewInfo(p.Page, p.PageSize, len(items))
	offset := p.Offset()
	if offset >= len(items) {
		return []T{}, info
	}
	end := offset + p.PageSize
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end], info
}

// Search aggregates every input the search engine needs to run one query.
type Search struct {
	Text                string
	Mode                SearchMode
	FuzzyThreshold      float32
	QueryEmbedding      []float32
	SimilarityThreshold float32
	EntityTypes         []string
	Tags                []string
	TagMatchMode        TagMatchMode
	Scope               Scope
	Pagination          Pagination
	IncludeRelations    bool
}

// Builder constructs a normalized Search query, validating as it goes so
// the engine can execute the result without further checks.
type Builder struct {
	q   Search
	err error
}

// NewBuilder starts a query with engine defaults: mode exact, scope all,
// default pagination, include_relations true.
func NewBuilder() *Builder {
	p, _ := NewPagination(0, DefaultPageSize)
	return &Builder{q: Search{
		Mode:                ModeExact,
		FuzzyThreshold:      DefaultFuzzyThresh,
		SimilarityThreshold: DefaultSimilarity,
		TagMatchMode:        TagMatchAny,
		Scope:               AllScope(),
		Pagination:          p,
		IncludeRelations:    true,
	}}
}

func (b *Builder) fail(err error) *Builder {
	if b.err == nil {
		b.err = err
	}
	return b
}

func (b *Builder) Text(text string) *Builder {
	b.q.Text = text
	return b
}

func (b *Builder) Mode(mode SearchMode) *Builder {
	switch mode {
	case ModeExact, ModeFuzzy, ModeFullText, ModeHybrid, ModeVector:
		b.q.Mode = mode
	default:
		b.fail(parsniperr.InvalidInput("query.mode", fmt.Errorf("unknown search mode %q", mode)))
	}
	return b
}

func (b *Builder) FuzzyThreshold(t float32) *Builder {
	if t < 0 || t > 1 {
		return b.fail(parsniperr.InvalidInput("query.fuzzy_threshold", fmt.Errorf("fuzzy threshold must be in [0,1], got %v", t)))
	}
	b.q.FuzzyThreshold = t
	return b
}

func (b *Builder) Embedding(vec []float32) *Builder {
	b.q.QueryEmbedding = vec
	return b
}

func (b *Builder) SimilarityThreshold(t float32) *Builder {
	if t < 0 || t > 1 {
		return b.fail(parsniperr.InvalidInput("query.similarity_threshold", fmt.Errorf("similarity threshold must be in [0,1], got %v", t)))
	}
	b.q.SimilarityThreshold = t
	return b
}

func (b *Builder) EntityType(t string) *Builder {
	b.q.EntityTypes = append(b.q.EntityTypes, t)
	return b
}

func (b *Builder) Tag(t string) *Builder {
	b.q.Tags = append(b.q.Tags, t)
	return b
}

func (b *Builder) TagMatchMode(mode TagMatchMode) *Builder {
	b.q.TagMatchMode = mode
	return b
}

func (b *Builder) InProject(projectID string) *Builder {
	b.q.Scope = SingleScope(projectID)
	return b
}

func (b *Builder) InProjects(projectIDs []string) *Builder {
	b.q.Scope = MultipleScope(projectIDs)
	return b
}

func (b *Builder) InAllProjects() *Builder {
	b.q.Scope = AllScope()
	return b
}

func (b *Builder) Page(page, pageSize int) *Builder {
	p, err := NewPagination(page, pageSize)
	if err != nil {
		return b.fail(err)
	}
	b.q.Pagination = p
	return b
}

func (b *Builder) IncludeRelations(include bool) *Builder {
	b.q.IncludeRelations = include
	return b
}

// Build validates cross-field constraints and returns the normalized query.
func (b *Builder) Build() (Search, error) {
	if b.err != nil {
		return Search{}, b.err
	}
	switch b.q.Mode {
	case ModeExact, ModeFuzzy, ModeFullText, ModeHybrid:
		if b.q.Text == "" {
			return Search{}, parsniperr.InvalidInput("query.build", fmt.Errorf("text mode %q requires non-empty text", b.q.Mode))
		}
	case ModeVector:
		if len(b.q.QueryEmbedding) == 0 {
			return Search{}, parsniperr.InvalidInput("query.build", fmt.Errorf("vector mode requires a non-empty query embedding"))
		}
	}
	return b.q, nil
}

// Traversal aggregates the inputs to a bounded graph walk.
type Traversal struct {
	Start         string
	Target        string // optional, for path queries
	MaxDepth      int
	Direction     graph.Direction
	EntityTypes   []string
	RelationTypes []string
	Weighted      bool
}

// NewTraversal validates and normalizes a TraversalQuery.
func NewTraversal(start string, maxDepth int, direction graph.Direction) (Traversal, error) {
	if start == "" {
		return Traversal{}, parsniperr.InvalidInput("traversal.build", fmt.Errorf("start entity name cannot be empty"))
	}
	if err := graph.ValidateTraversalDepth(maxDepth); err != nil {
		return Traversal{}, err
	}
	if maxDepth < 0 {
		return Traversal{}, parsniperr.InvalidInput("traversal.build", fmt.Errorf("max_depth must be >= 0"))
	}
	switch direction {
	case graph.DirectionOutgoing, graph.DirectionIncoming, graph.DirectionBoth:
	default:
		return Traversal{}, parsniperr.InvalidInput("traversal.build", fmt.Errorf("unknown direction %q", direction))
	}
	return Traversal{Start: start, MaxDepth: maxDepth, Direction: direction}, nil
}
