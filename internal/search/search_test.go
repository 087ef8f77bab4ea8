package search

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parsnip-dev/parsnip/internal/graph"
	"github.com/parsnip-dev/parsnip/internal/query"
)

func entity(projectID, name, entityType string, observations ...string) *graph.Entity {
	e := graph.NewEntity(projectID, name, entityType)
	for _, o := range observations {
		e.AddObservation(o)
	}
	return e
}

func mustBuild(t *testing.T, b *query.Builder) query.Search {
	t.Helper()
	q, err := b.Build()
	require.NoError(t, err)
	return q
}

func names(hits []Hit) []string {
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.Entity.Name
	}
	return out
}

func TestExactMatchesNameAndObservations(t *testing.T) {
	ctx := context.Background()
	entities := []*graph.Entity{
		entity("p1", "John_Smith", "person", "Senior engineer at Acme"),
		entity("p1", "Acme_Corp", "company"),
		entity("p1", "Jane_Doe", "person", "Knows john well"),
	}

	q := mustBuild(t, query.NewBuilder().Text("john").Mode(query.ModeExact))
	hits, err := ExactEngine{}.Search(ctx, q, entities)
	require.NoError(t, err)

	// Case-insensitive substring over name and observation contents.
	assert.ElementsMatch(t, []string{"John_Smith", "Jane_Doe"}, names(hits))
	for _, h := range hits {
		text := strings.ToLower(searchableText(h.Entity))
		assert.Contains(t, text, "john")
	}
}

func TestExactRespectsSingleProjectScope(t *testing.T) {
	ctx := context.Background()
	entities := []*graph.Entity{
		entity("p1", "alice", "person", "likes go"),
		entity("p2", "bob", "person", "likes go"),
	}

	q := mustBuild(t, query.NewBuilder().Text("go").Mode(query.ModeExact).InProject("p1"))
	hits, err := ExactEngine{}.Search(ctx, q, entities)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, names(hits))
}

func TestExactEntityTypeFilterIsOR(t *testing.T) {
	ctx := context.Background()
	entities := []*graph.Entity{
		entity("p1", "alice", "person"),
		entity("p1", "acme", "company"),
		entity("p1", "redis", "tool"),
	}

	// Empty text: the filter alone decides membership.
	q := query.Search{Mode: query.ModeExact, Scope: query.AllScope(),
		EntityTypes: []string{"person", "company"}}
	hits, err := ExactEngine{}.Search(ctx, q, entities)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"alice", "acme"}, names(hits))
}

func TestExactTagFilterAnyAndAll(t *testing.T) {
	ctx := context.Background()
	a := entity("p1", "a", "t")
	a.AddTag("x")
	b := entity("p1", "b", "t")
	b.AddTag("x")
	b.AddTag("y")
	c := entity("p1", "c", "t")
	entities := []*graph.Entity{a, b, c}

	anyQ := query.Search{Mode: query.ModeExact, Scope: query.AllScope(),
		Tags: []string{"x", "y"}, TagMatchMode: query.TagMatchAny}
	hits, err := ExactEngine{}.Search(ctx, anyQ, entities)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, names(hits))

	allQ := anyQ
	allQ.TagMatchMode = query.TagMatchAll
	hits, err = ExactEngine{}.Search(ctx, allQ, entities)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, names(hits))
}

func TestFuzzyTransposedQueryMatchesAboveThreshold(t *testing.T) {
	ctx := context.Background()
	entities := []*graph.Entity{entity("p1", "John_Smith", "person")}

	q := mustBuild(t, query.NewBuilder().Text("jonh smth").Mode(query.ModeFuzzy).FuzzyThreshold(0.3))
	hits, err := FuzzyEngine{}.Search(ctx, q, entities)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "John_Smith", hits[0].Entity.Name)
	assert.GreaterOrEqual(t, hits[0].Score, 0.3)

	strict := mustBuild(t, query.NewBuilder().Text("jonh smth").Mode(query.ModeFuzzy).FuzzyThreshold(0.95))
	hits, err = FuzzyEngine{}.Search(ctx, strict, entities)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestFuzzyNoHitBelowThreshold(t *testing.T) {
	ctx := context.Background()
	entities := []*graph.Entity{
		entity("p1", "John_Smith", "person"),
		entity("p1", "Acme_Corp", "company"),
		entity("p1", "Jon", "person"),
	}

	threshold := float32(0.5)
	q := mustBuild(t, query.NewBuilder().Text("jon").Mode(query.ModeFuzzy).FuzzyThreshold(threshold))
	hits, err := FuzzyEngine{}.Search(ctx, q, entities)
	require.NoError(t, err)
	for _, h := range hits {
		assert.GreaterOrEqual(t, h.Score, float64(threshold))
	}
}

func TestFuzzyNonSubsequenceRejected(t *testing.T) {
	_, ok := fuzzyScore("zzz", "john_smith")
	assert.False(t, ok)
}

func TestFuzzyExactTextScoresHighest(t *testing.T) {
	exact, ok := fuzzyScore("john", "john")
	require.True(t, ok)
	spread, ok := fuzzyScore("john", "j_o_h_n_extra_text_here")
	require.True(t, ok)
	assert.Greater(t, exact, spread)
}

func TestFullTextBM25RanksTermFrequency(t *testing.T) {
	ctx := context.Background()
	heavy := entity("p1", "heavy", "doc", "engineer engineer engineer")
	light := entity("p1", "light", "doc", "engineer and a lot of other words diluting the term frequency signal here")
	none := entity("p1", "none", "doc", "gardener")

	ft := NewFullTextEngine()
	q := mustBuild(t, query.NewBuilder().Text("engineer").Mode(query.ModeFullText))
	hits, err := ft.Search(ctx, q, []*graph.Entity{heavy, light, none})
	require.NoError(t, err)

	require.Len(t, hits, 2)
	byName := map[string]float64{}
	for _, h := range hits {
		byName[h.Entity.Name] = h.Score
	}
	assert.Greater(t, byName["heavy"], byName["light"])
	assert.NotContains(t, byName, "none")
}

func TestFullTextIncrementalIndexFollowsWrites(t *testing.T) {
	ctx := context.Background()
	ft := NewFullTextEngine()
	e := entity("p1", "alice", "person", "rust programmer")
	ft.IndexEntity(e)

	q := mustBuild(t, query.NewBuilder().Text("rust").Mode(query.ModeFullText))
	hits, err := ft.Search(ctx, q, nil)
	require.NoError(t, err)
	require.Len(t, hits, 1)

	// Reindex after a content change: old terms must stop matching.
	e2 := e.Clone()
	e2.Observations = []graph.Observation{graph.NewObservation("go programmer")}
	ft.IndexEntity(e2)

	hits, err = ft.Search(ctx, q, nil)
	require.NoError(t, err)
	assert.Empty(t, hits)

	ft.RemoveEntity(e.ID)
	goQ := mustBuild(t, query.NewBuilder().Text("programmer").Mode(query.ModeFullText))
	hits, err = ft.Search(ctx, goQ, nil)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestFullTextRebuildReplacesIndex(t *testing.T) {
	ctx := context.Background()
	ft := NewFullTextEngine()
	ft.IndexEntity(entity("p1", "old", "doc", "obsolete"))

	ft.Rebuild([]*graph.Entity{entity("p1", "new", "doc", "fresh")})

	hits, err := ft.Search(ctx, mustBuild(t, query.NewBuilder().Text("obsolete").Mode(query.ModeFullText)), nil)
	require.NoError(t, err)
	assert.Empty(t, hits)

	hits, err = ft.Search(ctx, mustBuild(t, query.NewBuilder().Text("fresh").Mode(query.ModeFullText)), nil)
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func TestHybridDeduplicatesByEntityID(t *testing.T) {
	ctx := context.Background()
	entities := []*graph.Entity{
		entity("p1", "John_Smith", "person", "engineer"),
		entity("p1", "Acme_Corp", "company", "hires engineers"),
	}

	h := NewHybridEngine(FuzzyEngine{}, NewFullTextEngine())
	q := mustBuild(t, query.NewBuilder().Text("engineer").Mode(query.ModeHybrid).FuzzyThreshold(0))
	hits, err := h.Search(ctx, q, entities)
	require.NoError(t, err)

	seen := map[string]bool{}
	for _, hit := range hits {
		require.False(t, seen[hit.Entity.ID], "entity %s returned twice", hit.Entity.Name)
		seen[hit.Entity.ID] = true
	}
}

func TestHybridWeightedSumBoostsBothEngineMatches(t *testing.T) {
	a := entity("p1", "a", "t")
	b := entity("p1", "b", "t")

	fused := fuseWeightedSum(
		[]Hit{{Entity: a, Score: 0.8}, {Entity: b, Score: 0.8}},
		[]Hit{{Entity: a, Score: 0.6}},
		0.5, 0.5,
	)
	byName := map[string]float64{}
	for _, h := range fused {
		byName[h.Entity.Name] = h.Score
	}
	// a matched both engines: (0.8*0.5 + 0.6*0.5) * 1.2; b only fuzzy: 0.8*0.5.
	assert.InDelta(t, 0.84, byName["a"], 1e-9)
	assert.InDelta(t, 0.4, byName["b"], 1e-9)
	assert.Greater(t, byName["a"], byName["b"])
}

func TestHybridRRFFusion(t *testing.T) {
	a := entity("p1", "a", "t")
	b := entity("p1", "b", "t")

	fused := fuseRRF(
		[]Hit{{Entity: a, Score: 0.9}, {Entity: b, Score: 0.5}},
		[]Hit{{Entity: a, Score: 0.7}},
		60,
	)
	byName := map[string]float64{}
	for _, h := range fused {
		byName[h.Entity.Name] = h.Score
	}
	assert.InDelta(t, 1.0/61+1.0/61, byName["a"], 1e-9)
	assert.InDelta(t, 1.0/62, byName["b"], 1e-9)
}

func TestVectorCosineOrderingAndThreshold(t *testing.T) {
	ctx := context.Background()
	aligned := entity("p1", "aligned", "t")
	aligned.Embedding = []float32{1, 0, 0}
	oblique := entity("p1", "oblique", "t")
	oblique.Embedding = []float32{1, 1, 0}
	orthogonal := entity("p1", "orthogonal", "t")
	orthogonal.Embedding = []float32{0, 0, 1}
	unembedded := entity("p1", "unembedded", "t")

	q := mustBuild(t, query.NewBuilder().Mode(query.ModeVector).
		Embedding([]float32{1, 0, 0}).SimilarityThreshold(0.5))
	hits, err := VectorEngine{}.Search(ctx, q, []*graph.Entity{aligned, oblique, orthogonal, unembedded})
	require.NoError(t, err)

	require.Len(t, hits, 2)
	byName := map[string]float64{}
	for _, h := range hits {
		byName[h.Entity.Name] = h.Score
	}
	assert.InDelta(t, 1.0, byName["aligned"], 1e-6)
	assert.InDelta(t, 0.7071, byName["oblique"], 1e-3)
}

func TestCosineSimilarityEdgeCases(t *testing.T) {
	assert.Equal(t, float32(0), cosineSimilarity([]float32{1, 2}, []float32{1, 2, 3}), "length mismatch scores zero")
	assert.Equal(t, float32(0), cosineSimilarity([]float32{0, 0}, []float32{1, 1}), "zero vector scores zero")
	assert.InDelta(t, float32(-1), cosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-6)
}

func TestDispatcherPaginationUnionDisjoint(t *testing.T) {
	ctx := context.Background()
	var entities []*graph.Entity
	for i := 0; i < 10; i++ {
		entities = append(entities, entity("p1", fmt.Sprintf("eng_%02d", i), "person", "works as an engineer"))
	}
	for i := 0; i < 10; i++ {
		entities = append(entities, entity("p1", fmt.Sprintf("chef_%02d", i), "person", "works as a chef"))
	}

	d := NewDispatcher(nil)
	seen := map[string]bool{}
	for page := 0; page < 2; page++ {
		q := mustBuild(t, query.NewBuilder().Text("engineer").Mode(query.ModeFullText).Page(page, 5))
		hits, info, err := d.Search(ctx, q, entities)
		require.NoError(t, err)
		require.Len(t, hits, 5)
		assert.Equal(t, 10, info.TotalCount)
		for _, h := range hits {
			require.False(t, seen[h.Entity.Name], "pages must be disjoint")
			seen[h.Entity.Name] = true
		}
	}
	assert.Len(t, seen, 10, "union over pages equals the filtered set")
	for name := range seen {
		assert.True(t, strings.HasPrefix(name, "eng_"))
	}
}

func TestDispatcherSortsByScoreDescending(t *testing.T) {
	ctx := context.Background()
	entities := []*graph.Entity{
		entity("p1", "partial", "t", "an engineer of sorts with many other unrelated words"),
		entity("p1", "engineer", "t", "engineer engineer"),
	}

	d := NewDispatcher(nil)
	q := mustBuild(t, query.NewBuilder().Text("engineer").Mode(query.ModeFuzzy).FuzzyThreshold(0))
	hits, _, err := d.Search(ctx, q, entities)
	require.NoError(t, err)
	for i := 1; i < len(hits); i++ {
		assert.GreaterOrEqual(t, hits[i-1].Score, hits[i].Score)
	}
}

func TestDispatcherRejectsUnknownMode(t *testing.T) {
	ctx := context.Background()
	d := NewDispatcher(nil)
	_, _, err := d.Search(ctx, query.Search{Mode: "telepathy"}, nil)
	require.Error(t, err)
}

func TestSearchableTextJoinsAllFields(t *testing.T) {
	e := entity("p1", "alice", "person", "obs one")
	e.AddTag("friend")
	text := searchableText(e)
	for _, part := range []string{"alice", "person", "obs one", "friend"} {
		assert.Contains(t, text, part)
	}
}

func TestTokenizeLowercasesAndSplitsOnNonAlnum(t *testing.T) {
	assert.Equal(t, []string{"john", "smith", "42"}, tokenize("John_Smith-42!"))
	assert.Empty(t, tokenize("!!!"))
}
