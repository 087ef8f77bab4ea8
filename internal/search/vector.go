package search

import (
	"context"
	"math"

	"github.com/parsnip-dev/parsnip/internal/graph"
	"github.com/parsnip-dev/parsnip/internal/query"
)

// VectorEngine ranks entities by cosine similarity between their stored
// embedding and the query embedding: stateless, threshold-gated, entities
// without an embedding are skipped rather than scored zero.
type VectorEngine struct{}

func (VectorEngine) Search(ctx context.Context, q query.Search, entities []*graph.Entity) ([]Hit, error) {
	allProjectIDs := collectProjectIDs(entities)
	threshold := q.SimilarityThreshold
	if threshold == 0 {
		threshold = query.DefaultSimilarity
	}

	hits := make([]Hit, 0, len(entities))
	for _, e := range entities {
		if !matchesFilters(e, q, allProjectIDs) {
			continue
		}
		if len(e.Embedding) == 0 || len(q.QueryEmbedding) == 0 {
			continue
		}
		sim := cosineSimilarity(q.QueryEmbedding, e.Embedding)
		if sim < threshold {
			continue
		}
		hits = append(hits, Hit{Entity: e, Score: float64(sim)})
	}
	return hits, nil
}

func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
