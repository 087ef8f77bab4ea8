package search

import (
	"context"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/parsnip-dev/parsnip/internal/graph"
	"github.com/parsnip-dev/parsnip/internal/query"
)

// FusionStrategy selects how HybridEngine combines fuzzy and full-text
// scores.
type FusionStrategy string

const (
	// FusionWeightedSum combines each engine's normalized [0,1] score by a
	// fixed weight (default 0.5/0.5), boosting entities found by both
	// engines. The default fusion.
	FusionWeightedSum FusionStrategy = "weighted_sum"

	// FusionRRF is Reciprocal Rank Fusion (1/(k+rank) per engine, summed),
	// an opt-in alternate selected by SEARCH_FUSION=rrf.
	FusionRRF FusionStrategy = "rrf"
)

// HybridEngine fuses FuzzyEngine and FullTextEngine results.
type HybridEngine struct {
	fuzzy    Engine
	fulltext *FullTextEngine

	Fusion         FusionStrategy
	FuzzyWeight    float64
	FullTextWeight float64
	RRFK           float64
}

// NewHybridEngine wires the default weighted-sum fusion (0.5/0.5), honoring
// SEARCH_FUSION/HYBRID_FUZZY_WEIGHT/HYBRID_FULLTEXT_WEIGHT/HYBRID_RRF_K env
// overrides so search-quality experiments don't need a rebuild.
func NewHybridEngine(fuzzy Engine, fulltext *FullTextEngine) *HybridEngine {
	h := &HybridEngine{
		fuzzy:          fuzzy,
		fulltext:       fulltext,
		Fusion:         FusionWeightedSum,
		FuzzyWeight:    0.5,
		FullTextWeight: 0.5,
		RRFK:           60,
	}
	if strings.EqualFold(os.Getenv("SEARCH_FUSION"), "rrf") {
		h.Fusion = FusionRRF
	}
	if v, err := strconv.ParseFloat(os.Getenv("HYBRID_FUZZY_WEIGHT"), 64); err == nil {
		h.FuzzyWeight = v
	}
	if v, err := strconv.ParseFloat(os.Getenv("HYBRID_FULLTEXT_WEIGHT"), 64); err == nil {
		h.FullTextWeight = v
	}
	if v, err := strconv.ParseFloat(os.Getenv("HYBRID_RRF_K"), 64); err == nil && v > 0 {
		h.RRFK = v
	}
	return h
}

func (h *HybridEngine) Search(ctx context.Context, q query.Search, entities []*graph.Entity) ([]Hit, error) {
	fuzzyHits, err := h.fuzzy.Search(ctx, q, entities)
	if err != nil {
		return nil, err
	}
	fulltextHits, err := h.fulltext.Search(ctx, q, entities)
	if err != nil {
		return nil, err
	}

	if h.Fusion == FusionRRF {
		return fuseRRF(fuzzyHits, fulltextHits, h.RRFK), nil
	}
	return fuseWeightedSum(fuzzyHits, fulltextHits, h.FuzzyWeight, h.FullTextWeight), nil
}

func fuseWeightedSum(a, b []Hit, weightA, weightB float64) []Hit {
	combined := map[string]*Hit{}
	for _, h := range a {
		hit := Hit{Entity: h.Entity, Score: h.Score * weightA}
		combined[h.Entity.ID] = &hit
	}
	for _, h := range b {
		if existing, ok := combined[h.Entity.ID]; ok {
			// Present in both engines: a 1.2x corroboration bump.
			existing.Score = (existing.Score + h.Score*weightB) * 1.2
		} else {
			combined[h.Entity.ID] = &Hit{Entity: h.Entity, Score: h.Score * weightB}
		}
	}
	out := make([]Hit, 0, len(combined))
	for _, h := range combined {
		out = append(out, *h)
	}
	return out
}

func fuseRRF(a, b []Hit, k float64) []Hit {
	sort.SliceStable(a, func(i, j int) bool { return a[i].Score > a[j].Score })
	sort.SliceStable(b, func(i, j int) bool { return b[i].Score > b[j].Score })

	entityByID := map[string]*graph.Entity{}
	rrf := map[string]float64{}
	for i, h := range a {
		entityByID[h.Entity.ID] = h.Entity
		rrf[h.Entity.ID] += 1.0 / (k + float64(i+1))
	}
	for i, h := range b {
		entityByID[h.Entity.ID] = h.Entity
		rrf[h.Entity.ID] += 1.0 / (k + float64(i+1))
	}
	out := make([]Hit, 0, len(rrf))
	for id, score := range rrf {
		out = append(out, Hit{Entity: entityByID[id], Score: score})
	}
	return out
}
