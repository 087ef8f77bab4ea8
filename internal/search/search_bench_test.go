package search

import (
	"context"
	"strconv"
	"testing"

	"github.com/parsnip-dev/parsnip/internal/graph"
	"github.com/parsnip-dev/parsnip/internal/query"
)

func seedEntities(b *testing.B, n int) []*graph.Entity {
	b.Helper()
	out := make([]*graph.Entity, 0, n)
	for i := 0; i < n; i++ {
		e := graph.NewEntity("bench", "e_"+strconv.Itoa(i), "t")
		e.AddObservation("lorem ipsum")
		e.AddObservation("dolor sit amet")
		if i%2 == 0 {
			e.AddObservation("senior engineer")
		}
		out = append(out, e)
	}
	return out
}

func benchQuery(b *testing.B, mode query.SearchMode) query.Search {
	b.Helper()
	q, err := query.NewBuilder().Text("engineer").Mode(mode).FuzzyThreshold(0.3).Build()
	if err != nil {
		b.Fatal(err)
	}
	return q
}

func BenchmarkExactSearch(b *testing.B) {
	ctx := context.Background()
	entities := seedEntities(b, 2000)
	q := benchQuery(b, query.ModeExact)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := (ExactEngine{}).Search(ctx, q, entities); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkFuzzySearch(b *testing.B) {
	ctx := context.Background()
	entities := seedEntities(b, 2000)
	q := benchQuery(b, query.ModeFuzzy)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := (FuzzyEngine{}).Search(ctx, q, entities); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkFullTextSearch(b *testing.B) {
	ctx := context.Background()
	entities := seedEntities(b, 2000)
	ft := NewFullTextEngine()
	ft.Rebuild(entities)
	q := benchQuery(b, query.ModeFullText)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := ft.Search(ctx, q, entities); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkHybridSearch(b *testing.B) {
	ctx := context.Background()
	entities := seedEntities(b, 2000)
	ft := NewFullTextEngine()
	ft.Rebuild(entities)
	h := NewHybridEngine(FuzzyEngine{}, ft)
	q := benchQuery(b, query.ModeHybrid)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := h.Search(ctx, q, entities); err != nil {
			b.Fatal(err)
		}
	}
}
