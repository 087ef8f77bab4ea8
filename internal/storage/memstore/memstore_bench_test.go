package memstore

import (
	"context"
	"strconv"
	"testing"

	"github.com/parsnip-dev/parsnip/internal/graph"
)

func seedStore(b *testing.B, n int) *Store {
	b.Helper()
	ctx := context.Background()
	s := New()
	for i := 0; i < n; i++ {
		e := graph.NewEntity("bench", "e_"+strconv.Itoa(i), "t")
		e.AddObservation("lorem ipsum")
		e.AddObservation("dolor sit amet")
		if err := s.PutEntity(ctx, e); err != nil {
			b.Fatalf("PutEntity: %v", err)
		}
	}
	return s
}

func BenchmarkPutEntity(b *testing.B) {
	ctx := context.Background()
	s := New()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		e := graph.NewEntity("bench", "e_"+strconv.Itoa(i), "t")
		if err := s.PutEntity(ctx, e); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkGetEntity(b *testing.B) {
	ctx := context.Background()
	s := seedStore(b, 2000)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := s.GetEntity(ctx, "bench", "e_"+strconv.Itoa(i%2000)); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkListEntities(b *testing.B) {
	ctx := context.Background()
	s := seedStore(b, 2000)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := s.ListEntities(ctx, "bench"); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkRelationsForEntityGlobal(b *testing.B) {
	ctx := context.Background()
	s := seedStore(b, 200)
	hub, err := s.GetEntity(ctx, "bench", "e_0")
	if err != nil {
		b.Fatal(err)
	}
	for i := 1; i < 200; i++ {
		other, err := s.GetEntity(ctx, "bench", "e_"+strconv.Itoa(i))
		if err != nil {
			b.Fatal(err)
		}
		r := graph.NewRelation("bench", "bench", hub.ID, hub.Name, other.ID, other.Name, "r")
		if err := s.PutRelation(ctx, r); err != nil {
			b.Fatal(err)
		}
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := s.RelationsForEntityGlobal(ctx, hub.ID); err != nil {
			b.Fatal(err)
		}
	}
}
