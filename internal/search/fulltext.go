package search

import (
	"context"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/parsnip-dev/parsnip/internal/graph"
	"github.com/parsnip-dev/parsnip/internal/parsniperr"
	"github.com/parsnip-dev/parsnip/internal/parsniplog"
	"github.com/parsnip-dev/parsnip/internal/query"
)

var ftlog = parsniplog.New("search/fulltext")

// BM25 tuning constants (Okapi BM25 defaults).
const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

// On-disk layout under the index directory.
const (
	snapshotFile = "fulltext.json"
	dirtyFile    = "fulltext.dirty"
)

type docEntry struct {
	entity *graph.Entity
	terms  map[string]int
	length int
}

// snapshot is the persisted form of the index: the source documents only.
// Postings are cheap to derive, so they are rebuilt on load rather than
// serialized.
type snapshot struct {
	Entities []*graph.Entity `json:"entities"`
}

// FullTextEngine is a BM25 inverted index over one document per entity
// (name+type+observations+tags), kept current by IndexEntity/RemoveEntity
// write hooks. With a directory configured the index is persisted there
// under a dirty-marker protocol: the marker is written before each
// snapshot and removed only after the snapshot lands, so a crash or write
// failure in between leaves the marker behind and the next open rebuilds
// from the primary store instead of trusting a stale snapshot. Queries keep
// working from memory in the interim. Rebuild discards and rescans, with
// singleflight collapsing concurrent rebuild storms into one pass.
type FullTextEngine struct {
	mu           sync.RWMutex
	dir          string // "" = memory-only
	docs         map[string]*docEntry
	postings     map[string]map[string]int
	totalLen     int
	needsRebuild bool
	group        singleflight.Group
}

// NewFullTextEngine constructs a memory-only index; Rebuild or IndexEntity
// populates it. Used by tests and throwaway stores.
func NewFullTextEngine() *FullTextEngine {
	return &FullTextEngine{
		docs:     map[string]*docEntry{},
		postings: map[string]map[string]int{},
	}
}

// OpenFullTextEngine opens (or creates) a persisted index rooted at dir.
// A missing, undecodable, or dirty-marked snapshot is not an error: the
// index comes up empty with NeedsRebuild set, and the caller rescans the
// primary store.
func OpenFullTextEngine(dir string) (*FullTextEngine, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, parsniperr.Storage("fulltext.open", err)
	}
	f := NewFullTextEngine()
	f.dir = dir
	f.loadSnapshot()
	return f, nil
}

func (f *FullTextEngine) snapshotPath() string { return filepath.Join(f.dir, snapshotFile) }
func (f *FullTextEngine) dirtyPath() string    { return filepath.Join(f.dir, dirtyFile) }

func (f *FullTextEngine) loadSnapshot() {
	if _, err := os.Stat(f.dirtyPath()); err == nil {
		ftlog.Warn("index at %s marked dirty, scheduling rebuild", f.dir)
		f.needsRebuild = true
		return
	}
	data, err := os.ReadFile(f.snapshotPath())
	if err != nil {
		f.needsRebuild = true
		return
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		ftlog.Warn("index snapshot at %s is corrupt, scheduling rebuild: %v", f.dir, err)
		f.needsRebuild = true
		return
	}
	f.mu.Lock()
	for _, e := range snap.Entities {
		f.addLocked(e)
	}
	f.mu.Unlock()
}

// NeedsRebuild reports whether the persisted snapshot could not be trusted
// at open time; the owner resolves it by calling Rebuild with the primary
// store's entities.
func (f *FullTextEngine) NeedsRebuild() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.needsRebuild
}

// persist snapshots the index to disk under the dirty-marker protocol. A
// failure at any step leaves the marker in place; the in-memory index stays
// authoritative until the next open.
func (f *FullTextEngine) persist() {
	if f.dir == "" {
		return
	}
	if err := os.WriteFile(f.dirtyPath(), nil, 0o600); err != nil {
		ftlog.Warn("cannot write dirty marker at %s: %v", f.dir, err)
		return
	}
	if err := f.saveSnapshot(); err != nil {
		ftlog.Warn("index snapshot write failed, leaving %s marked dirty: %v", f.dir, err)
		return
	}
	_ = os.Remove(f.dirtyPath())
}

func (f *FullTextEngine) saveSnapshot() error {
	f.mu.RLock()
	snap := snapshot{Entities: make([]*graph.Entity, 0, len(f.docs))}
	for _, d := range f.docs {
		snap.Entities = append(snap.Entities, d.entity)
	}
	f.mu.RUnlock()

	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	tmp := f.snapshotPath() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, f.snapshotPath())
}

// Close flushes a final snapshot and releases the index. An index still
// awaiting a rebuild keeps its dirty marker so the next open knows.
func (f *FullTextEngine) Close() error {
	if f.dir == "" || f.NeedsRebuild() {
		return nil
	}
	if err := f.saveSnapshot(); err != nil {
		return parsniperr.Storage("fulltext.close", err)
	}
	_ = os.Remove(f.dirtyPath())
	return nil
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
}

func (f *FullTextEngine) IndexEntity(e *graph.Entity) {
	f.mu.Lock()
	f.removeLocked(e.ID)
	f.addLocked(e)
	f.mu.Unlock()
	f.persist()
}

func (f *FullTextEngine) RemoveEntity(entityID string) {
	f.mu.Lock()
	f.removeLocked(entityID)
	f.mu.Unlock()
	f.persist()
}

// Rebuild discards the index and reindexes entities from scratch,
// deduplicating concurrent callers so a burst of writes triggers one
// rebuild instead of many redundant ones.
func (f *FullTextEngine) Rebuild(entities []*graph.Entity) {
	_, _, _ = f.group.Do("rebuild", func() (any, error) {
		f.mu.Lock()
		f.docs = map[string]*docEntry{}
		f.postings = map[string]map[string]int{}
		f.totalLen = 0
		for _, e := range entities {
			f.removeLocked(e.ID)
			f.addLocked(e)
		}
		f.needsRebuild = false
		f.mu.Unlock()
		f.persist()
		return nil, nil
	})
}

func (f *FullTextEngine) addLocked(e *graph.Entity) {
	tokens := tokenize(searchableText(e))
	terms := make(map[string]int, len(tokens))
	for _, t := range tokens {
		terms[t]++
	}
	f.docs[e.ID] = &docEntry{entity: e, terms: terms, length: len(tokens)}
	f.totalLen += len(tokens)
	for term, freq := range terms {
		bucket, ok := f.postings[term]
		if !ok {
			bucket = map[string]int{}
			f.postings[term] = bucket
		}
		bucket[e.ID] = freq
	}
}

func (f *FullTextEngine) removeLocked(entityID string) {
	doc, ok := f.docs[entityID]
	if !ok {
		return
	}
	for term := range doc.terms {
		bucket := f.postings[term]
		delete(bucket, entityID)
		if len(bucket) == 0 {
			delete(f.postings, term)
		}
	}
	f.totalLen -= doc.length
	delete(f.docs, entityID)
}

// Search implements Engine. If the index is empty but entities were passed
// in (the engine layer's lazy create-on-first-use path), it builds the
// index from them first.
func (f *FullTextEngine) Search(ctx context.Context, q query.Search, entities []*graph.Entity) ([]Hit, error) {
	f.mu.RLock()
	empty := len(f.docs) == 0
	f.mu.RUnlock()
	if empty && len(entities) > 0 {
		f.Rebuild(entities)
	}

	terms := tokenize(q.Text)
	if len(terms) == 0 {
		return nil, nil
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	n := float64(len(f.docs))
	if n == 0 {
		return nil, nil
	}
	avgLen := float64(f.totalLen) / n

	allProjectIDs := make([]string, 0, len(f.docs))
	seenProj := map[string]bool{}
	for _, d := range f.docs {
		if !seenProj[d.entity.ProjectID] {
			seenProj[d.entity.ProjectID] = true
			allProjectIDs = append(allProjectIDs, d.entity.ProjectID)
		}
	}

	scores := map[string]float64{}
	for _, term := range terms {
		bucket, ok := f.postings[term]
		if !ok {
			continue
		}
		df := float64(len(bucket))
		idf := math.Log(1 + (n-df+0.5)/(df+0.5))
		for entityID, freq := range bucket {
			doc := f.docs[entityID]
			tf := float64(freq)
			denom := tf + bm25K1*(1-bm25B+bm25B*float64(doc.length)/avgLen)
			scores[entityID] += idf * (tf * (bm25K1 + 1)) / denom
		}
	}

	var maxScore float64
	for _, s := range scores {
		if s > maxScore {
			maxScore = s
		}
	}

	hits := make([]Hit, 0, len(scores))
	for entityID, raw := range scores {
		doc := f.docs[entityID]
		if !matchesFilters(doc.entity, q, allProjectIDs) {
			continue
		}
		norm := raw
		if maxScore > 0 {
			norm = raw / maxScore // normalize into [0,1] so hybrid fusion is meaningful
		}
		hits = append(hits, Hit{Entity: doc.entity, Score: norm})
	}
	return hits, nil
}
