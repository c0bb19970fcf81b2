package vectorstore

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/westonopentrain/capsule-match/pkg/models"
)

// MemoryStore is a brute-force, in-memory vector store using cosine
// similarity. It is registered as the zero-config fallback driver and
// backs every unit and integration test in this repository; it holds
// no capacity cap because test/dev pools never approach what a real
// vector database would need to shard for.
type MemoryStore struct {
	mu      sync.RWMutex
	byNS    map[string]map[string]Record // namespace -> id -> record
}

// NewMemoryStore creates an empty in-memory vector store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byNS: make(map[string]map[string]Record)}
}

func (s *MemoryStore) Kind() string { return "memory" }

func (s *MemoryStore) Upsert(_ context.Context, namespace string, vectors []Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ns, ok := s.byNS[namespace]
	if !ok {
		ns = make(map[string]Record)
		s.byNS[namespace] = ns
	}
	for _, v := range vectors {
		cp := v
		cp.Vector = append([]float64(nil), v.Vector...)
		cp.Metadata = cloneMetadata(v.Metadata)
		ns[v.ID] = cp
	}
	return nil
}

func (s *MemoryStore) Fetch(_ context.Context, namespace string, ids []string) (map[string]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]Record)
	ns, ok := s.byNS[namespace]
	if !ok {
		return out, nil
	}
	for _, id := range ids {
		if rec, ok := ns[id]; ok {
			out[id] = rec
		}
	}
	return out, nil
}

func (s *MemoryStore) QueryByVector(_ context.Context, req models.QueryRequest) ([]QueryResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type scored struct {
		rec   Record
		score float64
	}
	var candidates []scored

	ns, ok := s.byNS[req.Namespace]
	if !ok {
		return nil, nil
	}
	for _, rec := range ns {
		if len(rec.Vector) != len(req.Vector) {
			continue
		}
		if !matchesFilter(rec.Metadata, req.Filter) {
			continue
		}
		candidates = append(candidates, scored{rec: rec, score: cosineSimilarity(req.Vector, rec.Vector)})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].rec.ID < candidates[j].rec.ID
	})

	topK := req.TopK
	if topK <= 0 || topK > len(candidates) {
		topK = len(candidates)
	}

	results := make([]QueryResult, topK)
	for i := 0; i < topK; i++ {
		results[i] = QueryResult{ID: candidates[i].rec.ID, Score: candidates[i].score, Metadata: candidates[i].rec.Metadata}
	}
	return results, nil
}

func (s *MemoryStore) UpdateMetadata(_ context.Context, namespace string, ids []string, patch map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ns, ok := s.byNS[namespace]
	if !ok {
		return nil
	}
	for _, id := range ids {
		rec, ok := ns[id]
		if !ok {
			continue
		}
		if rec.Metadata == nil {
			rec.Metadata = map[string]interface{}{}
		}
		for k, v := range patch {
			rec.Metadata[k] = v
		}
		ns[id] = rec
	}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, namespace string, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ns, ok := s.byNS[namespace]
	if !ok {
		return nil
	}
	for _, id := range ids {
		delete(ns, id)
	}
	return nil
}

func (s *MemoryStore) HealthCheck(_ context.Context) error {
	return nil
}

// matchesFilter evaluates the boolean-AND filter expression from §3.1:
// a []string value is an "$in" match, any other scalar is an equality
// match, and keys absent from filter are unconstrained.
func matchesFilter(metadata map[string]interface{}, filter models.QueryFilter) bool {
	for k, want := range filter {
		got, present := metadata[k]
		switch w := want.(type) {
		case []string:
			if len(w) == 0 {
				continue
			}
			if !present {
				return false
			}
			if !containsValue(w, got) {
				return false
			}
		default:
			if !present || got != want {
				return false
			}
		}
	}
	return true
}

// containsValue reports whether got overlaps set, case-insensitively.
// got may be a single scalar (e.g. a user's country) or itself a list
// (e.g. a user's languages) — either way, a match is any element of got
// equal to any element of set.
func containsValue(set []string, got interface{}) bool {
	for _, gotStr := range valuesOf(got) {
		for _, s := range set {
			if strings.EqualFold(s, gotStr) {
				return true
			}
		}
	}
	return false
}

func valuesOf(v interface{}) []string {
	switch vv := v.(type) {
	case string:
		return []string{vv}
	case []string:
		return vv
	case []interface{}:
		out := make([]string, 0, len(vv))
		for _, item := range vv {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func cloneMetadata(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	cp := make(map[string]interface{}, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}

func cosineSimilarity(a, b []float64) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
