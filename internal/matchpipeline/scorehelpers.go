package matchpipeline

import (
	"context"

	"github.com/westonopentrain/capsule-match/internal/scoring"
	"github.com/westonopentrain/capsule-match/internal/vectorstore"
	"github.com/westonopentrain/capsule-match/pkg/models"
)

// scoresBySectionAndUser queries one channel (domain or task) against vec,
// restricted to the given user ids via an $in filter, chunked so no
// single query exceeds the store's practical candidate-list size. topK
// bounds each chunk's query (§4.8: "topK applied per-chunk query, bounded
// by chunk size"); 0 means unbounded within the chunk.
func scoresBySectionAndUser(ctx context.Context, store vectorstore.Store, namespace string, userIDs []string, vec []float64, section models.Section, topK int) (map[string]float64, error) {
	out := make(map[string]float64, len(userIDs))
	for _, chunk := range scoring.ChunkStrings(userIDs, scoring.CandidateChunkSize) {
		k := len(chunk)
		if topK > 0 && topK < k {
			k = topK
		}
		res, err := store.QueryByVector(ctx, models.QueryRequest{
			Vector: vec,
			TopK:   k,
			Filter: models.QueryFilter{
				"type":    string(models.EntityUser),
				"section": string(section),
				"user_id": chunk,
			},
			Namespace: namespace,
		})
		if err != nil {
			return nil, err
		}
		for _, r := range res {
			uid := stringVal(r.Metadata, "user_id")
			if uid == "" {
				continue
			}
			out[uid] = r.Score
		}
	}
	return out, nil
}

// dedup removes duplicate ids, preserving first-seen order.
func dedup(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// fetchRecords fetches a batch of vector ids in chunks, merging results.
func fetchRecords(ctx context.Context, store vectorstore.Store, namespace string, ids []string) (map[string]vectorstore.Record, error) {
	out := make(map[string]vectorstore.Record, len(ids))
	for _, chunk := range scoring.ChunkStrings(ids, scoring.CandidateChunkSize) {
		recs, err := store.Fetch(ctx, namespace, chunk)
		if err != nil {
			return nil, err
		}
		for id, r := range recs {
			out[id] = r
		}
	}
	return out, nil
}

func dot(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var s float64
	for i := 0; i < n; i++ {
		s += a[i] * b[i]
	}
	return s
}
