package matchpipeline

import (
	"context"

	"github.com/westonopentrain/capsule-match/internal/scoring"
	"github.com/westonopentrain/capsule-match/internal/vectorstore"
	"github.com/westonopentrain/capsule-match/pkg/models"
)

// candidateTopK is the retrieval breadth for the domain channel (§4.6
// step 4) — generous enough that the task channel's per-user lookups
// never starve a true match.
const candidateTopK = 10000

// domainCandidates runs the domain-channel retrieval (§4.6 step 4):
// every user vector matching type=user, section=domain, optionally
// filtered by country/language membership.
func domainCandidates(ctx context.Context, store vectorstore.Store, namespace string, domainVec []float64, countries, languages []string) ([]vectorstore.QueryResult, error) {
	filter := models.QueryFilter{
		"type":    string(models.EntityUser),
		"section": string(models.SectionDomain),
	}
	if len(countries) > 0 {
		filter["country"] = countries
	}
	if len(languages) > 0 {
		filter["languages"] = languages
	}

	return store.QueryByVector(ctx, models.QueryRequest{
		Vector:    domainVec,
		TopK:      candidateTopK,
		Filter:    filter,
		Namespace: namespace,
	})
}

// taskScoresByUser enriches a set of candidate user ids with their task
// channel score against taskVec (§4.6 step 6), querying in fixed-size
// chunks so the $in filter never exceeds the store's practical limit.
func taskScoresByUser(ctx context.Context, store vectorstore.Store, namespace string, userIDs []string, taskVec []float64) (map[string]float64, error) {
	out := make(map[string]float64, len(userIDs))
	for _, chunk := range scoring.ChunkStrings(userIDs, scoring.CandidateChunkSize) {
		res, err := store.QueryByVector(ctx, models.QueryRequest{
			Vector: taskVec,
			TopK:   len(chunk),
			Filter: models.QueryFilter{
				"type":    string(models.EntityUser),
				"section": string(models.SectionTask),
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

func stringVal(m map[string]interface{}, key string) string {
	v, ok := m[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

func stringSliceVal(m map[string]interface{}, key string) []string {
	v, ok := m[key]
	if !ok {
		return nil
	}
	switch vv := v.(type) {
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
