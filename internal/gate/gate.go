// Package gate implements the subject-matter semantic gate (C4): for
// specialized jobs, decides whether a candidate's subject codes are
// close enough to the job's required codes to pass.
package gate

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/westonopentrain/capsule-match/internal/embed"
	"github.com/westonopentrain/capsule-match/pkg/models"
)

// thresholdByStrictness is the cosine-similarity floor per strictness
// dial (§4.4). moderate is the default when strictness is unset.
var thresholdByStrictness = map[models.Strictness]float64{
	models.StrictnessStrict:   0.80,
	models.StrictnessModerate: 0.70,
	models.StrictnessLenient:  0.60,
}

// Threshold returns the cosine floor for strictness, defaulting to moderate.
func Threshold(strictness models.Strictness) float64 {
	if t, ok := thresholdByStrictness[strictness]; ok {
		return t
	}
	return thresholdByStrictness[models.StrictnessModerate]
}

// Result is the gate's verdict for one (userCodes, jobCodes) evaluation.
type Result struct {
	Passed         bool
	BestSimilarity float64
	BestPair       [2]string
	FilterReason   *models.FilterReason
	ThresholdUsed  float64
}

// Cache is the process-scoped, grow-only specialty→vector cache (§3, §9).
// It is read-mostly and concurrency-safe; single-flight collapses
// duplicate concurrent embeds for the same specialty key.
type Cache struct {
	embedder embed.Embedder

	mu      sync.RWMutex
	vectors map[string][]float64

	group singleflight.Group
}

// NewCache creates an empty specialty-embedding cache backed by embedder.
func NewCache(embedder embed.Embedder) *Cache {
	return &Cache{
		embedder: embedder,
		vectors:  make(map[string][]float64),
	}
}

// Stats reports the cache's current size for the admin inspection endpoint.
type Stats struct {
	Size int
}

func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Stats{Size: len(c.vectors)}
}

// vectorFor returns the cached embedding for specialty, embedding it on
// first access. Concurrent callers for the same key share one embed call.
func (c *Cache) vectorFor(ctx context.Context, specialty string) ([]float64, error) {
	key := strings.ToLower(strings.TrimSpace(specialty))

	c.mu.RLock()
	if v, ok := c.vectors[key]; ok {
		c.mu.RUnlock()
		return v, nil
	}
	c.mu.RUnlock()

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		c.mu.RLock()
		if v, ok := c.vectors[key]; ok {
			c.mu.RUnlock()
			return v, nil
		}
		c.mu.RUnlock()

		prompt := fmt.Sprintf("subject matter expertise: %s", key)
		vec, err := embed.EmbedOne(ctx, c.embedder, prompt)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		// First writer wins on contention (§5): don't overwrite an entry
		// another goroutine already installed while we were embedding.
		if existing, ok := c.vectors[key]; ok {
			c.mu.Unlock()
			return existing, nil
		}
		c.vectors[key] = vec
		c.mu.Unlock()
		return vec, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]float64), nil
}

// Evaluate runs the gate algorithm (§4.4) for one candidate against one job.
func (c *Cache) Evaluate(ctx context.Context, userCodes, jobCodes, acceptableCodes []string, strictness models.Strictness) (Result, error) {
	threshold := Threshold(strictness)

	if len(userCodes) == 0 {
		reason := models.FilterNoSubjectMatterCodes
		return Result{Passed: false, FilterReason: &reason, ThresholdUsed: threshold}, nil
	}

	if hasAcceptableMatch(userCodes, acceptableCodes) {
		return Result{Passed: true, ThresholdUsed: threshold}, nil
	}

	userSpecialties := specialtiesOf(userCodes)
	jobSpecialties := specialtiesOf(jobCodes)

	var bestSim float64 = -1
	var bestPair [2]string
	for _, js := range jobSpecialties {
		jobVec, err := c.vectorFor(ctx, js)
		if err != nil {
			return Result{}, err
		}
		for _, us := range userSpecialties {
			userVec, err := c.vectorFor(ctx, us)
			if err != nil {
				return Result{}, err
			}
			sim := cosine(jobVec, userVec)
			if sim > bestSim {
				bestSim = sim
				bestPair = [2]string{js, us}
			}
		}
	}
	if bestSim < 0 {
		bestSim = 0
	}

	if bestSim >= threshold {
		return Result{Passed: true, BestSimilarity: bestSim, BestPair: bestPair, ThresholdUsed: threshold}, nil
	}

	var reason models.FilterReason
	if bestSim > 0 {
		reason = models.FilterLowSimilarity
	} else {
		reason = models.FilterSubjectMatterMismatch
	}
	return Result{Passed: false, BestSimilarity: bestSim, BestPair: bestPair, FilterReason: &reason, ThresholdUsed: threshold}, nil
}

// hasAcceptableMatch checks userCodes ∩ acceptableCodes with
// case-insensitive exact matching (§4.4 step 1).
func hasAcceptableMatch(userCodes, acceptableCodes []string) bool {
	if len(acceptableCodes) == 0 {
		return false
	}
	accepted := make(map[string]bool, len(acceptableCodes))
	for _, c := range acceptableCodes {
		accepted[strings.ToLower(strings.TrimSpace(c))] = true
	}
	for _, c := range userCodes {
		if accepted[strings.ToLower(strings.TrimSpace(c))] {
			return true
		}
	}
	return false
}

// specialtiesOf extracts the specialty half of each "domain:specialty" code.
func specialtiesOf(codes []string) []string {
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		parts := strings.SplitN(c, ":", 2)
		if len(parts) == 2 {
			out = append(out, parts[1])
		} else {
			out = append(out, c)
		}
	}
	return out
}

func cosine(a, b []float64) float64 {
	var dot, normA, normB float64
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
