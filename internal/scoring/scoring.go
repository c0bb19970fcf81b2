// Package scoring implements the blended scoring engine (C5): weight
// normalization, the blended score, deterministic ranking, auto- and
// pool-adaptive thresholds, and candidate chunking.
package scoring

import (
	"math"
	"sort"

	"github.com/westonopentrain/capsule-match/internal/apperr"
	"github.com/westonopentrain/capsule-match/pkg/models"
)

// EpsilonWeight is the normalization floor for w_d + w_t (§4.5).
const EpsilonWeight = 1e-9

// CandidateChunkSize is the store-limit-driven chunk size for $in
// queries (§4.5, §9 — tunable, not a semantic constant).
const CandidateChunkSize = 500

// NormalizeWeights normalizes unnormalized non-negative (wDomain, wTask)
// by max(wDomain+wTask, ε). Non-finite inputs fail with
// CodeUnprocessableWeights.
func NormalizeWeights(wDomain, wTask float64) (float64, float64, error) {
	if math.IsNaN(wDomain) || math.IsInf(wDomain, 0) || math.IsNaN(wTask) || math.IsInf(wTask, 0) {
		return 0, 0, apperr.New(apperr.CodeUnprocessableWeights, "weights must be finite")
	}
	if wDomain < 0 || wTask < 0 {
		return 0, 0, apperr.New(apperr.CodeUnprocessableWeights, "weights must be non-negative")
	}
	denom := math.Max(wDomain+wTask, EpsilonWeight)
	return wDomain / denom, wTask / denom, nil
}

// Blend computes the final blended score: wd*sDomain + wt*sTask.
func Blend(wDomain, wTask, sDomain, sTask float64) float64 {
	return wDomain*sDomain + wTask*sTask
}

// Round6 rounds a score to six decimal places, the precision used for
// every score returned to clients or persisted (§4.5).
func Round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}

// ScoredUser is one scored candidate, with optional missing-vector markers.
type ScoredUser struct {
	UserID        string   `json:"user_id"`
	SDomain       *float64 `json:"s_domain,omitempty"`
	STask         *float64 `json:"s_task,omitempty"`
	Final         float64  `json:"final"`
	Rank          int      `json:"rank"`
	MissingDomain bool     `json:"missing_domain,omitempty"`
	MissingTask   bool     `json:"missing_task,omitempty"`
}

// ScoredJob is the reverse-direction counterpart for ScoreJobsForUser.
type ScoredJob struct {
	JobID   string   `json:"job_id"`
	SDomain *float64 `json:"s_domain,omitempty"`
	STask   *float64 `json:"s_task,omitempty"`
	Final   float64  `json:"final"`
	Rank    int      `json:"rank"`
}

// Rank sorts users descending by Final, tie-breaking by descending
// SDomain (missing treated as -inf) then ascending UserID, and assigns
// 1-based dense ranks. Mutates and returns the input slice.
func Rank(users []ScoredUser) []ScoredUser {
	sort.SliceStable(users, func(i, j int) bool {
		if users[i].Final != users[j].Final {
			return users[i].Final > users[j].Final
		}
		di, dj := domainOrNegInf(users[i].SDomain), domainOrNegInf(users[j].SDomain)
		if di != dj {
			return di > dj
		}
		return users[i].UserID < users[j].UserID
	})
	assignDenseRanks(users)
	return users
}

func assignDenseRanks(users []ScoredUser) {
	rank := 0
	var prevFinal float64
	var prevDomain float64
	havePrev := false
	for i := range users {
		d := domainOrNegInf(users[i].SDomain)
		if !havePrev || users[i].Final != prevFinal || d != prevDomain {
			rank++
			prevFinal = users[i].Final
			prevDomain = d
			havePrev = true
		}
		users[i].Rank = rank
	}
}

func domainOrNegInf(v *float64) float64 {
	if v == nil {
		return math.Inf(-1)
	}
	return *v
}

// RankJobs sorts jobs descending by Final, tie-breaking by descending
// SDomain then descending JobID ("reverse mode" per §4.5), dense-ranked.
func RankJobs(jobs []ScoredJob) []ScoredJob {
	sort.SliceStable(jobs, func(i, j int) bool {
		if jobs[i].Final != jobs[j].Final {
			return jobs[i].Final > jobs[j].Final
		}
		di, dj := domainOrNegInfJob(jobs[i].SDomain), domainOrNegInfJob(jobs[j].SDomain)
		if di != dj {
			return di > dj
		}
		return jobs[i].JobID > jobs[j].JobID
	})
	rank := 0
	var prevFinal, prevDomain float64
	havePrev := false
	for i := range jobs {
		d := domainOrNegInfJob(jobs[i].SDomain)
		if !havePrev || jobs[i].Final != prevFinal || d != prevDomain {
			rank++
			prevFinal = jobs[i].Final
			prevDomain = d
			havePrev = true
		}
		jobs[i].Rank = rank
	}
	return jobs
}

func domainOrNegInfJob(v *float64) float64 {
	if v == nil {
		return math.Inf(-1)
	}
	return *v
}

// ThresholdMethod tags how an auto-threshold was derived.
type ThresholdMethod string

const (
	MethodMinimum    ThresholdMethod = "minimum"
	MethodPercentile ThresholdMethod = "percentile"
)

// AutoThreshold is the synchronous score API's advisory cutoff (§4.5).
type AutoThreshold struct {
	Value               float64         `json:"value"`
	Method              ThresholdMethod `json:"method"`
	MinThreshold        float64         `json:"min_threshold"`
	PercentileThreshold float64         `json:"percentile_threshold"`
}

// autoThresholdBaseline is the advisory auto-threshold baseline (§4.5),
// deliberately distinct from notifyThresholdBaseline — see spec.md §9's
// open question: both are independent constants, never unified.
var autoThresholdBaseline = map[models.JobClass]float64{
	models.JobClassSpecialized: 0.50,
	models.JobClassGeneric:     0.35,
}

// ComputeAutoThreshold implements §4.5's auto-threshold: baseline by job
// class vs. the top-30th-percentile of finalScores, whichever is higher.
func ComputeAutoThreshold(jobClass models.JobClass, finalScores []float64) AutoThreshold {
	baseline := autoThresholdBaseline[jobClass]
	if baseline == 0 {
		baseline = autoThresholdBaseline[models.JobClassGeneric]
	}

	n := len(finalScores)
	var percentile float64
	if n > 0 {
		sorted := append([]float64(nil), finalScores...)
		sort.Sort(sort.Reverse(sort.Float64Slice(sorted)))
		idx := int(math.Floor(float64(n) * 0.30))
		if idx >= n {
			idx = n - 1
		}
		percentile = sorted[idx]
	}

	value := math.Max(baseline, percentile)
	method := MethodMinimum
	if percentile > baseline {
		method = MethodPercentile
	}

	return AutoThreshold{
		Value:               Round6(value),
		Method:              method,
		MinThreshold:        Round6(baseline),
		PercentileThreshold: Round6(percentile),
	}
}

// notifyThresholdBaseline is the pool-adaptive notify threshold baseline
// (§4.6), distinct from autoThresholdBaseline (§9 open question #1).
var notifyThresholdBaseline = map[models.JobClass]float64{
	models.JobClassSpecialized: 0.35,
	models.JobClassGeneric:     0.25,
}

// PoolSizeMultiplier implements §4.5's pool-size multiplier, used only
// by the Notify Pipeline.
func PoolSizeMultiplier(poolSize int) float64 {
	switch {
	case poolSize < 30:
		return 0.60
	case poolSize < 100:
		return 0.80
	default:
		return 1.00
	}
}

// NotifyThreshold computes the effective notify threshold for a job
// class and candidate pool size (§4.6).
func NotifyThreshold(jobClass models.JobClass, poolSize int) float64 {
	baseline := notifyThresholdBaseline[jobClass]
	if baseline == 0 {
		baseline = notifyThresholdBaseline[models.JobClassGeneric]
	}
	return Round6(baseline * PoolSizeMultiplier(poolSize))
}

// ChunkStrings splits ids into fixed-size chunks of size (§4.5).
func ChunkStrings(ids []string, size int) [][]string {
	if size <= 0 {
		size = CandidateChunkSize
	}
	var chunks [][]string
	for i := 0; i < len(ids); i += size {
		end := i + size
		if end > len(ids) {
			end = len(ids)
		}
		chunks = append(chunks, ids[i:end])
	}
	return chunks
}
