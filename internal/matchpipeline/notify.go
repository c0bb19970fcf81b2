package matchpipeline

import (
	"context"
	"time"

	"github.com/westonopentrain/capsule-match/internal/alert"
	"github.com/westonopentrain/capsule-match/internal/audit"
	"github.com/westonopentrain/capsule-match/internal/classify"
	"github.com/westonopentrain/capsule-match/internal/qualstore"
	"github.com/westonopentrain/capsule-match/internal/scoring"
	"github.com/westonopentrain/capsule-match/internal/vectorstore"
	"github.com/westonopentrain/capsule-match/pkg/models"
)

// NotifyRequest is the input to the Notify pipeline (§4.6).
type NotifyRequest struct {
	Job                classify.NormalizedJobPosting
	IsActive           *bool
	AvailableCountries []string
	AvailableLanguages []string
	MaxNotifications   int
}

// SubjectMatterFilter reports the subject-matter gate's effect on a
// Notify run, when the job is specialized with codes set.
type SubjectMatterFilter struct {
	Required      []string          `json:"required"`
	Acceptable    []string          `json:"acceptable"`
	Strictness    models.Strictness `json:"strictness"`
	Threshold     float64           `json:"threshold"`
	FilteredCount int               `json:"filtered_count"`
	PassedCount   int               `json:"passed_count"`
}

// ScoreStats summarizes the final-score distribution of scored candidates.
type ScoreStats struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// NotifyResult is the Notify pipeline's response (§4.6 step 13).
type NotifyResult struct {
	Status              string
	JobID               string
	JobClass            models.JobClass
	NotifyUserIDs       []string
	TotalCandidates     int
	TotalAboveThreshold int
	SubjectMatterFilter *SubjectMatterFilter
	ScoreStats          ScoreStats
	ElapsedMs           int64
}

// scoredCandidate is one domain-channel candidate carried through
// scoring, gating, and persistence.
type scoredCandidate struct {
	userID       string
	sDomain      float64
	sTask        float64
	hasTask      bool
	final        float64
	subjectCodes []string
	filterReason *models.FilterReason
}

// Notify runs the end-to-end Notify pipeline (§4.6 steps 1-13).
func (p *Pipeline) Notify(ctx context.Context, req NotifyRequest, requestID string) (NotifyResult, error) {
	start := time.Now()

	maxNotifications := req.MaxNotifications
	if maxNotifications <= 0 {
		maxNotifications = p.MaxNotificationsDefault
	}

	// Steps 1-3: classify, embed, upsert job vectors, ensure job row.
	classification, domainVec, taskVec, err := p.indexJob(ctx, req.Job, req.IsActive, requestID)
	if err != nil {
		return NotifyResult{}, err
	}

	countries := req.AvailableCountries
	if len(countries) == 0 {
		countries = req.Job.Countries
	}
	languages := req.AvailableLanguages
	if len(languages) == 0 {
		languages = req.Job.Languages
	}

	result := NotifyResult{
		Status:   "ok",
		JobID:    req.Job.JobID,
		JobClass: classification.JobClass,
	}

	// Step 4: candidate retrieval.
	domainHits, err := domainCandidates(ctx, p.Store, p.Namespaces.Users, domainVec, countries, languages)
	if err != nil {
		return NotifyResult{}, err
	}

	// Step 5: empty candidate set short-circuits, but we still audit.
	if len(domainHits) == 0 {
		result.ElapsedMs = time.Since(start).Milliseconds()
		p.Audit.Enqueue(audit.Event{
			Kind:      audit.EventNotify,
			RequestID: requestID,
			JobID:     req.Job.JobID,
			Details:   map[string]interface{}{"total_candidates": 0},
		})
		return result, nil
	}

	userIDs := make([]string, 0, len(domainHits))
	for _, h := range domainHits {
		userIDs = append(userIDs, stringVal(h.Metadata, "user_id"))
	}

	// Step 6: task channel enrichment.
	taskScores, err := taskScoresByUser(ctx, p.Store, p.Namespaces.Users, userIDs, taskVec)
	if err != nil {
		return NotifyResult{}, err
	}

	wDomain, wTask := classify.WeightsForClass(classification.JobClass)
	candidates := buildCandidates(domainHits, taskScores, wDomain, wTask)

	// Step 7: score & threshold.
	threshold := scoring.NotifyThreshold(classification.JobClass, len(candidates))

	gateApplies := classification.JobClass == models.JobClassSpecialized && len(classification.Requirements.SubjectMatterCodes) > 0
	var smFilter *SubjectMatterFilter
	if gateApplies {
		smFilter = &SubjectMatterFilter{
			Required:   classification.Requirements.SubjectMatterCodes,
			Acceptable: classification.Requirements.AcceptableSubjectCodes,
			Strictness: classification.Requirements.SubjectMatterStrictness,
			Threshold:  scoring.Round6(threshold),
		}
	}

	aboveThreshold := 0
	qualified := make([]*scoredCandidate, 0, len(candidates))
	for i := range candidates {
		c := &candidates[i]
		if c.final < threshold {
			reason := models.FilterBelowThreshold
			c.filterReason = &reason
			continue
		}
		aboveThreshold++

		// Step 8: subject-matter gate, specialized jobs with codes only.
		if gateApplies {
			gateResult, gErr := p.Gate.Evaluate(ctx, c.subjectCodes, classification.Requirements.SubjectMatterCodes, classification.Requirements.AcceptableSubjectCodes, classification.Requirements.SubjectMatterStrictness)
			if gErr != nil {
				return NotifyResult{}, gErr
			}
			if !gateResult.Passed {
				c.filterReason = gateResult.FilterReason
				smFilter.FilteredCount++
				continue
			}
			smFilter.PassedCount++
		}
		qualified = append(qualified, c)
	}
	result.TotalCandidates = len(candidates)
	result.TotalAboveThreshold = aboveThreshold
	result.SubjectMatterFilter = smFilter

	// Step 9: sort remaining qualified users by finalScore desc.
	su := make([]scoring.ScoredUser, 0, len(qualified))
	byID := make(map[string]*scoredCandidate, len(qualified))
	for _, c := range qualified {
		byID[c.userID] = c
		domainCopy := c.sDomain
		su = append(su, scoring.ScoredUser{UserID: c.userID, SDomain: &domainCopy, Final: c.final})
	}
	scoring.Rank(su)

	// Step 10: safety cap.
	notifyIDs := make([]string, 0, maxNotifications)
	for i, u := range su {
		c := byID[u.UserID]
		if i < maxNotifications {
			notifyIDs = append(notifyIDs, c.userID)
		} else {
			reason := models.FilterMaxCap
			c.filterReason = &reason
		}
	}

	// Step 11: persist one Qualification row per scored candidate.
	quals := make([]models.Qualification, 0, len(candidates))
	var minScore, maxScore float64
	haveScore := false
	for _, c := range candidates {
		if !haveScore || c.final < minScore {
			minScore = c.final
		}
		if !haveScore || c.final > maxScore {
			maxScore = c.final
		}
		haveScore = true
		quals = append(quals, models.Qualification{
			JobID:         req.Job.JobID,
			UserID:        c.userID,
			Qualifies:     c.filterReason == nil,
			FinalScore:    c.final,
			DomainScore:   c.sDomain,
			TaskScore:     c.sTask,
			ThresholdUsed: threshold,
			FilterReason:  c.filterReason,
		})
	}
	result.ScoreStats = ScoreStats{Min: minScore, Max: maxScore}

	stored, failed, err := p.Qual.StoreResults(ctx, req.Job.JobID, quals, qualstore.StoreOptions{
		MarkNotified: len(notifyIDs) > 0,
		NotifiedVia:  "job_post",
		JobTitle:     req.Job.Title,
	})
	if err != nil {
		return NotifyResult{}, err
	}

	result.NotifyUserIDs = notifyIDs
	result.ElapsedMs = time.Since(start).Milliseconds()

	// Step 12: audit.
	p.Audit.Enqueue(audit.Event{
		Kind:      audit.EventNotify,
		RequestID: requestID,
		JobID:     req.Job.JobID,
		Details: map[string]interface{}{
			"total_candidates":      result.TotalCandidates,
			"total_above_threshold": result.TotalAboveThreshold,
			"notified_count":        len(notifyIDs),
			"stored":                stored,
			"failed":                failed,
		},
	})

	alert.Evaluate(ctx, p.Alerter, alert.Conditions{
		JobID:                    req.Job.JobID,
		ResultsCount:             len(notifyIDs),
		CountAboveThreshold:      aboveThreshold,
		PoolSize:                 len(candidates),
		MissingVectorsRate:       missingTaskRate(candidates),
		ClassificationConfidence: classification.Confidence,
	})

	return result, nil
}

// buildCandidates blends domain hits with their (possibly absent) task
// score into scoredCandidate rows (§4.6 steps 6-7).
func buildCandidates(domainHits []vectorstore.QueryResult, taskScores map[string]float64, wDomain, wTask float64) []scoredCandidate {
	candidates := make([]scoredCandidate, 0, len(domainHits))
	for _, h := range domainHits {
		uid := stringVal(h.Metadata, "user_id")
		if uid == "" {
			continue
		}
		sTask, hasTask := taskScores[uid]
		final := scoring.Blend(wDomain, wTask, h.Score, sTask)
		candidates = append(candidates, scoredCandidate{
			userID:       uid,
			sDomain:      h.Score,
			sTask:        sTask,
			hasTask:      hasTask,
			final:        scoring.Round6(final),
			subjectCodes: stringSliceVal(h.Metadata, "subject_matter_codes"),
		})
	}
	return candidates
}

func missingTaskRate(candidates []scoredCandidate) float64 {
	if len(candidates) == 0 {
		return 0
	}
	missing := 0
	for _, c := range candidates {
		if !c.hasTask {
			missing++
		}
	}
	return float64(missing) / float64(len(candidates))
}
