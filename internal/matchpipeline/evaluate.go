package matchpipeline

import (
	"context"
	"time"

	"github.com/westonopentrain/capsule-match/internal/apperr"
	"github.com/westonopentrain/capsule-match/internal/audit"
	"github.com/westonopentrain/capsule-match/internal/classify"
	"github.com/westonopentrain/capsule-match/internal/qualstore"
	"github.com/westonopentrain/capsule-match/internal/scoring"
	"github.com/westonopentrain/capsule-match/pkg/models"
)

// EvaluateRequest is the input to Evaluate: a re-notify replay that
// never marks anyone notified (§6, POST /v1/jobs/{jobId}/evaluate).
type EvaluateRequest struct {
	Countries []string
	Languages []string
}

// EvaluateResult reports the recomputed qualification counts.
type EvaluateResult struct {
	TotalCandidates int
	TotalQualified  int
	ScoreStats      ScoreStats
	ElapsedMs       int64
}

// Evaluate replays candidate retrieval and scoring for an already-indexed
// job and rewrites every qualification row, but never touches
// notifiedAt — it is the dry-run counterpart to Notify/ReNotify.
func (p *Pipeline) Evaluate(ctx context.Context, jobID string, req EvaluateRequest, requestID string) (EvaluateResult, error) {
	start := time.Now()

	jobRecords, err := p.Store.Fetch(ctx, p.Namespaces.Jobs, []string{
		jobVectorID(jobID, models.SectionDomain),
		jobVectorID(jobID, models.SectionTask),
	})
	if err != nil {
		return EvaluateResult{}, err
	}
	domainRec, ok := jobRecords[jobVectorID(jobID, models.SectionDomain)]
	if !ok {
		return EvaluateResult{}, apperr.New(apperr.CodeJobNotFound, "job domain vector not found").WithPhase("evaluate.fetch_job")
	}
	taskRec, ok := jobRecords[jobVectorID(jobID, models.SectionTask)]
	if !ok {
		return EvaluateResult{}, apperr.New(apperr.CodeJobNotFound, "job task vector not found").WithPhase("evaluate.fetch_job")
	}

	jobClass := models.JobClass(stringVal(domainRec.Metadata, "job_class"))
	subjectMatterCodes := stringSliceVal(domainRec.Metadata, "subject_matter_codes")
	acceptableCodes := stringSliceVal(domainRec.Metadata, "acceptable_subject_codes")
	strictness := models.Strictness(stringVal(domainRec.Metadata, "subject_matter_strictness"))

	countries := req.Countries
	if len(countries) == 0 {
		countries = stringSliceVal(domainRec.Metadata, "countries")
	}
	languages := req.Languages
	if len(languages) == 0 {
		languages = stringSliceVal(domainRec.Metadata, "languages")
	}

	domainHits, err := domainCandidates(ctx, p.Store, p.Namespaces.Users, domainRec.Vector, countries, languages)
	if err != nil {
		return EvaluateResult{}, err
	}

	result := EvaluateResult{}
	if len(domainHits) == 0 {
		result.ElapsedMs = time.Since(start).Milliseconds()
		p.Audit.Enqueue(audit.Event{
			Kind:      audit.EventEvaluate,
			RequestID: requestID,
			JobID:     jobID,
			Details:   map[string]interface{}{"total_candidates": 0},
		})
		return result, nil
	}

	userIDs := make([]string, 0, len(domainHits))
	for _, h := range domainHits {
		userIDs = append(userIDs, stringVal(h.Metadata, "user_id"))
	}

	taskScores, err := taskScoresByUser(ctx, p.Store, p.Namespaces.Users, userIDs, taskRec.Vector)
	if err != nil {
		return EvaluateResult{}, err
	}

	wDomain, wTask := classify.WeightsForClass(jobClass)
	candidates := buildCandidates(domainHits, taskScores, wDomain, wTask)
	threshold := scoring.NotifyThreshold(jobClass, len(candidates))
	gateApplies := jobClass == models.JobClassSpecialized && len(subjectMatterCodes) > 0

	quals := make([]models.Qualification, 0, len(candidates))
	var minScore, maxScore float64
	haveScore := false
	totalQualified := 0
	for i := range candidates {
		c := &candidates[i]
		if !haveScore || c.final < minScore {
			minScore = c.final
		}
		if !haveScore || c.final > maxScore {
			maxScore = c.final
		}
		haveScore = true

		qualifies := c.final >= threshold
		var reason *models.FilterReason
		if !qualifies {
			r := models.FilterBelowThreshold
			reason = &r
		} else if gateApplies {
			gateResult, gErr := p.Gate.Evaluate(ctx, c.subjectCodes, subjectMatterCodes, acceptableCodes, strictness)
			if gErr != nil {
				return EvaluateResult{}, gErr
			}
			if !gateResult.Passed {
				qualifies = false
				reason = gateResult.FilterReason
			}
		}
		if qualifies {
			totalQualified++
		}
		quals = append(quals, models.Qualification{
			JobID:         jobID,
			UserID:        c.userID,
			Qualifies:     qualifies,
			FinalScore:    c.final,
			DomainScore:   c.sDomain,
			TaskScore:     c.sTask,
			ThresholdUsed: threshold,
			FilterReason:  reason,
		})
	}

	if _, _, err := p.Qual.StoreResults(ctx, jobID, quals, qualstore.StoreOptions{}); err != nil {
		return EvaluateResult{}, err
	}

	result.TotalCandidates = len(candidates)
	result.TotalQualified = totalQualified
	result.ScoreStats = ScoreStats{Min: minScore, Max: maxScore}
	result.ElapsedMs = time.Since(start).Milliseconds()

	p.Audit.Enqueue(audit.Event{
		Kind:      audit.EventEvaluate,
		RequestID: requestID,
		JobID:     jobID,
		Details: map[string]interface{}{
			"total_candidates": result.TotalCandidates,
			"total_qualified":  result.TotalQualified,
		},
	})

	return result, nil
}
