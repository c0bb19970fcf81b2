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

// ReNotifyRequest is the input to the Re-Notify pipeline (§4.7).
type ReNotifyRequest struct {
	JobID            string
	Countries        []string
	Languages        []string
	MaxNotifications int
}

// ReNotifyResult is the Re-Notify pipeline's response (§4.7 step 7).
type ReNotifyResult struct {
	TotalQualified     int
	PreviouslyNotified int
	NewlyQualified     []string
	ElapsedMs          int64
}

// ReNotify replays candidate retrieval and scoring for an already-indexed
// job and notifies only the delta: users who newly qualify and were
// never notified before (§4.7).
func (p *Pipeline) ReNotify(ctx context.Context, req ReNotifyRequest, requestID string) (ReNotifyResult, error) {
	start := time.Now()

	maxNotifications := req.MaxNotifications
	if maxNotifications <= 0 {
		maxNotifications = p.MaxNotificationsDefault
	}

	// Step 1: fetch existing job vectors; 404 if either is missing.
	jobRecords, err := p.Store.Fetch(ctx, p.Namespaces.Jobs, []string{
		jobVectorID(req.JobID, models.SectionDomain),
		jobVectorID(req.JobID, models.SectionTask),
	})
	if err != nil {
		return ReNotifyResult{}, err
	}
	domainRec, ok := jobRecords[jobVectorID(req.JobID, models.SectionDomain)]
	if !ok {
		return ReNotifyResult{}, apperr.New(apperr.CodeJobNotFound, "job domain vector not found").WithPhase("re_notify.fetch_job")
	}
	taskRec, ok := jobRecords[jobVectorID(req.JobID, models.SectionTask)]
	if !ok {
		return ReNotifyResult{}, apperr.New(apperr.CodeJobNotFound, "job task vector not found").WithPhase("re_notify.fetch_job")
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

	// Step 2: replay candidate retrieval and scoring (§4.6 steps 4-7).
	domainHits, err := domainCandidates(ctx, p.Store, p.Namespaces.Users, domainRec.Vector, countries, languages)
	if err != nil {
		return ReNotifyResult{}, err
	}

	result := ReNotifyResult{}
	if len(domainHits) == 0 {
		result.ElapsedMs = time.Since(start).Milliseconds()
		p.Audit.Enqueue(audit.Event{
			Kind:      audit.EventReNotify,
			RequestID: requestID,
			JobID:     req.JobID,
			Details:   map[string]interface{}{"total_qualified": 0},
		})
		return result, nil
	}

	userIDs := make([]string, 0, len(domainHits))
	for _, h := range domainHits {
		userIDs = append(userIDs, stringVal(h.Metadata, "user_id"))
	}

	taskScores, err := taskScoresByUser(ctx, p.Store, p.Namespaces.Users, userIDs, taskRec.Vector)
	if err != nil {
		return ReNotifyResult{}, err
	}

	wDomain, wTask := classify.WeightsForClass(jobClass)
	candidates := buildCandidates(domainHits, taskScores, wDomain, wTask)
	threshold := scoring.NotifyThreshold(jobClass, len(candidates))
	gateApplies := jobClass == models.JobClassSpecialized && len(subjectMatterCodes) > 0

	// Step 3: qualifies = finalScore >= threshold (subject to the gate).
	quals := make([]models.Qualification, 0, len(candidates))
	for i := range candidates {
		c := &candidates[i]
		qualifies := c.final >= threshold
		var reason *models.FilterReason
		if !qualifies {
			r := models.FilterBelowThreshold
			reason = &r
		} else if gateApplies {
			gateResult, gErr := p.Gate.Evaluate(ctx, c.subjectCodes, subjectMatterCodes, acceptableCodes, strictness)
			if gErr != nil {
				return ReNotifyResult{}, gErr
			}
			if !gateResult.Passed {
				qualifies = false
				reason = gateResult.FilterReason
			}
		}
		quals = append(quals, models.Qualification{
			JobID:         req.JobID,
			UserID:        c.userID,
			Qualifies:     qualifies,
			FinalScore:    c.final,
			DomainScore:   c.sDomain,
			TaskScore:     c.sTask,
			ThresholdUsed: threshold,
			FilterReason:  reason,
		})
	}

	// Step 4: prior notified rows for this job.
	existing, err := p.Qual.GetQualifications(ctx, req.JobID, qualstore.ListOptions{})
	if err != nil {
		return ReNotifyResult{}, err
	}
	previouslyNotified := make(map[string]bool, len(existing))
	for _, q := range existing {
		if q.NotifiedAt != nil {
			previouslyNotified[q.UserID] = true
		}
	}

	// Step 5: delta = qualifies && no prior notifiedAt, safety-capped.
	delta, err := p.Qual.FindNewlyQualifying(ctx, req.JobID, quals)
	if err != nil {
		return ReNotifyResult{}, err
	}
	deltaIDs := make([]string, 0, len(delta))
	for _, q := range delta {
		deltaIDs = append(deltaIDs, q.UserID)
	}
	su := make([]scoring.ScoredUser, 0, len(delta))
	for _, q := range delta {
		domainScore := q.DomainScore
		su = append(su, scoring.ScoredUser{UserID: q.UserID, SDomain: &domainScore, Final: q.FinalScore})
	}
	scoring.Rank(su)
	if len(su) > maxNotifications {
		su = su[:maxNotifications]
	}
	newlyQualified := make([]string, 0, len(su))
	for _, u := range su {
		newlyQualified = append(newlyQualified, u.UserID)
	}

	totalQualified := 0
	for _, q := range quals {
		if q.Qualifies {
			totalQualified++
		}
	}

	// Step 6: upsert all scored users, marking the delta notified.
	_, _, err = p.Qual.StoreResults(ctx, req.JobID, quals, qualstore.StoreOptions{})
	if err != nil {
		return ReNotifyResult{}, err
	}
	if err := p.Qual.MarkNotified(ctx, req.JobID, newlyQualified, "job_edit"); err != nil {
		return ReNotifyResult{}, err
	}

	result.TotalQualified = totalQualified
	result.PreviouslyNotified = len(previouslyNotified)
	result.NewlyQualified = newlyQualified
	result.ElapsedMs = time.Since(start).Milliseconds()

	// Step 7: audit.
	p.Audit.Enqueue(audit.Event{
		Kind:      audit.EventReNotify,
		RequestID: requestID,
		JobID:     req.JobID,
		Details: map[string]interface{}{
			"total_qualified":     result.TotalQualified,
			"previously_notified": result.PreviouslyNotified,
			"newly_qualified":     len(result.NewlyQualified),
		},
	})

	return result, nil
}
