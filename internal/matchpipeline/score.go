package matchpipeline

import (
	"context"

	"github.com/westonopentrain/capsule-match/internal/apperr"
	"github.com/westonopentrain/capsule-match/internal/audit"
	"github.com/westonopentrain/capsule-match/internal/classify"
	"github.com/westonopentrain/capsule-match/internal/scoring"
	"github.com/westonopentrain/capsule-match/pkg/models"
)

// maxCandidateUserIDs is the synchronous score API's input bound (§4.8).
const maxCandidateUserIDs = 50000

// MissingVectors lists candidate ids whose domain and/or task vector
// could not be found.
type MissingVectors struct {
	Domain []string `json:"domain"`
	Task   []string `json:"task"`
}

// ScoreUsersForJobRequest is the input to ScoreUsersForJob (§4.8).
type ScoreUsersForJobRequest struct {
	JobID            string
	CandidateUserIDs []string
	WDomain          float64
	WTask            float64
	AutoWeights      bool
	TopK             int
	Threshold        *float64
}

// ScoreUsersForJobResult is the response shape for ScoreUsersForJob.
type ScoreUsersForJobResult struct {
	JobClass           models.JobClass
	Users              []scoring.ScoredUser
	MissingVectors     MissingVectors
	SuggestedThreshold scoring.AutoThreshold
	CountGteSuggested  int
	CountGteThreshold  *int
}

// ScoreUsersForJob synchronously ranks a caller-supplied candidate pool
// against one job (§4.8).
func (p *Pipeline) ScoreUsersForJob(ctx context.Context, req ScoreUsersForJobRequest, requestID string) (ScoreUsersForJobResult, error) {
	candidateIDs := dedup(req.CandidateUserIDs)
	if len(candidateIDs) > maxCandidateUserIDs {
		return ScoreUsersForJobResult{}, apperr.New(apperr.CodeValidation, "candidateUserIds exceeds the 50000 limit")
	}

	jobRecords, err := p.Store.Fetch(ctx, p.Namespaces.Jobs, []string{
		jobVectorID(req.JobID, models.SectionDomain),
		jobVectorID(req.JobID, models.SectionTask),
	})
	if err != nil {
		return ScoreUsersForJobResult{}, err
	}
	domainRec, ok := jobRecords[jobVectorID(req.JobID, models.SectionDomain)]
	if !ok {
		return ScoreUsersForJobResult{}, apperr.New(apperr.CodeJobVectorsMissing, "job domain vector not found").WithPhase("score_users.fetch_job")
	}
	taskRec, ok := jobRecords[jobVectorID(req.JobID, models.SectionTask)]
	if !ok {
		return ScoreUsersForJobResult{}, apperr.New(apperr.CodeJobVectorsMissing, "job task vector not found").WithPhase("score_users.fetch_job")
	}
	jobClass := models.JobClass(stringVal(domainRec.Metadata, "job_class"))

	wDomain, wTask := req.WDomain, req.WTask
	if req.AutoWeights {
		wDomain, wTask = classify.WeightsForClass(jobClass)
	} else {
		wDomain, wTask, err = scoring.NormalizeWeights(wDomain, wTask)
		if err != nil {
			return ScoreUsersForJobResult{}, err
		}
	}

	var domainScores, taskScores map[string]float64
	err = scoring.RunChannelsConcurrently(
		func() error {
			var fErr error
			domainScores, fErr = scoresBySectionAndUser(ctx, p.Store, p.Namespaces.Users, candidateIDs, domainRec.Vector, models.SectionDomain, req.TopK)
			return fErr
		},
		func() error {
			var fErr error
			taskScores, fErr = scoresBySectionAndUser(ctx, p.Store, p.Namespaces.Users, candidateIDs, taskRec.Vector, models.SectionTask, req.TopK)
			return fErr
		},
	)
	if err != nil {
		return ScoreUsersForJobResult{}, err
	}

	missing := MissingVectors{Domain: []string{}, Task: []string{}}
	users := make([]scoring.ScoredUser, 0, len(candidateIDs))
	finals := make([]float64, 0, len(candidateIDs))
	for _, uid := range candidateIDs {
		sd, hasDomain := domainScores[uid]
		st, hasTask := taskScores[uid]
		if !hasDomain {
			missing.Domain = append(missing.Domain, uid)
		}
		if !hasTask {
			missing.Task = append(missing.Task, uid)
		}

		var sDomainPtr, sTaskPtr *float64
		if hasDomain {
			v := sd
			sDomainPtr = &v
		}
		if hasTask {
			v := st
			sTaskPtr = &v
		}

		final := scoring.Round6(scoring.Blend(wDomain, wTask, sd, st))
		users = append(users, scoring.ScoredUser{
			UserID:        uid,
			SDomain:       sDomainPtr,
			STask:         sTaskPtr,
			Final:         final,
			MissingDomain: !hasDomain,
			MissingTask:   !hasTask,
		})
		finals = append(finals, final)
	}

	scoring.Rank(users)

	suggested := scoring.ComputeAutoThreshold(jobClass, finals)
	countGteSuggested := 0
	for _, f := range finals {
		if f >= suggested.Value {
			countGteSuggested++
		}
	}

	var countGteThreshold *int
	if req.Threshold != nil {
		n := 0
		for _, f := range finals {
			if f >= *req.Threshold {
				n++
			}
		}
		countGteThreshold = &n
	}

	p.Audit.Enqueue(audit.Event{
		Kind:      audit.EventScoreUsersForJob,
		RequestID: requestID,
		JobID:     req.JobID,
		Details: map[string]interface{}{
			"candidate_count": len(candidateIDs),
			"missing_domain":  len(missing.Domain),
			"missing_task":    len(missing.Task),
		},
	})

	return ScoreUsersForJobResult{
		JobClass:           jobClass,
		Users:              users,
		MissingVectors:     missing,
		SuggestedThreshold: suggested,
		CountGteSuggested:  countGteSuggested,
		CountGteThreshold:  countGteThreshold,
	}, nil
}

// ScoreJobsForUserRequest is the input to ScoreJobsForUser (§4.8).
type ScoreJobsForUserRequest struct {
	UserID string
	JobIDs []string
	TopK   int
}

// ScoreJobsForUserResult is the response shape for ScoreJobsForUser.
type ScoreJobsForUserResult struct {
	Jobs        []scoring.ScoredJob
	MissingJobs []string
}

// ScoreJobsForUser synchronously ranks a caller-supplied job pool against
// one user, always with auto-weights (§4.8).
func (p *Pipeline) ScoreJobsForUser(ctx context.Context, req ScoreJobsForUserRequest, requestID string) (ScoreJobsForUserResult, error) {
	userRecords, err := p.Store.Fetch(ctx, p.Namespaces.Users, []string{
		userVectorID(req.UserID, models.SectionDomain),
		userVectorID(req.UserID, models.SectionTask),
	})
	if err != nil {
		return ScoreJobsForUserResult{}, err
	}
	userDomainRec, ok := userRecords[userVectorID(req.UserID, models.SectionDomain)]
	if !ok {
		return ScoreJobsForUserResult{}, apperr.New(apperr.CodeUserVectorsMissing, "user domain vector not found").WithPhase("score_jobs.fetch_user")
	}
	userTaskRec, ok := userRecords[userVectorID(req.UserID, models.SectionTask)]
	if !ok {
		return ScoreJobsForUserResult{}, apperr.New(apperr.CodeUserVectorsMissing, "user task vector not found").WithPhase("score_jobs.fetch_user")
	}

	jobIDs := dedup(req.JobIDs)
	fetchIDs := make([]string, 0, len(jobIDs)*2)
	for _, id := range jobIDs {
		fetchIDs = append(fetchIDs, jobVectorID(id, models.SectionDomain), jobVectorID(id, models.SectionTask))
	}
	jobRecords, err := fetchRecords(ctx, p.Store, p.Namespaces.Jobs, fetchIDs)
	if err != nil {
		return ScoreJobsForUserResult{}, err
	}

	var missingJobs []string
	jobs := make([]scoring.ScoredJob, 0, len(jobIDs))
	for _, jobID := range jobIDs {
		domainRec, hasDomain := jobRecords[jobVectorID(jobID, models.SectionDomain)]
		taskRec, hasTask := jobRecords[jobVectorID(jobID, models.SectionTask)]
		if !hasDomain || !hasTask {
			missingJobs = append(missingJobs, jobID)
			continue
		}

		jobClass := models.JobClass(stringVal(domainRec.Metadata, "job_class"))
		wDomain, wTask := classify.WeightsForClass(jobClass)

		sDomain := dot(userDomainRec.Vector, domainRec.Vector)
		sTask := dot(userTaskRec.Vector, taskRec.Vector)
		final := scoring.Round6(scoring.Blend(wDomain, wTask, sDomain, sTask))

		domainCopy, taskCopy := sDomain, sTask
		jobs = append(jobs, scoring.ScoredJob{
			JobID:   jobID,
			SDomain: &domainCopy,
			STask:   &taskCopy,
			Final:   final,
		})
	}

	scoring.RankJobs(jobs)

	if req.TopK > 0 && req.TopK < len(jobs) {
		jobs = jobs[:req.TopK]
	}

	p.Audit.Enqueue(audit.Event{
		Kind:      audit.EventScoreJobsForUser,
		RequestID: requestID,
		UserID:    req.UserID,
		Details: map[string]interface{}{
			"job_count":    len(jobIDs),
			"missing_jobs": len(missingJobs),
			"scored_jobs":  len(jobs),
		},
	})

	return ScoreJobsForUserResult{Jobs: jobs, MissingJobs: missingJobs}, nil
}
