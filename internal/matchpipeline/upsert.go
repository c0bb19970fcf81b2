package matchpipeline

import (
	"context"
	"time"

	"github.com/westonopentrain/capsule-match/internal/audit"
	"github.com/westonopentrain/capsule-match/internal/capsule"
	"github.com/westonopentrain/capsule-match/internal/classify"
	"github.com/westonopentrain/capsule-match/internal/vectorstore"
	"github.com/westonopentrain/capsule-match/pkg/models"
)

// Record is the vector store's record shape, reused directly so callers
// of UpsertJob/UpsertUser don't need to import vectorstore themselves.
type Record = vectorstore.Record

// UpsertJobResult is the outcome of indexing a job's capsules.
type UpsertJobResult struct {
	JobID      string
	JobClass   models.JobClass
	Confidence float64
	ElapsedMs  int64
}

// UpsertJob classifies, builds capsules for, embeds, and indexes a job
// posting (§4.6 steps 1-3, reused directly by the upsert endpoint and by
// Notify).
func (p *Pipeline) UpsertJob(ctx context.Context, job classify.NormalizedJobPosting, isActive *bool, requestID string) (UpsertJobResult, error) {
	start := time.Now()

	classification, _, _, err := p.indexJob(ctx, job, isActive, requestID)
	if err != nil {
		return UpsertJobResult{}, err
	}

	return UpsertJobResult{
		JobID:      job.JobID,
		JobClass:   classification.JobClass,
		Confidence: classification.Confidence,
		ElapsedMs:  time.Since(start).Milliseconds(),
	}, nil
}

// indexJob is the classify→capsule→embed→upsert→ensure-job-row sequence
// shared by UpsertJob and the Notify pipeline's steps 1-3. It returns the
// full classification plus the two embeddings it just computed, so
// Notify can run candidate retrieval without re-embedding the job.
func (p *Pipeline) indexJob(ctx context.Context, job classify.NormalizedJobPosting, isActive *bool, requestID string) (models.JobClassification, []float64, []float64, error) {
	classification, err := p.Classifier.ClassifyJob(ctx, job)
	if err != nil {
		return models.JobClassification{}, nil, nil, err
	}

	capText, err := capsule.ForJob(job, capsule.RequirementsView{
		SubjectMatterCodes: classification.Requirements.SubjectMatterCodes,
		ExpertiseTier:      string(classification.Requirements.ExpertiseTier),
	})
	if err != nil {
		return models.JobClassification{}, nil, nil, err
	}

	domainVec, taskVec, err := p.embedCapsule(ctx, capText)
	if err != nil {
		return models.JobClassification{}, nil, nil, err
	}

	baseMeta := jobMetadataMap(job, classification)

	domainMeta := cloneMap(baseMeta)
	domainMeta["section"] = string(models.SectionDomain)
	taskMeta := cloneMap(baseMeta)
	taskMeta["section"] = string(models.SectionTask)

	records := []Record{
		{ID: jobVectorID(job.JobID, models.SectionDomain), Vector: domainVec, Metadata: domainMeta},
		{ID: jobVectorID(job.JobID, models.SectionTask), Vector: taskVec, Metadata: taskMeta},
	}
	if err := p.Store.Upsert(ctx, p.Namespaces.Jobs, records); err != nil {
		return models.JobClassification{}, nil, nil, err
	}

	if err := p.Qual.EnsureJob(ctx, job.JobID, job.Title, isActive); err != nil {
		return models.JobClassification{}, nil, nil, err
	}

	p.Audit.Enqueue(audit.Event{
		Kind:      audit.EventUpsertJob,
		RequestID: requestID,
		JobID:     job.JobID,
		Details: map[string]interface{}{
			"job_class":  classification.JobClass,
			"confidence": classification.Confidence,
			"source":     classification.Source,
		},
	})

	return classification, domainVec, taskVec, nil
}

// UpsertUserResult is the outcome of indexing a user's capsules.
type UpsertUserResult struct {
	UserID        string
	ExpertiseTier models.ExpertiseTier
	ElapsedMs     int64
}

// UpsertUser classifies, builds capsules for, embeds, and indexes a
// freelancer profile.
func (p *Pipeline) UpsertUser(ctx context.Context, profile classify.NormalizedUserProfile, requestID string) (UpsertUserResult, error) {
	start := time.Now()

	classification, err := p.Classifier.ClassifyUser(ctx, profile)
	if err != nil {
		return UpsertUserResult{}, err
	}

	capText, err := capsule.ForUser(profile, classification.SubjectMatterCodes, string(classification.ExpertiseTier))
	if err != nil {
		return UpsertUserResult{}, err
	}

	domainVec, taskVec, err := p.embedCapsule(ctx, capText)
	if err != nil {
		return UpsertUserResult{}, err
	}

	baseMeta := userMetadataMap(profile, classification)

	domainMeta := cloneMap(baseMeta)
	domainMeta["section"] = string(models.SectionDomain)
	taskMeta := cloneMap(baseMeta)
	taskMeta["section"] = string(models.SectionTask)

	records := []Record{
		{ID: userVectorID(profile.UserID, models.SectionDomain), Vector: domainVec, Metadata: domainMeta},
		{ID: userVectorID(profile.UserID, models.SectionTask), Vector: taskVec, Metadata: taskMeta},
	}
	if err := p.Store.Upsert(ctx, p.Namespaces.Users, records); err != nil {
		return UpsertUserResult{}, err
	}

	p.Audit.Enqueue(audit.Event{
		Kind:      audit.EventUpsertUser,
		RequestID: requestID,
		UserID:    profile.UserID,
		Details: map[string]interface{}{
			"expertise_tier": classification.ExpertiseTier,
			"confidence":     classification.Confidence,
			"source":         classification.Source,
		},
	})

	return UpsertUserResult{
		UserID:        profile.UserID,
		ExpertiseTier: classification.ExpertiseTier,
		ElapsedMs:     time.Since(start).Milliseconds(),
	}, nil
}

// DeleteUser removes both user vectors. The audit trail (qualification
// rows referencing this user) is left in place; only the vectors and the
// candidate's presence in future retrieval are removed.
func (p *Pipeline) DeleteUser(ctx context.Context, userID, requestID string) error {
	ids := []string{userVectorID(userID, models.SectionDomain), userVectorID(userID, models.SectionTask)}
	if err := p.Store.Delete(ctx, p.Namespaces.Users, ids); err != nil {
		return err
	}
	p.Audit.Enqueue(audit.Event{Kind: audit.EventDeleteUser, RequestID: requestID, UserID: userID})
	return nil
}

// DeleteJob removes both job vectors and all qualification rows for the job.
func (p *Pipeline) DeleteJob(ctx context.Context, jobID, requestID string) error {
	ids := []string{jobVectorID(jobID, models.SectionDomain), jobVectorID(jobID, models.SectionTask)}
	if err := p.Store.Delete(ctx, p.Namespaces.Jobs, ids); err != nil {
		return err
	}
	if err := p.Qual.DeleteJobQualifications(ctx, jobID); err != nil {
		return err
	}
	p.Audit.Enqueue(audit.Event{Kind: audit.EventDeleteJob, RequestID: requestID, JobID: jobID})
	return nil
}

// embedCapsule embeds the domain and task texts of a capsule in one batch call.
func (p *Pipeline) embedCapsule(ctx context.Context, c capsule.Capsule) (domain, task []float64, err error) {
	vecs, err := p.Embedder.Embed(ctx, []string{c.DomainText, c.TaskText})
	if err != nil {
		return nil, nil, err
	}
	return vecs[0], vecs[1], nil
}

func jobMetadataMap(job classify.NormalizedJobPosting, c models.JobClassification) map[string]interface{} {
	return map[string]interface{}{
		"job_id":                    job.JobID,
		"type":                      string(models.EntityJob),
		"job_class":                 string(c.JobClass),
		"required_credentials":      c.Requirements.Credentials,
		"subject_matter_codes":      c.Requirements.SubjectMatterCodes,
		"acceptable_subject_codes":  c.Requirements.AcceptableSubjectCodes,
		"subject_matter_strictness": string(c.Requirements.SubjectMatterStrictness),
		"required_experience_years": c.Requirements.MinimumExperienceYears,
		"expertise_tier":            string(c.Requirements.ExpertiseTier),
		"countries":                 job.Countries,
		"languages":                 job.Languages,
	}
}

func userMetadataMap(profile classify.NormalizedUserProfile, c models.UserClassification) map[string]interface{} {
	m := map[string]interface{}{
		"user_id":                  profile.UserID,
		"type":                     string(models.EntityUser),
		"expertise_tier":           string(c.ExpertiseTier),
		"credentials":              c.Credentials,
		"subject_matter_codes":     c.SubjectMatterCodes,
		"years_experience":         c.YearsExperience,
		"has_labeling_experience":  c.HasLabelingExperience,
		"languages":                profile.Languages,
	}
	if profile.Country != "" {
		m["country"] = profile.Country
	}
	return m
}

func cloneMap(m map[string]interface{}) map[string]interface{} {
	cp := make(map[string]interface{}, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}
