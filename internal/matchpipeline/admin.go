package matchpipeline

import (
	"context"

	"github.com/westonopentrain/capsule-match/internal/audit"
	"github.com/westonopentrain/capsule-match/pkg/models"
)

// UpdateJobMetadata patches countries/languages on both of a job's vector
// sections (§6, PATCH /v1/jobs/{jobId}/metadata). Keys omitted from the
// patch are preserved by the store's partial-update semantics.
func (p *Pipeline) UpdateJobMetadata(ctx context.Context, jobID string, countries, languages []string, requestID string) error {
	patch := map[string]interface{}{}
	if countries != nil {
		patch["countries"] = countries
	}
	if languages != nil {
		patch["languages"] = languages
	}
	ids := []string{jobVectorID(jobID, models.SectionDomain), jobVectorID(jobID, models.SectionTask)}
	if err := p.Store.UpdateMetadata(ctx, p.Namespaces.Jobs, ids, patch); err != nil {
		return err
	}
	p.Audit.Enqueue(audit.Event{
		Kind:      audit.EventUpdateMetadata,
		RequestID: requestID,
		JobID:     jobID,
		Details:   map[string]interface{}{"countries": countries, "languages": languages},
	})
	return nil
}

// SetJobStatus flips a job's active flag, denormalized onto every
// qualification row by the qualification store (§6, PATCH .../status).
func (p *Pipeline) SetJobStatus(ctx context.Context, jobID string, active bool, requestID string) error {
	if err := p.Qual.SetActive(ctx, jobID, active); err != nil {
		return err
	}
	p.Audit.Enqueue(audit.Event{
		Kind:      audit.EventUpdateStatus,
		RequestID: requestID,
		JobID:     jobID,
		Details:   map[string]interface{}{"is_active": active},
	})
	return nil
}

// MarkNotified bulk-sets notifiedAt for the given users (§6, POST
// .../mark-notified). Stickiness is enforced at the qualification store.
func (p *Pipeline) MarkNotified(ctx context.Context, jobID string, userIDs []string, notifiedVia, requestID string) error {
	if err := p.Qual.MarkNotified(ctx, jobID, userIDs, notifiedVia); err != nil {
		return err
	}
	p.Audit.Enqueue(audit.Event{
		Kind:      audit.EventMarkNotified,
		RequestID: requestID,
		JobID:     jobID,
		Details:   map[string]interface{}{"user_count": len(userIDs), "notified_via": notifiedVia},
	})
	return nil
}
