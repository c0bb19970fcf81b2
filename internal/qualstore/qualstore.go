// Package qualstore is the qualification store (C9): the relational
// system of record for per-(job,user) qualification and notification
// bookkeeping.
package qualstore

import (
	"context"

	"github.com/westonopentrain/capsule-match/pkg/models"
)

// ListOptions bounds a qualifications listing.
type ListOptions struct {
	QualifiesOnly bool
	Limit         int
	Offset        int
}

// StoreOptions controls how StoreResults marks notification bookkeeping.
type StoreOptions struct {
	MarkNotified bool
	NotifiedVia  string
	JobTitle     string
}

// Store is the qualification store's operation set (§4.9).
type Store interface {
	// EnsureJob creates the job row if absent, or updates title/isActive
	// on an existing one. isActive defaults to true when nil.
	EnsureJob(ctx context.Context, jobID string, title string, isActive *bool) error

	// SetActive flips a job's active flag and denormalizes it onto every
	// qualification row for that job.
	SetActive(ctx context.Context, jobID string, active bool) error

	GetJob(ctx context.Context, jobID string) (*models.Job, error)

	// StoreResults upserts one row per scored user, keyed by (jobId,
	// userId). A single failed row is logged and counted, not fatal to
	// the batch (§4.9).
	StoreResults(ctx context.Context, jobID string, results []models.Qualification, opts StoreOptions) (stored int, failed int, err error)

	GetQualifications(ctx context.Context, jobID string, opts ListOptions) ([]models.Qualification, error)

	// GetPending returns qualifying, not-yet-notified, active-job rows.
	GetPending(ctx context.Context, jobID string) ([]models.Qualification, error)

	// MarkNotified sets notifiedAt=now for the given users if not
	// already set (stickiness is enforced at the store level).
	MarkNotified(ctx context.Context, jobID string, userIDs []string, notifiedVia string) error

	// FindNewlyQualifying returns the subset of results that qualify and
	// have no prior notifiedAt for this job.
	FindNewlyQualifying(ctx context.Context, jobID string, results []models.Qualification) ([]models.Qualification, error)

	DeleteJobQualifications(ctx context.Context, jobID string) error
}
