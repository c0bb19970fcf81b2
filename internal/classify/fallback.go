package classify

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/westonopentrain/capsule-match/pkg/models"
)

// WithFallback wraps primary so any classification error falls through to
// fallback instead of propagating. The pipeline MUST NOT block on
// classifier failures (§4.2) — this is the single place that guarantee
// is enforced.
type WithFallback struct {
	Primary  Classifier
	Fallback Classifier
}

// NewWithFallback pairs an LLM-backed classifier with the deterministic heuristic.
func NewWithFallback(primary, fallback Classifier) *WithFallback {
	return &WithFallback{Primary: primary, Fallback: fallback}
}

func (w *WithFallback) ClassifyJob(ctx context.Context, job NormalizedJobPosting) (models.JobClassification, error) {
	result, err := w.Primary.ClassifyJob(ctx, job)
	if err != nil {
		log.Warn().Err(err).Str("job_id", job.JobID).Msg("job classification failed, using heuristic fallback")
		return w.Fallback.ClassifyJob(ctx, job)
	}
	return result, nil
}

func (w *WithFallback) ClassifyUser(ctx context.Context, profile NormalizedUserProfile) (models.UserClassification, error) {
	result, err := w.Primary.ClassifyUser(ctx, profile)
	if err != nil {
		log.Warn().Err(err).Str("user_id", profile.UserID).Msg("user classification failed, using heuristic fallback")
		return w.Fallback.ClassifyUser(ctx, profile)
	}
	return result, nil
}
