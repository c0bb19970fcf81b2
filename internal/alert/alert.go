// Package alert is the alerting sink (C12): Slack notifications for
// threshold-breach conditions observed during scoring/notify (§4.11).
// Like the audit sink, it is fire-and-forget — a failed alert never
// affects the pipeline's response to the caller.
package alert

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

// Conditions bundles the observations an operation reports after it
// runs, so the alerter can evaluate all four triggers in one place.
type Conditions struct {
	JobID                   string
	ResultsCount            int
	CountAboveThreshold     int
	PoolSize                int
	MissingVectorsRate      float64 // in [0,1]
	ClassificationConfidence float64
}

// Alerter posts operational alerts. Implementations must not block or
// fail the caller.
type Alerter interface {
	Alert(ctx context.Context, title, message string)
}

// Evaluate checks Conditions against the four thresholds of §4.11 and
// fires an alert for each breach.
func Evaluate(ctx context.Context, a Alerter, c Conditions) {
	if c.ResultsCount < 5 {
		a.Alert(ctx, "low match count", fmt.Sprintf("job %s: only %d results", c.JobID, c.ResultsCount))
	}
	if c.CountAboveThreshold > 200 {
		a.Alert(ctx, "high match count", fmt.Sprintf("job %s: %d candidates above threshold", c.JobID, c.CountAboveThreshold))
	}
	if c.PoolSize > 10 && c.MissingVectorsRate > 0.5 {
		a.Alert(ctx, "high missing-vector rate", fmt.Sprintf("job %s: %.0f%% of a pool of %d missing vectors", c.JobID, c.MissingVectorsRate*100, c.PoolSize))
	}
	if c.ClassificationConfidence > 0 && c.ClassificationConfidence < 0.7 {
		a.Alert(ctx, "low classification confidence", fmt.Sprintf("job %s: confidence %.2f", c.JobID, c.ClassificationConfidence))
	}
}

// Noop discards every alert. It backs deployments where SLACK_WEBHOOK_URL
// is unset — alerts are disabled entirely per spec.md §6.
type Noop struct{}

func (Noop) Alert(ctx context.Context, title, message string) {
	log.Debug().Str("title", title).Str("message", message).Msg("alert suppressed (no alerter configured)")
}
