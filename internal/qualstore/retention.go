package qualstore

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultRetentionInterval is the janitor's default sweep period.
const DefaultRetentionInterval = 6 * time.Hour

// DefaultStaleAfter is how long an inactive job's qualification
// rows are kept before the janitor purges them.
const DefaultStaleAfter = 90 * 24 * time.Hour

// Janitor periodically purges qualification rows for inactive jobs past
// the retention window. It runs as a background goroutine and respects
// context cancellation for graceful shutdown.
type Janitor struct {
	store       Store
	purger      StaleRowPurger
	interval    time.Duration
	staleAfter  time.Duration
}

// StaleRowPurger is the narrow slice of a Store the janitor needs to
// find and remove stale rows; Postgres implements it directly.
type StaleRowPurger interface {
	PurgeInactiveOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}

// NewJanitor creates a retention janitor. If interval is below a minute
// it is clamped to DefaultRetentionInterval.
func NewJanitor(store Store, purger StaleRowPurger, interval time.Duration) *Janitor {
	if interval < time.Minute {
		interval = DefaultRetentionInterval
	}
	return &Janitor{store: store, purger: purger, interval: interval, staleAfter: DefaultStaleAfter}
}

// Start runs the janitor until ctx is canceled.
func (j *Janitor) Start(ctx context.Context) {
	log.Info().Dur("interval", j.interval).Msg("qualification retention janitor started")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.runCycle(ctx)
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("qualification retention janitor stopped")
			return
		case <-ticker.C:
			j.runCycle(ctx)
		}
	}
}

func (j *Janitor) runCycle(ctx context.Context) {
	if j.purger == nil {
		return
	}
	cutoff := time.Now().Add(-j.staleAfter)
	purged, err := j.purger.PurgeInactiveOlderThan(ctx, cutoff)
	if err != nil {
		log.Warn().Err(err).Msg("qualification retention cycle failed")
		return
	}
	if purged > 0 {
		log.Info().Int("purged", purged).Msg("qualification retention cycle complete")
	}
}
