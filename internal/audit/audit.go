// Package audit is the fire-and-forget audit sink (C11): a bounded
// worker pool that writes structured records of every upsert,
// classification, match, notify, and re-notify. Failures here never
// propagate to the client response or alter pipeline outcomes (§4.11).
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// EventKind identifies the operation an audit event records.
type EventKind string

const (
	EventUpsertJob        EventKind = "upsert_job"
	EventUpsertUser       EventKind = "upsert_user"
	EventDeleteJob        EventKind = "delete_job"
	EventDeleteUser       EventKind = "delete_user"
	EventClassification   EventKind = "classification"
	EventNotify           EventKind = "notify"
	EventReNotify         EventKind = "re_notify"
	EventEvaluate         EventKind = "evaluate"
	EventScoreUsersForJob EventKind = "score_users_for_job"
	EventScoreJobsForUser EventKind = "score_jobs_for_user"
	EventUpdateMetadata   EventKind = "update_metadata"
	EventUpdateStatus     EventKind = "update_status"
	EventMarkNotified     EventKind = "mark_notified"
)

// Event is one audit record. Details is a free-form payload specific to
// Kind (e.g. the notify pipeline's per-user breakdown).
type Event struct {
	ID          string
	Kind        EventKind
	RequestID   string
	JobID       string
	UserID      string
	Details     map[string]interface{}
	OccurredAt  time.Time
}

// Writer persists audit events. Implementations must not block the
// caller for long; the worker pool already isolates the hot path, but a
// slow writer still delays queue drains.
type Writer interface {
	Write(ctx context.Context, event Event) error
}

// Sink is the bounded, non-blocking audit pipeline entrypoint used by
// every pipeline component. Enqueue never blocks: when the queue is
// saturated, the event is dropped and logged (§9's explicit "never
// backpressure the hot path").
type Sink struct {
	queue   chan Event
	writer  Writer
	workers int
	done    chan struct{}
}

// DefaultQueueSize and DefaultWorkers size the bounded pool.
const (
	DefaultQueueSize = 1000
	DefaultWorkers   = 4
)

// NewSink creates a sink with DefaultWorkers consumers draining a queue
// of DefaultQueueSize. Call Start to begin consuming; the workers exit
// when the context passed to Start is cancelled.
func NewSink(writer Writer) *Sink {
	return &Sink{
		queue:   make(chan Event, DefaultQueueSize),
		writer:  writer,
		workers: DefaultWorkers,
		done:    make(chan struct{}),
	}
}

// Start launches the worker pool. It returns immediately; workers run
// until ctx is canceled.
func (s *Sink) Start(ctx context.Context) {
	for i := 0; i < s.workers; i++ {
		go s.worker(ctx)
	}
}

func (s *Sink) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-s.queue:
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := s.writer.Write(writeCtx, event); err != nil {
				log.Warn().Err(err).Str("kind", string(event.Kind)).Str("request_id", event.RequestID).Msg("audit write failed")
			}
			cancel()
		}
	}
}

// Enqueue submits event for asynchronous persistence. It never blocks:
// on queue saturation the event is dropped and a warning is logged.
func (s *Sink) Enqueue(event Event) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}
	select {
	case s.queue <- event:
	default:
		log.Warn().Str("kind", string(event.Kind)).Str("request_id", event.RequestID).Msg("audit queue saturated, event dropped")
	}
}
