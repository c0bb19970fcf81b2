package audit_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/westonopentrain/capsule-match/internal/audit"
)

type recordingWriter struct {
	mu     sync.Mutex
	events []audit.Event
}

func (w *recordingWriter) Write(_ context.Context, e audit.Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.events = append(w.events, e)
	return nil
}

func (w *recordingWriter) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.events)
}

func TestSink_EnqueueAssignsIDAndTimestamp(t *testing.T) {
	w := &recordingWriter{}
	s := audit.NewSink(w)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)

	s.Enqueue(audit.Event{Kind: audit.EventUpsertJob, JobID: "job-1"})

	deadline := time.Now().Add(time.Second)
	for w.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	if w.count() != 1 {
		t.Fatalf("writer received %d events, want 1", w.count())
	}
	w.mu.Lock()
	got := w.events[0]
	w.mu.Unlock()

	if got.ID == "" {
		t.Error("Enqueue() left ID empty, want an assigned uuid")
	}
	if got.OccurredAt.IsZero() {
		t.Error("Enqueue() left OccurredAt zero, want now() stamped")
	}
}

func TestSink_EnqueueDropsOnSaturationWithoutBlocking(t *testing.T) {
	w := &recordingWriter{}
	s := audit.NewSink(w)

	// No Start() call: nothing drains the queue, so it fills to
	// DefaultQueueSize and further Enqueue calls must drop, not block.
	done := make(chan struct{})
	go func() {
		for i := 0; i < audit.DefaultQueueSize+500; i++ {
			s.Enqueue(audit.Event{Kind: audit.EventEvaluate})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Enqueue() blocked under queue saturation, want non-blocking drop")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)

	deadline := time.Now().Add(time.Second)
	for w.count() < audit.DefaultQueueSize && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	if w.count() != audit.DefaultQueueSize {
		t.Errorf("writer received %d events after drain, want exactly %d (the rest dropped)", w.count(), audit.DefaultQueueSize)
	}
}

func TestNoopWriter_AlwaysSucceeds(t *testing.T) {
	if err := (audit.NoopWriter{}).Write(context.Background(), audit.Event{}); err != nil {
		t.Errorf("NoopWriter.Write() error = %v, want nil", err)
	}
}
