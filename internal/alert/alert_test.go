package alert_test

import (
	"context"
	"testing"

	"github.com/westonopentrain/capsule-match/internal/alert"
)

type recordingAlerter struct {
	titles []string
}

func (a *recordingAlerter) Alert(_ context.Context, title, _ string) {
	a.titles = append(a.titles, title)
}

func (a *recordingAlerter) fired(title string) bool {
	for _, t := range a.titles {
		if t == title {
			return true
		}
	}
	return false
}

func TestEvaluate_LowMatchCount(t *testing.T) {
	a := &recordingAlerter{}
	alert.Evaluate(context.Background(), a, alert.Conditions{JobID: "job-1", ResultsCount: 2})
	if !a.fired("low match count") {
		t.Errorf("Evaluate() titles = %v, want 'low match count' to fire for ResultsCount=2", a.titles)
	}
}

func TestEvaluate_HighMatchCount(t *testing.T) {
	a := &recordingAlerter{}
	alert.Evaluate(context.Background(), a, alert.Conditions{JobID: "job-1", ResultsCount: 300, CountAboveThreshold: 201})
	if !a.fired("high match count") {
		t.Errorf("Evaluate() titles = %v, want 'high match count' to fire for CountAboveThreshold=201", a.titles)
	}
}

func TestEvaluate_HighMissingVectorRate(t *testing.T) {
	a := &recordingAlerter{}
	alert.Evaluate(context.Background(), a, alert.Conditions{JobID: "job-1", ResultsCount: 50, PoolSize: 20, MissingVectorsRate: 0.6})
	if !a.fired("high missing-vector rate") {
		t.Errorf("Evaluate() titles = %v, want 'high missing-vector rate' to fire for PoolSize=20, rate=0.6", a.titles)
	}
}

func TestEvaluate_HighMissingVectorRate_SkipsSmallPools(t *testing.T) {
	a := &recordingAlerter{}
	alert.Evaluate(context.Background(), a, alert.Conditions{JobID: "job-1", ResultsCount: 50, PoolSize: 5, MissingVectorsRate: 0.9})
	if a.fired("high missing-vector rate") {
		t.Error("Evaluate() should not fire the missing-vector alert for pools of size <= 10")
	}
}

func TestEvaluate_LowClassificationConfidence(t *testing.T) {
	a := &recordingAlerter{}
	alert.Evaluate(context.Background(), a, alert.Conditions{JobID: "job-1", ResultsCount: 50, ClassificationConfidence: 0.5})
	if !a.fired("low classification confidence") {
		t.Errorf("Evaluate() titles = %v, want 'low classification confidence' to fire for confidence=0.5", a.titles)
	}
}

func TestEvaluate_ZeroConfidenceIsTreatedAsUnset(t *testing.T) {
	a := &recordingAlerter{}
	alert.Evaluate(context.Background(), a, alert.Conditions{JobID: "job-1", ResultsCount: 50, ClassificationConfidence: 0})
	if a.fired("low classification confidence") {
		t.Error("Evaluate() should not fire the confidence alert when ClassificationConfidence is the zero value (unset)")
	}
}

func TestEvaluate_HealthyConditionsFireNothing(t *testing.T) {
	a := &recordingAlerter{}
	alert.Evaluate(context.Background(), a, alert.Conditions{
		JobID:                    "job-1",
		ResultsCount:             50,
		CountAboveThreshold:      20,
		PoolSize:                 100,
		MissingVectorsRate:       0.1,
		ClassificationConfidence: 0.95,
	})
	if len(a.titles) != 0 {
		t.Errorf("Evaluate() titles = %v, want none for healthy conditions", a.titles)
	}
}

func TestNoop_DoesNotPanic(t *testing.T) {
	alert.Noop{}.Alert(context.Background(), "title", "message")
}
