package matchpipeline_test

import (
	"context"
	"testing"

	"github.com/westonopentrain/capsule-match/internal/alert"
	"github.com/westonopentrain/capsule-match/internal/audit"
	"github.com/westonopentrain/capsule-match/internal/classify"
	"github.com/westonopentrain/capsule-match/internal/embed"
	"github.com/westonopentrain/capsule-match/internal/gate"
	"github.com/westonopentrain/capsule-match/internal/matchpipeline"
	"github.com/westonopentrain/capsule-match/internal/qualstore"
	"github.com/westonopentrain/capsule-match/internal/vectorstore"
)

func newTestPipeline(t *testing.T) *matchpipeline.Pipeline {
	t.Helper()
	store := vectorstore.NewMemoryStore()
	embedder := embed.NewMock(16)
	return matchpipeline.New(
		store,
		classify.NewHeuristic(),
		embedder,
		gate.NewCache(embedder),
		qualstore.NewMemory(),
		audit.NewSink(audit.NoopWriter{}),
		alert.Noop{},
		matchpipeline.Namespaces{Users: "users", Jobs: "jobs"},
		16,
	)
}

func TestUpsertUser_ThenNotify(t *testing.T) {
	p := newTestPipeline(t)
	ctx := context.Background()

	_, err := p.UpsertUser(ctx, classify.NormalizedUserProfile{
		UserID:          "user-1",
		Bio:             "Customer support specialist handling inbound tickets",
		YearsExperience: 3,
	}, "req-1")
	if err != nil {
		t.Fatalf("UpsertUser() error = %v", err)
	}

	result, err := p.Notify(ctx, matchpipeline.NotifyRequest{
		Job: classify.NormalizedJobPosting{
			JobID:       "job-1",
			Title:       "Customer support",
			Description: "Answer customer emails and tickets",
		},
	}, "req-2")
	if err != nil {
		t.Fatalf("Notify() error = %v", err)
	}
	if result.Status != "ok" {
		t.Errorf("Notify().Status = %q, want ok", result.Status)
	}
	if result.TotalCandidates == 0 {
		t.Fatal("Notify().TotalCandidates = 0, want at least the one upserted user retrieved as a candidate")
	}
}

func TestNotify_NoCandidatesShortCircuits(t *testing.T) {
	p := newTestPipeline(t)
	ctx := context.Background()

	result, err := p.Notify(ctx, matchpipeline.NotifyRequest{
		Job: classify.NormalizedJobPosting{JobID: "job-empty", Title: "Lonely job posting"},
	}, "req-1")
	if err != nil {
		t.Fatalf("Notify() error = %v", err)
	}
	if result.TotalCandidates != 0 {
		t.Errorf("Notify().TotalCandidates = %d, want 0 with no users indexed", result.TotalCandidates)
	}
	if len(result.NotifyUserIDs) != 0 {
		t.Errorf("Notify().NotifyUserIDs = %v, want empty", result.NotifyUserIDs)
	}
}

func TestDeleteUser_RemovesVectors(t *testing.T) {
	p := newTestPipeline(t)
	ctx := context.Background()

	if _, err := p.UpsertUser(ctx, classify.NormalizedUserProfile{UserID: "user-1", Bio: "A bio"}, "req-1"); err != nil {
		t.Fatalf("UpsertUser() error = %v", err)
	}
	if err := p.DeleteUser(ctx, "user-1", "req-2"); err != nil {
		t.Fatalf("DeleteUser() error = %v", err)
	}

	result, err := p.Notify(ctx, matchpipeline.NotifyRequest{
		Job: classify.NormalizedJobPosting{JobID: "job-1", Title: "Some job"},
	}, "req-3")
	if err != nil {
		t.Fatalf("Notify() error = %v", err)
	}
	if result.TotalCandidates != 0 {
		t.Errorf("Notify().TotalCandidates = %d after DeleteUser(), want 0", result.TotalCandidates)
	}
}

func TestDeleteJob_RemovesQualificationRows(t *testing.T) {
	p := newTestPipeline(t)
	ctx := context.Background()

	if _, err := p.UpsertUser(ctx, classify.NormalizedUserProfile{UserID: "user-1", Bio: "Data entry clerk"}, "req-1"); err != nil {
		t.Fatalf("UpsertUser() error = %v", err)
	}
	if _, err := p.Notify(ctx, matchpipeline.NotifyRequest{
		Job: classify.NormalizedJobPosting{JobID: "job-1", Title: "Data entry task"},
	}, "req-2"); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}

	if err := p.DeleteJob(ctx, "job-1", "req-3"); err != nil {
		t.Fatalf("DeleteJob() error = %v", err)
	}

	job, err := p.Qual.GetJob(ctx, "job-1")
	if err != nil {
		t.Fatalf("GetJob() error = %v", err)
	}
	if job != nil {
		t.Errorf("GetJob() after DeleteJob() = %+v, want nil", job)
	}

	quals, err := p.Qual.GetQualifications(ctx, "job-1", qualstore.ListOptions{})
	if err != nil {
		t.Fatalf("GetQualifications() error = %v", err)
	}
	if len(quals) != 0 {
		t.Errorf("GetQualifications() after DeleteJob() = %+v, want empty", quals)
	}
}

func TestNotify_FiltersCandidatesByLanguage(t *testing.T) {
	p := newTestPipeline(t)
	ctx := context.Background()

	if _, err := p.UpsertUser(ctx, classify.NormalizedUserProfile{
		UserID:    "bilingual",
		Bio:       "Customer support specialist handling inbound tickets",
		Languages: []string{"Polish", "English"},
	}, "req-1"); err != nil {
		t.Fatalf("UpsertUser() error = %v", err)
	}
	if _, err := p.UpsertUser(ctx, classify.NormalizedUserProfile{
		UserID:    "polish-only",
		Bio:       "Customer support specialist handling inbound tickets",
		Languages: []string{"Polish"},
	}, "req-2"); err != nil {
		t.Fatalf("UpsertUser() error = %v", err)
	}

	result, err := p.Notify(ctx, matchpipeline.NotifyRequest{
		Job: classify.NormalizedJobPosting{
			JobID:       "job-1",
			Title:       "Customer support",
			Description: "Answer customer emails and tickets",
			Languages:   []string{"English"},
		},
	}, "req-3")
	if err != nil {
		t.Fatalf("Notify() error = %v", err)
	}
	if result.TotalCandidates != 1 {
		t.Fatalf("Notify().TotalCandidates = %d, want 1 with languages=[English] filter", result.TotalCandidates)
	}
}

func TestScoreUsersForJob_RanksCandidates(t *testing.T) {
	p := newTestPipeline(t)
	ctx := context.Background()

	if _, err := p.UpsertUser(ctx, classify.NormalizedUserProfile{UserID: "user-1", Bio: "Customer support agent"}, "req-1"); err != nil {
		t.Fatalf("UpsertUser() error = %v", err)
	}
	if _, err := p.UpsertUser(ctx, classify.NormalizedUserProfile{UserID: "user-2", Bio: "Marine biologist researcher"}, "req-2"); err != nil {
		t.Fatalf("UpsertUser() error = %v", err)
	}
	if _, err := p.UpsertJob(ctx, classify.NormalizedJobPosting{JobID: "job-1", Title: "Customer support", Description: "Respond to support tickets"}, nil, "req-3"); err != nil {
		t.Fatalf("UpsertJob() error = %v", err)
	}

	result, err := p.ScoreUsersForJob(ctx, matchpipeline.ScoreUsersForJobRequest{
		JobID:            "job-1",
		CandidateUserIDs: []string{"user-1", "user-2"},
		AutoWeights:      true,
		TopK:             10,
	}, "req-4")
	if err != nil {
		t.Fatalf("ScoreUsersForJob() error = %v", err)
	}
	if len(result.Users) != 2 {
		t.Fatalf("ScoreUsersForJob() returned %d users, want 2", len(result.Users))
	}
	if result.Users[0].Final < result.Users[1].Final {
		t.Errorf("ScoreUsersForJob() not ranked descending: %+v", result.Users)
	}
}
