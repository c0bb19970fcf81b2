package qualstore_test

import (
	"context"
	"testing"

	"github.com/westonopentrain/capsule-match/internal/qualstore"
	"github.com/westonopentrain/capsule-match/pkg/models"
)

func boolPtr(b bool) *bool { return &b }

func TestMemory_EnsureJob_CreatesAndUpdates(t *testing.T) {
	m := qualstore.NewMemory()
	ctx := context.Background()

	if err := m.EnsureJob(ctx, "job-1", "Attorney review", nil); err != nil {
		t.Fatalf("EnsureJob() error = %v", err)
	}
	job, err := m.GetJob(ctx, "job-1")
	if err != nil {
		t.Fatalf("GetJob() error = %v", err)
	}
	if job == nil || job.Title != "Attorney review" || !job.IsActive {
		t.Fatalf("GetJob() = %+v, want active job titled 'Attorney review'", job)
	}

	if err := m.EnsureJob(ctx, "job-1", "Senior attorney review", boolPtr(false)); err != nil {
		t.Fatalf("EnsureJob() update error = %v", err)
	}
	job, _ = m.GetJob(ctx, "job-1")
	if job.Title != "Senior attorney review" || job.IsActive {
		t.Fatalf("GetJob() after update = %+v, want updated title and isActive=false", job)
	}
}

func TestMemory_GetJob_UnknownReturnsNil(t *testing.T) {
	m := qualstore.NewMemory()
	job, err := m.GetJob(context.Background(), "nonexistent")
	if err != nil {
		t.Fatalf("GetJob() error = %v", err)
	}
	if job != nil {
		t.Errorf("GetJob() = %+v, want nil for unknown job", job)
	}
}

func TestMemory_SetActive_DenormalizesOntoQualifications(t *testing.T) {
	m := qualstore.NewMemory()
	ctx := context.Background()

	if _, _, err := m.StoreResults(ctx, "job-1", []models.Qualification{
		{UserID: "u1", Qualifies: true},
	}, qualstore.StoreOptions{}); err != nil {
		t.Fatalf("StoreResults() error = %v", err)
	}

	if err := m.SetActive(ctx, "job-1", false); err != nil {
		t.Fatalf("SetActive() error = %v", err)
	}

	quals, err := m.GetQualifications(ctx, "job-1", qualstore.ListOptions{})
	if err != nil {
		t.Fatalf("GetQualifications() error = %v", err)
	}
	if len(quals) != 1 || quals[0].JobActive {
		t.Errorf("GetQualifications() = %+v, want JobActive=false after SetActive(false)", quals)
	}
}

func TestMemory_StoreResults_StickyNotifiedAt(t *testing.T) {
	m := qualstore.NewMemory()
	ctx := context.Background()

	if _, _, err := m.StoreResults(ctx, "job-1", []models.Qualification{
		{UserID: "u1", Qualifies: true},
	}, qualstore.StoreOptions{MarkNotified: true, NotifiedVia: "slack"}); err != nil {
		t.Fatalf("StoreResults() error = %v", err)
	}

	quals, _ := m.GetQualifications(ctx, "job-1", qualstore.ListOptions{})
	if len(quals) != 1 || quals[0].NotifiedAt == nil {
		t.Fatalf("first StoreResults() = %+v, want NotifiedAt set", quals)
	}
	firstNotifiedAt := quals[0].NotifiedAt

	// Re-score without MarkNotified; notifiedAt must stick.
	if _, _, err := m.StoreResults(ctx, "job-1", []models.Qualification{
		{UserID: "u1", Qualifies: true},
	}, qualstore.StoreOptions{}); err != nil {
		t.Fatalf("second StoreResults() error = %v", err)
	}
	quals, _ = m.GetQualifications(ctx, "job-1", qualstore.ListOptions{})
	if quals[0].NotifiedAt == nil || *quals[0].NotifiedAt != *firstNotifiedAt {
		t.Errorf("StoreResults() cleared a previously-set NotifiedAt; stickiness broken")
	}
}

func TestMemory_StoreResults_SkipsRowsMissingUserID(t *testing.T) {
	m := qualstore.NewMemory()
	stored, failed, err := m.StoreResults(context.Background(), "job-1", []models.Qualification{
		{UserID: "u1", Qualifies: true},
		{UserID: "", Qualifies: true},
	}, qualstore.StoreOptions{})
	if err != nil {
		t.Fatalf("StoreResults() error = %v", err)
	}
	if stored != 1 || failed != 1 {
		t.Errorf("StoreResults() = (stored=%d, failed=%d), want (1, 1)", stored, failed)
	}
}

func TestMemory_GetPending_OnlyQualifyingNotNotifiedActive(t *testing.T) {
	m := qualstore.NewMemory()
	ctx := context.Background()

	if err := m.EnsureJob(ctx, "job-1", "t", boolPtr(true)); err != nil {
		t.Fatalf("EnsureJob() error = %v", err)
	}
	if _, _, err := m.StoreResults(ctx, "job-1", []models.Qualification{
		{UserID: "qualifies-pending", Qualifies: true},
		{UserID: "not-qualifying", Qualifies: false},
		{UserID: "already-notified", Qualifies: true},
	}, qualstore.StoreOptions{}); err != nil {
		t.Fatalf("StoreResults() error = %v", err)
	}
	if err := m.MarkNotified(ctx, "job-1", []string{"already-notified"}, "slack"); err != nil {
		t.Fatalf("MarkNotified() error = %v", err)
	}

	pending, err := m.GetPending(ctx, "job-1")
	if err != nil {
		t.Fatalf("GetPending() error = %v", err)
	}
	if len(pending) != 1 || pending[0].UserID != "qualifies-pending" {
		t.Errorf("GetPending() = %+v, want only qualifies-pending", pending)
	}
}

func TestMemory_FindNewlyQualifying(t *testing.T) {
	m := qualstore.NewMemory()
	ctx := context.Background()

	if _, _, err := m.StoreResults(ctx, "job-1", []models.Qualification{
		{UserID: "already-notified", Qualifies: true},
	}, qualstore.StoreOptions{MarkNotified: true, NotifiedVia: "slack"}); err != nil {
		t.Fatalf("StoreResults() error = %v", err)
	}

	newly, err := m.FindNewlyQualifying(ctx, "job-1", []models.Qualification{
		{UserID: "already-notified", Qualifies: true},
		{UserID: "brand-new", Qualifies: true},
		{UserID: "not-qualifying", Qualifies: false},
	})
	if err != nil {
		t.Fatalf("FindNewlyQualifying() error = %v", err)
	}
	if len(newly) != 1 || newly[0].UserID != "brand-new" {
		t.Errorf("FindNewlyQualifying() = %+v, want only brand-new", newly)
	}
}

func TestMemory_DeleteJobQualifications(t *testing.T) {
	m := qualstore.NewMemory()
	ctx := context.Background()

	if err := m.EnsureJob(ctx, "job-1", "t", nil); err != nil {
		t.Fatalf("EnsureJob() error = %v", err)
	}
	if _, _, err := m.StoreResults(ctx, "job-1", []models.Qualification{{UserID: "u1", Qualifies: true}}, qualstore.StoreOptions{}); err != nil {
		t.Fatalf("StoreResults() error = %v", err)
	}

	if err := m.DeleteJobQualifications(ctx, "job-1"); err != nil {
		t.Fatalf("DeleteJobQualifications() error = %v", err)
	}

	job, _ := m.GetJob(ctx, "job-1")
	if job != nil {
		t.Errorf("GetJob() after delete = %+v, want nil", job)
	}
	quals, _ := m.GetQualifications(ctx, "job-1", qualstore.ListOptions{})
	if len(quals) != 0 {
		t.Errorf("GetQualifications() after delete = %+v, want empty", quals)
	}
}

func TestMemory_GetQualifications_LimitAndOffset(t *testing.T) {
	m := qualstore.NewMemory()
	ctx := context.Background()

	if _, _, err := m.StoreResults(ctx, "job-1", []models.Qualification{
		{UserID: "a", Qualifies: true},
		{UserID: "b", Qualifies: true},
		{UserID: "c", Qualifies: true},
	}, qualstore.StoreOptions{}); err != nil {
		t.Fatalf("StoreResults() error = %v", err)
	}

	page, err := m.GetQualifications(ctx, "job-1", qualstore.ListOptions{Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("GetQualifications() error = %v", err)
	}
	if len(page) != 1 || page[0].UserID != "b" {
		t.Errorf("GetQualifications(Limit:1,Offset:1) = %+v, want [b] (sorted by user id)", page)
	}
}
