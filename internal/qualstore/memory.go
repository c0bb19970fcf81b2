package qualstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/westonopentrain/capsule-match/pkg/models"
)

// Memory is an in-memory twin of the Postgres-backed store, used by
// tests and as a zero-config fallback when DATABASE_URL is unset (audit
// is then also disabled per spec.md §6).
type Memory struct {
	mu    sync.Mutex
	jobs  map[string]*models.Job
	quals map[string]map[string]models.Qualification // jobID -> userID -> qualification
}

// NewMemory creates an empty in-memory qualification store.
func NewMemory() *Memory {
	return &Memory{
		jobs:  make(map[string]*models.Job),
		quals: make(map[string]map[string]models.Qualification),
	}
}

func (m *Memory) EnsureJob(_ context.Context, jobID string, title string, isActive *bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	active := true
	if isActive != nil {
		active = *isActive
	}

	if existing, ok := m.jobs[jobID]; ok {
		if title != "" {
			existing.Title = title
		}
		if isActive != nil {
			existing.IsActive = active
		}
		return nil
	}
	m.jobs[jobID] = &models.Job{ID: jobID, Title: title, IsActive: active}
	return nil
}

func (m *Memory) SetActive(_ context.Context, jobID string, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[jobID]
	if !ok {
		job = &models.Job{ID: jobID, IsActive: active}
		m.jobs[jobID] = job
	} else {
		job.IsActive = active
	}

	for userID, q := range m.quals[jobID] {
		q.JobActive = active
		m.quals[jobID][userID] = q
	}
	return nil
}

func (m *Memory) GetJob(_ context.Context, jobID string) (*models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return nil, nil
	}
	cp := *job
	return &cp, nil
}

func (m *Memory) StoreResults(_ context.Context, jobID string, results []models.Qualification, opts StoreOptions) (int, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rows, ok := m.quals[jobID]
	if !ok {
		rows = make(map[string]models.Qualification)
		m.quals[jobID] = rows
	}

	job := m.jobs[jobID]
	jobActive := true
	if job != nil {
		jobActive = job.IsActive
	}

	stored, failed := 0, 0
	now := time.Now()
	for _, r := range results {
		if r.UserID == "" {
			failed++
			log.Warn().Str("job_id", jobID).Msg("qualification row missing user_id, skipped")
			continue
		}
		r.JobID = jobID
		r.JobActive = jobActive
		r.EvaluatedAt = now

		existing, hadExisting := rows[r.UserID]
		if hadExisting && existing.NotifiedAt != nil {
			// Stickiness: never clear a previously-set notifiedAt.
			r.NotifiedAt = existing.NotifiedAt
			r.NotifiedVia = existing.NotifiedVia
		}
		if opts.MarkNotified && r.FilterReason == nil {
			if r.NotifiedAt == nil {
				r.NotifiedAt = &now
			}
			if r.NotifiedVia == "" {
				r.NotifiedVia = opts.NotifiedVia
			}
		}

		rows[r.UserID] = r
		stored++
	}
	return stored, failed, nil
}

func (m *Memory) GetQualifications(_ context.Context, jobID string, opts ListOptions) ([]models.Qualification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.Qualification
	for _, q := range m.quals[jobID] {
		if opts.QualifiesOnly && !q.Qualifies {
			continue
		}
		out = append(out, q)
	}
	sortByUserID(out)

	if opts.Offset > 0 {
		if opts.Offset >= len(out) {
			return nil, nil
		}
		out = out[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(out) {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (m *Memory) GetPending(_ context.Context, jobID string) ([]models.Qualification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.Qualification
	for _, q := range m.quals[jobID] {
		if q.Qualifies && q.NotifiedAt == nil && q.JobActive {
			out = append(out, q)
		}
	}
	sortByUserID(out)
	return out, nil
}

func (m *Memory) MarkNotified(_ context.Context, jobID string, userIDs []string, notifiedVia string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rows, ok := m.quals[jobID]
	if !ok {
		return nil
	}
	now := time.Now()
	for _, userID := range userIDs {
		q, ok := rows[userID]
		if !ok {
			continue
		}
		if q.NotifiedAt == nil {
			q.NotifiedAt = &now
			q.NotifiedVia = notifiedVia
			rows[userID] = q
		}
	}
	return nil
}

func (m *Memory) FindNewlyQualifying(_ context.Context, jobID string, results []models.Qualification) ([]models.Qualification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rows := m.quals[jobID]
	var out []models.Qualification
	for _, r := range results {
		if !r.Qualifies {
			continue
		}
		if existing, ok := rows[r.UserID]; ok && existing.NotifiedAt != nil {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (m *Memory) DeleteJobQualifications(_ context.Context, jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.quals, jobID)
	delete(m.jobs, jobID)
	return nil
}

func sortByUserID(quals []models.Qualification) {
	sort.Slice(quals, func(i, j int) bool { return quals[i].UserID < quals[j].UserID })
}
