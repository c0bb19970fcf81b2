package qualstore

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/westonopentrain/capsule-match/internal/apperr"
	"github.com/westonopentrain/capsule-match/pkg/models"
)

// Postgres implements Store against a PostgreSQL database, migrated at
// startup the way the teacher's vector store driver runs DDL inline.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects to connURL and ensures the jobs/qualifications
// tables exist.
func NewPostgres(ctx context.Context, connURL string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, connURL)
	if err != nil {
		return nil, fmt.Errorf("qualstore connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("qualstore ping: %w", err)
	}

	p := &Postgres{pool: pool}
	if err := p.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("qualstore migrate: %w", err)
	}
	log.Info().Msg("qualification store initialized")
	return p, nil
}

func (p *Postgres) migrate(ctx context.Context) error {
	ddl := `
		CREATE TABLE IF NOT EXISTS jobs (
			id          TEXT PRIMARY KEY,
			title       TEXT NOT NULL DEFAULT '',
			is_active   BOOLEAN NOT NULL DEFAULT TRUE,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS qualifications (
			job_id          TEXT NOT NULL,
			user_id         TEXT NOT NULL,
			qualifies       BOOLEAN NOT NULL,
			final_score     DOUBLE PRECISION NOT NULL,
			domain_score    DOUBLE PRECISION NOT NULL,
			task_score      DOUBLE PRECISION NOT NULL,
			threshold_used  DOUBLE PRECISION NOT NULL,
			filter_reason   TEXT,
			notified_at     TIMESTAMPTZ,
			notified_via    TEXT NOT NULL DEFAULT '',
			evaluated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			job_active      BOOLEAN NOT NULL DEFAULT TRUE,
			PRIMARY KEY (job_id, user_id)
		);

		CREATE INDEX IF NOT EXISTS idx_qualifications_job ON qualifications (job_id);
		CREATE INDEX IF NOT EXISTS idx_qualifications_pending
			ON qualifications (job_id) WHERE notified_at IS NULL;
	`
	_, err := p.pool.Exec(ctx, ddl)
	return err
}

// Close releases the connection pool.
func (p *Postgres) Close() { p.pool.Close() }

// Pool exposes the underlying connection pool so other components
// (the audit writer) can share it instead of opening a second one.
func (p *Postgres) Pool() *pgxpool.Pool { return p.pool }

func (p *Postgres) EnsureJob(ctx context.Context, jobID string, title string, isActive *bool) error {
	active := true
	if isActive != nil {
		active = *isActive
	}
	_, err := p.pool.Exec(ctx, `
		INSERT INTO jobs (id, title, is_active, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (id) DO UPDATE SET
			title = CASE WHEN EXCLUDED.title <> '' THEN EXCLUDED.title ELSE jobs.title END,
			is_active = $4,
			updated_at = NOW()
	`, jobID, title, active, isActiveOrExisting(isActive, active))
	if err != nil {
		return apperr.Wrap(apperr.CodeStoreFailure, err, "ensure job").WithPhase("ensure_job")
	}
	return nil
}

func isActiveOrExisting(isActive *bool, fallback bool) bool {
	if isActive != nil {
		return *isActive
	}
	return fallback
}

func (p *Postgres) SetActive(ctx context.Context, jobID string, active bool) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return apperr.Wrap(apperr.CodeStoreFailure, err, "begin set_active").WithPhase("set_active")
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `UPDATE jobs SET is_active = $1, updated_at = NOW() WHERE id = $2`, active, jobID); err != nil {
		return apperr.Wrap(apperr.CodeStoreFailure, err, "update job active flag").WithPhase("set_active")
	}
	if _, err := tx.Exec(ctx, `UPDATE qualifications SET job_active = $1 WHERE job_id = $2`, active, jobID); err != nil {
		return apperr.Wrap(apperr.CodeStoreFailure, err, "denormalize job active flag").WithPhase("set_active")
	}
	if err := tx.Commit(ctx); err != nil {
		return apperr.Wrap(apperr.CodeStoreFailure, err, "commit set_active").WithPhase("set_active")
	}
	return nil
}

func (p *Postgres) GetJob(ctx context.Context, jobID string) (*models.Job, error) {
	var job models.Job
	err := p.pool.QueryRow(ctx, `SELECT id, title, is_active FROM jobs WHERE id = $1`, jobID).
		Scan(&job.ID, &job.Title, &job.IsActive)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, apperr.Wrap(apperr.CodeStoreFailure, err, "get job").WithPhase("get_job")
	}
	return &job, nil
}

// StoreResults upserts one row per result. notifiedAt stickiness is
// enforced with COALESCE so a prior non-null value always wins over a
// new value, including NULL (§4.9, §5).
func (p *Postgres) StoreResults(ctx context.Context, jobID string, results []models.Qualification, opts StoreOptions) (int, int, error) {
	stored, failed := 0, 0
	now := time.Now()

	for _, r := range results {
		if r.UserID == "" {
			failed++
			continue
		}

		var notifiedAt *time.Time
		var notifiedVia string
		if opts.MarkNotified && r.FilterReason == nil {
			notifiedAt = &now
			notifiedVia = opts.NotifiedVia
		}

		var filterReason interface{}
		if r.FilterReason != nil {
			filterReason = string(*r.FilterReason)
		}

		_, err := p.pool.Exec(ctx, `
			INSERT INTO qualifications
				(job_id, user_id, qualifies, final_score, domain_score, task_score,
				 threshold_used, filter_reason, notified_at, notified_via, evaluated_at, job_active)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11,
				COALESCE((SELECT is_active FROM jobs WHERE id = $1), TRUE))
			ON CONFLICT (job_id, user_id) DO UPDATE SET
				qualifies = EXCLUDED.qualifies,
				final_score = EXCLUDED.final_score,
				domain_score = EXCLUDED.domain_score,
				task_score = EXCLUDED.task_score,
				threshold_used = EXCLUDED.threshold_used,
				filter_reason = EXCLUDED.filter_reason,
				notified_at = COALESCE(qualifications.notified_at, EXCLUDED.notified_at),
				notified_via = CASE
					WHEN qualifications.notified_at IS NOT NULL THEN qualifications.notified_via
					ELSE EXCLUDED.notified_via
				END,
				evaluated_at = EXCLUDED.evaluated_at,
				job_active = EXCLUDED.job_active
		`, jobID, r.UserID, r.Qualifies, r.FinalScore, r.DomainScore, r.TaskScore,
			r.ThresholdUsed, filterReason, notifiedAt, notifiedVia, now)
		if err != nil {
			failed++
			log.Error().Err(err).Str("job_id", jobID).Str("user_id", r.UserID).Msg("failed to store qualification row")
			continue
		}
		stored++
	}

	if stored == 0 && failed > 0 {
		return stored, failed, apperr.New(apperr.CodeStoreFailure, "all qualification rows failed to store").WithPhase("store_results")
	}
	return stored, failed, nil
}

func (p *Postgres) GetQualifications(ctx context.Context, jobID string, opts ListOptions) ([]models.Qualification, error) {
	query := `
		SELECT job_id, user_id, qualifies, final_score, domain_score, task_score,
			threshold_used, filter_reason, notified_at, notified_via, evaluated_at, job_active
		FROM qualifications WHERE job_id = $1`
	args := []interface{}{jobID}
	idx := 2

	if opts.QualifiesOnly {
		query += " AND qualifies = TRUE"
	}
	query += " ORDER BY user_id ASC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", idx)
		args = append(args, opts.Limit)
		idx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", idx)
		args = append(args, opts.Offset)
	}

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeStoreFailure, err, "get qualifications").WithPhase("get_qualifications")
	}
	defer rows.Close()
	return scanQualifications(rows)
}

func (p *Postgres) GetPending(ctx context.Context, jobID string) ([]models.Qualification, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT job_id, user_id, qualifies, final_score, domain_score, task_score,
			threshold_used, filter_reason, notified_at, notified_via, evaluated_at, job_active
		FROM qualifications
		WHERE job_id = $1 AND qualifies = TRUE AND notified_at IS NULL AND job_active = TRUE
		ORDER BY user_id ASC
	`, jobID)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeStoreFailure, err, "get pending").WithPhase("get_pending")
	}
	defer rows.Close()
	return scanQualifications(rows)
}

func (p *Postgres) MarkNotified(ctx context.Context, jobID string, userIDs []string, notifiedVia string) error {
	if len(userIDs) == 0 {
		return nil
	}
	_, err := p.pool.Exec(ctx, `
		UPDATE qualifications
		SET notified_at = NOW(), notified_via = $3
		WHERE job_id = $1 AND user_id = ANY($2) AND notified_at IS NULL
	`, jobID, userIDs, notifiedVia)
	if err != nil {
		return apperr.Wrap(apperr.CodeStoreFailure, err, "mark notified").WithPhase("mark_notified")
	}
	return nil
}

func (p *Postgres) FindNewlyQualifying(ctx context.Context, jobID string, results []models.Qualification) ([]models.Qualification, error) {
	var candidateIDs []string
	byUser := make(map[string]models.Qualification, len(results))
	for _, r := range results {
		if !r.Qualifies {
			continue
		}
		candidateIDs = append(candidateIDs, r.UserID)
		byUser[r.UserID] = r
	}
	if len(candidateIDs) == 0 {
		return nil, nil
	}

	rows, err := p.pool.Query(ctx, `
		SELECT user_id FROM qualifications
		WHERE job_id = $1 AND user_id = ANY($2) AND notified_at IS NOT NULL
	`, jobID, candidateIDs)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeStoreFailure, err, "find newly qualifying").WithPhase("find_newly_qualifying")
	}
	defer rows.Close()

	alreadyNotified := make(map[string]bool)
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, apperr.Wrap(apperr.CodeStoreFailure, err, "scan notified user").WithPhase("find_newly_qualifying")
		}
		alreadyNotified[userID] = true
	}

	var out []models.Qualification
	for _, id := range candidateIDs {
		if !alreadyNotified[id] {
			out = append(out, byUser[id])
		}
	}
	return out, nil
}

func (p *Postgres) DeleteJobQualifications(ctx context.Context, jobID string) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return apperr.Wrap(apperr.CodeStoreFailure, err, "begin delete").WithPhase("delete_job")
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM qualifications WHERE job_id = $1`, jobID); err != nil {
		return apperr.Wrap(apperr.CodeStoreFailure, err, "delete qualifications").WithPhase("delete_job")
	}
	if _, err := tx.Exec(ctx, `DELETE FROM jobs WHERE id = $1`, jobID); err != nil {
		return apperr.Wrap(apperr.CodeStoreFailure, err, "delete job").WithPhase("delete_job")
	}
	return tx.Commit(ctx)
}

func scanQualifications(rows pgx.Rows) ([]models.Qualification, error) {
	var out []models.Qualification
	for rows.Next() {
		var q models.Qualification
		var filterReason *string
		if err := rows.Scan(&q.JobID, &q.UserID, &q.Qualifies, &q.FinalScore, &q.DomainScore, &q.TaskScore,
			&q.ThresholdUsed, &filterReason, &q.NotifiedAt, &q.NotifiedVia, &q.EvaluatedAt, &q.JobActive); err != nil {
			return nil, apperr.Wrap(apperr.CodeStoreFailure, err, "scan qualification row")
		}
		if filterReason != nil {
			fr := models.FilterReason(*filterReason)
			q.FilterReason = &fr
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

// PurgeInactiveOlderThan deletes qualification rows (and their jobs) for
// jobs that are inactive and whose most recent evaluation predates
// cutoff — backing the qualstore retention janitor.
func (p *Postgres) PurgeInactiveOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT j.id FROM jobs j
		WHERE j.is_active = FALSE
		AND j.id NOT IN (
			SELECT job_id FROM qualifications WHERE evaluated_at > $1
		)
	`, cutoff)
	if err != nil {
		return 0, apperr.Wrap(apperr.CodeStoreFailure, err, "find stale jobs").WithPhase("retention")
	}
	var staleJobIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, apperr.Wrap(apperr.CodeStoreFailure, err, "scan stale job id").WithPhase("retention")
		}
		staleJobIDs = append(staleJobIDs, id)
	}
	rows.Close()

	purged := 0
	for _, id := range staleJobIDs {
		if err := p.DeleteJobQualifications(ctx, id); err != nil {
			log.Warn().Err(err).Str("job_id", id).Msg("retention: failed to purge stale job")
			continue
		}
		purged++
	}
	return purged, nil
}
