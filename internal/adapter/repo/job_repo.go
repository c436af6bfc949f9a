package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"server/internal/domain"
)

// JobRepositoryPG implements domain.JobRepository.
type JobRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewJobRepository creates a new job repository backed by PostgreSQL.
func NewJobRepository(pool *pgxpool.Pool) *JobRepositoryPG {
	return &JobRepositoryPG{pool: pool}
}

// Schema for the single jobs table. Applied at startup; idempotent.
const schema = `
CREATE TABLE IF NOT EXISTS jobs (
    id               TEXT PRIMARY KEY,
    status           TEXT NOT NULL DEFAULT 'pending',
    original_url     TEXT NOT NULL,
    result_url       TEXT,
    prompt           TEXT NOT NULL,
    is_custom_prompt BOOLEAN NOT NULL DEFAULT FALSE,
    error_message    TEXT,
    created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_jobs_completed_created
    ON jobs (created_at DESC) WHERE status = 'completed';
`

// EnsureSchema creates the jobs table if it does not exist.
func (r *JobRepositoryPG) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure jobs schema: %w", err)
	}
	return nil
}

// Create inserts a new job record.
func (r *JobRepositoryPG) Create(ctx context.Context, job *domain.Job) error {
	query := `
INSERT INTO jobs (id, status, original_url, result_url, prompt, is_custom_prompt, error_message)
VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, NULLIF($7, ''));
`
	_, err := r.pool.Exec(ctx, query,
		job.ID,
		job.Status,
		job.OriginalURL,
		job.ResultURL,
		job.Prompt,
		job.IsCustomPrompt,
		job.ErrorMessage,
	)
	return err
}

// GetByID fetches a job by its identifier.
func (r *JobRepositoryPG) GetByID(ctx context.Context, jobID string) (*domain.Job, error) {
	query := `
SELECT id, status, original_url, COALESCE(result_url, ''), prompt, is_custom_prompt, COALESCE(error_message, ''), created_at, updated_at
FROM jobs
WHERE id = $1;
`
	row := r.pool.QueryRow(ctx, query, jobID)
	var job domain.Job
	if err := row.Scan(
		&job.ID,
		&job.Status,
		&job.OriginalURL,
		&job.ResultURL,
		&job.Prompt,
		&job.IsCustomPrompt,
		&job.ErrorMessage,
		&job.CreatedAt,
		&job.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &job, nil
}

// TransitionStatus performs a compare-and-set status advance. The WHERE clause
// on the current status makes the update a no-op for any caller that lost the
// race, which it learns from the affected row count.
func (r *JobRepositoryPG) TransitionStatus(ctx context.Context, jobID string, from, to domain.JobStatus) (bool, error) {
	query := `
UPDATE jobs
SET status = $3, updated_at = NOW()
WHERE id = $1 AND status = $2;
`
	tag, err := r.pool.Exec(ctx, query, jobID, from, to)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// MarkCompleted sets the terminal completed state with its result URL and
// clears any stale error message.
func (r *JobRepositoryPG) MarkCompleted(ctx context.Context, jobID, resultURL string) error {
	query := `
UPDATE jobs
SET status = $2, result_url = $3, error_message = NULL, updated_at = NOW()
WHERE id = $1;
`
	_, err := r.pool.Exec(ctx, query, jobID, domain.JobStatusCompleted, resultURL)
	return err
}

// MarkFailed sets the terminal failed state with a human-readable cause.
func (r *JobRepositoryPG) MarkFailed(ctx context.Context, jobID, message string) error {
	query := `
UPDATE jobs
SET status = $2, error_message = $3, updated_at = NOW()
WHERE id = $1;
`
	_, err := r.pool.Exec(ctx, query, jobID, domain.JobStatusFailed, message)
	return err
}

// ListCompleted returns a page of completed jobs, newest first, plus the total
// completed count.
func (r *JobRepositoryPG) ListCompleted(ctx context.Context, limit, offset int) ([]domain.Job, int, error) {
	query := `
SELECT id, status, original_url, COALESCE(result_url, ''), prompt, is_custom_prompt, COALESCE(error_message, ''), created_at, updated_at
FROM jobs
WHERE status = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3;
`
	rows, err := r.pool.Query(ctx, query, domain.JobStatusCompleted, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var jobs []domain.Job
	for rows.Next() {
		var job domain.Job
		if err := rows.Scan(
			&job.ID,
			&job.Status,
			&job.OriginalURL,
			&job.ResultURL,
			&job.Prompt,
			&job.IsCustomPrompt,
			&job.ErrorMessage,
			&job.CreatedAt,
			&job.UpdatedAt,
		); err != nil {
			return nil, 0, err
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM jobs WHERE status = $1;`
	if err := r.pool.QueryRow(ctx, countQuery, domain.JobStatusCompleted).Scan(&total); err != nil {
		return nil, 0, err
	}

	return jobs, total, nil
}

var _ domain.JobRepository = (*JobRepositoryPG)(nil)
