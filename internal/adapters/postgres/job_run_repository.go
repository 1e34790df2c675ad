package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/kevin07696/membership-service/internal/domain"
	"github.com/kevin07696/membership-service/internal/domain/ports"
)

// JobRunRepository persists batch job audit records
type JobRunRepository struct {
	pool ports.DBTX
}

// NewJobRunRepository creates a new job run repository
func NewJobRunRepository(db ports.DBPort) *JobRunRepository {
	return &JobRunRepository{pool: db.GetDB()}
}

// Start records a run in the running state
func (r *JobRunRepository) Start(ctx context.Context, tx ports.DBTX, run *ports.JobRun) error {
	id, err := uuid.Parse(run.ID)
	if err != nil {
		return fmt.Errorf("invalid job run ID: %w", err)
	}
	_, err = conn(r.pool, tx).Exec(ctx, `
		INSERT INTO job_runs (id, job, status, dry_run, started_at)
		VALUES ($1, $2, $3, $4, $5)`,
		id, run.Job, run.Status, run.DryRun, run.StartedAt)
	if err != nil {
		return fmt.Errorf("start job run: %w", err)
	}
	return nil
}

// Finish stores the final status and JSON summary
func (r *JobRunRepository) Finish(ctx context.Context, tx ports.DBTX, runID, status string, summary []byte, finishedAt time.Time) error {
	id, err := uuid.Parse(runID)
	if err != nil {
		return fmt.Errorf("invalid job run ID: %w", err)
	}
	tag, err := conn(r.pool, tx).Exec(ctx, `
		UPDATE job_runs SET status = $2, summary = $3, finished_at = $4
		WHERE id = $1`,
		id, status, summary, finishedAt)
	if err != nil {
		return fmt.Errorf("finish job run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewDomainError(domain.ErrorCodeInternalError, "job run not started").WithDetail("run_id", runID)
	}
	return nil
}

// ListRecent returns the latest runs of a job, newest first
func (r *JobRunRepository) ListRecent(ctx context.Context, db ports.DBTX, job string, limit int) ([]*ports.JobRun, error) {
	rows, err := conn(r.pool, db).Query(ctx, `
		SELECT id, job, status, dry_run, summary, started_at, finished_at
		FROM job_runs WHERE job = $1
		ORDER BY started_at DESC LIMIT $2`, job, limit)
	if err != nil {
		return nil, fmt.Errorf("list job runs: %w", err)
	}
	defer rows.Close()

	var runs []*ports.JobRun
	for rows.Next() {
		var (
			run      ports.JobRun
			id       uuid.UUID
			finished pgtype.Timestamptz
		)
		if err := rows.Scan(&id, &run.Job, &run.Status, &run.DryRun, &run.Summary, &run.StartedAt, &finished); err != nil {
			return nil, fmt.Errorf("scan job run: %w", err)
		}
		run.ID = id.String()
		run.FinishedAt = timestamptzPtr(finished)
		runs = append(runs, &run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate job runs: %w", err)
	}
	return runs, nil
}

var _ ports.JobRunRepository = (*JobRunRepository)(nil)
