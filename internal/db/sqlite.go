package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vleroux/upscale-pipeline/internal/model"
)

// SQLiteRepository implements Repository using SQLite
type SQLiteRepository struct {
	db *DB
}

// NewSQLiteRepository creates a new SQLite repository
func NewSQLiteRepository(db *DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// CreateJob inserts a job and sets its ID
func (r *SQLiteRepository) CreateJob(ctx context.Context, job *model.Job) error {
	query := `
		INSERT INTO jobs (
			source_path, duration, frame_rate, output_ext, output_path,
			status, failure_kind, failed_batch, failed_stage, error_message,
			started_at, completed_at, created_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	now := time.Now().UTC().Format(time.RFC3339)
	result, err := r.db.db.ExecContext(ctx, query,
		job.SourcePath,
		job.Duration,
		job.FrameRate,
		job.OutputExt,
		job.OutputPath,
		job.Status,
		string(job.FailureKind),
		job.FailedBatch,
		job.FailedStage,
		job.ErrorMessage,
		timeValue(job.StartedAt),
		timeValue(job.CompletedAt),
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert job: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	job.ID = id
	return nil
}

// GetJob retrieves a job by ID, or nil when it does not exist
func (r *SQLiteRepository) GetJob(ctx context.Context, id int64) (*model.Job, error) {
	query := `
		SELECT id, source_path, duration, frame_rate, output_ext, output_path,
		       status, failure_kind, failed_batch, failed_stage, error_message,
		       started_at, completed_at
		FROM jobs
		WHERE id = ?
	`

	job, err := scanJob(r.db.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

// UpdateJob writes back a job's mutable columns
func (r *SQLiteRepository) UpdateJob(ctx context.Context, job *model.Job) error {
	query := `
		UPDATE jobs
		SET output_path = ?, status = ?, failure_kind = ?, failed_batch = ?,
		    failed_stage = ?, error_message = ?, started_at = ?, completed_at = ?
		WHERE id = ?
	`

	_, err := r.db.db.ExecContext(ctx, query,
		job.OutputPath,
		job.Status,
		string(job.FailureKind),
		job.FailedBatch,
		job.FailedStage,
		job.ErrorMessage,
		timeValue(job.StartedAt),
		timeValue(job.CompletedAt),
		job.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}
	return nil
}

// ListJobs lists jobs with optional filters, newest first
func (r *SQLiteRepository) ListJobs(ctx context.Context, opts ListOptions) ([]model.Job, error) {
	query := `
		SELECT id, source_path, duration, frame_rate, output_ext, output_path,
		       status, failure_kind, failed_batch, failed_stage, error_message,
		       started_at, completed_at
		FROM jobs
		WHERE 1=1
	`
	args := []interface{}{}

	if opts.Status != nil {
		query += " AND status = ?"
		args = append(args, *opts.Status)
	}

	query += " ORDER BY id DESC"

	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}
	if opts.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, opts.Offset)
	}

	rows, err := r.db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []model.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating jobs: %w", err)
	}
	return jobs, nil
}

// CreateBatches inserts a job's planned batches in one transaction
func (r *SQLiteRepository) CreateBatches(ctx context.Context, jobID int64, batches []model.Batch) error {
	tx, err := r.db.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO batches (job_id, batch_index, start_sec, duration_sec, state, clip_path, frame_count)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	for i := range batches {
		b := &batches[i]
		result, err := tx.ExecContext(ctx, query,
			jobID, b.Index, b.Start, b.Duration, b.State.String(), b.ClipPath, b.FrameCount,
		)
		if err != nil {
			return fmt.Errorf("failed to insert batch %d: %w", b.Index, err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}
		b.ID = id
		b.JobID = jobID
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batches: %w", err)
	}
	return nil
}

// UpdateBatch writes back a batch's outcome
func (r *SQLiteRepository) UpdateBatch(ctx context.Context, batch *model.Batch) error {
	query := `
		UPDATE batches
		SET state = ?, clip_path = ?, frame_count = ?, error_message = ?,
		    started_at = ?, completed_at = ?
		WHERE id = ?
	`

	errMsg := ""
	if batch.Err != nil {
		errMsg = batch.Err.Error()
	}
	_, err := r.db.db.ExecContext(ctx, query,
		batch.State.String(),
		batch.ClipPath,
		batch.FrameCount,
		errMsg,
		timeValue(batch.StartedAt),
		timeValue(batch.CompletedAt),
		batch.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update batch: %w", err)
	}
	return nil
}

// ListBatches returns a job's batches in index order
func (r *SQLiteRepository) ListBatches(ctx context.Context, jobID int64) ([]model.Batch, error) {
	query := `
		SELECT id, job_id, batch_index, start_sec, duration_sec, state,
		       clip_path, frame_count, error_message, started_at, completed_at
		FROM batches
		WHERE job_id = ?
		ORDER BY batch_index
	`

	rows, err := r.db.db.QueryContext(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to list batches: %w", err)
	}
	defer rows.Close()

	var batches []model.Batch
	for rows.Next() {
		var b model.Batch
		var state, errMsg string
		var startedAt, completedAt sql.NullString

		err := rows.Scan(
			&b.ID, &b.JobID, &b.Index, &b.Start, &b.Duration, &state,
			&b.ClipPath, &b.FrameCount, &errMsg, &startedAt, &completedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan batch: %w", err)
		}

		b.State = parseBatchState(state)
		if errMsg != "" {
			b.Err = errors.New(errMsg)
		}
		b.StartedAt = parseTime(startedAt)
		b.CompletedAt = parseTime(completedAt)
		batches = append(batches, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating batches: %w", err)
	}
	return batches, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row rowScanner) (*model.Job, error) {
	var job model.Job
	var kind string
	var startedAt, completedAt sql.NullString

	err := row.Scan(
		&job.ID,
		&job.SourcePath,
		&job.Duration,
		&job.FrameRate,
		&job.OutputExt,
		&job.OutputPath,
		&job.Status,
		&kind,
		&job.FailedBatch,
		&job.FailedStage,
		&job.ErrorMessage,
		&startedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	job.FailureKind = model.FailureKind(kind)
	job.StartedAt = parseTime(startedAt)
	job.CompletedAt = parseTime(completedAt)
	return &job, nil
}

func parseBatchState(s string) model.BatchState {
	for _, state := range []model.BatchState{
		model.BatchPlanned, model.BatchExtracting, model.BatchUpscaling,
		model.BatchRemuxing, model.BatchComplete, model.BatchFailed,
	} {
		if state.String() == s {
			return state
		}
	}
	return model.BatchPlanned
}

func timeValue(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s.String)
	if err != nil {
		return nil
	}
	return &t
}
