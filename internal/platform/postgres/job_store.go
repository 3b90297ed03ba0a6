package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/visionforge/detect-api/internal/domain"
	"github.com/visionforge/detect-api/internal/platform/logger"
	"github.com/visionforge/detect-api/internal/store"
)

// PostgresJobStore implements the store.JobStore interface using PostgreSQL.
type PostgresJobStore struct {
	db store.DBTX
}

// NewPostgresJobStore creates a new PostgresJobStore.
func NewPostgresJobStore(db store.DBTX) *PostgresJobStore {
	return &PostgresJobStore{db: db}
}

// WithTx returns a new JobStore instance that uses the provided transaction.
func (s *PostgresJobStore) WithTx(tx *sql.Tx) store.JobStore {
	return &PostgresJobStore{db: tx}
}

// jobColumns is the canonical select list, kept in one place so scans stay
// aligned with the schema.
const jobColumns = `id, user_id, status, image_path, overlay_path, csv_path,
	model_name, model_version, error_message, created_at, updated_at`

// Create saves a new job to the database and populates its ID and timestamps.
func (s *PostgresJobStore) Create(ctx context.Context, job *domain.Job) error {
	log := logger.FromContext(ctx)

	if err := job.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO jobs (user_id, status, image_path, model_name, model_version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	now := time.Now().UTC()
	err := s.db.QueryRowContext(ctx, query,
		job.UserID,
		job.Status,
		job.ImagePath,
		job.ModelName,
		job.ModelVersion,
		now,
		now,
	).Scan(&job.ID)

	if err != nil {
		log.Error("failed to create job", "user_id", job.UserID, "error", err)
		return store.NewStoreError("job", "create", "failed to insert job", err)
	}

	job.CreatedAt = now
	job.UpdatedAt = now
	return nil
}

// GetByID retrieves a job by its unique ID.
func (s *PostgresJobStore) GetByID(ctx context.Context, id int64) (*domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1`

	job, err := scanJob(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrJobNotFound
		}
		return nil, store.NewStoreError("job", "get", "failed to query job", err)
	}

	return job, nil
}

// ListByUser retrieves all jobs owned by the given user, newest first.
func (s *PostgresJobStore) ListByUser(ctx context.Context, userID int64) ([]*domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE user_id = $1 ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, store.NewStoreError("job", "list", "failed to query jobs", err)
	}
	defer func() { _ = rows.Close() }()

	return collectJobs(rows)
}

// MarkProcessing transitions a job to processing. The status guard admits
// redelivered messages (already processing) but never terminal jobs.
func (s *PostgresJobStore) MarkProcessing(ctx context.Context, id int64) error {
	query := `
		UPDATE jobs
		SET status = $1, updated_at = $2
		WHERE id = $3 AND status IN ($4, $5)
	`
	return s.guardedUpdate(ctx, "mark_processing", query,
		domain.JobStatusProcessing, time.Now().UTC(), id,
		domain.JobStatusQueued, domain.JobStatusProcessing)
}

// MarkSucceeded completes a job, recording both derived artifact keys.
func (s *PostgresJobStore) MarkSucceeded(ctx context.Context, id int64, overlayPath, csvPath string) error {
	query := `
		UPDATE jobs
		SET status = $1, overlay_path = $2, csv_path = $3, error_message = '', updated_at = $4
		WHERE id = $5 AND status = $6
	`
	return s.guardedUpdate(ctx, "mark_succeeded", query,
		domain.JobStatusSucceeded, overlayPath, csvPath, time.Now().UTC(), id,
		domain.JobStatusProcessing)
}

// MarkFailed fails a job, capturing the reason. Applies from queued as well
// so validation failures seen before pickup can be recorded.
func (s *PostgresJobStore) MarkFailed(ctx context.Context, id int64, reason string) error {
	if len(reason) > 1024 {
		reason = reason[:1024]
	}

	query := `
		UPDATE jobs
		SET status = $1, error_message = $2, updated_at = $3
		WHERE id = $4 AND status IN ($5, $6)
	`
	return s.guardedUpdate(ctx, "mark_failed", query,
		domain.JobStatusFailed, reason, time.Now().UTC(), id,
		domain.JobStatusQueued, domain.JobStatusProcessing)
}

// FindStalled retrieves jobs parked in a status for longer than olderThan.
func (s *PostgresJobStore) FindStalled(
	ctx context.Context,
	status domain.JobStatus,
	olderThan time.Duration,
	limit int,
) ([]*domain.Job, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM jobs
		WHERE status = $1 AND updated_at < $2
		ORDER BY updated_at ASC
		LIMIT $3
	`

	rows, err := s.db.QueryContext(ctx, query, status, time.Now().UTC().Add(-olderThan), limit)
	if err != nil {
		return nil, store.NewStoreError("job", "find_stalled", "failed to query stalled jobs", err)
	}
	defer func() { _ = rows.Close() }()

	return collectJobs(rows)
}

// guardedUpdate runs a status-guarded UPDATE and translates "no rows matched"
// into ErrStaleTransition so callers can distinguish lost races from failures.
func (s *PostgresJobStore) guardedUpdate(ctx context.Context, operation, query string, args ...any) error {
	log := logger.FromContext(ctx)

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		log.Error("job status update failed", "operation", operation, "error", err)
		return store.NewStoreError("job", operation, "failed to update job status", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return store.NewStoreError("job", operation, "failed to get rows affected", err)
	}

	if affected == 0 {
		return store.ErrStaleTransition
	}

	return nil
}

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*domain.Job, error) {
	var job domain.Job
	var overlayPath, csvPath, errorMessage sql.NullString

	err := row.Scan(
		&job.ID,
		&job.UserID,
		&job.Status,
		&job.ImagePath,
		&overlayPath,
		&csvPath,
		&job.ModelName,
		&job.ModelVersion,
		&errorMessage,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	job.OverlayPath = overlayPath.String
	job.CSVPath = csvPath.String
	job.ErrorMessage = errorMessage.String
	return &job, nil
}

func collectJobs(rows *sql.Rows) ([]*domain.Job, error) {
	var jobs []*domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, store.NewStoreError("job", "scan", "failed to scan job row", err)
		}
		jobs = append(jobs, job)
	}

	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("job", "scan", "error iterating job rows", err)
	}

	return jobs, nil
}
