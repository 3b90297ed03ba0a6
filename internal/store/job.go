package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/visionforge/detect-api/internal/domain"
)

// JobStore defines the interface for job record persistence.
//
// The Mark* methods are guarded transitions: each only applies when the row
// is in a state the transition is allowed from, so concurrent consumers can
// never move a job backwards through its lifecycle. A guarded update that
// matches no row returns ErrStaleTransition.
type JobStore interface {
	// Create saves a new job and assigns its ID.
	// Returns validation errors from the domain Job if data is invalid.
	Create(ctx context.Context, job *domain.Job) error

	// GetByID retrieves a job by its unique ID.
	// Returns ErrJobNotFound if the job does not exist.
	GetByID(ctx context.Context, id int64) (*domain.Job, error)

	// ListByUser retrieves all jobs owned by the given user, newest first.
	ListByUser(ctx context.Context, userID int64) ([]*domain.Job, error)

	// MarkProcessing moves a job to processing. Applies from queued and,
	// for redelivered messages, from processing itself.
	MarkProcessing(ctx context.Context, id int64) error

	// MarkSucceeded moves a job from processing to succeeded and records
	// the derived artifact keys.
	MarkSucceeded(ctx context.Context, id int64, overlayPath, csvPath string) error

	// MarkFailed moves a job from queued or processing to failed and
	// records the failure reason.
	MarkFailed(ctx context.Context, id int64, reason string) error

	// FindStalled retrieves up to limit jobs that have sat in the given
	// status for longer than olderThan, oldest first. Used by the
	// reconciliation sweep to republish lost or orphaned work.
	FindStalled(ctx context.Context, status domain.JobStatus, olderThan time.Duration, limit int) ([]*domain.Job, error)

	// WithTx returns a new JobStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) JobStore
}
