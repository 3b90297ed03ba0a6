package service

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/visionforge/detect-api/internal/artifact"
	"github.com/visionforge/detect-api/internal/domain"
	"github.com/visionforge/detect-api/internal/queue"
	"github.com/visionforge/detect-api/internal/store"
)

// publishAttempts bounds the immediate retries after a job row is
// committed. A job whose message never makes it out stays queued and is
// republished by the reconciliation sweep.
const publishAttempts = 3

// publishBackoff is the pause between publish retries.
const publishBackoff = 100 * time.Millisecond

// JobService provides detection job operations.
type JobService interface {
	// Submit stores the uploaded image, records a queued job and publishes
	// it for processing. Returns ErrUnsupportedImage before any side
	// effects when the upload is not an accepted image.
	Submit(ctx context.Context, userID int64, filename, contentType string, r io.Reader, size int64) (*domain.Job, error)

	// GetJob retrieves a job owned by the given user.
	// Returns ErrJobNotFound for missing jobs and for jobs owned by others.
	GetJob(ctx context.Context, userID, jobID int64) (*domain.Job, error)

	// ListJobs retrieves all jobs owned by the given user, newest first.
	ListJobs(ctx context.Context, userID int64) ([]*domain.Job, error)
}

// jobServiceImpl implements the JobService interface
type jobServiceImpl struct {
	db           *sql.DB
	jobs         store.JobStore
	artifacts    artifact.Store
	publisher    queue.Publisher
	modelName    string
	modelVersion string
	logger       *slog.Logger
}

// NewJobService creates a new JobService.
func NewJobService(
	db *sql.DB,
	jobs store.JobStore,
	artifacts artifact.Store,
	publisher queue.Publisher,
	modelName, modelVersion string,
	logger *slog.Logger,
) (JobService, error) {
	if jobs == nil {
		return nil, &ServiceError{Operation: "create_service", Message: "jobs store cannot be nil"}
	}
	if artifacts == nil {
		return nil, &ServiceError{Operation: "create_service", Message: "artifact store cannot be nil"}
	}
	if publisher == nil {
		return nil, &ServiceError{Operation: "create_service", Message: "publisher cannot be nil"}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &jobServiceImpl{
		db:           db,
		jobs:         jobs,
		artifacts:    artifacts,
		publisher:    publisher,
		modelName:    modelName,
		modelVersion: modelVersion,
		logger:       logger.With("component", "job_service"),
	}, nil
}

// Submit validates the upload, stores it, commits a queued job row, and
// only then publishes the work message. The upload is rejected before
// anything is written when its type or extension is unsupported.
func (s *jobServiceImpl) Submit(
	ctx context.Context,
	userID int64,
	filename, contentType string,
	r io.Reader,
	size int64,
) (*domain.Job, error) {
	if !artifact.SupportedContentType(contentType) {
		return nil, fmt.Errorf("%w: content type %q", ErrUnsupportedImage, contentType)
	}
	key, err := artifact.ParseKey(filename)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	if err := key.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}

	// The uuid prefix keeps uploads with the same filename apart, and the
	// user prefix keeps derived keys within the owner's namespace.
	objectKey := fmt.Sprintf("%d/%s_%s", userID, uuid.New().String(), filename)

	if err := s.artifacts.Put(ctx, objectKey, r, size, contentType); err != nil {
		s.logger.Error("failed to store uploaded image",
			"error", err,
			"user_id", userID,
			"object_key", objectKey)
		return nil, NewServiceError("submit_job", "failed to store uploaded image", err)
	}

	job, err := domain.NewJob(userID, objectKey, s.modelName, s.modelVersion)
	if err != nil {
		return nil, NewServiceError("submit_job", "failed to create job object", err)
	}

	// The row must be committed before the message goes out so a consumer
	// can never receive a job_id it cannot load.
	err = store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		if err := s.jobs.WithTx(tx).Create(ctx, job); err != nil {
			s.logger.Error("failed to create job in transaction",
				"error", err,
				"user_id", userID,
				"object_key", objectKey)
			return NewServiceError("submit_job", "failed to save job", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("job created",
		"job_id", job.ID,
		"user_id", userID,
		"object_key", objectKey)

	msg := queue.Message{JobID: job.ID, ObjectKey: objectKey, UserID: userID}
	if err := s.publish(ctx, msg); err != nil {
		// The job row stands; the reconciliation sweep republishes queued
		// jobs that never made it onto the queue.
		s.logger.Error("failed to publish job message, job left queued for sweep",
			"error", err,
			"job_id", job.ID)
		return nil, NewServiceError("submit_job", "failed to publish job message", err)
	}

	return job, nil
}

// publish retries a bounded number of times before giving up.
func (s *jobServiceImpl) publish(ctx context.Context, msg queue.Message) error {
	var err error
	for attempt := 1; attempt <= publishAttempts; attempt++ {
		if err = s.publisher.Publish(ctx, msg); err == nil {
			return nil
		}
		if attempt < publishAttempts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * publishBackoff):
			}
		}
	}
	return fmt.Errorf("publish after %d attempts: %w", publishAttempts, err)
}

// GetJob retrieves a job, hiding other users' jobs behind ErrJobNotFound
// so requests cannot probe for foreign job IDs.
func (s *jobServiceImpl) GetJob(ctx context.Context, userID, jobID int64) (*domain.Job, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, NewServiceError("get_job", "failed to load job", err)
	}
	if job.UserID != userID {
		return nil, ErrJobNotFound
	}
	return job, nil
}

// ListJobs retrieves the user's jobs, newest first.
func (s *jobServiceImpl) ListJobs(ctx context.Context, userID int64) ([]*domain.Job, error) {
	jobs, err := s.jobs.ListByUser(ctx, userID)
	if err != nil {
		return nil, NewServiceError("list_jobs", "failed to list jobs", err)
	}
	return jobs, nil
}
