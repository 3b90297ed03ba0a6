package domain

import (
	"errors"
	"time"
)

// JobStatus represents the processing state of a job.
type JobStatus string

// Possible job status values. A job only ever moves forward:
// queued -> processing -> {succeeded, failed}.
const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusSucceeded  JobStatus = "succeeded"
	JobStatusFailed     JobStatus = "failed"
)

// Common validation errors for Job.
var (
	ErrEmptyJobUserID   = errors.New("job user ID cannot be empty")
	ErrEmptyJobImage    = errors.New("job image path cannot be empty")
	ErrInvalidJobStatus = errors.New("invalid job status")

	// ErrInvalidTransition is returned when a status change would move a
	// job backwards through its lifecycle or out of a terminal state.
	ErrInvalidTransition = errors.New("invalid job status transition")
)

// Job tracks one submitted image through detection and artifact
// generation. OverlayPath and CSVPath stay empty until the job succeeds.
type Job struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"user_id"`
	Status       JobStatus `json:"status"`
	ImagePath    string    `json:"image_path"`
	OverlayPath  string    `json:"overlay_path,omitempty"`
	CSVPath      string    `json:"csv_path,omitempty"`
	ModelName    string    `json:"model_name"`
	ModelVersion string    `json:"model_version"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NewJob creates a Job in the queued state for the given owner and stored
// image key. The ID is zero until the store assigns one at insert time.
func NewJob(userID int64, imagePath, modelName, modelVersion string) (*Job, error) {
	now := time.Now().UTC()
	job := &Job{
		UserID:       userID,
		Status:       JobStatusQueued,
		ImagePath:    imagePath,
		ModelName:    modelName,
		ModelVersion: modelVersion,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := job.Validate(); err != nil {
		return nil, err
	}

	return job, nil
}

// Validate checks if the Job has valid data.
func (j *Job) Validate() error {
	if j.UserID == 0 {
		return ErrEmptyJobUserID
	}

	if j.ImagePath == "" {
		return ErrEmptyJobImage
	}

	if !IsValidJobStatus(j.Status) {
		return ErrInvalidJobStatus
	}

	return nil
}

// Terminal reports whether the job has reached a final state.
func (j *Job) Terminal() bool {
	return j.Status == JobStatusSucceeded || j.Status == JobStatusFailed
}

// CanTransition reports whether a job may move from one status to another.
// Repeating the current status is allowed so that redelivered queue
// messages stay idempotent; everything else must follow the lattice.
func CanTransition(from, to JobStatus) bool {
	if from == to {
		return true
	}

	switch from {
	case JobStatusQueued:
		return to == JobStatusProcessing
	case JobStatusProcessing:
		return to == JobStatusSucceeded || to == JobStatusFailed
	default:
		// succeeded and failed are terminal
		return false
	}
}

// TransitionTo moves the job to the given status, updating UpdatedAt.
// Returns ErrInvalidTransition if the move is not allowed.
func (j *Job) TransitionTo(status JobStatus) error {
	if !IsValidJobStatus(status) {
		return ErrInvalidJobStatus
	}

	if !CanTransition(j.Status, status) {
		return ErrInvalidTransition
	}

	j.Status = status
	j.UpdatedAt = time.Now().UTC()
	return nil
}

// IsValidJobStatus checks if the given status is a valid JobStatus.
func IsValidJobStatus(status JobStatus) bool {
	switch status {
	case JobStatusQueued, JobStatusProcessing, JobStatusSucceeded, JobStatusFailed:
		return true
	default:
		return false
	}
}
