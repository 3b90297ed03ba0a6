package api

import (
	"time"

	"github.com/visionforge/detect-api/internal/domain"
)

// Common request/response structures

// RegisterRequest defines the payload for the user registration endpoint.
type RegisterRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// LoginRequest defines the payload for the user login endpoint.
type LoginRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required,min=1"`
}

// AuthResponse defines the successful response for authentication endpoints.
type AuthResponse struct {
	// UserID is the unique identifier for the authenticated user
	UserID int64 `json:"user_id"`

	// AccessToken is the JWT token used for API authorization
	AccessToken string `json:"token,omitempty"`
}

// SubmitResponse acknowledges an accepted detection job.
type SubmitResponse struct {
	JobID  int64  `json:"job_id"`
	Status string `json:"status"`
}

// JobResponse is the API view of a job record. Artifact paths are empty
// until the job succeeds; the error message is set only for failed jobs.
type JobResponse struct {
	ID           int64     `json:"id"`
	Status       string    `json:"status"`
	ImagePath    string    `json:"image_path"`
	OverlayPath  string    `json:"overlay_path,omitempty"`
	CSVPath      string    `json:"csv_path,omitempty"`
	ModelName    string    `json:"model_name"`
	ModelVersion string    `json:"model_version"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NewJobResponse converts a domain job to its API representation.
func NewJobResponse(job *domain.Job) JobResponse {
	return JobResponse{
		ID:           job.ID,
		Status:       string(job.Status),
		ImagePath:    job.ImagePath,
		OverlayPath:  job.OverlayPath,
		CSVPath:      job.CSVPath,
		ModelName:    job.ModelName,
		ModelVersion: job.ModelVersion,
		ErrorMessage: job.ErrorMessage,
		CreatedAt:    job.CreatedAt,
		UpdatedAt:    job.UpdatedAt,
	}
}

// JobListResponse wraps a list of jobs.
type JobListResponse struct {
	Jobs []JobResponse `json:"jobs"`
}

// NewJobListResponse converts domain jobs to the API list representation.
func NewJobListResponse(jobs []*domain.Job) JobListResponse {
	out := JobListResponse{Jobs: make([]JobResponse, 0, len(jobs))}
	for _, job := range jobs {
		out.Jobs = append(out.Jobs, NewJobResponse(job))
	}
	return out
}
