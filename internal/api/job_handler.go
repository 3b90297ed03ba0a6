package api

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/visionforge/detect-api/internal/api/middleware"
	"github.com/visionforge/detect-api/internal/artifact"
	"github.com/visionforge/detect-api/internal/service"
)

// maxUploadBytes caps the size of an uploaded image.
const maxUploadBytes = 20 << 20 // 20 MiB

// JobHandler handles detection job API requests.
type JobHandler struct {
	jobs      service.JobService
	artifacts artifact.Store
}

// NewJobHandler creates a new JobHandler with the given dependencies.
func NewJobHandler(jobs service.JobService, artifacts artifact.Store) *JobHandler {
	return &JobHandler{
		jobs:      jobs,
		artifacts: artifacts,
	}
}

// Submit handles POST /uploads. It accepts a multipart upload with a single
// "file" part and responds 202 with the queued job's ID.
func (h *JobHandler) Submit(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		RespondWithError(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		RespondWithError(w, r, http.StatusBadRequest, "Invalid multipart upload")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		RespondWithError(w, r, http.StatusBadRequest, "Missing file upload")
		return
	}
	defer func() { _ = file.Close() }()

	contentType := header.Header.Get("Content-Type")

	job, err := h.jobs.Submit(r.Context(), userID, header.Filename, contentType, file, header.Size)
	if err != nil {
		if errors.Is(err, service.ErrUnsupportedImage) {
			RespondWithError(w, r, http.StatusBadRequest, "Only JPEG and PNG images are accepted")
			return
		}
		RespondWithServiceError(w, r, err)
		return
	}

	RespondWithJSON(w, r, http.StatusAccepted, SubmitResponse{
		JobID:  job.ID,
		Status: string(job.Status),
	})
}

// Get handles GET /jobs/{id}.
func (h *JobHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		RespondWithError(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	jobID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		RespondWithError(w, r, http.StatusBadRequest, "Invalid job ID")
		return
	}

	job, err := h.jobs.GetJob(r.Context(), userID, jobID)
	if err != nil {
		RespondWithServiceError(w, r, err)
		return
	}

	RespondWithJSON(w, r, http.StatusOK, NewJobResponse(job))
}

// List handles GET /jobs.
func (h *JobHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		RespondWithError(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	jobs, err := h.jobs.ListJobs(r.Context(), userID)
	if err != nil {
		RespondWithServiceError(w, r, err)
		return
	}

	RespondWithJSON(w, r, http.StatusOK, NewJobListResponse(jobs))
}

// GetFile handles GET /files/*. It streams a stored object (source image,
// overlay or results table) to its owner. Keys are namespaced per user,
// so ownership is a prefix check.
func (h *JobHandler) GetFile(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		RespondWithError(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	key := chi.URLParam(r, "*")
	if key == "" || strings.Contains(key, "..") {
		RespondWithError(w, r, http.StatusBadRequest, "Invalid file path")
		return
	}

	// Foreign keys come back as not-found, same as missing ones.
	if !strings.HasPrefix(key, fmt.Sprintf("%d/", userID)) {
		RespondWithError(w, r, http.StatusNotFound, "File not found")
		return
	}

	obj, err := h.artifacts.Get(r.Context(), key)
	if err != nil {
		if errors.Is(err, artifact.ErrObjectNotFound) {
			RespondWithError(w, r, http.StatusNotFound, "File not found")
			return
		}
		RespondWithServiceError(w, r, err)
		return
	}
	defer func() { _ = obj.Close() }()

	w.Header().Set("Content-Type", contentTypeForKey(key))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, obj); err != nil {
		slog.Error("failed to stream file", "key", key, "error", err)
	}
}

// contentTypeForKey derives a download content type from the key's
// extension.
func contentTypeForKey(key string) string {
	parsed, err := artifact.ParseKey(key)
	if err != nil {
		return "application/octet-stream"
	}
	switch parsed.Ext {
	case "jpg", "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "csv":
		return "text/csv"
	default:
		return "application/octet-stream"
	}
}
