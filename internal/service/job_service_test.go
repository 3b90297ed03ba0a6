package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visionforge/detect-api/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestJobService(t *testing.T, jobs *fakeJobStore, artifacts *fakeArtifacts, publisher *fakePublisher) JobService {
	t.Helper()
	svc, err := NewJobService(nopDB(t), jobs, artifacts, publisher, "yolov8n", "8.0", discardLogger())
	require.NoError(t, err)
	return svc
}

func TestSubmitCreatesQueuedJobAndPublishes(t *testing.T) {
	jobs := newFakeJobStore()
	artifacts := newFakeArtifacts()
	publisher := &fakePublisher{}
	svc := newTestJobService(t, jobs, artifacts, publisher)

	job, err := svc.Submit(context.Background(), 42, "cat.jpg", "image/jpeg",
		strings.NewReader("image bytes"), 11)
	require.NoError(t, err)

	assert.Equal(t, domain.JobStatusQueued, job.Status)
	assert.Equal(t, int64(42), job.UserID)
	assert.Equal(t, "yolov8n", job.ModelName)
	assert.Equal(t, "8.0", job.ModelVersion)

	// key is namespaced under the user with a unique prefix
	assert.True(t, strings.HasPrefix(job.ImagePath, "42/"))
	assert.True(t, strings.HasSuffix(job.ImagePath, "_cat.jpg"))

	// uploaded object exists at the job's key
	exists, err := artifacts.Exists(context.Background(), job.ImagePath)
	require.NoError(t, err)
	assert.True(t, exists)

	// published message references the committed row
	msgs := publisher.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, job.ID, msgs[0].JobID)
	assert.Equal(t, job.ImagePath, msgs[0].ObjectKey)
	assert.Equal(t, int64(42), msgs[0].UserID)
}

func TestSubmitRejectsUnsupportedContentType(t *testing.T) {
	jobs := newFakeJobStore()
	artifacts := newFakeArtifacts()
	publisher := &fakePublisher{}
	svc := newTestJobService(t, jobs, artifacts, publisher)

	_, err := svc.Submit(context.Background(), 1, "archive.jpg", "application/zip",
		strings.NewReader("zip bytes"), 9)
	require.ErrorIs(t, err, ErrUnsupportedImage)

	// rejected before any side effects
	assert.Zero(t, artifacts.count())
	assert.Empty(t, publisher.messages())
	assert.Empty(t, jobs.jobs)
}

func TestSubmitRejectsUnsupportedExtension(t *testing.T) {
	jobs := newFakeJobStore()
	artifacts := newFakeArtifacts()
	publisher := &fakePublisher{}
	svc := newTestJobService(t, jobs, artifacts, publisher)

	for _, filename := range []string{"animation.gif", "noextension", "trailing."} {
		_, err := svc.Submit(context.Background(), 1, filename, "image/jpeg",
			strings.NewReader("bytes"), 5)
		require.ErrorIs(t, err, ErrUnsupportedImage, "filename %q", filename)
	}

	assert.Zero(t, artifacts.count())
	assert.Empty(t, publisher.messages())
}

func TestSubmitRetriesPublish(t *testing.T) {
	jobs := newFakeJobStore()
	artifacts := newFakeArtifacts()
	publisher := &fakePublisher{failFirst: 2}
	svc := newTestJobService(t, jobs, artifacts, publisher)

	job, err := svc.Submit(context.Background(), 3, "dog.png", "image/png",
		strings.NewReader("png bytes"), 9)
	require.NoError(t, err)
	require.Len(t, publisher.messages(), 1)
	assert.Equal(t, job.ID, publisher.messages()[0].JobID)
}

func TestSubmitLeavesJobQueuedWhenPublishExhausted(t *testing.T) {
	jobs := newFakeJobStore()
	artifacts := newFakeArtifacts()
	publisher := &fakePublisher{failFirst: publishAttempts}
	svc := newTestJobService(t, jobs, artifacts, publisher)

	_, err := svc.Submit(context.Background(), 3, "dog.jpg", "image/jpeg",
		strings.NewReader("bytes"), 5)
	require.Error(t, err)

	// The row survives; the reconciliation sweep will republish it.
	require.Len(t, jobs.jobs, 1)
	for _, job := range jobs.jobs {
		assert.Equal(t, domain.JobStatusQueued, job.Status)
	}
}

func TestSubmitStorageFailure(t *testing.T) {
	jobs := newFakeJobStore()
	artifacts := newFakeArtifacts()
	artifacts.putErr = errors.New("storage offline")
	publisher := &fakePublisher{}
	svc := newTestJobService(t, jobs, artifacts, publisher)

	_, err := svc.Submit(context.Background(), 5, "cat.jpg", "image/jpeg",
		strings.NewReader("bytes"), 5)
	require.Error(t, err)

	var svcErr *ServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, "submit_job", svcErr.Operation)

	// no job row without a stored image
	assert.Empty(t, jobs.jobs)
	assert.Empty(t, publisher.messages())
}

func TestGetJobHidesForeignJobs(t *testing.T) {
	jobs := newFakeJobStore()
	artifacts := newFakeArtifacts()
	publisher := &fakePublisher{}
	svc := newTestJobService(t, jobs, artifacts, publisher)

	job, err := svc.Submit(context.Background(), 10, "cat.jpg", "image/jpeg",
		strings.NewReader("bytes"), 5)
	require.NoError(t, err)

	got, err := svc.GetJob(context.Background(), 10, job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, got.ID)

	// other users see not-found, not forbidden
	_, err = svc.GetJob(context.Background(), 11, job.ID)
	assert.ErrorIs(t, err, ErrJobNotFound)

	_, err = svc.GetJob(context.Background(), 10, 9999)
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestListJobsNewestFirst(t *testing.T) {
	jobs := newFakeJobStore()
	artifacts := newFakeArtifacts()
	publisher := &fakePublisher{}
	svc := newTestJobService(t, jobs, artifacts, publisher)

	first, err := svc.Submit(context.Background(), 20, "a.jpg", "image/jpeg", strings.NewReader("a"), 1)
	require.NoError(t, err)
	second, err := svc.Submit(context.Background(), 20, "b.jpg", "image/jpeg", strings.NewReader("b"), 1)
	require.NoError(t, err)
	_, err = svc.Submit(context.Background(), 99, "c.jpg", "image/jpeg", strings.NewReader("c"), 1)
	require.NoError(t, err)

	listed, err := svc.ListJobs(context.Background(), 20)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, second.ID, listed[0].ID)
	assert.Equal(t, first.ID, listed[1].ID)
}
