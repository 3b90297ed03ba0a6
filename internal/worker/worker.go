// Package worker implements the queue consumer loop and the per-job
// processing pipeline. The loop runs indefinitely; every failure inside a
// job is caught at the message boundary, classified, and converted into a
// terminal status so one bad job can never stop the loop.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/visionforge/detect-api/internal/domain"
	"github.com/visionforge/detect-api/internal/platform/logger"
	"github.com/visionforge/detect-api/internal/queue"
	"github.com/visionforge/detect-api/internal/store"
)

// Config holds worker loop settings.
type Config struct {
	// ProcessTimeout bounds one pipeline run, including the inference call.
	ProcessTimeout time.Duration
}

// Worker consumes queue messages and drives jobs through the pipeline.
// Multiple Workers may run concurrently against the same queue; per-job
// temporary resources are private to each attempt, so no extra locking
// is needed between them.
type Worker struct {
	consumer queue.Consumer
	jobs     store.JobStore
	pipeline *Pipeline
	cfg      Config
	logger   *slog.Logger
}

// New creates a Worker.
func New(consumer queue.Consumer, jobs store.JobStore, pipeline *Pipeline, cfg Config, logger *slog.Logger) *Worker {
	return &Worker{
		consumer: consumer,
		jobs:     jobs,
		pipeline: pipeline,
		cfg:      cfg,
		logger:   logger,
	}
}

// Run consumes messages until the context is canceled. Empty polls and
// transient queue errors are absorbed with a retry; only cancellation
// ends the loop.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		msg, err := w.consumer.Receive(ctx)
		if err != nil {
			if errors.Is(err, queue.ErrNoMessage) {
				continue
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			w.logger.Error("failed to receive from queue", "error", err)
			time.Sleep(time.Second)
			continue
		}

		w.processMessage(ctx, *msg)
	}
}

// processMessage is the failure boundary around one job. Nothing that
// happens inside — validation, I/O, inference, even a panic — escapes it.
func (w *Worker) processMessage(ctx context.Context, msg queue.Message) {
	log := w.logger.With("job_id", msg.JobID, "object_key", msg.ObjectKey)
	ctx = logger.WithLogger(ctx, log)

	defer func() {
		if p := recover(); p != nil {
			log.Error("panic during job processing", "panic", p)
			w.markFailed(ctx, log, msg.JobID, fmt.Sprintf("panic: %v", p))
		}
	}()

	job, err := w.jobs.GetByID(ctx, msg.JobID)
	if err != nil {
		if errors.Is(err, store.ErrJobNotFound) {
			log.Warn("dropping message for unknown job")
			return
		}
		// Leave the job untouched; the reconciliation sweep republishes it.
		log.Error("failed to load job, message dropped", "error", err)
		return
	}

	// Redelivery of a finished job: artifacts already exist at their
	// deterministic keys, nothing to redo.
	if job.Terminal() {
		log.Info("skipping redelivered message for terminal job", "status", job.Status)
		jobsSkipped.Inc()
		return
	}

	// Mark processing before starting work so a status reader never sees
	// an actively-worked job parked in queued.
	if err := w.jobs.MarkProcessing(ctx, msg.JobID); err != nil {
		if errors.Is(err, store.ErrStaleTransition) {
			log.Info("job already settled by another consumer")
			return
		}
		log.Error("failed to mark job processing, message dropped", "error", err)
		return
	}

	log.Info("processing job")
	start := time.Now()

	runCtx, cancel := context.WithTimeout(ctx, w.cfg.ProcessTimeout)
	defer cancel()

	result, err := w.pipeline.Execute(runCtx, msg)
	processingSeconds.Observe(time.Since(start).Seconds())

	if err != nil {
		log.Error("job failed", "error", err)
		w.markFailed(ctx, log, msg.JobID, failureReason(err))
		return
	}

	if err := w.jobs.MarkSucceeded(ctx, msg.JobID, result.OverlayKey, result.ResultsKey); err != nil {
		if errors.Is(err, store.ErrStaleTransition) {
			log.Warn("job settled concurrently, success not recorded twice")
			return
		}
		// The artifacts exist but the record is wrong. This is the one
		// unrecoverable case: the job may sit in processing until the
		// reconciliation sweep retries it.
		log.Error("FAILED TO COMMIT TERMINAL STATUS, job may remain in processing",
			"target_status", domain.JobStatusSucceeded, "error", err)
		return
	}

	jobsProcessed.WithLabelValues(string(domain.JobStatusSucceeded)).Inc()
	log.Info("job completed",
		"detections", result.DetectionCount,
		"overlay_path", result.OverlayKey,
		"csv_path", result.ResultsKey,
		"duration", time.Since(start))
}

// markFailed records a terminal failure, logging loudly if even that is
// impossible.
func (w *Worker) markFailed(ctx context.Context, log *slog.Logger, jobID int64, reason string) {
	if err := w.jobs.MarkFailed(ctx, jobID, reason); err != nil {
		if errors.Is(err, store.ErrStaleTransition) {
			log.Warn("job settled concurrently, failure not recorded")
			return
		}
		log.Error("FAILED TO COMMIT TERMINAL STATUS, job may remain in processing",
			"target_status", domain.JobStatusFailed, "reason", reason, "error", err)
		return
	}
	jobsProcessed.WithLabelValues(string(domain.JobStatusFailed)).Inc()
}
