package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/visionforge/detect-api/internal/domain"
	"github.com/visionforge/detect-api/internal/queue"
	"github.com/visionforge/detect-api/internal/store"
)

// sweepBatchSize caps the number of jobs republished per status per sweep.
const sweepBatchSize = 100

var jobsRepublished = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "detect_jobs_republished_total",
	Help: "Jobs republished by the reconciliation sweep, by stalled status.",
}, []string{"status"})

// ReconcilerConfig holds sweep settings.
type ReconcilerConfig struct {
	// Interval is the time between sweeps.
	Interval time.Duration

	// QueuedAge is how long a job may sit queued before its message is
	// assumed lost and republished.
	QueuedAge time.Duration

	// ProcessingAge is how long a job may sit processing before its
	// worker is assumed dead and the job is republished.
	ProcessingAge time.Duration
}

// Reconciler periodically republishes jobs whose queue message was lost
// or whose worker died mid-run. Together with deterministic artifact keys
// and guarded status transitions this makes redelivery safe: a duplicate
// message is either skipped or overwrites the same outputs.
type Reconciler struct {
	jobs      store.JobStore
	publisher queue.Publisher
	cfg       ReconcilerConfig
	logger    *slog.Logger
}

// NewReconciler creates a Reconciler.
func NewReconciler(jobs store.JobStore, publisher queue.Publisher, cfg ReconcilerConfig, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		jobs:      jobs,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger.With("component", "reconciler"),
	}
}

// Run sweeps on the configured interval until the context is canceled.
func (r *Reconciler) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep runs one reconciliation pass. Errors are logged, not returned;
// the next pass retries whatever this one missed.
func (r *Reconciler) Sweep(ctx context.Context) {
	r.sweepStatus(ctx, domain.JobStatusQueued, r.cfg.QueuedAge)
	r.sweepStatus(ctx, domain.JobStatusProcessing, r.cfg.ProcessingAge)
}

func (r *Reconciler) sweepStatus(ctx context.Context, status domain.JobStatus, olderThan time.Duration) {
	stalled, err := r.jobs.FindStalled(ctx, status, olderThan, sweepBatchSize)
	if err != nil {
		r.logger.Error("failed to find stalled jobs", "status", status, "error", err)
		return
	}

	for _, job := range stalled {
		msg := queue.Message{JobID: job.ID, ObjectKey: job.ImagePath, UserID: job.UserID}
		if err := r.publisher.Publish(ctx, msg); err != nil {
			r.logger.Error("failed to republish stalled job",
				"job_id", job.ID,
				"status", status,
				"error", err)
			continue
		}
		jobsRepublished.WithLabelValues(string(status)).Inc()
		r.logger.Warn("republished stalled job",
			"job_id", job.ID,
			"status", status,
			"stalled_since", job.UpdatedAt)
	}
}
