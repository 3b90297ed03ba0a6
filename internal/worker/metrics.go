package worker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	jobsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "detect_jobs_processed_total",
		Help: "Jobs that reached a terminal status, labeled by outcome.",
	}, []string{"status"})

	jobsSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "detect_jobs_skipped_total",
		Help: "Redelivered messages skipped because the job was already terminal.",
	})

	processingSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "detect_job_processing_seconds",
		Help:    "Wall-clock duration of pipeline runs.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	})
)
