package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FramesProcessedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tennistrack_frames_processed_total",
		Help: "Total number of frames annotated and written across all runs",
	})

	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tennistrack_runs_total",
		Help: "Total number of processing runs, by outcome",
	}, []string{"outcome"})

	RunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tennistrack_run_duration_seconds",
		Help:    "Duration of a full decode, annotate and encode run",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
	})

	ModelDownloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tennistrack_model_downloads_total",
		Help: "Total number of model download attempts, by result",
	}, []string{"result"})

	UploadsRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tennistrack_uploads_rejected_total",
		Help: "Total number of rejected uploads, by reason",
	}, []string{"reason"})

	ActiveJobs = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tennistrack_active_jobs",
		Help: "Number of jobs currently processing",
	})
)

const (
	OutcomeSuccess    = "success"
	OutcomeIncomplete = "incomplete"
	OutcomeError      = "error"
)
