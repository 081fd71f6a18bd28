package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CyclesTotal counts completed processing cycles by final status
	CyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docrelay_cycles_total",
			Help: "Total number of processing cycles",
		},
		[]string{"status"},
	)

	// CycleDuration tracks end-to-end cycle duration
	CycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "docrelay_cycle_duration_seconds",
			Help:    "Processing cycle duration in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		},
	)

	// FilesDownloaded counts per-file download outcomes
	FilesDownloaded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docrelay_files_downloaded_total",
			Help: "Total number of file downloads",
		},
		[]string{"folder", "status"},
	)

	// RecordsExtracted counts records parsed out of documents
	RecordsExtracted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "docrelay_records_extracted_total",
			Help: "Total number of records extracted from documents",
		},
	)

	// ErrorsTotal counts handled failures by category and severity
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docrelay_errors_total",
			Help: "Total number of handled errors",
		},
		[]string{"category", "severity"},
	)

	// ActionDuration tracks parallel publish action latency
	ActionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docrelay_action_duration_seconds",
			Help:    "Parallel action duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"action", "status"},
	)

	// SchedulerFires counts scheduler job invocations
	SchedulerFires = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "docrelay_scheduler_fires_total",
			Help: "Total number of scheduled job invocations",
		},
	)
)
