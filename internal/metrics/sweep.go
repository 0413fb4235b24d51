package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Sweep subsystem metrics
var (
	// FilesRemovedTotal counts marker files deleted, per mode
	FilesRemovedTotal *prometheus.CounterVec

	// FilesNotFoundTotal counts listed paths that did not exist
	FilesNotFoundTotal *prometheus.CounterVec

	// ErrorsTotal counts failed and blocked paths, per mode and status
	ErrorsTotal *prometheus.CounterVec

	// FilesDiscoveredTotal counts markers found by tree search
	FilesDiscoveredTotal prometheus.Counter

	// RunDuration tracks wall time of whole runs
	RunDuration *prometheus.HistogramVec

	// LastRunTimestamp records Unix time of the last finished run, per mode
	LastRunTimestamp *prometheus.GaugeVec
)

func initSweepMetrics() {
	FilesRemovedTotal = NewCounterVec(
		"markersweep_files_removed_total",
		"Total number of marker files removed.",
		[]string{"mode"},
	)

	FilesNotFoundTotal = NewCounterVec(
		"markersweep_files_not_found_total",
		"Total number of listed paths that did not exist.",
		[]string{"mode"},
	)

	ErrorsTotal = NewCounterVec(
		"markersweep_errors_total",
		"Total number of paths that could not be removed.",
		[]string{"mode", "status"},
	)

	FilesDiscoveredTotal = NewCounter(
		"markersweep_files_discovered_total",
		"Total number of marker files found by tree search.",
	)

	RunDuration = NewDurationHistogramVec(
		"markersweep_run_duration_seconds",
		"Duration of sweep runs in seconds.",
		[]string{"mode"},
	)

	LastRunTimestamp = NewGaugeVec(
		"markersweep_last_run_timestamp",
		"Timestamp of the last finished run (Unix epoch seconds).",
		[]string{"mode"},
	)
}

func registerSweepMetrics() {
	prometheus.MustRegister(FilesRemovedTotal)
	prometheus.MustRegister(FilesNotFoundTotal)
	prometheus.MustRegister(ErrorsTotal)
	prometheus.MustRegister(FilesDiscoveredTotal)
	prometheus.MustRegister(RunDuration)
	prometheus.MustRegister(LastRunTimestamp)
}

// SweepMetrics feeds per-outcome observations into the global collectors.
// Init must have been called.
type SweepMetrics struct{}

func (SweepMetrics) ObserveOutcome(mode, status string) {
	switch status {
	case "removed":
		FilesRemovedTotal.WithLabelValues(mode).Inc()
	case "not_found":
		FilesNotFoundTotal.WithLabelValues(mode).Inc()
	case "failed", "blocked":
		ErrorsTotal.WithLabelValues(mode, status).Inc()
	}
}

// RecordDiscovered adds n markers found by a tree search
func RecordDiscovered(n int) {
	FilesDiscoveredTotal.Add(float64(n))
}

// RecordRun observes a finished run's duration and stamps its finish time
func RecordRun(mode string, elapsed time.Duration) {
	RunDuration.WithLabelValues(mode).Observe(elapsed.Seconds())
	LastRunTimestamp.WithLabelValues(mode).Set(float64(time.Now().Unix()))
}
