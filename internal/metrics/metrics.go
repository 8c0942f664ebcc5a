// Recbench - Recommendation Algorithm Evaluation Harness
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recbench

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus instrumentation of the evaluation harness:
// - Run lifecycle and controller state
// - Setup and execute latency per algorithm
// - Listener delivery and the async dispatch queue
// - Backups, archive and remote export
// - HTTP API

var (
	// Run Metrics
	EvalRunsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recbench_runs_started_total",
			Help: "Total number of evaluation runs started",
		},
	)

	EvalRunsFinished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recbench_runs_finished_total",
			Help: "Total number of evaluation runs finished by outcome",
		},
		[]string{"outcome"}, // "completed", "stopped", "force_stopped"
	)

	EvalControllerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "recbench_controller_state",
			Help: "Controller state (0=idle, 1=running, 2=paused, 3=stopped, 4=force_stopping)",
		},
	)

	EvalRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recbench_control_rejections_total",
			Help: "Total number of rejected control operations",
		},
		[]string{"operation", "reason"},
	)

	// Algorithm Metrics
	EvalSetupDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recbench_setup_duration_seconds",
			Help:    "Duration of algorithm setup in seconds",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
		},
		[]string{"algorithm"},
	)

	EvalExecuteDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recbench_execute_duration_seconds",
			Help:    "Duration of a single algorithm execution in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"algorithm"},
	)

	EvalTestingRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recbench_testing_records_total",
			Help: "Total number of evaluated testing records by outcome",
		},
		[]string{"algorithm", "outcome"}, // "success", "miss", "error"
	)

	EvalTeardowns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recbench_teardowns_total",
			Help: "Total number of algorithm teardowns by mode",
		},
		[]string{"mode", "status"}, // mode: "immediate", "delayed", "forced"
	)

	// Listener Metrics
	ListenerErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recbench_listener_errors_total",
			Help: "Total number of listener delivery failures by category",
		},
		[]string{"category"},
	)

	DispatchQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "recbench_dispatch_queue_depth",
			Help: "Current number of queued asynchronous listener deliveries",
		},
	)

	// Persistence Metrics
	BackupWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recbench_backup_writes_total",
			Help: "Total number of backup files written",
		},
		[]string{"kind", "status"}, // kind: "metrics", "setup"
	)

	ArchiveWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recbench_archive_writes_total",
			Help: "Total number of archived run snapshots",
		},
		[]string{"status"},
	)

	// Remote Metrics
	RemoteRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recbench_remote_requests_total",
			Help: "Total number of remote control requests",
		},
		[]string{"operation", "status"},
	)

	RemotePublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recbench_remote_events_published_total",
			Help: "Total number of events published to the message bus",
		},
		[]string{"category"},
	)

	RemotePublishFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recbench_remote_publish_failures_total",
			Help: "Total number of failed or skipped event publications",
		},
		[]string{"category", "reason"}, // reason: "error", "breaker_open", "throttled"
	)

	RemoteBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "recbench_remote_breaker_state",
			Help: "Event publisher circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
	)

	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)
)

// RecordSetup records the duration of an algorithm setup.
func RecordSetup(algorithm string, duration time.Duration) {
	EvalSetupDuration.WithLabelValues(algorithm).Observe(duration.Seconds())
}

// RecordExecution records one testing record execution and its outcome.
func RecordExecution(algorithm, outcome string, duration time.Duration) {
	EvalExecuteDuration.WithLabelValues(algorithm).Observe(duration.Seconds())
	EvalTestingRecords.WithLabelValues(algorithm, outcome).Inc()
}

// RecordTeardown records an algorithm teardown.
func RecordTeardown(mode string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	EvalTeardowns.WithLabelValues(mode, status).Inc()
}

// RecordRejection records a rejected control operation.
func RecordRejection(operation string, err error) {
	reason := "unknown"
	if err != nil {
		reason = err.Error()
		// Truncate long error messages
		if len(reason) > 50 {
			reason = reason[:50]
		}
	}
	EvalRejections.WithLabelValues(operation, reason).Inc()
}

// RecordBackup records a backup file write.
func RecordBackup(kind string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	BackupWrites.WithLabelValues(kind, status).Inc()
}

// RecordArchive records an archive write.
func RecordArchive(err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	ArchiveWrites.WithLabelValues(status).Inc()
}

// RecordRemoteRequest records a remote control request.
func RecordRemoteRequest(operation string, ok bool) {
	status := "accepted"
	if !ok {
		status = "rejected"
	}
	RemoteRequests.WithLabelValues(operation, status).Inc()
}

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest increments or decrements active request counter
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}
