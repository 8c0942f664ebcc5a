// Recbench - Recommendation Algorithm Evaluation Harness
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recbench

/*
Package metrics provides Prometheus metrics collection and export for observability.

Collectors are registered at package initialization through promauto and are
updated by the evaluator, the archive, the remote exporter and the HTTP API.

# Metrics Endpoint

Metrics are exposed at the /metrics endpoint in Prometheus text format:

	curl http://localhost:3870/metrics

# Available Metrics

Run Metrics:
  - recbench_runs_started_total: Runs started (counter)
  - recbench_runs_finished_total: Runs finished (counter)
    Labels: outcome
  - recbench_controller_state: Current controller state (gauge)
  - recbench_control_rejections_total: Rejected control operations (counter)
    Labels: operation, reason

Algorithm Metrics:
  - recbench_setup_duration_seconds: Setup latency (histogram)
    Labels: algorithm
  - recbench_execute_duration_seconds: Execution latency per testing record (histogram)
    Labels: algorithm
  - recbench_testing_records_total: Evaluated records (counter)
    Labels: algorithm, outcome
  - recbench_teardowns_total: Teardowns (counter)
    Labels: mode, status

Delivery Metrics:
  - recbench_listener_errors_total: Listener failures (counter)
    Labels: category
  - recbench_dispatch_queue_depth: Pending async deliveries (gauge)

Persistence and Remote Metrics:
  - recbench_backup_writes_total, recbench_archive_writes_total
  - recbench_remote_requests_total, recbench_remote_events_published_total,
    recbench_remote_publish_failures_total, recbench_remote_breaker_state

HTTP Metrics:
  - api_requests_total, api_request_duration_seconds, api_active_requests

# Usage Example

	start := time.Now()
	res, err := alg.Execute(ctx, param)
	metrics.RecordExecution(alg.Name(), "success", time.Since(start))
*/
package metrics
