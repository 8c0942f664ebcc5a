// Recbench - Recommendation Algorithm Evaluation Harness
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recbench

/*
Package evaluator runs recommendation algorithms against a pool of dataset
pairs and measures them.

A Controller owns one worker goroutine per run. The worker walks
algorithms x dataset pairs x testing records, times setup and every
execution, and folds the observations into a metric.Metrics registry.

# State Machine

	Idle -> Running -> {Paused <-> Running} -> Stopped -> Idle
	Running | Paused | Stopped -> ForceStopping -> Idle

Control operations return false instead of an error when they are rejected;
Controller.LastRejection reports why.

# Pause and Stop

Pause and Stop are cooperative. The worker observes them between testing
records. Algorithms implementing algorithm.Learner are additionally asked to
suspend or abandon their setup. ForceStop does not wait: it invalidates the
run, waits the configured grace period, tears down the algorithms that were
set up and fires the terminal done event with the partial metrics. A setup
or execute call that is still blocked is abandoned, not interrupted.

# Events

Four listener categories exist, each with its own registry:

  - LifecycleListener: start, pause, resume, stop, pool_updated
  - EvaluatorListener: setup_time, speed, accuracy, recall, done_one, done
  - SetupListener: setup begin, progress and end per algorithm and pair
  - ProgressListener: record counters

Listeners implementing Presenter with Presentation() == true are called
inline on the goroutine that fires the event. All others are served by a
single dispatch goroutine in submission order, so a slow listener never
stalls the worker. Listener errors and panics are logged and counted;
they never reach the worker or sibling listeners.

# Backup

On done_one and done, a text snapshot of the metrics registry is written to
the backup directory when no EvaluatorListener is registered or when backup
is enabled. Setup progress is written as a setup log under the same rule.
*/
package evaluator
