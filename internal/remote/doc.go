// Recbench - Recommendation Algorithm Evaluation Harness
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recbench

/*
Package remote exports an evaluator.Controller over NATS.

# Control Surface

Export subscribes one request/reply subject per control operation:

	<prefix>.control.start         Request{Algorithms, Params, Pool}
	<prefix>.control.pause
	<prefix>.control.resume
	<prefix>.control.stop
	<prefix>.control.force-stop
	<prefix>.control.update-pool   Request{Pool}
	<prefix>.control.reload-pool
	<prefix>.control.result        Reply{Records}
	<prefix>.control.info          Reply{Info}

Every reply carries OK and, for rejected operations, the rejection reason.
Algorithms are instantiated by name from the algorithm.Registry given to
the Exporter. Pools travel as dataset.PoolSpec; slots whose UUID matches a
slot of the controller's pool adopt the open dataset.

# Event Stream

The Exporter registers an EventPublisher on all four listener categories.
Events are published as JSON to <prefix>.events.<category> through a
Watermill publisher (watermill-nats in production). Publishing goes through
a gobreaker circuit breaker so an unreachable bus is skipped instead of
retried for every event, and progress events are throttled with a token
bucket (golang.org/x/time/rate). The EventPublisher is a queued listener:
a slow bus never stalls the evaluation worker.

# Idempotence

Export returns the same *Stub while exported. Unexport on an instance that
is not exported does nothing.
*/
package remote
