// Recbench - Recommendation Algorithm Evaluation Harness
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recbench

package remote

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	natsgo "github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/tomtom215/recbench/internal/evaluator"
	"github.com/tomtom215/recbench/internal/metrics"
)

// NewNATSPublisher creates a Watermill publisher on core NATS. Event
// streams are live telemetry, so JetStream persistence is disabled.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewNATSPublisher(url string, logger zerolog.Logger) (message.Publisher, error) {
	wmLogger := NewWatermillLogger(logger.With().Str("component", "remote_publisher").Logger())

	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(2 * time.Second),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				wmLogger.Error("NATS disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			wmLogger.Info("NATS reconnected", watermill.LogFields{"url": nc.ConnectedUrl()})
		}),
	}

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         url,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream:   wmNats.JetStreamConfig{Disabled: true},
	}, wmLogger)
	if err != nil {
		return nil, fmt.Errorf("create watermill publisher: %w", err)
	}
	return pub, nil
}

// EventPublisher forwards evaluator events to a message bus. It implements
// the four listener interfaces and is always delivered through the
// evaluator's queue.
type EventPublisher struct {
	publisher message.Publisher
	prefix    string
	breaker   *gobreaker.CircuitBreaker[struct{}]
	limiter   *rate.Limiter
	logger    zerolog.Logger

	mu     sync.Mutex
	closed bool
}

var (
	_ evaluator.LifecycleListener = (*EventPublisher)(nil)
	_ evaluator.EvaluatorListener = (*EventPublisher)(nil)
	_ evaluator.SetupListener     = (*EventPublisher)(nil)
	_ evaluator.ProgressListener  = (*EventPublisher)(nil)
)

// NewEventPublisher wraps pub.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewEventPublisher(pub message.Publisher, cfg Config, logger zerolog.Logger) *EventPublisher {
	cfg = cfg.withDefaults()
	logger = logger.With().Str("component", "remote_events").Logger()

	p := &EventPublisher{
		publisher: pub,
		prefix:    cfg.Prefix,
		logger:    logger,
	}
	if cfg.ProgressPerSecond > 0 {
		p.limiter = rate.NewLimiter(rate.Limit(cfg.ProgressPerSecond), cfg.ProgressBurst)
	}

	threshold := cfg.BreakerFailures
	p.breaker = gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "remote-events",
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.RemoteBreakerState.Set(float64(to))
			logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Event publisher circuit breaker state changed")
		},
	})
	return p
}

// BreakerState returns the circuit breaker state.
func (p *EventPublisher) BreakerState() gobreaker.State {
	return p.breaker.State()
}

// OnLifecycle implements evaluator.LifecycleListener.
func (p *EventPublisher) OnLifecycle(e evaluator.LifecycleEvent) error {
	return p.publish(evaluator.CategoryLifecycle, e)
}

// OnEvaluate implements evaluator.EvaluatorListener.
func (p *EventPublisher) OnEvaluate(e evaluator.EvalEvent) error {
	return p.publish(evaluator.CategoryEvaluator, newEvalMessage(e))
}

// OnSetup implements evaluator.SetupListener.
func (p *EventPublisher) OnSetup(e evaluator.SetupEvent) error {
	return p.publish(evaluator.CategorySetup, e)
}

// OnProgress implements evaluator.ProgressListener. The last record of a
// pair is always published so subscribers see every pair complete.
func (p *EventPublisher) OnProgress(e evaluator.ProgressEvent) error {
	last := e.PairProgress >= e.PairProgressTotal
	if p.limiter != nil && !p.limiter.Allow() && !last {
		metrics.RemotePublishFailures.WithLabelValues(evaluator.CategoryProgress, "throttled").Inc()
		return nil
	}
	return p.publish(evaluator.CategoryProgress, e)
}

func (p *EventPublisher) publish(category string, payload any) error {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return nil
	}

	data, err := json.Marshal(payload)
	if err != nil {
		metrics.RemotePublishFailures.WithLabelValues(category, "error").Inc()
		return fmt.Errorf("marshal %s event: %w", category, err)
	}
	msg := message.NewMessage(watermill.NewUUID(), data)
	msg.Metadata.Set("category", category)

	topic := EventSubject(p.prefix, category)
	_, err = p.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, p.publisher.Publish(topic, msg)
	})
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.RemotePublishFailures.WithLabelValues(category, "breaker_open").Inc()
		return nil
	case err != nil:
		metrics.RemotePublishFailures.WithLabelValues(category, "error").Inc()
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	metrics.RemotePublished.WithLabelValues(category).Inc()
	return nil
}

// Close stops publishing and closes the underlying publisher.
func (p *EventPublisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()
	return p.publisher.Close()
}
