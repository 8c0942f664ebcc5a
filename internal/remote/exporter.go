// Recbench - Recommendation Algorithm Evaluation Harness
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recbench

package remote

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"
	natsgo "github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/tomtom215/recbench/internal/algorithm"
	"github.com/tomtom215/recbench/internal/dataset"
	"github.com/tomtom215/recbench/internal/evaluator"
	"github.com/tomtom215/recbench/internal/metrics"
)

// Connect opens a NATS connection that keeps reconnecting.
func Connect(url, name string) (*natsgo.Conn, error) {
	nc, err := natsgo.Connect(url,
		natsgo.Name(name),
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return nc, nil
}

// Stub describes an exported controller.
type Stub struct {
	Prefix     string    `json:"prefix"`
	URL        string    `json:"url"`
	Subjects   []string  `json:"subjects"`
	ExportedAt time.Time `json:"exported_at"`
}

// Exporter serves a controller on NATS.
type Exporter struct {
	controller *evaluator.Controller
	registry   *algorithm.Registry
	conn       *natsgo.Conn
	events     *EventPublisher
	cfg        Config
	logger     zerolog.Logger

	mu   sync.Mutex
	stub *Stub
	subs []*natsgo.Subscription
}

// NewExporter creates an exporter. events may be nil to serve only the
// control surface.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewExporter(
	controller *evaluator.Controller,
	registry *algorithm.Registry,
	conn *natsgo.Conn,
	events *EventPublisher,
	cfg Config,
	logger zerolog.Logger,
) *Exporter {
	return &Exporter{
		controller: controller,
		registry:   registry,
		conn:       conn,
		events:     events,
		cfg:        cfg.withDefaults(),
		logger:     logger.With().Str("component", "remote_exporter").Logger(),
	}
}

// Export subscribes the control subjects and registers the event
// publisher. While exported it returns the same stub.
func (e *Exporter) Export() (*Stub, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stub != nil {
		return e.stub, nil
	}
	if e.conn == nil {
		return nil, ErrNotConnected
	}

	handlers := map[string]func(Request) Reply{
		OpStart:      e.handleStart,
		OpPause:      e.boolOp(e.controller.Pause),
		OpResume:     e.boolOp(e.controller.Resume),
		OpStop:       e.boolOp(e.controller.Stop),
		OpForceStop:  e.boolOp(e.controller.ForceStop),
		OpUpdatePool: e.handleUpdatePool,
		OpReloadPool: e.handleReloadPool,
		OpResult:     e.handleResult,
		OpInfo:       e.handleInfo,
	}

	stub := &Stub{Prefix: e.cfg.Prefix, URL: e.conn.ConnectedUrl(), ExportedAt: time.Now()}
	subs := make([]*natsgo.Subscription, 0, len(handlers))
	for op, fn := range handlers {
		subject := ControlSubject(e.cfg.Prefix, op)
		sub, err := e.conn.Subscribe(subject, e.serve(op, fn))
		if err != nil {
			for _, s := range subs {
				_ = s.Unsubscribe()
			}
			return nil, fmt.Errorf("subscribe %s: %w", subject, err)
		}
		subs = append(subs, sub)
		stub.Subjects = append(stub.Subjects, subject)
	}
	if err := e.conn.Flush(); err != nil {
		for _, s := range subs {
			_ = s.Unsubscribe()
		}
		return nil, fmt.Errorf("flush subscriptions: %w", err)
	}

	if e.events != nil {
		e.controller.AddLifecycleListener(e.events)
		e.controller.AddEvaluatorListener(e.events)
		e.controller.AddSetupListener(e.events)
		e.controller.AddProgressListener(e.events)
	}

	e.subs = subs
	e.stub = stub
	e.logger.Info().
		Str("prefix", stub.Prefix).
		Str("url", stub.URL).
		Int("subjects", len(stub.Subjects)).
		Msg("Controller exported")
	return stub, nil
}

// Unexport removes the subscriptions and the event publisher. It does
// nothing when the controller is not exported.
func (e *Exporter) Unexport() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stub == nil {
		return nil
	}

	var firstErr error
	for _, s := range e.subs {
		if err := s.Unsubscribe(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("unsubscribe %s: %w", s.Subject, err)
		}
	}
	if e.events != nil {
		e.controller.RemoveLifecycleListener(e.events)
		e.controller.RemoveEvaluatorListener(e.events)
		e.controller.RemoveSetupListener(e.events)
		e.controller.RemoveProgressListener(e.events)
	}
	e.subs = nil
	e.stub = nil
	e.logger.Info().Msg("Controller unexported")
	return firstErr
}

// Exported reports whether the controller is currently exported.
func (e *Exporter) Exported() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stub != nil
}

func (e *Exporter) serve(op string, fn func(Request) Reply) natsgo.MsgHandler {
	return func(msg *natsgo.Msg) {
		var req Request
		var reply Reply
		if len(msg.Data) > 0 {
			if err := json.Unmarshal(msg.Data, &req); err != nil {
				reply = Reply{Error: fmt.Sprintf("decode request: %v", err)}
			} else {
				reply = fn(req)
			}
		} else {
			reply = fn(req)
		}
		reply.State = e.controller.State().String()
		metrics.RecordRemoteRequest(op, reply.OK)

		data, err := json.Marshal(reply)
		if err != nil {
			e.logger.Error().Err(err).Str("operation", op).Msg("Failed to encode reply")
			return
		}
		if err := msg.Respond(data); err != nil {
			e.logger.Warn().Err(err).Str("operation", op).Msg("Failed to send reply")
		}
	}
}

func (e *Exporter) boolOp(fn func() bool) func(Request) Reply {
	return func(Request) Reply {
		return e.result(fn())
	}
}

func (e *Exporter) result(ok bool) Reply {
	if ok {
		return Reply{OK: true}
	}
	reply := Reply{}
	if err := e.controller.LastRejection(); err != nil {
		reply.Error = err.Error()
	}
	return reply
}

func (e *Exporter) handleStart(req Request) Reply {
	if e.registry == nil {
		return Reply{Error: "no algorithm registry"}
	}
	algs, err := e.registry.Instantiate(req.Algorithms)
	if err != nil {
		return Reply{Error: err.Error()}
	}
	pool := e.controller.Pool()
	if req.Pool != nil {
		pool = dataset.FromSpec(*req.Pool)
	}
	return e.result(e.controller.Start(algs, pool, req.Params))
}

func (e *Exporter) handleUpdatePool(req Request) Reply {
	var pool *dataset.Pool
	if req.Pool != nil {
		pool = dataset.FromSpec(*req.Pool)
	}
	return e.result(e.controller.UpdatePool(pool))
}

func (e *Exporter) handleReloadPool(Request) Reply {
	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.RequestTimeout)
	defer cancel()
	return e.result(e.controller.ReloadPool(ctx))
}

func (e *Exporter) handleResult(Request) Reply {
	return Reply{OK: true, Records: e.controller.Result().Records()}
}

func (e *Exporter) handleInfo(Request) Reply {
	info := e.controller.Info()
	return Reply{OK: true, Info: &info}
}
