// Recbench - Recommendation Algorithm Evaluation Harness
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recbench

package remote

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"
	natsgo "github.com/nats-io/nats.go"

	"github.com/tomtom215/recbench/internal/algorithm"
	"github.com/tomtom215/recbench/internal/dataset"
	"github.com/tomtom215/recbench/internal/evaluator"
	"github.com/tomtom215/recbench/internal/evaluator/metric"
)

// Client calls an exported controller. Boolean operations return the
// controller's answer; the error is only set for transport failures.
type Client struct {
	conn    *natsgo.Conn
	prefix  string
	timeout time.Duration

	mu        sync.Mutex
	lastError string
}

// NewClient creates a client for the controller exported under prefix.
func NewClient(conn *natsgo.Conn, prefix string, timeout time.Duration) *Client {
	if prefix == "" {
		prefix = DefaultConfig().Prefix
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{conn: conn, prefix: prefix, timeout: timeout}
}

func (c *Client) call(ctx context.Context, op string, req *Request) (*Reply, error) {
	if c.conn == nil {
		return nil, ErrNotConnected
	}
	var data []byte
	if req != nil {
		var err error
		if data, err = json.Marshal(req); err != nil {
			return nil, fmt.Errorf("encode %s request: %w", op, err)
		}
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	msg, err := c.conn.RequestWithContext(ctx, ControlSubject(c.prefix, op), data)
	if err != nil {
		return nil, fmt.Errorf("%s request: %w", op, err)
	}
	var reply Reply
	if err := json.Unmarshal(msg.Data, &reply); err != nil {
		return nil, fmt.Errorf("decode %s reply: %w", op, err)
	}
	c.mu.Lock()
	c.lastError = reply.Error
	c.mu.Unlock()
	return &reply, nil
}

func (c *Client) boolCall(ctx context.Context, op string, req *Request) (bool, error) {
	reply, err := c.call(ctx, op, req)
	if err != nil {
		return false, err
	}
	return reply.OK, nil
}

// LastRejection returns the rejection reason of the last refused
// operation, or an empty string.
func (c *Client) LastRejection() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastError
}

// Start asks the controller to run the named algorithms. A nil pool uses
// the pool held by the controller.
func (c *Client) Start(ctx context.Context, algorithms []string, pool *dataset.PoolSpec, params algorithm.Params) (bool, error) {
	return c.boolCall(ctx, OpStart, &Request{Algorithms: algorithms, Pool: pool, Params: params})
}

// Pause pauses the active run.
func (c *Client) Pause(ctx context.Context) (bool, error) { return c.boolCall(ctx, OpPause, nil) }

// Resume resumes a paused run.
func (c *Client) Resume(ctx context.Context) (bool, error) { return c.boolCall(ctx, OpResume, nil) }

// Stop stops the active run cooperatively.
func (c *Client) Stop(ctx context.Context) (bool, error) { return c.boolCall(ctx, OpStop, nil) }

// ForceStop abandons the active run.
func (c *Client) ForceStop(ctx context.Context) (bool, error) {
	return c.boolCall(ctx, OpForceStop, nil)
}

// UpdatePool replaces the controller's pool.
func (c *Client) UpdatePool(ctx context.Context, pool dataset.PoolSpec) (bool, error) {
	return c.boolCall(ctx, OpUpdatePool, &Request{Pool: &pool})
}

// ReloadPool re-resolves the controller's datasets.
func (c *Client) ReloadPool(ctx context.Context) (bool, error) {
	return c.boolCall(ctx, OpReloadPool, nil)
}

// Result returns the flattened metrics of the most recent run.
func (c *Client) Result(ctx context.Context) ([]metric.Record, error) {
	reply, err := c.call(ctx, OpResult, nil)
	if err != nil {
		return nil, err
	}
	return reply.Records, nil
}

// Info returns the run progress record.
func (c *Client) Info(ctx context.Context) (evaluator.Info, error) {
	reply, err := c.call(ctx, OpInfo, nil)
	if err != nil {
		return evaluator.Info{}, err
	}
	if reply.Info == nil {
		return evaluator.Info{}, errors.New("info reply without info")
	}
	return *reply.Info, nil
}
