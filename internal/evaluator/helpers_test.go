// Recbench - Recommendation Algorithm Evaluation Harness
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recbench

package evaluator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/recbench/internal/algorithm"
	"github.com/tomtom215/recbench/internal/dataset"
)

// fakeAlgorithm is a scripted algorithm. It answers every record unless
// miss returns true for the profile.
type fakeAlgorithm struct {
	name     string
	delay    bool
	miss     func(dataset.Profile) bool
	fail     func(dataset.Profile) bool
	setupErr error

	// setupGate blocks Setup until closed. execGate blocks every Execute
	// until closed. Neither honours context cancellation.
	setupGate chan struct{}
	execGate  chan struct{}

	setupEntered chan struct{}
	execEntered  chan struct{}
	enterOnce    sync.Once
	execOnce     sync.Once

	mu       sync.Mutex
	setups   int
	executes int
	unsetups int
}

func newFake(name string) *fakeAlgorithm {
	return &fakeAlgorithm{
		name:         name,
		setupEntered: make(chan struct{}),
		execEntered:  make(chan struct{}),
	}
}

func (f *fakeAlgorithm) Name() string { return f.name }

func (f *fakeAlgorithm) Config() algorithm.Config {
	return algorithm.Config{DelayUnsetup: f.delay}
}

func (f *fakeAlgorithm) Setup(context.Context, dataset.Dataset, algorithm.Params) error {
	f.enterOnce.Do(func() { close(f.setupEntered) })
	if f.setupGate != nil {
		<-f.setupGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setups++
	return f.setupErr
}

func (f *fakeAlgorithm) Execute(_ context.Context, p algorithm.Param) (*algorithm.Result, error) {
	f.execOnce.Do(func() { close(f.execEntered) })
	if f.execGate != nil {
		<-f.execGate
	}
	f.mu.Lock()
	f.executes++
	f.mu.Unlock()

	if f.fail != nil && f.fail(p.Profile) {
		return nil, errors.New("scripted failure")
	}
	if f.miss != nil && f.miss(p.Profile) {
		return nil, nil
	}
	est := make(map[int]float64, len(p.Items))
	for _, item := range p.Items {
		est[item] = p.Profile.Ratings[item]
	}
	return &algorithm.Result{Estimates: est}, nil
}

func (f *fakeAlgorithm) Unsetup(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unsetups++
	return nil
}

func (f *fakeAlgorithm) counts() (setups, executes, unsetups int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.setups, f.executes, f.unsetups
}

// learningFake adds learn hooks to fakeAlgorithm.
type learningFake struct {
	*fakeAlgorithm
	lmu     sync.Mutex
	paused  int
	resumed int
	stopped int
}

func (l *learningFake) LearnPause() bool {
	l.lmu.Lock()
	defer l.lmu.Unlock()
	l.paused++
	return true
}

func (l *learningFake) LearnResume() bool {
	l.lmu.Lock()
	defer l.lmu.Unlock()
	l.resumed++
	return true
}

func (l *learningFake) LearnStop() bool {
	l.lmu.Lock()
	defer l.lmu.Unlock()
	l.stopped++
	return true
}

func testProfiles(n int) []dataset.Profile {
	out := make([]dataset.Profile, n)
	for i := range out {
		out[i] = dataset.Profile{UserID: i + 1, Ratings: map[int]float64{1: 4, 2: 3}}
	}
	return out
}

func testPair(records int) *dataset.Pair {
	training := dataset.NewMemory("mem://train", testProfiles(3))
	test := dataset.NewMemory("mem://test", testProfiles(records))
	return dataset.NewPair(training, test, nil)
}

func testPool(records ...int) *dataset.Pool {
	pairs := make([]*dataset.Pair, len(records))
	for i, n := range records {
		pairs[i] = testPair(n)
	}
	return dataset.NewPool(pairs...)
}

func newTestController(t *testing.T, cfg Config) *Controller {
	t.Helper()
	c := New(cfg, zerolog.Nop())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = c.Close(ctx)
	})
	return c
}

func waitRun(t *testing.T, c *Controller) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Wait(ctx); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if err := c.Flush(ctx); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func waitChan(t *testing.T, what string, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
}

// recorder collects events of every category.
type recorder struct {
	mu        sync.Mutex
	lifecycle []LifecycleEvent
	evals     []EvalEvent
	setups    []SetupEvent
	progress  []ProgressEvent
	inline    bool
}

func (r *recorder) Presentation() bool { return r.inline }

func (r *recorder) OnLifecycle(e LifecycleEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lifecycle = append(r.lifecycle, e)
	return nil
}

func (r *recorder) OnEvaluate(e EvalEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evals = append(r.evals, e)
	return nil
}

func (r *recorder) OnSetup(e SetupEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.setups = append(r.setups, e)
	return nil
}

func (r *recorder) OnProgress(e ProgressEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = append(r.progress, e)
	return nil
}

func (r *recorder) attach(c *Controller) {
	c.AddLifecycleListener(r)
	c.AddEvaluatorListener(r)
	c.AddSetupListener(r)
	c.AddProgressListener(r)
}

func (r *recorder) evalTypes() []EvalType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EvalType, len(r.evals))
	for i, e := range r.evals {
		out[i] = e.Type
	}
	return out
}

func (r *recorder) count(typ EvalType) int {
	n := 0
	for _, t := range r.evalTypes() {
		if t == typ {
			n++
		}
	}
	return n
}

func (r *recorder) lifecycleTypes() []LifecycleType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]LifecycleType, len(r.lifecycle))
	for i, e := range r.lifecycle {
		out[i] = e.Type
	}
	return out
}

func (r *recorder) lastDone() (EvalEvent, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.evals) - 1; i >= 0; i-- {
		if r.evals[i].Type == EvalDone {
			return r.evals[i], true
		}
	}
	return EvalEvent{}, false
}
