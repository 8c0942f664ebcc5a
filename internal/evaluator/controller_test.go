// Recbench - Recommendation Algorithm Evaluation Harness
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recbench

package evaluator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/recbench/internal/algorithm"
	"github.com/tomtom215/recbench/internal/dataset"
	"github.com/tomtom215/recbench/internal/evaluator/metric"
)

func TestController_RecallExample(t *testing.T) {
	c := newTestController(t, Config{})
	rec := &recorder{}
	rec.attach(c)

	alg := newFake("A")
	alg.miss = func(p dataset.Profile) bool { return p.UserID == 4 }

	if !c.Start([]algorithm.Algorithm{alg}, testPool(4), nil) {
		t.Fatalf("Start() = false, rejection = %v", c.LastRejection())
	}
	waitRun(t, c)

	res := c.Result()
	key := metric.Key{Algorithm: "A", DatasetID: 1}

	recall, ok := res.Get(key, metric.RecallName)
	if !ok || !recall.Valid {
		t.Fatal("Recall(A, 1) should be recorded")
	}
	if recall.Metric.Value() != 0.75 {
		t.Errorf("Recall(A, 1) = %v, want 0.75", recall.Metric.Value())
	}
	if setup, _ := res.Get(key, metric.SetupTimeName); setup.Metric.Count() != 1 {
		t.Errorf("SetupTime samples = %d, want 1", setup.Metric.Count())
	}
	if speed, _ := res.Get(key, metric.SpeedName); speed.Metric.Count() != 4 {
		t.Errorf("Speed samples = %d, want 4", speed.Metric.Count())
	}
	if mae, _ := res.Get(key, metric.MAEName); mae.Metric.Count() != 3 || mae.Metric.Value() != 0 {
		t.Errorf("MAE = %v over %d records, want 0 over 3", mae.Metric.Value(), mae.Metric.Count())
	}

	if got := rec.count(EvalSpeed); got != 4 {
		t.Errorf("speed events = %d, want 4", got)
	}
	if got := rec.count(EvalDoneOne); got != 1 {
		t.Errorf("done_one events = %d, want 1", got)
	}
	if got := rec.count(EvalDone); got != 1 {
		t.Errorf("done events = %d, want 1", got)
	}
	if types := rec.lifecycleTypes(); len(types) != 1 || types[0] != LifecycleStart {
		t.Errorf("lifecycle events = %v, want [start]", types)
	}
	if len(rec.progress) != 4 {
		t.Errorf("progress events = %d, want 4", len(rec.progress))
	}

	if _, _, unsetups := alg.counts(); unsetups != 1 {
		t.Errorf("unsetups = %d, want 1", unsetups)
	}
	if c.State() != StateIdle {
		t.Errorf("State() = %v, want idle", c.State())
	}
	info := c.Info()
	if info.Progress != 4 || info.ProgressTotal != 4 || info.InSetup {
		t.Errorf("Info() = %+v, want 4/4 and not in setup", info)
	}
}

func TestController_EventOrder(t *testing.T) {
	c := newTestController(t, Config{})
	rec := &recorder{}
	rec.attach(c)

	if !c.Start([]algorithm.Algorithm{newFake("A")}, testPool(2), nil) {
		t.Fatal("Start() = false")
	}
	waitRun(t, c)

	want := []EvalType{EvalSetupTime, EvalSpeed, EvalAccuracy, EvalAccuracy, EvalSpeed, EvalAccuracy, EvalAccuracy, EvalRecall, EvalDoneOne, EvalDone}
	got := rec.evalTypes()
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d = %s, want %s", i, got[i], want[i])
		}
	}

	phases := make([]SetupPhase, 0, len(rec.setups))
	for _, e := range rec.setups {
		phases = append(phases, e.Phase)
	}
	if len(phases) != 2 || phases[0] != SetupBegin || phases[1] != SetupEnd {
		t.Errorf("setup phases = %v, want [begin end]", phases)
	}
}

func TestController_StartRejections(t *testing.T) {
	c := newTestController(t, Config{})

	tests := []struct {
		name string
		algs []algorithm.Algorithm
		pool *dataset.Pool
		want error
	}{
		{name: "no algorithms", algs: nil, pool: testPool(1), want: ErrNoAlgorithms},
		{name: "nil algorithms only", algs: []algorithm.Algorithm{nil}, pool: testPool(1), want: ErrNoAlgorithms},
		{name: "nil pool", algs: []algorithm.Algorithm{newFake("A")}, pool: nil, want: ErrEmptyPool},
		{name: "empty pool", algs: []algorithm.Algorithm{newFake("A")}, pool: dataset.NewPool(), want: ErrEmptyPool},
		{name: "duplicate names", algs: []algorithm.Algorithm{newFake("A"), newFake("A")}, pool: testPool(1), want: ErrDuplicateAlgorithm},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if c.Start(tt.algs, tt.pool, nil) {
				t.Fatal("Start() = true, want false")
			}
			if !errors.Is(c.LastRejection(), tt.want) {
				t.Errorf("LastRejection() = %v, want %v", c.LastRejection(), tt.want)
			}
			if c.State() != StateIdle {
				t.Errorf("State() = %v, want idle", c.State())
			}
		})
	}
}

func TestController_SecondStartWhileRunning(t *testing.T) {
	c := newTestController(t, Config{})
	rec := &recorder{}
	rec.attach(c)

	alg := newFake("A")
	alg.execGate = make(chan struct{})
	if !c.Start([]algorithm.Algorithm{alg}, testPool(3), nil) {
		t.Fatal("Start() = false")
	}
	waitChan(t, "first execute", alg.execEntered)

	before := c.Result().Text()
	var wg sync.WaitGroup
	results := make(chan bool, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- c.Start([]algorithm.Algorithm{newFake("B")}, testPool(1), nil)
		}()
	}
	wg.Wait()
	close(results)
	for ok := range results {
		if ok {
			t.Error("concurrent Start() while running should return false")
		}
	}
	if !errors.Is(c.LastRejection(), ErrRunActive) {
		t.Errorf("LastRejection() = %v, want ErrRunActive", c.LastRejection())
	}
	if after := c.Result().Text(); after != before {
		t.Errorf("Result() changed by rejected start:\n%s\nvs\n%s", before, after)
	}

	close(alg.execGate)
	waitRun(t, c)

	if got := rec.count(EvalDone); got != 1 {
		t.Errorf("done events = %d, want 1", got)
	}
	starts := 0
	for _, typ := range rec.lifecycleTypes() {
		if typ == LifecycleStart {
			starts++
		}
	}
	if starts != 1 {
		t.Errorf("start events = %d, want 1", starts)
	}
	if c.Result().Has(metric.Key{Algorithm: "B", DatasetID: 1}) {
		t.Error("rejected run should not leave metrics")
	}
}

func TestController_PauseResume(t *testing.T) {
	c := newTestController(t, Config{})
	rec := &recorder{}
	rec.attach(c)

	paused := make(chan struct{})
	var once sync.Once
	pauser := &inlineProgress{fn: func(e ProgressEvent) {
		if e.PairProgress == 2 {
			once.Do(func() {
				if !c.Pause() {
					t.Errorf("Pause() = false, rejection = %v", c.LastRejection())
				}
				close(paused)
			})
		}
	}}
	c.AddProgressListener(pauser)

	alg := newFake("A")
	if !c.Start([]algorithm.Algorithm{alg}, testPool(4), nil) {
		t.Fatal("Start() = false")
	}
	waitChan(t, "pause", paused)

	time.Sleep(50 * time.Millisecond)
	if _, executes, _ := alg.counts(); executes != 2 {
		t.Errorf("executes while paused = %d, want 2", executes)
	}
	if c.State() != StatePaused {
		t.Errorf("State() = %v, want paused", c.State())
	}
	if c.Pause() {
		t.Error("Pause() while paused should return false")
	}
	speed, _ := c.Result().Get(metric.Key{Algorithm: "A", DatasetID: 1}, metric.SpeedName)
	if speed.Metric.Count() != 2 {
		t.Errorf("Speed samples while paused = %d, want 2", speed.Metric.Count())
	}

	if !c.Resume() {
		t.Fatalf("Resume() = false, rejection = %v", c.LastRejection())
	}
	waitRun(t, c)

	if _, executes, _ := alg.counts(); executes != 4 {
		t.Errorf("executes = %d, want 4 (no record re-run)", executes)
	}
	speed, _ = c.Result().Get(metric.Key{Algorithm: "A", DatasetID: 1}, metric.SpeedName)
	if speed.Metric.Count() != 4 {
		t.Errorf("Speed samples = %d, want 4", speed.Metric.Count())
	}
	types := rec.lifecycleTypes()
	want := []LifecycleType{LifecycleStart, LifecyclePause, LifecycleResume}
	if len(types) != len(want) {
		t.Fatalf("lifecycle = %v, want %v", types, want)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Errorf("lifecycle %d = %s, want %s", i, types[i], want[i])
		}
	}
	if c.Resume() {
		t.Error("Resume() while idle should return false")
	}
}

type inlineProgress struct {
	fn func(ProgressEvent)
}

func (p *inlineProgress) Presentation() bool { return true }

func (p *inlineProgress) OnProgress(e ProgressEvent) error {
	p.fn(e)
	return nil
}

func TestController_PauseDuringSetupUsesLearnHooks(t *testing.T) {
	c := newTestController(t, Config{})
	fake := newFake("remote")
	fake.setupGate = make(chan struct{})
	alg := &learningFake{fakeAlgorithm: fake}

	if !c.Start([]algorithm.Algorithm{alg}, testPool(1), nil) {
		t.Fatal("Start() = false")
	}
	waitChan(t, "setup", fake.setupEntered)
	waitFor(t, "setup flag", func() bool { return c.Info().InSetup })

	if !c.Pause() {
		t.Fatal("Pause() = false")
	}
	if !c.Resume() {
		t.Fatal("Resume() = false")
	}
	alg.lmu.Lock()
	paused, resumed := alg.paused, alg.resumed
	alg.lmu.Unlock()
	if paused != 1 || resumed != 1 {
		t.Errorf("learn hooks paused=%d resumed=%d, want 1 and 1", paused, resumed)
	}

	close(fake.setupGate)
	waitRun(t, c)
}

func TestController_Stop(t *testing.T) {
	c := newTestController(t, Config{})
	rec := &recorder{}
	rec.attach(c)

	alg := newFake("A")
	alg.execGate = make(chan struct{})
	if !c.Start([]algorithm.Algorithm{alg}, testPool(5, 5), nil) {
		t.Fatal("Start() = false")
	}
	waitChan(t, "first execute", alg.execEntered)

	if !c.Stop() {
		t.Fatalf("Stop() = false, rejection = %v", c.LastRejection())
	}
	if c.State() != StateStopped {
		t.Errorf("State() = %v, want stopped", c.State())
	}
	close(alg.execGate)
	waitRun(t, c)

	if _, executes, unsetups := alg.counts(); executes != 1 || unsetups != 1 {
		t.Errorf("executes=%d unsetups=%d, want 1 and 1", executes, unsetups)
	}
	types := rec.lifecycleTypes()
	if len(types) != 2 || types[1] != LifecycleStop {
		t.Errorf("lifecycle = %v, want [start stop]", types)
	}
	if got := rec.count(EvalDone); got != 1 {
		t.Errorf("done events = %d, want 1", got)
	}
	if got := rec.count(EvalDoneOne); got != 0 {
		t.Errorf("done_one events = %d, want 0 for an interrupted pair", got)
	}
	if c.State() != StateIdle {
		t.Errorf("State() = %v, want idle", c.State())
	}
	if c.Stop() {
		t.Error("Stop() while idle should return false")
	}
}

func TestController_ForceStopDuringSetup(t *testing.T) {
	c := newTestController(t, Config{ForceStopGrace: 5 * time.Millisecond})
	rec := &recorder{}
	rec.attach(c)

	alg := newFake("slow")
	alg.setupGate = make(chan struct{})
	if !c.Start([]algorithm.Algorithm{alg}, testPool(2), nil) {
		t.Fatal("Start() = false")
	}
	waitChan(t, "setup", alg.setupEntered)

	if !c.ForceStop() {
		t.Fatalf("ForceStop() = false, rejection = %v", c.LastRejection())
	}
	if c.State() != StateIdle {
		t.Errorf("State() = %v, want idle", c.State())
	}
	if c.ForceStop() {
		t.Error("second ForceStop() should return false")
	}

	// The abandoned setup returns later and is torn down by the worker.
	close(alg.setupGate)
	waitFor(t, "abandoned teardown", func() bool {
		_, _, unsetups := alg.counts()
		return unsetups == 1
	})
	if err := c.Flush(context.Background()); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	if got := rec.count(EvalDone); got != 1 {
		t.Fatalf("done events = %d, want exactly 1", got)
	}
	done, _ := rec.lastDone()
	if !done.Forced {
		t.Error("done event should be marked forced")
	}
	if got := rec.count(EvalSetupTime); got != 0 {
		t.Errorf("setup_time events after force stop = %d, want 0", got)
	}
	if _, executes, _ := alg.counts(); executes != 0 {
		t.Errorf("executes = %d, want 0", executes)
	}
}

func TestController_ForceStopTearsDown(t *testing.T) {
	c := newTestController(t, Config{ForceStopGrace: time.Millisecond})
	rec := &recorder{}
	rec.attach(c)

	alg := newFake("A")
	alg.execGate = make(chan struct{})
	delayed := newFake("D")
	delayed.delay = true
	delayed.execGate = alg.execGate

	if !c.Start([]algorithm.Algorithm{alg, delayed}, testPool(3), nil) {
		t.Fatal("Start() = false")
	}
	waitChan(t, "first execute", alg.execEntered)

	if !c.ForceStop() {
		t.Fatal("ForceStop() = false")
	}
	if _, _, unsetups := alg.counts(); unsetups != 1 {
		t.Errorf("unsetups after ForceStop() = %d, want 1", unsetups)
	}

	close(alg.execGate)
	time.Sleep(50 * time.Millisecond)
	if _, _, unsetups := alg.counts(); unsetups != 1 {
		t.Errorf("unsetups = %d, want exactly 1", unsetups)
	}
	if setups, _, _ := delayed.counts(); setups != 0 {
		t.Errorf("second algorithm setups = %d, want 0 after force stop", setups)
	}
	if err := c.Flush(context.Background()); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if got := rec.count(EvalDone); got != 1 {
		t.Errorf("done events = %d, want 1", got)
	}
	done, _ := rec.lastDone()
	if !done.Metrics.Has(metric.Key{Algorithm: "A", DatasetID: 1}) {
		t.Error("forced done should carry the partial metrics")
	}
}

func TestController_ForceStopIdle(t *testing.T) {
	c := newTestController(t, Config{})
	if c.ForceStop() {
		t.Error("ForceStop() while idle should return false")
	}
	if !errors.Is(c.LastRejection(), ErrNotRunning) {
		t.Errorf("LastRejection() = %v, want ErrNotRunning", c.LastRejection())
	}
}

func TestController_MetricsIsolation(t *testing.T) {
	c := newTestController(t, Config{})
	a := newFake("A")
	b := newFake("B")
	b.miss = func(dataset.Profile) bool { return true }

	if !c.Start([]algorithm.Algorithm{a, b}, testPool(4, 2), nil) {
		t.Fatal("Start() = false")
	}
	waitRun(t, c)
	res := c.Result()

	tests := []struct {
		key    metric.Key
		recall float64
		speeds int
	}{
		{metric.Key{Algorithm: "A", DatasetID: 1}, 1, 4},
		{metric.Key{Algorithm: "A", DatasetID: 2}, 1, 2},
		{metric.Key{Algorithm: "B", DatasetID: 1}, 0, 4},
		{metric.Key{Algorithm: "B", DatasetID: 2}, 0, 2},
	}
	for _, tt := range tests {
		t.Run(tt.key.String(), func(t *testing.T) {
			recall, _ := res.Get(tt.key, metric.RecallName)
			if recall.Metric.Value() != tt.recall {
				t.Errorf("Recall = %v, want %v", recall.Metric.Value(), tt.recall)
			}
			speed, _ := res.Get(tt.key, metric.SpeedName)
			if speed.Metric.Count() != tt.speeds {
				t.Errorf("Speed samples = %d, want %d", speed.Metric.Count(), tt.speeds)
			}
		})
	}
	if mae, _ := res.Get(metric.Key{Algorithm: "B", DatasetID: 1}, metric.MAEName); mae.Valid {
		t.Error("MAE of an algorithm without answers should stay invalid")
	}
}

func TestController_ExecutionErrorsCountAsMisses(t *testing.T) {
	c := newTestController(t, Config{})
	alg := newFake("A")
	alg.fail = func(p dataset.Profile) bool { return p.UserID%2 == 0 }

	if !c.Start([]algorithm.Algorithm{alg}, testPool(4), nil) {
		t.Fatal("Start() = false")
	}
	waitRun(t, c)

	recall, _ := c.Result().Get(metric.Key{Algorithm: "A", DatasetID: 1}, metric.RecallName)
	if recall.Metric.Value() != 0.5 {
		t.Errorf("Recall = %v, want 0.5", recall.Metric.Value())
	}
}

func TestController_SetupFailureContinues(t *testing.T) {
	c := newTestController(t, Config{})
	rec := &recorder{}
	rec.attach(c)

	broken := newFake("broken")
	broken.setupErr = errors.New("no model")
	good := newFake("good")

	if !c.Start([]algorithm.Algorithm{broken, good}, testPool(2), nil) {
		t.Fatal("Start() = false")
	}
	waitRun(t, c)

	res := c.Result()
	if r, _ := res.Get(metric.Key{Algorithm: "broken", DatasetID: 1}, metric.RecallName); r.Valid {
		t.Error("failed setup should not record recall")
	}
	if r, _ := res.Get(metric.Key{Algorithm: "good", DatasetID: 1}, metric.RecallName); r.Metric.Value() != 1 {
		t.Errorf("good recall = %v, want 1", r.Metric.Value())
	}
	if _, _, unsetups := broken.counts(); unsetups != 0 {
		t.Errorf("failed setup should not be torn down, unsetups = %d", unsetups)
	}
	var failed int
	for _, e := range rec.setups {
		if e.Phase == SetupEnd && e.Err != "" {
			failed++
		}
	}
	if failed != 1 {
		t.Errorf("failed setup end events = %d, want 1", failed)
	}
}

func TestController_UnresolvedPair(t *testing.T) {
	c := newTestController(t, Config{})
	pool := dataset.NewPool(dataset.PairFromSpec(dataset.PairSpec{TrainingURI: "mem://missing", TestingURI: "mem://missing"}), testPair(1))
	alg := newFake("A")

	if !c.Start([]algorithm.Algorithm{alg}, pool, nil) {
		t.Fatal("Start() = false")
	}
	waitRun(t, c)

	if setups, _, _ := alg.counts(); setups != 1 {
		t.Errorf("setups = %d, want 1 (unresolved pair skipped)", setups)
	}
}

func TestController_UpdatePoolWhileRunning(t *testing.T) {
	c := newTestController(t, Config{})
	alg := newFake("A")
	alg.execGate = make(chan struct{})
	pool := testPool(2)

	if !c.Start([]algorithm.Algorithm{alg}, pool, nil) {
		t.Fatal("Start() = false")
	}
	waitChan(t, "first execute", alg.execEntered)

	if c.UpdatePool(testPool(1)) {
		t.Error("UpdatePool() while running should return false")
	}
	if c.Pool() != pool {
		t.Error("in-progress pool reference should be unchanged")
	}
	if c.ReloadPool(context.Background()) {
		t.Error("ReloadPool() while running should return false")
	}

	close(alg.execGate)
	waitRun(t, c)

	next := testPool(1)
	if !c.UpdatePool(next) {
		t.Fatalf("UpdatePool() = false, rejection = %v", c.LastRejection())
	}
	if c.Pool().Len() != 1 {
		t.Errorf("Pool().Len() = %d, want 1", c.Pool().Len())
	}
}

func TestController_UpdatePoolReleasesDatasets(t *testing.T) {
	c := newTestController(t, Config{})
	first := testPair(1)
	if !c.UpdatePool(dataset.NewPool(first)) {
		t.Fatal("UpdatePool() = false")
	}
	training := first.Training().(*dataset.Memory)

	// Same identities, no handles: the open datasets are adopted.
	if !c.UpdatePool(dataset.FromSpec(c.Pool().Spec())) {
		t.Fatal("UpdatePool() = false")
	}
	if training.Closed() {
		t.Error("dataset still referenced by UUID should stay open")
	}

	if !c.UpdatePool(testPool(1)) {
		t.Fatal("UpdatePool() = false")
	}
	if !training.Closed() {
		t.Error("dataset dropped from the pool should be closed")
	}
}

func TestController_ReloadPool(t *testing.T) {
	catalog := dataset.NewCatalog()
	catalog.Put("train", testProfiles(2))
	catalog.Put("test", testProfiles(3))

	mux := dataset.NewMux()
	mux.Handle(dataset.MemoryScheme, catalog)

	c := newTestController(t, Config{Resolver: mux})
	if c.ReloadPool(context.Background()) {
		t.Error("ReloadPool() without a pool should return false")
	}

	pool := dataset.FromSpec(dataset.PoolSpec{Pairs: []dataset.PairSpec{{
		TrainingURI: catalog.URI("train"),
		TestingURI:  catalog.URI("test"),
	}}})
	if !c.UpdatePool(pool) {
		t.Fatal("UpdatePool() = false")
	}
	if !c.ReloadPool(context.Background()) {
		t.Fatalf("ReloadPool() = false, rejection = %v", c.LastRejection())
	}
	pair, _ := c.Pool().Get(1)
	if pair.Testing() == nil || pair.Testing().Size() != 3 {
		t.Fatal("reload should resolve the testing dataset")
	}

	if !c.Start([]algorithm.Algorithm{newFake("A")}, c.Pool(), nil) {
		t.Fatal("Start() = false")
	}
	waitRun(t, c)
	if r, _ := c.Result().Get(metric.Key{Algorithm: "A", DatasetID: 1}, metric.RecallName); r.Metric.Value() != 1 {
		t.Errorf("Recall = %v, want 1", r.Metric.Value())
	}
}

func TestController_ReloadPoolWithoutResolver(t *testing.T) {
	c := newTestController(t, Config{})
	c.UpdatePool(testPool(1))
	if c.ReloadPool(context.Background()) {
		t.Error("ReloadPool() without resolver should return false")
	}
	if !errors.Is(c.LastRejection(), ErrNoResolver) {
		t.Errorf("LastRejection() = %v, want ErrNoResolver", c.LastRejection())
	}
}

func TestController_SequentialRuns(t *testing.T) {
	c := newTestController(t, Config{})
	rec := &recorder{}
	rec.attach(c)

	if !c.Start([]algorithm.Algorithm{newFake("A")}, testPool(2), nil) {
		t.Fatal("first Start() = false")
	}
	waitRun(t, c)
	first := c.Result()

	if !c.Start([]algorithm.Algorithm{newFake("B")}, testPool(3), nil) {
		t.Fatalf("second Start() = false, rejection = %v", c.LastRejection())
	}
	waitRun(t, c)
	second := c.Result()

	if !first.Has(metric.Key{Algorithm: "A", DatasetID: 1}) {
		t.Error("first snapshot should keep its metrics")
	}
	if second.Has(metric.Key{Algorithm: "A", DatasetID: 1}) {
		t.Error("Result() should only hold the most recent run")
	}
	if !second.Has(metric.Key{Algorithm: "B", DatasetID: 1}) {
		t.Error("Result() should hold the second run")
	}
	if got := rec.count(EvalDone); got != 2 {
		t.Errorf("done events = %d, want 2", got)
	}

	dones := make(map[string]bool)
	rec.mu.Lock()
	for _, e := range rec.evals {
		if e.Type == EvalDone {
			dones[e.RunID] = true
		}
	}
	rec.mu.Unlock()
	if len(dones) != 2 {
		t.Errorf("distinct run ids = %d, want 2", len(dones))
	}
}

func TestController_DelayedTeardown(t *testing.T) {
	c := New(Config{}, zerolog.Nop())
	alg := newFake("D")
	alg.delay = true

	if !c.Start([]algorithm.Algorithm{alg}, testPool(1, 1), nil) {
		t.Fatal("Start() = false")
	}
	waitRun(t, c)

	if _, _, unsetups := alg.counts(); unsetups != 0 {
		t.Errorf("unsetups after run = %d, want 0", unsetups)
	}
	if c.PendingTeardowns() != 1 {
		t.Errorf("PendingTeardowns() = %d, want 1", c.PendingTeardowns())
	}

	other := newFake("E")
	if !c.Start([]algorithm.Algorithm{other}, testPool(1), nil) {
		t.Fatal("second Start() = false")
	}
	if _, _, unsetups := alg.counts(); unsetups != 1 {
		t.Errorf("unsetups after next start = %d, want 1", unsetups)
	}
	waitRun(t, c)

	alg2 := newFake("F")
	alg2.delay = true
	if !c.Start([]algorithm.Algorithm{alg2}, testPool(1), nil) {
		t.Fatal("third Start() = false")
	}
	waitRun(t, c)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Close(ctx); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if _, _, unsetups := alg2.counts(); unsetups != 1 {
		t.Errorf("unsetups after Close() = %d, want 1", unsetups)
	}
	if c.Start([]algorithm.Algorithm{newFake("G")}, testPool(1), nil) {
		t.Error("Start() after Close() should return false")
	}
	if !errors.Is(c.LastRejection(), ErrClosed) {
		t.Errorf("LastRejection() = %v, want ErrClosed", c.LastRejection())
	}
	if err := c.Close(ctx); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestController_CloseForceStopsActiveRun(t *testing.T) {
	c := New(Config{}, zerolog.Nop())
	rec := &recorder{}
	rec.attach(c)

	alg := newFake("A")
	alg.execGate = make(chan struct{})
	defer close(alg.execGate)

	if !c.Start([]algorithm.Algorithm{alg}, testPool(2), nil) {
		t.Fatal("Start() = false")
	}
	waitChan(t, "first execute", alg.execEntered)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Close(ctx); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if got := rec.count(EvalDone); got != 1 {
		t.Errorf("done events = %d, want 1 (flushed by Close)", got)
	}
	if _, _, unsetups := alg.counts(); unsetups != 1 {
		t.Errorf("unsetups = %d, want 1", unsetups)
	}
}

func TestController_MaxRecords(t *testing.T) {
	c := newTestController(t, Config{MaxRecords: 2})
	alg := newFake("A")
	alg.miss = func(p dataset.Profile) bool { return p.UserID == 2 }

	if !c.Start([]algorithm.Algorithm{alg}, testPool(5), nil) {
		t.Fatal("Start() = false")
	}
	waitRun(t, c)

	if _, executes, _ := alg.counts(); executes != 2 {
		t.Errorf("executes = %d, want 2", executes)
	}
	recall, _ := c.Result().Get(metric.Key{Algorithm: "A", DatasetID: 1}, metric.RecallName)
	if recall.Metric.Value() != 0.5 {
		t.Errorf("Recall = %v, want 0.5", recall.Metric.Value())
	}
}

func TestController_SetupProgressEvents(t *testing.T) {
	c := newTestController(t, Config{})
	rec := &recorder{}
	rec.attach(c)

	alg := &reportingFake{fakeAlgorithm: newFake("R"), steps: 3}
	if !c.Start([]algorithm.Algorithm{alg}, testPool(1), nil) {
		t.Fatal("Start() = false")
	}
	waitRun(t, c)

	progress := 0
	for _, e := range rec.setups {
		if e.Phase == SetupProgress {
			progress++
		}
	}
	if progress != 3 {
		t.Errorf("setup progress events = %d, want 3", progress)
	}
	alg.omu.Lock()
	defer alg.omu.Unlock()
	if alg.observer != nil {
		t.Error("observer should be removed after setup")
	}
}

type reportingFake struct {
	*fakeAlgorithm
	steps    int
	omu      sync.Mutex
	observer algorithm.SetupObserver
}

func (r *reportingFake) SetSetupObserver(obs algorithm.SetupObserver) {
	r.omu.Lock()
	defer r.omu.Unlock()
	r.observer = obs
}

func (r *reportingFake) Setup(ctx context.Context, ds dataset.Dataset, p algorithm.Params) error {
	r.omu.Lock()
	obs := r.observer
	r.omu.Unlock()
	for i := 1; i <= r.steps; i++ {
		if obs != nil {
			obs(algorithm.SetupProgress{Step: i, Total: r.steps, Message: "training"})
		}
	}
	return r.fakeAlgorithm.Setup(ctx, ds, p)
}

func TestController_BackupWithoutListeners(t *testing.T) {
	dir := t.TempDir()
	c := newTestController(t, Config{BackupDir: dir})
	alg := &reportingFake{fakeAlgorithm: newFake("A"), steps: 2}
	alg.miss = func(p dataset.Profile) bool { return p.UserID == 4 }

	if !c.Start([]algorithm.Algorithm{alg}, testPool(4), nil) {
		t.Fatal("Start() = false")
	}
	waitRun(t, c)

	snapshots, _ := filepath.Glob(filepath.Join(dir, "metrics-*.txt"))
	if len(snapshots) != 2 {
		t.Fatalf("metrics snapshots = %d, want 2 (done_one and done)", len(snapshots))
	}
	setupLogs, _ := filepath.Glob(filepath.Join(dir, "setup-A-*.txt"))
	if len(setupLogs) != 1 {
		t.Fatalf("setup logs = %d, want 1", len(setupLogs))
	}

	var foundDone bool
	for _, path := range snapshots {
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("ReadFile() error = %v", err)
		}
		content := string(data)
		if !strings.Contains(content, "metric=Recall kind=fraction count=1 value=0.750000") {
			t.Errorf("%s lacks the recall line:\n%s", filepath.Base(path), content)
		}
		if strings.Contains(content, "event=done\n") {
			foundDone = true
		}
	}
	if !foundDone {
		t.Error("no snapshot for the done event")
	}

	data, err := os.ReadFile(setupLogs[0])
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(data), "step=2 total=2 training") {
		t.Errorf("setup log lacks progress:\n%s", data)
	}
}

func TestController_NoBackupWithListeners(t *testing.T) {
	dir := t.TempDir()
	c := newTestController(t, Config{BackupDir: dir})
	c.AddEvaluatorListener(EvaluatorFunc(func(EvalEvent) error { return nil }))

	if !c.Start([]algorithm.Algorithm{newFake("A")}, testPool(1), nil) {
		t.Fatal("Start() = false")
	}
	waitRun(t, c)

	files, _ := filepath.Glob(filepath.Join(dir, "*.txt"))
	if len(files) != 0 {
		t.Errorf("backup files = %d, want 0 while a listener observes", len(files))
	}
}

func TestController_BackupEnabledWithListeners(t *testing.T) {
	dir := t.TempDir()
	c := newTestController(t, Config{BackupDir: dir, BackupEnabled: true})
	c.AddEvaluatorListener(EvaluatorFunc(func(EvalEvent) error { return nil }))

	if !c.Start([]algorithm.Algorithm{newFake("A")}, testPool(1), nil) {
		t.Fatal("Start() = false")
	}
	waitRun(t, c)

	files, _ := filepath.Glob(filepath.Join(dir, "metrics-*.txt"))
	if len(files) != 2 {
		t.Errorf("metrics snapshots = %d, want 2", len(files))
	}
}
