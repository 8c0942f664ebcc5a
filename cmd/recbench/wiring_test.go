// Recbench - Recommendation Algorithm Evaluation Harness
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recbench

package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tomtom215/recbench/internal/algorithm/baseline"
	"github.com/tomtom215/recbench/internal/config"
	"github.com/tomtom215/recbench/internal/evaluator"
	"github.com/tomtom215/recbench/internal/evaluator/metric"
)

func TestDedupe(t *testing.T) {
	got := dedupe([]string{"Recall", "MAE", "Recall", "RMSE", "MAE"})
	want := []string{"Recall", "MAE", "RMSE"}
	if len(got) != len(want) {
		t.Fatalf("dedupe() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("dedupe()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestNewController_UnknownMetric(t *testing.T) {
	if _, err := newController(config.EvaluatorConfig{Metrics: []string{"NDCG"}}, nil); err == nil {
		t.Error("expected error for an unknown metric")
	}
}

func TestStartConfiguredRun(t *testing.T) {
	dir := t.TempDir()
	csv := "user_id,item_id,rating\n1,10,4\n1,11,3\n2,10,5\n2,12,2\n"
	path := filepath.Join(dir, "ratings.csv")
	if err := os.WriteFile(path, []byte(csv), 0o600); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	store, err := openDatasets(ctx, config.DatasetConfig{
		Imports: []config.ImportConfig{{Table: "ratings", Path: path}},
	})
	if err != nil {
		t.Fatalf("openDatasets() error = %v", err)
	}
	defer store.Close()

	c, err := newController(config.EvaluatorConfig{Metrics: []string{metric.MAEName}}, newResolver(store))
	if err != nil {
		t.Fatalf("newController() error = %v", err)
	}
	defer c.Close(ctx)

	pool := config.PoolConfig{Pairs: []config.PairConfig{{Training: "duckdb://ratings", Testing: "duckdb://ratings"}}}
	run := config.RunConfig{Algorithms: []string{baseline.ItemMeanName}}
	if err := startConfiguredRun(ctx, c, baseline.Registry(baseline.Options{}), pool, run, 5*time.Second); err != nil {
		t.Fatalf("startConfiguredRun() error = %v", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := c.Wait(waitCtx); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if got := c.State(); got != evaluator.StateIdle {
		t.Errorf("state = %v, want idle", got)
	}
	if c.Pool().Len() != 1 {
		t.Errorf("pool size = %d", c.Pool().Len())
	}
}

func TestStartConfiguredRun_UnknownAlgorithm(t *testing.T) {
	c, err := newController(config.EvaluatorConfig{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close(context.Background())

	err = startConfiguredRun(context.Background(), c, baseline.Registry(baseline.Options{}),
		config.PoolConfig{}, config.RunConfig{Algorithms: []string{"svd"}}, time.Second)
	if err == nil {
		t.Error("expected error for an unknown algorithm")
	}
}
