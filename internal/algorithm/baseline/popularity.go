// Recbench - Recommendation Algorithm Evaluation Harness
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recbench

package baseline

import (
	"context"
	"sort"

	"github.com/tomtom215/recbench/internal/algorithm"
	"github.com/tomtom215/recbench/internal/dataset"
)

// PopularityName is the registry name of Popularity.
const PopularityName = "popularity"

// Popularity estimates ratings from item popularity. The estimate is the
// item mean damped toward the global mean, so rarely rated items stay close
// to the global mean:
//
//	estimate(i) = (sum(r_i) + damping * mean) / (count(i) + damping)
//
// Items below MinCount ratings are not estimated at all, which shows up in
// the recall of the evaluation.
type Popularity struct {
	base
	config PopularityConfig

	stats     *ratingStats
	sortedIDs []int // item IDs sorted by rating count descending
}

// PopularityConfig contains configuration for the popularity estimator.
type PopularityConfig struct {
	Options

	// Damping is the number of virtual global-mean ratings added per item.
	Damping float64

	// MinCount is the minimum number of ratings an item needs.
	MinCount int
}

// NewPopularity creates a popularity estimator.
func NewPopularity(cfg PopularityConfig) *Popularity {
	if cfg.Damping <= 0 {
		cfg.Damping = 5
	}
	if cfg.MinCount <= 0 {
		cfg.MinCount = 1
	}
	return &Popularity{
		base:   newBase(PopularityName, cfg.Options),
		config: cfg,
	}
}

// Setup counts ratings per item. The damping and min_count parameters
// override the configured values for this setup.
func (p *Popularity) Setup(ctx context.Context, training dataset.Dataset, params algorithm.Params) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.config.Damping = params.Float("popularity.damping", p.config.Damping)
	p.config.MinCount = params.Int("popularity.min_count", p.config.MinCount)

	stats, err := collectStats(ctx, training)
	if err != nil {
		return err
	}

	ids := make([]int, 0, len(stats.itemCount))
	for id := range stats.itemCount {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		ci, cj := stats.itemCount[ids[i]], stats.itemCount[ids[j]]
		if ci != cj {
			return ci > cj
		}
		return ids[i] < ids[j]
	})

	p.stats = stats
	p.sortedIDs = ids
	p.markTrained()
	return nil
}

// Execute returns damped means for sufficiently popular items.
func (p *Popularity) Execute(_ context.Context, param algorithm.Param) (*algorithm.Result, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if !p.trained {
		return nil, algorithm.ErrNotSetup
	}
	global, ok := p.stats.globalMean()
	if !ok {
		return nil, nil
	}

	estimates := make(map[int]float64, len(param.Items))
	for _, item := range param.Items {
		n := p.stats.itemCount[item]
		if n < p.config.MinCount {
			continue
		}
		estimates[item] = (p.stats.itemSum[item] + p.config.Damping*global) / (float64(n) + p.config.Damping)
	}
	return &algorithm.Result{Estimates: estimates}, nil
}

// Unsetup drops the model.
func (p *Popularity) Unsetup(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stats = nil
	p.sortedIDs = nil
	p.markUntrained()
	return nil
}

// TopK returns the K most rated item IDs.
func (p *Popularity) TopK(k int) []int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if k <= 0 || len(p.sortedIDs) == 0 {
		return nil
	}
	if k > len(p.sortedIDs) {
		k = len(p.sortedIDs)
	}
	out := make([]int, k)
	copy(out, p.sortedIDs[:k])
	return out
}
