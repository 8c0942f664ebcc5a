// Recbench - Recommendation Algorithm Evaluation Harness
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recbench

package baseline

import (
	"context"

	"github.com/tomtom215/recbench/internal/algorithm"
	"github.com/tomtom215/recbench/internal/dataset"
)

// ItemMeanName is the registry name of ItemMean.
const ItemMeanName = "itemmean"

// ItemMean estimates every rating as the mean rating of the item, falling
// back to the global mean for items absent from training.
type ItemMean struct {
	base
	stats *ratingStats
}

// NewItemMean creates an item-mean estimator.
func NewItemMean(opts Options) *ItemMean {
	return &ItemMean{base: newBase(ItemMeanName, opts)}
}

// Setup computes item and global means.
func (m *ItemMean) Setup(ctx context.Context, training dataset.Dataset, _ algorithm.Params) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats, err := collectStats(ctx, training)
	if err != nil {
		return err
	}
	m.stats = stats
	m.markTrained()
	return nil
}

// Execute returns item means for the requested items.
func (m *ItemMean) Execute(_ context.Context, param algorithm.Param) (*algorithm.Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.trained {
		return nil, algorithm.ErrNotSetup
	}
	global, ok := m.stats.globalMean()
	if !ok {
		return nil, nil
	}

	estimates := make(map[int]float64, len(param.Items))
	for _, item := range param.Items {
		if n := m.stats.itemCount[item]; n > 0 {
			estimates[item] = m.stats.itemSum[item] / float64(n)
		} else {
			estimates[item] = global
		}
	}
	return &algorithm.Result{Estimates: estimates}, nil
}

// Unsetup drops the model.
func (m *ItemMean) Unsetup(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats = nil
	m.markUntrained()
	return nil
}

func collectStats(ctx context.Context, training dataset.Dataset) (*ratingStats, error) {
	f, err := training.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	stats := newRatingStats()
	for f.Next() {
		for item, rating := range f.Profile().Ratings {
			stats.add(item, rating)
		}
	}
	if err := f.Err(); err != nil {
		return nil, err
	}
	return stats, nil
}
