// Recbench - Recommendation Algorithm Evaluation Harness
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recbench

// Package baseline implements reference rating estimators used to exercise
// and calibrate the evaluator.
//
// # Algorithms
//
//   - itemmean: mean rating of the item, global mean as fallback
//   - popularity: item mean damped toward the global mean by rating count
//   - userknn: user-based collaborative filtering with cosine similarity
//
// # Thread Safety
//
// Setup and Unsetup acquire an exclusive lock while Execute uses a shared
// lock, so a model can serve estimates while nothing retrains it.
package baseline

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/tomtom215/recbench/internal/algorithm"
)

// Options configures the behaviour shared by all baseline algorithms.
type Options struct {
	// DelayUnsetup keeps the model until the evaluator drains its pending
	// teardown queue.
	DelayUnsetup bool
}

// base provides common state for all baseline algorithms.
type base struct {
	name          string
	opts          Options
	trained       bool
	version       int
	lastTrainedAt time.Time
	mu            sync.RWMutex
}

func newBase(name string, opts Options) base {
	return base{name: name, opts: opts}
}

// Name returns the algorithm identifier.
func (b *base) Name() string {
	return b.name
}

// Config returns the evaluator-facing configuration.
func (b *base) Config() algorithm.Config {
	return algorithm.Config{DelayUnsetup: b.opts.DelayUnsetup}
}

// IsTrained reports whether Setup has completed.
func (b *base) IsTrained() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.trained
}

// Version returns how many times the model has been set up.
func (b *base) Version() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.version
}

// markTrained must be called with mu held for writing.
func (b *base) markTrained() {
	b.trained = true
	b.version++
	b.lastTrainedAt = time.Now()
}

// markUntrained must be called with mu held for writing.
func (b *base) markUntrained() {
	b.trained = false
}

// ratingStats accumulates per-item and global rating sums.
type ratingStats struct {
	itemSum   map[int]float64
	itemCount map[int]int
	sum       float64
	count     int
	min, max  float64
}

func newRatingStats() *ratingStats {
	return &ratingStats{
		itemSum:   make(map[int]float64),
		itemCount: make(map[int]int),
		min:       math.Inf(1),
		max:       math.Inf(-1),
	}
}

func (s *ratingStats) add(item int, rating float64) {
	s.itemSum[item] += rating
	s.itemCount[item]++
	s.sum += rating
	s.count++
	s.min = math.Min(s.min, rating)
	s.max = math.Max(s.max, rating)
}

func (s *ratingStats) globalMean() (float64, bool) {
	if s.count == 0 {
		return 0, false
	}
	return s.sum / float64(s.count), true
}

func (s *ratingStats) clamp(v float64) float64 {
	if s.count == 0 {
		return v
	}
	return math.Max(s.min, math.Min(s.max, v))
}

// cosineSimilarity computes cosine similarity between two sparse vectors.
// Returns the similarity and the number of co-rated items.
func cosineSimilarity(a, b map[int]float64) (float64, int) {
	if len(a) > len(b) {
		a, b = b, a
	}
	var dot, normA, normB float64
	common := 0
	for id, va := range a {
		normA += va * va
		if vb, ok := b[id]; ok {
			dot += va * vb
			common++
		}
	}
	for _, vb := range b {
		normB += vb * vb
	}
	if normA == 0 || normB == 0 {
		return 0, common
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), common
}

// contextCanceled checks if the context has been canceled.
func contextCanceled(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

// Registry returns a registry with the baseline algorithms under their names.
func Registry(opts Options) *algorithm.Registry {
	return algorithm.NewRegistry(map[string]algorithm.Factory{
		ItemMeanName:   func() algorithm.Algorithm { return NewItemMean(opts) },
		PopularityName: func() algorithm.Algorithm { return NewPopularity(PopularityConfig{Options: opts}) },
		UserKNNName:    func() algorithm.Algorithm { return NewUserKNN(KNNConfig{Options: opts}) },
	})
}

// Ensure all algorithms implement the interface.
var (
	_ algorithm.Algorithm     = (*ItemMean)(nil)
	_ algorithm.Algorithm     = (*Popularity)(nil)
	_ algorithm.Algorithm     = (*UserKNN)(nil)
	_ algorithm.SetupReporter = (*UserKNN)(nil)
)
