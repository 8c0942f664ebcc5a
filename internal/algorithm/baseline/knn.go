// Recbench - Recommendation Algorithm Evaluation Harness
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recbench

package baseline

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/tomtom215/recbench/internal/algorithm"
	"github.com/tomtom215/recbench/internal/dataset"
	"github.com/tomtom215/recbench/internal/logging"
)

// UserKNNName is the registry name of UserKNN.
const UserKNNName = "userknn"

// KNNConfig contains configuration for the user-based estimator.
type KNNConfig struct {
	Options

	// K is the number of neighbors to consider.
	// Typical range: 20-100.
	K int

	// MinSimilarity is the minimum similarity threshold.
	// Neighbors with lower similarity are ignored.
	MinSimilarity float64

	// Shrinkage adds a penalty for pairs with few co-ratings.
	// Regularizes similarity: sim = raw_sim * n / (n + shrinkage)
	Shrinkage float64

	// MinCommonItems is the minimum number of co-rated items required for a
	// valid similarity computation.
	MinCommonItems int
}

// neighbor represents a similar user with their similarity score.
type neighbor struct {
	ID         int
	Similarity float64
}

// UserKNN implements user-based collaborative filtering on explicit ratings.
//
// For a target user u and item i:
//
//	estimate(u, i) = mean(u) + sum_{v in N(u,i)} sim(u, v) * (r(v, i) - mean(v)) / sum |sim(u, v)|
//
// where N(u, i) are the neighbors of u who rated i. The target user is
// looked up by ID in the training data; users absent from training get no
// estimates.
type UserKNN struct {
	base
	config KNNConfig

	userVectors    map[int]map[int]float64
	userMeans      map[int]float64
	userSimilarity map[int][]neighbor
	stats          *ratingStats

	obsMu    sync.Mutex
	observer algorithm.SetupObserver
}

// NewUserKNN creates a user-based estimator.
func NewUserKNN(cfg KNNConfig) *UserKNN {
	if cfg.K <= 0 {
		cfg.K = 20
	}
	if cfg.MinSimilarity <= 0 {
		cfg.MinSimilarity = 0.1
	}
	if cfg.MinCommonItems <= 0 {
		cfg.MinCommonItems = 1
	}
	return &UserKNN{
		base:   newBase(UserKNNName, cfg.Options),
		config: cfg,
	}
}

// SetSetupObserver installs the setup progress observer.
func (u *UserKNN) SetSetupObserver(obs algorithm.SetupObserver) {
	u.obsMu.Lock()
	defer u.obsMu.Unlock()
	u.observer = obs
}

func (u *UserKNN) report(step, total int, msg string) {
	u.obsMu.Lock()
	obs := u.observer
	u.obsMu.Unlock()
	if obs != nil {
		obs(algorithm.SetupProgress{Step: step, Total: total, Message: msg})
	}
}

// Setup builds user vectors and precomputes neighbors. Progress is reported
// once per user.
func (u *UserKNN) Setup(ctx context.Context, training dataset.Dataset, params algorithm.Params) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	u.config.K = params.Int("knn.k", u.config.K)
	u.config.MinSimilarity = params.Float("knn.min_similarity", u.config.MinSimilarity)

	profiles, err := dataset.Collect(ctx, training)
	if err != nil {
		return err
	}

	u.userVectors = make(map[int]map[int]float64, len(profiles))
	u.userMeans = make(map[int]float64, len(profiles))
	u.stats = newRatingStats()
	for _, p := range profiles {
		u.userVectors[p.UserID] = p.Ratings
		u.userMeans[p.UserID] = p.Mean()
		for item, rating := range p.Ratings {
			u.stats.add(item, rating)
		}
	}

	userIDs := make([]int, 0, len(u.userVectors))
	for uid := range u.userVectors {
		userIDs = append(userIDs, uid)
	}
	sort.Ints(userIDs)

	u.userSimilarity = make(map[int][]neighbor, len(userIDs))
	for i, uid := range userIDs {
		if contextCanceled(ctx) {
			return ctx.Err()
		}
		u.userSimilarity[uid] = u.computeUserNeighbors(uid, userIDs)
		u.report(i+1, len(userIDs), fmt.Sprintf("user %d neighbors computed", uid))
	}

	u.markTrained()
	logging.Ctx(ctx).Debug().
		Str("algorithm", UserKNNName).
		Int("users", len(userIDs)).
		Int("k", u.config.K).
		Msg("Neighbor table built")
	return nil
}

// computeUserNeighbors computes the k most similar users for a given user.
func (u *UserKNN) computeUserNeighbors(userID int, allUsers []int) []neighbor {
	userVec := u.userVectors[userID]
	if len(userVec) == 0 {
		return nil
	}

	neighbors := make([]neighbor, 0, len(allUsers))
	for _, other := range allUsers {
		if other == userID {
			continue
		}
		sim, common := cosineSimilarity(userVec, u.userVectors[other])
		if common < u.config.MinCommonItems {
			continue
		}
		if u.config.Shrinkage > 0 {
			sim *= float64(common) / (float64(common) + u.config.Shrinkage)
		}
		if sim >= u.config.MinSimilarity {
			neighbors = append(neighbors, neighbor{ID: other, Similarity: sim})
		}
	}

	sort.Slice(neighbors, func(i, j int) bool {
		if neighbors[i].Similarity != neighbors[j].Similarity {
			return neighbors[i].Similarity > neighbors[j].Similarity
		}
		return neighbors[i].ID < neighbors[j].ID
	})
	if len(neighbors) > u.config.K {
		neighbors = neighbors[:u.config.K]
	}
	return neighbors
}

// Execute estimates ratings for items rated by at least one neighbor.
func (u *UserKNN) Execute(ctx context.Context, param algorithm.Param) (*algorithm.Result, error) {
	u.mu.RLock()
	defer u.mu.RUnlock()

	if !u.trained {
		return nil, algorithm.ErrNotSetup
	}
	neighbors, ok := u.userSimilarity[param.Profile.UserID]
	if !ok {
		return nil, nil
	}
	mean := u.userMeans[param.Profile.UserID]

	estimates := make(map[int]float64, len(param.Items))
	for _, item := range param.Items {
		if contextCanceled(ctx) {
			return nil, ctx.Err()
		}
		var num, den float64
		for _, n := range neighbors {
			r, rated := u.userVectors[n.ID][item]
			if !rated {
				continue
			}
			num += n.Similarity * (r - u.userMeans[n.ID])
			den += math.Abs(n.Similarity)
		}
		if den == 0 {
			continue
		}
		estimates[item] = u.stats.clamp(mean + num/den)
	}
	return &algorithm.Result{Estimates: estimates}, nil
}

// Unsetup drops the model.
func (u *UserKNN) Unsetup(context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.userVectors = nil
	u.userMeans = nil
	u.userSimilarity = nil
	u.stats = nil
	u.markUntrained()
	return nil
}
