// Recbench - Recommendation Algorithm Evaluation Harness
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recbench

package dataset

import "sort"

// Profile is the rating vector of a single user.
type Profile struct {
	// UserID is the user the ratings belong to.
	UserID int `json:"user_id"`

	// Ratings maps item IDs to rating values.
	Ratings map[int]float64 `json:"ratings"`
}

// Items returns the rated item IDs in ascending order.
func (p Profile) Items() []int {
	items := make([]int, 0, len(p.Ratings))
	for id := range p.Ratings {
		items = append(items, id)
	}
	sort.Ints(items)
	return items
}

// Len returns the number of rated items.
func (p Profile) Len() int {
	return len(p.Ratings)
}

// Mean returns the mean rating of the profile, or 0 for an empty profile.
func (p Profile) Mean() float64 {
	if len(p.Ratings) == 0 {
		return 0
	}
	var sum float64
	for _, r := range p.Ratings {
		sum += r
	}
	return sum / float64(len(p.Ratings))
}

// Clone returns a deep copy of the profile.
func (p Profile) Clone() Profile {
	ratings := make(map[int]float64, len(p.Ratings))
	for id, r := range p.Ratings {
		ratings[id] = r
	}
	return Profile{UserID: p.UserID, Ratings: ratings}
}
