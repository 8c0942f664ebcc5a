// Recbench - Recommendation Algorithm Evaluation Harness
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recbench

package dataset

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Entry is a pair together with its 1-based dataset id.
type Entry struct {
	ID   int
	Pair *Pair
}

// Pool is an ordered collection of dataset pairs.
//
// Pool is safe for concurrent use. The evaluator never mutates a pool while a
// run is active; callers replace it between runs through the controller.
type Pool struct {
	mu    sync.RWMutex
	pairs []*Pair
}

// NewPool creates a pool from the given pairs.
func NewPool(pairs ...*Pair) *Pool {
	cp := make([]*Pair, 0, len(pairs))
	for _, pair := range pairs {
		if pair != nil {
			cp = append(cp, pair)
		}
	}
	return &Pool{pairs: cp}
}

// Add appends a pair and returns its dataset id.
func (p *Pool) Add(pair *Pair) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pairs = append(p.pairs, pair)
	return len(p.pairs)
}

// Len returns the number of pairs.
func (p *Pool) Len() int {
	if p == nil {
		return 0
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.pairs)
}

// Get returns the pair with the given dataset id.
func (p *Pool) Get(id int) (*Pair, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if id < 1 || id > len(p.pairs) {
		return nil, false
	}
	return p.pairs[id-1], true
}

// Entries returns the pairs with their dataset ids, in pool order.
func (p *Pool) Entries() []Entry {
	p.mu.RLock()
	defer p.mu.RUnlock()
	entries := make([]Entry, len(p.pairs))
	for i, pair := range p.pairs {
		entries[i] = Entry{ID: i + 1, Pair: pair}
	}
	return entries
}

// Validate checks that the pool is non-empty and every pair has its
// training and testing datasets.
func (p *Pool) Validate() error {
	if p.Len() == 0 {
		return ErrEmptyPool
	}
	for _, e := range p.Entries() {
		if !e.Pair.Resolved() {
			return fmt.Errorf("dataset %d: %s is not resolved", e.ID, e.Pair)
		}
	}
	return nil
}

// Clone returns a pool sharing the same pairs.
func (p *Pool) Clone() *Pool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return NewPool(p.pairs...)
}

// Update replaces the pairs of p with those of next.
//
// Slots of next that have no dataset but share a UUID with a slot of p adopt
// the dataset held by p. Datasets of p that are no longer referenced after
// the update are closed. Close errors are joined and returned; the update
// itself always takes effect.
func (p *Pool) Update(next *Pool) error {
	if next == nil {
		next = NewPool()
	}
	incoming := next.Entries()

	p.mu.Lock()
	defer p.mu.Unlock()

	held := make(map[uuid.UUID]Dataset)
	for _, pair := range p.pairs {
		for _, s := range slots {
			if ds := pair.refs[s]; ds != nil && pair.ids[s] != uuid.Nil {
				held[pair.ids[s]] = ds
			}
		}
	}

	kept := make(map[Dataset]struct{})
	pairs := make([]*Pair, 0, len(incoming))
	for _, e := range incoming {
		for _, s := range slots {
			if e.Pair.refs[s] == nil {
				if ds, ok := held[e.Pair.ids[s]]; ok {
					e.Pair.setDataset(s, ds)
				}
			}
			if ds := e.Pair.refs[s]; ds != nil {
				kept[ds] = struct{}{}
			}
		}
		pairs = append(pairs, e.Pair)
	}

	errs := releaseUnreferenced(p.pairs, kept)
	p.pairs = pairs
	return errors.Join(errs...)
}

// Reload re-resolves every slot from its URI. Identities are unchanged.
// A slot whose URI fails to resolve keeps its previous dataset.
func (p *Pool) Reload(ctx context.Context, r Resolver) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	previous := make([]*Pair, 0, len(p.pairs))
	for _, pair := range p.pairs {
		prev := &Pair{refs: pair.refs}
		previous = append(previous, prev)
		for _, s := range slots {
			uri := pair.uris[s]
			if uri == "" {
				continue
			}
			ds, err := r.Resolve(ctx, uri)
			if err != nil {
				errs = append(errs, fmt.Errorf("reload %s %s: %w", s, uri, err))
				continue
			}
			pair.replaceDataset(s, ds)
		}
	}

	kept := make(map[Dataset]struct{})
	for _, pair := range p.pairs {
		for _, s := range slots {
			if ds := pair.refs[s]; ds != nil {
				kept[ds] = struct{}{}
			}
		}
	}
	errs = append(errs, releaseUnreferenced(previous, kept)...)
	return errors.Join(errs...)
}

// Close closes every distinct dataset in the pool and empties it.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	errs := releaseUnreferenced(p.pairs, nil)
	p.pairs = nil
	return errors.Join(errs...)
}

func releaseUnreferenced(pairs []*Pair, kept map[Dataset]struct{}) []error {
	var errs []error
	closed := make(map[Dataset]struct{})
	for _, pair := range pairs {
		for _, s := range slots {
			ds := pair.refs[s]
			if ds == nil {
				continue
			}
			if _, ok := kept[ds]; ok {
				continue
			}
			if _, ok := closed[ds]; ok {
				continue
			}
			closed[ds] = struct{}{}
			if err := ds.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close %s: %w", ds.URI(), err))
			}
		}
	}
	return errs
}

// PoolSpec is the process-independent description of a Pool.
type PoolSpec struct {
	Pairs []PairSpec `json:"pairs"`
}

// Spec describes the pool without its dataset handles.
func (p *Pool) Spec() PoolSpec {
	entries := p.Entries()
	spec := PoolSpec{Pairs: make([]PairSpec, len(entries))}
	for i, e := range entries {
		spec.Pairs[i] = e.Pair.Spec()
	}
	return spec
}

// FromSpec creates an unresolved pool. Use Pool.Update against a local pool
// to adopt open datasets, or Pool.Reload to resolve from URIs.
func FromSpec(spec PoolSpec) *Pool {
	pairs := make([]*Pair, len(spec.Pairs))
	for i, ps := range spec.Pairs {
		pairs[i] = PairFromSpec(ps)
	}
	return NewPool(pairs...)
}
