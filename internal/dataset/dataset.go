// Recbench - Recommendation Algorithm Evaluation Harness
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recbench

package dataset

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrDatasetClosed is returned when fetching from a closed dataset.
	ErrDatasetClosed = errors.New("dataset: closed")

	// ErrEmptyPool is returned by operations that need at least one pair.
	ErrEmptyPool = errors.New("dataset: pool is empty")

	// ErrUnknownScheme is returned by Mux when no resolver handles a URI scheme.
	ErrUnknownScheme = errors.New("dataset: unknown uri scheme")
)

// Dataset is a finite, restartable source of rating profiles.
//
// Implementations must be pointer types: pools compare datasets by identity
// when deciding which handles to release.
type Dataset interface {
	// URI identifies where the dataset was resolved from.
	URI() string

	// Size returns the number of profiles Fetch yields.
	Size() int

	// Fetch returns a new fetcher positioned before the first profile.
	Fetch(ctx context.Context) (Fetcher, error)

	// Close releases the resources held by the dataset.
	Close() error
}

// Fetcher iterates over the profiles of a dataset. It follows the
// sql.Rows convention: call Next until it returns false, then check Err.
type Fetcher interface {
	Next() bool
	Profile() Profile
	Err() error
	Close() error
}

// Memory is an in-memory Dataset.
type Memory struct {
	uri      string
	profiles []Profile

	mu     sync.RWMutex
	closed bool
}

// NewMemory creates an in-memory dataset over the given profiles.
func NewMemory(uri string, profiles []Profile) *Memory {
	cp := make([]Profile, len(profiles))
	copy(cp, profiles)
	return &Memory{uri: uri, profiles: cp}
}

// URI returns the dataset URI.
func (m *Memory) URI() string {
	return m.uri
}

// Size returns the number of profiles.
func (m *Memory) Size() int {
	return len(m.profiles)
}

// Fetch returns a fetcher over a snapshot of the profiles.
func (m *Memory) Fetch(ctx context.Context) (Fetcher, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrDatasetClosed
	}
	return &sliceFetcher{ctx: ctx, profiles: m.profiles, pos: -1}, nil
}

// Close marks the dataset closed. Closing twice is a no-op.
func (m *Memory) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

// Closed reports whether Close has been called.
func (m *Memory) Closed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}

// Profiles returns a copy of the underlying profiles.
func (m *Memory) Profiles() []Profile {
	out := make([]Profile, len(m.profiles))
	copy(out, m.profiles)
	return out
}

type sliceFetcher struct {
	ctx      context.Context
	profiles []Profile
	pos      int
	err      error
}

func (f *sliceFetcher) Next() bool {
	if f.err != nil {
		return false
	}
	if err := f.ctx.Err(); err != nil {
		f.err = err
		return false
	}
	f.pos++
	return f.pos < len(f.profiles)
}

func (f *sliceFetcher) Profile() Profile {
	if f.pos < 0 || f.pos >= len(f.profiles) {
		return Profile{}
	}
	return f.profiles[f.pos]
}

func (f *sliceFetcher) Err() error {
	return f.err
}

func (f *sliceFetcher) Close() error {
	f.pos = len(f.profiles)
	return nil
}

// Collect drains a dataset into memory. It is meant for algorithms whose
// setup needs random access to the training profiles.
func Collect(ctx context.Context, ds Dataset) ([]Profile, error) {
	f, err := ds.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	profiles := make([]Profile, 0, ds.Size())
	for f.Next() {
		profiles = append(profiles, f.Profile())
	}
	if err := f.Err(); err != nil {
		return nil, err
	}
	return profiles, nil
}
