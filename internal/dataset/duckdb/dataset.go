// Recbench - Recommendation Algorithm Evaluation Harness
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recbench

package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/tomtom215/recbench/internal/dataset"
)

// Dataset streams the profiles of one ratings table.
type Dataset struct {
	store *Store
	table string
	uri   string
	size  int

	mu     sync.RWMutex
	closed bool
}

var _ dataset.Dataset = (*Dataset)(nil)

// URI returns duckdb://<table>.
func (d *Dataset) URI() string { return d.uri }

// Size returns the number of distinct users in the table.
func (d *Dataset) Size() int { return d.size }

// Table returns the backing table name.
func (d *Dataset) Table() string { return d.table }

// Fetch starts a query ordered by user and groups consecutive rows into
// profiles, so only one profile is held in memory at a time.
func (d *Dataset) Fetch(ctx context.Context) (dataset.Fetcher, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return nil, dataset.ErrDatasetClosed
	}

	query := fmt.Sprintf("SELECT user_id, item_id, rating FROM %s ORDER BY user_id, item_id", d.table)
	rows, err := d.store.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", d.table, err)
	}
	return &rowFetcher{rows: rows}, nil
}

// Close marks the dataset closed. The store stays open.
func (d *Dataset) Close() error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	return nil
}

type rowFetcher struct {
	rows *sql.Rows

	current dataset.Profile
	pending *row
	done    bool
	err     error
}

type row struct {
	user   int
	item   int
	rating float64
}

func (f *rowFetcher) scan() (*row, bool) {
	if !f.rows.Next() {
		if err := f.rows.Err(); err != nil {
			f.err = fmt.Errorf("iterate ratings: %w", err)
		}
		return nil, false
	}
	var r row
	if err := f.rows.Scan(&r.user, &r.item, &r.rating); err != nil {
		f.err = fmt.Errorf("scan rating: %w", err)
		return nil, false
	}
	return &r, true
}

func (f *rowFetcher) Next() bool {
	if f.done || f.err != nil {
		return false
	}

	first := f.pending
	f.pending = nil
	if first == nil {
		var ok bool
		if first, ok = f.scan(); !ok {
			f.done = true
			return false
		}
	}

	profile := dataset.Profile{UserID: first.user, Ratings: map[int]float64{first.item: first.rating}}
	for {
		next, ok := f.scan()
		if !ok {
			f.done = true
			break
		}
		if next.user != profile.UserID {
			f.pending = next
			break
		}
		profile.Ratings[next.item] = next.rating
	}
	if f.err != nil {
		return false
	}
	f.current = profile
	return true
}

func (f *rowFetcher) Profile() dataset.Profile { return f.current }

func (f *rowFetcher) Err() error { return f.err }

func (f *rowFetcher) Close() error {
	f.done = true
	return f.rows.Close()
}
