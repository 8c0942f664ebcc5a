// Recbench - Recommendation Algorithm Evaluation Harness
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recbench

package archive

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/recbench/internal/evaluator/metric"
	"github.com/tomtom215/recbench/internal/metrics"
)

var (
	// ErrRunNotFound is returned by Get for an unknown run id.
	ErrRunNotFound = errors.New("run not found")

	// ErrStoreClosed is returned after Close.
	ErrStoreClosed = errors.New("archive store closed")

	// ErrEmptyRunID is returned when a run has no identifier.
	ErrEmptyRunID = errors.New("empty run id")
)

const prefixRun = "run:"

// Config configures the Badger store.
type Config struct {
	// Path is the Badger directory. Ignored when InMemory is set.
	Path string

	// InMemory keeps the archive in memory only.
	InMemory bool

	// SyncWrites fsyncs every write.
	SyncWrites bool

	// Retention drops runs older than this. Zero keeps runs forever.
	Retention time.Duration
}

// Run is the archived result of one evaluation run.
type Run struct {
	ID         string          `json:"id"`
	FinishedAt time.Time       `json:"finished_at"`
	Forced     bool            `json:"forced"`
	Records    []metric.Record `json:"records"`
}

// Summary describes a run without its records.
type Summary struct {
	ID         string    `json:"id"`
	FinishedAt time.Time `json:"finished_at"`
	Forced     bool      `json:"forced"`
	Records    int       `json:"records"`
}

// Summary returns the run without its records.
func (r *Run) Summary() Summary {
	return Summary{ID: r.ID, FinishedAt: r.FinishedAt, Forced: r.Forced, Records: len(r.Records)}
}

// Store persists runs in BadgerDB.
type Store struct {
	db  *badger.DB
	cfg Config

	mu     sync.RWMutex
	closed bool
}

// Open opens (or creates) the archive.
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("archive path is required unless in-memory")
	}

	opts := badger.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.SyncWrites = cfg.SyncWrites

	// Reduce logging verbosity
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}
	return &Store{db: db, cfg: cfg}, nil
}

func (s *Store) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	return nil
}

// Put stores run, replacing a run with the same id.
func (s *Store) Put(ctx context.Context, run *Run) (err error) {
	defer func() { metrics.RecordArchive(err) }()

	if err := s.checkOpen(); err != nil {
		return err
	}
	if run == nil || run.ID == "" {
		return ErrEmptyRunID
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("marshal run: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(prefixRun+run.ID), data)
		if s.cfg.Retention > 0 {
			e = e.WithTTL(s.cfg.Retention)
		}
		return txn.SetEntry(e)
	})
	if err != nil {
		return fmt.Errorf("write to BadgerDB: %w", err)
	}
	return nil
}

// Get returns the run stored under id.
func (s *Store) Get(ctx context.Context, id string) (*Run, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var run Run
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(prefixRun + id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrRunNotFound
		}
		if err != nil {
			return fmt.Errorf("get run: %w", err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &run)
		})
	})
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// List returns the summaries of all archived runs, newest first.
func (s *Store) List(ctx context.Context) ([]Summary, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	var out []Summary
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(prefixRun)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var run Run
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &run)
			}); err != nil {
				return fmt.Errorf("unmarshal run %s: %w", it.Item().Key(), err)
			}
			out = append(out, run.Summary())
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].FinishedAt.After(out[j].FinishedAt)
	})
	return out, nil
}

// Delete removes the run stored under id. Deleting an unknown id is not an
// error.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(prefixRun + id))
	})
}

// Close closes the database. It is safe to call more than once.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
