// Recbench - Recommendation Algorithm Evaluation Harness
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recbench

// Package duckdb serves rating tables stored in DuckDB as evaluation datasets.
//
// Tables have the layout (user_id INTEGER, item_id INTEGER, rating DOUBLE).
// A dataset is addressed as duckdb://<table>; the resolver is bound to one
// open Store, so the URI does not carry a file path.
package duckdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	_ "github.com/duckdb/duckdb-go/v2" // registers the duckdb driver
	"github.com/rs/zerolog"

	"github.com/tomtom215/recbench/internal/dataset"
)

// Scheme is the URI scheme served by Store.
const Scheme = "duckdb"

// queryTimeout bounds metadata queries. Profile streaming is bounded by the
// caller's context instead.
const queryTimeout = 30 * time.Second

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

// ErrInvalidTable is returned for table names that are not plain identifiers.
var ErrInvalidTable = errors.New("duckdb: invalid table name")

// Rating is one row of a ratings table.
type Rating struct {
	UserID int
	ItemID int
	Value  float64
}

// Store is an open DuckDB database holding rating tables.
type Store struct {
	conn   *sql.DB
	path   string
	logger zerolog.Logger
}

// Open opens (or creates) the DuckDB database at path. An empty path opens
// an in-memory database.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func Open(path string, logger zerolog.Logger) (*Store, error) {
	conn, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{
		conn:   conn,
		path:   path,
		logger: logger.With().Str("component", "duckdb-datasets").Logger(),
	}, nil
}

// Close closes the database. Datasets resolved from the store become unusable.
func (s *Store) Close() error {
	return s.conn.Close()
}

// CreateRatings creates a ratings table if it does not exist.
func (s *Store) CreateRatings(ctx context.Context, table string) error {
	if !tableNamePattern.MatchString(table) {
		return fmt.Errorf("%w: %q", ErrInvalidTable, table)
	}
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		user_id INTEGER NOT NULL,
		item_id INTEGER NOT NULL,
		rating  DOUBLE  NOT NULL
	)`, table)
	if _, err := s.conn.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("create table %s: %w", table, err)
	}
	return nil
}

// InsertRatings appends rows to a ratings table in a single transaction.
func (s *Store) InsertRatings(ctx context.Context, table string, ratings []Rating) error {
	if !tableNamePattern.MatchString(table) {
		return fmt.Errorf("%w: %q", ErrInvalidTable, table)
	}
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s (user_id, item_id, rating) VALUES (?, ?, ?)", table))
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range ratings {
		if _, err := stmt.ExecContext(ctx, r.UserID, r.ItemID, r.Value); err != nil {
			return fmt.Errorf("insert rating (%d, %d): %w", r.UserID, r.ItemID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit insert: %w", err)
	}
	return nil
}

// ImportCSV appends a headered user_id,item_id,rating CSV file to table,
// creating the table first. It returns the number of rows loaded.
func (s *Store) ImportCSV(ctx context.Context, table, path string) (int64, error) {
	if err := s.CreateRatings(ctx, table); err != nil {
		return 0, err
	}
	literal := "'" + strings.ReplaceAll(path, "'", "''") + "'"
	query := fmt.Sprintf(`INSERT INTO %s (user_id, item_id, rating)
		SELECT user_id, item_id, rating FROM read_csv(%s, header = true,
			columns = {'user_id': 'INTEGER', 'item_id': 'INTEGER', 'rating': 'DOUBLE'})`, table, literal)
	res, err := s.conn.ExecContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("import %s into %s: %w", path, table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("import %s into %s: %w", path, table, err)
	}
	s.logger.Info().Str("table", table).Str("file", path).Int64("rows", n).Msg("Imported ratings")
	return n, nil
}

// Dataset opens the ratings table as a dataset. The profile count is read
// once; tables are expected to be immutable while a run uses them.
func (s *Store) Dataset(ctx context.Context, table string) (*Dataset, error) {
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTable, table)
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var size int
	query := fmt.Sprintf("SELECT COUNT(DISTINCT user_id) FROM %s", table)
	if err := s.conn.QueryRowContext(ctx, query).Scan(&size); err != nil {
		return nil, fmt.Errorf("count profiles in %s: %w", table, err)
	}

	s.logger.Debug().Str("table", table).Int("profiles", size).Msg("opened dataset")

	return &Dataset{
		store: s,
		table: table,
		uri:   Scheme + "://" + table,
		size:  size,
	}, nil
}

// Resolve implements dataset.Resolver for duckdb://<table> URIs.
func (s *Store) Resolve(ctx context.Context, uri string) (dataset.Dataset, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("parse dataset uri %q: %w", uri, err)
	}
	if u.Scheme != Scheme {
		return nil, fmt.Errorf("%w: %q", dataset.ErrUnknownScheme, u.Scheme)
	}
	table := u.Host
	if table == "" {
		table = u.Opaque
	}
	table = strings.Trim(table+u.Path, "/")
	return s.Dataset(ctx, table)
}
