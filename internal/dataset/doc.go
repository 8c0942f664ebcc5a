// Recbench - Recommendation Algorithm Evaluation Harness
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recbench

// Package dataset defines the rating datasets evaluated by the harness and the
// pool of training/testing pairs an evaluation run iterates over.
//
// # Datasets
//
// A Dataset is an opaque, finite and restartable sequence of rating profiles.
// Every call to Fetch returns a fresh Fetcher positioned before the first
// profile, so the same dataset can be walked once per algorithm. Size reports
// the number of profiles and is used by the evaluator as a progress
// denominator.
//
// # Pools
//
// A Pool is an ordered list of Pairs. Each slot of a pair (training, testing,
// whole) carries a UUID that identifies it independently of the process that
// created it. Pools received from another process arrive with URIs and UUIDs
// only; Pool.Update adopts the local dataset handles for matching UUIDs and
// closes the local datasets that are no longer referenced. Datasets may hold
// files or database cursors, so they are always closed explicitly.
//
// Pairs are numbered from 1 in pool order. That number is the dataset id used
// in metric keys.
//
// # Resolvers
//
// A Resolver turns a URI into an open Dataset. Mux dispatches on the URI
// scheme; Catalog serves in-memory datasets under the mem scheme and the
// duckdb subpackage serves rating tables under the duckdb scheme.
package dataset
