// Recbench - Recommendation Algorithm Evaluation Harness
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recbench

package supervisor

import (
	"context"
	"errors"
	"sync/atomic"
)

var errStubFailure = errors.New("stub service failure")

// stubService returns errStubFailure from its first failures runs and then
// blocks until canceled.
type stubService struct {
	name     string
	failures atomic.Int32
	runs     atomic.Int32
	exits    atomic.Int32
}

func newStubService(name string, failures int32) *stubService {
	s := &stubService{name: name}
	s.failures.Store(failures)
	return s
}

func (s *stubService) Serve(ctx context.Context) error {
	s.runs.Add(1)
	defer s.exits.Add(1)
	if s.failures.Add(-1) >= 0 {
		return errStubFailure
	}
	<-ctx.Done()
	return ctx.Err()
}

func (s *stubService) String() string { return s.name }
