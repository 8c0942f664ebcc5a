// Recbench - Recommendation Algorithm Evaluation Harness
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recbench

package services

import (
	"context"
	"fmt"

	"github.com/tomtom215/recbench/internal/remote"
)

// Exporter is satisfied by *remote.Exporter.
type Exporter interface {
	Export() (*remote.Stub, error)
	Unexport() error
}

// ExportService keeps the controller exported while it runs. Export is
// idempotent, so a restart after a failure re-exports without duplicating
// subscriptions.
type ExportService struct {
	exporter Exporter
}

// NewExportService wraps exporter.
func NewExportService(exporter Exporter) *ExportService {
	return &ExportService{exporter: exporter}
}

// Serve implements suture.Service. An export failure is returned so the
// supervisor retries with backoff.
func (s *ExportService) Serve(ctx context.Context) error {
	if _, err := s.exporter.Export(); err != nil {
		return fmt.Errorf("export controller: %w", err)
	}

	<-ctx.Done()

	if err := s.exporter.Unexport(); err != nil {
		return fmt.Errorf("unexport controller: %w", err)
	}
	return ctx.Err()
}

func (s *ExportService) String() string {
	return "remote-export"
}
