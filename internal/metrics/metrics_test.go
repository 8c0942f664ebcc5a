// Recbench - Recommendation Algorithm Evaluation Harness
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recbench

package metrics

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordExecution(t *testing.T) {
	tests := []struct {
		name      string
		algorithm string
		outcome   string
		duration  time.Duration
	}{
		{name: "success", algorithm: "itemmean", outcome: "success", duration: time.Millisecond},
		{name: "miss", algorithm: "itemmean", outcome: "miss", duration: 2 * time.Millisecond},
		{name: "error", algorithm: "userknn", outcome: "error", duration: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := testutil.ToFloat64(EvalTestingRecords.WithLabelValues(tt.algorithm, tt.outcome))
			RecordExecution(tt.algorithm, tt.outcome, tt.duration)
			after := testutil.ToFloat64(EvalTestingRecords.WithLabelValues(tt.algorithm, tt.outcome))
			if after != before+1 {
				t.Errorf("testing records = %v, want %v", after, before+1)
			}
		})
	}
}

func TestRecordTeardown(t *testing.T) {
	before := testutil.ToFloat64(EvalTeardowns.WithLabelValues("forced", "error"))
	RecordTeardown("forced", errors.New("boom"))
	if got := testutil.ToFloat64(EvalTeardowns.WithLabelValues("forced", "error")); got != before+1 {
		t.Errorf("teardowns = %v, want %v", got, before+1)
	}
}

func TestRecordRejection_TruncatesReason(t *testing.T) {
	long := errors.New(strings.Repeat("x", 80))
	RecordRejection("start", long)
	if got := testutil.ToFloat64(EvalRejections.WithLabelValues("start", strings.Repeat("x", 50))); got < 1 {
		t.Errorf("rejections = %v, want >= 1", got)
	}
	RecordRejection("pause", nil)
	if got := testutil.ToFloat64(EvalRejections.WithLabelValues("pause", "unknown")); got < 1 {
		t.Errorf("rejections = %v, want >= 1", got)
	}
}

func TestTrackActiveRequest(t *testing.T) {
	before := testutil.ToFloat64(APIActiveRequests)
	TrackActiveRequest(true)
	if got := testutil.ToFloat64(APIActiveRequests); got != before+1 {
		t.Errorf("active requests = %v, want %v", got, before+1)
	}
	TrackActiveRequest(false)
	if got := testutil.ToFloat64(APIActiveRequests); got != before {
		t.Errorf("active requests = %v, want %v", got, before)
	}
}

func TestRecordHelpers(t *testing.T) {
	RecordSetup("itemmean", 10*time.Millisecond)
	RecordAPIRequest("GET", "/api/v1/status", "200", time.Millisecond)
	RecordRemoteRequest("start", true)
	RecordRemoteRequest("start", false)

	before := testutil.ToFloat64(BackupWrites.WithLabelValues("metrics", "success"))
	RecordBackup("metrics", nil)
	if got := testutil.ToFloat64(BackupWrites.WithLabelValues("metrics", "success")); got != before+1 {
		t.Errorf("backup writes = %v, want %v", got, before+1)
	}

	before = testutil.ToFloat64(ArchiveWrites.WithLabelValues("error"))
	RecordArchive(errors.New("disk full"))
	if got := testutil.ToFloat64(ArchiveWrites.WithLabelValues("error")); got != before+1 {
		t.Errorf("archive writes = %v, want %v", got, before+1)
	}
}
