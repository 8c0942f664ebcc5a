// Recbench - Recommendation Algorithm Evaluation Harness
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recbench

package evaluator

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/tomtom215/recbench/internal/algorithm"
	"github.com/tomtom215/recbench/internal/evaluator/metric"
	"github.com/tomtom215/recbench/internal/metrics"
)

// backupTimeFormat names backup files. It sorts lexically in time order.
const backupTimeFormat = "20060102T150405.000Z"

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// shouldBackup reports whether terminal events are written to disk.
func (c *Controller) shouldBackup() bool {
	if c.cfg.BackupDir == "" {
		return false
	}
	return c.cfg.BackupEnabled || c.evaluators.len() == 0
}

// backupMetrics writes a metrics snapshot for a terminal event. key is nil
// for the done event of the whole run.
func (c *Controller) backupMetrics(r *run, typ EvalType, key *metric.Key, snapshot *metric.Metrics) {
	if !c.shouldBackup() {
		return
	}
	now := time.Now().UTC()

	var b strings.Builder
	b.WriteString("# recbench metrics snapshot\n")
	fmt.Fprintf(&b, "# run=%s event=%s\n", r.id, typ)
	if key != nil {
		fmt.Fprintf(&b, "# algorithm=%s dataset=%d\n", key.Algorithm, key.DatasetID)
	}
	fmt.Fprintf(&b, "# time=%s\n", now.Format(time.RFC3339Nano))
	b.WriteString(snapshot.Text())

	name := fmt.Sprintf("metrics-%s-%06d.txt", now.Format(backupTimeFormat), c.backupSeq.Add(1))
	c.writeBackup(r, "metrics", name, b.String())
}

// backupSetupLog writes the setup log of one algorithm on one pair.
func (c *Controller) backupSetupLog(r *run, l *setupLog) {
	if !c.shouldBackup() {
		return
	}
	now := time.Now().UTC()
	name := fmt.Sprintf("setup-%s-%s-%06d.txt",
		unsafeFileChars.ReplaceAllString(l.algorithm, "_"),
		now.Format(backupTimeFormat),
		c.backupSeq.Add(1))
	c.writeBackup(r, "setup", name, l.text(r.id))
}

func (c *Controller) writeBackup(r *run, kind, name, content string) {
	err := os.MkdirAll(c.cfg.BackupDir, 0o750)
	if err == nil {
		err = os.WriteFile(filepath.Join(c.cfg.BackupDir, name), []byte(content), 0o600)
	}
	metrics.RecordBackup(kind, err)
	if err != nil {
		r.logger.Error().Err(err).Str("file", name).Msg("Failed to write backup")
		return
	}
	r.logger.Debug().Str("file", name).Msg("Backup written")
}

// setupLog accumulates the setup progress of one algorithm on one pair.
type setupLog struct {
	algorithm string
	datasetID int
	started   time.Time

	mu    sync.Mutex
	lines []string
}

func newSetupLog(alg string, datasetID int) *setupLog {
	return &setupLog{algorithm: alg, datasetID: datasetID, started: time.Now()}
}

func (l *setupLog) progress(p algorithm.SetupProgress) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, fmt.Sprintf("step=%d total=%d %s", p.Step, p.Total, p.Message))
}

func (l *setupLog) end(elapsed time.Duration, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err != nil {
		l.lines = append(l.lines, fmt.Sprintf("end elapsed=%s error=%q", elapsed, err.Error()))
		return
	}
	l.lines = append(l.lines, fmt.Sprintf("end elapsed=%s", elapsed))
}

func (l *setupLog) text(runID string) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var b strings.Builder
	b.WriteString("# recbench setup log\n")
	fmt.Fprintf(&b, "# run=%s algorithm=%s dataset=%d\n", runID, l.algorithm, l.datasetID)
	fmt.Fprintf(&b, "# started=%s\n", l.started.UTC().Format(time.RFC3339Nano))
	for _, line := range l.lines {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}
