// Recbench - Recommendation Algorithm Evaluation Harness
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recbench

package evaluator

import "time"

// Info is the run-wide progress record. The controller keeps one instance,
// resets it when a run starts and hands out copies.
type Info struct {
	RunID     string `json:"run_id"`
	State     State  `json:"state"`
	Algorithm string `json:"algorithm"`
	DatasetID int    `json:"dataset_id"`

	// Progress counts testing records over the whole run.
	Progress      int `json:"progress"`
	ProgressTotal int `json:"progress_total"`

	// PairProgress counts testing records of the current dataset pair.
	PairProgress      int `json:"pair_progress"`
	PairProgressTotal int `json:"pair_progress_total"`

	InSetup bool `json:"in_setup"`

	// Statuses are free-form display strings, most recent last.
	Statuses []string `json:"statuses,omitempty"`

	StartedAt time.Time `json:"started_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

const maxStatuses = 32

func (i *Info) clone() Info {
	cp := *i
	if i.Statuses != nil {
		cp.Statuses = make([]string, len(i.Statuses))
		copy(cp.Statuses, i.Statuses)
	}
	return cp
}

func (i *Info) addStatus(s string) {
	i.Statuses = append(i.Statuses, s)
	if len(i.Statuses) > maxStatuses {
		i.Statuses = i.Statuses[len(i.Statuses)-maxStatuses:]
	}
}

func (i *Info) reset(runID string, now time.Time) {
	*i = Info{
		RunID:     runID,
		State:     StateRunning,
		StartedAt: now,
		UpdatedAt: now,
	}
}
