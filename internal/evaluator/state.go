// Recbench - Recommendation Algorithm Evaluation Harness
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recbench

package evaluator

import (
	"errors"
	"fmt"
)

// State is the controller state.
type State int

const (
	StateIdle State = iota
	StateRunning
	StatePaused
	StateStopped
	StateForceStopping
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateStopped:
		return "stopped"
	case StateForceStopping:
		return "force_stopping"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText encodes the state name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name.
func (s *State) UnmarshalText(text []byte) error {
	parsed, err := ParseState(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseState returns the state named name.
func ParseState(name string) (State, error) {
	for st := StateIdle; st <= StateForceStopping; st++ {
		if st.String() == name {
			return st, nil
		}
	}
	return StateIdle, fmt.Errorf("unknown evaluator state %q", name)
}

// Active reports whether a run occupies the controller.
func (s State) Active() bool {
	return s != StateIdle
}

// Reasons a control operation is rejected.
var (
	ErrRunActive    = errors.New("evaluator: run active")
	ErrNoAlgorithms = errors.New("evaluator: no algorithms")
	ErrEmptyPool    = errors.New("evaluator: empty dataset pool")
	ErrNotRunning   = errors.New("evaluator: not running")
	ErrNoResolver   = errors.New("evaluator: no dataset resolver configured")
	ErrClosed       = errors.New("evaluator: controller closed")

	ErrDuplicateAlgorithm = errors.New("evaluator: duplicate algorithm name")
)
