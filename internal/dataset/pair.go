// Recbench - Recommendation Algorithm Evaluation Harness
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recbench

package dataset

import (
	"fmt"

	"github.com/google/uuid"
)

// Slot names one of the three dataset references of a Pair.
type Slot int

const (
	// SlotTraining is the dataset algorithms are set up with.
	SlotTraining Slot = iota
	// SlotTesting is the dataset whose profiles are executed.
	SlotTesting
	// SlotWhole is the optional dataset the pair was split from.
	SlotWhole
)

// String returns the slot name.
func (s Slot) String() string {
	switch s {
	case SlotTraining:
		return "training"
	case SlotTesting:
		return "testing"
	case SlotWhole:
		return "whole"
	default:
		return "unknown"
	}
}

var slots = [...]Slot{SlotTraining, SlotTesting, SlotWhole}

// Pair is one training/testing(/whole) evaluation unit.
//
// The UUIDs and URIs are fixed when the pair is created. The dataset
// references may be nil for pairs received from another process; they are
// filled in by Pool.Update or Pool.Reload.
type Pair struct {
	ids  [3]uuid.UUID
	uris [3]string
	refs [3]Dataset
}

// NewPair creates a pair with fresh slot identities. whole may be nil.
func NewPair(training, testing, whole Dataset) *Pair {
	p := &Pair{}
	for i, ds := range []Dataset{training, testing, whole} {
		if ds == nil {
			continue
		}
		p.ids[i] = uuid.New()
		p.uris[i] = ds.URI()
		p.refs[i] = ds
	}
	return p
}

// Training returns the training dataset.
func (p *Pair) Training() Dataset { return p.refs[SlotTraining] }

// Testing returns the testing dataset.
func (p *Pair) Testing() Dataset { return p.refs[SlotTesting] }

// Whole returns the whole dataset, which may be nil.
func (p *Pair) Whole() Dataset { return p.refs[SlotWhole] }

// Dataset returns the dataset held in slot s.
func (p *Pair) Dataset(s Slot) Dataset { return p.refs[s] }

// ID returns the identity of slot s. It is uuid.Nil for unused slots.
func (p *Pair) ID(s Slot) uuid.UUID { return p.ids[s] }

// URI returns the URI of slot s.
func (p *Pair) URI(s Slot) string { return p.uris[s] }

// Resolved reports whether the training and testing datasets are present.
func (p *Pair) Resolved() bool {
	return p.refs[SlotTraining] != nil && p.refs[SlotTesting] != nil
}

// setDataset fills slot s. A non-nil reference is never replaced here;
// Reload swaps handles through replaceDataset.
func (p *Pair) setDataset(s Slot, ds Dataset) {
	if p.refs[s] == nil {
		p.refs[s] = ds
	}
}

func (p *Pair) replaceDataset(s Slot, ds Dataset) {
	p.refs[s] = ds
}

// String returns a short description for logs.
func (p *Pair) String() string {
	return fmt.Sprintf("pair(training=%s, testing=%s)", p.uris[SlotTraining], p.uris[SlotTesting])
}

// PairSpec is the process-independent description of a Pair.
type PairSpec struct {
	TrainingID  uuid.UUID `json:"training_id"`
	TrainingURI string    `json:"training_uri"`
	TestingID   uuid.UUID `json:"testing_id"`
	TestingURI  string    `json:"testing_uri"`
	WholeID     uuid.UUID `json:"whole_id,omitempty"`
	WholeURI    string    `json:"whole_uri,omitempty"`
}

// Spec describes the pair without its dataset handles.
func (p *Pair) Spec() PairSpec {
	return PairSpec{
		TrainingID:  p.ids[SlotTraining],
		TrainingURI: p.uris[SlotTraining],
		TestingID:   p.ids[SlotTesting],
		TestingURI:  p.uris[SlotTesting],
		WholeID:     p.ids[SlotWhole],
		WholeURI:    p.uris[SlotWhole],
	}
}

// PairFromSpec creates an unresolved pair. Slots without an identity get a
// new one so a spec written by hand (URIs only) is still usable.
func PairFromSpec(spec PairSpec) *Pair {
	p := &Pair{
		ids:  [3]uuid.UUID{spec.TrainingID, spec.TestingID, spec.WholeID},
		uris: [3]string{spec.TrainingURI, spec.TestingURI, spec.WholeURI},
	}
	for _, s := range slots {
		if p.uris[s] != "" && p.ids[s] == uuid.Nil {
			p.ids[s] = uuid.New()
		}
	}
	return p
}
