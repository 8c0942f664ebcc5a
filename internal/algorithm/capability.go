// Recbench - Recommendation Algorithm Evaluation Harness
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recbench

package algorithm

// Kind tags how an algorithm can be controlled while it sets up.
type Kind int

const (
	// KindLocal algorithms run in-process and cannot be paused mid-setup.
	KindLocal Kind = iota
	// KindRemote algorithms expose learn pause/resume/stop hooks.
	KindRemote
)

// String returns the kind name.
func (k Kind) String() string {
	if k == KindRemote {
		return "remote"
	}
	return "local"
}

// Capability is resolved once per algorithm evaluation so the evaluator does
// not re-inspect the algorithm on every control call.
type Capability struct {
	Kind Kind

	pause  func() bool
	resume func() bool
	stop   func() bool
}

// CapabilityOf resolves the control capability of a.
func CapabilityOf(a Algorithm) Capability {
	if l, ok := a.(Learner); ok {
		return Capability{
			Kind:   KindRemote,
			pause:  l.LearnPause,
			resume: l.LearnResume,
			stop:   l.LearnStop,
		}
	}
	return Capability{Kind: KindLocal}
}

// Pause asks a remote algorithm to suspend learning. It returns false for
// local algorithms.
func (c Capability) Pause() bool {
	if c.pause == nil {
		return false
	}
	return c.pause()
}

// Resume asks a remote algorithm to continue learning.
func (c Capability) Resume() bool {
	if c.resume == nil {
		return false
	}
	return c.resume()
}

// Stop asks a remote algorithm to abandon learning.
func (c Capability) Stop() bool {
	if c.stop == nil {
		return false
	}
	return c.stop()
}
