// Recbench - Recommendation Algorithm Evaluation Harness
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recbench

package metric

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Key scopes a metric list to one algorithm on one dataset pair.
type Key struct {
	Algorithm string
	DatasetID int
}

// String returns "algorithm#datasetID".
func (k Key) String() string {
	return k.Algorithm + "#" + strconv.Itoa(k.DatasetID)
}

// Wrapper binds a metric to its context. A wrapper is invalid until its
// metric received at least one observation.
type Wrapper struct {
	Metric    Metric
	Algorithm string
	DatasetID int
	Valid     bool
}

// Key returns the wrapper context.
func (w Wrapper) Key() Key {
	return Key{Algorithm: w.Algorithm, DatasetID: w.DatasetID}
}

func (w Wrapper) clone() Wrapper {
	w.Metric = w.Metric.Clone()
	return w
}

// Record is the flat, serializable form of a wrapper.
type Record struct {
	Algorithm string  `json:"algorithm"`
	DatasetID int     `json:"dataset_id"`
	Metric    string  `json:"metric"`
	Kind      string  `json:"kind"`
	Value     float64 `json:"value"`
	Count     int     `json:"count"`
	Valid     bool    `json:"valid"`
}

// Record flattens the wrapper.
func (w Wrapper) Record() Record {
	return Record{
		Algorithm: w.Algorithm,
		DatasetID: w.DatasetID,
		Metric:    w.Metric.Name(),
		Kind:      w.Metric.Kind().String(),
		Value:     w.Metric.Value(),
		Count:     w.Metric.Count(),
		Valid:     w.Valid,
	}
}

// Metrics is the registry of metric lists keyed by (algorithm, dataset id).
// Lists are kept in the order their contexts were first seeded.
type Metrics struct {
	mu    sync.RWMutex
	order []Key
	lists map[Key][]*Wrapper
}

// New creates an empty registry.
func New() *Metrics {
	return &Metrics{lists: make(map[Key][]*Wrapper)}
}

// Seed installs a fresh list for key from clean copies of set. An existing
// list for the same key is replaced.
func (m *Metrics) Seed(key Key, set []Metric) {
	list := make([]*Wrapper, 0, len(set))
	for _, tmpl := range set {
		list = append(list, &Wrapper{
			Metric:    tmpl.Reset(),
			Algorithm: key.Algorithm,
			DatasetID: key.DatasetID,
		})
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.lists[key]; !ok {
		m.order = append(m.order, key)
	}
	m.lists[key] = list
}

// Recalc folds obs into the metric named like tmpl under key. When key or
// the metric is missing, it is created from tmpl. The returned wrapper is a
// copy safe to hand to listeners.
func (m *Metrics) Recalc(key Key, tmpl Metric, obs any) (Wrapper, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	list, ok := m.lists[key]
	if !ok {
		m.order = append(m.order, key)
	}
	var w *Wrapper
	for _, cand := range list {
		if cand.Metric.Name() == tmpl.Name() {
			w = cand
			break
		}
	}
	if w == nil {
		w = &Wrapper{Metric: tmpl.Reset(), Algorithm: key.Algorithm, DatasetID: key.DatasetID}
		list = append(list, w)
	}
	m.lists[key] = list

	if err := w.Metric.Recalc(obs); err != nil {
		return w.clone(), fmt.Errorf("recalc %s for %s: %w", tmpl.Name(), key, err)
	}
	w.Valid = true
	return w.clone(), nil
}

// Has reports whether a list exists for key.
func (m *Metrics) Has(key Key) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.lists[key]
	return ok
}

// Get returns a copy of the named metric wrapper under key.
func (m *Metrics) Get(key Key, name string) (Wrapper, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, w := range m.lists[key] {
		if w.Metric.Name() == name {
			return w.clone(), true
		}
	}
	return Wrapper{}, false
}

// List returns copies of the wrappers under key, in seed order.
func (m *Metrics) List(key Key) []Wrapper {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := m.lists[key]
	out := make([]Wrapper, 0, len(list))
	for _, w := range list {
		out = append(out, w.clone())
	}
	return out
}

// Keys returns all keys in the order they were first seeded.
func (m *Metrics) Keys() []Key {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Key, len(m.order))
	copy(out, m.order)
	return out
}

// Len returns the number of metric lists.
func (m *Metrics) Len() int {
	if m == nil {
		return 0
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.lists)
}

// Snapshot returns a deep copy of the registry.
func (m *Metrics) Snapshot() *Metrics {
	out := New()
	if m == nil {
		return out
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out.order = make([]Key, len(m.order))
	copy(out.order, m.order)
	for key, list := range m.lists {
		cp := make([]*Wrapper, len(list))
		for i, w := range list {
			c := w.clone()
			cp[i] = &c
		}
		out.lists[key] = cp
	}
	return out
}

// sortedKeys returns keys ordered by algorithm then dataset id.
func (m *Metrics) sortedKeys() []Key {
	keys := make([]Key, len(m.order))
	copy(keys, m.order)
	sort.SliceStable(keys, func(i, j int) bool {
		if keys[i].Algorithm != keys[j].Algorithm {
			return keys[i].Algorithm < keys[j].Algorithm
		}
		return keys[i].DatasetID < keys[j].DatasetID
	})
	return keys
}

// Records flattens the registry, sorted by algorithm and dataset id.
func (m *Metrics) Records() []Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Record
	for _, key := range m.sortedKeys() {
		for _, w := range m.lists[key] {
			out = append(out, w.Record())
		}
	}
	return out
}

// Text renders the registry as plain text, one line per metric, sorted by
// algorithm and dataset id so snapshots of different runs can be diffed.
func (m *Metrics) Text() string {
	var b strings.Builder
	for _, r := range m.Records() {
		value := "n/a"
		if r.Valid {
			value = strconv.FormatFloat(r.Value, 'f', 6, 64)
		}
		fmt.Fprintf(&b, "algorithm=%s dataset=%d metric=%s kind=%s count=%d value=%s\n",
			r.Algorithm, r.DatasetID, r.Metric, r.Kind, r.Count, value)
	}
	return b.String()
}
