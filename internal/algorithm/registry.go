// Recbench - Recommendation Algorithm Evaluation Harness
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recbench

package algorithm

import (
	"fmt"
	"sort"
)

// Factory creates a fresh algorithm instance.
type Factory func() Algorithm

// Registry is a read-only lookup of algorithm factories by name. It is built
// once at startup and injected where names have to be turned into instances.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry creates a registry from the given factories.
func NewRegistry(factories map[string]Factory) *Registry {
	cp := make(map[string]Factory, len(factories))
	for name, f := range factories {
		cp[name] = f
	}
	return &Registry{factories: cp}
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.factories[name]
	return ok
}

// New creates an instance of the named algorithm.
func (r *Registry) New(name string) (Algorithm, error) {
	f, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, name)
	}
	return f(), nil
}

// Instantiate creates one instance per name, in order.
func (r *Registry) Instantiate(names []string) ([]Algorithm, error) {
	out := make([]Algorithm, 0, len(names))
	for _, name := range names {
		a, err := r.New(name)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}
