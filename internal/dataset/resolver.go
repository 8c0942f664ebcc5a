// Recbench - Recommendation Algorithm Evaluation Harness
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recbench

package dataset

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
)

// Resolver opens the dataset identified by a URI.
type Resolver interface {
	Resolve(ctx context.Context, uri string) (Dataset, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(ctx context.Context, uri string) (Dataset, error)

// Resolve calls f.
func (f ResolverFunc) Resolve(ctx context.Context, uri string) (Dataset, error) {
	return f(ctx, uri)
}

// Mux dispatches URIs to resolvers by scheme.
type Mux struct {
	mu      sync.RWMutex
	schemes map[string]Resolver
}

// NewMux creates an empty resolver mux.
func NewMux() *Mux {
	return &Mux{schemes: make(map[string]Resolver)}
}

// Handle registers r for URIs with the given scheme.
func (m *Mux) Handle(scheme string, r Resolver) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schemes[strings.ToLower(scheme)] = r
}

// Schemes returns the registered schemes in sorted order.
func (m *Mux) Schemes() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.schemes))
	for s := range m.schemes {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Resolve resolves uri with the resolver registered for its scheme.
func (m *Mux) Resolve(ctx context.Context, uri string) (Dataset, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("parse dataset uri %q: %w", uri, err)
	}
	m.mu.RLock()
	r, ok := m.schemes[strings.ToLower(u.Scheme)]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownScheme, u.Scheme)
	}
	return r.Resolve(ctx, uri)
}

// MemoryScheme is the URI scheme served by Catalog.
const MemoryScheme = "mem"

// Catalog serves named in-memory profile lists as mem://<name> datasets.
// Each Resolve returns a new Memory dataset so that closing one handle does
// not affect others.
type Catalog struct {
	mu      sync.RWMutex
	entries map[string][]Profile
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{entries: make(map[string][]Profile)}
}

// Put stores profiles under name.
func (c *Catalog) Put(name string, profiles []Profile) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[name] = profiles
}

// URI returns the mem URI for name.
func (c *Catalog) URI(name string) string {
	return MemoryScheme + "://" + name
}

// Resolve implements Resolver.
func (c *Catalog) Resolve(_ context.Context, uri string) (Dataset, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("parse dataset uri %q: %w", uri, err)
	}
	if u.Scheme != MemoryScheme {
		return nil, fmt.Errorf("%w: %q", ErrUnknownScheme, u.Scheme)
	}
	name := u.Host + u.Path
	c.mu.RLock()
	profiles, ok := c.entries[name]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("dataset %q not found in catalog", name)
	}
	return NewMemory(uri, profiles), nil
}
