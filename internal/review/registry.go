// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package review implements periodic review scheduling: which kinds take
// part, how an item's review frequency is resolved, how next review dates
// are derived and kept consistent, and how items of every kind are queried
// as one collection.
package review

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"reviewd/internal/models"
)

var (
	// ErrRegistrySealed is returned by Register once the kinds were read.
	ErrRegistrySealed = errors.New("kind registry is sealed")

	// ErrInvalidKind is returned for descriptors that cannot be queried.
	ErrInvalidKind = errors.New("invalid kind descriptor")

	// ErrUnknownKind is returned when a kind name does not participate.
	ErrUnknownKind = errors.New("unknown review kind")
)

// identPattern restricts kind names and tables to plain SQL identifiers.
var identPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Registry records the kinds that participate in periodic review. Kinds
// are registered at startup; the first read seals the registry and the
// sorted list is memoized for the life of the process.
type Registry struct {
	mu       sync.RWMutex
	kinds    map[string]models.KindDescriptor
	sealed   bool
	snapshot []models.KindDescriptor
}

// NewRegistry creates an empty registry. An empty registry is valid:
// nothing participates.
func NewRegistry() *Registry {
	return &Registry{kinds: make(map[string]models.KindDescriptor)}
}

// RegistryFromNames builds a registry from built-in kind names, as listed
// in configuration.
func RegistryFromNames(names []string) (*Registry, error) {
	r := NewRegistry()
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		k, ok := models.LookupBuiltinKind(name)
		if !ok {
			return nil, fmt.Errorf("register kind %q: %w", name, ErrUnknownKind)
		}
		if err := r.Register(k); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a participating kind. Registering the same name twice
// replaces the earlier descriptor.
func (r *Registry) Register(k models.KindDescriptor) error {
	if !identPattern.MatchString(k.Name) || !identPattern.MatchString(k.Table) {
		return fmt.Errorf("register kind %q: %w", k.Name, ErrInvalidKind)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return fmt.Errorf("register kind %q: %w", k.Name, ErrRegistrySealed)
	}
	r.kinds[k.Name] = k
	return nil
}

// Kinds returns the participating kinds sorted by name. The returned
// slice is shared and must not be modified.
func (r *Registry) Kinds() []models.KindDescriptor {
	r.mu.RLock()
	if r.sealed {
		out := r.snapshot
		r.mu.RUnlock()
		return out
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.seal()
	return r.snapshot
}

// seal builds the memoized list. r.mu must be held for writing.
func (r *Registry) seal() {
	if r.sealed {
		return
	}
	kinds := make([]models.KindDescriptor, 0, len(r.kinds))
	for _, k := range r.kinds {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i].Name < kinds[j].Name })
	r.snapshot = kinds
	r.sealed = true
}

// Lookup returns the descriptor of a participating kind.
func (r *Registry) Lookup(name string) (models.KindDescriptor, bool) {
	for _, k := range r.Kinds() {
		if k.Name == name {
			return k, true
		}
	}
	return models.KindDescriptor{}, false
}

// Participates reports whether kind takes part in periodic review.
func (r *Registry) Participates(kind string) bool {
	_, ok := r.Lookup(kind)
	return ok
}

// Reset clears the registry and its memoized list. Test use only.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kinds = make(map[string]models.KindDescriptor)
	r.snapshot = nil
	r.sealed = false
}

// Override replaces the participating kinds and seals the registry.
// Test use only; descriptors are not validated.
func (r *Registry) Override(kinds ...models.KindDescriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kinds = make(map[string]models.KindDescriptor, len(kinds))
	for _, k := range kinds {
		r.kinds[k.Name] = k
	}
	r.sealed = false
	r.seal()
}
