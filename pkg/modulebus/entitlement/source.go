// Package entitlement resolves which modules a tenant has activated.
//
// The source of truth lives outside the bus (the tenant's module manager);
// this package wraps it with a TTL cache, single-flight refresh
// deduplication, and an optional circuit breaker so entitlement checks stay
// cheap and predictable on the publish path.
package entitlement

import (
	"context"
	"errors"
	"sort"
)

// ModuleSet is a set of module identifiers.
type ModuleSet map[string]struct{}

// NewModuleSet builds a set from module ids.
func NewModuleSet(ids ...string) ModuleSet {
	s := make(ModuleSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Has reports whether the module is in the set.
func (s ModuleSet) Has(module string) bool {
	_, ok := s[module]
	return ok
}

// Add inserts a module id.
func (s ModuleSet) Add(module string) {
	s[module] = struct{}{}
}

// Slice returns the module ids in sorted order.
func (s ModuleSet) Slice() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Clone returns an independent copy of the set.
func (s ModuleSet) Clone() ModuleSet {
	out := make(ModuleSet, len(s))
	for id := range s {
		out[id] = struct{}{}
	}
	return out
}

// Source answers which modules are currently active for a tenant.
// Implementations are read-only from the bus's point of view and must be
// safe for concurrent use.
type Source interface {
	// ActiveModules returns the tenant's currently active module set.
	ActiveModules(ctx context.Context, tenantID string) (ModuleSet, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context, tenantID string) (ModuleSet, error)

// ActiveModules implements Source.
func (f SourceFunc) ActiveModules(ctx context.Context, tenantID string) (ModuleSet, error) {
	return f(ctx, tenantID)
}

// Sentinel errors for entitlement resolution.
var (
	// ErrNoSource indicates a cache was constructed without a source.
	ErrNoSource = errors.New("entitlement source is nil")

	// ErrTenantRequired indicates a lookup with an empty tenant id.
	ErrTenantRequired = errors.New("tenant id required")
)
