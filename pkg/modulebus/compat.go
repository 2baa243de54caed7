package modulebus

import (
	"sort"

	"github.com/coreflow360/modulebus/pkg/modulebus/topology"
)

// RouteKey formats the ordered module pair the compatibility map is keyed
// by, e.g. "crm->accounting".
func RouteKey(source, target string) string {
	return source + "->" + target
}

// CompatibilityMap is a read-only table of the event types allowed to cross
// each ordered module boundary. A pair with no entry cannot exchange events
// regardless of entitlements; Bus.EnableCrossModuleEvents reports that as
// false rather than an error so callers can branch on capability.
type CompatibilityMap struct {
	types   map[string][]string
	allowed map[string]map[string]struct{}
}

// NewCompatibilityMap builds a map from a topology's routes.
func NewCompatibilityMap(cfg *topology.Config) *CompatibilityMap {
	m := &CompatibilityMap{
		types:   make(map[string][]string, len(cfg.Routes)),
		allowed: make(map[string]map[string]struct{}, len(cfg.Routes)),
	}
	for _, r := range cfg.Routes {
		key := RouteKey(r.Source, r.Target)

		events := make([]string, len(r.Events))
		copy(events, r.Events)
		m.types[key] = events

		set := make(map[string]struct{}, len(r.Events))
		for _, t := range r.Events {
			set[t] = struct{}{}
		}
		m.allowed[key] = set
	}
	return m
}

// HasRoute reports whether the ordered pair has a compatibility entry.
func (m *CompatibilityMap) HasRoute(source, target string) bool {
	_, ok := m.types[RouteKey(source, target)]
	return ok
}

// AllowedTypes returns the event types permitted across the ordered pair,
// in declaration order. Nil when the pair has no entry.
func (m *CompatibilityMap) AllowedTypes(source, target string) []string {
	types, ok := m.types[RouteKey(source, target)]
	if !ok {
		return nil
	}
	out := make([]string, len(types))
	copy(out, types)
	return out
}

// Allows reports whether the event type may cross the ordered pair.
func (m *CompatibilityMap) Allows(source, target, eventType string) bool {
	set, ok := m.allowed[RouteKey(source, target)]
	if !ok {
		return false
	}
	_, ok = set[eventType]
	return ok
}

// Routes returns every route key in sorted order.
func (m *CompatibilityMap) Routes() []string {
	keys := make([]string, 0, len(m.types))
	for key := range m.types {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
