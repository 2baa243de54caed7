package modulebus

import (
	"sort"

	"github.com/coreflow360/modulebus/pkg/modulebus/topology"
)

// CapabilityRegistry is a read-only catalog of the event types each module
// may emit. It is advisory: an event whose type is not catalogued for its
// source module is still routed, logged at Warn, and counted in Stats.
// Rebuild the registry by swapping topologies via Bus.SetTopology.
type CapabilityRegistry struct {
	types map[string][]string
	known map[string]map[string]struct{}
}

// NewCapabilityRegistry builds a registry from a topology.
func NewCapabilityRegistry(cfg *topology.Config) *CapabilityRegistry {
	r := &CapabilityRegistry{
		types: make(map[string][]string, len(cfg.Modules)),
		known: make(map[string]map[string]struct{}, len(cfg.Modules)),
	}
	for _, m := range cfg.Modules {
		events := make([]string, len(m.Events))
		copy(events, m.Events)
		r.types[m.Name] = events

		set := make(map[string]struct{}, len(m.Events))
		for _, t := range m.Events {
			set[t] = struct{}{}
		}
		r.known[m.Name] = set
	}
	return r
}

// Modules returns the catalogued module ids in sorted order.
func (r *CapabilityRegistry) Modules() []string {
	names := make([]string, 0, len(r.types))
	for name := range r.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// EventTypes returns the event types catalogued for a module, in
// declaration order. Nil for unknown modules.
func (r *CapabilityRegistry) EventTypes(module string) []string {
	types, ok := r.types[module]
	if !ok {
		return nil
	}
	out := make([]string, len(types))
	copy(out, types)
	return out
}

// Knows reports whether the module has catalogued the event type.
func (r *CapabilityRegistry) Knows(module, eventType string) bool {
	set, ok := r.known[module]
	if !ok {
		return false
	}
	_, ok = set[eventType]
	return ok
}

// Snapshot returns a copy of the full module -> event types table.
func (r *CapabilityRegistry) Snapshot() map[string][]string {
	out := make(map[string][]string, len(r.types))
	for module, types := range r.types {
		cp := make([]string, len(types))
		copy(cp, types)
		out[module] = cp
	}
	return out
}
