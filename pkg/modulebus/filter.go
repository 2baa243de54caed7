package modulebus

import "github.com/coreflow360/modulebus/pkg/modulebus/entitlement"

// FilterBySubscription returns the events that would pass the bus's
// entitlement gate given the active module set, applying the classifier's
// subscription rules. It is pure and stateless: batch and backfill tooling
// can post-filter historical events against a known entitlement snapshot
// without touching a live bus.
func (c *Classifier) FilterBySubscription(events []Event, active entitlement.ModuleSet) []Event {
	out := make([]Event, 0, len(events))
	for _, evt := range events {
		cross := evt.IsCrossModule()
		if !c.RequiresSubscription(evt.Type, cross) {
			out = append(out, evt)
			continue
		}
		if !active.Has(evt.SourceModule) {
			continue
		}
		if cross && !active.Has(evt.TargetModule) {
			continue
		}
		out = append(out, evt)
	}
	return out
}

// FilterBySubscription applies the default classifier's rules. See
// Classifier.FilterBySubscription.
func FilterBySubscription(events []Event, active entitlement.ModuleSet) []Event {
	return DefaultClassifier().FilterBySubscription(events, active)
}
