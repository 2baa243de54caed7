package modulebus

import (
	"fmt"
	"sync/atomic"
)

// Wildcard matches every event type when present in a subscription's
// EventTypes.
const Wildcard = "*"

// SubscriptionRequest describes a standing registration of interest.
type SubscriptionRequest struct {
	// TenantID scopes the subscription; it only ever matches events with
	// the same tenant.
	TenantID string

	// SourceModule is the module whose events the subscription wants.
	SourceModule string

	// TargetModule, when set, declares cross-module interest: the
	// subscription matches events destined for that module, and delivery
	// requires the tenant to have it active.
	TargetModule string

	// EventTypes filters by event type. May contain Wildcard.
	EventTypes []string

	// Handler receives matching events.
	Handler Handler
}

// validate checks the fields required to register.
func (r SubscriptionRequest) validate() error {
	switch {
	case r.TenantID == "":
		return fmt.Errorf("%w: tenant id is required", ErrInvalidSubscription)
	case r.SourceModule == "":
		return fmt.Errorf("%w: source module is required", ErrInvalidSubscription)
	case len(r.EventTypes) == 0:
		return fmt.Errorf("%w: at least one event type is required", ErrInvalidSubscription)
	case r.Handler == nil:
		return fmt.Errorf("%w: handler is required", ErrInvalidSubscription)
	}
	return nil
}

// Subscription is an active registration held by the bus. The handle is
// safe for concurrent use; all fields except the active flag are immutable
// after registration.
type Subscription struct {
	id           string
	tenantID     string
	sourceModule string
	targetModule string
	eventTypes   []string
	typeSet      map[string]struct{}
	wildcard     bool
	handler      Handler
	active       atomic.Bool
	bus          *Bus
}

func newSubscription(id string, req SubscriptionRequest, bus *Bus) *Subscription {
	types := make([]string, len(req.EventTypes))
	copy(types, req.EventTypes)

	sub := &Subscription{
		id:           id,
		tenantID:     req.TenantID,
		sourceModule: req.SourceModule,
		targetModule: req.TargetModule,
		eventTypes:   types,
		typeSet:      make(map[string]struct{}, len(types)),
		handler:      req.Handler,
		bus:          bus,
	}
	for _, t := range types {
		if t == Wildcard {
			sub.wildcard = true
			continue
		}
		sub.typeSet[t] = struct{}{}
	}
	sub.active.Store(true)
	return sub
}

// ID returns the subscription's identifier, assigned at subscribe time.
func (s *Subscription) ID() string {
	return s.id
}

// TenantID returns the owning tenant.
func (s *Subscription) TenantID() string {
	return s.tenantID
}

// SourceModule returns the module whose events the subscription matches.
func (s *Subscription) SourceModule() string {
	return s.sourceModule
}

// TargetModule returns the declared destination module, or "" for
// same-module subscriptions.
func (s *Subscription) TargetModule() string {
	return s.targetModule
}

// EventTypes returns a copy of the event-type filter.
func (s *Subscription) EventTypes() []string {
	out := make([]string, len(s.eventTypes))
	copy(out, s.eventTypes)
	return out
}

// Pause stops delivery without removing the subscription.
func (s *Subscription) Pause() {
	s.active.Store(false)
}

// Resume continues delivery after Pause.
func (s *Subscription) Resume() {
	s.active.Store(true)
}

// IsActive reports whether the subscription currently accepts deliveries.
func (s *Subscription) IsActive() bool {
	return s.active.Load()
}

// Unsubscribe removes the subscription from its bus.
func (s *Subscription) Unsubscribe() {
	s.bus.Unsubscribe(s.id)
}

// Matches reports whether the subscription's static filter accepts the
// event: same tenant, active, same source module, event type in the filter
// (or wildcard), and, when the event has a target module, the same target.
// The entitlement half of eligibility is re-verified by the bus per event
// at publish time, because entitlements can change between subscribe time
// and publish time.
func (s *Subscription) Matches(evt Event) bool {
	if !s.active.Load() {
		return false
	}
	if s.tenantID != evt.TenantID {
		return false
	}
	if s.sourceModule != evt.SourceModule {
		return false
	}
	if evt.TargetModule != "" && s.targetModule != evt.TargetModule {
		return false
	}
	if s.wildcard {
		return true
	}
	_, ok := s.typeSet[evt.Type]
	return ok
}
