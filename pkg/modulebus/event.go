package modulebus

import (
	"context"
	"fmt"
	"time"
)

// Event is an immutable fact describing something that happened in one
// module, optionally destined for another. Callers fill in the business
// fields; the bus stamps ID and Metadata at publish time and never mutates
// the event afterwards.
type Event struct {
	// ID is generated by the bus at publish time.
	ID string `json:"id"`

	// Type names what happened (e.g. "deal.won").
	Type string `json:"type"`

	// SourceModule is the module that emitted the event.
	SourceModule string `json:"source_module"`

	// TargetModule is the destination module for cross-module events.
	// Empty for events that stay within their source module.
	TargetModule string `json:"target_module,omitempty"`

	// TenantID scopes every routing decision for this event.
	TenantID string `json:"tenant_id"`

	// UserID identifies the actor, when known.
	UserID string `json:"user_id,omitempty"`

	// Payload is opaque structured data. The bus never inspects it.
	Payload any `json:"payload,omitempty"`

	// Metadata is computed by the bus, never supplied by the caller.
	Metadata Metadata `json:"metadata"`
}

// Metadata holds the routing attributes the bus derives for each event.
type Metadata struct {
	// Timestamp is when the event was accepted for publication.
	Timestamp time.Time `json:"timestamp"`

	// Priority is derived from the classifier's rule table over Type.
	Priority Priority `json:"priority"`

	// RequiresSubscription marks events whose delivery is gated on the
	// tenant's module entitlements.
	RequiresSubscription bool `json:"requires_subscription"`

	// CrossModule is true iff TargetModule is set and differs from
	// SourceModule.
	CrossModule bool `json:"cross_module"`
}

// IsCrossModule reports whether the event targets a different module than
// the one that emitted it.
func (e Event) IsCrossModule() bool {
	return e.TargetModule != "" && e.TargetModule != e.SourceModule
}

// validate checks the caller-supplied fields required for routing.
func (e Event) validate() error {
	switch {
	case e.Type == "":
		return fmt.Errorf("%w: type is required", ErrInvalidEvent)
	case e.SourceModule == "":
		return fmt.Errorf("%w: source module is required", ErrInvalidEvent)
	case e.TenantID == "":
		return fmt.Errorf("%w: tenant id is required", ErrInvalidEvent)
	}
	return nil
}

// Handler consumes events delivered through a subscription.
//
// Handlers run sequentially within one publish call but concurrently across
// publish calls, so they must be safe for concurrent invocation and must not
// assume exclusive access to shared state. A handler error is terminal for
// that one delivery: the bus records it and moves on to the next
// subscription. There are no retries.
type Handler interface {
	Handle(ctx context.Context, evt Event) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, evt Event) error

// Handle implements Handler.
func (f HandlerFunc) Handle(ctx context.Context, evt Event) error {
	return f(ctx, evt)
}
