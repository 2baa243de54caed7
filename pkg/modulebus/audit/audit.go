// Package audit records publish outcomes: routed events, policy drops, and
// per-subscription delivery errors.
//
// The bus treats the recorder as a collaborator: recording failures are
// logged by the bus and never fail a publish. Implementations must be safe
// for concurrent use.
package audit

import (
	"context"
	"errors"
	"time"
)

// Outcomes recorded for an event.
const (
	// OutcomePublished marks an event that went through routing.
	OutcomePublished = "published"

	// OutcomeDropped marks an event declined by entitlement policy.
	OutcomeDropped = "dropped"

	// OutcomeDeliveryError marks one handler failure for an event.
	OutcomeDeliveryError = "delivery_error"
)

// Drop reasons recorded with OutcomeDropped.
const (
	// ReasonInsufficientSubscription: the tenant lacks the module(s) the
	// event requires.
	ReasonInsufficientSubscription = "insufficient_subscription"

	// ReasonEntitlementUnavailable: entitlements could not be verified,
	// so the event was dropped rather than delivered unverified.
	ReasonEntitlementUnavailable = "entitlement_unavailable"
)

// Record describes one published event, flattened for storage.
type Record struct {
	EventID              string    `json:"event_id"`
	EventType            string    `json:"event_type"`
	TenantID             string    `json:"tenant_id"`
	SourceModule         string    `json:"source_module"`
	TargetModule         string    `json:"target_module,omitempty"`
	Priority             string    `json:"priority"`
	CrossModule          bool      `json:"cross_module"`
	RequiresSubscription bool      `json:"requires_subscription"`
	Timestamp            time.Time `json:"timestamp"`
}

// Entry is one stored audit row.
type Entry struct {
	Record

	// Outcome is one of the Outcome* constants.
	Outcome string `json:"outcome"`

	// Reason holds the drop reason or the handler error text.
	Reason string `json:"reason,omitempty"`

	// SubscriptionID identifies the failing subscription for
	// OutcomeDeliveryError rows.
	SubscriptionID string `json:"subscription_id,omitempty"`

	// Delivered is the number of handlers the event reached.
	Delivered int `json:"delivered"`

	// RecordedAt is when the row was written.
	RecordedAt time.Time `json:"recorded_at"`
}

// Recorder receives publish outcomes from the bus.
type Recorder interface {
	// RecordPublished records a routed event and how many handlers it reached.
	RecordPublished(ctx context.Context, rec Record, delivered int) error

	// RecordDropped records a policy drop with its reason.
	RecordDropped(ctx context.Context, rec Record, reason string) error

	// RecordDeliveryError records one handler failure for an event.
	RecordDeliveryError(ctx context.Context, rec Record, subscriptionID string, handlerErr error) error
}

// Sentinel errors for audit stores.
var (
	// ErrLogClosed indicates the log has been closed.
	ErrLogClosed = errors.New("audit log closed")
)

// NopRecorder discards every record. It is the default when no recorder is
// configured.
type NopRecorder struct{}

// Compile-time interface check.
var _ Recorder = NopRecorder{}

// RecordPublished does nothing.
func (NopRecorder) RecordPublished(_ context.Context, _ Record, _ int) error { return nil }

// RecordDropped does nothing.
func (NopRecorder) RecordDropped(_ context.Context, _ Record, _ string) error { return nil }

// RecordDeliveryError does nothing.
func (NopRecorder) RecordDeliveryError(_ context.Context, _ Record, _ string, _ error) error {
	return nil
}
