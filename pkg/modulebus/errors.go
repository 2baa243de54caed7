package modulebus

import (
	"errors"
	"fmt"
)

// Sentinel errors for bus operations.
var (
	// ErrBusClosed indicates an operation on a closed bus.
	ErrBusClosed = errors.New("bus is closed")

	// ErrInvalidEvent indicates a publish with missing required fields.
	ErrInvalidEvent = errors.New("invalid event")

	// ErrInvalidSubscription indicates a subscribe request with missing
	// required fields.
	ErrInvalidSubscription = errors.New("invalid subscription")

	// ErrPermissionDenied indicates the tenant lacks an active module the
	// subscription requires. Callers must not retry without confirming the
	// tenant's entitlements changed.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrEntitlementUnavailable indicates the entitlement source could not
	// be reached, so module activity could not be verified. Distinct from
	// ErrPermissionDenied: the tenant may well be entitled.
	ErrEntitlementUnavailable = errors.New("entitlement source unavailable")
)

// PermissionDeniedError reports which module failed the entitlement check
// at subscribe time.
type PermissionDeniedError struct {
	// TenantID is the tenant whose entitlements were checked.
	TenantID string
	// Module is the module that is not active for the tenant.
	Module string
}

// Error implements the error interface.
func (e *PermissionDeniedError) Error() string {
	return fmt.Sprintf("module %s is not active for tenant %s", e.Module, e.TenantID)
}

// Unwrap returns ErrPermissionDenied for errors.Is support.
func (e *PermissionDeniedError) Unwrap() error {
	return ErrPermissionDenied
}

// DeliveryError describes one handler failure during publish. It is never
// returned to the publisher: the bus logs it, records it to the audit
// recorder, and hands it to the configured delivery-error callback.
type DeliveryError struct {
	// EventID is the event whose delivery failed.
	EventID string
	// EventType is the event's type.
	EventType string
	// SubscriptionID is the subscription whose handler failed.
	SubscriptionID string
	// Err is the handler's error, or a synthesized error if it panicked.
	Err error
}

// Error implements the error interface.
func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver event %s (%s) to subscription %s: %v",
		e.EventID, e.EventType, e.SubscriptionID, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *DeliveryError) Unwrap() error {
	return e.Err
}
