// Package observability provides production-grade observability features
// for modulebus: structured logging, metrics, and distributed tracing.
//
// Features:
//   - Structured logging via slog (Go stdlib)
//   - Metrics via OpenTelemetry
//   - Tracing via OpenTelemetry
//
// All features are opt-in and have no-op implementations when disabled.
package observability

import (
	"log/slog"
	"time"
)

// EnrichLogger adds event context to a logger.
// Returns a new logger with event_id, event_type, and tenant_id fields.
//
// Example:
//
//	enriched := EnrichLogger(logger, "evt-123", "deal.won", "tenant-a")
//	enriched.Info("routing") // includes event_id, event_type, tenant_id
func EnrichLogger(logger *slog.Logger, eventID, eventType, tenantID string) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("event_id", eventID),
		slog.String("event_type", eventType),
		slog.String("tenant_id", tenantID),
	)
}

// LogPublish logs a completed publish with its delivery count.
func LogPublish(logger *slog.Logger, eventID, eventType, tenantID string, delivered int, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Info("event published",
		slog.String("event_id", eventID),
		slog.String("event_type", eventType),
		slog.String("tenant_id", tenantID),
		slog.Int("delivered", delivered),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogDrop logs an event dropped by subscription policy.
func LogDrop(logger *slog.Logger, eventID, eventType, tenantID, reason string) {
	if logger == nil {
		return
	}
	logger.Warn("event dropped",
		slog.String("event_id", eventID),
		slog.String("event_type", eventType),
		slog.String("tenant_id", tenantID),
		slog.String("reason", reason),
	)
}

// LogDeliveryError logs a handler failure (non-fatal to the publish).
func LogDeliveryError(logger *slog.Logger, eventID, subscriptionID string, err error) {
	if logger == nil {
		return
	}
	logger.Error("handler delivery failed",
		slog.String("event_id", eventID),
		slog.String("subscription_id", subscriptionID),
		slog.String("error", err.Error()),
	)
}

// LogSubscribe logs subscription registration.
func LogSubscribe(logger *slog.Logger, subscriptionID, tenantID, sourceModule string, eventTypes []string) {
	if logger == nil {
		return
	}
	logger.Debug("subscription registered",
		slog.String("subscription_id", subscriptionID),
		slog.String("tenant_id", tenantID),
		slog.String("source_module", sourceModule),
		slog.Any("event_types", eventTypes),
	)
}

// LogUnsubscribe logs subscription removal.
func LogUnsubscribe(logger *slog.Logger, subscriptionID string) {
	if logger == nil {
		return
	}
	logger.Debug("subscription removed",
		slog.String("subscription_id", subscriptionID),
	)
}

// LogUncataloguedType logs an event type the source module has not declared.
// Advisory only. The event is still routed.
func LogUncataloguedType(logger *slog.Logger, eventType, sourceModule string) {
	if logger == nil {
		return
	}
	logger.Warn("event type not in module catalog",
		slog.String("event_type", eventType),
		slog.String("source_module", sourceModule),
	)
}

// LogBroadcastError logs a broadcast fan-out failure (non-fatal).
func LogBroadcastError(logger *slog.Logger, eventID string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("broadcast failed",
		slog.String("event_id", eventID),
		slog.String("error", err.Error()),
	)
}

// LogAuditError logs an audit record failure (non-fatal).
func LogAuditError(logger *slog.Logger, eventID string, op string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("audit record failed",
		slog.String("event_id", eventID),
		slog.String("operation", op),
		slog.String("error", err.Error()),
	)
}

// TimedOperation measures the duration of an operation.
// Returns a function that, when called, returns the elapsed time in milliseconds.
//
// Example:
//
//	done := TimedOperation()
//	// ... do work ...
//	durationMs := done()
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Milliseconds())
	}
}
