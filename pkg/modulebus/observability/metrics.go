package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records modulebus metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordPublish records a completed publish with its delivery count and duration.
	RecordPublish(ctx context.Context, eventType, priority string, delivered int, duration time.Duration)

	// RecordDrop records an event dropped by subscription policy.
	RecordDrop(ctx context.Context, eventType, reason string)

	// RecordDeliveryError records a handler delivery failure.
	RecordDeliveryError(ctx context.Context, eventType string)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	eventsPublished metric.Int64Counter
	publishLatency  metric.Float64Histogram
	eventsDelivered metric.Int64Counter
	eventsDropped   metric.Int64Counter
	deliveryErrors  metric.Int64Counter
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

// getDefaultMetrics returns the default OTel metrics instance.
// Lazily initializes the metrics on first call.
func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

// newOtelMetrics creates a new OTel metrics instance.
func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("modulebus")

	eventsPublished, err := meter.Int64Counter("modulebus.events.published",
		metric.WithDescription("Number of events published"),
	)
	if err != nil {
		return nil, err
	}

	publishLatency, err := meter.Float64Histogram("modulebus.publish.latency_ms",
		metric.WithDescription("Publish pipeline latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	eventsDelivered, err := meter.Int64Counter("modulebus.events.delivered",
		metric.WithDescription("Number of handler deliveries"),
	)
	if err != nil {
		return nil, err
	}

	eventsDropped, err := meter.Int64Counter("modulebus.events.dropped",
		metric.WithDescription("Number of events dropped by subscription policy"),
	)
	if err != nil {
		return nil, err
	}

	deliveryErrors, err := meter.Int64Counter("modulebus.delivery.errors",
		metric.WithDescription("Number of handler delivery errors"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		eventsPublished: eventsPublished,
		publishLatency:  publishLatency,
		eventsDelivered: eventsDelivered,
		eventsDropped:   eventsDropped,
		deliveryErrors:  deliveryErrors,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the provider
// before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

// RecordPublish records a completed publish.
func (m *otelMetrics) RecordPublish(ctx context.Context, eventType, priority string, delivered int, duration time.Duration) {
	attrs := []attribute.KeyValue{
		attribute.String("event_type", eventType),
		attribute.String("priority", priority),
	}

	m.eventsPublished.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.publishLatency.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))

	if delivered > 0 {
		m.eventsDelivered.Add(ctx, int64(delivered), metric.WithAttributes(attrs...))
	}
}

// RecordDrop records a dropped event.
func (m *otelMetrics) RecordDrop(ctx context.Context, eventType, reason string) {
	attrs := []attribute.KeyValue{
		attribute.String("event_type", eventType),
		attribute.String("reason", reason),
	}
	m.eventsDropped.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordDeliveryError records a handler delivery failure.
func (m *otelMetrics) RecordDeliveryError(ctx context.Context, eventType string) {
	attrs := []attribute.KeyValue{
		attribute.String("event_type", eventType),
	}
	m.deliveryErrors.Add(ctx, 1, metric.WithAttributes(attrs...))
}
