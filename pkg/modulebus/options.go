package modulebus

import (
	"log/slog"
	"time"

	"github.com/coreflow360/modulebus/pkg/modulebus/audit"
	"github.com/coreflow360/modulebus/pkg/modulebus/entitlement"
	"github.com/coreflow360/modulebus/pkg/modulebus/observability"
	"github.com/coreflow360/modulebus/pkg/modulebus/topology"
)

// busConfig holds configuration assembled from Options.
type busConfig struct {
	topology        *topology.Config
	classifier      *Classifier
	cache           entitlement.CacheConfig
	recorder        audit.Recorder
	broadcaster     Broadcaster
	logger          *slog.Logger
	metrics         observability.MetricsRecorder
	spans           observability.SpanManager
	now             func() time.Time
	onDrop          func(evt Event, reason string)
	onDeliveryError func(*DeliveryError)
}

// defaultBusConfig returns the default bus configuration.
func defaultBusConfig() busConfig {
	return busConfig{
		topology:   topology.Default(),
		classifier: DefaultClassifier(),
		cache:      entitlement.DefaultCacheConfig,
		recorder:   audit.NopRecorder{},
		metrics:    observability.NoopMetrics{},
		spans:      observability.NoopSpanManager{},
		now:        time.Now,
	}
}

// Option configures a Bus.
type Option func(*busConfig)

// WithTopology sets the initial topology the capability registry and
// compatibility map are built from.
// Default: topology.Default()
//
// Swap topologies at runtime with Bus.SetTopology.
func WithTopology(cfg *topology.Config) Option {
	return func(c *busConfig) {
		if cfg != nil {
			c.topology = cfg
		}
	}
}

// WithClassifier overrides the priority and subscription-requirement rule
// tables.
// Default: DefaultClassifier()
func WithClassifier(cl *Classifier) Option {
	return func(c *busConfig) {
		if cl != nil {
			c.classifier = cl
		}
	}
}

// WithCacheConfig configures the tenant entitlement cache (TTL, capacity,
// clock).
// Default: entitlement.DefaultCacheConfig
func WithCacheConfig(cfg entitlement.CacheConfig) Option {
	return func(c *busConfig) {
		c.cache = cfg
	}
}

// WithAuditRecorder sets the collaborator that receives publish outcomes.
// Recorder failures are logged and never fail a publish.
// Default: audit.NopRecorder
func WithAuditRecorder(rec audit.Recorder) Option {
	return func(c *busConfig) {
		if rec != nil {
			c.recorder = rec
		}
	}
}

// WithBroadcaster sets the dispatcher that re-emits routed events on
// process-wide topics for ad hoc listeners. Broadcast failures are logged
// and never fail a publish.
// Default: none (no re-emit)
func WithBroadcaster(b Broadcaster) Option {
	return func(c *busConfig) {
		c.broadcaster = b
	}
}

// WithLogger enables structured logging of publishes, drops, delivery
// errors, and subscription changes.
// Default: nil (logging disabled)
func WithLogger(logger *slog.Logger) Option {
	return func(c *busConfig) {
		c.logger = logger
	}
}

// WithMetrics sets the metrics recorder. Use
// observability.NewMetricsRecorder() for OpenTelemetry metrics.
// Default: observability.NoopMetrics
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(c *busConfig) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithSpanManager sets the tracer. Use observability.NewSpanManager() for
// OpenTelemetry spans around each publish and handler invocation.
// Default: observability.NoopSpanManager
func WithSpanManager(s observability.SpanManager) Option {
	return func(c *busConfig) {
		if s != nil {
			c.spans = s
		}
	}
}

// WithClock injects the clock used to stamp event timestamps, so tests can
// produce deterministic metadata.
// Default: time.Now
func WithClock(now func() time.Time) Option {
	return func(c *busConfig) {
		if now != nil {
			c.now = now
		}
	}
}

// WithDropHandler registers a callback invoked whenever an event is dropped
// by subscription policy, with the stamped event and the drop reason (see
// the audit.Reason* constants).
func WithDropHandler(fn func(evt Event, reason string)) Option {
	return func(c *busConfig) {
		c.onDrop = fn
	}
}

// WithDeliveryErrorHandler registers a callback invoked whenever a handler
// fails. The bus has already logged and recorded the error; the callback is
// for callers that need to react in-process.
func WithDeliveryErrorHandler(fn func(*DeliveryError)) Option {
	return func(c *busConfig) {
		c.onDeliveryError = fn
	}
}
