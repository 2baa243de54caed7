package modulebus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/coreflow360/modulebus/pkg/modulebus/audit"
	"github.com/coreflow360/modulebus/pkg/modulebus/entitlement"
	"github.com/coreflow360/modulebus/pkg/modulebus/observability"
	"github.com/coreflow360/modulebus/pkg/modulebus/topology"
)

// Broadcaster re-emits routed events on process-wide topics keyed by event
// type and by source module, for ad hoc operational listeners that are not
// formal subscriptions. The broadcast package provides an in-process
// implementation over watermill.
type Broadcaster interface {
	Broadcast(ctx context.Context, evt Event) error
}

// routingTables pairs the capability registry with the compatibility map so
// SetTopology can swap both atomically.
type routingTables struct {
	capabilities *CapabilityRegistry
	compat       *CompatibilityMap
}

// Bus routes domain events between feature modules for a multi-tenant
// system, gating delivery on which modules each tenant has activated.
//
// Construct one Bus per process (or per test) with New and share it by
// reference. All methods are safe for concurrent use. Publish calls may
// arrive concurrently; within a single Publish call, matching handlers run
// sequentially in registration order.
type Bus struct {
	classifier *Classifier
	cache      *entitlement.Cache
	recorder   audit.Recorder
	broadcast  Broadcaster
	logger     *slog.Logger
	metrics    observability.MetricsRecorder
	spans      observability.SpanManager
	now        func() time.Time

	onDrop          func(evt Event, reason string)
	onDeliveryError func(*DeliveryError)

	tables atomic.Pointer[routingTables]

	mu   sync.RWMutex
	subs []*Subscription // registration order
	byID map[string]*Subscription

	closed atomic.Bool

	totalEvents    atomic.Int64
	delivered      atomic.Int64
	dropped        atomic.Int64
	deliveryErrors atomic.Int64
	uncatalogued   atomic.Int64
}

// New creates a Bus over the given entitlement source.
func New(source entitlement.Source, opts ...Option) (*Bus, error) {
	cfg := defaultBusConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	if err := cfg.topology.Validate(); err != nil {
		return nil, fmt.Errorf("bus topology: %w", err)
	}

	cache, err := entitlement.NewCache(source, cfg.cache)
	if err != nil {
		return nil, err
	}

	b := &Bus{
		classifier:      cfg.classifier,
		cache:           cache,
		recorder:        cfg.recorder,
		broadcast:       cfg.broadcaster,
		logger:          cfg.logger,
		metrics:         cfg.metrics,
		spans:           cfg.spans,
		now:             cfg.now,
		onDrop:          cfg.onDrop,
		onDeliveryError: cfg.onDeliveryError,
		byID:            make(map[string]*Subscription),
	}
	b.tables.Store(&routingTables{
		capabilities: NewCapabilityRegistry(cfg.topology),
		compat:       NewCompatibilityMap(cfg.topology),
	})
	return b, nil
}

// Publish routes an event: stamps its ID and metadata, applies the
// entitlement gate, invokes eligible handlers sequentially in registration
// order, records the outcome, and re-emits the event to the broadcaster.
//
// Publisher-visible errors are limited to validation failures and
// ErrBusClosed. Policy drops and handler errors are absorbed: publication
// must never fail the originating business operation because of a
// downstream subscriber, so they surface only through the audit recorder,
// logs, and Stats.
func (b *Bus) Publish(ctx context.Context, evt Event) error {
	if b.closed.Load() {
		return ErrBusClosed
	}
	if err := evt.validate(); err != nil {
		return err
	}

	evt = b.stamp(evt)
	b.totalEvents.Add(1)

	start := time.Now()
	sctx, span := b.spans.StartPublishSpan(ctx, evt.Type, evt.ID)

	tables := b.tables.Load()
	if !tables.capabilities.Knows(evt.SourceModule, evt.Type) {
		b.uncatalogued.Add(1)
		observability.LogUncataloguedType(b.logger, evt.Type, evt.SourceModule)
	}

	rec := auditRecord(evt)

	// Entitlement gate: cross-module and high-value events are dropped
	// unless the tenant has the required modules active. A drop is a
	// policy outcome, not an error to the publisher.
	var active entitlement.ModuleSet
	if evt.Metadata.RequiresSubscription {
		mods, err := b.cache.ActiveModules(sctx, evt.TenantID)
		if err != nil {
			// Fail closed: undeliverable without verified entitlement.
			b.drop(sctx, evt, rec, audit.ReasonEntitlementUnavailable)
			b.spans.EndSpanWithError(span, nil)
			return nil
		}
		if !mods.Has(evt.SourceModule) ||
			(evt.Metadata.CrossModule && !mods.Has(evt.TargetModule)) {
			b.drop(sctx, evt, rec, audit.ReasonInsufficientSubscription)
			b.spans.EndSpanWithError(span, nil)
			return nil
		}
		active = mods
	}

	b.mu.RLock()
	subs := make([]*Subscription, len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	delivered := 0
	for _, sub := range subs {
		if !sub.Matches(evt) {
			continue
		}

		// Entitlements can change between subscribe time and publish
		// time, so eligibility is re-verified per event against a fresh
		// read through the cache.
		if active == nil {
			mods, err := b.cache.ActiveModules(sctx, evt.TenantID)
			if err != nil {
				b.drop(sctx, evt, rec, audit.ReasonEntitlementUnavailable)
				b.spans.EndSpanWithError(span, nil)
				return nil
			}
			active = mods
		}
		if !active.Has(sub.sourceModule) {
			continue
		}
		if sub.targetModule != "" && !active.Has(sub.targetModule) {
			continue
		}

		hctx, hspan := b.spans.StartHandlerSpan(sctx, sub.id)
		err := b.deliver(hctx, sub, evt)
		b.spans.EndSpanWithError(hspan, err)
		if err != nil {
			b.recordDeliveryError(sctx, evt, rec, sub.id, err)
			continue
		}
		delivered++
	}
	b.delivered.Add(int64(delivered))

	if err := b.recorder.RecordPublished(sctx, rec, delivered); err != nil {
		observability.LogAuditError(b.logger, evt.ID, audit.OutcomePublished, err)
	}

	if b.broadcast != nil {
		if err := b.broadcast.Broadcast(sctx, evt); err != nil {
			observability.LogBroadcastError(b.logger, evt.ID, err)
		}
	}

	duration := time.Since(start)
	b.metrics.RecordPublish(sctx, evt.Type, string(evt.Metadata.Priority), delivered, duration)
	observability.LogPublish(b.logger, evt.ID, evt.Type, evt.TenantID, delivered, float64(duration.Milliseconds()))
	b.spans.EndSpanWithError(span, nil)
	return nil
}

// stamp assigns the event's ID and computed metadata.
func (b *Bus) stamp(evt Event) Event {
	cross := evt.IsCrossModule()
	evt.ID = uuid.New().String()
	evt.Metadata = Metadata{
		Timestamp:            b.now(),
		Priority:             b.classifier.Priority(evt.Type),
		RequiresSubscription: b.classifier.RequiresSubscription(evt.Type, cross),
		CrossModule:          cross,
	}
	return evt
}

// deliver invokes one handler with panic recovery. A panicking handler is
// reported as a delivery error, not allowed to take down the publish loop.
func (b *Bus) deliver(ctx context.Context, sub *Subscription, evt Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return sub.handler.Handle(ctx, evt)
}

// drop records a policy-level non-delivery.
func (b *Bus) drop(ctx context.Context, evt Event, rec audit.Record, reason string) {
	b.dropped.Add(1)
	b.metrics.RecordDrop(ctx, evt.Type, reason)
	observability.LogDrop(b.logger, evt.ID, evt.Type, evt.TenantID, reason)
	if err := b.recorder.RecordDropped(ctx, rec, reason); err != nil {
		observability.LogAuditError(b.logger, evt.ID, audit.OutcomeDropped, err)
	}
	if b.onDrop != nil {
		b.onDrop(evt, reason)
	}
}

// recordDeliveryError absorbs one handler failure: counted, logged,
// recorded, and reported to the delivery-error callback.
func (b *Bus) recordDeliveryError(ctx context.Context, evt Event, rec audit.Record, subscriptionID string, handlerErr error) {
	b.deliveryErrors.Add(1)
	b.metrics.RecordDeliveryError(ctx, evt.Type)
	observability.LogDeliveryError(b.logger, evt.ID, subscriptionID, handlerErr)
	if err := b.recorder.RecordDeliveryError(ctx, rec, subscriptionID, handlerErr); err != nil {
		observability.LogAuditError(b.logger, evt.ID, audit.OutcomeDeliveryError, err)
	}
	if b.onDeliveryError != nil {
		b.onDeliveryError(&DeliveryError{
			EventID:        evt.ID,
			EventType:      evt.Type,
			SubscriptionID: subscriptionID,
			Err:            handlerErr,
		})
	}
}

// auditRecord flattens a stamped event for the audit recorder.
func auditRecord(evt Event) audit.Record {
	return audit.Record{
		EventID:              evt.ID,
		EventType:            evt.Type,
		TenantID:             evt.TenantID,
		SourceModule:         evt.SourceModule,
		TargetModule:         evt.TargetModule,
		Priority:             string(evt.Metadata.Priority),
		CrossModule:          evt.Metadata.CrossModule,
		RequiresSubscription: evt.Metadata.RequiresSubscription,
		Timestamp:            evt.Metadata.Timestamp,
	}
}

// Subscribe registers a subscription after verifying that its source module
// (and target module, when set) are currently active for the tenant.
//
// A tenant without the required modules gets a *PermissionDeniedError
// (errors.Is ErrPermissionDenied); do not retry it without confirming the
// tenant's entitlements changed. If the entitlement source cannot be
// reached the error wraps ErrEntitlementUnavailable instead, and a retry
// once the source recovers is reasonable.
func (b *Bus) Subscribe(ctx context.Context, req SubscriptionRequest) (*Subscription, error) {
	if b.closed.Load() {
		return nil, ErrBusClosed
	}
	if err := req.validate(); err != nil {
		return nil, err
	}

	mods, err := b.cache.ActiveModules(ctx, req.TenantID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEntitlementUnavailable, err)
	}
	if !mods.Has(req.SourceModule) {
		return nil, &PermissionDeniedError{TenantID: req.TenantID, Module: req.SourceModule}
	}
	if req.TargetModule != "" && !mods.Has(req.TargetModule) {
		return nil, &PermissionDeniedError{TenantID: req.TenantID, Module: req.TargetModule}
	}

	sub := newSubscription(uuid.New().String(), req, b)

	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.byID[sub.id] = sub
	b.mu.Unlock()

	observability.LogSubscribe(b.logger, sub.id, req.TenantID, req.SourceModule, req.EventTypes)
	return sub, nil
}

// Unsubscribe removes a subscription by id. Removing an unknown id is a
// silent no-op, so collaborators can unsubscribe idempotently.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	sub, ok := b.byID[id]
	if !ok {
		b.mu.Unlock()
		return
	}
	delete(b.byID, id)
	for i, s := range b.subs {
		if s == sub {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			break
		}
	}
	b.mu.Unlock()

	observability.LogUnsubscribe(b.logger, id)
}

// EnableCrossModuleEvents reports whether events can currently flow from
// source to target for the tenant: the compatibility map must have an entry
// for the ordered pair, and both modules must be active per the entitlement
// cache. It is a capability check, not a mutation; it creates no
// subscription. A missing route or an unreachable entitlement source both
// report false so callers can branch on capability rather than handle an
// error path.
func (b *Bus) EnableCrossModuleEvents(ctx context.Context, source, target, tenantID string) bool {
	if b.closed.Load() {
		return false
	}
	if !b.tables.Load().compat.HasRoute(source, target) {
		return false
	}
	mods, err := b.cache.ActiveModules(ctx, tenantID)
	if err != nil {
		return false
	}
	return mods.Has(source) && mods.Has(target)
}

// ClearTenantCache evicts one tenant's cached entitlements, or every
// tenant's when tenantID is empty. Call it whenever a tenant's module
// purchases change so stale permissions cannot persist until TTL expiry.
func (b *Bus) ClearTenantCache(tenantID string) {
	if tenantID == "" {
		b.cache.InvalidateAll()
		return
	}
	b.cache.Invalidate(tenantID)
}

// SetTopology atomically swaps the capability registry and compatibility
// map. In-flight publishes keep the tables they loaded; subsequent
// publishes see the new topology.
func (b *Bus) SetTopology(cfg *topology.Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("bus topology: %w", err)
	}
	b.tables.Store(&routingTables{
		capabilities: NewCapabilityRegistry(cfg),
		compat:       NewCompatibilityMap(cfg),
	})
	return nil
}

// Subscription returns the registered subscription with the given id.
func (b *Bus) Subscription(id string) (*Subscription, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	sub, ok := b.byID[id]
	return sub, ok
}

// CacheStats returns the entitlement cache's effectiveness counters.
func (b *Bus) CacheStats() entitlement.CacheStats {
	return b.cache.Stats()
}

// Stats returns a snapshot of the bus's counters and the current module
// catalog.
func (b *Bus) Stats() Stats {
	b.mu.RLock()
	active := 0
	for _, sub := range b.subs {
		if sub.IsActive() {
			active++
		}
	}
	b.mu.RUnlock()

	return Stats{
		ActiveSubscriptions: active,
		TotalEvents:         b.totalEvents.Load(),
		Delivered:           b.delivered.Load(),
		Dropped:             b.dropped.Load(),
		DeliveryErrors:      b.deliveryErrors.Load(),
		UncataloguedEvents:  b.uncatalogued.Load(),
		ModuleEventTypes:    b.tables.Load().capabilities.Snapshot(),
	}
}

// Close shuts down the bus. Subsequent Publish and Subscribe calls return
// ErrBusClosed. Close does not close the injected audit recorder or
// broadcaster; their lifecycles belong to the caller.
func (b *Bus) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}

	b.mu.Lock()
	b.subs = nil
	b.byID = make(map[string]*Subscription)
	b.mu.Unlock()
	return nil
}
