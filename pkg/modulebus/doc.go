/*
Package modulebus provides a subscription-aware event bus for multi-tenant
module suites.

# Overview

modulebus routes domain events between feature modules (CRM, Accounting,
HR, Inventory, Projects, Marketing) in a system where each tenant purchases
modules independently. Delivery is gated on entitlements: an event only
reaches a subscription if the tenant has the involved modules active at
publish time.

The bus is an in-process library with no wire protocol of its own. Its one
inbound dependency is an entitlement.Source answering "which modules are
active for this tenant", supplied by the module-manager collaborator and
wrapped in a TTL cache.

# Basic Usage

Construct one bus per process and pass it by reference:

	source := entitlement.SourceFunc(func(ctx context.Context, tenantID string) (entitlement.ModuleSet, error) {
	    return moduleManager.ActiveModules(ctx, tenantID)
	})

	bus, err := modulebus.New(source)
	if err != nil {
	    log.Fatal(err)
	}
	defer bus.Close()

	sub, err := bus.Subscribe(ctx, modulebus.SubscriptionRequest{
	    TenantID:     "t1",
	    SourceModule: "crm",
	    TargetModule: "accounting",
	    EventTypes:   []string{"deal.won"},
	    Handler: modulebus.HandlerFunc(func(ctx context.Context, evt modulebus.Event) error {
	        return createInvoice(ctx, evt)
	    }),
	})
	if err != nil {
	    log.Fatal(err) // e.g. ErrPermissionDenied
	}
	defer sub.Unsubscribe()

	err = bus.Publish(ctx, modulebus.Event{
	    Type:         "deal.won",
	    SourceModule: "crm",
	    TargetModule: "accounting",
	    TenantID:     "t1",
	    Payload:      deal,
	})

# Routing

Publish stamps each event with an ID and computed metadata (timestamp,
priority, cross-module flag, subscription requirement), then:

 1. Cross-module and high-value events are checked against the tenant's
    active modules. Failing the check drops the event: no handler runs, the
    drop is recorded to the audit recorder with a reason, and Publish
    returns nil. A drop is a policy outcome, not a publisher error.
 2. Matching subscriptions are invoked sequentially in registration order.
    A handler error or panic is isolated: it is recorded and the remaining
    handlers still run. There are no retries; events are facts, not
    commands.
 3. The outcome is recorded for audit, and the event is re-emitted on
    process-wide broadcast topics for operational listeners.

Priorities and the subscription requirement come from the Classifier's rule
tables, which are plain data: override them with WithClassifier to tune
routing without touching the pipeline.

# Topology

The capability registry (module -> event types it may emit) and the
compatibility map (ordered module pair -> event types allowed to cross) are
built from a topology.Config. The built-in topology covers the standard
six-module suite; load custom topologies from YAML and hot-reload them:

	loader, err := topology.NewLoader("topology.yaml")
	if err != nil {
	    log.Fatal(err)
	}
	loader.OnChange(func(cfg *topology.Config) {
	    if err := bus.SetTopology(cfg); err != nil {
	        log.Printf("topology rejected: %v", err)
	    }
	})
	stop, err := loader.Watch()

The capability registry is advisory: publishing an uncatalogued type is
routed normally, logged at Warn, and counted in Stats.

# Entitlements

Tenant entitlements are cached with a TTL (default 2 minutes) and
single-flight refresh. When a tenant's purchases change, call
ClearTenantCache so stale permissions cannot persist past the explicit
invalidation:

	bus.ClearTenantCache("t1") // one tenant
	bus.ClearTenantCache("")   // every tenant

If the entitlement source is flaky, wrap it in
entitlement.NewCircuitSource so lookups fail fast while it recovers. The
bus fails closed: an event that cannot be entitlement-checked is dropped,
never delivered unverified.

# Errors

Subscribe is the only operation with entitlement-visible failures:

	_, err := bus.Subscribe(ctx, req)
	if errors.Is(err, modulebus.ErrPermissionDenied) {
	    // tenant lacks a module; do not retry until entitlements change
	}
	if errors.Is(err, modulebus.ErrEntitlementUnavailable) {
	    // transient: the module manager could not be reached
	}

Publish returns only validation errors and ErrBusClosed. Handler failures
become DeliveryError values observable through the audit recorder, the
WithDeliveryErrorHandler callback, and Stats.

# Thread Safety

  - Bus is safe for concurrent use; Subscribe/Unsubscribe are atomic with
    respect to concurrent Publish scans.
  - Subscription handles are safe for concurrent use.
  - Handlers must tolerate concurrent invocation from different events; no
    ordering exists between concurrently published events.

# Subpackages

  - entitlement: tenant entitlement cache over the module-manager source
  - audit: publish-outcome recorders (memory, SQLite)
  - broadcast: watermill-based process-wide re-emit topics
  - topology: YAML module/route configuration with hot reload
  - observability: logging, metrics, and tracing helpers
*/
package modulebus
