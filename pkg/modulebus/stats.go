package modulebus

// Stats is a point-in-time observability snapshot of a bus.
type Stats struct {
	// ActiveSubscriptions counts registered subscriptions that are not
	// paused.
	ActiveSubscriptions int `json:"active_subscriptions"`

	// TotalEvents counts every event accepted by Publish, including ones
	// later dropped by policy.
	TotalEvents int64 `json:"total_events"`

	// Delivered counts successful handler invocations.
	Delivered int64 `json:"delivered"`

	// Dropped counts events declined by subscription policy.
	Dropped int64 `json:"dropped"`

	// DeliveryErrors counts handler failures (including recovered panics).
	DeliveryErrors int64 `json:"delivery_errors"`

	// UncataloguedEvents counts routed events whose type was not declared
	// for their source module in the capability registry.
	UncataloguedEvents int64 `json:"uncatalogued_events"`

	// ModuleEventTypes is the capability registry's current module ->
	// event types table.
	ModuleEventTypes map[string][]string `json:"module_event_types"`
}
