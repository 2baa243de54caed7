// Package broadcast re-emits routed bus events on process-wide pub/sub
// topics, one keyed by event type and one by source module.
//
// The topics serve ad hoc operational listeners (debug taps, live
// dashboards, export tooling), not module-to-module delivery; formal
// delivery goes through bus subscriptions. Built on watermill's gochannel
// so listeners get standard watermill messages and a later move to a
// distributed broker stays an adapter swap.
package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/coreflow360/modulebus/pkg/modulebus"
)

// Topic prefixes for the two broadcast channels.
const (
	eventTopicPrefix  = "events."
	moduleTopicPrefix = "modules."
)

// Metadata keys set on every broadcast message.
const (
	MetaEventID      = "event_id"
	MetaEventType    = "event_type"
	MetaTenantID     = "tenant_id"
	MetaSourceModule = "source_module"
)

// EventTopic returns the topic carrying all events of one type.
func EventTopic(eventType string) string {
	return eventTopicPrefix + eventType
}

// ModuleTopic returns the topic carrying all events from one source module.
func ModuleTopic(sourceModule string) string {
	return moduleTopicPrefix + sourceModule
}

// Config configures an in-process dispatcher.
type Config struct {
	// BufferSize is the output channel buffer per subscriber.
	// Default: 256
	BufferSize int64

	// Logger receives watermill's internal diagnostics (optional).
	Logger *slog.Logger
}

// DefaultConfig provides reasonable defaults.
var DefaultConfig = Config{
	BufferSize: 256,
}

// Dispatcher publishes each bus event to its two broadcast topics. It
// implements modulebus.Broadcaster; wire it in with
// modulebus.WithBroadcaster.
type Dispatcher struct {
	pubsub *gochannel.GoChannel
}

// Compile-time interface check.
var _ modulebus.Broadcaster = (*Dispatcher)(nil)

// NewInProcess creates a dispatcher over an in-process gochannel pub/sub.
func NewInProcess(cfg Config) *Dispatcher {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultConfig.BufferSize
	}

	var logger watermill.LoggerAdapter = watermill.NopLogger{}
	if cfg.Logger != nil {
		logger = watermill.NewSlogLogger(cfg.Logger)
	}

	return &Dispatcher{
		pubsub: gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: cfg.BufferSize,
		}, logger),
	}
}

// Broadcast implements modulebus.Broadcaster. The event is JSON-encoded
// once and published to both topics; message metadata carries the event's
// routing fields so listeners can filter without unmarshalling.
func (d *Dispatcher) Broadcast(ctx context.Context, evt modulebus.Event) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("broadcast: marshal event %s: %w", evt.ID, err)
	}

	for _, topic := range []string{EventTopic(evt.Type), ModuleTopic(evt.SourceModule)} {
		msg := message.NewMessage(watermill.NewUUID(), payload)
		msg.Metadata.Set(MetaEventID, evt.ID)
		msg.Metadata.Set(MetaEventType, evt.Type)
		msg.Metadata.Set(MetaTenantID, evt.TenantID)
		msg.Metadata.Set(MetaSourceModule, evt.SourceModule)
		msg.SetContext(ctx)

		if err := d.pubsub.Publish(topic, msg); err != nil {
			return fmt.Errorf("broadcast: publish to %s: %w", topic, err)
		}
	}
	return nil
}

// Listen subscribes to one topic. Use EventTopic or ModuleTopic to name it.
// Messages must be Acked or Nacked by the listener.
func (d *Dispatcher) Listen(ctx context.Context, topic string) (<-chan *message.Message, error) {
	return d.pubsub.Subscribe(ctx, topic)
}

// Subscriber exposes the underlying pub/sub for listeners that want to use
// watermill routers or middleware directly.
func (d *Dispatcher) Subscriber() message.Subscriber {
	return d.pubsub
}

// Decode unmarshals a broadcast message back into the bus event it carries.
func Decode(msg *message.Message) (modulebus.Event, error) {
	var evt modulebus.Event
	if err := json.Unmarshal(msg.Payload, &evt); err != nil {
		return modulebus.Event{}, fmt.Errorf("broadcast: decode message %s: %w", msg.UUID, err)
	}
	return evt, nil
}

// Close shuts down the pub/sub and all listener channels.
func (d *Dispatcher) Close() error {
	return d.pubsub.Close()
}
