package observability

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureHandler collects log records as attribute maps for assertions.
type captureHandler struct {
	mu      *sync.Mutex
	records *[]map[string]any
	attrs   []slog.Attr
}

func newCaptureHandler() *captureHandler {
	return &captureHandler{
		mu:      &sync.Mutex{},
		records: &[]map[string]any{},
	}
}

func (h *captureHandler) Enabled(_ context.Context, _ slog.Level) bool {
	return true
}

func (h *captureHandler) Handle(_ context.Context, r slog.Record) error {
	data := map[string]any{
		"level": r.Level.String(),
		"msg":   r.Message,
	}
	for _, attr := range h.attrs {
		data[attr.Key] = attr.Value.Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		data[a.Key] = a.Value.Any()
		return true
	})

	h.mu.Lock()
	defer h.mu.Unlock()
	*h.records = append(*h.records, data)
	return nil
}

func (h *captureHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &captureHandler{mu: h.mu, records: h.records, attrs: merged}
}

func (h *captureHandler) WithGroup(_ string) slog.Handler {
	return h
}

func (h *captureHandler) last() map[string]any {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(*h.records) == 0 {
		return nil
	}
	return (*h.records)[len(*h.records)-1]
}

func TestEnrichLogger(t *testing.T) {
	t.Run("adds event_id, event_type, and tenant_id", func(t *testing.T) {
		h := newCaptureHandler()
		logger := slog.New(h)

		enriched := EnrichLogger(logger, "evt-123", "deal.won", "tenant-a")
		enriched.Info("test message")

		record := h.last()
		require.NotNil(t, record)
		assert.Equal(t, "evt-123", record["event_id"])
		assert.Equal(t, "deal.won", record["event_type"])
		assert.Equal(t, "tenant-a", record["tenant_id"])
		assert.Equal(t, "test message", record["msg"])
	})

	t.Run("nil logger returns nil", func(t *testing.T) {
		enriched := EnrichLogger(nil, "evt-123", "deal.won", "tenant-a")
		assert.Nil(t, enriched)
	})

	t.Run("empty values are included", func(t *testing.T) {
		h := newCaptureHandler()
		logger := slog.New(h)

		enriched := EnrichLogger(logger, "", "", "")
		enriched.Info("test")

		record := h.last()
		require.NotNil(t, record)
		assert.Equal(t, "", record["event_id"])
		assert.Equal(t, "", record["event_type"])
		assert.Equal(t, "", record["tenant_id"])
	})
}

func TestLogPublish(t *testing.T) {
	t.Run("logs delivery count at INFO level", func(t *testing.T) {
		h := newCaptureHandler()
		logger := slog.New(h)

		LogPublish(logger, "evt-1", "deal.won", "tenant-a", 3, 12.5)

		record := h.last()
		require.NotNil(t, record)
		assert.Equal(t, "INFO", record["level"])
		assert.Equal(t, "event published", record["msg"])
		assert.Equal(t, "evt-1", record["event_id"])
		assert.Equal(t, "deal.won", record["event_type"])
		assert.Equal(t, "tenant-a", record["tenant_id"])
		assert.Equal(t, int64(3), record["delivered"])
		assert.Equal(t, 12.5, record["duration_ms"])
	})

	t.Run("nil logger does not panic", func(t *testing.T) {
		assert.NotPanics(t, func() {
			LogPublish(nil, "evt-1", "deal.won", "tenant-a", 0, 0)
		})
	})
}

func TestLogDrop(t *testing.T) {
	t.Run("logs at WARN level with reason", func(t *testing.T) {
		h := newCaptureHandler()
		logger := slog.New(h)

		LogDrop(logger, "evt-2", "analytics.generated", "tenant-b", "insufficient_subscription")

		record := h.last()
		require.NotNil(t, record)
		assert.Equal(t, "WARN", record["level"])
		assert.Equal(t, "event dropped", record["msg"])
		assert.Equal(t, "evt-2", record["event_id"])
		assert.Equal(t, "analytics.generated", record["event_type"])
		assert.Equal(t, "tenant-b", record["tenant_id"])
		assert.Equal(t, "insufficient_subscription", record["reason"])
	})

	t.Run("nil logger does not panic", func(t *testing.T) {
		assert.NotPanics(t, func() {
			LogDrop(nil, "evt", "type", "tenant", "reason")
		})
	})
}

func TestLogDeliveryError(t *testing.T) {
	t.Run("logs at ERROR level", func(t *testing.T) {
		h := newCaptureHandler()
		logger := slog.New(h)
		testErr := errors.New("handler exploded")

		LogDeliveryError(logger, "evt-3", "sub-9", testErr)

		record := h.last()
		require.NotNil(t, record)
		assert.Equal(t, "ERROR", record["level"])
		assert.Equal(t, "handler delivery failed", record["msg"])
		assert.Equal(t, "evt-3", record["event_id"])
		assert.Equal(t, "sub-9", record["subscription_id"])
		assert.Equal(t, "handler exploded", record["error"])
	})

	t.Run("nil logger does not panic", func(t *testing.T) {
		assert.NotPanics(t, func() {
			LogDeliveryError(nil, "evt", "sub", errors.New("err"))
		})
	})
}

func TestLogSubscribe(t *testing.T) {
	t.Run("logs at DEBUG level", func(t *testing.T) {
		h := newCaptureHandler()
		logger := slog.New(h)

		LogSubscribe(logger, "sub-1", "tenant-a", "crm", []string{"deal.won", "deal.lost"})

		record := h.last()
		require.NotNil(t, record)
		assert.Equal(t, "DEBUG", record["level"])
		assert.Equal(t, "subscription registered", record["msg"])
		assert.Equal(t, "sub-1", record["subscription_id"])
		assert.Equal(t, "tenant-a", record["tenant_id"])
		assert.Equal(t, "crm", record["source_module"])
		assert.Equal(t, []string{"deal.won", "deal.lost"}, record["event_types"])
	})

	t.Run("nil logger does not panic", func(t *testing.T) {
		assert.NotPanics(t, func() {
			LogSubscribe(nil, "sub", "tenant", "crm", nil)
		})
	})
}

func TestLogUnsubscribe(t *testing.T) {
	t.Run("logs subscription id", func(t *testing.T) {
		h := newCaptureHandler()
		logger := slog.New(h)

		LogUnsubscribe(logger, "sub-2")

		record := h.last()
		require.NotNil(t, record)
		assert.Equal(t, "DEBUG", record["level"])
		assert.Equal(t, "subscription removed", record["msg"])
		assert.Equal(t, "sub-2", record["subscription_id"])
	})

	t.Run("nil logger does not panic", func(t *testing.T) {
		assert.NotPanics(t, func() {
			LogUnsubscribe(nil, "sub")
		})
	})
}

func TestLogUncataloguedType(t *testing.T) {
	t.Run("logs at WARN level", func(t *testing.T) {
		h := newCaptureHandler()
		logger := slog.New(h)

		LogUncataloguedType(logger, "mystery.event", "crm")

		record := h.last()
		require.NotNil(t, record)
		assert.Equal(t, "WARN", record["level"])
		assert.Equal(t, "event type not in module catalog", record["msg"])
		assert.Equal(t, "mystery.event", record["event_type"])
		assert.Equal(t, "crm", record["source_module"])
	})

	t.Run("nil logger does not panic", func(t *testing.T) {
		assert.NotPanics(t, func() {
			LogUncataloguedType(nil, "type", "module")
		})
	})
}

func TestLogBroadcastError(t *testing.T) {
	t.Run("logs at WARN level", func(t *testing.T) {
		h := newCaptureHandler()
		logger := slog.New(h)
		testErr := errors.New("channel closed")

		LogBroadcastError(logger, "evt-4", testErr)

		record := h.last()
		require.NotNil(t, record)
		assert.Equal(t, "WARN", record["level"])
		assert.Equal(t, "broadcast failed", record["msg"])
		assert.Equal(t, "evt-4", record["event_id"])
		assert.Equal(t, "channel closed", record["error"])
	})

	t.Run("nil logger does not panic", func(t *testing.T) {
		assert.NotPanics(t, func() {
			LogBroadcastError(nil, "evt", errors.New("err"))
		})
	})
}

func TestLogAuditError(t *testing.T) {
	t.Run("logs at WARN level with operation", func(t *testing.T) {
		h := newCaptureHandler()
		logger := slog.New(h)
		testErr := errors.New("disk full")

		LogAuditError(logger, "evt-5", "record_published", testErr)

		record := h.last()
		require.NotNil(t, record)
		assert.Equal(t, "WARN", record["level"])
		assert.Equal(t, "audit record failed", record["msg"])
		assert.Equal(t, "evt-5", record["event_id"])
		assert.Equal(t, "record_published", record["operation"])
		assert.Equal(t, "disk full", record["error"])
	})

	t.Run("nil logger does not panic", func(t *testing.T) {
		assert.NotPanics(t, func() {
			LogAuditError(nil, "evt", "op", errors.New("err"))
		})
	})
}

func TestTimedOperation(t *testing.T) {
	t.Run("measures duration", func(t *testing.T) {
		done := TimedOperation()
		time.Sleep(10 * time.Millisecond)
		duration := done()

		// Should be at least 10ms
		assert.GreaterOrEqual(t, duration, 10.0)
		// Should be less than 100ms (reasonable upper bound)
		assert.Less(t, duration, 100.0)
	})

	t.Run("returns zero for immediate call", func(t *testing.T) {
		done := TimedOperation()
		duration := done()

		// Should be very small (less than 1ms)
		assert.Less(t, duration, 1.0)
	})

	t.Run("can be called multiple times", func(t *testing.T) {
		done := TimedOperation()
		time.Sleep(5 * time.Millisecond)
		d1 := done()
		time.Sleep(5 * time.Millisecond)
		d2 := done()

		// Second call should have larger duration
		assert.Greater(t, d2, d1)
	})
}
