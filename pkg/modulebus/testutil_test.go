package modulebus_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/coreflow360/modulebus/pkg/modulebus"
	"github.com/coreflow360/modulebus/pkg/modulebus/audit"
	"github.com/coreflow360/modulebus/pkg/modulebus/entitlement"
)

// fakeSource is a mutable, call-counting entitlement backend standing in
// for the module manager.
type fakeSource struct {
	mu      sync.Mutex
	modules map[string][]string
	err     error
	calls   atomic.Int64
}

func newFakeSource() *fakeSource {
	return &fakeSource{modules: make(map[string][]string)}
}

// grant replaces a tenant's active modules. Callers that changed
// entitlements mid-test must also clear the bus's tenant cache, exactly as
// the entitlement-change collaborator would in production.
func (s *fakeSource) grant(tenantID string, modules ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.modules[tenantID] = modules
}

// fail makes every lookup return err until called with nil.
func (s *fakeSource) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *fakeSource) ActiveModules(_ context.Context, tenantID string) (entitlement.ModuleSet, error) {
	s.calls.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return entitlement.NewModuleSet(s.modules[tenantID]...), nil
}

// newTestBus builds a bus over the source with an in-memory audit log.
func newTestBus(t *testing.T, src entitlement.Source, opts ...modulebus.Option) (*modulebus.Bus, *audit.MemoryLog) {
	t.Helper()
	log := audit.NewMemoryLog(0)
	opts = append([]modulebus.Option{modulebus.WithAuditRecorder(log)}, opts...)
	bus, err := modulebus.New(src, opts...)
	if err != nil {
		t.Fatalf("new bus: %v", err)
	}
	t.Cleanup(func() { bus.Close() })
	return bus, log
}

// countHandler returns a handler that counts invocations.
func countHandler(n *atomic.Int32) modulebus.HandlerFunc {
	return func(_ context.Context, _ modulebus.Event) error {
		n.Add(1)
		return nil
	}
}

// mustSubscribe registers a subscription or fails the test.
func mustSubscribe(t *testing.T, bus *modulebus.Bus, req modulebus.SubscriptionRequest) *modulebus.Subscription {
	t.Helper()
	sub, err := bus.Subscribe(context.Background(), req)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	return sub
}
