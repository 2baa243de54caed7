package audit

import (
	"context"
	"sync"
	"time"
)

// DefaultMemoryCapacity bounds an in-memory log when no capacity is given.
const DefaultMemoryCapacity = 4096

// MemoryLog keeps the most recent audit entries in memory. Oldest entries
// are discarded once the capacity is reached. Suitable for tests and for
// processes that only need a recent window for diagnostics.
type MemoryLog struct {
	mu      sync.RWMutex
	entries []Entry
	max     int
	closed  bool
	now     func() time.Time
}

// Compile-time interface check.
var _ Recorder = (*MemoryLog)(nil)

// NewMemoryLog creates an in-memory audit log keeping at most capacity
// entries. A non-positive capacity uses DefaultMemoryCapacity.
func NewMemoryLog(capacity int) *MemoryLog {
	if capacity <= 0 {
		capacity = DefaultMemoryCapacity
	}
	return &MemoryLog{
		max: capacity,
		now: time.Now,
	}
}

// RecordPublished implements Recorder.
func (m *MemoryLog) RecordPublished(_ context.Context, rec Record, delivered int) error {
	return m.append(Entry{
		Record:    rec,
		Outcome:   OutcomePublished,
		Delivered: delivered,
	})
}

// RecordDropped implements Recorder.
func (m *MemoryLog) RecordDropped(_ context.Context, rec Record, reason string) error {
	return m.append(Entry{
		Record:  rec,
		Outcome: OutcomeDropped,
		Reason:  reason,
	})
}

// RecordDeliveryError implements Recorder.
func (m *MemoryLog) RecordDeliveryError(_ context.Context, rec Record, subscriptionID string, handlerErr error) error {
	return m.append(Entry{
		Record:         rec,
		Outcome:        OutcomeDeliveryError,
		Reason:         handlerErr.Error(),
		SubscriptionID: subscriptionID,
	})
}

func (m *MemoryLog) append(e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrLogClosed
	}

	e.RecordedAt = m.now()
	m.entries = append(m.entries, e)
	if len(m.entries) > m.max {
		m.entries = m.entries[len(m.entries)-m.max:]
	}
	return nil
}

// Entries returns a copy of all retained entries, oldest first.
func (m *MemoryLog) Entries() []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}

// EntriesByTenant returns retained entries for one tenant, oldest first.
func (m *MemoryLog) EntriesByTenant(tenantID string) []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Entry
	for _, e := range m.entries {
		if e.TenantID == tenantID {
			out = append(out, e)
		}
	}
	return out
}

// CountByOutcome returns retained entry counts grouped by outcome.
func (m *MemoryLog) CountByOutcome() map[string]int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	counts := make(map[string]int)
	for _, e := range m.entries {
		counts[e.Outcome]++
	}
	return counts
}

// Len returns the number of retained entries.
func (m *MemoryLog) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Close marks the log closed; further records return ErrLogClosed.
func (m *MemoryLog) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.entries = nil
	return nil
}
