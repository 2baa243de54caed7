package audit

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLiteLog persists audit entries to SQLite.
// It is suitable for single-process production use.
type SQLiteLog struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// Compile-time interface check.
var _ Recorder = (*SQLiteLog)(nil)

// NewSQLiteLog creates a SQLite-backed audit log.
// The path should be a file path (e.g., "./audit.db") or ":memory:" for testing.
func NewSQLiteLog(path string) (*SQLiteLog, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Enable WAL mode for better concurrent read performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS audit_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			event_id TEXT NOT NULL,
			event_type TEXT NOT NULL,
			tenant_id TEXT NOT NULL,
			source_module TEXT NOT NULL,
			target_module TEXT NOT NULL DEFAULT '',
			priority TEXT NOT NULL,
			cross_module INTEGER NOT NULL,
			requires_subscription INTEGER NOT NULL,
			event_timestamp TEXT NOT NULL,
			outcome TEXT NOT NULL,
			reason TEXT NOT NULL DEFAULT '',
			subscription_id TEXT NOT NULL DEFAULT '',
			delivered INTEGER NOT NULL DEFAULT 0,
			recorded_at TEXT NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}

	if _, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_audit_events_tenant
		ON audit_events(tenant_id)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tenant index: %w", err)
	}

	if _, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_audit_events_outcome
		ON audit_events(outcome)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create outcome index: %w", err)
	}

	return &SQLiteLog{db: db}, nil
}

// RecordPublished implements Recorder.
func (s *SQLiteLog) RecordPublished(ctx context.Context, rec Record, delivered int) error {
	return s.insert(ctx, Entry{
		Record:    rec,
		Outcome:   OutcomePublished,
		Delivered: delivered,
	})
}

// RecordDropped implements Recorder.
func (s *SQLiteLog) RecordDropped(ctx context.Context, rec Record, reason string) error {
	return s.insert(ctx, Entry{
		Record:  rec,
		Outcome: OutcomeDropped,
		Reason:  reason,
	})
}

// RecordDeliveryError implements Recorder.
func (s *SQLiteLog) RecordDeliveryError(ctx context.Context, rec Record, subscriptionID string, handlerErr error) error {
	return s.insert(ctx, Entry{
		Record:         rec,
		Outcome:        OutcomeDeliveryError,
		Reason:         handlerErr.Error(),
		SubscriptionID: subscriptionID,
	})
}

func (s *SQLiteLog) insert(ctx context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrLogClosed
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_events (
			event_id, event_type, tenant_id, source_module, target_module,
			priority, cross_module, requires_subscription, event_timestamp,
			outcome, reason, subscription_id, delivered, recorded_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		e.EventID, e.EventType, e.TenantID, e.SourceModule, e.TargetModule,
		e.Priority, boolToInt(e.CrossModule), boolToInt(e.RequiresSubscription),
		e.Timestamp.UTC().Format(time.RFC3339Nano),
		e.Outcome, e.Reason, e.SubscriptionID, e.Delivered,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// List returns the most recent entries, newest first, up to limit.
func (s *SQLiteLog) List(ctx context.Context, limit int) ([]Entry, error) {
	return s.query(ctx, `
		SELECT event_id, event_type, tenant_id, source_module, target_module,
			priority, cross_module, requires_subscription, event_timestamp,
			outcome, reason, subscription_id, delivered, recorded_at
		FROM audit_events
		ORDER BY id DESC
		LIMIT ?
	`, limit)
}

// ListByTenant returns the most recent entries for one tenant, newest first.
func (s *SQLiteLog) ListByTenant(ctx context.Context, tenantID string, limit int) ([]Entry, error) {
	return s.query(ctx, `
		SELECT event_id, event_type, tenant_id, source_module, target_module,
			priority, cross_module, requires_subscription, event_timestamp,
			outcome, reason, subscription_id, delivered, recorded_at
		FROM audit_events
		WHERE tenant_id = ?
		ORDER BY id DESC
		LIMIT ?
	`, tenantID, limit)
}

func (s *SQLiteLog) query(ctx context.Context, q string, args ...any) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrLogClosed
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var crossModule, requiresSubscription int
		var eventTS, recordedAt string
		if err := rows.Scan(
			&e.EventID, &e.EventType, &e.TenantID, &e.SourceModule, &e.TargetModule,
			&e.Priority, &crossModule, &requiresSubscription, &eventTS,
			&e.Outcome, &e.Reason, &e.SubscriptionID, &e.Delivered, &recordedAt,
		); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		e.CrossModule = crossModule != 0
		e.RequiresSubscription = requiresSubscription != 0
		e.Timestamp, _ = time.Parse(time.RFC3339Nano, eventTS)
		e.RecordedAt, _ = time.Parse(time.RFC3339Nano, recordedAt)
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}

	return entries, nil
}

// Count returns the total number of stored entries.
func (s *SQLiteLog) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, ErrLogClosed
	}

	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_events`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count audit entries: %w", err)
	}
	return count, nil
}

// CountByOutcome returns entry counts grouped by outcome.
func (s *SQLiteLog) CountByOutcome(ctx context.Context) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrLogClosed
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT outcome, COUNT(*) FROM audit_events GROUP BY outcome
	`)
	if err != nil {
		return nil, fmt.Errorf("count by outcome: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var outcome string
		var n int
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, fmt.Errorf("scan outcome count: %w", err)
		}
		counts[outcome] = n
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outcome counts: %w", err)
	}

	return counts, nil
}

// Close releases the database handle.
func (s *SQLiteLog) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
