package audit_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreflow360/modulebus/pkg/modulebus/audit"
)

func TestSQLiteLog_RoundTrip(t *testing.T) {
	log, err := audit.NewSQLiteLog(":memory:")
	require.NoError(t, err)
	defer log.Close()

	ctx := context.Background()
	require.NoError(t, log.RecordPublished(ctx, sampleRecord("e1", "t1"), 3))
	require.NoError(t, log.RecordDropped(ctx, sampleRecord("e2", "t1"), audit.ReasonInsufficientSubscription))
	require.NoError(t, log.RecordDeliveryError(ctx, sampleRecord("e3", "t1"), "sub-9", errors.New("boom")))

	entries, err := log.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	// Newest first.
	assert.Equal(t, "e3", entries[0].EventID)
	assert.Equal(t, audit.OutcomeDeliveryError, entries[0].Outcome)
	assert.Equal(t, "sub-9", entries[0].SubscriptionID)
	assert.Equal(t, "boom", entries[0].Reason)

	assert.Equal(t, "e2", entries[1].EventID)
	assert.Equal(t, audit.ReasonInsufficientSubscription, entries[1].Reason)

	assert.Equal(t, "e1", entries[2].EventID)
	assert.Equal(t, 3, entries[2].Delivered)
	assert.True(t, entries[2].CrossModule)
	assert.True(t, entries[2].RequiresSubscription)
	assert.Equal(t, "high", entries[2].Priority)
	assert.Equal(t, sampleRecord("e1", "t1").Timestamp, entries[2].Timestamp)
}

func TestSQLiteLog_Persistence(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "audit.db")

	log1, err := audit.NewSQLiteLog(dbPath)
	require.NoError(t, err)
	require.NoError(t, log1.RecordPublished(context.Background(), sampleRecord("e1", "t1"), 1))
	require.NoError(t, log1.Close())

	log2, err := audit.NewSQLiteLog(dbPath)
	require.NoError(t, err)
	defer log2.Close()

	count, err := log2.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSQLiteLog_ListByTenant(t *testing.T) {
	log, err := audit.NewSQLiteLog(":memory:")
	require.NoError(t, err)
	defer log.Close()

	ctx := context.Background()
	require.NoError(t, log.RecordPublished(ctx, sampleRecord("e1", "t1"), 1))
	require.NoError(t, log.RecordPublished(ctx, sampleRecord("e2", "t2"), 1))
	require.NoError(t, log.RecordPublished(ctx, sampleRecord("e3", "t1"), 1))

	entries, err := log.ListByTenant(ctx, "t1", 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "e3", entries[0].EventID)
	assert.Equal(t, "e1", entries[1].EventID)

	none, err := log.ListByTenant(ctx, "t9", 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSQLiteLog_CountByOutcome(t *testing.T) {
	log, err := audit.NewSQLiteLog(":memory:")
	require.NoError(t, err)
	defer log.Close()

	ctx := context.Background()
	require.NoError(t, log.RecordPublished(ctx, sampleRecord("e1", "t1"), 1))
	require.NoError(t, log.RecordDropped(ctx, sampleRecord("e2", "t1"), audit.ReasonEntitlementUnavailable))
	require.NoError(t, log.RecordDropped(ctx, sampleRecord("e3", "t1"), audit.ReasonInsufficientSubscription))

	counts, err := log.CountByOutcome(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[audit.OutcomePublished])
	assert.Equal(t, 2, counts[audit.OutcomeDropped])
}

func TestSQLiteLog_InvalidPath(t *testing.T) {
	_, err := audit.NewSQLiteLog("/nonexistent/path/audit.db")
	assert.Error(t, err)
}

func TestSQLiteLog_CloseIdempotent(t *testing.T) {
	log, err := audit.NewSQLiteLog(":memory:")
	require.NoError(t, err)

	assert.NoError(t, log.Close())
	assert.NoError(t, log.Close())

	err = log.RecordPublished(context.Background(), sampleRecord("e1", "t1"), 0)
	assert.ErrorIs(t, err, audit.ErrLogClosed)
}

func TestSQLiteLog_Concurrent(t *testing.T) {
	// A file-backed database so every pooled connection sees the same data.
	log, err := audit.NewSQLiteLog(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	defer log.Close()

	const numGoroutines = 20
	const numOps = 10

	ctx := context.Background()
	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func(id int) {
			defer wg.Done()

			tenant := "t-" + string(rune('a'+id%5))
			for j := 0; j < numOps; j++ {
				switch j % 3 {
				case 0, 1:
					_ = log.RecordPublished(ctx, sampleRecord("e", tenant), j)
				case 2:
					_, _ = log.ListByTenant(ctx, tenant, 5)
				}
			}
		}(i)
	}

	wg.Wait()

	count, err := log.Count(ctx)
	require.NoError(t, err)
	// j%3 in {0,1} inserts: 7 of the 10 ops per goroutine.
	assert.Equal(t, numGoroutines*7, count)
}
