package database

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irfndi/intelliinspect-go/internal/models"
)

func loadMemoryStore(t *testing.T, store *MemoryStore, records []models.Record) int64 {
	t.Helper()
	ctx := context.Background()

	writer, err := store.BeginReplace(ctx)
	require.NoError(t, err)
	require.NoError(t, writer.ClearAll(ctx))
	require.NoError(t, writer.InsertBatch(ctx, records))
	generation, err := writer.Commit(ctx)
	require.NoError(t, err)
	return generation
}

func TestMemoryStore_Empty(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	_, ok, err := store.MinTimestamp(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = store.MaxTimestamp(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	generation, err := store.Generation(ctx)
	require.NoError(t, err)
	assert.Zero(t, generation)
}

func TestMemoryStore_ReplaceAssignsIDsAndBounds(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	generation := loadMemoryStore(t, store, sampleRecords(5))
	assert.Equal(t, int64(1), generation)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), count)

	minTS, ok, err := store.MinTimestamp(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, testEpoch, minTS)

	maxTS, _, err := store.MaxTimestamp(ctx)
	require.NoError(t, err)
	assert.Equal(t, testEpoch.Add(4*time.Second), maxTS)

	all, err := store.ScanRange(ctx, models.RangeQuery{Window: models.Window{Start: minTS, End: maxTS}})
	require.NoError(t, err)
	require.Len(t, all, 5)
	for i, rec := range all {
		assert.Equal(t, int64(i+1), rec.ID)
	}
}

func TestMemoryStore_ReplaceDropsPreviousDataset(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	loadMemoryStore(t, store, sampleRecords(5))
	generation := loadMemoryStore(t, store, sampleRecords(2))
	assert.Equal(t, int64(2), generation)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	all, err := store.ScanRange(ctx, models.RangeQuery{Window: models.Window{Start: testEpoch, End: testEpoch.Add(time.Hour)}})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, int64(6), all[0].ID, "ids stay unique across replacements")
}

func TestMemoryStore_ReadersSeeOldDatasetUntilCommit(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	loadMemoryStore(t, store, sampleRecords(3))

	writer, err := store.BeginReplace(ctx)
	require.NoError(t, err)
	require.NoError(t, writer.ClearAll(ctx))
	require.NoError(t, writer.InsertBatch(ctx, sampleRecords(10)))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	_, err = writer.Commit(ctx)
	require.NoError(t, err)

	count, err = store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(10), count)
}

func TestMemoryStore_Rollback(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	loadMemoryStore(t, store, sampleRecords(3))

	writer, err := store.BeginReplace(ctx)
	require.NoError(t, err)
	require.NoError(t, writer.ClearAll(ctx))
	require.NoError(t, writer.Rollback(ctx))
	require.NoError(t, writer.Rollback(ctx))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	generation, err := store.Generation(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), generation)

	// the replace lock was released
	loadMemoryStore(t, store, sampleRecords(1))
}

func TestMemoryStore_WriterFinished(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	writer, err := store.BeginReplace(ctx)
	require.NoError(t, err)
	_, err = writer.Commit(ctx)
	require.NoError(t, err)

	assert.Error(t, writer.InsertBatch(ctx, sampleRecords(1)))
	_, err = writer.Commit(ctx)
	assert.Error(t, err)
	assert.NoError(t, writer.Rollback(ctx))
}

func TestMemoryStore_BeginReplaceHonoursContext(t *testing.T) {
	store := NewMemoryStore()

	writer, err := store.BeginReplace(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = store.BeginReplace(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, writer.Rollback(context.Background()))
}

func TestMemoryStore_CountInRange(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	loadMemoryStore(t, store, sampleRecords(10))

	tests := []struct {
		name   string
		window models.Window
		want   int64
	}{
		{"whole dataset", models.Window{Start: testEpoch, End: testEpoch.Add(9 * time.Second)}, 10},
		{"single instant", models.Window{Start: testEpoch.Add(3 * time.Second), End: testEpoch.Add(3 * time.Second)}, 1},
		{"inclusive bounds", models.Window{Start: testEpoch.Add(2 * time.Second), End: testEpoch.Add(5 * time.Second)}, 4},
		{"before dataset", models.Window{Start: testEpoch.Add(-time.Hour), End: testEpoch.Add(-time.Second)}, 0},
		{"inverted", models.Window{Start: testEpoch.Add(5 * time.Second), End: testEpoch}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			count, err := store.CountInRange(ctx, tt.window)
			require.NoError(t, err)
			assert.Equal(t, tt.want, count)
		})
	}
}

func TestMemoryStore_ScanRangeOffsetLimitAfter(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	loadMemoryStore(t, store, sampleRecords(10))

	window := models.Window{Start: testEpoch.Add(2 * time.Second), End: testEpoch.Add(7 * time.Second)}

	page, err := store.ScanRange(ctx, models.RangeQuery{Window: window, Offset: 1, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, testEpoch.Add(3*time.Second), page[0].Timestamp)
	assert.Equal(t, testEpoch.Add(4*time.Second), page[1].Timestamp)

	after := page[1].Key()
	next, err := store.ScanRange(ctx, models.RangeQuery{Window: window, Limit: 1, After: &after})
	require.NoError(t, err)
	require.Len(t, next, 1)
	assert.Equal(t, testEpoch.Add(5*time.Second), next[0].Timestamp)

	beyond, err := store.ScanRange(ctx, models.RangeQuery{Window: window, Offset: 6, Limit: 1})
	require.NoError(t, err)
	assert.Empty(t, beyond)
}

func TestMemoryStore_ConcurrentReadsDuringReplace(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	loadMemoryStore(t, store, sampleRecords(4))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				count, err := store.Count(ctx)
				assert.NoError(t, err)
				assert.Contains(t, []int64{4, 8}, count)
			}
		}()
	}

	loadMemoryStore(t, store, sampleRecords(8))
	wg.Wait()
}
