package interfaces

import (
	"context"
	"time"

	"github.com/irfndi/intelliinspect-go/internal/models"
)

// RecordStore is the ordered record store behind ingestion, validation and replay.
//
// At most one dataset is resident at a time. A dataset is replaced through a
// DatasetWriter; readers observe either the previous dataset or the committed
// new one, never a partial mix.
type RecordStore interface {
	// BeginReplace opens a replacement of the resident dataset.
	BeginReplace(ctx context.Context) (DatasetWriter, error)
	// Count returns the number of resident records.
	Count(ctx context.Context) (int64, error)
	// MinTimestamp returns the earliest timestamp; ok is false when the store is empty.
	MinTimestamp(ctx context.Context) (ts time.Time, ok bool, err error)
	// MaxTimestamp returns the latest timestamp; ok is false when the store is empty.
	MaxTimestamp(ctx context.Context) (ts time.Time, ok bool, err error)
	// CountInRange counts records with timestamp in [window.Start, window.End].
	CountInRange(ctx context.Context, window models.Window) (int64, error)
	// ScanRange returns records of q.Window in ascending (timestamp, id) order.
	ScanRange(ctx context.Context, q models.RangeQuery) ([]models.Record, error)
	// Generation returns the counter bumped by every committed replacement.
	Generation(ctx context.Context) (int64, error)
}

// DatasetWriter stages a replacement dataset.
type DatasetWriter interface {
	// ClearAll drops every record of the previous dataset from the staged view.
	ClearAll(ctx context.Context) error
	// InsertBatch appends records; ids are assigned by the store.
	InsertBatch(ctx context.Context, records []models.Record) error
	// Commit publishes the staged dataset and returns its generation.
	Commit(ctx context.Context) (int64, error)
	// Rollback discards the staged dataset. Safe to call after Commit.
	Rollback(ctx context.Context) error
}
