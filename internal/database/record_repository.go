package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/sirupsen/logrus"

	"github.com/irfndi/intelliinspect-go/internal/models"
	"github.com/irfndi/intelliinspect-go/pkg/interfaces"
)

// DatabasePool defines the interface for database pool operations.
// Both *pgxpool.Pool and pgxmock pools satisfy it.
type DatabasePool interface {
	// QueryRow executes a query that is expected to return at most one row.
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	// Exec executes a query without returning any rows.
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	// Query executes a query that returns rows.
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	// Begin starts a transaction.
	Begin(ctx context.Context) (pgx.Tx, error)
}

const recordsTable = "dataset_records"

var recordColumns = []string{
	"synthetic_timestamp", "response", "temperature", "pressure", "humidity", "additional_features",
}

// RecordRepository is the Postgres-backed record store.
type RecordRepository struct {
	pool   DatabasePool
	logger *logrus.Logger
}

var _ interfaces.RecordStore = (*RecordRepository)(nil)

// NewRecordRepository creates a new record repository.
func NewRecordRepository(pool DatabasePool, logger *logrus.Logger) *RecordRepository {
	if logger == nil {
		logger = logrus.New()
	}
	return &RecordRepository{pool: pool, logger: logger}
}

// BeginReplace opens a transaction that replaces the resident dataset.
// The generation row is locked first so concurrent replacements serialize.
func (r *RecordRepository) BeginReplace(ctx context.Context) (interfaces.DatasetWriter, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin replace transaction: %w", err)
	}

	var current int64
	err = tx.QueryRow(ctx, `SELECT generation FROM dataset_generation WHERE id = 1 FOR UPDATE`).Scan(&current)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		_ = tx.Rollback(ctx)
		return nil, fmt.Errorf("failed to lock dataset generation: %w", err)
	}

	return &recordWriter{tx: tx, logger: r.logger, started: time.Now()}, nil
}

// Count returns the number of resident records.
func (r *RecordRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM dataset_records`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return count, nil
}

// MinTimestamp returns the earliest synthetic timestamp.
func (r *RecordRepository) MinTimestamp(ctx context.Context) (time.Time, bool, error) {
	return r.boundTimestamp(ctx, `SELECT MIN(synthetic_timestamp) FROM dataset_records`)
}

// MaxTimestamp returns the latest synthetic timestamp.
func (r *RecordRepository) MaxTimestamp(ctx context.Context) (time.Time, bool, error) {
	return r.boundTimestamp(ctx, `SELECT MAX(synthetic_timestamp) FROM dataset_records`)
}

func (r *RecordRepository) boundTimestamp(ctx context.Context, query string) (time.Time, bool, error) {
	var ts pgtype.Timestamptz
	if err := r.pool.QueryRow(ctx, query).Scan(&ts); err != nil {
		return time.Time{}, false, fmt.Errorf("failed to read timestamp bound: %w", err)
	}
	if !ts.Valid {
		return time.Time{}, false, nil
	}
	return ts.Time.UTC(), true, nil
}

// CountInRange counts records whose timestamp lies in the closed window.
func (r *RecordRepository) CountInRange(ctx context.Context, window models.Window) (int64, error) {
	query := `SELECT COUNT(*) FROM dataset_records WHERE synthetic_timestamp BETWEEN $1 AND $2`

	var count int64
	if err := r.pool.QueryRow(ctx, query, window.Start.UTC(), window.End.UTC()).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count records in range: %w", err)
	}
	return count, nil
}

// ScanRange returns the window's records in (timestamp, id) order.
func (r *RecordRepository) ScanRange(ctx context.Context, q models.RangeQuery) ([]models.Record, error) {
	query, args := buildScanQuery(q)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to scan records: %w", err)
	}
	defer rows.Close()

	var records []models.Record
	for rows.Next() {
		var (
			record   models.Record
			features []byte
		)
		if err := rows.Scan(
			&record.ID,
			&record.Timestamp,
			&record.Label,
			&record.Temperature,
			&record.Pressure,
			&record.Humidity,
			&features,
		); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		record.Timestamp = record.Timestamp.UTC()
		if err := record.ExtraFeatures.UnmarshalJSON(features); err != nil {
			return nil, fmt.Errorf("failed to decode additional features of record %d: %w", record.ID, err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating records: %w", err)
	}

	return records, nil
}

func buildScanQuery(q models.RangeQuery) (string, []interface{}) {
	var sb strings.Builder
	sb.WriteString(`SELECT id, synthetic_timestamp, response, temperature, pressure, humidity, additional_features
		FROM dataset_records
		WHERE synthetic_timestamp BETWEEN $1 AND $2`)
	args := []interface{}{q.Window.Start.UTC(), q.Window.End.UTC()}

	if q.After != nil {
		args = append(args, q.After.Timestamp.UTC(), q.After.ID)
		fmt.Fprintf(&sb, ` AND (synthetic_timestamp, id) > ($%d, $%d)`, len(args)-1, len(args))
	}

	sb.WriteString(` ORDER BY synthetic_timestamp, id`)

	if q.Offset > 0 {
		args = append(args, q.Offset)
		fmt.Fprintf(&sb, ` OFFSET $%d`, len(args))
	}
	if q.Limit > 0 {
		args = append(args, q.Limit)
		fmt.Fprintf(&sb, ` LIMIT $%d`, len(args))
	}

	return sb.String(), args
}

// Generation returns the committed dataset generation.
func (r *RecordRepository) Generation(ctx context.Context) (int64, error) {
	var generation int64
	err := r.pool.QueryRow(ctx, `SELECT generation FROM dataset_generation WHERE id = 1`).Scan(&generation)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read dataset generation: %w", err)
	}
	return generation, nil
}

// recordWriter stages a replacement inside one transaction. Readers keep
// seeing the previous dataset until Commit.
type recordWriter struct {
	tx       pgx.Tx
	logger   *logrus.Logger
	started  time.Time
	inserted int64
	done     bool
}

func (w *recordWriter) ClearAll(ctx context.Context) error {
	tag, err := w.tx.Exec(ctx, `DELETE FROM dataset_records`)
	if err != nil {
		return fmt.Errorf("failed to clear records: %w", err)
	}
	w.logger.WithFields(logrus.Fields{
		"table":         recordsTable,
		"rows_affected": tag.RowsAffected(),
	}).Debug("Cleared previous dataset")
	return nil
}

func (w *recordWriter) InsertBatch(ctx context.Context, records []models.Record) error {
	if len(records) == 0 {
		return nil
	}

	rows := make([][]interface{}, 0, len(records))
	for _, rec := range records {
		features, err := rec.ExtraFeatures.MarshalJSON()
		if err != nil {
			return fmt.Errorf("failed to encode additional features: %w", err)
		}
		rows = append(rows, []interface{}{
			rec.Timestamp.UTC(),
			int16(rec.Label),
			rec.Temperature,
			rec.Pressure,
			rec.Humidity,
			string(features),
		})
	}

	copied, err := w.tx.CopyFrom(ctx, pgx.Identifier{recordsTable}, recordColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("failed to copy record batch: %w", err)
	}
	w.inserted += copied
	return nil
}

func (w *recordWriter) Commit(ctx context.Context) (int64, error) {
	if w.done {
		return 0, errors.New("dataset replacement already finished")
	}

	var generation int64
	err := w.tx.QueryRow(ctx, `
		INSERT INTO dataset_generation (id, generation, updated_at) VALUES (1, 1, NOW())
		ON CONFLICT (id) DO UPDATE SET generation = dataset_generation.generation + 1, updated_at = NOW()
		RETURNING generation`).Scan(&generation)
	if err != nil {
		_ = w.tx.Rollback(ctx)
		w.done = true
		return 0, fmt.Errorf("failed to bump dataset generation: %w", err)
	}

	if err := w.tx.Commit(ctx); err != nil {
		w.done = true
		return 0, fmt.Errorf("failed to commit dataset replacement: %w", err)
	}
	w.done = true

	w.logger.WithFields(logrus.Fields{
		"table":       recordsTable,
		"records":     w.inserted,
		"generation":  generation,
		"duration_ms": time.Since(w.started).Milliseconds(),
	}).Info("Dataset replacement committed")

	return generation, nil
}

func (w *recordWriter) Rollback(ctx context.Context) error {
	if w.done {
		return nil
	}
	w.done = true
	if err := w.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("failed to roll back dataset replacement: %w", err)
	}
	return nil
}
