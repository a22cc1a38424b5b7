package database

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracedDB wraps a DatabasePool and records a client span per statement.
type TracedDB struct {
	pool   DatabasePool
	tracer trace.Tracer
}

var _ DatabasePool = (*TracedDB)(nil)

// NewTracedDB creates a new traced database pool.
func NewTracedDB(pool DatabasePool, tracer trace.Tracer) *TracedDB {
	return &TracedDB{pool: pool, tracer: tracer}
}

func (db *TracedDB) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	ctx, span := startDBSpan(ctx, db.tracer, "Query", sql)
	defer span.End()

	rows, err := db.pool.Query(ctx, sql, args...)
	RecordDatabaseError(span, err)
	return rows, err
}

func (db *TracedDB) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	ctx, span := startDBSpan(ctx, db.tracer, "QueryRow", sql)
	return &tracedRow{row: db.pool.QueryRow(ctx, sql, args...), span: span}
}

func (db *TracedDB) Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	ctx, span := startDBSpan(ctx, db.tracer, "Exec", sql)
	defer span.End()

	tag, err := db.pool.Exec(ctx, sql, args...)
	AddDatabaseSpanAttributes(span, "", tag.RowsAffected())
	RecordDatabaseError(span, err)
	return tag, err
}

func (db *TracedDB) Begin(ctx context.Context) (pgx.Tx, error) {
	ctx, span := db.tracer.Start(ctx, "db.Begin", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	tx, err := db.pool.Begin(ctx)
	RecordDatabaseError(span, err)
	if err != nil {
		return nil, err
	}
	return &TracedTx{Tx: tx, tracer: db.tracer}, nil
}

// TracedTx wraps a transaction; methods not overridden go straight to Tx.
type TracedTx struct {
	pgx.Tx
	tracer trace.Tracer
}

func (tx *TracedTx) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	ctx, span := startDBSpan(ctx, tx.tracer, "Tx.Query", sql)
	defer span.End()

	rows, err := tx.Tx.Query(ctx, sql, args...)
	RecordDatabaseError(span, err)
	return rows, err
}

func (tx *TracedTx) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	ctx, span := startDBSpan(ctx, tx.tracer, "Tx.QueryRow", sql)
	return &tracedRow{row: tx.Tx.QueryRow(ctx, sql, args...), span: span}
}

func (tx *TracedTx) Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	ctx, span := startDBSpan(ctx, tx.tracer, "Tx.Exec", sql)
	defer span.End()

	tag, err := tx.Tx.Exec(ctx, sql, args...)
	AddDatabaseSpanAttributes(span, "", tag.RowsAffected())
	RecordDatabaseError(span, err)
	return tag, err
}

func (tx *TracedTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	ctx, span := tx.tracer.Start(ctx, "db.Tx.CopyFrom", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	copied, err := tx.Tx.CopyFrom(ctx, tableName, columnNames, rowSrc)
	AddDatabaseSpanAttributes(span, tableName.Sanitize(), copied)
	RecordDatabaseError(span, err)
	return copied, err
}

func (tx *TracedTx) Commit(ctx context.Context) error {
	ctx, span := tx.tracer.Start(ctx, "db.Tx.Commit", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	err := tx.Tx.Commit(ctx)
	RecordDatabaseError(span, err)
	return err
}

func (tx *TracedTx) Rollback(ctx context.Context) error {
	ctx, span := tx.tracer.Start(ctx, "db.Tx.Rollback", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	return tx.Tx.Rollback(ctx)
}

// tracedRow ends its span once the row is scanned.
type tracedRow struct {
	row  pgx.Row
	span trace.Span
}

func (r *tracedRow) Scan(dest ...interface{}) error {
	defer r.span.End()
	err := r.row.Scan(dest...)
	if !errors.Is(err, pgx.ErrNoRows) {
		RecordDatabaseError(r.span, err)
	}
	return err
}

func startDBSpan(ctx context.Context, tracer trace.Tracer, op, sql string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "db."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.statement", strings.Join(strings.Fields(sql), " ")),
		),
	)
}

// RecordDatabaseError marks span as failed when err is non-nil.
func RecordDatabaseError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// AddDatabaseSpanAttributes adds table and row count attributes.
func AddDatabaseSpanAttributes(span trace.Span, table string, rowsAffected int64) {
	if table != "" {
		span.SetAttributes(attribute.String("db.sql.table", table))
	}
	span.SetAttributes(attribute.Int64("db.rows_affected", rowsAffected))
}
