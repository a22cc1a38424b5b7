package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// BusinessTracer starts spans for domain operations: ingestion, range
// validation, replay steps and predictor calls.
type BusinessTracer struct {
	tracer trace.Tracer
}

// NewBusinessTracer creates a BusinessTracer on the global service tracer.
func NewBusinessTracer() *BusinessTracer {
	return &BusinessTracer{tracer: GetServiceTracer()}
}

// NewBusinessTracerWith creates a BusinessTracer on the given tracer.
func NewBusinessTracerWith(tracer trace.Tracer) *BusinessTracer {
	return &BusinessTracer{tracer: tracer}
}

// TraceIngestion starts a span covering a whole dataset ingestion.
func (bt *BusinessTracer) TraceIngestion(ctx context.Context, fileName string) (context.Context, trace.Span) {
	return bt.tracer.Start(ctx, "dataset.ingest",
		trace.WithAttributes(attribute.String("dataset.file_name", fileName)),
	)
}

// IngestionResult is recorded on an ingestion span when it finishes.
type IngestionResult struct {
	TotalRecords int
	TotalColumns int
	Batches      int
	PassRate     float64
	Generation   int64
	Duration     time.Duration
}

// RecordIngestionResult adds ingestion outcome attributes to span.
func (bt *BusinessTracer) RecordIngestionResult(span trace.Span, result IngestionResult) {
	span.SetAttributes(
		attribute.Int("dataset.total_records", result.TotalRecords),
		attribute.Int("dataset.total_columns", result.TotalColumns),
		attribute.Int("dataset.batches", result.Batches),
		attribute.Float64("dataset.pass_rate", result.PassRate),
		attribute.Int64("dataset.generation", result.Generation),
		attribute.Int64("dataset.duration_ms", result.Duration.Milliseconds()),
	)
}

// TraceValidation starts a span for a date range validation.
func (bt *BusinessTracer) TraceValidation(ctx context.Context) (context.Context, trace.Span) {
	return bt.tracer.Start(ctx, "dataset.validate_ranges")
}

// TraceReplayStep starts a span for one replay step at offset.
func (bt *BusinessTracer) TraceReplayStep(ctx context.Context, offset int) (context.Context, trace.Span) {
	return bt.tracer.Start(ctx, "replay.next",
		trace.WithAttributes(attribute.Int("replay.offset", offset)),
	)
}

// TracePredictorCall starts a client span for a call to the predictor.
func (bt *BusinessTracer) TracePredictorCall(ctx context.Context, operation string) (context.Context, trace.Span) {
	return bt.tracer.Start(ctx, "predictor."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("predictor.operation", operation)),
	)
}

// RecordError marks span as failed.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
