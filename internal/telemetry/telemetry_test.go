package telemetry

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/irfndi/intelliinspect-go/internal/config"
)

func TestInit_Disabled(t *testing.T) {
	provider, err := Init(context.Background(), config.TelemetryConfig{Enabled: false}, "test", nil)
	require.NoError(t, err)

	_, span := GetHTTPTracer().Start(context.Background(), "noop")
	assert.False(t, span.IsRecording())
	span.End()

	assert.NoError(t, provider.Shutdown(context.Background()))
	assert.NoError(t, provider.ForceFlush(context.Background()))
}

func TestInit_StdoutExporter(t *testing.T) {
	var buf bytes.Buffer
	provider, err := Init(context.Background(), config.TelemetryConfig{
		Enabled:        true,
		ServiceName:    "intelliinspect-test",
		ServiceVersion: "0.0.1",
	}, "test", &buf)
	require.NoError(t, err)

	_, span := GetServiceTracer().Start(context.Background(), "stdout-span")
	span.End()

	require.NoError(t, provider.ForceFlush(context.Background()))
	require.NoError(t, provider.Shutdown(context.Background()))
	assert.Contains(t, buf.String(), "stdout-span")

	_, err = Init(context.Background(), config.TelemetryConfig{Enabled: false}, "test", nil)
	require.NoError(t, err)
}

func TestProvider_NilSafe(t *testing.T) {
	var p *Provider
	assert.NoError(t, p.Shutdown(context.Background()))
	assert.NoError(t, p.ForceFlush(context.Background()))
}

func newRecordingTracer() (*tracetest.SpanRecorder, trace.Tracer) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	return recorder, tp.Tracer("test")
}

func attrMap(attrs []attribute.KeyValue) map[attribute.Key]attribute.Value {
	m := make(map[attribute.Key]attribute.Value, len(attrs))
	for _, kv := range attrs {
		m[kv.Key] = kv.Value
	}
	return m
}

func TestBusinessTracer_Ingestion(t *testing.T) {
	recorder, tracer := newRecordingTracer()
	bt := NewBusinessTracerWith(tracer)

	_, span := bt.TraceIngestion(context.Background(), "sensors.csv")
	bt.RecordIngestionResult(span, IngestionResult{
		TotalRecords: 3,
		TotalColumns: 5,
		Batches:      1,
		PassRate:     66.67,
		Generation:   2,
		Duration:     1500 * time.Millisecond,
	})
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "dataset.ingest", spans[0].Name())

	attrs := attrMap(spans[0].Attributes())
	assert.Equal(t, "sensors.csv", attrs["dataset.file_name"].AsString())
	assert.Equal(t, int64(3), attrs["dataset.total_records"].AsInt64())
	assert.Equal(t, 66.67, attrs["dataset.pass_rate"].AsFloat64())
	assert.Equal(t, int64(1500), attrs["dataset.duration_ms"].AsInt64())
}

func TestBusinessTracer_ReplayAndPredictor(t *testing.T) {
	recorder, tracer := newRecordingTracer()
	bt := NewBusinessTracerWith(tracer)

	ctx, step := bt.TraceReplayStep(context.Background(), 4)
	_, call := bt.TracePredictorCall(ctx, "predict")
	RecordError(call, errors.New("timeout"))
	call.End()
	step.End()

	spans := recorder.Ended()
	require.Len(t, spans, 2)

	assert.Equal(t, "predictor.predict", spans[0].Name())
	assert.Equal(t, trace.SpanKindClient, spans[0].SpanKind())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, spans[1].SpanContext().SpanID(), spans[0].Parent().SpanID())

	assert.Equal(t, "replay.next", spans[1].Name())
	assert.Equal(t, int64(4), attrMap(spans[1].Attributes())["replay.offset"].AsInt64())
}

func TestBusinessTracer_Validation(t *testing.T) {
	recorder, tracer := newRecordingTracer()
	bt := NewBusinessTracerWith(tracer)

	_, span := bt.TraceValidation(context.Background())
	RecordError(span, nil)
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
}
