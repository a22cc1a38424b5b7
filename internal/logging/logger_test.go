package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	otellog "go.opentelemetry.io/otel/log"
)

func newBufferLogger(level string) (*StandardLogger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	return NewStandardLoggerWithWriter(buf, level, "test"), buf
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestNewStandardLogger_Basic(t *testing.T) {
	logger := NewStandardLogger("info", "development")
	assert.NotNil(t, logger)
	assert.NotNil(t, logger.Logger())
}

func TestNewStandardLogger_LogLevels(t *testing.T) {
	logger, buf := newBufferLogger("warn")

	logger.Logger().Info("hidden")
	assert.Empty(t, buf.String())

	logger.Logger().Warn("shown")
	entry := decodeLine(t, buf)
	assert.Equal(t, "shown", entry["msg"])
	assert.Equal(t, "test", entry["environment"])
}

func TestStandardLogger_ContextFields(t *testing.T) {
	tests := []struct {
		name  string
		log   func(l *StandardLogger) *slog.Logger
		key   string
		value interface{}
	}{
		{"component", func(l *StandardLogger) *slog.Logger { return l.WithComponent("ingestion") }, "component", "ingestion"},
		{"error", func(l *StandardLogger) *slog.Logger { return l.WithError(errors.New("boom")) }, "error", "boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, buf := newBufferLogger("debug")
			tt.log(logger).Info("message")

			entry := decodeLine(t, buf)
			assert.Equal(t, tt.value, entry[tt.key])
		})
	}
}

func TestStandardLogger_WithNilError(t *testing.T) {
	logger, buf := newBufferLogger("info")
	logger.WithError(nil).Info("ok")

	entry := decodeLine(t, buf)
	_, present := entry["error"]
	assert.False(t, present)
}

func TestStandardLogger_LogStartup(t *testing.T) {
	logger, buf := newBufferLogger("info")
	logger.LogStartup("intelliinspect-go", "1.0.0", 8080)

	entry := decodeLine(t, buf)
	assert.Equal(t, "startup", entry["event"])
	assert.Equal(t, "intelliinspect-go", entry["service"])
	assert.Equal(t, float64(8080), entry["port"])
}

func TestStandardLogger_LogShutdown(t *testing.T) {
	logger, buf := newBufferLogger("info")
	logger.LogShutdown("intelliinspect-go", "signal")

	entry := decodeLine(t, buf)
	assert.Equal(t, "shutdown", entry["event"])
	assert.Equal(t, "signal", entry["reason"])
}

func TestStandardLogger_LogDatabaseOperation(t *testing.T) {
	logger, buf := newBufferLogger("info")
	logger.LogDatabaseOperation("copy", "dataset_records", 12, 1000)
	assert.Empty(t, buf.String(), "database operations are debug level")

	logger, buf = newBufferLogger("debug")
	logger.LogDatabaseOperation("copy", "dataset_records", 12, 1000)
	entry := decodeLine(t, buf)
	assert.Equal(t, "dataset_records", entry["table"])
	assert.Equal(t, float64(1000), entry["rows_affected"])
}

func TestStandardLogger_LogBusinessEvent(t *testing.T) {
	logger, buf := newBufferLogger("info")
	logger.LogBusinessEvent("dataset_ingested", map[string]interface{}{"records": 3})

	entry := decodeLine(t, buf)
	assert.Equal(t, "dataset_ingested", entry["event_type"])
	details, ok := entry["details"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(3), details["records"])
}

func TestParseLogrusLevel(t *testing.T) {
	assert.Equal(t, logrus.DebugLevel, ParseLogrusLevel("debug"))
	assert.Equal(t, logrus.WarnLevel, ParseLogrusLevel("WARN"))
	assert.Equal(t, logrus.WarnLevel, ParseLogrusLevel("warning"))
	assert.Equal(t, logrus.ErrorLevel, ParseLogrusLevel("error"))
	assert.Equal(t, logrus.InfoLevel, ParseLogrusLevel("verbose"))
}

func TestGetSlogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, getSlogLevel("debug"))
	assert.Equal(t, slog.LevelWarn, getSlogLevel("warning"))
	assert.Equal(t, slog.LevelError, getSlogLevel("ERROR"))
	assert.Equal(t, slog.LevelInfo, getSlogLevel(""))
}

func TestNewLogrusLogger(t *testing.T) {
	logger := NewLogrusLogger("debug")
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	_, ok := logger.Formatter.(*logrus.JSONFormatter)
	assert.True(t, ok)
}

func TestNewOTLPLogger_Disabled(t *testing.T) {
	logger, err := NewOTLPLogger(OTLPConfig{Enabled: false, LogLevel: "info"})
	require.NoError(t, err)
	assert.NotNil(t, logger.Logger())
	assert.NoError(t, logger.Shutdown(context.Background()))
}

func TestOTLPLogger_NilShutdown(t *testing.T) {
	var logger *OTLPLogger
	assert.NoError(t, logger.Shutdown(context.Background()))
}

// recordingOTLPLogger captures emitted records.
type recordingOTLPLogger struct {
	otellog.Logger
	records []otellog.Record
}

func (m *recordingOTLPLogger) Enabled(ctx context.Context, params otellog.EnabledParameters) bool {
	return true
}

func (m *recordingOTLPLogger) Emit(ctx context.Context, record otellog.Record) {
	m.records = append(m.records, record)
}

func attributesOf(record otellog.Record) map[string]otellog.Value {
	attrs := make(map[string]otellog.Value)
	record.WalkAttributes(func(kv otellog.KeyValue) bool {
		attrs[kv.Key] = kv.Value
		return true
	})
	return attrs
}

func TestOTLPHandler_Enabled(t *testing.T) {
	handler := NewOTLPHandler(&recordingOTLPLogger{}, slog.LevelInfo)
	ctx := context.Background()

	assert.False(t, handler.Enabled(ctx, slog.LevelDebug))
	assert.True(t, handler.Enabled(ctx, slog.LevelInfo))
	assert.True(t, handler.Enabled(ctx, slog.LevelError))
}

func TestOTLPHandler_Handle(t *testing.T) {
	sink := &recordingOTLPLogger{}
	logger := slog.New(NewOTLPHandler(sink, slog.LevelDebug))

	logger.With("component", "replay").WithGroup("cursor").Warn("slow scan", "offset", 42, "cached", true)

	require.Len(t, sink.records, 1)
	record := sink.records[0]
	assert.Equal(t, "slow scan", record.Body().AsString())
	assert.Equal(t, otellog.SeverityWarn, record.Severity())

	attrs := attributesOf(record)
	assert.Equal(t, "replay", attrs["component"].AsString())
	assert.Equal(t, int64(42), attrs["cursor.offset"].AsInt64())
	assert.True(t, attrs["cursor.cached"].AsBool())
}

func TestOTLPHandler_HandleRecordDirectly(t *testing.T) {
	sink := &recordingOTLPLogger{}
	handler := NewOTLPHandler(sink, slog.LevelInfo)

	record := slog.NewRecord(time.Now(), slog.LevelInfo, "direct", 0)
	record.AddAttrs(slog.Float64("confidence", 0.5))
	require.NoError(t, handler.Handle(context.Background(), record))

	require.Len(t, sink.records, 1)
	assert.Equal(t, 0.5, attributesOf(sink.records[0])["confidence"].AsFloat64())
}

func TestConvertSlogLevelToSeverity(t *testing.T) {
	assert.Equal(t, otellog.SeverityDebug, convertSlogLevelToSeverity(slog.LevelDebug))
	assert.Equal(t, otellog.SeverityInfo, convertSlogLevelToSeverity(slog.LevelInfo))
	assert.Equal(t, otellog.SeverityWarn, convertSlogLevelToSeverity(slog.LevelWarn))
	assert.Equal(t, otellog.SeverityError, convertSlogLevelToSeverity(slog.LevelError))
	assert.Equal(t, otellog.SeverityError, convertSlogLevelToSeverity(slog.Level(10)))
}
