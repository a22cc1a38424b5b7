package services

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/irfndi/intelliinspect-go/internal/cache"
	"github.com/irfndi/intelliinspect-go/internal/metrics"
	"github.com/irfndi/intelliinspect-go/internal/models"
	"github.com/irfndi/intelliinspect-go/internal/telemetry"
	"github.com/irfndi/intelliinspect-go/internal/utils"
	"github.com/irfndi/intelliinspect-go/pkg/interfaces"
)

// Column names with special meaning in an uploaded CSV.
const (
	ColumnResponse    = "Response"
	ColumnTemperature = "Temperature"
	ColumnPressure    = "Pressure"
	ColumnHumidity    = "Humidity"
)

// DefaultBatchSize is the number of records written per store batch.
const DefaultBatchSize = 1000

// DefaultEpoch is the synthetic timestamp of the first ingested row.
var DefaultEpoch = time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)

// sensorRange is the uniform sampling range used when a sensor column is absent.
type sensorRange struct {
	min, max float64
}

var (
	temperatureRange = sensorRange{20, 70}
	pressureRange    = sensorRange{800, 1000}
	humidityRange    = sensorRange{20, 80}
)

func (r sensorRange) sample(random func() float64) float64 {
	return r.min + random()*(r.max-r.min)
}

// IngestionOptions tunes the ingestion pipeline.
type IngestionOptions struct {
	BatchSize int
	Epoch     time.Time
	// Random returns values in [0,1) for synthetic sensor readings. Defaults to math/rand/v2.
	Random func() float64
}

// IngestionService parses uploaded CSV datasets and replaces the resident
// dataset with them.
type IngestionService struct {
	store     interfaces.RecordStore
	summaries cache.SummaryCache
	metrics   *metrics.Metrics
	tracer    *telemetry.BusinessTracer
	logger    *logrus.Logger
	batchSize int
	epoch     time.Time
	random    func() float64
}

// NewIngestionService creates an ingestion service. summaries, m and tracer may be nil.
func NewIngestionService(
	store interfaces.RecordStore,
	summaries cache.SummaryCache,
	opts IngestionOptions,
	m *metrics.Metrics,
	tracer *telemetry.BusinessTracer,
	logger *logrus.Logger,
) *IngestionService {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Epoch.IsZero() {
		opts.Epoch = DefaultEpoch
	}
	if opts.Random == nil {
		opts.Random = rand.Float64
	}
	if summaries == nil {
		summaries = cache.NewMemorySummaryCache()
	}
	if tracer == nil {
		tracer = telemetry.NewBusinessTracer()
	}
	if logger == nil {
		logger = logrus.New()
	}

	return &IngestionService{
		store:     store,
		summaries: summaries,
		metrics:   m,
		tracer:    tracer,
		logger:    logger,
		batchSize: opts.BatchSize,
		epoch:     opts.Epoch.UTC(),
		random:    opts.Random,
	}
}

// csvHeader locates the well-known columns of a CSV header.
type csvHeader struct {
	names       []string
	response    int
	temperature int
	pressure    int
	humidity    int
}

func parseHeader(fields []string) (*csvHeader, error) {
	h := &csvHeader{
		names:       make([]string, len(fields)),
		response:    -1,
		temperature: -1,
		pressure:    -1,
		humidity:    -1,
	}
	for i, name := range fields {
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		h.names[i] = name
		switch name {
		case ColumnResponse:
			if h.response < 0 {
				h.response = i
			}
		case ColumnTemperature:
			if h.temperature < 0 {
				h.temperature = i
			}
		case ColumnPressure:
			if h.pressure < 0 {
				h.pressure = i
			}
		case ColumnHumidity:
			if h.humidity < 0 {
				h.humidity = i
			}
		}
	}
	if h.response < 0 {
		return nil, utils.NewInputError(utils.CodeMissingColumn, "CSV must contain 'Response' column")
	}
	return h, nil
}

func (h *csvHeader) isReserved(name string) bool {
	switch name {
	case ColumnResponse, ColumnTemperature, ColumnPressure, ColumnHumidity:
		return true
	}
	return false
}

// Ingest replaces the resident dataset with the rows of a CSV stream.
//
// Rows receive synthetic timestamps epoch+0s, epoch+1s, ... in row order. The
// replacement is published atomically on success; on any error the previous
// dataset stays resident.
func (s *IngestionService) Ingest(ctx context.Context, r io.Reader, fileName string) (summary *models.DatasetSummary, err error) {
	start := time.Now()
	ctx, span := s.tracer.TraceIngestion(ctx, fileName)
	defer func() {
		telemetry.RecordError(span, err)
		span.End()
		s.metrics.RecordIngestion(totalOf(summary), time.Since(start), err)
	}()

	if !strings.EqualFold(filepath.Ext(fileName), ".csv") {
		return nil, utils.NewInputError(utils.CodeInvalidExtension, "File must be in CSV format")
	}
	if r == nil {
		return nil, utils.NewInputError(utils.CodeEmptyFile, "No file uploaded")
	}

	buffered := bufio.NewReader(r)
	if _, err := buffered.Peek(1); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, utils.NewInputError(utils.CodeEmptyFile, "No file uploaded")
		}
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}

	reader := csv.NewReader(buffered)
	fields, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, utils.NewInputError(utils.CodeEmptyFile, "No file uploaded")
		}
		return nil, utils.NewInputErrorf(utils.CodeMalformedRow, "invalid CSV header: %v", err)
	}
	header, err := parseHeader(fields)
	if err != nil {
		return nil, err
	}

	writer, err := s.store.BeginReplace(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin dataset replace: %w", err)
	}
	defer func() {
		if rbErr := writer.Rollback(ctx); rbErr != nil {
			s.logger.WithError(rbErr).Warn("Failed to roll back dataset replace")
		}
	}()

	if err := writer.ClearAll(ctx); err != nil {
		return nil, fmt.Errorf("failed to clear dataset: %w", err)
	}

	var (
		total     int
		passCount int
		batches   int
		batch     = make([]models.Record, 0, s.batchSize)
	)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := writer.InsertBatch(ctx, batch); err != nil {
			return fmt.Errorf("failed to insert batch %d: %w", batches+1, err)
		}
		batches++
		batch = make([]models.Record, 0, s.batchSize)
		return nil
	}

	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line := total + 2
		if err != nil {
			return nil, utils.NewInputErrorf(utils.CodeMalformedRow, "malformed CSV at line %d: %v", line, err)
		}

		record, err := s.buildRecord(header, row, total)
		if err != nil {
			return nil, utils.NewInputErrorf(utils.CodeMalformedRow, "line %d: %v", line, err)
		}
		if record.Label == models.LabelPass {
			passCount++
		}
		total++

		batch = append(batch, record)
		if len(batch) >= s.batchSize {
			if err := flush(); err != nil {
				return nil, err
			}
		}
	}
	if err := flush(); err != nil {
		return nil, err
	}

	generation, err := writer.Commit(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to commit dataset: %w", err)
	}

	summary = &models.DatasetSummary{
		FileName:          fileName,
		TotalRecords:      total,
		TotalColumns:      len(header.names),
		PassRate:          PassRate(passCount, total),
		EarliestTimestamp: s.epoch,
		LatestTimestamp:   s.epoch.Add(time.Duration(total-1) * time.Second),
		Generation:        generation,
		Status:            "Success",
		Message:           "Dataset processed successfully",
	}

	s.tracer.RecordIngestionResult(span, telemetry.IngestionResult{
		TotalRecords: total,
		TotalColumns: summary.TotalColumns,
		Batches:      batches,
		PassRate:     summary.PassRate,
		Generation:   generation,
		Duration:     time.Since(start),
	})
	s.metrics.RecordGeneration(generation)

	if err := s.summaries.Set(ctx, summary); err != nil {
		s.logger.WithError(err).Warn("Failed to cache dataset summary")
	}

	s.logger.WithFields(logrus.Fields{
		"file_name":     fileName,
		"total_records": total,
		"pass_rate":     summary.PassRate,
		"batches":       batches,
		"generation":    generation,
	}).Info("Dataset ingested")

	return summary, nil
}

func (s *IngestionService) buildRecord(h *csvHeader, row []string, index int) (models.Record, error) {
	record := models.Record{
		Timestamp: s.epoch.Add(time.Duration(index) * time.Second),
	}

	label, err := strconv.Atoi(strings.TrimSpace(row[h.response]))
	if err != nil || (label != models.LabelFail && label != models.LabelPass) {
		return record, fmt.Errorf("response must be 0 or 1, got %q", row[h.response])
	}
	record.Label = label

	if record.Temperature, err = s.sensorValue(row, h.temperature, ColumnTemperature, temperatureRange); err != nil {
		return record, err
	}
	if record.Pressure, err = s.sensorValue(row, h.pressure, ColumnPressure, pressureRange); err != nil {
		return record, err
	}
	if record.Humidity, err = s.sensorValue(row, h.humidity, ColumnHumidity, humidityRange); err != nil {
		return record, err
	}

	record.ExtraFeatures = models.NewFeatureBag(len(h.names))
	for i, name := range h.names {
		// first occurrence of a repeated column wins
		if h.isReserved(name) || record.ExtraFeatures.Has(name) {
			continue
		}
		record.ExtraFeatures.Set(name, featureValue(row[i]))
	}
	return record, nil
}

func (s *IngestionService) sensorValue(row []string, column int, name string, fallback sensorRange) (float64, error) {
	if column < 0 {
		return fallback.sample(s.random), nil
	}
	value, err := parseFinite(row[column])
	if err != nil {
		return 0, fmt.Errorf("%s must be numeric, got %q", name, row[column])
	}
	return value, nil
}

// featureValue returns the cell as a float64 when it parses as a finite number,
// otherwise the raw string.
func featureValue(cell string) interface{} {
	if v, err := parseFinite(cell); err == nil {
		return v
	}
	return cell
}

// parseFinite parses a decimal float. Hex literals such as 0x1p3 are rejected.
func parseFinite(cell string) (float64, error) {
	trimmed := strings.TrimSpace(cell)
	digits := strings.TrimLeft(trimmed, "+-")
	if len(digits) > 1 && digits[0] == '0' && (digits[1] == 'x' || digits[1] == 'X') {
		return 0, fmt.Errorf("hexadecimal value %q", cell)
	}
	v, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("non-finite value %q", cell)
	}
	return v, nil
}

// PassRate returns 100*pass/total rounded to two decimals, or 0 when total is 0.
func PassRate(pass, total int) float64 {
	if total <= 0 {
		return 0
	}
	return decimal.NewFromInt(int64(pass)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(total))).
		Round(2).
		InexactFloat64()
}

// Summary returns the summary of the resident dataset. The cached ingestion
// summary is used when it belongs to the current generation; otherwise a
// summary is derived from the store.
func (s *IngestionService) Summary(ctx context.Context) (*models.DatasetSummary, error) {
	generation, err := s.store.Generation(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset generation: %w", err)
	}

	cached, ok, err := s.summaries.Get(ctx)
	if err != nil {
		s.logger.WithError(err).Warn("Failed to read cached dataset summary")
	} else if ok && cached.Generation == generation {
		return cached, nil
	}

	count, err := s.store.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count records: %w", err)
	}
	if count == 0 {
		return nil, utils.NewValidationError(utils.CodeEmptyDataset, "No dataset available. Please upload a dataset first.")
	}
	earliest, _, err := s.store.MinTimestamp(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read earliest timestamp: %w", err)
	}
	latest, _, err := s.store.MaxTimestamp(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read latest timestamp: %w", err)
	}

	return &models.DatasetSummary{
		TotalRecords:      int(count),
		EarliestTimestamp: earliest,
		LatestTimestamp:   latest,
		Generation:        generation,
		Status:            "Success",
		Message:           "Summary derived from the resident dataset",
	}, nil
}

func totalOf(summary *models.DatasetSummary) int {
	if summary == nil {
		return 0
	}
	return summary.TotalRecords
}
