package services

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/irfndi/intelliinspect-go/internal/metrics"
	"github.com/irfndi/intelliinspect-go/internal/models"
	"github.com/irfndi/intelliinspect-go/internal/telemetry"
	"github.com/irfndi/intelliinspect-go/internal/utils"
	"github.com/irfndi/intelliinspect-go/pkg/interfaces"
)

// boundsLayout formats dataset bounds in OutOfBounds messages.
const boundsLayout = "2006-01-02 15:04:05"

// RangeValidator checks training, testing and simulation windows against the
// resident dataset and counts the records each one selects.
type RangeValidator struct {
	store interfaces.RecordStore
	// enforceOrder additionally requires training < testing < simulation without overlap.
	enforceOrder bool
	metrics      *metrics.Metrics
	tracer       *telemetry.BusinessTracer
	logger       *logrus.Logger
}

// NewRangeValidator creates a range validator. m and tracer may be nil.
func NewRangeValidator(store interfaces.RecordStore, enforceOrder bool, m *metrics.Metrics, tracer *telemetry.BusinessTracer, logger *logrus.Logger) *RangeValidator {
	if tracer == nil {
		tracer = telemetry.NewBusinessTracer()
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &RangeValidator{
		store:        store,
		enforceOrder: enforceOrder,
		metrics:      m,
		tracer:       tracer,
		logger:       logger,
	}
}

// Validate runs the checks in a fixed order: empty dataset, generation, dataset bounds,
// per-window ordering, optional cross-window ordering, then counting. The
// first failing check is returned as a ValidationError.
func (v *RangeValidator) Validate(ctx context.Context, req models.DateRangeRequest) (result *models.DateRangeValidation, err error) {
	ctx, span := v.tracer.TraceValidation(ctx)
	defer func() {
		telemetry.RecordError(span, err)
		span.End()
		switch {
		case err == nil:
			v.metrics.RecordValidation("valid")
		case utils.CodeOf(err) != "":
			v.metrics.RecordValidation(string(utils.CodeOf(err)))
		default:
			v.metrics.RecordValidation("error")
		}
	}()

	count, err := v.store.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count records: %w", err)
	}
	if count == 0 {
		return nil, utils.NewValidationError(utils.CodeEmptyDataset, "No dataset available. Please upload a dataset first.")
	}

	generation, err := v.store.Generation(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset generation: %w", err)
	}
	if req.Generation != 0 && req.Generation != generation {
		return nil, utils.NewValidationErrorf(utils.CodeStaleGeneration,
			"dataset generation %d is no longer current (current is %d)", req.Generation, generation)
	}

	minTS, _, err := v.store.MinTimestamp(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read earliest timestamp: %w", err)
	}
	maxTS, _, err := v.store.MaxTimestamp(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read latest timestamp: %w", err)
	}

	if req.Training.Start.Before(minTS) || req.Simulation.End.After(maxTS) {
		return nil, utils.NewValidationErrorf(utils.CodeOutOfBounds,
			"Date ranges must be within dataset range: %s to %s",
			minTS.UTC().Format(boundsLayout), maxTS.UTC().Format(boundsLayout))
	}

	windows := []struct {
		name   string
		window models.Window
	}{
		{"training", req.Training},
		{"testing", req.Testing},
		{"simulation", req.Simulation},
	}
	for _, w := range windows {
		if w.window.Start.After(w.window.End) {
			return nil, utils.NewValidationErrorf(utils.CodeInvalidWindow,
				"%s window start must not be after its end", w.name)
		}
	}

	if v.enforceOrder {
		if !req.Training.End.Before(req.Testing.Start) {
			return nil, utils.NewValidationError(utils.CodeWindowOrder, "Training period must end before testing period starts")
		}
		if !req.Testing.End.Before(req.Simulation.Start) {
			return nil, utils.NewValidationError(utils.CodeWindowOrder, "Testing period must end before simulation period starts")
		}
	}

	counts := make([]int64, len(windows))
	for i, w := range windows {
		counts[i], err = v.store.CountInRange(ctx, w.window)
		if err != nil {
			return nil, fmt.Errorf("failed to count %s records: %w", w.name, err)
		}
	}

	// a replace committed between the reads above would mix two datasets
	after, err := v.store.Generation(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset generation: %w", err)
	}
	if after != generation {
		return nil, utils.NewValidationErrorf(utils.CodeStaleGeneration,
			"dataset was replaced during validation (generation %d -> %d)", generation, after)
	}

	result = &models.DateRangeValidation{
		IsValid:           true,
		Message:           "Date ranges validated successfully!",
		TrainingRecords:   counts[0],
		TestingRecords:    counts[1],
		SimulationRecords: counts[2],
		TrainingDays:      req.Training.Days(),
		TestingDays:       req.Testing.Days(),
		SimulationDays:    req.Simulation.Days(),
		Generation:        generation,
	}

	v.logger.WithFields(logrus.Fields{
		"training_records":   result.TrainingRecords,
		"testing_records":    result.TestingRecords,
		"simulation_records": result.SimulationRecords,
		"generation":         generation,
	}).Debug("Date ranges validated")

	return result, nil
}
