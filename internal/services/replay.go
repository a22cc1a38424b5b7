package services

import (
	"context"
	"fmt"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/irfndi/intelliinspect-go/internal/metrics"
	"github.com/irfndi/intelliinspect-go/internal/models"
	"github.com/irfndi/intelliinspect-go/internal/telemetry"
	"github.com/irfndi/intelliinspect-go/internal/utils"
	"github.com/irfndi/intelliinspect-go/pkg/interfaces"
)

// ReplayEngine re-delivers the records of a window one offset at a time to
// the predictor. It keeps no per-stream state: the caller owns the offset
// and advances it by one after every non-terminal response.
//
// Performance: each call is a range scan that skips offset records, so a
// full replay of n records costs O(n^2) row visits. Large windows should run
// with a BookmarkStore, which remembers the key found at offset k-1 and turns
// the lookup for offset k into a keyset seek (timestamp, id) > bookmark.
// Without a bookmark hit the engine falls back to the offset scan.
type ReplayEngine struct {
	store     interfaces.RecordStore
	predictor interfaces.Predictor
	bookmarks interfaces.BookmarkStore
	metrics   *metrics.Metrics
	tracer    *telemetry.BusinessTracer
	logger    *logrus.Logger
}

// NewReplayEngine creates a replay engine. bookmarks, m and tracer may be nil.
func NewReplayEngine(
	store interfaces.RecordStore,
	predictor interfaces.Predictor,
	bookmarks interfaces.BookmarkStore,
	m *metrics.Metrics,
	tracer *telemetry.BusinessTracer,
	logger *logrus.Logger,
) *ReplayEngine {
	if tracer == nil {
		tracer = telemetry.NewBusinessTracer()
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &ReplayEngine{
		store:     store,
		predictor: predictor,
		bookmarks: bookmarks,
		metrics:   m,
		tracer:    tracer,
		logger:    logger,
	}
}

// Next returns the prediction for the record at cursor.Offset within
// cursor.Window, or the EndOfStream sentinel when no record exists there.
//
// Predictor failures never surface as errors: a malformed response yields an
// "Unknown" prediction and a failed call an "Error" prediction, both carrying
// the record's own sensor values. Errors are returned only for invalid
// cursors, a stale generation or a failing store.
func (e *ReplayEngine) Next(ctx context.Context, cursor models.ReplayCursor) (pred *models.Prediction, err error) {
	ctx, span := e.tracer.TraceReplayStep(ctx, cursor.Offset)
	defer func() {
		telemetry.RecordError(span, err)
		span.End()
	}()

	if cursor.Offset < 0 {
		return nil, utils.NewInputErrorf(utils.CodeInvalidArgument, "offset must be >= 0, got %d", cursor.Offset)
	}

	expected := cursor.Generation
	pinned := expected != 0 || e.bookmarks != nil
	if pinned {
		generation, err := e.currentGeneration(ctx, expected)
		if err != nil {
			return nil, err
		}
		cursor.Generation = generation
	}

	record, found, err := e.recordAt(ctx, cursor, true)
	if err != nil {
		return nil, err
	}

	// A replace may have committed between the generation read and the scan.
	// The bookmark then belongs to the old dataset, so redo the lookup by
	// offset against the new generation.
	if pinned {
		generation, err := e.currentGeneration(ctx, expected)
		if err != nil {
			return nil, err
		}
		if generation != cursor.Generation {
			cursor.Generation = generation
			if record, found, err = e.recordAt(ctx, cursor, false); err != nil {
				return nil, err
			}
			if err := e.requireGeneration(ctx, cursor.Generation); err != nil {
				return nil, err
			}
		}
		if found && e.bookmarks != nil {
			e.bookmarks.Set(ctx, cursor, record.Key())
		}
	}

	if !found {
		e.metrics.RecordPrediction("EndOfStream")
		return models.EndOfStreamPrediction(), nil
	}

	pred = e.predict(ctx, record)
	e.metrics.RecordPrediction(pred.Prediction)
	return pred, nil
}

func (e *ReplayEngine) recordAt(ctx context.Context, cursor models.ReplayCursor, useBookmark bool) (models.Record, bool, error) {
	query := models.RangeQuery{Window: cursor.Window, Offset: cursor.Offset, Limit: 1}

	if useBookmark && e.bookmarks != nil && cursor.Offset > 0 {
		prev := cursor
		prev.Offset--
		key, ok := e.bookmarks.Get(ctx, prev)
		e.metrics.RecordBookmarkLookup(ok)
		if ok {
			query.Offset = 0
			query.After = &key
		}
	}

	records, err := e.store.ScanRange(ctx, query)
	if err != nil {
		return models.Record{}, false, fmt.Errorf("failed to scan replay window: %w", err)
	}
	if len(records) == 0 {
		return models.Record{}, false, nil
	}

	return records[0], true, nil
}

// currentGeneration reads the store generation and, when expected is set,
// fails with StaleGeneration if it moved.
func (e *ReplayEngine) currentGeneration(ctx context.Context, expected int64) (int64, error) {
	generation, err := e.store.Generation(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to read dataset generation: %w", err)
	}
	if expected != 0 && expected != generation {
		return 0, utils.NewValidationErrorf(utils.CodeStaleGeneration,
			"dataset generation %d is no longer current (current is %d)", expected, generation)
	}
	return generation, nil
}

// requireGeneration fails with StaleGeneration if the store moved past
// generation. Used after a rescan, when a second replace landed mid-step.
func (e *ReplayEngine) requireGeneration(ctx context.Context, generation int64) error {
	_, err := e.currentGeneration(ctx, generation)
	return err
}

func (e *ReplayEngine) predict(ctx context.Context, record models.Record) *models.Prediction {
	pred, err := e.predictor.Predict(ctx, record)
	switch {
	case err == nil && pred != nil:
		return pred
	case err == nil, utils.HasCode(err, utils.CodeMalformedResponse):
		e.logger.WithFields(logrus.Fields{
			"record_id": record.ID,
		}).WithError(err).Warn("Predictor response could not be parsed")
		return fallbackPrediction(record, models.PredictionUnknown)
	default:
		e.logger.WithFields(logrus.Fields{
			"record_id": record.ID,
			"code":      utils.CodeOf(err),
		}).WithError(err).Warn("Predictor call failed")
		return fallbackPrediction(record, models.PredictionError)
	}
}

func fallbackPrediction(record models.Record, label string) *models.Prediction {
	return &models.Prediction{
		Timestamp:   record.Timestamp,
		SampleID:    strconv.FormatInt(record.ID, 10),
		Prediction:  label,
		Confidence:  0,
		Temperature: record.Temperature,
		Pressure:    record.Pressure,
		Humidity:    record.Humidity,
	}
}
