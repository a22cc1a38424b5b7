package services

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irfndi/intelliinspect-go/internal/database"
	"github.com/irfndi/intelliinspect-go/internal/metrics"
	"github.com/irfndi/intelliinspect-go/internal/models"
	"github.com/irfndi/intelliinspect-go/internal/utils"
)

func window(startSec, endSec int) models.Window {
	return models.Window{
		Start: testEpoch.Add(time.Duration(startSec) * time.Second),
		End:   testEpoch.Add(time.Duration(endSec) * time.Second),
	}
}

func scenarioRequest() models.DateRangeRequest {
	return models.DateRangeRequest{
		Training:   window(0, 1),
		Testing:    window(1, 2),
		Simulation: window(2, 2),
	}
}

func TestValidate_Scenario(t *testing.T) {
	store := database.NewMemoryStore()
	ingestCSV(t, store, threeRowCSV)
	m := metrics.New(prometheus.NewRegistry())

	result, err := NewRangeValidator(store, false, m, nil, quietLogger()).Validate(context.Background(), scenarioRequest())
	require.NoError(t, err)

	assert.True(t, result.IsValid)
	assert.Equal(t, int64(2), result.TrainingRecords)
	assert.Equal(t, int64(2), result.TestingRecords)
	assert.Equal(t, int64(1), result.SimulationRecords)
	assert.Zero(t, result.TrainingDays)
	assert.Equal(t, int64(1), result.Generation)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Validations.WithLabelValues("valid")))
}

func TestValidate_EmptyDatasetRegardlessOfWindows(t *testing.T) {
	validator := NewRangeValidator(database.NewMemoryStore(), true, nil, nil, quietLogger())

	requests := []models.DateRangeRequest{
		scenarioRequest(),
		{},
		{Training: window(10, 0), Generation: 7},
	}
	for _, req := range requests {
		_, err := validator.Validate(context.Background(), req)
		require.Error(t, err)
		assert.Equal(t, utils.CodeEmptyDataset, utils.CodeOf(err))
	}
}

func TestValidate_OutOfBounds(t *testing.T) {
	store := database.NewMemoryStore()
	ingestCSV(t, store, threeRowCSV)
	validator := NewRangeValidator(store, false, nil, nil, quietLogger())

	early := scenarioRequest()
	early.Training.Start = testEpoch.Add(-time.Second)
	_, err := validator.Validate(context.Background(), early)
	require.Error(t, err)
	assert.Equal(t, utils.CodeOutOfBounds, utils.CodeOf(err))
	assert.Contains(t, err.Error(), "2021-01-01 00:00:00")
	assert.Contains(t, err.Error(), "2021-01-01 00:00:02")

	late := scenarioRequest()
	late.Simulation.End = testEpoch.Add(3 * time.Second)
	_, err = validator.Validate(context.Background(), late)
	assert.Equal(t, utils.CodeOutOfBounds, utils.CodeOf(err))
}

func TestValidate_BoundsCheckedBeforeWindowShape(t *testing.T) {
	store := database.NewMemoryStore()
	ingestCSV(t, store, threeRowCSV)

	req := scenarioRequest()
	req.Training = models.Window{Start: testEpoch.Add(-time.Hour), End: testEpoch.Add(-2 * time.Hour)}
	_, err := NewRangeValidator(store, false, nil, nil, quietLogger()).Validate(context.Background(), req)
	assert.Equal(t, utils.CodeOutOfBounds, utils.CodeOf(err))
}

func TestValidate_InvalidWindow(t *testing.T) {
	store := database.NewMemoryStore()
	ingestCSV(t, store, threeRowCSV)

	req := scenarioRequest()
	req.Testing = window(2, 1)
	_, err := NewRangeValidator(store, false, nil, nil, quietLogger()).Validate(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, utils.CodeInvalidWindow, utils.CodeOf(err))
	assert.Contains(t, err.Error(), "testing")
}

func TestValidate_WindowOrderToggle(t *testing.T) {
	store := database.NewMemoryStore()
	ingestCSV(t, store, threeRowCSV)
	ctx := context.Background()

	// overlapping windows pass by default
	_, err := NewRangeValidator(store, false, nil, nil, quietLogger()).Validate(ctx, scenarioRequest())
	require.NoError(t, err)

	strict := NewRangeValidator(store, true, nil, nil, quietLogger())
	_, err = strict.Validate(ctx, scenarioRequest())
	require.Error(t, err)
	assert.Equal(t, utils.CodeWindowOrder, utils.CodeOf(err))

	ordered := models.DateRangeRequest{
		Training:   window(0, 0),
		Testing:    window(1, 1),
		Simulation: window(2, 2),
	}
	result, err := strict.Validate(ctx, ordered)
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.TrainingRecords)
	assert.Equal(t, int64(1), result.TestingRecords)
	assert.Equal(t, int64(1), result.SimulationRecords)
}

func TestValidate_StaleGeneration(t *testing.T) {
	store := database.NewMemoryStore()
	ingestCSV(t, store, threeRowCSV)
	ingestCSV(t, store, threeRowCSV)
	validator := NewRangeValidator(store, false, nil, nil, quietLogger())

	req := scenarioRequest()
	req.Generation = 1
	_, err := validator.Validate(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, utils.CodeStaleGeneration, utils.CodeOf(err))

	req.Generation = 2
	_, err = validator.Validate(context.Background(), req)
	assert.NoError(t, err)
}

func TestValidate_DaySpans(t *testing.T) {
	// sparse dataset loaded directly; ingestion would need a row per second
	store := database.NewMemoryStore()
	writer, err := store.BeginReplace(context.Background())
	require.NoError(t, err)
	require.NoError(t, writer.InsertBatch(context.Background(), []models.Record{
		{Timestamp: testEpoch},
		{Timestamp: testEpoch.Add(36 * time.Hour)},
		{Timestamp: testEpoch.Add(80 * time.Hour)},
	}))
	_, err = writer.Commit(context.Background())
	require.NoError(t, err)

	req := models.DateRangeRequest{
		Training:   models.Window{Start: testEpoch, End: testEpoch.Add(47 * time.Hour)},
		Testing:    models.Window{Start: testEpoch.Add(36 * time.Hour), End: testEpoch.Add(60 * time.Hour)},
		Simulation: models.Window{Start: testEpoch.Add(60 * time.Hour), End: testEpoch.Add(80 * time.Hour)},
	}
	result, err := NewRangeValidator(store, false, nil, nil, quietLogger()).Validate(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 1, result.TrainingDays)
	assert.Equal(t, 1, result.TestingDays)
	assert.Equal(t, 0, result.SimulationDays)
	assert.Equal(t, int64(2), result.TrainingRecords)
	assert.Equal(t, int64(1), result.TestingRecords)
	assert.Equal(t, int64(1), result.SimulationRecords)
}

func TestValidate_CountsMatchScan(t *testing.T) {
	store := database.NewMemoryStore()
	ingestCSV(t, store, "Response\n1\n0\n1\n1\n0\n0\n1\n")
	ctx := context.Background()

	validator := NewRangeValidator(store, false, nil, nil, quietLogger())

	for start := 0; start < 7; start++ {
		for end := start; end < 7; end++ {
			w := window(start, end)
			result, err := validator.Validate(ctx, models.DateRangeRequest{
				Training:   window(0, 0),
				Testing:    window(0, 0),
				Simulation: w,
			})
			require.NoError(t, err)
			records, err := store.ScanRange(ctx, models.RangeQuery{Window: w})
			require.NoError(t, err)
			assert.Equal(t, int64(len(records)), result.SimulationRecords, "window [%d,%d]", start, end)
		}
	}
}
