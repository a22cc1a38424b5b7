package services

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/irfndi/intelliinspect-go/internal/models"
)

// MockPredictor implements interfaces.Predictor for tests.
type MockPredictor struct {
	mock.Mock
}

func (m *MockPredictor) Train(ctx context.Context, req models.TrainingRequest) (*models.TrainingResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TrainingResponse), args.Error(1)
}

func (m *MockPredictor) Predict(ctx context.Context, record models.Record) (*models.Prediction, error) {
	args := m.Called(ctx, record)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Prediction), args.Error(1)
}

func (m *MockPredictor) HealthCheck(ctx context.Context) bool {
	args := m.Called(ctx)
	return args.Bool(0)
}

// EchoPredictor answers every Predict with a fixed label and the record's own
// values. It is used where a mock with per-call expectations is too noisy.
type EchoPredictor struct {
	Label      string
	Confidence float64
}

func (p EchoPredictor) Train(ctx context.Context, req models.TrainingRequest) (*models.TrainingResponse, error) {
	return &models.TrainingResponse{Success: true, Message: "Model trained successfully"}, nil
}

func (p EchoPredictor) Predict(ctx context.Context, record models.Record) (*models.Prediction, error) {
	return &models.Prediction{
		Timestamp:   record.Timestamp,
		SampleID:    "SAMPLE_" + record.Timestamp.UTC().Format("150405"),
		Prediction:  p.Label,
		Confidence:  p.Confidence,
		Temperature: record.Temperature,
		Pressure:    record.Pressure,
		Humidity:    record.Humidity,
	}, nil
}

func (p EchoPredictor) HealthCheck(ctx context.Context) bool {
	return true
}
