package handlers

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockHealthChecker is a testify mock for HealthChecker.
type MockHealthChecker struct {
	mock.Mock
}

func (m *MockHealthChecker) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockPredictorHealth is a testify mock for PredictorHealth.
type MockPredictorHealth struct {
	mock.Mock
}

func (m *MockPredictorHealth) HealthCheck(ctx context.Context) bool {
	args := m.Called(ctx)
	return args.Bool(0)
}
