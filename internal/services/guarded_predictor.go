package services

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/irfndi/intelliinspect-go/internal/metrics"
	"github.com/irfndi/intelliinspect-go/internal/models"
	"github.com/irfndi/intelliinspect-go/internal/telemetry"
	"github.com/irfndi/intelliinspect-go/internal/utils"
	"github.com/irfndi/intelliinspect-go/pkg/interfaces"
)

// GuardedPredictor wraps a Predictor with a circuit breaker, latency metrics
// and client spans. Malformed responses do not trip the breaker.
type GuardedPredictor struct {
	next    interfaces.Predictor
	breaker *CircuitBreaker
	metrics *metrics.Metrics
	tracer  *telemetry.BusinessTracer
	logger  *logrus.Logger
}

var _ interfaces.Predictor = (*GuardedPredictor)(nil)

// NewGuardedPredictor wraps next. breaker, m and tracer may be nil.
func NewGuardedPredictor(next interfaces.Predictor, breaker *CircuitBreaker, m *metrics.Metrics, tracer *telemetry.BusinessTracer, logger *logrus.Logger) *GuardedPredictor {
	if logger == nil {
		logger = logrus.New()
	}
	if breaker == nil {
		breaker = NewCircuitBreaker("predictor", CircuitBreakerConfig{}, logger)
	}
	if tracer == nil {
		tracer = telemetry.NewBusinessTracer()
	}
	return &GuardedPredictor{
		next:    next,
		breaker: breaker,
		metrics: m,
		tracer:  tracer,
		logger:  logger,
	}
}

// Breaker exposes the circuit breaker for health reporting.
func (g *GuardedPredictor) Breaker() *CircuitBreaker {
	return g.breaker
}

func (g *GuardedPredictor) Train(ctx context.Context, req models.TrainingRequest) (*models.TrainingResponse, error) {
	var resp *models.TrainingResponse
	err := g.call(ctx, "train", func(ctx context.Context) error {
		var err error
		resp, err = g.next.Train(ctx, req)
		return err
	})
	return resp, err
}

func (g *GuardedPredictor) Predict(ctx context.Context, record models.Record) (*models.Prediction, error) {
	var pred *models.Prediction
	err := g.call(ctx, "predict", func(ctx context.Context) error {
		var err error
		pred, err = g.next.Predict(ctx, record)
		return err
	})
	return pred, err
}

// HealthCheck bypasses the breaker so that health output reflects the service
// itself. A successful probe closes an open breaker.
func (g *GuardedPredictor) HealthCheck(ctx context.Context) bool {
	ctx, span := g.tracer.TracePredictorCall(ctx, "health")
	defer span.End()

	healthy := g.next.HealthCheck(ctx)
	if healthy && g.breaker.IsOpen() {
		g.breaker.Reset()
	}
	return healthy
}

func (g *GuardedPredictor) call(ctx context.Context, operation string, fn func(context.Context) error) error {
	ctx, span := g.tracer.TracePredictorCall(ctx, operation)
	defer span.End()

	start := time.Now()
	var malformed error
	err := g.breaker.Execute(ctx, func(ctx context.Context) error {
		err := fn(ctx)
		if utils.HasCode(err, utils.CodeMalformedResponse) {
			// the service answered; only the payload is bad
			malformed = err
			return nil
		}
		return err
	})
	if malformed != nil {
		err = malformed
	}
	g.metrics.RecordPredictorCall(operation, time.Since(start), err)

	if errors.Is(err, ErrCircuitOpen) {
		err = utils.NewUpstreamError(utils.CodePredictorUnavailable, "predictor circuit is open", err)
	}
	if err != nil {
		telemetry.RecordError(span, err)
		g.logger.WithFields(logrus.Fields{
			"operation": operation,
			"code":      utils.CodeOf(err),
		}).WithError(err).Debug("Predictor call failed")
	}
	return err
}
