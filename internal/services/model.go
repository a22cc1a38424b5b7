package services

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/irfndi/intelliinspect-go/internal/models"
	"github.com/irfndi/intelliinspect-go/internal/utils"
	"github.com/irfndi/intelliinspect-go/pkg/interfaces"
)

// ModelService forwards training requests and health checks to the predictor.
type ModelService struct {
	predictor interfaces.Predictor
	logger    *logrus.Logger
}

func NewModelService(predictor interfaces.Predictor, logger *logrus.Logger) *ModelService {
	if logger == nil {
		logger = logrus.New()
	}
	return &ModelService{predictor: predictor, logger: logger}
}

// Train asks the predictor to train on req.TrainStart..TrainEnd and evaluate on
// req.TestStart..TestEnd. On failure the returned response is a structured
// {Success: false, Message} result alongside a TrainingFailed UpstreamError.
func (s *ModelService) Train(ctx context.Context, req models.TrainingRequest) (*models.TrainingResponse, error) {
	if req.TrainStart.After(req.TrainEnd) || req.TestStart.After(req.TestEnd) {
		return nil, utils.NewInputError(utils.CodeInvalidArgument, "each start date must not be after its end date")
	}

	resp, err := s.predictor.Train(ctx, req)
	if err != nil {
		s.logger.WithError(err).Warn("Model training failed")
		failed := &models.TrainingResponse{
			Success: false,
			Message: fmt.Sprintf("Training failed: %v", err),
		}
		return failed, utils.NewUpstreamError(utils.CodeTrainingFailed, "model training failed", err)
	}
	if resp == nil {
		resp = &models.TrainingResponse{Message: "Training failed: empty response"}
	}
	if !resp.Success {
		if resp.Message == "" {
			resp.Message = "Training failed"
		}
		return resp, utils.NewUpstreamError(utils.CodeTrainingFailed, resp.Message, nil)
	}

	s.logger.WithFields(logrus.Fields{
		"accuracy":  resp.Accuracy,
		"precision": resp.Precision,
		"recall":    resp.Recall,
		"f1_score":  resp.F1Score,
	}).Info("Model trained")
	return resp, nil
}

// Healthy reports whether the predictor service is reachable.
func (s *ModelService) Healthy(ctx context.Context) bool {
	return s.predictor.HealthCheck(ctx)
}
