package interfaces

import (
	"context"

	"github.com/irfndi/intelliinspect-go/internal/models"
)

// Predictor is the external model service.
type Predictor interface {
	Train(ctx context.Context, req models.TrainingRequest) (*models.TrainingResponse, error)
	Predict(ctx context.Context, record models.Record) (*models.Prediction, error)
	HealthCheck(ctx context.Context) bool
}

// BookmarkStore remembers the record key found at a replay offset so the next
// offset can resume with a keyset seek instead of an offset skip.
type BookmarkStore interface {
	Get(ctx context.Context, cursor models.ReplayCursor) (models.RecordKey, bool)
	Set(ctx context.Context, cursor models.ReplayCursor, key models.RecordKey)
}
