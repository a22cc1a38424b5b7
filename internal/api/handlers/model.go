package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/irfndi/intelliinspect-go/internal/models"
	"github.com/irfndi/intelliinspect-go/internal/utils"
)

// ModelTrainer forwards training requests to the predictor service.
type ModelTrainer interface {
	Train(ctx context.Context, req models.TrainingRequest) (*models.TrainingResponse, error)
	Healthy(ctx context.Context) bool
}

type ModelHandler struct {
	model ModelTrainer
}

func NewModelHandler(model ModelTrainer) *ModelHandler {
	return &ModelHandler{model: model}
}

type trainRequest struct {
	TrainStart string `json:"trainStart" binding:"required"`
	TrainEnd   string `json:"trainEnd" binding:"required"`
	TestStart  string `json:"testStart" binding:"required"`
	TestEnd    string `json:"testEnd" binding:"required"`
}

func (r trainRequest) toModel() (models.TrainingRequest, error) {
	var req models.TrainingRequest
	fields := []struct {
		name  string
		value string
		dst   *time.Time
	}{
		{"trainStart", r.TrainStart, &req.TrainStart},
		{"trainEnd", r.TrainEnd, &req.TrainEnd},
		{"testStart", r.TestStart, &req.TestStart},
		{"testEnd", r.TestEnd, &req.TestEnd},
	}
	for _, f := range fields {
		t, err := utils.ParseTimestamp(f.value)
		if err != nil {
			return req, fmt.Errorf("%s: %w", f.name, err)
		}
		*f.dst = t
	}
	return req, nil
}

// Train asks the predictor to train on the given windows. A failed training
// is answered with the structured {success: false, message} result.
// @Summary Train model
// @Tags model
// @Accept json
// @Produce json
// @Router /api/model/train [post]
func (h *ModelHandler) Train(c *gin.Context) {
	var body trainRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "Invalid request body: "+err.Error())
		return
	}
	req, err := body.toModel()
	if err != nil {
		respondError(c, err, nil)
		return
	}

	resp, err := h.model.Train(c.Request.Context(), req)
	if err != nil {
		if resp != nil {
			respondError(c, err, resp)
		} else {
			respondError(c, err, nil)
		}
		return
	}
	respondOK(c, resp)
}

// Health reports whether the predictor service is reachable.
// @Summary Predictor health
// @Tags model
// @Produce json
// @Router /api/model/health [get]
func (h *ModelHandler) Health(c *gin.Context) {
	respondOK(c, gin.H{"isHealthy": h.model.Healthy(c.Request.Context())})
}
