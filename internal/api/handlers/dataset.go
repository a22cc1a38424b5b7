package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/irfndi/intelliinspect-go/internal/middleware"
	"github.com/irfndi/intelliinspect-go/internal/models"
	"github.com/irfndi/intelliinspect-go/internal/utils"
)

// DatasetIngester is the ingestion side of the dataset endpoints.
type DatasetIngester interface {
	Ingest(ctx context.Context, r io.Reader, fileName string) (*models.DatasetSummary, error)
	Summary(ctx context.Context) (*models.DatasetSummary, error)
}

// RangeValidator validates training/testing/simulation windows.
type RangeValidator interface {
	Validate(ctx context.Context, req models.DateRangeRequest) (*models.DateRangeValidation, error)
}

// DatasetHandler serves upload, range validation and summary.
type DatasetHandler struct {
	ingestion      DatasetIngester
	validator      RangeValidator
	maxUploadBytes int64
	logger         *logrus.Logger
}

// NewDatasetHandler creates a dataset handler. maxUploadMB <= 0 disables the size limit.
func NewDatasetHandler(ingestion DatasetIngester, validator RangeValidator, maxUploadMB int, logger *logrus.Logger) *DatasetHandler {
	if logger == nil {
		logger = logrus.New()
	}
	return &DatasetHandler{
		ingestion:      ingestion,
		validator:      validator,
		maxUploadBytes: int64(maxUploadMB) << 20,
		logger:         logger,
	}
}

// Upload ingests a multipart "file" field, replacing the resident dataset.
// @Summary Upload dataset
// @Tags dataset
// @Accept multipart/form-data
// @Produce json
// @Router /api/dataset/upload [post]
func (h *DatasetHandler) Upload(c *gin.Context) {
	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{
				"success": false,
				"error":   fmt.Sprintf("File exceeds the %d MB upload limit", h.maxUploadBytes>>20),
			})
			return
		}
		respondError(c, utils.NewInputError(utils.CodeEmptyFile, "No file uploaded"), nil)
		return
	}
	defer func() {
		_ = file.Close()
	}()

	middleware.AddSpanAttribute(c, "dataset.file_name", header.Filename)
	middleware.AddSpanAttribute(c, "dataset.file_size", header.Size)
	summary, err := h.ingestion.Ingest(c.Request.Context(), file, header.Filename)
	if err != nil {
		h.logger.WithError(err).WithField("file_name", header.Filename).Warn("Dataset upload rejected")
		respondError(c, err, nil)
		return
	}
	respondOK(c, summary)
}

type validateRangesRequest struct {
	TrainingStart   string `json:"trainingStart" binding:"required"`
	TrainingEnd     string `json:"trainingEnd" binding:"required"`
	TestingStart    string `json:"testingStart" binding:"required"`
	TestingEnd      string `json:"testingEnd" binding:"required"`
	SimulationStart string `json:"simulationStart" binding:"required"`
	SimulationEnd   string `json:"simulationEnd" binding:"required"`
	Generation      int64  `json:"generation"`
}

func (r validateRangesRequest) toModel() (models.DateRangeRequest, error) {
	var req models.DateRangeRequest
	windows := []struct {
		name       string
		start, end string
		dst        *models.Window
	}{
		{"training", r.TrainingStart, r.TrainingEnd, &req.Training},
		{"testing", r.TestingStart, r.TestingEnd, &req.Testing},
		{"simulation", r.SimulationStart, r.SimulationEnd, &req.Simulation},
	}
	for _, w := range windows {
		start, err := utils.ParseTimestamp(w.start)
		if err != nil {
			return req, fmt.Errorf("%s start: %w", w.name, err)
		}
		end, err := utils.ParseTimestamp(w.end)
		if err != nil {
			return req, fmt.Errorf("%s end: %w", w.name, err)
		}
		*w.dst = models.Window{Start: start, End: end}
	}
	req.Generation = r.Generation
	return req, nil
}

// ValidateRanges checks the three windows against the resident dataset.
// @Summary Validate date ranges
// @Tags dataset
// @Accept json
// @Produce json
// @Router /api/dataset/validate-ranges [post]
func (h *DatasetHandler) ValidateRanges(c *gin.Context) {
	var body validateRangesRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "Invalid request body: "+err.Error())
		return
	}
	req, err := body.toModel()
	if err != nil {
		respondError(c, err, nil)
		return
	}

	result, err := h.validator.Validate(c.Request.Context(), req)
	if err != nil {
		respondError(c, err, nil)
		return
	}
	respondOK(c, result)
}

// Summary returns the summary of the resident dataset.
// @Summary Dataset summary
// @Tags dataset
// @Produce json
// @Router /api/dataset/summary [get]
func (h *DatasetHandler) Summary(c *gin.Context) {
	summary, err := h.ingestion.Summary(c.Request.Context())
	if err != nil {
		respondError(c, err, nil)
		return
	}
	respondOK(c, summary)
}
