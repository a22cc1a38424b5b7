package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/irfndi/intelliinspect-go/internal/middleware"
	"github.com/irfndi/intelliinspect-go/internal/models"
)

// SimulationRunner drives replay steps and exposes run statistics.
type SimulationRunner interface {
	Start(ctx context.Context, window models.Window) (*models.SimulationRun, error)
	Stream(ctx context.Context, window models.Window, offset int, generation int64) (*models.Prediction, error)
	Stats() models.RunningStats
}

type SimulationHandler struct {
	simulation SimulationRunner
}

func NewSimulationHandler(simulation SimulationRunner) *SimulationHandler {
	return &SimulationHandler{simulation: simulation}
}

// Start begins a run over [start, end] and resets the statistics.
// @Summary Start simulation
// @Tags simulation
// @Param start query string true "Window start"
// @Param end query string true "Window end"
// @Produce json
// @Router /api/simulation/start [get]
func (h *SimulationHandler) Start(c *gin.Context) {
	window, ok := queryWindow(c)
	if !ok {
		return
	}

	run, err := h.simulation.Start(c.Request.Context(), window)
	if err != nil {
		respondError(c, err, nil)
		return
	}
	respondOK(c, run)
}

// Stream returns the prediction for the record at offset within [start, end].
// Past the last record the EndOfStream sentinel (zero timestamp) is returned.
// @Summary Stream one replay step
// @Tags simulation
// @Param start query string true "Window start"
// @Param end query string true "Window end"
// @Param offset query int false "Zero-based offset"
// @Param generation query int false "Expected dataset generation"
// @Produce json
// @Router /api/simulation/stream [get]
func (h *SimulationHandler) Stream(c *gin.Context) {
	window, ok := queryWindow(c)
	if !ok {
		return
	}
	offset, ok := queryInt(c, "offset", 0)
	if !ok {
		return
	}
	generation, ok := queryInt(c, "generation", 0)
	if !ok {
		return
	}

	middleware.AddSpanAttribute(c, "simulation.offset", offset)
	pred, err := h.simulation.Stream(c.Request.Context(), window, int(offset), generation)
	if err != nil {
		respondError(c, err, nil)
		return
	}
	respondOK(c, pred)
}

// Stats returns the running statistics of the current run.
// @Summary Simulation statistics
// @Tags simulation
// @Produce json
// @Router /api/simulation/stats [get]
func (h *SimulationHandler) Stats(c *gin.Context) {
	respondOK(c, h.simulation.Stats())
}
