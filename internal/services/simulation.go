package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/irfndi/intelliinspect-go/internal/models"
	"github.com/irfndi/intelliinspect-go/internal/utils"
	"github.com/irfndi/intelliinspect-go/pkg/interfaces"
)

// SimulationService tracks the current simulation run and feeds its replay
// steps into a StatisticsAggregator.
type SimulationService struct {
	store  interfaces.RecordStore
	engine *ReplayEngine
	stats  *StatisticsAggregator
	logger *logrus.Logger
	tick   time.Duration
	now    func() time.Time

	mu       sync.Mutex
	run      *models.SimulationRun
	observed map[int]struct{}
}

// NewSimulationService creates a simulation service. tick paces Run.
func NewSimulationService(store interfaces.RecordStore, engine *ReplayEngine, stats *StatisticsAggregator, tick time.Duration, logger *logrus.Logger) *SimulationService {
	if stats == nil {
		stats = NewStatisticsAggregator()
	}
	if tick <= 0 {
		tick = time.Second
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &SimulationService{
		store:  store,
		engine: engine,
		stats:  stats,
		logger: logger,
		tick:   tick,
		now:    time.Now,
	}
}

// Start begins a new run over window and resets the statistics.
func (s *SimulationService) Start(ctx context.Context, window models.Window) (*models.SimulationRun, error) {
	count, err := s.store.CountInRange(ctx, window)
	if err != nil {
		return nil, fmt.Errorf("failed to count simulation records: %w", err)
	}
	if count == 0 {
		return nil, utils.NewValidationError(utils.CodeNoRecords, "No records found for the specified date range")
	}
	generation, err := s.store.Generation(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset generation: %w", err)
	}

	run := &models.SimulationRun{
		RunID:       uuid.NewString(),
		Window:      window,
		RecordCount: count,
		Generation:  generation,
		StartedAt:   s.now().UTC(),
		Message:     "Simulation started",
	}

	s.mu.Lock()
	s.run = run
	s.observed = make(map[int]struct{})
	s.stats.Reset()
	s.mu.Unlock()

	s.logger.WithFields(logrus.Fields{
		"run_id":       run.RunID,
		"record_count": count,
		"generation":   generation,
	}).Info("Simulation started")

	copied := *run
	return &copied, nil
}

// Stream returns one replay step. When window is the current run's window the
// step counts towards the statistics, at most once per offset. A zero
// generation inherits the run's generation.
func (s *SimulationService) Stream(ctx context.Context, window models.Window, offset int, generation int64) (*models.Prediction, error) {
	s.mu.Lock()
	run := s.run
	s.mu.Unlock()

	inRun := run != nil && sameWindow(run.Window, window)
	if generation == 0 && inRun {
		generation = run.Generation
	}

	pred, err := s.engine.Next(ctx, models.ReplayCursor{
		Window:     window,
		Offset:     offset,
		Generation: generation,
	})
	if err != nil {
		return nil, err
	}

	if inRun {
		s.observe(run.RunID, offset, pred)
	}
	return pred, nil
}

func (s *SimulationService) observe(runID string, offset int, pred *models.Prediction) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.run == nil || s.run.RunID != runID {
		return
	}
	if _, seen := s.observed[offset]; seen {
		return
	}
	s.observed[offset] = struct{}{}
	s.stats.Observe(pred)
}

// Stats returns the statistics of the current run.
func (s *SimulationService) Stats() models.RunningStats {
	return s.stats.Snapshot()
}

// CurrentRun returns the current run, if any.
func (s *SimulationService) CurrentRun() (models.SimulationRun, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.run == nil {
		return models.SimulationRun{}, false
	}
	return *s.run, true
}

// Run starts a run over window and replays it at one record per tick until
// EndOfStream or ctx is done. onStep, if set, receives every step; an error
// from it stops the run.
func (s *SimulationService) Run(ctx context.Context, window models.Window, onStep func(offset int, pred *models.Prediction) error) (models.RunningStats, error) {
	run, err := s.Start(ctx, window)
	if err != nil {
		return models.RunningStats{}, err
	}

	limiter := rate.NewLimiter(rate.Every(s.tick), 1)
	for offset := 0; ; offset++ {
		if err := limiter.Wait(ctx); err != nil {
			return s.Stats(), err
		}

		pred, err := s.Stream(ctx, window, offset, run.Generation)
		if err != nil {
			return s.Stats(), err
		}
		if onStep != nil {
			if err := onStep(offset, pred); err != nil {
				return s.Stats(), err
			}
		}
		if pred.IsEndOfStream() {
			stats := s.Stats()
			s.logger.WithFields(logrus.Fields{
				"run_id":             run.RunID,
				"total_predictions":  stats.TotalPredictions,
				"pass_count":         stats.PassCount,
				"fail_count":         stats.FailCount,
				"average_confidence": stats.AverageConfidence,
			}).Info("Simulation complete")
			return stats, nil
		}
	}
}

func sameWindow(a, b models.Window) bool {
	return a.Start.Equal(b.Start) && a.End.Equal(b.End)
}
