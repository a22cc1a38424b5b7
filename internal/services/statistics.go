package services

import (
	"sync"

	"github.com/irfndi/intelliinspect-go/internal/models"
)

// StatisticsAggregator accumulates running statistics over one simulation run.
type StatisticsAggregator struct {
	mu    sync.RWMutex
	stats models.RunningStats
}

// NewStatisticsAggregator returns an aggregator with zeroed statistics.
func NewStatisticsAggregator() *StatisticsAggregator {
	return &StatisticsAggregator{}
}

// Observe folds one prediction into the statistics. The EndOfStream sentinel
// only marks the run complete.
//
// AverageConfidence follows avg = (avg + c) / 2, a recency-weighted blend and
// not the arithmetic mean. Existing dashboards depend on these values.
func (a *StatisticsAggregator) Observe(pred *models.Prediction) {
	if pred == nil {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if pred.IsEndOfStream() {
		a.stats.IsComplete = true
		return
	}

	a.stats.TotalPredictions++
	if pred.IsPass() {
		a.stats.PassCount++
	} else {
		a.stats.FailCount++
	}
	a.stats.AverageConfidence = (a.stats.AverageConfidence + pred.Confidence) / 2
}

// MarkComplete raises the completion flag.
func (a *StatisticsAggregator) MarkComplete() {
	a.mu.Lock()
	a.stats.IsComplete = true
	a.mu.Unlock()
}

// Snapshot returns a copy of the current statistics.
func (a *StatisticsAggregator) Snapshot() models.RunningStats {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.stats
}

// Reset zeroes the statistics for a new run.
func (a *StatisticsAggregator) Reset() {
	a.mu.Lock()
	a.stats = models.RunningStats{}
	a.mu.Unlock()
}
