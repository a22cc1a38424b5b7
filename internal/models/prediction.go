package models

import (
	"time"
)

// Prediction labels.
const (
	PredictionPass    = "Pass"
	PredictionFail    = "Fail"
	PredictionUnknown = "Unknown"
	PredictionError   = "Error"
)

// EndOfStream is the timestamp carried by the replay sentinel (0001-01-01T00:00:00Z).
var EndOfStream = time.Time{}

// Prediction is one replayed record as scored by the predictor.
type Prediction struct {
	Timestamp   time.Time `json:"timestamp"`
	SampleID    string    `json:"sampleId"`
	Prediction  string    `json:"prediction"`
	Confidence  float64   `json:"confidence"`
	Temperature float64   `json:"temperature"`
	Pressure    float64   `json:"pressure"`
	Humidity    float64   `json:"humidity"`
}

// EndOfStreamPrediction returns the replay sentinel.
func EndOfStreamPrediction() *Prediction {
	return &Prediction{Timestamp: EndOfStream}
}

// IsEndOfStream reports whether p is the replay sentinel.
func (p *Prediction) IsEndOfStream() bool {
	return p != nil && p.Timestamp.Equal(EndOfStream)
}

// IsPass reports whether the predicted label is the pass sentinel.
func (p *Prediction) IsPass() bool {
	return p.Prediction == PredictionPass
}

// ReplayCursor addresses one record of a window by its ordinal position.
type ReplayCursor struct {
	Window Window `json:"window"`
	Offset int    `json:"offset"`
	// Generation, when non-zero, must match the store's current dataset generation.
	Generation int64 `json:"generation,omitempty"`
}

// RunningStats accumulates statistics over a simulation run.
type RunningStats struct {
	TotalPredictions  int     `json:"totalPredictions"`
	PassCount         int     `json:"passCount"`
	FailCount         int     `json:"failCount"`
	AverageConfidence float64 `json:"averageConfidence"`
	IsComplete        bool    `json:"isComplete"`
}

// SimulationRun describes a started simulation.
type SimulationRun struct {
	RunID       string    `json:"runId"`
	Window      Window    `json:"window"`
	RecordCount int64     `json:"recordCount"`
	Generation  int64     `json:"generation"`
	StartedAt   time.Time `json:"startedAt"`
	Message     string    `json:"message"`
}

// TrainingRequest carries the training and testing windows.
type TrainingRequest struct {
	TrainStart time.Time `json:"trainStart"`
	TrainEnd   time.Time `json:"trainEnd"`
	TestStart  time.Time `json:"testStart"`
	TestEnd    time.Time `json:"testEnd"`
}

// TrainingResponse is the predictor's training outcome.
type TrainingResponse struct {
	Success         bool    `json:"success"`
	Message         string  `json:"message"`
	Accuracy        float64 `json:"accuracy"`
	Precision       float64 `json:"precision"`
	Recall          float64 `json:"recall"`
	F1Score         float64 `json:"f1Score"`
	ConfusionMatrix string  `json:"confusionMatrix"`
	TrainingChart   string  `json:"trainingChart"`
}
