package models

import (
	"time"
)

// Label values carried by the CSV Response column.
const (
	LabelFail = 0
	LabelPass = 1
)

// Record is one ingested CSV row.
type Record struct {
	ID            int64      `json:"id" db:"id"`
	Timestamp     time.Time  `json:"timestamp" db:"synthetic_timestamp"`
	Label         int        `json:"response" db:"response"`
	Temperature   float64    `json:"temperature" db:"temperature"`
	Pressure      float64    `json:"pressure" db:"pressure"`
	Humidity      float64    `json:"humidity" db:"humidity"`
	ExtraFeatures FeatureBag `json:"additionalFeatures" db:"additional_features"`
}

// Key returns the (timestamp, id) scan position of the record.
func (r Record) Key() RecordKey {
	return RecordKey{Timestamp: r.Timestamp, ID: r.ID}
}

// RecordKey orders records by timestamp, ties broken by store-assigned id.
type RecordKey struct {
	Timestamp time.Time `json:"timestamp"`
	ID        int64     `json:"id"`
}

// Less reports whether k sorts before other.
func (k RecordKey) Less(other RecordKey) bool {
	if k.Timestamp.Equal(other.Timestamp) {
		return k.ID < other.ID
	}
	return k.Timestamp.Before(other.Timestamp)
}

// Window is a closed time interval.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t lies in [Start, End].
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// Days returns floor((End-Start) in days). Negative spans return 0.
func (w Window) Days() int {
	span := w.End.Sub(w.Start)
	if span < 0 {
		return 0
	}
	return int(span / (24 * time.Hour))
}

// RangeQuery selects an ascending slice of the records in a window.
// When After is set the scan resumes strictly after that key and Offset counts from there.
type RangeQuery struct {
	Window Window
	Offset int
	Limit  int
	After  *RecordKey
}

// DatasetSummary describes a completed ingestion.
type DatasetSummary struct {
	FileName          string    `json:"fileName"`
	TotalRecords      int       `json:"totalRecords"`
	TotalColumns      int       `json:"totalColumns"`
	PassRate          float64   `json:"passRate"`
	EarliestTimestamp time.Time `json:"earliestTimestamp"`
	LatestTimestamp   time.Time `json:"latestTimestamp"`
	Generation        int64     `json:"generation"`
	Status            string    `json:"status"`
	Message           string    `json:"message"`
}

// DateRangeRequest holds the three windows submitted for validation.
type DateRangeRequest struct {
	Training   Window `json:"training"`
	Testing    Window `json:"testing"`
	Simulation Window `json:"simulation"`
	// Generation, when non-zero, must match the store's current dataset generation.
	Generation int64 `json:"generation,omitempty"`
}

// DateRangeValidation is the result of a successful range validation.
type DateRangeValidation struct {
	IsValid           bool   `json:"isValid"`
	Message           string `json:"message"`
	TrainingRecords   int64  `json:"trainingRecords"`
	TestingRecords    int64  `json:"testingRecords"`
	SimulationRecords int64  `json:"simulationRecords"`
	TrainingDays      int    `json:"trainingDays"`
	TestingDays       int    `json:"testingDays"`
	SimulationDays    int    `json:"simulationDays"`
	Generation        int64  `json:"generation"`
}
