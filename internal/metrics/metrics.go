package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for ingestion, validation and replay.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	IngestedRecords   prometheus.Counter
	IngestionRuns     *prometheus.CounterVec
	IngestionDuration prometheus.Histogram
	Validations       *prometheus.CounterVec
	Predictions       *prometheus.CounterVec
	PredictorLatency  *prometheus.HistogramVec
	BookmarkLookups   *prometheus.CounterVec
	APIRequests       *prometheus.CounterVec
	APIDuration       *prometheus.HistogramVec
	DatasetGeneration prometheus.Gauge
}

// New creates and registers all metrics on reg.
// Pass prometheus.DefaultRegisterer for the process-wide registry.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		IngestedRecords: factory.NewCounter(prometheus.CounterOpts{
			Name: "intelliinspect_ingested_records_total",
			Help: "Number of dataset records written by ingestion",
		}),
		IngestionRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "intelliinspect_ingestion_runs_total",
				Help: "Number of ingestion runs by outcome",
			},
			[]string{"outcome"},
		),
		IngestionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "intelliinspect_ingestion_duration_seconds",
			Help:    "Wall time of a full ingestion run",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		Validations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "intelliinspect_range_validations_total",
				Help: "Number of date range validations by result code",
			},
			[]string{"result"},
		),
		Predictions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "intelliinspect_predictions_total",
				Help: "Number of replay predictions by label",
			},
			[]string{"label"},
		),
		PredictorLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "intelliinspect_predictor_request_duration_seconds",
				Help:    "Latency of predictor calls",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "outcome"},
		),
		BookmarkLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "intelliinspect_replay_bookmark_lookups_total",
				Help: "Replay bookmark lookups by hit or miss",
			},
			[]string{"result"},
		),
		APIRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "intelliinspect_http_requests_total",
				Help: "HTTP requests by route and status",
			},
			[]string{"method", "route", "status"},
		),
		APIDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "intelliinspect_http_request_duration_seconds",
				Help:    "HTTP request latency by route",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		DatasetGeneration: factory.NewGauge(prometheus.GaugeOpts{
			Name: "intelliinspect_dataset_generation",
			Help: "Generation of the resident dataset",
		}),
	}
}

// RecordIngestion records one finished ingestion run.
func (m *Metrics) RecordIngestion(records int, duration time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	} else {
		m.IngestedRecords.Add(float64(records))
	}
	m.IngestionRuns.WithLabelValues(outcome).Inc()
	m.IngestionDuration.Observe(duration.Seconds())
}

// RecordGeneration publishes the resident dataset generation.
func (m *Metrics) RecordGeneration(generation int64) {
	if m == nil {
		return
	}
	m.DatasetGeneration.Set(float64(generation))
}

// RecordValidation counts a validation outcome; result is "valid" or an error code.
func (m *Metrics) RecordValidation(result string) {
	if m == nil {
		return
	}
	m.Validations.WithLabelValues(result).Inc()
}

// RecordPrediction counts one replay step by its prediction label.
func (m *Metrics) RecordPrediction(label string) {
	if m == nil {
		return
	}
	m.Predictions.WithLabelValues(label).Inc()
}

// RecordPredictorCall observes the latency of a predictor call.
func (m *Metrics) RecordPredictorCall(operation string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.PredictorLatency.WithLabelValues(operation, outcome).Observe(duration.Seconds())
}

// RecordBookmarkLookup counts a replay bookmark hit or miss.
func (m *Metrics) RecordBookmarkLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.BookmarkLookups.WithLabelValues(result).Inc()
}

// RecordAPIRequest records an HTTP request.
func (m *Metrics) RecordAPIRequest(method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.APIRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.APIDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}
