package predictor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/irfndi/intelliinspect-go/internal/config"
	"github.com/irfndi/intelliinspect-go/internal/models"
	"github.com/irfndi/intelliinspect-go/internal/utils"
	"github.com/irfndi/intelliinspect-go/pkg/interfaces"
)

// maxResponseBytes bounds how much of a predictor response is read.
const maxResponseBytes = 10 << 20

// Client talks to the external model service over HTTP.
type Client struct {
	BaseURL        string
	HTTPClient     *http.Client
	PredictTimeout time.Duration
	TrainTimeout   time.Duration
	logger         *logrus.Logger
}

var _ interfaces.Predictor = (*Client)(nil)

// NewClient creates a predictor client from configuration.
func NewClient(cfg config.PredictorConfig, logger *logrus.Logger) *Client {
	if logger == nil {
		logger = logrus.New()
	}
	return &Client{
		BaseURL: strings.TrimRight(cfg.ServiceURL, "/"),
		HTTPClient: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		PredictTimeout: cfg.TimeoutDuration(),
		TrainTimeout:   cfg.TrainTimeoutDuration(),
		logger:         logger,
	}
}

type trainPayload struct {
	TrainStart string `json:"trainStart"`
	TrainEnd   string `json:"trainEnd"`
	TestStart  string `json:"testStart"`
	TestEnd    string `json:"testEnd"`
}

type predictPayload struct {
	Timestamp          string  `json:"timestamp"`
	Temperature        float64 `json:"temperature"`
	Pressure           float64 `json:"pressure"`
	Humidity           float64 `json:"humidity"`
	AdditionalFeatures string  `json:"additionalFeatures"`
}

type predictResponse struct {
	Timestamp   string   `json:"timestamp"`
	SampleID    string   `json:"sampleId"`
	Prediction  string   `json:"prediction"`
	Confidence  *float64 `json:"confidence"`
	Temperature float64  `json:"temperature"`
	Pressure    float64  `json:"pressure"`
	Humidity    float64  `json:"humidity"`
}

type errorResponse struct {
	Detail string `json:"detail"`
	Error  string `json:"error"`
}

// Train asks the model service to train on the training window and score the
// testing window.
func (c *Client) Train(ctx context.Context, req models.TrainingRequest) (*models.TrainingResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.TrainTimeout)
	defer cancel()

	payload := trainPayload{
		TrainStart: utils.FormatTimestamp(req.TrainStart),
		TrainEnd:   utils.FormatTimestamp(req.TrainEnd),
		TestStart:  utils.FormatTimestamp(req.TestStart),
		TestEnd:    utils.FormatTimestamp(req.TestEnd),
	}

	var result models.TrainingResponse
	if err := c.makeRequest(ctx, http.MethodPost, "/train", payload, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Predict scores one record. The service response is returned as-is; a
// response that cannot be decoded yields an UpstreamError with CodeMalformedResponse.
func (c *Client) Predict(ctx context.Context, record models.Record) (*models.Prediction, error) {
	ctx, cancel := context.WithTimeout(ctx, c.PredictTimeout)
	defer cancel()

	features, err := record.ExtraFeatures.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to encode additional features: %w", err)
	}

	payload := predictPayload{
		Timestamp:          utils.FormatTimestamp(record.Timestamp),
		Temperature:        record.Temperature,
		Pressure:           record.Pressure,
		Humidity:           record.Humidity,
		AdditionalFeatures: string(features),
	}

	var resp *predictResponse
	if err := c.makeRequest(ctx, http.MethodPost, "/predict", payload, &resp); err != nil {
		return nil, err
	}
	if resp == nil || resp.Prediction == "" || resp.Confidence == nil {
		return nil, utils.NewUpstreamError(utils.CodeMalformedResponse, "predictor response is missing required fields", nil)
	}

	ts := record.Timestamp
	if resp.Timestamp != "" {
		parsed, err := utils.ParseTimestamp(resp.Timestamp)
		if err != nil {
			return nil, utils.NewUpstreamError(utils.CodeMalformedResponse, "predictor returned an invalid timestamp", err)
		}
		ts = parsed
	}

	return &models.Prediction{
		Timestamp:   ts,
		SampleID:    resp.SampleID,
		Prediction:  resp.Prediction,
		Confidence:  *resp.Confidence,
		Temperature: resp.Temperature,
		Pressure:    resp.Pressure,
		Humidity:    resp.Humidity,
	}, nil
}

// HealthCheck reports whether the service answers /health with a 2xx status.
func (c *Client) HealthCheck(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, c.PredictTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		c.logger.WithError(err).Debug("Predictor health check failed")
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))

	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

func (c *Client) makeRequest(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	url := c.BaseURL + path

	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return utils.NewUpstreamError(utils.CodePredictorUnavailable, "failed to create predictor request", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "IntelliInspect-Go/1.0")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return utils.NewUpstreamError(utils.CodePredictorUnavailable, "predictor request timed out", err)
		}
		return utils.NewUpstreamError(utils.CodePredictorUnavailable, "predictor request failed", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.WithError(err).Debug("Error closing predictor response body")
		}
	}()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return utils.NewUpstreamError(utils.CodePredictorUnavailable, "failed to read predictor response", err)
	}

	if resp.StatusCode >= 400 {
		var errorResp errorResponse
		detail := strings.TrimSpace(string(respBody))
		if err := json.Unmarshal(respBody, &errorResp); err == nil {
			if errorResp.Detail != "" {
				detail = errorResp.Detail
			} else if errorResp.Error != "" {
				detail = errorResp.Error
			}
		}
		return utils.NewUpstreamError(utils.CodePredictorUnavailable,
			fmt.Sprintf("predictor service error (%d)", resp.StatusCode), errors.New(detail))
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return utils.NewUpstreamError(utils.CodeMalformedResponse, "failed to decode predictor response", err)
		}
	}

	return nil
}
