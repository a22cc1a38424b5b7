package handlers

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/irfndi/intelliinspect-go/internal/database"
	"github.com/irfndi/intelliinspect-go/internal/services"
	"github.com/irfndi/intelliinspect-go/pkg/interfaces"
)

var testEpoch = time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)

const threeRowCSV = "Id,Response\n1,1\n2,0\n3,1\n"

type apiResponse struct {
	Success bool            `json:"success"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
	Data    json.RawMessage `json:"data"`
}

type fixture struct {
	router *gin.Engine
	store  *database.MemoryStore
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

// newFixture wires the real services over an in-memory store.
func newFixture(t *testing.T, predictor interfaces.Predictor) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := quietLogger()

	store := database.NewMemoryStore()
	ingestion := services.NewIngestionService(store, nil, services.IngestionOptions{
		Epoch:  testEpoch,
		Random: func() float64 { return 0.5 },
	}, nil, nil, logger)
	validator := services.NewRangeValidator(store, false, nil, nil, logger)
	engine := services.NewReplayEngine(store, predictor, nil, nil, nil, logger)
	simulation := services.NewSimulationService(store, engine, nil, time.Millisecond, logger)
	model := services.NewModelService(predictor, logger)

	router := gin.New()
	dataset := NewDatasetHandler(ingestion, validator, 1, logger)
	router.POST("/api/dataset/upload", dataset.Upload)
	router.POST("/api/dataset/validate-ranges", dataset.ValidateRanges)
	router.GET("/api/dataset/summary", dataset.Summary)

	modelHandler := NewModelHandler(model)
	router.POST("/api/model/train", modelHandler.Train)
	router.GET("/api/model/health", modelHandler.Health)

	sim := NewSimulationHandler(simulation)
	router.GET("/api/simulation/start", sim.Start)
	router.GET("/api/simulation/stream", sim.Stream)
	router.GET("/api/simulation/stats", sim.Stats)

	return &fixture{router: router, store: store}
}

func (f *fixture) do(t *testing.T, req *http.Request) (int, apiResponse) {
	t.Helper()
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	var resp apiResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return w.Code, resp
}

func (f *fixture) get(t *testing.T, target string) (int, apiResponse) {
	t.Helper()
	return f.do(t, httptest.NewRequest(http.MethodGet, target, nil))
}

func (f *fixture) postJSON(t *testing.T, target string, body interface{}) (int, apiResponse) {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, target, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	return f.do(t, req)
}

func (f *fixture) upload(t *testing.T, fileName, content string) (int, apiResponse) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", fileName)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/dataset/upload", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return f.do(t, req)
}

func decodeData(t *testing.T, resp apiResponse, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(resp.Data, dst))
}
