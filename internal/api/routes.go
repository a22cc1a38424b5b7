package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/irfndi/intelliinspect-go/internal/api/handlers"
	"github.com/irfndi/intelliinspect-go/internal/metrics"
	"github.com/irfndi/intelliinspect-go/internal/middleware"
)

// Handlers groups the HTTP handlers mounted by SetupRoutes.
type Handlers struct {
	Health     *handlers.HealthHandler
	Dataset    *handlers.DatasetHandler
	Model      *handlers.ModelHandler
	Simulation *handlers.SimulationHandler
}

// RouterOptions configures the middleware chain built by NewRouter.
type RouterOptions struct {
	ServiceName    string
	AllowedOrigins []string
	Metrics        *metrics.Metrics
	Logger         *logrus.Logger
}

// NewRouter returns a gin engine with recovery, request ids, CORS, tracing
// and request metrics installed.
func NewRouter(opts RouterOptions) *gin.Engine {
	if opts.Logger == nil {
		opts.Logger = logrus.New()
	}
	if opts.ServiceName == "" {
		opts.ServiceName = "intelliinspect-go"
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.CORS(opts.AllowedOrigins))
	router.Use(otelgin.Middleware(opts.ServiceName))
	router.Use(middleware.TelemetryMiddleware(opts.Metrics))
	router.Use(middleware.RequestLogger(opts.Logger))
	return router
}

// SetupRoutes mounts the API. gatherer backs /metrics and may be nil.
func SetupRoutes(router *gin.Engine, h Handlers, gatherer prometheus.Gatherer) {
	if h.Health != nil {
		router.GET("/health", h.Health.HealthCheck)
	}
	if gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	apiGroup := router.Group("/api")
	{
		dataset := apiGroup.Group("/dataset")
		{
			dataset.POST("/upload", h.Dataset.Upload)
			dataset.POST("/validate-ranges", h.Dataset.ValidateRanges)
			dataset.GET("/summary", h.Dataset.Summary)
		}

		model := apiGroup.Group("/model")
		{
			model.POST("/train", h.Model.Train)
			model.GET("/health", h.Model.Health)
		}

		simulation := apiGroup.Group("/simulation")
		{
			simulation.GET("/start", h.Simulation.Start)
			simulation.GET("/stream", h.Simulation.Stream)
			simulation.GET("/stats", h.Simulation.Stats)
		}
	}
}
