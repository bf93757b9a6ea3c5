// Package http assembles the detection API's route tree and its server.
package http

import (
	"github.com/gin-gonic/gin"

	"github.com/turtacn/StoryLink-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/StoryLink-Intelligence/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/StoryLink-Intelligence/internal/interfaces/http/handlers"
	"github.com/turtacn/StoryLink-Intelligence/internal/interfaces/http/middleware"
)

// RouterConfig aggregates the handler and middleware dependencies required
// to construct the complete route tree.
type RouterConfig struct {
	// Handlers
	AnalyzeHandler  *handlers.AnalyzeHandler
	RegistryHandler *handlers.RegistryHandler
	HealthHandler   *handlers.HealthHandler

	// Infrastructure
	Logger    logging.Logger
	Metrics   *prometheus.DetectionMetrics
	Collector prometheus.MetricsCollector

	// Mode selects the gin mode: "debug", "release", or "test".
	Mode string

	// CORS overrides the default CORS policy when non-nil.
	CORS *middleware.CORSConfig
}

// NewRouter constructs the route tree: global middleware, public probe and
// metrics endpoints, and the /api/v1 detection surface.
func NewRouter(cfg RouterConfig) *gin.Engine {
	switch cfg.Mode {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	r := gin.New()
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogging(logger, middleware.DefaultLoggingConfig()))
	if cfg.Metrics != nil {
		r.Use(middleware.Metrics(cfg.Metrics))
	}
	corsCfg := middleware.DefaultCORSConfig()
	if cfg.CORS != nil {
		corsCfg = *cfg.CORS
	}
	r.Use(middleware.CORS(corsCfg))

	// Probes and metrics stay outside /api/v1 so infrastructure can reach
	// them without API routing rules.
	if cfg.HealthHandler != nil {
		r.GET("/healthz", cfg.HealthHandler.Liveness)
		r.GET("/readyz", cfg.HealthHandler.Readiness)
	}
	if cfg.Collector != nil {
		r.GET("/metrics", gin.WrapH(cfg.Collector.Handler()))
	}

	api := r.Group("/api/v1")
	if cfg.AnalyzeHandler != nil {
		api.POST("/analyze", cfg.AnalyzeHandler.Analyze)

		docs := api.Group("/documents/:documentID")
		docs.POST("/scans", cfg.AnalyzeHandler.Schedule)
		docs.DELETE("/scans", cfg.AnalyzeHandler.CancelScan)
		docs.GET("/history", cfg.AnalyzeHandler.History)
	}
	if cfg.RegistryHandler != nil {
		api.POST("/projects/:projectID/snapshot/invalidate", cfg.RegistryHandler.InvalidateSnapshot)
	}

	return r
}
