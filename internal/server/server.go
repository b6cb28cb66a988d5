// Package server exposes the solver to a browser control panel over HTTP.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"mcqsolver/internal/metrics"
	"mcqsolver/internal/progress"
	"mcqsolver/internal/relay"
	"mcqsolver/internal/settings"
	"mcqsolver/mcq"
)

// Pipeline is the solver as seen by the control surface.
type Pipeline interface {
	CheckQuestions(ctx context.Context, selector string) (mcq.CheckResult, error)
	TestCapture(ctx context.Context, selector string) mcq.CaptureResult
	Solve(ctx context.Context, req mcq.SolveRequest) (mcq.Summary, error)
}

// Relay answers cross-origin fetch requests.
type Relay interface {
	Handle(ctx context.Context, req relay.Request) relay.Response
}

// Config describes server wiring.
type Config struct {
	Pipeline Pipeline
	Settings *settings.Store
	Relay    Relay
	Hub      *progress.Hub
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
	// APIKey is the last-resort key when neither request nor settings carry one.
	APIKey string
	// AllowOrigins defaults to every origin.
	AllowOrigins []string
}

// Server exposes the HTTP handlers of the control surface.
type Server struct {
	cfg     Config
	engine  *gin.Engine
	log     *zap.Logger
	hub     *progress.Hub
	metrics *metrics.Metrics
}

func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Hub == nil {
		cfg.Hub = progress.NewHub(0)
	}
	if len(cfg.AllowOrigins) == 0 {
		cfg.AllowOrigins = []string{"*"}
	}
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		cfg:     cfg,
		engine:  gin.New(),
		log:     cfg.Logger.With(zap.String("component", "server")),
		hub:     cfg.Hub,
		metrics: cfg.Metrics,
	}
	s.engine.Use(gin.Recovery(), withLogging(s.log, s.metrics), cors.New(cors.Config{
		AllowOrigins: cfg.AllowOrigins,
		AllowMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders: []string{"Content-Type", "Accept", "Origin"},
		MaxAge:       12 * time.Hour,
	}))
	s.registerRoutes()
	return s
}

// Handler exposes the HTTP handler with middleware applied.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.engine.ServeHTTP(w, r)
}

func (s *Server) registerRoutes() {
	s.engine.GET("/ping", s.handlePing)
	api := s.engine.Group("/api")
	api.GET("/settings", s.handleGetSettings)
	api.PUT("/settings", s.handlePutSettings)
	api.POST("/check", s.handleCheck)
	api.POST("/test-capture", s.handleTestCapture)
	api.POST("/solve", s.handleSolve)
	api.POST("/relay", s.handleRelay)
	api.GET("/status", s.handleStatus)
	api.GET("/events", s.handleEvents)
	if s.metrics != nil {
		s.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{})))
	}
}

func withLogging(log *zap.Logger, m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		status := c.Writer.Status()
		log.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.String("from", c.ClientIP()),
			zap.Duration("took", time.Since(start)))
		if m != nil {
			path := c.FullPath()
			if path == "" {
				path = "unmatched"
			}
			m.HTTPRequests.WithLabelValues(c.Request.Method, path, http.StatusText(status)).Inc()
		}
	}
}
