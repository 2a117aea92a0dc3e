package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/pathlab-mcp-server/internal/domain"
	"github.com/pathlab-mcp-server/internal/events"
	"github.com/pathlab-mcp-server/internal/metrics"
	"github.com/pathlab-mcp-server/internal/middleware"
	"github.com/pathlab-mcp-server/internal/notify"
	"github.com/pathlab-mcp-server/internal/service"
)

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

// WhatsAppStatus is the read side of the WhatsApp session.
type WhatsAppStatus interface {
	Status() notify.Status
	QRCode() string
	Paired() bool
}

// Dependencies are the collaborators the HTTP API is built on. Templates,
// Events and WhatsApp are optional; their routes are only registered when
// they are set.
type Dependencies struct {
	Flags     *service.FlagService
	Reports   *service.ReportService
	Templates *service.TemplateResolver
	Events    *events.Hub
	WhatsApp  WhatsAppStatus
	Health    map[string]HealthCheck
	Version   string
	Logger    *logrus.Logger
}

// Server represents the HTTP server
type Server struct {
	config domain.ServerConfig
	deps   Dependencies
	router *gin.Engine
	server *http.Server
}

// NewServer creates a new HTTP server instance
func NewServer(config domain.ServerConfig, deps Dependencies) *Server {
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.RequestLogger(deps.Logger))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CORS(config.CORSOrigins))
	router.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/api/v1/events"})))

	if deps.Version == "" {
		deps.Version = "1.0.0"
	}

	s := &Server{
		config: config,
		deps:   deps,
		router: router,
	}
	s.setupRoutes()
	return s
}

// Router exposes the gin engine, mainly for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.deps.Logger.WithField("addr", addr).Info("HTTP server listening")
		var err error
		if s.config.TLSEnabled {
			err = s.server.ListenAndServeTLS(s.config.CertFile, s.config.KeyFile)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return s.server.Shutdown(shutdownCtx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	metrics.Register()

	s.router.GET("/health", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/classify", s.handleClassify)

		v1.POST("/reports", s.handleCreateReport)
		v1.GET("/reports", s.handleListReports)
		v1.GET("/reports/:id", s.handleGetReport)
		v1.PUT("/reports/:id/results", s.handleUpdateResults)

		if s.deps.Templates != nil {
			v1.POST("/templates", s.handleCreateTemplate)
			v1.GET("/templates", s.handleListTemplates)
			v1.GET("/templates/:id", s.handleGetTemplate)
			v1.PUT("/templates/:id", s.handleUpdateTemplate)
			v1.DELETE("/templates/:id", s.handleDeleteTemplate)
		}

		if s.deps.Events != nil {
			v1.GET("/events", s.handleEvents)
		}

		if s.deps.WhatsApp != nil {
			v1.GET("/notifications/whatsapp", s.handleWhatsAppStatus)
		}
	}
}
