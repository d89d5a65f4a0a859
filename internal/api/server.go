// server.go: HTTP server lifecycle around the API controller
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/countnet/countnet-go/internal/conf"
	"github.com/countnet/countnet-go/internal/datastore"
	"github.com/countnet/countnet-go/internal/fewshot"
	"github.com/countnet/countnet-go/internal/logging"
	"github.com/countnet/countnet-go/internal/observability"
	"github.com/countnet/countnet-go/internal/pipeline"
)

// Server wraps the Echo instance and the API controller.
type Server struct {
	Echo       *echo.Echo
	Controller *Controller
	Settings   *conf.Settings
	log        *slog.Logger
}

// NewServer assembles the Echo server: middleware, the JSON API, the metrics
// endpoint, and static serving of segmented images.
func NewServer(settings *conf.Settings, ds datastore.Interface, p *pipeline.Pipeline, manager *fewshot.Manager, metrics *observability.Metrics) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.IPExtractor = echo.ExtractIPFromXFFHeader()

	e.Use(middleware.Recover())
	if settings.WebServer.Debug {
		e.Use(middleware.Logger())
	}

	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))
	e.Static("/segmented", settings.SegmentedDir())

	s := &Server{
		Echo:       e,
		Controller: New(e, settings, ds, p, manager, metrics),
		Settings:   settings,
		log:        logging.ForService("http"),
	}
	return s
}

// Start begins serving. It blocks until the listener fails or Shutdown is
// called; a closed-server error is reported as nil.
func (s *Server) Start() error {
	addr := ":" + s.Settings.WebServer.Port
	s.log.Info("http server starting", "addr", addr)

	if err := s.Echo.Start(addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	s.log.Info("http server shutting down")
	return s.Echo.Shutdown(shutdownCtx)
}
