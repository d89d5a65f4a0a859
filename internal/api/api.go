// Package api exposes the counting service as a JSON API under /api/v1.
// Handlers stay thin: transport decoding, a pipeline call, and the mapping
// from the error taxonomy onto HTTP status codes.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/patrickmn/go-cache"

	"github.com/countnet/countnet-go/internal/conf"
	"github.com/countnet/countnet-go/internal/datastore"
	"github.com/countnet/countnet-go/internal/errors"
	"github.com/countnet/countnet-go/internal/fewshot"
	"github.com/countnet/countnet-go/internal/logging"
	"github.com/countnet/countnet-go/internal/observability"
	"github.com/countnet/countnet-go/internal/pipeline"
)

// Controller manages the API routes and handlers.
type Controller struct {
	Echo     *echo.Echo
	Group    *echo.Group
	Settings *conf.Settings
	DS       datastore.Interface
	Pipeline *pipeline.Pipeline
	FewShot  *fewshot.Manager

	metrics     *observability.Metrics
	resultCache *cache.Cache
	logger      *slog.Logger
	startTime   time.Time
}

// New creates the API controller and registers its routes on the given Echo
// instance.
func New(e *echo.Echo, settings *conf.Settings, ds datastore.Interface, p *pipeline.Pipeline, manager *fewshot.Manager, metrics *observability.Metrics) *Controller {
	c := &Controller{
		Echo:        e,
		Settings:    settings,
		DS:          ds,
		Pipeline:    p,
		FewShot:     manager,
		metrics:     metrics,
		resultCache: cache.New(5*time.Minute, 10*time.Minute),
		logger:      logging.ForService("api"),
		startTime:   time.Now(),
	}
	c.initRoutes()
	return c
}

func (c *Controller) initRoutes() {
	c.Group = c.Echo.Group("/api/v1", c.metricsMiddleware())

	c.Group.POST("/count", c.handleCount)
	c.Group.POST("/count-learned", c.handleCountLearned)
	c.Group.POST("/correct", c.handleCorrect)
	c.Group.GET("/results", c.handleGetResults)
	c.Group.GET("/results/:id", c.handleGetResult)
	c.Group.GET("/accuracy", c.handleGetAccuracy)
	c.Group.GET("/statistics", c.handleGetStatistics)

	c.Group.POST("/learn-object", c.handleLearnObject)
	c.Group.GET("/learned-objects", c.handleGetLearnedObjects)
	c.Group.GET("/learned-objects/:name", c.handleGetLearnedObject)
	c.Group.DELETE("/learned-objects/:name", c.handleDeleteLearnedObject)

	c.Group.GET("/object-types", c.handleGetObjectTypes)

	c.Echo.GET("/health", c.handleHealth)
}

// errorResponse is the common error body.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// handleError maps the internal error taxonomy onto HTTP status codes.
// Internal failures are logged in full but reported to callers with a
// generic message.
func (c *Controller) handleError(ctx echo.Context, err error) error {
	status := http.StatusInternalServerError
	message := "internal server error"

	switch {
	case errors.HasCategory(err, errors.CategoryValidation),
		errors.HasCategory(err, errors.CategoryImageDecode):
		status = http.StatusBadRequest
		message = err.Error()
	case errors.HasCategory(err, errors.CategoryNotFound):
		status = http.StatusNotFound
		message = err.Error()
	case errors.HasCategory(err, errors.CategorySafety):
		status = http.StatusForbidden
		message = err.Error()
	}

	if status == http.StatusInternalServerError {
		c.logger.Error("request failed",
			"path", ctx.Request().URL.Path,
			"method", ctx.Request().Method,
			"error", err)
	}

	return ctx.JSON(status, errorResponse{
		Error:   http.StatusText(status),
		Message: message,
		Code:    status,
	})
}

// handleHealth reports liveness and basic uptime information.
func (c *Controller) handleHealth(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string]any{
		"status":         "healthy",
		"name":           c.Settings.Main.Name,
		"uptime_seconds": int64(time.Since(c.startTime).Seconds()),
	})
}
