package api

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
)

// metricsMiddleware records per-request counters and latency, and tracks the
// number of in-flight requests.
func (c *Controller) metricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			start := time.Now()
			c.metrics.HTTP.ActiveRequests.Inc()
			defer c.metrics.HTTP.ActiveRequests.Dec()

			err := next(ctx)
			if err != nil {
				ctx.Error(err)
			}

			c.metrics.HTTP.RecordRequest(
				ctx.Request().Method,
				ctx.Path(),
				strconv.Itoa(ctx.Response().Status),
				time.Since(start).Seconds(),
			)
			return err
		}
	}
}
