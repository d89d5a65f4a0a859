// objecttypes.go: the built-in category listing
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/countnet/countnet-go/internal/detection"
)

func (c *Controller) handleGetObjectTypes(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string]any{
		"object_types": detection.BuiltinTypes,
	})
}
