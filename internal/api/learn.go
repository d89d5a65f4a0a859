// learn.go: few-shot category registration and registry endpoints
package api

import (
	"io"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"

	"github.com/countnet/countnet-go/internal/errors"
)

// LearnResponse confirms a registered category.
type LearnResponse struct {
	ObjectType          string `json:"object_type"`
	TrainingImagesCount int    `json:"training_images_count"`
	Message             string `json:"message"`
}

func (c *Controller) handleLearnObject(ctx echo.Context) error {
	objectType := ctx.FormValue("object_type")

	form, err := ctx.MultipartForm()
	if err != nil {
		return c.handleError(ctx, errors.New(err).
			Component("api").
			Category(errors.CategoryValidation).
			Build())
	}

	var images [][]byte
	for _, fh := range form.File["files"] {
		if fh.Size > maxUploadBytes {
			return c.handleError(ctx, errors.Newf("training image %q exceeds the %d MB limit", fh.Filename, maxUploadBytes>>20).
				Component("api").
				Category(errors.CategoryValidation).
				Build())
		}
		f, err := fh.Open()
		if err != nil {
			return c.handleError(ctx, errors.New(err).
				Component("api").
				Category(errors.CategoryFileIO).
				Build())
		}
		data, err := io.ReadAll(io.LimitReader(f, maxUploadBytes+1))
		_ = f.Close()
		if err != nil {
			return c.handleError(ctx, errors.New(err).
				Component("api").
				Category(errors.CategoryFileIO).
				Build())
		}
		images = append(images, data)
	}

	info, err := c.FewShot.Learn(ctx.Request().Context(), objectType, images)
	if err != nil {
		return c.handleError(ctx, err)
	}

	return ctx.JSON(http.StatusOK, LearnResponse{
		ObjectType:          info.Name,
		TrainingImagesCount: info.TrainingImages,
		Message:             "object type learned successfully",
	})
}

func (c *Controller) handleGetLearnedObjects(ctx echo.Context) error {
	infos := c.FewShot.List()
	names := make([]string, 0, len(infos))
	for _, info := range infos {
		names = append(names, info.Name)
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"learned_object_types": names,
	})
}

func (c *Controller) handleGetLearnedObject(ctx echo.Context) error {
	info, err := c.FewShot.Info(paramName(ctx))
	if err != nil {
		return c.handleError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, info)
}

func (c *Controller) handleDeleteLearnedObject(ctx echo.Context) error {
	name := paramName(ctx)
	if err := c.FewShot.Delete(name); err != nil {
		return c.handleError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"message": "object type deleted",
		"name":    name,
	})
}

// paramName extracts the :name path parameter, undoing percent-escaping.
func paramName(ctx echo.Context) string {
	raw := ctx.Param("name")
	if unescaped, err := url.PathUnescape(raw); err == nil {
		return unescaped
	}
	return raw
}
