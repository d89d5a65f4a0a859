// corrections.go: result lookups, corrections, and accuracy reporting
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/countnet/countnet-go/internal/datastore"
	"github.com/countnet/countnet-go/internal/errors"
)

// CorrectRequest is the body of POST /correct.
type CorrectRequest struct {
	ResultID       string `json:"result_id"`
	CorrectedCount int    `json:"corrected_count"`
}

// CorrectResponse confirms a recorded correction and reports the refreshed
// overall accuracy.
type CorrectResponse struct {
	ResultID       string                    `json:"result_id"`
	CorrectedCount int                       `json:"corrected_count"`
	Accuracy       datastore.AccuracySummary `json:"accuracy"`
}

// ResultResponse is one stored count result.
type ResultResponse struct {
	ResultID           string    `json:"result_id"`
	ObjectType         string    `json:"object_type"`
	Count              int       `json:"count"`
	Confidence         float64   `json:"confidence"`
	Source             string    `json:"source"`
	SegmentedImagePath string    `json:"segmented_image_path,omitempty"`
	ProcessingTimeMs   int64     `json:"processing_time_ms"`
	CorrectedCount     *int      `json:"corrected_count,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
}

func (c *Controller) handleCorrect(ctx echo.Context) error {
	var req CorrectRequest
	if err := ctx.Bind(&req); err != nil {
		return c.handleError(ctx, errors.New(err).
			Component("api").
			Category(errors.CategoryValidation).
			Build())
	}

	summary, err := c.Pipeline.Correct(ctx.Request().Context(), req.ResultID, req.CorrectedCount)
	if err != nil {
		return c.handleError(ctx, err)
	}

	// The stored result changed, drop any cached copy.
	c.resultCache.Delete(req.ResultID)

	return ctx.JSON(http.StatusOK, CorrectResponse{
		ResultID:       req.ResultID,
		CorrectedCount: req.CorrectedCount,
		Accuracy:       summary,
	})
}

func (c *Controller) handleGetResult(ctx echo.Context) error {
	id := ctx.Param("id")

	if cached, found := c.resultCache.Get(id); found {
		return ctx.JSON(http.StatusOK, cached)
	}

	result, err := c.DS.GetResult(id)
	if err != nil {
		return c.handleError(ctx, err)
	}

	resp := resultResponse(c, result)
	c.resultCache.SetDefault(id, resp)
	return ctx.JSON(http.StatusOK, resp)
}

func (c *Controller) handleGetResults(ctx echo.Context) error {
	limit := parseQueryInt(ctx, "limit", 100)
	offset := parseQueryInt(ctx, "offset", 0)
	if limit < 1 || limit > 1000 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	results, err := c.DS.GetAllResults(limit, offset)
	if err != nil {
		return c.handleError(ctx, err)
	}

	resp := make([]ResultResponse, 0, len(results))
	for i := range results {
		resp = append(resp, resultResponse(c, results[i]))
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"results": resp,
		"limit":   limit,
		"offset":  offset,
	})
}

func (c *Controller) handleGetAccuracy(ctx echo.Context) error {
	overall, byType, err := c.Pipeline.Accuracy()
	if err != nil {
		return c.handleError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"overall":   overall,
		"precision": overall.PrecisionPercent(),
		"recall":    overall.RecallPercent(),
		"by_type":   byType,
	})
}

func (c *Controller) handleGetStatistics(ctx echo.Context) error {
	stats, err := c.DS.Statistics()
	if err != nil {
		return c.handleError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, stats)
}

func resultResponse(c *Controller, r datastore.CountResult) ResultResponse {
	resp := ResultResponse{
		ResultID:           r.ResultID,
		ObjectType:         r.ObjectType,
		Count:              r.Count,
		Confidence:         r.Confidence,
		Source:             r.Source,
		SegmentedImagePath: c.segmentedURL(r.SegmentedImagePath),
		ProcessingTimeMs:   r.ProcessingTimeMs,
		CreatedAt:          r.CreatedAt,
	}
	if r.Correction != nil {
		corrected := r.Correction.CorrectedCount
		resp.CorrectedCount = &corrected
	}
	return resp
}

func parseQueryInt(ctx echo.Context, name string, fallback int) int {
	raw := ctx.QueryParam(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
