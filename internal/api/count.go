// count.go: the counting endpoints
package api

import (
	"io"
	"net/http"
	"path/filepath"

	"github.com/labstack/echo/v4"

	"github.com/countnet/countnet-go/internal/errors"
	"github.com/countnet/countnet-go/internal/pipeline"
	"github.com/countnet/countnet-go/internal/safety"
)

// maxUploadBytes bounds a single uploaded image.
const maxUploadBytes = 20 << 20

// CountResponse is returned for successful counting requests.
type CountResponse struct {
	ResultID            string  `json:"result_id"`
	ObjectType          string  `json:"object_type"`
	Count               int     `json:"count"`
	Confidence          float64 `json:"confidence"`
	ProcessingTime      float64 `json:"processing_time"` // seconds
	Source              string  `json:"source"`
	SegmentedImagePath  string  `json:"segmented_image_path,omitempty"`
	TrainingImagesCount int     `json:"training_images_count,omitempty"`
}

// BlockedResponse is returned with 403 when the safety gate blocks a request.
type BlockedResponse struct {
	Reason        string        `json:"reason"`
	Message       string        `json:"message"`
	SafetyDetails SafetyDetails `json:"safety_details"`
}

// SafetyDetails exposes the gate decision to the caller.
type SafetyDetails struct {
	Confidence     float64  `json:"confidence"`
	ProcessingTime float64  `json:"processing_time"` // seconds
	ModelUsed      string   `json:"model_used"`
	RiskLevel      string   `json:"risk_level"`
	MatchedTerms   []string `json:"matched_terms,omitempty"`
}

func (c *Controller) handleCount(ctx echo.Context) error {
	return c.runCount(ctx, false)
}

func (c *Controller) handleCountLearned(ctx echo.Context) error {
	return c.runCount(ctx, true)
}

func (c *Controller) runCount(ctx echo.Context, learned bool) error {
	objectType := ctx.FormValue("object_type")

	data, filename, err := c.readUpload(ctx, "file")
	if err != nil {
		return c.handleError(ctx, err)
	}

	outcome, err := c.Pipeline.Process(ctx.Request().Context(), pipeline.CountRequest{
		ObjectType: objectType,
		Filename:   filename,
		Data:       data,
		Learned:    learned,
	})
	if err != nil {
		return c.handleError(ctx, err)
	}

	if outcome.Blocked {
		return ctx.JSON(http.StatusForbidden, blockedResponse(outcome.Decision))
	}

	resp := CountResponse{
		ResultID:            outcome.ResultID,
		ObjectType:          outcome.ObjectType,
		Count:               outcome.Count,
		Confidence:          outcome.Confidence,
		ProcessingTime:      outcome.ProcessingTime.Seconds(),
		Source:              outcome.Source,
		SegmentedImagePath:  c.segmentedURL(outcome.SegmentedImagePath),
		TrainingImagesCount: outcome.TrainingImages,
	}
	return ctx.JSON(http.StatusOK, resp)
}

func blockedResponse(d safety.Decision) BlockedResponse {
	return BlockedResponse{
		Reason:  d.Reason,
		Message: "this request cannot be processed",
		SafetyDetails: SafetyDetails{
			Confidence:     d.Confidence,
			ProcessingTime: d.ProcessingTime.Seconds(),
			ModelUsed:      d.ModelID,
			RiskLevel:      string(d.Risk),
			MatchedTerms:   d.MatchedTerms,
		},
	}
}

// readUpload extracts a single uploaded file from the multipart form.
func (c *Controller) readUpload(ctx echo.Context, field string) (data []byte, filename string, err error) {
	fh, err := ctx.FormFile(field)
	if err != nil {
		return nil, "", errors.New(err).
			Component("api").
			Category(errors.CategoryValidation).
			Context("field", field).
			Build()
	}
	if fh.Size > maxUploadBytes {
		return nil, "", errors.Newf("uploaded file exceeds the %d MB limit", maxUploadBytes>>20).
			Component("api").
			Category(errors.CategoryValidation).
			Build()
	}

	f, err := fh.Open()
	if err != nil {
		return nil, "", errors.New(err).
			Component("api").
			Category(errors.CategoryFileIO).
			Build()
	}
	defer func() { _ = f.Close() }()

	data, err = io.ReadAll(io.LimitReader(f, maxUploadBytes+1))
	if err != nil {
		return nil, "", errors.New(err).
			Component("api").
			Category(errors.CategoryFileIO).
			Build()
	}
	if len(data) > maxUploadBytes {
		return nil, "", errors.Newf("uploaded file exceeds the %d MB limit", maxUploadBytes>>20).
			Component("api").
			Category(errors.CategoryValidation).
			Build()
	}
	return data, fh.Filename, nil
}

// segmentedURL maps a stored segmented image path onto its served URL.
func (c *Controller) segmentedURL(path string) string {
	if path == "" {
		return ""
	}
	return "/segmented/" + filepath.Base(path)
}
