package imageproc

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/countnet/countnet-go/internal/errors"
)

// solidPNG returns PNG bytes for a solid-colored image.
func solidPNG(t *testing.T, w, h int, col color.RGBA) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, col)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestDecodeValidImage(t *testing.T) {
	img, format, err := Decode(solidPNG(t, 20, 10, color.RGBA{R: 255, A: 255}))
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, 20, img.Bounds().Dx())
}

func TestDecodeGarbageIsValidationFailure(t *testing.T) {
	_, _, err := Decode([]byte("definitely not an image"))
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryImageDecode))
}

func TestAnalyzeBrightnessExtremes(t *testing.T) {
	white, _, err := Decode(solidPNG(t, 40, 20, color.RGBA{255, 255, 255, 255}))
	require.NoError(t, err)
	black, _, err := Decode(solidPNG(t, 40, 20, color.RGBA{0, 0, 0, 255}))
	require.NoError(t, err)

	assert.InDelta(t, 1.0, Analyze(white).Brightness, 0.02)
	assert.InDelta(t, 0.0, Analyze(black).Brightness, 0.02)
}

func TestAnalyzeAspectRatio(t *testing.T) {
	img, _, err := Decode(solidPNG(t, 300, 100, color.RGBA{128, 128, 128, 255}))
	require.NoError(t, err)
	s := Analyze(img)
	assert.Equal(t, 300, s.Width)
	assert.Equal(t, 100, s.Height)
	assert.InDelta(t, 3.0, s.AspectRatio, 0.001)
}

func TestTensorScaledShapeAndRange(t *testing.T) {
	img, _, err := Decode(solidPNG(t, 64, 48, color.RGBA{255, 0, 0, 255}))
	require.NoError(t, err)

	tensor := TensorScaled(img, 32)
	require.Len(t, tensor, 32*32*3)

	// A solid red image keeps its channel layout through the resize.
	assert.InDelta(t, 1.0, float64(tensor[0]), 0.05) // R
	assert.InDelta(t, 0.0, float64(tensor[1]), 0.05) // G
	assert.InDelta(t, 0.0, float64(tensor[2]), 0.05) // B
}

func TestTensorNormalized(t *testing.T) {
	img, _, err := Decode(solidPNG(t, 16, 16, color.RGBA{255, 255, 255, 255}))
	require.NoError(t, err)

	mean := [3]float32{0.485, 0.456, 0.406}
	std := [3]float32{0.229, 0.224, 0.225}
	tensor := TensorNormalized(img, 8, mean, std)
	require.Len(t, tensor, 8*8*3)
	assert.InDelta(t, (1.0-0.485)/0.229, float64(tensor[0]), 0.05)
}

func TestResizeProducesRequestedSize(t *testing.T) {
	img, _, err := Decode(solidPNG(t, 123, 77, color.RGBA{0, 255, 0, 255}))
	require.NoError(t, err)
	resized := Resize(img, 64)
	assert.Equal(t, 64, resized.Bounds().Dx())
	assert.Equal(t, 64, resized.Bounds().Dy())
}
