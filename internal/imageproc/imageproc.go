// Package imageproc normalizes uploaded images into the tensor formats the
// model stages expect and derives simple image statistics.
package imageproc

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"

	// Registered decoders for the upload formats we accept.
	_ "image/gif"
	_ "image/png"

	xdraw "golang.org/x/image/draw"

	"github.com/countnet/countnet-go/internal/errors"
)

// Stats holds basic characteristics of a decoded image.
type Stats struct {
	Width       int
	Height      int
	AspectRatio float64
	Brightness  float64 // mean luminance, 0 (black) to 1 (white)
}

// Decode parses uploaded bytes into an image. Undecodable input yields a
// validation error so the caller can reject the request with a 4xx status.
func Decode(data []byte) (image.Image, string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", errors.New(err).
			Component("imageproc").
			Category(errors.CategoryImageDecode).
			Context("bytes", len(data)).
			Build()
	}
	return img, format, nil
}

// Analyze computes image statistics used by the heuristic safety classifier.
func Analyze(img image.Image) Stats {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	s := Stats{Width: w, Height: h}
	if h > 0 {
		s.AspectRatio = float64(w) / float64(h)
	}

	// Sample on a grid rather than every pixel, large uploads would otherwise
	// dominate request latency before the gate even runs.
	const maxSamples = 128
	stepX := max(1, w/maxSamples)
	stepY := max(1, h/maxSamples)

	var sum, n float64
	for y := bounds.Min.Y; y < bounds.Max.Y; y += stepY {
		for x := bounds.Min.X; x < bounds.Max.X; x += stepX {
			r, g, b, _ := img.At(x, y).RGBA()
			// ITU-R BT.601 luma on 16-bit channel values.
			luma := 0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)
			sum += luma / 65535.0
			n++
		}
	}
	if n > 0 {
		s.Brightness = sum / n
	}
	return s
}

// Resize scales the image to a square RGBA canvas of the given size using
// bilinear interpolation, matching the detector's fixed input resolution.
func Resize(img image.Image, size int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	xdraw.BiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), xdraw.Over, nil)
	return dst
}

// TensorScaled converts the image into a flat float32 RGB tensor with values
// scaled to [0,1], in HWC order. The image is resized to size x size first.
func TensorScaled(img image.Image, size int) []float32 {
	rgba := Resize(img, size)
	tensor := make([]float32, size*size*3)
	i := 0
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			c := rgba.RGBAAt(x, y)
			tensor[i] = float32(c.R) / 255.0
			tensor[i+1] = float32(c.G) / 255.0
			tensor[i+2] = float32(c.B) / 255.0
			i += 3
		}
	}
	return tensor
}

// TensorNormalized converts the image into a flat float32 RGB tensor
// normalized per channel with the given mean and standard deviation,
// the convention used by the safety classifier.
func TensorNormalized(img image.Image, size int, mean, std [3]float32) []float32 {
	rgba := Resize(img, size)
	tensor := make([]float32, size*size*3)
	i := 0
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			c := rgba.RGBAAt(x, y)
			tensor[i] = (float32(c.R)/255.0 - mean[0]) / std[0]
			tensor[i+1] = (float32(c.G)/255.0 - mean[1]) / std[1]
			tensor[i+2] = (float32(c.B)/255.0 - mean[2]) / std[2]
			i += 3
		}
	}
	return tensor
}

// DrawRect draws an axis-aligned rectangle outline onto the image.
func DrawRect(img *image.RGBA, x1, y1, x2, y2, thickness int, col color.RGBA) {
	bounds := img.Bounds()
	clamp := func(v, lo, hi int) int {
		if v < lo {
			return lo
		}
		if v > hi {
			return hi
		}
		return v
	}
	x1 = clamp(x1, bounds.Min.X, bounds.Max.X-1)
	x2 = clamp(x2, bounds.Min.X, bounds.Max.X-1)
	y1 = clamp(y1, bounds.Min.Y, bounds.Max.Y-1)
	y2 = clamp(y2, bounds.Min.Y, bounds.Max.Y-1)

	for t := 0; t < thickness; t++ {
		for x := x1; x <= x2; x++ {
			img.SetRGBA(x, clamp(y1+t, y1, y2), col)
			img.SetRGBA(x, clamp(y2-t, y1, y2), col)
		}
		for y := y1; y <= y2; y++ {
			img.SetRGBA(clamp(x1+t, x1, x2), y, col)
			img.SetRGBA(clamp(x2-t, x1, x2), y, col)
		}
	}
}

// EncodeJPEG encodes the image as JPEG bytes.
func EncodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		return nil, errors.New(err).
			Component("imageproc").
			Category(errors.CategoryImageEncode).
			Build()
	}
	return buf.Bytes(), nil
}
