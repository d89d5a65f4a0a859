package detection

import (
	"errors"
	"image"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/countnet/countnet-go/internal/conf"
	"github.com/countnet/countnet-go/internal/observability/metrics"
)

func TestMain(m *testing.M) {
	os.Exit(goleak.VerifyTestMain(m))
}

func newTestDetector(t *testing.T) *Detector {
	t.Helper()
	settings := conf.Default()
	m, err := metrics.NewDetectorMetrics(prometheus.NewRegistry())
	require.NoError(t, err)
	return New(settings, m)
}

func TestNewDetectorAppliesPolicySettings(t *testing.T) {
	settings := conf.Default()
	settings.Detector.Threshold = 0.25
	settings.Detector.TypeThresholds = map[string]float64{"person": 0.6}
	settings.Detector.EquivalenceThreshold = 0.4
	settings.Detector.EquivalencePenalty = 0.7

	m, err := metrics.NewDetectorMetrics(prometheus.NewRegistry())
	require.NoError(t, err)
	d := New(settings, m)

	assert.InDelta(t, 0.25, d.policy.Threshold, 1e-9)
	assert.InDelta(t, 0.6, d.policy.TypeThresholds["person"], 1e-9)
	assert.InDelta(t, 0.4, d.policy.EquivalenceThreshold, 1e-9)
	assert.InDelta(t, 0.7, d.policy.EquivalencePenalty, 1e-9)
}

func TestConcurrentInitLoadsModelOnce(t *testing.T) {
	d := newTestDetector(t)

	var calls atomic.Int64
	d.loadFn = func() error {
		calls.Add(1)
		time.Sleep(20 * time.Millisecond) // widen the race window
		return nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, d.ensureLoaded())
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), calls.Load())
	assert.Equal(t, int64(1), d.LoadCount())
}

func TestFailedLoadIsRetried(t *testing.T) {
	d := newTestDetector(t)

	var calls atomic.Int64
	d.loadFn = func() error {
		if calls.Add(1) == 1 {
			return errors.New("transient")
		}
		return nil
	}

	require.Error(t, d.ensureLoaded())
	assert.Equal(t, int64(0), d.LoadCount())

	require.NoError(t, d.ensureLoaded())
	assert.Equal(t, int64(1), d.LoadCount())
	assert.Equal(t, int64(2), calls.Load())
}

func TestLoadedModelIsNotReloaded(t *testing.T) {
	d := newTestDetector(t)

	var calls atomic.Int64
	d.loadFn = func() error {
		calls.Add(1)
		return nil
	}

	for i := 0; i < 5; i++ {
		require.NoError(t, d.ensureLoaded())
	}
	assert.Equal(t, int64(1), calls.Load())
}

func TestRenderSegmentedSkipsWhenNothingCounted(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 100, 100))
	path, err := RenderSegmented(img, []Detection{{Label: "car", Confidence: 0.9}}, "car", t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, path)
}

func TestRenderSegmentedWritesJPEG(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 100, 100))
	detections := []Detection{
		{Label: "car", Confidence: 0.9, Box: [4]float64{0.1, 0.1, 0.5, 0.5}, Counted: true},
	}

	dir := t.TempDir()
	path, err := RenderSegmented(img, detections, "car", dir)
	require.NoError(t, err)
	require.NotEmpty(t, path)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
	assert.Contains(t, path, "segmented_car_")
}
