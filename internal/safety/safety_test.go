package safety

import (
	"context"
	"errors"
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/countnet/countnet-go/internal/conf"
	cerrors "github.com/countnet/countnet-go/internal/errors"
	"github.com/countnet/countnet-go/internal/observability/metrics"
)

// stubClassifier returns a fixed probability or error.
type stubClassifier struct {
	probability float64
	err         error
}

func (s *stubClassifier) Probability(context.Context, image.Image, string) (float64, error) {
	return s.probability, s.err
}

func (s *stubClassifier) ModelID() string { return "stub" }

func newTestGate(t *testing.T, classifier Classifier, failClosed bool) *Gate {
	t.Helper()
	settings := conf.Default()
	settings.Safety.FailClosed = failClosed

	m, err := metrics.NewSafetyMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	return NewGate(settings, m).WithClassifier(classifier)
}

func testImage() image.Image {
	return image.NewRGBA(image.Rect(0, 0, 10, 10))
}

func TestBlocklistedCategoryAlwaysBlocked(t *testing.T) {
	// Even a classifier reporting zero probability must not matter: the
	// category text check blocks before the classifier runs.
	gate := newTestGate(t, &stubClassifier{probability: 0}, false)

	for _, category := range []string{"tank", "battle tank", "Military Truck", "anti-tank weapon"} {
		decision := gate.Evaluate(context.Background(), testImage(), category, "photo.jpg", nil)
		assert.False(t, decision.Allowed, "category %q must be blocked", category)
		assert.Equal(t, ReasonCategoryBlocked, decision.Reason)
		assert.Equal(t, RiskHigh, decision.Risk)
		assert.NotEmpty(t, decision.MatchedTerms)
	}
}

func TestTrainingLabelsCheckedLikeCategory(t *testing.T) {
	gate := newTestGate(t, &stubClassifier{probability: 0}, false)
	decision := gate.Evaluate(context.Background(), testImage(), "toy", "photo.jpg", []string{"submarine"})
	assert.False(t, decision.Allowed)
	assert.Equal(t, ReasonCategoryBlocked, decision.Reason)
}

func TestHighContentProbabilityBlocks(t *testing.T) {
	gate := newTestGate(t, &stubClassifier{probability: 0.92}, false)
	decision := gate.Evaluate(context.Background(), testImage(), "cat", "cat.jpg", nil)
	assert.False(t, decision.Allowed)
	assert.Equal(t, ReasonContentDetected, decision.Reason)
	assert.InDelta(t, 0.92, decision.Confidence, 0.001)
}

func TestThresholdBoundaryBlocks(t *testing.T) {
	gate := newTestGate(t, &stubClassifier{probability: 0.8}, false)
	decision := gate.Evaluate(context.Background(), testImage(), "cat", "cat.jpg", nil)
	assert.False(t, decision.Allowed, "probability equal to the threshold blocks")
}

func TestFilenameMatchRaisesRiskButDoesNotBlock(t *testing.T) {
	gate := newTestGate(t, &stubClassifier{probability: 0.1}, false)
	decision := gate.Evaluate(context.Background(), testImage(), "cat", "tank_photo.jpg", nil)
	assert.True(t, decision.Allowed)
	assert.Equal(t, RiskMedium, decision.Risk)
	assert.NotEmpty(t, decision.MatchedTerms)
}

func TestAllowedDecisionReportsClassifierDetails(t *testing.T) {
	gate := newTestGate(t, &stubClassifier{probability: 0.25}, false)
	decision := gate.Evaluate(context.Background(), testImage(), "cat", "cat.jpg", nil)
	require.True(t, decision.Allowed)
	assert.Equal(t, "stub", decision.ModelID)
	assert.InDelta(t, 0.25, decision.Confidence, 0.001)
	assert.Equal(t, RiskLow, decision.Risk)
}

func TestFailOpenOnClassifierError(t *testing.T) {
	gate := newTestGate(t, &stubClassifier{err: errors.New("broken tensor")}, false)
	decision := gate.Evaluate(context.Background(), testImage(), "cat", "cat.jpg", nil)
	assert.True(t, decision.Allowed, "fail-open allows on internal failure")
	assert.Equal(t, ReasonCheckFailed, decision.Reason)
	assert.Equal(t, int64(1), gate.Stats().CheckFailures)
}

func TestFailClosedOnClassifierError(t *testing.T) {
	gate := newTestGate(t, &stubClassifier{err: errors.New("broken tensor")}, true)
	decision := gate.Evaluate(context.Background(), testImage(), "cat", "cat.jpg", nil)
	assert.False(t, decision.Allowed)
	assert.Equal(t, ReasonCheckFailed, decision.Reason)
}

func TestStatsAccumulate(t *testing.T) {
	gate := newTestGate(t, &stubClassifier{probability: 0}, false)
	gate.Evaluate(context.Background(), testImage(), "tank", "a.jpg", nil)
	gate.Evaluate(context.Background(), testImage(), "cat", "b.jpg", nil)

	stats := gate.Stats()
	assert.Equal(t, int64(2), stats.TotalEvaluations)
	assert.Equal(t, int64(1), stats.Blocked)
	assert.Equal(t, int64(1), stats.CategoryBlocks)
}

func TestBlocklistMatchIsDeterministic(t *testing.T) {
	// "military tank convoy" contains several blocklist terms; the reported
	// term must not depend on map iteration order across constructions.
	// With groups flattened in sorted key order the vehicles group wins and
	// its first listed term is reported.
	for i := 0; i < 20; i++ {
		b := NewBlocklist(nil)
		term, ok := b.Match("military tank convoy")
		require.True(t, ok)
		assert.Equal(t, "tank", term)
	}
}

func TestBlocklistExtraTerms(t *testing.T) {
	b := NewBlocklist([]string{"Forbidden Widget"})
	term, ok := b.Match("a forbidden widget photo")
	require.True(t, ok)
	assert.Equal(t, "forbidden widget", term)
}

func TestModelClassifierRetriesFailedLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "classifier.tflite")
	c := NewModelClassifier(path)

	// First attempt fails at the read stage, the file does not exist yet.
	_, err := c.Probability(context.Background(), testImage(), "a.jpg")
	require.Error(t, err)
	assert.True(t, cerrors.HasCategory(err, cerrors.CategoryModelLoad))

	// Once the file appears, a later call must re-attempt the load instead
	// of replaying the cached read failure: the error moves past the read
	// stage to model initialization.
	require.NoError(t, os.WriteFile(path, []byte("not a model"), 0o644))
	_, err = c.Probability(context.Background(), testImage(), "a.jpg")
	require.Error(t, err)
	assert.True(t, cerrors.HasCategory(err, cerrors.CategoryModelInit))
}

func TestHeuristicClassifierDarkMilitaryFilename(t *testing.T) {
	h := NewHeuristicClassifier()

	// Small bright image with a harmless filename scores zero.
	bright := image.NewRGBA(image.Rect(0, 0, 50, 50))
	for y := 0; y < 50; y++ {
		for x := 0; x < 50; x++ {
			bright.Set(x, y, image.White)
		}
	}
	p, err := h.Probability(context.Background(), bright, "kitten.jpg")
	require.NoError(t, err)
	assert.Zero(t, p)

	// The same bright image with a military filename and large resolution
	// crosses the lenient bar.
	large := image.NewRGBA(image.Rect(0, 0, 400, 400))
	for y := 0; y < 400; y++ {
		for x := 0; x < 400; x++ {
			large.Set(x, y, image.White)
		}
	}
	p, err = h.Probability(context.Background(), large, "tank_front.jpg")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, p, 0.85)

	// A very large, very dark image is flagged even with a harmless name.
	dark := image.NewRGBA(image.Rect(0, 0, 800, 800))
	p, err = h.Probability(context.Background(), dark, "landscape.jpg")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, p, 0.8)
}
