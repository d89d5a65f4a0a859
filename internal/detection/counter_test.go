package detection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPolicy() PolicyConfig {
	return PolicyConfig{
		Threshold:            0.15,
		EquivalenceThreshold: 0.3,
		EquivalencePenalty:   0.8,
	}
}

func TestApplyPolicyDirectMatches(t *testing.T) {
	detections := []Detection{
		{Label: "car", Confidence: 0.9},
		{Label: "car", Confidence: 0.2},
		{Label: "car", Confidence: 0.1}, // below threshold
		{Label: "person", Confidence: 0.95},
	}

	summary := ApplyPolicy(detections, "car", testPolicy())
	assert.Equal(t, 2, summary.Count)
	assert.Equal(t, 4, summary.TotalDetected)
	assert.InDelta(t, (0.9+0.2)/2, summary.Confidence, 1e-9)
	assert.Equal(t, []string{"car", "car"}, summary.CountedLabels)

	assert.True(t, summary.Detections[0].Counted)
	assert.True(t, summary.Detections[1].Counted)
	assert.False(t, summary.Detections[2].Counted)
	assert.False(t, summary.Detections[3].Counted)
}

func TestApplyPolicyEquivalenceNeedsHigherBar(t *testing.T) {
	detections := []Detection{
		{Label: "dog", Confidence: 0.5},
		{Label: "dog", Confidence: 0.25}, // above direct bar, below equivalence bar
	}

	summary := ApplyPolicy(detections, "cat", testPolicy())
	require.Equal(t, 1, summary.Count)
	// Equivalence matches report a penalized confidence.
	assert.InDelta(t, 0.5*0.8, summary.Confidence, 1e-9)
	assert.Equal(t, []string{"dog"}, summary.CountedLabels)
}

func TestApplyPolicyEquivalenceDoesNotCrossGroups(t *testing.T) {
	detections := []Detection{
		{Label: "dog", Confidence: 0.99},
	}
	summary := ApplyPolicy(detections, "car", testPolicy())
	assert.Zero(t, summary.Count)
	assert.Zero(t, summary.Confidence)
}

func TestApplyPolicyPerTypeThresholdOverride(t *testing.T) {
	cfg := testPolicy()
	cfg.TypeThresholds = map[string]float64{"person": 0.6}

	detections := []Detection{
		{Label: "person", Confidence: 0.5},
		{Label: "person", Confidence: 0.7},
	}
	summary := ApplyPolicy(detections, "person", cfg)
	assert.Equal(t, 1, summary.Count)
	assert.InDelta(t, 0.7, summary.Confidence, 1e-9)
}

func TestApplyPolicyNoDetectionsIsValidZero(t *testing.T) {
	summary := ApplyPolicy(nil, "car", testPolicy())
	assert.Zero(t, summary.Count)
	assert.Zero(t, summary.Confidence)
	assert.Zero(t, summary.TotalDetected)
	assert.Empty(t, summary.CountedLabels)
}

func TestEquivalentSameLabelIsNot(t *testing.T) {
	assert.False(t, Equivalent("cat", "cat"))
	assert.True(t, Equivalent("cat", "dog"))
	assert.True(t, Equivalent("zebra", "horse"))
	assert.False(t, Equivalent("cat", "car"))
	assert.False(t, Equivalent("car", "person"))
}

func TestLabelForClassCollapsesVehicles(t *testing.T) {
	for _, id := range []int{2, 3, 5, 7} {
		assert.Equal(t, "car", LabelForClass(id), "class %d", id)
	}
	assert.Equal(t, "person", LabelForClass(0))
	assert.Equal(t, LabelOther, LabelForClass(1))
	assert.Equal(t, LabelOther, LabelForClass(999))
}

func TestIsBuiltinType(t *testing.T) {
	assert.True(t, IsBuiltinType("car"))
	assert.True(t, IsBuiltinType("tank"))
	assert.False(t, IsBuiltinType("unicorn"))
	assert.False(t, IsBuiltinType("Car"))
}
