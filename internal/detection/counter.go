// counter.go: counting policy applied to raw detections
package detection

// PolicyConfig holds the thresholds of the counting policy.
type PolicyConfig struct {
	Threshold            float64            // default confidence threshold for direct label matches
	TypeThresholds       map[string]float64 // per-category overrides
	EquivalenceThreshold float64            // threshold for equivalence-group matches
	EquivalencePenalty   float64            // confidence scale factor for equivalence-group matches
}

// Summary is the outcome of applying the counting policy to one image.
type Summary struct {
	Count         int         // number of detections credited to the requested category
	Confidence    float64     // mean confidence across counted detections, 0 when none
	Detections    []Detection // all raw detections, counted or not
	CountedLabels []string    // labels of the counted detections
	TotalDetected int         // total raw detections
}

// ApplyPolicy decides which detections count toward the requested category.
// A detection counts when its label equals the category and its confidence
// meets the per-category threshold, or when its label is equivalent to the
// category and meets the higher equivalence threshold; equivalence matches
// contribute a penalized confidence. Zero counted detections is a valid
// outcome, reported as count 0 and confidence 0.
func ApplyPolicy(detections []Detection, category string, cfg PolicyConfig) Summary {
	summary := Summary{
		Detections:    detections,
		TotalDetected: len(detections),
	}

	threshold := cfg.Threshold
	if override, ok := cfg.TypeThresholds[category]; ok {
		threshold = override
	}

	var confidenceSum float64
	for i := range detections {
		d := &detections[i]
		switch {
		case d.Label == category && d.Confidence >= threshold:
			summary.Count++
			summary.CountedLabels = append(summary.CountedLabels, d.Label)
			confidenceSum += d.Confidence
			d.Counted = true
		case Equivalent(d.Label, category) && d.Confidence >= cfg.EquivalenceThreshold:
			summary.Count++
			summary.CountedLabels = append(summary.CountedLabels, d.Label)
			confidenceSum += d.Confidence * cfg.EquivalencePenalty
			d.Counted = true
		}
	}

	if summary.Count > 0 {
		summary.Confidence = confidenceSum / float64(summary.Count)
	}
	return summary
}
