// Package safety implements the gate deciding whether a counting request is
// safe to process before any detector runs.
package safety

import (
	"context"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/countnet/countnet-go/internal/conf"
	"github.com/countnet/countnet-go/internal/logging"
	"github.com/countnet/countnet-go/internal/observability/metrics"
)

// RiskLevel grades how sensitive a request looks.
type RiskLevel string

const (
	RiskNone   RiskLevel = "none"
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Block reasons reported to callers and used as metric labels.
const (
	ReasonCategoryBlocked = "category blocked"
	ReasonContentDetected = "sensitive content detected"
	ReasonCheckFailed     = "safety check failed"
)

// Decision is the outcome of a safety gate evaluation. It is always reported
// back to the caller in full, whether the request was blocked or allowed.
type Decision struct {
	Allowed        bool          `json:"allowed"`
	Risk           RiskLevel     `json:"risk_level"`
	Reason         string        `json:"reason,omitempty"`
	Confidence     float64       `json:"confidence"`
	ProcessingTime time.Duration `json:"processing_time"`
	ModelID        string        `json:"model_used"`
	MatchedTerms   []string      `json:"matched_terms,omitempty"`
}

// Classifier estimates the probability that an image contains sensitive
// content. Implementations must be safe for concurrent use. The gate treats
// this as a pluggable strategy so a trained model can replace the heuristic
// without changing any caller.
type Classifier interface {
	Probability(ctx context.Context, img image.Image, filename string) (float64, error)
	ModelID() string
}

// Stats are the gate's running block statistics.
type Stats struct {
	TotalEvaluations int64 `json:"total_evaluations"`
	Blocked          int64 `json:"blocked"`
	CategoryBlocks   int64 `json:"category_blocks"`
	ContentBlocks    int64 `json:"content_blocks"`
	CheckFailures    int64 `json:"check_failures"`
}

// Gate runs the safety checks and combines them into a Decision.
type Gate struct {
	blocklist  *Blocklist
	classifier Classifier
	threshold  float64
	failClosed bool
	metrics    *metrics.SafetyMetrics
	log        *slog.Logger

	mu    sync.Mutex
	stats Stats
}

// NewGate builds a safety gate from settings. When a classifier model path is
// configured a TFLite classifier is used, otherwise the heuristic stands in.
func NewGate(settings *conf.Settings, m *metrics.SafetyMetrics) *Gate {
	var classifier Classifier
	if settings.Safety.ModelPath != "" {
		classifier = NewModelClassifier(settings.Safety.ModelPath)
	} else {
		classifier = NewHeuristicClassifier()
	}
	return &Gate{
		blocklist:  NewBlocklist(settings.Safety.ExtraBlocklist),
		classifier: classifier,
		threshold:  settings.Safety.BlockThreshold,
		failClosed: settings.Safety.FailClosed,
		metrics:    m,
		log:        logging.ForService("safety"),
	}
}

// WithClassifier replaces the content classifier. Used by tests and by
// deployments substituting a genuine trained model.
func (g *Gate) WithClassifier(c Classifier) *Gate {
	g.classifier = c
	return g
}

// Evaluate runs the three safety checks in order of cost: category text,
// filename/labels, then image content. The image classifier only runs when
// the cheaper text checks have not already forced a block.
func (g *Gate) Evaluate(ctx context.Context, img image.Image, category, filename string, labels []string) Decision {
	start := time.Now()
	g.bump(func(s *Stats) { s.TotalEvaluations++ })

	// Check 1: requested category and any training labels against the
	// blocklist. A match blocks outright, without spending classifier time.
	texts := append([]string{category}, labels...)
	if matched := g.blocklist.MatchAny(texts...); len(matched) > 0 {
		g.bump(func(s *Stats) { s.Blocked++; s.CategoryBlocks++ })
		decision := Decision{
			Allowed:        false,
			Risk:           RiskHigh,
			Reason:         ReasonCategoryBlocked,
			Confidence:     1.0,
			ProcessingTime: time.Since(start),
			ModelID:        "blocklist",
			MatchedTerms:   matched,
		}
		g.record(category, decision)
		return decision
	}

	// Check 2: filename and metadata strings. A match raises the risk level
	// but never blocks on its own.
	risk := RiskNone
	var matchedTerms []string
	if terms := g.blocklist.MatchAny(filename); len(terms) > 0 {
		risk = RiskMedium
		matchedTerms = terms
		g.log.Debug("filename matched blocklist", "filename", filename, "terms", terms)
	}

	// Check 3: image content classifier, the expensive step.
	probability, err := g.classifier.Probability(ctx, img, filename)
	if err != nil {
		return g.handleFailure(category, risk, matchedTerms, start, err)
	}
	g.metrics.RecordCheck(g.classifier.ModelID(), time.Since(start).Seconds(), probability)

	if probability >= g.threshold {
		g.bump(func(s *Stats) { s.Blocked++; s.ContentBlocks++ })
		decision := Decision{
			Allowed:        false,
			Risk:           RiskHigh,
			Reason:         ReasonContentDetected,
			Confidence:     probability,
			ProcessingTime: time.Since(start),
			ModelID:        g.classifier.ModelID(),
			MatchedTerms:   matchedTerms,
		}
		g.record(category, decision)
		return decision
	}

	if risk == RiskNone && probability > 0 {
		risk = RiskLow
	}
	decision := Decision{
		Allowed:        true,
		Risk:           risk,
		Confidence:     probability,
		ProcessingTime: time.Since(start),
		ModelID:        g.classifier.ModelID(),
		MatchedTerms:   matchedTerms,
	}
	g.metrics.RecordAllowed()
	return decision
}

// handleFailure applies the configured failure policy when the gate itself
// cannot complete. The default is fail-open: availability over strictness,
// with the failure logged and counted so it is never silent.
func (g *Gate) handleFailure(category string, risk RiskLevel, matched []string, start time.Time, err error) Decision {
	g.bump(func(s *Stats) { s.CheckFailures++ })

	policy := "fail-open"
	if g.failClosed {
		policy = "fail-closed"
	}
	g.metrics.RecordFailure(policy)
	g.log.Error("safety check failed", "category", category, "policy", policy, "error", err)

	if g.failClosed {
		g.bump(func(s *Stats) { s.Blocked++ })
		decision := Decision{
			Allowed:        false,
			Risk:           RiskHigh,
			Reason:         ReasonCheckFailed,
			ProcessingTime: time.Since(start),
			ModelID:        g.classifier.ModelID(),
			MatchedTerms:   matched,
		}
		g.record(category, decision)
		return decision
	}

	return Decision{
		Allowed:        true,
		Risk:           risk,
		Reason:         ReasonCheckFailed,
		ProcessingTime: time.Since(start),
		ModelID:        g.classifier.ModelID(),
		MatchedTerms:   matched,
	}
}

// Stats returns a snapshot of the gate's running statistics.
func (g *Gate) Stats() Stats {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.stats
}

func (g *Gate) bump(f func(*Stats)) {
	g.mu.Lock()
	f(&g.stats)
	g.mu.Unlock()
}

func (g *Gate) record(category string, d Decision) {
	g.metrics.RecordBlock(category, d.Reason, d.Confidence)
}
