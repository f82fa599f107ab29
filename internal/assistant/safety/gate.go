// Package safety scores normalized queries for toxicity and scans for
// personally identifiable information, producing a pass/block verdict.
package safety

import (
	"context"
	"regexp"
	"strings"

	"github.com/campusconnect-poc/server/internal/assistant/model"
	logx "github.com/campusconnect-poc/server/pkg/logger"
)

// Structural PII patterns, matched against the canonical text:
// bare 10-digit phone numbers, email-shaped strings, and 4-4-4 digit groups
// resembling national ID numbers.
var (
	phonePattern     = regexp.MustCompile(`\b\d{10}\b`)
	emailPattern     = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-z]{2,}`)
	groupedIDPattern = regexp.MustCompile(`\b\d{4}\s\d{4}\s\d{4}\b`)
)

type Gate struct {
	scorer    model.ToxicityScorer
	threshold float64
	keywords  []string
}

func NewGate(cfg model.SafetyConfig, scorer model.ToxicityScorer) *Gate {
	keywords := make([]string, 0, len(cfg.SensitiveKeywords))
	for _, kw := range cfg.SensitiveKeywords {
		if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
			keywords = append(keywords, kw)
		}
	}
	return &Gate{
		scorer:    scorer,
		threshold: cfg.ToxicityThreshold,
		keywords:  keywords,
	}
}

// Check evaluates both safety conditions over the canonical text and attaches
// a verdict. Toxicity and PII are always both computed, but only one reason is
// reported: toxicity takes precedence as the more severe category.
func (g *Gate) Check(ctx context.Context, nq model.NormalizedQuery) model.GatedQuery {
	score := g.toxicity(ctx, nq.CanonicalText)
	pii := g.ContainsPII(nq.CanonicalText)

	verdict := model.SafetyVerdict{
		Safe:          true,
		Reason:        model.ReasonNone,
		ToxicityScore: score,
		PIIDetected:   pii,
	}
	switch {
	case score > g.threshold:
		verdict.Safe = false
		verdict.Reason = model.ReasonToxicity
	case pii:
		verdict.Safe = false
		verdict.Reason = model.ReasonPII
	}

	if !verdict.Safe {
		logx.Info().
			Str("thread_id", nq.ThreadID).
			Str("reason", string(verdict.Reason)).
			Float64("toxicity_score", score).
			Bool("pii", pii).
			Msg("query blocked by safety gate")
	}

	return model.GatedQuery{NormalizedQuery: nq, Verdict: verdict}
}

// toxicity returns the scorer's rating clamped to [0,1], degrading to 0 when
// the scorer is unavailable.
func (g *Gate) toxicity(ctx context.Context, text string) float64 {
	score, err := g.scorer.Score(ctx, text)
	if err != nil {
		logx.Warn().Err(err).Msg("toxicity scorer unavailable, treating query as non-toxic")
		return 0
	}
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// ContainsPII reports whether the text matches a structural pattern or
// carries any configured sensitive keyword. A single match is sufficient.
func (g *Gate) ContainsPII(text string) bool {
	if phonePattern.MatchString(text) ||
		emailPattern.MatchString(text) ||
		groupedIDPattern.MatchString(text) {
		return true
	}

	lower := strings.ToLower(text)
	for _, kw := range g.keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
