// Package confidence computes the blended confidence score attached to
// proposed decisions, combining an agent heuristic with learned statistics.
package confidence

import "context"

// Mode selects how explicit approvals and implicit outcomes are weighted.
type Mode string

const (
	ModeExplicitOnly Mode = "explicit_only"
	ModeImplicitOnly Mode = "implicit_only"
	ModeHybrid       Mode = "hybrid"
)

// ValidMode reports whether m is a recognized learning mode.
func ValidMode(m string) bool {
	switch Mode(m) {
	case ModeExplicitOnly, ModeImplicitOnly, ModeHybrid:
		return true
	}
	return false
}

// Weights holds the numeric blend weights for one learning mode.
// Resolved once at configuration load, never re-parsed per decision.
type Weights struct {
	HeuristicWeight float64
	LearnedWeight   float64
	ExplicitWeight  float64
	ImplicitWeight  float64
}

// WeightsFor maps a learning mode to its blend weights.
// Unknown modes fall back to hybrid.
func WeightsFor(mode Mode) Weights {
	w := Weights{HeuristicWeight: 0.4, LearnedWeight: 0.6}
	switch mode {
	case ModeExplicitOnly:
		w.ExplicitWeight = 1.0
	case ModeImplicitOnly:
		w.ImplicitWeight = 1.0
	default:
		w.ExplicitWeight = 0.7
		w.ImplicitWeight = 0.3
	}
	return w
}

// Stats holds the raw feedback counters for one pattern.
type Stats struct {
	Approvals  int64
	Rejections int64
	Successes  int64
	Failures   int64
}

// Total returns the number of feedback events behind these stats.
func (s Stats) Total() int64 {
	return s.Approvals + s.Rejections + s.Successes + s.Failures
}

// ApprovalRate returns approvals/(approvals+rejections), 0 when undefined.
func (s Stats) ApprovalRate() float64 {
	n := s.Approvals + s.Rejections
	if n == 0 {
		return 0
	}
	return float64(s.Approvals) / float64(n)
}

// SuccessRate returns successes/(successes+failures), 0 when undefined.
func (s Stats) SuccessRate() float64 {
	n := s.Successes + s.Failures
	if n == 0 {
		return 0
	}
	return float64(s.Successes) / float64(n)
}

// NeutralPrior is the cold-start confidence for any pattern without feedback.
const NeutralPrior = 0.5

// LearnedScore computes the learned confidence component from pattern stats.
// A pattern with zero feedback events contributes the neutral prior.
func (w Weights) LearnedScore(s Stats) float64 {
	if s.Total() == 0 {
		return NeutralPrior
	}
	return clamp01(s.ApprovalRate()*w.ExplicitWeight + s.SuccessRate()*w.ImplicitWeight)
}

// Blend combines a heuristic score with learned stats into a final confidence.
func (w Weights) Blend(heuristic float64, s Stats) float64 {
	return clamp01(clamp01(heuristic)*w.HeuristicWeight + w.LearnedScore(s)*w.LearnedWeight)
}

// StatsSource is the read path into the pattern store.
type StatsSource interface {
	Stats(ctx context.Context, agentType, actionType, fingerprint string) (Stats, error)
}

// Model scores proposed actions against learned patterns. Safe for
// concurrent use by multiple agents during an evaluation cycle.
type Model struct {
	weights     Weights
	source      StatsSource
	fingerprint func(string) (string, error)
}

// NewModel creates a confidence model. fingerprint derives the pattern
// fingerprint from a raw context string.
func NewModel(mode Mode, source StatsSource, fingerprint func(string) (string, error)) *Model {
	return NewModelWithWeights(WeightsFor(mode), source, fingerprint)
}

// NewModelWithWeights creates a model with explicit blend weights, for
// configurations that override the per-mode defaults.
func NewModelWithWeights(w Weights, source StatsSource, fingerprint func(string) (string, error)) *Model {
	return &Model{
		weights:     w,
		source:      source,
		fingerprint: fingerprint,
	}
}

// Weights returns the resolved blend weights.
func (m *Model) Weights() Weights { return m.weights }

// Score blends the agent heuristic with the learned confidence for the
// pattern matching rawContext. degraded is true when the pattern store was
// unreachable; callers must not auto-execute on a degraded score.
// A malformed context is treated as cold start, not as an error.
func (m *Model) Score(ctx context.Context, agentType, actionType, rawContext string, heuristic float64) (score float64, degraded bool) {
	fp, err := m.fingerprint(rawContext)
	if err != nil {
		return m.weights.Blend(heuristic, Stats{}), false
	}
	stats, err := m.source.Stats(ctx, agentType, actionType, fp)
	if err != nil {
		return m.weights.Blend(heuristic, Stats{}), true
	}
	return m.weights.Blend(heuristic, stats), false
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
