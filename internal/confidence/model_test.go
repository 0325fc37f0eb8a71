package confidence

import (
	"context"
	"errors"
	"testing"
)

func TestLearnedScoreColdStart(t *testing.T) {
	for _, mode := range []Mode{ModeExplicitOnly, ModeImplicitOnly, ModeHybrid} {
		w := WeightsFor(mode)
		if got := w.LearnedScore(Stats{}); got != NeutralPrior {
			t.Errorf("mode %s: cold start score = %v, want %v", mode, got, NeutralPrior)
		}
	}
}

func TestLearnedScoreByMode(t *testing.T) {
	stats := Stats{Approvals: 3, Rejections: 1, Successes: 1, Failures: 3}

	tests := []struct {
		mode Mode
		want float64
	}{
		{ModeExplicitOnly, 0.75},             // approval rate only
		{ModeImplicitOnly, 0.25},             // success rate only
		{ModeHybrid, 0.75*0.7 + 0.25*0.3},    // weighted mix
	}
	for _, tt := range tests {
		w := WeightsFor(tt.mode)
		got := w.LearnedScore(stats)
		if diff := got - tt.want; diff > 1e-9 || diff < -1e-9 {
			t.Errorf("mode %s: learned score = %v, want %v", tt.mode, got, tt.want)
		}
	}
}

func TestBlendStaysInRange(t *testing.T) {
	w := WeightsFor(ModeHybrid)
	for _, h := range []float64{-5, 0, 0.5, 1, 42} {
		got := w.Blend(h, Stats{Approvals: 10})
		if got < 0 || got > 1 {
			t.Errorf("Blend(%v) = %v, out of [0,1]", h, got)
		}
	}
}

func TestValidMode(t *testing.T) {
	for _, m := range []string{"explicit_only", "implicit_only", "hybrid"} {
		if !ValidMode(m) {
			t.Errorf("ValidMode(%q) = false", m)
		}
	}
	if ValidMode("adaptive") {
		t.Error("ValidMode accepted unknown mode")
	}
}

type stubSource struct {
	stats Stats
	err   error
}

func (s stubSource) Stats(ctx context.Context, agentType, actionType, fingerprint string) (Stats, error) {
	return s.stats, s.err
}

func TestModelScoreDegradedOnSourceError(t *testing.T) {
	m := NewModel(ModeHybrid, stubSource{err: errors.New("db down")},
		func(string) (string, error) { return "fp", nil })

	score, degraded := m.Score(context.Background(), "task", "adjust_priority", "raw", 0.8)
	if !degraded {
		t.Fatal("expected degraded score when stats source fails")
	}
	want := m.Weights().Blend(0.8, Stats{})
	if score != want {
		t.Errorf("degraded score = %v, want cold-start blend %v", score, want)
	}
}

func TestModelScoreFingerprintErrorIsColdStart(t *testing.T) {
	m := NewModel(ModeHybrid,
		stubSource{stats: Stats{Approvals: 100}},
		func(string) (string, error) { return "", errors.New("empty context") })

	score, degraded := m.Score(context.Background(), "task", "adjust_priority", "", 0.5)
	if degraded {
		t.Error("fingerprint failure should not mark the score degraded")
	}
	want := m.Weights().Blend(0.5, Stats{})
	if score != want {
		t.Errorf("score = %v, want %v", score, want)
	}
}

func TestModelScoreUsesLearnedStats(t *testing.T) {
	src := stubSource{stats: Stats{Approvals: 9, Rejections: 1}}
	m := NewModel(ModeExplicitOnly, src, func(string) (string, error) { return "fp", nil })

	score, degraded := m.Score(context.Background(), "communication", "draft_reply", "ctx", 0.5)
	if degraded {
		t.Fatal("unexpected degraded")
	}
	cold, _ := NewModel(ModeExplicitOnly, stubSource{}, func(string) (string, error) { return "fp", nil }).
		Score(context.Background(), "communication", "draft_reply", "ctx", 0.5)
	if score <= cold {
		t.Errorf("score %v should exceed cold-start %v after 9 approvals", score, cold)
	}
}
