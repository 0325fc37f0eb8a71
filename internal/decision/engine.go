package decision

import (
	"context"
	"fmt"
	"log/slog"
)

// AutonomyLevel selects a (threshold, daily cap) policy pair.
type AutonomyLevel string

const (
	AutonomyConservative AutonomyLevel = "conservative"
	AutonomyModerate     AutonomyLevel = "moderate"
	AutonomyAggressive   AutonomyLevel = "aggressive"
)

// ValidAutonomyLevel reports whether l is a recognized autonomy level.
func ValidAutonomyLevel(l string) bool {
	switch AutonomyLevel(l) {
	case AutonomyConservative, AutonomyModerate, AutonomyAggressive:
		return true
	}
	return false
}

// Policy holds the numeric thresholds for one autonomy level, resolved once
// at configuration load.
type Policy struct {
	// AutoExecuteThreshold is the minimum confidence for autonomous execution.
	AutoExecuteThreshold float64
	// RejectFloor is the confidence below which a decision is not worth
	// surfacing to the user at all.
	RejectFloor float64
	// MaxDailyAutoExec caps autonomous executions per agent type per day.
	MaxDailyAutoExec int
	// RiskBand is the width of the confidence band just above the threshold
	// inside which decisions must carry a risk annotation.
	RiskBand float64
}

// PolicyFor maps an autonomy level to its default policy. Unknown levels
// fall back to conservative.
func PolicyFor(level AutonomyLevel) Policy {
	switch level {
	case AutonomyModerate:
		return Policy{AutoExecuteThreshold: 0.85, RejectFloor: 0.2, MaxDailyAutoExec: 10, RiskBand: 0.05}
	case AutonomyAggressive:
		return Policy{AutoExecuteThreshold: 0.75, RejectFloor: 0.2, MaxDailyAutoExec: 25, RiskBand: 0.05}
	default:
		return Policy{AutoExecuteThreshold: 0.95, RejectFloor: 0.2, MaxDailyAutoExec: 3, RiskBand: 0.05}
	}
}

// DailyCounter reports autonomous executions already performed today.
type DailyCounter interface {
	CountAutoExecToday(agentType string) (int, error)
}

// Engine classifies proposed decisions. Deterministic: identical
// (confidence, policy, daily count) inputs always produce the same verdict.
type Engine struct {
	policy  Policy
	counter DailyCounter
}

// NewEngine creates a decision engine. counter may be nil, in which case the
// daily cap cannot be verified and decisions above threshold are held for
// approval.
func NewEngine(policy Policy, counter DailyCounter) *Engine {
	return &Engine{policy: policy, counter: counter}
}

// Policy returns the active policy.
func (e *Engine) Policy() Policy { return e.policy }

// Evaluate assigns the verdict and finalizes RequiresApproval. Risk
// annotations are added where the policy demands them. A decision whose
// learned statistics were unavailable fails open to pending approval.
func (e *Engine) Evaluate(ctx context.Context, d *Decision) Verdict {
	if d.Degraded {
		d.addRisk("learned statistics unavailable; holding for approval")
		return e.finish(d, VerdictPendingApproval)
	}

	if d.Confidence < e.policy.RejectFloor {
		return e.finish(d, VerdictRejected)
	}

	if d.Action.TouchesCritical() {
		d.addRisk("affects a critical-priority item")
	}

	if d.Confidence >= e.policy.AutoExecuteThreshold {
		if d.Confidence < e.policy.AutoExecuteThreshold+e.policy.RiskBand {
			d.addRisk(fmt.Sprintf("confidence %.2f is within %.2f of the autonomy threshold",
				d.Confidence, e.policy.RiskBand))
		}
		count, err := e.dailyCount(d.AgentType)
		if err != nil {
			// Fail open: never auto-execute when the counter cannot be read.
			d.Degraded = true
			d.addRisk("daily execution counter unavailable")
			slog.Warn("Decision engine degraded: daily counter unavailable",
				"agent_type", d.AgentType, "error", err)
			return e.finish(d, VerdictPendingApproval)
		}
		if count >= e.policy.MaxDailyAutoExec {
			d.addRisk(fmt.Sprintf("daily autonomous execution cap reached (%d)", e.policy.MaxDailyAutoExec))
			return e.finish(d, VerdictPendingApproval)
		}
		return e.finish(d, VerdictAutoExecute)
	}

	return e.finish(d, VerdictPendingApproval)
}

func (e *Engine) dailyCount(agentType string) (int, error) {
	if e.counter == nil {
		return 0, fmt.Errorf("no daily counter configured")
	}
	return e.counter.CountAutoExecToday(agentType)
}

func (e *Engine) finish(d *Decision, v Verdict) Verdict {
	d.Verdict = v
	d.RequiresApproval = v == VerdictPendingApproval
	return v
}

func (d *Decision) addRisk(risk string) {
	for _, r := range d.Risks {
		if r == risk {
			return
		}
	}
	d.Risks = append(d.Risks, risk)
}
