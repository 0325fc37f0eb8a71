package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alfredlabs/alfred/internal/decision"
	"github.com/alfredlabs/alfred/internal/feedback"
	"github.com/alfredlabs/alfred/internal/ledger"
)

// CycleResult is the outcome of one coordination run over a snapshot.
type CycleResult struct {
	Auto     []*decision.Decision         `json:"auto"`
	Pending  []*decision.Decision         `json:"pending"`
	Rejected []*decision.Decision         `json:"rejected"`
	Executed []*ExecutionResult           `json:"executed"`
	Errors   map[string]string            `json:"errors,omitempty"` // agent type -> error
}

// Coordinator fans agent evaluation out over a snapshot, drives every
// proposal through the decision engine, executes the auto-approved set, and
// returns the pending set for presentation.
type Coordinator struct {
	agents      []Agent
	engine      *decision.Engine
	ledger      *ledger.Service
	recorder    *feedback.Recorder
	evalTimeout time.Duration

	mu         sync.Mutex
	advisories []string // produced by the previous cycle, consumed by the next
}

// NewCoordinator creates a coordinator. evalTimeout bounds each agent's
// Evaluate call; zero means 30 seconds.
func NewCoordinator(agents []Agent, engine *decision.Engine, lg *ledger.Service, evalTimeout time.Duration) *Coordinator {
	if evalTimeout <= 0 {
		evalTimeout = 30 * time.Second
	}
	return &Coordinator{
		agents:      agents,
		engine:      engine,
		ledger:      lg,
		evalTimeout: evalTimeout,
	}
}

// SetFeedbackRecorder wires implicit outcome recording for executed
// decisions. Optional; without it execution outcomes are not learned from.
func (c *Coordinator) SetFeedbackRecorder(rec *feedback.Recorder) {
	c.recorder = rec
}

// Agents returns the registered agents.
func (c *Coordinator) Agents() []Agent { return c.agents }

// AgentByType returns the agent with the given type name, or nil.
func (c *Coordinator) AgentByType(agentType string) Agent {
	for _, a := range c.agents {
		if a.Type() == agentType {
			return a
		}
	}
	return nil
}

// RunCycle evaluates every agent against the snapshot. Agents run
// concurrently over the same immutable snapshot; a failing, panicking, or
// timed-out agent contributes zero decisions and does not abort the others.
func (c *Coordinator) RunCycle(ctx context.Context, snap *Snapshot) (*CycleResult, error) {
	if snap == nil {
		return nil, fmt.Errorf("coordinator: nil snapshot")
	}

	// Splice in advisories produced by the previous cycle.
	c.mu.Lock()
	snap.Advisories = append(snap.Advisories, c.advisories...)
	c.mu.Unlock()

	type evalOut struct {
		agentType string
		decisions []*decision.Decision
		err       error
	}

	results := make(chan evalOut, len(c.agents))
	for _, ag := range c.agents {
		go func(ag Agent) {
			out := evalOut{agentType: ag.Type()}
			defer func() {
				if r := recover(); r != nil {
					out.decisions = nil
					out.err = fmt.Errorf("agent panicked: %v", r)
				}
				results <- out
			}()
			evalCtx, cancel := context.WithTimeout(ctx, c.evalTimeout)
			defer cancel()
			out.decisions, out.err = ag.Evaluate(evalCtx, snap)
		}(ag)
	}

	res := &CycleResult{Errors: make(map[string]string)}
	var proposals []*decision.Decision
	for range c.agents {
		out := <-results
		if out.err != nil {
			slog.Warn("Agent evaluation failed", "agent_type", out.agentType, "error", out.err)
			res.Errors[out.agentType] = out.err.Error()
			continue
		}
		proposals = append(proposals, out.decisions...)
	}

	for _, d := range proposals {
		verdict := c.engine.Evaluate(ctx, d)
		c.persistDecision(d)
		switch verdict {
		case decision.VerdictAutoExecute:
			res.Auto = append(res.Auto, d)
		case decision.VerdictRejected:
			res.Rejected = append(res.Rejected, d)
			c.resolve(d.ID, ledger.DecisionDiscarded)
		default:
			res.Pending = append(res.Pending, d)
		}
	}

	var nextAdvisories []string
	for _, d := range res.Auto {
		ag := c.AgentByType(d.AgentType)
		if ag == nil {
			continue
		}
		execResult, err := ag.Execute(ctx, d)
		if execResult == nil {
			execResult = &ExecutionResult{DecisionID: d.ID, Success: err == nil}
		}
		res.Executed = append(res.Executed, execResult)
		if err != nil {
			slog.Warn("Auto execution failed", "agent_type", d.AgentType,
				"decision_id", d.ID, "error", err)
			c.resolve(d.ID, ledger.DecisionDiscarded)
			c.recordOutcome(ctx, ag, d, false)
			continue
		}
		if err := c.ledger.LogAutoExecution(d.ID, d.AgentType); err != nil {
			slog.Warn("Auto execution not counted", "decision_id", d.ID, "error", err)
		}
		c.resolve(d.ID, ledger.DecisionExecuted)
		c.recordOutcome(ctx, ag, d, execResult.Success)
		nextAdvisories = append(nextAdvisories, advisoryFor(d))
	}

	c.mu.Lock()
	c.advisories = nextAdvisories
	c.mu.Unlock()

	slog.Info("Coordination cycle complete",
		"proposals", len(proposals),
		"auto", len(res.Auto), "pending", len(res.Pending),
		"rejected", len(res.Rejected), "agent_errors", len(res.Errors))
	return res, nil
}

// ExecuteApproved runs a human-approved pending decision and moves it to its
// terminal state.
func (c *Coordinator) ExecuteApproved(ctx context.Context, d *decision.Decision) (*ExecutionResult, error) {
	ag := c.AgentByType(d.AgentType)
	if ag == nil {
		return nil, fmt.Errorf("coordinator: no agent of type %s", d.AgentType)
	}
	result, err := ag.Execute(ctx, d)
	if err != nil {
		c.resolve(d.ID, ledger.DecisionDiscarded)
		c.recordOutcome(ctx, ag, d, false)
		return result, err
	}
	c.resolve(d.ID, ledger.DecisionExecuted)
	c.recordOutcome(ctx, ag, d, result == nil || result.Success)
	return result, nil
}

func (c *Coordinator) persistDecision(d *decision.Decision) {
	payload, _ := json.Marshal(d.Action)
	risks, _ := json.Marshal(d.Risks)
	alternatives, _ := json.Marshal(d.Alternatives)

	status := ledger.DecisionPending
	switch d.Verdict {
	case decision.VerdictAutoExecute:
		status = ledger.DecisionProposed
	case decision.VerdictRejected:
		status = ledger.DecisionProposed
	}

	err := c.ledger.InsertDecision(&ledger.DecisionRecord{
		ID:           d.ID,
		AgentType:    d.AgentType,
		ActionType:   string(d.Action.Kind),
		Payload:      string(payload),
		Reasoning:    d.Reasoning,
		Confidence:   d.Confidence,
		Context:      d.Context,
		Risks:        string(risks),
		Alternatives: string(alternatives),
		Verdict:      string(d.Verdict),
		Degraded:     d.Degraded,
		Status:       status,
	})
	if err != nil {
		slog.Warn("Decision not persisted", "decision_id", d.ID, "error", err)
	}
}

// recordOutcome feeds an observed execution result back as implicit
// feedback and lets the owning agent update its own heuristics.
func (c *Coordinator) recordOutcome(ctx context.Context, ag Agent, d *decision.Decision, successful bool) {
	if c.recorder != nil {
		if err := c.recorder.RecordOutcome(ctx, d.ID, successful, d.Context); err != nil {
			slog.Warn("Execution outcome not recorded", "decision_id", d.ID, "error", err)
		}
	}
	ag.Learn(feedback.Event{
		DecisionID:    d.ID,
		FeedbackType:  feedback.TypeImplicit,
		WasApproved:   true,
		WasSuccessful: successful,
		Context:       d.Context,
	})
}

func (c *Coordinator) resolve(decisionID, status string) {
	if err := c.ledger.ResolveDecision(decisionID, status); err != nil {
		slog.Debug("Decision resolution not persisted", "decision_id", decisionID, "error", err)
	}
}

// advisoryFor renders a cross-agent advisory describing an executed action.
func advisoryFor(d *decision.Decision) string {
	switch d.Action.Kind {
	case decision.ActionDraftReply:
		return fmt.Sprintf("communication: replied in thread %s", d.Action.DraftReply.ThreadID)
	case decision.ActionAdjustPriority:
		return fmt.Sprintf("task: %s priority now %s",
			d.Action.AdjustPriority.TaskTitle, d.Action.AdjustPriority.NewPriority)
	case decision.ActionSchedulePrep:
		return fmt.Sprintf("calendar: scheduled prep for %s", d.Action.SchedulePrep.EventTitle)
	case decision.ActionCreateFollowup:
		return fmt.Sprintf("followup: created %q", d.Action.CreateFollowup.Title)
	}
	return fmt.Sprintf("%s: executed %s", d.AgentType, d.Action.Kind)
}
