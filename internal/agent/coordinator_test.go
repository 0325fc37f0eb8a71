package agent

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/alfredlabs/alfred/internal/confidence"
	"github.com/alfredlabs/alfred/internal/decision"
	"github.com/alfredlabs/alfred/internal/feedback"
	"github.com/alfredlabs/alfred/internal/ledger"
	"github.com/alfredlabs/alfred/internal/pattern"
)

// fakeAgent is a scriptable Agent for coordinator tests.
type fakeAgent struct {
	typ       string
	decisions []*decision.Decision
	evalErr   error
	evalDelay time.Duration
	panics    bool
	execErr   error

	mu      sync.Mutex
	learned []feedback.Event
}

func (f *fakeAgent) Type() string { return f.typ }

func (f *fakeAgent) Evaluate(ctx context.Context, snap *Snapshot) ([]*decision.Decision, error) {
	if f.panics {
		panic("scripted panic")
	}
	if f.evalDelay > 0 {
		select {
		case <-time.After(f.evalDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.decisions, f.evalErr
}

func (f *fakeAgent) Execute(ctx context.Context, d *decision.Decision) (*ExecutionResult, error) {
	if f.execErr != nil {
		return &ExecutionResult{DecisionID: d.ID, Success: false}, f.execErr
	}
	return &ExecutionResult{DecisionID: d.ID, Success: true, Detail: "done"}, nil
}

func (f *fakeAgent) Learn(ev feedback.Event) {
	f.mu.Lock()
	f.learned = append(f.learned, ev)
	f.mu.Unlock()
}

func (f *fakeAgent) learnedEvents() []feedback.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]feedback.Event(nil), f.learned...)
}

type coordFixture struct {
	db       *sql.DB
	ledger   *ledger.Service
	patterns *pattern.Store
	recorder *feedback.Recorder
}

func newCoordFixture(t *testing.T) *coordFixture {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	led, err := ledger.NewServiceWithDB(db)
	if err != nil {
		t.Fatalf("failed to init schema: %v", err)
	}
	store := pattern.NewStore(db, confidence.WeightsFor(confidence.ModeHybrid))
	return &coordFixture{
		db:       db,
		ledger:   led,
		patterns: store,
		recorder: feedback.NewRecorder(db, store),
	}
}

func (f *coordFixture) coordinator(policy decision.Policy, agents ...Agent) *Coordinator {
	c := NewCoordinator(agents, decision.NewEngine(policy, f.ledger), f.ledger, 2*time.Second)
	c.SetFeedbackRecorder(f.recorder)
	return c
}

func proposal(agentType string, conf float64, degraded bool) *decision.Decision {
	return decision.New(agentType, decision.Action{
		Kind:       decision.ActionDraftReply,
		DraftReply: &decision.DraftReply{Platform: "slack", ThreadID: "t1", Body: "on it"},
	}, "scripted", "slack thread t1 reply", conf, degraded)
}

func emptySnapshot() *Snapshot {
	return &Snapshot{GeneratedAt: time.Now()}
}

func TestRunCycleRoutesVerdicts(t *testing.T) {
	f := newCoordFixture(t)
	ag := &fakeAgent{typ: "communication", decisions: []*decision.Decision{
		proposal("communication", 0.99, false),
		proposal("communication", 0.60, false),
		proposal("communication", 0.05, false),
	}}
	coord := f.coordinator(decision.PolicyFor(decision.AutonomyModerate), ag)

	res, err := coord.RunCycle(context.Background(), emptySnapshot())
	if err != nil {
		t.Fatalf("RunCycle failed: %v", err)
	}
	if len(res.Auto) != 1 || len(res.Pending) != 1 || len(res.Rejected) != 1 {
		t.Fatalf("routing = auto:%d pending:%d rejected:%d, want 1/1/1",
			len(res.Auto), len(res.Pending), len(res.Rejected))
	}
	if len(res.Executed) != 1 || !res.Executed[0].Success {
		t.Errorf("auto decision not executed: %+v", res.Executed)
	}

	rec, err := f.ledger.GetDecision(res.Auto[0].ID)
	if err != nil {
		t.Fatalf("load executed decision: %v", err)
	}
	if rec.Status != ledger.DecisionExecuted {
		t.Errorf("executed decision status = %s, want %s", rec.Status, ledger.DecisionExecuted)
	}

	rec, err = f.ledger.GetDecision(res.Pending[0].ID)
	if err != nil {
		t.Fatalf("load pending decision: %v", err)
	}
	if rec.Status != ledger.DecisionPending {
		t.Errorf("pending decision status = %s, want %s", rec.Status, ledger.DecisionPending)
	}
}

func TestRunCycleDegradedNeverAutoExecutes(t *testing.T) {
	f := newCoordFixture(t)
	ag := &fakeAgent{typ: "communication", decisions: []*decision.Decision{
		proposal("communication", 0.99, true),
	}}
	coord := f.coordinator(decision.PolicyFor(decision.AutonomyAggressive), ag)

	res, err := coord.RunCycle(context.Background(), emptySnapshot())
	if err != nil {
		t.Fatalf("RunCycle failed: %v", err)
	}
	if len(res.Auto) != 0 {
		t.Errorf("degraded decision auto-executed")
	}
	if len(res.Pending) != 1 {
		t.Fatalf("degraded decision not pending: %+v", res)
	}
	if len(res.Pending[0].Risks) == 0 {
		t.Error("degraded pending decision carries no risk annotation")
	}
}

func TestRunCycleDailyCapHoldsForApproval(t *testing.T) {
	f := newCoordFixture(t)
	policy := decision.PolicyFor(decision.AutonomyConservative) // cap 3
	for i := 0; i < policy.MaxDailyAutoExec; i++ {
		if err := f.ledger.LogAutoExecution("warmup", "communication"); err != nil {
			t.Fatalf("log auto execution: %v", err)
		}
	}

	ag := &fakeAgent{typ: "communication", decisions: []*decision.Decision{
		proposal("communication", 0.99, false),
	}}
	coord := f.coordinator(policy, ag)

	res, err := coord.RunCycle(context.Background(), emptySnapshot())
	if err != nil {
		t.Fatalf("RunCycle failed: %v", err)
	}
	if len(res.Auto) != 0 {
		t.Error("decision auto-executed past the daily cap")
	}
	if len(res.Pending) != 1 {
		t.Fatalf("capped decision not pending: %+v", res)
	}
}

func TestRunCycleIsolatesFailingAgents(t *testing.T) {
	f := newCoordFixture(t)
	healthy := &fakeAgent{typ: "communication", decisions: []*decision.Decision{
		proposal("communication", 0.60, false),
	}}
	failing := &fakeAgent{typ: "task", evalErr: errors.New("upstream down")}
	panicking := &fakeAgent{typ: "calendar", panics: true}
	coord := f.coordinator(decision.PolicyFor(decision.AutonomyConservative), healthy, failing, panicking)

	res, err := coord.RunCycle(context.Background(), emptySnapshot())
	if err != nil {
		t.Fatalf("RunCycle failed: %v", err)
	}
	if len(res.Pending) != 1 {
		t.Errorf("healthy agent contributed %d pending decisions, want 1", len(res.Pending))
	}
	if _, ok := res.Errors["task"]; !ok {
		t.Error("failing agent error not surfaced")
	}
	if _, ok := res.Errors["calendar"]; !ok {
		t.Error("panicking agent error not surfaced")
	}
}

func TestRunCycleTimesOutSlowAgent(t *testing.T) {
	f := newCoordFixture(t)
	slow := &fakeAgent{typ: "task", evalDelay: 5 * time.Second, decisions: []*decision.Decision{
		proposal("task", 0.60, false),
	}}
	coord := NewCoordinator([]Agent{slow},
		decision.NewEngine(decision.PolicyFor(decision.AutonomyConservative), f.ledger),
		f.ledger, 50*time.Millisecond)

	res, err := coord.RunCycle(context.Background(), emptySnapshot())
	if err != nil {
		t.Fatalf("RunCycle failed: %v", err)
	}
	if len(res.Pending) != 0 {
		t.Error("timed-out agent still contributed decisions")
	}
	if _, ok := res.Errors["task"]; !ok {
		t.Error("timeout not surfaced as agent error")
	}
}

func TestRunCycleRecordsImplicitOutcome(t *testing.T) {
	f := newCoordFixture(t)
	ag := &fakeAgent{typ: "communication", decisions: []*decision.Decision{
		proposal("communication", 0.99, false),
	}}
	coord := f.coordinator(decision.PolicyFor(decision.AutonomyAggressive), ag)

	if _, err := coord.RunCycle(context.Background(), emptySnapshot()); err != nil {
		t.Fatalf("RunCycle failed: %v", err)
	}

	var implicit int
	if err := f.db.QueryRow(`SELECT COUNT(*) FROM feedback_events WHERE feedback_type = 'implicit'`).Scan(&implicit); err != nil {
		t.Fatalf("count implicit events: %v", err)
	}
	if implicit != 1 {
		t.Errorf("implicit feedback rows = %d, want 1", implicit)
	}

	events := ag.learnedEvents()
	if len(events) != 1 || events[0].FeedbackType != feedback.TypeImplicit {
		t.Errorf("agent learn events = %+v, want one implicit event", events)
	}
}

func TestRunCycleCarriesAdvisories(t *testing.T) {
	f := newCoordFixture(t)
	ag := &fakeAgent{typ: "communication", decisions: []*decision.Decision{
		proposal("communication", 0.99, false),
	}}
	coord := f.coordinator(decision.PolicyFor(decision.AutonomyAggressive), ag)

	if _, err := coord.RunCycle(context.Background(), emptySnapshot()); err != nil {
		t.Fatalf("first cycle failed: %v", err)
	}

	// Next cycle's snapshot should see what the previous one executed.
	ag.decisions = nil
	snap := emptySnapshot()
	if _, err := coord.RunCycle(context.Background(), snap); err != nil {
		t.Fatalf("second cycle failed: %v", err)
	}
	if len(snap.Advisories) != 1 {
		t.Fatalf("advisories = %v, want one carried over", snap.Advisories)
	}
}

func TestExecuteApprovedSuccess(t *testing.T) {
	f := newCoordFixture(t)
	ag := &fakeAgent{typ: "communication", decisions: []*decision.Decision{
		proposal("communication", 0.60, false),
	}}
	coord := f.coordinator(decision.PolicyFor(decision.AutonomyConservative), ag)

	res, err := coord.RunCycle(context.Background(), emptySnapshot())
	if err != nil {
		t.Fatalf("RunCycle failed: %v", err)
	}
	d := res.Pending[0]

	result, err := coord.ExecuteApproved(context.Background(), d)
	if err != nil {
		t.Fatalf("ExecuteApproved failed: %v", err)
	}
	if !result.Success {
		t.Errorf("execution result = %+v, want success", result)
	}

	rec, err := f.ledger.GetDecision(d.ID)
	if err != nil {
		t.Fatalf("load decision: %v", err)
	}
	if rec.Status != ledger.DecisionExecuted {
		t.Errorf("decision status = %s, want %s", rec.Status, ledger.DecisionExecuted)
	}
}

func TestExecuteApprovedFailureRecordsOutcome(t *testing.T) {
	f := newCoordFixture(t)
	ag := &fakeAgent{typ: "communication",
		decisions: []*decision.Decision{proposal("communication", 0.60, false)},
		execErr:   errors.New("send failed")}
	coord := f.coordinator(decision.PolicyFor(decision.AutonomyConservative), ag)

	res, err := coord.RunCycle(context.Background(), emptySnapshot())
	if err != nil {
		t.Fatalf("RunCycle failed: %v", err)
	}
	d := res.Pending[0]

	if _, err := coord.ExecuteApproved(context.Background(), d); err == nil {
		t.Fatal("ExecuteApproved did not surface the execution error")
	}

	rec, err := f.ledger.GetDecision(d.ID)
	if err != nil {
		t.Fatalf("load decision: %v", err)
	}
	if rec.Status != ledger.DecisionDiscarded {
		t.Errorf("failed decision status = %s, want %s", rec.Status, ledger.DecisionDiscarded)
	}

	var successful bool
	err = f.db.QueryRow(`SELECT was_successful FROM feedback_events
		WHERE decision_id = ? AND feedback_type = 'implicit'`, d.ID).Scan(&successful)
	if err != nil {
		t.Fatalf("load implicit event: %v", err)
	}
	if successful {
		t.Error("failed execution recorded as successful outcome")
	}
}

func TestExecuteApprovedUnknownAgent(t *testing.T) {
	f := newCoordFixture(t)
	coord := f.coordinator(decision.PolicyFor(decision.AutonomyConservative))

	_, err := coord.ExecuteApproved(context.Background(), proposal("nonexistent", 0.9, false))
	if err == nil {
		t.Fatal("ExecuteApproved accepted a decision with no owning agent")
	}
}

func TestRunCycleNilSnapshot(t *testing.T) {
	f := newCoordFixture(t)
	coord := f.coordinator(decision.PolicyFor(decision.AutonomyConservative))

	if _, err := coord.RunCycle(context.Background(), nil); err == nil {
		t.Fatal("RunCycle accepted a nil snapshot")
	}
}

// Repeated approvals of the same kind of decision should raise the learned
// confidence the model reports for it, never lower it.
func TestApprovalStreakRaisesConfidence(t *testing.T) {
	f := newCoordFixture(t)
	model := confidence.NewModel(confidence.ModeExplicitOnly, f.patterns, pattern.Fingerprint)
	ag := &fakeAgent{typ: "communication"}
	coord := f.coordinator(decision.PolicyFor(decision.AutonomyConservative), ag)

	raw := "slack thread t1 reply"
	prev, _ := model.Score(context.Background(), "communication", "draft_reply", raw, 0.6)

	for i := 0; i < 3; i++ {
		ag.decisions = []*decision.Decision{proposal("communication", 0.60, false)}
		res, err := coord.RunCycle(context.Background(), emptySnapshot())
		if err != nil {
			t.Fatalf("cycle %d failed: %v", i, err)
		}
		d := res.Pending[0]
		if err := f.recorder.Record(context.Background(), d.ID, true, true, d.Context, ""); err != nil {
			t.Fatalf("record approval %d: %v", i, err)
		}

		score, degraded := model.Score(context.Background(), "communication", "draft_reply", raw, 0.6)
		if degraded {
			t.Fatalf("score degraded on cycle %d", i)
		}
		if score < prev {
			t.Errorf("confidence dropped after approval %d: %v -> %v", i+1, prev, score)
		}
		prev = score
	}
}
