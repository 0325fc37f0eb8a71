package approval

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/alfredlabs/alfred/internal/confidence"
	"github.com/alfredlabs/alfred/internal/decision"
	"github.com/alfredlabs/alfred/internal/feedback"
	"github.com/alfredlabs/alfred/internal/ledger"
	"github.com/alfredlabs/alfred/internal/pattern"
)

type approvalFixture struct {
	db      *sql.DB
	ledger  *ledger.Service
	manager *Manager
}

func newApprovalFixture(t *testing.T) *approvalFixture {
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
	rec := feedback.NewRecorder(db, store)
	return &approvalFixture{
		db:      db,
		ledger:  led,
		manager: NewManager(led, rec),
	}
}

func (f *approvalFixture) pendingDecision(t *testing.T) *decision.Decision {
	t.Helper()
	d := decision.New("communication", decision.Action{
		Kind:       decision.ActionDraftReply,
		DraftReply: &decision.DraftReply{Platform: "slack", ThreadID: "t1", Body: "on it"},
	}, "needs a reply", "slack thread t1 reply", 0.7, false)
	d.Verdict = decision.VerdictPendingApproval
	d.RequiresApproval = true

	err := f.ledger.InsertDecision(&ledger.DecisionRecord{
		ID: d.ID, AgentType: d.AgentType, ActionType: string(d.Action.Kind),
		Payload: "{}", Reasoning: d.Reasoning, Confidence: d.Confidence,
		Context: d.Context, Risks: "[]", Alternatives: "[]",
		Verdict: string(d.Verdict), Status: ledger.DecisionPending,
	})
	if err != nil {
		t.Fatalf("insert decision: %v", err)
	}
	return d
}

func TestApproveDeliversToWaiter(t *testing.T) {
	f := newApprovalFixture(t)
	d := f.pendingDecision(t)
	id := f.manager.Create(d)

	go func() {
		time.Sleep(10 * time.Millisecond)
		if err := f.manager.Respond(context.Background(), id, true); err != nil {
			t.Errorf("respond failed: %v", err)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	approved, err := f.manager.Wait(ctx, id)
	if err != nil {
		t.Fatalf("wait failed: %v", err)
	}
	if !approved {
		t.Fatal("expected approved=true")
	}
}

func TestRejectResolvesDecision(t *testing.T) {
	f := newApprovalFixture(t)
	d := f.pendingDecision(t)
	id := f.manager.Create(d)

	if err := f.manager.Respond(context.Background(), id, false); err != nil {
		t.Fatalf("respond failed: %v", err)
	}

	rec, err := f.ledger.GetDecision(d.ID)
	if err != nil {
		t.Fatalf("load decision: %v", err)
	}
	if rec.Status != ledger.DecisionDiscarded {
		t.Errorf("rejected decision status = %s, want %s", rec.Status, ledger.DecisionDiscarded)
	}
}

func TestRespondRecordsExplicitFeedback(t *testing.T) {
	f := newApprovalFixture(t)
	d := f.pendingDecision(t)
	id := f.manager.Create(d)

	if err := f.manager.Respond(context.Background(), id, true); err != nil {
		t.Fatalf("respond failed: %v", err)
	}

	var ft string
	var approved bool
	err := f.db.QueryRow(`SELECT feedback_type, was_approved FROM feedback_events
		WHERE decision_id = ?`, d.ID).Scan(&ft, &approved)
	if err != nil {
		t.Fatalf("load feedback event: %v", err)
	}
	if ft != "explicit" || !approved {
		t.Errorf("feedback event = (%s, %v), want (explicit, true)", ft, approved)
	}
}

func TestRespondWithoutWaiter(t *testing.T) {
	f := newApprovalFixture(t)
	d := f.pendingDecision(t)
	id := f.manager.Create(d)

	// No Wait call: the CLI path responds directly against the ledger.
	if err := f.manager.Respond(context.Background(), id, true); err != nil {
		t.Fatalf("respond failed: %v", err)
	}

	var status string
	if err := f.db.QueryRow(`SELECT status FROM approval_requests WHERE approval_id = ?`, id).Scan(&status); err != nil {
		t.Fatalf("load approval row: %v", err)
	}
	if status != "approved" {
		t.Errorf("approval status = %s, want approved", status)
	}
}

func TestRespondUnknownApproval(t *testing.T) {
	f := newApprovalFixture(t)

	if err := f.manager.Respond(context.Background(), "nope", true); err == nil {
		t.Fatal("unknown approval accepted")
	}
}

func TestWaitTimesOut(t *testing.T) {
	f := newApprovalFixture(t)
	d := f.pendingDecision(t)
	id := f.manager.Create(d)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := f.manager.Wait(ctx, id); err == nil {
		t.Fatal("wait returned without a response")
	}

	var status string
	if err := f.db.QueryRow(`SELECT status FROM approval_requests WHERE approval_id = ?`, id).Scan(&status); err != nil {
		t.Fatalf("load approval row: %v", err)
	}
	if status != "timeout" {
		t.Errorf("approval status = %s, want timeout", status)
	}
}

func TestPendingListsOpenApprovals(t *testing.T) {
	f := newApprovalFixture(t)
	d1 := f.pendingDecision(t)
	d2 := f.pendingDecision(t)
	f.manager.Create(d1)
	id2 := f.manager.Create(d2)

	if err := f.manager.Respond(context.Background(), id2, true); err != nil {
		t.Fatalf("respond failed: %v", err)
	}

	pending, err := f.manager.Pending()
	if err != nil {
		t.Fatalf("pending failed: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("pending count = %d, want 1", len(pending))
	}
	if pending[0].DecisionID != d1.ID {
		t.Errorf("pending decision = %s, want %s", pending[0].DecisionID, d1.ID)
	}
}

func TestStaleApprovalsTimeOutOnStartup(t *testing.T) {
	f := newApprovalFixture(t)
	d := f.pendingDecision(t)
	id := f.manager.Create(d)

	// A fresh manager over the same ledger sees the orphaned row.
	m2 := NewManager(f.ledger, nil)
	pending, err := m2.Pending()
	if err != nil {
		t.Fatalf("pending failed: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("stale approvals survived restart: %d pending", len(pending))
	}

	var status string
	if err := f.db.QueryRow(`SELECT status FROM approval_requests WHERE approval_id = ?`, id).Scan(&status); err != nil {
		t.Fatalf("load approval row: %v", err)
	}
	if status != "timeout" {
		t.Errorf("stale approval status = %s, want timeout", status)
	}
}
