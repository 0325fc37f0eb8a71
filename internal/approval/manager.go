// Package approval provides interactive approval gates for decisions
// that fall below the auto-execute threshold.
package approval

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/alfredlabs/alfred/internal/decision"
	"github.com/alfredlabs/alfred/internal/feedback"
	"github.com/alfredlabs/alfred/internal/ledger"
)

// Manager handles approval lifecycle: create, wait, respond.
type Manager struct {
	mu       sync.Mutex
	pending  map[string]chan bool
	ledger   *ledger.Service
	recorder *feedback.Recorder
}

// NewManager creates an approval manager. Recorder may be nil.
// On creation, any stale pending approvals in the DB are marked as timeout.
func NewManager(led *ledger.Service, rec *feedback.Recorder) *Manager {
	m := &Manager{
		pending:  make(map[string]chan bool),
		ledger:   led,
		recorder: rec,
	}
	m.cleanupStale()
	return m
}

// cleanupStale marks any DB-pending approvals as timeout on startup.
// These are leftovers from a previous process that never resolved them.
func (m *Manager) cleanupStale() {
	if m.ledger == nil {
		return
	}
	pending, err := m.ledger.GetPendingApprovals()
	if err != nil {
		return
	}
	for _, r := range pending {
		_ = m.ledger.UpdateApprovalStatus(r.ApprovalID, "timeout")
	}
}

// Create registers a new approval request for a decision and returns its ID.
func (m *Manager) Create(d *decision.Decision) string {
	id := newApprovalID()

	ch := make(chan bool, 1)
	m.mu.Lock()
	m.pending[id] = ch
	m.mu.Unlock()

	// Persist to the ledger (best-effort)
	if m.ledger != nil {
		_ = m.ledger.InsertApprovalRequest(
			id, d.ID, d.AgentType, string(d.Action.Kind),
			d.Reasoning, d.Confidence,
		)
	}

	return id
}

// Wait blocks until the approval is responded to or the context expires.
func (m *Manager) Wait(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	ch, ok := m.pending[id]
	m.mu.Unlock()
	if !ok {
		return false, fmt.Errorf("no pending approval: %s", id)
	}

	select {
	case approved := <-ch:
		m.cleanup(id)
		return approved, nil
	case <-ctx.Done():
		m.cleanup(id)
		if m.ledger != nil {
			_ = m.ledger.UpdateApprovalStatus(id, "timeout")
		}
		return false, ctx.Err()
	}
}

// Respond delivers an approval decision for a pending request. The
// response is recorded as explicit feedback on the underlying decision,
// which is how the pattern store learns. A live waiter is optional:
// responses issued from the CLI after the proposing process exited still
// resolve the ledger row.
func (m *Manager) Respond(ctx context.Context, id string, approved bool) error {
	rec, err := m.lookup(id)
	if err != nil {
		return err
	}

	status := "rejected"
	if approved {
		status = "approved"
	}
	if err := m.ledger.UpdateApprovalStatus(id, status); err != nil {
		return fmt.Errorf("update approval status: %w", err)
	}

	if m.recorder != nil {
		rawContext := rec.Summary
		if dec, derr := m.ledger.GetDecision(rec.DecisionID); derr == nil {
			rawContext = dec.Context
		}
		_ = m.recorder.Record(ctx, rec.DecisionID, approved, approved, rawContext, "")
	}
	if !approved {
		_ = m.ledger.ResolveDecision(rec.DecisionID, ledger.DecisionDiscarded)
	}

	m.mu.Lock()
	ch, ok := m.pending[id]
	m.mu.Unlock()
	if ok {
		// Non-blocking send (channel is buffered with size 1)
		select {
		case ch <- approved:
		default:
		}
	}
	return nil
}

// Pending returns the approvals still awaiting a response.
func (m *Manager) Pending() ([]*ledger.ApprovalRecord, error) {
	if m.ledger == nil {
		return nil, nil
	}
	return m.ledger.GetPendingApprovals()
}

func (m *Manager) lookup(id string) (*ledger.ApprovalRecord, error) {
	pending, err := m.ledger.GetPendingApprovals()
	if err != nil {
		return nil, fmt.Errorf("list pending approvals: %w", err)
	}
	for _, r := range pending {
		if r.ApprovalID == id {
			return r, nil
		}
	}
	return nil, fmt.Errorf("no pending approval: %s", id)
}

func (m *Manager) cleanup(id string) {
	m.mu.Lock()
	delete(m.pending, id)
	m.mu.Unlock()
}

func newApprovalID() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err == nil {
		return hex.EncodeToString(b[:])
	}
	return fmt.Sprintf("appr-%d", time.Now().UnixNano())
}
