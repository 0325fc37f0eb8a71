// Package notify delivers pending-approval digests to the user.
package notify

import (
	"context"

	"github.com/alfredlabs/alfred/internal/decision"
)

// Notifier is the outbound surface for approval digests.
type Notifier interface {
	PendingApprovals(ctx context.Context, pending []*decision.Decision) error
}

// Noop is a Notifier that discards everything. Used when no delivery
// channel is configured and in tests.
type Noop struct{}

// PendingApprovals implements Notifier.
func (Noop) PendingApprovals(ctx context.Context, pending []*decision.Decision) error {
	return nil
}
