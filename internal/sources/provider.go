// Package sources produces the context snapshots agents evaluate against.
package sources

import (
	"context"
	"time"

	"github.com/alfredlabs/alfred/internal/agent"
)

// Provider assembles a context snapshot from whatever inputs it has on hand.
// Sections it cannot populate stay nil; agents skip what is absent.
type Provider interface {
	Snapshot(ctx context.Context) (*agent.Snapshot, error)
}

// Static returns the same snapshot every time, stamped at call time.
// Used by the CLI's one-shot run mode and in tests.
type Static struct {
	Messaging *agent.MessagingSummary
	Calendar  *agent.CalendarBriefing
	Notion    *agent.NotionContext
}

// Snapshot implements Provider.
func (s *Static) Snapshot(ctx context.Context) (*agent.Snapshot, error) {
	return &agent.Snapshot{
		MessagingSummary: s.Messaging,
		CalendarBriefing: s.Calendar,
		NotionContext:    s.Notion,
		GeneratedAt:      time.Now(),
	}, nil
}
