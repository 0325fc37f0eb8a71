package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/slack-go/slack"

	"github.com/alfredlabs/alfred/internal/decision"
)

// SlackNotifier posts approval digests to a Slack channel.
type SlackNotifier struct {
	client  *slack.Client
	channel string
}

// NewSlackNotifier builds a notifier for the given bot token and channel.
// APIBase overrides the Slack API endpoint when non-empty (used in tests).
func NewSlackNotifier(token, channel, apiBase string) (*SlackNotifier, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, errors.New("missing slack bot token")
	}
	channel = strings.TrimSpace(channel)
	if channel == "" {
		return nil, errors.New("missing slack channel")
	}
	opts := []slack.Option{
		slack.OptionHTTPClient(&http.Client{Timeout: 15 * time.Second}),
	}
	if base := strings.TrimSpace(apiBase); base != "" {
		opts = append(opts, slack.OptionAPIURL(strings.TrimRight(base, "/")+"/"))
	}
	return &SlackNotifier{
		client:  slack.New(token, opts...),
		channel: channel,
	}, nil
}

// PendingApprovals implements Notifier. An empty list sends nothing.
func (n *SlackNotifier) PendingApprovals(ctx context.Context, pending []*decision.Decision) error {
	if len(pending) == 0 {
		return nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "*%d decision(s) awaiting approval*\n", len(pending))
	for _, d := range pending {
		fmt.Fprintf(&b, "• `%s` %s (%.0f%%): %s\n",
			d.AgentType, d.Action.Kind, d.Confidence*100, d.Reasoning)
		for _, r := range d.Risks {
			fmt.Fprintf(&b, "    ⚠ %s\n", r)
		}
	}
	_, _, err := n.client.PostMessageContext(ctx, n.channel,
		slack.MsgOptionText(b.String(), false),
		slack.MsgOptionDisableLinkUnfurl(),
	)
	if err != nil {
		return fmt.Errorf("post approval digest: %w", err)
	}
	return nil
}
