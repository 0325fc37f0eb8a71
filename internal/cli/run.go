package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/alfredlabs/alfred/internal/config"
	"github.com/alfredlabs/alfred/internal/decision"
	"github.com/alfredlabs/alfred/internal/ledger"
	"github.com/alfredlabs/alfred/internal/scheduler"
)

var runWatch bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a coordination cycle over the current context",
	Long:  "Assembles a context snapshot, fans it out to all agents, and executes\nor queues the resulting decisions. With --watch, keeps running on the\nconfigured schedule.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		rt, err := buildRuntime(cfg)
		if err != nil {
			return err
		}
		defer rt.Close()

		if runWatch {
			return runWatchLoop(cmd.Context(), rt)
		}
		return runOnce(cmd.Context(), rt)
	},
}

func init() {
	runCmd.Flags().BoolVar(&runWatch, "watch", false, "keep running cycles on the configured schedule")
}

func runOnce(ctx context.Context, rt *runtime) error {
	snap, err := rt.provider.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("assemble snapshot: %w", err)
	}
	res, err := rt.coord.RunCycle(ctx, snap)
	if err != nil {
		return err
	}

	for _, d := range res.Pending {
		rt.approvals.Create(d)
	}
	if err := rt.notifier.PendingApprovals(ctx, res.Pending); err != nil {
		slog.Warn("approval digest delivery failed", "error", err)
	}

	fmt.Printf("Cycle complete: %d auto-executed, %d pending approval, %d rejected\n",
		len(res.Executed), len(res.Pending), len(res.Rejected))
	for agentType, msg := range res.Errors {
		fmt.Printf("  %s agent error: %s\n", agentType, msg)
	}
	return nil
}

func runWatchLoop(ctx context.Context, rt *runtime) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if rt.kafka != nil {
		rt.kafka.Start(ctx)
	}

	cycleCron, err := scheduler.ParseCron(rt.cfg.Scheduler.CycleCron)
	if err != nil {
		return fmt.Errorf("cycle cron: %w", err)
	}
	digestCron, err := scheduler.ParseCron(rt.cfg.Scheduler.DigestCron)
	if err != nil {
		return fmt.Errorf("digest cron: %w", err)
	}

	sched := scheduler.New(scheduler.Config{
		Enabled:      true,
		TickInterval: rt.cfg.Scheduler.TickInterval,
		LockPath:     rt.cfg.Scheduler.LockPath,
	}, rt.ledger)

	sched.Register(&scheduler.Job{
		Name:     "coordination-cycle",
		Cron:     cycleCron,
		Category: scheduler.CategoryLLM,
		Run: func(ctx context.Context) error {
			return runOnce(ctx, rt)
		},
	})
	sched.Register(&scheduler.Job{
		Name:     "approval-digest",
		Cron:     digestCron,
		Category: scheduler.CategoryDefault,
		Run: func(ctx context.Context) error {
			return sendPendingDigest(ctx, rt)
		},
	})

	err = sched.Run(ctx)
	if err == context.Canceled {
		return nil
	}
	return err
}

// sendPendingDigest re-notifies about decisions still waiting on a human.
func sendPendingDigest(ctx context.Context, rt *runtime) error {
	recs, err := rt.ledger.ListDecisionsByStatus(ledger.DecisionPending, 50)
	if err != nil {
		return err
	}
	pending := make([]*decision.Decision, 0, len(recs))
	for _, rec := range recs {
		d, err := decisionFromRecord(rec)
		if err != nil {
			slog.Warn("skipping malformed decision record", "id", rec.ID, "error", err)
			continue
		}
		pending = append(pending, d)
	}
	return rt.notifier.PendingApprovals(ctx, pending)
}

// decisionFromRecord rehydrates a persisted decision for display and
// delegated execution.
func decisionFromRecord(rec *ledger.DecisionRecord) (*decision.Decision, error) {
	var action decision.Action
	if err := json.Unmarshal([]byte(rec.Payload), &action); err != nil {
		return nil, fmt.Errorf("decode action payload: %w", err)
	}
	var risks, alternatives []string
	if rec.Risks != "" {
		_ = json.Unmarshal([]byte(rec.Risks), &risks)
	}
	if rec.Alternatives != "" {
		_ = json.Unmarshal([]byte(rec.Alternatives), &alternatives)
	}
	return &decision.Decision{
		ID:               rec.ID,
		AgentType:        rec.AgentType,
		Action:           action,
		Reasoning:        rec.Reasoning,
		Confidence:       rec.Confidence,
		Context:          rec.Context,
		Risks:            risks,
		Alternatives:     alternatives,
		Degraded:         rec.Degraded,
		Verdict:          decision.Verdict(rec.Verdict),
		RequiresApproval: rec.Verdict == string(decision.VerdictPendingApproval),
		CreatedAt:        rec.CreatedAt,
	}, nil
}
