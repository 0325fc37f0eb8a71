package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alfredlabs/alfred/internal/config"
	"github.com/alfredlabs/alfred/internal/feedback"
)

var approvalsCmd = &cobra.Command{
	Use:   "approvals",
	Short: "List and resolve pending approvals",
}

var approvalsListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show decisions waiting on your approval",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := openRuntime()
		if err != nil {
			return err
		}
		defer rt.Close()

		pending, err := rt.approvals.Pending()
		if err != nil {
			return err
		}
		if len(pending) == 0 {
			fmt.Println("No pending approvals.")
			return nil
		}
		printHeader(fmt.Sprintf("%d pending approval(s)", len(pending)))
		for _, r := range pending {
			fmt.Printf("%s  [%s/%s]  %.0f%%\n    %s\n",
				r.ApprovalID, r.AgentType, r.ActionType, r.Confidence*100, r.Summary)
		}
		return nil
	},
}

var approvalsApproveCmd = &cobra.Command{
	Use:   "approve <approval-id>",
	Short: "Approve a pending decision and execute it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return respondApproval(cmd, args[0], true)
	},
}

var approvalsRejectCmd = &cobra.Command{
	Use:   "reject <approval-id>",
	Short: "Reject a pending decision",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return respondApproval(cmd, args[0], false)
	},
}

func respondApproval(cmd *cobra.Command, approvalID string, approved bool) error {
	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx := cmd.Context()

	var decisionID string
	if pending, err := rt.approvals.Pending(); err == nil {
		for _, r := range pending {
			if r.ApprovalID == approvalID {
				decisionID = r.DecisionID
			}
		}
	}

	if err := rt.approvals.Respond(ctx, approvalID, approved); err != nil {
		return err
	}

	// Let the owning agent see the judgment for its own heuristics.
	if decisionID != "" {
		if rec, err := rt.ledger.GetDecision(decisionID); err == nil {
			if ag := rt.coord.AgentByType(rec.AgentType); ag != nil {
				ag.Learn(feedback.Event{
					DecisionID:   decisionID,
					FeedbackType: feedback.TypeExplicit,
					WasApproved:  approved,
					Context:      rec.Context,
				})
			}
		}
	}

	if !approved {
		fmt.Println("Rejected.")
		return nil
	}

	// Execute the approved decision through its owning agent.
	if decisionID == "" {
		fmt.Println("Approved, but the decision could not be located for execution.")
		return nil
	}
	rec, err := rt.ledger.GetDecision(decisionID)
	if err != nil {
		return fmt.Errorf("load decision: %w", err)
	}
	d, err := decisionFromRecord(rec)
	if err != nil {
		return err
	}
	result, err := rt.coord.ExecuteApproved(ctx, d)
	if err != nil {
		return fmt.Errorf("execute approved decision: %w", err)
	}
	fmt.Printf("Approved and executed: %s\n", result.Detail)
	return nil
}

// openRuntime loads config and wires the runtime for a one-shot command.
func openRuntime() (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return buildRuntime(cfg)
}

func init() {
	approvalsCmd.AddCommand(approvalsListCmd)
	approvalsCmd.AddCommand(approvalsApproveCmd)
	approvalsCmd.AddCommand(approvalsRejectCmd)
}
