package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var insightsCmd = &cobra.Command{
	Use:   "insights",
	Short: "Show what the system has learned from your feedback",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := openRuntime()
		if err != nil {
			return err
		}
		defer rt.Close()

		ins, err := rt.recorder.Insights(cmd.Context())
		if err != nil {
			return err
		}

		printHeader("Learning insights")
		fmt.Printf("Decisions:          %d\n", ins.TotalDecisions)
		fmt.Printf("Feedback events:    %d\n", ins.TotalFeedback)
		fmt.Printf("Approval rate:      %.0f%%\n", ins.ApprovalRate*100)
		fmt.Printf("Success rate:       %.0f%%\n", ins.SuccessRate*100)
		fmt.Printf("Average confidence: %.2f\n", ins.AverageConfidence)

		if len(ins.TopPatterns) > 0 {
			fmt.Println("\nMost established patterns:")
			for _, p := range ins.TopPatterns {
				fmt.Printf("  %s/%s  confidence %.2f  (%d events)\n",
					p.AgentType, p.ActionType, p.Confidence, p.Volume)
			}
		}
		return nil
	},
}
