package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var threadsLimit int

var threadsCmd = &cobra.Command{
	Use:   "threads",
	Short: "Show how conversations are classified",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := openRuntime()
		if err != nil {
			return err
		}
		defer rt.Close()

		records, err := rt.classifier.List(cmd.Context(), threadsLimit)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Println("No threads observed yet.")
			return nil
		}

		printHeader(fmt.Sprintf("%d thread(s)", len(records)))
		for _, r := range records {
			name := r.ThreadName
			if name == "" {
				name = r.ThreadID
			}
			fmt.Printf("%-8s  %s/%s  participation %.2f  extracted %d  rejected %d\n",
				r.Classification, r.Platform, name,
				r.AvgParticipation, r.ItemsExtracted, r.ItemsRejected)
		}
		return nil
	},
}

func init() {
	threadsCmd.Flags().IntVar(&threadsLimit, "limit", 50, "maximum threads to show")
}
