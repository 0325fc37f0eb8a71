// Package cli implements the alfred command-line interface.
package cli

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// version can be overridden at build time via:
	// go build -ldflags "-X github.com/alfredlabs/alfred/internal/cli.version=1.2.3"
	version = "0.4.0"
	logo    = "\n" +
		"        _  __              _\n" +
		"   __ _| |/ _|_ __ ___  __| |\n" +
		"  / _` | | |_| '__/ _ \\/ _` |\n" +
		" | (_| | |  _| | |  __/ (_| |\n" +
		"  \\__,_|_|_| |_|  \\___|\\__,_|\n"
)

var rootCmd = &cobra.Command{
	Use:   "alfred",
	Short: "alfred - adaptive personal decision engine",
	Long:  color.CyanString(logo) + "\nAn assistant that proposes actions from your messages and calendar,\nand learns from your feedback which ones to run on its own.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(approvalsCmd)
	rootCmd.AddCommand(insightsCmd)
	rootCmd.AddCommand(threadsCmd)
}
