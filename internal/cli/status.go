package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/alfredlabs/alfred/internal/config"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		printHeader("alfred version")
		fmt.Printf("Version: %s\n", version)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show system status",
	Run: func(cmd *cobra.Command, args []string) {
		printHeader("alfred status")
		fmt.Printf("Version: %s\n", version)

		configPath, err := config.ConfigPath()
		if err == nil {
			if _, err := os.Stat(configPath); err == nil {
				fmt.Println("Config:  ✓ Found (" + configPath + ")")
			} else {
				fmt.Println("Config:  ✗ Not found (defaults in effect)")
			}
		}

		cfg, err := config.Load()
		if err != nil {
			fmt.Printf("Config:  ✗ Invalid: %v\n", err)
			return
		}

		fmt.Printf("Learning mode:  %s\n", cfg.Learning.Mode)
		fmt.Printf("Autonomy level: %s\n", cfg.Autonomy.Level)

		if _, err := os.Stat(cfg.Paths.DBPath); err == nil {
			fmt.Println("Ledger:  ✓ Found (" + cfg.Paths.DBPath + ")")
		} else {
			fmt.Println("Ledger:  ✗ Not created yet (run 'alfred run' first)")
		}

		if cfg.Extraction.Endpoint != "" {
			fmt.Println("Extraction: ✓ Configured")
		} else {
			fmt.Println("Extraction: ✗ Not configured (drafting and followups disabled)")
		}
		if cfg.Sources.Kafka.Enabled {
			fmt.Println("Kafka source: ✓ Enabled (" + cfg.Sources.Kafka.Topic + ")")
		} else {
			fmt.Println("Kafka source: ✗ Disabled")
		}
		if cfg.Notify.Slack.Enabled {
			fmt.Println("Slack digest: ✓ Enabled")
		} else {
			fmt.Println("Slack digest: ✗ Disabled")
		}

		fmt.Println("Status:  Ready")
	},
}
