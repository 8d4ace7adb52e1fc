package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List all configured sources",
	Long:  "Reads the config and prints a table of all configured job sources.",
	RunE:  runSources,
}

func init() {
	rootCmd.AddCommand(sourcesCmd)
}

func runSources(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	type sourceRow struct {
		name    string
		detail  string
		enabled bool
	}
	rows := []sourceRow{
		{
			name:    "freelancer",
			detail:  affiliateNote(cfg.Sources.Freelancer.AffiliatePrefix),
			enabled: cfg.Sources.Freelancer.Enabled,
		},
		{
			name:    "skywalker",
			detail:  cfg.Sources.Skywalker.FeedURL,
			enabled: cfg.Sources.Skywalker.Enabled,
		},
	}

	fmt.Printf("%-15s %-10s %s\n", "Source", "Status", "Detail")
	fmt.Println(strings.Repeat("─", 60))

	enabled := 0
	for _, r := range rows {
		status := "disabled"
		if r.enabled {
			status = "enabled"
			enabled++
		}
		fmt.Printf("%-15s %-10s %s\n", r.name, status, r.detail)
	}

	fmt.Printf("\nTotal: %d sources (%d enabled)\n", len(rows), enabled)
	return nil
}

func affiliateNote(prefix string) string {
	if prefix == "" {
		return "affiliate links off"
	}
	return "affiliate links on"
}
