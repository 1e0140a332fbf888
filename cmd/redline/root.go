package main

import (
	"github.com/spf13/cobra"

	"github.com/redlinehq/redline/internal/api"
	"github.com/redlinehq/redline/version"
)

var (
	cfgFile      string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "redline",
	Short: "Contract review pipeline with parallel extraction and risk analysis",
	Long: `Redline turns scanned contract pages into reviewable text and an
automated risk report.

The pipeline includes:
  - Parallel per-page text extraction over a bounded worker pool
  - Ordered persistence of extracted fragments
  - Idempotent LLM risk analysis with severity-ranked findings
  - Composite processing status for polling clients`,
	Version: version.GitRelease,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.redline/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)

	// Set output format before any command runs
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		api.SetOutputFormat(outputFormat)
	}

	rootCmd.AddCommand(versionCmd)
}
