package main

import (
	"github.com/spf13/cobra"

	"github.com/redlinehq/redline/internal/server/endpoints"
)

var serverURL string

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Commands that call the running server",
	Long: `API commands call the running Redline server via HTTP.

These commands require a running server (redline serve).
Use --server to specify a custom server URL.

Examples:
  redline api health                      # Check server health
  redline api documents status <id>       # Get a document's processing status
  redline api documents analysis <id>     # Get a document's analysis result`,
}

var documentsCmd = &cobra.Command{
	Use:   "documents",
	Short: "Document processing commands",
}

// getServerURL returns the server URL at runtime (after flag parsing).
func getServerURL() string {
	return serverURL
}

func init() {
	// Add --server flag to api command (persistent so all subcommands inherit it)
	apiCmd.PersistentFlags().StringVar(
		&serverURL, "server", "http://localhost:8080", "Server URL",
	)

	// Health endpoints at top level of api
	apiCmd.AddCommand((&endpoints.HealthEndpoint{}).Command(getServerURL))
	apiCmd.AddCommand((&endpoints.ReadyEndpoint{}).Command(getServerURL))

	// Documents as subcommand group
	documentsCmd.AddCommand((&endpoints.DocumentStatusEndpoint{}).Command(getServerURL))
	documentsCmd.AddCommand((&endpoints.DocumentPagesEndpoint{}).Command(getServerURL))
	documentsCmd.AddCommand((&endpoints.RequestAnalysisEndpoint{}).Command(getServerURL))
	documentsCmd.AddCommand((&endpoints.AnalysisResultEndpoint{}).Command(getServerURL))

	apiCmd.AddCommand(documentsCmd)
	rootCmd.AddCommand(apiCmd)
}
