package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var (
	apiURL       string
	apiKey       string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "coordinatorctl",
	Short: "Review approvals and follow workshop evolutions",
	Long: `coordinatorctl talks to the workshop coordinator REST API and reviewer feed.

Examples:
  # Follow events addressed to you
  coordinatorctl watch --reviewer alice

  # List pending content reviews
  coordinatorctl pending --type content_review

  # Approve or reject a request
  coordinatorctl approve <approval-id> --reviewer alice --comments "ship it"
  coordinatorctl reject <approval-id> --reviewer alice --comments "missing lab"

  # Show active evolutions, or the history of one workshop
  coordinatorctl evolutions
  coordinatorctl evolutions --workshop ocp-basics
`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&apiURL, "url", getEnvOrDefault("COORDINATOR_URL", "http://localhost:8080"), "Coordinator base URL")
	rootCmd.PersistentFlags().StringVar(&apiKey, "key", getEnvOrDefault("FEED_API_KEY", ""), "Reviewer feed API key")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", "text", "Output format (text, json)")

	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(pendingCmd)
	rootCmd.AddCommand(approveCmd)
	rootCmd.AddCommand(rejectCmd)
	rootCmd.AddCommand(evolutionsCmd)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// printJSON writes v indented when --format=json was requested. It reports
// whether it printed.
func printJSON(w io.Writer, v interface{}) (bool, error) {
	if outputFormat != "json" {
		return false, nil
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return true, fmt.Errorf("encode output: %w", err)
	}
	return true, nil
}
