// Command qactl is an operator CLI for citeground: upload or ingest a
// source, poll its ingestion status, and ask it a question, printing the
// answer with its citations. It talks to the server purely over HTTP, the
// same surface any other client uses, so it doubles as a smoke test.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	baseURL    string
	outputYAML bool
	client     *apiClient
)

var rootCmd = &cobra.Command{
	Use:   "qactl",
	Short: "Operator CLI for the citeground question-answering service",
	Long: `qactl wraps the citeground HTTP API for smoke testing and scripted
evaluation: upload a source, wait for it to become ready, ask a question,
and print the answer with its citations and verification summary.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		client = newAPIClient(baseURL)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "http://localhost:8081", "citeground server base URL")
	rootCmd.PersistentFlags().BoolVar(&outputYAML, "yaml", false, "print output as YAML instead of JSON")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func printResult(v any) error {
	if outputYAML {
		return printYAML(v)
	}
	return printJSON(v)
}
