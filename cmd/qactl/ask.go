package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	askSources    []string
	askVerified   bool
	askHighlights bool
	askIdemKey    string
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question against one or more sources",
	Long: `Asks a question, printing the grounded answer with its citations. Pass
--verified to run claim extraction and verification, and --highlights to
additionally request evidence spans within the cited chunks.

Examples:
  qactl ask "What was the revenue?" --source abc123
  qactl ask "What was the revenue?" --source abc123 --verified --highlights`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringSliceVar(&askSources, "source", nil, "source id to query (repeatable)")
	askCmd.Flags().BoolVar(&askVerified, "verified", false, "run claim verification")
	askCmd.Flags().BoolVar(&askHighlights, "highlights", false, "attach evidence highlights (implies --verified)")
	askCmd.Flags().StringVar(&askIdemKey, "idempotency-key", "", "replay a prior answer for this key instead of re-running")
	_ = askCmd.MarkFlagRequired("source")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	question := args[0]

	path := "/query"
	switch {
	case askHighlights:
		path = "/query/verified/highlights"
	case askVerified:
		path = "/query/verified"
	}

	body := map[string]any{"question": question, "source_ids": askSources}
	headers := map[string]string{}
	if askIdemKey != "" {
		headers["Idempotency-Key"] = askIdemKey
	}

	var answer map[string]any
	if err := client.postJSONWithHeaders(path, body, headers, &answer); err != nil {
		return fmt.Errorf("ask failed: %w", err)
	}
	return printResult(answer)
}
