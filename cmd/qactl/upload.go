package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	uploadTitle string
	uploadText  string
	uploadURL   string
)

var uploadCmd = &cobra.Command{
	Use:   "upload [pdf-file]",
	Short: "Upload a PDF, or ingest raw text/a URL, as a new source",
	Long: `Creates a new source. Pass a PDF file path as the positional argument, or
use --text/--url to ingest text or a remote document instead.

Examples:
  qactl upload paper.pdf --title "Annual Report"
  qactl upload --text "The quick brown fox." --title "note"
  qactl upload --url "https://example.com/doc" --title "example"`,
	Args: cobra.MaximumNArgs(1),
	RunE: runUpload,
}

func init() {
	uploadCmd.Flags().StringVar(&uploadTitle, "title", "", "source title")
	uploadCmd.Flags().StringVar(&uploadText, "text", "", "ingest raw text instead of a file")
	uploadCmd.Flags().StringVar(&uploadURL, "url", "", "ingest a remote URL instead of a file")
	rootCmd.AddCommand(uploadCmd)
}

func runUpload(cmd *cobra.Command, args []string) error {
	var source map[string]any
	var err error

	switch {
	case len(args) == 1:
		err = client.postPDF("/sources/upload", args[0], uploadTitle, &source)
	case uploadText != "":
		err = client.postJSON("/sources/ingest", map[string]string{"text": uploadText, "title": uploadTitle}, &source)
	case uploadURL != "":
		err = client.postJSON("/sources/ingest", map[string]string{"url": uploadURL, "title": uploadTitle}, &source)
	default:
		return fmt.Errorf("provide a pdf file, --text, or --url")
	}
	if err != nil {
		return err
	}
	return printResult(source)
}
