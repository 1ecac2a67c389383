package main

import (
	"fmt"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var (
	statusWait    bool
	statusTimeout time.Duration
)

var statusCmd = &cobra.Command{
	Use:   "status [source-id]",
	Short: "Fetch a source's ingestion status",
	Long: `Prints a source's current status. With --wait, polls until the source
reaches READY or FAILED (or statusTimeout elapses), showing a spinner.`,
	Args: cobra.ExactArgs(1),
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusWait, "wait", false, "poll until the source is ready or failed")
	statusCmd.Flags().DurationVar(&statusTimeout, "timeout", 5*time.Minute, "max time to wait with --wait")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	sourceID := args[0]

	if !statusWait {
		var source map[string]any
		if err := client.get("/sources/"+sourceID, &source); err != nil {
			return err
		}
		return printResult(source)
	}

	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetDescription("[cyan]Waiting for ingestion[reset]"),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWidth(20),
	)
	defer fmt.Println()

	deadline := time.Now().Add(statusTimeout)
	for {
		var source map[string]any
		if err := client.get("/sources/"+sourceID, &source); err != nil {
			return err
		}

		status, _ := source["status"].(string)
		switch status {
		case "READY", "FAILED":
			_ = bar.Finish()
			fmt.Println()
			return printResult(source)
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("source %s still %s after %s", sourceID, status, statusTimeout)
		}
		_ = bar.Add(1)
		time.Sleep(1 * time.Second)
	}
}
