// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pdiddy/lit-pipeline/internal/extract"
	"github.com/pdiddy/lit-pipeline/internal/logging"
	"github.com/pdiddy/lit-pipeline/internal/recovery"
)

var recoverCmd = &cobra.Command{
	Use:   "recover",
	Short: "Retry failed LLM extractions from the latest snapshot",
	Long: `Recover reads the extraction failure log and the most recent dataset
snapshot, retries only the failed records against the LLM, and writes a new
recovered snapshot plus a recovery report. Rows that succeeded previously
are carried over without new calls.`,
	Args: cobra.NoArgs,
	RunE: runRecover,
}

func init() {
	recoverCmd.Flags().String("provider", "", "LLM provider: gemini or openai (default gemini)")
	recoverCmd.Flags().String("model", "", "provider model identifier")
	recoverCmd.Flags().Int("workers", 0, "concurrent extraction calls (default 8)")
	recoverCmd.Flags().Float64("temperature", 0, "inference temperature (default 0)")
	recoverCmd.Flags().String("prompt-template", "", "path to a prompt template override")

	rootCmd.AddCommand(recoverCmd)
}

func runRecover(cmd *cobra.Command, args []string) error {
	cfg := buildConfig(cmd)
	applyExtractionFlags(cmd, &cfg)

	log, closer, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer.Close()
	}

	llmClient, err := extract.NewClient(cfg.Extraction)
	if err != nil {
		return err
	}

	e, err := recovery.New(cfg, llmClient, log)
	if err != nil {
		return err
	}
	defer e.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	report, err := e.Run(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Source snapshot: %s\n", report.SourceSnapshot)
	fmt.Printf("Retried: %d of %d logged failures\n", report.RowsRetried, report.FailedRequested)
	fmt.Printf("Recovered: %d, still failing: %d\n", report.Recovered, report.StillFailing)
	fmt.Printf("Recovered snapshot: %s\n", report.OutputCSV)
	return nil
}
