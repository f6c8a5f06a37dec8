// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pdiddy/lit-pipeline/internal/extract"
	"github.com/pdiddy/lit-pipeline/internal/logging"
	"github.com/pdiddy/lit-pipeline/internal/pipeline"
	"github.com/pdiddy/lit-pipeline/internal/resolve"
	"github.com/pdiddy/lit-pipeline/pkg/types"
)

var runCmd = &cobra.Command{
	Use:   "run <input-file>",
	Short: "Run the full enrichment pipeline over a bibliographic export",
	Long: `Run ingests a CSV or JSON export, assigns stable record keys, then
resolves DOIs against Crossref and extracts the structured schema from each
abstract concurrently. The enriched dataset is written as a timestamped CSV
snapshot; per-stage failures are written to logs under <output-dir>/logs.`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().String("provider", "", "LLM provider: gemini or openai (default gemini)")
	runCmd.Flags().String("model", "", "provider model identifier")
	runCmd.Flags().Int("workers", 0, "concurrent extraction calls (default 8)")
	runCmd.Flags().Int("concurrency", 0, "concurrent Crossref calls (default 20)")
	runCmd.Flags().Float64("temperature", 0, "inference temperature (default 0)")
	runCmd.Flags().Duration("resolve-timeout", 0, "per-call Crossref timeout (default 30s)")
	runCmd.Flags().Duration("llm-timeout", 0, "per-call LLM timeout (default 60s)")
	runCmd.Flags().Bool("overwrite", false, "re-extract records even when cached")
	runCmd.Flags().String("prompt-template", "", "path to a prompt template override")

	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg := buildConfig(cmd)
	applyExtractionFlags(cmd, &cfg)
	if v, _ := cmd.Flags().GetInt("concurrency"); v > 0 {
		cfg.Resolution.Concurrency = v
	}
	if v, _ := cmd.Flags().GetDuration("resolve-timeout"); v > 0 {
		cfg.Resolution.Timeout = v
	}
	if v, _ := cmd.Flags().GetDuration("llm-timeout"); v > 0 {
		cfg.Extraction.Timeout = v
	}

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
	crossref := &resolve.CrossrefClient{
		Client: &http.Client{Timeout: cfg.Resolution.Timeout},
		Config: cfg.Resolution,
	}

	p, err := pipeline.New(cfg, crossref, llmClient, log)
	if err != nil {
		return err
	}
	defer p.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	meta, err := p.Run(ctx, args[0])
	if err != nil {
		return err
	}

	fmt.Printf("Snapshot: %s\n", meta.OutputCSV)
	fmt.Printf("Rows: %d ingested, %d enriched\n", meta.Counts.Ingested, meta.Counts.AfterPreprocess)
	fmt.Printf("DOIs: %d resolved, %d failed\n", meta.Counts.DOIsResolved, meta.Counts.DOIsFailed)
	fmt.Printf("Extraction: %d ok (%d cached), %d failed\n",
		meta.Counts.Extracted, meta.Counts.FromCache, meta.Counts.ExtractFailed)
	if meta.Counts.DOIsFailed > 0 || meta.Counts.ExtractFailed > 0 {
		fmt.Printf("Failure logs: %s, %s\n", meta.DOIFailureLog, meta.LLMFailureLog)
	}
	return nil
}

// applyExtractionFlags layers extraction flag overrides onto cfg, shared by
// run and recover.
func applyExtractionFlags(cmd *cobra.Command, cfg *types.PipelineConfig) {
	if v, _ := cmd.Flags().GetString("provider"); v != "" && types.Provider(v) != cfg.Extraction.Provider {
		// Switching provider invalidates the configured model and key.
		cfg.Extraction.Provider = types.Provider(v)
		cfg.Extraction.Model = ""
		cfg.Extraction.APIKey = loadedSecrets.APIKey(cfg.Extraction.Provider)
		*cfg = cfg.WithDefaults()
	}
	if v, _ := cmd.Flags().GetString("model"); v != "" {
		cfg.Extraction.Model = v
	}
	if v, _ := cmd.Flags().GetInt("workers"); v > 0 {
		cfg.Extraction.Workers = v
	}
	if v, _ := cmd.Flags().GetFloat64("temperature"); v > 0 {
		cfg.Extraction.Temperature = v
	}
	if v, _ := cmd.Flags().GetBool("overwrite"); v {
		cfg.Extraction.Overwrite = true
	}
	if v, _ := cmd.Flags().GetString("prompt-template"); v != "" {
		cfg.Extraction.PromptTemplatePath = v
	}
}
