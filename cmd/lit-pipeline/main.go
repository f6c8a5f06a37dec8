// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the lit-pipeline CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/lit-pipeline/internal/secrets"
	"github.com/pdiddy/lit-pipeline/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds credentials loaded from .secrets/ at startup.
var loadedSecrets secrets.Store

// rootCmd is the base command for the lit-pipeline CLI.
var rootCmd = &cobra.Command{
	Use:   "lit-pipeline",
	Short: "Bibliographic enrichment pipeline for literature reviews",
	Long: `lit-pipeline enriches a bibliographic export in two concurrent stages:
DOI metadata resolution against Crossref, and LLM extraction of a fixed
structured schema from each abstract. Results land in a timestamped CSV
snapshot; failures land in per-stage logs that the recover subcommand
can retry without repeating successful work.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, err := secrets.Load(".secrets/")
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			fmt.Fprintf(os.Stderr, "Loaded secrets: %v\n", keys)
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./lit-pipeline.yaml or ~/.config/lit-pipeline/config.yaml)")
	rootCmd.PersistentFlags().String("output-dir", "", "base directory for snapshots, logs, and the cache (default output)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: trace, debug, info, warn, error (default info)")
	rootCmd.PersistentFlags().String("log-format", "", "log format: console or json (default console)")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("lit-pipeline")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "lit-pipeline"))
		}
	}

	viper.SetEnvPrefix("LIT_PIPELINE")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// buildConfig assembles the pipeline configuration from the config file,
// environment, flags, and loaded secrets, then applies defaults. Flags win
// over the config file; explicit config values win over secrets.
func buildConfig(cmd *cobra.Command) types.PipelineConfig {
	var cfg types.PipelineConfig
	if err := viper.UnmarshalKey("pipeline", &cfg); err != nil {
		fmt.Fprintf(os.Stderr, "warning: ignoring malformed pipeline config: %v\n", err)
	}

	if v, _ := cmd.Flags().GetString("output-dir"); v != "" {
		cfg.OutputDir = v
	}
	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		cfg.Logging.Level = v
	}
	if v, _ := cmd.Flags().GetString("log-format"); v != "" {
		cfg.Logging.Format = v
	}

	cfg = cfg.WithDefaults()
	if cfg.Resolution.Mailto == "" {
		cfg.Resolution.Mailto = loadedSecrets.Mailto()
	}
	if cfg.Extraction.APIKey == "" {
		cfg.Extraction.APIKey = loadedSecrets.APIKey(cfg.Extraction.Provider)
	}
	return cfg
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
