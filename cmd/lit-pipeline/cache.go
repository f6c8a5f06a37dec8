// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/lit-pipeline/internal/cache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect the LLM result cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print cache entry counts per provider/model",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := buildConfig(cmd)

		store, err := cache.Open(cfg.CachePath())
		if err != nil {
			return err
		}
		defer store.Close()

		stats, err := store.Stats()
		if err != nil {
			return err
		}

		fmt.Printf("Cache: %s\n", cfg.CachePath())
		fmt.Printf("Entries: %d\n", stats.Total)
		if stats.Total == 0 {
			return nil
		}

		models := make([]string, 0, len(stats.ByModel))
		for m := range stats.ByModel {
			models = append(models, m)
		}
		sort.Strings(models)
		for _, m := range models {
			fmt.Printf("  %s: %d\n", m, stats.ByModel[m])
		}
		fmt.Printf("Oldest: %s\n", stats.Earliest.Format(time.RFC3339))
		fmt.Printf("Newest: %s\n", stats.Latest.Format(time.RFC3339))
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheStatsCmd)
	rootCmd.AddCommand(cacheCmd)
}
