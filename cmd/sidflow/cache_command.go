package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/chrisgleissner/sidflow-sub004/internal/featurecache"
)

func newCacheCommand(configFlag *string) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Feature cache maintenance",
	}
	cacheCmd.AddCommand(newCacheSweepCommand(configFlag))
	cacheCmd.AddCommand(newCacheStatsCommand(configFlag))
	return cacheCmd
}

func newCacheSweepCommand(configFlag *string) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Remove expired feature cache entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configFlag)
			if err != nil {
				return err
			}
			logger, err := buildLogger(cfg)
			if err != nil {
				return err
			}

			cache := featurecache.New(cfg.Paths.CacheDir, logger)
			removed, err := cache.Sweep(cmd.Context())
			if err != nil {
				return fmt.Errorf("sweep cache: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d expired entries from %s\n",
				removed, cfg.Paths.CacheDir)
			return nil
		},
	}
}

func newCacheStatsCommand(configFlag *string) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show feature cache usage",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configFlag)
			if err != nil {
				return err
			}
			logger, err := buildLogger(cfg)
			if err != nil {
				return err
			}

			stats := featurecache.New(cfg.Paths.CacheDir, logger).Stats()
			rows := [][]string{
				{"Memory entries", strconv.Itoa(stats.MemoryEntries)},
				{"Disk entries", strconv.Itoa(stats.DiskEntries)},
				{"Disk bytes", strconv.FormatInt(stats.DiskBytes, 10)},
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Metric", "Value"}, rows, 1))
			return nil
		},
	}
}
