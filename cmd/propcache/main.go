package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/valuationhq/propcache/cache"
	"github.com/valuationhq/propcache/config"
	"github.com/valuationhq/propcache/logger"
)

var cacheDir string

func openCache(cmd *cobra.Command) (*cache.Cache, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if cacheDir != "" {
		cfg.DiskCacheDir = cacheDir
	}
	log := logger.NewConsole(logger.ParseLevel(cfg.LogLevel))
	opts := append(cfg.CacheOptions(), cache.WithSweepInterval(0))
	return cache.New(cmd.Context(), log, opts...)
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func main() {
	root := &cobra.Command{
		Use:   "propcache",
		Short: "Inspect and maintain the valuation cache",
	}
	root.PersistentFlags().StringVar(&cacheDir, "cache-dir", "", "disk cache directory (overrides PROPCACHE_DISK_CACHE_DIR)")

	root.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show cache tiers, occupancy, and hit statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openCache(cmd)
			if err != nil {
				return err
			}
			defer c.Close()
			return printJSON(c.Info())
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "sweep",
		Short: "Remove expired entries from both tiers",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openCache(cmd)
			if err != nil {
				return err
			}
			defer c.Close()
			memory, disk := c.ClearExpired()
			return printJSON(map[string]int{"memory_removed": memory, "disk_removed": disk})
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove every entry from both tiers",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openCache(cmd)
			if err != nil {
				return err
			}
			defer c.Close()
			memory, disk := c.ClearAll()
			return printJSON(map[string]int{"memory_removed": memory, "disk_removed": disk})
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "invalidate <address>",
		Short: "Remove every cached entry mentioning an address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openCache(cmd)
			if err != nil {
				return err
			}
			defer c.Close()
			return printJSON(map[string]any{
				"address":     args[0],
				"invalidated": c.InvalidateAddress(args[0]),
			})
		},
	})

	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
