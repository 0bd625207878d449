// ABOUTME: Feeds command for managing blocklist indicator feeds
// ABOUTME: Supports one-shot updates and blocklist statistics

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/hikmaai-io/hikmaai-sentinel/internal/blocklist"
	"github.com/hikmaai-io/hikmaai-sentinel/internal/config"
	"github.com/hikmaai-io/hikmaai-sentinel/internal/feeds"
	"github.com/hikmaai-io/hikmaai-sentinel/internal/observability"
	"github.com/hikmaai-io/hikmaai-sentinel/internal/store"
)

func newFeedsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feeds",
		Short: "Manage blocklist feeds",
		Long:  `Update the local blocklist from configured feeds and inspect its state.`,
	}

	cmd.AddCommand(newFeedsUpdateCmd())
	cmd.AddCommand(newFeedsStatsCmd())

	return cmd
}

func newFeedsUpdateCmd() *cobra.Command {
	var dataDir string

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Fetch all configured feeds once",
		Long: `Download every configured blocklist feed, import the indicators into
the local store, and rebuild the bloom filter.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("data-dir") {
				cfg.DataDir = dataDir
			}

			logger := observability.NewLogger(observability.LoggingConfig{
				Level:  logLevel,
				Format: logFormat,
			}, os.Stderr)

			engine, err := openEngine(cfg.DataDir)
			if err != nil {
				return err
			}
			defer engine.Close()

			updater, err := feeds.NewUpdater(feeds.UpdaterConfig{
				Feeds:  buildFeeds(cfg),
				Engine: engine,
				Logger: logger,
			})
			if err != nil {
				return fmt.Errorf("creating updater: %w", err)
			}

			updater.RunOnce(cmd.Context())

			status := updater.Status()
			fmt.Printf("Imported: %d indicators\n", status.Imported)
			if len(status.FeedErrors) > 0 {
				for feed, msg := range status.FeedErrors {
					fmt.Fprintf(os.Stderr, "feed %s failed: %s\n", feed, msg)
				}
				return fmt.Errorf("%d feed(s) failed", len(status.FeedErrors))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dataDir, "data-dir", config.DefaultDataDir(), "data directory for the blocklist store")

	return cmd
}

func newFeedsStatsCmd() *cobra.Command {
	var dataDir string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show blocklist statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := openEngine(dataDir)
			if err != nil {
				return err
			}
			defer engine.Close()

			stats, err := engine.Stats(cmd.Context())
			if err != nil {
				return fmt.Errorf("reading stats: %w", err)
			}

			fmt.Printf("Indicators:  %d\n", stats.EntryCount)
			fmt.Printf("Store size:  %d bytes\n", stats.StoreSizeBytes)
			fmt.Printf("Bloom bits:  %d (capacity %d)\n", stats.BloomBitSetSize, stats.BloomCapacity)
			return nil
		},
	}

	cmd.Flags().StringVar(&dataDir, "data-dir", config.DefaultDataDir(), "data directory for the blocklist store")

	return cmd
}

func openEngine(dataDir string) (*blocklist.Engine, error) {
	engine, err := blocklist.NewEngine(blocklist.EngineConfig{
		StoreConfig: store.Config{Path: filepath.Join(dataDir, "blocklist")},
		BloomConfig: blocklist.BloomConfig{
			ExpectedItems:     10_000_000,
			FalsePositiveRate: 0.001,
		},
		RebuildBloomOnStart: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening blocklist: %w", err)
	}
	return engine, nil
}
