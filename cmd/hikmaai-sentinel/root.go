// ABOUTME: Root command for hikmaai-sentinel CLI
// ABOUTME: Sets up global flags and subcommands

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Global flags.
var (
	cfgFile   string
	logLevel  string
	logFormat string
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hikmaai-sentinel",
		Short: "HikmaSentinel - Resilient URL verdict service for chat platforms",
		Long: `HikmaSentinel scans URLs observed in chat messages against multiple
reputation providers and a local blocklist, aggregates the signals into
a single verdict, and records the outcome under hashed identifiers so
no raw conversation data is ever persisted.

Supports daemon mode with NATS messaging, direct CLI lookups, and
blocklist feed management.`,
	}

	// Global flags.
	cmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default: $HOME/.config/hikmaai-sentinel/config.yaml)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&logFormat, "log-format", "json", "log format (json, text)")

	// Add subcommands.
	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newDaemonCmd())
	cmd.AddCommand(newScanCmd())
	cmd.AddCommand(newFeedsCmd())
	cmd.AddCommand(newStatusCmd())

	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("hikmaai-sentinel version %s\n", version)
			fmt.Printf("  Git SHA:    %s\n", gitSHA)
			fmt.Printf("  Build Time: %s\n", buildTime)
		},
	}
}
