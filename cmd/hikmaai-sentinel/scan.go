// ABOUTME: Scan command for checking URLs through the daemon or the local blocklist
// ABOUTME: Supports NATS request/reply mode and direct local lookups

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/hikmaai-io/hikmaai-sentinel/internal/blocklist"
	"github.com/hikmaai-io/hikmaai-sentinel/internal/config"
	"github.com/hikmaai-io/hikmaai-sentinel/internal/queue"
	"github.com/hikmaai-io/hikmaai-sentinel/internal/store"
	"github.com/hikmaai-io/hikmaai-sentinel/internal/types"
)

func newScanCmd() *cobra.Command {
	var (
		chatID     string
		messageID  string
		natsURL    string
		direct     bool
		outputJSON bool
		dataDir    string
		timeout    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "scan <url>",
		Short: "Scan a URL for a verdict",
		Long: `Scan a URL through the daemon via NATS, or look it up in the local
blocklist directly.

DAEMON MODE (default):
  Sends a scan request to a running daemon and waits for the verdict.
  The full provider chain runs: blocklist, reputation services, and
  verdict aggregation.

DIRECT MODE (--direct):
  Checks the URL against the local blocklist store only. No daemon and
  no network calls are needed.

Examples:
  hikmaai-sentinel scan https://example.com/login --chat-id c1 --message-id m1
  hikmaai-sentinel scan https://example.com/login --direct
  hikmaai-sentinel scan https://example.com/login --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rawURL := args[0]
			if direct {
				return scanDirect(cmd.Context(), rawURL, dataDir, outputJSON)
			}
			return scanViaNATS(cmd.Context(), rawURL, chatID, messageID, natsURL, timeout, outputJSON)
		},
	}

	cmd.Flags().StringVar(&chatID, "chat-id", "cli", "chat identifier for the scan record")
	cmd.Flags().StringVar(&messageID, "message-id", "", "message identifier (defaults to a timestamp)")
	cmd.Flags().StringVar(&natsURL, "nats-url", "nats://localhost:4222", "NATS server URL")
	cmd.Flags().BoolVar(&direct, "direct", false, "check the local blocklist only, without a daemon")
	cmd.Flags().BoolVarP(&outputJSON, "json", "j", false, "output results as JSON")
	cmd.Flags().StringVar(&dataDir, "data-dir", config.DefaultDataDir(), "data directory for the local blocklist")
	cmd.Flags().DurationVar(&timeout, "timeout", 15*time.Second, "request timeout")

	return cmd
}

func scanViaNATS(ctx context.Context, rawURL, chatID, messageID, natsURL string, timeout time.Duration, outputJSON bool) error {
	if messageID == "" {
		messageID = fmt.Sprintf("cli-%d", time.Now().UnixNano())
	}

	natsCfg := queue.DefaultNATSConfig()
	natsCfg.URL = natsURL
	natsCfg.Timeout = timeout

	client, err := queue.NewClient(natsCfg, nil, nil)
	if err != nil {
		return fmt.Errorf("creating NATS client: %w", err)
	}
	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("is the daemon running? %w", err)
	}
	defer client.Close()

	resp, err := client.Request(ctx, queue.ScanRequest{
		URL:       rawURL,
		ChatID:    chatID,
		MessageID: messageID,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("scan request failed: %w", err)
	}

	if outputJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	fmt.Printf("URL:     %s\n", rawURL)
	fmt.Printf("Verdict: %s (score %.2f)\n", resp.Verdict, resp.Score)
	fmt.Printf("Status:  %s\n", resp.Status)
	if len(resp.Contributors) > 0 {
		fmt.Printf("Signals: %v\n", resp.Contributors)
	}
	for _, p := range resp.Providers {
		if p.ErrorKind != "" {
			fmt.Printf("  %-12s error=%s (%.1fms)\n", p.Provider, p.ErrorKind, p.LatencyMs)
		} else {
			fmt.Printf("  %-12s %s (%.1fms)\n", p.Provider, p.Severity, p.LatencyMs)
		}
	}
	if resp.Error != "" {
		fmt.Printf("Error:   %s\n", resp.Error)
	}
	return nil
}

func scanDirect(ctx context.Context, rawURL, dataDir string, outputJSON bool) error {
	engine, err := blocklist.NewEngine(blocklist.EngineConfig{
		StoreConfig: store.Config{Path: filepath.Join(dataDir, "blocklist")},
		BloomConfig: blocklist.BloomConfig{
			ExpectedItems:     10_000_000,
			FalsePositiveRate: 0.001,
		},
		RebuildBloomOnStart: true,
	})
	if err != nil {
		return fmt.Errorf("opening blocklist: %w", err)
	}
	defer engine.Close()

	match, err := engine.Lookup(ctx, rawURL)
	if err != nil {
		return fmt.Errorf("lookup failed: %w", err)
	}

	if outputJSON {
		out := map[string]any{
			"url":      rawURL,
			"url_hash": types.HashIdentifier(types.NamespaceURL, rawURL),
			"matched":  match.Matched,
		}
		if match.Matched {
			out["entry"] = match.Entry
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	fmt.Printf("URL:     %s\n", rawURL)
	if match.Matched {
		fmt.Printf("Listed:  yes\n")
		fmt.Printf("Match:   %s (%s)\n", match.Entry.Indicator, match.Entry.Kind)
		fmt.Printf("Category: %s\n", match.Entry.Category)
		fmt.Printf("Source:  %s\n", match.Entry.Source)
	} else {
		fmt.Printf("Listed:  no (local blocklist only; run the daemon for a full verdict)\n")
	}
	return nil
}
