// ABOUTME: Status command for checking daemon health
// ABOUTME: Queries the daemon's health endpoint and prints the component checks

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	var httpAddr string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon status",
		Long:  `Check if the hikmaai-sentinel daemon is running and show component health.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			addr := httpAddr
			if strings.HasPrefix(addr, ":") {
				addr = "localhost" + addr
			}
			if !strings.Contains(addr, "://") {
				addr = "http://" + addr
			}

			client := &http.Client{Timeout: 5 * time.Second}
			resp, err := client.Get(addr + "/api/v1/health")
			if err != nil {
				fmt.Println("hikmaai-sentinel daemon status:")
				fmt.Println("  Daemon:  not reachable")
				fmt.Printf("  Version: %s\n", version)
				return nil
			}
			defer resp.Body.Close()

			body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
			if err != nil {
				return fmt.Errorf("reading health response: %w", err)
			}

			var health struct {
				Status string         `json:"status"`
				Checks map[string]any `json:"checks"`
			}
			if err := json.Unmarshal(body, &health); err != nil {
				return fmt.Errorf("decoding health response: %w", err)
			}

			fmt.Println("hikmaai-sentinel daemon status:")
			fmt.Printf("  Daemon:  %s\n", health.Status)
			fmt.Printf("  Version: %s\n", version)
			for name, check := range health.Checks {
				out, _ := json.Marshal(check)
				fmt.Printf("  %-8s %s\n", name+":", out)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&httpAddr, "http-addr", ":8080", "daemon HTTP address")

	return cmd
}
