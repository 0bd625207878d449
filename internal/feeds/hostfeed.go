// ABOUTME: Plain-text feed of malicious hosts, one hostname per line
// ABOUTME: Comments and invalid hostnames are skipped

package feeds

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hikmaai-io/hikmaai-sentinel/internal/blocklist"
)

// HostFeed downloads and parses a hostname blocklist.
type HostFeed struct {
	name       string
	url        string
	category   string
	downloader *Downloader
}

// NewHostFeed creates a host feed parser. The category tags every
// entry the feed produces (e.g. "phishing").
func NewHostFeed(name, feedURL, category string) *HostFeed {
	return &HostFeed{
		name:       name,
		url:        feedURL,
		category:   category,
		downloader: NewDownloader(nil),
	}
}

// Name returns the name of the feed.
func (f *HostFeed) Name() string {
	return f.name
}

// SetURL overrides the configured URL (useful for testing).
func (f *HostFeed) SetURL(url string) {
	f.url = url
}

// Fetch downloads and parses the host list.
func (f *HostFeed) Fetch(ctx context.Context) ([]*blocklist.Entry, error) {
	data, err := f.downloader.Download(ctx, f.url)
	if err != nil {
		return nil, fmt.Errorf("downloading %s feed: %w", f.name, err)
	}

	return f.ParseData(ctx, data)
}

// ParseData parses the raw host list (handles ZIP/GZIP compression).
func (f *HostFeed) ParseData(ctx context.Context, data []byte) ([]*blocklist.Entry, error) {
	content, err := decompressIfNeeded(data)
	if err != nil {
		return nil, fmt.Errorf("decompressing data: %w", err)
	}

	var entries []*blocklist.Entry

	scanner := bufio.NewScanner(bytes.NewReader(content))
	now := time.Now().UTC()

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return entries, ctx.Err()
		default:
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		host := strings.ToLower(line)
		if !isValidHostname(host) {
			continue
		}

		entries = append(entries, &blocklist.Entry{
			Indicator: host,
			Kind:      blocklist.KindHost,
			Category:  f.category,
			Source:    f.name,
			AddedAt:   now,
		})
	}

	if err := scanner.Err(); err != nil {
		return entries, fmt.Errorf("scanning data: %w", err)
	}

	return entries, nil
}

// isValidHostname accepts dotted DNS names; single labels and anything
// with whitespace or a scheme are rejected.
func isValidHostname(host string) bool {
	if len(host) == 0 || len(host) > 253 {
		return false
	}
	if strings.ContainsAny(host, " \t/:") {
		return false
	}
	if !strings.Contains(host, ".") {
		return false
	}
	for _, label := range strings.Split(host, ".") {
		if label == "" || len(label) > 63 {
			return false
		}
		for _, c := range label {
			if c != '-' && c != '_' && (c < 'a' || c > 'z') && (c < '0' || c > '9') {
				return false
			}
		}
	}
	return true
}
