// ABOUTME: CSV feed of actively malicious URLs in the URLhaus export format
// ABOUTME: Parses id,dateadded,url,url_status,last_online,threat,tags rows into URL entries

package feeds

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/hikmaai-io/hikmaai-sentinel/internal/blocklist"
)

// URLFeedDefaultURL is the default export endpoint.
const URLFeedDefaultURL = "https://urlhaus.abuse.ch/downloads/csv/"

// URLFeed downloads and parses a CSV export of malicious URLs.
type URLFeed struct {
	name       string
	url        string
	downloader *Downloader
}

// NewURLFeed creates a new URL feed parser.
func NewURLFeed() *URLFeed {
	return &URLFeed{
		name:       "urlhaus",
		url:        URLFeedDefaultURL,
		downloader: NewDownloader(nil),
	}
}

// Name returns the name of the feed.
func (f *URLFeed) Name() string {
	return f.name
}

// SetURL overrides the default URL (useful for testing).
func (f *URLFeed) SetURL(url string) {
	f.url = url
}

// Fetch downloads and parses the feed.
func (f *URLFeed) Fetch(ctx context.Context) ([]*blocklist.Entry, error) {
	data, err := f.downloader.Download(ctx, f.url)
	if err != nil {
		return nil, fmt.Errorf("downloading %s feed: %w", f.name, err)
	}

	return f.ParseData(ctx, data)
}

// ParseData parses the raw CSV data (handles ZIP/GZIP compression).
// Format: id,dateadded,url,url_status,last_online,threat,tags,urlhaus_link,reporter
func (f *URLFeed) ParseData(ctx context.Context, data []byte) ([]*blocklist.Entry, error) {
	content, err := decompressIfNeeded(data)
	if err != nil {
		return nil, fmt.Errorf("decompressing data: %w", err)
	}

	var entries []*blocklist.Entry

	reader := csv.NewReader(bytes.NewReader(content))
	reader.Comment = '#'
	reader.FieldsPerRecord = -1 // Allow variable fields.

	now := time.Now().UTC()

	for {
		select {
		case <-ctx.Done():
			return entries, ctx.Err()
		default:
		}

		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue // Skip malformed lines.
		}

		// Need at least: id, dateadded, url, url_status.
		if len(record) < 4 {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(record[0]), "id") {
			continue // Header row.
		}

		rawURL := strings.TrimSpace(record[2])
		status := strings.ToLower(strings.TrimSpace(record[3]))

		// Offline URLs stay out of the live blocklist.
		if status != "online" {
			continue
		}

		u, err := url.Parse(rawURL)
		if err != nil || u.Hostname() == "" || (u.Scheme != "http" && u.Scheme != "https") {
			continue
		}
		u.Scheme = strings.ToLower(u.Scheme)
		u.Host = strings.ToLower(u.Host)
		u.Fragment = ""

		category := "malware"
		if len(record) > 5 && strings.TrimSpace(record[5]) != "" {
			category = strings.ToLower(strings.TrimSpace(record[5]))
		}

		entries = append(entries, &blocklist.Entry{
			Indicator: u.String(),
			Kind:      blocklist.KindURL,
			Category:  category,
			Source:    f.name,
			AddedAt:   now,
		})
	}

	return entries, nil
}
