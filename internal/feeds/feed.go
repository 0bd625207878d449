// ABOUTME: Feed interface and shared decompression helpers for blocklist sources
// ABOUTME: Feeds turn remote threat data into blocklist entries

package feeds

import (
	"archive/zip"
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"

	"github.com/hikmaai-io/hikmaai-sentinel/internal/blocklist"
)

// Feed fetches and parses one blocklist source.
type Feed interface {
	// Name returns the feed's stable identifier, stored as the entry
	// source.
	Name() string

	// Fetch downloads and parses the feed into blocklist entries.
	Fetch(ctx context.Context) ([]*blocklist.Entry, error)
}

// decompressed payloads are capped to keep archive bombs out.
const maxDecompressedSize = 200 * 1024 * 1024

// decompressIfNeeded detects and decompresses ZIP or GZIP data.
func decompressIfNeeded(data []byte) ([]byte, error) {
	if len(data) >= 4 && data[0] == 'P' && data[1] == 'K' {
		return decompressZIP(data)
	}

	if len(data) >= 2 && data[0] == 0x1f && data[1] == 0x8b {
		return decompressGZIP(data)
	}

	return data, nil
}

// decompressZIP extracts the first file from a ZIP archive.
func decompressZIP(data []byte) ([]byte, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("opening zip: %w", err)
	}

	if len(reader.File) == 0 {
		return nil, fmt.Errorf("zip archive is empty")
	}

	f := reader.File[0]
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("opening zip file %s: %w", f.Name, err)
	}
	defer rc.Close()

	content, err := io.ReadAll(io.LimitReader(rc, maxDecompressedSize))
	if err != nil {
		return nil, fmt.Errorf("reading zip file %s: %w", f.Name, err)
	}

	return content, nil
}

// decompressGZIP decompresses GZIP data.
func decompressGZIP(data []byte) ([]byte, error) {
	reader, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("opening gzip: %w", err)
	}
	defer reader.Close()

	content, err := io.ReadAll(io.LimitReader(reader, maxDecompressedSize))
	if err != nil {
		return nil, fmt.Errorf("reading gzip: %w", err)
	}

	return content, nil
}
