// ABOUTME: ScanRequest type for inbound URL scan requests from chat messages
// ABOUTME: Transient carrier of raw identifiers; validated then hashed, never persisted

package types

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// ScanRequest is an inbound request to scan a URL observed in a chat
// message. Instances are transient: raw identifiers are hashed at the
// orchestrator boundary and the request is never stored verbatim.
type ScanRequest struct {
	// URL is the observed URL to scan.
	URL string `json:"url"`

	// ChatID is the raw chat identifier from the platform adapter.
	ChatID string `json:"chat_id"`

	// MessageID is the raw message identifier.
	MessageID string `json:"message_id"`

	// SenderIDHash is the sender identifier, already hashed by the
	// platform adapter.
	SenderIDHash string `json:"sender_id_hash,omitempty"`

	// RequestedAt is when the message was observed.
	RequestedAt time.Time `json:"requested_at"`
}

// Validate checks that the request is structurally usable. A request
// that fails validation aborts the whole scan; it never degrades into
// a partial record write.
func (r ScanRequest) Validate() error {
	if r.URL == "" {
		return fmt.Errorf("url is required")
	}
	u, err := url.Parse(r.URL)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported url scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("url has no host")
	}
	if r.ChatID == "" {
		return fmt.Errorf("chat id is required")
	}
	if r.MessageID == "" {
		return fmt.Errorf("message id is required")
	}
	if r.SenderIDHash != "" && !IsDigest(r.SenderIDHash) {
		return fmt.Errorf("sender id hash is not a valid digest")
	}
	return nil
}

// Hostname returns the host portion of the URL without the port.
// Validate must have succeeded first.
func (r ScanRequest) Hostname() string {
	u, err := url.Parse(r.URL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// NormalizeURL canonicalizes a URL for storage and blocklist matching:
// scheme and host are lowercased and any fragment is dropped.
// Unparseable input passes through unchanged.
func NormalizeURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	return u.String()
}
