// ABOUTME: Conversation identifier and secret redaction for secure logging
// ABOUTME: Raw chat/message identifiers are hashed or masked before reaching any log line

package observability

import (
	"log/slog"
	"regexp"

	"github.com/hikmaai-io/hikmaai-sentinel/internal/types"
)

// RedactionPlaceholder is the replacement text for redacted values.
const RedactionPlaceholder = "[REDACTED]"

// sensitivePatterns matches secrets embedded in strings; values stop
// at whitespace or & so query parameters redact cleanly.
var sensitivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(password|passwd|pwd)=[^\s&]+`),
	regexp.MustCompile(`(?i)(token|auth_token|access_token)=[^\s&]+`),
	regexp.MustCompile(`(?i)(api[_-]?key|apikey)=[^\s&]+`),
	regexp.MustCompile(`(?i)(secret|client_secret)=[^\s&]+`),
	regexp.MustCompile(`(?i)Bearer\s+[^\s]+`),
}

var sensitiveReplacements = []string{
	"${1}=" + RedactionPlaceholder,
	"${1}=" + RedactionPlaceholder,
	"${1}=" + RedactionPlaceholder,
	"${1}=" + RedactionPlaceholder,
	"Bearer " + RedactionPlaceholder,
}

// RedactSensitive replaces secret-bearing substrings with [REDACTED].
// Provider call errors pass through here before logging since they can
// embed request URLs with credential query parameters.
func RedactSensitive(value string) string {
	result := value
	for i, pattern := range sensitivePatterns {
		result = pattern.ReplaceAllString(result, sensitiveReplacements[i])
	}
	return result
}

// IdentifierAttr builds a log attribute from a raw identifier by
// hashing it first. This is the only sanctioned way to put a chat or
// message identifier into a log line.
func IdentifierAttr(key string, ns types.Namespace, raw string) slog.Attr {
	return slog.String(key, TruncateDigest(types.HashIdentifier(ns, raw)))
}

// DigestAttr builds a log attribute from an already hashed identifier.
func DigestAttr(key, digest string) slog.Attr {
	return slog.String(key, TruncateDigest(digest))
}

// TruncateDigest shortens a digest for log readability.
func TruncateDigest(digest string) string {
	if len(digest) > 16 {
		return digest[:8] + "..." + digest[len(digest)-8:]
	}
	return digest
}
