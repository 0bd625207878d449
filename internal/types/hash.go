// ABOUTME: Namespace-separated one-way hashing of chat and message identifiers
// ABOUTME: Produces deterministic SHA-256 hex digests for privacy-preserving storage keys

package types

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Namespace tags the digest space an identifier is hashed into.
// The same raw value hashed under two namespaces yields two
// unrelated digests.
type Namespace string

const (
	// NamespaceChat is the digest space for chat/group identifiers.
	NamespaceChat Namespace = "chat"
	// NamespaceMessage is the digest space for message identifiers.
	NamespaceMessage Namespace = "message"
	// NamespaceSender is the digest space for sender identifiers.
	NamespaceSender Namespace = "sender"
	// NamespaceURL is the digest space for observed URLs.
	NamespaceURL Namespace = "url"
)

// DigestLength is the length of a hex-encoded identifier digest.
const DigestLength = 64

// namespaceSeparator keeps the namespace tag from colliding with
// identifier content (0x1f never appears in platform identifiers).
const namespaceSeparator = "\x1f"

// HashIdentifier returns the hex-encoded SHA-256 digest of the raw
// identifier mixed with its namespace tag. It is deterministic, never
// fails, and accepts any string including the empty string. Raw
// identifiers must pass through here before any log line, storage
// write, or cache key is built from them.
func HashIdentifier(ns Namespace, raw string) string {
	sum := sha256.Sum256([]byte(string(ns) + namespaceSeparator + raw))
	return hex.EncodeToString(sum[:])
}

// HashedKey is the pair of digests identifying a scanned message.
type HashedKey struct {
	Chat    string `json:"chat"`
	Message string `json:"message"`
}

// NewHashedKey hashes raw chat and message identifiers into a key.
func NewHashedKey(rawChatID, rawMessageID string) HashedKey {
	return HashedKey{
		Chat:    HashIdentifier(NamespaceChat, rawChatID),
		Message: HashIdentifier(NamespaceMessage, rawMessageID),
	}
}

// Validate checks that both digests are well-formed. Store write
// paths reject keys that are not; this is what keeps raw identifiers
// out of the keyspace structurally.
func (k HashedKey) Validate() error {
	if !IsDigest(k.Chat) {
		return fmt.Errorf("hashed chat id is not a valid digest")
	}
	if !IsDigest(k.Message) {
		return fmt.Errorf("hashed message id is not a valid digest")
	}
	return nil
}

// IsDigest reports whether s is a 64-character lowercase hex digest.
func IsDigest(s string) bool {
	if len(s) != DigestLength {
		return false
	}
	for _, c := range s {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			return false
		}
	}
	return true
}
