// ABOUTME: Tests for namespace-separated identifier hashing
// ABOUTME: Validates determinism, namespace separation, and collision behavior

package types

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"testing"
)

func TestHashIdentifier_Deterministic(t *testing.T) {
	t.Parallel()

	inputs := []string{"", "c1", "chat-12345", "üñîçødé", strings.Repeat("x", 4096)}
	for _, in := range inputs {
		a := HashIdentifier(NamespaceChat, in)
		b := HashIdentifier(NamespaceChat, in)
		if a != b {
			t.Errorf("HashIdentifier(chat, %q) not deterministic: %s != %s", in, a, b)
		}
	}
}

func TestHashIdentifier_NamespaceSeparation(t *testing.T) {
	t.Parallel()

	inputs := []string{"", "c1", "m1", "shared-value"}
	for _, in := range inputs {
		chat := HashIdentifier(NamespaceChat, in)
		msg := HashIdentifier(NamespaceMessage, in)
		if chat == msg {
			t.Errorf("chat and message digests collide for input %q", in)
		}
	}
}

func TestHashIdentifier_OutputFormat(t *testing.T) {
	t.Parallel()

	digest := HashIdentifier(NamespaceChat, "c1")
	if len(digest) != DigestLength {
		t.Errorf("digest length = %d, want %d", len(digest), DigestLength)
	}
	if !IsDigest(digest) {
		t.Errorf("digest %q is not lowercase hex", digest)
	}
}

func TestHashIdentifier_EmptyInput(t *testing.T) {
	t.Parallel()

	// Empty input must still produce a valid digest.
	digest := HashIdentifier(NamespaceMessage, "")
	if !IsDigest(digest) {
		t.Errorf("empty input digest %q is invalid", digest)
	}
}

func TestHashIdentifier_NoCollisionsInRandomCorpus(t *testing.T) {
	t.Parallel()

	const corpus = 10000

	seen := make(map[string]string, corpus)
	buf := make([]byte, 24)
	for i := 0; i < corpus; i++ {
		if _, err := rand.Read(buf); err != nil {
			t.Fatalf("rand.Read() error = %v", err)
		}
		in := hex.EncodeToString(buf)
		digest := HashIdentifier(NamespaceChat, in)
		if prev, ok := seen[digest]; ok && prev != in {
			t.Fatalf("collision: inputs %q and %q both hash to %s", prev, in, digest)
		}
		seen[digest] = in
	}
}

func TestNewHashedKey(t *testing.T) {
	t.Parallel()

	key := NewHashedKey("c1", "m1")

	if key.Chat != HashIdentifier(NamespaceChat, "c1") {
		t.Errorf("Chat = %s, want hash(chat, c1)", key.Chat)
	}
	if key.Message != HashIdentifier(NamespaceMessage, "m1") {
		t.Errorf("Message = %s, want hash(message, m1)", key.Message)
	}
	if err := key.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestHashedKey_Validate_RejectsRawValues(t *testing.T) {
	t.Parallel()

	// A raw identifier must never pass as a hashed key.
	raw := HashedKey{Chat: "c1", Message: "m1"}
	if err := raw.Validate(); err == nil {
		t.Error("Validate() accepted raw identifiers")
	}

	half := HashedKey{Chat: HashIdentifier(NamespaceChat, "c1"), Message: "m1"}
	if err := half.Validate(); err == nil {
		t.Error("Validate() accepted a raw message id")
	}
}

func TestIsDigest(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"valid digest", HashIdentifier(NamespaceChat, "x"), true},
		{"empty", "", false},
		{"too short", "abc123", false},
		{"uppercase hex", strings.ToUpper(HashIdentifier(NamespaceChat, "x")), false},
		{"non-hex char", strings.Repeat("g", DigestLength), false},
	}

	for _, tt := range tests {
		if got := IsDigest(tt.input); got != tt.want {
			t.Errorf("%s: IsDigest() = %v, want %v", tt.name, got, tt.want)
		}
	}
}
