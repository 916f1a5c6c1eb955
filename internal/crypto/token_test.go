package crypto

import (
	"bytes"
	"strings"
	"testing"
)

func TestRandBytes_LengthAndUniqueness(t *testing.T) {
	t.Parallel()

	const n = 64
	a, err := RandBytes(n)
	if err != nil {
		t.Fatalf("RandBytes: %v", err)
	}
	if len(a) != n {
		t.Fatalf("len=%d, want=%d", len(a), n)
	}
	b, err := RandBytes(n)
	if err != nil {
		t.Fatalf("RandBytes(2): %v", err)
	}
	if bytes.Equal(a, b) {
		t.Fatalf("two subsequent RandBytes(%d) are equal, looks non-random", n)
	}
}

func TestNewToken_DigestMatches(t *testing.T) {
	t.Parallel()

	plain, digest, err := NewToken()
	if err != nil {
		t.Fatalf("NewToken: %v", err)
	}
	if strings.ContainsAny(plain, "+/=") {
		t.Fatalf("token must be URL-safe, got %q", plain)
	}
	if Digest(plain) != digest {
		t.Fatalf("digest mismatch")
	}
	if len(digest) != 64 {
		t.Fatalf("digest len=%d, want 64 hex chars", len(digest))
	}

	other, _, err := NewToken()
	if err != nil {
		t.Fatalf("NewToken(2): %v", err)
	}
	if other == plain {
		t.Fatalf("tokens must differ")
	}
}

func TestDigest_ExactMatchOnly(t *testing.T) {
	t.Parallel()

	d := Digest("abcdef")
	if !DigestEqual(d, Digest("abcdef")) {
		t.Fatalf("same input must match")
	}
	if DigestEqual(d, Digest("abcde")) {
		t.Fatalf("prefix must not match")
	}
	if DigestEqual(d, Digest("ABCDEF")) {
		t.Fatalf("case variant must not match")
	}
}
