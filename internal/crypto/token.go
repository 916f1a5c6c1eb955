// Package crypto implements generation and at-rest hashing of verification tokens.
package crypto

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// TokenBytes is the entropy of a minted token.
const TokenBytes = 32

// RandBytes returns n cryptographically secure random bytes.
func RandBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := rand.Read(b)
	return b, err
}

// NewToken returns a URL-safe plaintext token and its digest.
func NewToken() (plain, digest string, err error) {
	raw, err := RandBytes(TokenBytes)
	if err != nil {
		return "", "", err
	}
	plain = base64.RawURLEncoding.EncodeToString(raw)
	return plain, Digest(plain), nil
}

// Digest returns the hex BLAKE2b-256 of a plaintext token. Only digests are persisted.
func Digest(plain string) string {
	sum := blake2b.Sum256([]byte(plain))
	return hex.EncodeToString(sum[:])
}

// DigestEqual compares two digests in constant time.
func DigestEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
