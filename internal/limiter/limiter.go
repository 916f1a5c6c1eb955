// Package limiter throttles callers that keep presenting bad confirmation tokens.
package limiter

import (
	"context"
	"crypto/sha256"
	"time"
)

// Limiter controls token attempts and temporary lockouts per (scope, client IP).
type Limiter interface {
	// Allow reports whether the caller may try a token now and an optional retry-after.
	Allow(ctx context.Context, scope string, ipHash []byte) (bool, time.Duration, error)
	// Success resets counters after a token resolved.
	Success(ctx context.Context, scope string, ipHash []byte) error
	// Failure records a bad token; may place a temporary block.
	Failure(ctx context.Context, scope string, ipHash []byte) (bool, time.Duration, error)
}

// HashIP returns a stable hash for an IP string to avoid storing raw addresses.
func HashIP(ip string) []byte {
	h := sha256.Sum256([]byte(ip))
	return h[:]
}
