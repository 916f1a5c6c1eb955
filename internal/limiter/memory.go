package limiter

import (
	"context"
	"sync"
	"time"
)

type memEntry struct {
	fails        int
	firstFailAt  time.Time
	blockedUntil time.Time
}

// Memory is an in-process limiter with the same window and lockout rules as PG.
// Used with the in-memory storage backend.
type Memory struct {
	mu       sync.Mutex
	entries  map[string]*memEntry
	window   time.Duration
	maxFails int
	blockFor time.Duration
	now      func() time.Time
}

// NewMemory constructs an in-process limiter.
func NewMemory(window time.Duration, maxFails int, blockFor time.Duration) *Memory {
	return &Memory{
		entries:  make(map[string]*memEntry),
		window:   window,
		maxFails: maxFails,
		blockFor: blockFor,
		now:      time.Now,
	}
}

func memKey(scope string, ipHash []byte) string { return scope + "\x00" + string(ipHash) }

// Allow reports whether a token attempt is currently allowed.
func (m *Memory) Allow(_ context.Context, scope string, ipHash []byte) (bool, time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[memKey(scope, ipHash)]
	if !ok {
		return true, 0, nil
	}
	if now := m.now(); e.blockedUntil.After(now) {
		return false, e.blockedUntil.Sub(now), nil
	}
	return true, 0, nil
}

// Success forgets the caller.
func (m *Memory) Success(_ context.Context, scope string, ipHash []byte) error {
	m.mu.Lock()
	delete(m.entries, memKey(scope, ipHash))
	m.mu.Unlock()
	return nil
}

// Failure records a bad token and blocks once maxFails is reached within the window.
func (m *Memory) Failure(_ context.Context, scope string, ipHash []byte) (bool, time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	k := memKey(scope, ipHash)
	e, ok := m.entries[k]
	if !ok || now.Sub(e.firstFailAt) > m.window {
		e = &memEntry{firstFailAt: now}
		m.entries[k] = e
	}
	e.fails++
	if e.fails >= m.maxFails {
		e.blockedUntil = now.Add(m.blockFor)
		return true, m.blockFor, nil
	}
	return false, 0, nil
}
