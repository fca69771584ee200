// services/locks.go - Keyed in-process guards with TTL expiry
package services

import (
	"strings"
	"sync"
	"time"
)

// DefaultLockTTL is how long a held lock stays valid before a new acquirer
// may steal it. Self-healing: a crashed holder never wedges the key.
const DefaultLockTTL = 10 * time.Second

// LockTable is a map of short-lived per-key guards. Used for pending answer
// submissions (pin:connectionId), pending archives (pin) and join locks
// (pin:nickname).
type LockTable struct {
	mu    sync.Mutex
	locks map[string]time.Time
	ttl   time.Duration
}

// NewLockTable builds a lock table with the given TTL (DefaultLockTTL when
// zero).
func NewLockTable(ttl time.Duration) *LockTable {
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	return &LockTable{
		locks: make(map[string]time.Time),
		ttl:   ttl,
	}
}

// Acquire takes the lock for key. Acquiring an expired lock succeeds.
func (t *LockTable) Acquire(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	if acquiredAt, held := t.locks[key]; held && now.Sub(acquiredAt) < t.ttl {
		return false
	}
	t.locks[key] = now
	return true
}

// Release frees the lock for key. Idempotent.
func (t *LockTable) Release(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.locks, key)
}

// ReleaseByPrefix frees every lock whose key starts with prefix. Used to
// clear a room's pending-answer locks when a new answering phase opens.
func (t *LockTable) ReleaseByPrefix(prefix string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for key := range t.locks {
		if strings.HasPrefix(key, prefix) {
			delete(t.locks, key)
		}
	}
}

// SweepExpired drops locks past their TTL and returns how many were removed.
func (t *LockTable) SweepExpired() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	removed := 0
	for key, acquiredAt := range t.locks {
		if now.Sub(acquiredAt) >= t.ttl {
			delete(t.locks, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of currently tracked locks.
func (t *LockTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.locks)
}
