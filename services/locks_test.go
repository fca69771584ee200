package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLockTableAcquireRelease(t *testing.T) {
	locks := NewLockTable(time.Minute)

	assert.True(t, locks.Acquire("123456:conn-1"))
	assert.False(t, locks.Acquire("123456:conn-1"), "held lock must not be re-acquirable")
	assert.True(t, locks.Acquire("123456:conn-2"), "different key is independent")

	locks.Release("123456:conn-1")
	assert.True(t, locks.Acquire("123456:conn-1"))
}

func TestLockTableExpiredLockIsStolen(t *testing.T) {
	locks := NewLockTable(20 * time.Millisecond)

	assert.True(t, locks.Acquire("key"))
	assert.False(t, locks.Acquire("key"))

	time.Sleep(30 * time.Millisecond)
	assert.True(t, locks.Acquire("key"), "expired lock acquisition must succeed")
}

func TestLockTableReleaseByPrefix(t *testing.T) {
	locks := NewLockTable(time.Minute)
	locks.Acquire("123456:conn-1")
	locks.Acquire("123456:conn-2")
	locks.Acquire("999999:conn-1")

	locks.ReleaseByPrefix("123456:")
	assert.Equal(t, 1, locks.Len())
	assert.True(t, locks.Acquire("123456:conn-1"))
	assert.False(t, locks.Acquire("999999:conn-1"))
}

func TestLockTableSweepExpired(t *testing.T) {
	locks := NewLockTable(20 * time.Millisecond)
	locks.Acquire("a")
	locks.Acquire("b")

	assert.Equal(t, 0, locks.SweepExpired())

	time.Sleep(30 * time.Millisecond)
	locks.Acquire("c")
	assert.Equal(t, 2, locks.SweepExpired())
	assert.Equal(t, 1, locks.Len())
}
