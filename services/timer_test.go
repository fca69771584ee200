package services

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingEmitter captures broadcasts for assertions.
type recordingEmitter struct {
	mu     sync.Mutex
	events []string
}

func (e *recordingEmitter) ToRoom(pin, event string, data interface{}) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, event)
}

func (e *recordingEmitter) ToConnection(connectionID, event string, data interface{}) {}

func (e *recordingEmitter) has(event string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, got := range e.events {
		if got == event {
			return true
		}
	}
	return false
}

func TestTimerLifecycle(t *testing.T) {
	emitter := &recordingEmitter{}
	timers := NewGameTimerService(emitter)
	defer timers.StopAll()

	expired := make(chan struct{})
	timers.StartTimer("123456", 1, func() { close(expired) })

	assert.True(t, timers.IsTimerActive("123456"))
	assert.False(t, timers.IsTimeExpired("123456"))
	assert.True(t, emitter.has("timer_started"))
	assert.True(t, emitter.has("timer_tick"))

	elapsed, ok := timers.GetElapsedTime("123456")
	require.True(t, ok)
	assert.GreaterOrEqual(t, elapsed, 0)
	assert.LessOrEqual(t, elapsed, 1000)

	select {
	case <-expired:
	case <-time.After(3 * time.Second):
		t.Fatal("timer did not expire")
	}
	assert.False(t, timers.IsTimerActive("123456"))
	assert.True(t, timers.IsTimeExpired("123456"), "missing timer counts as expired")
}

func TestTimerStopCancelsExpiry(t *testing.T) {
	timers := NewGameTimerService(nil)

	fired := make(chan struct{}, 1)
	timers.StartTimer("123456", 1, func() { fired <- struct{}{} })
	timers.StopTimer("123456")

	select {
	case <-fired:
		t.Fatal("stopped timer must not fire")
	case <-time.After(1500 * time.Millisecond):
	}
	assert.False(t, timers.IsTimerActive("123456"))
}

func TestTimerRestartReplacesExisting(t *testing.T) {
	timers := NewGameTimerService(nil)
	defer timers.StopAll()

	firstFired := make(chan struct{}, 1)
	timers.StartTimer("123456", 1, func() { firstFired <- struct{}{} })
	timers.StartTimer("123456", 60, nil)

	select {
	case <-firstFired:
		t.Fatal("replaced timer must not fire")
	case <-time.After(1500 * time.Millisecond):
	}

	remaining, ok := timers.GetRemainingTime("123456")
	require.True(t, ok)
	assert.Greater(t, remaining, 55000)
}

func TestTimerElapsedClampsToTotal(t *testing.T) {
	timers := NewGameTimerService(nil)
	defer timers.StopAll()

	timers.StartTimer("123456", 60, nil)
	elapsed, ok := timers.GetElapsedTime("123456")
	require.True(t, ok)
	assert.LessOrEqual(t, elapsed, 60000)

	_, ok = timers.GetElapsedTime("999999")
	assert.False(t, ok, "unknown pin has no elapsed time")
}

func TestTimerSyncPayload(t *testing.T) {
	timers := NewGameTimerService(nil)
	defer timers.StopAll()

	payload := timers.GetTimerSync("123456")
	assert.Equal(t, false, payload["active"])

	timers.StartTimer("123456", 30, nil)
	payload = timers.GetTimerSync("123456")
	assert.Equal(t, true, payload["active"])
	assert.Equal(t, 30, payload["duration"])
	assert.NotZero(t, payload["server_time"])
	assert.NotZero(t, payload["end_time"])
}
