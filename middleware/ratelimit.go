// middleware/ratelimit.go
package middleware

import (
	"sync"
	"time"
)

// eventPolicy is a fixed-window limit for one event name.
type eventPolicy struct {
	limit  int
	window time.Duration
}

// Per-event limits. Anything unlisted falls back to defaultPolicy.
var eventPolicies = map[string]eventPolicy{
	"create_room":         {limit: 5, window: time.Minute},
	"join_room":           {limit: 3, window: time.Minute},
	"join_spectator":      {limit: 3, window: time.Minute},
	"submit_answer":       {limit: 5, window: 10 * time.Second},
	"start_game":          {limit: 3, window: time.Minute},
	"start_answering":     {limit: 10, window: time.Minute},
	"end_answering":       {limit: 10, window: time.Minute},
	"show_leaderboard":    {limit: 10, window: time.Minute},
	"next_question":       {limit: 10, window: time.Minute},
	"pause_game":          {limit: 10, window: time.Minute},
	"resume_game":         {limit: 10, window: time.Minute},
	"reconnect_host":      {limit: 5, window: time.Minute},
	"reconnect_player":    {limit: 5, window: time.Minute},
	"reconnect_spectator": {limit: 5, window: time.Minute},
}

var defaultPolicy = eventPolicy{limit: 30, window: time.Minute}

// window tracks one (connection, event) fixed window.
type window struct {
	count   int
	resetAt time.Time
}

// EventRateLimiter enforces per-connection, per-event fixed windows on the
// WebSocket dispatch path. Windows for dead connections are dropped on
// disconnect and by a periodic sweep.
type EventRateLimiter struct {
	mu      sync.Mutex
	windows map[string]map[string]*window
	stop    chan struct{}
	once    sync.Once
}

// NewEventRateLimiter builds a limiter and starts its sweep goroutine.
func NewEventRateLimiter() *EventRateLimiter {
	rl := &EventRateLimiter{
		windows: make(map[string]map[string]*window),
		stop:    make(chan struct{}),
	}
	go rl.sweepLoop()
	return rl
}

// Allow reports whether the event may proceed for the connection. When the
// window is exhausted it returns false with the whole seconds until reset,
// rounded up, never less than 1.
func (rl *EventRateLimiter) Allow(connectionID, event string) (bool, int) {
	policy, ok := eventPolicies[event]
	if !ok {
		policy = defaultPolicy
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	byEvent, ok := rl.windows[connectionID]
	if !ok {
		byEvent = make(map[string]*window)
		rl.windows[connectionID] = byEvent
	}

	w, ok := byEvent[event]
	if !ok || !now.Before(w.resetAt) {
		byEvent[event] = &window{count: 1, resetAt: now.Add(policy.window)}
		return true, 0
	}

	if w.count >= policy.limit {
		retryAfter := int((time.Until(w.resetAt) + time.Second - 1) / time.Second)
		if retryAfter < 1 {
			retryAfter = 1
		}
		return false, retryAfter
	}
	w.count++
	return true, 0
}

// RemoveConnection drops every window for the connection.
func (rl *EventRateLimiter) RemoveConnection(connectionID string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.windows, connectionID)
}

// Close stops the sweep goroutine.
func (rl *EventRateLimiter) Close() {
	rl.once.Do(func() { close(rl.stop) })
}

func (rl *EventRateLimiter) sweepLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.sweep()
		case <-rl.stop:
			return
		}
	}
}

// sweep removes windows that have fully reset, and connections with no
// windows left.
func (rl *EventRateLimiter) sweep() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	for conn, byEvent := range rl.windows {
		for event, w := range byEvent {
			if !now.Before(w.resetAt) {
				delete(byEvent, event)
			}
		}
		if len(byEvent) == 0 {
			delete(rl.windows, conn)
		}
	}
}
