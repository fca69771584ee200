// services/timer.go - Server-authoritative question countdowns
package services

import (
	"log"
	"sync"
	"time"
)

// timerState tracks one live countdown.
type timerState struct {
	startTime time.Time
	endTime   time.Time
	totalMs   int
	expiry    *time.Timer
	tickStop  chan struct{}
}

// GameTimerService owns per-PIN countdowns entirely server-side. Clients
// receive timer_tick broadcasts every second and never hold timing
// authority; the elapsed time fed into answer scoring comes from here.
type GameTimerService struct {
	mu      sync.Mutex
	timers  map[string]*timerState
	emitter Emitter
}

// NewGameTimerService builds a timer service emitting through the given sink.
func NewGameTimerService(emitter Emitter) *GameTimerService {
	if emitter == nil {
		emitter = NopEmitter{}
	}
	return &GameTimerService{
		timers:  make(map[string]*timerState),
		emitter: emitter,
	}
}

// StartTimer cancels any existing timer for the pin, schedules onExpire at
// now+duration and starts a once-per-second tick broadcast. An initial
// timer_started and tick are emitted immediately.
func (s *GameTimerService) StartTimer(pin string, durationSeconds int, onExpire func()) {
	s.mu.Lock()

	if existing, ok := s.timers[pin]; ok {
		existing.stop()
		delete(s.timers, pin)
	}

	now := time.Now()
	duration := time.Duration(durationSeconds) * time.Second
	st := &timerState{
		startTime: now,
		endTime:   now.Add(duration),
		totalMs:   durationSeconds * 1000,
		tickStop:  make(chan struct{}),
	}
	st.expiry = time.AfterFunc(duration, func() {
		s.mu.Lock()
		if current, ok := s.timers[pin]; ok && current == st {
			current.stopTicks()
			delete(s.timers, pin)
		}
		s.mu.Unlock()

		log.Printf("⏰ Timer expired for room %s", pin)
		if onExpire != nil {
			onExpire()
		}
	})
	s.timers[pin] = st
	s.mu.Unlock()

	s.emitter.ToRoom(pin, "timer_started", map[string]interface{}{
		"duration":     durationSeconds,
		"remaining":    durationSeconds,
		"remaining_ms": st.totalMs,
		"server_time":  now.UnixMilli(),
	})
	s.emitTick(pin, st)

	go s.tickLoop(pin, st)
}

func (s *GameTimerService) tickLoop(pin string, st *timerState) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if !s.emitTick(pin, st) {
				return
			}
		case <-st.tickStop:
			return
		}
	}
}

// emitTick broadcasts the remaining time; returns false once remaining ≤ 0.
func (s *GameTimerService) emitTick(pin string, st *timerState) bool {
	remainingMs := int(time.Until(st.endTime).Milliseconds())
	if remainingMs < 0 {
		remainingMs = 0
	}
	s.emitter.ToRoom(pin, "timer_tick", map[string]interface{}{
		"remaining":    (remainingMs + 999) / 1000,
		"remaining_ms": remainingMs,
	})
	return remainingMs > 0
}

// StopTimer cancels the timer for the pin. Idempotent.
func (s *GameTimerService) StopTimer(pin string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st, ok := s.timers[pin]; ok {
		st.stop()
		delete(s.timers, pin)
	}
}

// StopAll cancels every live timer.
func (s *GameTimerService) StopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for pin, st := range s.timers {
		st.stop()
		delete(s.timers, pin)
	}
}

// GetElapsedTime returns milliseconds since the timer started, clamped to
// the configured total so late packets still earn the minimum score. The
// second return is false when no timer exists for the pin.
func (s *GameTimerService) GetElapsedTime(pin string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.timers[pin]
	if !ok {
		return 0, false
	}
	elapsed := int(time.Since(st.startTime).Milliseconds())
	if elapsed > st.totalMs {
		elapsed = st.totalMs
	}
	if elapsed < 0 {
		elapsed = 0
	}
	return elapsed, true
}

// GetRemainingTime returns remaining milliseconds, or false when no timer.
func (s *GameTimerService) GetRemainingTime(pin string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.timers[pin]
	if !ok {
		return 0, false
	}
	remaining := int(time.Until(st.endTime).Milliseconds())
	if remaining < 0 {
		remaining = 0
	}
	return remaining, true
}

// IsTimerActive reports whether a countdown is live for the pin.
func (s *GameTimerService) IsTimerActive(pin string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[pin]
	return ok
}

// IsTimeExpired reports whether the countdown has elapsed. A missing timer
// counts as expired.
func (s *GameTimerService) IsTimeExpired(pin string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.timers[pin]
	if !ok {
		return true
	}
	return !time.Now().Before(st.endTime)
}

// GetTimerSync returns the alignment payload for late joiners and
// reconnectors.
func (s *GameTimerService) GetTimerSync(pin string) map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	st, ok := s.timers[pin]
	if !ok {
		return map[string]interface{}{
			"active":      false,
			"server_time": now.UnixMilli(),
		}
	}

	remainingMs := int(st.endTime.Sub(now).Milliseconds())
	if remainingMs < 0 {
		remainingMs = 0
	}
	return map[string]interface{}{
		"active":       true,
		"server_time":  now.UnixMilli(),
		"start_time":   st.startTime.UnixMilli(),
		"end_time":     st.endTime.UnixMilli(),
		"remaining":    (remainingMs + 999) / 1000,
		"remaining_ms": remainingMs,
		"duration":     st.totalMs / 1000,
	}
}

func (st *timerState) stop() {
	st.expiry.Stop()
	st.stopTicks()
}

func (st *timerState) stopTicks() {
	select {
	case <-st.tickStop:
	default:
		close(st.tickStop)
	}
}
