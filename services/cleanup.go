// services/cleanup.go - Background room lifecycle sweep
package services

import (
	"context"
	"log"
	"sync"
	"time"

	"quizparty/config"
	"quizparty/models"
)

// RoomCleanupService runs a periodic sweep over every live room: it drops
// players whose disconnect grace expired, warns about and eventually times
// out absent hosts, closes orphaned / empty / idle rooms, and prunes stale
// token index entries and expired locks. Sweeps never overlap.
type RoomCleanupService struct {
	registry *RoomRegistry
	gameUC   *GameUseCases
	roomUC   *RoomUseCases
	timers   *GameTimerService
	emitter  Emitter
	cfg      *config.Config

	mu         sync.Mutex
	running    bool
	stop       chan struct{}
	emptySince map[string]time.Time
}

// NewRoomCleanupService wires the sweep against the live services.
func NewRoomCleanupService(registry *RoomRegistry, gameUC *GameUseCases, roomUC *RoomUseCases, timers *GameTimerService, emitter Emitter, cfg *config.Config) *RoomCleanupService {
	if emitter == nil {
		emitter = NopEmitter{}
	}
	return &RoomCleanupService{
		registry:   registry,
		gameUC:     gameUC,
		roomUC:     roomUC,
		timers:     timers,
		emitter:    emitter,
		cfg:        cfg,
		emptySince: make(map[string]time.Time),
	}
}

// Start launches the sweep loop. Safe to call once.
func (s *RoomCleanupService) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stop = make(chan struct{})
	stop := s.stop
	s.mu.Unlock()

	log.Printf("🧹 Room cleanup started (interval %s)", s.cfg.CleanupInterval)
	go func() {
		ticker := time.NewTicker(s.cfg.CleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.Sweep()
			case <-stop:
				return
			}
		}
	}()
}

// Stop halts the sweep loop. Safe to call more than once.
func (s *RoomCleanupService) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	close(s.stop)
}

// Sweep runs one pass over every room. A pass still in flight makes this a
// no-op rather than stacking goroutines behind a slow archive.
func (s *RoomCleanupService) Sweep() {
	if !s.mu.TryLock() {
		return
	}
	defer s.mu.Unlock()

	ctx := context.Background()
	now := time.Now()

	for _, room := range s.registry.All() {
		pin := room.PIN

		s.removeStaleParticipants(room, now)

		// Orphan check runs before the host timeout: a room with no live
		// connections at all closes on the shorter grace period and gets
		// the orphan reason rather than the host one.
		if closed := s.checkOrphanRoom(ctx, room, now); closed {
			delete(s.emptySince, pin)
			continue
		}
		if closed := s.checkHostTimeout(ctx, room, now); closed {
			delete(s.emptySince, pin)
			continue
		}
		if closed := s.checkEmptyRoom(ctx, room, now); closed {
			delete(s.emptySince, pin)
			continue
		}
		if closed := s.checkIdleRoom(ctx, room, now); closed {
			delete(s.emptySince, pin)
		}
	}

	if n := s.registry.SweepExpiredTokens(); n > 0 {
		log.Printf("🧹 Pruned %d stale token index entries", n)
	}
	s.roomUC.JoinLocks().SweepExpired()
	s.gameUC.PendingAnswers().SweepExpired()
	s.gameUC.PendingArchives().SweepExpired()
}

// removeStaleParticipants drops players and spectators whose disconnect
// outlived the player grace period.
func (s *RoomCleanupService) removeStaleParticipants(room *models.Room, now time.Time) {
	for _, p := range room.RemoveStaleDisconnectedPlayers(s.cfg.PlayerGrace, now) {
		log.Printf("🧹 Removed stale player %s from room %s", p.Nickname, room.PIN)
		s.emitter.ToRoom(room.PIN, "player_removed", map[string]interface{}{
			"player_id": p.ID,
			"nickname":  p.Nickname,
			"reason":    "disconnect_timeout",
		})
	}
	for _, sp := range room.Spectators() {
		if sp.DisconnectedAt != nil && now.Sub(*sp.DisconnectedAt) > s.cfg.PlayerGrace {
			room.RemoveSpectator(sp.ConnectionID)
		}
	}
	s.registry.Save(room)
}

// checkHostTimeout warns the room while the host is absent and closes it
// once the host grace period runs out.
func (s *RoomCleanupService) checkHostTimeout(ctx context.Context, room *models.Room, now time.Time) bool {
	if room.HostConnected() {
		return false
	}
	gone := room.HostDisconnectedFor(now)
	if gone <= 0 {
		return false
	}
	if gone <= s.cfg.HostGrace {
		remaining := int((s.cfg.HostGrace - gone).Seconds())
		s.emitter.ToRoom(room.PIN, "host_disconnected_warning", map[string]interface{}{
			"remaining_seconds": remaining,
		})
		return false
	}

	log.Printf("⏰ Host timeout in room %s (%s absent)", room.PIN, gone.Round(time.Second))
	s.emitter.ToRoom(room.PIN, "host_timeout", map[string]interface{}{})
	s.closeRoom(ctx, room, models.ReasonHostTimeout)
	return true
}

// checkOrphanRoom closes a room whose host is gone and whose player slots
// hold no live connection. With nobody left to wait for, the shorter of the
// two grace periods applies.
func (s *RoomCleanupService) checkOrphanRoom(ctx context.Context, room *models.Room, now time.Time) bool {
	if room.HostConnected() || room.ConnectedPlayerCount() > 0 {
		return false
	}
	grace := s.cfg.HostGrace
	if s.cfg.PlayerGrace < grace {
		grace = s.cfg.PlayerGrace
	}
	if room.HostDisconnectedFor(now) <= grace {
		return false
	}
	log.Printf("🧹 Closing orphaned room %s", room.PIN)
	s.closeRoom(ctx, room, models.ReasonOrphanRoom)
	return true
}

// checkEmptyRoom closes a room that has held no participants at all for the
// empty-room timeout. Only lobby and finished rooms qualify: a room mid-game
// belongs to the orphan and host-timeout checks. The host alone does not keep
// a room out of this check; a live host connection does.
func (s *RoomCleanupService) checkEmptyRoom(ctx context.Context, room *models.Room, now time.Time) bool {
	if room.InActiveGame() || room.HostConnected() || room.PlayerCount() > 0 || room.SpectatorCount() > 0 {
		delete(s.emptySince, room.PIN)
		return false
	}
	since, ok := s.emptySince[room.PIN]
	if !ok {
		s.emptySince[room.PIN] = now
		return false
	}
	if now.Sub(since) <= s.cfg.EmptyRoomTimeout {
		return false
	}
	log.Printf("🧹 Closing empty room %s", room.PIN)
	s.closeRoom(ctx, room, models.ReasonEmptyRoom)
	return true
}

// checkIdleRoom enforces the absolute room lifetime: one hour idle, doubled
// for a room mid-game.
func (s *RoomCleanupService) checkIdleRoom(ctx context.Context, room *models.Room, now time.Time) bool {
	age := now.Sub(room.CreatedAt)
	if room.InActiveGame() {
		if age <= 2*s.cfg.IdleRoomTimeout {
			return false
		}
		log.Printf("⏰ Game timeout in room %s (age %s)", room.PIN, age.Round(time.Minute))
		s.closeRoom(ctx, room, models.ReasonGameTimeout)
		return true
	}
	if age <= s.cfg.IdleRoomTimeout {
		return false
	}
	log.Printf("⏰ Idle timeout for room %s (age %s)", room.PIN, age.Round(time.Minute))
	s.closeRoom(ctx, room, models.ReasonIdleTimeout)
	return true
}

// closeRoom archives an in-progress game, notifies the room and tears it
// down. Rooms that never started skip the archive inside
// SaveInterruptedGame.
func (s *RoomCleanupService) closeRoom(ctx context.Context, room *models.Room, reason string) {
	s.timers.StopTimer(room.PIN)
	s.emitter.ToRoom(room.PIN, "room_closed", map[string]interface{}{
		"reason": reason,
	})
	if _, err := s.gameUC.SaveInterruptedGame(ctx, SaveInterruptedInput{PIN: room.PIN, Reason: reason}); err != nil {
		log.Printf("⚠️ Failed to archive room %s (%s): %v", room.PIN, reason, err)
		s.registry.Delete(room.PIN)
	}
}
