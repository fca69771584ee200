// handlers/debug.go - Operational inspection endpoints
package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"quizparty/services"
)

// DebugHandler exposes read-only views of the live room registry. Mounted
// only outside production.
type DebugHandler struct {
	registry *services.RoomRegistry
	hub      *Hub
	timers   *services.GameTimerService
}

// NewDebugHandler builds the debug surface.
func NewDebugHandler(registry *services.RoomRegistry, hub *Hub, timers *services.GameTimerService) *DebugHandler {
	return &DebugHandler{registry: registry, hub: hub, timers: timers}
}

// ListRooms returns a summary of every live room.
func (h *DebugHandler) ListRooms(c *fiber.Ctx) error {
	rooms := h.registry.All()
	out := make([]fiber.Map, 0, len(rooms))
	for _, room := range rooms {
		out = append(out, fiber.Map{
			"pin":             room.PIN,
			"state":           room.CurrentState(),
			"question_index":  room.QuestionIndex(),
			"player_count":    room.PlayerCount(),
			"connected":       room.ConnectedPlayerCount(),
			"spectator_count": room.SpectatorCount(),
			"host_connected":  room.HostConnected(),
			"in_active_game":  room.InActiveGame(),
			"timer_active":    h.timers.IsTimerActive(room.PIN),
			"created_at":      room.CreatedAt,
			"game_started_at": room.GameStartedAt,
		})
	}
	return c.JSON(fiber.Map{
		"room_count": len(rooms),
		"rooms":      out,
	})
}

// GetRoom returns one room's detail, players included.
func (h *DebugHandler) GetRoom(c *fiber.Ctx) error {
	room := h.registry.Get(c.Params("pin"))
	if room == nil {
		return c.Status(404).JSON(fiber.Map{"error": "Room not found"})
	}
	return c.JSON(fiber.Map{
		"pin":             room.PIN,
		"state":           room.CurrentState(),
		"question_index":  room.QuestionIndex(),
		"host_connected":  room.HostConnected(),
		"players":         playerSummaries(room),
		"spectator_count": room.SpectatorCount(),
		"banned":          room.BannedNicknames(),
		"timer":           h.timers.GetTimerSync(room.PIN),
		"answer_history":  room.AnswerHistory(),
	})
}

// Stats returns process-level counters for the health dashboard.
func (h *DebugHandler) Stats(c *fiber.Ctx) error {
	rooms := h.registry.All()
	players := 0
	active := 0
	for _, room := range rooms {
		players += room.PlayerCount()
		if room.InActiveGame() {
			active++
		}
	}
	return c.JSON(fiber.Map{
		"rooms":        len(rooms),
		"active_games": active,
		"players":      players,
		"connections":  h.hub.Count(),
		"server_time":  time.Now().UnixMilli(),
	})
}
