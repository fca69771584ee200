// handlers/sessions.go - Archived game session HTTP API
package handlers

import (
	"github.com/gofiber/fiber/v2"

	"quizparty/middleware"
	"quizparty/models"
	"quizparty/services"
)

// SessionHandler serves the game archive over HTTP. The live game never
// reads these; they exist for host dashboards and post-game review.
type SessionHandler struct {
	sessions services.GameSessionRepository
}

// NewSessionHandler builds the archive surface.
func NewSessionHandler(sessions services.GameSessionRepository) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// GetMySessions returns the authenticated host's archived games, paginated.
func (h *SessionHandler) GetMySessions(c *fiber.Ctx) error {
	hostID, err := middleware.GetUserID(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"error": "User not authenticated"})
	}

	page := c.QueryInt("page", 1)
	limit := c.QueryInt("limit", 20)
	sessions, total, err := h.sessions.FindByHost(c.Context(), hostID, page, limit)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Failed to load sessions"})
	}
	return c.JSON(fiber.Map{
		"sessions": sessionSummaries(sessions),
		"total":    total,
		"page":     page,
		"limit":    limit,
	})
}

// GetQuizSessions returns the archive for one quiz.
func (h *SessionHandler) GetQuizSessions(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	limit := c.QueryInt("limit", 20)
	sessions, total, err := h.sessions.FindByQuiz(c.Context(), c.Params("quizId"), page, limit)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Failed to load sessions"})
	}
	return c.JSON(fiber.Map{
		"sessions": sessionSummaries(sessions),
		"total":    total,
		"page":     page,
		"limit":    limit,
	})
}

// GetRecentSessions returns the most recently ended games.
func (h *SessionHandler) GetRecentSessions(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 20)
	sessions, err := h.sessions.GetRecent(c.Context(), limit)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Failed to load sessions"})
	}
	return c.JSON(fiber.Map{
		"sessions": sessionSummaries(sessions),
	})
}

// DeleteQuizSessions removes every archived session for a quiz. Host only;
// ownership of the quiz is checked upstream by the authoring service.
func (h *SessionHandler) DeleteQuizSessions(c *fiber.Ctx) error {
	if _, err := middleware.GetUserID(c); err != nil {
		return c.Status(401).JSON(fiber.Map{"error": "User not authenticated"})
	}
	deleted, err := h.sessions.DeleteByQuiz(c.Context(), c.Params("quizId"))
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Failed to delete sessions"})
	}
	return c.JSON(fiber.Map{"deleted": deleted})
}

// DeleteMySessions removes the host's entire archive.
func (h *SessionHandler) DeleteMySessions(c *fiber.Ctx) error {
	hostID, err := middleware.GetUserID(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"error": "User not authenticated"})
	}
	deleted, err := h.sessions.DeleteByHost(c.Context(), hostID)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Failed to delete sessions"})
	}
	return c.JSON(fiber.Map{"deleted": deleted})
}

// sessionSummaries decodes the JSON columns into API shapes.
func sessionSummaries(sessions []models.GameSession) []fiber.Map {
	out := make([]fiber.Map, 0, len(sessions))
	for i := range sessions {
		s := &sessions[i]
		summary := fiber.Map{
			"id":               s.ID,
			"pin":              s.PIN,
			"quiz_id":          s.QuizID,
			"player_count":     s.PlayerCount,
			"started_at":       s.StartedAt,
			"ended_at":         s.EndedAt,
			"duration_seconds": s.DurationSeconds,
			"status":           s.Status,
		}
		if s.Status == models.SessionInterrupted {
			summary["interruption_reason"] = s.InterruptionReason
			summary["last_question_index"] = s.LastQuestionIndex
			summary["last_state"] = s.LastState
		}
		if results, err := s.GetPlayerResults(); err == nil {
			summary["results"] = results
		}
		out = append(out, summary)
	}
	return out
}
