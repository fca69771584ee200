// handlers/multiplayer.go - WebSocket event dispatch
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"

	"quizparty/config"
	"quizparty/middleware"
	"quizparty/models"
	"quizparty/services"
)

// incomingMessage is the raw inbound frame before payload decoding.
type incomingMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// GameHandler owns the WebSocket read loops and translates wire events into
// use-case calls and broadcasts.
type GameHandler struct {
	hub      *Hub
	rooms    *services.RoomUseCases
	games    *services.GameUseCases
	timers   *services.GameTimerService
	limiter  *middleware.EventRateLimiter
	registry *services.RoomRegistry
	cfg      *config.Config
}

// NewGameHandler wires the dispatcher.
func NewGameHandler(hub *Hub, rooms *services.RoomUseCases, games *services.GameUseCases, timers *services.GameTimerService, limiter *middleware.EventRateLimiter, registry *services.RoomRegistry, cfg *config.Config) *GameHandler {
	return &GameHandler{
		hub:      hub,
		rooms:    rooms,
		games:    games,
		timers:   timers,
		limiter:  limiter,
		registry: registry,
		cfg:      cfg,
	}
}

// HandleConnection runs the read loop for one upgraded socket. Auth claims
// were stashed in Locals at upgrade time.
func (h *GameHandler) HandleConnection(c *websocket.Conn) {
	client := &Client{
		ConnectionID: uuid.NewString(),
		conn:         c,
		send:         make(chan Message, sendBufferSize),
	}
	if v, ok := c.Locals("isAuthenticated").(bool); ok {
		client.IsAuthenticated = v
	}
	if v, ok := c.Locals("userId").(string); ok {
		client.UserID = v
	}

	h.hub.Register(client)
	log.Printf("🔌 Connection %s established (authenticated: %v)", client.ConnectionID, client.IsAuthenticated)

	client.sendMessage("connected", map[string]interface{}{
		"connection_id": client.ConnectionID,
		"server_time":   time.Now().UnixMilli(),
	})

	for {
		_, raw, err := c.ReadMessage()
		if err != nil {
			break
		}

		var msg incomingMessage
		if err := json.Unmarshal(raw, &msg); err != nil || msg.Event == "" {
			h.sendError(client, models.NewValidationError("Malformed message"))
			continue
		}
		h.dispatch(client, msg)
	}

	h.hub.Unregister(client.ConnectionID)
	h.limiter.RemoveConnection(client.ConnectionID)
	h.handleSocketClose(client)
	log.Printf("🔌 Connection %s closed", client.ConnectionID)
}

// dispatch rate-limits the event, then routes it. Every handler reports
// failures through the error event.
func (h *GameHandler) dispatch(client *Client, msg incomingMessage) {
	if allowed, retryAfter := h.limiter.Allow(client.ConnectionID, msg.Event); !allowed {
		h.sendError(client, models.NewRateLimitError(retryAfter))
		return
	}

	ctx := context.Background()
	var err error

	switch msg.Event {
	case "create_room":
		err = h.handleCreateRoom(ctx, client, msg.Data)
	case "join_room":
		err = h.handleJoinRoom(ctx, client, msg.Data)
	case "join_spectator":
		err = h.handleJoinSpectator(ctx, client, msg.Data)
	case "leave_room":
		err = h.handleLeaveRoom(ctx, client)
	case "close_room":
		err = h.handleCloseRoom(ctx, client, msg.Data)
	case "start_game":
		err = h.handleStartGame(ctx, client, msg.Data)
	case "start_answering":
		err = h.handleStartAnswering(ctx, client, msg.Data)
	case "submit_answer":
		err = h.handleSubmitAnswer(ctx, client, msg.Data)
	case "end_answering":
		err = h.handleEndAnswering(ctx, client, msg.Data)
	case "show_leaderboard":
		err = h.handleShowLeaderboard(ctx, client, msg.Data)
	case "next_question":
		err = h.handleNextQuestion(ctx, client, msg.Data)
	case "pause_game":
		err = h.handlePauseGame(ctx, client, msg.Data)
	case "resume_game":
		err = h.handleResumeGame(ctx, client, msg.Data)
	case "kick_player":
		err = h.handleKickPlayer(ctx, client, msg.Data)
	case "ban_player":
		err = h.handleBanPlayer(ctx, client, msg.Data)
	case "unban_nickname":
		err = h.handleUnbanNickname(ctx, client, msg.Data)
	case "get_banned":
		err = h.handleGetBanned(ctx, client, msg.Data)
	case "get_players":
		err = h.handleGetPlayers(ctx, client, msg.Data)
	case "get_results":
		err = h.handleGetResults(ctx, client, msg.Data)
	case "timer_sync":
		err = h.handleTimerSync(client, msg.Data)
	case "reconnect_host":
		err = h.handleReconnectHost(ctx, client, msg.Data)
	case "reconnect_player":
		err = h.handleReconnectPlayer(ctx, client, msg.Data)
	case "reconnect_spectator":
		err = h.handleReconnectSpectator(ctx, client, msg.Data)
	default:
		err = models.NewValidationError("Unknown event: %s", msg.Event)
	}

	if err != nil {
		h.sendError(client, err)
	}
}

// sendError maps a domain error onto the wire error event.
func (h *GameHandler) sendError(client *Client, err error) {
	payload := map[string]interface{}{
		"error": err.Error(),
		"kind":  string(models.KindOf(err)),
	}
	var ge *models.GameError
	if errors.As(err, &ge) && ge.RetryAfter > 0 {
		payload["retry_after"] = ge.RetryAfter
	}
	client.sendMessage("error", payload)
}

// --- room lifecycle ---

func (h *GameHandler) handleCreateRoom(ctx context.Context, client *Client, data json.RawMessage) error {
	var in struct {
		QuizID string `json:"quiz_id"`
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return models.NewValidationError("Invalid create_room payload")
	}
	if !client.IsAuthenticated {
		return models.NewUnauthorizedError("Creating a room requires authentication")
	}

	result, err := h.rooms.CreateRoom(ctx, client.UserID, in.QuizID, client.ConnectionID)
	if err != nil {
		return err
	}

	client.sendMessage("room_created", map[string]interface{}{
		"pin":            result.Room.PIN,
		"room_id":        result.Room.ID,
		"quiz_id":        result.Room.QuizID,
		"host_token":     result.HostToken,
		"max_players":    result.Room.MaxPlayers,
		"max_spectators": result.Room.MaxSpectators,
	})
	return nil
}

func (h *GameHandler) handleJoinRoom(ctx context.Context, client *Client, data json.RawMessage) error {
	var in struct {
		PIN      string `json:"pin"`
		Nickname string `json:"nickname"`
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return models.NewValidationError("Invalid join_room payload")
	}

	result, err := h.rooms.JoinRoom(ctx, services.JoinRoomInput{
		PIN:          in.PIN,
		Nickname:     in.Nickname,
		ConnectionID: client.ConnectionID,
	})
	if err != nil {
		return err
	}

	client.sendMessage("room_joined", map[string]interface{}{
		"pin":       result.Room.PIN,
		"player_id": result.Player.ID,
		"nickname":  result.Player.Nickname,
		"token":     result.Player.Token,
		"state":     result.Room.CurrentState(),
		"players":   playerSummaries(result.Room),
	})
	h.hub.ToRoomExcept(result.Room.PIN, client.ConnectionID, "player_joined", map[string]interface{}{
		"player_id":    result.Player.ID,
		"nickname":     result.Player.Nickname,
		"player_count": result.Room.PlayerCount(),
	})
	return nil
}

func (h *GameHandler) handleJoinSpectator(ctx context.Context, client *Client, data json.RawMessage) error {
	var in struct {
		PIN      string `json:"pin"`
		Nickname string `json:"nickname"`
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return models.NewValidationError("Invalid join_spectator payload")
	}

	result, err := h.rooms.JoinAsSpectator(ctx, services.JoinRoomInput{
		PIN:          in.PIN,
		Nickname:     in.Nickname,
		ConnectionID: client.ConnectionID,
	})
	if err != nil {
		return err
	}

	client.sendMessage("spectator_joined", map[string]interface{}{
		"pin":          result.Room.PIN,
		"spectator_id": result.Spectator.ID,
		"nickname":     result.Spectator.Nickname,
		"token":        result.Spectator.Token,
		"state":        result.Room.CurrentState(),
		"timer":        h.timers.GetTimerSync(result.Room.PIN),
	})
	h.hub.ToConnection(result.Room.HostConnectionID, "spectator_count_updated", map[string]interface{}{
		"spectator_count": result.Room.SpectatorCount(),
	})
	return nil
}

func (h *GameHandler) handleLeaveRoom(ctx context.Context, client *Client) error {
	result, err := h.rooms.LeaveRoom(ctx, client.ConnectionID)
	if err != nil {
		return err
	}
	client.sendMessage("room_left", map[string]interface{}{})
	if result == nil {
		return nil
	}

	if result.IsSpectator {
		h.hub.ToConnection(result.Room.HostConnectionID, "spectator_count_updated", map[string]interface{}{
			"spectator_count": result.Room.SpectatorCount(),
		})
		return nil
	}
	h.hub.ToRoom(result.Room.PIN, "player_left", map[string]interface{}{
		"player_id":    result.Player.ID,
		"nickname":     result.Player.Nickname,
		"player_count": result.Room.PlayerCount(),
	})
	return nil
}

func (h *GameHandler) handleCloseRoom(ctx context.Context, client *Client, data json.RawMessage) error {
	var in struct {
		PIN string `json:"pin"`
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return models.NewValidationError("Invalid close_room payload")
	}

	room := h.registry.Get(in.PIN)
	if room == nil {
		return models.NewNotFoundError("Room not found")
	}
	if err := room.RequireHost(client.ConnectionID); err != nil {
		return err
	}

	h.timers.StopTimer(in.PIN)
	h.hub.ToRoom(in.PIN, "room_closed", map[string]interface{}{
		"reason": models.ReasonHostClosed,
	})

	if room.HasQuizSnapshot() {
		if _, err := h.games.SaveInterruptedGame(ctx, services.SaveInterruptedInput{
			PIN:    in.PIN,
			Reason: models.ReasonHostClosed,
		}); err != nil {
			log.Printf("⚠️ Failed to archive room %s on close: %v", in.PIN, err)
			h.registry.Delete(in.PIN)
		}
	} else {
		h.registry.Delete(in.PIN)
	}
	log.Printf("🚪 Room %s closed by host", in.PIN)
	return nil
}

// --- game flow ---

func (h *GameHandler) handleStartGame(ctx context.Context, client *Client, data json.RawMessage) error {
	var in struct {
		PIN string `json:"pin"`
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return models.NewValidationError("Invalid start_game payload")
	}

	result, err := h.games.StartGame(ctx, in.PIN, client.ConnectionID)
	if err != nil {
		return err
	}

	h.hub.ToRoom(in.PIN, "game_started", map[string]interface{}{
		"total_questions": result.TotalQuestions,
	})
	h.sendQuestion(result.Room, "question_intro", result.HostQuestion, result.PublicQuestion)
	return nil
}

func (h *GameHandler) handleStartAnswering(ctx context.Context, client *Client, data json.RawMessage) error {
	var in struct {
		PIN string `json:"pin"`
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return models.NewValidationError("Invalid start_answering payload")
	}

	result, err := h.games.StartAnsweringPhase(ctx, in.PIN, client.ConnectionID)
	if err != nil {
		return err
	}

	pin := in.PIN
	h.hub.ToRoom(pin, "answering_started", map[string]interface{}{
		"question_index": result.QuestionIndex,
		"time_limit":     result.TimeLimit,
		"option_count":   result.OptionCount,
		"server_time":    time.Now().UnixMilli(),
	})
	h.timers.StartTimer(pin, result.TimeLimit, func() {
		h.hub.ToRoom(pin, "time_expired", map[string]interface{}{
			"question_index": result.QuestionIndex,
		})
		h.endRound(context.Background(), pin, models.ServerPrincipal)
	})
	return nil
}

func (h *GameHandler) handleSubmitAnswer(ctx context.Context, client *Client, data json.RawMessage) error {
	var in struct {
		AnswerIndex *int `json:"answer_index"`
	}
	if err := json.Unmarshal(data, &in); err != nil || in.AnswerIndex == nil {
		return models.NewValidationError("Invalid submit_answer payload")
	}

	room := h.registry.GetByConnection(client.ConnectionID)
	if room == nil {
		return models.NewNotFoundError("Not in a room")
	}
	pin := room.PIN

	// Elapsed time is always the server's measurement. A missing timer
	// means the answer arrived after expiry raced the submission; score it
	// at the full time limit.
	elapsed, ok := h.timers.GetElapsedTime(pin)
	if !ok {
		if q := room.CurrentQuestion(); q != nil {
			elapsed = q.TimeLimitMs()
		}
	}

	result, err := h.games.SubmitAnswer(ctx, services.SubmitAnswerInput{
		PIN:          pin,
		ConnectionID: client.ConnectionID,
		AnswerIndex:  *in.AnswerIndex,
		ElapsedMs:    elapsed,
	})
	if err != nil {
		return err
	}

	client.sendMessage("answer_received", map[string]interface{}{
		"question_index": result.Record.QuestionIndex,
		"answer_index":   result.Record.AnswerIndex,
		"elapsed_ms":     result.Record.ElapsedMs,
	})
	h.hub.ToRoom(pin, "answer_count_updated", map[string]interface{}{
		"answered": result.AnsweredCount,
		"total":    result.PlayerCount,
	})

	if result.AllAnswered {
		h.hub.ToRoom(pin, "all_players_answered", map[string]interface{}{})
		h.timers.StopTimer(pin)
		h.endRound(ctx, pin, models.ServerPrincipal)
	}
	return nil
}

func (h *GameHandler) handleEndAnswering(ctx context.Context, client *Client, data json.RawMessage) error {
	var in struct {
		PIN string `json:"pin"`
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return models.NewValidationError("Invalid end_answering payload")
	}

	// The timer is the round's authority; only the host gets to silence it.
	room := h.registry.Get(in.PIN)
	if room == nil {
		return models.NewNotFoundError("Room not found")
	}
	if err := room.RequireHost(client.ConnectionID); err != nil {
		return err
	}

	h.timers.StopTimer(in.PIN)
	h.endRound(ctx, in.PIN, client.ConnectionID)
	return nil
}

// endRound closes the answering phase and broadcasts the round results.
// A conflict means another closer (host, timer, all-answered) already won;
// that is not an error worth surfacing.
func (h *GameHandler) endRound(ctx context.Context, pin, requesterID string) {
	results, err := h.games.EndAnsweringPhase(ctx, pin, requesterID)
	if err != nil {
		if models.IsKind(err, models.KindConflict) {
			return
		}
		log.Printf("⚠️ Failed to end round in room %s: %v", pin, err)
		return
	}

	h.hub.ToRoom(pin, "show_results", map[string]interface{}{
		"question_index":       results.QuestionIndex,
		"correct_answer_index": results.CorrectAnswerIndex,
		"distribution":         results.Distribution,
		"correct_count":        results.CorrectCount,
		"skipped_count":        results.SkippedCount,
		"total_players":        results.TotalPlayers,
	})

	// Each player also gets their personal outcome for the question.
	for _, rec := range results.Room.AnswerHistory() {
		if rec.QuestionIndex != results.QuestionIndex {
			continue
		}
		if player := results.Room.PlayerByID(rec.PlayerID); player != nil && player.IsConnected() {
			h.hub.ToConnection(player.ConnectionID, "answer_result", map[string]interface{}{
				"question_index": rec.QuestionIndex,
				"is_correct":     rec.IsCorrect,
				"base_score":     rec.BaseScore,
				"bonus_score":    rec.BonusScore,
				"score":          player.Score,
				"streak":         player.Streak,
			})
		}
	}
}

func (h *GameHandler) handleShowLeaderboard(ctx context.Context, client *Client, data json.RawMessage) error {
	var in struct {
		PIN string `json:"pin"`
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return models.NewValidationError("Invalid show_leaderboard payload")
	}

	leaderboard, err := h.games.ShowLeaderboard(ctx, in.PIN, client.ConnectionID)
	if err != nil {
		return err
	}
	h.hub.ToRoom(in.PIN, "leaderboard_update", map[string]interface{}{
		"leaderboard": leaderboard,
	})
	return nil
}

func (h *GameHandler) handleNextQuestion(ctx context.Context, client *Client, data json.RawMessage) error {
	var in struct {
		PIN string `json:"pin"`
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return models.NewValidationError("Invalid next_question payload")
	}

	result, err := h.games.NextQuestion(ctx, in.PIN, client.ConnectionID)
	if err != nil {
		return err
	}

	if !result.HasMore {
		h.timers.StopTimer(in.PIN)
		leaderboard := result.Room.GetLeaderboard()
		h.hub.ToRoom(in.PIN, "game_over", map[string]interface{}{
			"podium":      result.Podium,
			"leaderboard": leaderboard,
		})
		if _, err := h.games.ArchiveGame(ctx, in.PIN); err != nil {
			log.Printf("⚠️ Failed to archive game %s: %v", in.PIN, err)
		}
		return nil
	}

	h.sendQuestion(result.Room, "question_intro", result.HostQuestion, result.PublicQuestion)
	return nil
}

func (h *GameHandler) handlePauseGame(ctx context.Context, client *Client, data json.RawMessage) error {
	var in struct {
		PIN string `json:"pin"`
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return models.NewValidationError("Invalid pause_game payload")
	}
	if err := h.games.PauseGame(ctx, in.PIN, client.ConnectionID); err != nil {
		return err
	}
	h.hub.ToRoom(in.PIN, "game_paused", map[string]interface{}{
		"paused_at": time.Now().UnixMilli(),
	})
	return nil
}

func (h *GameHandler) handleResumeGame(ctx context.Context, client *Client, data json.RawMessage) error {
	var in struct {
		PIN string `json:"pin"`
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return models.NewValidationError("Invalid resume_game payload")
	}
	if err := h.games.ResumeGame(ctx, in.PIN, client.ConnectionID); err != nil {
		return err
	}
	room := h.registry.Get(in.PIN)
	state := models.RoomState("")
	if room != nil {
		state = room.CurrentState()
	}
	h.hub.ToRoom(in.PIN, "game_resumed", map[string]interface{}{
		"state": state,
	})
	return nil
}

// --- moderation ---

func (h *GameHandler) handleKickPlayer(ctx context.Context, client *Client, data json.RawMessage) error {
	var in struct {
		PIN      string `json:"pin"`
		PlayerID string `json:"player_id"`
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return models.NewValidationError("Invalid kick_player payload")
	}

	player, err := h.rooms.KickPlayer(ctx, in.PIN, in.PlayerID, client.ConnectionID)
	if err != nil {
		return err
	}

	h.hub.ToConnection(player.ConnectionID, "kicked", map[string]interface{}{
		"pin": in.PIN,
	})
	h.registry.RemoveConnection(player.ConnectionID)
	h.hub.ToRoom(in.PIN, "player_removed", map[string]interface{}{
		"player_id": player.ID,
		"nickname":  player.Nickname,
		"reason":    "kicked",
	})
	return nil
}

func (h *GameHandler) handleBanPlayer(ctx context.Context, client *Client, data json.RawMessage) error {
	var in struct {
		PIN      string `json:"pin"`
		PlayerID string `json:"player_id"`
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return models.NewValidationError("Invalid ban_player payload")
	}

	player, err := h.rooms.BanPlayer(ctx, in.PIN, in.PlayerID, client.ConnectionID)
	if err != nil {
		return err
	}

	h.hub.ToConnection(player.ConnectionID, "banned", map[string]interface{}{
		"pin": in.PIN,
	})
	h.registry.RemoveConnection(player.ConnectionID)
	h.hub.ToRoom(in.PIN, "player_removed", map[string]interface{}{
		"player_id": player.ID,
		"nickname":  player.Nickname,
		"reason":    "banned",
	})
	return nil
}

func (h *GameHandler) handleUnbanNickname(ctx context.Context, client *Client, data json.RawMessage) error {
	var in struct {
		PIN      string `json:"pin"`
		Nickname string `json:"nickname"`
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return models.NewValidationError("Invalid unban_nickname payload")
	}
	if err := h.rooms.UnbanNickname(ctx, in.PIN, in.Nickname, client.ConnectionID); err != nil {
		return err
	}
	client.sendMessage("nickname_unbanned", map[string]interface{}{
		"nickname": in.Nickname,
	})
	return nil
}

func (h *GameHandler) handleGetBanned(ctx context.Context, client *Client, data json.RawMessage) error {
	var in struct {
		PIN string `json:"pin"`
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return models.NewValidationError("Invalid get_banned payload")
	}
	banned, err := h.rooms.GetBannedNicknames(ctx, in.PIN, client.ConnectionID)
	if err != nil {
		return err
	}
	client.sendMessage("banned_nicknames", map[string]interface{}{
		"nicknames": banned,
	})
	return nil
}

// --- queries ---

func (h *GameHandler) handleGetPlayers(ctx context.Context, client *Client, data json.RawMessage) error {
	var in struct {
		PIN string `json:"pin"`
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return models.NewValidationError("Invalid get_players payload")
	}
	room := h.registry.Get(in.PIN)
	if room == nil {
		return models.NewNotFoundError("Room not found")
	}
	client.sendMessage("player_list", map[string]interface{}{
		"players":         playerSummaries(room),
		"player_count":    room.PlayerCount(),
		"spectator_count": room.SpectatorCount(),
	})
	return nil
}

func (h *GameHandler) handleGetResults(ctx context.Context, client *Client, data json.RawMessage) error {
	var in struct {
		PIN string `json:"pin"`
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return models.NewValidationError("Invalid get_results payload")
	}
	leaderboard, podium, err := h.games.GetResults(ctx, in.PIN)
	if err != nil {
		return err
	}
	client.sendMessage("game_results", map[string]interface{}{
		"leaderboard": leaderboard,
		"podium":      podium,
	})
	return nil
}

func (h *GameHandler) handleTimerSync(client *Client, data json.RawMessage) error {
	var in struct {
		PIN string `json:"pin"`
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return models.NewValidationError("Invalid timer_sync payload")
	}
	client.sendMessage("timer_sync", h.timers.GetTimerSync(in.PIN))
	return nil
}

// --- reconnection ---

func (h *GameHandler) handleReconnectHost(ctx context.Context, client *Client, data json.RawMessage) error {
	var in struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return models.NewValidationError("Invalid reconnect_host payload")
	}

	result, err := h.rooms.ReconnectHost(ctx, services.ReconnectInput{
		Token:           in.Token,
		NewConnectionID: client.ConnectionID,
	})
	if err != nil {
		return err
	}

	room := result.Room
	client.sendMessage("host_reconnected", map[string]interface{}{
		"pin":            room.PIN,
		"host_token":     result.HostToken,
		"state":          room.CurrentState(),
		"question_index": room.QuestionIndex(),
		"players":        playerSummaries(room),
		"timer":          h.timers.GetTimerSync(room.PIN),
	})
	h.hub.ToRoomExcept(room.PIN, client.ConnectionID, "host_returned", map[string]interface{}{})
	return nil
}

func (h *GameHandler) handleReconnectPlayer(ctx context.Context, client *Client, data json.RawMessage) error {
	var in struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return models.NewValidationError("Invalid reconnect_player payload")
	}

	result, err := h.rooms.ReconnectPlayer(ctx, services.ReconnectInput{
		Token:           in.Token,
		NewConnectionID: client.ConnectionID,
	})
	if err != nil {
		return err
	}

	room := result.Room
	client.sendMessage("player_reconnected", map[string]interface{}{
		"pin":            room.PIN,
		"player_id":      result.Player.ID,
		"nickname":       result.Player.Nickname,
		"token":          result.Player.Token,
		"state":          room.CurrentState(),
		"question_index": room.QuestionIndex(),
		"score":          result.Player.Score,
		"streak":         result.Player.Streak,
		"timer":          h.timers.GetTimerSync(room.PIN),
	})
	h.hub.ToRoomExcept(room.PIN, client.ConnectionID, "player_returned", map[string]interface{}{
		"player_id": result.Player.ID,
		"nickname":  result.Player.Nickname,
	})
	return nil
}

func (h *GameHandler) handleReconnectSpectator(ctx context.Context, client *Client, data json.RawMessage) error {
	var in struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return models.NewValidationError("Invalid reconnect_spectator payload")
	}

	result, err := h.rooms.ReconnectSpectator(ctx, services.ReconnectInput{
		Token:           in.Token,
		NewConnectionID: client.ConnectionID,
	})
	if err != nil {
		return err
	}

	room := result.Room
	client.sendMessage("spectator_reconnected", map[string]interface{}{
		"pin":      room.PIN,
		"nickname": result.Spectator.Nickname,
		"token":    result.Spectator.Token,
		"state":    room.CurrentState(),
		"timer":    h.timers.GetTimerSync(room.PIN),
	})
	return nil
}

// --- disconnect handling ---

// handleSocketClose runs after the read loop ends. Hosts and mid-game
// players enter their grace period; lobby players leave outright.
func (h *GameHandler) handleSocketClose(client *Client) {
	result, err := h.rooms.HandleDisconnect(context.Background(), client.ConnectionID)
	if err != nil || result == nil {
		return
	}

	pin := result.Room.PIN
	switch {
	case result.IsHost:
		h.hub.ToRoom(pin, "host_disconnected", map[string]interface{}{
			"grace_seconds": int(h.cfg.HostGrace.Seconds()),
		})
	case result.Player != nil && result.Removed:
		h.hub.ToRoom(pin, "player_left", map[string]interface{}{
			"player_id":    result.Player.ID,
			"nickname":     result.Player.Nickname,
			"player_count": result.Room.PlayerCount(),
		})
	case result.Player != nil:
		h.hub.ToRoom(pin, "player_disconnected", map[string]interface{}{
			"player_id":     result.Player.ID,
			"nickname":      result.Player.Nickname,
			"grace_seconds": int(h.cfg.PlayerGrace.Seconds()),
		})
	case result.Spectator != nil:
		h.hub.ToConnection(result.Room.HostConnectionID, "spectator_count_updated", map[string]interface{}{
			"spectator_count": result.Room.SpectatorCount(),
		})
	}
}

// --- helpers ---

// sendQuestion gives the host the answer-bearing view and everyone else the
// public one.
func (h *GameHandler) sendQuestion(room *models.Room, event string, hostView, publicView map[string]interface{}) {
	h.hub.ToRoomExcept(room.PIN, room.HostConnectionID, event, publicView)
	h.hub.ToConnection(room.HostConnectionID, event, hostView)
}

// playerSummaries returns the lobby-safe view of a room's players.
func playerSummaries(room *models.Room) []map[string]interface{} {
	players := room.Players()
	out := make([]map[string]interface{}, 0, len(players))
	for _, p := range players {
		out = append(out, map[string]interface{}{
			"player_id": p.ID,
			"nickname":  p.Nickname,
			"score":     p.Score,
			"connected": p.IsConnected(),
		})
	}
	return out
}
