// services/room_usecases.go - Transactional room membership operations
package services

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"quizparty/config"
	"quizparty/models"
	"quizparty/utils"
)

// RoomUseCases orchestrates room lifecycle and membership on top of the
// Room aggregate. Join races on the same nickname are serialised with a
// transient pin:nickname lock.
type RoomUseCases struct {
	registry  *RoomRegistry
	quizRepo  QuizRepository
	joinLocks *LockTable
	cfg       *config.Config
}

// NewRoomUseCases wires the room use-cases.
func NewRoomUseCases(registry *RoomRegistry, quizRepo QuizRepository, cfg *config.Config) *RoomUseCases {
	return &RoomUseCases{
		registry:  registry,
		quizRepo:  quizRepo,
		joinLocks: NewLockTable(cfg.LockTimeout),
		cfg:       cfg,
	}
}

// CreateRoomResult is returned to the host connection only: it carries the
// host reconnect token.
type CreateRoomResult struct {
	Room      *models.Room
	HostToken string
}

// CreateRoom opens a new room for an authenticated host.
func (uc *RoomUseCases) CreateRoom(ctx context.Context, hostUserID, quizID, hostConnectionID string) (*CreateRoomResult, error) {
	quiz, err := uc.quizRepo.FindByID(ctx, quizID)
	if err != nil {
		return nil, err
	}
	if quiz == nil {
		return nil, models.NewNotFoundError("Quiz not found")
	}

	pin, err := uc.registry.GeneratePIN()
	if err != nil {
		return nil, err
	}

	hostToken := utils.GenerateSecureToken()
	room := models.NewRoom(uuid.NewString(), pin, hostConnectionID, hostUserID, hostToken, quizID, time.Now())
	room.MaxPlayers = uc.cfg.MaxPlayers
	room.MaxSpectators = uc.cfg.MaxSpectators
	room.TokenTTL = uc.cfg.TokenTTL
	uc.registry.Save(room)

	log.Printf("🏠 Room %s created by host %s for quiz %s", pin, hostUserID, quizID)
	return &CreateRoomResult{Room: room, HostToken: hostToken}, nil
}

// JoinRoomInput is the player join request.
type JoinRoomInput struct {
	PIN          string
	Nickname     string
	ConnectionID string
}

// JoinRoomResult carries the admitted player; the token goes to the
// originator only.
type JoinRoomResult struct {
	Room   *models.Room
	Player *models.Player
}

// JoinRoom admits a player by PIN and nickname.
func (uc *RoomUseCases) JoinRoom(ctx context.Context, in JoinRoomInput) (*JoinRoomResult, error) {
	nickname, err := models.SanitizeNickname(in.Nickname)
	if err != nil {
		return nil, err
	}

	lockKey := in.PIN + ":" + models.NormalizeNickname(nickname)
	if !uc.joinLocks.Acquire(lockKey) {
		return nil, models.NewConflictError("Join already in progress for this nickname")
	}
	defer uc.joinLocks.Release(lockKey)

	room := uc.registry.Get(in.PIN)
	if room == nil {
		return nil, models.NewNotFoundError("Room not found")
	}

	player := models.NewPlayer(uuid.NewString(), in.ConnectionID, nickname, in.PIN, utils.GenerateSecureToken(), time.Now())
	if err := room.AddPlayer(player); err != nil {
		return nil, err
	}
	uc.registry.Save(room)

	log.Printf("🎮 Player %s joined room %s", nickname, in.PIN)
	return &JoinRoomResult{Room: room, Player: player}, nil
}

// JoinSpectatorResult carries the admitted spectator.
type JoinSpectatorResult struct {
	Room      *models.Room
	Spectator *models.Spectator
}

// JoinAsSpectator admits a non-scoring spectator. No authentication needed.
func (uc *RoomUseCases) JoinAsSpectator(ctx context.Context, in JoinRoomInput) (*JoinSpectatorResult, error) {
	nickname, err := models.SanitizeNickname(in.Nickname)
	if err != nil {
		return nil, err
	}

	lockKey := in.PIN + ":" + models.NormalizeNickname(nickname)
	if !uc.joinLocks.Acquire(lockKey) {
		return nil, models.NewConflictError("Join already in progress for this nickname")
	}
	defer uc.joinLocks.Release(lockKey)

	room := uc.registry.Get(in.PIN)
	if room == nil {
		return nil, models.NewNotFoundError("Room not found")
	}

	spectator := models.NewSpectator(uuid.NewString(), in.ConnectionID, nickname, in.PIN, utils.GenerateSecureToken(), time.Now())
	if err := room.AddSpectator(spectator); err != nil {
		return nil, err
	}
	uc.registry.Save(room)

	log.Printf("👀 Spectator %s joined room %s", nickname, in.PIN)
	return &JoinSpectatorResult{Room: room, Spectator: spectator}, nil
}

// LeaveResult describes who left which room.
type LeaveResult struct {
	Room        *models.Room
	Player      *models.Player
	Spectator   *models.Spectator
	IsSpectator bool
}

// LeaveRoom removes the participant bound to the connection. Idempotent:
// a connection not in any room returns nil, nil.
func (uc *RoomUseCases) LeaveRoom(ctx context.Context, connectionID string) (*LeaveResult, error) {
	room := uc.registry.GetByConnection(connectionID)
	if room == nil {
		return nil, nil
	}

	if player := room.RemovePlayer(connectionID); player != nil {
		uc.registry.RemoveConnection(connectionID)
		uc.registry.Save(room)
		return &LeaveResult{Room: room, Player: player}, nil
	}
	if spectator := room.RemoveSpectator(connectionID); spectator != nil {
		uc.registry.RemoveConnection(connectionID)
		uc.registry.Save(room)
		return &LeaveResult{Room: room, Spectator: spectator, IsSpectator: true}, nil
	}
	return nil, nil
}

// CloseRoom deletes the room at the host's request and returns it so the
// dispatcher can notify and optionally archive.
func (uc *RoomUseCases) CloseRoom(ctx context.Context, pin, requesterID string) (*models.Room, error) {
	room := uc.registry.Get(pin)
	if room == nil {
		return nil, models.NewNotFoundError("Room not found")
	}
	if err := room.RequireHost(requesterID); err != nil {
		return nil, err
	}
	uc.registry.Delete(pin)
	log.Printf("🚪 Room %s closed by host", pin)
	return room, nil
}

// KickPlayer removes a player on behalf of the host.
func (uc *RoomUseCases) KickPlayer(ctx context.Context, pin, playerID, requesterID string) (*models.Player, error) {
	room := uc.registry.Get(pin)
	if room == nil {
		return nil, models.NewNotFoundError("Room not found")
	}
	player, err := room.KickPlayer(playerID, requesterID)
	if err != nil {
		return nil, err
	}
	uc.registry.Save(room)
	return player, nil
}

// BanPlayer kicks a player and bans their nickname.
func (uc *RoomUseCases) BanPlayer(ctx context.Context, pin, playerID, requesterID string) (*models.Player, error) {
	room := uc.registry.Get(pin)
	if room == nil {
		return nil, models.NewNotFoundError("Room not found")
	}
	player, err := room.BanPlayer(playerID, requesterID)
	if err != nil {
		return nil, err
	}
	uc.registry.Save(room)
	return player, nil
}

// UnbanNickname lifts a ban.
func (uc *RoomUseCases) UnbanNickname(ctx context.Context, pin, nickname, requesterID string) error {
	room := uc.registry.Get(pin)
	if room == nil {
		return models.NewNotFoundError("Room not found")
	}
	return room.UnbanNickname(nickname, requesterID)
}

// GetBannedNicknames lists the room's normalised ban set, host only.
func (uc *RoomUseCases) GetBannedNicknames(ctx context.Context, pin, requesterID string) ([]string, error) {
	room := uc.registry.Get(pin)
	if room == nil {
		return nil, models.NewNotFoundError("Room not found")
	}
	if err := room.RequireHost(requesterID); err != nil {
		return nil, err
	}
	return room.BannedNicknames(), nil
}

// GetPlayers returns the room's players.
func (uc *RoomUseCases) GetPlayers(ctx context.Context, pin string) ([]*models.Player, error) {
	room := uc.registry.Get(pin)
	if room == nil {
		return nil, models.NewNotFoundError("Room not found")
	}
	return room.Players(), nil
}

// GetSpectators returns the room's spectators.
func (uc *RoomUseCases) GetSpectators(ctx context.Context, pin string) ([]*models.Spectator, error) {
	room := uc.registry.Get(pin)
	if room == nil {
		return nil, models.NewNotFoundError("Room not found")
	}
	return room.Spectators(), nil
}

// DisconnectResult describes what the transport loss affected.
type DisconnectResult struct {
	Room        *models.Room
	IsHost      bool
	Player      *models.Player
	Spectator   *models.Spectator
	Removed     bool // removed outright (lobby phase) vs marked disconnected
}

// HandleDisconnect reacts to transport loss for any connection. Hosts and
// mid-game players are marked disconnected (reconnectable within grace);
// lobby players are removed outright.
func (uc *RoomUseCases) HandleDisconnect(ctx context.Context, connectionID string) (*DisconnectResult, error) {
	room := uc.registry.GetByConnection(connectionID)
	if room == nil {
		return nil, nil
	}
	now := time.Now()

	if room.HostConnectionID == connectionID {
		room.SetHostDisconnected(now)
		uc.registry.RemoveConnection(connectionID)
		uc.registry.Save(room)
		log.Printf("🔌 Host disconnected from room %s", room.PIN)
		return &DisconnectResult{Room: room, IsHost: true}, nil
	}

	if player := room.PlayerByConnection(connectionID); player != nil {
		if room.CurrentState() == models.StateWaitingPlayers {
			room.RemovePlayer(connectionID)
			uc.registry.RemoveConnection(connectionID)
			uc.registry.Save(room)
			return &DisconnectResult{Room: room, Player: player, Removed: true}, nil
		}
		room.SetPlayerDisconnected(connectionID, now)
		uc.registry.RemoveConnection(connectionID)
		uc.registry.Save(room)
		log.Printf("🔌 Player %s disconnected from room %s", player.Nickname, room.PIN)
		return &DisconnectResult{Room: room, Player: player}, nil
	}

	if spectator := room.SpectatorByConnection(connectionID); spectator != nil {
		room.SetSpectatorDisconnected(connectionID, now)
		uc.registry.RemoveConnection(connectionID)
		uc.registry.Save(room)
		return &DisconnectResult{Room: room, Spectator: spectator}, nil
	}

	uc.registry.RemoveConnection(connectionID)
	return nil, nil
}

// ReconnectInput identifies a reconnecting participant.
type ReconnectInput struct {
	Token           string
	NewConnectionID string
}

// ReconnectPlayerResult carries the restored player and the rotated token.
type ReconnectPlayerResult struct {
	Room   *models.Room
	Player *models.Player
}

// ReconnectPlayer restores a player within the grace period, rotating the
// reconnect token.
func (uc *RoomUseCases) ReconnectPlayer(ctx context.Context, in ReconnectInput) (*ReconnectPlayerResult, error) {
	room := uc.registry.GetByPlayerToken(in.Token)
	if room == nil {
		return nil, models.NewUnauthorizedError("Unknown reconnect token")
	}

	player, err := room.ReconnectPlayer(in.Token, in.NewConnectionID, uc.cfg.PlayerGrace, utils.GenerateSecureToken(), time.Now())
	if err != nil {
		return nil, err
	}
	uc.registry.Save(room)

	log.Printf("✅ Player %s reconnected to room %s", player.Nickname, room.PIN)
	return &ReconnectPlayerResult{Room: room, Player: player}, nil
}

// ReconnectSpectatorResult carries the restored spectator.
type ReconnectSpectatorResult struct {
	Room      *models.Room
	Spectator *models.Spectator
}

// ReconnectSpectator restores a spectator within the grace period.
func (uc *RoomUseCases) ReconnectSpectator(ctx context.Context, in ReconnectInput) (*ReconnectSpectatorResult, error) {
	room := uc.registry.GetByPlayerToken(in.Token)
	if room == nil {
		return nil, models.NewUnauthorizedError("Unknown reconnect token")
	}

	spectator, err := room.ReconnectSpectator(in.Token, in.NewConnectionID, uc.cfg.PlayerGrace, utils.GenerateSecureToken(), time.Now())
	if err != nil {
		return nil, err
	}
	uc.registry.Save(room)
	return &ReconnectSpectatorResult{Room: room, Spectator: spectator}, nil
}

// ReconnectHostResult carries the room and the rotated host token.
type ReconnectHostResult struct {
	Room      *models.Room
	HostToken string
}

// ReconnectHost restores the host within the grace period, rotating the
// host token.
func (uc *RoomUseCases) ReconnectHost(ctx context.Context, in ReconnectInput) (*ReconnectHostResult, error) {
	room := uc.registry.GetByHostToken(in.Token)
	if room == nil {
		return nil, models.NewUnauthorizedError("Invalid host token")
	}

	newToken := utils.GenerateSecureToken()
	if err := room.ReconnectHost(in.NewConnectionID, in.Token, uc.cfg.HostGrace, newToken, time.Now()); err != nil {
		return nil, err
	}
	uc.registry.Save(room)

	log.Printf("✅ Host returned to room %s", room.PIN)
	return &ReconnectHostResult{Room: room, HostToken: newToken}, nil
}

// JoinLocks exposes the join lock table for the cleanup sweep.
func (uc *RoomUseCases) JoinLocks() *LockTable {
	return uc.joinLocks
}
