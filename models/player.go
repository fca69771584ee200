// models/player.go - Room participants (players and spectators)
package models

import (
	"regexp"
	"strings"
	"time"
)

const (
	MinNicknameLength = 2
	MaxNicknameLength = 15

	// MaxStreak caps both streak and longestStreak.
	MaxStreak = 1000

	// DefaultTokenTTL is how long a reconnect token stays valid.
	DefaultTokenTTL = 24 * time.Hour
)

var nicknamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// SanitizeNickname trims and validates a raw nickname, returning the display
// form. Uniqueness within a room is checked case-insensitively by the Room.
func SanitizeNickname(raw string) (string, error) {
	nick := strings.TrimSpace(raw)
	if len(nick) < MinNicknameLength || len(nick) > MaxNicknameLength {
		return "", NewValidationError("Nickname must be %d-%d characters", MinNicknameLength, MaxNicknameLength)
	}
	if !nicknamePattern.MatchString(nick) {
		return "", NewValidationError("Nickname may only contain letters, digits, _ and -")
	}
	return nick, nil
}

// NormalizeNickname returns the case-insensitive comparison form.
func NormalizeNickname(nick string) string {
	return strings.ToLower(strings.TrimSpace(nick))
}

// Participant holds the connection-level state common to players and
// spectators. ConnectionID is the ephemeral transport handle; Token is the
// durable reconnect credential, rotated on every successful reconnect.
type Participant struct {
	ID             string     `json:"id"`
	ConnectionID   string     `json:"connection_id"`
	Nickname       string     `json:"nickname"`
	RoomPIN        string     `json:"room_pin"`
	Token          string     `json:"-"`
	TokenCreatedAt time.Time  `json:"-"`
	JoinedAt       time.Time  `json:"joined_at"`
	DisconnectedAt *time.Time `json:"disconnected_at,omitempty"`
}

// IsConnected reports whether the participant currently has a live transport.
func (p *Participant) IsConnected() bool {
	return p.DisconnectedAt == nil
}

// MarkDisconnected records transport loss at the given instant.
func (p *Participant) MarkDisconnected(now time.Time) {
	t := now
	p.DisconnectedAt = &t
}

// MarkReconnected clears the disconnect mark and rebinds the transport,
// rotating the reconnect token.
func (p *Participant) MarkReconnected(connectionID, newToken string, now time.Time) {
	p.ConnectionID = connectionID
	p.DisconnectedAt = nil
	p.Token = newToken
	p.TokenCreatedAt = now
}

// TokenValid reports whether the reconnect token is still within its TTL.
func (p *Participant) TokenValid(ttl time.Duration, now time.Time) bool {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return now.Sub(p.TokenCreatedAt) <= ttl
}

// DisconnectedFor returns how long the participant has been disconnected,
// or zero when connected.
func (p *Participant) DisconnectedFor(now time.Time) time.Duration {
	if p.DisconnectedAt == nil {
		return 0
	}
	return now.Sub(*p.DisconnectedAt)
}

// AnswerAttempt is the single open answer a player may hold per question.
type AnswerAttempt struct {
	AnswerIndex int       `json:"answer_index"`
	ElapsedMs   int       `json:"elapsed_ms"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Player is a scoring participant.
type Player struct {
	Participant
	Score               int            `json:"score"`
	Streak              int            `json:"streak"`
	LongestStreak       int            `json:"longest_streak"`
	CorrectAnswersCount int            `json:"correct_answers_count"`
	AnswerAttempt       *AnswerAttempt `json:"answer_attempt,omitempty"`
}

// NewPlayer builds a player joining a room.
func NewPlayer(id, connectionID, nickname, pin, token string, now time.Time) *Player {
	return &Player{
		Participant: Participant{
			ID:             id,
			ConnectionID:   connectionID,
			Nickname:       nickname,
			RoomPIN:        pin,
			Token:          token,
			TokenCreatedAt: now,
			JoinedAt:       now,
		},
	}
}

// AddScore adds delta to the score, clamping the result at zero.
func (p *Player) AddScore(delta int) {
	p.Score += delta
	if p.Score < 0 {
		p.Score = 0
	}
}

// RecordCorrect applies a correct answer: score, streak and counters.
func (p *Player) RecordCorrect(points int) {
	p.AddScore(points)
	p.CorrectAnswersCount++
	p.Streak++
	if p.Streak > MaxStreak {
		p.Streak = MaxStreak
	}
	if p.Streak > p.LongestStreak {
		p.LongestStreak = p.Streak
	}
	if p.LongestStreak > MaxStreak {
		p.LongestStreak = MaxStreak
	}
}

// RecordWrong applies a wrong answer: the streak resets.
func (p *Player) RecordWrong() {
	p.Streak = 0
}

// Spectator is a non-scoring participant.
type Spectator struct {
	Participant
}

// NewSpectator builds a spectator joining a room.
func NewSpectator(id, connectionID, nickname, pin, token string, now time.Time) *Spectator {
	return &Spectator{
		Participant: Participant{
			ID:             id,
			ConnectionID:   connectionID,
			Nickname:       nickname,
			RoomPIN:        pin,
			Token:          token,
			TokenCreatedAt: now,
			JoinedAt:       now,
		},
	}
}
