// models/room.go - Room aggregate root and state machine
package models

import (
	"sync"
	"time"
)

// RoomState is the phase of a live game session.
type RoomState string

const (
	StateWaitingPlayers RoomState = "WAITING_PLAYERS"
	StateQuestionIntro  RoomState = "QUESTION_INTRO"
	StateAnsweringPhase RoomState = "ANSWERING_PHASE"
	StateShowResults    RoomState = "SHOW_RESULTS"
	StateLeaderboard    RoomState = "LEADERBOARD"
	StatePaused         RoomState = "PAUSED"
	StatePodium         RoomState = "PODIUM"
)

// stateTransitions is the full set of legal transitions. PODIUM is terminal.
var stateTransitions = map[RoomState][]RoomState{
	StateWaitingPlayers: {StateQuestionIntro},
	StateQuestionIntro:  {StateAnsweringPhase},
	StateAnsweringPhase: {StateShowResults},
	StateShowResults:    {StateLeaderboard},
	StateLeaderboard:    {StateQuestionIntro, StatePodium, StatePaused},
	StatePaused:         {StateLeaderboard},
	StatePodium:         {},
}

// ServerPrincipal is the requester id used by timer expiry and other
// server-driven calls into host-gated operations.
const ServerPrincipal = "server"

// DefaultMaxPlayers / DefaultMaxSpectators bound room membership.
const (
	DefaultMaxPlayers    = 50
	DefaultMaxSpectators = 10
)

// AnswerRecord is one immutable entry in a room's answer history.
type AnswerRecord struct {
	PlayerID      string    `json:"player_id"`
	Nickname      string    `json:"nickname"`
	QuestionIndex int       `json:"question_index"`
	AnswerIndex   int       `json:"answer_index"`
	IsCorrect     bool      `json:"is_correct"`
	ElapsedMs     int       `json:"elapsed_ms"`
	BaseScore     int       `json:"base_score"`
	BonusScore    int       `json:"bonus_score"`
	SubmittedAt   time.Time `json:"submitted_at"`
}

// AnswerDistribution summarises one round. Out-of-range answer indices are
// counted as skipped rather than crashing the tally.
type AnswerDistribution struct {
	Distribution []int `json:"distribution"`
	CorrectCount int   `json:"correct_count"`
	SkippedCount int   `json:"skipped_count"`
}

// LeaderboardEntry is one row of the score ranking, rank is 1-based.
type LeaderboardEntry struct {
	Rank           int    `json:"rank"`
	PlayerID       string `json:"player_id"`
	Nickname       string `json:"nickname"`
	Score          int    `json:"score"`
	Streak         int    `json:"streak"`
	CorrectAnswers int    `json:"correct_answers"`
}

// Room is the aggregate root for a live game session. All participant and
// flow mutations go through its methods; external code never mutates a
// Player or Spectator directly.
type Room struct {
	mu sync.RWMutex

	ID                 string
	PIN                string
	HostConnectionID   string
	HostUserID         string
	HostToken          string
	HostTokenCreatedAt time.Time
	HostDisconnectedAt *time.Time

	QuizID        string
	quizSnapshot  *QuizSnapshot
	GameStartedAt *time.Time

	State                RoomState
	CurrentQuestionIndex int
	PausedAt             *time.Time
	pausedFromState      RoomState

	players         []*Player
	spectators      []*Spectator
	bannedNicknames map[string]bool

	answerHistory []AnswerRecord

	MaxPlayers    int
	MaxSpectators int
	TokenTTL      time.Duration

	CreatedAt time.Time
}

// NewRoom constructs a room in WAITING_PLAYERS owned by the given host.
func NewRoom(id, pin, hostConnectionID, hostUserID, hostToken, quizID string, now time.Time) *Room {
	return &Room{
		ID:                 id,
		PIN:                pin,
		HostConnectionID:   hostConnectionID,
		HostUserID:         hostUserID,
		HostToken:          hostToken,
		HostTokenCreatedAt: now,
		QuizID:             quizID,
		State:              StateWaitingPlayers,
		bannedNicknames:    make(map[string]bool),
		MaxPlayers:         DefaultMaxPlayers,
		MaxSpectators:      DefaultMaxSpectators,
		TokenTTL:           DefaultTokenTTL,
		CreatedAt:          now,
	}
}

// --- membership ---

// AddPlayer admits a player during WAITING_PLAYERS. The nickname must be
// free (case-insensitive, across players and spectators) and not banned.
func (r *Room) AddPlayer(player *Player) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.State != StateWaitingPlayers {
		return NewValidationError("Players can only join while the room is waiting")
	}
	if len(r.players) >= r.MaxPlayers {
		return NewConflictError("Room is full")
	}
	normalized := NormalizeNickname(player.Nickname)
	if r.bannedNicknames[normalized] {
		return NewForbiddenError("This nickname is banned from the room")
	}
	if r.nicknameTaken(normalized) {
		return NewConflictError("Nickname already taken")
	}

	r.players = append(r.players, player)
	return nil
}

// AddSpectator admits a spectator. Spectators may join at any phase.
func (r *Room) AddSpectator(spectator *Spectator) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.spectators) >= r.MaxSpectators {
		return NewConflictError("Spectator slots are full")
	}
	normalized := NormalizeNickname(spectator.Nickname)
	if r.bannedNicknames[normalized] {
		return NewForbiddenError("This nickname is banned from the room")
	}
	if r.nicknameTaken(normalized) {
		return NewConflictError("Nickname already taken")
	}

	r.spectators = append(r.spectators, spectator)
	return nil
}

func (r *Room) nicknameTaken(normalized string) bool {
	for _, p := range r.players {
		if NormalizeNickname(p.Nickname) == normalized {
			return true
		}
	}
	for _, s := range r.spectators {
		if NormalizeNickname(s.Nickname) == normalized {
			return true
		}
	}
	return false
}

// RemovePlayer removes the player bound to connectionID. Idempotent.
func (r *Room) RemovePlayer(connectionID string) *Player {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, p := range r.players {
		if p.ConnectionID == connectionID {
			r.players = append(r.players[:i], r.players[i+1:]...)
			return p
		}
	}
	return nil
}

// RemoveSpectator removes the spectator bound to connectionID. Idempotent.
func (r *Room) RemoveSpectator(connectionID string) *Spectator {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, s := range r.spectators {
		if s.ConnectionID == connectionID {
			r.spectators = append(r.spectators[:i], r.spectators[i+1:]...)
			return s
		}
	}
	return nil
}

// SetPlayerDisconnected records transport loss for the player on
// connectionID, making them eligible for reconnection within the grace
// period.
func (r *Room) SetPlayerDisconnected(connectionID string, now time.Time) *Player {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range r.players {
		if p.ConnectionID == connectionID && p.IsConnected() {
			p.MarkDisconnected(now)
			return p
		}
	}
	return nil
}

// SetSpectatorDisconnected records transport loss for a spectator.
func (r *Room) SetSpectatorDisconnected(connectionID string, now time.Time) *Spectator {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range r.spectators {
		if s.ConnectionID == connectionID && s.IsConnected() {
			s.MarkDisconnected(now)
			return s
		}
	}
	return nil
}

// SetHostDisconnected records transport loss for the host.
func (r *Room) SetHostDisconnected(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := now
	r.HostDisconnectedAt = &t
}

// ReconnectPlayer restores a player identified by their reconnect token and
// rotates the token. Fails Unauthorized when the token is unknown or past
// its TTL, Forbidden when the disconnect outlived the grace period.
func (r *Room) ReconnectPlayer(oldToken, newConnectionID string, grace time.Duration, newToken string, now time.Time) (*Player, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range r.players {
		if p.Token != oldToken {
			continue
		}
		if !p.TokenValid(r.TokenTTL, now) {
			return nil, NewUnauthorizedError("Reconnect token expired")
		}
		if p.DisconnectedAt != nil && now.Sub(*p.DisconnectedAt) > grace {
			return nil, NewForbiddenError("Reconnection grace period expired")
		}
		p.MarkReconnected(newConnectionID, newToken, now)
		return p, nil
	}
	return nil, NewUnauthorizedError("Unknown reconnect token")
}

// ReconnectSpectator mirrors ReconnectPlayer for spectators.
func (r *Room) ReconnectSpectator(oldToken, newConnectionID string, grace time.Duration, newToken string, now time.Time) (*Spectator, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range r.spectators {
		if s.Token != oldToken {
			continue
		}
		if !s.TokenValid(r.TokenTTL, now) {
			return nil, NewUnauthorizedError("Reconnect token expired")
		}
		if s.DisconnectedAt != nil && now.Sub(*s.DisconnectedAt) > grace {
			return nil, NewForbiddenError("Reconnection grace period expired")
		}
		s.MarkReconnected(newConnectionID, newToken, now)
		return s, nil
	}
	return nil, NewUnauthorizedError("Unknown reconnect token")
}

// ReconnectHost restores the host with the same semantics as player
// reconnection, rotating the host token.
func (r *Room) ReconnectHost(newConnectionID, token string, grace time.Duration, newToken string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if token != r.HostToken {
		return NewUnauthorizedError("Invalid host token")
	}
	if now.Sub(r.HostTokenCreatedAt) > r.tokenTTL() {
		return NewUnauthorizedError("Host token expired")
	}
	if r.HostDisconnectedAt != nil && now.Sub(*r.HostDisconnectedAt) > grace {
		return NewForbiddenError("Host reconnection grace period expired")
	}

	r.HostConnectionID = newConnectionID
	r.HostDisconnectedAt = nil
	r.HostToken = newToken
	r.HostTokenCreatedAt = now
	return nil
}

func (r *Room) tokenTTL() time.Duration {
	if r.TokenTTL <= 0 {
		return DefaultTokenTTL
	}
	return r.TokenTTL
}

// --- game flow ---

// StartGame validates the host start request: waiting state, at least one
// player. The state transition itself happens via SetQuizSnapshot/SetState.
func (r *Room) StartGame(requesterID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.requireHost(requesterID); err != nil {
		return err
	}
	if r.State != StateWaitingPlayers {
		return NewValidationError("Game has already started")
	}
	if len(r.players) == 0 {
		return NewValidationError("Cannot start a game with no players")
	}
	return nil
}

// SetQuizSnapshot freezes the quiz for this game. Exactly once per room.
func (r *Room) SetQuizSnapshot(quiz *Quiz, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.quizSnapshot != nil {
		return NewConflictError("Quiz snapshot already set")
	}
	r.quizSnapshot = NewQuizSnapshot(quiz)
	t := now
	r.GameStartedAt = &t
	return nil
}

// HasQuizSnapshot reports whether the game has started with a frozen quiz.
func (r *Room) HasQuizSnapshot() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.quizSnapshot != nil
}

// Snapshot returns the frozen quiz snapshot, or nil before the game starts.
// The snapshot itself is immutable, so sharing the pointer is safe.
func (r *Room) Snapshot() *QuizSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.quizSnapshot
}

// CurrentQuestion returns a copy of the question at the current index.
func (r *Room) CurrentQuestion() *Question {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.quizSnapshot == nil {
		return nil
	}
	return r.quizSnapshot.Question(r.CurrentQuestionIndex)
}

// SetState applies a transition, permitted only by the transition table.
func (r *Room) SetState(newState RoomState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.setStateLocked(newState)
}

func (r *Room) setStateLocked(newState RoomState) error {
	for _, allowed := range stateTransitions[r.State] {
		if allowed == newState {
			r.State = newState
			return nil
		}
	}
	return NewValidationError("Illegal state transition %s -> %s", r.State, newState)
}

// NextQuestion advances to the next question or, when the last question has
// been played, to PODIUM. Returns true while more questions remain.
func (r *Room) NextQuestion(requesterID string, totalQuestions int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.requireHost(requesterID); err != nil {
		return false, err
	}
	if r.CurrentQuestionIndex >= totalQuestions-1 {
		if err := r.setStateLocked(StatePodium); err != nil {
			return false, err
		}
		return false, nil
	}
	if err := r.setStateLocked(StateQuestionIntro); err != nil {
		return false, err
	}
	r.CurrentQuestionIndex++
	return true, nil
}

// Pause suspends the game from LEADERBOARD, remembering the prior state.
func (r *Room) Pause(requesterID string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.requireHost(requesterID); err != nil {
		return err
	}
	prior := r.State
	if err := r.setStateLocked(StatePaused); err != nil {
		return err
	}
	t := now
	r.PausedAt = &t
	r.pausedFromState = prior
	return nil
}

// Resume restores the state the game was paused from.
func (r *Room) Resume(requesterID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.requireHost(requesterID); err != nil {
		return err
	}
	if r.State != StatePaused {
		return NewValidationError("Game is not paused")
	}
	restored := r.pausedFromState
	if restored == "" {
		restored = StateLeaderboard
	}
	if err := r.setStateLocked(restored); err != nil {
		return err
	}
	r.PausedAt = nil
	r.pausedFromState = ""
	return nil
}

// PausedFromState reports the state the room will resume into.
func (r *Room) PausedFromState() RoomState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.pausedFromState
}

func (r *Room) requireHost(requesterID string) error {
	if requesterID == ServerPrincipal {
		return nil
	}
	if requesterID != r.HostConnectionID {
		return NewForbiddenError("Only the host can perform this action")
	}
	return nil
}

// RequireHost is the exported host check for use-case level guards.
func (r *Room) RequireHost(requesterID string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.requireHost(requesterID)
}

// --- moderation ---

// KickPlayer removes a player by id at the host's request.
func (r *Room) KickPlayer(playerID, requesterID string) (*Player, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.requireHost(requesterID); err != nil {
		return nil, err
	}
	for i, p := range r.players {
		if p.ID == playerID {
			r.players = append(r.players[:i], r.players[i+1:]...)
			return p, nil
		}
	}
	return nil, NewNotFoundError("Player not found")
}

// BanPlayer kicks a player and bans their normalised nickname.
func (r *Room) BanPlayer(playerID, requesterID string) (*Player, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.requireHost(requesterID); err != nil {
		return nil, err
	}
	for i, p := range r.players {
		if p.ID == playerID {
			r.players = append(r.players[:i], r.players[i+1:]...)
			r.bannedNicknames[NormalizeNickname(p.Nickname)] = true
			return p, nil
		}
	}
	return nil, NewNotFoundError("Player not found")
}

// UnbanNickname lifts a ban, host only.
func (r *Room) UnbanNickname(nickname, requesterID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.requireHost(requesterID); err != nil {
		return err
	}
	delete(r.bannedNicknames, NormalizeNickname(nickname))
	return nil
}

// BannedNicknames returns the normalised ban list.
func (r *Room) BannedNicknames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.bannedNicknames))
	for nick := range r.bannedNicknames {
		out = append(out, nick)
	}
	return out
}

// --- answering ---

// ClearAllAnswerAttempts resets every player's open attempt. Called when
// the room enters ANSWERING_PHASE.
func (r *Room) ClearAllAnswerAttempts() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.players {
		p.AnswerAttempt = nil
	}
}

// ApplyAnswer records a player's answer for the current question: it
// validates phase, membership and bounds, computes the authoritative score,
// mutates the player and appends the immutable history record. elapsedMs
// must come from the server timer, never from the client.
func (r *Room) ApplyAnswer(connectionID string, answerIndex, elapsedMs int, now time.Time) (*AnswerRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.State != StateAnsweringPhase {
		return nil, NewValidationError("Not in answering phase")
	}
	if r.quizSnapshot == nil {
		return nil, NewValidationError("Game has not started")
	}

	var player *Player
	for _, p := range r.players {
		if p.ConnectionID == connectionID {
			player = p
			break
		}
	}
	if player == nil {
		return nil, NewNotFoundError("Player not found in room")
	}
	if !player.IsConnected() {
		return nil, NewForbiddenError("Disconnected players cannot answer")
	}
	if player.AnswerAttempt != nil {
		return nil, NewConflictError("Already answered")
	}

	question := r.quizSnapshot.Question(r.CurrentQuestionIndex)
	if question == nil {
		return nil, NewNotFoundError("No question at index %d", r.CurrentQuestionIndex)
	}
	if answerIndex < 0 || answerIndex >= len(question.Options) {
		return nil, NewValidationError("Answer index %d out of range", answerIndex)
	}

	limitMs := question.TimeLimitMs()
	if elapsedMs > limitMs {
		elapsedMs = limitMs
	}

	isCorrect := answerIndex == question.CorrectAnswerIndex
	base, bonus := 0, 0
	if isCorrect {
		base = BaseScore(question.Points, elapsedMs, limitMs)
		bonus = StreakBonus(player.Streak)
		player.RecordCorrect(base + bonus)
	} else {
		player.RecordWrong()
	}

	player.AnswerAttempt = &AnswerAttempt{
		AnswerIndex: answerIndex,
		ElapsedMs:   elapsedMs,
		SubmittedAt: now,
	}

	record := AnswerRecord{
		PlayerID:      player.ID,
		Nickname:      player.Nickname,
		QuestionIndex: r.CurrentQuestionIndex,
		AnswerIndex:   answerIndex,
		IsCorrect:     isCorrect,
		ElapsedMs:     elapsedMs,
		BaseScore:     base,
		BonusScore:    bonus,
		SubmittedAt:   now,
	}
	r.answerHistory = append(r.answerHistory, record)
	return &record, nil
}

// RecordAnswer appends an externally built record, rejecting duplicates for
// the same (player, question) pair.
func (r *Room) RecordAnswer(record AnswerRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.answerHistory {
		if existing.PlayerID == record.PlayerID && existing.QuestionIndex == record.QuestionIndex {
			return NewConflictError("Answer already recorded for this question")
		}
	}
	r.answerHistory = append(r.answerHistory, record)
	return nil
}

// AnswerHistory returns a copy of the history.
func (r *Room) AnswerHistory() []AnswerRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]AnswerRecord, len(r.answerHistory))
	copy(out, r.answerHistory)
	return out
}

// GetAnswerDistribution tallies the current question's answers. Answers with
// out-of-range indices count as skipped.
func (r *Room) GetAnswerDistribution(optionCount int, isCorrect func(int) bool) AnswerDistribution {
	r.mu.RLock()
	defer r.mu.RUnlock()

	dist := AnswerDistribution{Distribution: make([]int, optionCount)}
	for _, rec := range r.answerHistory {
		if rec.QuestionIndex != r.CurrentQuestionIndex {
			continue
		}
		if rec.AnswerIndex < 0 || rec.AnswerIndex >= optionCount {
			dist.SkippedCount++
			continue
		}
		dist.Distribution[rec.AnswerIndex]++
		if isCorrect(rec.AnswerIndex) {
			dist.CorrectCount++
		}
	}
	return dist
}

// HaveAllPlayersAnswered reports whether every connected player holds an
// answer attempt. Disconnected players are ignored.
func (r *Room) HaveAllPlayersAnswered() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	connected := 0
	for _, p := range r.players {
		if !p.IsConnected() {
			continue
		}
		connected++
		if p.AnswerAttempt == nil {
			return false
		}
	}
	return connected > 0
}

// AnsweredCount returns how many players have answered the current question.
func (r *Room) AnsweredCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, p := range r.players {
		if p.AnswerAttempt != nil {
			count++
		}
	}
	return count
}

// --- rankings ---

// GetLeaderboard returns players sorted by score descending, ties broken by
// join order. Rank is 1-based.
func (r *Room) GetLeaderboard() []LeaderboardEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.leaderboardLocked()
}

func (r *Room) leaderboardLocked() []LeaderboardEntry {
	sorted := make([]*Player, len(r.players))
	copy(sorted, r.players)
	// Stable insertion sort keeps join order for equal scores.
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j].Score > sorted[j-1].Score; j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}

	entries := make([]LeaderboardEntry, len(sorted))
	for i, p := range sorted {
		entries[i] = LeaderboardEntry{
			Rank:           i + 1,
			PlayerID:       p.ID,
			Nickname:       p.Nickname,
			Score:          p.Score,
			Streak:         p.Streak,
			CorrectAnswers: p.CorrectAnswersCount,
		}
	}
	return entries
}

// GetPodium returns the top three leaderboard entries.
func (r *Room) GetPodium() []LeaderboardEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entries := r.leaderboardLocked()
	if len(entries) > 3 {
		entries = entries[:3]
	}
	return entries
}

// --- lookups ---

// PlayerByConnection finds a player by transport handle.
func (r *Room) PlayerByConnection(connectionID string) *Player {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.players {
		if p.ConnectionID == connectionID {
			return p
		}
	}
	return nil
}

// PlayerByID finds a player by durable id.
func (r *Room) PlayerByID(playerID string) *Player {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.players {
		if p.ID == playerID {
			return p
		}
	}
	return nil
}

// SpectatorByConnection finds a spectator by transport handle.
func (r *Room) SpectatorByConnection(connectionID string) *Spectator {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.spectators {
		if s.ConnectionID == connectionID {
			return s
		}
	}
	return nil
}

// Players returns a snapshot of the player list.
func (r *Room) Players() []*Player {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Player, len(r.players))
	copy(out, r.players)
	return out
}

// Spectators returns a snapshot of the spectator list.
func (r *Room) Spectators() []*Spectator {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Spectator, len(r.spectators))
	copy(out, r.spectators)
	return out
}

// PlayerCount returns the number of players, connected or not.
func (r *Room) PlayerCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.players)
}

// ConnectedPlayerCount returns the number of players with live transports.
func (r *Room) ConnectedPlayerCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	count := 0
	for _, p := range r.players {
		if p.IsConnected() {
			count++
		}
	}
	return count
}

// SpectatorCount returns the number of spectators.
func (r *Room) SpectatorCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.spectators)
}

// HostConnected reports whether the host transport is live.
func (r *Room) HostConnected() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.HostDisconnectedAt == nil
}

// HostDisconnectedFor returns the host disconnect duration, or zero.
func (r *Room) HostDisconnectedFor(now time.Time) time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.HostDisconnectedAt == nil {
		return 0
	}
	return now.Sub(*r.HostDisconnectedAt)
}

// ConnectionIDs returns every live transport handle in the room, host first.
func (r *Room) ConnectionIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.players)+len(r.spectators)+1)
	if r.HostDisconnectedAt == nil && r.HostConnectionID != "" {
		ids = append(ids, r.HostConnectionID)
	}
	for _, p := range r.players {
		if p.IsConnected() {
			ids = append(ids, p.ConnectionID)
		}
	}
	for _, s := range r.spectators {
		if s.IsConnected() {
			ids = append(ids, s.ConnectionID)
		}
	}
	return ids
}

// --- cleanup support ---

// RemoveStaleDisconnectedPlayers drops players whose disconnect outlived the
// grace period and returns them.
func (r *Room) RemoveStaleDisconnectedPlayers(grace time.Duration, now time.Time) []*Player {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed []*Player
	kept := r.players[:0]
	for _, p := range r.players {
		if p.DisconnectedAt != nil && now.Sub(*p.DisconnectedAt) > grace {
			removed = append(removed, p)
			continue
		}
		kept = append(kept, p)
	}
	r.players = kept
	return removed
}

// GetDisconnectedPlayers returns players currently without a transport.
func (r *Room) GetDisconnectedPlayers() []*Player {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Player
	for _, p := range r.players {
		if !p.IsConnected() {
			out = append(out, p)
		}
	}
	return out
}

// InActiveGame reports whether the room is mid-game (anything between
// QUESTION_INTRO and PAUSED inclusive).
func (r *Room) InActiveGame() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	switch r.State {
	case StateQuestionIntro, StateAnsweringPhase, StateShowResults, StateLeaderboard, StatePaused:
		return true
	}
	return false
}

// CurrentState returns the room state.
func (r *Room) CurrentState() RoomState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.State
}

// QuestionIndex returns the current question index.
func (r *Room) QuestionIndex() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.CurrentQuestionIndex
}

// PlayerTokens returns every live player and spectator reconnect token.
// Used by the registry to keep its secondary indexes consistent.
func (r *Room) PlayerTokens() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tokens := make([]string, 0, len(r.players)+len(r.spectators))
	for _, p := range r.players {
		tokens = append(tokens, p.Token)
	}
	for _, s := range r.spectators {
		tokens = append(tokens, s.Token)
	}
	return tokens
}
