// services/game_usecases.go - Transactional game flow operations
package services

import (
	"context"
	"log"
	"time"

	"quizparty/config"
	"quizparty/models"
)

// GameUseCases orchestrates game flow atop the Room aggregate. Two lock
// maps guard the race-prone paths: pendingAnswers (pin:connectionId) and
// pendingArchives (pin), both with a 10 s timeout; acquiring an expired
// lock succeeds.
type GameUseCases struct {
	registry        *RoomRegistry
	quizRepo        QuizRepository
	sessionRepo     GameSessionRepository
	userRepo        UserRepository
	pendingAnswers  *LockTable
	pendingArchives *LockTable
	cfg             *config.Config
}

// NewGameUseCases wires the game use-cases.
func NewGameUseCases(registry *RoomRegistry, quizRepo QuizRepository, sessionRepo GameSessionRepository, userRepo UserRepository, cfg *config.Config) *GameUseCases {
	return &GameUseCases{
		registry:        registry,
		quizRepo:        quizRepo,
		sessionRepo:     sessionRepo,
		userRepo:        userRepo,
		pendingAnswers:  NewLockTable(cfg.LockTimeout),
		pendingArchives: NewLockTable(cfg.LockTimeout),
		cfg:             cfg,
	}
}

// StartGameResult is returned after a successful game start.
type StartGameResult struct {
	Room           *models.Room
	TotalQuestions int
	HostQuestion   map[string]interface{}
	PublicQuestion map[string]interface{}
}

// StartGame freezes the quiz into the room and moves it to QUESTION_INTRO.
// The play-count increment is best-effort.
func (uc *GameUseCases) StartGame(ctx context.Context, pin, requesterID string) (*StartGameResult, error) {
	room := uc.registry.Get(pin)
	if room == nil {
		return nil, models.NewNotFoundError("Room not found")
	}

	quiz, err := uc.quizRepo.FindByID(ctx, room.QuizID)
	if err != nil {
		return nil, err
	}
	if quiz == nil {
		return nil, models.NewNotFoundError("Quiz not found")
	}
	if err := quiz.Validate(); err != nil {
		return nil, err
	}
	if room.ConnectedPlayerCount() == 0 {
		return nil, models.NewValidationError("Cannot start a game with no connected players")
	}

	if err := room.StartGame(requesterID); err != nil {
		return nil, err
	}
	if err := room.SetQuizSnapshot(quiz, time.Now()); err != nil {
		return nil, err
	}
	if err := room.SetState(models.StateQuestionIntro); err != nil {
		return nil, err
	}
	uc.registry.Save(room)

	if err := uc.quizRepo.IncrementPlayCount(ctx, quiz.ID); err != nil {
		log.Printf("⚠️ Failed to increment play count for quiz %s: %v", quiz.ID, err)
	}

	snapshot := room.Snapshot()
	first := snapshot.Question(0)
	log.Printf("🎮 Game started in room %s (%d questions)", pin, snapshot.Len())
	return &StartGameResult{
		Room:           room,
		TotalQuestions: snapshot.Len(),
		HostQuestion:   first.HostView(0, snapshot.Len()),
		PublicQuestion: first.PublicView(0, snapshot.Len()),
	}, nil
}

// AnsweringPhaseResult describes the question now open for answers.
type AnsweringPhaseResult struct {
	Room          *models.Room
	QuestionIndex int
	TimeLimit     int // seconds
	OptionCount   int
}

// StartAnsweringPhase opens the current question for answers. Accepted from
// QUESTION_INTRO directly or from LEADERBOARD (stepping through
// QUESTION_INTRO). Clears every answer attempt and the room's pending
// answer locks.
func (uc *GameUseCases) StartAnsweringPhase(ctx context.Context, pin, requesterID string) (*AnsweringPhaseResult, error) {
	room := uc.registry.Get(pin)
	if room == nil {
		return nil, models.NewNotFoundError("Room not found")
	}
	if err := room.RequireHost(requesterID); err != nil {
		return nil, err
	}

	if room.CurrentState() == models.StateLeaderboard {
		if err := room.SetState(models.StateQuestionIntro); err != nil {
			return nil, err
		}
	}
	if err := room.SetState(models.StateAnsweringPhase); err != nil {
		return nil, err
	}

	room.ClearAllAnswerAttempts()
	uc.pendingAnswers.ReleaseByPrefix(pin + ":")
	uc.registry.Save(room)

	question := room.CurrentQuestion()
	if question == nil {
		return nil, models.NewNotFoundError("No question at index %d", room.QuestionIndex())
	}
	return &AnsweringPhaseResult{
		Room:          room,
		QuestionIndex: room.QuestionIndex(),
		TimeLimit:     question.TimeLimit,
		OptionCount:   len(question.Options),
	}, nil
}

// SubmitAnswerInput is a player answer. ElapsedMs must be the timer
// service's measurement, never the client's claim.
type SubmitAnswerInput struct {
	PIN          string
	ConnectionID string
	AnswerIndex  int
	ElapsedMs    int
}

// SubmitAnswerResult reports the recorded answer and round progress.
type SubmitAnswerResult struct {
	Room          *models.Room
	Record        *models.AnswerRecord
	Player        *models.Player
	AnsweredCount int
	PlayerCount   int
	AllAnswered   bool
}

// SubmitAnswer records a player's answer in four phases: shape validation,
// lock acquisition, invariant checks inside the aggregate, then the save.
// State checks happen after the lock, never before.
func (uc *GameUseCases) SubmitAnswer(ctx context.Context, in SubmitAnswerInput) (*SubmitAnswerResult, error) {
	if in.AnswerIndex < 0 {
		return nil, models.NewValidationError("Answer index must be non-negative")
	}
	if in.ElapsedMs < 0 {
		return nil, models.NewValidationError("Elapsed time must be non-negative")
	}

	lockKey := in.PIN + ":" + in.ConnectionID
	if !uc.pendingAnswers.Acquire(lockKey) {
		return nil, models.NewConflictError("Answer submission in progress")
	}
	defer uc.pendingAnswers.Release(lockKey)

	room := uc.registry.Get(in.PIN)
	if room == nil {
		return nil, models.NewNotFoundError("Room not found")
	}

	record, err := room.ApplyAnswer(in.ConnectionID, in.AnswerIndex, in.ElapsedMs, time.Now())
	if err != nil {
		return nil, err
	}
	uc.registry.Save(room)

	return &SubmitAnswerResult{
		Room:          room,
		Record:        record,
		Player:        room.PlayerByConnection(in.ConnectionID),
		AnsweredCount: room.AnsweredCount(),
		PlayerCount:   room.PlayerCount(),
		AllAnswered:   room.HaveAllPlayersAnswered(),
	}, nil
}

// RoundResults is the show_results payload.
type RoundResults struct {
	Room               *models.Room
	QuestionIndex      int
	CorrectAnswerIndex int
	Distribution       []int
	CorrectCount       int
	SkippedCount       int
	TotalPlayers       int
}

// EndAnsweringPhase closes the current question and computes the round
// results. Accepted from the host or the internal server principal (timer
// expiry, all-answered auto-end). Calling it outside ANSWERING_PHASE yields
// a benign ConflictError the dispatcher ignores.
func (uc *GameUseCases) EndAnsweringPhase(ctx context.Context, pin, requesterID string) (*RoundResults, error) {
	room := uc.registry.Get(pin)
	if room == nil {
		return nil, models.NewNotFoundError("Room not found")
	}
	if err := room.RequireHost(requesterID); err != nil {
		return nil, err
	}
	if room.CurrentState() != models.StateAnsweringPhase {
		return nil, models.NewConflictError("Not in answering phase")
	}
	if err := room.SetState(models.StateShowResults); err != nil {
		return nil, err
	}
	uc.registry.Save(room)

	question := room.CurrentQuestion()
	if question == nil {
		return nil, models.NewNotFoundError("No question at index %d", room.QuestionIndex())
	}
	dist := room.GetAnswerDistribution(len(question.Options), func(i int) bool {
		return i == question.CorrectAnswerIndex
	})

	return &RoundResults{
		Room:               room,
		QuestionIndex:      room.QuestionIndex(),
		CorrectAnswerIndex: question.CorrectAnswerIndex,
		Distribution:       dist.Distribution,
		CorrectCount:       dist.CorrectCount,
		SkippedCount:       dist.SkippedCount,
		TotalPlayers:       room.PlayerCount(),
	}, nil
}

// ShowLeaderboard moves the room to LEADERBOARD and returns the ranking.
func (uc *GameUseCases) ShowLeaderboard(ctx context.Context, pin, requesterID string) ([]models.LeaderboardEntry, error) {
	room := uc.registry.Get(pin)
	if room == nil {
		return nil, models.NewNotFoundError("Room not found")
	}
	if err := room.RequireHost(requesterID); err != nil {
		return nil, err
	}
	if err := room.SetState(models.StateLeaderboard); err != nil {
		return nil, err
	}
	uc.registry.Save(room)
	return room.GetLeaderboard(), nil
}

// NextQuestionResult describes the advance outcome: another question or the
// podium.
type NextQuestionResult struct {
	Room           *models.Room
	HasMore        bool
	QuestionIndex  int
	TotalQuestions int
	HostQuestion   map[string]interface{}
	PublicQuestion map[string]interface{}
	Podium         []models.LeaderboardEntry
}

// NextQuestion advances to the next question or ends the game at PODIUM.
func (uc *GameUseCases) NextQuestion(ctx context.Context, pin, requesterID string) (*NextQuestionResult, error) {
	room := uc.registry.Get(pin)
	if room == nil {
		return nil, models.NewNotFoundError("Room not found")
	}
	snapshot := room.Snapshot()
	if snapshot == nil {
		return nil, models.NewValidationError("Game has not started")
	}

	hasMore, err := room.NextQuestion(requesterID, snapshot.Len())
	if err != nil {
		return nil, err
	}
	uc.registry.Save(room)

	if !hasMore {
		log.Printf("🏁 Room %s reached the podium", pin)
		return &NextQuestionResult{
			Room:           room,
			HasMore:        false,
			TotalQuestions: snapshot.Len(),
			Podium:         room.GetPodium(),
		}, nil
	}

	index := room.QuestionIndex()
	question := snapshot.Question(index)
	return &NextQuestionResult{
		Room:           room,
		HasMore:        true,
		QuestionIndex:  index,
		TotalQuestions: snapshot.Len(),
		HostQuestion:   question.HostView(index, snapshot.Len()),
		PublicQuestion: question.PublicView(index, snapshot.Len()),
	}, nil
}

// GetResults returns the current leaderboard and podium without a state
// change.
func (uc *GameUseCases) GetResults(ctx context.Context, pin string) ([]models.LeaderboardEntry, []models.LeaderboardEntry, error) {
	room := uc.registry.Get(pin)
	if room == nil {
		return nil, nil, models.NewNotFoundError("Room not found")
	}
	return room.GetLeaderboard(), room.GetPodium(), nil
}

// PauseGame suspends the game from LEADERBOARD.
func (uc *GameUseCases) PauseGame(ctx context.Context, pin, requesterID string) error {
	room := uc.registry.Get(pin)
	if room == nil {
		return models.NewNotFoundError("Room not found")
	}
	if err := room.Pause(requesterID, time.Now()); err != nil {
		return err
	}
	uc.registry.Save(room)
	return nil
}

// ResumeGame restores the paused-from state.
func (uc *GameUseCases) ResumeGame(ctx context.Context, pin, requesterID string) error {
	room := uc.registry.Get(pin)
	if room == nil {
		return models.NewNotFoundError("Room not found")
	}
	if err := room.Resume(requesterID); err != nil {
		return err
	}
	uc.registry.Save(room)
	return nil
}

// ArchiveGame persists the finished game and deletes the room. A missing
// room is tolerated: a concurrent deleter may have won.
func (uc *GameUseCases) ArchiveGame(ctx context.Context, pin string) (*models.GameSession, error) {
	if !uc.pendingArchives.Acquire(pin) {
		return nil, models.NewConflictError("Archive already in progress")
	}
	defer uc.pendingArchives.Release(pin)

	room := uc.registry.Get(pin)
	if room == nil {
		return nil, nil
	}

	session, err := uc.buildSession(ctx, room, models.SessionCompleted, "")
	if err != nil {
		return nil, err
	}
	if err := uc.sessionRepo.Save(ctx, session); err != nil {
		return nil, err
	}

	uc.pendingAnswers.ReleaseByPrefix(pin + ":")
	uc.registry.Delete(pin)
	log.Printf("📊 Archived game %s (%d players)", pin, session.PlayerCount)
	return session, nil
}

// SaveInterruptedInput names the room and why it is being torn down.
type SaveInterruptedInput struct {
	PIN    string
	Reason string
}

// SaveInterruptedGame archives an unfinished game with its interruption
// context, then deletes the room. A room that never started (no snapshot)
// is deleted without an archive.
func (uc *GameUseCases) SaveInterruptedGame(ctx context.Context, in SaveInterruptedInput) (*models.GameSession, error) {
	if !uc.pendingArchives.Acquire(in.PIN) {
		return nil, models.NewConflictError("Archive already in progress")
	}
	defer uc.pendingArchives.Release(in.PIN)

	room := uc.registry.Get(in.PIN)
	if room == nil {
		return nil, nil
	}
	if !room.HasQuizSnapshot() {
		uc.registry.Delete(in.PIN)
		return nil, nil
	}

	session, err := uc.buildSession(ctx, room, models.SessionInterrupted, in.Reason)
	if err != nil {
		return nil, err
	}
	if err := uc.sessionRepo.Save(ctx, session); err != nil {
		return nil, err
	}

	uc.pendingAnswers.ReleaseByPrefix(in.PIN + ":")
	uc.registry.Delete(in.PIN)
	log.Printf("📊 Archived interrupted game %s (reason: %s)", in.PIN, in.Reason)
	return session, nil
}

// buildSession assembles the immutable archive record from the room's
// history and leaderboard.
func (uc *GameUseCases) buildSession(ctx context.Context, room *models.Room, status, reason string) (*models.GameSession, error) {
	now := time.Now()
	history := room.AnswerHistory()
	leaderboard := room.GetLeaderboard()

	if user, err := uc.userRepo.FindByID(ctx, room.HostUserID); err != nil {
		log.Printf("⚠️ Host lookup failed for room %s: %v", room.PIN, err)
	} else if user == nil {
		log.Printf("⚠️ Host %s not found while archiving room %s", room.HostUserID, room.PIN)
	}

	perPlayer := make(map[string]*struct {
		wrong   int
		totalMs int
		count   int
	})
	for _, rec := range history {
		agg := perPlayer[rec.PlayerID]
		if agg == nil {
			agg = &struct {
				wrong   int
				totalMs int
				count   int
			}{}
			perPlayer[rec.PlayerID] = agg
		}
		if !rec.IsCorrect {
			agg.wrong++
		}
		agg.totalMs += rec.ElapsedMs
		agg.count++
	}

	results := make([]models.PlayerResult, len(leaderboard))
	for i, entry := range leaderboard {
		result := models.PlayerResult{
			Rank:           entry.Rank,
			PlayerID:       entry.PlayerID,
			Nickname:       entry.Nickname,
			Score:          entry.Score,
			CorrectAnswers: entry.CorrectAnswers,
		}
		if agg := perPlayer[entry.PlayerID]; agg != nil {
			result.WrongAnswers = agg.wrong
			if agg.count > 0 {
				result.AverageResponseTimeMs = agg.totalMs / agg.count
				result.Accuracy = float64(entry.CorrectAnswers) / float64(agg.count)
			}
		}
		if player := room.PlayerByID(entry.PlayerID); player != nil {
			result.LongestStreak = player.LongestStreak
		}
		results[i] = result
	}

	answers := make([]models.ArchivedAnswer, len(history))
	for i, rec := range history {
		answers[i] = models.ArchivedAnswer{
			PlayerID:       rec.PlayerID,
			Nickname:       rec.Nickname,
			QuestionIndex:  rec.QuestionIndex,
			AnswerIndex:    rec.AnswerIndex,
			IsCorrect:      rec.IsCorrect,
			ResponseTimeMs: rec.ElapsedMs,
			Score:          rec.BaseScore + rec.BonusScore,
		}
	}

	startedAt := room.CreatedAt
	if room.GameStartedAt != nil {
		startedAt = *room.GameStartedAt
	}

	session := &models.GameSession{
		PIN:             room.PIN,
		QuizID:          room.QuizID,
		HostUserID:      room.HostUserID,
		PlayerCount:     room.PlayerCount(),
		StartedAt:       startedAt,
		EndedAt:         now,
		DurationSeconds: int(now.Sub(startedAt).Seconds()),
		Status:          status,
	}
	if status == models.SessionInterrupted {
		index := room.QuestionIndex()
		session.InterruptionReason = reason
		session.LastQuestionIndex = &index
		session.LastState = room.CurrentState()
	}
	if err := session.SetPlayerResults(results); err != nil {
		return nil, err
	}
	if err := session.SetAnswers(answers); err != nil {
		return nil, err
	}
	return session, nil
}

// PendingAnswers exposes the pending-answer lock table for the cleanup
// sweep.
func (uc *GameUseCases) PendingAnswers() *LockTable {
	return uc.pendingAnswers
}

// PendingArchives exposes the pending-archive lock table for the cleanup
// sweep.
func (uc *GameUseCases) PendingArchives() *LockTable {
	return uc.pendingArchives
}
