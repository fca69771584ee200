package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quizparty/config"
	"quizparty/models"
)

// --- in-memory fakes ---

type fakeQuizRepo struct {
	mu      sync.Mutex
	quizzes map[string]*models.Quiz
	plays   map[string]int
}

func newFakeQuizRepo(quizzes ...*models.Quiz) *fakeQuizRepo {
	repo := &fakeQuizRepo{
		quizzes: make(map[string]*models.Quiz),
		plays:   make(map[string]int),
	}
	for _, q := range quizzes {
		repo.quizzes[q.ID] = q
	}
	return repo
}

func (r *fakeQuizRepo) FindByID(ctx context.Context, id string) (*models.Quiz, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.quizzes[id], nil
}

func (r *fakeQuizRepo) IncrementPlayCount(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plays[id]++
	return nil
}

type fakeSessionRepo struct {
	mu    sync.Mutex
	saved []*models.GameSession
}

func (r *fakeSessionRepo) Save(ctx context.Context, session *models.GameSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saved = append(r.saved, session)
	return nil
}

func (r *fakeSessionRepo) FindByHost(ctx context.Context, hostUserID string, page, limit int) ([]models.GameSession, int64, error) {
	return nil, 0, nil
}

func (r *fakeSessionRepo) FindByQuiz(ctx context.Context, quizID string, page, limit int) ([]models.GameSession, int64, error) {
	return nil, 0, nil
}

func (r *fakeSessionRepo) GetRecent(ctx context.Context, limit int) ([]models.GameSession, error) {
	return nil, nil
}

func (r *fakeSessionRepo) DeleteByQuiz(ctx context.Context, quizID string) (int64, error) {
	return 0, nil
}

func (r *fakeSessionRepo) DeleteByHost(ctx context.Context, hostUserID string) (int64, error) {
	return 0, nil
}

func (r *fakeSessionRepo) last() *models.GameSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.saved) == 0 {
		return nil
	}
	return r.saved[len(r.saved)-1]
}

type fakeUserRepo struct{}

func (r *fakeUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	return &models.User{ID: id, Username: "host"}, nil
}

// --- fixtures ---

func testConfig() *config.Config {
	return &config.Config{
		HostGrace:        time.Minute,
		PlayerGrace:      2 * time.Minute,
		EmptyRoomTimeout: 5 * time.Minute,
		IdleRoomTimeout:  time.Hour,
		CleanupInterval:  30 * time.Second,
		LockTimeout:      10 * time.Second,
		TokenTTL:         24 * time.Hour,
		MaxPlayers:       50,
		MaxSpectators:    10,
		MaxQuestions:     50,
	}
}

func usecaseQuiz(questions int) *models.Quiz {
	quiz := &models.Quiz{ID: "quiz-1", Title: "Capitals", OwnerID: "host-user"}
	for i := 0; i < questions; i++ {
		quiz.Questions = append(quiz.Questions, models.Question{
			ID:                 fmt.Sprintf("q%d", i),
			Text:               fmt.Sprintf("Question %d", i),
			Type:               models.QuestionMultipleChoice,
			Options:            []string{"A", "B", "C", "D"},
			CorrectAnswerIndex: 1,
			TimeLimit:          30,
			Points:             1000,
		})
	}
	return quiz
}

type stack struct {
	registry *RoomRegistry
	rooms    *RoomUseCases
	games    *GameUseCases
	quizzes  *fakeQuizRepo
	sessions *fakeSessionRepo
	cfg      *config.Config
}

func newStack(questions int) *stack {
	registry := NewRoomRegistry()
	quizzes := newFakeQuizRepo(usecaseQuiz(questions))
	sessions := &fakeSessionRepo{}
	cfg := testConfig()
	return &stack{
		registry: registry,
		rooms:    NewRoomUseCases(registry, quizzes, cfg),
		games:    NewGameUseCases(registry, quizzes, sessions, &fakeUserRepo{}, cfg),
		quizzes:  quizzes,
		sessions: sessions,
		cfg:      cfg,
	}
}

// createJoinedRoom opens a room and admits n players.
func (s *stack) createJoinedRoom(t *testing.T, n int) (*models.Room, []*models.Player) {
	t.Helper()
	ctx := context.Background()

	created, err := s.rooms.CreateRoom(ctx, "host-user", "quiz-1", "host-conn")
	require.NoError(t, err)

	players := make([]*models.Player, 0, n)
	for i := 1; i <= n; i++ {
		joined, err := s.rooms.JoinRoom(ctx, JoinRoomInput{
			PIN:          created.Room.PIN,
			Nickname:     fmt.Sprintf("Player%d", i),
			ConnectionID: fmt.Sprintf("conn-%d", i),
		})
		require.NoError(t, err)
		players = append(players, joined.Player)
	}
	return created.Room, players
}

// startAnswering drives a fresh room into ANSWERING_PHASE.
func (s *stack) startAnswering(t *testing.T, pin string) {
	t.Helper()
	ctx := context.Background()
	_, err := s.games.StartGame(ctx, pin, "host-conn")
	require.NoError(t, err)
	_, err = s.games.StartAnsweringPhase(ctx, pin, "host-conn")
	require.NoError(t, err)
}

// --- tests ---

func TestCreateRoom(t *testing.T) {
	s := newStack(2)
	ctx := context.Background()

	result, err := s.rooms.CreateRoom(ctx, "host-user", "quiz-1", "host-conn")
	require.NoError(t, err)
	assert.Regexp(t, `^\d{6}$`, result.Room.PIN)
	assert.NotEmpty(t, result.HostToken)
	assert.Equal(t, models.StateWaitingPlayers, result.Room.CurrentState())
	assert.Same(t, result.Room, s.registry.Get(result.Room.PIN))

	_, err = s.rooms.CreateRoom(ctx, "host-user", "missing-quiz", "host-conn-2")
	assert.True(t, models.IsKind(err, models.KindNotFound))
}

func TestJoinRoomNicknameConflict(t *testing.T) {
	s := newStack(2)
	room, _ := s.createJoinedRoom(t, 1)

	_, err := s.rooms.JoinRoom(context.Background(), JoinRoomInput{
		PIN:          room.PIN,
		Nickname:     "player1",
		ConnectionID: "conn-dup",
	})
	assert.True(t, models.IsKind(err, models.KindConflict))
}

func TestStartGame(t *testing.T) {
	s := newStack(3)
	room, _ := s.createJoinedRoom(t, 2)

	result, err := s.games.StartGame(context.Background(), room.PIN, "host-conn")
	require.NoError(t, err)
	assert.Equal(t, 3, result.TotalQuestions)
	assert.Equal(t, models.StateQuestionIntro, room.CurrentState())
	assert.Contains(t, result.HostQuestion, "correct_answer_index")
	assert.NotContains(t, result.PublicQuestion, "correct_answer_index")
	assert.Equal(t, 1, s.quizzes.plays["quiz-1"])

	// Starting twice fails: the room already left WAITING_PLAYERS.
	_, err = s.games.StartGame(context.Background(), room.PIN, "host-conn")
	assert.Error(t, err)
}

func TestStartGameRequiresConnectedPlayer(t *testing.T) {
	s := newStack(1)
	room, _ := s.createJoinedRoom(t, 1)
	room.SetPlayerDisconnected("conn-1", time.Now())

	_, err := s.games.StartGame(context.Background(), room.PIN, "host-conn")
	assert.True(t, models.IsKind(err, models.KindValidation))
}

func TestStartAnsweringPhaseFromLeaderboard(t *testing.T) {
	s := newStack(2)
	room, _ := s.createJoinedRoom(t, 1)
	ctx := context.Background()
	s.startAnswering(t, room.PIN)

	_, err := s.games.SubmitAnswer(ctx, SubmitAnswerInput{
		PIN: room.PIN, ConnectionID: "conn-1", AnswerIndex: 1, ElapsedMs: 1000,
	})
	require.NoError(t, err)
	_, err = s.games.EndAnsweringPhase(ctx, room.PIN, "host-conn")
	require.NoError(t, err)
	_, err = s.games.ShowLeaderboard(ctx, room.PIN, "host-conn")
	require.NoError(t, err)
	_, err = s.games.NextQuestion(ctx, room.PIN, "host-conn")
	require.NoError(t, err)
	_, err = s.games.ShowLeaderboard(ctx, room.PIN, "host-conn")
	require.Error(t, err, "leaderboard straight from intro is illegal")

	// From LEADERBOARD the answering phase opens by stepping through the
	// intro state.
	require.NoError(t, room.SetState(models.StateAnsweringPhase))
	require.NoError(t, room.SetState(models.StateShowResults))
	require.NoError(t, room.SetState(models.StateLeaderboard))
	result, err := s.games.StartAnsweringPhase(ctx, room.PIN, "host-conn")
	require.NoError(t, err)
	assert.Equal(t, models.StateAnsweringPhase, room.CurrentState())
	assert.Equal(t, 30, result.TimeLimit)
}

func TestSubmitAnswerFlow(t *testing.T) {
	s := newStack(1)
	room, _ := s.createJoinedRoom(t, 2)
	ctx := context.Background()
	s.startAnswering(t, room.PIN)

	result, err := s.games.SubmitAnswer(ctx, SubmitAnswerInput{
		PIN: room.PIN, ConnectionID: "conn-1", AnswerIndex: 1, ElapsedMs: 1000,
	})
	require.NoError(t, err)
	assert.True(t, result.Record.IsCorrect)
	assert.Equal(t, 983, result.Record.BaseScore)
	assert.Equal(t, 1, result.AnsweredCount)
	assert.False(t, result.AllAnswered)

	// Same player again is a conflict.
	_, err = s.games.SubmitAnswer(ctx, SubmitAnswerInput{
		PIN: room.PIN, ConnectionID: "conn-1", AnswerIndex: 2, ElapsedMs: 2000,
	})
	assert.True(t, models.IsKind(err, models.KindConflict))

	result, err = s.games.SubmitAnswer(ctx, SubmitAnswerInput{
		PIN: room.PIN, ConnectionID: "conn-2", AnswerIndex: 0, ElapsedMs: 5000,
	})
	require.NoError(t, err)
	assert.False(t, result.Record.IsCorrect)
	assert.True(t, result.AllAnswered)
}

func TestSubmitAnswerHeldLockConflicts(t *testing.T) {
	s := newStack(1)
	room, _ := s.createJoinedRoom(t, 1)
	s.startAnswering(t, room.PIN)

	// Simulate an in-flight submission holding the lock.
	require.True(t, s.games.PendingAnswers().Acquire(room.PIN+":conn-1"))

	_, err := s.games.SubmitAnswer(context.Background(), SubmitAnswerInput{
		PIN: room.PIN, ConnectionID: "conn-1", AnswerIndex: 1, ElapsedMs: 1000,
	})
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.KindConflict))
	assert.Equal(t, "Answer submission in progress", err.Error())
}

func TestEndAnsweringPhase(t *testing.T) {
	s := newStack(1)
	room, _ := s.createJoinedRoom(t, 3)
	ctx := context.Background()
	s.startAnswering(t, room.PIN)

	for i, answer := range []int{1, 1, 3} {
		_, err := s.games.SubmitAnswer(ctx, SubmitAnswerInput{
			PIN: room.PIN, ConnectionID: fmt.Sprintf("conn-%d", i+1), AnswerIndex: answer, ElapsedMs: 1000,
		})
		require.NoError(t, err)
	}

	results, err := s.games.EndAnsweringPhase(ctx, room.PIN, models.ServerPrincipal)
	require.NoError(t, err)
	assert.Equal(t, 1, results.CorrectAnswerIndex)
	assert.Equal(t, []int{0, 2, 0, 1}, results.Distribution)
	assert.Equal(t, 2, results.CorrectCount)
	assert.Equal(t, 3, results.TotalPlayers)
	assert.Equal(t, models.StateShowResults, room.CurrentState())

	// A second closer loses benignly.
	_, err = s.games.EndAnsweringPhase(ctx, room.PIN, models.ServerPrincipal)
	assert.True(t, models.IsKind(err, models.KindConflict))
}

func TestFullGameArchives(t *testing.T) {
	s := newStack(1)
	room, _ := s.createJoinedRoom(t, 2)
	ctx := context.Background()
	s.startAnswering(t, room.PIN)

	_, err := s.games.SubmitAnswer(ctx, SubmitAnswerInput{
		PIN: room.PIN, ConnectionID: "conn-1", AnswerIndex: 1, ElapsedMs: 1000,
	})
	require.NoError(t, err)
	_, err = s.games.SubmitAnswer(ctx, SubmitAnswerInput{
		PIN: room.PIN, ConnectionID: "conn-2", AnswerIndex: 0, ElapsedMs: 2000,
	})
	require.NoError(t, err)
	_, err = s.games.EndAnsweringPhase(ctx, room.PIN, models.ServerPrincipal)
	require.NoError(t, err)
	_, err = s.games.ShowLeaderboard(ctx, room.PIN, "host-conn")
	require.NoError(t, err)

	next, err := s.games.NextQuestion(ctx, room.PIN, "host-conn")
	require.NoError(t, err)
	assert.False(t, next.HasMore)
	require.Len(t, next.Podium, 2)
	assert.Equal(t, "Player1", next.Podium[0].Nickname)

	session, err := s.games.ArchiveGame(ctx, room.PIN)
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, models.SessionCompleted, session.Status)
	assert.Equal(t, 2, session.PlayerCount)
	assert.Nil(t, s.registry.Get(room.PIN), "archived room is gone")

	results, err := session.GetPlayerResults()
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 1, results[0].Rank)
	assert.Equal(t, "Player1", results[0].Nickname)
	assert.Equal(t, 983, results[0].Score)
	assert.Equal(t, 1, results[0].CorrectAnswers)
	assert.Equal(t, 1, results[1].WrongAnswers)

	answers, err := session.GetAnswers()
	require.NoError(t, err)
	assert.Len(t, answers, 2)

	// Archiving again finds nothing and reports no error.
	session, err = s.games.ArchiveGame(ctx, room.PIN)
	require.NoError(t, err)
	assert.Nil(t, session)
}

func TestSaveInterruptedGame(t *testing.T) {
	s := newStack(2)
	room, _ := s.createJoinedRoom(t, 1)
	ctx := context.Background()
	s.startAnswering(t, room.PIN)

	session, err := s.games.SaveInterruptedGame(ctx, SaveInterruptedInput{
		PIN:    room.PIN,
		Reason: models.ReasonHostTimeout,
	})
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, models.SessionInterrupted, session.Status)
	assert.Equal(t, models.ReasonHostTimeout, session.InterruptionReason)
	require.NotNil(t, session.LastQuestionIndex)
	assert.Equal(t, 0, *session.LastQuestionIndex)
	assert.Equal(t, models.StateAnsweringPhase, session.LastState)
	assert.Nil(t, s.registry.Get(room.PIN))
}

func TestSaveInterruptedGameSkipsLobby(t *testing.T) {
	s := newStack(1)
	room, _ := s.createJoinedRoom(t, 1)

	// A room that never started gets deleted without an archive record.
	session, err := s.games.SaveInterruptedGame(context.Background(), SaveInterruptedInput{
		PIN:    room.PIN,
		Reason: models.ReasonEmptyRoom,
	})
	require.NoError(t, err)
	assert.Nil(t, session)
	assert.Nil(t, s.registry.Get(room.PIN))
	assert.Nil(t, s.sessions.last())
}

func TestHandleDisconnect(t *testing.T) {
	s := newStack(1)
	room, players := s.createJoinedRoom(t, 2)
	ctx := context.Background()

	// Lobby players are removed outright.
	result, err := s.rooms.HandleDisconnect(ctx, "conn-2")
	require.NoError(t, err)
	assert.True(t, result.Removed)
	assert.Equal(t, 1, room.PlayerCount())

	// Mid-game players are marked for reconnection instead.
	s.startAnswering(t, room.PIN)
	result, err = s.rooms.HandleDisconnect(ctx, "conn-1")
	require.NoError(t, err)
	assert.False(t, result.Removed)
	assert.Equal(t, 1, room.PlayerCount())
	assert.False(t, players[0].IsConnected())

	// Hosts enter their grace period.
	result, err = s.rooms.HandleDisconnect(ctx, "host-conn")
	require.NoError(t, err)
	assert.True(t, result.IsHost)
	assert.False(t, room.HostConnected())

	// Unknown connections are a quiet no-op.
	result, err = s.rooms.HandleDisconnect(ctx, "conn-ghost")
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestReconnectRoundTrip(t *testing.T) {
	s := newStack(1)
	room, players := s.createJoinedRoom(t, 1)
	ctx := context.Background()
	s.startAnswering(t, room.PIN)

	oldToken := players[0].Token
	_, err := s.rooms.HandleDisconnect(ctx, "conn-1")
	require.NoError(t, err)

	result, err := s.rooms.ReconnectPlayer(ctx, ReconnectInput{
		Token:           oldToken,
		NewConnectionID: "conn-1b",
	})
	require.NoError(t, err)
	assert.Equal(t, "conn-1b", result.Player.ConnectionID)
	assert.NotEqual(t, oldToken, result.Player.Token)
	assert.Same(t, room, s.registry.GetByConnection("conn-1b"))

	// Host round trip.
	created, err := s.rooms.CreateRoom(ctx, "host-user", "quiz-1", "host-conn-x")
	require.NoError(t, err)
	hostToken := created.HostToken
	_, err = s.rooms.HandleDisconnect(ctx, "host-conn-x")
	require.NoError(t, err)

	hostResult, err := s.rooms.ReconnectHost(ctx, ReconnectInput{
		Token:           hostToken,
		NewConnectionID: "host-conn-y",
	})
	require.NoError(t, err)
	assert.Equal(t, "host-conn-y", hostResult.Room.HostConnectionID)
	assert.NotEqual(t, hostToken, hostResult.HostToken)
}
