package models

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testStart = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestRoom() *Room {
	return NewRoom("room-1", "123456", "host-conn", "host-user", "host-token", "quiz-1", testStart)
}

func newTestQuiz(questions int) *Quiz {
	quiz := &Quiz{ID: "quiz-1", Title: "Capitals", OwnerID: "host-user"}
	for i := 0; i < questions; i++ {
		quiz.Questions = append(quiz.Questions, Question{
			ID:                 fmt.Sprintf("q%d", i),
			Text:               fmt.Sprintf("Question %d", i),
			Type:               QuestionMultipleChoice,
			Options:            []string{"A", "B", "C", "D"},
			CorrectAnswerIndex: 1,
			TimeLimit:          30,
			Points:             1000,
		})
	}
	return quiz
}

func addTestPlayer(t *testing.T, room *Room, n int) *Player {
	t.Helper()
	p := NewPlayer(
		fmt.Sprintf("player-%d", n),
		fmt.Sprintf("conn-%d", n),
		fmt.Sprintf("Player%d", n),
		room.PIN,
		fmt.Sprintf("token-%d", n),
		testStart,
	)
	require.NoError(t, room.AddPlayer(p))
	return p
}

// startTestGame drives the room into ANSWERING_PHASE on question 0.
func startTestGame(t *testing.T, room *Room, quiz *Quiz) {
	t.Helper()
	require.NoError(t, room.StartGame("host-conn"))
	require.NoError(t, room.SetQuizSnapshot(quiz, testStart))
	require.NoError(t, room.SetState(StateQuestionIntro))
	require.NoError(t, room.SetState(StateAnsweringPhase))
}

func TestStateMachineTransitions(t *testing.T) {
	room := newTestRoom()
	assert.Equal(t, StateWaitingPlayers, room.CurrentState())

	// The happy path is legal end to end.
	require.NoError(t, room.SetState(StateQuestionIntro))
	require.NoError(t, room.SetState(StateAnsweringPhase))
	require.NoError(t, room.SetState(StateShowResults))
	require.NoError(t, room.SetState(StateLeaderboard))
	require.NoError(t, room.SetState(StateQuestionIntro))

	// Skipping phases is not.
	err := room.SetState(StateLeaderboard)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindValidation))
	assert.Equal(t, StateQuestionIntro, room.CurrentState())
}

func TestStateMachinePodiumIsTerminal(t *testing.T) {
	room := newTestRoom()
	require.NoError(t, room.SetState(StateQuestionIntro))
	require.NoError(t, room.SetState(StateAnsweringPhase))
	require.NoError(t, room.SetState(StateShowResults))
	require.NoError(t, room.SetState(StateLeaderboard))
	require.NoError(t, room.SetState(StatePodium))

	for _, next := range []RoomState{StateWaitingPlayers, StateQuestionIntro, StateLeaderboard, StatePaused} {
		assert.Error(t, room.SetState(next), "PODIUM -> %s must be rejected", next)
	}
}

func TestPauseResumeRestoresPriorState(t *testing.T) {
	room := newTestRoom()
	addTestPlayer(t, room, 1)
	startTestGame(t, room, newTestQuiz(2))
	require.NoError(t, room.SetState(StateShowResults))
	require.NoError(t, room.SetState(StateLeaderboard))

	require.NoError(t, room.Pause("host-conn", testStart))
	assert.Equal(t, StatePaused, room.CurrentState())
	assert.Equal(t, StateLeaderboard, room.PausedFromState())

	require.NoError(t, room.Resume("host-conn"))
	assert.Equal(t, StateLeaderboard, room.CurrentState())

	// Resuming twice fails.
	assert.Error(t, room.Resume("host-conn"))
}

func TestPauseRequiresLeaderboard(t *testing.T) {
	room := newTestRoom()
	addTestPlayer(t, room, 1)
	startTestGame(t, room, newTestQuiz(1))

	err := room.Pause("host-conn", testStart)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindValidation))
}

func TestAddPlayerRules(t *testing.T) {
	room := newTestRoom()
	room.MaxPlayers = 2
	addTestPlayer(t, room, 1)

	// Case-insensitive nickname collision.
	dup := NewPlayer("p-dup", "conn-dup", "PLAYER1", room.PIN, "t-dup", testStart)
	err := room.AddPlayer(dup)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindConflict))

	addTestPlayer(t, room, 2)

	// Room at capacity.
	full := NewPlayer("p-3", "conn-3", "Player3", room.PIN, "t-3", testStart)
	err = room.AddPlayer(full)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindConflict))
}

func TestAddPlayerOnlyWhileWaiting(t *testing.T) {
	room := newTestRoom()
	addTestPlayer(t, room, 1)
	startTestGame(t, room, newTestQuiz(1))

	late := NewPlayer("p-late", "conn-late", "Latecomer", room.PIN, "t-late", testStart)
	err := room.AddPlayer(late)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindValidation))

	// Spectators may still join mid-game.
	spec := NewSpectator("s-1", "conn-s1", "Watcher", room.PIN, "t-s1", testStart)
	require.NoError(t, room.AddSpectator(spec))
}

func TestBanBlocksRejoin(t *testing.T) {
	room := newTestRoom()
	p := addTestPlayer(t, room, 1)

	banned, err := room.BanPlayer(p.ID, "host-conn")
	require.NoError(t, err)
	assert.Equal(t, p.ID, banned.ID)
	assert.Equal(t, 0, room.PlayerCount())

	rejoin := NewPlayer("p-re", "conn-re", "player1", room.PIN, "t-re", testStart)
	err = room.AddPlayer(rejoin)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindForbidden))

	require.NoError(t, room.UnbanNickname("Player1", "host-conn"))
	require.NoError(t, room.AddPlayer(rejoin))
}

func TestHostGate(t *testing.T) {
	room := newTestRoom()
	p := addTestPlayer(t, room, 1)

	_, err := room.KickPlayer(p.ID, "conn-1")
	require.Error(t, err)
	assert.True(t, IsKind(err, KindForbidden))

	// The server principal bypasses the host check.
	assert.NoError(t, room.RequireHost(ServerPrincipal))
}

func TestStartGameValidation(t *testing.T) {
	room := newTestRoom()

	err := room.StartGame("host-conn")
	require.Error(t, err, "no players")

	addTestPlayer(t, room, 1)
	require.NoError(t, room.StartGame("host-conn"))

	err = room.StartGame("conn-1")
	assert.True(t, IsKind(err, KindForbidden))
}

func TestQuizSnapshotIsFrozen(t *testing.T) {
	room := newTestRoom()
	quiz := newTestQuiz(2)
	require.NoError(t, room.SetQuizSnapshot(quiz, testStart))

	// A second snapshot is rejected.
	err := room.SetQuizSnapshot(quiz, testStart)
	assert.True(t, IsKind(err, KindConflict))

	// Host-side edits after the game starts never reach the snapshot.
	quiz.Questions[0].Text = "edited"
	quiz.Questions[0].CorrectAnswerIndex = 3
	q := room.Snapshot().Question(0)
	assert.Equal(t, "Question 0", q.Text)
	assert.Equal(t, 1, q.CorrectAnswerIndex)

	// Neither do mutations of a returned copy.
	q.Options[0] = "mutated"
	assert.Equal(t, "A", room.Snapshot().Question(0).Options[0])
}

func TestApplyAnswerScoring(t *testing.T) {
	room := newTestRoom()
	addTestPlayer(t, room, 1)
	startTestGame(t, room, newTestQuiz(3))

	// Correct at 1 s: base 983, no streak bonus on the first correct.
	rec, err := room.ApplyAnswer("conn-1", 1, 1000, testStart)
	require.NoError(t, err)
	assert.True(t, rec.IsCorrect)
	assert.Equal(t, 983, rec.BaseScore)
	assert.Equal(t, 0, rec.BonusScore)

	p := room.PlayerByConnection("conn-1")
	assert.Equal(t, 983, p.Score)
	assert.Equal(t, 1, p.Streak)

	// Advance to question 1 and answer correct again at 1 s: +100 bonus.
	require.NoError(t, room.SetState(StateShowResults))
	require.NoError(t, room.SetState(StateLeaderboard))
	_, err = room.NextQuestion("host-conn", 3)
	require.NoError(t, err)
	require.NoError(t, room.SetState(StateAnsweringPhase))
	room.ClearAllAnswerAttempts()

	rec, err = room.ApplyAnswer("conn-1", 1, 1000, testStart)
	require.NoError(t, err)
	assert.Equal(t, 983, rec.BaseScore)
	assert.Equal(t, 100, rec.BonusScore)
	assert.Equal(t, 2066, room.PlayerByConnection("conn-1").Score)
	assert.Equal(t, 2, room.PlayerByConnection("conn-1").Streak)

	// Wrong answer resets the streak but keeps the score.
	require.NoError(t, room.SetState(StateShowResults))
	require.NoError(t, room.SetState(StateLeaderboard))
	_, err = room.NextQuestion("host-conn", 3)
	require.NoError(t, err)
	require.NoError(t, room.SetState(StateAnsweringPhase))
	room.ClearAllAnswerAttempts()

	rec, err = room.ApplyAnswer("conn-1", 0, 500, testStart)
	require.NoError(t, err)
	assert.False(t, rec.IsCorrect)
	assert.Equal(t, 0, rec.BaseScore)
	assert.Equal(t, 2066, room.PlayerByConnection("conn-1").Score)
	assert.Equal(t, 0, room.PlayerByConnection("conn-1").Streak)
	assert.Equal(t, 2, room.PlayerByConnection("conn-1").LongestStreak)
}

func TestApplyAnswerRejections(t *testing.T) {
	room := newTestRoom()
	addTestPlayer(t, room, 1)
	addTestPlayer(t, room, 2)
	quiz := newTestQuiz(1)

	// Not in answering phase yet.
	_, err := room.ApplyAnswer("conn-1", 1, 100, testStart)
	assert.True(t, IsKind(err, KindValidation))

	startTestGame(t, room, quiz)

	// Unknown connection.
	_, err = room.ApplyAnswer("conn-ghost", 1, 100, testStart)
	assert.True(t, IsKind(err, KindNotFound))

	// Out-of-range index.
	_, err = room.ApplyAnswer("conn-1", 7, 100, testStart)
	assert.True(t, IsKind(err, KindValidation))

	// Double answer.
	_, err = room.ApplyAnswer("conn-1", 1, 100, testStart)
	require.NoError(t, err)
	_, err = room.ApplyAnswer("conn-1", 2, 200, testStart)
	assert.True(t, IsKind(err, KindConflict))

	// Disconnected player.
	room.SetPlayerDisconnected("conn-2", testStart)
	_, err = room.ApplyAnswer("conn-2", 1, 100, testStart)
	assert.True(t, IsKind(err, KindForbidden))
}

func TestApplyAnswerClampsLateSubmission(t *testing.T) {
	room := newTestRoom()
	addTestPlayer(t, room, 1)
	startTestGame(t, room, newTestQuiz(1))

	// 45 s elapsed on a 30 s question clamps to the floor score.
	rec, err := room.ApplyAnswer("conn-1", 1, 45000, testStart)
	require.NoError(t, err)
	assert.Equal(t, 30000, rec.ElapsedMs)
	assert.Equal(t, 500, rec.BaseScore)
}

func TestAnswerDistribution(t *testing.T) {
	room := newTestRoom()
	for i := 1; i <= 4; i++ {
		addTestPlayer(t, room, i)
	}
	startTestGame(t, room, newTestQuiz(1))

	for i, answer := range []int{1, 1, 0, 3} {
		_, err := room.ApplyAnswer(fmt.Sprintf("conn-%d", i+1), answer, 1000, testStart)
		require.NoError(t, err)
	}

	dist := room.GetAnswerDistribution(4, func(i int) bool { return i == 1 })
	assert.Equal(t, []int{1, 2, 0, 1}, dist.Distribution)
	assert.Equal(t, 2, dist.CorrectCount)
	assert.Equal(t, 0, dist.SkippedCount)
}

func TestHaveAllPlayersAnswered(t *testing.T) {
	room := newTestRoom()
	addTestPlayer(t, room, 1)
	addTestPlayer(t, room, 2)
	startTestGame(t, room, newTestQuiz(1))

	assert.False(t, room.HaveAllPlayersAnswered())

	_, err := room.ApplyAnswer("conn-1", 1, 1000, testStart)
	require.NoError(t, err)
	assert.False(t, room.HaveAllPlayersAnswered())

	// A disconnected holdout no longer blocks the round.
	room.SetPlayerDisconnected("conn-2", testStart)
	assert.True(t, room.HaveAllPlayersAnswered())
}

func TestHaveAllPlayersAnsweredEmptyRoom(t *testing.T) {
	room := newTestRoom()
	addTestPlayer(t, room, 1)
	startTestGame(t, room, newTestQuiz(1))
	room.SetPlayerDisconnected("conn-1", testStart)

	// Zero connected players never counts as all-answered.
	assert.False(t, room.HaveAllPlayersAnswered())
}

func TestLeaderboardOrdering(t *testing.T) {
	room := newTestRoom()
	p1 := addTestPlayer(t, room, 1)
	p2 := addTestPlayer(t, room, 2)
	p3 := addTestPlayer(t, room, 3)
	p1.AddScore(500)
	p2.AddScore(900)
	p3.AddScore(500)

	entries := room.GetLeaderboard()
	require.Len(t, entries, 3)
	assert.Equal(t, p2.ID, entries[0].PlayerID)
	assert.Equal(t, 1, entries[0].Rank)

	// Equal scores keep join order.
	assert.Equal(t, p1.ID, entries[1].PlayerID)
	assert.Equal(t, p3.ID, entries[2].PlayerID)
	assert.Equal(t, 3, entries[2].Rank)
}

func TestGetPodiumTopThree(t *testing.T) {
	room := newTestRoom()
	for i := 1; i <= 5; i++ {
		p := addTestPlayer(t, room, i)
		p.AddScore(i * 100)
	}
	podium := room.GetPodium()
	require.Len(t, podium, 3)
	assert.Equal(t, 500, podium[0].Score)
	assert.Equal(t, 300, podium[2].Score)
}

func TestNextQuestionAdvancesAndEnds(t *testing.T) {
	room := newTestRoom()
	addTestPlayer(t, room, 1)
	startTestGame(t, room, newTestQuiz(2))
	require.NoError(t, room.SetState(StateShowResults))
	require.NoError(t, room.SetState(StateLeaderboard))

	more, err := room.NextQuestion("host-conn", 2)
	require.NoError(t, err)
	assert.True(t, more)
	assert.Equal(t, 1, room.QuestionIndex())
	assert.Equal(t, StateQuestionIntro, room.CurrentState())

	require.NoError(t, room.SetState(StateAnsweringPhase))
	require.NoError(t, room.SetState(StateShowResults))
	require.NoError(t, room.SetState(StateLeaderboard))

	more, err = room.NextQuestion("host-conn", 2)
	require.NoError(t, err)
	assert.False(t, more)
	assert.Equal(t, StatePodium, room.CurrentState())
}

func TestReconnectPlayerRotatesToken(t *testing.T) {
	room := newTestRoom()
	p := addTestPlayer(t, room, 1)
	oldToken := p.Token

	room.SetPlayerDisconnected("conn-1", testStart)
	assert.False(t, p.IsConnected())

	got, err := room.ReconnectPlayer(oldToken, "conn-new", 2*time.Minute, "token-new", testStart.Add(30*time.Second))
	require.NoError(t, err)
	assert.True(t, got.IsConnected())
	assert.Equal(t, "conn-new", got.ConnectionID)
	assert.Equal(t, "token-new", got.Token)

	// The old token is dead after rotation.
	_, err = room.ReconnectPlayer(oldToken, "conn-x", 2*time.Minute, "token-x", testStart.Add(time.Minute))
	assert.True(t, IsKind(err, KindUnauthorized))
}

func TestReconnectPlayerGraceExpired(t *testing.T) {
	room := newTestRoom()
	p := addTestPlayer(t, room, 1)
	room.SetPlayerDisconnected("conn-1", testStart)

	_, err := room.ReconnectPlayer(p.Token, "conn-new", 2*time.Minute, "token-new", testStart.Add(3*time.Minute))
	require.Error(t, err)
	assert.True(t, IsKind(err, KindForbidden))
}

func TestReconnectPlayerTokenTTLExpired(t *testing.T) {
	room := newTestRoom()
	room.TokenTTL = time.Hour
	p := addTestPlayer(t, room, 1)
	room.SetPlayerDisconnected("conn-1", testStart.Add(2*time.Hour))

	_, err := room.ReconnectPlayer(p.Token, "conn-new", 24*time.Hour, "token-new", testStart.Add(2*time.Hour))
	require.Error(t, err)
	assert.True(t, IsKind(err, KindUnauthorized))
}

func TestReconnectHost(t *testing.T) {
	room := newTestRoom()
	room.SetHostDisconnected(testStart)
	assert.False(t, room.HostConnected())

	err := room.ReconnectHost("host-conn-2", "host-token", time.Minute, "host-token-2", testStart.Add(30*time.Second))
	require.NoError(t, err)
	assert.True(t, room.HostConnected())
	assert.Equal(t, "host-conn-2", room.HostConnectionID)
	assert.Equal(t, "host-token-2", room.HostToken)

	// Wrong token.
	err = room.ReconnectHost("host-conn-3", "host-token", time.Minute, "x", testStart.Add(31*time.Second))
	assert.True(t, IsKind(err, KindUnauthorized))
}

func TestRemoveStaleDisconnectedPlayers(t *testing.T) {
	room := newTestRoom()
	addTestPlayer(t, room, 1)
	addTestPlayer(t, room, 2)
	room.SetPlayerDisconnected("conn-1", testStart)

	removed := room.RemoveStaleDisconnectedPlayers(2*time.Minute, testStart.Add(time.Minute))
	assert.Empty(t, removed, "inside grace")

	removed = room.RemoveStaleDisconnectedPlayers(2*time.Minute, testStart.Add(3*time.Minute))
	require.Len(t, removed, 1)
	assert.Equal(t, "player-1", removed[0].ID)
	assert.Equal(t, 1, room.PlayerCount())
}

func TestConnectionIDsHostFirst(t *testing.T) {
	room := newTestRoom()
	addTestPlayer(t, room, 1)
	addTestPlayer(t, room, 2)
	room.SetPlayerDisconnected("conn-2", testStart)

	ids := room.ConnectionIDs()
	assert.Equal(t, []string{"host-conn", "conn-1"}, ids)

	room.SetHostDisconnected(testStart)
	assert.Equal(t, []string{"conn-1"}, room.ConnectionIDs())
}
