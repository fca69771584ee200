// models/session.go - Archived game session records
package models

import (
	"encoding/json"
	"time"
)

// GameSession status values.
const (
	SessionCompleted   = "completed"
	SessionInterrupted = "interrupted"
)

// Interruption reason codes written by cleanup and shutdown.
const (
	ReasonHostTimeout    = "host_timeout"
	ReasonOrphanRoom     = "orphan_room"
	ReasonEmptyRoom      = "empty_room"
	ReasonIdleTimeout    = "idle_timeout"
	ReasonGameTimeout    = "game_timeout"
	ReasonHostClosed     = "host_closed"
	ReasonServerShutdown = "server_shutdown"
)

// PlayerResult is one player's final line in the archive. Rank is 1-based.
type PlayerResult struct {
	Rank                  int     `json:"rank"`
	PlayerID              string  `json:"player_id"`
	Nickname              string  `json:"nickname"`
	Score                 int     `json:"score"`
	CorrectAnswers        int     `json:"correct_answers"`
	WrongAnswers          int     `json:"wrong_answers"`
	AverageResponseTimeMs int     `json:"average_response_time_ms"`
	LongestStreak         int     `json:"longest_streak"`
	Accuracy              float64 `json:"accuracy"`
}

// ArchivedAnswer is one answer in archive shape.
type ArchivedAnswer struct {
	PlayerID       string `json:"player_id"`
	Nickname       string `json:"nickname"`
	QuestionIndex  int    `json:"question_index"`
	AnswerIndex    int    `json:"answer_index"`
	IsCorrect      bool   `json:"is_correct"`
	ResponseTimeMs int    `json:"response_time_ms"`
	Score          int    `json:"score"`
}

// GameSession is the immutable archive of a finished (or interrupted) game.
// Nested collections are stored as JSON text columns.
type GameSession struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	PIN        string    `json:"pin" gorm:"index;size:6"`
	QuizID     string    `json:"quiz_id" gorm:"index;size:64"`
	HostUserID string    `json:"host_user_id" gorm:"index;size:64"`

	PlayerCount       int    `json:"player_count"`
	PlayerResultsJSON string `json:"-" gorm:"type:text"`
	AnswersJSON       string `json:"-" gorm:"type:text"`

	StartedAt       time.Time `json:"started_at"`
	EndedAt         time.Time `json:"ended_at"`
	DurationSeconds int       `json:"duration_seconds"`

	Status             string    `json:"status" gorm:"size:20;index"`
	InterruptionReason string    `json:"interruption_reason,omitempty" gorm:"size:40"`
	LastQuestionIndex  *int      `json:"last_question_index,omitempty"`
	LastState          RoomState `json:"last_state,omitempty" gorm:"size:20"`

	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for GameSession.
func (GameSession) TableName() string {
	return "game_sessions"
}

func (gs *GameSession) GetPlayerResults() ([]PlayerResult, error) {
	var results []PlayerResult
	if gs.PlayerResultsJSON == "" {
		return results, nil
	}
	err := json.Unmarshal([]byte(gs.PlayerResultsJSON), &results)
	return results, err
}

func (gs *GameSession) SetPlayerResults(results []PlayerResult) error {
	data, err := json.Marshal(results)
	if err != nil {
		return err
	}
	gs.PlayerResultsJSON = string(data)
	return nil
}

func (gs *GameSession) GetAnswers() ([]ArchivedAnswer, error) {
	var answers []ArchivedAnswer
	if gs.AnswersJSON == "" {
		return answers, nil
	}
	err := json.Unmarshal([]byte(gs.AnswersJSON), &answers)
	return answers, err
}

func (gs *GameSession) SetAnswers(answers []ArchivedAnswer) error {
	data, err := json.Marshal(answers)
	if err != nil {
		return err
	}
	gs.AnswersJSON = string(data)
	return nil
}
