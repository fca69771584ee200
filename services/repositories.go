// services/repositories.go - Collaborator contracts for durable storage
package services

import (
	"context"

	"quizparty/models"
)

// QuizRepository loads read-only quiz snapshots for game start.
type QuizRepository interface {
	// FindByID returns the quiz, or (nil, nil) when it does not exist.
	FindByID(ctx context.Context, id string) (*models.Quiz, error)
	// IncrementPlayCount bumps the quiz play counter. Best-effort.
	IncrementPlayCount(ctx context.Context, id string) error
}

// GameSessionRepository persists finished and interrupted game archives.
type GameSessionRepository interface {
	Save(ctx context.Context, session *models.GameSession) error
	FindByHost(ctx context.Context, hostUserID string, page, limit int) ([]models.GameSession, int64, error)
	FindByQuiz(ctx context.Context, quizID string, page, limit int) ([]models.GameSession, int64, error)
	GetRecent(ctx context.Context, limit int) ([]models.GameSession, error)
	DeleteByQuiz(ctx context.Context, quizID string) (int64, error)
	DeleteByHost(ctx context.Context, hostUserID string) (int64, error)
}

// UserRepository resolves host identity for archival.
type UserRepository interface {
	// FindByID returns the user, or (nil, nil) when unknown.
	FindByID(ctx context.Context, id string) (*models.User, error)
}
