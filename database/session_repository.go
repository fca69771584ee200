// database/session_repository.go - Game session archive storage
package database

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"quizparty/models"
)

// GameSessionRepository is the gorm-backed archive store.
type GameSessionRepository struct {
	db *gorm.DB
}

// NewGameSessionRepository builds a repository over the given connection.
func NewGameSessionRepository(db *gorm.DB) *GameSessionRepository {
	return &GameSessionRepository{db: db}
}

// Save inserts an archive record.
func (r *GameSessionRepository) Save(ctx context.Context, session *models.GameSession) error {
	if err := r.db.WithContext(ctx).Create(session).Error; err != nil {
		return fmt.Errorf("save game session %s: %w", session.PIN, err)
	}
	return nil
}

// FindByHost returns the host's sessions newest first, with the total count
// for pagination.
func (r *GameSessionRepository) FindByHost(ctx context.Context, hostUserID string, page, limit int) ([]models.GameSession, int64, error) {
	return r.paged(ctx, "host_user_id = ?", hostUserID, page, limit)
}

// FindByQuiz returns the quiz's sessions newest first.
func (r *GameSessionRepository) FindByQuiz(ctx context.Context, quizID string, page, limit int) ([]models.GameSession, int64, error) {
	return r.paged(ctx, "quiz_id = ?", quizID, page, limit)
}

func (r *GameSessionRepository) paged(ctx context.Context, query string, arg interface{}, page, limit int) ([]models.GameSession, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	var total int64
	if err := r.db.WithContext(ctx).Model(&models.GameSession{}).Where(query, arg).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var sessions []models.GameSession
	err := r.db.WithContext(ctx).
		Where(query, arg).
		Order("ended_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&sessions).Error
	return sessions, total, err
}

// GetRecent returns the most recently ended sessions.
func (r *GameSessionRepository) GetRecent(ctx context.Context, limit int) ([]models.GameSession, error) {
	if limit < 1 || limit > 100 {
		limit = 20
	}
	var sessions []models.GameSession
	err := r.db.WithContext(ctx).
		Order("ended_at DESC").
		Limit(limit).
		Find(&sessions).Error
	return sessions, err
}

// DeleteByQuiz removes every session for a quiz, returning the count.
func (r *GameSessionRepository) DeleteByQuiz(ctx context.Context, quizID string) (int64, error) {
	result := r.db.WithContext(ctx).Where("quiz_id = ?", quizID).Delete(&models.GameSession{})
	return result.RowsAffected, result.Error
}

// DeleteByHost removes every session for a host, returning the count.
func (r *GameSessionRepository) DeleteByHost(ctx context.Context, hostUserID string) (int64, error) {
	result := r.db.WithContext(ctx).Where("host_user_id = ?", hostUserID).Delete(&models.GameSession{})
	return result.RowsAffected, result.Error
}
