// database/quiz_repository.go - Quiz storage
package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"quizparty/models"
)

// QuizRecord is the persisted row for a quiz. Questions are stored as a
// JSON text column, same as the archive tables.
type QuizRecord struct {
	ID            string    `json:"id" gorm:"primaryKey;size:64"`
	Title         string    `json:"title" gorm:"size:200"`
	OwnerID       string    `json:"owner_id" gorm:"index;size:64"`
	QuestionsJSON string    `json:"-" gorm:"type:text"`
	PlayCount     int       `json:"play_count"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TableName specifies the table name for QuizRecord.
func (QuizRecord) TableName() string {
	return "quizzes"
}

// GetQuestions decodes the questions column.
func (qr *QuizRecord) GetQuestions() ([]models.Question, error) {
	var questions []models.Question
	if qr.QuestionsJSON == "" {
		return questions, nil
	}
	err := json.Unmarshal([]byte(qr.QuestionsJSON), &questions)
	return questions, err
}

// SetQuestions encodes the questions column.
func (qr *QuizRecord) SetQuestions(questions []models.Question) error {
	data, err := json.Marshal(questions)
	if err != nil {
		return err
	}
	qr.QuestionsJSON = string(data)
	return nil
}

// QuizRepository is the gorm-backed quiz store.
type QuizRepository struct {
	db *gorm.DB
}

// NewQuizRepository builds a repository over the given connection.
func NewQuizRepository(db *gorm.DB) *QuizRepository {
	return &QuizRepository{db: db}
}

// FindByID returns the quiz, or (nil, nil) when it does not exist.
func (r *QuizRepository) FindByID(ctx context.Context, id string) (*models.Quiz, error) {
	var record QuizRecord
	err := r.db.WithContext(ctx).First(&record, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find quiz %s: %w", id, err)
	}

	questions, err := record.GetQuestions()
	if err != nil {
		return nil, fmt.Errorf("decode quiz %s questions: %w", id, err)
	}
	return &models.Quiz{
		ID:        record.ID,
		Title:     record.Title,
		OwnerID:   record.OwnerID,
		Questions: questions,
		PlayCount: record.PlayCount,
	}, nil
}

// IncrementPlayCount bumps the play counter atomically.
func (r *QuizRepository) IncrementPlayCount(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Model(&QuizRecord{}).
		Where("id = ?", id).
		UpdateColumn("play_count", gorm.Expr("play_count + 1")).Error
}

// Save upserts a quiz record.
func (r *QuizRepository) Save(ctx context.Context, quiz *models.Quiz) error {
	record := QuizRecord{
		ID:        quiz.ID,
		Title:     quiz.Title,
		OwnerID:   quiz.OwnerID,
		PlayCount: quiz.PlayCount,
	}
	if err := record.SetQuestions(quiz.Questions); err != nil {
		return fmt.Errorf("encode quiz %s questions: %w", quiz.ID, err)
	}
	return r.db.WithContext(ctx).Save(&record).Error
}
