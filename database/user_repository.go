// database/user_repository.go - Host identity lookups
package database

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"quizparty/models"
)

// UserRepository is the gorm-backed user store.
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository builds a repository over the given connection.
func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByID returns the user, or (nil, nil) when unknown.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}
