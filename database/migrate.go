// database/migrate.go - Schema migrations
package database

import (
	"log"

	"quizparty/models"
)

// RunMigrations auto-migrates every persisted model.
func RunMigrations() {
	log.Println("🔄 Running database migrations...")

	err := db.AutoMigrate(
		&models.User{},
		&models.GameSession{},
		&QuizRecord{},
	)
	if err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	log.Println("✅ Database migrations completed")
}
