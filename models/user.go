// models/user.go - Host identity consumed from the auth collaborator
package models

import "time"

// User is the minimal identity the core needs; account management, password
// hashing and JWT issuance live outside the core.
type User struct {
	ID           string    `json:"id" gorm:"primaryKey;size:64"`
	Username     string    `json:"username" gorm:"uniqueIndex;size:50"`
	Email        string    `json:"email" gorm:"size:120"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
}
