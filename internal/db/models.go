package db

import (
	"strconv"
	"time"
)

// User is an account of the identity provider.
//
// Indexes:
//   - email is unique; it is the login name.
//   - handle is unique; it is derived from the email on registration.
//   - confirm_token is looked up when a confirmation link is followed.
type User struct {
	ID           uint64 `gorm:"primaryKey;autoIncrement"`
	Email        string `gorm:"uniqueIndex;size:128;not null"`
	Name         string `gorm:"size:128"`
	Handle       string `gorm:"uniqueIndex;size:64;not null"`
	PasswordHash string `gorm:"size:255;not null"`
	AvatarURL    string `gorm:"size:255"`
	Confirmed    bool   `gorm:"default:false"`
	ConfirmToken string `gorm:"index;size:64"`
	LastLoginAt  *time.Time
	CreatedAt    time.Time `gorm:"autoCreateTime"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime"`
}

// PublicID is the id as the clients see it.
func (u User) PublicID() string {
	return strconv.FormatUint(u.ID, 10)
}
