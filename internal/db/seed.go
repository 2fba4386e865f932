package db

import (
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DemoPassword is the password of every seeded account.
const DemoPassword = "fahrme123"

// DemoUsers are the seeded accounts. The last one has not confirmed its email.
var DemoUsers = []User{
	{Email: "anna@fahrme.de", Name: "Anna Becker", Handle: "anna", Confirmed: true},
	{Email: "jonas@fahrme.de", Name: "Jonas Wolf", Handle: "jonas", Confirmed: true},
	{Email: "mia@fahrme.de", Name: "Mia Schulz", Handle: "mia", Confirmed: true},
	{Email: "neu@fahrme.de", Name: "Neu Registriert", Handle: "neu", ConfirmToken: "demo-confirm-token"},
}

// SeedDemoUsers inserts the demo accounts. Existing accounts with the same
// email are left alone, so seeding twice is harmless.
//
// Compatible with both MySQL and SQLite.
func SeedDemoUsers(db *gorm.DB, log *slog.Logger) (int, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(DemoPassword), bcrypt.DefaultCost)
	if err != nil {
		return 0, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now().UTC()
	created := 0
	for _, u := range DemoUsers {
		u.PasswordHash = string(hash)
		if u.Confirmed {
			u.LastLoginAt = &now
		}
		res := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&u)
		if res.Error != nil {
			return created, fmt.Errorf("failed to seed user %s: %w", u.Email, res.Error)
		}
		created += int(res.RowsAffected)
	}

	log.Info("seeded demo users", "created", created, "total", len(DemoUsers))
	return created, nil
}
