package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/oggyb/fahrme/internal/db"
)

var ErrDuplicateEmail = errors.New("email already registered")

// UserRepository provides data access methods for the User model.
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new repository bound to the given DB connection.
func NewUserRepository(database *gorm.DB) *UserRepository {
	return &UserRepository{db: database}
}

// Create inserts u and fills in its ID.
//
// Behavior:
//   - An existing account with the same email yields ErrDuplicateEmail.
//   - The unique index is the final word when two registrations race.
func (r *UserRepository) Create(ctx context.Context, u *db.User) error {
	taken, err := r.exists(ctx, "email = ?", u.Email)
	if err != nil {
		return err
	}
	if taken {
		return ErrDuplicateEmail
	}

	err = r.db.WithContext(ctx).Create(u).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: %w", ErrDuplicateEmail, err)
	}
	return err
}

// FindByEmail returns gorm.ErrRecordNotFound when nobody uses email.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*db.User, error) {
	var u db.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id uint64) (*db.User, error) {
	var u db.User
	if err := r.db.WithContext(ctx).First(&u, id).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// Confirm marks the account holding token as confirmed and consumes the
// token. Unknown tokens yield gorm.ErrRecordNotFound.
func (r *UserRepository) Confirm(ctx context.Context, token string) (*db.User, error) {
	if token == "" {
		return nil, gorm.ErrRecordNotFound
	}

	var u db.User
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("confirm_token = ?", token).First(&u).Error; err != nil {
			return err
		}
		u.Confirmed = true
		u.ConfirmToken = ""
		return tx.Model(&u).Select("confirmed", "confirm_token").Updates(&u).Error
	})
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// TouchLogin records a successful login.
func (r *UserRepository) TouchLogin(ctx context.Context, id uint64, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&db.User{}).
		Where("id = ?", id).
		Update("last_login_at", at).Error
}

// HandleTaken reports whether handle is in use.
func (r *UserRepository) HandleTaken(ctx context.Context, handle string) (bool, error) {
	return r.exists(ctx, "handle = ?", handle)
}

func (r *UserRepository) exists(ctx context.Context, query string, args ...any) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.User{}).
		Where(query, args...).
		Count(&count).Error
	return count > 0, err
}
