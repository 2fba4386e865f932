// Package auth keeps one observable answer to "who is logged in", shared by
// every tab of a storage context and independent of the backend that issues
// sessions.
package auth

import (
	"context"
	"errors"
	"time"
)

// User-facing messages.
const (
	MsgEmailNotRegistered = "E-Mail ist nicht registriert."
	MsgWrongPassword      = "Falsches Passwort."
	MsgEmailTaken         = "E-Mail ist bereits registriert."
	MsgMissingFields      = "Bitte E-Mail und Passwort angeben."
	MsgConfirmEmail       = "Bitte bestätige deine E-Mail-Adresse, bevor du dich anmeldest."
	MsgEmailConfirmed     = "E-Mail-Adresse bestätigt. Du kannst dich jetzt anmelden."
	MsgNoConfirmation     = "Dieses Konto braucht keine Bestätigung."
	MsgGeneric            = "Ein unerwarteter Fehler ist aufgetreten. Bitte versuche es erneut."
)

// ErrConfirmationPending is returned by Register when the account exists but
// no session will be issued until the email address is confirmed.
var ErrConfirmationPending = errors.New("auth: email confirmation pending")

// FailureError is an expected failure whose message may be shown as is.
type FailureError struct {
	Message string
}

func (e *FailureError) Error() string { return e.Message }

// Fail wraps a user-facing message.
func Fail(msg string) error { return &FailureError{Message: msg} }

// User is the current user as the UI sees it. Passwords never leave the
// backend.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Handle    string    `json:"handle,omitempty"`
	AvatarURL string    `json:"avatarUrl,omitempty"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

type Credentials struct {
	Email    string
	Password string
	// Name is only used by Register.
	Name string
}

// Result is what Login and Register report to the UI. Exactly one of User,
// Error and Pending is meaningful.
type Result struct {
	Success bool
	User    *User
	Error   string
	// Pending means registration succeeded but a confirmation email has to
	// be acted on before a session exists. Notice explains this to the user.
	Pending bool
	Notice  string
}

// Backend issues and resolves sessions. All methods may block.
type Backend interface {
	Name() string
	// CurrentUser resolves the persisted session. No session, or a session
	// that no longer points at a user, is (nil, nil).
	CurrentUser(ctx context.Context) (*User, error)
	// Login and Register return a *FailureError for expected failures.
	Login(ctx context.Context, c Credentials) (*User, error)
	Register(ctx context.Context, c Credentials) (*User, error)
	// Logout drops the session. Calling it without a session is fine.
	Logout(ctx context.Context) error
	// SessionKeys lists the storage keys whose change may change CurrentUser.
	SessionKeys() []string
}

// Confirmer is implemented by backends whose accounts have to confirm their
// email address before the first login.
type Confirmer interface {
	Confirm(ctx context.Context, token string) error
}
