package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/oggyb/fahrme/internal/logger"
	"github.com/oggyb/fahrme/internal/storage"
)

// EmbeddedBackend keeps accounts and the session in storage. It is the demo
// backend: passwords are stored in plain text and nothing leaves the client.
type EmbeddedBackend struct {
	store storage.Store
	log   *slog.Logger
	now   func() time.Time
	newID func() string
}

var _ Backend = (*EmbeddedBackend)(nil)

type storedUser struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Password  string    `json:"password"`
	CreatedAt time.Time `json:"createdAt"`
}

func (u storedUser) public() *User {
	return &User{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Handle:    handleOf(u.Email),
		CreatedAt: u.CreatedAt,
	}
}

func NewEmbeddedBackend(store storage.Store, log *slog.Logger) *EmbeddedBackend {
	if log == nil {
		log = logger.L()
	}
	return &EmbeddedBackend{
		store: store,
		log:   log.With("backend", "embedded"),
		now:   time.Now,
		newID: uuid.NewString,
	}
}

func (b *EmbeddedBackend) Name() string { return "embedded" }

func (b *EmbeddedBackend) SessionKeys() []string {
	return []string{storage.KeySession, storage.KeyUsers}
}

// CurrentUser resolves the session against the registry. A corrupt or
// dangling session counts as no session; a dangling one is also removed, and
// a legacy one is rewritten in the current layout.
func (b *EmbeddedBackend) CurrentUser(ctx context.Context) (*User, error) {
	raw, err := b.store.Get(ctx, storage.KeySession)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		b.log.Warn("reading session failed", "err", err)
		return nil, nil
	}
	payload, err := decodeSession(raw)
	if err != nil {
		b.log.Warn("ignoring corrupt session", "err", err)
		return nil, nil
	}

	users, err := b.users(ctx)
	if err != nil {
		b.log.Warn("reading user registry failed", "err", err)
		return nil, nil
	}

	sess, rewrite, ok := migrateSession(payload, func(email string) (string, bool) {
		if u, found := findByEmail(users, email); found {
			return u.ID, true
		}
		return "", false
	})
	if !ok {
		b.clearSession(ctx)
		return nil, nil
	}

	u, found := findByID(users, sess.UserID)
	if !found {
		b.clearSession(ctx)
		return nil, nil
	}
	if rewrite {
		if err := b.writeSession(ctx, Session{UserID: u.ID, Email: u.Email}); err != nil {
			b.log.Warn("rewriting legacy session failed", "err", err)
		}
	}
	return u.public(), nil
}

func (b *EmbeddedBackend) Login(ctx context.Context, c Credentials) (*User, error) {
	email := normalizeEmail(c.Email)
	if email == "" || c.Password == "" {
		return nil, Fail(MsgMissingFields)
	}
	users, err := b.users(ctx)
	if err != nil {
		return nil, err
	}
	u, found := findByEmail(users, email)
	if !found {
		return nil, Fail(MsgEmailNotRegistered)
	}
	if u.Password != c.Password {
		return nil, Fail(MsgWrongPassword)
	}
	if err := b.writeSession(ctx, Session{UserID: u.ID, Email: u.Email}); err != nil {
		return nil, err
	}
	return u.public(), nil
}

func (b *EmbeddedBackend) Register(ctx context.Context, c Credentials) (*User, error) {
	email := normalizeEmail(c.Email)
	if email == "" || c.Password == "" {
		return nil, Fail(MsgMissingFields)
	}
	users, err := b.users(ctx)
	if err != nil {
		return nil, err
	}
	if _, taken := findByEmail(users, email); taken {
		return nil, Fail(MsgEmailTaken)
	}

	name := strings.TrimSpace(c.Name)
	if name == "" {
		name = handleOf(email)
	}
	u := storedUser{
		ID:        b.newID(),
		Name:      name,
		Email:     email,
		Password:  c.Password,
		CreatedAt: b.now().UTC(),
	}
	users = append(users, u)
	if err := storage.SetJSON(ctx, b.store, storage.KeyUsers, users); err != nil {
		return nil, fmt.Errorf("save user registry: %w", err)
	}
	if err := b.writeSession(ctx, Session{UserID: u.ID, Email: u.Email}); err != nil {
		return nil, err
	}
	return u.public(), nil
}

func (b *EmbeddedBackend) Logout(ctx context.Context) error {
	return b.store.Delete(ctx, storage.KeySession)
}

func (b *EmbeddedBackend) users(ctx context.Context) ([]storedUser, error) {
	var users []storedUser
	err := storage.GetJSON(ctx, b.store, storage.KeyUsers, &users)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	return users, err
}

func (b *EmbeddedBackend) writeSession(ctx context.Context, s Session) error {
	raw, err := encodeSession(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := b.store.Set(ctx, storage.KeySession, raw); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (b *EmbeddedBackend) clearSession(ctx context.Context) {
	if err := b.store.Delete(ctx, storage.KeySession); err != nil {
		b.log.Warn("clearing stale session failed", "err", err)
	}
}

func findByEmail(users []storedUser, email string) (storedUser, bool) {
	email = normalizeEmail(email)
	for _, u := range users {
		if normalizeEmail(u.Email) == email {
			return u, true
		}
	}
	return storedUser{}, false
}

func findByID(users []storedUser, id string) (storedUser, bool) {
	for _, u := range users {
		if u.ID == id {
			return u, true
		}
	}
	return storedUser{}, false
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// handleOf derives a display handle from the local part of an email.
func handleOf(email string) string {
	local, _, _ := strings.Cut(email, "@")
	return local
}
