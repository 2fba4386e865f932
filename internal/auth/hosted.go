package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	svcErr "github.com/oggyb/fahrme/internal/errors"
	"github.com/oggyb/fahrme/internal/logger"
	"github.com/oggyb/fahrme/internal/rpc"
	"github.com/oggyb/fahrme/internal/storage"
)

// HostedBackend delegates accounts and sessions to the identity provider.
// The session token is kept in storage so every tab shares it; resolving it
// to a user always needs a round trip.
type HostedBackend struct {
	client *rpc.IdentityClient
	store  storage.Store
	log    *slog.Logger
}

var (
	_ Backend   = (*HostedBackend)(nil)
	_ Confirmer = (*HostedBackend)(nil)
)

func NewHostedBackend(cc grpc.ClientConnInterface, store storage.Store, log *slog.Logger) *HostedBackend {
	if log == nil {
		log = logger.L()
	}
	return &HostedBackend{
		client: rpc.NewIdentityClient(cc),
		store:  store,
		log:    log.With("backend", "hosted"),
	}
}

func (b *HostedBackend) Name() string { return "hosted" }

func (b *HostedBackend) SessionKeys() []string {
	return []string{storage.KeyHostedSession}
}

// CurrentUser is the session probe. A token the provider rejects is dropped.
func (b *HostedBackend) CurrentUser(ctx context.Context) (*User, error) {
	token, err := b.store.Get(ctx, storage.KeyHostedSession)
	if errors.Is(err, storage.ErrNotFound) || token == "" {
		return nil, nil
	}
	if err != nil {
		b.log.Warn("reading hosted session failed", "err", err)
		return nil, nil
	}

	ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+token)
	p, err := b.client.Session(ctx)
	if status.Code(err) == codes.Unauthenticated || status.Code(err) == codes.NotFound {
		if derr := b.store.Delete(ctx, storage.KeyHostedSession); derr != nil {
			b.log.Warn("dropping rejected session failed", "err", derr)
		}
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("session probe: %w", err)
	}
	return userFromProfile(p), nil
}

func (b *HostedBackend) Login(ctx context.Context, c Credentials) (*User, error) {
	reply, err := b.client.Login(ctx, rpc.Credentials{Email: c.Email, Password: c.Password})
	if err != nil {
		return nil, providerError("login", err)
	}
	if err := b.store.Set(ctx, storage.KeyHostedSession, reply.Token); err != nil {
		return nil, fmt.Errorf("save hosted session: %w", err)
	}
	return userFromProfile(reply.User), nil
}

// Register returns ErrConfirmationPending when the provider wants the email
// address confirmed before it issues a session.
func (b *HostedBackend) Register(ctx context.Context, c Credentials) (*User, error) {
	reply, err := b.client.Register(ctx, rpc.Credentials{Email: c.Email, Password: c.Password, Name: c.Name})
	if err != nil {
		return nil, providerError("register", err)
	}
	if reply.ConfirmationRequired || reply.Token == "" {
		return nil, ErrConfirmationPending
	}
	if err := b.store.Set(ctx, storage.KeyHostedSession, reply.Token); err != nil {
		return nil, fmt.Errorf("save hosted session: %w", err)
	}
	return userFromProfile(reply.User), nil
}

// Confirm redeems the token from the confirmation email. It does not start
// a session.
func (b *HostedBackend) Confirm(ctx context.Context, token string) error {
	if _, err := b.client.Confirm(ctx, token); err != nil {
		return providerError("confirm", err)
	}
	return nil
}

// Logout forgets the token. Tokens are stateless, so there is nothing to
// revoke on the provider.
func (b *HostedBackend) Logout(ctx context.Context) error {
	return b.store.Delete(ctx, storage.KeyHostedSession)
}

// providerError keeps the provider's own wording for failures the user
// caused and wraps everything else.
func providerError(op string, err error) error {
	if msg, ok := svcErr.UserMessage(err); ok {
		return Fail(msg)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func userFromProfile(p rpc.Profile) *User {
	return &User{
		ID:        p.ID,
		Email:     p.Email,
		Name:      p.Name,
		Handle:    p.Handle,
		AvatarURL: p.AvatarURL,
	}
}
