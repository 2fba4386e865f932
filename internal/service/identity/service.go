package identity

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"google.golang.org/protobuf/types/known/structpb"
	"gorm.io/gorm"

	"github.com/oggyb/fahrme/internal/app"
	"github.com/oggyb/fahrme/internal/db"
	svcErr "github.com/oggyb/fahrme/internal/errors"
	"github.com/oggyb/fahrme/internal/repository"
	"github.com/oggyb/fahrme/internal/rpc"
	"github.com/oggyb/fahrme/internal/token"
)

// Messages returned to clients. Clients show them as they are.
const (
	MsgInvalidCredentials = "Invalid login credentials"
	MsgEmailNotConfirmed  = "Email not confirmed"
	MsgAlreadyRegistered  = "User already registered"
	MsgPasswordTooShort   = "Password should be at least 6 characters"
	MsgInvalidEmail       = "Unable to validate email address: invalid format"
	MsgTooManyAttempts    = "Too many login attempts, try again later"
	MsgInvalidConfirm     = "Token has expired or is invalid"
	MsgMissingSession     = "Auth session missing"
	MsgUserGone           = "User from sub claim in JWT does not exist"
)

const minPasswordLen = 6

// Service implements the Identity gRPC API.
// It contains the business logic on top of repository and cache layers.
type Service struct {
	appCtx *app.AppContext
	users  *repository.UserRepository
	now    func() time.Time
}

var _ rpc.IdentityServer = (*Service)(nil)

// NewIdentityService creates a new Identity service with dependencies from AppContext.
// Dependencies include:
//   - DB connection (via UserRepository)
//   - RedisCache for profiles and the login throttle
func NewIdentityService(appCtx *app.AppContext) *Service {
	return &Service{
		appCtx: appCtx,
		users:  repository.NewUserRepository(appCtx.DB),
		now:    time.Now,
	}
}

// Register creates an account.
//
// Behavior:
//   - Emails are trimmed and lower-cased; the password needs six characters.
//   - With confirmation required, no token is issued and the reply carries
//     confirmationRequired = true.
//   - Otherwise the new user is logged in right away.
func (s *Service) Register(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	creds := rpc.CredentialsFrom(in)
	email := normalizeEmail(creds.Email)

	s.appCtx.Logger.Debug("Register called", "email", email)

	if _, err := mail.ParseAddress(email); err != nil || email == "" {
		return nil, svcErr.InvalidArgument(MsgInvalidEmail)
	}
	if len(creds.Password) < minPasswordLen {
		return nil, svcErr.InvalidArgument(MsgPasswordTooShort)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(creds.Password), bcrypt.DefaultCost)
	if err != nil {
		s.appCtx.Logger.Error("hashing password failed", "err", err)
		return nil, svcErr.Map(err)
	}
	handle, err := s.freeHandle(ctx, email)
	if err != nil {
		s.appCtx.Logger.Error("picking handle failed", "err", err)
		return nil, svcErr.Map(err)
	}

	u := &db.User{
		Email:        email,
		Name:         strings.TrimSpace(creds.Name),
		Handle:       handle,
		PasswordHash: string(hash),
		Confirmed:    !s.appCtx.Config.Auth.RequireConfirmation,
	}
	if !u.Confirmed {
		u.ConfirmToken = uuid.NewString()
	}

	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, svcErr.AlreadyExists(MsgAlreadyRegistered)
		}
		s.appCtx.Logger.Error("creating user failed", "err", err)
		return nil, svcErr.Map(err)
	}

	profile := profileOf(u)
	if !u.Confirmed {
		s.appCtx.Logger.Info("user registered, confirmation pending", "user", profile.ID)
		return rpc.AuthReply{User: profile, ConfirmationRequired: true}.Struct(), nil
	}

	reply, err := s.startSession(ctx, u)
	if err != nil {
		return nil, err
	}
	s.appCtx.Logger.Info("user registered", "user", profile.ID)
	return reply.Struct(), nil
}

// Login checks the credentials and issues a session token.
//
// Behavior:
//   - Attempts are throttled per email; the throttle fails open when Redis
//     is unreachable.
//   - Unknown email and wrong password are indistinguishable to the caller.
//   - Unconfirmed accounts cannot log in.
func (s *Service) Login(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	creds := rpc.CredentialsFrom(in)
	email := normalizeEmail(creds.Email)

	s.appCtx.Logger.Debug("Login called", "email", email)

	if s.appCtx.RedisCache != nil {
		cfg := s.appCtx.Config.Auth
		ok, err := s.appCtx.RedisCache.AllowLogin(ctx, email, cfg.LoginAttempts, cfg.LoginWindow)
		if err != nil {
			s.appCtx.Logger.Warn("login throttle unavailable", "err", err)
		}
		if !ok {
			return nil, svcErr.ResourceExhausted(MsgTooManyAttempts)
		}
	}

	u, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, svcErr.InvalidArgument(MsgInvalidCredentials)
	}
	if err != nil {
		s.appCtx.Logger.Error("FindByEmail failed", "err", err)
		return nil, svcErr.Map(err)
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(creds.Password)) != nil {
		return nil, svcErr.InvalidArgument(MsgInvalidCredentials)
	}
	if !u.Confirmed {
		return nil, svcErr.FailedPrecondition(MsgEmailNotConfirmed)
	}

	reply, err := s.startSession(ctx, u)
	if err != nil {
		return nil, err
	}
	if s.appCtx.RedisCache != nil {
		if err := s.appCtx.RedisCache.ResetLogin(ctx, email); err != nil {
			s.appCtx.Logger.Warn("resetting login throttle failed", "err", err)
		}
	}
	return reply.Struct(), nil
}

// Session returns the profile of the authenticated caller. The auth
// interceptor has already checked the token; the profile is served from
// Redis when cached and from the DB otherwise.
func (s *Service) Session(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	uid, ok := token.UserIDFrom(ctx)
	if !ok {
		return nil, svcErr.Unauthenticated(MsgMissingSession)
	}

	if s.appCtx.RedisCache != nil {
		p, hit, err := s.appCtx.RedisCache.GetProfile(ctx, uid)
		if err != nil {
			s.appCtx.Logger.Warn("profile cache read failed", "err", err)
		}
		if hit {
			s.appCtx.Logger.Debug("Session served from cache", "user", uid)
			return p.Struct(), nil
		}
	}

	id, err := strconv.ParseUint(uid, 10, 64)
	if err != nil {
		return nil, svcErr.Unauthenticated(MsgUserGone)
	}
	u, err := s.users.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, svcErr.Unauthenticated(MsgUserGone)
	}
	if err != nil {
		s.appCtx.Logger.Error("FindByID failed", "err", err)
		return nil, svcErr.Map(err)
	}

	p := profileOf(u)
	s.cacheProfile(ctx, p)
	return p.Struct(), nil
}

// Confirm consumes a confirmation token. The account can log in afterwards.
func (s *Service) Confirm(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req := rpc.ConfirmRequestFrom(in)

	u, err := s.users.Confirm(ctx, req.Token)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, svcErr.InvalidArgument(MsgInvalidConfirm)
	}
	if err != nil {
		s.appCtx.Logger.Error("Confirm failed", "err", err)
		return nil, svcErr.Map(err)
	}

	s.appCtx.Logger.Info("email confirmed", "user", u.PublicID())
	return profileOf(u).Struct(), nil
}

func (s *Service) startSession(ctx context.Context, u *db.User) (rpc.AuthReply, error) {
	cfg := s.appCtx.Config.Auth
	tok, err := token.Issue(u.PublicID(), []byte(cfg.JWTSecret), cfg.TokenTTL)
	if err != nil {
		s.appCtx.Logger.Error("issuing token failed", "err", err)
		return rpc.AuthReply{}, svcErr.Map(err)
	}
	if err := s.users.TouchLogin(ctx, u.ID, s.now().UTC()); err != nil {
		s.appCtx.Logger.Warn("recording login failed", "user", u.ID, "err", err)
	}

	p := profileOf(u)
	s.cacheProfile(ctx, p)
	return rpc.AuthReply{Token: tok, User: p}, nil
}

func (s *Service) cacheProfile(ctx context.Context, p rpc.Profile) {
	if s.appCtx.RedisCache == nil {
		return
	}
	if err := s.appCtx.RedisCache.SetProfile(ctx, p); err != nil {
		s.appCtx.Logger.Warn("profile cache write failed", "err", err)
	}
}

// freeHandle derives a handle from the local part of email and appends a
// number while it is taken.
func (s *Service) freeHandle(ctx context.Context, email string) (string, error) {
	base, _, _ := strings.Cut(email, "@")
	if base == "" {
		base = "fahrer"
	}
	handle := base
	for i := 2; ; i++ {
		taken, err := s.users.HandleTaken(ctx, handle)
		if err != nil {
			return "", err
		}
		if !taken {
			return handle, nil
		}
		handle = fmt.Sprintf("%s%d", base, i)
	}
}

func profileOf(u *db.User) rpc.Profile {
	return rpc.Profile{
		ID:        u.PublicID(),
		Email:     u.Email,
		Handle:    u.Handle,
		Name:      u.Name,
		AvatarURL: u.AvatarURL,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
