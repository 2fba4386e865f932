package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/oggyb/fahrme/internal/logger"
	"github.com/oggyb/fahrme/internal/storage"
)

const DefaultReadyTimeout = 1500 * time.Millisecond

type Option func(*Synchronizer)

// WithReadyTimeout bounds how long Start waits for the session probe before
// declaring the synchronizer ready anyway.
func WithReadyTimeout(d time.Duration) Option {
	return func(s *Synchronizer) { s.readyTimeout = d }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Synchronizer) { s.log = l }
}

// Synchronizer owns the current user of one tab. It is built once in the
// composition root and handed to whoever needs it.
type Synchronizer struct {
	backend      Backend
	store        storage.Store
	log          *slog.Logger
	readyTimeout time.Duration

	subscribers Notifier[*User]
	ready       *Readiness
	flight      singleflight.Group

	mu   sync.Mutex
	user *User
}

func NewSynchronizer(backend Backend, store storage.Store, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		backend:      backend,
		store:        store,
		log:          logger.L(),
		readyTimeout: DefaultReadyTimeout,
		ready:        NewReadiness(),
	}
	for _, o := range opts {
		o(s)
	}
	s.log = s.log.With("component", "auth", "backend", backend.Name())
	return s
}

// Backend returns the backend in use.
func (s *Synchronizer) Backend() Backend { return s.backend }

// Start probes the session and follows session changes made by other tabs
// until ctx is done. Readiness is reached by whichever comes first: a user
// being found, the probe finishing, or the ready timeout expiring.
func (s *Synchronizer) Start(ctx context.Context) {
	changes, err := s.store.Watch(ctx)
	if err != nil {
		s.log.Warn("cross-tab sync disabled", "err", err)
	} else {
		go s.follow(ctx, changes)
	}

	probe := make(chan *User, 1)
	go func() { probe <- s.resolve(ctx) }()

	go func() {
		timer := time.NewTimer(s.readyTimeout)
		defer timer.Stop()

		select {
		case u := <-probe:
			s.publish(ctx, u)
			s.ready.Mark("probe")
			return
		case <-timer.C:
			if s.ready.Mark("timeout") {
				s.log.Debug("session probe still running, ready by timeout")
			}
		case <-ctx.Done():
			return
		}

		// late probe results still count
		select {
		case u := <-probe:
			s.publish(ctx, u)
		case <-ctx.Done():
		}
	}()
}

// Ready reports whether the first resolution attempt has finished.
func (s *Synchronizer) Ready() bool { return s.ready.Ready() }

// WaitReady blocks until Ready or ctx is done.
func (s *Synchronizer) WaitReady(ctx context.Context) error { return s.ready.Wait(ctx) }

// State reads readiness before the user, so a ready state never pairs with
// a user that was still being published.
func (s *Synchronizer) State() State {
	ready := s.ready.Ready()
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{User: s.user, Ready: ready}
}

// CurrentUser resolves the session through the backend. Failures are logged
// and read as "nobody".
func (s *Synchronizer) CurrentUser(ctx context.Context) *User {
	u := s.resolve(ctx)
	s.mu.Lock()
	s.user = u
	s.mu.Unlock()
	if u != nil {
		s.ready.Mark("user")
	}
	return u
}

// OnAuthStateChanged registers cb for every change of the current user and
// returns a function that unregisters it.
func (s *Synchronizer) OnAuthStateChanged(cb func(*User)) func() {
	return s.subscribers.Subscribe(cb)
}

// Login never returns an error; failures are described in the Result.
// Concurrent calls with the same credentials share one backend call.
func (s *Synchronizer) Login(ctx context.Context, c Credentials) Result {
	v, err, _ := s.flight.Do("login:"+fingerprint(c), func() (any, error) {
		return s.backend.Login(ctx, c)
	})
	return s.finish(ctx, "login", v, err)
}

// Register creates an account. When the backend wants the email confirmed
// first, the Result is Pending and nobody is logged in.
func (s *Synchronizer) Register(ctx context.Context, c Credentials) Result {
	v, err, _ := s.flight.Do("register:"+fingerprint(c), func() (any, error) {
		return s.backend.Register(ctx, c)
	})
	return s.finish(ctx, "register", v, err)
}

// Confirm confirms an email address with the token sent on registration.
// Like Login it never returns an error; nobody is logged in afterwards.
func (s *Synchronizer) Confirm(ctx context.Context, token string) Result {
	c, ok := s.backend.(Confirmer)
	if !ok {
		return Result{Error: MsgNoConfirmation}
	}
	err := c.Confirm(ctx, token)
	var failure *FailureError
	switch {
	case err == nil:
		return Result{Success: true, Notice: MsgEmailConfirmed}
	case errors.As(err, &failure):
		return Result{Error: failure.Message}
	default:
		s.log.Error("confirm failed", "err", err)
		return Result{Error: MsgGeneric}
	}
}

// Logout drops the session and every session-scoped key, keeps durable user
// content, and tells subscribers nobody is logged in. It is safe to call
// when nobody is logged in.
func (s *Synchronizer) Logout(ctx context.Context) {
	if err := s.backend.Logout(ctx); err != nil {
		s.log.Warn("backend logout failed", "err", err)
	}

	if _, err := storage.DeleteTransient(ctx, s.store); err != nil {
		s.log.Warn("clearing session data failed", "err", err)
	}

	s.publish(ctx, nil)
}

func (s *Synchronizer) finish(ctx context.Context, op string, v any, err error) Result {
	var failure *FailureError
	switch {
	case err == nil:
		u, _ := v.(*User)
		if u == nil {
			s.log.Error(op+" returned no user")
			return Result{Error: MsgGeneric}
		}
		s.publish(ctx, u)
		return Result{Success: true, User: u}
	case errors.Is(err, ErrConfirmationPending):
		return Result{Success: true, Pending: true, Notice: MsgConfirmEmail}
	case errors.As(err, &failure):
		return Result{Error: failure.Message}
	default:
		s.log.Error(op+" failed", "err", err)
		return Result{Error: MsgGeneric}
	}
}

// follow re-resolves the user on every session change from another tab and
// re-broadcasts it, whether or not it differs.
func (s *Synchronizer) follow(ctx context.Context, changes <-chan storage.Change) {
	keys := s.backend.SessionKeys()
	for c := range changes {
		if !slices.Contains(keys, c.Key) {
			continue
		}
		s.log.Debug("session changed in another tab", "key", c.Key, "source", c.Source)
		s.publish(ctx, s.resolve(ctx))
	}
}

func (s *Synchronizer) resolve(ctx context.Context) *User {
	u, err := s.backend.CurrentUser(ctx)
	if err != nil {
		s.log.Warn("resolving current user failed", "err", err)
		return nil
	}
	return u
}

// publish stores u, caches its profile and notifies subscribers.
func (s *Synchronizer) publish(ctx context.Context, u *User) {
	s.mu.Lock()
	s.user = u
	s.mu.Unlock()

	if u != nil {
		s.ready.Mark("user")
		if err := storage.SetJSON(ctx, s.store, storage.ProfileKey(u.ID), u); err != nil {
			s.log.Warn("caching profile failed", "err", err)
		}
	}
	s.subscribers.Notify(u)
}

// fingerprint keys in-flight calls without keeping the password around.
func fingerprint(c Credentials) string {
	sum := sha256.Sum256([]byte(normalizeEmail(c.Email) + "\x00" + c.Password + "\x00" + c.Name))
	return hex.EncodeToString(sum[:])
}
