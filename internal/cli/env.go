// Package cli is the command line client. One invocation behaves like one
// browser tab on the shared storage.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/oggyb/fahrme/internal/auth"
	"github.com/oggyb/fahrme/internal/config"
	"github.com/oggyb/fahrme/internal/garage"
	"github.com/oggyb/fahrme/internal/likes"
	"github.com/oggyb/fahrme/internal/storage"
)

// Env is the client composition root: everything a command needs, built
// once per invocation.
type Env struct {
	Config *config.Config
	Log    *slog.Logger
	Store  storage.Store
	Auth   *auth.Synchronizer
	Likes  *likes.Store
	Garage *garage.Garage

	closers []func() error
	started sync.Once
}

// OpenFunc builds an Env. Tests swap it for one running on a MemoryArea.
type OpenFunc func(ctx context.Context, cfg *config.Config, log *slog.Logger) (*Env, error)

// Open builds the Env described by cfg.
func Open(ctx context.Context, cfg *config.Config, log *slog.Logger) (*Env, error) {
	env := &Env{Config: cfg, Log: log}

	switch cfg.Storage.Driver {
	case "redis":
		rs := storage.NewRedisStoreFromConfig(cfg, storage.WithLogger(log))
		if err := rs.Ping(ctx); err != nil {
			// likes fall back to memory on their own; auth reads as logged out
			log.Warn("shared storage unreachable", "addr", cfg.Redis.Addr, "err", err)
		}
		env.Store = rs
		env.closers = append(env.closers, rs.Close)
	case "memory":
		env.Store = storage.NewMemoryArea().Tab()
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}

	backend, err := openBackend(cfg, env, log)
	if err != nil {
		env.Close()
		return nil, err
	}
	return env.wire(ctx, backend), nil
}

// NewEnv wires an Env around an existing tab and backend.
func NewEnv(ctx context.Context, cfg *config.Config, log *slog.Logger, tab storage.Store, backend auth.Backend) *Env {
	env := &Env{Config: cfg, Log: log, Store: tab}
	return env.wire(ctx, backend)
}

func (e *Env) wire(ctx context.Context, backend auth.Backend) *Env {
	e.Auth = auth.NewSynchronizer(backend, e.Store,
		auth.WithReadyTimeout(e.Config.Auth.ReadyTimeout),
		auth.WithLogger(e.Log),
	)
	e.Likes = likes.New(ctx, e.Store,
		likes.WithRateLimit(e.Config.Likes.RateLimit, e.Config.Likes.RateWindow),
		likes.WithLogger(e.Log),
	)
	e.Garage = garage.New(e.Store)
	return e
}

func openBackend(cfg *config.Config, env *Env, log *slog.Logger) (auth.Backend, error) {
	switch cfg.Auth.Backend {
	case "embedded":
		return auth.NewEmbeddedBackend(env.Store, log), nil
	case "hosted":
		conn, err := grpc.NewClient(cfg.Auth.HostedAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			return nil, fmt.Errorf("dial identity provider: %w", err)
		}
		env.closers = append(env.closers, conn.Close)
		return auth.NewHostedBackend(conn, env.Store, log), nil
	default:
		return nil, fmt.Errorf("unknown auth backend %q", cfg.Auth.Backend)
	}
}

// Close releases connections in reverse order of opening.
func (e *Env) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			e.Log.Warn("close failed", "err", err)
		}
	}
	e.closers = nil
}

// Start runs the synchronizer until ctx is done. Calling it again is a no-op.
func (e *Env) Start(ctx context.Context) {
	e.started.Do(func() { e.Auth.Start(ctx) })
}

// User waits for the synchronizer to be ready and returns the current user,
// or nil when nobody is logged in. Readiness may have been reached by
// timeout, so an empty state is confirmed with one more probe.
func (e *Env) User(ctx context.Context) (*auth.User, error) {
	e.Start(ctx)
	if err := e.Auth.WaitReady(ctx); err != nil {
		return nil, err
	}
	if u := e.Auth.State().User; u != nil {
		return u, nil
	}
	return e.Auth.CurrentUser(ctx), nil
}
