package cli

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/oggyb/fahrme/internal/config"
	"github.com/oggyb/fahrme/internal/logger"
)

// ErrNotLoggedIn is returned by commands that need a user.
var ErrNotLoggedIn = errors.New("Nicht angemeldet. Bitte zuerst `fahrme login` ausführen.")

type runtime struct {
	cfg  *config.Config
	log  *slog.Logger
	open OpenFunc
	env  *Env
}

// NewRootCmd builds the command tree. open builds the Env before every
// command runs.
func NewRootCmd(cfg *config.Config, log *slog.Logger, open OpenFunc) *cobra.Command {
	rt := &runtime{cfg: cfg, log: log, open: open}

	root := &cobra.Command{
		Use:   "fahrme",
		Short: "fahrme.de client",
		Long: `Command line client for fahrme.de. Every invocation behaves like one
browser tab: it shares sessions and likes with every other running client
on the same storage.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			env, err := rt.open(cmd.Context(), rt.cfg, rt.log)
			if err != nil {
				return err
			}
			rt.env = env
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if rt.env != nil {
				rt.env.Close()
			}
		},
	}

	root.PersistentFlags().StringVar(&cfg.Auth.Backend, "backend", cfg.Auth.Backend, "auth backend: embedded or hosted")
	root.PersistentFlags().StringVar(&cfg.Storage.Driver, "storage", cfg.Storage.Driver, "storage driver: redis or memory")
	root.PersistentFlags().StringVar(&cfg.Storage.TabID, "tab", cfg.Storage.TabID, "tab id (random when empty)")

	root.AddCommand(
		loginCmd(rt),
		registerCmd(rt),
		confirmCmd(rt),
		logoutCmd(rt),
		whoamiCmd(rt),
		likeCmd(rt, "like", "Like a target", opLike),
		likeCmd(rt, "unlike", "Remove a like", opUnlike),
		likeCmd(rt, "toggle", "Like or unlike a target", opToggle),
		likeCmd(rt, "status", "Show the like status of a target", opStatus),
		likesCmd(rt),
		seedCountCmd(rt),
		carCmd(rt),
		draftCmd(rt),
		watchCmd(rt),
	)
	return root
}

// Execute runs the client with configuration from the environment.
func Execute(ctx context.Context) error {
	cfg := config.New()

	// stdout belongs to command output
	logger.Init(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     logger.Format(cfg.Log.Format),
		Component:  "fahrme-cli",
		WithSource: cfg.Log.Source,
		Output:     os.Stderr,
	})

	return NewRootCmd(cfg, logger.L(), Open).ExecuteContext(ctx)
}

// userID returns the id of the logged in user or ErrNotLoggedIn.
func (rt *runtime) userID(ctx context.Context) (string, error) {
	u, err := rt.env.User(ctx)
	if err != nil {
		return "", err
	}
	if u == nil {
		return "", ErrNotLoggedIn
	}
	return u.ID, nil
}
