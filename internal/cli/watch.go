package cli

import (
	"fmt"
	"io"
	"sync"

	"github.com/spf13/cobra"

	"github.com/oggyb/fahrme/internal/auth"
	"github.com/oggyb/fahrme/internal/likes"
)

func watchCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "watch [TYPE ID]",
		Short: "Print auth changes, and like changes of a target, until interrupted",
		Long: `Print every change of the logged in user made by any client on the same
storage. With TYPE and ID, also print the like status of that target
whenever it changes.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 && len(args) != 2 {
				return fmt.Errorf("accepts 0 or 2 arg(s), received %d", len(args))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := &syncWriter{w: cmd.OutOrStdout()}

			rt.env.Auth.OnAuthStateChanged(func(u *auth.User) {
				if u == nil {
					out.println("auth: abgemeldet")
					return
				}
				out.println("auth: " + describe(u))
			})

			u, err := rt.env.User(ctx)
			if err != nil {
				return err
			}

			if len(args) == 2 {
				t, err := parseTarget(args[0], args[1])
				if err != nil {
					return err
				}
				uid := ""
				if u != nil {
					uid = u.ID
				}
				changes, err := rt.env.Store.Watch(ctx)
				if err != nil {
					return err
				}
				b := likes.NewBinding(ctx, rt.env.Likes, uid, t, func(st likes.Status) {
					out.println(formatStatus(t, st))
				})
				go b.Run(ctx, changes)
			}

			<-ctx.Done()
			return nil
		},
	}
}

type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) println(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintln(s.w, line)
}
