package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/oggyb/fahrme/internal/likes"
)

type likeOp func(s *likes.Store, ctx context.Context, userID string, t likes.Target) (likes.Status, error)

var (
	opLike   likeOp = (*likes.Store).Like
	opUnlike likeOp = (*likes.Store).Unlike
	opToggle likeOp = (*likes.Store).Toggle
	opStatus likeOp = (*likes.Store).GetStatus
)

func likeCmd(rt *runtime, use, short string, op likeOp) *cobra.Command {
	return &cobra.Command{
		Use:   use + " TYPE ID",
		Short: short,
		Long:  short + ". TYPE is one of POST, COMMENT, CAR, ALBUM.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := parseTarget(args[0], args[1])
			if err != nil {
				return err
			}
			uid, err := rt.userID(cmd.Context())
			if err != nil {
				return err
			}
			st, err := op(rt.env.Likes, cmd.Context(), uid, t)
			if err != nil {
				return err
			}
			printStatus(cmd, t, st)
			return nil
		},
	}
}

func likesCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "likes",
		Short: "Your likes",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List everything you like",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			uid, err := rt.userID(cmd.Context())
			if err != nil {
				return err
			}
			targets, err := rt.env.Likes.LikedTargets(cmd.Context(), uid)
			if err != nil {
				return err
			}
			if len(targets) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Noch keine Likes.")
				return nil
			}
			for _, t := range targets {
				fmt.Fprintln(cmd.OutOrStdout(), t.String())
			}
			return nil
		},
	})
	return cmd
}

func seedCountCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "seed-count TYPE ID COUNT",
		Short: "Seed the like counter of a target from historical data",
		Long: `Seed the like counter of a target. Targets that already have a counter
keep it.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := parseTarget(args[0], args[1])
			if err != nil {
				return err
			}
			n, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("COUNT must be a number: %w", err)
			}
			st, err := rt.env.Likes.InitializeCounters(cmd.Context(), t, n)
			if err != nil {
				return err
			}
			printStatus(cmd, t, st)
			return nil
		},
	}
}

func parseTarget(typ, id string) (likes.Target, error) {
	tt, err := likes.ParseTargetType(typ)
	if err != nil {
		return likes.Target{}, fmt.Errorf("%w: %q", err, typ)
	}
	t := likes.Target{Type: tt, ID: id}
	if !t.Valid() {
		return likes.Target{}, likes.ErrInvalidTarget
	}
	return t, nil
}

func printStatus(cmd *cobra.Command, t likes.Target, st likes.Status) {
	fmt.Fprintln(cmd.OutOrStdout(), formatStatus(t, st))
}

func formatStatus(t likes.Target, st likes.Status) string {
	mark := " "
	if st.Liked {
		mark = "♥"
	}
	return fmt.Sprintf("%s %s likes=%d", mark, t, st.LikeCount)
}
