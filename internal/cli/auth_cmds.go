package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oggyb/fahrme/internal/auth"
)

func loginCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "login EMAIL PASSWORD",
		Short: "Log in",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			res := rt.env.Auth.Login(cmd.Context(), auth.Credentials{Email: args[0], Password: args[1]})
			return printResult(cmd, res)
		},
	}
}

func registerCmd(rt *runtime) *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "register EMAIL PASSWORD",
		Short: "Create an account and log in",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			res := rt.env.Auth.Register(cmd.Context(), auth.Credentials{Email: args[0], Password: args[1], Name: name})
			return printResult(cmd, res)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name")
	return cmd
}

func confirmCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "confirm TOKEN",
		Short: "Confirm your email address with the token from the confirmation email",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return printResult(cmd, rt.env.Auth.Confirm(cmd.Context(), args[0]))
		},
	}
}

func logoutCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Log out and forget session data",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt.env.Auth.Logout(cmd.Context())
			fmt.Fprintln(cmd.OutOrStdout(), "Abgemeldet.")
			return nil
		},
	}
}

func whoamiCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := rt.env.User(cmd.Context())
			if err != nil {
				return err
			}
			if u == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "Nicht angemeldet.")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), describe(u))
			return nil
		},
	}
}

func printResult(cmd *cobra.Command, res auth.Result) error {
	switch {
	case !res.Success:
		return errors.New(res.Error)
	case res.Pending, res.User == nil:
		fmt.Fprintln(cmd.OutOrStdout(), res.Notice)
	default:
		fmt.Fprintln(cmd.OutOrStdout(), "Angemeldet als "+describe(res.User))
	}
	return nil
}

func describe(u *auth.User) string {
	if u.Handle == "" {
		return u.Email
	}
	return fmt.Sprintf("%s (@%s)", u.Email, u.Handle)
}
