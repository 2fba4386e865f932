package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/oggyb/fahrme/internal/garage"
)

func carCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "car",
		Short: "Manage the vehicles in your garage",
	}

	var (
		year     int
		nickname string
		former   bool
	)
	add := &cobra.Command{
		Use:   "add MAKE MODEL",
		Short: "Add a vehicle",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			uid, err := rt.userID(cmd.Context())
			if err != nil {
				return err
			}
			v := garage.Vehicle{Make: args[0], Model: args[1], Year: year, Nickname: nickname}
			if former {
				v.Status = garage.StatusFormer
			}
			v, err = rt.env.Garage.AddVehicle(cmd.Context(), uid, v)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s hinzugefügt\n", v.ID, v.Make, v.Model)
			return nil
		},
	}
	add.Flags().IntVar(&year, "year", 0, "model year")
	add.Flags().StringVar(&nickname, "nickname", "", "nickname")
	add.Flags().BoolVar(&former, "former", false, "a vehicle you no longer own")

	list := &cobra.Command{
		Use:   "list",
		Short: "List your vehicles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			uid, err := rt.userID(cmd.Context())
			if err != nil {
				return err
			}
			cars, err := rt.env.Garage.Vehicles(cmd.Context(), uid)
			if err != nil {
				return err
			}
			if len(cars) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Noch keine Fahrzeuge.")
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, c := range cars {
				year := ""
				if c.Year > 0 {
					year = fmt.Sprint(c.Year)
				}
				fmt.Fprintf(w, "%s\t%s %s\t%s\t%s\t%s\n", c.ID, c.Make, c.Model, year, c.Nickname, c.Status)
			}
			return w.Flush()
		},
	}

	rm := &cobra.Command{
		Use:   "rm ID",
		Short: "Remove a vehicle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			uid, err := rt.userID(cmd.Context())
			if err != nil {
				return err
			}
			if err := rt.env.Garage.RemoveVehicle(cmd.Context(), uid, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s entfernt\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(add, list, rm)
	return cmd
}

func draftCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "draft",
		Short: "Logbook drafts; they are dropped on logout",
	}

	save := &cobra.Command{
		Use:   "save NAME CONTENT",
		Short: "Save a draft",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			uid, err := rt.userID(cmd.Context())
			if err != nil {
				return err
			}
			if err := rt.env.Garage.SaveDraft(cmd.Context(), uid, args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Entwurf %q gespeichert\n", args[0])
			return nil
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List draft names",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			uid, err := rt.userID(cmd.Context())
			if err != nil {
				return err
			}
			names, err := rt.env.Garage.Drafts(cmd.Context(), uid)
			if err != nil {
				return err
			}
			for _, n := range names {
				fmt.Fprintln(cmd.OutOrStdout(), n)
			}
			return nil
		},
	}

	show := &cobra.Command{
		Use:   "show NAME",
		Short: "Print a draft",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			uid, err := rt.userID(cmd.Context())
			if err != nil {
				return err
			}
			text, err := rt.env.Garage.Draft(cmd.Context(), uid, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}

	cmd.AddCommand(save, list, show)
	return cmd
}
