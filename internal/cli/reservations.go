package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/soyeahso/concierge/internal/domain"
	"github.com/spf13/cobra"
)

func newReservationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "reservations",
		Aliases: []string{"res"},
		Short:   "Inspect stored reservations",
	}

	cmd.AddCommand(newReservationsListCmd())
	cmd.AddCommand(newReservationsShowCmd())
	return cmd
}

func newReservationsListCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all reservations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := buildApp(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			list := a.reservations.List(cmd.Context())
			if asJSON {
				if list == nil {
					list = []domain.Reservation{}
				}
				return writeJSON(cmd.OutOrStdout(), list)
			}
			if len(list) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No reservations.")
				return nil
			}
			return printReservations(cmd.OutOrStdout(), list)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}

func newReservationsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one reservation as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid reservation id %q", args[0])
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := buildApp(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			r, ok := a.reservations.FindByID(cmd.Context(), id)
			if !ok {
				return fmt.Errorf("%w: %d", domain.ErrReservationNotFound, id)
			}
			return writeJSON(cmd.OutOrStdout(), r)
		},
	}
}

func printReservations(w io.Writer, list []domain.Reservation) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tUSER\tCHECK-IN\tCHECK-OUT\tROOM\tGUESTS\tTOTAL\tUPDATED")
	for _, r := range list {
		updated := "-"
		if r.UpdatedAt != nil {
			updated = r.UpdatedAt.Format("2006-01-02 15:04")
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
			r.ID, r.UserID, r.CheckInDate, r.CheckOutDate, r.RoomType, r.NumGuests, r.TotalPrice, updated)
	}
	return tw.Flush()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
