package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func showCmd() *cobra.Command {
	var eventID uint32

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show an event's dimensions and seat grid",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			rows, cols, seats, err := sess.Show(eventID)
			if err != nil {
				return fmt.Errorf("show event: %w", err)
			}

			out, err := formatSeatGrid(eventID, rows, cols, seats, outputFormat)
			if err != nil {
				return fmt.Errorf("format event: %w", err)
			}
			fmt.Print(out)
			return nil
		},
	}

	cmd.Flags().Uint32Var(&eventID, "event", 0, "event id (required)")
	_ = cmd.MarkFlagRequired("event")

	return cmd
}
