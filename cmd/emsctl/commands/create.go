package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func createCmd() *cobra.Command {
	var (
		eventID uint32
		rows    uint64
		cols    uint64
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new event with a seat grid",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if err := sess.Create(eventID, rows, cols); err != nil {
				return fmt.Errorf("create event: %w", err)
			}
			fmt.Printf("event %d created (%d x %d)\n", eventID, rows, cols)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.Uint32Var(&eventID, "event", 0, "event id (required)")
	flags.Uint64Var(&rows, "rows", 0, "number of seat rows (required)")
	flags.Uint64Var(&cols, "cols", 0, "number of seat columns (required)")
	_ = cmd.MarkFlagRequired("event")
	_ = cmd.MarkFlagRequired("rows")
	_ = cmd.MarkFlagRequired("cols")

	return cmd
}
