package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every known event id",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			ids, err := sess.List()
			if err != nil {
				return fmt.Errorf("list events: %w", err)
			}

			out, err := formatEventIDs(ids, outputFormat)
			if err != nil {
				return fmt.Errorf("format events: %w", err)
			}
			fmt.Print(out)
			return nil
		},
	}
}
