package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func quitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "quit",
		Short: "Send an explicit QUIT and close the session",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if err := sess.Quit(); err != nil {
				return fmt.Errorf("quit session: %w", err)
			}
			fmt.Printf("session %d closed\n", sess.AssignedID())
			return nil
		},
	}
}
