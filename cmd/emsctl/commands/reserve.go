package commands

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// errSeatCountMismatch indicates --xs and --ys named different numbers
// of seats.
var errSeatCountMismatch = errors.New("--xs and --ys must name the same number of seats")

func reserveCmd() *cobra.Command {
	var (
		eventID uint32
		xsRaw   string
		ysRaw   string
	)

	cmd := &cobra.Command{
		Use:   "reserve",
		Short: "Reserve a set of seats for an event",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			xs, err := parseUintList(xsRaw)
			if err != nil {
				return fmt.Errorf("parse --xs: %w", err)
			}
			ys, err := parseUintList(ysRaw)
			if err != nil {
				return fmt.Errorf("parse --ys: %w", err)
			}
			if len(xs) != len(ys) {
				return errSeatCountMismatch
			}

			if err := sess.Reserve(eventID, xs, ys); err != nil {
				return fmt.Errorf("reserve seats: %w", err)
			}
			fmt.Printf("reserved %d seat(s) on event %d\n", len(xs), eventID)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.Uint32Var(&eventID, "event", 0, "event id (required)")
	flags.StringVar(&xsRaw, "xs", "", "comma-separated row indices (required)")
	flags.StringVar(&ysRaw, "ys", "", "comma-separated column indices (required)")
	_ = cmd.MarkFlagRequired("event")
	_ = cmd.MarkFlagRequired("xs")
	_ = cmd.MarkFlagRequired("ys")

	return cmd
}

// parseUintList parses a comma-separated list of non-negative integers.
func parseUintList(s string) ([]uint64, error) {
	parts := strings.Split(s, ",")
	out := make([]uint64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.ParseUint(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse %q: %w", p, err)
		}
		out = append(out, v)
	}
	return out, nil
}
