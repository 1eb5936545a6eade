package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
)

const (
	formatJSON  = "json"
	formatTable = "table"
)

// errUnsupportedFormat is returned when the requested output format is not supported.
var errUnsupportedFormat = errors.New("unsupported output format")

// seatGridView is the JSON shape of a SHOW response.
type seatGridView struct {
	EventID uint32   `json:"event_id"`
	Rows    uint64   `json:"rows"`
	Cols    uint64   `json:"cols"`
	Seats   []uint32 `json:"seats"`
}

// formatSeatGrid renders an event's dimensions and seat grid in the
// requested format.
func formatSeatGrid(eventID uint32, rows, cols uint64, seats []uint32, format string) (string, error) {
	switch format {
	case formatJSON:
		return formatSeatGridJSON(eventID, rows, cols, seats)
	case formatTable:
		return formatSeatGridTable(eventID, rows, cols, seats), nil
	default:
		return "", fmt.Errorf("%w: %q", errUnsupportedFormat, format)
	}
}

func formatSeatGridJSON(eventID uint32, rows, cols uint64, seats []uint32) (string, error) {
	b, err := json.MarshalIndent(seatGridView{EventID: eventID, Rows: rows, Cols: cols, Seats: seats}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal seat grid: %w", err)
	}
	return string(b) + "\n", nil
}

func formatSeatGridTable(eventID uint32, rows, cols uint64, seats []uint32) string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "event %d: %d x %d\n", eventID, rows, cols)

	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	for r := uint64(0); r < rows; r++ {
		cells := make([]string, cols)
		for c := uint64(0); c < cols; c++ {
			cells[c] = fmt.Sprintf("%d", seats[r*cols+c])
		}
		fmt.Fprintln(w, strings.Join(cells, "\t"))
	}
	_ = w.Flush()

	return buf.String()
}

// formatEventIDs renders a LIST response in the requested format.
func formatEventIDs(ids []uint32, format string) (string, error) {
	switch format {
	case formatJSON:
		b, err := json.MarshalIndent(ids, "", "  ")
		if err != nil {
			return "", fmt.Errorf("marshal event ids: %w", err)
		}
		return string(b) + "\n", nil
	case formatTable:
		var buf strings.Builder
		fmt.Fprintln(&buf, "EVENT-ID")
		for _, id := range ids {
			fmt.Fprintf(&buf, "%d\n", id)
		}
		return buf.String(), nil
	default:
		return "", fmt.Errorf("%w: %q", errUnsupportedFormat, format)
	}
}
