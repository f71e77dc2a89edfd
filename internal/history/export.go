package history

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/prite36/irrigation-control/internal/models"
)

var csvHeader = []string{"Date", "Time", "Mode", "Duration", "Status", "Notes"}

// WriteCSV renders entries in export format, one row per entry, in order.
func WriteCSV(w io.Writer, entries []models.HistoryEntry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, e := range entries {
		row := []string{
			e.Timestamp.Format("2006-01-02"),
			e.Timestamp.Format("15:04"),
			e.Mode.Label(),
			fmt.Sprintf("%d", e.Duration),
			string(e.Status),
			e.Notes,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
