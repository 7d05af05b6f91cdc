package signals

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// MarkerSheet is the worksheet written by ExportMarkers
const MarkerSheet = "markers"

var markerHeader = []any{
	"signal_date", "symbol", "action", "reason", "score", "date_used", "price_used", "exact_match",
}

// ExportMarkers writes aligned markers as an xlsx workbook to w
func ExportMarkers(w io.Writer, markers []AlignedMarker) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", MarkerSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := f.SetSheetRow(MarkerSheet, "A1", &markerHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, m := range markers {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		var score any
		if m.Signal.Score != nil {
			score = *m.Signal.Score
		}
		row := []any{
			m.Signal.Date.Format(DateLayout),
			m.Signal.Symbol,
			string(m.Signal.Action),
			m.Signal.Reason,
			score,
			m.DateUsed.Format(DateLayout),
			m.PriceUsed,
			m.ExactMatch,
		}
		if err := f.SetSheetRow(MarkerSheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
