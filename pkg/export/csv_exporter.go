package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// CSVExporter renders a requirement sheet into CSV bytes.
type CSVExporter struct{}

// NewCSVExporter builds a CSV exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// Render produces CSV encoded bytes for the sheet, one row per requirement.
func (e *CSVExporter) Render(sheet Sheet) ([]byte, error) {
	if len(sheet.Rows) == 0 {
		return nil, fmt.Errorf("sheet requires at least one row")
	}
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	if err := writer.Write([]string{"field", "value"}); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	for _, row := range sheet.Rows {
		if err := writer.Write([]string{row.Label, row.Value}); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
