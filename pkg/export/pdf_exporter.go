package export

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

// PDFExporter renders a requirement sheet into a two-column PDF.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// Render creates a PDF document with the sheet title and one bordered row per
// requirement.
func (e *PDFExporter) Render(sheet Sheet) ([]byte, error) {
	if len(sheet.Rows) == 0 {
		return nil, fmt.Errorf("sheet requires at least one row")
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.AddPage()

	if sheet.Title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 10, sheet.Title, "", 1, "C", false, 0, "")
		pdf.Ln(5)
	}

	const labelWidth, valueWidth = 60.0, 130.0
	for _, row := range sheet.Rows {
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(labelWidth, 8, row.Label, "1", 0, "", false, 0, "")
		pdf.SetFont("Arial", "", 9)
		pdf.CellFormat(valueWidth, 8, row.Value, "1", 1, "", false, 0, "")
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
