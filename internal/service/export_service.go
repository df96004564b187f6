package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/scholarhub/journal-req-api/internal/models"
	appErrors "github.com/scholarhub/journal-req-api/pkg/errors"
	"github.com/scholarhub/journal-req-api/pkg/export"
)

type csvRenderer interface {
	Render(sheet export.Sheet) ([]byte, error)
}

type pdfRenderer interface {
	Render(sheet export.Sheet) ([]byte, error)
}

// ExportResult carries a rendered requirement sheet and its HTTP metadata.
type ExportResult struct {
	Data        []byte
	ContentType string
	Filename    string
}

// ExportService renders a journal's requirement sheet for download.
type ExportService struct {
	journals *JournalService
	csv      csvRenderer
	pdf      pdfRenderer
	logger   *zap.Logger
}

// NewExportService constructs an ExportService.
func NewExportService(journals *JournalService, csv csvRenderer, pdf pdfRenderer, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{journals: journals, csv: csv, pdf: pdf, logger: logger}
}

// Export renders the journal identified by id in the requested format.
// Supported formats are "csv" (default) and "pdf".
func (s *ExportService) Export(ctx context.Context, id, format string) (*ExportResult, error) {
	detail, err := s.journals.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	sheet := buildRequirementSheet(detail)
	slug := slugify(detail.JournalName)

	switch strings.ToLower(format) {
	case "", "csv":
		data, err := s.csv.Render(sheet)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return &ExportResult{Data: data, ContentType: "text/csv", Filename: slug + "-requirements.csv"}, nil
	case "pdf":
		data, err := s.pdf.Render(sheet)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return &ExportResult{Data: data, ContentType: "application/pdf", Filename: slug + "-requirements.pdf"}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
}

func buildRequirementSheet(detail *models.JournalDetail) export.Sheet {
	rows := []export.Row{
		{Label: "Journal name", Value: detail.JournalName},
		{Label: "ISSN", Value: stringOr(detail.ISSN, "")},
		{Label: "Publisher", Value: stringOr(detail.Publisher, "")},
		{Label: "Impact factor", Value: floatOr(detail.ImpactFactor)},
		{Label: "Formatting requirements", Value: stringOr(detail.FormattingRequirements, "")},
		{Label: "Font specifications", Value: stringOr(detail.FontSpecifications, "")},
		{Label: "Word count limit", Value: intOr(detail.WordCountLimit)},
		{Label: "Reference style", Value: stringOr(detail.ReferenceStyle, "")},
		{Label: "Reference count limit", Value: intOr(detail.ReferenceCountLimit)},
		{Label: "Submission URL", Value: stringOr(detail.SubmissionURL, "")},
		{Label: "Official guidelines", Value: detail.OfficialGuidelinesURL},
		{Label: "Notes", Value: stringOr(detail.Notes, "")},
	}
	return export.Sheet{Title: detail.JournalName + " Submission Requirements", Rows: rows}
}

func slugify(name string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		case !lastDash:
			b.WriteByte('-')
			lastDash = true
		}
	}
	slug := strings.TrimRight(b.String(), "-")
	if slug == "" {
		return "journal"
	}
	return slug
}

func stringOr(value *string, fallback string) string {
	if value == nil {
		return fallback
	}
	return *value
}

func floatOr(value *float64) string {
	if value == nil {
		return ""
	}
	return strconv.FormatFloat(*value, 'g', -1, 64)
}

func intOr(value *int) string {
	if value == nil {
		return ""
	}
	return strconv.Itoa(*value)
}
