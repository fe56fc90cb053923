package export

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	events "statusboard/internal/events/domain"
)

const sheetName = "events"

var columns = []string{"ID", "Type", "Level", "Name", "Time", "Summary"}

// Summary renders the variant payload as a single short line.
func Summary(event events.Event) string {
	switch p := event.Payload.(type) {
	case events.Job:
		return string(p.Status)
	case events.Health:
		return string(p.Status)
	case events.Status:
		return p.StatusText
	case events.Figure:
		return strings.TrimSpace(p.Value + " " + p.Subtext)
	case events.Quote:
		return fmt.Sprintf("%q - %s", p.Quote, p.Author)
	case events.Percentage:
		return fmt.Sprintf("%g%%", p.Value)
	case events.Statistics:
		parts := make([]string, 0, len(p.Statistics))
		for _, s := range p.Statistics {
			parts = append(parts, s.Label+": "+s.Value)
		}
		return strings.Join(parts, ", ")
	case events.Weather:
		return fmt.Sprintf("%g%s %s", p.Temperature, p.TemperatureUnit, p.Condition)
	case events.List:
		count := 0
		for _, section := range p.Sections {
			count += len(section.Items)
		}
		return fmt.Sprintf("%d items", count)
	case events.Image:
		return p.URL
	default:
		return ""
	}
}

func sortedRows(list []events.Event) [][]string {
	sorted := append([]events.Event(nil), list...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	rows := make([][]string, 0, len(sorted))
	for _, event := range sorted {
		at := ""
		if event.Time != nil {
			at = *event.Time
		}
		rows = append(rows, []string{
			event.ID,
			string(event.Type),
			string(event.Level),
			event.Name,
			at,
			Summary(event),
		})
	}
	return rows
}

// BuildSnapshotXLSX renders the cached events as a single-sheet workbook.
func BuildSnapshotXLSX(list []events.Event) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, err
	}

	for col, title := range columns {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, err
		}
		_ = f.SetCellValue(sheetName, cell, title)
	}
	for i, row := range sortedRows(list) {
		for col, value := range row {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return nil, err
			}
			_ = f.SetCellValue(sheetName, cell, value)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildSnapshotPDF renders the cached events as a landscape table.
func BuildSnapshotPDF(list []events.Event, generated time.Time) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Status Board Snapshot")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", generated.UTC().Format(time.RFC3339)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Events: %d", len(list)))
	pdf.Ln(8)

	widths := []float64{60, 22, 18, 50, 45, 82}
	pdf.SetFont("Arial", "B", 9)
	for col, title := range columns {
		pdf.CellFormat(widths[col], 6, title, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 9)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	for _, row := range sortedRows(list) {
		for col, value := range row {
			pdf.CellFormat(widths[col], 6, truncate(tr(value), widths[col]), "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// truncate keeps roughly what fits in a 9pt cell of the given width.
func truncate(value string, width float64) string {
	limit := int(width / 1.9)
	if len(value) <= limit {
		return value
	}
	if limit <= 3 {
		return value[:limit]
	}
	return value[:limit-3] + "..."
}
