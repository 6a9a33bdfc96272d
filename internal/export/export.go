package export

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"leihlokal/internal/models"
	"leihlokal/internal/schedule"
	"leihlokal/internal/table"

	"github.com/xuri/excelize/v2"
)

const (
	gridSheet     = "Belegung"
	overflowSheet = "Überbuchung"
)

// ColumnHeader labels a grid column, e.g. "Bohrmaschine #2" for a multi-copy item.
func ColumnHeader(c schedule.Column, copies int) string {
	if copies > 1 {
		return fmt.Sprintf("%s #%d", c.ItemName, c.Lane+1)
	}
	return c.ItemName
}

// CellText is what a span shows in its cells.
func CellText(s schedule.Span) string {
	if s.CopyCount > 1 {
		return fmt.Sprintf("%s ×%d", s.CustomerName, s.CopyCount)
	}
	return s.CustomerName
}

// Matrix flattens a layout into a text grid without the synthetic columns.
// Every cell covered by a span carries its text.
func Matrix(layout schedule.Layout) ([]string, [][]string) {
	copies := make(map[string]int)
	for _, c := range layout.Columns {
		if !c.Synthetic {
			copies[c.ItemID]++
		}
	}

	out := make(map[int]int, len(layout.Columns))
	header := []string{"Datum"}
	for i, c := range layout.Columns {
		if c.Synthetic {
			continue
		}
		out[i] = len(header)
		header = append(header, ColumnHeader(c, copies[c.ItemID]))
	}

	rows := make([][]string, len(layout.Rows))
	for i, r := range layout.Rows {
		rows[i] = make([]string, len(header))
		rows[i][0] = r.Label
	}
	for _, s := range layout.Spans {
		text := CellText(s)
		for row := s.RowStart; row < s.RowEnd && row < len(rows); row++ {
			for col := s.ColStart; col < s.ColEnd; col++ {
				if idx, ok := out[col]; ok {
					rows[row][idx] = text
				}
			}
		}
	}
	return header, rows
}

// MonthWorkbook renders the grid with merged booking cells, shaded closed days
// and an overflow sheet listing bookings that found no lane.
func MonthWorkbook(month time.Time, layout schedule.Layout, itemNames map[string]string) (*excelize.File, error) {
	f := excelize.NewFile()

	index, err := f.NewSheet(gridSheet)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(index)
	_ = f.DeleteSheet("Sheet1")

	header, rows := Matrix(layout)

	_ = f.SetCellValue(gridSheet, "A1", fmt.Sprintf("Belegung %s", month.Format("01/2006")))
	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	lastCol, _ := excelize.ColumnNumberToName(len(header))
	_ = f.MergeCell(gridSheet, "A1", lastCol+"1")
	_ = f.SetCellStyle(gridSheet, "A1", "A1", titleStyle)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	for i, h := range header {
		cell, _ := excelize.CoordinatesToCellName(i+1, 2)
		_ = f.SetCellValue(gridSheet, cell, h)
		_ = f.SetCellStyle(gridSheet, cell, cell, headerStyle)
	}

	closedStyle, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#EDEDED"}, Pattern: 1},
		Font: &excelize.Font{Color: "#808080"},
	})
	for i, r := range layout.Rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+3)
		_ = f.SetCellValue(gridSheet, cell, rows[i][0])
		if r.Closed {
			end, _ := excelize.CoordinatesToCellName(len(header), i+3)
			_ = f.SetCellStyle(gridSheet, cell, end, closedStyle)
		}
	}

	if err := writeSpans(f, layout, header); err != nil {
		return nil, err
	}

	_ = f.SetColWidth(gridSheet, "A", "A", 12)
	if len(header) > 1 {
		second, _ := excelize.ColumnNumberToName(2)
		_ = f.SetColWidth(gridSheet, second, lastCol, 18)
	}
	_ = f.SetPanes(gridSheet, &excelize.Panes{Freeze: true, XSplit: 1, YSplit: 2, TopLeftCell: "B3", ActivePane: "bottomRight"})

	if len(layout.Overflow) > 0 {
		if err := writeBookings(f, overflowSheet, layout.Overflow, itemNames); err != nil {
			return nil, err
		}
	}
	return f, nil
}

func writeSpans(f *excelize.File, layout schedule.Layout, header []string) error {
	// индекс столбца сетки -> столбец листа (1-based), без синтетических
	sheetCol := make(map[int]int, len(layout.Columns))
	n := 2
	for i, c := range layout.Columns {
		if c.Synthetic {
			continue
		}
		sheetCol[i] = n
		n++
	}

	bookingStyles := map[string]int{}
	for _, status := range []string{models.StatusReserved, models.StatusActive, models.StatusReturned, models.StatusOverdue} {
		style, err := f.NewStyle(&excelize.Style{
			Fill:      excelize.Fill{Type: "pattern", Color: []string{statusColor(status)}, Pattern: 1},
			Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true},
			Border: []excelize.Border{
				{Type: "left", Color: "#FFFFFF", Style: 1},
				{Type: "right", Color: "#FFFFFF", Style: 1},
			},
		})
		if err != nil {
			return err
		}
		bookingStyles[status] = style
	}

	for _, s := range layout.Spans {
		first, ok := sheetCol[s.ColStart]
		if !ok {
			continue
		}
		last := first + (s.ColEnd - s.ColStart) - 1
		if last >= len(header)+1 {
			last = len(header)
		}
		topLeft, _ := excelize.CoordinatesToCellName(first, s.RowStart+3)
		bottomRight, _ := excelize.CoordinatesToCellName(last, s.RowEnd+2)

		if topLeft != bottomRight {
			if err := f.MergeCell(gridSheet, topLeft, bottomRight); err != nil {
				return fmt.Errorf("merge %s:%s: %w", topLeft, bottomRight, err)
			}
		}
		_ = f.SetCellValue(gridSheet, topLeft, CellText(s))
		if style, ok := bookingStyles[s.Status]; ok {
			_ = f.SetCellStyle(gridSheet, topLeft, bottomRight, style)
		}
	}
	return nil
}

func writeBookings(f *excelize.File, sheet string, bookings []*models.Booking, itemNames map[string]string) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}
	t := table.Bookings(itemNames)
	for i, h := range t.Headers() {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}
	for r, row := range t.Rows(bookings) {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}
	return nil
}

func statusColor(status string) string {
	switch status {
	case models.StatusActive:
		return "#C6EFCE"
	case models.StatusOverdue:
		return "#FFC7CE"
	case models.StatusReturned:
		return "#D9D9D9"
	default:
		return "#FFEB9C"
	}
}

// SaveMonth writes the workbook to dir and returns the file path.
func SaveMonth(dir string, month time.Time, layout schedule.Layout, itemNames map[string]string) (string, error) {
	f, err := MonthWorkbook(month, layout, itemNames)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("belegung_%s.xlsx", month.Format("2006-01")))
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("save workbook: %w", err)
	}
	return path, nil
}
