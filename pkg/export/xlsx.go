package export

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// XLSXRenderer writes one worksheet per day with merged cells for classes
// spanning several slots.
type XLSXRenderer struct{}

// NewXLSXRenderer builds an Excel renderer.
func NewXLSXRenderer() *XLSXRenderer {
	return &XLSXRenderer{}
}

// ContentType implements Renderer.
func (r *XLSXRenderer) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// Extension implements Renderer.
func (r *XLSXRenderer) Extension() string { return "xlsx" }

type xlsxStyles struct {
	header, slot, entry, conflict int
}

// Render produces the workbook.
func (r *XLSXRenderer) Render(doc Document) ([]byte, error) {
	if err := validate(doc); err != nil {
		return nil, err
	}
	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck

	styles, err := newXLSXStyles(f)
	if err != nil {
		return nil, err
	}

	used := make(map[string]int)
	for i, page := range doc.Pages {
		name := sheetName(page.Title, used)
		if i == 0 {
			if err := f.SetSheetName("Sheet1", name); err != nil {
				return nil, fmt.Errorf("rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("create sheet %s: %w", name, err)
		}
		if err := writeSheet(f, name, doc, page, styles); err != nil {
			return nil, err
		}
	}
	f.SetActiveSheet(0)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write xlsx: %w", err)
	}
	return buf.Bytes(), nil
}

func newXLSXStyles(f *excelize.File) (xlsxStyles, error) {
	border := []excelize.Border{
		{Type: "left", Color: "999999", Style: 1},
		{Type: "right", Color: "999999", Style: 1},
		{Type: "top", Color: "999999", Style: 1},
		{Type: "bottom", Color: "999999", Style: 1},
	}
	var s xlsxStyles
	var err error
	if s.header, err = f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"D9E1F2"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true},
		Border:    border,
	}); err != nil {
		return s, fmt.Errorf("header style: %w", err)
	}
	if s.slot, err = f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 9},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "top"},
		Border:    border,
	}); err != nil {
		return s, fmt.Errorf("slot style: %w", err)
	}
	if s.entry, err = f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Size: 9},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"E2EFDA"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true},
		Border:    border,
	}); err != nil {
		return s, fmt.Errorf("entry style: %w", err)
	}
	if s.conflict, err = f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Size: 9, Bold: true, Color: "9C0006"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"FFC7CE"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true},
		Border:    border,
	}); err != nil {
		return s, fmt.Errorf("conflict style: %w", err)
	}
	return s, nil
}

// Row 1 holds the title, row 2 the column headers, slots start at row 3.
const xlsxFirstSlotRow = 3

func writeSheet(f *excelize.File, sheet string, doc Document, page Page, styles xlsxStyles) error {
	title := strings.TrimSpace(doc.Title + " - " + page.Title)
	if err := f.SetCellValue(sheet, "A1", title); err != nil {
		return err
	}
	if err := f.SetCellValue(sheet, "A2", "Time"); err != nil {
		return err
	}
	for i, col := range page.Columns {
		cell, err := excelize.CoordinatesToCellName(i+2, 2)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, col); err != nil {
			return err
		}
	}
	lastCol, err := excelize.ColumnNumberToName(len(page.Columns) + 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A2", lastCol+"2", styles.header); err != nil {
		return err
	}
	if err := f.SetColWidth(sheet, "A", "A", 14); err != nil {
		return err
	}
	if len(page.Columns) > 0 {
		if err := f.SetColWidth(sheet, "B", lastCol, 22); err != nil {
			return err
		}
	}

	for i, label := range page.Slots {
		cell, err := excelize.CoordinatesToCellName(1, xlsxFirstSlotRow+i)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, label); err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, cell, cell, styles.slot); err != nil {
			return err
		}
	}

	for _, block := range page.Blocks {
		top, err := excelize.CoordinatesToCellName(block.Column+2, xlsxFirstSlotRow+block.Slot)
		if err != nil {
			return err
		}
		bottom, err := excelize.CoordinatesToCellName(block.Column+2, xlsxFirstSlotRow+block.Slot+block.Span-1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, top, block.Text()); err != nil {
			return err
		}
		if block.Span > 1 {
			if err := f.MergeCell(sheet, top, bottom); err != nil {
				return fmt.Errorf("merge %s:%s: %w", top, bottom, err)
			}
		}
		style := styles.entry
		if block.Multiple() {
			style = styles.conflict
		}
		if err := f.SetCellStyle(sheet, top, bottom, style); err != nil {
			return err
		}
	}
	return nil
}

// sheetName makes a valid, unique worksheet name (max 31 chars, no []:*?/\).
func sheetName(title string, used map[string]int) string {
	name := strings.Map(func(r rune) rune {
		if strings.ContainsRune(`[]:*?/\`, r) {
			return '-'
		}
		return r
	}, strings.TrimSpace(title))
	if name == "" {
		name = "Sheet"
	}
	if len(name) > 28 {
		name = name[:28]
	}
	used[name]++
	if n := used[name]; n > 1 {
		name = fmt.Sprintf("%s %d", name, n)
	}
	return name
}
