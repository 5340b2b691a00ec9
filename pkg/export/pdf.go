package export

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

const (
	pdfMargin         = 10.0
	pdfTimeColumn     = 22.0
	pdfHeaderHeight   = 8.0
	pdfLineHeight     = 3.2
	pdfColumnsPerPage = 8
)

// PDFRenderer draws each day as a landscape grid. Classes spanning several
// slots become one tall cell. Days with many columns continue on extra pages.
type PDFRenderer struct{}

// NewPDFRenderer builds a PDF renderer.
func NewPDFRenderer() *PDFRenderer {
	return &PDFRenderer{}
}

// ContentType implements Renderer.
func (r *PDFRenderer) ContentType() string { return "application/pdf" }

// Extension implements Renderer.
func (r *PDFRenderer) Extension() string { return "pdf" }

// Render produces the PDF document.
func (r *PDFRenderer) Render(doc Document) ([]byte, error) {
	if err := validate(doc); err != nil {
		return nil, err
	}
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.SetAutoPageBreak(false, pdfMargin)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	for _, page := range doc.Pages {
		for first := 0; first == 0 || first < len(page.Columns); first += pdfColumnsPerPage {
			last := first + pdfColumnsPerPage
			if last > len(page.Columns) {
				last = len(page.Columns)
			}
			drawPage(pdf, tr, doc, page, first, last)
		}
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// drawPage renders columns [first, last) of page.
func drawPage(pdf *gofpdf.Fpdf, tr func(string) string, doc Document, page Page, first, last int) {
	pdf.AddPage()
	width, height := pdf.GetPageSize()

	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 8, tr(doc.Title), "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	subtitle := page.Title
	if doc.Subtitle != "" {
		subtitle = doc.Subtitle + " - " + page.Title
	}
	pdf.CellFormat(0, 6, tr(subtitle), "", 1, "C", false, 0, "")
	pdf.Ln(2)

	top := pdf.GetY()
	columns := last - first
	colWidth := width - 2*pdfMargin - pdfTimeColumn
	if columns > 0 {
		colWidth /= float64(columns)
	}
	rowHeight := 6.0
	if len(page.Slots) > 0 {
		rowHeight = (height - pdfMargin - top - pdfHeaderHeight) / float64(len(page.Slots))
	}

	pdf.SetFont("Arial", "B", 8)
	pdf.SetFillColor(217, 225, 242)
	pdf.SetXY(pdfMargin, top)
	pdf.CellFormat(pdfTimeColumn, pdfHeaderHeight, "Time", "1", 0, "C", true, 0, "")
	for c := first; c < last; c++ {
		pdf.CellFormat(colWidth, pdfHeaderHeight, tr(page.Columns[c]), "1", 0, "C", true, 0, "")
	}

	gridTop := top + pdfHeaderHeight
	pdf.SetFont("Arial", "", 7)
	for i, label := range page.Slots {
		y := gridTop + float64(i)*rowHeight
		pdf.SetXY(pdfMargin, y)
		pdf.CellFormat(pdfTimeColumn, rowHeight, tr(label), "1", 0, "C", false, 0, "")
		for c := first; c < last; c++ {
			pdf.Rect(pdfMargin+pdfTimeColumn+float64(c-first)*colWidth, y, colWidth, rowHeight, "D")
		}
	}

	for _, block := range page.Blocks {
		if block.Column < first || block.Column >= last {
			continue
		}
		x := pdfMargin + pdfTimeColumn + float64(block.Column-first)*colWidth
		y := gridTop + float64(block.Slot)*rowHeight
		h := float64(block.Span) * rowHeight
		if block.Multiple() {
			pdf.SetFillColor(255, 199, 206)
		} else {
			pdf.SetFillColor(226, 239, 218)
		}
		pdf.Rect(x, y, colWidth, h, "FD")
		drawBlockText(pdf, tr, block, x, y, colWidth, h)
	}
}

func drawBlockText(pdf *gofpdf.Fpdf, tr func(string) string, block Block, x, y, w, h float64) {
	pdf.ClipRect(x, y, w, h, false)
	defer pdf.ClipEnd()

	lineY := y + 0.5
	if block.Multiple() {
		pdf.SetFont("Arial", "B", 7)
		pdf.SetXY(x, lineY)
		pdf.CellFormat(w, pdfLineHeight, "CONFLICT", "", 0, "C", false, 0, "")
		lineY += pdfLineHeight
	}
	for _, entry := range block.Entries {
		for i, line := range entry.Lines() {
			if lineY+pdfLineHeight > y+h {
				return
			}
			style := ""
			if i == 0 {
				style = "B"
			}
			pdf.SetFont("Arial", style, 7)
			pdf.SetXY(x, lineY)
			pdf.CellFormat(w, pdfLineHeight, tr(line), "", 0, "C", false, 0, "")
			lineY += pdfLineHeight
		}
	}
}
