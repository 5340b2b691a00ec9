// Package export renders timetable grids to CSV, XLSX and PDF. Every
// renderer consumes the same Document so the formats never disagree on
// where a class sits.
package export

import (
	"fmt"
	"strings"
)

// Format names a renderer.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatPDF  Format = "pdf"
	FormatXLSX Format = "xlsx"
)

// Document is a titled set of day grids.
type Document struct {
	Title    string
	Subtitle string
	Pages    []Page
}

// Page is one day: slot rows by resource columns.
type Page struct {
	Title   string
	Slots   []string
	Columns []string
	Blocks  []Block
}

// Block is a merged rectangle of Span slots starting at Slot in Column. A
// block with more than one entry marks colliding classes.
type Block struct {
	Slot    int
	Column  int
	Span    int
	Entries []Entry
}

// Multiple reports whether the block holds a collision.
func (b Block) Multiple() bool { return len(b.Entries) > 1 }

// Entry is the printable content of one class.
type Entry struct {
	Start   string
	End     string
	Subject string
	Faculty string
	Room    string
	Section string
}

// Lines returns the text printed inside a grid cell.
func (e Entry) Lines() []string {
	lines := []string{e.Subject}
	if e.Section != "" {
		lines = append(lines, e.Section)
	}
	if e.Faculty != "" {
		lines = append(lines, e.Faculty)
	}
	if e.Room != "" {
		lines = append(lines, e.Room)
	}
	return append(lines, fmt.Sprintf("%s-%s", e.Start, e.End))
}

// Text joins the lines of every entry in the block.
func (b Block) Text() string {
	parts := make([]string, 0, len(b.Entries))
	for _, e := range b.Entries {
		parts = append(parts, strings.Join(e.Lines(), "\n"))
	}
	text := strings.Join(parts, "\n---\n")
	if b.Multiple() {
		text = "CONFLICT\n" + text
	}
	return text
}

// Validate checks that blocks fit inside the page.
func (p Page) Validate() error {
	for _, b := range p.Blocks {
		if b.Column < 0 || b.Column >= len(p.Columns) {
			return fmt.Errorf("page %q: block column %d out of range", p.Title, b.Column)
		}
		if b.Span < 1 || b.Slot < 0 || b.Slot+b.Span > len(p.Slots) {
			return fmt.Errorf("page %q: block rows %d+%d out of range", p.Title, b.Slot, b.Span)
		}
	}
	return nil
}

// Renderer turns a document into file bytes.
type Renderer interface {
	Render(doc Document) ([]byte, error)
	ContentType() string
	Extension() string
}

// NewRenderer returns the renderer for format.
func NewRenderer(format Format) (Renderer, error) {
	switch Format(strings.ToLower(string(format))) {
	case FormatCSV:
		return NewCSVRenderer(), nil
	case FormatPDF:
		return NewPDFRenderer(), nil
	case FormatXLSX:
		return NewXLSXRenderer(), nil
	}
	return nil, fmt.Errorf("unsupported export format %q", format)
}

func validate(doc Document) error {
	if len(doc.Pages) == 0 {
		return fmt.Errorf("document has no pages")
	}
	for _, p := range doc.Pages {
		if err := p.Validate(); err != nil {
			return err
		}
	}
	return nil
}
