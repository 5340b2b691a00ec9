package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

var csvHeaders = []string{"day", "column", "start", "end", "subject", "section", "faculty", "room", "conflict"}

// CSVRenderer writes one row per placed class.
type CSVRenderer struct{}

// NewCSVRenderer builds a CSV renderer.
func NewCSVRenderer() *CSVRenderer {
	return &CSVRenderer{}
}

// ContentType implements Renderer.
func (r *CSVRenderer) ContentType() string { return "text/csv" }

// Extension implements Renderer.
func (r *CSVRenderer) Extension() string { return "csv" }

// Render produces the flat CSV.
func (r *CSVRenderer) Render(doc Document) ([]byte, error) {
	if err := validate(doc); err != nil {
		return nil, err
	}
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	if err := writer.Write(csvHeaders); err != nil {
		return nil, fmt.Errorf("write csv headers: %w", err)
	}
	for _, page := range doc.Pages {
		for _, block := range page.Blocks {
			conflict := "no"
			if block.Multiple() {
				conflict = "yes"
			}
			for _, e := range block.Entries {
				record := []string{page.Title, page.Columns[block.Column], e.Start, e.End, e.Subject, e.Section, e.Faculty, e.Room, conflict}
				if err := writer.Write(record); err != nil {
					return nil, fmt.Errorf("write csv row: %w", err)
				}
			}
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
