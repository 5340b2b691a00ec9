package export

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleDocument() Document {
	return Document{
		Title:    "Timetable 2024-2025 First Semester",
		Subtitle: "Rooms",
		Pages: []Page{
			{
				Title:   "Monday",
				Slots:   []string{"07:00-08:00", "08:00-09:00", "09:00-10:00"},
				Columns: []string{"A-101", "B-201"},
				Blocks: []Block{
					{Slot: 0, Column: 0, Span: 2, Entries: []Entry{{Start: "07:00", End: "09:00", Subject: "CS101", Faculty: "Ada Lovelace", Room: "A-101", Section: "BSCS 1A"}}},
					{Slot: 1, Column: 1, Span: 1, Entries: []Entry{
						{Start: "08:00", End: "09:00", Subject: "MATH1", Faculty: "Alan Turing", Room: "B-201"},
						{Start: "08:00", End: "09:00", Subject: "PHYS1", Faculty: "Emmy Noether", Room: "B-201"},
					}},
				},
			},
			{
				Title:   "Tuesday",
				Slots:   []string{"07:00-08:00", "08:00-09:00", "09:00-10:00"},
				Columns: []string{"A-101", "B-201"},
			},
		},
	}
}

func TestNewRenderer(t *testing.T) {
	for _, format := range []Format{FormatCSV, FormatPDF, FormatXLSX, "PDF"} {
		r, err := NewRenderer(format)
		require.NoError(t, err, format)
		assert.NotEmpty(t, r.ContentType())
	}
	_, err := NewRenderer("docx")
	assert.Error(t, err)
}

func TestBlockText(t *testing.T) {
	doc := sampleDocument()
	single := doc.Pages[0].Blocks[0]
	assert.False(t, single.Multiple())
	assert.Equal(t, "CS101\nBSCS 1A\nAda Lovelace\nA-101\n07:00-09:00", single.Text())

	double := doc.Pages[0].Blocks[1]
	assert.True(t, double.Multiple())
	assert.Contains(t, double.Text(), "CONFLICT\nMATH1")
	assert.Contains(t, double.Text(), "\n---\nPHYS1")
}

func TestPageValidate(t *testing.T) {
	page := Page{Title: "Monday", Slots: []string{"a", "b"}, Columns: []string{"x"}}
	page.Blocks = []Block{{Slot: 1, Column: 0, Span: 2}}
	assert.Error(t, page.Validate())
	page.Blocks = []Block{{Slot: 0, Column: 1, Span: 1}}
	assert.Error(t, page.Validate())
	page.Blocks = []Block{{Slot: 0, Column: 0, Span: 2}}
	assert.NoError(t, page.Validate())

	_, err := NewCSVRenderer().Render(Document{})
	assert.Error(t, err)
}

func TestCSVRenderer(t *testing.T) {
	out, err := NewCSVRenderer().Render(sampleDocument())
	require.NoError(t, err)

	records, err := csv.NewReader(bytes.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, csvHeaders, records[0])
	assert.Equal(t, []string{"Monday", "A-101", "07:00", "09:00", "CS101", "BSCS 1A", "Ada Lovelace", "A-101", "no"}, records[1])
	assert.Equal(t, "yes", records[2][8])
	assert.Equal(t, "PHYS1", records[3][4])
}

func TestXLSXRendererMergesSpans(t *testing.T) {
	out, err := NewXLSXRenderer().Render(sampleDocument())
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(out))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Monday", "Tuesday"}, f.GetSheetList())

	header, err := f.GetCellValue("Monday", "B2")
	require.NoError(t, err)
	assert.Equal(t, "A-101", header)

	slot, err := f.GetCellValue("Monday", "A4")
	require.NoError(t, err)
	assert.Equal(t, "08:00-09:00", slot)

	merged, err := f.GetMergeCells("Monday")
	require.NoError(t, err)
	require.Len(t, merged, 1)
	assert.Equal(t, "B3", merged[0].GetStartAxis())
	assert.Equal(t, "B4", merged[0].GetEndAxis())

	conflict, err := f.GetCellValue("Monday", "C4")
	require.NoError(t, err)
	assert.Contains(t, conflict, "CONFLICT")
}

func TestSheetNameSanitizes(t *testing.T) {
	used := map[string]int{}
	assert.Equal(t, "Room A-1", sheetName("Room A/1", used))
	assert.Equal(t, "Room A-1 2", sheetName("Room A:1", used))
	assert.Equal(t, "Sheet", sheetName("  ", used))
	assert.Len(t, sheetName("a very long worksheet title that overflows", used), 28)
}

func TestPDFRenderer(t *testing.T) {
	out, err := NewPDFRenderer().Render(sampleDocument())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
}

func TestPDFRendererSplitsWideDays(t *testing.T) {
	doc := sampleDocument()
	cols := make([]string, pdfColumnsPerPage+3)
	for i := range cols {
		cols[i] = "R"
	}
	doc.Pages[1].Columns = cols
	doc.Pages[1].Blocks = []Block{{Slot: 0, Column: len(cols) - 1, Span: 3, Entries: []Entry{{Start: "07:00", End: "10:00", Subject: "LAB"}}}}

	out, err := NewPDFRenderer().Render(doc)
	require.NoError(t, err)
	assert.NotEmpty(t, out)
}
