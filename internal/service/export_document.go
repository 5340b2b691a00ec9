package service

import (
	"fmt"
	"strings"

	"github.com/noah-isme/college-scheduling-api/internal/models"
	"github.com/noah-isme/college-scheduling-api/pkg/export"
)

var gridModeTitles = map[models.GridMode]string{
	models.GridModeRoom:    "Room timetable",
	models.GridModeFaculty: "Faculty timetable",
	models.GridModeSection: "Section timetable",
}

// gridDocument converts a grid view into the renderer document. Each day
// becomes a page, each anchor or multiple cell a block.
func gridDocument(semester *models.Semester, view *GridView) export.Document {
	doc := export.Document{
		Title:    fmt.Sprintf("%s (%s %s)", semester.Name, semester.AcademicYear, semester.Term),
		Subtitle: gridModeTitles[view.Mode],
	}
	if view.ColumnID != "" {
		doc.Subtitle = strings.TrimSpace(doc.Subtitle + ": " + columnLabel(view, view.ColumnID))
	}

	for _, day := range view.Days {
		page := export.Page{
			Title:   day.DayLabel,
			Slots:   make([]string, len(day.Grid.Slots)),
			Columns: make([]string, len(day.Grid.Columns)),
		}
		for i, slot := range day.Grid.Slots {
			page.Slots[i] = slot.Label()
		}
		for i, col := range day.Grid.Columns {
			page.Columns[i] = col.Label
		}
		for _, p := range day.Grid.Placements() {
			block := export.Block{Slot: p.Slot, Column: p.Column, Span: p.Span}
			for _, idx := range p.Entries {
				if idx >= 0 && idx < len(day.Entries) {
					block.Entries = append(block.Entries, documentEntry(day.Entries[idx]))
				}
			}
			page.Blocks = append(page.Blocks, block)
		}
		doc.Pages = append(doc.Pages, page)
	}
	return doc
}

func documentEntry(d models.ScheduleEntryDetail) export.Entry {
	subject := strings.TrimSpace(d.SubjectCode + " " + d.SubjectName)
	if subject == "" {
		subject = d.SubjectID
	}
	return export.Entry{
		Start:   d.StartTime.String(),
		End:     d.EndTime.String(),
		Subject: subject,
		Faculty: d.FacultyName,
		Room:    d.RoomCode,
		Section: d.SectionName,
	}
}

// columnLabel finds the printable name of a grid column, falling back to its ID.
func columnLabel(view *GridView, id string) string {
	if view != nil {
		for _, day := range view.Days {
			for _, col := range day.Grid.Columns {
				if col.ID == id {
					return col.Label
				}
			}
		}
	}
	return id
}
