package models

import "time"

// SemesterTerm is the position of a semester in the academic year.
type SemesterTerm string

const (
	SemesterFirst  SemesterTerm = "FIRST"
	SemesterSecond SemesterTerm = "SECOND"
	SemesterSummer SemesterTerm = "SUMMER"
)

// Semester models an academic semester. At most one semester is active.
type Semester struct {
	ID           string       `db:"id" json:"id"`
	Name         string       `db:"name" json:"name"`
	Term         SemesterTerm `db:"term" json:"term"`
	AcademicYear string       `db:"academic_year" json:"academic_year"`
	StartDate    time.Time    `db:"start_date" json:"start_date"`
	EndDate      time.Time    `db:"end_date" json:"end_date"`
	IsActive     bool         `db:"is_active" json:"is_active"`
	CreatedAt    time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time    `db:"updated_at" json:"updated_at"`
}

// SemesterFilter defines filters supported by list endpoints.
type SemesterFilter struct {
	ListQuery
	AcademicYear string
	Term         SemesterTerm
	IsActive     *bool
}
