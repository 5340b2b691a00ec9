package models

import "time"

// Course is a degree programme offered by a department.
type Course struct {
	ID           string    `db:"id" json:"id"`
	DepartmentID string    `db:"department_id" json:"department_id"`
	Code         string    `db:"code" json:"code"`
	Name         string    `db:"name" json:"name"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// CourseFilter defines list options for courses.
type CourseFilter struct {
	ListQuery
	DepartmentID string
}

// ClassSection is a block of students of a course who attend classes together.
type ClassSection struct {
	ID        string    `db:"id" json:"id"`
	CourseID  string    `db:"course_id" json:"course_id"`
	Name      string    `db:"name" json:"name"`
	YearLevel int       `db:"year_level" json:"year_level"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// SectionFilter defines list options for class sections.
type SectionFilter struct {
	ListQuery
	CourseID  string
	YearLevel int
}
