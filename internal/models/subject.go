package models

import "time"

// Subject represents a unit of study taught in scheduled classes.
type Subject struct {
	ID           string    `db:"id" json:"id"`
	DepartmentID *string   `db:"department_id" json:"department_id,omitempty"`
	Code         string    `db:"code" json:"code"`
	Name         string    `db:"name" json:"name"`
	Units        int       `db:"units" json:"units"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// SubjectFilter captures supported filters for listing subjects.
type SubjectFilter struct {
	ListQuery
	DepartmentID string
}
