package models

import "time"

// Faculty is an instructor who can be assigned to schedule entries.
type Faculty struct {
	ID           string    `db:"id" json:"id"`
	DepartmentID *string   `db:"department_id" json:"department_id,omitempty"`
	EmployeeNo   *string   `db:"employee_no" json:"employee_no,omitempty"`
	FullName     string    `db:"full_name" json:"full_name"`
	Email        string    `db:"email" json:"email"`
	Active       bool      `db:"active" json:"active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// FacultyFilter captures filtering options for listing faculty.
type FacultyFilter struct {
	ListQuery
	DepartmentID string
	Active       *bool
}
