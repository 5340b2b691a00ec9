package models

import "time"

// Department is an academic department owning courses, subjects and faculty.
type Department struct {
	ID        string    `db:"id" json:"id"`
	Code      string    `db:"code" json:"code"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// DepartmentFilter defines list options for departments.
type DepartmentFilter struct {
	ListQuery
}
