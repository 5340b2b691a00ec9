package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleSuperAdmin UserRole = "SUPERADMIN"
	RoleAdmin      UserRole = "ADMIN"
	RoleStaff      UserRole = "STAFF"
	RoleFaculty    UserRole = "FACULTY"
)

// User is an account that can sign in to the scheduling API.
type User struct {
	ID           string     `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	FullName     string     `db:"full_name" json:"full_name"`
	Role         UserRole   `db:"role" json:"role"`
	Active       bool       `db:"active" json:"active"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role      *UserRole
	Active    *bool
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

// ListQuery holds the paging, sorting and search options shared by the
// reference-data list endpoints.
type ListQuery struct {
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// Normalize applies the default page size and clamps it to 100.
func (q ListQuery) Normalize() ListQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize <= 0 || q.PageSize > 100 {
		q.PageSize = 20
	}
	return q
}

// Offset returns the row offset of the current page.
func (q ListQuery) Offset() int {
	n := q.Normalize()
	return (n.Page - 1) * n.PageSize
}

// Pagination builds response metadata for the given total.
func (q ListQuery) Pagination(total int) *Pagination {
	n := q.Normalize()
	return &Pagination{Page: n.Page, PageSize: n.PageSize, TotalCount: total}
}
