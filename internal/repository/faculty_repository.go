package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/college-scheduling-api/internal/models"
)

const facultyColumns = "id, department_id, employee_no, full_name, email, active, created_at, updated_at"

// FacultyRepository persists faculty members.
type FacultyRepository struct {
	db *sqlx.DB
}

// NewFacultyRepository creates a faculty repository.
func NewFacultyRepository(db *sqlx.DB) *FacultyRepository {
	return &FacultyRepository{db: db}
}

// List returns faculty members filtered by department and status.
func (r *FacultyRepository) List(ctx context.Context, filter models.FacultyFilter) ([]models.Faculty, int, error) {
	var where whereBuilder
	if filter.DepartmentID != "" {
		where.add("department_id = ?", filter.DepartmentID)
	}
	if filter.Active != nil {
		where.add("active = ?", *filter.Active)
	}
	where.search(filter.Search, "full_name", "email", "employee_no")

	allowedSorts := map[string]bool{"full_name": true, "email": true, "employee_no": true, "created_at": true}
	query := fmt.Sprintf("SELECT %s FROM faculty %s %s %s", facultyColumns, where.clause(),
		orderClause(filter.SortBy, filter.SortOrder, allowedSorts, "full_name", "ASC"), pageClause(filter.ListQuery))

	var faculty []models.Faculty
	if err := r.db.SelectContext(ctx, &faculty, query, where.args...); err != nil {
		return nil, 0, fmt.Errorf("list faculty: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM faculty "+where.clause(), where.args...); err != nil {
		return nil, 0, fmt.Errorf("count faculty: %w", err)
	}
	return faculty, total, nil
}

// FindByID loads a faculty member.
func (r *FacultyRepository) FindByID(ctx context.Context, id string) (*models.Faculty, error) {
	var f models.Faculty
	if err := r.db.GetContext(ctx, &f, "SELECT "+facultyColumns+" FROM faculty WHERE id = $1", id); err != nil {
		return nil, err
	}
	return &f, nil
}

// FindByEmail loads the faculty member linked to a user account.
func (r *FacultyRepository) FindByEmail(ctx context.Context, email string) (*models.Faculty, error) {
	var f models.Faculty
	if err := r.db.GetContext(ctx, &f, "SELECT "+facultyColumns+" FROM faculty WHERE LOWER(email) = LOWER($1)", strings.TrimSpace(email)); err != nil {
		return nil, err
	}
	return &f, nil
}

// ListActive returns every active faculty member, used by the weekly digest.
func (r *FacultyRepository) ListActive(ctx context.Context) ([]models.Faculty, error) {
	var faculty []models.Faculty
	if err := r.db.SelectContext(ctx, &faculty, "SELECT "+facultyColumns+" FROM faculty WHERE active = TRUE ORDER BY full_name ASC"); err != nil {
		return nil, fmt.Errorf("list active faculty: %w", err)
	}
	return faculty, nil
}

// Create inserts a faculty member.
func (r *FacultyRepository) Create(ctx context.Context, f *models.Faculty) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	f.CreatedAt = now
	f.UpdatedAt = now

	const query = `INSERT INTO faculty (id, department_id, employee_no, full_name, email, active, created_at, updated_at)
VALUES (:id, :department_id, :employee_no, :full_name, :email, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, f); err != nil {
		return fmt.Errorf("create faculty: %w", translatePQ(err))
	}
	return nil
}

// Update modifies a faculty member.
func (r *FacultyRepository) Update(ctx context.Context, f *models.Faculty) error {
	f.UpdatedAt = time.Now().UTC()
	const query = `UPDATE faculty SET department_id = :department_id, employee_no = :employee_no, full_name = :full_name, email = :email, active = :active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, f); err != nil {
		return fmt.Errorf("update faculty: %w", translatePQ(err))
	}
	return nil
}

// Delete removes a faculty member with no schedule entries.
func (r *FacultyRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM faculty WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete faculty: %w", translatePQ(err))
	}
	return nil
}
