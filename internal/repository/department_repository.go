package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/college-scheduling-api/internal/models"
)

const departmentColumns = "id, code, name, created_at, updated_at"

// DepartmentRepository persists departments.
type DepartmentRepository struct {
	db *sqlx.DB
}

// NewDepartmentRepository creates a department repository.
func NewDepartmentRepository(db *sqlx.DB) *DepartmentRepository {
	return &DepartmentRepository{db: db}
}

// List returns departments with optional search and pagination.
func (r *DepartmentRepository) List(ctx context.Context, filter models.DepartmentFilter) ([]models.Department, int, error) {
	var where whereBuilder
	where.search(filter.Search, "code", "name")

	allowedSorts := map[string]bool{"code": true, "name": true, "created_at": true}
	query := fmt.Sprintf("SELECT %s FROM departments %s %s %s", departmentColumns, where.clause(),
		orderClause(filter.SortBy, filter.SortOrder, allowedSorts, "code", "ASC"), pageClause(filter.ListQuery))

	var departments []models.Department
	if err := r.db.SelectContext(ctx, &departments, query, where.args...); err != nil {
		return nil, 0, fmt.Errorf("list departments: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM departments "+where.clause(), where.args...); err != nil {
		return nil, 0, fmt.Errorf("count departments: %w", err)
	}
	return departments, total, nil
}

// FindByID loads a department. It returns sql.ErrNoRows when absent.
func (r *DepartmentRepository) FindByID(ctx context.Context, id string) (*models.Department, error) {
	var department models.Department
	if err := r.db.GetContext(ctx, &department, "SELECT "+departmentColumns+" FROM departments WHERE id = $1", id); err != nil {
		return nil, err
	}
	return &department, nil
}

// Create inserts a department.
func (r *DepartmentRepository) Create(ctx context.Context, department *models.Department) error {
	if department.ID == "" {
		department.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	department.CreatedAt = now
	department.UpdatedAt = now

	const query = `INSERT INTO departments (id, code, name, created_at, updated_at) VALUES (:id, :code, :name, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, department); err != nil {
		return fmt.Errorf("create department: %w", translatePQ(err))
	}
	return nil
}

// Update modifies a department.
func (r *DepartmentRepository) Update(ctx context.Context, department *models.Department) error {
	department.UpdatedAt = time.Now().UTC()
	const query = `UPDATE departments SET code = :code, name = :name, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, department); err != nil {
		return fmt.Errorf("update department: %w", translatePQ(err))
	}
	return nil
}

// Delete removes a department. Deleting a department that still owns rows fails with ErrReferenced.
func (r *DepartmentRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM departments WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete department: %w", translatePQ(err))
	}
	return nil
}
