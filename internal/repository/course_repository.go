package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/college-scheduling-api/internal/models"
)

const courseColumns = "id, department_id, code, name, created_at, updated_at"

// CourseRepository persists courses.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository creates a course repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// List returns courses, optionally restricted to one department.
func (r *CourseRepository) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error) {
	var where whereBuilder
	if filter.DepartmentID != "" {
		where.add("department_id = ?", filter.DepartmentID)
	}
	where.search(filter.Search, "code", "name")

	allowedSorts := map[string]bool{"code": true, "name": true, "created_at": true}
	query := fmt.Sprintf("SELECT %s FROM courses %s %s %s", courseColumns, where.clause(),
		orderClause(filter.SortBy, filter.SortOrder, allowedSorts, "code", "ASC"), pageClause(filter.ListQuery))

	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, query, where.args...); err != nil {
		return nil, 0, fmt.Errorf("list courses: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM courses "+where.clause(), where.args...); err != nil {
		return nil, 0, fmt.Errorf("count courses: %w", err)
	}
	return courses, total, nil
}

// FindByID loads a course.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	var course models.Course
	if err := r.db.GetContext(ctx, &course, "SELECT "+courseColumns+" FROM courses WHERE id = $1", id); err != nil {
		return nil, err
	}
	return &course, nil
}

// Create inserts a course.
func (r *CourseRepository) Create(ctx context.Context, course *models.Course) error {
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	course.CreatedAt = now
	course.UpdatedAt = now

	const query = `INSERT INTO courses (id, department_id, code, name, created_at, updated_at) VALUES (:id, :department_id, :code, :name, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
		return fmt.Errorf("create course: %w", translatePQ(err))
	}
	return nil
}

// Update modifies a course.
func (r *CourseRepository) Update(ctx context.Context, course *models.Course) error {
	course.UpdatedAt = time.Now().UTC()
	const query = `UPDATE courses SET department_id = :department_id, code = :code, name = :name, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
		return fmt.Errorf("update course: %w", translatePQ(err))
	}
	return nil
}

// Delete removes a course without sections.
func (r *CourseRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM courses WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete course: %w", translatePQ(err))
	}
	return nil
}
