package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/college-scheduling-api/internal/models"
)

const subjectColumns = "id, department_id, code, name, units, created_at, updated_at"

// SubjectRepository persists subjects.
type SubjectRepository struct {
	db *sqlx.DB
}

// NewSubjectRepository creates a subject repository.
func NewSubjectRepository(db *sqlx.DB) *SubjectRepository {
	return &SubjectRepository{db: db}
}

// List returns subjects, optionally restricted to one department.
func (r *SubjectRepository) List(ctx context.Context, filter models.SubjectFilter) ([]models.Subject, int, error) {
	var where whereBuilder
	if filter.DepartmentID != "" {
		where.add("department_id = ?", filter.DepartmentID)
	}
	where.search(filter.Search, "code", "name")

	allowedSorts := map[string]bool{"code": true, "name": true, "units": true, "created_at": true}
	query := fmt.Sprintf("SELECT %s FROM subjects %s %s %s", subjectColumns, where.clause(),
		orderClause(filter.SortBy, filter.SortOrder, allowedSorts, "code", "ASC"), pageClause(filter.ListQuery))

	var subjects []models.Subject
	if err := r.db.SelectContext(ctx, &subjects, query, where.args...); err != nil {
		return nil, 0, fmt.Errorf("list subjects: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM subjects "+where.clause(), where.args...); err != nil {
		return nil, 0, fmt.Errorf("count subjects: %w", err)
	}
	return subjects, total, nil
}

// FindByID loads a subject.
func (r *SubjectRepository) FindByID(ctx context.Context, id string) (*models.Subject, error) {
	var subject models.Subject
	if err := r.db.GetContext(ctx, &subject, "SELECT "+subjectColumns+" FROM subjects WHERE id = $1", id); err != nil {
		return nil, err
	}
	return &subject, nil
}

// Create inserts a subject.
func (r *SubjectRepository) Create(ctx context.Context, subject *models.Subject) error {
	if subject.ID == "" {
		subject.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	subject.CreatedAt = now
	subject.UpdatedAt = now

	const query = `INSERT INTO subjects (id, department_id, code, name, units, created_at, updated_at) VALUES (:id, :department_id, :code, :name, :units, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, subject); err != nil {
		return fmt.Errorf("create subject: %w", translatePQ(err))
	}
	return nil
}

// Update modifies a subject.
func (r *SubjectRepository) Update(ctx context.Context, subject *models.Subject) error {
	subject.UpdatedAt = time.Now().UTC()
	const query = `UPDATE subjects SET department_id = :department_id, code = :code, name = :name, units = :units, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, subject); err != nil {
		return fmt.Errorf("update subject: %w", translatePQ(err))
	}
	return nil
}

// Delete removes a subject with no schedule entries.
func (r *SubjectRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM subjects WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete subject: %w", translatePQ(err))
	}
	return nil
}
