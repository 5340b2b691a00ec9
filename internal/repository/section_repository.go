package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/college-scheduling-api/internal/models"
)

const sectionColumns = "id, course_id, name, year_level, created_at, updated_at"

// SectionRepository persists class sections.
type SectionRepository struct {
	db *sqlx.DB
}

// NewSectionRepository creates a class section repository.
func NewSectionRepository(db *sqlx.DB) *SectionRepository {
	return &SectionRepository{db: db}
}

// List returns class sections filtered by course and year level.
func (r *SectionRepository) List(ctx context.Context, filter models.SectionFilter) ([]models.ClassSection, int, error) {
	var where whereBuilder
	if filter.CourseID != "" {
		where.add("course_id = ?", filter.CourseID)
	}
	if filter.YearLevel > 0 {
		where.add("year_level = ?", filter.YearLevel)
	}
	where.search(filter.Search, "name")

	allowedSorts := map[string]bool{"name": true, "year_level": true, "created_at": true}
	query := fmt.Sprintf("SELECT %s FROM class_sections %s %s %s", sectionColumns, where.clause(),
		orderClause(filter.SortBy, filter.SortOrder, allowedSorts, "name", "ASC"), pageClause(filter.ListQuery))

	var sections []models.ClassSection
	if err := r.db.SelectContext(ctx, &sections, query, where.args...); err != nil {
		return nil, 0, fmt.Errorf("list class sections: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM class_sections "+where.clause(), where.args...); err != nil {
		return nil, 0, fmt.Errorf("count class sections: %w", err)
	}
	return sections, total, nil
}

// FindByID loads a class section.
func (r *SectionRepository) FindByID(ctx context.Context, id string) (*models.ClassSection, error) {
	var section models.ClassSection
	if err := r.db.GetContext(ctx, &section, "SELECT "+sectionColumns+" FROM class_sections WHERE id = $1", id); err != nil {
		return nil, err
	}
	return &section, nil
}

// Create inserts a class section.
func (r *SectionRepository) Create(ctx context.Context, section *models.ClassSection) error {
	if section.ID == "" {
		section.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	section.CreatedAt = now
	section.UpdatedAt = now

	const query = `INSERT INTO class_sections (id, course_id, name, year_level, created_at, updated_at) VALUES (:id, :course_id, :name, :year_level, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, section); err != nil {
		return fmt.Errorf("create class section: %w", translatePQ(err))
	}
	return nil
}

// Update modifies a class section.
func (r *SectionRepository) Update(ctx context.Context, section *models.ClassSection) error {
	section.UpdatedAt = time.Now().UTC()
	const query = `UPDATE class_sections SET course_id = :course_id, name = :name, year_level = :year_level, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, section); err != nil {
		return fmt.Errorf("update class section: %w", translatePQ(err))
	}
	return nil
}

// Delete removes a class section with no schedule entries.
func (r *SectionRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM class_sections WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete class section: %w", translatePQ(err))
	}
	return nil
}
