package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/college-scheduling-api/internal/models"
	"github.com/noah-isme/college-scheduling-api/pkg/database"
)

const semesterColumns = "id, name, term, academic_year, start_date, end_date, is_active, created_at, updated_at"

// SemesterRepository persists semesters.
type SemesterRepository struct {
	db *sqlx.DB
}

// NewSemesterRepository creates a semester repository.
func NewSemesterRepository(db *sqlx.DB) *SemesterRepository {
	return &SemesterRepository{db: db}
}

// List returns semesters, newest first by default.
func (r *SemesterRepository) List(ctx context.Context, filter models.SemesterFilter) ([]models.Semester, int, error) {
	var where whereBuilder
	if filter.AcademicYear != "" {
		where.add("academic_year = ?", filter.AcademicYear)
	}
	if filter.Term != "" {
		where.add("term = ?", filter.Term)
	}
	if filter.IsActive != nil {
		where.add("is_active = ?", *filter.IsActive)
	}
	where.search(filter.Search, "name", "academic_year")

	allowedSorts := map[string]bool{"start_date": true, "name": true, "academic_year": true, "created_at": true}
	query := fmt.Sprintf("SELECT %s FROM semesters %s %s %s", semesterColumns, where.clause(),
		orderClause(filter.SortBy, filter.SortOrder, allowedSorts, "start_date", "DESC"), pageClause(filter.ListQuery))

	var semesters []models.Semester
	if err := r.db.SelectContext(ctx, &semesters, query, where.args...); err != nil {
		return nil, 0, fmt.Errorf("list semesters: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM semesters "+where.clause(), where.args...); err != nil {
		return nil, 0, fmt.Errorf("count semesters: %w", err)
	}
	return semesters, total, nil
}

// FindByID loads a semester.
func (r *SemesterRepository) FindByID(ctx context.Context, id string) (*models.Semester, error) {
	var semester models.Semester
	if err := r.db.GetContext(ctx, &semester, "SELECT "+semesterColumns+" FROM semesters WHERE id = $1", id); err != nil {
		return nil, err
	}
	return &semester, nil
}

// FindActive loads the active semester. It returns sql.ErrNoRows when none is active.
func (r *SemesterRepository) FindActive(ctx context.Context) (*models.Semester, error) {
	var semester models.Semester
	if err := r.db.GetContext(ctx, &semester, "SELECT "+semesterColumns+" FROM semesters WHERE is_active = TRUE LIMIT 1"); err != nil {
		return nil, err
	}
	return &semester, nil
}

// Create inserts a semester. New semesters start inactive.
func (r *SemesterRepository) Create(ctx context.Context, semester *models.Semester) error {
	if semester.ID == "" {
		semester.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	semester.CreatedAt = now
	semester.UpdatedAt = now
	semester.IsActive = false

	const query = `INSERT INTO semesters (id, name, term, academic_year, start_date, end_date, is_active, created_at, updated_at)
VALUES (:id, :name, :term, :academic_year, :start_date, :end_date, :is_active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, semester); err != nil {
		return fmt.Errorf("create semester: %w", translatePQ(err))
	}
	return nil
}

// Update modifies semester attributes. Activation goes through Activate.
func (r *SemesterRepository) Update(ctx context.Context, semester *models.Semester) error {
	semester.UpdatedAt = time.Now().UTC()
	const query = `UPDATE semesters SET name = :name, term = :term, academic_year = :academic_year, start_date = :start_date, end_date = :end_date, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, semester); err != nil {
		return fmt.Errorf("update semester: %w", translatePQ(err))
	}
	return nil
}

// Activate marks one semester active and every other semester inactive.
func (r *SemesterRepository) Activate(ctx context.Context, id string) error {
	now := time.Now().UTC()
	return database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `UPDATE semesters SET is_active = FALSE, updated_at = $1 WHERE is_active = TRUE AND id <> $2`, now, id); err != nil {
			return fmt.Errorf("deactivate semesters: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE semesters SET is_active = TRUE, updated_at = $1 WHERE id = $2`, now, id); err != nil {
			return fmt.Errorf("activate semester: %w", err)
		}
		return nil
	})
}

// Delete removes a semester with no schedule entries.
func (r *SemesterRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM semesters WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete semester: %w", translatePQ(err))
	}
	return nil
}
