package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/college-scheduling-api/internal/models"
)

const buildingColumns = "id, code, name, created_at, updated_at"

// BuildingRepository persists campus buildings.
type BuildingRepository struct {
	db *sqlx.DB
}

// NewBuildingRepository creates a building repository.
func NewBuildingRepository(db *sqlx.DB) *BuildingRepository {
	return &BuildingRepository{db: db}
}

// List returns buildings with optional search and pagination.
func (r *BuildingRepository) List(ctx context.Context, filter models.BuildingFilter) ([]models.Building, int, error) {
	var where whereBuilder
	where.search(filter.Search, "code", "name")

	allowedSorts := map[string]bool{"code": true, "name": true, "created_at": true}
	query := fmt.Sprintf("SELECT %s FROM buildings %s %s %s", buildingColumns, where.clause(),
		orderClause(filter.SortBy, filter.SortOrder, allowedSorts, "code", "ASC"), pageClause(filter.ListQuery))

	var buildings []models.Building
	if err := r.db.SelectContext(ctx, &buildings, query, where.args...); err != nil {
		return nil, 0, fmt.Errorf("list buildings: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM buildings "+where.clause(), where.args...); err != nil {
		return nil, 0, fmt.Errorf("count buildings: %w", err)
	}
	return buildings, total, nil
}

// FindByID loads a building.
func (r *BuildingRepository) FindByID(ctx context.Context, id string) (*models.Building, error) {
	var building models.Building
	if err := r.db.GetContext(ctx, &building, "SELECT "+buildingColumns+" FROM buildings WHERE id = $1", id); err != nil {
		return nil, err
	}
	return &building, nil
}

// Create inserts a building.
func (r *BuildingRepository) Create(ctx context.Context, building *models.Building) error {
	if building.ID == "" {
		building.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	building.CreatedAt = now
	building.UpdatedAt = now

	const query = `INSERT INTO buildings (id, code, name, created_at, updated_at) VALUES (:id, :code, :name, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, building); err != nil {
		return fmt.Errorf("create building: %w", translatePQ(err))
	}
	return nil
}

// Update modifies a building.
func (r *BuildingRepository) Update(ctx context.Context, building *models.Building) error {
	building.UpdatedAt = time.Now().UTC()
	const query = `UPDATE buildings SET code = :code, name = :name, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, building); err != nil {
		return fmt.Errorf("update building: %w", translatePQ(err))
	}
	return nil
}

// Delete removes a building that has no rooms.
func (r *BuildingRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM buildings WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete building: %w", translatePQ(err))
	}
	return nil
}
