package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/college-scheduling-api/internal/models"
)

const roomColumns = "id, building_id, code, name, capacity, created_at, updated_at"

// RoomRepository persists rooms.
type RoomRepository struct {
	db *sqlx.DB
}

// NewRoomRepository creates a room repository.
func NewRoomRepository(db *sqlx.DB) *RoomRepository {
	return &RoomRepository{db: db}
}

// List returns rooms filtered by building and minimum capacity.
func (r *RoomRepository) List(ctx context.Context, filter models.RoomFilter) ([]models.Room, int, error) {
	var where whereBuilder
	if filter.BuildingID != "" {
		where.add("building_id = ?", filter.BuildingID)
	}
	if filter.MinCapacity > 0 {
		where.add("capacity >= ?", filter.MinCapacity)
	}
	where.search(filter.Search, "code", "name")

	allowedSorts := map[string]bool{"code": true, "name": true, "capacity": true, "created_at": true}
	query := fmt.Sprintf("SELECT %s FROM rooms %s %s %s", roomColumns, where.clause(),
		orderClause(filter.SortBy, filter.SortOrder, allowedSorts, "code", "ASC"), pageClause(filter.ListQuery))

	var rooms []models.Room
	if err := r.db.SelectContext(ctx, &rooms, query, where.args...); err != nil {
		return nil, 0, fmt.Errorf("list rooms: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM rooms "+where.clause(), where.args...); err != nil {
		return nil, 0, fmt.Errorf("count rooms: %w", err)
	}
	return rooms, total, nil
}

// FindByID loads a room.
func (r *RoomRepository) FindByID(ctx context.Context, id string) (*models.Room, error) {
	var room models.Room
	if err := r.db.GetContext(ctx, &room, "SELECT "+roomColumns+" FROM rooms WHERE id = $1", id); err != nil {
		return nil, err
	}
	return &room, nil
}

// Create inserts a room.
func (r *RoomRepository) Create(ctx context.Context, room *models.Room) error {
	if room.ID == "" {
		room.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	room.CreatedAt = now
	room.UpdatedAt = now

	const query = `INSERT INTO rooms (id, building_id, code, name, capacity, created_at, updated_at) VALUES (:id, :building_id, :code, :name, :capacity, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, room); err != nil {
		return fmt.Errorf("create room: %w", translatePQ(err))
	}
	return nil
}

// Update modifies a room.
func (r *RoomRepository) Update(ctx context.Context, room *models.Room) error {
	room.UpdatedAt = time.Now().UTC()
	const query = `UPDATE rooms SET building_id = :building_id, code = :code, name = :name, capacity = :capacity, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, room); err != nil {
		return fmt.Errorf("update room: %w", translatePQ(err))
	}
	return nil
}

// Delete removes a room that no schedule entry uses.
func (r *RoomRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM rooms WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete room: %w", translatePQ(err))
	}
	return nil
}
