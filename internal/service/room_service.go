package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/college-scheduling-api/internal/models"
	appErrors "github.com/noah-isme/college-scheduling-api/pkg/errors"
	"github.com/noah-isme/college-scheduling-api/pkg/validation"
)

type roomRepository interface {
	List(ctx context.Context, filter models.RoomFilter) ([]models.Room, int, error)
	FindByID(ctx context.Context, id string) (*models.Room, error)
	Create(ctx context.Context, room *models.Room) error
	Update(ctx context.Context, room *models.Room) error
	Delete(ctx context.Context, id string) error
}

// RoomRequest is the create and update payload for rooms.
type RoomRequest struct {
	BuildingID string `json:"building_id" validate:"required"`
	Code       string `json:"code" validate:"required,max=20"`
	Name       string `json:"name" validate:"omitempty,max=120"`
	Capacity   int    `json:"capacity" validate:"gte=0,lte=2000"`
}

// RoomService manages rooms.
type RoomService struct {
	repo      roomRepository
	buildings buildingRepository
	audit     auditRecorder
	validator *validation.Validator
	logger    *zap.Logger
}

// NewRoomService creates a room service.
func NewRoomService(repo roomRepository, buildings buildingRepository, audit auditRecorder, validate *validation.Validator, logger *zap.Logger) *RoomService {
	return &RoomService{repo: repo, buildings: buildings, audit: audit, validator: defaultValidator(validate), logger: defaultLogger(logger)}
}

// List returns paginated rooms.
func (s *RoomService) List(ctx context.Context, filter models.RoomFilter) ([]models.Room, *models.Pagination, error) {
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list rooms")
	}
	return items, filter.Pagination(total), nil
}

// Get returns a room by identifier.
func (s *RoomService) Get(ctx context.Context, id string) (*models.Room, error) {
	room, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, repoError(err, "room", "load")
	}
	return room, nil
}

// Create adds a room to an existing building.
func (s *RoomService) Create(ctx context.Context, req RoomRequest, actor Actor) (*models.Room, error) {
	if err := s.validator.Check(req, "invalid room payload"); err != nil {
		return nil, err
	}
	if _, err := s.buildings.FindByID(ctx, req.BuildingID); err != nil {
		return nil, repoError(err, "building", "load")
	}
	room := &models.Room{BuildingID: req.BuildingID, Code: normalizeCode(req.Code), Name: strings.TrimSpace(req.Name), Capacity: req.Capacity}
	if err := s.repo.Create(ctx, room); err != nil {
		return nil, repoError(err, "room", "create")
	}
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionCreate, "rooms", room.ID, nil, room)
	return room, nil
}

// Update modifies a room.
func (s *RoomService) Update(ctx context.Context, id string, req RoomRequest, actor Actor) (*models.Room, error) {
	if err := s.validator.Check(req, "invalid room payload"); err != nil {
		return nil, err
	}
	room, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.BuildingID != room.BuildingID {
		if _, err := s.buildings.FindByID(ctx, req.BuildingID); err != nil {
			return nil, repoError(err, "building", "load")
		}
	}
	old := *room
	room.BuildingID = req.BuildingID
	room.Code = normalizeCode(req.Code)
	room.Name = strings.TrimSpace(req.Name)
	room.Capacity = req.Capacity
	if err := s.repo.Update(ctx, room); err != nil {
		return nil, repoError(err, "room", "update")
	}
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionUpdate, "rooms", id, old, room)
	return room, nil
}

// Delete removes a room that is not booked by any schedule entry.
func (s *RoomService) Delete(ctx context.Context, id string, actor Actor) error {
	room, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return repoError(err, "room", "delete")
	}
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionDelete, "rooms", id, room, nil)
	return nil
}
