package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/college-scheduling-api/internal/models"
	appErrors "github.com/noah-isme/college-scheduling-api/pkg/errors"
	"github.com/noah-isme/college-scheduling-api/pkg/validation"
)

type buildingRepository interface {
	List(ctx context.Context, filter models.BuildingFilter) ([]models.Building, int, error)
	FindByID(ctx context.Context, id string) (*models.Building, error)
	Create(ctx context.Context, building *models.Building) error
	Update(ctx context.Context, building *models.Building) error
	Delete(ctx context.Context, id string) error
}

// BuildingRequest is the create and update payload for buildings.
type BuildingRequest struct {
	Code string `json:"code" validate:"required,max=20"`
	Name string `json:"name" validate:"required,max=120"`
}

// BuildingService manages campus buildings.
type BuildingService struct {
	repo      buildingRepository
	audit     auditRecorder
	validator *validation.Validator
	logger    *zap.Logger
}

// NewBuildingService creates a building service.
func NewBuildingService(repo buildingRepository, audit auditRecorder, validate *validation.Validator, logger *zap.Logger) *BuildingService {
	return &BuildingService{repo: repo, audit: audit, validator: defaultValidator(validate), logger: defaultLogger(logger)}
}

// List returns paginated buildings.
func (s *BuildingService) List(ctx context.Context, filter models.BuildingFilter) ([]models.Building, *models.Pagination, error) {
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list buildings")
	}
	return items, filter.Pagination(total), nil
}

// Get returns a building by identifier.
func (s *BuildingService) Get(ctx context.Context, id string) (*models.Building, error) {
	building, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, repoError(err, "building", "load")
	}
	return building, nil
}

// Create adds a building.
func (s *BuildingService) Create(ctx context.Context, req BuildingRequest, actor Actor) (*models.Building, error) {
	if err := s.validator.Check(req, "invalid building payload"); err != nil {
		return nil, err
	}
	building := &models.Building{Code: normalizeCode(req.Code), Name: strings.TrimSpace(req.Name)}
	if err := s.repo.Create(ctx, building); err != nil {
		return nil, repoError(err, "building", "create")
	}
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionCreate, "buildings", building.ID, nil, building)
	return building, nil
}

// Update modifies a building.
func (s *BuildingService) Update(ctx context.Context, id string, req BuildingRequest, actor Actor) (*models.Building, error) {
	if err := s.validator.Check(req, "invalid building payload"); err != nil {
		return nil, err
	}
	building, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	old := *building
	building.Code = normalizeCode(req.Code)
	building.Name = strings.TrimSpace(req.Name)
	if err := s.repo.Update(ctx, building); err != nil {
		return nil, repoError(err, "building", "update")
	}
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionUpdate, "buildings", id, old, building)
	return building, nil
}

// Delete removes a building without rooms.
func (s *BuildingService) Delete(ctx context.Context, id string, actor Actor) error {
	building, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return repoError(err, "building", "delete")
	}
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionDelete, "buildings", id, building, nil)
	return nil
}
