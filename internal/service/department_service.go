package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/college-scheduling-api/internal/models"
	appErrors "github.com/noah-isme/college-scheduling-api/pkg/errors"
	"github.com/noah-isme/college-scheduling-api/pkg/validation"
)

type departmentRepository interface {
	List(ctx context.Context, filter models.DepartmentFilter) ([]models.Department, int, error)
	FindByID(ctx context.Context, id string) (*models.Department, error)
	Create(ctx context.Context, department *models.Department) error
	Update(ctx context.Context, department *models.Department) error
	Delete(ctx context.Context, id string) error
}

// DepartmentRequest is the create and update payload for departments.
type DepartmentRequest struct {
	Code string `json:"code" validate:"required,max=20"`
	Name string `json:"name" validate:"required,max=120"`
}

// DepartmentService manages academic departments.
type DepartmentService struct {
	repo      departmentRepository
	audit     auditRecorder
	validator *validation.Validator
	logger    *zap.Logger
}

// NewDepartmentService creates a department service.
func NewDepartmentService(repo departmentRepository, audit auditRecorder, validate *validation.Validator, logger *zap.Logger) *DepartmentService {
	return &DepartmentService{repo: repo, audit: audit, validator: defaultValidator(validate), logger: defaultLogger(logger)}
}

// List returns paginated departments.
func (s *DepartmentService) List(ctx context.Context, filter models.DepartmentFilter) ([]models.Department, *models.Pagination, error) {
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list departments")
	}
	return items, filter.Pagination(total), nil
}

// Get returns a department by identifier.
func (s *DepartmentService) Get(ctx context.Context, id string) (*models.Department, error) {
	department, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, repoError(err, "department", "load")
	}
	return department, nil
}

// Create adds a department. Codes are stored upper case and must be unique.
func (s *DepartmentService) Create(ctx context.Context, req DepartmentRequest, actor Actor) (*models.Department, error) {
	if err := s.validator.Check(req, "invalid department payload"); err != nil {
		return nil, err
	}
	department := &models.Department{Code: normalizeCode(req.Code), Name: strings.TrimSpace(req.Name)}
	if err := s.repo.Create(ctx, department); err != nil {
		return nil, repoError(err, "department", "create")
	}
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionCreate, "departments", department.ID, nil, department)
	return department, nil
}

// Update modifies a department.
func (s *DepartmentService) Update(ctx context.Context, id string, req DepartmentRequest, actor Actor) (*models.Department, error) {
	if err := s.validator.Check(req, "invalid department payload"); err != nil {
		return nil, err
	}
	department, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	old := *department
	department.Code = normalizeCode(req.Code)
	department.Name = strings.TrimSpace(req.Name)
	if err := s.repo.Update(ctx, department); err != nil {
		return nil, repoError(err, "department", "update")
	}
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionUpdate, "departments", id, old, department)
	return department, nil
}

// Delete removes a department that owns no courses, subjects or faculty.
func (s *DepartmentService) Delete(ctx context.Context, id string, actor Actor) error {
	department, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return repoError(err, "department", "delete")
	}
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionDelete, "departments", id, department, nil)
	return nil
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
