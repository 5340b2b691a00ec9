package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/college-scheduling-api/internal/models"
	appErrors "github.com/noah-isme/college-scheduling-api/pkg/errors"
	"github.com/noah-isme/college-scheduling-api/pkg/validation"
)

type facultyRepository interface {
	List(ctx context.Context, filter models.FacultyFilter) ([]models.Faculty, int, error)
	FindByID(ctx context.Context, id string) (*models.Faculty, error)
	FindByEmail(ctx context.Context, email string) (*models.Faculty, error)
	ListActive(ctx context.Context) ([]models.Faculty, error)
	Create(ctx context.Context, faculty *models.Faculty) error
	Update(ctx context.Context, faculty *models.Faculty) error
	Delete(ctx context.Context, id string) error
}

// FacultyRequest is the create and update payload for faculty members.
type FacultyRequest struct {
	DepartmentID *string `json:"department_id"`
	EmployeeNo   *string `json:"employee_no" validate:"omitempty,max=40"`
	FullName     string  `json:"full_name" validate:"required,max=160"`
	Email        string  `json:"email" validate:"required,email"`
	Active       *bool   `json:"active"`
}

// FacultyService manages instructors.
type FacultyService struct {
	repo      facultyRepository
	audit     auditRecorder
	validator *validation.Validator
	logger    *zap.Logger
}

// NewFacultyService creates a faculty service.
func NewFacultyService(repo facultyRepository, audit auditRecorder, validate *validation.Validator, logger *zap.Logger) *FacultyService {
	return &FacultyService{repo: repo, audit: audit, validator: defaultValidator(validate), logger: defaultLogger(logger)}
}

// List returns paginated faculty.
func (s *FacultyService) List(ctx context.Context, filter models.FacultyFilter) ([]models.Faculty, *models.Pagination, error) {
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list faculty")
	}
	return items, filter.Pagination(total), nil
}

// Get returns a faculty member by identifier.
func (s *FacultyService) Get(ctx context.Context, id string) (*models.Faculty, error) {
	faculty, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, repoError(err, "faculty", "load")
	}
	return faculty, nil
}

// GetByEmail resolves the faculty record linked to a FACULTY user account.
func (s *FacultyService) GetByEmail(ctx context.Context, email string) (*models.Faculty, error) {
	faculty, err := s.repo.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, repoError(err, "faculty", "load")
	}
	return faculty, nil
}

// Create adds a faculty member. New members are active unless stated otherwise.
func (s *FacultyService) Create(ctx context.Context, req FacultyRequest, actor Actor) (*models.Faculty, error) {
	if err := s.validator.Check(req, "invalid faculty payload"); err != nil {
		return nil, err
	}
	faculty := &models.Faculty{Active: true}
	applyFacultyRequest(faculty, req)
	if err := s.repo.Create(ctx, faculty); err != nil {
		return nil, repoError(err, "faculty", "create")
	}
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionCreate, "faculty", faculty.ID, nil, faculty)
	return faculty, nil
}

// Update modifies a faculty member.
func (s *FacultyService) Update(ctx context.Context, id string, req FacultyRequest, actor Actor) (*models.Faculty, error) {
	if err := s.validator.Check(req, "invalid faculty payload"); err != nil {
		return nil, err
	}
	faculty, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	old := *faculty
	applyFacultyRequest(faculty, req)
	if err := s.repo.Update(ctx, faculty); err != nil {
		return nil, repoError(err, "faculty", "update")
	}
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionUpdate, "faculty", id, old, faculty)
	return faculty, nil
}

// Delete removes a faculty member without schedule entries.
func (s *FacultyService) Delete(ctx context.Context, id string, actor Actor) error {
	faculty, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return repoError(err, "faculty", "delete")
	}
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionDelete, "faculty", id, faculty, nil)
	return nil
}

func applyFacultyRequest(f *models.Faculty, req FacultyRequest) {
	f.DepartmentID = optionalID(req.DepartmentID)
	f.EmployeeNo = optionalID(req.EmployeeNo)
	f.FullName = strings.TrimSpace(req.FullName)
	f.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Active != nil {
		f.Active = *req.Active
	}
}
