package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/college-scheduling-api/internal/models"
	appErrors "github.com/noah-isme/college-scheduling-api/pkg/errors"
	"github.com/noah-isme/college-scheduling-api/pkg/validation"
)

type subjectRepository interface {
	List(ctx context.Context, filter models.SubjectFilter) ([]models.Subject, int, error)
	FindByID(ctx context.Context, id string) (*models.Subject, error)
	Create(ctx context.Context, subject *models.Subject) error
	Update(ctx context.Context, subject *models.Subject) error
	Delete(ctx context.Context, id string) error
}

// SubjectRequest is the create and update payload for subjects.
type SubjectRequest struct {
	DepartmentID *string `json:"department_id"`
	Code         string  `json:"code" validate:"required,max=20"`
	Name         string  `json:"name" validate:"required,max=160"`
	Units        int     `json:"units" validate:"min=0,max=12"`
}

// SubjectService handles subject business logic.
type SubjectService struct {
	repo      subjectRepository
	audit     auditRecorder
	validator *validation.Validator
	logger    *zap.Logger
}

// NewSubjectService constructs a SubjectService.
func NewSubjectService(repo subjectRepository, audit auditRecorder, validate *validation.Validator, logger *zap.Logger) *SubjectService {
	return &SubjectService{repo: repo, audit: audit, validator: defaultValidator(validate), logger: defaultLogger(logger)}
}

// List returns paginated subjects.
func (s *SubjectService) List(ctx context.Context, filter models.SubjectFilter) ([]models.Subject, *models.Pagination, error) {
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list subjects")
	}
	return items, filter.Pagination(total), nil
}

// Get returns subject by id.
func (s *SubjectService) Get(ctx context.Context, id string) (*models.Subject, error) {
	subject, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, repoError(err, "subject", "load")
	}
	return subject, nil
}

// Create registers a new subject.
func (s *SubjectService) Create(ctx context.Context, req SubjectRequest, actor Actor) (*models.Subject, error) {
	if err := s.validator.Check(req, "invalid subject payload"); err != nil {
		return nil, err
	}
	subject := &models.Subject{
		DepartmentID: optionalID(req.DepartmentID),
		Code:         normalizeCode(req.Code),
		Name:         strings.TrimSpace(req.Name),
		Units:        req.Units,
	}
	if err := s.repo.Create(ctx, subject); err != nil {
		return nil, repoError(err, "subject", "create")
	}
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionCreate, "subjects", subject.ID, nil, subject)
	return subject, nil
}

// Update modifies a subject.
func (s *SubjectService) Update(ctx context.Context, id string, req SubjectRequest, actor Actor) (*models.Subject, error) {
	if err := s.validator.Check(req, "invalid subject payload"); err != nil {
		return nil, err
	}
	subject, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	old := *subject
	subject.DepartmentID = optionalID(req.DepartmentID)
	subject.Code = normalizeCode(req.Code)
	subject.Name = strings.TrimSpace(req.Name)
	subject.Units = req.Units
	if err := s.repo.Update(ctx, subject); err != nil {
		return nil, repoError(err, "subject", "update")
	}
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionUpdate, "subjects", id, old, subject)
	return subject, nil
}

// Delete removes a subject.
func (s *SubjectService) Delete(ctx context.Context, id string, actor Actor) error {
	subject, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return repoError(err, "subject", "delete")
	}
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionDelete, "subjects", id, subject, nil)
	return nil
}

// optionalID trims an optional foreign key and turns blanks into nil.
func optionalID(id *string) *string {
	if id == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*id)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
