package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/college-scheduling-api/internal/models"
	appErrors "github.com/noah-isme/college-scheduling-api/pkg/errors"
	"github.com/noah-isme/college-scheduling-api/pkg/validation"
)

type sectionRepository interface {
	List(ctx context.Context, filter models.SectionFilter) ([]models.ClassSection, int, error)
	FindByID(ctx context.Context, id string) (*models.ClassSection, error)
	Create(ctx context.Context, section *models.ClassSection) error
	Update(ctx context.Context, section *models.ClassSection) error
	Delete(ctx context.Context, id string) error
}

// SectionRequest is the create and update payload for class sections.
type SectionRequest struct {
	CourseID  string `json:"course_id" validate:"required"`
	Name      string `json:"name" validate:"required,max=60"`
	YearLevel int    `json:"year_level" validate:"required,min=1,max=6"`
}

// SectionService manages class sections.
type SectionService struct {
	repo      sectionRepository
	courses   courseRepository
	audit     auditRecorder
	validator *validation.Validator
	logger    *zap.Logger
}

// NewSectionService creates a class section service.
func NewSectionService(repo sectionRepository, courses courseRepository, audit auditRecorder, validate *validation.Validator, logger *zap.Logger) *SectionService {
	return &SectionService{repo: repo, courses: courses, audit: audit, validator: defaultValidator(validate), logger: defaultLogger(logger)}
}

// List returns paginated sections.
func (s *SectionService) List(ctx context.Context, filter models.SectionFilter) ([]models.ClassSection, *models.Pagination, error) {
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list class sections")
	}
	return items, filter.Pagination(total), nil
}

// Get returns a class section by identifier.
func (s *SectionService) Get(ctx context.Context, id string) (*models.ClassSection, error) {
	section, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, repoError(err, "class section", "load")
	}
	return section, nil
}

// Create adds a section to an existing course.
func (s *SectionService) Create(ctx context.Context, req SectionRequest, actor Actor) (*models.ClassSection, error) {
	if err := s.validator.Check(req, "invalid class section payload"); err != nil {
		return nil, err
	}
	if _, err := s.courses.FindByID(ctx, req.CourseID); err != nil {
		return nil, repoError(err, "course", "load")
	}
	section := &models.ClassSection{CourseID: req.CourseID, Name: strings.ToUpper(strings.TrimSpace(req.Name)), YearLevel: req.YearLevel}
	if err := s.repo.Create(ctx, section); err != nil {
		return nil, repoError(err, "class section", "create")
	}
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionCreate, "class_sections", section.ID, nil, section)
	return section, nil
}

// Update modifies a section.
func (s *SectionService) Update(ctx context.Context, id string, req SectionRequest, actor Actor) (*models.ClassSection, error) {
	if err := s.validator.Check(req, "invalid class section payload"); err != nil {
		return nil, err
	}
	section, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.CourseID != section.CourseID {
		if _, err := s.courses.FindByID(ctx, req.CourseID); err != nil {
			return nil, repoError(err, "course", "load")
		}
	}
	old := *section
	section.CourseID = req.CourseID
	section.Name = strings.ToUpper(strings.TrimSpace(req.Name))
	section.YearLevel = req.YearLevel
	if err := s.repo.Update(ctx, section); err != nil {
		return nil, repoError(err, "class section", "update")
	}
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionUpdate, "class_sections", id, old, section)
	return section, nil
}

// Delete removes a section that has no schedule entries.
func (s *SectionService) Delete(ctx context.Context, id string, actor Actor) error {
	section, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return repoError(err, "class section", "delete")
	}
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionDelete, "class_sections", id, section, nil)
	return nil
}
