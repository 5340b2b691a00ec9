package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/college-scheduling-api/internal/models"
	appErrors "github.com/noah-isme/college-scheduling-api/pkg/errors"
	"github.com/noah-isme/college-scheduling-api/pkg/validation"
)

type courseRepository interface {
	List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error)
	FindByID(ctx context.Context, id string) (*models.Course, error)
	Create(ctx context.Context, course *models.Course) error
	Update(ctx context.Context, course *models.Course) error
	Delete(ctx context.Context, id string) error
}

// CourseRequest is the create and update payload for courses.
type CourseRequest struct {
	DepartmentID string `json:"department_id" validate:"required"`
	Code         string `json:"code" validate:"required,max=20"`
	Name         string `json:"name" validate:"required,max=160"`
}

// CourseService manages degree programmes.
type CourseService struct {
	repo      courseRepository
	audit     auditRecorder
	validator *validation.Validator
	logger    *zap.Logger
}

// NewCourseService creates a course service.
func NewCourseService(repo courseRepository, audit auditRecorder, validate *validation.Validator, logger *zap.Logger) *CourseService {
	return &CourseService{repo: repo, audit: audit, validator: defaultValidator(validate), logger: defaultLogger(logger)}
}

// List returns paginated courses.
func (s *CourseService) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, *models.Pagination, error) {
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	return items, filter.Pagination(total), nil
}

// Get returns a course by identifier.
func (s *CourseService) Get(ctx context.Context, id string) (*models.Course, error) {
	course, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, repoError(err, "course", "load")
	}
	return course, nil
}

// Create adds a course. An unknown department surfaces as a validation error.
func (s *CourseService) Create(ctx context.Context, req CourseRequest, actor Actor) (*models.Course, error) {
	if err := s.validator.Check(req, "invalid course payload"); err != nil {
		return nil, err
	}
	course := &models.Course{DepartmentID: req.DepartmentID, Code: normalizeCode(req.Code), Name: strings.TrimSpace(req.Name)}
	if err := s.repo.Create(ctx, course); err != nil {
		return nil, repoError(err, "course", "create")
	}
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionCreate, "courses", course.ID, nil, course)
	return course, nil
}

// Update modifies a course.
func (s *CourseService) Update(ctx context.Context, id string, req CourseRequest, actor Actor) (*models.Course, error) {
	if err := s.validator.Check(req, "invalid course payload"); err != nil {
		return nil, err
	}
	course, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	old := *course
	course.DepartmentID = req.DepartmentID
	course.Code = normalizeCode(req.Code)
	course.Name = strings.TrimSpace(req.Name)
	if err := s.repo.Update(ctx, course); err != nil {
		return nil, repoError(err, "course", "update")
	}
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionUpdate, "courses", id, old, course)
	return course, nil
}

// Delete removes a course without sections.
func (s *CourseService) Delete(ctx context.Context, id string, actor Actor) error {
	course, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return repoError(err, "course", "delete")
	}
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionDelete, "courses", id, course, nil)
	return nil
}
