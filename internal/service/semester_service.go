package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/college-scheduling-api/internal/models"
	appErrors "github.com/noah-isme/college-scheduling-api/pkg/errors"
	"github.com/noah-isme/college-scheduling-api/pkg/validation"
)

const semesterDateLayout = "2006-01-02"

type semesterRepository interface {
	List(ctx context.Context, filter models.SemesterFilter) ([]models.Semester, int, error)
	FindByID(ctx context.Context, id string) (*models.Semester, error)
	FindActive(ctx context.Context) (*models.Semester, error)
	Create(ctx context.Context, semester *models.Semester) error
	Update(ctx context.Context, semester *models.Semester) error
	Activate(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

// SemesterRequest is the create and update payload for semesters. Dates use YYYY-MM-DD.
type SemesterRequest struct {
	Name         string `json:"name" validate:"required,max=80"`
	Term         string `json:"term" validate:"required,oneof=FIRST SECOND SUMMER"`
	AcademicYear string `json:"academic_year" validate:"required,max=20"`
	StartDate    string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate      string `json:"end_date" validate:"required,datetime=2006-01-02"`
}

// SemesterService manages semesters and the single active semester.
type SemesterService struct {
	repo      semesterRepository
	audit     auditRecorder
	validator *validation.Validator
	logger    *zap.Logger
}

// NewSemesterService creates a semester service.
func NewSemesterService(repo semesterRepository, audit auditRecorder, validate *validation.Validator, logger *zap.Logger) *SemesterService {
	return &SemesterService{repo: repo, audit: audit, validator: defaultValidator(validate), logger: defaultLogger(logger)}
}

// List returns paginated semesters, newest first by default.
func (s *SemesterService) List(ctx context.Context, filter models.SemesterFilter) ([]models.Semester, *models.Pagination, error) {
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list semesters")
	}
	return items, filter.Pagination(total), nil
}

// Get returns a semester by identifier.
func (s *SemesterService) Get(ctx context.Context, id string) (*models.Semester, error) {
	semester, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, repoError(err, "semester", "load")
	}
	return semester, nil
}

// Active returns the active semester.
func (s *SemesterService) Active(ctx context.Context) (*models.Semester, error) {
	semester, err := s.repo.FindActive(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no active semester")
		}
		return nil, repoError(err, "semester", "load")
	}
	return semester, nil
}

// Create adds an inactive semester.
func (s *SemesterService) Create(ctx context.Context, req SemesterRequest, actor Actor) (*models.Semester, error) {
	semester := &models.Semester{}
	if err := s.apply(semester, req); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, semester); err != nil {
		return nil, repoError(err, "semester", "create")
	}
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionCreate, "semesters", semester.ID, nil, semester)
	return semester, nil
}

// Update modifies a semester. Activation is handled by Activate.
func (s *SemesterService) Update(ctx context.Context, id string, req SemesterRequest, actor Actor) (*models.Semester, error) {
	semester, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	old := *semester
	if err := s.apply(semester, req); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, semester); err != nil {
		return nil, repoError(err, "semester", "update")
	}
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionUpdate, "semesters", id, old, semester)
	return semester, nil
}

// Activate makes the semester the only active one.
func (s *SemesterService) Activate(ctx context.Context, id string, actor Actor) (*models.Semester, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	if err := s.repo.Activate(ctx, id); err != nil {
		return nil, repoError(err, "semester", "activate")
	}
	semester, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionActivate, "semesters", id, nil, semester)
	return semester, nil
}

// Delete removes a semester without schedule entries.
func (s *SemesterService) Delete(ctx context.Context, id string, actor Actor) error {
	semester, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return repoError(err, "semester", "delete")
	}
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionDelete, "semesters", id, semester, nil)
	return nil
}

func (s *SemesterService) apply(semester *models.Semester, req SemesterRequest) error {
	if err := s.validator.Check(req, "invalid semester payload"); err != nil {
		return err
	}
	start, _ := time.Parse(semesterDateLayout, req.StartDate)
	end, _ := time.Parse(semesterDateLayout, req.EndDate)
	if !start.Before(end) {
		return appErrors.Clone(appErrors.ErrValidation, "invalid semester payload").
			WithDetails(map[string]string{"end_date": "must be after start_date"})
	}
	semester.Name = strings.TrimSpace(req.Name)
	semester.Term = models.SemesterTerm(req.Term)
	semester.AcademicYear = strings.TrimSpace(req.AcademicYear)
	semester.StartDate = start
	semester.EndDate = end
	return nil
}
