package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/gosimple/slug"
	"go.uber.org/zap"

	"github.com/noah-isme/college-scheduling-api/internal/models"
	"github.com/noah-isme/college-scheduling-api/internal/repository"
	appErrors "github.com/noah-isme/college-scheduling-api/pkg/errors"
	"github.com/noah-isme/college-scheduling-api/pkg/export"
	"github.com/noah-isme/college-scheduling-api/pkg/jobs"
	"github.com/noah-isme/college-scheduling-api/pkg/storage"
	"github.com/noah-isme/college-scheduling-api/pkg/validation"
)

type exportJobStore interface {
	Create(ctx context.Context, job *models.ExportJob) error
	GetByID(ctx context.Context, id string) (*models.ExportJob, error)
	Update(ctx context.Context, id string, params repository.UpdateExportJobParams) error
	ListQueued(ctx context.Context, limit int) ([]models.ExportJob, error)
	ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ExportJob, error)
}

type gridBuilder interface {
	Build(ctx context.Context, req GridRequest) (*GridView, error)
}

type semesterFinder interface {
	FindByID(ctx context.Context, id string) (*models.Semester, error)
}

type facultyEmailLookup interface {
	FindByEmail(ctx context.Context, email string) (*models.Faculty, error)
}

type jobDispatcher interface {
	Enqueue(ctx context.Context, job jobs.Job) error
}

// ExportRequest asks for a timetable file.
type ExportRequest struct {
	SemesterID string              `json:"semester_id" validate:"required"`
	Mode       models.GridMode     `json:"mode" validate:"omitempty,oneof=room faculty section"`
	Format     models.ExportFormat `json:"format" validate:"required,oneof=pdf xlsx csv"`
	Day        *models.Weekday     `json:"day,omitempty" validate:"omitempty,min=0,max=6"`
	ColumnID   *string             `json:"column_id,omitempty"`
}

// ExportServiceConfig sets download links and retention.
type ExportServiceConfig struct {
	PublicURL       string
	APIPrefix       string
	ResultTTL       time.Duration
	CleanupInterval time.Duration
}

// ExportServiceParams groups the export service collaborators.
type ExportServiceParams struct {
	Repo      exportJobStore
	Grids     gridBuilder
	Semesters semesterFinder
	Faculty   facultyEmailLookup
	Storage   storage.Storage
	Signer    *storage.Signer
	Queue     jobDispatcher
	Metrics   *MetricsService
	Validator *validation.Validator
	Logger    *zap.Logger
	Config    ExportServiceConfig
}

// ExportDownload is an open export file ready to stream.
type ExportDownload struct {
	Body        io.ReadCloser
	Filename    string
	ContentType string
	ExpiresAt   time.Time
}

// ExportService queues timetable exports, renders them on the job queue and
// serves the results through signed links.
type ExportService struct {
	repo      exportJobStore
	grids     gridBuilder
	semesters semesterFinder
	faculty   facultyEmailLookup
	storage   storage.Storage
	signer    *storage.Signer
	queue     jobDispatcher
	metrics   *MetricsService
	validator *validation.Validator
	logger    *zap.Logger
	cfg       ExportServiceConfig
	now       func() time.Time
}

// NewExportService constructs the export service.
func NewExportService(params ExportServiceParams) *ExportService {
	cfg := params.Config
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = "/api/v1"
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	return &ExportService{
		repo:      params.Repo,
		grids:     params.Grids,
		semesters: params.Semesters,
		faculty:   params.Faculty,
		storage:   params.Storage,
		signer:    params.Signer,
		queue:     params.Queue,
		metrics:   params.Metrics,
		validator: defaultValidator(params.Validator),
		logger:    defaultLogger(params.Logger),
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// CreateJob validates the request, records a QUEUED job and hands it to the
// worker queue. Faculty users may only export their own timetable.
func (s *ExportService) CreateJob(ctx context.Context, req ExportRequest, actor Actor) (*models.ExportJob, error) {
	if err := s.validator.Check(req, "invalid export payload"); err != nil {
		return nil, err
	}
	if req.Mode == "" {
		req.Mode = models.GridModeRoom
	}
	if req.ColumnID != nil && strings.TrimSpace(*req.ColumnID) == "" {
		req.ColumnID = nil
	}
	if actor.Role == models.RoleFaculty {
		if err := s.restrictToOwnTimetable(ctx, &req, actor); err != nil {
			return nil, err
		}
	}
	if _, err := s.semesters.FindByID(ctx, req.SemesterID); err != nil {
		return nil, repoError(err, "semester", "load")
	}

	job := &models.ExportJob{
		Params: models.ExportJobParams{
			SemesterID: req.SemesterID,
			Mode:       req.Mode,
			Format:     req.Format,
			Day:        req.Day,
			ColumnID:   req.ColumnID,
		},
		Status:    models.ExportStatusQueued,
		CreatedBy: actor.UserID,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create export job")
	}

	if err := s.dispatch(ctx, job.ID); err != nil {
		s.markFailed(ctx, job.ID, "failed to enqueue export job")
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue export job")
	}
	s.logger.Info("export job queued", zap.String("job_id", job.ID), zap.String("format", string(req.Format)), zap.String("mode", string(req.Mode)))
	return job, nil
}

func (s *ExportService) restrictToOwnTimetable(ctx context.Context, req *ExportRequest, actor Actor) error {
	if req.Mode != models.GridModeFaculty {
		return appErrors.Clone(appErrors.ErrForbidden, "faculty users can only export faculty timetables")
	}
	if s.faculty == nil || actor.Email == "" {
		return appErrors.Clone(appErrors.ErrForbidden, "no faculty record is linked to this account")
	}
	own, err := s.faculty.FindByEmail(ctx, actor.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrForbidden, "no faculty record is linked to this account")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve faculty record")
	}
	if req.ColumnID != nil && *req.ColumnID != own.ID {
		return appErrors.Clone(appErrors.ErrForbidden, "faculty users can only export their own timetable")
	}
	id := own.ID
	req.ColumnID = &id
	return nil
}

// GetJob returns job status. Faculty users only see jobs they created.
func (s *ExportService) GetJob(ctx context.Context, id string, actor Actor) (*models.ExportJob, error) {
	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, repoError(err, "export job", "load")
	}
	if actor.Role == models.RoleFaculty && job.CreatedBy != actor.UserID {
		return nil, appErrors.ErrForbidden
	}
	return job, nil
}

// ResolveDownload checks a signed token and opens the stored file.
func (s *ExportService) ResolveDownload(ctx context.Context, token string) (*ExportDownload, error) {
	grant, err := s.signer.Verify(token)
	if err != nil {
		if errors.Is(err, storage.ErrExpiredToken) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "download link has expired")
		}
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid download token")
	}
	job, err := s.repo.GetByID(ctx, grant.JobID)
	if err != nil {
		return nil, repoError(err, "export job", "load")
	}
	switch job.Status {
	case models.ExportStatusFinished:
	case models.ExportStatusExpired:
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export file has expired")
	default:
		return nil, appErrors.ErrExportNotReady.WithDetails(map[string]interface{}{"status": job.Status, "progress": job.Progress})
	}
	if job.FilePath == nil || *job.FilePath != grant.Key {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "token does not match export")
	}

	body, err := s.storage.Open(ctx, grant.Key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "export file no longer available")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open export file")
	}
	renderer, err := export.NewRenderer(export.Format(job.Params.Format))
	contentType := "application/octet-stream"
	if err == nil {
		contentType = renderer.ContentType()
	}
	return &ExportDownload{
		Body:        body,
		Filename:    path.Base(grant.Key),
		ContentType: contentType,
		ExpiresAt:   grant.ExpiresAt,
	}, nil
}

// Process is the job queue handler: it renders the grid, stores the file
// and publishes a signed download link.
func (s *ExportService) Process(ctx context.Context, j jobs.Job) error {
	started := time.Now()
	job, err := s.repo.GetByID(ctx, j.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return jobs.Permanent(fmt.Errorf("export job %s not found", j.ID))
		}
		return err
	}
	if job.Status != models.ExportStatusQueued && job.Status != models.ExportStatusProcessing {
		return nil
	}
	s.setProgress(ctx, job.ID, models.ExportStatusProcessing, 10)

	renderer, err := export.NewRenderer(export.Format(job.Params.Format))
	if err != nil {
		return jobs.Permanent(err)
	}
	semester, err := s.semesters.FindByID(ctx, job.Params.SemesterID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return jobs.Permanent(fmt.Errorf("semester %s not found", job.Params.SemesterID))
		}
		return s.retry(ctx, job.ID, err)
	}

	req := GridRequest{SemesterID: job.Params.SemesterID, Mode: job.Params.Mode, Day: job.Params.Day}
	if job.Params.ColumnID != nil {
		req.ColumnID = *job.Params.ColumnID
	}
	view, err := s.grids.Build(ctx, req)
	if err != nil {
		if appErr := appErrors.FromError(err); appErr.Status < 500 {
			return jobs.Permanent(err)
		}
		return s.retry(ctx, job.ID, err)
	}
	s.setProgress(ctx, job.ID, models.ExportStatusProcessing, 50)

	data, err := renderer.Render(gridDocument(semester, view))
	if err != nil {
		return jobs.Permanent(fmt.Errorf("render %s: %w", job.Params.Format, err))
	}
	s.setProgress(ctx, job.ID, models.ExportStatusProcessing, 80)

	key := path.Join(job.ID, s.filename(semester, job, view, renderer.Extension()))
	if err := s.storage.Save(ctx, key, data, renderer.ContentType()); err != nil {
		return s.retry(ctx, job.ID, err)
	}
	token, _, err := s.signer.Sign(job.ID, key)
	if err != nil {
		return jobs.Permanent(err)
	}

	url := s.downloadURL(token)
	status := models.ExportStatusFinished
	progress := 100
	now := s.now()
	noError := ""
	if err := s.repo.Update(ctx, job.ID, repository.UpdateExportJobParams{
		Status:       &status,
		Progress:     &progress,
		FilePath:     &key,
		ResultURL:    &url,
		ErrorMessage: &noError,
		FinishedAt:   &now,
	}); err != nil {
		return err
	}
	s.metrics.RecordExport(string(job.Params.Format), "finished", time.Since(started))
	s.logger.Info("export job finished", zap.String("job_id", job.ID), zap.String("key", key), zap.Int("bytes", len(data)))
	return nil
}

// Exhausted is the queue callback for jobs that will not be retried.
func (s *ExportService) Exhausted(ctx context.Context, j jobs.Job, err error) {
	s.markFailed(ctx, j.ID, err.Error())
	format := "unknown"
	if job, getErr := s.repo.GetByID(ctx, j.ID); getErr == nil {
		format = string(job.Params.Format)
	}
	s.metrics.RecordExport(format, "failed", 0)
}

// RecoverPendingJobs requeues jobs left QUEUED by a previous process.
func (s *ExportService) RecoverPendingJobs(ctx context.Context) {
	pending, err := s.repo.ListQueued(ctx, 50)
	if err != nil {
		s.logger.Warn("failed to list queued export jobs", zap.Error(err))
		return
	}
	for _, job := range pending {
		if err := s.dispatch(ctx, job.ID); err != nil {
			s.logger.Warn("failed to requeue export job", zap.String("job_id", job.ID), zap.Error(err))
		}
	}
}

// StartCleanup removes expired export files every CleanupInterval until ctx ends.
func (s *ExportService) StartCleanup(ctx context.Context) {
	if s.cfg.CleanupInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.cfg.CleanupInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n, err := s.CleanupExpired(ctx); err != nil {
					s.logger.Warn("export cleanup failed", zap.Error(err))
				} else if n > 0 {
					s.logger.Info("expired exports removed", zap.Int("count", n))
				}
			}
		}
	}()
}

// CleanupExpired deletes files of jobs finished more than ResultTTL ago and
// marks the jobs EXPIRED.
func (s *ExportService) CleanupExpired(ctx context.Context) (int, error) {
	const batch = 100
	cutoff := s.now().Add(-s.cfg.ResultTTL)
	removed := 0
	for {
		expired, err := s.repo.ListFinishedBefore(ctx, cutoff, batch)
		if err != nil {
			return removed, err
		}
		for _, job := range expired {
			if job.FilePath != nil {
				if err := s.storage.Delete(ctx, *job.FilePath); err != nil && !errors.Is(err, storage.ErrNotFound) {
					s.logger.Warn("failed to delete export file", zap.String("job_id", job.ID), zap.Error(err))
					continue
				}
			}
			status := models.ExportStatusExpired
			if err := s.repo.Update(ctx, job.ID, repository.UpdateExportJobParams{Status: &status}); err != nil {
				return removed, err
			}
			removed++
		}
		if len(expired) < batch {
			return removed, nil
		}
	}
}

func (s *ExportService) dispatch(ctx context.Context, jobID string) error {
	job, err := jobs.NewJob(jobs.KindExport, jobID, nil)
	if err != nil {
		return err
	}
	return s.queue.Enqueue(ctx, job)
}

func (s *ExportService) setProgress(ctx context.Context, id string, status models.ExportStatus, progress int) {
	if err := s.repo.Update(ctx, id, repository.UpdateExportJobParams{Status: &status, Progress: &progress}); err != nil {
		s.logger.Warn("failed to update export progress", zap.String("job_id", id), zap.Error(err))
	}
}

// retry puts the job back to QUEUED with the error so status polls see why.
func (s *ExportService) retry(ctx context.Context, id string, cause error) error {
	status := models.ExportStatusQueued
	progress := 0
	msg := cause.Error()
	if err := s.repo.Update(ctx, id, repository.UpdateExportJobParams{Status: &status, Progress: &progress, ErrorMessage: &msg}); err != nil {
		s.logger.Warn("failed to requeue export job", zap.String("job_id", id), zap.Error(err))
	}
	return cause
}

func (s *ExportService) markFailed(ctx context.Context, id, reason string) {
	status := models.ExportStatusFailed
	progress := 100
	now := s.now()
	if err := s.repo.Update(ctx, id, repository.UpdateExportJobParams{
		Status:       &status,
		Progress:     &progress,
		ErrorMessage: &reason,
		FinishedAt:   &now,
	}); err != nil {
		s.logger.Warn("failed to mark export job failed", zap.String("job_id", id), zap.Error(err))
	}
}

func (s *ExportService) downloadURL(token string) string {
	return fmt.Sprintf("%s%s/export/%s", strings.TrimRight(s.cfg.PublicURL, "/"), strings.TrimRight(s.cfg.APIPrefix, "/"), token)
}

// filename is a readable slug such as "2024-2025-first-faculty-ada-lovelace-monday.pdf".
func (s *ExportService) filename(semester *models.Semester, job *models.ExportJob, view *GridView, ext string) string {
	parts := []string{semester.AcademicYear, string(semester.Term), string(job.Params.Mode)}
	if job.Params.ColumnID != nil {
		parts = append(parts, columnLabel(view, *job.Params.ColumnID))
	}
	if job.Params.Day != nil {
		parts = append(parts, job.Params.Day.Label())
	}
	name := slug.Make(strings.Join(parts, " "))
	if name == "" {
		name = "timetable"
	}
	return name + "." + ext
}
