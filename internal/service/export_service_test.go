package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/college-scheduling-api/internal/models"
	"github.com/noah-isme/college-scheduling-api/internal/repository"
	appErrors "github.com/noah-isme/college-scheduling-api/pkg/errors"
	"github.com/noah-isme/college-scheduling-api/pkg/jobs"
	"github.com/noah-isme/college-scheduling-api/pkg/storage"
)

type exportRepoStub struct {
	jobs map[string]*models.ExportJob
	seq  int
}

func newExportRepoStub() *exportRepoStub {
	return &exportRepoStub{jobs: map[string]*models.ExportJob{}}
}

func (r *exportRepoStub) Create(ctx context.Context, job *models.ExportJob) error {
	r.seq++
	job.ID = fmt.Sprintf("job-%d", r.seq)
	job.CreatedAt = time.Now().UTC()
	copy := *job
	r.jobs[job.ID] = &copy
	return nil
}

func (r *exportRepoStub) GetByID(ctx context.Context, id string) (*models.ExportJob, error) {
	job, ok := r.jobs[id]
	if !ok {
		return nil, fmt.Errorf("get export job: %w", sql.ErrNoRows)
	}
	copy := *job
	return &copy, nil
}

func (r *exportRepoStub) Update(ctx context.Context, id string, params repository.UpdateExportJobParams) error {
	job, ok := r.jobs[id]
	if !ok {
		return sql.ErrNoRows
	}
	if params.Status != nil {
		job.Status = *params.Status
	}
	if params.Progress != nil {
		job.Progress = *params.Progress
	}
	if params.FilePath != nil {
		job.FilePath = params.FilePath
	}
	if params.ResultURL != nil {
		job.ResultURL = params.ResultURL
	}
	if params.ErrorMessage != nil {
		job.ErrorMessage = params.ErrorMessage
	}
	if params.FinishedAt != nil {
		job.FinishedAt = params.FinishedAt
	}
	return nil
}

func (r *exportRepoStub) ListQueued(ctx context.Context, limit int) ([]models.ExportJob, error) {
	var out []models.ExportJob
	for _, job := range r.jobs {
		if job.Status == models.ExportStatusQueued {
			out = append(out, *job)
		}
	}
	return out, nil
}

func (r *exportRepoStub) ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ExportJob, error) {
	var out []models.ExportJob
	for _, job := range r.jobs {
		if job.Status == models.ExportStatusFinished && job.FinishedAt != nil && job.FinishedAt.Before(cutoff) {
			out = append(out, *job)
		}
	}
	return out, nil
}

type dispatcherStub struct {
	jobs []jobs.Job
	err  error
}

func (d *dispatcherStub) Enqueue(ctx context.Context, job jobs.Job) error {
	if d.err != nil {
		return d.err
	}
	d.jobs = append(d.jobs, job)
	return nil
}

type exportFixture struct {
	svc        *ExportService
	repo       *exportRepoStub
	dispatcher *dispatcherStub
	storage    *storage.LocalStorage
}

func newExportFixture(t *testing.T) *exportFixture {
	t.Helper()
	local, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	lister := &detailListerStub{details: []models.ScheduleEntryDetail{
		gridDetail("a", models.Monday, "08:00", "10:00", "r1", "A-101"),
		gridDetail("b", models.Tuesday, "09:00", "10:00", "r2", "B-201"),
	}}
	semesters := &semesterRepoStub{items: map[string]*models.Semester{
		"sem-1": {ID: "sem-1", Name: "First Semester", AcademicYear: "2024-2025", Term: models.SemesterFirst},
	}}
	faculty := &facultyRepoStub{items: map[string]*models.Faculty{
		"fac-a": {ID: "fac-a", FullName: "Faculty a", Email: "a@college.edu", Active: true},
	}}

	f := &exportFixture{repo: newExportRepoStub(), dispatcher: &dispatcherStub{}, storage: local}
	f.svc = NewExportService(ExportServiceParams{
		Repo:      f.repo,
		Grids:     NewGridService(lister, nil, testGridConfig(t), zap.NewNop()),
		Semesters: semesters,
		Faculty:   faculty,
		Storage:   local,
		Signer:    storage.NewSigner("export-secret", time.Hour),
		Queue:     f.dispatcher,
		Logger:    zap.NewNop(),
	})
	return f
}

func exportAdminActor() Actor {
	return Actor{UserID: "user-admin", Role: models.RoleAdmin, Email: "admin@college.edu"}
}

func tokenFromURL(t *testing.T, url *string) string {
	t.Helper()
	require.NotNil(t, url)
	require.True(t, strings.HasPrefix(*url, "/api/v1/export/"), *url)
	return strings.TrimPrefix(*url, "/api/v1/export/")
}

func TestExportServiceCreateJobQueues(t *testing.T) {
	f := newExportFixture(t)

	job, err := f.svc.CreateJob(context.Background(), ExportRequest{SemesterID: "sem-1", Format: models.ExportFormatPDF}, exportAdminActor())
	require.NoError(t, err)
	assert.Equal(t, models.ExportStatusQueued, job.Status)
	assert.Equal(t, models.GridModeRoom, job.Params.Mode)
	assert.Equal(t, "user-admin", job.CreatedBy)

	require.Len(t, f.dispatcher.jobs, 1)
	assert.Equal(t, jobs.KindExport, f.dispatcher.jobs[0].Kind)
	assert.Equal(t, job.ID, f.dispatcher.jobs[0].ID)
}

func TestExportServiceCreateJobValidation(t *testing.T) {
	f := newExportFixture(t)

	_, err := f.svc.CreateJob(context.Background(), ExportRequest{SemesterID: "sem-1", Format: "docx"}, exportAdminActor())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = f.svc.CreateJob(context.Background(), ExportRequest{SemesterID: "missing", Format: models.ExportFormatCSV}, exportAdminActor())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
	assert.Empty(t, f.dispatcher.jobs)
}

func TestExportServiceFacultyOnlyOwnTimetable(t *testing.T) {
	f := newExportFixture(t)
	ctx := context.Background()
	faculty := Actor{UserID: "user-a", Role: models.RoleFaculty, Email: "a@college.edu"}

	_, err := f.svc.CreateJob(ctx, ExportRequest{SemesterID: "sem-1", Format: models.ExportFormatPDF}, faculty)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	other := "fac-b"
	_, err = f.svc.CreateJob(ctx, ExportRequest{SemesterID: "sem-1", Mode: models.GridModeFaculty, Format: models.ExportFormatPDF, ColumnID: &other}, faculty)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	stranger := Actor{UserID: "user-x", Role: models.RoleFaculty, Email: "x@college.edu"}
	_, err = f.svc.CreateJob(ctx, ExportRequest{SemesterID: "sem-1", Mode: models.GridModeFaculty, Format: models.ExportFormatPDF}, stranger)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	job, err := f.svc.CreateJob(ctx, ExportRequest{SemesterID: "sem-1", Mode: models.GridModeFaculty, Format: models.ExportFormatPDF}, faculty)
	require.NoError(t, err)
	require.NotNil(t, job.Params.ColumnID)
	assert.Equal(t, "fac-a", *job.Params.ColumnID)

	_, err = f.svc.GetJob(ctx, job.ID, stranger)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	got, err := f.svc.GetJob(ctx, job.ID, faculty)
	require.NoError(t, err)
	assert.Equal(t, job.ID, got.ID)
}

func TestExportServiceEnqueueFailureMarksFailed(t *testing.T) {
	f := newExportFixture(t)
	f.dispatcher.err = jobs.ErrStopped

	_, err := f.svc.CreateJob(context.Background(), ExportRequest{SemesterID: "sem-1", Format: models.ExportFormatCSV}, exportAdminActor())
	require.Error(t, err)

	stored := f.repo.jobs["job-1"]
	require.NotNil(t, stored)
	assert.Equal(t, models.ExportStatusFailed, stored.Status)
	assert.NotNil(t, stored.FinishedAt)
}

func TestExportServiceProcessAndDownload(t *testing.T) {
	f := newExportFixture(t)
	ctx := context.Background()
	column := "fac-a"

	job, err := f.svc.CreateJob(ctx, ExportRequest{SemesterID: "sem-1", Mode: models.GridModeFaculty, Format: models.ExportFormatCSV, ColumnID: &column}, exportAdminActor())
	require.NoError(t, err)

	token := ""
	t.Run("not ready before processing", func(t *testing.T) {
		signer := storage.NewSigner("export-secret", time.Hour)
		early, _, err := signer.Sign(job.ID, job.ID+"/file.csv")
		require.NoError(t, err)
		_, err = f.svc.ResolveDownload(ctx, early)
		assert.Equal(t, appErrors.ErrExportNotReady.Code, appErrors.FromError(err).Code)
	})

	require.NoError(t, f.svc.Process(ctx, f.dispatcher.jobs[0]))
	stored := f.repo.jobs[job.ID]
	assert.Equal(t, models.ExportStatusFinished, stored.Status)
	assert.Equal(t, 100, stored.Progress)
	require.NotNil(t, stored.FilePath)
	assert.Equal(t, job.ID+"/2024-2025-first-faculty-faculty-a.csv", *stored.FilePath)
	token = tokenFromURL(t, stored.ResultURL)

	download, err := f.svc.ResolveDownload(ctx, token)
	require.NoError(t, err)
	defer download.Body.Close()
	assert.Equal(t, "2024-2025-first-faculty-faculty-a.csv", download.Filename)
	assert.Equal(t, "text/csv", download.ContentType)

	body, err := io.ReadAll(download.Body)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(body), "day,column,start,end"))
	assert.Contains(t, string(body), "Monday,Faculty a,08:00,10:00")
	assert.NotContains(t, string(body), "Faculty b")

	// A finished job is not processed twice.
	require.NoError(t, f.svc.Process(ctx, f.dispatcher.jobs[0]))
}

func TestExportServiceRendersEveryFormat(t *testing.T) {
	for _, format := range []models.ExportFormat{models.ExportFormatPDF, models.ExportFormatXLSX} {
		t.Run(string(format), func(t *testing.T) {
			f := newExportFixture(t)
			job, err := f.svc.CreateJob(context.Background(), ExportRequest{SemesterID: "sem-1", Format: format}, exportAdminActor())
			require.NoError(t, err)
			require.NoError(t, f.svc.Process(context.Background(), f.dispatcher.jobs[0]))
			stored := f.repo.jobs[job.ID]
			assert.Equal(t, models.ExportStatusFinished, stored.Status)
			assert.True(t, strings.HasSuffix(*stored.FilePath, "."+string(format)))
		})
	}
}

func TestExportServiceResolveDownloadRejectsBadToken(t *testing.T) {
	f := newExportFixture(t)

	_, err := f.svc.ResolveDownload(context.Background(), "not-a-token")
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	other := storage.NewSigner("other-secret", time.Hour)
	forged, _, err := other.Sign("job-1", "job-1/a.csv")
	require.NoError(t, err)
	_, err = f.svc.ResolveDownload(context.Background(), forged)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestExportServiceProcessMissingSemesterIsPermanent(t *testing.T) {
	f := newExportFixture(t)
	require.NoError(t, f.repo.Create(context.Background(), &models.ExportJob{
		Params: models.ExportJobParams{SemesterID: "gone", Mode: models.GridModeRoom, Format: models.ExportFormatPDF},
		Status: models.ExportStatusQueued,
	}))

	err := f.svc.Process(context.Background(), jobs.Job{ID: "job-1", Kind: jobs.KindExport})
	require.Error(t, err)
	assert.True(t, jobs.IsPermanent(err))

	f.svc.Exhausted(context.Background(), jobs.Job{ID: "job-1"}, err)
	assert.Equal(t, models.ExportStatusFailed, f.repo.jobs["job-1"].Status)
	require.NotNil(t, f.repo.jobs["job-1"].ErrorMessage)
	assert.Contains(t, *f.repo.jobs["job-1"].ErrorMessage, "gone")
}

func TestExportServiceCleanupExpired(t *testing.T) {
	f := newExportFixture(t)
	ctx := context.Background()

	job, err := f.svc.CreateJob(ctx, ExportRequest{SemesterID: "sem-1", Format: models.ExportFormatCSV}, exportAdminActor())
	require.NoError(t, err)
	require.NoError(t, f.svc.Process(ctx, f.dispatcher.jobs[0]))
	token := tokenFromURL(t, f.repo.jobs[job.ID].ResultURL)

	n, err := f.svc.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	f.svc.now = func() time.Time { return time.Now().UTC().Add(48 * time.Hour) }
	n, err = f.svc.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, models.ExportStatusExpired, f.repo.jobs[job.ID].Status)

	_, err = f.storage.Open(ctx, *f.repo.jobs[job.ID].FilePath)
	assert.True(t, errors.Is(err, storage.ErrNotFound))

	_, err = f.svc.ResolveDownload(ctx, token)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestExportServiceRecoverPendingJobs(t *testing.T) {
	f := newExportFixture(t)
	require.NoError(t, f.repo.Create(context.Background(), &models.ExportJob{Status: models.ExportStatusQueued}))
	require.NoError(t, f.repo.Create(context.Background(), &models.ExportJob{Status: models.ExportStatusFinished}))

	f.svc.RecoverPendingJobs(context.Background())
	require.Len(t, f.dispatcher.jobs, 1)
	assert.Equal(t, "job-1", f.dispatcher.jobs[0].ID)
}
