package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/college-scheduling-api/internal/models"
	"github.com/noah-isme/college-scheduling-api/internal/service"
	appErrors "github.com/noah-isme/college-scheduling-api/pkg/errors"
)

type exportServiceMock struct {
	req      service.ExportRequest
	actor    service.Actor
	download *service.ExportDownload
	err      error
}

func (m *exportServiceMock) CreateJob(ctx context.Context, req service.ExportRequest, actor service.Actor) (*models.ExportJob, error) {
	m.req = req
	m.actor = actor
	if m.err != nil {
		return nil, m.err
	}
	return &models.ExportJob{ID: "job-1", Status: models.ExportStatusQueued}, nil
}

func (m *exportServiceMock) GetJob(ctx context.Context, id string, actor service.Actor) (*models.ExportJob, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &models.ExportJob{ID: id, Status: models.ExportStatusFinished, Progress: 100}, nil
}

func (m *exportServiceMock) ResolveDownload(ctx context.Context, token string) (*service.ExportDownload, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.download, nil
}

func TestExportHandlerCreateQueuesJob(t *testing.T) {
	mock := &exportServiceMock{}
	h := NewExportHandler(mock)
	c, w := newTestContext(http.MethodPost, "/exports", []byte(`{"semester_id":"sem-1","mode":"room","format":"pdf","day":2}`), adminClaims)

	h.Create(c)

	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "sem-1", mock.req.SemesterID)
	require.NotNil(t, mock.req.Day)
	assert.Equal(t, models.Wednesday, *mock.req.Day)
	assert.Contains(t, w.Body.String(), `"status":"QUEUED"`)
}

func TestExportHandlerCreateForbidden(t *testing.T) {
	h := NewExportHandler(&exportServiceMock{err: appErrors.ErrForbidden})
	faculty := &models.JWTClaims{UserID: "u-2", Role: models.RoleFaculty}
	c, w := newTestContext(http.MethodPost, "/exports", []byte(`{"semester_id":"sem-1","mode":"room","format":"csv"}`), faculty)

	h.Create(c)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestExportHandlerGet(t *testing.T) {
	h := NewExportHandler(&exportServiceMock{})
	c, w := newTestContext(http.MethodGet, "/exports/job-7", nil, adminClaims)
	c.Params = gin.Params{{Key: "id", Value: "job-7"}}

	h.Get(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"id":"job-7"`)
}

func TestExportHandlerDownloadStreamsFile(t *testing.T) {
	h := NewExportHandler(&exportServiceMock{download: &service.ExportDownload{
		Body:        io.NopCloser(strings.NewReader("day,column\n")),
		Filename:    "2024-2025-first-room.csv",
		ContentType: "text/csv",
		ExpiresAt:   time.Now().Add(time.Hour),
	}})
	c, w := newTestContext(http.MethodGet, "/export/tok", nil, nil)
	c.Params = gin.Params{{Key: "token", Value: "tok"}}

	h.Download(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "2024-2025-first-room.csv")
	assert.Equal(t, "day,column\n", w.Body.String())
}

func TestExportHandlerDownloadNotReady(t *testing.T) {
	h := NewExportHandler(&exportServiceMock{err: appErrors.ErrExportNotReady})
	c, w := newTestContext(http.MethodGet, "/export/tok", nil, nil)

	h.Download(c)

	assert.Equal(t, http.StatusConflict, w.Code)
}

type notificationServiceMock struct {
	filter models.NotificationFilter
	digest *models.Notification
	err    error
}

func (m *notificationServiceMock) SendDigest(ctx context.Context, facultyID string) (*models.Notification, error) {
	return m.digest, m.err
}

func (m *notificationServiceMock) List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, *models.Pagination, error) {
	m.filter = filter
	return []models.Notification{}, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize}, nil
}

func TestNotificationHandlerList(t *testing.T) {
	mock := &notificationServiceMock{}
	h := NewNotificationHandler(mock)
	c, w := newTestContext(http.MethodGet, "/notifications?faculty_id=f1&status=sent&page=2", nil, adminClaims)

	h.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "f1", mock.filter.FacultyID)
	assert.Equal(t, models.NotificationSent, mock.filter.Status)
	assert.Equal(t, 2, mock.filter.Page)
}

func TestNotificationHandlerSendDigest(t *testing.T) {
	h := NewNotificationHandler(&notificationServiceMock{digest: &models.Notification{ID: "n-1", Kind: models.NotificationWeeklyDigest}})
	c, w := newTestContext(http.MethodPost, "/notifications/faculty/f1/digest", nil, adminClaims)
	c.Params = gin.Params{{Key: "id", Value: "f1"}}
	h.SendDigest(c)
	assert.Equal(t, http.StatusAccepted, w.Code)

	h = NewNotificationHandler(&notificationServiceMock{})
	c, w = newTestContext(http.MethodPost, "/notifications/faculty/f1/digest", nil, adminClaims)
	h.SendDigest(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMetricsHandlerReady(t *testing.T) {
	ok := PingerFunc(func(ctx context.Context) error { return nil })
	down := PingerFunc(func(ctx context.Context) error { return errors.New("connection refused") })

	h := NewMetricsHandler(nil, map[string]Pinger{"database": ok, "redis": ok})
	c, w := newTestContext(http.MethodGet, "/ready", nil, nil)
	h.Ready(c)
	assert.Equal(t, http.StatusOK, w.Code)

	h = NewMetricsHandler(nil, map[string]Pinger{"database": ok, "redis": down})
	c, w = newTestContext(http.MethodGet, "/ready", nil, nil)
	h.Ready(c)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")

	c, _ = newTestContext(http.MethodGet, "/metrics", nil, nil)
	h.Prometheus(c)
	assert.Equal(t, http.StatusServiceUnavailable, c.Writer.Status())
}

type analyticsServiceMock struct {
	semesterID string
}

func (m *analyticsServiceMock) Utilization(ctx context.Context, semesterID string) (*service.UtilizationReport, error) {
	m.semesterID = semesterID
	if semesterID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "semester_id is required")
	}
	return &service.UtilizationReport{SemesterID: semesterID, Rooms: []service.ResourceLoad{{ID: "r1", Minutes: 90}}, Cached: true}, nil
}

func TestAnalyticsHandlerUtilization(t *testing.T) {
	mock := &analyticsServiceMock{}
	h := NewAnalyticsHandler(mock)
	c, w := newTestContext(http.MethodGet, "/schedules/utilization?semester_id=sem-1", nil, adminClaims)

	h.Utilization(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "sem-1", mock.semesterID)
	assert.Contains(t, w.Body.String(), `"minutes":90`)
	assert.Contains(t, w.Body.String(), `"cache_hit":true`)

	c, w = newTestContext(http.MethodGet, "/schedules/utilization", nil, adminClaims)
	h.Utilization(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
