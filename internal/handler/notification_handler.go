package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/college-scheduling-api/internal/models"
	appErrors "github.com/noah-isme/college-scheduling-api/pkg/errors"
	"github.com/noah-isme/college-scheduling-api/pkg/response"
)

type notificationService interface {
	SendDigest(ctx context.Context, facultyID string) (*models.Notification, error)
	List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, *models.Pagination, error)
}

// NotificationHandler exposes faculty email endpoints.
type NotificationHandler struct {
	service notificationService
}

// NewNotificationHandler constructs a notification handler.
func NewNotificationHandler(svc notificationService) *NotificationHandler {
	return &NotificationHandler{service: svc}
}

// List godoc
// @Summary List sent notifications
// @Tags Notifications
// @Produce json
// @Security BearerAuth
// @Param faculty_id query string false "Filter by faculty"
// @Param kind query string false "SCHEDULE_CREATED, SCHEDULE_UPDATED, SCHEDULE_DEACTIVATED, SCHEDULE_DELETED or WEEKLY_DIGEST"
// @Param status query string false "PENDING, SENT or FAILED"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /notifications [get]
func (h *NotificationHandler) List(c *gin.Context) {
	filter := models.NotificationFilter{
		FacultyID: c.Query("faculty_id"),
		Kind:      models.NotificationKind(strings.ToUpper(c.Query("kind"))),
		Status:    models.NotificationStatus(strings.ToUpper(c.Query("status"))),
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	items, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// SendDigest godoc
// @Summary Email a weekly timetable digest
// @Description Queues the active semester timetable of one faculty member.
// @Tags Notifications
// @Produce json
// @Security BearerAuth
// @Param id path string true "Faculty ID"
// @Success 202 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /notifications/faculty/{id}/digest [post]
func (h *NotificationHandler) SendDigest(c *gin.Context) {
	n, err := h.service.SendDigest(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if n == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "faculty has no classes in the active semester"))
		return
	}
	response.Accepted(c, n)
}
