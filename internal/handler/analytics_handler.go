package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/college-scheduling-api/internal/middleware"
	"github.com/noah-isme/college-scheduling-api/internal/service"
	"github.com/noah-isme/college-scheduling-api/pkg/response"
)

type analyticsService interface {
	Utilization(ctx context.Context, semesterID string) (*service.UtilizationReport, error)
}

// AnalyticsHandler serves schedule load reports.
type AnalyticsHandler struct {
	svc analyticsService
}

// NewAnalyticsHandler builds the handler.
func NewAnalyticsHandler(svc analyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{svc: svc}
}

// Utilization godoc
// @Summary Semester utilization
// @Description Weekly scheduled minutes per room, faculty member and section against the grid window.
// @Tags Schedules
// @Produce json
// @Security BearerAuth
// @Param semester_id query string true "Semester ID"
// @Success 200 {object} response.Envelope
// @Router /schedules/utilization [get]
func (h *AnalyticsHandler) Utilization(c *gin.Context) {
	report, err := h.svc.Utilization(c.Request.Context(), c.Query("semester_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, report.Cached)
	response.JSON(c, http.StatusOK, report, nil)
}
