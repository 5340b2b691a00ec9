package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/college-scheduling-api/internal/middleware"
	"github.com/noah-isme/college-scheduling-api/internal/models"
	"github.com/noah-isme/college-scheduling-api/internal/service"
	"github.com/noah-isme/college-scheduling-api/pkg/response"
)

type scheduleService interface {
	List(ctx context.Context, filter models.ScheduleFilter) ([]models.ScheduleEntry, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.ScheduleEntryDetail, error)
	ForFaculty(ctx context.Context, facultyID, semesterID string) ([]models.ScheduleEntryDetail, error)
	ForRoom(ctx context.Context, roomID, semesterID string) ([]models.ScheduleEntryDetail, error)
	ForSection(ctx context.Context, sectionID, semesterID string) ([]models.ScheduleEntryDetail, error)
	Create(ctx context.Context, req service.ScheduleRequest, actor service.Actor) (*models.ScheduleEntry, error)
	Update(ctx context.Context, id string, req service.ScheduleRequest, actor service.Actor) (*models.ScheduleEntry, error)
	Deactivate(ctx context.Context, id string, actor service.Actor) (*models.ScheduleEntry, error)
	Delete(ctx context.Context, id string, actor service.Actor) error
	Check(ctx context.Context, req service.ScheduleRequest, excludeID string) (*models.ConflictReport, error)
	BulkCreate(ctx context.Context, req service.BulkScheduleRequest, actor service.Actor) (*service.BulkScheduleResult, error)
}

type gridBuilder interface {
	Build(ctx context.Context, req service.GridRequest) (*service.GridView, error)
}

// ScheduleHandler manages schedule endpoints.
type ScheduleHandler struct {
	service scheduleService
	grids   gridBuilder
}

// NewScheduleHandler constructs handler.
func NewScheduleHandler(svc scheduleService, grids gridBuilder) *ScheduleHandler {
	return &ScheduleHandler{service: svc, grids: grids}
}

// List godoc
// @Summary List schedules
// @Tags Schedules
// @Produce json
// @Security BearerAuth
// @Param semester_id query string false "Filter by semester"
// @Param day query string false "Day 0-6 (Monday = 0) or name"
// @Param faculty_id query string false "Filter by faculty"
// @Param room_id query string false "Filter by room"
// @Param section_id query string false "Filter by class section"
// @Param active query bool false "Filter by active flag"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Param sort query string false "day, start_time, created_at"
// @Param order query string false "asc or desc"
// @Success 200 {object} response.Envelope
// @Router /schedules [get]
func (h *ScheduleHandler) List(c *gin.Context) {
	day, err := dayQuery(c, "day")
	if err != nil {
		response.Error(c, err)
		return
	}
	q := listQuery(c)
	filter := models.ScheduleFilter{
		SemesterID:     c.Query("semester_id"),
		DayOfWeek:      day,
		FacultyID:      c.Query("faculty_id"),
		RoomID:         c.Query("room_id"),
		ClassSectionID: c.Query("section_id"),
		Active:         boolQuery(c, "active"),
		Page:           q.Page,
		PageSize:       q.PageSize,
		SortBy:         q.SortBy,
		SortOrder:      q.SortOrder,
	}

	schedules, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, schedules, pagination)
}

// Get godoc
// @Summary Get schedule entry
// @Tags Schedules
// @Produce json
// @Security BearerAuth
// @Param id path string true "Schedule ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /schedules/{id} [get]
func (h *ScheduleHandler) Get(c *gin.Context) {
	entry, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entry, nil)
}

// ListByFaculty godoc
// @Summary Faculty timetable
// @Tags Schedules
// @Produce json
// @Security BearerAuth
// @Param id path string true "Faculty ID"
// @Param semester_id query string false "Semester, defaults to the active one"
// @Success 200 {object} response.Envelope
// @Router /faculty/{id}/schedules [get]
func (h *ScheduleHandler) ListByFaculty(c *gin.Context) {
	h.timetable(c, h.service.ForFaculty)
}

// ListByRoom godoc
// @Summary Room timetable
// @Tags Schedules
// @Produce json
// @Security BearerAuth
// @Param id path string true "Room ID"
// @Param semester_id query string false "Semester, defaults to the active one"
// @Success 200 {object} response.Envelope
// @Router /rooms/{id}/schedules [get]
func (h *ScheduleHandler) ListByRoom(c *gin.Context) {
	h.timetable(c, h.service.ForRoom)
}

// ListBySection godoc
// @Summary Class section timetable
// @Tags Schedules
// @Produce json
// @Security BearerAuth
// @Param id path string true "Section ID"
// @Param semester_id query string false "Semester, defaults to the active one"
// @Success 200 {object} response.Envelope
// @Router /sections/{id}/schedules [get]
func (h *ScheduleHandler) ListBySection(c *gin.Context) {
	h.timetable(c, h.service.ForSection)
}

func (h *ScheduleHandler) timetable(c *gin.Context, load func(ctx context.Context, id, semesterID string) ([]models.ScheduleEntryDetail, error)) {
	entries, err := load(c.Request.Context(), c.Param("id"), c.Query("semester_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// Create godoc
// @Summary Create schedule entry
// @Description Validates the interval and rejects faculty or room double-booking.
// @Tags Schedules
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.ScheduleRequest true "Schedule payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /schedules [post]
func (h *ScheduleHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req service.ScheduleRequest
	if !bindJSON(c, &req) {
		return
	}
	entry, err := h.service.Create(c.Request.Context(), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, entry)
}

// Update godoc
// @Summary Update schedule entry
// @Tags Schedules
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Schedule ID"
// @Param payload body service.ScheduleRequest true "Schedule payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /schedules/{id} [put]
func (h *ScheduleHandler) Update(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req service.ScheduleRequest
	if !bindJSON(c, &req) {
		return
	}
	entry, err := h.service.Update(c.Request.Context(), c.Param("id"), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entry, nil)
}

// Deactivate godoc
// @Summary Deactivate schedule entry
// @Description Logical delete; the entry stops counting for conflicts.
// @Tags Schedules
// @Produce json
// @Security BearerAuth
// @Param id path string true "Schedule ID"
// @Success 200 {object} response.Envelope
// @Router /schedules/{id}/deactivate [post]
func (h *ScheduleHandler) Deactivate(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	entry, err := h.service.Deactivate(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entry, nil)
}

// Delete godoc
// @Summary Delete schedule entry
// @Tags Schedules
// @Produce json
// @Security BearerAuth
// @Param id path string true "Schedule ID"
// @Success 204
// @Router /schedules/{id} [delete]
func (h *ScheduleHandler) Delete(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), actor); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Check godoc
// @Summary Dry-run conflict check
// @Description Reports faculty and room conflicts without writing.
// @Tags Schedules
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param exclude_id query string false "Entry being edited"
// @Param payload body service.ScheduleRequest true "Candidate entry"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /schedules/check [post]
func (h *ScheduleHandler) Check(c *gin.Context) {
	var req service.ScheduleRequest
	if !bindJSON(c, &req) {
		return
	}
	report, err := h.service.Check(c.Request.Context(), req, c.Query("exclude_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// Bulk godoc
// @Summary Bulk create schedule entries
// @Description Atomic by default; with partial_on_error valid items are kept and failures reported by index.
// @Tags Schedules
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.BulkScheduleRequest true "Bulk payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /schedules/bulk [post]
func (h *ScheduleHandler) Bulk(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req service.BulkScheduleRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.service.BulkCreate(c.Request.Context(), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	status := http.StatusCreated
	if len(result.Failed) > 0 {
		status = http.StatusMultiStatus
	}
	response.JSON(c, status, result, nil)
}

// Grid godoc
// @Summary Timetable grid
// @Description Slot by column layout for one day, or the whole week when day is omitted.
// @Tags Schedules
// @Produce json
// @Security BearerAuth
// @Param semester_id query string true "Semester ID"
// @Param mode query string false "room, faculty or section"
// @Param day query string false "Day 0-6 (Monday = 0) or name"
// @Param column_id query string false "Restrict to one room, faculty or section"
// @Success 200 {object} response.Envelope
// @Router /schedules/grid [get]
func (h *ScheduleHandler) Grid(c *gin.Context) {
	day, err := dayQuery(c, "day")
	if err != nil {
		response.Error(c, err)
		return
	}
	view, err := h.grids.Build(c.Request.Context(), service.GridRequest{
		SemesterID: c.Query("semester_id"),
		Mode:       models.GridMode(c.Query("mode")),
		Day:        day,
		ColumnID:   c.Query("column_id"),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, view.Cached)
	response.JSON(c, http.StatusOK, view, nil)
}
