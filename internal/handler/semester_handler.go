package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/college-scheduling-api/internal/models"
	"github.com/noah-isme/college-scheduling-api/internal/service"
	"github.com/noah-isme/college-scheduling-api/pkg/response"
)

// SemesterHandler exposes semester endpoints.
type SemesterHandler struct {
	service *service.SemesterService
}

// NewSemesterHandler constructs a semester handler.
func NewSemesterHandler(svc *service.SemesterService) *SemesterHandler {
	return &SemesterHandler{service: svc}
}

// List godoc
// @Summary List semesters
// @Description List semesters with filters
// @Tags Semesters
// @Produce json
// @Security BearerAuth
// @Param academic_year query string false "Filter by academic year"
// @Param term query string false "FIRST, SECOND or SUMMER"
// @Param is_active query bool false "Filter by active flag"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /semesters [get]
func (h *SemesterHandler) List(c *gin.Context) {
	filter := models.SemesterFilter{ListQuery: listQuery(c)}
	filter.AcademicYear = c.Query("academic_year")
	if term := c.Query("term"); term != "" {
		filter.Term = models.SemesterTerm(strings.ToUpper(term))
	}
	filter.IsActive = boolQuery(c, "is_active")

	semesters, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, semesters, pagination)
}

// Get godoc
// @Summary Get semester
// @Tags Semesters
// @Produce json
// @Security BearerAuth
// @Param id path string true "Semester ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /semesters/{id} [get]
func (h *SemesterHandler) Get(c *gin.Context) {
	semester, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, semester, nil)
}

// GetActive godoc
// @Summary Get active semester
// @Tags Semesters
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /semesters/active [get]
func (h *SemesterHandler) GetActive(c *gin.Context) {
	semester, err := h.service.Active(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, semester, nil)
}

// Create godoc
// @Summary Create semester
// @Tags Semesters
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.SemesterRequest true "Semester payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /semesters [post]
func (h *SemesterHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req service.SemesterRequest
	if !bindJSON(c, &req) {
		return
	}
	semester, err := h.service.Create(c.Request.Context(), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, semester)
}

// Update godoc
// @Summary Update semester
// @Tags Semesters
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Semester ID"
// @Param payload body service.SemesterRequest true "Semester payload"
// @Success 200 {object} response.Envelope
// @Router /semesters/{id} [put]
func (h *SemesterHandler) Update(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req service.SemesterRequest
	if !bindJSON(c, &req) {
		return
	}
	semester, err := h.service.Update(c.Request.Context(), c.Param("id"), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, semester, nil)
}

// Activate godoc
// @Summary Activate semester
// @Description Marks the semester active and deactivates every other semester.
// @Tags Semesters
// @Produce json
// @Security BearerAuth
// @Param id path string true "Semester ID"
// @Success 200 {object} response.Envelope
// @Router /semesters/{id}/activate [post]
func (h *SemesterHandler) Activate(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	semester, err := h.service.Activate(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, semester, nil)
}

// Delete godoc
// @Summary Delete semester
// @Tags Semesters
// @Produce json
// @Security BearerAuth
// @Param id path string true "Semester ID"
// @Success 204
// @Failure 409 {object} response.Envelope
// @Router /semesters/{id} [delete]
func (h *SemesterHandler) Delete(c *gin.Context) {
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
