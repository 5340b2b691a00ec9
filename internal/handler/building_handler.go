package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/college-scheduling-api/internal/models"
	"github.com/noah-isme/college-scheduling-api/internal/service"
	"github.com/noah-isme/college-scheduling-api/pkg/response"
)

// BuildingHandler exposes campus building endpoints.
type BuildingHandler struct {
	service *service.BuildingService
}

// NewBuildingHandler constructs a building handler.
func NewBuildingHandler(svc *service.BuildingService) *BuildingHandler {
	return &BuildingHandler{service: svc}
}

// List godoc
// @Summary List buildings
// @Tags Buildings
// @Produce json
// @Security BearerAuth
// @Param search query string false "Search code or name"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Param sort query string false "Sort field"
// @Param order query string false "asc or desc"
// @Success 200 {object} response.Envelope
// @Router /buildings [get]
func (h *BuildingHandler) List(c *gin.Context) {
	filter := models.BuildingFilter{ListQuery: listQuery(c)}
	items, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Get campus building
// @Tags Buildings
// @Produce json
// @Security BearerAuth
// @Param id path string true "Building ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /buildings/{id} [get]
func (h *BuildingHandler) Get(c *gin.Context) {
	item, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Create godoc
// @Summary Create campus building
// @Tags Buildings
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.BuildingRequest true "Building payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /buildings [post]
func (h *BuildingHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req service.BuildingRequest
	if !bindJSON(c, &req) {
		return
	}
	item, err := h.service.Create(c.Request.Context(), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, item)
}

// Update godoc
// @Summary Update campus building
// @Tags Buildings
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Building ID"
// @Param payload body service.BuildingRequest true "Building payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /buildings/{id} [put]
func (h *BuildingHandler) Update(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req service.BuildingRequest
	if !bindJSON(c, &req) {
		return
	}
	item, err := h.service.Update(c.Request.Context(), c.Param("id"), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Delete godoc
// @Summary Delete campus building
// @Description Fails with 409 while other records still reference it.
// @Tags Buildings
// @Produce json
// @Security BearerAuth
// @Param id path string true "Building ID"
// @Success 204
// @Failure 409 {object} response.Envelope
// @Router /buildings/{id} [delete]
func (h *BuildingHandler) Delete(c *gin.Context) {
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
