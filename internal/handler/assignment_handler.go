package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lms-api/internal/models"
	"github.com/noah-isme/lms-api/internal/service"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
	"github.com/noah-isme/lms-api/pkg/response"
)

type assignmentService interface {
	List(ctx context.Context, actor *models.JWTClaims, filter models.AssignmentFilter) ([]models.AssignmentDetail, *models.Pagination, error)
	ListAdmin(ctx context.Context, filter models.AssignmentFilter) ([]models.AssignmentDetail, *models.Pagination, error)
	Get(ctx context.Context, actor *models.JWTClaims, id string) (*models.AssignmentDetail, error)
	Create(ctx context.Context, actor *models.JWTClaims, req service.CreateAssignmentRequest) (*models.AssignmentDetail, error)
	Update(ctx context.Context, actor *models.JWTClaims, id string, req service.AssignmentRequest) (*models.AssignmentDetail, error)
	Delete(ctx context.Context, actor *models.JWTClaims, id string) error
}

// AssignmentHandler exposes assignment endpoints.
type AssignmentHandler struct {
	service assignmentService
}

// NewAssignmentHandler constructs AssignmentHandler.
func NewAssignmentHandler(svc assignmentService) *AssignmentHandler {
	return &AssignmentHandler{service: svc}
}

func assignmentFilter(c *gin.Context) models.AssignmentFilter {
	filter := models.AssignmentFilter{
		ClassID:   c.Query("class_id"),
		Search:    strings.TrimSpace(c.Query("search")),
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}
	filter.Page, filter.PageSize = pageParams(c)
	return filter
}

// List godoc
// @Summary List assignments
// @Description Scoped to the caller's classes. Students also receive their derived status.
// @Tags Assignments
// @Produce json
// @Param class_id query string false "Filter by class"
// @Success 200 {object} response.Envelope
// @Router /assignments [get]
func (h *AssignmentHandler) List(c *gin.Context) {
	claims, ok := actor(c)
	if !ok {
		return
	}
	items, pagination, err := h.service.List(c.Request.Context(), claims, assignmentFilter(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// ListAdmin godoc
// @Summary List every assignment
// @Tags Assignments
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /assignments/admin [get]
func (h *AssignmentHandler) ListAdmin(c *gin.Context) {
	items, pagination, err := h.service.ListAdmin(c.Request.Context(), assignmentFilter(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Get assignment
// @Tags Assignments
// @Produce json
// @Param id path string true "Assignment ID"
// @Success 200 {object} response.Envelope
// @Router /assignments/{id} [get]
func (h *AssignmentHandler) Get(c *gin.Context) {
	claims, ok := actor(c)
	if !ok {
		return
	}
	item, err := h.service.Get(c.Request.Context(), claims, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Create godoc
// @Summary Create assignment
// @Tags Assignments
// @Accept json
// @Produce json
// @Param payload body service.CreateAssignmentRequest true "Assignment"
// @Success 201 {object} response.Envelope
// @Router /assignments [post]
// @Router /assignments/admin [post]
func (h *AssignmentHandler) Create(c *gin.Context) {
	claims, ok := actor(c)
	if !ok {
		return
	}
	var req service.CreateAssignmentRequest
	if !bindJSON(c, &req) {
		return
	}
	item, err := h.service.Create(c.Request.Context(), claims, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, item)
}

// Update godoc
// @Summary Update assignment
// @Tags Assignments
// @Accept json
// @Produce json
// @Param id path string true "Assignment ID"
// @Param payload body service.AssignmentRequest true "Assignment"
// @Success 200 {object} response.Envelope
// @Router /assignments/{id} [put]
func (h *AssignmentHandler) Update(c *gin.Context) {
	claims, ok := actor(c)
	if !ok {
		return
	}
	var req service.AssignmentRequest
	if !bindJSON(c, &req) {
		return
	}
	item, err := h.service.Update(c.Request.Context(), claims, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Delete godoc
// @Summary Delete assignment
// @Tags Assignments
// @Param id path string true "Assignment ID"
// @Success 204
// @Router /assignments/{id} [delete]
func (h *AssignmentHandler) Delete(c *gin.Context) {
	h.delete(c, c.Param("id"))
}

// AdminDelete godoc
// @Summary Delete any assignment
// @Tags Assignments
// @Param id query string true "Assignment ID"
// @Success 204
// @Router /assignments/admin [delete]
func (h *AssignmentHandler) AdminDelete(c *gin.Context) {
	id := c.Query("id")
	if id == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "id is required"))
		return
	}
	h.delete(c, id)
}

func (h *AssignmentHandler) delete(c *gin.Context, id string) {
	claims, ok := actor(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), claims, id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
