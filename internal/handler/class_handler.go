package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lms-api/internal/models"
	"github.com/noah-isme/lms-api/internal/service"
	"github.com/noah-isme/lms-api/pkg/response"
)

type classService interface {
	List(ctx context.Context, actor *models.JWTClaims, filter models.ClassFilter) ([]models.ClassDetail, *models.Pagination, error)
	Get(ctx context.Context, actor *models.JWTClaims, id string) (*models.ClassDetail, error)
	Create(ctx context.Context, actor *models.JWTClaims, req service.ClassRequest) (*models.ClassDetail, error)
	AdminCreate(ctx context.Context, req service.AdminCreateClassRequest) (*models.ClassDetail, error)
	Update(ctx context.Context, actor *models.JWTClaims, id string, req service.ClassRequest) (*models.ClassDetail, error)
	Delete(ctx context.Context, actor *models.JWTClaims, id string) error
}

type classMeetings interface {
	ListClassMeetings(ctx context.Context, actor *models.JWTClaims, classID string, from, to time.Time) ([]models.Meeting, error)
}

type gradebookExporter interface {
	Export(ctx context.Context, actor *models.JWTClaims, classID, format string) (*service.GradebookDocument, error)
}

// ClassHandler exposes class CRUD plus the class scoped meeting and
// gradebook views.
type ClassHandler struct {
	service   classService
	meetings  classMeetings
	gradebook gradebookExporter
}

// NewClassHandler constructs a class handler.
func NewClassHandler(svc classService, meetings classMeetings, gradebook gradebookExporter) *ClassHandler {
	return &ClassHandler{service: svc, meetings: meetings, gradebook: gradebook}
}

// List godoc
// @Summary List classes
// @Description Admins see all classes, teachers the ones they teach and students the ones they attend
// @Tags Classes
// @Produce json
// @Param search query string false "Search keyword"
// @Param tag query string false "Filter by tag"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /classes [get]
func (h *ClassHandler) List(c *gin.Context) {
	claims, ok := actor(c)
	if !ok {
		return
	}
	var filter models.ClassFilter
	filter.Search = strings.TrimSpace(c.Query("search"))
	filter.Tag = c.Query("tag")
	filter.Page, filter.PageSize = pageParams(c)
	filter.SortBy = c.Query("sort_by")
	filter.SortOrder = c.Query("sort_order")

	classes, pagination, err := h.service.List(c.Request.Context(), claims, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, classes, pagination)
}

// Get godoc
// @Summary Get class detail
// @Tags Classes
// @Produce json
// @Param id path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /classes/{id} [get]
func (h *ClassHandler) Get(c *gin.Context) {
	claims, ok := actor(c)
	if !ok {
		return
	}
	class, err := h.service.Get(c.Request.Context(), claims, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, class, nil)
}

// Create godoc
// @Summary Create class
// @Tags Classes
// @Accept json
// @Produce json
// @Param payload body service.ClassRequest true "Class payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /classes [post]
func (h *ClassHandler) Create(c *gin.Context) {
	claims, ok := actor(c)
	if !ok {
		return
	}
	var req service.ClassRequest
	if !bindJSON(c, &req) {
		return
	}
	class, err := h.service.Create(c.Request.Context(), claims, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, class)
}

// AdminCreate godoc
// @Summary Create class for a teacher
// @Tags Classes
// @Accept json
// @Produce json
// @Param payload body service.AdminCreateClassRequest true "Class payload"
// @Success 201 {object} response.Envelope
// @Router /classes/admin-create [post]
func (h *ClassHandler) AdminCreate(c *gin.Context) {
	var req service.AdminCreateClassRequest
	if !bindJSON(c, &req) {
		return
	}
	class, err := h.service.AdminCreate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, class)
}

// Update godoc
// @Summary Update class
// @Tags Classes
// @Accept json
// @Produce json
// @Param id path string true "Class ID"
// @Param payload body service.ClassRequest true "Class payload"
// @Success 200 {object} response.Envelope
// @Router /classes/{id} [put]
func (h *ClassHandler) Update(c *gin.Context) {
	claims, ok := actor(c)
	if !ok {
		return
	}
	var req service.ClassRequest
	if !bindJSON(c, &req) {
		return
	}
	class, err := h.service.Update(c.Request.Context(), claims, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, class, nil)
}

// Delete godoc
// @Summary Delete class
// @Tags Classes
// @Param id path string true "Class ID"
// @Success 204
// @Router /classes/{id} [delete]
func (h *ClassHandler) Delete(c *gin.Context) {
	claims, ok := actor(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), claims, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Meetings godoc
// @Summary List scheduled class meetings
// @Description Expands the class schedule into concrete sessions within the window
// @Tags Classes
// @Produce json
// @Param id path string true "Class ID"
// @Param from query string false "Window start (RFC 3339 or YYYY-MM-DD)"
// @Param to query string false "Window end (RFC 3339 or YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /classes/{id}/meetings [get]
func (h *ClassHandler) Meetings(c *gin.Context) {
	claims, ok := actor(c)
	if !ok {
		return
	}
	from, err := timeQuery(c, "from")
	if err != nil {
		response.Error(c, err)
		return
	}
	to, err := timeQuery(c, "to")
	if err != nil {
		response.Error(c, err)
		return
	}
	meetings, err := h.meetings.ListClassMeetings(c.Request.Context(), claims, c.Param("id"), from, to)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, meetings, nil)
}

// Gradebook godoc
// @Summary Export class gradebook
// @Tags Classes
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Class ID"
// @Param format query string false "csv or pdf"
// @Success 200 {file} file
// @Router /classes/{id}/gradebook [get]
func (h *ClassHandler) Gradebook(c *gin.Context) {
	claims, ok := actor(c)
	if !ok {
		return
	}
	doc, err := h.gradebook.Export(c.Request.Context(), claims, c.Param("id"), c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.Filename))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, doc.ContentType, doc.Body)
}
