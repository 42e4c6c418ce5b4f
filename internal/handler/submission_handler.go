package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lms-api/internal/models"
	"github.com/noah-isme/lms-api/internal/service"
	"github.com/noah-isme/lms-api/pkg/response"
)

type submissionService interface {
	Submit(ctx context.Context, actor *models.JWTClaims, req service.SubmitAssignmentRequest) (*models.SubmissionDetail, error)
	Grade(ctx context.Context, actor *models.JWTClaims, req service.GradeSubmissionRequest) (*models.SubmissionDetail, error)
	List(ctx context.Context, actor *models.JWTClaims, filter models.SubmissionFilter) ([]models.SubmissionDetail, *models.Pagination, error)
	Get(ctx context.Context, actor *models.JWTClaims, id string) (*models.SubmissionDetail, error)
}

// SubmissionHandler exposes submission and grading endpoints.
type SubmissionHandler struct {
	service submissionService
}

// NewSubmissionHandler constructs SubmissionHandler.
func NewSubmissionHandler(svc submissionService) *SubmissionHandler {
	return &SubmissionHandler{service: svc}
}

// List godoc
// @Summary List submissions
// @Tags Submissions
// @Produce json
// @Param assignment_id query string false "Filter by assignment"
// @Param class_id query string false "Filter by class"
// @Param status query string false "PENDING, SUBMITTED or GRADED"
// @Success 200 {object} response.Envelope
// @Router /submissions [get]
func (h *SubmissionHandler) List(c *gin.Context) {
	claims, ok := actor(c)
	if !ok {
		return
	}
	filter := models.SubmissionFilter{
		AssignmentID: c.Query("assignment_id"),
		ClassID:      c.Query("class_id"),
		Status:       models.SubmissionStatus(strings.ToUpper(c.Query("status"))),
	}
	filter.Page, filter.PageSize = pageParams(c)

	items, pagination, err := h.service.List(c.Request.Context(), claims, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Get submission
// @Tags Submissions
// @Produce json
// @Param id path string true "Submission ID"
// @Success 200 {object} response.Envelope
// @Router /submissions/{id} [get]
func (h *SubmissionHandler) Get(c *gin.Context) {
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

// Submit godoc
// @Summary Submit or resubmit work
// @Description Resubmitting replaces the previous content and clears any grade
// @Tags Submissions
// @Accept json
// @Produce json
// @Param payload body service.SubmitAssignmentRequest true "Submission"
// @Success 200 {object} response.Envelope
// @Router /submissions [post]
func (h *SubmissionHandler) Submit(c *gin.Context) {
	claims, ok := actor(c)
	if !ok {
		return
	}
	var req service.SubmitAssignmentRequest
	if !bindJSON(c, &req) {
		return
	}
	item, err := h.service.Submit(c.Request.Context(), claims, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Grade godoc
// @Summary Grade a submission
// @Tags Submissions
// @Accept json
// @Produce json
// @Param payload body service.GradeSubmissionRequest true "Grade"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /submissions/grade [post]
func (h *SubmissionHandler) Grade(c *gin.Context) {
	claims, ok := actor(c)
	if !ok {
		return
	}
	var req service.GradeSubmissionRequest
	if !bindJSON(c, &req) {
		return
	}
	item, err := h.service.Grade(c.Request.Context(), claims, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}
