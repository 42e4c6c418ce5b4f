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

type enrollmentRequestService interface {
	List(ctx context.Context, actor *models.JWTClaims, filter models.EnrollmentRequestFilter) ([]models.EnrollmentRequestDetail, *models.Pagination, error)
	Create(ctx context.Context, actor *models.JWTClaims, req service.CreateEnrollmentRequest) (*models.EnrollmentRequest, error)
	Approve(ctx context.Context, actor *models.JWTClaims, id string) (*models.EnrollmentRequestDetail, error)
	Reject(ctx context.Context, actor *models.JWTClaims, id string, body service.RejectEnrollmentRequest) (*models.EnrollmentRequestDetail, error)
}

// EnrollmentRequestHandler exposes the student enrollment request workflow.
type EnrollmentRequestHandler struct {
	service enrollmentRequestService
}

// NewEnrollmentRequestHandler constructs EnrollmentRequestHandler.
func NewEnrollmentRequestHandler(svc enrollmentRequestService) *EnrollmentRequestHandler {
	return &EnrollmentRequestHandler{service: svc}
}

// List godoc
// @Summary List enrollment requests
// @Description Students see their own requests, teachers those for their classes and admins all of them
// @Tags EnrollmentRequests
// @Produce json
// @Param class_id query string false "Filter by class"
// @Param status query string false "pending, approved or rejected"
// @Success 200 {object} response.Envelope
// @Router /enrollment-requests [get]
func (h *EnrollmentRequestHandler) List(c *gin.Context) {
	claims, ok := actor(c)
	if !ok {
		return
	}
	filter := models.EnrollmentRequestFilter{
		ClassID: c.Query("class_id"),
		Status:  models.EnrollmentRequestStatus(strings.ToLower(c.Query("status"))),
	}
	filter.Page, filter.PageSize = pageParams(c)

	items, pagination, err := h.service.List(c.Request.Context(), claims, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Create godoc
// @Summary Request enrollment in a class
// @Tags EnrollmentRequests
// @Accept json
// @Produce json
// @Param payload body service.CreateEnrollmentRequest true "Request"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /enrollment-requests [post]
func (h *EnrollmentRequestHandler) Create(c *gin.Context) {
	claims, ok := actor(c)
	if !ok {
		return
	}
	var req service.CreateEnrollmentRequest
	if !bindJSON(c, &req) {
		return
	}
	created, err := h.service.Create(c.Request.Context(), claims, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, created)
}

// Approve godoc
// @Summary Approve an enrollment request
// @Tags EnrollmentRequests
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /enrollment-requests/{id}/approve [post]
func (h *EnrollmentRequestHandler) Approve(c *gin.Context) {
	claims, ok := actor(c)
	if !ok {
		return
	}
	decided, err := h.service.Approve(c.Request.Context(), claims, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, decided, nil)
}

// Reject godoc
// @Summary Reject an enrollment request
// @Tags EnrollmentRequests
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body service.RejectEnrollmentRequest false "Reason"
// @Success 200 {object} response.Envelope
// @Router /enrollment-requests/{id}/reject [post]
func (h *EnrollmentRequestHandler) Reject(c *gin.Context) {
	claims, ok := actor(c)
	if !ok {
		return
	}
	var body service.RejectEnrollmentRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, &body) {
		return
	}
	decided, err := h.service.Reject(c.Request.Context(), claims, c.Param("id"), body)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, decided, nil)
}
