package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lms-api/internal/models"
	"github.com/noah-isme/lms-api/internal/service"
	"github.com/noah-isme/lms-api/pkg/response"
)

type enrollmentService interface {
	ListByClass(ctx context.Context, actor *models.JWTClaims, classID string) ([]models.EnrollmentDetail, error)
	Enroll(ctx context.Context, actor *models.JWTClaims, classID string, req service.EnrollStudentRequest) (*models.Enrollment, error)
	Unenroll(ctx context.Context, actor *models.JWTClaims, classID string, req service.EnrollStudentRequest) error
}

// EnrollmentHandler exposes direct roster management for a class.
type EnrollmentHandler struct {
	enrollments enrollmentService
}

// NewEnrollmentHandler constructs EnrollmentHandler.
func NewEnrollmentHandler(enrollments enrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{enrollments: enrollments}
}

// List godoc
// @Summary List class roster
// @Tags Enrollments
// @Produce json
// @Param id path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{id}/enrollments [get]
func (h *EnrollmentHandler) List(c *gin.Context) {
	claims, ok := actor(c)
	if !ok {
		return
	}
	items, err := h.enrollments.ListByClass(c.Request.Context(), claims, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Enroll godoc
// @Summary Enroll a student directly
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param id path string true "Class ID"
// @Param payload body service.EnrollStudentRequest true "Student"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /classes/{id}/enrollments [post]
func (h *EnrollmentHandler) Enroll(c *gin.Context) {
	claims, ok := actor(c)
	if !ok {
		return
	}
	var req service.EnrollStudentRequest
	if !bindJSON(c, &req) {
		return
	}
	enrollment, err := h.enrollments.Enroll(c.Request.Context(), claims, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, enrollment)
}

// Unenroll godoc
// @Summary Remove a student from a class
// @Tags Enrollments
// @Accept json
// @Param id path string true "Class ID"
// @Param payload body service.EnrollStudentRequest true "Student"
// @Success 204
// @Router /classes/{id}/unenroll [post]
func (h *EnrollmentHandler) Unenroll(c *gin.Context) {
	claims, ok := actor(c)
	if !ok {
		return
	}
	var req service.EnrollStudentRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.enrollments.Unenroll(c.Request.Context(), claims, c.Param("id"), req); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
