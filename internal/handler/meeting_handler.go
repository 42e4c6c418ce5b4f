package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lms-api/internal/models"
	"github.com/noah-isme/lms-api/internal/service"
	"github.com/noah-isme/lms-api/pkg/response"
)

type meetingService interface {
	ListForUser(ctx context.Context, actor *models.JWTClaims, from, to time.Time) ([]models.Meeting, error)
	Create(ctx context.Context, actor *models.JWTClaims, req service.CreateMeetingRequest) (*models.Meeting, error)
	Delete(ctx context.Context, actor *models.JWTClaims, id string) error
}

// MeetingHandler exposes the caller's meeting calendar.
type MeetingHandler struct {
	service meetingService
}

// NewMeetingHandler constructs MeetingHandler.
func NewMeetingHandler(svc meetingService) *MeetingHandler {
	return &MeetingHandler{service: svc}
}

// List godoc
// @Summary List meetings
// @Description Stored meetings merged with sessions generated from class schedules
// @Tags Meetings
// @Produce json
// @Param from query string false "Window start"
// @Param to query string false "Window end"
// @Success 200 {object} response.Envelope
// @Router /meetings [get]
func (h *MeetingHandler) List(c *gin.Context) {
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
	meetings, err := h.service.ListForUser(c.Request.Context(), claims, from, to)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, meetings, nil)
}

// Create godoc
// @Summary Create meeting
// @Tags Meetings
// @Accept json
// @Produce json
// @Param payload body service.CreateMeetingRequest true "Meeting"
// @Success 201 {object} response.Envelope
// @Router /meetings [post]
func (h *MeetingHandler) Create(c *gin.Context) {
	claims, ok := actor(c)
	if !ok {
		return
	}
	var req service.CreateMeetingRequest
	if !bindJSON(c, &req) {
		return
	}
	meeting, err := h.service.Create(c.Request.Context(), claims, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, meeting)
}

// Delete godoc
// @Summary Delete meeting
// @Tags Meetings
// @Param id path string true "Meeting ID"
// @Success 204
// @Router /meetings/{id} [delete]
func (h *MeetingHandler) Delete(c *gin.Context) {
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
