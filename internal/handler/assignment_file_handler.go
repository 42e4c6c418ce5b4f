package handler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-api/internal/models"
	"github.com/noah-isme/lms-api/internal/service"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
	"github.com/noah-isme/lms-api/pkg/response"
)

type assignmentFileService interface {
	Upload(ctx context.Context, actor *models.JWTClaims, in service.UploadFileInput) (*models.AssignmentFile, error)
	Open(ctx context.Context, fileID, token string) (*models.AssignmentFile, io.ReadCloser, error)
}

// AssignmentFileHandler handles attachment upload and signed download.
type AssignmentFileHandler struct {
	service assignmentFileService
	maxSize int64
	logger  *zap.Logger
}

// NewAssignmentFileHandler constructs AssignmentFileHandler. maxSize bounds
// the multipart body.
func NewAssignmentFileHandler(svc assignmentFileService, maxSize int64, logger *zap.Logger) *AssignmentFileHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssignmentFileHandler{service: svc, maxSize: maxSize, logger: logger}
}

// Upload godoc
// @Summary Upload an assignment attachment
// @Tags AssignmentFiles
// @Accept multipart/form-data
// @Produce json
// @Param assignment_id formData string true "Assignment ID"
// @Param file formData file true "Attachment"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /assignment-files [post]
func (h *AssignmentFileHandler) Upload(c *gin.Context) {
	claims, ok := actor(c)
	if !ok {
		return
	}
	if h.maxSize > 0 {
		// multipart framing adds a little on top of the file itself
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxSize+1<<20)
	}

	header, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "file is required"))
		return
	}
	src, err := header.Open()
	if err != nil {
		response.Error(c, appErrors.Internal(err, "failed to read upload"))
		return
	}
	defer src.Close()

	file, err := h.service.Upload(c.Request.Context(), claims, service.UploadFileInput{
		AssignmentID: c.PostForm("assignment_id"),
		FileName:     header.Filename,
		Size:         header.Size,
		Content:      src,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, file)
}

// Download godoc
// @Summary Download an attachment through a signed link
// @Tags AssignmentFiles
// @Produce octet-stream
// @Param id path string true "File ID"
// @Param token query string true "Signed token"
// @Success 200 {file} file
// @Failure 403 {object} response.Envelope
// @Router /assignment-files/{id}/download [get]
func (h *AssignmentFileHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "download token required"))
		return
	}
	file, rc, err := h.service.Open(c.Request.Context(), c.Param("id"), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer rc.Close()

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.FileName))
	c.Header("Cache-Control", "private, no-store")
	c.Header("X-Content-Type-Options", "nosniff")
	if file.SizeBytes > 0 {
		c.Header("Content-Length", strconv.FormatInt(file.SizeBytes, 10))
	}
	c.Header("Content-Type", file.MimeType)
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, rc); err != nil {
		h.logger.Warn("download interrupted", zap.String("file_id", file.ID), zap.Error(err))
	}
}
