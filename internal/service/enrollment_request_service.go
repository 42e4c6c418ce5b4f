package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-api/internal/models"
	"github.com/noah-isme/lms-api/internal/repository"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
)

type enrollmentRequestRepository interface {
	FindByID(ctx context.Context, id string) (*models.EnrollmentRequestDetail, error)
	HasOpen(ctx context.Context, classID, studentID string) (bool, error)
	List(ctx context.Context, filter models.EnrollmentRequestFilter) ([]models.EnrollmentRequestDetail, int, error)
	Create(ctx context.Context, req *models.EnrollmentRequest) error
	Approve(ctx context.Context, req *models.EnrollmentRequest, decidedBy string, decidedAt time.Time) error
	Reject(ctx context.Context, id, reason, decidedBy string, decidedAt time.Time) error
}

type enrollmentChecker interface {
	Exists(ctx context.Context, classID, studentID string) (bool, error)
}

type enrollmentNotifier interface {
	EnrollmentDecided(ctx context.Context, req models.EnrollmentRequestDetail)
}

// CreateEnrollmentRequest is a student's request to join a class.
type CreateEnrollmentRequest struct {
	ClassID string `json:"class_id" validate:"required"`
	Message string `json:"message" validate:"max=1000"`
}

// RejectEnrollmentRequest carries the optional reason shown to the student.
type RejectEnrollmentRequest struct {
	Reason string `json:"reason" validate:"max=1000"`
}

// EnrollmentRequestService runs the pending → approved/rejected workflow.
type EnrollmentRequestService struct {
	repo        enrollmentRequestRepository
	classes     classLookup
	enrollments enrollmentChecker
	notifier    enrollmentNotifier
	cache       *CacheService
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewEnrollmentRequestService constructs the workflow service.
func NewEnrollmentRequestService(
	repo enrollmentRequestRepository,
	classes classLookup,
	enrollments enrollmentChecker,
	notifier enrollmentNotifier,
	cache *CacheService,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
) *EnrollmentRequestService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentRequestService{
		repo:        repo,
		classes:     classes,
		enrollments: enrollments,
		notifier:    notifier,
		cache:       cache,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Create files a pending request for the calling student.
func (s *EnrollmentRequestService) Create(ctx context.Context, actor *models.JWTClaims, req CreateEnrollmentRequest) (*models.EnrollmentRequest, error) {
	if !actor.HasRole(models.RoleStudent) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only students may request enrollment")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid enrollment request payload")
	}
	class, err := loadClass(ctx, s.classes, req.ClassID)
	if err != nil {
		return nil, err
	}

	enrolled, err := s.enrollments.Exists(ctx, class.ID, actor.UserID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to check enrollment")
	}
	if enrolled {
		return nil, appErrors.Clone(appErrors.ErrConflict, "already enrolled in this class")
	}
	open, err := s.repo.HasOpen(ctx, class.ID, actor.UserID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to check existing requests")
	}
	if open {
		return nil, appErrors.Clone(appErrors.ErrDuplicateRequest, "")
	}

	request := &models.EnrollmentRequest{
		ClassID:   class.ID,
		StudentID: actor.UserID,
		Message:   strings.TrimSpace(req.Message),
	}
	if err := s.repo.Create(ctx, request); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrDuplicateRequest, "")
		}
		return nil, appErrors.Internal(err, "failed to create enrollment request")
	}

	s.metrics.RecordEnrollmentAction("created")
	s.cache.Invalidate(ctx, dashboardKey(class.TeacherID))
	s.logger.Info("enrollment requested", zap.String("request_id", request.ID), zap.String("class_id", class.ID), zap.String("student_id", actor.UserID))
	return request, nil
}

// Approve accepts a pending request and enrolls the student atomically.
func (s *EnrollmentRequestService) Approve(ctx context.Context, actor *models.JWTClaims, id string) (*models.EnrollmentRequestDetail, error) {
	req, err := s.loadDecidable(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	class, err := loadClass(ctx, s.classes, req.ClassID)
	if err != nil {
		return nil, err
	}
	if !class.HasCapacity() {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "class is full")
	}

	decidedAt := s.now()
	if err := s.repo.Approve(ctx, &req.EnrollmentRequest, actor.UserID, decidedAt); err != nil {
		switch {
		case errors.Is(err, repository.ErrStateChanged):
			return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "request is no longer pending")
		case errors.Is(err, repository.ErrClassFull):
			return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "class is full")
		case errors.Is(err, repository.ErrDuplicate):
			return nil, appErrors.Clone(appErrors.ErrConflict, "student already enrolled")
		}
		return nil, appErrors.Internal(err, "failed to approve enrollment request")
	}

	s.markDecided(req, models.EnrollmentRequestApproved, nil, actor.UserID, decidedAt)
	s.afterDecision(ctx, req)
	return req, nil
}

// Reject closes a pending request with an optional reason.
func (s *EnrollmentRequestService) Reject(ctx context.Context, actor *models.JWTClaims, id string, body RejectEnrollmentRequest) (*models.EnrollmentRequestDetail, error) {
	if err := s.validator.Struct(body); err != nil {
		return nil, validationError(err, "invalid rejection payload")
	}
	req, err := s.loadDecidable(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	reason := strings.TrimSpace(body.Reason)
	decidedAt := s.now()
	if err := s.repo.Reject(ctx, id, reason, actor.UserID, decidedAt); err != nil {
		if errors.Is(err, repository.ErrStateChanged) {
			return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "request is no longer pending")
		}
		return nil, appErrors.Internal(err, "failed to reject enrollment request")
	}

	var stored *string
	if reason != "" {
		stored = &reason
	}
	s.markDecided(req, models.EnrollmentRequestRejected, stored, actor.UserID, decidedAt)
	s.afterDecision(ctx, req)
	return req, nil
}

// List returns the requests visible to actor.
func (s *EnrollmentRequestService) List(ctx context.Context, actor *models.JWTClaims, filter models.EnrollmentRequestFilter) ([]models.EnrollmentRequestDetail, *models.Pagination, error) {
	switch actor.Role {
	case models.RoleTeacher:
		filter.TeacherID = actor.UserID
	case models.RoleStudent:
		filter.StudentID = actor.UserID
	}
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list enrollment requests")
	}
	if items == nil {
		items = []models.EnrollmentRequestDetail{}
	}
	return items, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// loadDecidable enforces the class teacher rule and the pending state.
func (s *EnrollmentRequestService) loadDecidable(ctx context.Context, actor *models.JWTClaims, id string) (*models.EnrollmentRequestDetail, error) {
	req, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment request not found")
		}
		return nil, appErrors.Internal(err, "failed to load enrollment request")
	}
	if actor == nil || req.TeacherID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrPermission, "")
	}
	if req.Status != models.EnrollmentRequestPending {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "request already "+string(req.Status))
	}
	return req, nil
}

func (s *EnrollmentRequestService) markDecided(req *models.EnrollmentRequestDetail, status models.EnrollmentRequestStatus, reason *string, actorID string, at time.Time) {
	req.Status = status
	req.RejectionReason = reason
	req.DecidedBy = &actorID
	req.DecidedAt = &at
	req.UpdatedAt = at
}

func (s *EnrollmentRequestService) afterDecision(ctx context.Context, req *models.EnrollmentRequestDetail) {
	s.metrics.RecordEnrollmentAction(string(req.Status))
	s.cache.Invalidate(ctx, dashboardKey(req.StudentID), dashboardKey(req.TeacherID))
	s.logger.Info("enrollment request decided",
		zap.String("request_id", req.ID),
		zap.String("status", string(req.Status)),
		zap.String("actor_id", *req.DecidedBy),
	)
	if s.notifier != nil {
		s.notifier.EnrollmentDecided(ctx, *req)
	}
}
