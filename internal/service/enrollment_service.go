package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-api/internal/models"
	"github.com/noah-isme/lms-api/internal/repository"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
)

type enrollmentRepository interface {
	ListByClass(ctx context.Context, classID string) ([]models.EnrollmentDetail, error)
	Exists(ctx context.Context, classID, studentID string) (bool, error)
	Enroll(ctx context.Context, enrollment *models.Enrollment) error
	Delete(ctx context.Context, classID, studentID string) error
}

// EnrollStudentRequest names the student to add or remove.
type EnrollStudentRequest struct {
	StudentID string `json:"student_id" validate:"required"`
}

// EnrollmentService manages direct class membership.
type EnrollmentService struct {
	repo      enrollmentRepository
	classes   classLookup
	users     userLookup
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(repo enrollmentRepository, classes classLookup, users userLookup, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{repo: repo, classes: classes, users: users, cache: cache, validator: validate, logger: logger}
}

// ListByClass returns the roster of a class.
func (s *EnrollmentService) ListByClass(ctx context.Context, actor *models.JWTClaims, classID string) ([]models.EnrollmentDetail, error) {
	class, err := loadClass(ctx, s.classes, classID)
	if err != nil {
		return nil, err
	}
	if err := requireClassManager(actor, class); err != nil {
		return nil, err
	}
	items, err := s.repo.ListByClass(ctx, classID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list enrollments")
	}
	if items == nil {
		items = []models.EnrollmentDetail{}
	}
	return items, nil
}

// Enroll adds a student to a class, bypassing the request workflow.
func (s *EnrollmentService) Enroll(ctx context.Context, actor *models.JWTClaims, classID string, req EnrollStudentRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid enrollment payload")
	}
	class, err := loadClass(ctx, s.classes, classID)
	if err != nil {
		return nil, err
	}
	if err := requireClassManager(actor, class); err != nil {
		return nil, err
	}

	student, err := s.users.FindByID(ctx, req.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Internal(err, "failed to load student")
	}
	if student.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrValidation, "only students can be enrolled")
	}

	enrollment := &models.Enrollment{ClassID: classID, StudentID: student.ID}
	if err := s.repo.Enroll(ctx, enrollment); err != nil {
		return nil, mapEnrollError(err)
	}
	s.cache.Invalidate(ctx, dashboardKey(student.ID), dashboardKey(class.TeacherID))
	s.logger.Info("student enrolled", zap.String("class_id", classID), zap.String("student_id", student.ID), zap.String("actor_id", actor.UserID))
	return enrollment, nil
}

// Unenroll removes a student from a class.
func (s *EnrollmentService) Unenroll(ctx context.Context, actor *models.JWTClaims, classID string, req EnrollStudentRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return validationError(err, "invalid unenroll payload")
	}
	class, err := loadClass(ctx, s.classes, classID)
	if err != nil {
		return err
	}
	if err := requireClassManager(actor, class); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, classID, req.StudentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return appErrors.Internal(err, "failed to remove enrollment")
	}
	s.cache.Invalidate(ctx, dashboardKey(req.StudentID), dashboardKey(class.TeacherID))
	s.logger.Info("student unenrolled", zap.String("class_id", classID), zap.String("student_id", req.StudentID), zap.String("actor_id", actor.UserID))
	return nil
}

func mapEnrollError(err error) error {
	switch {
	case errors.Is(err, repository.ErrDuplicate):
		return appErrors.Clone(appErrors.ErrConflict, "student already enrolled")
	case errors.Is(err, repository.ErrClassFull):
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "class is full")
	case errors.Is(err, sql.ErrNoRows):
		return appErrors.Clone(appErrors.ErrNotFound, "class not found")
	default:
		return appErrors.Internal(err, "failed to enroll student")
	}
}
