package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-api/internal/models"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
)

type submissionRepository interface {
	Upsert(ctx context.Context, sub *models.Submission) error
	Grade(ctx context.Context, id string, grade float64, feedback *string, gradedBy string, gradedAt time.Time) error
	FindByID(ctx context.Context, id string) (*models.SubmissionDetail, error)
	List(ctx context.Context, filter models.SubmissionFilter) ([]models.SubmissionDetail, int, error)
}

type assignmentLookup interface {
	FindByID(ctx context.Context, id string) (*models.AssignmentDetail, error)
}

// SubmitAssignmentRequest is a student's work for one assignment.
type SubmitAssignmentRequest struct {
	AssignmentID string  `json:"assignment_id" validate:"required"`
	Content      string  `json:"content" validate:"max=50000"`
	FileURL      *string `json:"file_url" validate:"omitempty,url"`
}

// GradeSubmissionRequest carries a teacher's grade.
type GradeSubmissionRequest struct {
	SubmissionID string   `json:"submission_id" validate:"required"`
	Grade        *float64 `json:"grade" validate:"required"`
	Feedback     *string  `json:"feedback" validate:"omitempty,max=5000"`
}

// SubmissionService handles submitting and grading.
type SubmissionService struct {
	repo        submissionRepository
	assignments assignmentLookup
	enrollments enrollmentChecker
	cache       *CacheService
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewSubmissionService constructs SubmissionService.
func NewSubmissionService(repo submissionRepository, assignments assignmentLookup, enrollments enrollmentChecker, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *SubmissionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubmissionService{
		repo:        repo,
		assignments: assignments,
		enrollments: enrollments,
		cache:       cache,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Submit creates or replaces the caller's submission. Resubmitting clears any
// earlier grade. Late work is accepted and flagged.
func (s *SubmissionService) Submit(ctx context.Context, actor *models.JWTClaims, req SubmitAssignmentRequest) (*models.SubmissionDetail, error) {
	if !actor.HasRole(models.RoleStudent) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only students may submit")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid submission payload")
	}
	content := strings.TrimSpace(req.Content)
	if content == "" && req.FileURL == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "content or file_url is required")
	}

	assignment, err := s.assignments.FindByID(ctx, req.AssignmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, appErrors.Internal(err, "failed to load assignment")
	}
	enrolled, err := s.enrollments.Exists(ctx, assignment.ClassID, actor.UserID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to check enrollment")
	}
	if !enrolled {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not enrolled in this class")
	}

	submittedAt := s.now()
	sub := &models.Submission{
		AssignmentID: assignment.ID,
		StudentID:    actor.UserID,
		Content:      content,
		FileURL:      req.FileURL,
		SubmittedAt:  &submittedAt,
	}
	if err := s.repo.Upsert(ctx, sub); err != nil {
		return nil, appErrors.Internal(err, "failed to save submission")
	}

	detail := &models.SubmissionDetail{
		Submission:      *sub,
		AssignmentTitle: assignment.Title,
		ClassID:         assignment.ClassID,
		TeacherID:       assignment.TeacherID,
		Points:          assignment.Points,
		DueDate:         assignment.DueDate,
		StudentName:     actor.Name,
		IsLate:          IsLateSubmission(assignment.DueDate, sub.SubmittedAt),
	}
	s.metrics.RecordSubmission(detail.IsLate)
	s.cache.Invalidate(ctx, dashboardKey(actor.UserID), dashboardKey(assignment.TeacherID))
	s.logger.Info("assignment submitted",
		zap.String("submission_id", sub.ID),
		zap.String("assignment_id", assignment.ID),
		zap.String("student_id", actor.UserID),
		zap.Bool("late", detail.IsLate),
	)
	return detail, nil
}

// Grade records a grade in [0, points]. Out of range grades are rejected
// before anything is written.
func (s *SubmissionService) Grade(ctx context.Context, actor *models.JWTClaims, req GradeSubmissionRequest) (*models.SubmissionDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid grade payload")
	}
	sub, err := s.load(ctx, req.SubmissionID)
	if err != nil {
		return nil, err
	}
	if actor == nil || (actor.Role != models.RoleAdmin && sub.TeacherID != actor.UserID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the class teacher or an admin may grade")
	}

	grade := *req.Grade
	if math.IsNaN(grade) || grade < 0 || grade > float64(sub.Points) {
		return nil, appErrors.Clone(appErrors.ErrInvalidGrade, fmt.Sprintf("grade must be between 0 and %d", sub.Points))
	}

	gradedAt := s.now()
	if err := s.repo.Grade(ctx, sub.ID, grade, req.Feedback, actor.UserID, gradedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return nil, appErrors.Internal(err, "failed to grade submission")
	}

	sub.Grade = &grade
	sub.Feedback = req.Feedback
	sub.Status = models.SubmissionGraded
	sub.GradedAt = &gradedAt
	sub.GradedBy = &actor.UserID
	sub.UpdatedAt = gradedAt

	s.metrics.RecordGrade()
	s.cache.Invalidate(ctx, dashboardKey(sub.StudentID), dashboardKey(sub.TeacherID))
	s.logger.Info("submission graded", zap.String("submission_id", sub.ID), zap.Float64("grade", grade), zap.String("actor_id", actor.UserID))
	return sub, nil
}

// List returns submissions visible to actor.
func (s *SubmissionService) List(ctx context.Context, actor *models.JWTClaims, filter models.SubmissionFilter) ([]models.SubmissionDetail, *models.Pagination, error) {
	switch actor.Role {
	case models.RoleStudent:
		filter.StudentID = actor.UserID
	case models.RoleTeacher:
		filter.TeacherID = actor.UserID
	}
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list submissions")
	}
	if items == nil {
		items = []models.SubmissionDetail{}
	}
	for i := range items {
		items[i].IsLate = IsLateSubmission(items[i].DueDate, items[i].SubmittedAt)
	}
	return items, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns one submission to its student, the class teacher or an admin.
func (s *SubmissionService) Get(ctx context.Context, actor *models.JWTClaims, id string) (*models.SubmissionDetail, error) {
	sub, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	switch {
	case actor.Role == models.RoleAdmin:
	case actor.UserID == sub.StudentID, actor.UserID == sub.TeacherID:
	default:
		return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot view this submission")
	}
	return sub, nil
}

func (s *SubmissionService) load(ctx context.Context, id string) (*models.SubmissionDetail, error) {
	sub, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return nil, appErrors.Internal(err, "failed to load submission")
	}
	sub.IsLate = IsLateSubmission(sub.DueDate, sub.SubmittedAt)
	return sub, nil
}
