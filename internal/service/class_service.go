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
	"github.com/noah-isme/lms-api/internal/schedule"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
)

const dateLayout = "2006-01-02"

type classRepository interface {
	List(ctx context.Context, filter models.ClassFilter) ([]models.ClassDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.ClassDetail, error)
	IsMember(ctx context.Context, classID, userID string) (bool, error)
	Create(ctx context.Context, class *models.Class) error
	Update(ctx context.Context, class *models.Class) error
	Delete(ctx context.Context, id string) error
}

type userLookup interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// ClassRequest is the payload for creating or updating a class.
type ClassRequest struct {
	Name        string   `json:"name" validate:"required,max=200"`
	Description string   `json:"description" validate:"max=5000"`
	Schedule    string   `json:"schedule" validate:"required"`
	StartDate   string   `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate     string   `json:"end_date" validate:"required,datetime=2006-01-02"`
	MaxStudents *int     `json:"max_students" validate:"omitempty,min=1"`
	Tags        []string `json:"tags" validate:"omitempty,dive,max=40"`
}

// AdminCreateClassRequest lets an admin pick the owning teacher.
type AdminCreateClassRequest struct {
	ClassRequest
	TeacherID string `json:"teacher_id" validate:"required"`
}

// ClassService manages classes.
type ClassService struct {
	repo      classRepository
	users     userLookup
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewClassService constructs ClassService.
func NewClassService(repo classRepository, users userLookup, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *ClassService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClassService{repo: repo, users: users, cache: cache, validator: validate, logger: logger}
}

// List returns classes visible to actor: all for admins, owned for teachers,
// enrolled for students.
func (s *ClassService) List(ctx context.Context, actor *models.JWTClaims, filter models.ClassFilter) ([]models.ClassDetail, *models.Pagination, error) {
	switch actor.Role {
	case models.RoleTeacher:
		filter.TeacherID = actor.UserID
		filter.StudentID = ""
	case models.RoleStudent:
		filter.StudentID = actor.UserID
		filter.TeacherID = ""
	}

	classes, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list classes")
	}
	if classes == nil {
		classes = []models.ClassDetail{}
	}
	for i := range classes {
		s.attachSchedule(&classes[i])
	}
	return classes, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns a class the actor may see.
func (s *ClassService) Get(ctx context.Context, actor *models.JWTClaims, id string) (*models.ClassDetail, error) {
	class, err := loadClass(ctx, s.repo, id)
	if err != nil {
		return nil, err
	}
	if err := requireClassMember(ctx, s.repo, actor, id); err != nil {
		return nil, err
	}
	s.attachSchedule(class)
	return class, nil
}

// Create stores a class owned by the calling teacher.
func (s *ClassService) Create(ctx context.Context, actor *models.JWTClaims, req ClassRequest) (*models.ClassDetail, error) {
	class, err := s.buildClass(req)
	if err != nil {
		return nil, err
	}
	class.TeacherID = actor.UserID
	return s.create(ctx, class)
}

// AdminCreate stores a class for the chosen teacher.
func (s *ClassService) AdminCreate(ctx context.Context, req AdminCreateClassRequest) (*models.ClassDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid class payload")
	}
	teacher, err := s.users.FindByID(ctx, req.TeacherID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "teacher not found")
		}
		return nil, appErrors.Internal(err, "failed to load teacher")
	}
	if teacher.Role != models.RoleTeacher {
		return nil, appErrors.Clone(appErrors.ErrValidation, "teacher_id must reference a TEACHER")
	}

	class, err := s.buildClass(req.ClassRequest)
	if err != nil {
		return nil, err
	}
	class.TeacherID = teacher.ID
	return s.create(ctx, class)
}

// Update modifies a class owned by actor, or any class for an admin.
func (s *ClassService) Update(ctx context.Context, actor *models.JWTClaims, id string, req ClassRequest) (*models.ClassDetail, error) {
	existing, err := loadClass(ctx, s.repo, id)
	if err != nil {
		return nil, err
	}
	if err := requireClassManager(actor, existing); err != nil {
		return nil, err
	}

	class, err := s.buildClass(req)
	if err != nil {
		return nil, err
	}
	if class.MaxStudents != nil && *class.MaxStudents < existing.EnrolledCount {
		return nil, appErrors.Clone(appErrors.ErrValidation, "max_students is below the current enrollment")
	}
	class.ID = existing.ID
	class.TeacherID = existing.TeacherID
	class.CreatedAt = existing.CreatedAt
	if err := s.repo.Update(ctx, class); err != nil {
		return nil, appErrors.Internal(err, "failed to update class")
	}
	s.cache.InvalidatePattern(ctx, dashboardPattern)

	updated := &models.ClassDetail{Class: *class, TeacherName: existing.TeacherName, EnrolledCount: existing.EnrolledCount}
	s.attachSchedule(updated)
	return updated, nil
}

// Delete removes a class. Enrollments, requests and assignments cascade.
func (s *ClassService) Delete(ctx context.Context, actor *models.JWTClaims, id string) error {
	class, err := loadClass(ctx, s.repo, id)
	if err != nil {
		return err
	}
	if err := requireClassManager(actor, class); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Internal(err, "failed to delete class")
	}
	s.cache.InvalidatePattern(ctx, dashboardPattern)
	s.logger.Info("class deleted", zap.String("class_id", id), zap.String("actor_id", actor.UserID))
	return nil
}

func (s *ClassService) create(ctx context.Context, class *models.Class) (*models.ClassDetail, error) {
	if err := s.repo.Create(ctx, class); err != nil {
		return nil, appErrors.Internal(err, "failed to create class")
	}
	s.cache.InvalidatePattern(ctx, dashboardPattern)
	s.logger.Info("class created", zap.String("class_id", class.ID), zap.String("teacher_id", class.TeacherID))

	detail := &models.ClassDetail{Class: *class}
	s.attachSchedule(detail)
	return detail, nil
}

// buildClass validates req. The schedule must parse on write; rows stored
// before that rule are read leniently.
func (s *ClassService) buildClass(req ClassRequest) (*models.Class, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid class payload")
	}
	start, err := time.Parse(dateLayout, req.StartDate)
	if err != nil {
		return nil, validationError(err, "invalid start_date")
	}
	end, err := time.Parse(dateLayout, req.EndDate)
	if err != nil {
		return nil, validationError(err, "invalid end_date")
	}
	if end.Before(start) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "start_date must not be after end_date")
	}
	if _, err := schedule.Parse(req.Schedule); err != nil {
		return nil, err
	}

	tags := make([]string, 0, len(req.Tags))
	for _, tag := range req.Tags {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, strings.ToLower(tag))
		}
	}

	return &models.Class{
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Schedule:    strings.TrimSpace(req.Schedule),
		StartDate:   start,
		EndDate:     end,
		MaxStudents: req.MaxStudents,
		Tags:        tags,
	}, nil
}

func (s *ClassService) attachSchedule(class *models.ClassDetail) {
	parsed, err := schedule.Parse(class.Schedule)
	if err != nil {
		s.logger.Debug("class schedule not parseable", zap.String("class_id", class.ID), zap.Error(err))
		return
	}
	class.ParsedSchedule = &parsed
}
