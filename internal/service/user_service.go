package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-api/internal/models"
	"github.com/noah-isme/lms-api/internal/repository"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
)

type userRepository interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id string) error
}

// CreateUserRequest represents payload for creating a profile. ID is the
// Supabase Auth uid when the account already exists there.
type CreateUserRequest struct {
	ID        string          `json:"id" validate:"omitempty,uuid"`
	Name      string          `json:"name" validate:"required,max=120"`
	Email     string          `json:"email" validate:"required,email"`
	Role      models.UserRole `json:"role" validate:"required,oneof=ADMIN TEACHER STUDENT"`
	AvatarURL *string         `json:"avatar_url" validate:"omitempty,url"`
}

// UpdateUserRequest payload for updating users.
type UpdateUserRequest struct {
	Name      string          `json:"name" validate:"required,max=120"`
	Email     string          `json:"email" validate:"omitempty,email"`
	Role      models.UserRole `json:"role" validate:"required,oneof=ADMIN TEACHER STUDENT"`
	AvatarURL *string         `json:"avatar_url" validate:"omitempty,url"`
}

// UserService handles user management workflows.
type UserService struct {
	repo      userRepository
	profiles  ProfileInvalidator
	validator *validator.Validate
	logger    *zap.Logger
}

// ProfileInvalidator drops cached auth profiles after a user changes.
type ProfileInvalidator interface {
	InvalidateProfile(ctx context.Context, userID string)
}

// NewUserService creates an instance of UserService.
func NewUserService(repo userRepository, profiles ProfileInvalidator, validate *validator.Validate, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &UserService{repo: repo, profiles: profiles, validator: validate, logger: logger}
}

// List returns users filtered by role and search, ordered by name.
func (s *UserService) List(ctx context.Context, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	filter.SortBy = "name"
	filter.SortOrder = "asc"
	return s.list(ctx, filter)
}

// ListAdmin is List with caller controlled ordering.
func (s *UserService) ListAdmin(ctx context.Context, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	return s.list(ctx, filter)
}

// ListTeachers returns TEACHER profiles.
func (s *UserService) ListTeachers(ctx context.Context, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	role := models.RoleTeacher
	filter.Role = &role
	return s.List(ctx, filter)
}

// ListStudents returns STUDENT profiles.
func (s *UserService) ListStudents(ctx context.Context, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	role := models.RoleStudent
	filter.Role = &role
	return s.List(ctx, filter)
}

func (s *UserService) list(ctx context.Context, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	if filter.Role != nil && !filter.Role.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unknown role filter")
	}
	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list users")
	}
	if users == nil {
		users = []models.User{}
	}
	return users, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns a user by ID.
func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Internal(err, "failed to load user")
	}
	return user, nil
}

// Create adds a new profile.
func (s *UserService) Create(ctx context.Context, req CreateUserRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid create user payload")
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := s.repo.FindByEmail(ctx, email); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "email already exists")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Internal(err, "failed to check email uniqueness")
	}

	user := &models.User{
		ID:        req.ID,
		Name:      strings.TrimSpace(req.Name),
		Email:     email,
		Role:      req.Role,
		AvatarURL: req.AvatarURL,
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "user already exists")
		}
		return nil, appErrors.Internal(err, "failed to create user")
	}

	s.logger.Info("user created", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))
	return user, nil
}

// Update modifies a profile.
func (s *UserService) Update(ctx context.Context, id string, req UpdateUserRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid update user payload")
	}

	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	user.Name = strings.TrimSpace(req.Name)
	user.Role = req.Role
	user.AvatarURL = req.AvatarURL
	if req.Email != "" {
		user.Email = strings.ToLower(strings.TrimSpace(req.Email))
	}

	if err := s.repo.Update(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "email already exists")
		}
		return nil, appErrors.Internal(err, "failed to update user")
	}
	s.invalidate(ctx, id)
	return user, nil
}

// Delete removes a profile. The Supabase Auth account is left untouched.
func (s *UserService) Delete(ctx context.Context, id, actorID string) error {
	if id == actorID {
		return appErrors.Clone(appErrors.ErrValidation, "cannot delete your own account")
	}
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Internal(err, "failed to delete user")
	}
	s.invalidate(ctx, id)
	s.logger.Info("user deleted", zap.String("user_id", id), zap.String("actor_id", actorID))
	return nil
}

func (s *UserService) invalidate(ctx context.Context, id string) {
	if s.profiles != nil {
		s.profiles.InvalidateProfile(ctx, id)
	}
}
