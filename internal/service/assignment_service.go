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
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
	"github.com/noah-isme/lms-api/pkg/storage"
)

type assignmentRepository interface {
	List(ctx context.Context, filter models.AssignmentFilter) ([]models.AssignmentDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.AssignmentDetail, error)
	Create(ctx context.Context, a *models.Assignment) error
	Update(ctx context.Context, a *models.Assignment) error
	Delete(ctx context.Context, id string) error
	ListFiles(ctx context.Context, assignmentID string) ([]models.AssignmentFile, error)
}

type fileLinker interface {
	SignFiles(subject string, files []models.AssignmentFile) []models.AssignmentFile
}

type studentSubmissions interface {
	ListByStudent(ctx context.Context, studentID string) (map[string]models.Submission, error)
	FindByAssignmentAndStudent(ctx context.Context, assignmentID, studentID string) (*models.SubmissionDetail, error)
}

// AssignmentRequest holds the editable fields of an assignment.
type AssignmentRequest struct {
	Title          string                `json:"title" validate:"required,max=200"`
	Description    string                `json:"description" validate:"max=10000"`
	DueDate        time.Time             `json:"due_date" validate:"required"`
	Points         int                   `json:"points" validate:"required,gt=0,lte=10000"`
	AssignmentType models.AssignmentType `json:"assignment_type" validate:"required,oneof=essay exercise quiz recording other"`
}

// CreateAssignmentRequest adds the target class.
type CreateAssignmentRequest struct {
	ClassID string `json:"class_id" validate:"required"`
	AssignmentRequest
}

// AssignmentService manages assignments.
type AssignmentService struct {
	repo        assignmentRepository
	classes     classLookup
	submissions studentSubmissions
	store       storage.FileStore
	links       fileLinker
	cache       *CacheService
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewAssignmentService constructs AssignmentService.
func NewAssignmentService(repo assignmentRepository, classes classLookup, submissions studentSubmissions, store storage.FileStore, links fileLinker, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *AssignmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssignmentService{
		repo:        repo,
		classes:     classes,
		submissions: submissions,
		store:       store,
		links:       links,
		cache:       cache,
		validator:   validate,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// List returns assignments in the actor's classes. Students also receive
// their derived progress.
func (s *AssignmentService) List(ctx context.Context, actor *models.JWTClaims, filter models.AssignmentFilter) ([]models.AssignmentDetail, *models.Pagination, error) {
	switch actor.Role {
	case models.RoleTeacher:
		filter.TeacherID = actor.UserID
		filter.StudentID = ""
	case models.RoleStudent:
		filter.StudentID = actor.UserID
		filter.TeacherID = ""
	}
	items, pagination, err := s.list(ctx, filter)
	if err != nil {
		return nil, nil, err
	}

	if actor.Role == models.RoleStudent && len(items) > 0 {
		subs, err := s.submissions.ListByStudent(ctx, actor.UserID)
		if err != nil {
			return nil, nil, appErrors.Internal(err, "failed to load submissions")
		}
		now := s.now()
		for i := range items {
			var sub *models.Submission
			if row, ok := subs[items[i].ID]; ok {
				sub = &row
			}
			progress := DeriveAssignmentStatus(items[i].Assignment, sub, now)
			items[i].Progress = &progress
		}
	}
	return items, pagination, nil
}

// ListAdmin returns every assignment unscoped.
func (s *AssignmentService) ListAdmin(ctx context.Context, filter models.AssignmentFilter) ([]models.AssignmentDetail, *models.Pagination, error) {
	return s.list(ctx, filter)
}

func (s *AssignmentService) list(ctx context.Context, filter models.AssignmentFilter) ([]models.AssignmentDetail, *models.Pagination, error) {
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list assignments")
	}
	if items == nil {
		items = []models.AssignmentDetail{}
	}
	return items, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns one assignment with its files to a class member.
func (s *AssignmentService) Get(ctx context.Context, actor *models.JWTClaims, id string) (*models.AssignmentDetail, error) {
	item, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireClassMember(ctx, s.classes, actor, item.ClassID); err != nil {
		return nil, err
	}

	files, err := s.repo.ListFiles(ctx, id)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load assignment files")
	}
	if s.links != nil {
		files = s.links.SignFiles(actor.UserID, files)
	}
	item.Files = files

	if actor.Role == models.RoleStudent {
		var sub *models.Submission
		detail, err := s.submissions.FindByAssignmentAndStudent(ctx, id, actor.UserID)
		switch {
		case err == nil:
			sub = &detail.Submission
		case !errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Internal(err, "failed to load submission")
		}
		progress := DeriveAssignmentStatus(item.Assignment, sub, s.now())
		item.Progress = &progress
	}
	return item, nil
}

// Create adds an assignment to a class the actor manages.
func (s *AssignmentService) Create(ctx context.Context, actor *models.JWTClaims, req CreateAssignmentRequest) (*models.AssignmentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid assignment payload")
	}
	class, err := loadClass(ctx, s.classes, req.ClassID)
	if err != nil {
		return nil, err
	}
	if err := requireClassManager(actor, class); err != nil {
		return nil, err
	}

	a := &models.Assignment{
		ClassID:        class.ID,
		TeacherID:      class.TeacherID,
		Title:          strings.TrimSpace(req.Title),
		Description:    req.Description,
		DueDate:        req.DueDate.UTC(),
		Points:         req.Points,
		AssignmentType: req.AssignmentType,
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, appErrors.Internal(err, "failed to create assignment")
	}
	s.cache.InvalidatePattern(ctx, dashboardPattern)
	s.logger.Info("assignment created", zap.String("assignment_id", a.ID), zap.String("class_id", class.ID))
	return &models.AssignmentDetail{Assignment: *a, ClassName: class.Name}, nil
}

// Update edits an assignment of a class the actor manages.
func (s *AssignmentService) Update(ctx context.Context, actor *models.JWTClaims, id string, req AssignmentRequest) (*models.AssignmentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid assignment payload")
	}
	item, err := s.loadManaged(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	item.Title = strings.TrimSpace(req.Title)
	item.Description = req.Description
	item.DueDate = req.DueDate.UTC()
	item.Points = req.Points
	item.AssignmentType = req.AssignmentType
	if err := s.repo.Update(ctx, &item.Assignment); err != nil {
		return nil, appErrors.Internal(err, "failed to update assignment")
	}
	s.cache.InvalidatePattern(ctx, dashboardPattern)
	return item, nil
}

// Delete removes an assignment and its stored files.
func (s *AssignmentService) Delete(ctx context.Context, actor *models.JWTClaims, id string) error {
	if _, err := s.loadManaged(ctx, actor, id); err != nil {
		return err
	}
	files, err := s.repo.ListFiles(ctx, id)
	if err != nil {
		return appErrors.Internal(err, "failed to load assignment files")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Internal(err, "failed to delete assignment")
	}
	if s.store != nil {
		for _, f := range files {
			if err := s.store.Delete(ctx, f.StorageKey); err != nil {
				s.logger.Warn("failed to delete stored file", zap.String("file_id", f.ID), zap.Error(err))
			}
		}
	}
	s.cache.InvalidatePattern(ctx, dashboardPattern)
	s.logger.Info("assignment deleted", zap.String("assignment_id", id), zap.String("actor_id", actor.UserID))
	return nil
}

func (s *AssignmentService) load(ctx context.Context, id string) (*models.AssignmentDetail, error) {
	item, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, appErrors.Internal(err, "failed to load assignment")
	}
	return item, nil
}

func (s *AssignmentService) loadManaged(ctx context.Context, actor *models.JWTClaims, id string) (*models.AssignmentDetail, error) {
	item, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor == nil || (actor.Role != models.RoleAdmin && item.TeacherID != actor.UserID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the class teacher or an admin may change this assignment")
	}
	return item, nil
}
