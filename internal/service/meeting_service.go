package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-api/internal/models"
	"github.com/noah-isme/lms-api/internal/schedule"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
)

type meetingRepository interface {
	ListForUser(ctx context.Context, filter models.MeetingFilter) ([]models.Meeting, error)
	FindByID(ctx context.Context, id string) (*models.Meeting, error)
	Create(ctx context.Context, m *models.Meeting) error
	Delete(ctx context.Context, id string) error
}

type memberClasses interface {
	classLookup
	ListForMember(ctx context.Context, userID string) ([]models.Class, error)
}

// CreateMeetingRequest describes a standalone meeting.
type CreateMeetingRequest struct {
	Title          string    `json:"title" validate:"required,max=200"`
	Description    string    `json:"description" validate:"max=5000"`
	ClassID        *string   `json:"class_id"`
	ParticipantIDs []string  `json:"participant_ids" validate:"omitempty,dive,required"`
	StartTime      time.Time `json:"start_time" validate:"required"`
	EndTime        time.Time `json:"end_time" validate:"required"`
	MeetingURL     *string   `json:"meeting_url" validate:"omitempty,url"`
}

// MeetingService merges stored meetings with occurrences derived from class
// schedules.
type MeetingService struct {
	repo      meetingRepository
	classes   memberClasses
	loc       *time.Location
	lookahead time.Duration
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewMeetingService constructs MeetingService. Synthetic meetings are placed
// in loc and listed lookahead ahead when no window is given.
func NewMeetingService(repo meetingRepository, classes memberClasses, loc *time.Location, lookahead time.Duration, validate *validator.Validate, logger *zap.Logger) *MeetingService {
	if loc == nil {
		loc = time.UTC
	}
	if lookahead <= 0 {
		lookahead = 30 * 24 * time.Hour
	}
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MeetingService{
		repo:      repo,
		classes:   classes,
		loc:       loc,
		lookahead: lookahead,
		validator: validate,
		logger:    logger,
		now:       time.Now,
	}
}

// ListClassMeetings expands the schedule of one class within [from, to].
func (s *MeetingService) ListClassMeetings(ctx context.Context, actor *models.JWTClaims, classID string, from, to time.Time) ([]models.Meeting, error) {
	class, err := loadClass(ctx, s.classes, classID)
	if err != nil {
		return nil, err
	}
	if err := requireClassMember(ctx, s.classes, actor, classID); err != nil {
		return nil, err
	}
	from, to, err = s.window(from, to)
	if err != nil {
		return nil, err
	}
	return s.synthesize(class.Class, from, to), nil
}

// ListForUser returns the stored meetings the user hosts or attends merged
// with the synthetic meetings of their classes, ordered by start.
func (s *MeetingService) ListForUser(ctx context.Context, actor *models.JWTClaims, from, to time.Time) ([]models.Meeting, error) {
	from, to, err := s.window(from, to)
	if err != nil {
		return nil, err
	}

	stored, err := s.repo.ListForUser(ctx, models.MeetingFilter{UserID: actor.UserID, From: from, To: to})
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list meetings")
	}
	classes, err := s.classes.ListForMember(ctx, actor.UserID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list classes")
	}

	out := make([]models.Meeting, 0, len(stored))
	out = append(out, stored...)
	for _, class := range classes {
		out = append(out, s.synthesize(class, from, to)...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartTime.Before(out[j].StartTime)
	})
	return out, nil
}

// Create stores a standalone meeting hosted by actor.
func (s *MeetingService) Create(ctx context.Context, actor *models.JWTClaims, req CreateMeetingRequest) (*models.Meeting, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid meeting payload")
	}
	if !req.EndTime.After(req.StartTime) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end_time must be after start_time")
	}
	if req.ClassID != nil && *req.ClassID != "" {
		class, err := loadClass(ctx, s.classes, *req.ClassID)
		if err != nil {
			return nil, err
		}
		if err := requireClassManager(actor, class); err != nil {
			return nil, err
		}
	} else {
		req.ClassID = nil
	}

	seen := make(map[string]struct{}, len(req.ParticipantIDs))
	participants := make([]string, 0, len(req.ParticipantIDs))
	for _, id := range req.ParticipantIDs {
		if _, dup := seen[id]; dup || id == actor.UserID {
			continue
		}
		seen[id] = struct{}{}
		participants = append(participants, id)
	}

	m := &models.Meeting{
		Title:          strings.TrimSpace(req.Title),
		Description:    req.Description,
		HostID:         actor.UserID,
		ClassID:        req.ClassID,
		ParticipantIDs: participants,
		StartTime:      req.StartTime.UTC(),
		EndTime:        req.EndTime.UTC(),
		MeetingURL:     req.MeetingURL,
	}
	if err := s.repo.Create(ctx, m); err != nil {
		return nil, appErrors.Internal(err, "failed to create meeting")
	}
	s.logger.Info("meeting created", zap.String("meeting_id", m.ID), zap.String("host_id", m.HostID))
	return m, nil
}

// Delete removes a stored meeting. Only its host or an admin may do so.
func (s *MeetingService) Delete(ctx context.Context, actor *models.JWTClaims, id string) error {
	if strings.Contains(id, ":") {
		return appErrors.Clone(appErrors.ErrValidation, "scheduled class meetings cannot be deleted")
	}
	m, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "meeting not found")
		}
		return appErrors.Internal(err, "failed to load meeting")
	}
	if actor.Role != models.RoleAdmin && m.HostID != actor.UserID {
		return appErrors.Clone(appErrors.ErrForbidden, "only the host or an admin may delete this meeting")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Internal(err, "failed to delete meeting")
	}
	return nil
}

func (s *MeetingService) window(from, to time.Time) (time.Time, time.Time, error) {
	if from.IsZero() {
		from = s.now()
	}
	if to.IsZero() {
		to = from.Add(s.lookahead)
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "to must not be before from")
	}
	return from, to, nil
}

// synthesize returns the class occurrences overlapping [from, to]. The class
// date range bounds the scan, clipped to the window's calendar dates.
func (s *MeetingService) synthesize(class models.Class, from, to time.Time) []models.Meeting {
	parsed, err := schedule.Parse(class.Schedule)
	if err != nil {
		s.logger.Warn("skipping class with unparseable schedule", zap.String("class_id", class.ID), zap.Error(err))
		return nil
	}

	lo := calendarDate(class.StartDate)
	if d := calendarDate(from.In(s.loc)); d.After(lo) {
		lo = d
	}
	hi := calendarDate(class.EndDate)
	if d := calendarDate(to.In(s.loc)); d.Before(hi) {
		hi = d
	}

	var out []models.Meeting
	for _, slot := range parsed.Slots(lo, hi, s.loc) {
		if !slot.End.After(from) || slot.Start.After(to) {
			continue
		}
		classID := class.ID
		out = append(out, models.Meeting{
			ID:          fmt.Sprintf("%s:%d", class.ID, slot.Start.Unix()),
			Title:       class.Name,
			Description: class.Description,
			HostID:      class.TeacherID,
			ClassID:     &classID,
			StartTime:   slot.Start,
			EndTime:     slot.End,
			Synthetic:   true,
		})
	}
	return out
}

func calendarDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
