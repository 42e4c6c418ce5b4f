package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/lms-api/internal/dto"
	"github.com/noah-isme/lms-api/internal/models"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
)

const (
	dashboardPrefix  = "dashboard:"
	dashboardPattern = dashboardPrefix + "*"
)

func dashboardKey(userID string) string {
	return dashboardPrefix + userID
}

type dashboardUserStats interface {
	CountByRole(ctx context.Context) (map[models.UserRole]int, error)
}

type dashboardClassStats interface {
	Count(ctx context.Context, teacherID string) (int, error)
	ListForMember(ctx context.Context, userID string) ([]models.Class, error)
}

type dashboardAssignmentStats interface {
	Count(ctx context.Context) (int, error)
	ListByClass(ctx context.Context, classID string) ([]models.Assignment, error)
}

type dashboardRequestStats interface {
	List(ctx context.Context, filter models.EnrollmentRequestFilter) ([]models.EnrollmentRequestDetail, int, error)
}

type dashboardSubmissionStats interface {
	CountUngraded(ctx context.Context, teacherID string) (int, error)
	ListByStudent(ctx context.Context, studentID string) (map[string]models.Submission, error)
}

type upcomingMeetings interface {
	ListForUser(ctx context.Context, actor *models.JWTClaims, from, to time.Time) ([]models.Meeting, error)
}

// DashboardServiceConfig tunes dashboard behaviour.
type DashboardServiceConfig struct {
	CacheTTL         time.Duration
	MeetingsWindow   time.Duration
	UpcomingLimit    int
	DueSoonWithinDay int
}

// DashboardServiceParams groups constructor dependencies.
type DashboardServiceParams struct {
	Users       dashboardUserStats
	Classes     dashboardClassStats
	Assignments dashboardAssignmentStats
	Requests    dashboardRequestStats
	Submissions dashboardSubmissionStats
	Meetings    upcomingMeetings
	Cache       *CacheService
	Metrics     *MetricsService
	Logger      *zap.Logger
	Config      DashboardServiceConfig
}

// DashboardService composes the per-role dashboard and caches it per user.
type DashboardService struct {
	users       dashboardUserStats
	classes     dashboardClassStats
	assignments dashboardAssignmentStats
	requests    dashboardRequestStats
	submissions dashboardSubmissionStats
	meetings    upcomingMeetings
	cache       *CacheService
	metrics     *MetricsService
	logger      *zap.Logger
	now         func() time.Time
	cfg         DashboardServiceConfig
}

// NewDashboardService constructs the dashboard service.
func NewDashboardService(p DashboardServiceParams) *DashboardService {
	cfg := p.Config
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Minute
	}
	if cfg.MeetingsWindow <= 0 {
		cfg.MeetingsWindow = 7 * 24 * time.Hour
	}
	if cfg.UpcomingLimit <= 0 {
		cfg.UpcomingLimit = 5
	}
	if cfg.DueSoonWithinDay <= 0 {
		cfg.DueSoonWithinDay = 7
	}
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{
		users:       p.Users,
		classes:     p.Classes,
		assignments: p.Assignments,
		requests:    p.Requests,
		submissions: p.Submissions,
		meetings:    p.Meetings,
		cache:       p.Cache,
		metrics:     p.Metrics,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
		cfg:         cfg,
	}
}

// Get returns the dashboard for actor and whether it came from cache.
func (s *DashboardService) Get(ctx context.Context, actor *models.JWTClaims) (*dto.DashboardResponse, bool, error) {
	key := dashboardKey(actor.UserID)
	var cached dto.DashboardResponse
	if s.cache.Get(ctx, key, &cached) && cached.Role == actor.Role {
		return &cached, true, nil
	}

	start := time.Now()
	resp := &dto.DashboardResponse{Role: actor.Role, GeneratedAt: s.now()}
	var err error
	switch actor.Role {
	case models.RoleAdmin:
		resp.Admin, err = s.admin(ctx)
	case models.RoleTeacher:
		resp.Teacher, err = s.teacher(ctx, actor)
	case models.RoleStudent:
		resp.Student, err = s.student(ctx, actor)
	default:
		return nil, false, appErrors.Clone(appErrors.ErrForbidden, "unknown role")
	}
	if err != nil {
		return nil, false, err
	}
	s.metrics.ObserveDBQuery("dashboard_"+strings.ToLower(string(actor.Role)), time.Since(start))

	s.cache.Set(ctx, key, resp, s.cfg.CacheTTL)
	return resp, false, nil
}

func (s *DashboardService) admin(ctx context.Context) (*dto.AdminDashboard, error) {
	byRole, err := s.users.CountByRole(ctx)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to count users")
	}
	classes, err := s.classes.Count(ctx, "")
	if err != nil {
		return nil, appErrors.Internal(err, "failed to count classes")
	}
	assignments, err := s.assignments.Count(ctx)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to count assignments")
	}
	pending, err := s.pendingRequests(ctx, "")
	if err != nil {
		return nil, err
	}
	return &dto.AdminDashboard{
		UsersByRole:     byRole,
		Classes:         classes,
		Assignments:     assignments,
		PendingRequests: pending,
		System:          s.metrics.Snapshot(),
	}, nil
}

func (s *DashboardService) teacher(ctx context.Context, actor *models.JWTClaims) (*dto.TeacherDashboard, error) {
	classes, err := s.classes.Count(ctx, actor.UserID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to count classes")
	}
	pending, err := s.pendingRequests(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	ungraded, err := s.submissions.CountUngraded(ctx, actor.UserID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to count ungraded submissions")
	}
	meetings, err := s.upcoming(ctx, actor)
	if err != nil {
		return nil, err
	}
	return &dto.TeacherDashboard{
		Classes:             classes,
		PendingRequests:     pending,
		UngradedSubmissions: ungraded,
		UpcomingMeetings:    meetings,
	}, nil
}

func (s *DashboardService) student(ctx context.Context, actor *models.JWTClaims) (*dto.StudentDashboard, error) {
	classes, err := s.classes.ListForMember(ctx, actor.UserID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list classes")
	}
	subs, err := s.submissions.ListByStudent(ctx, actor.UserID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load submissions")
	}

	now := s.now()
	out := &dto.StudentDashboard{EnrolledClasses: len(classes), DueSoon: []dto.DueSoonAssignment{}}
	for _, class := range classes {
		items, err := s.assignments.ListByClass(ctx, class.ID)
		if err != nil {
			return nil, appErrors.Internal(err, "failed to list assignments")
		}
		for _, a := range items {
			var sub *models.Submission
			if row, ok := subs[a.ID]; ok {
				sub = &row
			}
			progress := DeriveAssignmentStatus(a, sub, now)
			switch progress.Status {
			case models.AssignmentStatusPending:
				out.Assignments.Pending++
				if progress.DaysRemaining <= s.cfg.DueSoonWithinDay {
					out.DueSoon = append(out.DueSoon, dto.DueSoonAssignment{
						ID:            a.ID,
						Title:         a.Title,
						ClassName:     class.Name,
						DueDate:       a.DueDate,
						DaysRemaining: progress.DaysRemaining,
					})
				}
			case models.AssignmentStatusSubmitted:
				out.Assignments.Submitted++
			case models.AssignmentStatusCompleted:
				out.Assignments.Completed++
			case models.AssignmentStatusOverdue:
				out.Assignments.Overdue++
			}
		}
	}
	sort.Slice(out.DueSoon, func(i, j int) bool { return out.DueSoon[i].DueDate.Before(out.DueSoon[j].DueDate) })

	meetings, err := s.upcoming(ctx, actor)
	if err != nil {
		return nil, err
	}
	out.UpcomingMeetings = meetings
	return out, nil
}

func (s *DashboardService) pendingRequests(ctx context.Context, teacherID string) (int, error) {
	_, total, err := s.requests.List(ctx, models.EnrollmentRequestFilter{
		TeacherID: teacherID,
		Status:    models.EnrollmentRequestPending,
		Page:      1,
		PageSize:  1,
	})
	if err != nil {
		return 0, appErrors.Internal(err, "failed to count enrollment requests")
	}
	return total, nil
}

func (s *DashboardService) upcoming(ctx context.Context, actor *models.JWTClaims) ([]models.Meeting, error) {
	now := s.now()
	meetings, err := s.meetings.ListForUser(ctx, actor, now, now.Add(s.cfg.MeetingsWindow))
	if err != nil {
		return nil, err
	}
	if len(meetings) > s.cfg.UpcomingLimit {
		meetings = meetings[:s.cfg.UpcomingLimit]
	}
	if meetings == nil {
		meetings = []models.Meeting{}
	}
	return meetings, nil
}
