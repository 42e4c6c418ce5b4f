package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-api/internal/models"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
)

type memoryCacheRepo struct {
	items map[string][]byte
	sets  int
}

func newMemoryCacheRepo() *memoryCacheRepo {
	return &memoryCacheRepo{items: map[string][]byte{}}
}

func (m *memoryCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := m.items[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.items[key] = raw
	m.sets++
	return nil
}

func (m *memoryCacheRepo) Delete(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.items, k)
	}
	return nil
}

func (m *memoryCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	m.items = map[string][]byte{}
	return nil
}

type dashboardStats struct {
	byRole      map[models.UserRole]int
	classCount  map[string]int
	classes     []models.Class
	assignments map[string][]models.Assignment
	pending     int
	ungraded    int
	subs        map[string]models.Submission
	calls       int
	err         error
}

func (d *dashboardStats) CountByRole(ctx context.Context) (map[models.UserRole]int, error) {
	d.calls++
	return d.byRole, d.err
}

func (d *dashboardStats) Count(ctx context.Context, teacherID string) (int, error) {
	return d.classCount[teacherID], nil
}

func (d *dashboardStats) ListForMember(ctx context.Context, userID string) ([]models.Class, error) {
	return d.classes, nil
}

type dashboardAssignments struct{ *dashboardStats }

func (d dashboardAssignments) Count(ctx context.Context) (int, error) {
	total := 0
	for _, items := range d.assignments {
		total += len(items)
	}
	return total, nil
}

func (d dashboardAssignments) ListByClass(ctx context.Context, classID string) ([]models.Assignment, error) {
	return d.assignments[classID], nil
}

func (d *dashboardStats) List(ctx context.Context, filter models.EnrollmentRequestFilter) ([]models.EnrollmentRequestDetail, int, error) {
	return nil, d.pending, nil
}

func (d *dashboardStats) CountUngraded(ctx context.Context, teacherID string) (int, error) {
	return d.ungraded, nil
}

func (d *dashboardStats) ListByStudent(ctx context.Context, studentID string) (map[string]models.Submission, error) {
	return d.subs, nil
}

type staticMeetings []models.Meeting

func (m staticMeetings) ListForUser(ctx context.Context, actor *models.JWTClaims, from, to time.Time) ([]models.Meeting, error) {
	return m, nil
}

func newDashboardFixture(stats *dashboardStats, meetings staticMeetings, cache *CacheService) *DashboardService {
	svc := NewDashboardService(DashboardServiceParams{
		Users:       stats,
		Classes:     stats,
		Assignments: dashboardAssignments{stats},
		Requests:    stats,
		Submissions: stats,
		Meetings:    meetings,
		Cache:       cache,
		Config:      DashboardServiceConfig{UpcomingLimit: 2},
	})
	svc.now = func() time.Time { return time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC) }
	return svc
}

func TestDashboardServiceAdminComposesAndCaches(t *testing.T) {
	stats := &dashboardStats{
		byRole:      map[models.UserRole]int{models.RoleAdmin: 1, models.RoleTeacher: 2, models.RoleStudent: 10},
		classCount:  map[string]int{"": 4},
		assignments: map[string][]models.Assignment{"c1": {{ID: "a1"}, {ID: "a2"}}},
		pending:     3,
	}
	repo := newMemoryCacheRepo()
	svc := newDashboardFixture(stats, nil, NewCacheService(repo, nil, time.Minute, nil, true))

	first, hit, err := svc.Get(context.Background(), adminActor)
	require.NoError(t, err)
	assert.False(t, hit)
	require.NotNil(t, first.Admin)
	assert.Nil(t, first.Teacher)
	assert.Equal(t, 10, first.Admin.UsersByRole[models.RoleStudent])
	assert.Equal(t, 4, first.Admin.Classes)
	assert.Equal(t, 2, first.Admin.Assignments)
	assert.Equal(t, 3, first.Admin.PendingRequests)

	second, hit, err := svc.Get(context.Background(), adminActor)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, first.Admin.Classes, second.Admin.Classes)
	assert.Equal(t, 1, stats.calls)
	assert.Equal(t, 1, repo.sets)
}

func TestDashboardServiceTeacherSummary(t *testing.T) {
	stats := &dashboardStats{classCount: map[string]int{"teacher-1": 2}, pending: 1, ungraded: 5}
	meetings := staticMeetings{{ID: "m1"}, {ID: "m2"}, {ID: "m3"}}
	svc := newDashboardFixture(stats, meetings, nil)

	resp, _, err := svc.Get(context.Background(), teacherActor)
	require.NoError(t, err)
	require.NotNil(t, resp.Teacher)
	assert.Equal(t, 2, resp.Teacher.Classes)
	assert.Equal(t, 1, resp.Teacher.PendingRequests)
	assert.Equal(t, 5, resp.Teacher.UngradedSubmissions)
	assert.Len(t, resp.Teacher.UpcomingMeetings, 2)
}

func TestDashboardServiceStudentBuckets(t *testing.T) {
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	submittedAt := now.Add(-time.Hour)
	stats := &dashboardStats{
		classes: []models.Class{{ID: "c1", Name: "Piano"}},
		assignments: map[string][]models.Assignment{"c1": {
			{ID: "due-soon", Title: "Scales", DueDate: now.Add(48 * time.Hour), Points: 10},
			{ID: "later", Title: "Recital", DueDate: now.Add(30 * 24 * time.Hour), Points: 10},
			{ID: "missed", Title: "Etude", DueDate: now.Add(-24 * time.Hour), Points: 10},
			{ID: "handed-in", Title: "Theory", DueDate: now.Add(24 * time.Hour), Points: 10},
			{ID: "graded", Title: "Sight reading", DueDate: now.Add(-48 * time.Hour), Points: 10},
		}},
		subs: map[string]models.Submission{
			"handed-in": {AssignmentID: "handed-in", Status: models.SubmissionSubmitted, SubmittedAt: &submittedAt},
			"graded":    {AssignmentID: "graded", Status: models.SubmissionGraded, SubmittedAt: &submittedAt, Grade: ptrFloat(9)},
		},
	}
	svc := newDashboardFixture(stats, nil, nil)

	resp, _, err := svc.Get(context.Background(), studentActor)
	require.NoError(t, err)
	require.NotNil(t, resp.Student)
	assert.Equal(t, 1, resp.Student.EnrolledClasses)
	assert.Equal(t, 2, resp.Student.Assignments.Pending)
	assert.Equal(t, 1, resp.Student.Assignments.Submitted)
	assert.Equal(t, 1, resp.Student.Assignments.Completed)
	assert.Equal(t, 1, resp.Student.Assignments.Overdue)
	require.Len(t, resp.Student.DueSoon, 1)
	assert.Equal(t, "due-soon", resp.Student.DueSoon[0].ID)
	assert.Equal(t, 2, resp.Student.DueSoon[0].DaysRemaining)
	assert.Equal(t, "Piano", resp.Student.DueSoon[0].ClassName)
	assert.NotNil(t, resp.Student.UpcomingMeetings)
}

func TestDashboardServicePropagatesFailures(t *testing.T) {
	stats := &dashboardStats{err: errors.New("db down")}
	svc := newDashboardFixture(stats, nil, nil)

	_, _, err := svc.Get(context.Background(), adminActor)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrInternal))
}
