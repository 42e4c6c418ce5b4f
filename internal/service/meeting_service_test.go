package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-api/internal/models"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
)

type fakeMeetingRepo struct {
	meetings map[string]*models.Meeting
	deleted  []string
}

func (f *fakeMeetingRepo) ListForUser(ctx context.Context, filter models.MeetingFilter) ([]models.Meeting, error) {
	var out []models.Meeting
	for _, m := range f.meetings {
		if m.HostID != filter.UserID {
			continue
		}
		if m.EndTime.After(filter.From) && m.StartTime.Before(filter.To) {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (f *fakeMeetingRepo) FindByID(ctx context.Context, id string) (*models.Meeting, error) {
	m, ok := f.meetings[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copy := *m
	return &copy, nil
}

func (f *fakeMeetingRepo) Create(ctx context.Context, m *models.Meeting) error {
	m.ID = fmt.Sprintf("m-%d", len(f.meetings)+1)
	f.meetings[m.ID] = m
	return nil
}

func (f *fakeMeetingRepo) Delete(ctx context.Context, id string) error {
	delete(f.meetings, id)
	f.deleted = append(f.deleted, id)
	return nil
}

type memberClassRepo struct {
	*fakeClassRepo
}

func (m memberClassRepo) ListForMember(ctx context.Context, userID string) ([]models.Class, error) {
	var out []models.Class
	for _, c := range m.classes {
		if ok, _ := m.IsMember(ctx, c.ID, userID); ok {
			out = append(out, c.Class)
		}
	}
	return out, nil
}

func newMeetingFixture() (*MeetingService, *fakeMeetingRepo) {
	classes := &fakeClassRepo{classes: map[string]*models.ClassDetail{
		"class-1": {Class: models.Class{
			ID:        "class-1",
			Name:      "Piano",
			TeacherID: "teacher-1",
			Schedule:  "Mondays and Wednesdays, 6:00 PM - 8:00 PM",
			StartDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			EndDate:   time.Date(2024, 1, 7, 0, 0, 0, 0, time.UTC),
		}},
		"legacy": {Class: models.Class{
			ID:        "legacy",
			Name:      "Legacy",
			TeacherID: "teacher-1",
			Schedule:  "whenever works",
			StartDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			EndDate:   time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
		}},
	}}
	repo := &fakeMeetingRepo{meetings: map[string]*models.Meeting{}}
	svc := NewMeetingService(repo, memberClassRepo{classes}, time.UTC, 0, nil, nil)
	return svc, repo
}

func TestListClassMeetingsExpandsSchedule(t *testing.T) {
	svc, _ := newMeetingFixture()
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)

	meetings, err := svc.ListClassMeetings(context.Background(), teacherActor, "class-1", from, to)
	require.NoError(t, err)
	require.Len(t, meetings, 2)

	first := time.Date(2024, 1, 1, 18, 0, 0, 0, time.UTC)
	second := time.Date(2024, 1, 3, 18, 0, 0, 0, time.UTC)
	assert.Equal(t, first, meetings[0].StartTime)
	assert.Equal(t, first.Add(2*time.Hour), meetings[0].EndTime)
	assert.Equal(t, second, meetings[1].StartTime)
	assert.Equal(t, fmt.Sprintf("class-1:%d", first.Unix()), meetings[0].ID)
	assert.True(t, meetings[0].Synthetic)
	assert.Equal(t, "teacher-1", meetings[0].HostID)
}

func TestListClassMeetingsSkipsEndedInstances(t *testing.T) {
	svc, _ := newMeetingFixture()
	from := time.Date(2024, 1, 1, 20, 30, 0, 0, time.UTC)
	to := time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)

	meetings, err := svc.ListClassMeetings(context.Background(), adminActor, "class-1", from, to)
	require.NoError(t, err)
	require.Len(t, meetings, 1)
	assert.Equal(t, 3, meetings[0].StartTime.Day())
}

func TestListClassMeetingsUnparseableScheduleIsEmpty(t *testing.T) {
	svc, _ := newMeetingFixture()

	meetings, err := svc.ListClassMeetings(context.Background(), teacherActor, "legacy", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Time{})
	require.NoError(t, err)
	assert.Empty(t, meetings)
}

func TestListClassMeetingsRequiresMembership(t *testing.T) {
	svc, _ := newMeetingFixture()

	_, err := svc.ListClassMeetings(context.Background(), studentActor, "class-1", time.Time{}, time.Time{})
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))
}

func TestListForUserMergesAndSorts(t *testing.T) {
	svc, repo := newMeetingFixture()
	repo.meetings["m-1"] = &models.Meeting{
		ID:        "m-1",
		HostID:    "teacher-1",
		StartTime: time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC),
	}

	meetings, err := svc.ListForUser(context.Background(), teacherActor,
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, meetings, 3)
	assert.True(t, meetings[0].Synthetic)
	assert.Equal(t, "m-1", meetings[1].ID)
	assert.True(t, meetings[2].Synthetic)
	for i := 1; i < len(meetings); i++ {
		assert.False(t, meetings[i].StartTime.Before(meetings[i-1].StartTime))
	}
}

func TestMeetingCreateAndDelete(t *testing.T) {
	svc, repo := newMeetingFixture()
	ctx := context.Background()
	start := time.Date(2024, 3, 1, 15, 0, 0, 0, time.UTC)

	_, err := svc.Create(ctx, teacherActor, CreateMeetingRequest{Title: "Office hours", StartTime: start, EndTime: start})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	m, err := svc.Create(ctx, teacherActor, CreateMeetingRequest{
		Title:          "Office hours",
		StartTime:      start,
		EndTime:        start.Add(time.Hour),
		ParticipantIDs: []string{"student-1", "student-1", "teacher-1"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"student-1"}, []string(m.ParticipantIDs))

	err = svc.Delete(ctx, otherTeacher, m.ID)
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	err = svc.Delete(ctx, teacherActor, "class-1:1704132000")
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	require.NoError(t, svc.Delete(ctx, teacherActor, m.ID))
	assert.Equal(t, []string{m.ID}, repo.deleted)
}
