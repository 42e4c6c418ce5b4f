package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-api/internal/models"
	"github.com/noah-isme/lms-api/internal/repository"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
)

type fakeClassRepo struct {
	classes map[string]*models.ClassDetail
	members map[string]map[string]bool
}

func (f *fakeClassRepo) List(ctx context.Context, filter models.ClassFilter) ([]models.ClassDetail, int, error) {
	var out []models.ClassDetail
	for _, c := range f.classes {
		if filter.TeacherID != "" && c.TeacherID != filter.TeacherID {
			continue
		}
		if filter.StudentID != "" && !f.members[c.ID][filter.StudentID] {
			continue
		}
		out = append(out, *c)
	}
	return out, len(out), nil
}

func (f *fakeClassRepo) FindByID(ctx context.Context, id string) (*models.ClassDetail, error) {
	c, ok := f.classes[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copy := *c
	return &copy, nil
}

func (f *fakeClassRepo) IsMember(ctx context.Context, classID, userID string) (bool, error) {
	if c, ok := f.classes[classID]; ok && c.TeacherID == userID {
		return true, nil
	}
	return f.members[classID][userID], nil
}

func (f *fakeClassRepo) Create(ctx context.Context, class *models.Class) error {
	if class.ID == "" {
		class.ID = "new-class"
	}
	f.classes[class.ID] = &models.ClassDetail{Class: *class}
	return nil
}

func (f *fakeClassRepo) Update(ctx context.Context, class *models.Class) error {
	existing := f.classes[class.ID]
	existing.Class = *class
	return nil
}

func (f *fakeClassRepo) Delete(ctx context.Context, id string) error {
	delete(f.classes, id)
	return nil
}

func (f *fakeClassRepo) enroll(classID, studentID string) {
	if f.members == nil {
		f.members = map[string]map[string]bool{}
	}
	if f.members[classID] == nil {
		f.members[classID] = map[string]bool{}
	}
	f.members[classID][studentID] = true
	f.classes[classID].EnrolledCount++
}

type fakeEnrollmentRequestRepo struct {
	requests   map[string]*models.EnrollmentRequestDetail
	classes    *fakeClassRepo
	approveErr error
	created    int
}

func (f *fakeEnrollmentRequestRepo) FindByID(ctx context.Context, id string) (*models.EnrollmentRequestDetail, error) {
	r, ok := f.requests[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copy := *r
	return &copy, nil
}

func (f *fakeEnrollmentRequestRepo) HasOpen(ctx context.Context, classID, studentID string) (bool, error) {
	for _, r := range f.requests {
		if r.ClassID == classID && r.StudentID == studentID && r.Status != models.EnrollmentRequestRejected {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeEnrollmentRequestRepo) List(ctx context.Context, filter models.EnrollmentRequestFilter) ([]models.EnrollmentRequestDetail, int, error) {
	var out []models.EnrollmentRequestDetail
	for _, r := range f.requests {
		if filter.TeacherID != "" && r.TeacherID != filter.TeacherID {
			continue
		}
		if filter.StudentID != "" && r.StudentID != filter.StudentID {
			continue
		}
		out = append(out, *r)
	}
	return out, len(out), nil
}

func (f *fakeEnrollmentRequestRepo) Create(ctx context.Context, req *models.EnrollmentRequest) error {
	f.created++
	req.ID = "req-new"
	req.Status = models.EnrollmentRequestPending
	f.requests[req.ID] = &models.EnrollmentRequestDetail{EnrollmentRequest: *req}
	return nil
}

func (f *fakeEnrollmentRequestRepo) Approve(ctx context.Context, req *models.EnrollmentRequest, decidedBy string, decidedAt time.Time) error {
	if f.approveErr != nil {
		return f.approveErr
	}
	stored := f.requests[req.ID]
	if stored.Status != models.EnrollmentRequestPending {
		return repository.ErrStateChanged
	}
	stored.Status = models.EnrollmentRequestApproved
	f.classes.enroll(req.ClassID, req.StudentID)
	return nil
}

func (f *fakeEnrollmentRequestRepo) Reject(ctx context.Context, id, reason, decidedBy string, decidedAt time.Time) error {
	stored := f.requests[id]
	if stored.Status != models.EnrollmentRequestPending {
		return repository.ErrStateChanged
	}
	stored.Status = models.EnrollmentRequestRejected
	stored.RejectionReason = &reason
	return nil
}

type classEnrollmentChecker struct{ classes *fakeClassRepo }

func (c classEnrollmentChecker) Exists(ctx context.Context, classID, studentID string) (bool, error) {
	return c.classes.members[classID][studentID], nil
}

type recordingNotifier struct{ decided []models.EnrollmentRequestDetail }

func (r *recordingNotifier) EnrollmentDecided(_ context.Context, req models.EnrollmentRequestDetail) {
	r.decided = append(r.decided, req)
}

var (
	teacherActor = &models.JWTClaims{UserID: "teacher-1", Role: models.RoleTeacher}
	otherTeacher = &models.JWTClaims{UserID: "teacher-2", Role: models.RoleTeacher}
	adminActor   = &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin}
	studentActor = &models.JWTClaims{UserID: "student-1", Role: models.RoleStudent}
)

func newWorkflowFixture(maxStudents *int) (*EnrollmentRequestService, *fakeEnrollmentRequestRepo, *fakeClassRepo, *recordingNotifier) {
	classes := &fakeClassRepo{classes: map[string]*models.ClassDetail{
		"class-1": {Class: models.Class{ID: "class-1", Name: "Piano", TeacherID: "teacher-1", MaxStudents: maxStudents}},
	}}
	repo := &fakeEnrollmentRequestRepo{requests: map[string]*models.EnrollmentRequestDetail{
		"req-1": {
			EnrollmentRequest: models.EnrollmentRequest{ID: "req-1", ClassID: "class-1", StudentID: "student-1", Status: models.EnrollmentRequestPending},
			TeacherID:         "teacher-1",
			ClassName:         "Piano",
		},
	}, classes: classes}
	notifier := &recordingNotifier{}
	svc := NewEnrollmentRequestService(repo, classes, classEnrollmentChecker{classes}, notifier, nil, nil, nil, nil)
	svc.now = func() time.Time { return time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC) }
	return svc, repo, classes, notifier
}

func TestEnrollmentRequestApprove(t *testing.T) {
	svc, repo, classes, notifier := newWorkflowFixture(nil)

	req, err := svc.Approve(context.Background(), teacherActor, "req-1")
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentRequestApproved, req.Status)
	require.NotNil(t, req.DecidedBy)
	assert.Equal(t, "teacher-1", *req.DecidedBy)
	assert.Equal(t, models.EnrollmentRequestApproved, repo.requests["req-1"].Status)
	assert.True(t, classes.members["class-1"]["student-1"])
	require.Len(t, notifier.decided, 1)
	assert.Equal(t, "req-1", notifier.decided[0].ID)
}

func TestEnrollmentRequestApproveOnlyClassTeacher(t *testing.T) {
	for _, actor := range []*models.JWTClaims{otherTeacher, adminActor, studentActor} {
		svc, repo, _, notifier := newWorkflowFixture(nil)

		_, err := svc.Approve(context.Background(), actor, "req-1")
		require.Error(t, err)
		assert.True(t, errors.Is(err, appErrors.ErrPermission), actor.UserID)
		assert.Equal(t, models.EnrollmentRequestPending, repo.requests["req-1"].Status)
		assert.Empty(t, notifier.decided)
	}
}

func TestEnrollmentRequestTerminalStatesAreFinal(t *testing.T) {
	svc, repo, _, _ := newWorkflowFixture(nil)

	_, err := svc.Reject(context.Background(), teacherActor, "req-1", RejectEnrollmentRequest{Reason: "full roster"})
	require.NoError(t, err)
	require.NotNil(t, repo.requests["req-1"].RejectionReason)
	assert.Equal(t, "full roster", *repo.requests["req-1"].RejectionReason)

	_, err = svc.Approve(context.Background(), teacherActor, "req-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Status, appErrors.FromError(err).Status)

	_, err = svc.Reject(context.Background(), teacherActor, "req-1", RejectEnrollmentRequest{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrPreconditionFailed))
}

func TestEnrollmentRequestApproveFullClass(t *testing.T) {
	max := 1
	svc, repo, classes, _ := newWorkflowFixture(&max)
	classes.enroll("class-1", "student-9")

	_, err := svc.Approve(context.Background(), teacherActor, "req-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrPreconditionFailed))
	assert.Equal(t, models.EnrollmentRequestPending, repo.requests["req-1"].Status)
}

func TestEnrollmentRequestApproveLostRace(t *testing.T) {
	svc, repo, _, _ := newWorkflowFixture(nil)
	repo.approveErr = repository.ErrStateChanged

	_, err := svc.Approve(context.Background(), teacherActor, "req-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrPreconditionFailed))
}

func TestEnrollmentRequestCreate(t *testing.T) {
	svc, repo, classes, _ := newWorkflowFixture(nil)
	delete(repo.requests, "req-1")

	created, err := svc.Create(context.Background(), studentActor, CreateEnrollmentRequest{ClassID: "class-1", Message: " please "})
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentRequestPending, created.Status)
	assert.Equal(t, "please", created.Message)

	_, err = svc.Create(context.Background(), studentActor, CreateEnrollmentRequest{ClassID: "class-1"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrDuplicateRequest))
	assert.Equal(t, 1, repo.created)

	classes.enroll("class-1", "student-2")
	_, err = svc.Create(context.Background(), &models.JWTClaims{UserID: "student-2", Role: models.RoleStudent}, CreateEnrollmentRequest{ClassID: "class-1"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrConflict))
}

func TestEnrollmentRequestCreateGuards(t *testing.T) {
	svc, _, _, _ := newWorkflowFixture(nil)

	_, err := svc.Create(context.Background(), teacherActor, CreateEnrollmentRequest{ClassID: "class-1"})
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	_, err = svc.Create(context.Background(), &models.JWTClaims{UserID: "student-3", Role: models.RoleStudent}, CreateEnrollmentRequest{ClassID: "missing"})
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestEnrollmentRequestListScopes(t *testing.T) {
	svc, repo, _, _ := newWorkflowFixture(nil)
	repo.requests["req-2"] = &models.EnrollmentRequestDetail{
		EnrollmentRequest: models.EnrollmentRequest{ID: "req-2", ClassID: "class-x", StudentID: "student-2"},
		TeacherID:         "teacher-2",
	}

	items, _, err := svc.List(context.Background(), teacherActor, models.EnrollmentRequestFilter{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "req-1", items[0].ID)

	items, _, err = svc.List(context.Background(), &models.JWTClaims{UserID: "student-2", Role: models.RoleStudent}, models.EnrollmentRequestFilter{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "req-2", items[0].ID)

	items, _, err = svc.List(context.Background(), adminActor, models.EnrollmentRequestFilter{})
	require.NoError(t, err)
	assert.Len(t, items, 2)
}
