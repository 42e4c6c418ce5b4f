package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-api/internal/middleware"
	"github.com/noah-isme/lms-api/internal/models"
	"github.com/noah-isme/lms-api/internal/service"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
)

type fakeSubmissionSrv struct {
	gradeReq  service.GradeSubmissionRequest
	filter    models.SubmissionFilter
	gradeErr  error
	submitted service.SubmitAssignmentRequest
}

func (f *fakeSubmissionSrv) Submit(_ context.Context, _ *models.JWTClaims, req service.SubmitAssignmentRequest) (*models.SubmissionDetail, error) {
	f.submitted = req
	return &models.SubmissionDetail{Submission: models.Submission{ID: "sub-1", AssignmentID: req.AssignmentID}}, nil
}

func (f *fakeSubmissionSrv) Grade(_ context.Context, _ *models.JWTClaims, req service.GradeSubmissionRequest) (*models.SubmissionDetail, error) {
	f.gradeReq = req
	if f.gradeErr != nil {
		return nil, f.gradeErr
	}
	return &models.SubmissionDetail{Submission: models.Submission{ID: req.SubmissionID, Grade: req.Grade}}, nil
}

func (f *fakeSubmissionSrv) List(_ context.Context, _ *models.JWTClaims, filter models.SubmissionFilter) ([]models.SubmissionDetail, *models.Pagination, error) {
	f.filter = filter
	return []models.SubmissionDetail{}, models.NewPagination(filter.Page, filter.PageSize, 0), nil
}

func (f *fakeSubmissionSrv) Get(_ context.Context, _ *models.JWTClaims, id string) (*models.SubmissionDetail, error) {
	return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
}

func jsonContext(method, target, body string, claims *models.JWTClaims) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(method, target, strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	if claims != nil {
		c.Set(middleware.ContextUserKey, claims)
	}
	return c, rec
}

var teacherClaims = &models.JWTClaims{UserID: "teacher-1", Role: models.RoleTeacher}

func TestSubmissionHandlerGradeMapsInvalidGrade(t *testing.T) {
	srv := &fakeSubmissionSrv{gradeErr: appErrors.Clone(appErrors.ErrInvalidGrade, "grade must be between 0 and 100")}
	handler := NewSubmissionHandler(srv)
	c, rec := jsonContext(http.MethodPost, "/submissions/grade", `{"submission_id":"sub-1","grade":150}`, teacherClaims)

	handler.Grade(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "INVALID_GRADE", envelope.Code)
	assert.Equal(t, "grade must be between 0 and 100", envelope.Error)
	require.NotNil(t, srv.gradeReq.Grade)
	assert.Equal(t, 150.0, *srv.gradeReq.Grade)
}

func TestSubmissionHandlerGradeRejectsMalformedBody(t *testing.T) {
	handler := NewSubmissionHandler(&fakeSubmissionSrv{})
	c, rec := jsonContext(http.MethodPost, "/submissions/grade", `{"grade":`, teacherClaims)

	handler.Grade(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmissionHandlerListPassesFilter(t *testing.T) {
	srv := &fakeSubmissionSrv{}
	handler := NewSubmissionHandler(srv)
	c, rec := jsonContext(http.MethodGet, "/submissions?assignment_id=a-1&status=submitted&page=2&page_size=5", "", teacherClaims)

	handler.List(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "a-1", srv.filter.AssignmentID)
	assert.Equal(t, models.SubmissionSubmitted, srv.filter.Status)
	assert.Equal(t, 2, srv.filter.Page)
	assert.Equal(t, 5, srv.filter.PageSize)
}

func TestSubmissionHandlerGetNotFound(t *testing.T) {
	handler := NewSubmissionHandler(&fakeSubmissionSrv{})
	c, rec := jsonContext(http.MethodGet, "/submissions/x", "", teacherClaims)
	c.Params = gin.Params{{Key: "id", Value: "x"}}

	handler.Get(c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
