package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-api/internal/models"
	"github.com/noah-isme/lms-api/internal/service"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
)

type fakeEnrollmentRequestSrv struct {
	rejected  service.RejectEnrollmentRequest
	approveID string
	err       error
}

func (f *fakeEnrollmentRequestSrv) List(context.Context, *models.JWTClaims, models.EnrollmentRequestFilter) ([]models.EnrollmentRequestDetail, *models.Pagination, error) {
	return nil, nil, nil
}

func (f *fakeEnrollmentRequestSrv) Create(_ context.Context, _ *models.JWTClaims, req service.CreateEnrollmentRequest) (*models.EnrollmentRequest, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.EnrollmentRequest{ID: "req-1", ClassID: req.ClassID, Status: models.EnrollmentRequestPending}, nil
}

func (f *fakeEnrollmentRequestSrv) Approve(_ context.Context, _ *models.JWTClaims, id string) (*models.EnrollmentRequestDetail, error) {
	f.approveID = id
	if f.err != nil {
		return nil, f.err
	}
	return &models.EnrollmentRequestDetail{EnrollmentRequest: models.EnrollmentRequest{ID: id, Status: models.EnrollmentRequestApproved}}, nil
}

func (f *fakeEnrollmentRequestSrv) Reject(_ context.Context, _ *models.JWTClaims, id string, body service.RejectEnrollmentRequest) (*models.EnrollmentRequestDetail, error) {
	f.rejected = body
	return &models.EnrollmentRequestDetail{EnrollmentRequest: models.EnrollmentRequest{ID: id, Status: models.EnrollmentRequestRejected}}, nil
}

func TestEnrollmentRequestHandlerCreateDuplicate(t *testing.T) {
	srv := &fakeEnrollmentRequestSrv{err: appErrors.Clone(appErrors.ErrDuplicateRequest, "")}
	handler := NewEnrollmentRequestHandler(srv)
	student := &models.JWTClaims{UserID: "student-1", Role: models.RoleStudent}
	c, rec := jsonContext(http.MethodPost, "/enrollment-requests", `{"class_id":"class-1"}`, student)

	handler.Create(c)

	assert.Equal(t, http.StatusConflict, rec.Code)
	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "DUPLICATE_REQUEST", envelope.Code)
}

func TestEnrollmentRequestHandlerApprovePermission(t *testing.T) {
	srv := &fakeEnrollmentRequestSrv{err: appErrors.Clone(appErrors.ErrPermission, "")}
	handler := NewEnrollmentRequestHandler(srv)
	admin := &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin}
	c, rec := jsonContext(http.MethodPost, "/enrollment-requests/req-1/approve", "", admin)
	c.Params = gin.Params{{Key: "id", Value: "req-1"}}

	handler.Approve(c)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "req-1", srv.approveID)
}

func TestEnrollmentRequestHandlerRejectBodyOptional(t *testing.T) {
	srv := &fakeEnrollmentRequestSrv{}
	handler := NewEnrollmentRequestHandler(srv)

	c, rec := jsonContext(http.MethodPost, "/enrollment-requests/req-1/reject", "", teacherClaims)
	c.Params = gin.Params{{Key: "id", Value: "req-1"}}
	handler.Reject(c)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, srv.rejected.Reason)

	c, rec = jsonContext(http.MethodPost, "/enrollment-requests/req-1/reject", `{"reason":"Class is for advanced students"}`, teacherClaims)
	c.Params = gin.Params{{Key: "id", Value: "req-1"}}
	handler.Reject(c)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Class is for advanced students", srv.rejected.Reason)
}
