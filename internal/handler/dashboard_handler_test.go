package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/lms-api/internal/dto"
	"github.com/noah-isme/lms-api/internal/middleware"
	"github.com/noah-isme/lms-api/internal/models"
)

type fakeDashboardSrv struct {
	resp  *dto.DashboardResponse
	hit   bool
	err   error
	actor *models.JWTClaims
}

func (f *fakeDashboardSrv) Get(_ context.Context, actor *models.JWTClaims) (*dto.DashboardResponse, bool, error) {
	f.actor = actor
	return f.resp, f.hit, f.err
}

type responseEnvelope struct {
	Data  map[string]interface{} `json:"data"`
	Meta  map[string]interface{} `json:"meta"`
	Error string                 `json:"error"`
	Code  string                 `json:"code"`
}

func newTestContext(method, target string, claims *models.JWTClaims) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(method, target, nil)
	if claims != nil {
		c.Set(middleware.ContextUserKey, claims)
	}
	return c, rec
}

func TestDashboardHandlerRequiresClaims(t *testing.T) {
	handler := NewDashboardHandler(&fakeDashboardSrv{})
	c, rec := newTestContext(http.MethodGet, "/dashboard", nil)

	handler.Get(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDashboardHandlerReportsCacheHit(t *testing.T) {
	srv := &fakeDashboardSrv{
		resp: &dto.DashboardResponse{Role: models.RoleTeacher, Teacher: &dto.TeacherDashboard{Classes: 3}},
		hit:  true,
	}
	handler := NewDashboardHandler(srv)
	claims := &models.JWTClaims{UserID: "teacher-1", Role: models.RoleTeacher}
	c, rec := newTestContext(http.MethodGet, "/dashboard", claims)

	handler.Get(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Same(t, claims, srv.actor)
	var envelope responseEnvelope
	_ = json.Unmarshal(rec.Body.Bytes(), &envelope)
	assert.Equal(t, true, envelope.Meta["cache_hit"])
	assert.Contains(t, envelope.Meta, "processing_time_ms")
	assert.Equal(t, "TEACHER", envelope.Data["role"])
}
