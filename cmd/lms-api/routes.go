package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-api/internal/handler"
	"github.com/noah-isme/lms-api/internal/middleware"
	"github.com/noah-isme/lms-api/internal/models"
	"github.com/noah-isme/lms-api/pkg/config"
	"github.com/noah-isme/lms-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/lms-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/lms-api/pkg/middleware/requestid"
)

type routeDeps struct {
	users       *handler.UserHandler
	classes     *handler.ClassHandler
	enrollments *handler.EnrollmentHandler
	requests    *handler.EnrollmentRequestHandler
	assignments *handler.AssignmentHandler
	files       *handler.AssignmentFileHandler
	submissions *handler.SubmissionHandler
	meetings    *handler.MeetingHandler
	dashboard   *handler.DashboardHandler
	ops         *handler.MetricsHandler
	auth        middleware.TokenValidator
	metrics     middleware.RequestObserver
}

func newRouter(cfg *config.Config, logr *zap.Logger, d routeDeps) *gin.Engine {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(d.metrics))

	r.GET("/health", d.ops.Health)
	r.GET("/ready", d.ops.Ready)
	r.GET("/metrics", d.ops.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	// the signed token authorises downloads on its own
	api.GET("/assignment-files/:id/download", d.files.Download)

	secured := api.Group("")
	secured.Use(middleware.JWT(d.auth))

	admin := middleware.RequireRoles(models.RoleAdmin)
	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher)
	teacher := middleware.RequireRoles(models.RoleTeacher)
	student := middleware.RequireRoles(models.RoleStudent)

	users := secured.Group("/users")
	users.GET("", admin, d.users.List)
	users.POST("", admin, d.users.Create)
	users.GET("/admin", admin, d.users.ListAdmin)
	users.GET("/:id", middleware.RBAC(string(models.RoleAdmin), middleware.Self), d.users.Get)
	users.PUT("/:id", admin, d.users.Update)
	users.DELETE("/:id", admin, d.users.Delete)

	secured.GET("/teachers", staff, d.users.ListTeachers)
	secured.GET("/students", staff, d.users.ListStudents)

	classes := secured.Group("/classes")
	classes.GET("", d.classes.List)
	classes.POST("", teacher, d.classes.Create)
	classes.POST("/admin-create", admin, d.classes.AdminCreate)
	classes.GET("/:id", d.classes.Get)
	classes.PUT("/:id", staff, d.classes.Update)
	classes.DELETE("/:id", staff, d.classes.Delete)
	classes.GET("/:id/enrollments", staff, d.enrollments.List)
	classes.POST("/:id/enrollments", staff, d.enrollments.Enroll)
	classes.POST("/:id/unenroll", staff, d.enrollments.Unenroll)
	classes.GET("/:id/meetings", d.classes.Meetings)
	classes.GET("/:id/gradebook", staff, d.classes.Gradebook)

	requests := secured.Group("/enrollment-requests")
	requests.GET("", d.requests.List)
	requests.POST("", student, d.requests.Create)
	requests.POST("/:id/approve", d.requests.Approve)
	requests.POST("/:id/reject", d.requests.Reject)

	assignments := secured.Group("/assignments")
	assignments.GET("", d.assignments.List)
	assignments.POST("", teacher, d.assignments.Create)
	assignments.GET("/admin", admin, d.assignments.ListAdmin)
	assignments.POST("/admin", admin, d.assignments.Create)
	assignments.DELETE("/admin", admin, d.assignments.AdminDelete)
	assignments.GET("/:id", d.assignments.Get)
	assignments.PUT("/:id", staff, d.assignments.Update)
	assignments.DELETE("/:id", staff, d.assignments.Delete)

	secured.POST("/assignment-files", staff, d.files.Upload)

	submissions := secured.Group("/submissions")
	submissions.GET("", d.submissions.List)
	submissions.POST("", student, d.submissions.Submit)
	submissions.POST("/grade", staff, d.submissions.Grade)
	submissions.GET("/:id", d.submissions.Get)

	meetings := secured.Group("/meetings")
	meetings.GET("", d.meetings.List)
	meetings.POST("", staff, d.meetings.Create)
	meetings.DELETE("/:id", staff, d.meetings.Delete)

	secured.GET("/dashboard", d.dashboard.Get)

	return r
}
