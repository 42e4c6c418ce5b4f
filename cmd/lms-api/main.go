package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/noah-isme/lms-api/api/swagger"
	"github.com/noah-isme/lms-api/internal/handler"
	"github.com/noah-isme/lms-api/internal/repository"
	"github.com/noah-isme/lms-api/internal/service"
	"github.com/noah-isme/lms-api/pkg/cache"
	"github.com/noah-isme/lms-api/pkg/config"
	"github.com/noah-isme/lms-api/pkg/database"
	"github.com/noah-isme/lms-api/pkg/jobs"
	"github.com/noah-isme/lms-api/pkg/logger"
	"github.com/noah-isme/lms-api/pkg/mailer"
	"github.com/noah-isme/lms-api/pkg/storage"
)

// @title LMS API
// @version 1.0.0
// @description Classes, enrollment requests, assignments, submissions and meetings
// @BasePath /api
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("database connection failed", zap.Error(err))
	}
	defer db.Close()

	// lms-api migrate <command> [args...]
	if len(os.Args) > 2 && os.Args[1] == "migrate" {
		if err := database.Migrate(context.Background(), db.DB, os.Args[2], os.Args[3:]...); err != nil {
			logr.Fatal("migration failed", zap.Error(err))
		}
		return
	}
	if cfg.MigrateOnStart {
		if err := database.Migrate(context.Background(), db.DB, "up"); err != nil {
			logr.Fatal("migration failed", zap.Error(err))
		}
	}

	var redisClient *redis.Client
	if cfg.Cache.Enabled {
		redisClient, err = cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, caching disabled", zap.Error(err))
		} else {
			defer redisClient.Close()
		}
	}

	store, err := newFileStore(cfg.Storage)
	if err != nil {
		logr.Fatal("file store init failed", zap.Error(err), zap.String("driver", cfg.Storage.Driver))
	}

	loc, err := time.LoadLocation(cfg.Meetings.Timezone)
	if err != nil {
		logr.Warn("unknown meetings timezone, using UTC", zap.String("timezone", cfg.Meetings.Timezone))
		loc = time.UTC
	}

	validate := validator.New()
	metrics := service.NewMetricsService()

	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Cache.DashboardTTL, logr, cfg.Cache.Enabled && redisClient != nil)

	userRepo := repository.NewUserRepository(db)
	classRepo := repository.NewClassRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	requestRepo := repository.NewEnrollmentRequestRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	meetingRepo := repository.NewMeetingRepository(db)

	authSvc, err := service.NewAuthService(userRepo, cacheSvc, logr, service.AuthConfig{
		JWTSecret:  cfg.Auth.JWTSecret,
		JWKSURL:    cfg.Auth.JWKSURL,
		Issuer:     cfg.Auth.Issuer,
		Audience:   cfg.Auth.Audience,
		ProfileTTL: cfg.Auth.ProfileTTL,
		Leeway:     cfg.Auth.LeewaySkew,
	})
	if err != nil {
		logr.Fatal("auth init failed", zap.Error(err))
	}
	defer authSvc.Close()

	notifier := service.NewNotificationService(mailer.New(cfg.Mail, logr), metrics, logr)
	notifyQueue := jobs.NewQueue("notifications", notifier.Handle, jobs.QueueConfig{
		Workers:    cfg.Notifier.Workers,
		BufferSize: 256,
		MaxRetries: cfg.Notifier.Retries,
		RetryDelay: 2 * time.Second,
		JobTimeout: 30 * time.Second,
		Logger:     logr,
	})
	notifier.AttachQueue(notifyQueue)

	signer := storage.NewSignedURLSigner(cfg.Files.SignedURLSecret, cfg.Files.SignedURLTTL)
	fileSvc := service.NewAssignmentFileService(assignmentRepo, classRepo, store, signer, service.AssignmentFileConfig{
		MaxSizeBytes: cfg.Files.MaxFileSizeBytes,
		AllowedMIMEs: cfg.Files.AllowedMIMEs,
		DownloadBase: cfg.APIPrefix,
	}, logr)
	meetingSvc := service.NewMeetingService(meetingRepo, classRepo, loc, cfg.Meetings.Lookahead, validate, logr)

	deps := routeDeps{
		users:       handler.NewUserHandler(service.NewUserService(userRepo, authSvc, validate, logr)),
		classes:     handler.NewClassHandler(service.NewClassService(classRepo, userRepo, cacheSvc, validate, logr), meetingSvc, service.NewGradebookService(classRepo, assignmentRepo, enrollmentRepo, submissionRepo, nil, nil, logr)),
		enrollments: handler.NewEnrollmentHandler(service.NewEnrollmentService(enrollmentRepo, classRepo, userRepo, cacheSvc, validate, logr)),
		requests:    handler.NewEnrollmentRequestHandler(service.NewEnrollmentRequestService(requestRepo, classRepo, enrollmentRepo, notifier, cacheSvc, metrics, validate, logr)),
		assignments: handler.NewAssignmentHandler(service.NewAssignmentService(assignmentRepo, classRepo, submissionRepo, store, fileSvc, cacheSvc, validate, logr)),
		files:       handler.NewAssignmentFileHandler(fileSvc, cfg.Files.MaxFileSizeBytes, logr),
		submissions: handler.NewSubmissionHandler(service.NewSubmissionService(submissionRepo, assignmentRepo, enrollmentRepo, cacheSvc, metrics, validate, logr)),
		meetings:    handler.NewMeetingHandler(meetingSvc),
		dashboard: handler.NewDashboardHandler(service.NewDashboardService(service.DashboardServiceParams{
			Users:       userRepo,
			Classes:     classRepo,
			Assignments: assignmentRepo,
			Requests:    requestRepo,
			Submissions: submissionRepo,
			Meetings:    meetingSvc,
			Cache:       cacheSvc,
			Metrics:     metrics,
			Logger:      logr,
			Config:      service.DashboardServiceConfig{CacheTTL: cfg.Cache.DashboardTTL},
		})),
		ops: handler.NewMetricsHandler(metrics, map[string]handler.Pinger{
			"postgres": db,
			"redis":    handler.PingFunc(cacheRepo.Ping),
		}),
		auth:    authSvc,
		metrics: metrics,
	}

	notifyQueue.Start(context.Background())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           newRouter(cfg, logr, deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logr.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Shutdown)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
	notifyQueue.Stop()
}

func newFileStore(cfg config.StorageConfig) (storage.FileStore, error) {
	switch cfg.Driver {
	case config.StorageDriverB2:
		// blazer keeps the client context for token refreshes
		return storage.NewB2Storage(context.Background(), cfg.B2AccountID, cfg.B2AppKey, cfg.B2Bucket)
	case config.StorageDriverLocal, "":
		return storage.NewLocalStorage(cfg.Dir)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
