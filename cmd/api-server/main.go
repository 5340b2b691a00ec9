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

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/noah-isme/college-scheduling-api/api/swagger"
	"github.com/noah-isme/college-scheduling-api/internal/handler"
	"github.com/noah-isme/college-scheduling-api/internal/repository"
	"github.com/noah-isme/college-scheduling-api/internal/router"
	"github.com/noah-isme/college-scheduling-api/internal/service"
	"github.com/noah-isme/college-scheduling-api/pkg/cache"
	"github.com/noah-isme/college-scheduling-api/pkg/config"
	"github.com/noah-isme/college-scheduling-api/pkg/database"
	"github.com/noah-isme/college-scheduling-api/pkg/jobs"
	"github.com/noah-isme/college-scheduling-api/pkg/logger"
	"github.com/noah-isme/college-scheduling-api/pkg/mailer"
	"github.com/noah-isme/college-scheduling-api/pkg/queue"
	"github.com/noah-isme/college-scheduling-api/pkg/storage"
	"github.com/noah-isme/college-scheduling-api/pkg/validation"
)

// @title College Scheduling API
// @version 1.0.0
// @description Class scheduling for departments, rooms, sections and faculty with conflict detection and timetable exports.
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

const shutdownTimeout = 15 * time.Second

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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := run(cfg, logr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logr *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, grid cache disabled", zap.Error(err))
			redisClient = nil
		}
	}

	validate, err := validation.New()
	if err != nil {
		return fmt.Errorf("init validator: %w", err)
	}

	repos := newRepositories(db, redisClient, cfg.ServiceName, logr)
	defer repos.cache.Close() //nolint:errcheck

	metrics := service.NewMetricsService()
	cacheSvc := service.NewCacheService(repos.cache, metrics, cfg.Grid.CacheTTL, logr, redisClient != nil)

	gridCfg, err := service.GridConfigFrom(cfg.Grid)
	if err != nil {
		return fmt.Errorf("grid config: %w", err)
	}
	gridSvc := service.NewGridService(repos.schedules, cacheSvc, gridCfg, logr)

	store, err := newStorage(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init export storage: %w", err)
	}

	notifications, closeTransport, err := newNotificationService(ctx, cfg, repos, metrics, logr)
	if err != nil {
		return fmt.Errorf("init notifications: %w", err)
	}
	defer closeTransport()

	var exportSvc *service.ExportService
	exportQueue := jobs.New("exports", func(ctx context.Context, job jobs.Job) error {
		return exportSvc.Process(ctx, job)
	}, jobs.Config{
		Workers:     cfg.Exports.WorkerConcurrency,
		MaxAttempts: cfg.Exports.WorkerRetries + 1,
		OnExhausted: func(ctx context.Context, job jobs.Job, err error) {
			exportSvc.Exhausted(ctx, job, err)
		},
		Logger: logr,
	})
	exportSvc = service.NewExportService(service.ExportServiceParams{
		Repo:      repos.exports,
		Grids:     gridSvc,
		Semesters: repos.semesters,
		Faculty:   repos.faculty,
		Storage:   store,
		Signer:    storage.NewSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL),
		Queue:     exportQueue,
		Metrics:   metrics,
		Validator: validate,
		Logger:    logr,
		Config: service.ExportServiceConfig{
			PublicURL:       cfg.PublicURL,
			APIPrefix:       cfg.APIPrefix,
			ResultTTL:       cfg.Exports.SignedURLTTL,
			CleanupInterval: cfg.Exports.CleanupInterval,
		},
	})
	exportQueue.Start(ctx)
	defer exportQueue.Stop()
	exportSvc.RecoverPendingJobs(ctx)
	exportSvc.StartCleanup(ctx)

	scheduleSvc := service.NewScheduleService(service.ScheduleServiceParams{
		Repo:      repos.schedules,
		Semesters: repos.semesters,
		Audit:     repos.audit,
		Grids:     gridSvc,
		Notifier:  notifications,
		Metrics:   metrics,
		Validator: validate,
		Logger:    logr,
	})

	authSvc := service.NewAuthService(repos.users, repos.audit, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
		SingleSession:      cfg.JWT.SingleSession,
	})

	if cfg.Digest.Enabled {
		digest, err := service.NewDigestScheduler(cfg.Digest.Cron, notifications, logr)
		if err != nil {
			return err
		}
		digest.Start()
		defer digest.Stop()
	}

	handlers := router.Handlers{
		Auth:          handler.NewAuthHandler(authSvc),
		Users:         handler.NewUserHandler(service.NewUserService(repos.users, repos.audit, validate, logr)),
		Departments:   handler.NewDepartmentHandler(service.NewDepartmentService(repos.departments, repos.audit, validate, logr)),
		Buildings:     handler.NewBuildingHandler(service.NewBuildingService(repos.buildings, repos.audit, validate, logr)),
		Rooms:         handler.NewRoomHandler(service.NewRoomService(repos.rooms, repos.buildings, repos.audit, validate, logr)),
		Courses:       handler.NewCourseHandler(service.NewCourseService(repos.courses, repos.audit, validate, logr)),
		Sections:      handler.NewSectionHandler(service.NewSectionService(repos.sections, repos.courses, repos.audit, validate, logr)),
		Subjects:      handler.NewSubjectHandler(service.NewSubjectService(repos.subjects, repos.audit, validate, logr)),
		Faculty:       handler.NewFacultyHandler(service.NewFacultyService(repos.faculty, repos.audit, validate, logr)),
		Semesters:     handler.NewSemesterHandler(service.NewSemesterService(repos.semesters, repos.audit, validate, logr)),
		Schedules:     handler.NewScheduleHandler(scheduleSvc, gridSvc),
		Analytics:     handler.NewAnalyticsHandler(service.NewAnalyticsService(repos.schedules, cacheSvc, gridCfg, logr)),
		Exports:       handler.NewExportHandler(exportSvc),
		Notifications: handler.NewNotificationHandler(notifications),
		Ops: handler.NewMetricsHandler(metrics, map[string]handler.Pinger{
			"database": db,
			"redis":    handler.PingerFunc(repos.cache.Ping),
		}),
	}

	engine := router.New(handlers, router.Options{
		APIPrefix:      cfg.APIPrefix,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		EnableDocs:     cfg.Env != config.EnvProduction,
		Tokens:         authSvc,
		Audit:          repos.audit,
		Metrics:        metrics,
		Logger:         logr,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "notifications", cfg.Notifications.Transport)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

type repositories struct {
	users         *repository.UserRepository
	audit         *repository.AuditRepository
	departments   *repository.DepartmentRepository
	buildings     *repository.BuildingRepository
	rooms         *repository.RoomRepository
	courses       *repository.CourseRepository
	sections      *repository.SectionRepository
	subjects      *repository.SubjectRepository
	faculty       *repository.FacultyRepository
	semesters     *repository.SemesterRepository
	schedules     *repository.ScheduleRepository
	exports       *repository.ExportRepository
	notifications *repository.NotificationRepository
	cache         *repository.CacheRepository
}

func newRepositories(db *sqlx.DB, redisClient *redis.Client, prefix string, logr *zap.Logger) repositories {
	return repositories{
		users:         repository.NewUserRepository(db),
		audit:         repository.NewAuditRepository(db),
		departments:   repository.NewDepartmentRepository(db),
		buildings:     repository.NewBuildingRepository(db),
		rooms:         repository.NewRoomRepository(db),
		courses:       repository.NewCourseRepository(db),
		sections:      repository.NewSectionRepository(db),
		subjects:      repository.NewSubjectRepository(db),
		faculty:       repository.NewFacultyRepository(db),
		semesters:     repository.NewSemesterRepository(db),
		schedules:     repository.NewScheduleRepository(db),
		exports:       repository.NewExportRepository(db),
		notifications: repository.NewNotificationRepository(db),
		cache:         repository.NewCacheRepository(redisClient, prefix, logr),
	}
}

func newStorage(ctx context.Context, cfg *config.Config) (storage.Storage, error) {
	if cfg.Exports.StorageDriver == config.StorageS3 {
		return storage.NewS3Storage(ctx, cfg.S3)
	}
	return storage.NewLocalStorage(cfg.Exports.StorageDir)
}

// newNotificationService wires the configured transport. With the memory
// transport the API process also delivers; with amqp cmd/mail-worker does.
func newNotificationService(ctx context.Context, cfg *config.Config, repos repositories, metrics *service.MetricsService, logr *zap.Logger) (*service.NotificationService, func(), error) {
	params := service.NotificationServiceParams{
		Repo:      repos.notifications,
		Faculty:   repos.faculty,
		Schedules: repos.schedules,
		Semesters: repos.semesters,
		Metrics:   metrics,
		Logger:    logr,
	}

	if cfg.Notifications.Transport == config.TransportAMQP {
		conn, err := queue.Dial(cfg.Notifications.AMQPURL, cfg.Notifications.Queue)
		if err != nil {
			return nil, nil, err
		}
		publisher, err := queue.NewPublisher(conn, cfg.Notifications.Queue, logr)
		if err != nil {
			_ = conn.Close()
			return nil, nil, err
		}
		params.Publisher = publisher
		return service.NewNotificationService(params), func() {
			_ = publisher.Close()
			_ = conn.Close()
		}, nil
	}

	sender, err := mailer.New(cfg.Mail, logr)
	if err != nil {
		return nil, nil, err
	}
	var svc *service.NotificationService
	mailQueue := jobs.New("notifications", func(ctx context.Context, job jobs.Job) error {
		return svc.HandleJob(ctx, job)
	}, jobs.Config{
		Workers: cfg.Notifications.Workers,
		Logger:  logr,
	})
	params.Publisher = service.NewQueuePublisher(mailQueue)
	params.Sender = sender
	svc = service.NewNotificationService(params)
	mailQueue.Start(ctx)
	return svc, mailQueue.Stop, nil
}
