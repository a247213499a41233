// Package main runs the CampusReach HTTP server with the chat stream and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/campusreach/backend/config"
	"github.com/campusreach/backend/internal/auth"
	"github.com/campusreach/backend/internal/chat"
	"github.com/campusreach/backend/internal/emaillogs"
	"github.com/campusreach/backend/internal/events"
	"github.com/campusreach/backend/internal/exports"
	"github.com/campusreach/backend/internal/middleware"
	"github.com/campusreach/backend/internal/models"
	"github.com/campusreach/backend/internal/notifications"
	"github.com/campusreach/backend/internal/organizations"
	"github.com/campusreach/backend/internal/profiles"
	"github.com/campusreach/backend/internal/ratings"
	"github.com/campusreach/backend/internal/realtime"
	"github.com/campusreach/backend/internal/worker"
	"github.com/campusreach/backend/pkg/database"
	"github.com/campusreach/backend/pkg/mailer"
	"github.com/campusreach/backend/pkg/metrics"
	"github.com/campusreach/backend/pkg/queue"
	"github.com/campusreach/backend/pkg/redis"
	"github.com/campusreach/backend/pkg/response"
	"github.com/campusreach/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool, logger); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB}, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	// S3 is optional; without it upload URLs return 503 and exports stay pending.
	var (
		s3Client  *storage.S3
		uploads   organizations.UploadPresigner
		avatars   chat.AvatarSigner
		downloads exports.DownloadPresigner
	)
	if cfg.AWS.Region != "" {
		s3Client, err = storage.NewS3(ctx, storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			MediaBucket:          cfg.AWS.MediaBucket,
			ExportsBucket:        cfg.AWS.ExportsBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
			s3Client = nil
		}
	}
	if s3Client != nil {
		uploads, avatars, downloads = s3Client, s3Client, s3Client
	}

	m, err := metrics.New(prometheus.DefaultRegisterer)
	if err != nil {
		logger.Fatal("metrics", zap.Error(err))
	}

	sender := mailer.New(mailer.Config{
		FromAddress: cfg.Email.FromAddress,
		FromName:    cfg.Email.FromName,
		APIKey:      cfg.Email.APIKey,
		APIBaseURL:  cfg.Email.APIBaseURL,
		SMTPHost:    cfg.Email.SMTPHost,
		SMTPPort:    cfg.Email.SMTPPort,
		SMTPUser:    cfg.Email.SMTPUser,
		SMTPPass:    cfg.Email.SMTPPass,
	}, logger)
	renderer, err := notifications.NewRenderer(notifications.Links{BaseURL: cfg.Server.PublicBaseURL})
	if err != nil {
		logger.Fatal("email templates", zap.Error(err))
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	redisPubSub := realtime.NewRedisPubSub(rdb.Client, logger)
	hub := realtime.NewHub(logger, redisPubSub, redisPubSub)
	defer hub.Close()

	// Auth
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, jwtService, logger)

	// Profiles and organizations
	profileRepo := profiles.NewRepository(pool)
	directory := profiles.NewDirectory(profileRepo, cfg.Chat.DisplayCacheTTL)
	profileHandler := profiles.NewHandler(profileRepo, directory, uploads, logger)
	orgRepo := organizations.NewRepository(pool)
	orgHandler := organizations.NewHandler(orgRepo, authRepo, uploads, logger)

	// Events and signups
	eventRepo := events.NewRepository(pool)
	eventHandler := events.NewHandler(eventRepo, logger)
	orgAccess := events.RequireEventOrgAccess(eventRepo)

	// Chat: guard, append log, fan-out into the notification queue, live stream
	queueRepo := notifications.NewQueueRepository(pool)
	chatRepo := chat.NewRepository(pool)
	chatSvc := chat.NewService(chat.NewGuard(eventRepo), chatRepo, chat.Options{
		Enqueuer:  notifications.NewFanout(eventRepo, queueRepo),
		Publisher: hub,
		Directory: directory,
		Avatars:   avatars,
		Metrics:   m,
		Logger:    logger,
	})
	chatHandler := chat.NewHandler(chatSvc, logger)

	// Notifications
	prefsRepo := notifications.NewPreferencesRepository(pool)
	prefsHandler := notifications.NewPreferencesHandler(prefsRepo, logger)
	sweeps := notifications.NewSweeps(pool, notifications.SweepOptions{
		Mailer:   sender,
		Renderer: renderer,
		Metrics:  m,
		Logger:   logger,
	})
	cronHandler := notifications.NewCronHandler(sweeps.Messages, sweeps.Reminders, sweeps.Digest, logger)

	// Ratings and email audit
	ratingHandler := ratings.NewHandler(ratings.NewRepository(pool), eventRepo, logger)
	emailLogsHandler := emaillogs.NewHandler(emaillogs.NewRepository(pool), logger)

	// Exports
	exportRepo := exports.NewRepository(pool)
	jobQueue := queue.NewQueue(rdb.Client, logger)
	exportHandler := exports.NewHandler(exportRepo, eventRepo, jobQueue, downloads, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) {
		status := "ok"
		if !rdb.Healthy(c.Request.Context()) {
			status = "degraded"
		}
		response.OK(c, gin.H{"status": status})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Auth (public)
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/login", authHandler.Login)
	}

	// Cron (shared secret)
	cron := router.Group("/cron")
	cron.Use(middleware.CronSecret(cfg.Cron.Secret, logger))
	{
		cron.GET("/message-notifications", cronHandler.MessageNotifications)
		cron.GET("/rating-reminders", cronHandler.RatingReminders)
		cron.GET("/weekly-digest", cronHandler.WeeklyDigest)
	}

	volunteerOnly := middleware.RequireAccountType(models.AccountVolunteer)
	organizationOnly := middleware.RequireAccountType(models.AccountOrganization)

	// Protected API (JWT required)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		// Me
		api.GET("/me", authHandler.Me)
		api.GET("/me/volunteer", volunteerOnly, profileHandler.GetVolunteer)
		api.PUT("/me/volunteer", volunteerOnly, profileHandler.UpdateVolunteer)
		api.POST("/me/avatar-upload-url", volunteerOnly, profileHandler.AvatarUploadURL)
		api.GET("/me/notification-preferences", prefsHandler.Get)
		api.PUT("/me/notification-preferences", prefsHandler.Update)

		// Organizations
		api.POST("/organizations", organizationOnly, orgHandler.CreateOrganization)
		api.GET("/organizations", orgHandler.ListMyOrganizations)
		api.POST("/organizations/:id/members", orgHandler.AddMember)
		api.GET("/organizations/:id/members", orgHandler.ListMembers)
		api.PUT("/organizations/:id/members/me", orgHandler.UpdateMyProfile)
		api.POST("/organizations/:id/logo-upload-url", orgHandler.LogoUploadURL)
		api.POST("/organizations/:id/exports", exportHandler.Create)
		api.GET("/exports/:id", exportHandler.Get)

		// Events and signups
		api.GET("/events", eventHandler.List)
		api.POST("/events", eventHandler.Create)
		api.GET("/events/:id", eventHandler.Get)
		api.POST("/events/:id/signup", volunteerOnly, eventHandler.Signup)
		api.DELETE("/events/:id/signup", eventHandler.Withdraw)
		api.GET("/events/:id/signups", orgAccess, eventHandler.ListSignups)
		api.PATCH("/events/:id/signups/:signupId", orgAccess, eventHandler.UpdateSignup)

		// Chat
		api.GET("/events/:id/chat", chatHandler.List)
		api.POST("/events/:id/chat", chatHandler.Post)

		// Ratings and email audit
		api.POST("/events/:id/ratings", volunteerOnly, ratingHandler.Create)
		api.GET("/events/:id/ratings", orgAccess, ratingHandler.ListByEvent)
		api.GET("/events/:id/emails", orgAccess, emailLogsHandler.ListByEvent)
	}

	// WebSocket (token in query; no Authorization header required)
	upgrader := realtime.NewUpgrader(middleware.ParseOrigins(cfg.Server.CORSAllowedOrigins))
	router.GET("/ws/chat", realtime.ServeWs(hub, upgrader, jwtService, chatSvc, logger))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// In-process export worker; cmd/worker runs the same loop standalone.
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	if s3Client != nil {
		processor := worker.NewExportProcessor(exportRepo, exportRepo, s3Client, jobQueue, logger)
		go processor.Run(workerCtx)
		logger.Info("export worker started")
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	workerCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
