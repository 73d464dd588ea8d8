// Package main runs the volunteer coordination HTTP server with WebSocket and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/cosmicconnect/backend/config"
	"github.com/cosmicconnect/backend/internal/analytics"
	"github.com/cosmicconnect/backend/internal/auth"
	"github.com/cosmicconnect/backend/internal/emaillogs"
	"github.com/cosmicconnect/backend/internal/middleware"
	"github.com/cosmicconnect/backend/internal/models"
	"github.com/cosmicconnect/backend/internal/notify"
	"github.com/cosmicconnect/backend/internal/realtime"
	"github.com/cosmicconnect/backend/internal/reports"
	"github.com/cosmicconnect/backend/internal/session"
	"github.com/cosmicconnect/backend/internal/signups"
	"github.com/cosmicconnect/backend/internal/tasks"
	"github.com/cosmicconnect/backend/internal/users"
	"github.com/cosmicconnect/backend/pkg/database"
	"github.com/cosmicconnect/backend/pkg/gemini"
	"github.com/cosmicconnect/backend/pkg/mailer"
	"github.com/cosmicconnect/backend/pkg/queue"
	"github.com/cosmicconnect/backend/pkg/redis"
	"github.com/cosmicconnect/backend/pkg/response"
	"github.com/cosmicconnect/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	loc := cfg.Server.Location()

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool, logger); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var archive reports.Archive
	if cfg.AWS.ReportsBucket != "" {
		s3Client, err := storage.NewS3(ctx, storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			ReportsBucket:        cfg.AWS.ReportsBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}, logger)
		if err != nil {
			logger.Warn("report archive disabled", zap.Error(err))
		} else {
			archive = s3Client
		}
	}

	gen, err := gemini.NewClient(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model, logger)
	if err != nil {
		logger.Fatal("gemini", zap.Error(err))
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)

	// Persistence
	authRepo := auth.NewRepository(pool)
	userRepo := users.NewRepository(pool)
	taskRepo := tasks.NewRepository(pool)
	reportRepo := reports.NewRepository(pool)
	emailLogRepo := emaillogs.NewRepository(pool)
	jobQueue := queue.NewQueue(rdb.Client, logger)

	// Sessions and realtime
	resolver := session.NewResolver(userRepo, authRepo, logger)
	redisPubSub := realtime.NewRedisPubSub(rdb.Client, logger)
	hub := realtime.NewHub(resolver, redisPubSub, redisPubSub, logger)
	if err := hub.Start(); err != nil {
		logger.Fatal("realtime", zap.Error(err))
	}
	defer hub.Close()

	// Email
	sender := mailer.New(cfg.Email.APIKey, cfg.Email.From(), logger)
	notifier := notify.NewNotifier(sender, emailLogRepo, logger)

	// Services
	authService := auth.NewService(authRepo, userRepo, auth.NewTokenStore(rdb.Client), notifier, jwtService, auth.Options{
		PublicBaseURL:    cfg.Server.PublicBaseURL,
		AdminEntrySecret: cfg.Admin.EntrySecret,
	}, logger)
	userService := users.NewService(userRepo, taskRepo, authRepo, authService, hub, logger)
	signupService := signups.NewService(taskRepo, userRepo, notifier, hub, loc, logger)
	reportService := reports.NewService(reportRepo, taskRepo, userRepo, gen, archive, hub, logger)
	analyticsService := analytics.NewService(userRepo, taskRepo, loc, logger)

	// Handlers
	authHandler := auth.NewHandler(authService, logger)
	userHandler := users.NewHandler(userService, logger)
	taskHandler := tasks.NewHandler(taskRepo, userRepo, gen, hub, loc, logger)
	signupHandler := signups.NewHandler(signupService, logger)
	reportHandler := reports.NewHandler(reportService, logger)
	analyticsHandler := analytics.NewHandler(analyticsService, logger)
	emailLogsHandler := emaillogs.NewHandler(emailLogRepo, taskRepo, jobQueue, logger)

	jwtValidate := func(token string) (uuid.UUID, error) {
		claims, err := jwtService.Validate(token)
		if err != nil {
			return uuid.Nil, err
		}
		return claims.UserID, nil
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) {
		hctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := pool.Ping(hctx); err != nil {
			response.ServiceUnavailable(c, "database unavailable")
			return
		}
		if !rdb.Healthy(hctx) {
			response.ServiceUnavailable(c, "redis unavailable")
			return
		}
		response.OK(c, gin.H{"status": "ok"})
	})

	// Auth (public)
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/login", authHandler.Login)
		authGroup.GET("/verify-email", authHandler.VerifyEmail)
		authGroup.POST("/password-reset/confirm", authHandler.ConfirmPasswordReset)
	}
	router.POST("/admin/login", authHandler.AdminLogin)
	router.POST("/admin/password-reset", authHandler.RequestAdminPasswordReset)

	// Authenticated: identity from JWT, role re-resolved on every request
	api := router.Group("")
	api.Use(middleware.JWT(jwtService), middleware.Session(resolver))
	{
		api.GET("/session", session.Current)
		api.POST("/auth/verify-email/resend", authHandler.ResendVerification)
	}

	verified := api.Group("")
	verified.Use(middleware.RequireVerifiedEmail())
	{
		volunteer := middleware.RequireRole(models.RoleVolunteer)
		coordinator := middleware.RequireRole(models.RoleCoordinator)

		// Tasks
		verified.GET("/tasks", taskHandler.List)
		verified.GET("/tasks/available", volunteer, taskHandler.Available)
		verified.GET("/tasks/mine", middleware.RequireRole(models.RoleVolunteer, models.RoleCoordinator), taskHandler.Mine)
		verified.POST("/tasks", coordinator, taskHandler.Create)
		verified.POST("/tasks/draft", coordinator, taskHandler.Draft)
		verified.DELETE("/tasks/:id", coordinator, taskHandler.Delete)

		// Signup / verification
		verified.GET("/tasks/:id/status", signupHandler.Status)
		verified.POST("/tasks/:id/signup", volunteer, signupHandler.SignUp)
		verified.DELETE("/tasks/:id/signup", volunteer, signupHandler.Cancel)
		verified.POST("/tasks/:id/verification-request", volunteer, signupHandler.RequestVerification)
		verified.POST("/tasks/:id/volunteers/:uid/verify", coordinator, signupHandler.Verify)

		// Email logs (owning coordinator or admin)
		emailAccess := middleware.RequireRole(models.RoleCoordinator, models.RoleAdmin)
		verified.GET("/tasks/:id/emails", emailAccess, emailLogsHandler.ListByTask)
		verified.POST("/tasks/:id/emails/:logId/resend", emailAccess, emailLogsHandler.Resend)

		// Reports
		verified.POST("/reports", coordinator, reportHandler.Generate)
		verified.GET("/reports", reportHandler.List)
		verified.GET("/reports/latest", reportHandler.Latest)
		verified.GET("/reports/:id/download-url", reportHandler.DownloadURL)
	}

	// Admin
	admin := api.Group("/admin")
	admin.Use(middleware.RequireRole(models.RoleAdmin))
	{
		admin.GET("/users", userHandler.List)
		admin.POST("/users", userHandler.Create)
		admin.PATCH("/users/:uid/role", userHandler.ChangeRole)
		admin.DELETE("/users/:uid", userHandler.Delete)
		admin.GET("/overview", analyticsHandler.Overview)
		admin.GET("/tasks", analyticsHandler.Tasks)
	}

	// WebSocket (token in query; no Authorization header required)
	router.GET("/ws", realtime.ServeWs(hub, resolver, logger, jwtValidate))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port), zap.String("timezone", loc.String()))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	authService.Wait()
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
