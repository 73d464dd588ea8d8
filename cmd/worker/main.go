// Package main runs the background job worker (email redelivery).
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/cosmicconnect/backend/config"
	"github.com/cosmicconnect/backend/internal/emaillogs"
	"github.com/cosmicconnect/backend/internal/notify"
	"github.com/cosmicconnect/backend/internal/worker"
	"github.com/cosmicconnect/backend/pkg/database"
	"github.com/cosmicconnect/backend/pkg/mailer"
	"github.com/cosmicconnect/backend/pkg/queue"
	"github.com/cosmicconnect/backend/pkg/redis"
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

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	emailLogRepo := emaillogs.NewRepository(pool)
	notifier := notify.NewNotifier(mailer.New(cfg.Email.APIKey, cfg.Email.From(), logger), emailLogRepo, logger)
	jobQueue := queue.NewQueue(rdb.Client, logger)
	processor := worker.NewEmailRedeliveryProcessor(jobQueue, notifier, logger)

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		processor.Run(workerCtx)
		close(done)
	}()
	logger.Info("worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		logger.Warn("worker did not stop in time")
	}
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
