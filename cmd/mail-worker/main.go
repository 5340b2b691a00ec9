package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/noah-isme/college-scheduling-api/internal/repository"
	"github.com/noah-isme/college-scheduling-api/internal/service"
	"github.com/noah-isme/college-scheduling-api/pkg/config"
	"github.com/noah-isme/college-scheduling-api/pkg/database"
	"github.com/noah-isme/college-scheduling-api/pkg/logger"
	"github.com/noah-isme/college-scheduling-api/pkg/mailer"
	"github.com/noah-isme/college-scheduling-api/pkg/queue"
)

// mail-worker consumes faculty notifications published by the API when
// NOTIFICATIONS_TRANSPORT=amqp and delivers them over SMTP.
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	sender, err := mailer.New(cfg.Mail, logr)
	if err != nil {
		logr.Fatal("failed to init mailer", zap.Error(err))
	}

	conn, err := queue.Dial(cfg.Notifications.AMQPURL, cfg.Notifications.Queue)
	if err != nil {
		logr.Fatal("failed to connect broker", zap.Error(err))
	}
	defer conn.Close()

	consumer, err := queue.NewConsumer(conn, cfg.Notifications.Queue, cfg.Notifications.Workers, logr)
	if err != nil {
		logr.Fatal("failed to open consumer", zap.Error(err))
	}

	notifications := service.NewNotificationService(service.NotificationServiceParams{
		Repo:    repository.NewNotificationRepository(db),
		Sender:  sender,
		Metrics: service.NewMetricsService(),
		Logger:  logr,
	})

	logr.Sugar().Infow("mail worker starting", "queue", cfg.Notifications.Queue, "smtp", cfg.Mail.Enabled)
	if err := consumer.Run(ctx, notifications.HandleDelivery); err != nil {
		logr.Fatal("consumer stopped", zap.Error(err))
	}
	logr.Info("mail worker stopped")
}
