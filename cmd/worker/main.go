package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"smartattend/internal/attendance"
	"smartattend/internal/config"
	"smartattend/internal/logging"
	"smartattend/internal/mailer"
	"smartattend/internal/queue"
	"smartattend/internal/store"
	"smartattend/internal/user"
)

// Worker consumes mark events and emails guardian notifications.
func main() {
	cfg := config.Load()

	logger, err := logging.New(cfg.Env)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if err := cfg.ValidateWorker(); err != nil {
		logger.Fatal("invalid worker configuration", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutdown signal received")
		cancel()
	}()

	db, err := store.NewDB(cfg.DatabaseURL, cfg.DBMaxOpenConns)
	if err != nil {
		logger.Fatal("db connect failed", zap.Error(err))
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)
	q := queue.NewRedisQueue(redisClient.Client, "smartattend:marks")

	ledger := attendance.NewLedger(db.Client)
	users := user.NewRepository(db.Client)
	mail := mailer.New(cfg.SMTPAddr, cfg.SMTPFrom, cfg.SMTPUser, cfg.SMTPPass)
	if mail == nil {
		logger.Warn("SMTP not configured, notifications will be logged only")
	}

	messages, err := q.Consume(ctx)
	if err != nil {
		logger.Fatal("queue consume init failed", zap.Error(err))
	}

	logger.Info("worker started, waiting for messages")
	for msg := range messages {
		if msg.Type != "attendance.marked" {
			continue
		}
		id := string(msg.Body)

		rec, err := ledger.GetByID(ctx, id)
		if err != nil {
			logger.Warn("fetch record failed", zap.String("record_id", id), zap.Error(err))
			continue
		}
		u, err := users.GetByID(ctx, rec.UserID)
		if err != nil {
			logger.Warn("fetch user failed", zap.String("user_id", rec.UserID), zap.Error(err))
			continue
		}
		if u.ParentEmail == nil || *u.ParentEmail == "" {
			continue
		}

		subject := fmt.Sprintf("Attendance marked for %s", u.Name)
		body := fmt.Sprintf("%s was marked %s for class %s at %s.",
			u.Name, rec.Status, rec.Class, rec.MarkedAt.Format("15:04 on Jan 2"))
		if err := mail.Send(*u.ParentEmail, subject, body); err != nil {
			logger.Warn("notification send failed",
				zap.String("record_id", id), zap.Error(err))
			continue
		}
		logger.Info("notification sent",
			zap.String("record_id", id), zap.String("class", rec.Class))
	}

	logger.Info("worker stopped")
}
