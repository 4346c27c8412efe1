// Command notifier consumes domain events from Kafka and turns them into
// notification rows and emails.
package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"venuly/internal/config"
	"venuly/internal/database"
	"venuly/internal/email"
	"venuly/internal/kafka"
	"venuly/internal/logger"
	notificationdb "venuly/internal/notifications/db"
	"venuly/internal/notify"
	userdb "venuly/internal/users/db"
)

func main() {
	log := logger.NewLogger("venuly-notifier")
	defer log.Close()

	_ = godotenv.Load()
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bunDB, err := database.Connect(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", err.Error())
	}
	defer bunDB.Close()

	dispatcher := &notify.Dispatcher{
		Store:   &notificationdb.DB{Bun: bunDB},
		Users:   &userdb.DB{Bun: bunDB},
		Mailer:  email.NewClient(cfg.Email, log),
		BaseURL: cfg.Server.PublicBaseURL,
		Logger:  log,
	}

	topic := kafka.NotificationsTopic(cfg.Kafka.TopicPrefix)
	if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, []string{topic}, log); err != nil {
		log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
	}

	consumer := kafka.NewConsumer(cfg.Kafka.Brokers, topic, cfg.Kafka.GroupID, log)
	defer consumer.Close()

	log.Info("APP", fmt.Sprintf("Notifier consuming %s as %s", topic, cfg.Kafka.GroupID))
	if err := consumer.Start(ctx, dispatcher.Handle); err != nil {
		log.Fatal("KAFKA", err.Error())
	}
	log.Info("APP", "Notifier stopped")
}
