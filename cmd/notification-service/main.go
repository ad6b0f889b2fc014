package main

import (
	"context"
	"errors"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/storefront-kit/orderflow/pkg/idempotency"
	"github.com/storefront-kit/orderflow/pkg/logging"
	"github.com/storefront-kit/orderflow/pkg/shutdown"
	"github.com/storefront-kit/orderflow/pkg/tracing"

	"github.com/storefront-kit/orderflow/internal/notification/application"
	"github.com/storefront-kit/orderflow/internal/notification/infrastructure/console"
	notifkafka "github.com/storefront-kit/orderflow/internal/notification/infrastructure/kafka"
)

func main() {
	_ = godotenv.Load()
	log := logging.New("notification-service")

	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	// Configuration
	kafkaBrokers := strings.Split(env("KAFKA_BROKERS", "localhost:9092"), ",")
	otlpEndpoint := env("OTLP_ENDPOINT", "localhost:4318")
	redisAddr := env("REDIS_ADDR", "localhost:6379")
	eventTopic := env("EVENT_TOPIC", "order.events")
	dlqTopic := env("DLQ_TOPIC", "order.events.dlq")
	groupID := env("GROUP_ID", "notification-service")

	tp, err := tracing.Init(ctx, "notification-service", otlpEndpoint, log)
	if err != nil {
		log.Error("otel init failed", "err", err)
		os.Exit(1)
	}
	defer func() { _ = tp.Shutdown(ctx) }()

	// Redis-backed registry of already-notified orders
	redisDB := redis.NewClient(&redis.Options{Addr: redisAddr})
	registry := idempotency.NewStore(redisDB, "notifications:sent", 24*time.Hour)

	notifier := console.NewNotifier(log)
	svc := application.NewService(log, registry, notifier)

	consumer := notifkafka.NewConsumer(log, kafkaBrokers, eventTopic, groupID, dlqTopic, svc)
	go func() {
		if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("consumer stopped", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info("notification-service shutdown complete")
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
