package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/warehouse-flow/internal/notifications"
	"github.com/angelmondragon/warehouse-flow/pkg/config"
	"github.com/angelmondragon/warehouse-flow/pkg/logger"
	"github.com/angelmondragon/warehouse-flow/pkg/outbox/idempotency"
	"github.com/angelmondragon/warehouse-flow/pkg/pubsub"
	"github.com/angelmondragon/warehouse-flow/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "alerts-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "alerts-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap pubsub", err)
		os.Exit(1)
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing pubsub client", err)
		}
	}()
	if err := pubsubClient.EnsureSubscriptions(ctx, cfg.PubSub.QCAlertsSubscription, cfg.PubSub.LowStockSubscription); err != nil {
		logg.Error(ctx, "failed to ensure subscriptions", err)
		os.Exit(1)
	}

	mailer, err := notifications.NewSMTPMailer(cfg.Mail)
	if err != nil {
		logg.Error(ctx, "failed to configure mailer", err)
		os.Exit(1)
	}
	manager, err := idempotency.NewManager(redisClient, cfg.Eventing.OutboxIdempotencyTTL)
	if err != nil {
		logg.Error(ctx, "failed to build idempotency manager", err)
		os.Exit(1)
	}

	qcFailed, err := notifications.NewQCFailedConsumer(mailer, manager, logg)
	if err != nil {
		logg.Error(ctx, "failed to build qc alerts consumer", err)
		os.Exit(1)
	}
	lowStock, err := notifications.NewLowStockConsumer(mailer, manager, logg)
	if err != nil {
		logg.Error(ctx, "failed to build low stock consumer", err)
		os.Exit(1)
	}

	qcSub, lowStockSub := pubsubClient.QCAlertsSubscription(), pubsubClient.LowStockSubscription()
	if qcSub == nil || lowStockSub == nil {
		logg.Error(ctx, "alert subscriptions are not configured", errors.New("missing subscription name"))
		os.Exit(1)
	}

	service, err := NewService(ServiceParams{
		Logger: logg,
		Redis:  redisClient,
		PubSub: pubsubClient,
		Bindings: []Binding{
			{Consumer: qcFailed, Subscription: qcSub},
			{Consumer: lowStock, Subscription: lowStockSub},
		},
	})
	if err != nil {
		logg.Error(ctx, "failed to create worker", err)
		os.Exit(1)
	}

	ctx = logg.WithFields(ctx, map[string]any{
		"env":        cfg.App.Env,
		"recipients": len(cfg.Mail.RecipientList()),
	})
	logg.Info(ctx, "starting alerts worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "worker shutting down gracefully")
}
