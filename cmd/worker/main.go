package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/coachhubvn/coachhub-backend/internal/roles"
	"github.com/coachhubvn/coachhub-backend/pkg/config"
	"github.com/coachhubvn/coachhub-backend/pkg/db"
	"github.com/coachhubvn/coachhub-backend/pkg/logger"
	"github.com/coachhubvn/coachhub-backend/pkg/metrics"
	"github.com/coachhubvn/coachhub-backend/pkg/migrate"
	"github.com/coachhubvn/coachhub-backend/pkg/outbox"
	"github.com/coachhubvn/coachhub-backend/pkg/outbox/idempotency"
	"github.com/coachhubvn/coachhub-backend/pkg/pubsub"
	"github.com/coachhubvn/coachhub-backend/pkg/redis"
)

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "role-worker"})

	_ = godotenv.Load()

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	cfg.Service.Kind = "role-worker"

	logg = logger.New(logger.Options{
		ServiceName: "role-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer dbClient.Close()

	err = migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient)
	requireResource(ctx, logg, "migrations", err)

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	requireResource(ctx, logg, "redis", err)
	defer redisClient.Close()

	pubsubClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
	requireResource(ctx, logg, "pubsub", err)
	defer pubsubClient.Close()

	guard, err := idempotency.NewManager(redisClient, cfg.Eventing.OutboxIdempotencyTTL)
	requireResource(ctx, logg, "idempotency manager", err)

	rolesRepo := roles.NewRepository(dbClient.DB())
	rolesService, err := roles.NewService(rolesRepo)
	requireResource(ctx, logg, "role service", err)

	roleConsumer, err := roles.NewConsumer(roles.ConsumerParams{
		DB:           dbClient,
		Repo:         rolesRepo,
		Service:      rolesService,
		Outbox:       outbox.NewService(outbox.NewRepository(dbClient.DB()), logg),
		Idempotency:  guard,
		Subscription: pubsubClient.RoleRequestSubscription(),
		Logger:       logg,
		Metrics:      metrics.NewSagaMetrics(prometheus.NewRegistry()),
	})
	requireResource(ctx, logg, "role consumer", err)

	service, err := NewService(ServiceParams{
		Config:       cfg,
		Logger:       logg,
		DB:           dbClient,
		Redis:        redisClient,
		PubSub:       pubsubClient,
		RoleConsumer: roleConsumer,
	})
	requireResource(ctx, logg, "worker service", err)

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	runCtx = logg.WithFields(runCtx, map[string]any{
		"serviceKind": cfg.Service.Kind,
		"env":         cfg.App.Env,
	})
	logg.Info(runCtx, "role worker ready")

	if err := service.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(runCtx, "role worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(runCtx, "role worker shutting down gracefully")
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
