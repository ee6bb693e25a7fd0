package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/coachhubvn/coachhub-backend/api/controllers"
	"github.com/coachhubvn/coachhub-backend/api/routes"
	"github.com/coachhubvn/coachhub-backend/internal/gateways"
	"github.com/coachhubvn/coachhub-backend/internal/payments"
	"github.com/coachhubvn/coachhub-backend/internal/wallet"
	"github.com/coachhubvn/coachhub-backend/pkg/config"
	"github.com/coachhubvn/coachhub-backend/pkg/db"
	"github.com/coachhubvn/coachhub-backend/pkg/logger"
	"github.com/coachhubvn/coachhub-backend/pkg/metrics"
	"github.com/coachhubvn/coachhub-backend/pkg/migrate"
	"github.com/coachhubvn/coachhub-backend/pkg/outbox"
	"github.com/coachhubvn/coachhub-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	momo, err := gateways.NewMomoGateway(cfg.Momo, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create momo gateway", err)
		os.Exit(1)
	}
	payos, err := gateways.NewPayOSGateway(cfg.PayOS, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create payos gateway", err)
		os.Exit(1)
	}
	vnpay, err := gateways.NewVNPayGateway(cfg.VNPay, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create vnpay gateway", err)
		os.Exit(1)
	}

	walletRepo := wallet.NewRepository(dbClient.DB())
	walletService, err := wallet.NewService(walletRepo, cfg.Wallet)
	if err != nil {
		logg.Error(context.Background(), "failed to create wallet service", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	paymentService, err := payments.NewService(payments.ServiceParams{
		DB:         dbClient,
		Payments:   payments.NewRepository(dbClient.DB()),
		Wallet:     walletService,
		WalletRepo: walletRepo,
		Gateways:   gateways.NewRegistry(momo, payos, vnpay),
		Outbox:     outbox.NewService(outbox.NewRepository(dbClient.DB()), logg),
		Cache:      redisClient,
		WalletCfg:  cfg.Wallet,
		Logger:     logg,
		Metrics:    metrics.NewPaymentMetrics(registry),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payment service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config: cfg,
			Logger: logg,
			Readiness: map[string]controllers.Pinger{
				"database": dbClient,
				"redis":    redisClient,
			},
			Redis:          redisClient,
			PaymentService: paymentService,
			WalletService:  walletService,
			Gatherer:       registry,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
