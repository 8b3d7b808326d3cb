package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-cafe/internal/config"
	"github.com/noah-isme/backend-cafe/internal/events"
	"github.com/noah-isme/backend-cafe/internal/loyalty"
	"github.com/noah-isme/backend-cafe/internal/notify"
	"github.com/noah-isme/backend-cafe/internal/obs"
	"github.com/noah-isme/backend-cafe/internal/order"
	"github.com/noah-isme/backend-cafe/internal/settle"
	"github.com/noah-isme/backend-cafe/internal/voucher"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("component", "worker").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool := mustInitDatabase(ctx, cfg, logger)
	defer pool.Close()

	asynqOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url for tasks")
	}

	bus := &events.Bus{Store: &events.PgStore{Pool: pool}}

	mux := asynq.NewServeMux()
	if cfg.OrderWebhookURL != "" {
		taskClient := asynq.NewClient(asynqOpt)
		defer func() {
			if err := taskClient.Close(); err != nil {
				logger.Error().Err(err).Msg("close task client")
			}
		}()
		bus.Notifiers = append(bus.Notifiers, &notify.TaskNotifier{Client: taskClient})
		mux.Handle(notify.TypeEventWebhook, &notify.TaskHandler{
			Webhook: &notify.Webhook{
				URL:    cfg.OrderWebhookURL,
				Secret: cfg.OrderWebhookSecret,
				Client: notify.HTTPClient(5 * time.Second),
			},
			Logger: &logger,
		})
	}

	handler := &settle.Handler{
		Vouchers: &voucher.Store{Pool: pool},
		Ledger:   &loyalty.Store{Pool: pool},
		Orders:   &order.Store{Pool: pool},
		Events:   bus,
		Logger:   &logger,
	}
	mux.Handle(settle.TypeOrderSettle, handler)

	srv := asynq.NewServer(asynqOpt, asynq.Config{Concurrency: 5})

	logger.Info().Msg("worker starting")
	if err := srv.Start(mux); err != nil {
		logger.Fatal().Err(err).Msg("start worker")
	}
	<-ctx.Done()
	srv.Shutdown()
	logger.Info().Msg("worker shutdown complete")
}

func mustInitDatabase(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *pgxpool.Pool {
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse database config")
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = "cafe-worker"
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	if err := pool.Ping(ctx); err != nil {
		logger.Fatal().Err(err).Msg("ping database")
	}
	return pool
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}
