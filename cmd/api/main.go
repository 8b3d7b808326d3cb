package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	validator "github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"

	"github.com/noah-isme/backend-cafe/internal/analytics"
	"github.com/noah-isme/backend-cafe/internal/audit"
	"github.com/noah-isme/backend-cafe/internal/auth"
	"github.com/noah-isme/backend-cafe/internal/cart"
	"github.com/noah-isme/backend-cafe/internal/catalog"
	"github.com/noah-isme/backend-cafe/internal/checkout"
	"github.com/noah-isme/backend-cafe/internal/common"
	"github.com/noah-isme/backend-cafe/internal/config"
	"github.com/noah-isme/backend-cafe/internal/db"
	"github.com/noah-isme/backend-cafe/internal/delivery"
	"github.com/noah-isme/backend-cafe/internal/events"
	"github.com/noah-isme/backend-cafe/internal/health"
	"github.com/noah-isme/backend-cafe/internal/lock"
	"github.com/noah-isme/backend-cafe/internal/loyalty"
	"github.com/noah-isme/backend-cafe/internal/notify"
	"github.com/noah-isme/backend-cafe/internal/obs"
	"github.com/noah-isme/backend-cafe/internal/order"
	"github.com/noah-isme/backend-cafe/internal/pricing"
	"github.com/noah-isme/backend-cafe/internal/ratelimit"
	"github.com/noah-isme/backend-cafe/internal/resilience"
	"github.com/noah-isme/backend-cafe/internal/security"
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
	logger := obs.NewLogger(logFormat, logLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "cafe")
	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)

	tracingEnabled := envBool("OBS_ENABLE_TRACING", true)
	if tracingEnabled {
		sampling := envFloat("OBS_TRACING_SAMPLING_RATIO", 1.0)
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "cafe-api",
			Endpoint:      cfg.OTLPEndpoint,
			Exporter:      envOrDefault("OBS_TRACING_EXPORTER", "otlp"),
			SamplingRatio: sampling,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	if err := db.Migrate(cfg.DatabaseURL); err != nil {
		logger.Fatal().Err(err).Msg("run migrations")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse database config")
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = "cafe-api"

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		logger.Fatal().Err(err).Msg("ping database")
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if metricsEnabled {
		if err := redisotel.InstrumentMetrics(redisClient); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}

	asynqOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url for tasks")
	}
	taskClient := asynq.NewClient(asynqOpt)
	defer func() {
		if err := taskClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close task client")
		}
	}()

	catalogStore := &catalog.Store{Pool: pool}
	catalogService, err := catalog.NewService(catalog.ServiceConfig{
		Store: catalogStore,
		Cache: catalog.NewCache(redisClient, cfg.CatalogCacheTTL),
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise catalog service")
	}
	catalogHandler := catalog.NewHandler(catalog.HandlerConfig{Service: catalogService})

	authService, err := auth.NewService(auth.Config{
		Secret:          cfg.SessionSecret,
		SessionTokenTTL: cfg.SessionTokenTTL,
		AdminKeyHash:    cfg.AdminKeyHash,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise auth service")
	}
	authHandler := &auth.Handler{Service: authService}
	authMiddleware := auth.Middleware{Service: authService}

	voucherStore := &voucher.Store{Pool: pool}
	voucherSvc := &voucher.Service{Store: voucherStore}
	voucherHandler := &voucher.Handler{Svc: voucherSvc, Store: voucherStore, Catalog: catalogService}

	cartSvc := &cart.Service{
		R:    redisClient,
		Lock: &lock.Locker{R: redisClient},
		TTL:  cfg.CartTTL,
	}
	cartHandler := &cart.Handler{Svc: cartSvc}

	var courier delivery.Provider = delivery.Flat{Fee: pricing.Money(cfg.FlatShippingFee)}
	if cfg.DeliveryBaseURL != "" {
		breaker := resilience.NewBreaker(10, 0.5, 30*time.Second).
			WithTarget("ahamove").
			WithLogger(logger)
		courier = delivery.WithFallback{
			Primary:  delivery.NewAhamove(cfg.DeliveryBaseURL, cfg.DeliveryAPIKey, cfg.DeliveryTimeout, breaker),
			Fallback: delivery.Flat{Fee: pricing.Money(cfg.FlatShippingFee)},
		}
	}

	bus := &events.Bus{Store: &events.PgStore{Pool: pool}}
	if cfg.OrderWebhookURL != "" {
		bus.Notifiers = append(bus.Notifiers, &notify.TaskNotifier{Client: taskClient})
	}
	orderStore := &order.Store{Pool: pool}
	loyaltyStore := &loyalty.Store{Pool: pool}
	rateSource := &loyalty.RateSource{Pool: pool, Default: cfg.LoyaltyEarnRateBps}

	checkoutSvc := &checkout.Service{
		Catalog:     catalogService,
		Vouchers:    voucherSvc,
		Delivery:    courier,
		Orders:      orderStore,
		Pool:        pool,
		Events:      bus,
		Tasks:       &settle.Enqueuer{Client: taskClient},
		Validator:   validator.New(),
		EarnRateBps: rateSource.EarnRateBps(ctx),
	}
	checkoutHandler := &checkout.Handler{Svc: checkoutSvc}

	orderHandler := &order.Handler{Store: orderStore}
	orderAdmin := &order.AdminHandler{Store: orderStore, Events: bus}
	loyaltyHandler := &loyalty.Handler{Store: loyaltyStore}

	idem := common.Idem{R: redisClient, TTL: 24 * time.Hour}

	auditRecorder := audit.HTTPRecorder{
		Service: &audit.Service{
			Store:        &audit.PgStore{Pool: pool},
			Enabled:      cfg.AuditEnabled,
			SamplingRate: cfg.AuditSampleRate,
		},
		OnError: func(err error) {
			logger.Error().Err(err).Msg("audit record")
		},
	}
	auditHandler := audit.Handler{Store: &audit.PgStore{Pool: pool}}

	analyticsSvc := &analytics.Service{
		Q:            &analytics.Store{Pool: pool},
		R:            redisClient,
		TTL:          5 * time.Minute,
		DefaultRange: 30,
	}
	analyticsHandler := &analytics.Handler{Svc: analyticsSvc}

	quoteLimiter, err := ratelimit.NewRedisLimiter(redisClient, "cafe:ratelimit")
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise rate limiter")
	}
	quoteLimit := ratelimit.Handler{
		Limiter: quoteLimiter,
		Config: ratelimit.Config{
			Key:    func(r *http.Request) string { return "quote:" + r.RemoteAddr },
			Window: time.Minute,
			Max:    int(cfg.QuoteRatePerMinute),
		},
		OnError: func(err error) {
			logger.Error().Err(err).Msg("rate limiter")
		},
	}

	var httpMetrics *obs.HTTPMetrics
	if metricsEnabled {
		buckets := obs.ParseBucketsCSV(envOrDefault("OBS_METRICS_BUCKETS_MS", ""))
		httpMetrics = obs.NewHTTPMetrics(metricsNamespace, buckets, nil)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if metricsEnabled && httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(security.Headers{Enable: true}.Middleware)
	r.Use(security.BodyLimit{Max: 1 << 20}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", "X-Admin-Key"},
		ExposedHeaders:   []string{"Link", "X-Total-Count"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	healthHandler := health.Handler{
		Checker:      readinessChecker{db: pool, redis: redisClient},
		DBTimeout:    500 * time.Millisecond,
		RedisTimeout: 300 * time.Millisecond,
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Post("/auth/session", authHandler.CreateSession)

		v.Get("/menu", catalogHandler.Menu)
		v.Get("/categories", catalogHandler.Categories)
		v.Get("/products/{id}", catalogHandler.Product)

		v.Route("/carts", func(c chi.Router) {
			c.Get("/{id}", cartHandler.Get)
			c.Group(func(g chi.Router) {
				g.Use(idem.Middleware)
				g.Post("/", cartHandler.Create)
				g.Post("/{id}/items", cartHandler.AddItem)
				g.Put("/{id}/items", cartHandler.UpdateItem)
				g.Delete("/{id}/items", cartHandler.Clear)
				g.Put("/{id}/voucher", cartHandler.ApplyVoucher)
				g.Delete("/{id}/voucher", cartHandler.ClearVoucher)
			})
		})

		v.Route("/vouchers", func(vc chi.Router) {
			vc.Use(quoteLimit.Middleware)
			vc.Post("/browse", voucherHandler.Browse)
			vc.Post("/{code}/check", voucherHandler.Check)
		})

		v.With(quoteLimit.Middleware).Post("/checkout/quote", checkoutHandler.Quote)
		v.With(idem.Middleware, authMiddleware.RequireAuth).Post("/checkout", checkoutHandler.Submit)

		v.Group(func(authed chi.Router) {
			authed.Use(authMiddleware.RequireAuth)
			authed.Get("/orders", orderHandler.List)
			authed.Get("/orders/{orderId}", orderHandler.Get)
			authed.Get("/loyalty/balance", loyaltyHandler.Balance)
		})

		v.Route("/admin", func(admin chi.Router) {
			admin.Use(authMiddleware.RequireAdmin)
			admin.With(auditRecorder.Middleware(audit.HTTPConfig{ResourceType: "admin.vouchers"})).
				Post("/vouchers", voucherHandler.Create)
			admin.With(auditRecorder.Middleware(audit.HTTPConfig{ResourceType: "admin.vouchers", ResourceIDParam: "code"})).
				Put("/vouchers/{code}", voucherHandler.Update)
			admin.Get("/orders", orderAdmin.List)
			admin.With(auditRecorder.Middleware(audit.HTTPConfig{ResourceType: "admin.orders", ResourceIDParam: "orderId"})).
				Post("/orders/{orderId}/cancel", orderAdmin.Cancel)
			admin.Get("/audit-logs", auditHandler.List)
			admin.Get("/analytics/sales", analyticsHandler.Sales)
			admin.Get("/analytics/top-products", analyticsHandler.TopProducts)
		})
	})

	srv := &http.Server{
		Addr:    cfg.HTTPAddr(),
		Handler: r,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("server starting")
		errCh <- srv.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server exited unexpectedly")
		}
	case sig := <-stop:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
		// fail readiness first so load balancers stop routing here
		health.SetReady(false)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("graceful shutdown failed")
		}
	}
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

type readinessChecker struct {
	db    *pgxpool.Pool
	redis *redis.Client
}

func (c readinessChecker) PingDB(ctx context.Context, timeout time.Duration) error {
	if c.db == nil {
		return errors.New("db not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.db.Ping(ctx)
}

func (c readinessChecker) PingRedis(ctx context.Context, timeout time.Duration) error {
	if c.redis == nil {
		return errors.New("redis not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.redis.Ping(ctx).Err()
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

func envBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "t", "true", "yes", "on":
			return true
		case "0", "f", "false", "no", "off":
			return false
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return parsed
		}
	}
	return fallback
}
