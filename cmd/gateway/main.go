package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/Spacey6849/palliative-care-app/internal/api"
	"github.com/Spacey6849/palliative-care-app/internal/circuitbreaker"
	"github.com/Spacey6849/palliative-care-app/internal/config"
	"github.com/Spacey6849/palliative-care-app/internal/db"
	"github.com/Spacey6849/palliative-care-app/internal/dispatch"
	"github.com/Spacey6849/palliative-care-app/internal/history"
	"github.com/Spacey6849/palliative-care-app/internal/metrics"
	"github.com/Spacey6849/palliative-care-app/internal/observ"
	"github.com/Spacey6849/palliative-care-app/internal/platform"
	"github.com/Spacey6849/palliative-care-app/internal/push"
	"github.com/Spacey6849/palliative-care-app/internal/redis"
	"github.com/Spacey6849/palliative-care-app/internal/route"
	"github.com/Spacey6849/palliative-care-app/internal/schedule"
	"github.com/Spacey6849/palliative-care-app/internal/sns"
	"github.com/Spacey6849/palliative-care-app/internal/sqs"
	"github.com/Spacey6849/palliative-care-app/internal/worker"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Local development keeps settings in a .env file; deployed environments
	// set them directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := observ.NewLogger(cfg.Env, cfg.LogLevel, "gateway")
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting notification gateway",
		zap.String("env", cfg.Env),
		zap.Int("port", cfg.Port),
		zap.Bool("remote_push", cfg.RemotePushEnabled),
	)

	ctx := context.Background()

	// Postgres holds the device token registry.
	database, err := db.New(ctx, db.Config{
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		Database: cfg.DBName,
		SSLMode:  cfg.DBSSLMode,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	repo := db.NewDeviceTokenRepository(database, logger)

	// Redis backs sessions, persisted history and rate limiting. Unlike the
	// AWS pieces it is not optional: without it no request can authenticate.
	redisClient, err := redis.New(ctx, redis.Config{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer redisClient.Close()

	sessions := redis.NewSessionStore(redisClient, logger)
	rateLimiter := redis.NewRateLimiter(redisClient, logger, redis.RateLimitConfig{
		Limit:  cfg.RateLimit,
		Window: cfg.RateLimitWindow,
	})

	// Notification core: the history store feeds the tap router, the
	// dispatcher sits in front of both, and the timer engine delivers
	// scheduled notifications back into the dispatcher.
	historyStore := history.NewStore(redis.NewHistoryStorage(redisClient, logger), history.Options{
		Limit:       cfg.HistoryLimit,
		DedupWindow: cfg.ChatDedupWindow,
	}, logger)
	router := route.NewRouter(historyStore, logger)
	dispatcher := dispatch.NewDispatcher(historyStore, router, logger)

	engine := platform.NewEngine(logger, dispatcher.DeliveryHandler())
	defer engine.Close()

	backendBreaker := circuitbreaker.New(circuitbreaker.DefaultConfig("push-backend"), logger)
	snsBreaker := circuitbreaker.New(circuitbreaker.DefaultConfig("sns"), logger)

	backend := push.NewBackendClient(cfg.PushBackendURL, cfg.PushReportTimeout, backendBreaker, logger)
	registrar := push.NewRegistrar(engine, backend, push.Options{
		ProjectID:  cfg.PushProjectID,
		DeviceType: "web", // the embedded engine reports as a web client
	}, logger)

	scheduler := schedule.NewScheduler(engine, logger)

	// SNS platform applications are optional. Without them remote pushes fall
	// through to the log pusher.
	var publisher *sns.Publisher
	if arns := cfg.PlatformARNs(); len(arns) > 0 {
		publisher, err = sns.NewPublisher(ctx, arns, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			logger.Warn("sns unavailable, remote push delivery disabled",
				zap.Error(err),
			)
			publisher = nil
		}
	}

	var pusher worker.Pusher
	if publisher != nil {
		pusher = worker.NewSNSPusher(publisher, repo, logger)
	} else {
		pusher = worker.NewLogPusher(logger)
	}
	pusher = worker.NewProtectedPusher(pusher, snsBreaker, logger)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	// Remote fan-out goes through SQS when a queue is configured; otherwise
	// the send handler degrades to pushing synchronously.
	var producer *sqs.Producer
	if cfg.RemotePushEnabled {
		sqsCfg := sqs.Config{
			Region:   cfg.SQSRegion,
			QueueURL: cfg.SQSQueueURL,
			DLQURL:   cfg.SQSDLQURL,
		}

		producer, err = sqs.NewProducer(ctx, sqsCfg, logger)
		if err != nil {
			logger.Warn("sqs producer unavailable, falling back to synchronous push",
				zap.Error(err),
			)
			producer = nil
		} else {
			defer producer.Close()
		}

		consumer, err := sqs.NewConsumer(ctx, sqsCfg, logger)
		if err != nil {
			logger.Warn("sqs consumer unavailable, queued pushes will not be delivered",
				zap.Error(err),
			)
		} else {
			defer consumer.Close()
			w := worker.New(consumer, pusher, repo, worker.Config{
				Concurrency: cfg.WorkerConcurrency,
			}, logger)
			go w.Start(workerCtx)
			logger.Info("push worker started", zap.Int("concurrency", cfg.WorkerConcurrency))
		}
	}

	deps := api.Deps{
		Platform:   engine,
		Registrar:  registrar,
		Scheduler:  scheduler,
		History:    historyStore,
		Dispatcher: dispatcher,
		Tokens:     repo,
		Pusher:     pusher,
		DB:         database,
		Redis:      redisClient,
		Breakers:   []*circuitbreaker.CircuitBreaker{backendBreaker, snsBreaker},
	}
	// A nil *sns.Publisher stored in the interface field would defeat the
	// handler's nil checks, so assign only when configured.
	if publisher != nil {
		deps.Endpoints = publisher
	}
	if producer != nil {
		deps.Producer = producer
	}

	handler := api.NewHandler(deps, logger)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)

	// Custom logging middleware
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Info("request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration_ms", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	})

	sessionAuth := api.SessionMiddleware(sessions, logger)

	// Device token reports keep their original path and contract.
	r.Group(func(r chi.Router) {
		r.Use(sessionAuth)
		r.Post("/api/notifications/register", handler.RegisterDeviceToken)
	})

	// API routes
	r.Route("/v1/notifications", func(r chi.Router) {
		r.Use(sessionAuth)
		r.Use(api.RateLimitMiddleware(rateLimiter, logger, api.UserKeyFunc))

		r.Get("/history", handler.ListHistory)
		r.Delete("/history", handler.ClearHistory)
		r.Post("/history/{id}/read", handler.MarkHistoryRead)
		r.Post("/history/{id}/open", handler.OpenHistory)

		r.Post("/schedule", handler.ScheduleNotification)
		r.Post("/chat", handler.SendChat)
		r.Post("/appointments", handler.SendAppointment)
		r.Post("/medications", handler.SendMedication)
		r.Post("/emergency", handler.SendEmergency)

		r.Get("/scheduled", handler.ListScheduled)
		r.Delete("/scheduled", handler.CancelAllScheduled)
		r.Delete("/scheduled/{id}", handler.CancelScheduled)

		r.Post("/push/register", handler.RegisterPush)
		r.Delete("/push/register", handler.UnregisterDeviceTokens)
		r.Get("/push/status", handler.PushStatus)

		// Cross-user sends are restricted to care-team roles.
		r.With(api.RequireRoles("caregiver", "clinician", "admin")).
			Post("/push/send", handler.SendPush)
	})

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Get("/health/detailed", handler.HealthDetailed)

	// Prometheus metrics endpoint
	r.Handle("/metrics", metrics.Handler())

	// Report pool gauges while the server runs.
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				metrics.SetDBConnections(int(database.Stat().TotalConns()))
				metrics.SetRedisConnections(int(redisClient.PoolStats().TotalConns))
			}
		}
	}()

	// Setup HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr))
		serverErrors <- srv.ListenAndServe()
	}()

	// Listen for shutdown signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive a signal or server error
	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))

		// Give outstanding requests 10 seconds to complete
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			srv.Close()
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}

		logger.Info("server stopped gracefully")
	}

	return nil
}
