package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/lesson-booking-agent/cmd/mainconfig"
	"github.com/wolfman30/lesson-booking-agent/internal/api/router"
	"github.com/wolfman30/lesson-booking-agent/internal/app/bootstrap"
	appconfig "github.com/wolfman30/lesson-booking-agent/internal/config"
	"github.com/wolfman30/lesson-booking-agent/internal/conversation"
	"github.com/wolfman30/lesson-booking-agent/internal/http/handlers"
	"github.com/wolfman30/lesson-booking-agent/internal/messaging"
	"github.com/wolfman30/lesson-booking-agent/internal/observability/metrics"
	inventoryworker "github.com/wolfman30/lesson-booking-agent/internal/worker/inventory"
	"github.com/wolfman30/lesson-booking-agent/pkg/logging"
)

const (
	adminRatePerSecond = 2
	adminBurst         = 10
)

type metricsBundle struct {
	handler   http.Handler
	booking   *metrics.BookingMetrics
	messaging *metrics.MessagingMetrics
}

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting lesson booking API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}
	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		defer redisClient.Close()
	}

	m := setupMetrics()
	agent, err := bootstrap.BuildAgent(ctx, bootstrap.AgentDeps{
		Config:           cfg,
		AWS:              awsCfg,
		Redis:            redisClient,
		BookingMetrics:   m.booking,
		MessagingMetrics: m.messaging,
		Logger:           logger,
	})
	if err != nil {
		logger.Error("failed to build booking agent", "error", err)
		os.Exit(1)
	}
	defer agent.Close()

	queue, queueKind := bootstrap.BuildQueue(cfg, awsCfg, logger)
	publisher := conversation.NewPublisher(queue, logger)
	worker := setupInlineWorker(ctx, cfg, queueKind, agent, queue, redisClient, logger)

	seeder := inventoryworker.NewSeedPoller(agent.Coordinator, logger).
		WithInterval(cfg.SeedInterval).
		WithHorizonDays(cfg.SeedHorizonDays).
		WithLocation(agent.Location)
	go seeder.Run(ctx)

	messagingHandler := messaging.NewHandler(cfg.TwilioWebhookSecret, cfg.PublicBaseURL, publisher, logger)
	messagingHandler.SetObserver(m.messaging)

	r := router.New(&router.Config{
		Logger:           logger,
		MessagingHandler: messagingHandler,
		AdminCalendar: handlers.NewAdminCalendarHandler(handlers.AdminCalendarConfig{
			Inventory:   agent.Coordinator,
			Location:    agent.Location,
			HorizonDays: cfg.SeedHorizonDays,
			Logger:      logger,
		}),
		AdminAuthSecret: cfg.AdminJWTSecret,
		MetricsHandler:  m.handler,
		AdminRateLimit:  adminRatePerSecond,
		AdminBurst:      adminBurst,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	cancel()
	if worker != nil {
		waitForInlineWorker(worker, logger)
	}
	logger.Info("server stopped")
}

func setupMetrics() metricsBundle {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return metricsBundle{
		handler:   promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		booking:   metrics.NewBookingMetrics(reg),
		messaging: metrics.NewMessagingMetrics(reg),
	}
}

// setupInlineWorker consumes the in-process queue. With SQS the standalone
// conversation-worker owns consumption and nil is returned.
func setupInlineWorker(ctx context.Context, cfg *appconfig.Config, queueKind string, agent *bootstrap.Agent, queue conversation.Queue, redisClient *redis.Client, logger *logging.Logger) *conversation.Worker {
	if queueKind != "memory" {
		logger.Info("inline worker disabled; messages are consumed by conversation-worker")
		return nil
	}
	worker := bootstrap.BuildWorker(agent, queue, redisClient, cfg, logger)
	worker.Start(ctx)
	logger.Info("inline conversation worker started", "workers", cfg.WorkerCount)
	return worker
}

func waitForInlineWorker(worker *conversation.Worker, logger *logging.Logger) {
	done := make(chan struct{})
	go func() {
		worker.Wait()
		close(done)
	}()
	select {
	case <-done:
		logger.Info("inline conversation worker stopped")
	case <-time.After(10 * time.Second):
		logger.Warn("inline conversation worker shutdown timed out")
	}
}
