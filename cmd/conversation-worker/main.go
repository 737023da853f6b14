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
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/lesson-booking-agent/cmd/mainconfig"
	"github.com/wolfman30/lesson-booking-agent/internal/app/bootstrap"
	appconfig "github.com/wolfman30/lesson-booking-agent/internal/config"
	"github.com/wolfman30/lesson-booking-agent/internal/observability/metrics"
	"github.com/wolfman30/lesson-booking-agent/pkg/logging"
)

// The worker holds every conversation in process memory, so run a single
// replica per queue.
func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	awsConfig, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}
	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		defer redisClient.Close()
	}

	reg := prometheus.NewRegistry()
	agent, err := bootstrap.BuildAgent(ctx, bootstrap.AgentDeps{
		Config:           cfg,
		AWS:              awsConfig,
		Redis:            redisClient,
		BookingMetrics:   metrics.NewBookingMetrics(reg),
		MessagingMetrics: metrics.NewMessagingMetrics(reg),
		Logger:           logger,
	})
	if err != nil {
		logger.Error("failed to build booking agent", "error", err)
		os.Exit(1)
	}
	defer agent.Close()

	queue, kind := bootstrap.BuildQueue(cfg, awsConfig, logger)
	if kind != "sqs" {
		logger.Error("conversation-worker requires CONVERSATION_QUEUE_URL and USE_MEMORY_QUEUE=false")
		os.Exit(1)
	}
	worker := bootstrap.BuildWorker(agent, queue, redisClient, cfg, logger)
	worker.Start(ctx)
	logger.Info("conversation worker started", "workers", cfg.WorkerCount)

	metricsSrv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics listener stopped", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down conversation worker...")
	cancel()

	doneCtx, doneCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer doneCancel()
	_ = metricsSrv.Shutdown(doneCtx)

	waitCh := make(chan struct{})
	go func() {
		worker.Wait()
		close(waitCh)
	}()

	select {
	case <-waitCh:
		logger.Info("conversation worker stopped")
	case <-doneCtx.Done():
		logger.Error("conversation worker shutdown timed out", "error", doneCtx.Err())
	}
}
