package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ncastellanos/figma-qa/internal/bootstrap"
	"github.com/ncastellanos/figma-qa/internal/config"
	"github.com/ncastellanos/figma-qa/internal/core/domain"
	"github.com/ncastellanos/figma-qa/internal/observability/logging"
	"github.com/ncastellanos/figma-qa/internal/observability/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_load_failed", "error", err)
		os.Exit(1)
	}
	logger := logging.Setup("worker", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics("worker")
	runner := app.NewRunner(workerMetrics)

	metricsServer := &http.Server{
		Addr:    ":" + cfg.WorkerMetricsPort,
		Handler: metricsHandler(workerMetrics),
	}
	go func() {
		logger.Info("worker_metrics_listening", "port", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("worker_metrics_server_failed", "error", err)
		}
	}()

	jobTimeout := time.Duration(cfg.JobTimeoutSeconds) * time.Second
	logger.Info("worker_subscribed", "subject", cfg.NATSSubject, "job_timeout", jobTimeout)

	err = app.Queue.SubscribeAnalysisJobs(ctx, func(handlerCtx context.Context, job domain.AnalysisJob) error {
		workerMetrics.ObserveQueueLag(time.Since(job.EnqueuedAt))
		workerMetrics.StartJob()
		start := time.Now()

		jobCtx, cancel := context.WithTimeout(handlerCtx, jobTimeout)
		defer cancel()

		runErr := runner.Run(jobCtx, job)
		workerMetrics.FinishJob(time.Since(start), runErr)
		return runErr
	})
	if err != nil {
		logger.Error("worker_subscribe_failed", "error", err)
		os.Exit(1)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("worker_metrics_shutdown_failed", "error", err)
	}
	logger.Info("worker_stopped")
}

func metricsHandler(m *metrics.WorkerMetrics) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", m.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	return mux
}
