package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noahxzhu/medtracker/internal/config"
	"github.com/noahxzhu/medtracker/internal/metrics"
	"github.com/noahxzhu/medtracker/internal/pushover"
	"github.com/noahxzhu/medtracker/internal/records"
	"github.com/noahxzhu/medtracker/internal/storage"
	"github.com/noahxzhu/medtracker/internal/timing"
	"github.com/noahxzhu/medtracker/internal/worker"
	"github.com/noahxzhu/medtracker/internal/workflow"
)

func main() {
	configPath := os.Getenv("MEDTRACKER_CONFIG")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(newLogger(cfg.Log))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Init Storage
	store, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		slog.Error("Failed to open storage", "driver", cfg.Storage.Driver, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	svc, w := newEngine(cfg, store, m)
	subs, err := svc.Find(ctx, "")
	if err != nil {
		slog.Error("Failed to load substances", "error", err)
		os.Exit(1)
	}
	slog.Info("Storage ready", "driver", cfg.Storage.Driver, "substances", len(subs))

	// Start Worker
	if w != nil {
		go w.Start(ctx)
	}

	var httpServer *http.Server
	if cfg.Metrics.Addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
		httpServer = &http.Server{
			Addr:              cfg.Metrics.Addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			slog.Info("Serving metrics", "addr", cfg.Metrics.Addr)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("HTTP server error", "error", err)
				os.Exit(1)
			}
		}()
	}

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down...")
	cancel()

	if httpServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server forced to shutdown", "error", err)
		}
	}
	slog.Info("Exited")
}

// newEngine builds the workflow service over store. When reminders are
// enabled and Pushover is configured it also returns the reminder worker,
// refreshed after every commit made through the service.
func newEngine(cfg *config.Config, store storage.KV, m *metrics.Metrics) (*workflow.Service, *worker.Worker) {
	repo := records.NewRepository(store)
	resolver := timing.NewResolverWith(cfg.Timing)
	svc := workflow.NewService(repo, resolver, m)

	client := pushover.NewClient(cfg.Pushover.Token, cfg.Pushover.User)
	if cfg.Pushover.Endpoint != "" {
		client.Endpoint = cfg.Pushover.Endpoint
	}
	switch {
	case !cfg.Reminders.Enabled:
		slog.Info("Reminders disabled")
		return svc, nil
	case !client.Configured():
		slog.Warn("Reminders enabled but pushover credentials are missing")
		return svc, nil
	}

	w := worker.NewWorker(repo, resolver, client)
	w.Poll = cfg.Reminders.PollInterval
	w.SetMetrics(m)
	svc.SetOnCommit(w.Refresh)
	return svc, w
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
