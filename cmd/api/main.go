package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/mcclellann/cuotas/pkg/config"
	"github.com/mcclellann/cuotas/pkg/ledger"
	"github.com/mcclellann/cuotas/pkg/logger"
	"github.com/mcclellann/cuotas/pkg/metrics"
	"github.com/mcclellann/cuotas/pkg/store"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zapLog, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zapLog.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dialect, err := store.ParseDialect(cfg.Database.Driver)
	if err != nil {
		zapLog.Fatal("invalid database driver", zap.Error(err))
	}
	sqlStore, err := store.Open(ctx, dialect, cfg.Database.DSN, store.Options{MaxOpenConns: cfg.Database.MaxOpenConns})
	if err != nil {
		zapLog.Fatal("failed to initialize store", zap.String("driver", string(dialect)), zap.Error(err))
	}
	defer sqlStore.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	led := ledger.NewLedger(sqlStore, ledger.WithLogger(zapLog), ledger.WithMetrics(m))
	server := NewServer(led, zapLog, m, registry)

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      server.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		zapLog.Info("server starting", zap.String("addr", cfg.Server.Addr), zap.String("driver", string(dialect)))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			zapLog.Error("server failed", zap.Error(err))
		}
	case <-ctx.Done():
		zapLog.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("graceful shutdown failed", zap.Error(err))
	}
	zapLog.Info("server stopped")
}
