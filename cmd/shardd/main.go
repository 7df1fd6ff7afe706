// Command shardd runs the sharding orchestrator: the HTTP API, the websocket
// event stream, the shard health monitor and the optional metrics server.
//
// Usage:
//
//	shardd -config shardd.yaml
//	DATABASE_URL=postgres://... SHARDD_STORE_DRIVER=postgres shardd -migrate
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/getpup/sharding-orchestrator/config"
	"github.com/getpup/sharding-orchestrator/logging"
	"github.com/getpup/sharding-orchestrator/metrics"
)

func main() {
	var (
		configPath = flag.String("config", "", "Path to a YAML configuration file")
		migrate    = flag.Bool("migrate", false, "Create the metadata tables before starting (postgres store only)")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}
	if *migrate {
		cfg.Store.Migrate = true
	}

	zl, err := logging.New(cfg.Logging.Level, cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = zl.Sync() }()

	if err := run(cfg, zl); err != nil {
		zl.Error("shardd stopped with error", zap.Error(err))
		_ = zl.Sync()
		os.Exit(1)
	}
}

func run(cfg config.Config, zl *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logging.NewZap(zl))
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.start(ctx); err != nil {
		return err
	}

	httpSrv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           a.api,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		zl.Info("shardd listening", zap.String("addr", cfg.HTTP.Addr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	var metricsSrv *metrics.Server
	if cfg.Metrics.Addr != "" && metrics.Enabled(cfg.Metrics.Enabled) {
		metricsSrv = metrics.NewServer(cfg.Metrics.Addr)
		metricsSrv.Start()
		zl.Info("metrics server started", zap.String("addr", cfg.Metrics.Addr))
	}

	var runErr error
	select {
	case <-ctx.Done():
		zl.Info("shutdown signal received")
	case runErr = <-serveErr:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		zl.Error("http shutdown failed", zap.Error(err))
	}
	if metricsSrv != nil {
		if err := metricsSrv.Err(); err != nil {
			zl.Error("metrics server failed", zap.Error(err))
		}
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			zl.Error("metrics shutdown failed", zap.Error(err))
		}
	}

	return runErr
}
