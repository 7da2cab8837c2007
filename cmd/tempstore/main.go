package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"tempstore/internal/backend"
	"tempstore/internal/core"
	"tempstore/internal/meta"
	"tempstore/internal/metrics"
	"tempstore/internal/tempfile"
)

func Run(ctx context.Context) error {

	configPath := flag.String("config", "tempstore.yaml", "path to the configuration file")

	flag.Parse()

	handler := log.NewWithOptions(os.Stdout, log.Options{
		Level:           log.DebugLevel,
		TimeFormat:      time.RFC3339,
		ReportTimestamp: true,
		TimeFunction:    log.NowUTC,
		ReportCaller:    true,
	})

	slog.SetDefault(slog.New(handler))

	cfg, err := core.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Ensure data directory is absolute for easier debugging.
	absDataDir, err := filepath.Abs(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("failed to resolve data directory: %w", err)
	}
	cfg.DataDir = absDataDir

	if err := os.MkdirAll(absDataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	store, err := meta.OpenSQLite(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open record store: %w", err)
	}
	defer store.Close()

	active := cfg.BuildBackend()
	if err := active.Init(ctx); err != nil {
		return fmt.Errorf("failed to initialize %s backend: %w", active.Kind(), err)
	}

	prom := metrics.NewProm("tempstore")
	if err := prom.Register(prometheus.DefaultRegisterer); err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	manager, err := tempfile.NewManager(ctx, tempfile.Config{
		Store:           store,
		Backend:         active,
		Local:           backend.NewLocal(cfg.DataDir),
		DefaultTTL:      cfg.DefaultTTL(),
		MaxStorageBytes: cfg.MaxStorageBytes(),
		MaxStorageCount: cfg.MaxStorageCount,
		SweepInterval:   cfg.SweepInterval(),
		PublicBasePath:  cfg.PublicBasePath,
		Metrics:         prom,
	})
	if err != nil {
		return fmt.Errorf("failed to create temp file manager: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	eg, ctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		slog.Info("Starting expiry sweep loop", "backend", active.Kind())
		return manager.Run(ctx)
	})

	if cfg.MetricsListen != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())

		metricsServer := &http.Server{
			Addr:              cfg.MetricsListen,
			Handler:           mux,
			ReadHeaderTimeout: 20 * time.Second,
			ReadTimeout:       20 * time.Second,
			WriteTimeout:      20 * time.Second,
		}

		eg.Go(func() error {
			<-ctx.Done()
			return metricsServer.Shutdown(context.Background())
		})

		eg.Go(func() error {
			slog.Info("Starting metrics server", "addr", cfg.MetricsListen)
			err := metricsServer.ListenAndServe()
			if !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	slog.Info("Tempstore started")
	return eg.Wait()

}

func main() {
	if err := Run(context.Background()); err != nil {
		slog.Error("Tempstore exited with error", "error", err)
	}
}
