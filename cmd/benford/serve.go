package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/miradorstack/benford-lab/internal/api"
	"github.com/miradorstack/benford-lab/internal/cache"
	"github.com/miradorstack/benford-lab/internal/catalog"
	"github.com/miradorstack/benford-lab/internal/examples"
	"github.com/miradorstack/benford-lab/internal/metrics"
	"github.com/miradorstack/benford-lab/internal/ratelimit"
	"github.com/miradorstack/benford-lab/internal/security"
	"github.com/miradorstack/benford-lab/internal/services"
	"github.com/miradorstack/benford-lab/internal/session"
	"github.com/miradorstack/benford-lab/internal/storage"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the web API, the admin health endpoint and metrics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd.Context())
		},
	}
}

type roots struct {
	uploads, plots, reports *storage.Root
}

func (a *app) roots() (roots, error) {
	var r roots
	var err error
	if r.uploads, err = storage.EnsureRoot(a.cfg.Storage.UploadDir); err != nil {
		return r, err
	}
	if r.plots, err = storage.EnsureRoot(a.cfg.Storage.PlotDir); err != nil {
		return r, err
	}
	if r.reports, err = storage.EnsureRoot(a.cfg.Storage.ReportDir); err != nil {
		return r, err
	}
	return r, nil
}

func (a *app) sweeper(r roots) *storage.Sweeper {
	return storage.NewSweeper(a.logger, a.cfg.Storage.Retention, a.cfg.Storage.CleanupInterval,
		r.uploads.Dir(), r.plots.Dir(), r.reports.Dir())
}

func (a *app) examples() *examples.Catalog {
	root, err := storage.NewRoot(a.cfg.Storage.ExamplesDir)
	if err != nil {
		a.logger.Warn("example datasets unavailable", slog.String("dir", a.cfg.Storage.ExamplesDir), slog.Any("error", err))
		return nil
	}
	list, err := examples.Load(root)
	if err != nil {
		a.logger.Warn("example manifest rejected", slog.Any("error", err))
		return nil
	}
	a.logger.Info("example datasets loaded", slog.Int("count", len(list.List())))
	return list
}

func (a *app) serve(parent context.Context) error {
	cfg, logger := a.cfg, a.logger
	logger.Info("starting benford",
		slog.String("env", cfg.Env),
		slog.String("address", cfg.Server.Address),
		slog.String("version", Version),
	)

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dirs, err := a.roots()
	if err != nil {
		return err
	}
	sweeper := a.sweeper(dirs)
	sweeper.RunNow()

	vault, err := security.NewVault(cfg.SecretKey)
	if err != nil {
		return err
	}
	cacheProvider := cache.New(ctx, cfg.Cache.Backend, cache.RedisConfig{
		URL:    cfg.Cache.RedisURL,
		Prefix: "benford:catalog",
	}, logger)
	defer cacheProvider.Close()

	limiter := ratelimit.New(ctx, ratelimit.Config{
		Requests: cfg.RateLimit.Requests,
		Window:   cfg.RateLimit.Window,
		Backend:  cfg.RateLimit.Backend,
		RedisURL: cfg.RateLimit.RedisURL,
	}, logger)

	client := catalog.NewClient(catalog.Config{
		BaseURL:          cfg.Catalog.BaseURL,
		Timeout:          cfg.Catalog.Timeout,
		MaxDownloadBytes: int64(cfg.Catalog.MaxDownloadMB) << 20,
	}, logger)
	catalogService := services.NewCatalogService(logger, client, vault, cacheProvider,
		storage.NewIntake(dirs.uploads, client.MaxDownloadBytes()),
		services.CatalogConfig{
			CallLimit:      cfg.Catalog.CallLimit,
			CacheTTL:       cfg.Catalog.CacheTTL,
			MaxPreviewRows: cfg.Catalog.MaxPreviewRows,
		})

	router := api.NewRouter(api.Deps{
		Logger:         logger,
		Sessions:       session.NewCookieStore(cfg.SecretKey, cfg.Production()),
		CSRF:           security.NewCSRFGuard(),
		Limiter:        limiter,
		Sweeper:        sweeper,
		Intake:         storage.NewIntake(dirs.uploads, cfg.Storage.MaxFileBytes()),
		Plots:          dirs.plots,
		Reports:        dirs.reports,
		Examples:       a.examples(),
		Analysis:       services.NewAnalysisService(logger, dirs.plots, dirs.reports),
		Catalog:        catalogService,
		TrustProxy:     cfg.Server.TrustProxy,
		MaxUploadBytes: cfg.Storage.MaxFileBytes(),
		MaxPreviewRows: cfg.Catalog.MaxPreviewRows,
		RequestTimeout: cfg.Server.RequestTimeout,
	})

	web, err := api.NewHTTPServer(cfg.Server.Address, router, api.HTTPOptions{
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	})
	if err != nil {
		return err
	}

	var admin *api.AdminServer
	if cfg.Server.AdminAddress != "" {
		if admin, err = api.NewAdminServer(cfg.Server.AdminAddress); err != nil {
			_ = web.Shutdown(context.Background())
			return err
		}
	}

	var metricsServer *http.Server
	if cfg.Server.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 15 * time.Second,
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("web server listening", slog.String("address", web.Address()))
		return web.Start()
	})
	if admin != nil {
		g.Go(func() error {
			logger.Info("admin server listening", slog.String("address", admin.Address()))
			return admin.Start()
		})
	}
	if metricsServer != nil {
		g.Go(func() error {
			logger.Info("metrics server listening", slog.String("address", cfg.Server.MetricsAddress))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
		defer cancel()
		if admin != nil {
			admin.Shutdown(shutdownCtx)
		}
		err := web.Shutdown(shutdownCtx)
		if metricsServer != nil {
			if mErr := metricsServer.Shutdown(shutdownCtx); mErr != nil && !errors.Is(mErr, http.ErrServerClosed) {
				logger.Warn("metrics server shutdown", slog.Any("error", mErr))
			}
		}
		return err
	})

	err = g.Wait()
	logger.Info("benford stopped")
	return err
}
