// Command nebenkosten serves the utility-cost statement form.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"

	"golang.org/x/sync/errgroup"

	"nebenkosten/internal/apportion"
	"nebenkosten/internal/backend"
	"nebenkosten/internal/cache"
	"nebenkosten/internal/cli"
	"nebenkosten/internal/config"
	apphttp "nebenkosten/internal/http"
	applog "nebenkosten/internal/log"
	"nebenkosten/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentApp, os.Getenv("LOG_LEVEL"))
	cfg := cli.MustLoadConfig(logger, (*config.Config).Validate)

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Server stopped with error", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

func run(ctx context.Context, cfg *config.Config, logger *applog.Logger) error {
	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	res, err := backend.NewFactory(logger.WithComponent(applog.ComponentHistory).Logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		return err
	}
	if res.Cleanup != nil {
		defer func() {
			if err := res.Cleanup(); err != nil {
				logger.Error("Backend cleanup failed", applog.FieldError, err)
			}
		}()
	}

	var (
		results  cache.Cache[apportion.Result]
		caches   = cache.NewManager(logger.WithComponent(applog.ComponentCache).Logger)
		cacheTTL = cfg.ResultCacheTTL
	)
	if cfg.ResultCacheSize > 0 && cacheTTL > 0 {
		lru := cache.NewLRUCache[apportion.Result](cfg.ResultCacheSize, cacheTTL)
		caches.Register(lru)
		results = lru
	}

	svc := services.NewCalculationService(cfg.ReferenceYear, res.Store, res.Publisher, results)

	srv := apphttp.NewServer(":"+cfg.Port, svc, apphttp.Options{
		Logger:         logger.WithComponent(applog.ComponentHTTP),
		Ready:          res.Ready,
		TrustedProxies: cfg.TrustedProxies,
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting nebenkosten server",
			"port", cfg.Port,
			applog.FieldYear, cfg.ReferenceYear,
			applog.FieldBackend, cfg.HistoryBackend,
			"events", res.Publisher != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if results != nil {
		g.Go(func() error {
			return caches.Run(gctx, cacheTTL)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down", applog.FieldOperation, applog.OpShutdown)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
