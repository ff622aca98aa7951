package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"bankroll/internal/auth"
	"bankroll/internal/backend"
	"bankroll/internal/cli"
	"bankroll/internal/config"
	apphttp "bankroll/internal/http"
	applog "bankroll/internal/log"
	"bankroll/internal/metrics"
	"bankroll/internal/services"

	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentApp)

	cfg, err := cli.LoadConfig((*config.Config).Validate)
	if err != nil {
		cli.Fatal(logger, "Configuration validation failed", err)
	}

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		cli.Fatal(logger, "Invalid backend configuration", err)
	}
	res, err := backend.NewFactory(logger.WithComponent(applog.ComponentBackend).Logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize backend", err)
	}
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", applog.FieldError, err)
		}
	}()

	m := metrics.New()
	ledger := services.NewRecordService(
		res.Store,
		res.Caches.Records,
		res.Caches.Submissions,
		res.Publisher,
		m,
		services.RecordServiceConfig{
			InitialBank:  cfg.Bank(),
			Location:     cfg.Location(),
			StoreTimeout: cfg.StoreTimeout,
		},
	)
	provider := auth.NewProvider(res.Store, res.Caches.Sessions, auth.Options{
		MinPasswordLength:   cfg.AuthMinPassword,
		RequireConfirmation: cfg.AuthRequireConfirmation,
		SignupEnabled:       cfg.AuthSignupEnabled,
		SessionTTL:          cfg.SessionTTL,
	}, logger.Logger)

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Options{
		Ledger:             ledger,
		Auth:               provider,
		Metrics:            m,
		Health:             res.Store.Ping,
		Logger:             logger,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	})
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting bankroll server",
			"port", cfg.Port,
			"backend", cfg.DataBackend,
			"cache", cfg.CacheBackend,
			"timezone", cfg.Timezone,
			"export", res.Publisher != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down", applog.FieldOperation, applog.OpShutdown)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		return
	}
	logger.Info("Server stopped gracefully")
}
