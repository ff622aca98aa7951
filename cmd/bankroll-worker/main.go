package main

import (
	"context"
	"errors"
	"time"

	"bankroll/internal/amqp"
	"bankroll/internal/cli"
	"bankroll/internal/config"
	applog "bankroll/internal/log"
	"bankroll/internal/metrics"
	gsheet "bankroll/internal/sheets/google"
	"bankroll/internal/worker"

	"golang.org/x/sync/errgroup"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentWorker)
	logger.Info("Starting bankroll-worker")

	cfg, err := cli.LoadConfig((*config.Config).ValidateWorker)
	if err != nil {
		cli.Fatal(logger, "Configuration validation failed", err)
	}

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

	sheets, err := gsheet.NewClient(ctx, gsheet.Config{
		SpreadsheetID:      cfg.GoogleSpreadsheetID,
		SheetBase:          cfg.GoogleSheetName,
		ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
		ServiceAccountFile: cfg.GoogleServiceAccountFile,
	})
	if err != nil {
		cli.Fatal(logger, "Failed to initialize Google Sheets client", err)
	}
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize AMQP client", err)
	}
	defer client.Close()

	m := metrics.New()
	exporter := worker.NewExportWorker(sheets, m)
	metricsSrv := m.StartServer(cfg.MetricsAddr, client.Ping)
	logger.Info("Metrics server listening", "addr", cfg.MetricsAddr)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := client.ConsumeRecordEvents(gctx, exporter.HandleRecordEvent)
		if gctx.Err() != nil {
			return nil
		}
		if err == nil {
			err = errors.New("record event consumer stopped")
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return metricsSrv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Worker stopped with error", applog.FieldError, err)
		return
	}
	logger.Info("Worker shutdown complete")
}
