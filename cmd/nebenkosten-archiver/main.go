// Command nebenkosten-archiver consumes calculation events from AMQP and
// appends one row per tenant to a spreadsheet archive.
package main

import (
	"context"
	"errors"
	"os"

	"golang.org/x/sync/errgroup"

	"nebenkosten/internal/amqp"
	"nebenkosten/internal/cli"
	"nebenkosten/internal/config"
	applog "nebenkosten/internal/log"
	"nebenkosten/internal/sheets"
	gsheet "nebenkosten/internal/sheets/google"
	memsheet "nebenkosten/internal/sheets/memory"
	"nebenkosten/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentArchive, os.Getenv("LOG_LEVEL"))
	cfg := cli.MustLoadConfig(logger, (*config.Config).ValidateArchiver)

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

	logger.Info("Starting nebenkosten-archiver", "queue", cfg.AMQPQueue)
	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Archiver stopped with error", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Archiver stopped gracefully")
}

func run(ctx context.Context, cfg *config.Config, logger *applog.Logger) error {
	archive, err := newArchive(ctx, cfg, logger)
	if err != nil {
		return err
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		return err
	}
	defer client.Close()

	w := worker.NewArchiveWorker(archive)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := client.ConsumeCalculations(gctx, w.Handle)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	return g.Wait()
}

// newArchive uses Google Sheets when a spreadsheet is configured and an
// in-memory archive otherwise, which is only useful for local runs.
func newArchive(ctx context.Context, cfg *config.Config, logger *applog.Logger) (sheets.CalculationArchiver, error) {
	if cfg.GoogleSpreadsheetID == "" {
		logger.Warn("GOOGLE_SPREADSHEET_ID not set, archiving in memory only")
		return memsheet.New(), nil
	}
	client, err := gsheet.NewFromEnv(ctx)
	if err != nil {
		return nil, err
	}
	logger.Info("Google Sheets archive initialized",
		"spreadsheet_id", cfg.GoogleSpreadsheetID,
		"sheet", client.SheetName(cfg.ReferenceYear))
	return client, nil
}
