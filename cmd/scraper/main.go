// Command scraper runs the NSE scrape pipeline once, or on SCRAPE_INTERVAL
// when it is set.
package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/trogers1052/nse-market-service/internal/app"
	"github.com/trogers1052/nse-market-service/internal/config"
	"github.com/trogers1052/nse-market-service/internal/logging"
	"github.com/trogers1052/nse-market-service/internal/pipeline"
)

func main() {
	os.Exit(run())
}

func run() int {
	app.ConfigureEncoding()
	cfg := config.Load()
	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Error("failed to initialize")
		return 1
	}
	defer a.Close()

	if cfg.Scraper.Interval > 0 {
		if err := pipeline.NewScheduler(a.Pipeline, cfg.Scraper.Interval, logger).Start(ctx); err != nil {
			logger.WithError(err).Error("scheduler stopped")
			return 1
		}
		return 0
	}

	result, err := a.Pipeline.Run(ctx)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if encErr := enc.Encode(result); encErr != nil {
		logger.WithError(encErr).Warn("failed to write run report")
	}

	if err != nil {
		return 1
	}
	return 0
}
