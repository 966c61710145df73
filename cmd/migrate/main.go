// Command migrate applies pending database migrations. With -prune-before it
// also deletes price observations dated before the given day.
package main

import (
	"context"
	"flag"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/trogers1052/nse-market-service/internal/config"
	"github.com/trogers1052/nse-market-service/internal/database"
	"github.com/trogers1052/nse-market-service/internal/logging"
)

func main() {
	pruneBefore := flag.String("prune-before", "", "delete observations dated before this day (YYYY-MM-DD)")
	flag.Parse()

	cfg := config.Load()
	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)

	var cutoff time.Time
	if *pruneBefore != "" {
		var err error
		cutoff, err = time.Parse(time.DateOnly, *pruneBefore)
		if err != nil {
			logger.WithError(err).Fatal("invalid -prune-before date")
		}
	}

	db, err := database.New(cfg.Database.ConnectionString())
	if err != nil {
		logger.WithError(err).Fatal("failed to connect to database")
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		logger.WithError(err).Fatal("failed to run migrations")
	}
	logger.Info("migrations applied")

	if cutoff.IsZero() {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	deleted, err := db.DeleteObservationsOlderThan(ctx, cutoff)
	if err != nil {
		logger.WithError(err).Fatal("failed to prune observations")
	}
	logger.WithFields(logrus.Fields{
		"before":  cutoff.Format(time.DateOnly),
		"deleted": deleted,
	}).Info("old observations pruned")
}
