package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/trogers1052/nse-market-service/internal/api"
	"github.com/trogers1052/nse-market-service/internal/app"
	"github.com/trogers1052/nse-market-service/internal/config"
	"github.com/trogers1052/nse-market-service/internal/logging"
	"github.com/trogers1052/nse-market-service/internal/pipeline"
)

func main() {
	app.ConfigureEncoding()
	cfg := config.Load()
	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to initialize")
	}
	defer a.Close()

	srv := &http.Server{
		Addr:        cfg.Server.Addr(),
		Handler:     api.SetupRoutes(a.Handler(), logger),
		ReadTimeout: 15 * time.Second,
		// a scrape triggered over HTTP may retry the source several times
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.WithField("addr", srv.Addr).Info("starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if cfg.Scraper.Interval > 0 {
		scheduler := pipeline.NewScheduler(a.Pipeline, cfg.Scraper.Interval, logger)
		g.Go(func() error {
			return scheduler.Start(gctx)
		})
	}

	if consumer := a.Consumer(); consumer != nil {
		g.Go(func() error {
			return consumer.Start(gctx)
		})
	}

	if err := g.Wait(); err != nil {
		logger.WithError(err).Error("server stopped with error")
		return
	}
	logger.Info("server stopped")
}
