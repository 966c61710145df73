package pipeline

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/trogers1052/nse-market-service/internal/models"
)

// Runner performs one scrape run
type Runner interface {
	Run(ctx context.Context) (*models.ScrapeRun, error)
}

// Scheduler runs the pipeline on a fixed interval
type Scheduler struct {
	runner   Runner
	interval time.Duration
	logger   logrus.FieldLogger
}

// NewScheduler creates a scheduler. The interval must be positive.
func NewScheduler(runner Runner, interval time.Duration, logger logrus.FieldLogger) *Scheduler {
	return &Scheduler{runner: runner, interval: interval, logger: logger}
}

// Start runs once immediately, then on every tick until ctx is cancelled.
// Failed runs are logged by the pipeline and never stop the schedule.
func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.WithField("interval", s.interval.String()).Info("scrape scheduler started")

	s.runner.Run(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scrape scheduler stopped")
			return nil
		case <-ticker.C:
			s.runner.Run(ctx)
		}
	}
}
