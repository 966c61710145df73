// Package pipeline runs the scrape: fetch, parse, normalize, upsert, notify.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"github.com/trogers1052/nse-market-service/internal/database"
	"github.com/trogers1052/nse-market-service/internal/fetcher"
	"github.com/trogers1052/nse-market-service/internal/models"
	"github.com/trogers1052/nse-market-service/internal/normalizer"
	"github.com/trogers1052/nse-market-service/internal/parser"
)

const previewSize = 10

// Fetcher retrieves the raw source page
type Fetcher interface {
	Fetch(ctx context.Context, sourceURL string) ([]byte, error)
}

// Repository is the storage the pipeline writes through
type Repository interface {
	GetPriorObservations(ctx context.Context, keys []models.ObservationKey) (map[models.ObservationKey]*models.PriceObservation, error)
	UpsertBatch(ctx context.Context, observations []models.PriceObservation) (*database.UpsertResult, error)
}

// Notifier is told about every committed batch. Notifiers never see
// uncommitted data and their failures never fail a run.
type Notifier interface {
	PricesUpdated(ctx context.Context, event models.PriceEvent) error
}

// Config holds the pipeline's source settings
type Config struct {
	SourceURL    string
	SourceName   string
	DateSelector string
	// MaxRetries bounds fetch retries after the first attempt
	MaxRetries    uint64
	RetryInterval time.Duration

	// Location is the exchange timezone used to date pages without a date
	Location *time.Location
}

// Pipeline runs one scrape at a time
type Pipeline struct {
	fetcher   Fetcher
	repo      Repository
	notifiers []Notifier
	cfg       Config
	logger    logrus.FieldLogger
	now       func() time.Time

	mu sync.Mutex
}

// New creates a pipeline
func New(f Fetcher, repo Repository, cfg Config, logger logrus.FieldLogger, notifiers ...Notifier) *Pipeline {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 2 * time.Second
	}
	return &Pipeline{
		fetcher:   f,
		repo:      repo,
		notifiers: notifiers,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// Run performs one scrape. It always returns a run report; the error is a
// *RunError when the run was aborted, in which case nothing was persisted.
func (p *Pipeline) Run(ctx context.Context) (*models.ScrapeRun, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	start := p.now()
	run := &models.ScrapeRun{
		Source:    p.cfg.SourceName,
		Timestamp: start.UTC(),
		Skipped:   []models.SkippedRow{},
		Failed:    []models.FailedRow{},
	}
	log := p.logger.WithField("source", p.cfg.SourceName)

	err := p.run(ctx, run, start)
	run.Duration = p.now().Sub(start).String()
	if err != nil {
		run.Message = err.Error()
		log.WithError(err).WithField("duration", run.Duration).Error("scrape run failed")
		return run, err
	}

	log.WithFields(logrus.Fields{
		"total":    run.Total,
		"inserted": run.Inserted,
		"updated":  run.Updated,
		"skipped":  len(run.Skipped),
		"failed":   len(run.Failed),
		"duration": run.Duration,
	}).Info("scrape run complete")
	return run, nil
}

func (p *Pipeline) run(ctx context.Context, run *models.ScrapeRun, start time.Time) error {
	body, err := p.fetch(ctx)
	if err != nil {
		return &RunError{Stage: StageFetch, Err: err}
	}

	table, err := parser.Parse(body, parser.Options{
		DateSelector: p.cfg.DateSelector,
		DefaultDate:  start.In(p.cfg.Location).Format(time.DateOnly),
	})
	if err != nil {
		return &RunError{Stage: StageParse, Err: err}
	}

	rows := slices.Collect(table.Rows())
	run.Total = len(rows)

	priors, err := p.repo.GetPriorObservations(ctx, normalizer.PriorKeys(rows))
	if err != nil {
		return &RunError{Stage: StagePersist, Err: err}
	}

	batch := normalizer.NormalizeBatch(rows, priors)
	run.Skipped = append(run.Skipped, batch.Skipped...)
	for _, skip := range batch.Skipped {
		p.logger.WithFields(logrus.Fields{
			"row":    skip.Index,
			"symbol": skip.Symbol,
			"reason": skip.Reason,
			"detail": skip.Detail,
		}).Warn("skipped source row")
	}
	if len(batch.Observations) == 0 {
		return &RunError{Stage: StageNormalize, Err: fmt.Errorf("%w: %d rows skipped", ErrNoValidRows, len(batch.Skipped))}
	}

	result, err := p.repo.UpsertBatch(ctx, batch.Observations)
	if err != nil {
		return &RunError{Stage: StagePersist, Err: err}
	}

	run.Inserted, run.Updated = result.Inserted, result.Updated
	run.Failed = append(run.Failed, result.Failed...)
	run.Success = true
	run.Message = fmt.Sprintf("Successfully scraped and saved %d NSE stocks", result.Inserted+result.Updated)
	run.Data = batch.Observations[:min(previewSize, len(batch.Observations))]

	if result.Inserted+result.Updated > 0 {
		p.notify(ctx, priceEvent(p.cfg.SourceName, batch.Observations, result, p.now()))
	}
	return nil
}

// fetch retries transient failures with exponential backoff. HTTP 4xx
// responses other than 429 are not retried.
func (p *Pipeline) fetch(ctx context.Context) ([]byte, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = p.cfg.RetryInterval
	policy.MaxElapsedTime = 0

	var body []byte
	attempt := 0
	operation := func() error {
		attempt++
		b, err := p.fetcher.Fetch(ctx, p.cfg.SourceURL)
		if err != nil {
			var fetchErr *fetcher.Error
			if errors.As(err, &fetchErr) && !fetchErr.Transient() {
				return backoff.Permanent(err)
			}
			return err
		}
		body = b
		return nil
	}
	notify := func(err error, wait time.Duration) {
		p.logger.WithError(err).WithFields(logrus.Fields{
			"attempt":  attempt,
			"retry_in": wait.String(),
		}).Warn("fetch failed, retrying")
	}

	b := backoff.WithContext(backoff.WithMaxRetries(policy, p.cfg.MaxRetries), ctx)
	if err := backoff.RetryNotify(operation, b, notify); err != nil {
		return nil, err
	}
	return body, nil
}

func (p *Pipeline) notify(ctx context.Context, event models.PriceEvent) {
	for _, n := range p.notifiers {
		if err := n.PricesUpdated(ctx, event); err != nil {
			p.logger.WithError(err).WithField("notifier", fmt.Sprintf("%T", n)).Warn("failed to notify prices updated")
		}
	}
}

func priceEvent(source string, observations []models.PriceObservation, result *database.UpsertResult, now time.Time) models.PriceEvent {
	var symbols, dates []string
	for _, obs := range observations {
		symbols = append(symbols, obs.Symbol)
		dates = append(dates, obs.Date.Format(time.DateOnly))
	}
	slices.Sort(symbols)
	slices.Sort(dates)

	return models.PriceEvent{
		EventType:    models.EventPricesUpdated,
		Source:       source,
		Symbols:      slices.Compact(symbols),
		TradingDates: slices.Compact(dates),
		Inserted:     result.Inserted,
		Updated:      result.Updated,
		Timestamp:    now.UTC(),
	}
}
