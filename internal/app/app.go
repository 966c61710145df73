// Package app wires the service's components from configuration. It is the
// shared core of cmd/server and cmd/scraper.
package app

import (
	"context"
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/trogers1052/nse-market-service/internal/api"
	"github.com/trogers1052/nse-market-service/internal/cache"
	"github.com/trogers1052/nse-market-service/internal/config"
	"github.com/trogers1052/nse-market-service/internal/database"
	"github.com/trogers1052/nse-market-service/internal/fetcher"
	"github.com/trogers1052/nse-market-service/internal/kafka"
	"github.com/trogers1052/nse-market-service/internal/pipeline"
	"github.com/trogers1052/nse-market-service/internal/query"
)

// App holds every initialized component. Cache and Producer are nil when
// Redis or Kafka are not configured.
type App struct {
	Config   *config.Config
	Logger   *logrus.Logger
	DB       *database.DB
	Cache    *cache.Cache
	Producer *kafka.Producer
	Pipeline *pipeline.Pipeline
	Queries  *query.Service

	redis *redis.Client
}

// ConfigureEncoding sets process-wide encoding options. Commands call it once
// before building anything that encodes prices: API responses, cache entries
// and Kafka events all carry decimals as JSON numbers.
func ConfigureEncoding() {
	decimal.MarshalJSONWithoutQuotes = true
}

// New connects to storage, applies migrations when enabled and builds the
// pipeline and query service
func New(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*App, error) {
	db, err := database.New(cfg.Database.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	logger.WithField("host", cfg.Database.Host).Info("connected to database")

	a := &App{Config: cfg, Logger: logger, DB: db}

	if cfg.Database.AutoMigrate {
		if err := db.Migrate(); err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		logger.Info("database migrations applied")
	}

	if cfg.Redis.Addr != "" {
		client, err := cache.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			// the cache is optional; reads go straight to the database
			logger.WithError(err).WithField("addr", cfg.Redis.Addr).Warn("redis unavailable, running without cache")
		} else {
			a.redis = client
			a.Cache = cache.New(client, "nse", cfg.Redis.TTL)
			logger.WithField("addr", cfg.Redis.Addr).Info("connected to redis")
		}
	}

	if cfg.Kafka.Enabled() {
		a.Producer = kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		logger.WithFields(logrus.Fields{
			"brokers": cfg.Kafka.Brokers,
			"topic":   cfg.Kafka.Topic,
		}).Info("kafka producer initialized")
	}

	var notifiers []pipeline.Notifier
	var queryCache query.Cache
	var stockNotifier query.StockNotifier
	if a.Cache != nil {
		notifiers = append(notifiers, a.Cache)
		queryCache = a.Cache
	}
	if a.Producer != nil {
		notifiers = append(notifiers, a.Producer)
		stockNotifier = a.Producer
	}

	f := fetcher.New(
		fetcher.WithTimeout(cfg.Scraper.Timeout),
		fetcher.WithUserAgent(cfg.Scraper.UserAgent),
		fetcher.WithRateLimit(cfg.Scraper.RateLimit),
		fetcher.WithLogger(logger),
	)
	a.Pipeline = pipeline.New(f, db, pipeline.Config{
		SourceURL:    cfg.Scraper.SourceURL,
		SourceName:   cfg.Scraper.SourceName,
		DateSelector: cfg.Scraper.DateSelector,
		MaxRetries:   cfg.Scraper.MaxRetries,
		Location:     cfg.Scraper.TimeLocation(),
	}, logger, notifiers...)

	a.Queries = query.NewService(db, queryCache, stockNotifier, logger)
	return a, nil
}

// Handler builds the HTTP handler with health checks for every configured
// dependency
func (a *App) Handler() *api.Handler {
	opts := []api.Option{
		api.WithLegacyStatus(a.Config.Server.LegacyStatus),
		api.WithHealthCheck("database", a.DB),
	}
	if a.Cache != nil {
		opts = append(opts, api.WithHealthCheck("cache", a.Cache))
	}
	return api.NewHandler(a.Queries, a.Pipeline, a.Logger, opts...)
}

// Consumer builds the cache-invalidation consumer. It returns nil unless
// Kafka consumption is enabled and a cache is configured.
func (a *App) Consumer() *kafka.Consumer {
	if !a.Config.Kafka.Enabled() || !a.Config.Kafka.Consume || a.Cache == nil {
		return nil
	}
	return kafka.NewConsumer(a.Config.Kafka.Brokers, a.Config.Kafka.Topic, replicaGroupID(a.Config.Kafka.GroupID), a.Cache, a.Logger)
}

// Close releases every connection
func (a *App) Close() {
	if a.Producer != nil {
		if err := a.Producer.Close(); err != nil {
			a.Logger.WithError(err).Warn("failed to close kafka producer")
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.Logger.WithError(err).Warn("failed to close redis client")
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Logger.WithError(err).Warn("failed to close database")
		}
	}
}

// replicaGroupID gives every replica its own consumer group so each one sees
// every event and drops its own cache view
func replicaGroupID(base string) string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return base
	}
	return base + "-" + host
}
