// Package query serves read-side lookups over stored price observations,
// fronted by an optional read-through cache.
package query

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/trogers1052/nse-market-service/internal/models"
)

const (
	DefaultHistoryDays = 30
	MaxHistoryDays     = 365
	DefaultMoversLimit = 5
	MaxMoversLimit     = 50
)

// Repository is the storage the service reads from
type Repository interface {
	GetLatestAll(ctx context.Context) ([]*models.PriceObservation, error)
	GetLatest(ctx context.Context, symbol string) (*models.PriceObservation, error)
	GetHistory(ctx context.Context, symbol string, days int) ([]*models.PriceObservation, error)
	GetTopMovers(ctx context.Context, limit int) (*models.TopMovers, error)
	GetMarketSummary(ctx context.Context) (*models.MarketSummary, error)
	GetStockReference(ctx context.Context, symbol string) (*models.StockReference, error)
	GetAllStockReferences(ctx context.Context) ([]*models.StockReference, error)
	UpdateStockProfile(ctx context.Context, symbol string, update models.StockProfileUpdate) (*models.StockReference, error)
}

// Cache stores JSON-encoded query results
type Cache interface {
	Key(ctx context.Context, name string) (string, error)
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any) error
	Invalidate(ctx context.Context) error
}

// StockNotifier is told when a stock's reference data changed
type StockNotifier interface {
	StockUpdated(ctx context.Context, stock *models.StockReference) error
}

// Service answers read queries. Cache and notifier are optional.
type Service struct {
	repo     Repository
	cache    Cache
	notifier StockNotifier
	logger   logrus.FieldLogger
}

// NewService creates a query service. cache and notifier may be nil.
func NewService(repo Repository, cache Cache, notifier StockNotifier, logger logrus.FieldLogger) *Service {
	return &Service{repo: repo, cache: cache, notifier: notifier, logger: logger}
}

// LatestPrices returns the most recent observation of every symbol, ordered
// by symbol. An empty store yields an empty slice.
func (s *Service) LatestPrices(ctx context.Context) ([]*models.PriceObservation, error) {
	return cached(ctx, s, "latest", func() ([]*models.PriceObservation, error) {
		return s.repo.GetLatestAll(ctx)
	})
}

// History returns up to days observations for symbol, most recent first.
// A zero days means the default window.
func (s *Service) History(ctx context.Context, symbol string, days int) ([]*models.PriceObservation, error) {
	if days == 0 {
		days = DefaultHistoryDays
	}
	if days < 1 || days > MaxHistoryDays {
		return nil, &InvalidArgumentError{Field: "days", Message: fmt.Sprintf("must be between 1 and %d", MaxHistoryDays)}
	}
	symbol, err := normalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}
	return cached(ctx, s, fmt.Sprintf("history:%s:%d", symbol, days), func() ([]*models.PriceObservation, error) {
		return s.repo.GetHistory(ctx, symbol, days)
	})
}

// Latest returns the most recent observation for symbol
func (s *Service) Latest(ctx context.Context, symbol string) (*models.PriceObservation, error) {
	symbol, err := normalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}
	return cached(ctx, s, "latest:"+symbol, func() (*models.PriceObservation, error) {
		return s.repo.GetLatest(ctx, symbol)
	})
}

// TopMovers returns up to limit gainers and losers of the latest snapshot.
// A zero limit means the default.
func (s *Service) TopMovers(ctx context.Context, limit int) (*models.TopMovers, error) {
	if limit == 0 {
		limit = DefaultMoversLimit
	}
	if limit < 1 || limit > MaxMoversLimit {
		return nil, &InvalidArgumentError{Field: "limit", Message: fmt.Sprintf("must be between 1 and %d", MaxMoversLimit)}
	}
	return cached(ctx, s, fmt.Sprintf("movers:%d", limit), func() (*models.TopMovers, error) {
		return s.repo.GetTopMovers(ctx, limit)
	})
}

// MarketSummary aggregates the latest snapshot
func (s *Service) MarketSummary(ctx context.Context) (*models.MarketSummary, error) {
	return cached(ctx, s, "summary", func() (*models.MarketSummary, error) {
		return s.repo.GetMarketSummary(ctx)
	})
}

// StockProfile returns the reference data of a stock
func (s *Service) StockProfile(ctx context.Context, symbol string) (*models.StockReference, error) {
	symbol, err := normalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}
	return cached(ctx, s, "profile:"+symbol, func() (*models.StockReference, error) {
		return s.repo.GetStockReference(ctx, symbol)
	})
}

// Stocks lists the reference data of every known stock, ordered by symbol
func (s *Service) Stocks(ctx context.Context) ([]*models.StockReference, error) {
	return cached(ctx, s, "stocks", func() ([]*models.StockReference, error) {
		return s.repo.GetAllStockReferences(ctx)
	})
}

// UpdateStockProfile applies enrichment metadata to an existing stock, then
// drops cached results and notifies listeners.
func (s *Service) UpdateStockProfile(ctx context.Context, symbol string, update models.StockProfileUpdate) (*models.StockReference, error) {
	symbol, err := normalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}
	if update.Empty() {
		return nil, &InvalidArgumentError{Field: "profile", Message: "no fields to update"}
	}
	if update.Name != nil && strings.TrimSpace(*update.Name) == "" {
		return nil, &InvalidArgumentError{Field: "name", Message: "must not be blank"}
	}
	if update.Employees != nil && *update.Employees < 0 {
		return nil, &InvalidArgumentError{Field: "employees", Message: "must not be negative"}
	}

	stock, err := s.repo.UpdateStockProfile(ctx, symbol, update)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx); err != nil {
			s.logger.WithError(err).Warn("failed to invalidate query cache")
		}
	}
	if s.notifier != nil {
		if err := s.notifier.StockUpdated(ctx, stock); err != nil {
			s.logger.WithError(err).WithField("symbol", symbol).Warn("failed to publish stock update")
		}
	}
	return stock, nil
}

// cached reads name from the cache, falling back to load on a miss or a
// cache failure. Loaded results are written back on a best-effort basis under
// the key resolved before load ran.
func cached[T any](ctx context.Context, s *Service, name string, load func() (T, error)) (T, error) {
	var key string
	if s.cache != nil {
		k, err := s.cache.Key(ctx, name)
		if err != nil {
			s.logger.WithError(err).WithField("key", name).Warn("cache read failed")
		} else {
			key = k
			var hit T
			found, err := s.cache.Get(ctx, key, &hit)
			if err != nil {
				s.logger.WithError(err).WithField("key", key).Warn("cache read failed")
			} else if found {
				return hit, nil
			}
		}
	}

	value, err := load()
	if err != nil {
		return value, err
	}

	if key != "" {
		if err := s.cache.Set(ctx, key, value); err != nil {
			s.logger.WithError(err).WithField("key", key).Warn("cache write failed")
		}
	}
	return value, nil
}

func normalizeSymbol(symbol string) (string, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return "", &InvalidArgumentError{Field: "symbol", Message: "must not be empty"}
	}
	return symbol, nil
}
