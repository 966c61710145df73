package database

import (
	"cmp"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/lib/pq"

	"github.com/trogers1052/nse-market-service/internal/models"
)

// UpsertResult counts the outcome of one UpsertBatch call. Rows that were
// already stored with identical values count as updated.
type UpsertResult struct {
	Inserted int
	Updated  int
	Failed   []models.FailedRow
}

// upsertPriceQuery returns one row holding true for an insert and false for a
// changed update. Unchanged rows return nothing and keep their updated_at.
const upsertPriceQuery = `
	INSERT INTO stock_prices (
		symbol, date, close_price, previous_close, change_amount, change_percent,
		volume, low_price, high_price, created_at, updated_at
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
	ON CONFLICT (symbol, date) DO UPDATE SET
		close_price = EXCLUDED.close_price,
		previous_close = EXCLUDED.previous_close,
		change_amount = EXCLUDED.change_amount,
		change_percent = EXCLUDED.change_percent,
		volume = EXCLUDED.volume,
		low_price = EXCLUDED.low_price,
		high_price = EXCLUDED.high_price,
		updated_at = EXCLUDED.updated_at
	WHERE (
		stock_prices.close_price, stock_prices.previous_close, stock_prices.change_amount,
		stock_prices.change_percent, stock_prices.volume, stock_prices.low_price, stock_prices.high_price
	) IS DISTINCT FROM (
		EXCLUDED.close_price, EXCLUDED.previous_close, EXCLUDED.change_amount,
		EXCLUDED.change_percent, EXCLUDED.volume, EXCLUDED.low_price, EXCLUDED.high_price
	)
	RETURNING (xmax = 0)
`

const observationColumns = `
	p.id, p.symbol, p.date, p.close_price, p.previous_close, p.change_amount, p.change_percent,
	p.volume, p.low_price, p.high_price, p.created_at, p.updated_at, s.name, s.sector
`

// UpsertBatch writes a batch of observations keyed by (symbol, date).
// Observations that cannot be stored are reported in Failed and left out; the
// rest are applied in a single transaction, so a storage error leaves nothing
// of the batch behind. Change fields are recomputed before writing.
func (db *DB) UpsertBatch(ctx context.Context, observations []models.PriceObservation) (*UpsertResult, error) {
	result := &UpsertResult{}

	valid := make([]models.PriceObservation, 0, len(observations))
	for _, obs := range observations {
		if reason := validateObservation(obs); reason != "" {
			result.Failed = append(result.Failed, models.FailedRow{Symbol: obs.Symbol, Date: obs.Date, Reason: reason})
			continue
		}
		obs.Date = models.TradingDate(obs.Date)
		obs.RecomputeDeltas()
		valid = append(valid, obs)
	}
	if len(valid) == 0 {
		return result, nil
	}

	// a fixed row order keeps concurrent batches from deadlocking
	slices.SortStableFunc(valid, func(a, b models.PriceObservation) int {
		return cmp.Or(cmp.Compare(a.Symbol, b.Symbol), a.Date.Compare(b.Date))
	})

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, newPersistenceError("begin transaction", err)
	}
	defer tx.Rollback()

	now := time.Now()
	for _, ref := range stockReferences(valid) {
		if err := ensureStock(ctx, tx, ref, now); err != nil {
			return nil, newPersistenceError("save stock "+ref.Symbol, err)
		}
	}

	stmt, err := tx.PrepareContext(ctx, upsertPriceQuery)
	if err != nil {
		return nil, newPersistenceError("prepare statement", err)
	}
	defer stmt.Close()

	inserted, updated := 0, 0
	for _, obs := range valid {
		var isInsert bool
		err := stmt.QueryRowContext(ctx,
			obs.Symbol, obs.Date, obs.ClosePrice, obs.PreviousClose, obs.ChangeAmount, obs.ChangePercent,
			obs.Volume, obs.LowPrice, obs.HighPrice, now,
		).Scan(&isInsert)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			updated++
		case err != nil:
			return nil, newPersistenceError(fmt.Sprintf("upsert price for %s on %s", obs.Symbol, obs.Date.Format(time.DateOnly)), err)
		case isInsert:
			inserted++
		default:
			updated++
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, newPersistenceError("commit transaction", err)
	}

	result.Inserted, result.Updated = inserted, updated
	return result, nil
}

func validateObservation(obs models.PriceObservation) string {
	switch {
	case obs.Symbol == "":
		return "missing symbol"
	case obs.Date.IsZero():
		return "missing date"
	case obs.ClosePrice.IsNegative():
		return "negative close price"
	}
	return ""
}

// stockReferences returns one reference per symbol in symbol order, taking
// the last non-empty name and sector seen for it.
func stockReferences(observations []models.PriceObservation) []models.StockReference {
	bySymbol := make(map[string]*models.StockReference)
	var symbols []string
	for _, obs := range observations {
		ref, ok := bySymbol[obs.Symbol]
		if !ok {
			ref = &models.StockReference{Symbol: obs.Symbol}
			bySymbol[obs.Symbol] = ref
			symbols = append(symbols, obs.Symbol)
		}
		if obs.Stock == nil {
			continue
		}
		if obs.Stock.Name != "" {
			ref.Name = obs.Stock.Name
		}
		if obs.Stock.Sector != nil {
			ref.Sector = obs.Stock.Sector
		}
	}

	slices.Sort(symbols)
	refs := make([]models.StockReference, 0, len(symbols))
	for _, symbol := range symbols {
		refs = append(refs, *bySymbol[symbol])
	}
	return refs
}

// GetLatest retrieves the most recent observation for a symbol
func (db *DB) GetLatest(ctx context.Context, symbol string) (*models.PriceObservation, error) {
	query := `
		SELECT ` + observationColumns + `
		FROM stock_prices p
		LEFT JOIN stocks s ON s.symbol = p.symbol
		WHERE p.symbol = $1
		ORDER BY p.date DESC
		LIMIT 1
	`
	obs, err := scanObservation(db.conn.QueryRowContext(ctx, query, symbol))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("no price data found for %s: %w", symbol, ErrNotFound)
	}
	if err != nil {
		return nil, newPersistenceError("get latest price", err)
	}
	return obs, nil
}

// GetHistory retrieves at most days observations for a symbol, most recent first
func (db *DB) GetHistory(ctx context.Context, symbol string, days int) ([]*models.PriceObservation, error) {
	query := `
		SELECT ` + observationColumns + `
		FROM stock_prices p
		LEFT JOIN stocks s ON s.symbol = p.symbol
		WHERE p.symbol = $1
		ORDER BY p.date DESC
		LIMIT $2
	`
	return db.queryObservations(ctx, "get price history", query, symbol, days)
}

// GetLatestAll retrieves the most recent observation of every symbol, ordered
// by symbol and joined with its stock reference
func (db *DB) GetLatestAll(ctx context.Context) ([]*models.PriceObservation, error) {
	query := `
		SELECT DISTINCT ON (p.symbol) ` + observationColumns + `
		FROM stock_prices p
		LEFT JOIN stocks s ON s.symbol = p.symbol
		ORDER BY p.symbol, p.date DESC
	`
	return db.queryObservations(ctx, "get latest prices", query)
}

// GetPriorObservations retrieves, for each key, the latest observation of the
// same symbol strictly before the key's date. Keys without one are absent.
func (db *DB) GetPriorObservations(ctx context.Context, keys []models.ObservationKey) (map[models.ObservationKey]*models.PriceObservation, error) {
	priors := make(map[models.ObservationKey]*models.PriceObservation, len(keys))
	if len(keys) == 0 {
		return priors, nil
	}

	symbols := make([]string, len(keys))
	dates := make([]string, len(keys))
	for i, k := range keys {
		symbols[i] = k.Symbol
		dates[i] = k.Date.Format(time.DateOnly)
	}

	query := `
		SELECT k.symbol, k.date, ` + observationColumns + `
		FROM unnest($1::text[], $2::date[]) AS k(symbol, date)
		JOIN LATERAL (
			SELECT * FROM stock_prices sp
			WHERE sp.symbol = k.symbol AND sp.date < k.date
			ORDER BY sp.date DESC
			LIMIT 1
		) p ON true
		LEFT JOIN stocks s ON s.symbol = p.symbol
	`
	rows, err := db.conn.QueryContext(ctx, query, pq.Array(symbols), pq.Array(dates))
	if err != nil {
		return nil, newPersistenceError("get prior prices", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key models.ObservationKey
		obs, err := scanObservationWith(rows, &key.Symbol, &key.Date)
		if err != nil {
			return nil, newPersistenceError("scan prior price", err)
		}
		key.Date = models.TradingDate(key.Date)
		priors[key] = obs
	}
	if err := rows.Err(); err != nil {
		return nil, newPersistenceError("get prior prices", err)
	}
	return priors, nil
}

// GetTopMovers ranks the latest snapshot by change percent
func (db *DB) GetTopMovers(ctx context.Context, limit int) (*models.TopMovers, error) {
	latest, err := db.GetLatestAll(ctx)
	if err != nil {
		return nil, err
	}
	movers := rankMovers(latest, limit)
	return &movers, nil
}

// rankMovers picks the top gainers (change percent above zero, descending) and
// losers (below zero, ascending). Observations without a change percent are in
// neither list; ties go to the lower symbol.
func rankMovers(latest []*models.PriceObservation, limit int) models.TopMovers {
	movers := models.TopMovers{
		Gainers: []*models.PriceObservation{},
		Losers:  []*models.PriceObservation{},
	}
	for _, obs := range latest {
		if !obs.ChangePercent.Valid {
			continue
		}
		switch obs.ChangePercent.Decimal.Sign() {
		case 1:
			movers.Gainers = append(movers.Gainers, obs)
		case -1:
			movers.Losers = append(movers.Losers, obs)
		}
	}

	slices.SortStableFunc(movers.Gainers, func(a, b *models.PriceObservation) int {
		return cmp.Or(b.ChangePercent.Decimal.Cmp(a.ChangePercent.Decimal), cmp.Compare(a.Symbol, b.Symbol))
	})
	slices.SortStableFunc(movers.Losers, func(a, b *models.PriceObservation) int {
		return cmp.Or(a.ChangePercent.Decimal.Cmp(b.ChangePercent.Decimal), cmp.Compare(a.Symbol, b.Symbol))
	})

	if limit >= 0 {
		movers.Gainers = movers.Gainers[:min(limit, len(movers.Gainers))]
		movers.Losers = movers.Losers[:min(limit, len(movers.Losers))]
	}
	return movers
}

// GetMarketSummary aggregates the latest snapshot of every symbol
func (db *DB) GetMarketSummary(ctx context.Context) (*models.MarketSummary, error) {
	latest, err := db.GetLatestAll(ctx)
	if err != nil {
		return nil, err
	}
	summary := summarize(latest)
	return &summary, nil
}

func summarize(latest []*models.PriceObservation) models.MarketSummary {
	var summary models.MarketSummary
	for _, obs := range latest {
		summary.Total++
		if summary.TradingDate == nil || obs.Date.After(*summary.TradingDate) {
			d := obs.Date
			summary.TradingDate = &d
		}
		if obs.Volume != nil {
			summary.TotalVolume += *obs.Volume
		}
		if !obs.ChangeAmount.Valid {
			summary.NoChange++
			continue
		}
		switch obs.ChangeAmount.Decimal.Sign() {
		case 1:
			summary.Advancers++
		case -1:
			summary.Decliners++
		default:
			summary.Unchanged++
		}
	}
	return summary
}

// DeleteObservationsOlderThan removes observations dated before date
func (db *DB) DeleteObservationsOlderThan(ctx context.Context, date time.Time) (int64, error) {
	query := `DELETE FROM stock_prices WHERE date < $1`
	result, err := db.conn.ExecContext(ctx, query, date.Format(time.DateOnly))
	if err != nil {
		return 0, newPersistenceError("delete old price data", err)
	}
	return result.RowsAffected()
}

func (db *DB) queryObservations(ctx context.Context, op, query string, args ...any) ([]*models.PriceObservation, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, newPersistenceError(op, err)
	}
	defer rows.Close()

	observations := []*models.PriceObservation{}
	for rows.Next() {
		obs, err := scanObservation(rows)
		if err != nil {
			return nil, newPersistenceError("scan price data", err)
		}
		observations = append(observations, obs)
	}
	if err := rows.Err(); err != nil {
		return nil, newPersistenceError(op, err)
	}
	return observations, nil
}

func scanObservation(row scanner) (*models.PriceObservation, error) {
	return scanObservationWith(row)
}

// scanObservationWith scans observationColumns after any leading destinations
func scanObservationWith(row scanner, leading ...any) (*models.PriceObservation, error) {
	var (
		obs          models.PriceObservation
		volume       sql.NullInt64
		name, sector sql.NullString
	)
	dest := append(leading,
		&obs.ID, &obs.Symbol, &obs.Date, &obs.ClosePrice, &obs.PreviousClose, &obs.ChangeAmount, &obs.ChangePercent,
		&volume, &obs.LowPrice, &obs.HighPrice, &obs.CreatedAt, &obs.UpdatedAt, &name, &sector,
	)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	obs.Date = models.TradingDate(obs.Date)
	if volume.Valid {
		v := volume.Int64
		obs.Volume = &v
	}
	if name.Valid {
		obs.Stock = &models.StockReference{Symbol: obs.Symbol, Name: name.String, Sector: nullString(sector)}
	}
	return &obs, nil
}
