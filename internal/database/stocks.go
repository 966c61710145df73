package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/trogers1052/nse-market-service/internal/models"
)

// ensureStockQuery creates a stock on first sighting. Scraped name and sector
// only overwrite stored values when they carry something new, so enrichment
// metadata is never blanked by a sparse source row.
const ensureStockQuery = `
	INSERT INTO stocks (symbol, name, sector, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $4)
	ON CONFLICT (symbol) DO UPDATE SET
		name = COALESCE(NULLIF(EXCLUDED.name, ''), stocks.name),
		sector = COALESCE(EXCLUDED.sector, stocks.sector),
		updated_at = EXCLUDED.updated_at
	WHERE (NULLIF(EXCLUDED.name, '') IS NOT NULL AND EXCLUDED.name IS DISTINCT FROM stocks.name)
		OR (EXCLUDED.sector IS NOT NULL AND EXCLUDED.sector IS DISTINCT FROM stocks.sector)
`

const stockColumns = `
	symbol, name, sector, description, website, headquarters, employees, founded_year, created_at, updated_at
`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func ensureStock(ctx context.Context, ex execer, ref models.StockReference, now time.Time) error {
	_, err := ex.ExecContext(ctx, ensureStockQuery, ref.Symbol, ref.Name, ref.Sector, now)
	return err
}

// SaveStockReference creates a stock or refreshes its name and sector
func (db *DB) SaveStockReference(ctx context.Context, ref *models.StockReference) error {
	if ref.Symbol == "" {
		return fmt.Errorf("stock symbol is required")
	}
	if err := ensureStock(ctx, db.conn, *ref, time.Now()); err != nil {
		return newPersistenceError("save stock "+ref.Symbol, err)
	}
	return nil
}

// GetStockReference retrieves a stock by symbol
func (db *DB) GetStockReference(ctx context.Context, symbol string) (*models.StockReference, error) {
	query := `SELECT ` + stockColumns + ` FROM stocks WHERE symbol = $1`

	ref, err := scanStock(db.conn.QueryRowContext(ctx, query, symbol))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("stock %s: %w", symbol, ErrNotFound)
	}
	if err != nil {
		return nil, newPersistenceError("get stock", err)
	}
	return ref, nil
}

// GetAllStockReferences retrieves every known stock ordered by symbol
func (db *DB) GetAllStockReferences(ctx context.Context) ([]*models.StockReference, error) {
	query := `SELECT ` + stockColumns + ` FROM stocks ORDER BY symbol`

	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, newPersistenceError("get stocks", err)
	}
	defer rows.Close()

	stocks := []*models.StockReference{}
	for rows.Next() {
		ref, err := scanStock(rows)
		if err != nil {
			return nil, newPersistenceError("scan stock", err)
		}
		stocks = append(stocks, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, newPersistenceError("get stocks", err)
	}
	return stocks, nil
}

// UpdateStockProfile applies enrichment metadata to an existing stock.
// Nil fields keep their stored value.
func (db *DB) UpdateStockProfile(ctx context.Context, symbol string, update models.StockProfileUpdate) (*models.StockReference, error) {
	query := `
		UPDATE stocks SET
			name = COALESCE($2, name),
			sector = COALESCE($3, sector),
			description = COALESCE($4, description),
			website = COALESCE($5, website),
			headquarters = COALESCE($6, headquarters),
			employees = COALESCE($7, employees),
			founded_year = COALESCE($8, founded_year),
			updated_at = $9
		WHERE symbol = $1
		RETURNING ` + stockColumns

	ref, err := scanStock(db.conn.QueryRowContext(ctx, query,
		symbol, update.Name, update.Sector, update.Description, update.Website,
		update.Headquarters, update.Employees, update.FoundedYear, time.Now(),
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("stock %s: %w", symbol, ErrNotFound)
	}
	if err != nil {
		return nil, newPersistenceError("update stock profile", err)
	}
	return ref, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanStock(row scanner) (*models.StockReference, error) {
	var (
		ref                                        models.StockReference
		sector, description, website, headquarters sql.NullString
		employees, foundedYear                     sql.NullInt64
	)
	err := row.Scan(
		&ref.Symbol, &ref.Name, &sector, &description, &website, &headquarters,
		&employees, &foundedYear, &ref.CreatedAt, &ref.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	ref.Sector = nullString(sector)
	ref.Description = nullString(description)
	ref.Website = nullString(website)
	ref.Headquarters = nullString(headquarters)
	ref.Employees = nullInt(employees)
	ref.FoundedYear = nullInt(foundedYear)
	return &ref, nil
}

func nullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return &s.String
}

func nullInt(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}
