package models

import "time"

// StockReference is the static identity of a listed company
type StockReference struct {
	Symbol       string    `json:"symbol"`
	Name         string    `json:"name"`
	Sector       *string   `json:"sector"`
	Description  *string   `json:"description,omitempty"`
	Website      *string   `json:"website,omitempty"`
	Headquarters *string   `json:"headquarters,omitempty"`
	Employees    *int      `json:"employees,omitempty"`
	FoundedYear  *int      `json:"founded_year,omitempty"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
	UpdatedAt    time.Time `json:"updated_at,omitempty"`
}

// StockProfileUpdate carries enrichment metadata for a stock.
// Nil fields are left untouched.
type StockProfileUpdate struct {
	Name         *string `json:"name,omitempty"`
	Sector       *string `json:"sector,omitempty"`
	Description  *string `json:"description,omitempty"`
	Website      *string `json:"website,omitempty"`
	Headquarters *string `json:"headquarters,omitempty"`
	Employees    *int    `json:"employees,omitempty"`
	FoundedYear  *int    `json:"founded_year,omitempty"`
}

// Empty reports whether the update carries no fields
func (u StockProfileUpdate) Empty() bool {
	return u.Name == nil && u.Sector == nil && u.Description == nil && u.Website == nil &&
		u.Headquarters == nil && u.Employees == nil && u.FoundedYear == nil
}

// PriceEvent is published after a batch of observations has been committed
type PriceEvent struct {
	EventType    string    `json:"event_type"`
	Source       string    `json:"source"`
	Symbols      []string  `json:"symbols"`
	TradingDates []string  `json:"trading_dates"`
	Inserted     int       `json:"inserted"`
	Updated      int       `json:"updated"`
	Timestamp    time.Time `json:"timestamp"`
}

// StockEvent is published after a stock's reference data changed
type StockEvent struct {
	EventType string          `json:"event_type"`
	Symbol    string          `json:"symbol"`
	Stock     *StockReference `json:"stock,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Event type constants
const (
	EventPricesUpdated = "PRICES_UPDATED"
	EventStockUpdated  = "STOCK_UPDATED"
)
