package models

import (
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// PriceObservation is one closing snapshot of a stock for a trading date
type PriceObservation struct {
	ID            int64               `json:"id,omitempty"`
	Symbol        string              `json:"symbol"`
	Date          time.Time           `json:"date"`
	ClosePrice    decimal.Decimal     `json:"close_price"`
	PreviousClose decimal.NullDecimal `json:"previous_close"`
	ChangeAmount  decimal.NullDecimal `json:"change_amount"`
	ChangePercent decimal.NullDecimal `json:"change_percent"`
	Volume        *int64              `json:"volume"`
	LowPrice      decimal.NullDecimal `json:"low_price"`
	HighPrice     decimal.NullDecimal `json:"high_price"`
	Stock         *StockReference     `json:"stocks,omitempty"`
	CreatedAt     time.Time           `json:"created_at,omitempty"`
	UpdatedAt     time.Time           `json:"updated_at,omitempty"`
}

// ObservationKey identifies a PriceObservation
type ObservationKey struct {
	Symbol string
	Date   time.Time
}

// Key returns the (symbol, date) identity of the observation
func (p *PriceObservation) Key() ObservationKey {
	return ObservationKey{Symbol: p.Symbol, Date: TradingDate(p.Date)}
}

// RecomputeDeltas derives ChangeAmount and ChangePercent from ClosePrice and
// PreviousClose. Both stay null when PreviousClose is unknown; the percentage
// also stays null when PreviousClose is zero.
func (p *PriceObservation) RecomputeDeltas() {
	p.ChangeAmount = decimal.NullDecimal{}
	p.ChangePercent = decimal.NullDecimal{}
	if !p.PreviousClose.Valid {
		return
	}

	amount := p.ClosePrice.Sub(p.PreviousClose.Decimal)
	p.ChangeAmount = decimal.NewNullDecimal(amount)
	if p.PreviousClose.Decimal.IsZero() {
		return
	}
	p.ChangePercent = decimal.NewNullDecimal(amount.Div(p.PreviousClose.Decimal).Mul(hundred).Round(2))
}

// TradingDate truncates t to a UTC calendar date
func TradingDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// TopMovers holds the ranked extremes of the latest snapshot
type TopMovers struct {
	Gainers []*PriceObservation `json:"gainers"`
	Losers  []*PriceObservation `json:"losers"`
}

// MarketSummary aggregates the latest snapshot across all symbols
type MarketSummary struct {
	TradingDate *time.Time `json:"trading_date"`
	Total       int        `json:"total"`
	Advancers   int        `json:"advancers"`
	Decliners   int        `json:"decliners"`
	Unchanged   int        `json:"unchanged"`
	NoChange    int        `json:"no_change_data"`
	TotalVolume int64      `json:"total_volume"`
}
