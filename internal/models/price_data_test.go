package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestRecomputeDeltas(t *testing.T) {
	t.Run("computes amount and percent", func(t *testing.T) {
		p := &PriceObservation{
			ClosePrice:    decimal.NewFromInt(100),
			PreviousClose: decimal.NewNullDecimal(decimal.NewFromInt(80)),
		}
		p.RecomputeDeltas()

		assert.True(t, p.ChangeAmount.Valid)
		assert.True(t, decimal.NewFromInt(20).Equal(p.ChangeAmount.Decimal))
		assert.True(t, p.ChangePercent.Valid)
		assert.Equal(t, "25.00", p.ChangePercent.Decimal.StringFixed(2))
	})

	t.Run("negative move", func(t *testing.T) {
		p := &PriceObservation{
			ClosePrice:    decimal.RequireFromString("18.45"),
			PreviousClose: decimal.NewNullDecimal(decimal.RequireFromString("19.00")),
		}
		p.RecomputeDeltas()

		assert.Equal(t, "-0.55", p.ChangeAmount.Decimal.String())
		assert.Equal(t, "-2.89", p.ChangePercent.Decimal.StringFixed(2))
	})

	t.Run("overwrites stale deltas", func(t *testing.T) {
		p := &PriceObservation{
			ClosePrice:    decimal.NewFromInt(10),
			PreviousClose: decimal.NewNullDecimal(decimal.NewFromInt(10)),
			ChangeAmount:  decimal.NewNullDecimal(decimal.NewFromInt(99)),
			ChangePercent: decimal.NewNullDecimal(decimal.NewFromInt(99)),
		}
		p.RecomputeDeltas()

		assert.True(t, p.ChangeAmount.Decimal.IsZero())
		assert.True(t, p.ChangePercent.Decimal.IsZero())
	})

	t.Run("null previous close leaves deltas null", func(t *testing.T) {
		p := &PriceObservation{
			ClosePrice:    decimal.NewFromInt(10),
			ChangeAmount:  decimal.NewNullDecimal(decimal.NewFromInt(1)),
			ChangePercent: decimal.NewNullDecimal(decimal.NewFromInt(10)),
		}
		p.RecomputeDeltas()

		assert.False(t, p.ChangeAmount.Valid)
		assert.False(t, p.ChangePercent.Valid)
	})

	t.Run("zero previous close has no percent", func(t *testing.T) {
		p := &PriceObservation{
			ClosePrice:    decimal.NewFromInt(5),
			PreviousClose: decimal.NewNullDecimal(decimal.Zero),
		}
		p.RecomputeDeltas()

		assert.True(t, p.ChangeAmount.Valid)
		assert.False(t, p.ChangePercent.Valid)
	})
}

func TestTradingDate(t *testing.T) {
	nairobi := time.FixedZone("EAT", 3*60*60)
	got := TradingDate(time.Date(2024, 3, 8, 23, 30, 0, 0, nairobi))
	assert.Equal(t, time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC), got)
}
