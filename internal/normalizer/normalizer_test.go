package normalizer

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trogers1052/nse-market-service/internal/models"
	"github.com/trogers1052/nse-market-service/internal/parser"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func requireSkip(t *testing.T, err error, reason Reason, field string) {
	t.Helper()
	var skip *SkipRow
	require.True(t, errors.As(err, &skip), "expected *SkipRow, got %v", err)
	assert.Equal(t, reason, skip.Reason)
	assert.Equal(t, field, skip.Field)
}

func TestNormalize(t *testing.T) {
	t.Run("computes deltas from close and previous close", func(t *testing.T) {
		obs, err := Normalize(parser.RawRow{
			parser.ColSymbol:    "abc",
			parser.ColDate:      "2024-03-08",
			parser.ColClose:     "100",
			parser.ColPrevClose: "80",
		}, nil)
		require.NoError(t, err)

		assert.Equal(t, "ABC", obs.Symbol)
		assert.True(t, day("2024-03-08").Equal(obs.Date))
		assert.Equal(t, "20", obs.ChangeAmount.Decimal.String())
		assert.Equal(t, "25", obs.ChangePercent.Decimal.String())
		assert.True(t, obs.ChangePercent.Decimal.Equal(decimal.RequireFromString("25.00")))
	})

	t.Run("ignores source change columns", func(t *testing.T) {
		obs, err := Normalize(parser.RawRow{
			parser.ColSymbol:        "SCOM",
			parser.ColDate:          "2024-03-08",
			parser.ColClose:         "14.05",
			parser.ColPrevClose:     "14.00",
			parser.ColChange:        "9.99",
			parser.ColChangePercent: "99%",
		}, nil)
		require.NoError(t, err)

		assert.Equal(t, "0.05", obs.ChangeAmount.Decimal.String())
		assert.Equal(t, "0.36", obs.ChangePercent.Decimal.String())
	})

	t.Run("empty volume is null not zero", func(t *testing.T) {
		obs, err := Normalize(parser.RawRow{
			parser.ColSymbol: "KCB",
			parser.ColDate:   "2024-03-08",
			parser.ColClose:  "18.45",
			parser.ColVolume: "",
		}, nil)
		require.NoError(t, err)
		assert.Nil(t, obs.Volume)
	})

	t.Run("zero volume is kept", func(t *testing.T) {
		obs, err := Normalize(parser.RawRow{
			parser.ColSymbol: "KCB",
			parser.ColDate:   "2024-03-08",
			parser.ColClose:  "18.45",
			parser.ColVolume: "0",
		}, nil)
		require.NoError(t, err)
		require.NotNil(t, obs.Volume)
		assert.Equal(t, int64(0), *obs.Volume)
	})

	t.Run("unparseable optional numerics become null", func(t *testing.T) {
		obs, err := Normalize(parser.RawRow{
			parser.ColSymbol:    "KCB",
			parser.ColDate:      "2024-03-08",
			parser.ColClose:     "18.45",
			parser.ColPrevClose: "n/a",
			parser.ColLow:       "--",
			parser.ColHigh:      "abc",
			parser.ColVolume:    "12.5",
		}, nil)
		require.NoError(t, err)

		assert.False(t, obs.PreviousClose.Valid)
		assert.False(t, obs.LowPrice.Valid)
		assert.False(t, obs.HighPrice.Valid)
		assert.Nil(t, obs.Volume)
		assert.False(t, obs.ChangeAmount.Valid)
		assert.False(t, obs.ChangePercent.Valid)
	})

	t.Run("carries previous close forward from an earlier observation", func(t *testing.T) {
		prior := &models.PriceObservation{
			Symbol:     "ABC",
			Date:       day("2024-03-07"),
			ClosePrice: decimal.NewFromInt(50),
		}
		obs, err := Normalize(parser.RawRow{
			parser.ColSymbol: "ABC",
			parser.ColDate:   "2024-03-08",
			parser.ColClose:  "55",
		}, prior)
		require.NoError(t, err)

		require.True(t, obs.PreviousClose.Valid)
		assert.Equal(t, "50", obs.PreviousClose.Decimal.String())
		assert.Equal(t, "5", obs.ChangeAmount.Decimal.String())
		assert.Equal(t, "10", obs.ChangePercent.Decimal.String())
	})

	t.Run("row previous close wins over prior", func(t *testing.T) {
		prior := &models.PriceObservation{Symbol: "ABC", Date: day("2024-03-07"), ClosePrice: decimal.NewFromInt(50)}
		obs, err := Normalize(parser.RawRow{
			parser.ColSymbol:    "ABC",
			parser.ColDate:      "2024-03-08",
			parser.ColClose:     "55",
			parser.ColPrevClose: "54",
		}, prior)
		require.NoError(t, err)
		assert.Equal(t, "54", obs.PreviousClose.Decimal.String())
	})

	t.Run("does not carry forward from same or later date", func(t *testing.T) {
		for _, priorDate := range []string{"2024-03-08", "2024-03-09"} {
			prior := &models.PriceObservation{Symbol: "ABC", Date: day(priorDate), ClosePrice: decimal.NewFromInt(50)}
			obs, err := Normalize(parser.RawRow{
				parser.ColSymbol: "ABC",
				parser.ColDate:   "2024-03-08",
				parser.ColClose:  "55",
			}, prior)
			require.NoError(t, err)
			assert.False(t, obs.PreviousClose.Valid, priorDate)
			assert.False(t, obs.ChangeAmount.Valid, priorDate)
		}
	})

	t.Run("does not carry forward from another symbol", func(t *testing.T) {
		prior := &models.PriceObservation{Symbol: "XYZ", Date: day("2024-03-07"), ClosePrice: decimal.NewFromInt(50)}
		obs, err := Normalize(parser.RawRow{
			parser.ColSymbol: "ABC",
			parser.ColDate:   "2024-03-08",
			parser.ColClose:  "55",
		}, prior)
		require.NoError(t, err)
		assert.False(t, obs.PreviousClose.Valid)
	})

	t.Run("attaches name and sector as reference data", func(t *testing.T) {
		obs, err := Normalize(parser.RawRow{
			parser.ColSymbol: "EQTY",
			parser.ColName:   " Equity  Group ",
			parser.ColSector: "Banking",
			parser.ColDate:   "8 Mar 2024",
			parser.ColClose:  "KES 45.50",
		}, nil)
		require.NoError(t, err)

		require.NotNil(t, obs.Stock)
		assert.Equal(t, "EQTY", obs.Stock.Symbol)
		assert.Equal(t, "Equity Group", obs.Stock.Name)
		require.NotNil(t, obs.Stock.Sector)
		assert.Equal(t, "Banking", *obs.Stock.Sector)
		assert.Equal(t, "45.5", obs.ClosePrice.String())
	})

	t.Run("missing symbol", func(t *testing.T) {
		_, err := Normalize(parser.RawRow{parser.ColDate: "2024-03-08", parser.ColClose: "1"}, nil)
		requireSkip(t, err, ReasonMissingKey, parser.ColSymbol)
	})

	t.Run("missing date", func(t *testing.T) {
		_, err := Normalize(parser.RawRow{parser.ColSymbol: "ABC", parser.ColClose: "1"}, nil)
		requireSkip(t, err, ReasonMissingKey, parser.ColDate)
	})

	t.Run("unparseable date", func(t *testing.T) {
		_, err := Normalize(parser.RawRow{parser.ColSymbol: "ABC", parser.ColDate: "yesterday", parser.ColClose: "1"}, nil)
		requireSkip(t, err, ReasonUnparseableValue, parser.ColDate)
	})

	t.Run("unparseable close", func(t *testing.T) {
		for _, raw := range []string{"", "-", "suspended", "-4.00"} {
			_, err := Normalize(parser.RawRow{parser.ColSymbol: "ABC", parser.ColDate: "2024-03-08", parser.ColClose: raw}, nil)
			requireSkip(t, err, ReasonUnparseableValue, parser.ColClose)
		}
	})
}

func TestParseDecimal(t *testing.T) {
	tests := []struct {
		raw   string
		want  string
		valid bool
	}{
		{raw: "12.50", want: "12.5", valid: true},
		{raw: " 1,234.56 ", want: "1234.56", valid: true},
		{raw: "KES 45.50", want: "45.5", valid: true},
		{raw: "Ksh1,000", want: "1000", valid: true},
		{raw: "+2.5%", want: "2.5", valid: true},
		{raw: "-3.1%", want: "-3.1", valid: true},
		{raw: "(1.20)", want: "-1.2", valid: true},
		{raw: "0", want: "0", valid: true},
		{raw: ""},
		{raw: "-"},
		{raw: "--"},
		{raw: "N/A"},
		{raw: "twelve"},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%q", tt.raw), func(t *testing.T) {
			got := ParseDecimal(tt.raw)
			assert.Equal(t, tt.valid, got.Valid)
			if tt.valid {
				assert.Equal(t, tt.want, got.Decimal.String())
			}
		})
	}
}

func TestParseVolume(t *testing.T) {
	tests := []struct {
		raw  string
		want *int64
	}{
		{raw: "2,345,600", want: ptr(2345600)},
		{raw: "0", want: ptr(0)},
		{raw: "1.5K", want: ptr(1500)},
		{raw: "2M", want: ptr(2000000)},
		{raw: "1200.00", want: ptr(1200)},
		{raw: ""},
		{raw: "-"},
		{raw: "12.5"},
		{raw: "-100"},
		{raw: "lots"},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%q", tt.raw), func(t *testing.T) {
			assert.Equal(t, tt.want, ParseVolume(tt.raw))
		})
	}
}

func TestParseDate(t *testing.T) {
	want := day("2024-03-08")
	for _, raw := range []string{
		"2024-03-08",
		"8 Mar 2024",
		"08 March 2024",
		"8th Mar. 2024",
		"Mar 8, 2024",
		"08/03/2024",
		"8/3/2024",
		"08-03-2024",
	} {
		t.Run(raw, func(t *testing.T) {
			got, ok := ParseDate(raw)
			require.True(t, ok)
			assert.True(t, want.Equal(got), "got %s", got)
		})
	}

	t.Run("september abbreviation", func(t *testing.T) {
		got, ok := ParseDate("2 Sept 2024")
		require.True(t, ok)
		assert.Equal(t, time.September, got.Month())
	})

	t.Run("rejects garbage", func(t *testing.T) {
		_, ok := ParseDate("last friday")
		assert.False(t, ok)
	})
}

func ptr(n int64) *int64 {
	return &n
}
