// Package normalizer coerces raw source rows into price observations and
// derives their change fields. Everything here is pure: no clock, network or
// storage access.
package normalizer

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/trogers1052/nse-market-service/internal/models"
	"github.com/trogers1052/nse-market-service/internal/parser"
)

var (
	ordinalSuffix = regexp.MustCompile(`(?i)(\d)(st|nd|rd|th)\b`)
	nullTokens    = map[string]bool{"": true, "-": true, "--": true, "n/a": true, "na": true, "nil": true, "null": true}
	currencyTags  = []string{"kes", "ksh", "kshs", "sh"}

	dateLayouts = []string{
		"2006-01-02",
		"2 Jan 2006",
		"2 January 2006",
		"Jan 2 2006",
		"January 2 2006",
		"2/1/2006",
		"2-1-2006",
	}
)

// Normalize converts one raw row. prior is the latest stored observation of
// the same symbol and is only used to carry the previous close forward when
// the row omits it and prior predates the row.
//
// A row missing its symbol or date yields a *SkipRow with ReasonMissingKey; an
// unreadable date or close price yields ReasonUnparseableValue. Every other
// unreadable numeric becomes null.
func Normalize(row parser.RawRow, prior *models.PriceObservation) (models.PriceObservation, error) {
	symbol := strings.ToUpper(strings.TrimSpace(row[parser.ColSymbol]))
	if symbol == "" {
		return models.PriceObservation{}, &SkipRow{Reason: ReasonMissingKey, Field: parser.ColSymbol}
	}

	rawDate := strings.TrimSpace(row[parser.ColDate])
	if rawDate == "" {
		return models.PriceObservation{}, &SkipRow{Reason: ReasonMissingKey, Symbol: symbol, Field: parser.ColDate}
	}
	date, ok := ParseDate(rawDate)
	if !ok {
		return models.PriceObservation{}, &SkipRow{Reason: ReasonUnparseableValue, Symbol: symbol, Field: parser.ColDate, Value: rawDate}
	}

	closePrice := ParseDecimal(row[parser.ColClose])
	if !closePrice.Valid || closePrice.Decimal.IsNegative() {
		return models.PriceObservation{}, &SkipRow{
			Reason: ReasonUnparseableValue,
			Symbol: symbol,
			Field:  parser.ColClose,
			Value:  strings.TrimSpace(row[parser.ColClose]),
		}
	}

	obs := models.PriceObservation{
		Symbol:        symbol,
		Date:          date,
		ClosePrice:    closePrice.Decimal,
		PreviousClose: nonNegative(ParseDecimal(row[parser.ColPrevClose])),
		Volume:        ParseVolume(row[parser.ColVolume]),
		LowPrice:      nonNegative(ParseDecimal(row[parser.ColLow])),
		HighPrice:     nonNegative(ParseDecimal(row[parser.ColHigh])),
	}

	if !obs.PreviousClose.Valid && carriesForward(prior, symbol, date) {
		obs.PreviousClose = decimal.NewNullDecimal(prior.ClosePrice)
	}
	obs.RecomputeDeltas()

	obs.Stock = reference(symbol, row)
	return obs, nil
}

func carriesForward(prior *models.PriceObservation, symbol string, date time.Time) bool {
	if prior == nil {
		return false
	}
	if !strings.EqualFold(prior.Symbol, symbol) {
		return false
	}
	return models.TradingDate(prior.Date).Before(date)
}

func reference(symbol string, row parser.RawRow) *models.StockReference {
	name := collapse(row[parser.ColName])
	sector := collapse(row[parser.ColSector])
	if name == "" && sector == "" {
		return nil
	}
	ref := &models.StockReference{Symbol: symbol, Name: name}
	if sector != "" {
		ref.Sector = &sector
	}
	return ref
}

// ParseDate reads the trading-date formats seen on the source. The result is
// a UTC calendar date.
func ParseDate(raw string) (time.Time, bool) {
	s := strings.NewReplacer(",", " ", ".", " ").Replace(strings.TrimSpace(raw))
	s = ordinalSuffix.ReplaceAllString(s, "$1")
	s = collapse(s)
	s = strings.Replace(s, "Sept ", "Sep ", 1)

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return models.TradingDate(t), true
		}
	}
	return time.Time{}, false
}

// ParseDecimal coerces a price-like cell. Thousands separators, currency tags
// and a trailing percent sign are ignored; empty or non-numeric content is null.
func ParseDecimal(raw string) decimal.NullDecimal {
	s, negative := cleanNumber(raw)
	if nullTokens[strings.ToLower(s)] {
		return decimal.NullDecimal{}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}
	}
	if negative {
		d = d.Neg()
	}
	return decimal.NewNullDecimal(d)
}

var volumeMultipliers = map[byte]int64{'k': 1_000, 'm': 1_000_000, 'b': 1_000_000_000}

// ParseVolume coerces a share count. Fractional or negative counts are null.
func ParseVolume(raw string) *int64 {
	s, negative := cleanNumber(raw)
	if negative || nullTokens[strings.ToLower(s)] {
		return nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n < 0 {
			return nil
		}
		return &n
	}

	multiplier := int64(1)
	if m, ok := volumeMultipliers[strings.ToLower(s[len(s)-1:])[0]]; ok {
		multiplier = m
		s = s[:len(s)-1]
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil
	}
	d = d.Mul(decimal.NewFromInt(multiplier))
	if d.IsNegative() || !d.Equal(d.Truncate(0)) {
		return nil
	}
	n := d.IntPart()
	return &n
}

// cleanNumber strips decoration from a numeric cell and reports whether it
// was written in accounting style, e.g. "(1.50)".
func cleanNumber(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	negative := false
	if len(s) > 2 && strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	lower := strings.ToLower(s)
	for _, tag := range currencyTags {
		if strings.HasPrefix(lower, tag) && len(s) > len(tag) && !isLetter(s[len(tag)]) {
			s = s[len(tag):]
			break
		}
	}

	s = strings.TrimSuffix(strings.TrimSpace(s), "%")
	s = strings.NewReplacer(",", "", " ", "", "\u00a0", "").Replace(s)
	s = strings.TrimPrefix(s, "+")
	return s, negative
}

func isLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func nonNegative(d decimal.NullDecimal) decimal.NullDecimal {
	if d.Valid && d.Decimal.IsNegative() {
		return decimal.NullDecimal{}
	}
	return d
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
