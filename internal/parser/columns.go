package parser

import (
	"strings"
)

// Canonical RawRow keys
const (
	ColSymbol        = "symbol"
	ColName          = "name"
	ColSector        = "sector"
	ColDate          = "date"
	ColLow           = "low"
	ColHigh          = "high"
	ColClose         = "close"
	ColPrevClose     = "prev_close"
	ColVolume        = "volume"
	ColChange        = "change"
	ColChangePercent = "change_percent"
)

var headerAliases = map[string]string{
	"code":              ColSymbol,
	"symbol":            ColSymbol,
	"ticker":            ColSymbol,
	"stock code":        ColSymbol,
	"name":              ColName,
	"company":           ColName,
	"company name":      ColName,
	"security":          ColName,
	"stock":             ColName,
	"date":              ColDate,
	"trading date":      ColDate,
	"low":               ColLow,
	"lowest":            ColLow,
	"lowest price":      ColLow,
	"day low":           ColLow,
	"high":              ColHigh,
	"highest":           ColHigh,
	"highest price":     ColHigh,
	"day high":          ColHigh,
	"close":             ColClose,
	"closing":           ColClose,
	"closing price":     ColClose,
	"price":             ColClose,
	"last":              ColClose,
	"last price":        ColClose,
	"today's price":     ColClose,
	"prev":              ColPrevClose,
	"previous":          ColPrevClose,
	"prev close":        ColPrevClose,
	"previous close":    ColPrevClose,
	"prev price":        ColPrevClose,
	"previous price":    ColPrevClose,
	"yesterday's price": ColPrevClose,
	"volume":            ColVolume,
	"vol":               ColVolume,
	"shares traded":     ColVolume,
	"change":            ColChange,
	"chg":               ColChange,
	"+/-":               ColChange,
	"% change":          ColChangePercent,
	"change %":          ColChangePercent,
	"chg %":             ColChangePercent,
	"%chg":              ColChangePercent,
	"%":                 ColChangePercent,
	"percentage change": ColChangePercent,
}

var unitSuffixes = []string{"(kes)", "(ksh)", "kes", "ksh"}

// canonicalColumn maps a header cell to a RawRow key, or "" when unknown
func canonicalColumn(header string) string {
	h := strings.ToLower(strings.Join(strings.Fields(header), " "))
	h = strings.ReplaceAll(h, "’", "'")
	h = strings.TrimRight(h, ".:")
	for _, suffix := range unitSuffixes {
		h = strings.TrimSpace(strings.TrimSuffix(h, suffix))
	}
	return headerAliases[h]
}
