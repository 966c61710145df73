package normalizer

import (
	"cmp"
	"errors"
	"slices"
	"strconv"

	"github.com/trogers1052/nse-market-service/internal/models"
	"github.com/trogers1052/nse-market-service/internal/parser"
)

// Batch is a fully normalized scrape run, ready for a single upsert
type Batch struct {
	Observations []models.PriceObservation
	Skipped      []models.SkippedRow
}

// PriorKeys returns the keys of rows that omit their previous close and so
// need the latest stored observation before them.
func PriorKeys(rows []parser.RawRow) []models.ObservationKey {
	seen := make(map[models.ObservationKey]bool)
	var keys []models.ObservationKey
	for _, row := range rows {
		obs, err := Normalize(row, nil)
		if err != nil || obs.PreviousClose.Valid {
			continue
		}
		key := obs.Key()
		if seen[key] {
			continue
		}
		seen[key] = true
		keys = append(keys, key)
	}
	return keys
}

type entry struct {
	index   int
	row     parser.RawRow
	obs     models.PriceObservation
	dropped bool
}

// NormalizeBatch normalizes every row before anything is persisted. priors
// holds, per (symbol, date), the latest stored observation strictly before
// that date. Earlier rows of the same batch take precedence over priors when
// they are more recent. When a key appears twice the later row wins and the
// earlier one is reported as skipped. Observations keep source order.
func NormalizeBatch(rows []parser.RawRow, priors map[models.ObservationKey]*models.PriceObservation) Batch {
	var batch Batch
	entries := make([]entry, 0, len(rows))
	for i, row := range rows {
		obs, err := Normalize(row, nil)
		if err != nil {
			batch.Skipped = append(batch.Skipped, skippedRow(i, err))
			continue
		}
		entries = append(entries, entry{index: i, row: row, obs: obs})
	}

	byKey := make(map[models.ObservationKey]int, len(entries))
	for i := range entries {
		key := entries[i].obs.Key()
		if prev, dup := byKey[key]; dup {
			entries[prev].dropped = true
			batch.Skipped = append(batch.Skipped, models.SkippedRow{
				Index:  entries[prev].index,
				Symbol: key.Symbol,
				Reason: string(ReasonDuplicateKey),
				Detail: "superseded by row " + strconv.Itoa(entries[i].index),
			})
		}
		byKey[key] = i
	}

	order := make([]int, 0, len(byKey))
	for i := range entries {
		if !entries[i].dropped {
			order = append(order, i)
		}
	}
	slices.SortStableFunc(order, func(a, b int) int {
		ea, eb := &entries[a].obs, &entries[b].obs
		return cmp.Or(cmp.Compare(ea.Symbol, eb.Symbol), ea.Date.Compare(eb.Date))
	})

	var last *models.PriceObservation
	for _, i := range order {
		e := &entries[i]
		prior := priors[e.obs.Key()]
		if last != nil && last.Symbol == e.obs.Symbol && (prior == nil || last.Date.After(prior.Date)) {
			prior = last
		}
		if !e.obs.PreviousClose.Valid && prior != nil {
			if obs, err := Normalize(e.row, prior); err == nil {
				e.obs = obs
			}
		}
		last = &e.obs
	}

	for i := range entries {
		if !entries[i].dropped {
			batch.Observations = append(batch.Observations, entries[i].obs)
		}
	}
	slices.SortStableFunc(batch.Skipped, func(a, b models.SkippedRow) int {
		return cmp.Compare(a.Index, b.Index)
	})
	return batch
}

func skippedRow(index int, err error) models.SkippedRow {
	var skip *SkipRow
	if !errors.As(err, &skip) {
		return models.SkippedRow{Index: index, Reason: string(ReasonUnparseableValue), Detail: err.Error()}
	}
	return models.SkippedRow{
		Index:  index,
		Symbol: skip.Symbol,
		Reason: string(skip.Reason),
		Detail: skip.Detail(),
	}
}
