package models

import "time"

// SkippedRow is a source row excluded from a batch by the normalizer
type SkippedRow struct {
	Index  int    `json:"index"`
	Symbol string `json:"symbol,omitempty"`
	Reason string `json:"reason"`
	Detail string `json:"detail,omitempty"`
}

// FailedRow is an observation the repository refused to write
type FailedRow struct {
	Symbol string    `json:"symbol"`
	Date   time.Time `json:"date"`
	Reason string    `json:"reason"`
}

// ScrapeRun is the outcome of one scrape-and-persist run. Data previews the
// first stored observations.
type ScrapeRun struct {
	Success   bool               `json:"success"`
	Message   string             `json:"message"`
	Total     int                `json:"total"`
	Inserted  int                `json:"inserted"`
	Updated   int                `json:"updated"`
	Skipped   []SkippedRow       `json:"skipped"`
	Failed    []FailedRow        `json:"failed"`
	Source    string             `json:"source"`
	Timestamp time.Time          `json:"timestamp"`
	Duration  string             `json:"duration,omitempty"`
	Data      []PriceObservation `json:"data,omitempty"`
}
