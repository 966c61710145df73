// Package api exposes stored NSE prices and the scrape trigger over HTTP
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/trogers1052/nse-market-service/internal/models"
)

const maxBodyBytes = 1 << 20

// Queries answers read requests
type Queries interface {
	LatestPrices(ctx context.Context) ([]*models.PriceObservation, error)
	History(ctx context.Context, symbol string, days int) ([]*models.PriceObservation, error)
	Latest(ctx context.Context, symbol string) (*models.PriceObservation, error)
	TopMovers(ctx context.Context, limit int) (*models.TopMovers, error)
	MarketSummary(ctx context.Context) (*models.MarketSummary, error)
	StockProfile(ctx context.Context, symbol string) (*models.StockReference, error)
	Stocks(ctx context.Context) ([]*models.StockReference, error)
	UpdateStockProfile(ctx context.Context, symbol string, update models.StockProfileUpdate) (*models.StockReference, error)
}

// Scraper runs one scrape-and-save
type Scraper interface {
	Run(ctx context.Context) (*models.ScrapeRun, error)
}

// Pinger reports whether a dependency is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	queries      Queries
	scraper      Scraper
	checks       map[string]Pinger
	legacyStatus bool
	logger       logrus.FieldLogger
}

// Option configures a Handler
type Option func(*Handler)

// WithHealthCheck adds a named dependency to GET /health
func WithHealthCheck(name string, p Pinger) Option {
	return func(h *Handler) {
		h.checks[name] = p
	}
}

// WithLegacyStatus answers every API failure with HTTP 200
func WithLegacyStatus(enabled bool) Option {
	return func(h *Handler) {
		h.legacyStatus = enabled
	}
}

// NewHandler creates a new Handler
func NewHandler(queries Queries, scraper Scraper, logger logrus.FieldLogger, opts ...Option) *Handler {
	h := &Handler{
		queries: queries,
		scraper: scraper,
		checks:  make(map[string]Pinger),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type listResponse struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
	Count   int  `json:"count"`
}

type dataResponse struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

type scrapeResponse struct {
	Success     bool                      `json:"success"`
	Message     string                    `json:"message"`
	Total       int                       `json:"total"`
	Inserted    int                       `json:"inserted"`
	Updated     int                       `json:"updated"`
	Skipped     int                       `json:"skipped"`
	SkippedRows []models.SkippedRow       `json:"skipped_rows"`
	Failed      []models.FailedRow        `json:"failed"`
	Source      string                    `json:"source"`
	Timestamp   time.Time                 `json:"timestamp"`
	Duration    string                    `json:"duration,omitempty"`
	Data        []models.PriceObservation `json:"data,omitempty"`
}

// GetLatestPrices handles GET /api/stocks
func (h *Handler) GetLatestPrices(w http.ResponseWriter, r *http.Request) {
	prices, err := h.queries.LatestPrices(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, listResponse{Success: true, Data: prices, Count: len(prices)})
}

// GetHistory handles GET /api/stocks/{symbol}?days=N
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	days, err := intParam(r, "days")
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	history, err := h.queries.History(r.Context(), mux.Vars(r)["symbol"], days)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, listResponse{Success: true, Data: history, Count: len(history)})
}

// GetLatest handles GET /api/stocks/{symbol}/latest
func (h *Handler) GetLatest(w http.ResponseWriter, r *http.Request) {
	obs, err := h.queries.Latest(r.Context(), mux.Vars(r)["symbol"])
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, dataResponse{Success: true, Data: obs})
}

// GetTopMovers handles GET /api/top-movers?limit=N
func (h *Handler) GetTopMovers(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit")
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	movers, err := h.queries.TopMovers(r.Context(), limit)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, dataResponse{Success: true, Data: movers})
}

// GetMarketSummary handles GET /api/market/summary
func (h *Handler) GetMarketSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.queries.MarketSummary(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, dataResponse{Success: true, Data: summary})
}

// GetCompanies handles GET /api/companies
func (h *Handler) GetCompanies(w http.ResponseWriter, r *http.Request) {
	stocks, err := h.queries.Stocks(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, listResponse{Success: true, Data: stocks, Count: len(stocks)})
}

// GetStockProfile handles GET /api/stocks/{symbol}/profile
func (h *Handler) GetStockProfile(w http.ResponseWriter, r *http.Request) {
	stock, err := h.queries.StockProfile(r.Context(), mux.Vars(r)["symbol"])
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, dataResponse{Success: true, Data: stock})
}

// UpdateStockProfile handles PUT /api/stocks/{symbol}/profile
func (h *Handler) UpdateStockProfile(w http.ResponseWriter, r *http.Request) {
	var update models.StockProfileUpdate
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&update); err != nil {
		h.respondError(w, r, &badRequestError{msg: "invalid request body", err: err})
		return
	}

	stock, err := h.queries.UpdateStockProfile(r.Context(), mux.Vars(r)["symbol"], update)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, dataResponse{Success: true, Data: stock})
}

// ScrapeAndSave handles POST /api/scrape-and-save
func (h *Handler) ScrapeAndSave(w http.ResponseWriter, r *http.Request) {
	run, err := h.scraper.Run(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, scrapeResponse{
		Success:     run.Success,
		Message:     run.Message,
		Total:       run.Total,
		Inserted:    run.Inserted,
		Updated:     run.Updated,
		Skipped:     len(run.Skipped),
		SkippedRows: run.Skipped,
		Failed:      run.Failed,
		Source:      run.Source,
		Timestamp:   run.Timestamp,
		Duration:    run.Duration,
		Data:        run.Data,
	})
}

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(h.checks))
	for name, p := range h.checks {
		if err := p.Ping(ctx); err != nil {
			h.logger.WithError(err).WithField("check", name).Warn("health check failed")
			checks[name] = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	body := map[string]any{"status": "healthy", "checks": checks}
	if status != http.StatusOK {
		body["status"] = "unhealthy"
	}
	respondJSON(w, status, body)
}

func intParam(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &badRequestError{msg: "invalid " + name + " parameter", err: err}
	}
	return n, nil
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
