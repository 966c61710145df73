package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// SetupRoutes configures all API routes
func SetupRoutes(handler *Handler, logger logrus.FieldLogger) *mux.Router {
	r := mux.NewRouter()
	r.Use(recoveryMiddleware(logger), loggingMiddleware(logger))

	// Health check
	r.HandleFunc("/health", handler.HealthCheck).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()

	// Prices
	api.HandleFunc("/stocks", handler.GetLatestPrices).Methods(http.MethodGet)
	api.HandleFunc("/stocks/{symbol}", handler.GetHistory).Methods(http.MethodGet)
	api.HandleFunc("/stocks/{symbol}/latest", handler.GetLatest).Methods(http.MethodGet)
	api.HandleFunc("/top-movers", handler.GetTopMovers).Methods(http.MethodGet)
	api.HandleFunc("/market/summary", handler.GetMarketSummary).Methods(http.MethodGet)

	// Company profiles
	api.HandleFunc("/companies", handler.GetCompanies).Methods(http.MethodGet)
	api.HandleFunc("/stocks/{symbol}/profile", handler.GetStockProfile).Methods(http.MethodGet)
	api.HandleFunc("/stocks/{symbol}/profile", handler.UpdateStockProfile).Methods(http.MethodPut)

	// Scrape trigger
	api.HandleFunc("/scrape-and-save", handler.ScrapeAndSave).Methods(http.MethodPost)

	return r
}
