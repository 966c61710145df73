package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/trogers1052/nse-market-service/internal/database"
	"github.com/trogers1052/nse-market-service/internal/fetcher"
	"github.com/trogers1052/nse-market-service/internal/parser"
	"github.com/trogers1052/nse-market-service/internal/pipeline"
	"github.com/trogers1052/nse-market-service/internal/query"
)

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
	Stage   string `json:"stage,omitempty"`
}

type badRequestError struct {
	msg string
	err error
}

func (e *badRequestError) Error() string {
	return e.msg + ": " + e.err.Error()
}

func (e *badRequestError) Unwrap() error {
	return e.err
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status, message := classifyError(err)

	resp := errorResponse{Error: message, Details: err.Error()}
	var runErr *pipeline.RunError
	if errors.As(err, &runErr) {
		resp.Stage = string(runErr.Stage)
	}

	entry := h.logger.WithError(err).WithField("path", r.URL.Path)
	if status >= http.StatusInternalServerError {
		entry.Error("request failed")
	} else {
		entry.Debug("request rejected")
	}

	if h.legacyStatus {
		status = http.StatusOK
	}
	respondJSON(w, status, resp)
}

// classifyError maps an error to a status code and a short message
func classifyError(err error) (int, string) {
	var (
		badRequest *badRequestError
		invalid    *query.InvalidArgumentError
		fetchErr   *fetcher.Error
		parseErr   *parser.ParseError
		persistErr *database.PersistenceError
	)

	switch {
	case errors.As(err, &badRequest):
		return http.StatusBadRequest, badRequest.msg
	case errors.As(err, &invalid):
		return http.StatusBadRequest, invalid.Error()
	case errors.Is(err, database.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.As(err, &fetchErr):
		if fetchErr.Kind == fetcher.KindTimeout {
			return http.StatusGatewayTimeout, "Failed to scrape data: source timed out"
		}
		return http.StatusBadGateway, "Failed to scrape data"
	case errors.As(err, &parseErr):
		return http.StatusBadGateway, "Failed to scrape data: unexpected page structure"
	case errors.Is(err, pipeline.ErrNoValidRows):
		return http.StatusBadGateway, "Failed to scrape data: no valid rows"
	case errors.As(err, &persistErr):
		if persistErr.Kind == database.KindConnectionFailure {
			return http.StatusServiceUnavailable, "Failed to save data"
		}
		return http.StatusInternalServerError, "Failed to save data"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "request timed out"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}
