package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/quotla/quotla-api/internal/describe"
	"github.com/quotla/quotla-api/internal/export"
	"github.com/quotla/quotla-api/internal/fx"
	"github.com/quotla/quotla-api/internal/money"
)

// ErrorBody is the JSON shape of every non-2xx response.
type ErrorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	CorrID    string `json:"corrId"`
	Retryable bool   `json:"retryable"`
}

type errorClass struct {
	status    int
	code      string
	retryable bool
}

// classify maps domain errors to HTTP. Malformed documents are checked
// before invalid input since both describe bad request bodies.
func classify(err error) errorClass {
	switch {
	case errors.Is(err, export.ErrMalformedDocument):
		return errorClass{http.StatusUnprocessableEntity, "MALFORMED_DOCUMENT", false}
	case errors.Is(err, money.ErrInvalidInput):
		return errorClass{http.StatusBadRequest, "INVALID_INPUT", false}
	case errors.Is(err, fx.ErrRateNotFound):
		return errorClass{http.StatusNotFound, "RATE_NOT_FOUND", false}
	case errors.Is(err, fx.ErrRatesUnavailable):
		return errorClass{http.StatusServiceUnavailable, "RATES_UNAVAILABLE", true}
	case errors.Is(err, describe.ErrDisabled):
		return errorClass{http.StatusServiceUnavailable, "AI_DISABLED", false}
	case errors.Is(err, describe.ErrAllProvidersFailed):
		return errorClass{http.StatusBadGateway, "AI_UNAVAILABLE", true}
	}
	return errorClass{http.StatusInternalServerError, "INTERNAL_ERROR", true}
}

func writeError(w http.ResponseWriter, corrID string, err error) {
	c := classify(err)
	msg := err.Error()
	if c.status == http.StatusInternalServerError {
		msg = "internal error"
	}
	writeJSON(w, c.status, corrID, ErrorBody{Code: c.code, Message: msg, CorrID: corrID, Retryable: c.retryable}, nil)
}

func writeBadJSON(w http.ResponseWriter, corrID string, err error) {
	writeJSON(w, http.StatusBadRequest, corrID, ErrorBody{Code: "BAD_JSON", Message: "invalid JSON: " + err.Error(), CorrID: corrID}, nil)
}

func writeJSON(w http.ResponseWriter, status int, corrID string, v any, extra map[string]string) {
	w.Header().Set("Content-Type", "application/json")
	if corrID != "" {
		w.Header().Set("X-Correlation-Id", corrID)
	}
	for k, val := range extra {
		w.Header().Set(k, val)
	}
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
