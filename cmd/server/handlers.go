package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/wofare/edgar-filing-analyzer-sub000/internal/adapter"
)

// Tickers are 1-5 letters; normalization to uppercase happens downstream.
var symbolPattern = regexp.MustCompile(`^[A-Za-z]{1,5}$`)

type api struct {
	adapter *adapter.Adapter
	log     *logrus.Logger
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// GET /api/price?symbol=AAPL&period=1M[&provider=yahoo][&skipCache=true]
func (a *api) handlePrice(w http.ResponseWriter, r *http.Request) {
	symbol := strings.TrimSpace(r.URL.Query().Get("symbol"))
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "missing symbol parameter")
		return
	}
	if !symbolPattern.MatchString(symbol) {
		writeError(w, http.StatusBadRequest, "invalid symbol")
		return
	}

	opts := adapter.Options{
		Period:        r.URL.Query().Get("period"),
		ForceProvider: r.URL.Query().Get("provider"),
		SkipCache:     parseBoolParam(r.URL.Query().Get("skipCache")),
	}

	snap, err := a.adapter.GetPriceData(r.Context(), symbol, opts)
	if err != nil {
		var fe *adapter.FetchError
		switch {
		case errors.As(err, &fe) && fe.AllNotFound():
			writeError(w, http.StatusNotFound, "symbol not found: "+strings.ToUpper(symbol))
		case errors.As(err, &fe):
			a.log.WithError(err).WithField("symbol", symbol).Warn("all providers failed")
			writeError(w, http.StatusBadGateway, err.Error())
		default:
			writeError(w, http.StatusBadRequest, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// GET /api/search?q=apple
func (a *api) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeError(w, http.StatusBadRequest, "missing q parameter")
		return
	}
	results, err := a.adapter.Search(r.Context(), q)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, results)
}

// GET /api/providers
func (a *api) handleProviders(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.adapter.HealthStatus())
}

// GET /healthz
func (a *api) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func parseBoolParam(v string) bool {
	switch strings.ToLower(v) {
	case "1", "true", "yes":
		return true
	}
	return false
}
