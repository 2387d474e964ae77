package api

import (
	"net/http"
	"strings"

	"github.com/kjannette/coinledger/internal/models"
)

type seriesResponse struct {
	CoinID     string             `json:"coinId"`
	VsCurrency string             `json:"vsCurrency,omitempty"`
	Points     models.PriceSeries `json:"points"`
	Last       *models.PricePoint `json:"last,omitempty"`
}

func newSeriesResponse(coin, vs string, series models.PriceSeries) seriesResponse {
	if series == nil {
		series = models.PriceSeries{}
	}
	resp := seriesResponse{CoinID: coin, VsCurrency: vs, Points: series}
	if last, ok := series.Last(); ok {
		resp.Last = &last
	}
	return resp
}

// handlePrices closes the gap to today before answering.
func (s *Server) handlePrices(w http.ResponseWriter, r *http.Request) {
	coin := coinParam(r)
	days, ok := parseDays(r, s.maxDays)
	if !ok {
		writeError(w, http.StatusBadRequest, "days must be a positive integer")
		return
	}
	// The store holds one series per coin, in the configured currency.
	vs := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("vs")))
	if vs == "" {
		vs = s.vsCurrency
	}
	if vs != s.vsCurrency {
		writeError(w, http.StatusBadRequest, "prices are stored in "+s.vsCurrency+" only")
		return
	}

	series, err := s.sync.GetUpToDateSeries(r.Context(), coin, vs, days)
	if err != nil {
		s.writeUpstreamError(w, "sync prices", err)
		return
	}
	writeJSON(w, http.StatusOK, newSeriesResponse(coin, vs, series))
}

func (s *Server) handleStoredPrices(w http.ResponseWriter, r *http.Request) {
	coin := coinParam(r)
	series, err := s.prices.Read(r.Context(), coin)
	if err != nil {
		s.log.Error("read stored prices", "coin", coin, "err", err)
		writeError(w, http.StatusInternalServerError, "failed to fetch prices")
		return
	}
	writeJSON(w, http.StatusOK, newSeriesResponse(coin, "", series))
}
