package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/kjannette/coinledger/internal/charts"
)

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	var coins []string
	for _, c := range strings.Split(r.URL.Query().Get("coins"), ",") {
		if c = strings.ToLower(strings.TrimSpace(c)); c != "" {
			coins = append(coins, c)
		}
	}

	cmp, err := s.charts.Compare(r.Context(), coins)
	if errors.Is(err, charts.ErrCoinCount) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		s.log.Error("compare", "coins", coins, "err", err)
		writeError(w, http.StatusInternalServerError, "failed to build comparison")
		return
	}
	writeJSON(w, http.StatusOK, cmp)
}

func (s *Server) handleCandles(w http.ResponseWriter, r *http.Request) {
	days, ok := parseDays(r, 30)
	if !ok {
		writeError(w, http.StatusBadRequest, "days must be a positive integer")
		return
	}
	set, err := s.charts.Candles(r.Context(), coinParam(r), days)
	if err != nil {
		s.writeUpstreamError(w, "fetch candles", err)
		return
	}
	writeJSON(w, http.StatusOK, set)
}
