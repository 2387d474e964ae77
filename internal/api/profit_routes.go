package api

import (
	"net/http"
	"strings"

	"github.com/kjannette/coinledger/internal/csvio"
	"github.com/kjannette/coinledger/internal/models"
	"github.com/kjannette/coinledger/internal/profit"
)

// profitReport values the whole ledger, or one coin with ?coin=.
func (s *Server) profitReport(r *http.Request) (*profit.Report, error) {
	var (
		invs []models.Investment
		err  error
	)
	if coin := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("coin"))); coin != "" {
		invs, err = s.ledger.ListByCoin(r.Context(), coin)
	} else {
		invs, err = s.ledger.ListAll(r.Context())
	}
	if err != nil {
		return nil, err
	}
	return profit.Calculate(r.Context(), s.prices, invs)
}

func (s *Server) handleProfit(w http.ResponseWriter, r *http.Request) {
	rep, err := s.profitReport(r)
	if err != nil {
		s.log.Error("profit report", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to calculate profit")
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleProfitExport(w http.ResponseWriter, r *http.Request) {
	rep, err := s.profitReport(r)
	if err != nil {
		s.log.Error("profit export", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to calculate profit")
		return
	}
	writeCSVHeaders(w, "profit.csv")
	if err := csvio.WriteProfit(w, rep); err != nil {
		s.log.Error("write profit csv", "err", err)
	}
}
