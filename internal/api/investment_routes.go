package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"cloud.google.com/go/civil"

	"github.com/kjannette/coinledger/internal/csvio"
	"github.com/kjannette/coinledger/internal/models"
)

const maxImportBytes = 10 << 20

type createInvestmentRequest struct {
	CoinID   string  `json:"coinId"`
	Date     string  `json:"date"`
	Investor string  `json:"investor"`
	Amount   float64 `json:"amount"`
	Note     string  `json:"note"`
}

type importResponse struct {
	models.BulkResult
	Errors []string `json:"errors"`
}

func (s *Server) handleListInvestments(w http.ResponseWriter, r *http.Request) {
	invs, err := s.ledger.ListAll(r.Context())
	if err != nil {
		s.log.Error("list investments", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to fetch investments")
		return
	}
	if invs == nil {
		invs = []models.Investment{}
	}
	writeJSON(w, http.StatusOK, invs)
}

func (s *Server) handleCoinInvestments(w http.ResponseWriter, r *http.Request) {
	coin := coinParam(r)
	invs, err := s.ledger.ListByCoin(r.Context(), coin)
	if err != nil {
		s.log.Error("list investments by coin", "coin", coin, "err", err)
		writeError(w, http.StatusInternalServerError, "failed to fetch investments")
		return
	}
	if invs == nil {
		invs = []models.Investment{}
	}
	writeJSON(w, http.StatusOK, invs)
}

func (s *Server) handleCreateInvestment(w http.ResponseWriter, r *http.Request) {
	var req createInvestmentRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	inv, err := req.investment()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	inserted, err := s.ledger.Insert(r.Context(), inv)
	if err != nil {
		s.log.Error("insert investment", "coin", inv.CoinID, "err", err)
		writeError(w, http.StatusInternalServerError, "failed to record investment")
		return
	}
	if !inserted {
		writeError(w, http.StatusConflict, "investment already recorded for this coin, date and investor")
		return
	}
	writeJSON(w, http.StatusCreated, inv)
}

func (req createInvestmentRequest) investment() (models.Investment, error) {
	inv := models.Investment{
		CoinID:   req.CoinID,
		Investor: req.Investor,
		Amount:   req.Amount,
		Note:     req.Note,
	}.Normalize()
	if inv.CoinID == "" {
		return inv, errors.New("coinId is required")
	}
	if inv.Investor == "" {
		return inv, errors.New("investor is required")
	}
	if inv.Amount <= 0 {
		return inv, errors.New("amount must be positive")
	}
	d, err := csvio.ParseDate(strings.TrimSpace(req.Date))
	if err != nil {
		return inv, err
	}
	inv.Date = d
	return inv, nil
}

func (s *Server) handleDeleteInvestment(w http.ResponseWriter, r *http.Request) {
	coin := coinParam(r)
	date, err := civil.ParseDate(pathParam(r, "date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date format, expected YYYY-MM-DD")
		return
	}
	investor := strings.TrimSpace(pathParam(r, "investor"))

	if err := s.ledger.Delete(r.Context(), coin, date, investor); err != nil {
		s.log.Error("delete investment", "coin", coin, "date", date, "err", err)
		writeError(w, http.StatusInternalServerError, "failed to delete investment")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleImportInvestments takes a CSV body. Rows that do not parse are
// reported next to the insert tally; duplicates count as skipped.
func (s *Server) handleImportInvestments(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, maxImportBytes)
	invs, rowErrs, err := csvio.ReadInvestments(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.ledger.BulkInsert(r.Context(), invs)
	if err != nil {
		s.log.Error("bulk insert investments", "inserted", res.Inserted, "err", err)
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("import stopped after %d rows", res.Inserted+res.Skipped))
		return
	}

	resp := importResponse{BulkResult: res, Errors: make([]string, 0, len(rowErrs))}
	for _, re := range rowErrs {
		resp.Errors = append(resp.Errors, re.Error())
	}
	s.log.Info("imported investments", "inserted", res.Inserted, "skipped", res.Skipped, "bad_rows", len(rowErrs))
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleExportInvestments(w http.ResponseWriter, r *http.Request) {
	invs, err := s.ledger.ListAll(r.Context())
	if err != nil {
		s.log.Error("export investments", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to fetch investments")
		return
	}
	writeCSVHeaders(w, "investments.csv")
	if err := csvio.WriteInvestments(w, invs); err != nil {
		s.log.Error("write investments csv", "err", err)
	}
}

func writeCSVHeaders(w http.ResponseWriter, filename string) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
}
