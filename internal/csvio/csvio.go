// Package csvio reads and writes the investment ledger as CSV.
package csvio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/kjannette/coinledger/internal/models"
	"github.com/kjannette/coinledger/internal/profit"
)

// Columns is the import and export layout of the ledger.
var Columns = []string{"coin_id", "date", "investor", "amount", "note"}

var profitColumns = []string{"purchase_price", "current_price", "units", "current_value", "gain", "roi"}

// ErrMissingColumns is returned when the header lacks a required column.
var ErrMissingColumns = errors.New("missing required columns")

// RowError is a data row that could not be turned into an investment.
// Line is the 1-based line in the input, header included.
type RowError struct {
	Line int
	Err  error
}

func (e RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e RowError) Unwrap() error { return e.Err }

// ReadInvestments parses a CSV whose header contains at least Columns, in any
// order. Bad rows are returned as RowErrors and do not stop the read; a bad
// header or unreadable input is returned as err.
func ReadInvestments(r io.Reader) ([]models.Investment, []RowError, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, fmt.Errorf("%w: empty input", ErrMissingColumns)
		}
		return nil, nil, fmt.Errorf("read header: %w", err)
	}

	idx := map[string]int{}
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	var missing []string
	for _, c := range Columns {
		if _, ok := idx[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, nil, fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}

	var invs []models.Investment
	var rowErrs []RowError
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				rowErrs = append(rowErrs, RowError{Line: pe.Line, Err: pe.Err})
				continue
			}
			return invs, rowErrs, err
		}

		field := func(name string) string {
			i := idx[name]
			if i >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[i])
		}

		inv, err := parseRow(field)
		if err != nil {
			line, _ := cr.FieldPos(0)
			rowErrs = append(rowErrs, RowError{Line: line, Err: err})
			continue
		}
		invs = append(invs, inv)
	}
	return invs, rowErrs, nil
}

func parseRow(field func(string) string) (models.Investment, error) {
	coin := field("coin_id")
	if coin == "" {
		return models.Investment{}, errors.New("coin_id is empty")
	}
	investor := field("investor")
	if investor == "" {
		return models.Investment{}, errors.New("investor is empty")
	}
	d, err := ParseDate(field("date"))
	if err != nil {
		return models.Investment{}, err
	}
	amount, err := strconv.ParseFloat(field("amount"), 64)
	if err != nil {
		return models.Investment{}, fmt.Errorf("amount %q: %w", field("amount"), err)
	}
	inv := models.Investment{
		CoinID:   coin,
		Date:     d,
		Investor: investor,
		Amount:   amount,
		Note:     field("note"),
	}
	return inv.Normalize(), nil
}

// ParseDate accepts YYYY-MM-DD and the timestamp forms spreadsheet exports
// produce, keeping only the calendar date.
func ParseDate(s string) (civil.Date, error) {
	if d, err := civil.ParseDate(s); err == nil {
		return d, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return civil.DateOf(t), nil
		}
	}
	return civil.Date{}, fmt.Errorf("date %q: expected YYYY-MM-DD", s)
}

// WriteInvestments writes invs with the Columns header.
func WriteInvestments(w io.Writer, invs []models.Investment) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return err
	}
	for _, inv := range invs {
		if err := cw.Write(investmentRecord(inv)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteProfit writes each valued investment followed by its derived columns.
func WriteProfit(w io.Writer, rep *profit.Report) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(append(append([]string{}, Columns...), profitColumns...)); err != nil {
		return err
	}
	for _, r := range rep.Results {
		rec := append(investmentRecord(r.Investment),
			price(r.PurchasePrice),
			price(r.CurrentPrice),
			decimal.NewFromFloat(r.Units).Round(8).String(),
			money(r.CurrentValue),
			money(r.Gain),
			decimal.NewFromFloat(r.ROI).Round(4).String(),
		)
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func investmentRecord(inv models.Investment) []string {
	return []string{
		inv.CoinID,
		inv.Date.String(),
		inv.Investor,
		strconv.FormatFloat(inv.Amount, 'f', -1, 64),
		inv.Note,
	}
}

func money(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

// price keeps enough places for sub-cent coins.
func price(v float64) string {
	return decimal.NewFromFloat(v).Round(8).String()
}
