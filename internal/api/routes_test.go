package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kjannette/coinledger/internal/charts"
	"github.com/kjannette/coinledger/internal/external"
	"github.com/kjannette/coinledger/internal/httputil"
	"github.com/kjannette/coinledger/internal/models"
)

func day(s string) civil.Date {
	d, err := civil.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

type fakePrices struct {
	series map[string]models.PriceSeries
}

func (f *fakePrices) Read(_ context.Context, coin string) (models.PriceSeries, error) {
	return f.series[coin], nil
}

type fakeSync struct {
	series    models.PriceSeries
	err       error
	gotVs     string
	gotDays   int
	callCount int
}

func (f *fakeSync) GetUpToDateSeries(_ context.Context, _, vs string, days int) (models.PriceSeries, error) {
	f.callCount++
	f.gotVs, f.gotDays = vs, days
	return f.series, f.err
}

type fakeLedger struct {
	rows    map[models.InvestmentKey]models.Investment
	order   []models.InvestmentKey
	deleted []models.InvestmentKey
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{rows: map[models.InvestmentKey]models.Investment{}}
}

func (f *fakeLedger) Insert(_ context.Context, inv models.Investment) (bool, error) {
	if _, ok := f.rows[inv.Key()]; ok {
		return false, nil
	}
	f.rows[inv.Key()] = inv
	f.order = append(f.order, inv.Key())
	return true, nil
}

func (f *fakeLedger) BulkInsert(ctx context.Context, invs []models.Investment) (models.BulkResult, error) {
	var res models.BulkResult
	for _, inv := range invs {
		ok, _ := f.Insert(ctx, inv)
		if ok {
			res.Inserted++
		} else {
			res.Skipped++
		}
	}
	return res, nil
}

func (f *fakeLedger) ListByCoin(_ context.Context, coin string) ([]models.Investment, error) {
	var out []models.Investment
	for _, k := range f.order {
		if inv, ok := f.rows[k]; ok && strings.EqualFold(inv.CoinID, coin) {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (f *fakeLedger) ListAll(_ context.Context) ([]models.Investment, error) {
	var out []models.Investment
	for _, k := range f.order {
		if inv, ok := f.rows[k]; ok {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (f *fakeLedger) Delete(_ context.Context, coin string, date civil.Date, investor string) error {
	k := models.InvestmentKey{CoinID: coin, Date: date, Investor: investor}
	f.deleted = append(f.deleted, k)
	delete(f.rows, k)
	return nil
}

type fakeCharts struct {
	candleErr error
	gotCoins  []string
}

func (f *fakeCharts) Compare(_ context.Context, coins []string) (*charts.Comparison, error) {
	f.gotCoins = coins
	if len(coins) < charts.MinCompare {
		return nil, charts.ErrCoinCount
	}
	return &charts.Comparison{Panels: []charts.Panel{{CoinID: coins[0]}, {CoinID: coins[1]}}}, nil
}

func (f *fakeCharts) Candles(_ context.Context, coin string, days int) (*charts.CandleSet, error) {
	if f.candleErr != nil {
		return nil, f.candleErr
	}
	return &charts.CandleSet{CoinID: coin, Days: charts.SnapDays(days)}, nil
}

type fixture struct {
	prices *fakePrices
	sync   *fakeSync
	ledger *fakeLedger
	charts *fakeCharts
	srv    *Server
}

func newFixture(apiKey string) *fixture {
	f := &fixture{
		prices: &fakePrices{series: map[string]models.PriceSeries{
			"bitcoin": {
				{Date: day("2024-01-01"), PriceUSD: 100},
				{Date: day("2024-01-05"), PriceUSD: 200},
			},
		}},
		sync:   &fakeSync{},
		ledger: newFakeLedger(),
		charts: &fakeCharts{},
	}
	f.srv = NewServer(Deps{
		Prices:     f.prices,
		Sync:       f.sync,
		Ledger:     f.ledger,
		Charts:     f.charts,
		VsCurrency: "usd",
		MaxDays:    365,
	}, 0, apiKey, "*")
	return f
}

func (f *fixture) do(method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	rr := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rr, req)
	return rr
}

func TestHealthWithoutDatabase(t *testing.T) {
	f := newFixture("secret")
	rr := f.do(http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "not configured")
}

func TestRoutesRequireBearerWhenKeySet(t *testing.T) {
	f := newFixture("secret")
	rr := f.do(http.MethodGet, "/v1/investments", "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestPricesSyncsWithQueryParams(t *testing.T) {
	f := newFixture("")
	f.sync.series = models.PriceSeries{{Date: day("2024-01-01"), PriceUSD: 42}}

	rr := f.do(http.MethodGet, "/v1/prices/Bitcoin?vs=USD&days=30", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "usd", f.sync.gotVs)
	assert.Equal(t, 30, f.sync.gotDays)

	var resp seriesResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "bitcoin", resp.CoinID)
	require.NotNil(t, resp.Last)
	assert.Equal(t, 42.0, resp.Last.PriceUSD)
}

func TestPricesRejectOtherCurrency(t *testing.T) {
	f := newFixture("")
	rr := f.do(http.MethodGet, "/v1/prices/bitcoin?vs=eur", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, 0, f.sync.callCount, "a foreign currency must never reach the store")
}

func TestPricesUpstreamErrors(t *testing.T) {
	f := newFixture("")

	f.sync.err = fmt.Errorf("fetch: %w", &external.StatusError{StatusCode: http.StatusNotFound})
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/v1/prices/nocoin", "").Code)

	f.sync.err = fmt.Errorf("fetch: %w", httputil.ErrRetriesExhausted)
	assert.Equal(t, http.StatusBadGateway, f.do(http.MethodGet, "/v1/prices/bitcoin", "").Code)

	f.sync.err = errors.New("db down")
	assert.Equal(t, http.StatusInternalServerError, f.do(http.MethodGet, "/v1/prices/bitcoin", "").Code)

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/v1/prices/bitcoin?days=x", "").Code)
}

func TestStoredPricesSkipSync(t *testing.T) {
	f := newFixture("")
	rr := f.do(http.MethodGet, "/v1/prices/bitcoin/stored", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 0, f.sync.callCount)
	assert.Contains(t, rr.Body.String(), `"2024-01-05"`)
}

func TestCreateInvestmentConflict(t *testing.T) {
	f := newFixture("")
	body := `{"coinId":"Algorand","date":"2024-01-01","investor":"Alice","amount":100,"note":"first"}`

	rr := f.do(http.MethodPost, "/v1/investments", body)
	require.Equal(t, http.StatusCreated, rr.Code)
	assert.Contains(t, rr.Body.String(), `"coinId":"algorand"`)

	rr = f.do(http.MethodPost, "/v1/investments", body)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Len(t, f.ledger.rows, 1)
}

func TestCreateInvestmentValidation(t *testing.T) {
	f := newFixture("")
	cases := []string{
		`{"coinId":"","date":"2024-01-01","investor":"a","amount":1}`,
		`{"coinId":"btc","date":"2024-01-01","investor":"","amount":1}`,
		`{"coinId":"btc","date":"01/01/2024","investor":"a","amount":1}`,
		`{"coinId":"btc","date":"2024-01-01","investor":"a","amount":0}`,
		`{"coinId":"btc","extra":true}`,
		`not json`,
	}
	for _, body := range cases {
		rr := f.do(http.MethodPost, "/v1/investments", body)
		assert.Equal(t, http.StatusBadRequest, rr.Code, body)
	}
	assert.Empty(t, f.ledger.rows)
}

func TestDeleteInvestment(t *testing.T) {
	f := newFixture("")
	rr := f.do(http.MethodDelete, "/v1/investments/bitcoin/2024-01-01/alice", "")
	assert.Equal(t, http.StatusNoContent, rr.Code)
	require.Len(t, f.ledger.deleted, 1)
	assert.Equal(t, models.InvestmentKey{CoinID: "bitcoin", Date: day("2024-01-01"), Investor: "alice"}, f.ledger.deleted[0])

	rr = f.do(http.MethodDelete, "/v1/investments/bitcoin/yesterday/alice", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestDeleteInvestmentDecodesSegments(t *testing.T) {
	f := newFixture("")
	rr := f.do(http.MethodDelete, "/v1/investments/Bitcoin/2024-01-01/Kraken%2FPro%20Desk", "")
	require.Equal(t, http.StatusNoContent, rr.Code)
	require.Len(t, f.ledger.deleted, 1)
	assert.Equal(t, "bitcoin", f.ledger.deleted[0].CoinID)
	assert.Equal(t, "Kraken/Pro Desk", f.ledger.deleted[0].Investor)
}

func TestImportAndExport(t *testing.T) {
	f := newFixture("")
	csvBody := "coin_id,date,investor,amount,note\n" +
		"bitcoin,2024-01-01,alice,100,a\n" +
		"bitcoin,2024-01-01,alice,100,dup\n" +
		"bitcoin,bad-date,bob,5,\n" +
		"ethereum,2024-02-01,bob,50,\n"

	rr := f.do(http.MethodPost, "/v1/investments/import", csvBody)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp importResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Inserted)
	assert.Equal(t, 1, resp.Skipped)
	require.Len(t, resp.Errors, 1)
	assert.Contains(t, resp.Errors[0], "line 4")

	rr = f.do(http.MethodGet, "/v1/investments/export", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "text/csv", rr.Header().Get("Content-Type"))
	lines := strings.Split(strings.TrimSpace(rr.Body.String()), "\n")
	assert.Equal(t, "coin_id,date,investor,amount,note", lines[0])
	assert.Len(t, lines, 3)

	rr = f.do(http.MethodGet, "/v1/investments/ethereum", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"investor":"bob"`)
}

func TestImportRejectsMissingColumns(t *testing.T) {
	f := newFixture("")
	rr := f.do(http.MethodPost, "/v1/investments/import", "coin_id,date\nbitcoin,2024-01-01\n")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestProfitSkipsUnvaluedInvestments(t *testing.T) {
	f := newFixture("")
	f.ledger.Insert(context.Background(), models.Investment{CoinID: "bitcoin", Date: day("2024-01-01"), Investor: "alice", Amount: 100})
	f.ledger.Insert(context.Background(), models.Investment{CoinID: "dogecoin", Date: day("2024-01-01"), Investor: "alice", Amount: 10})

	rr := f.do(http.MethodGet, "/v1/profit", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var rep struct {
		Results []struct {
			CurrentValue float64 `json:"currentValue"`
		} `json:"results"`
		Skipped       []json.RawMessage `json:"skipped"`
		TotalInvested float64           `json:"totalInvested"`
		ROI           float64           `json:"roi"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &rep))
	require.Len(t, rep.Results, 1)
	assert.InDelta(t, 200.0, rep.Results[0].CurrentValue, 1e-9)
	assert.Len(t, rep.Skipped, 1)
	assert.InDelta(t, 100.0, rep.TotalInvested, 1e-9)
	assert.InDelta(t, 1.0, rep.ROI, 1e-9)

	rr = f.do(http.MethodGet, "/v1/profit/export?coin=bitcoin", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "bitcoin,2024-01-01,alice,100,,100")
}

func TestChartRoutes(t *testing.T) {
	f := newFixture("")

	rr := f.do(http.MethodGet, "/v1/charts/compare?coins=Bitcoin,%20ethereum", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []string{"bitcoin", "ethereum"}, f.charts.gotCoins)

	rr = f.do(http.MethodGet, "/v1/charts/compare?coins=bitcoin", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = f.do(http.MethodGet, "/v1/charts/candles/bitcoin?days=25", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"days":30`)

	f.charts.candleErr = &external.StatusError{StatusCode: http.StatusTooManyRequests}
	rr = f.do(http.MethodGet, "/v1/charts/candles/bitcoin", "")
	assert.Equal(t, http.StatusBadGateway, rr.Code)
}
