package external

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kjannette/coinledger/internal/httputil"
	"github.com/kjannette/coinledger/internal/models"
)

const (
	coinGeckoPublicBaseURL = "https://api.coingecko.com/api/v3"
	coinGeckoProBaseURL    = "https://pro-api.coingecko.com/api/v3"
)

// StatusError is a non-retryable HTTP failure from the market-data API.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("coingecko returned status %d: %s", e.StatusCode, e.Body)
}

type CoinGeckoOptions struct {
	BaseURL string
	APIKey  string
	Retry   httputil.RetryConfig
	Timeout time.Duration
	Logger  *slog.Logger
}

type CoinGeckoClient struct {
	baseURL      string
	apiKey       string
	apiKeyHeader string
	httpClient   *http.Client
	retry        httputil.RetryConfig
}

func NewCoinGeckoClient(opts CoinGeckoOptions) *CoinGeckoClient {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = coinGeckoPublicBaseURL
	}
	header := "x-cg-demo-api-key"
	if strings.Contains(base, "pro-api.coingecko.com") {
		header = "x-cg-pro-api-key"
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	retry := opts.Retry
	if retry.MaxAttempts == 0 {
		retry = httputil.DefaultRetry
	}
	if retry.Logger == nil {
		retry.Logger = opts.Logger
	}
	return &CoinGeckoClient{
		baseURL:      base,
		apiKey:       opts.APIKey,
		apiKeyHeader: header,
		httpClient:   &http.Client{Timeout: timeout},
		retry:        retry,
	}
}

func CoinGeckoDefaultBaseURL(plan string) string {
	if strings.EqualFold(plan, "pro") {
		return coinGeckoProBaseURL
	}
	return coinGeckoPublicBaseURL
}

// FetchMarketChart returns daily prices and total volumes for the last days days.
func (c *CoinGeckoClient) FetchMarketChart(ctx context.Context, coinID, vsCurrency string, days int) (*models.MarketChart, error) {
	q := url.Values{}
	q.Set("vs_currency", vsCurrency)
	q.Set("days", strconv.Itoa(days))
	q.Set("interval", "daily")

	var data struct {
		Prices       [][]float64 `json:"prices"`
		TotalVolumes [][]float64 `json:"total_volumes"`
	}
	if err := c.getJSON(ctx, "/coins/"+url.PathEscape(coinID)+"/market_chart", q, &data); err != nil {
		return nil, fmt.Errorf("market chart %s: %w", coinID, err)
	}

	prices, err := pairs(data.Prices)
	if err != nil {
		return nil, fmt.Errorf("market chart %s prices: %w", coinID, err)
	}
	volumes, err := pairs(data.TotalVolumes)
	if err != nil {
		return nil, fmt.Errorf("market chart %s volumes: %w", coinID, err)
	}
	return &models.MarketChart{Prices: prices, TotalVolumes: volumes}, nil
}

// FetchPrices is the price half of FetchMarketChart.
func (c *CoinGeckoClient) FetchPrices(ctx context.Context, coinID, vsCurrency string, days int) ([]models.MarketPoint, error) {
	chart, err := c.FetchMarketChart(ctx, coinID, vsCurrency, days)
	if err != nil {
		return nil, err
	}
	return chart.Prices, nil
}

// FetchOHLC returns candles without volume; the ohlc endpoint does not carry it.
func (c *CoinGeckoClient) FetchOHLC(ctx context.Context, coinID, vsCurrency string, days int) ([]models.Candle, error) {
	q := url.Values{}
	q.Set("vs_currency", vsCurrency)
	q.Set("days", strconv.Itoa(days))

	var rows [][]float64
	if err := c.getJSON(ctx, "/coins/"+url.PathEscape(coinID)+"/ohlc", q, &rows); err != nil {
		return nil, fmt.Errorf("ohlc %s: %w", coinID, err)
	}

	out := make([]models.Candle, 0, len(rows))
	for i, r := range rows {
		if len(r) < 5 {
			return nil, fmt.Errorf("ohlc %s: row %d has %d fields", coinID, i, len(r))
		}
		out = append(out, models.Candle{
			Time:  time.UnixMilli(int64(r[0])).UTC(),
			Open:  r[1],
			High:  r[2],
			Low:   r[3],
			Close: r[4],
		})
	}
	return out, nil
}

func (c *CoinGeckoClient) getJSON(ctx context.Context, path string, q url.Values, dst any) error {
	endpoint := c.baseURL + path + "?" + q.Encode()

	resp, err := httputil.Do(ctx, c.httpClient, c.retry, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		if c.apiKey != "" {
			req.Header.Set(c.apiKeyHeader, c.apiKey)
		}
		return req, nil
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}

func pairs(raw [][]float64) ([]models.MarketPoint, error) {
	out := make([]models.MarketPoint, 0, len(raw))
	for i, r := range raw {
		if len(r) < 2 {
			return nil, fmt.Errorf("point %d has %d fields", i, len(r))
		}
		out = append(out, models.MarketPoint{TimestampMs: int64(r[0]), Value: r[1]})
	}
	return out, nil
}
