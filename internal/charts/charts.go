// Package charts assembles the data behind the price comparison and
// candlestick views: synced series, investment markers and candles joined
// with volume. Rendering is left to the client.
package charts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"cloud.google.com/go/civil"

	"github.com/kjannette/coinledger/internal/external"
	"github.com/kjannette/coinledger/internal/httputil"
	"github.com/kjannette/coinledger/internal/models"
	"github.com/kjannette/coinledger/internal/telemetry"
)

const (
	MinCompare = 2
	MaxCompare = 4
)

// ValidDays are the windows the ohlc endpoint accepts.
var ValidDays = []int{1, 7, 14, 30, 90, 180, 365}

var ErrCoinCount = fmt.Errorf("select between %d and %d coins", MinCompare, MaxCompare)

type SeriesSource interface {
	GetUpToDateSeries(ctx context.Context, coinID, vsCurrency string, maxDays int) (models.PriceSeries, error)
}

type InvestmentLister interface {
	ListByCoin(ctx context.Context, coinID string) ([]models.Investment, error)
}

type MarketSource interface {
	FetchOHLC(ctx context.Context, coinID, vsCurrency string, days int) ([]models.Candle, error)
	FetchMarketChart(ctx context.Context, coinID, vsCurrency string, days int) (*models.MarketChart, error)
}

type CandleCache interface {
	GetCandles(ctx context.Context, key string) ([]models.Candle, bool, error)
	SetCandles(ctx context.Context, key string, candles []models.Candle) error
}

type Builder struct {
	series      SeriesSource
	investments InvestmentLister
	market      MarketSource
	cache       CandleCache
	vsCurrency  string
	maxDays     int
	log         *slog.Logger
}

type Options struct {
	VsCurrency string
	MaxDays    int
	Logger     *slog.Logger
}

func NewBuilder(series SeriesSource, investments InvestmentLister, market MarketSource, cache CandleCache, opts Options) *Builder {
	if opts.VsCurrency == "" {
		opts.VsCurrency = "usd"
	}
	if opts.MaxDays <= 0 {
		opts.MaxDays = 365
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Builder{
		series:      series,
		investments: investments,
		market:      market,
		cache:       cache,
		vsCurrency:  opts.VsCurrency,
		maxDays:     opts.MaxDays,
		log:         opts.Logger.With("component", "charts"),
	}
}

// Marker is an investment placed on the price line of its date.
type Marker struct {
	Date     civil.Date `json:"date"`
	Price    float64    `json:"price"`
	Amount   float64    `json:"amount"`
	Investor string     `json:"investor"`
	Note     string     `json:"note,omitempty"`
}

type Panel struct {
	CoinID  string             `json:"coinId"`
	Series  models.PriceSeries `json:"series"`
	Last    *models.PricePoint `json:"last,omitempty"`
	Markers []Marker           `json:"markers"`
	Error   string             `json:"error,omitempty"`
}

type Comparison struct {
	Panels []Panel `json:"panels"`
}

// Compare builds one panel per coin. A coin the market-data API cannot serve
// gets a panel carrying the error and the other panels are still built. Any
// other failure, such as an unreadable store, aborts the comparison.
func (b *Builder) Compare(ctx context.Context, coins []string) (*Comparison, error) {
	if len(coins) < MinCompare || len(coins) > MaxCompare {
		return nil, ErrCoinCount
	}

	out := &Comparison{Panels: make([]Panel, 0, len(coins))}
	for _, coin := range coins {
		panel := Panel{CoinID: coin, Series: models.PriceSeries{}, Markers: []Marker{}}

		series, err := b.series.GetUpToDateSeries(ctx, coin, b.vsCurrency, b.maxDays)
		if err != nil && !upstream(err) {
			return nil, fmt.Errorf("series %s: %w", coin, err)
		}
		if err != nil {
			b.log.Error("compare: series unavailable", "coin", coin, "err", err)
			panel.Error = err.Error()
			out.Panels = append(out.Panels, panel)
			continue
		}
		panel.Series = series
		if last, ok := series.Last(); ok {
			panel.Last = &last
		}

		invs, err := b.investments.ListByCoin(ctx, coin)
		if err != nil {
			return nil, fmt.Errorf("investments %s: %w", coin, err)
		}
		panel.Markers = Markers(series, invs)
		out.Panels = append(out.Panels, panel)
	}
	return out, nil
}

// upstream reports whether err came from the market-data API.
func upstream(err error) bool {
	var se *external.StatusError
	return errors.As(err, &se) || errors.Is(err, httputil.ErrRetriesExhausted)
}

// Markers joins investments to the series on equal date. Investments on a
// date with no stored price are left out.
func Markers(series models.PriceSeries, invs []models.Investment) []Marker {
	byDate := make(map[civil.Date]float64, len(series))
	for _, p := range series {
		byDate[p.Date] = p.PriceUSD
	}
	out := []Marker{}
	for _, inv := range invs {
		price, ok := byDate[inv.Date]
		if !ok {
			continue
		}
		out = append(out, Marker{Date: inv.Date, Price: price, Amount: inv.Amount, Investor: inv.Investor, Note: inv.Note})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// SnapDays returns the entry of ValidDays closest to days; ties go to the
// smaller window.
func SnapDays(days int) int {
	best := ValidDays[0]
	for _, v := range ValidDays[1:] {
		if abs(v-days) < abs(best-days) {
			best = v
		}
	}
	return best
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

type CandleSet struct {
	CoinID  string          `json:"coinId"`
	Days    int             `json:"days"`
	Candles []models.Candle `json:"candles"`
	Cached  bool            `json:"cached"`
}

// Candles returns OHLC candles for the snapped window with the daily volume
// of each candle's UTC date attached.
func (b *Builder) Candles(ctx context.Context, coinID string, days int) (*CandleSet, error) {
	if b.market == nil {
		return nil, errors.New("no market source configured")
	}
	days = SnapDays(days)
	key := fmt.Sprintf("%s:%s:%d", coinID, b.vsCurrency, days)

	if b.cache != nil {
		candles, ok, err := b.cache.GetCandles(ctx, key)
		if err != nil {
			b.log.Warn("candle cache read failed", "key", key, "err", err)
		} else if ok {
			telemetry.CandleCacheHit()
			return &CandleSet{CoinID: coinID, Days: days, Candles: candles, Cached: true}, nil
		}
	}

	telemetry.CandleCacheMiss()

	ohlc, err := b.market.FetchOHLC(ctx, coinID, b.vsCurrency, days)
	if err != nil {
		return nil, err
	}
	chart, err := b.market.FetchMarketChart(ctx, coinID, b.vsCurrency, days)
	if err != nil {
		return nil, err
	}
	candles := JoinVolume(ohlc, chart.TotalVolumes)

	if b.cache != nil {
		if err := b.cache.SetCandles(ctx, key, candles); err != nil {
			b.log.Warn("candle cache write failed", "key", key, "err", err)
		}
	}
	return &CandleSet{CoinID: coinID, Days: days, Candles: candles}, nil
}

// JoinVolume keeps the candles whose UTC date has a volume sample and sets
// Volume and Rising on them.
func JoinVolume(ohlc []models.Candle, volumes []models.MarketPoint) []models.Candle {
	vol := make(map[civil.Date]float64, len(volumes))
	for _, v := range volumes {
		d := models.DateOfMillis(v.TimestampMs)
		if _, ok := vol[d]; !ok {
			vol[d] = v.Value
		}
	}
	out := make([]models.Candle, 0, len(ohlc))
	for _, c := range ohlc {
		v, ok := vol[civil.DateOf(c.Time.UTC())]
		if !ok {
			continue
		}
		c.Volume = v
		c.Rising = c.Close >= c.Open
		out = append(out, c)
	}
	return out
}
