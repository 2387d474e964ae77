// Package pricesync keeps the stored daily price series of a coin current by
// fetching only the days missing since the last stored date.
package pricesync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"cloud.google.com/go/civil"
	"github.com/kjannette/coinledger/internal/models"
)

// PriceStore is the durable (coin, date) keyed series.
type PriceStore interface {
	Read(ctx context.Context, coinID string) (models.PriceSeries, error)
	// Append inserts points whose date is not already stored for the coin and
	// silently drops the rest. It returns the number of rows inserted.
	Append(ctx context.Context, coinID string, points []models.PricePoint) (int, error)
}

// RemoteSource returns a time-ordered window of days days ending now.
type RemoteSource interface {
	FetchPrices(ctx context.Context, coinID, vsCurrency string, days int) ([]models.MarketPoint, error)
}

type Synchronizer struct {
	store  PriceStore
	remote RemoteSource
	log    *slog.Logger
	now    func() time.Time
}

type Option func(*Synchronizer)

// WithClock overrides the source of "today".
func WithClock(now func() time.Time) Option {
	return func(s *Synchronizer) { s.now = now }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Synchronizer) { s.log = l }
}

func New(store PriceStore, remote RemoteSource, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		store:  store,
		remote: remote,
		log:    slog.Default(),
		now:    time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	s.log = s.log.With("component", "pricesync")
	return s
}

// GetUpToDateSeries returns the stored series for coinID after closing the gap
// between its last stored date and today. An empty store triggers a full
// download of maxDays days. A series already dated today makes no remote call.
func (s *Synchronizer) GetUpToDateSeries(ctx context.Context, coinID, vsCurrency string, maxDays int) (models.PriceSeries, error) {
	stored, err := s.store.Read(ctx, coinID)
	if err != nil {
		return nil, fmt.Errorf("read stored %s: %w", coinID, err)
	}

	if len(stored) == 0 {
		s.log.Info("no stored prices, downloading full history", "coin", coinID, "days", maxDays)
		raw, err := s.remote.FetchPrices(ctx, coinID, vsCurrency, maxDays)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", coinID, err)
		}
		fresh := toDaily(raw)
		if len(fresh) == 0 {
			return models.PriceSeries{}, nil
		}
		if _, err := s.store.Append(ctx, coinID, fresh); err != nil {
			return nil, fmt.Errorf("append %s: %w", coinID, err)
		}
		return fresh, nil
	}

	last := lastDate(stored)
	today := models.TodayUTC(s.now())
	if !last.Before(today) {
		return stored, nil
	}

	gap := today.DaysSince(last)
	s.log.Info("updating stored prices", "coin", coinID, "last_date", last.String(), "missing_days", gap)

	raw, err := s.remote.FetchPrices(ctx, coinID, vsCurrency, gap+1)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", coinID, err)
	}

	var fresh []models.PricePoint
	for _, p := range toDaily(raw) {
		if p.Date.After(last) {
			fresh = append(fresh, p)
		}
	}
	if len(fresh) == 0 {
		return stored, nil
	}

	if _, err := s.store.Append(ctx, coinID, fresh); err != nil {
		return nil, fmt.Errorf("append %s: %w", coinID, err)
	}
	return merge(stored, fresh), nil
}

// Result is the outcome of syncing one coin in a batch.
type Result struct {
	CoinID string
	Points int
	Last   civil.Date
	Err    error
}

type Report struct {
	Results []Result
}

func (r Report) Failed() []Result {
	var out []Result
	for _, res := range r.Results {
		if res.Err != nil {
			out = append(out, res)
		}
	}
	return out
}

// Err joins every per-coin failure, nil when all coins synced.
func (r Report) Err() error {
	var errs []error
	for _, res := range r.Failed() {
		errs = append(errs, fmt.Errorf("%s: %w", res.CoinID, res.Err))
	}
	return errors.Join(errs...)
}

// SyncMany syncs each coin in turn. A failing coin does not stop the others.
func (s *Synchronizer) SyncMany(ctx context.Context, coins []string, vsCurrency string, maxDays int) Report {
	var rep Report
	for _, coin := range coins {
		if ctx.Err() != nil {
			rep.Results = append(rep.Results, Result{CoinID: coin, Err: ctx.Err()})
			continue
		}
		series, err := s.GetUpToDateSeries(ctx, coin, vsCurrency, maxDays)
		res := Result{CoinID: coin, Err: err}
		if err == nil {
			res.Points = len(series)
			if p, ok := series.Last(); ok {
				res.Last = p.Date
			}
		} else {
			s.log.Error("sync failed", "coin", coin, "err", err)
		}
		rep.Results = append(rep.Results, res)
	}
	return rep
}

// toDaily converts remote points to calendar dates, ascending, keeping the
// first point seen for each date. The remote appends a "now" sample after the
// 00:00 UTC close of the current day.
func toDaily(raw []models.MarketPoint) models.PriceSeries {
	seen := make(map[civil.Date]struct{}, len(raw))
	out := make(models.PriceSeries, 0, len(raw))
	for _, r := range raw {
		d := models.DateOfMillis(r.TimestampMs)
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, models.PricePoint{Date: d, PriceUSD: r.Value})
	}
	sortSeries(out)
	return out
}

// merge returns stored ∪ fresh with one point per date; stored wins.
func merge(stored models.PriceSeries, fresh []models.PricePoint) models.PriceSeries {
	byDate := make(map[civil.Date]models.PricePoint, len(stored)+len(fresh))
	for _, p := range fresh {
		byDate[p.Date] = p
	}
	for _, p := range stored {
		byDate[p.Date] = p
	}
	out := make(models.PriceSeries, 0, len(byDate))
	for _, p := range byDate {
		out = append(out, p)
	}
	sortSeries(out)
	return out
}

func lastDate(s models.PriceSeries) civil.Date {
	last := s[0].Date
	for _, p := range s[1:] {
		if p.Date.After(last) {
			last = p.Date
		}
	}
	return last
}

func sortSeries(s models.PriceSeries) {
	sort.SliceStable(s, func(i, j int) bool { return s[i].Date.Before(s[j].Date) })
}
