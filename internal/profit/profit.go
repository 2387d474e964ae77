// Package profit values recorded investments against stored price history.
package profit

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/civil"
	"github.com/kjannette/coinledger/internal/models"
)

// ErrNoPriceBefore means no stored price exists on or before the investment date.
var ErrNoPriceBefore = errors.New("no price on or before investment date")

// ErrNoPrices means nothing is stored for the coin at all.
var ErrNoPrices = errors.New("no stored prices")

// SeriesReader reads a stored price series; it is satisfied by the price repository.
type SeriesReader interface {
	Read(ctx context.Context, coinID string) (models.PriceSeries, error)
}

type Result struct {
	models.Investment
	PurchasePrice float64    `json:"purchasePrice"`
	CurrentPrice  float64    `json:"currentPrice"`
	CurrentDate   civil.Date `json:"currentDate"`
	Units         float64    `json:"units"`
	CurrentValue  float64    `json:"currentValue"`
	Gain          float64    `json:"gain"`
	ROI           float64    `json:"roi"`
}

// Skip is an investment that could not be valued.
type Skip struct {
	Investment models.Investment `json:"investment"`
	Reason     string            `json:"reason"`
	Err        error             `json:"-"`
}

type Report struct {
	Results       []Result `json:"results"`
	Skipped       []Skip   `json:"skipped"`
	TotalInvested float64  `json:"totalInvested"`
	TotalValue    float64  `json:"totalValue"`
	TotalGain     float64  `json:"totalGain"`
	ROI           float64  `json:"roi"`
}

// Value computes the position of a single investment against series.
func Value(inv models.Investment, series models.PriceSeries) (Result, error) {
	latest, ok := series.Last()
	if !ok {
		return Result{}, ErrNoPrices
	}
	purchase, ok := series.At(inv.Date)
	if !ok {
		return Result{}, fmt.Errorf("%w %s", ErrNoPriceBefore, inv.Date)
	}
	if purchase.PriceUSD <= 0 {
		return Result{}, fmt.Errorf("non-positive purchase price %.8f on %s", purchase.PriceUSD, purchase.Date)
	}
	if inv.Amount <= 0 {
		return Result{}, fmt.Errorf("non-positive amount %.2f", inv.Amount)
	}

	units := inv.Amount / purchase.PriceUSD
	current := units * latest.PriceUSD
	gain := current - inv.Amount
	return Result{
		Investment:    inv,
		PurchasePrice: purchase.PriceUSD,
		CurrentPrice:  latest.PriceUSD,
		CurrentDate:   latest.Date,
		Units:         units,
		CurrentValue:  current,
		Gain:          gain,
		ROI:           gain / inv.Amount,
	}, nil
}

// Calculate values every investment. Investments that cannot be valued are
// reported in Skipped and do not stop the rest. Only a failing reader aborts
// the calculation. Each coin's series is read once.
func Calculate(ctx context.Context, reader SeriesReader, invs []models.Investment) (*Report, error) {
	rep := &Report{Results: []Result{}, Skipped: []Skip{}}
	cache := map[string]models.PriceSeries{}

	for _, inv := range invs {
		series, ok := cache[inv.CoinID]
		if !ok {
			var err error
			series, err = reader.Read(ctx, inv.CoinID)
			if err != nil {
				return nil, fmt.Errorf("read prices %s: %w", inv.CoinID, err)
			}
			cache[inv.CoinID] = series
		}

		res, err := Value(inv, series)
		if err != nil {
			rep.Skipped = append(rep.Skipped, Skip{Investment: inv, Reason: err.Error(), Err: err})
			continue
		}
		rep.Results = append(rep.Results, res)
		rep.TotalInvested += res.Amount
		rep.TotalValue += res.CurrentValue
		rep.TotalGain += res.Gain
	}

	if rep.TotalInvested > 0 {
		rep.ROI = rep.TotalGain / rep.TotalInvested
	}
	return rep, nil
}
