package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"

	"github.com/kjannette/coinledger/internal/app"
	"github.com/kjannette/coinledger/internal/config"
	"github.com/kjannette/coinledger/internal/logging"
)

// openApp loads the configuration and opens every component. Errors are
// printed; a nil App means the command should exit with failure.
func openApp(ctx context.Context) *app.App {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		return nil
	}
	log := logging.NewLoggerTo(os.Stderr, logging.ParseLevel(envOr("LOG_LEVEL", "warn")))
	a, err := app.Open(ctx, cfg, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening database: %v\n", err)
		return nil
	}
	return a
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// formatMoney renders v in the currency's own format, e.g. "$1,234.50".
func formatMoney(v float64, currency string) string {
	cur := *money.New(0, strings.ToUpper(currency)).Currency()
	minor := decimal.NewFromFloat(v).Shift(int32(cur.Fraction)).Round(0)
	return cur.Formatter().Format(minor.IntPart())
}

func formatPercent(ratio float64) string {
	return decimal.NewFromFloat(ratio).Shift(2).StringFixed(2) + "%"
}
