package models

import (
	"strings"

	"cloud.google.com/go/civil"
)

// Investment is keyed by (CoinID, Date, Investor). Investor names the channel
// the money went through (exchange, broker, wallet).
type Investment struct {
	CoinID   string     `json:"coinId"`
	Date     civil.Date `json:"date"`
	Investor string     `json:"investor"`
	Amount   float64    `json:"amount"`
	Note     string     `json:"note"`
}

func (i Investment) Key() InvestmentKey {
	return InvestmentKey{CoinID: i.CoinID, Date: i.Date, Investor: i.Investor}
}

type InvestmentKey struct {
	CoinID   string     `json:"coinId"`
	Date     civil.Date `json:"date"`
	Investor string     `json:"investor"`
}

// Normalize trims whitespace and lowercases the coin id, which is how coin
// identifiers are spelled by the market-data API.
func (i Investment) Normalize() Investment {
	i.CoinID = strings.ToLower(strings.TrimSpace(i.CoinID))
	i.Investor = strings.TrimSpace(i.Investor)
	i.Note = strings.TrimSpace(i.Note)
	return i
}

type BulkResult struct {
	Inserted int `json:"inserted"`
	Skipped  int `json:"skipped"`
}
