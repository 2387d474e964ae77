package main

import (
	"bytes"
	"strings"
	"testing"

	"cloud.google.com/go/civil"

	"github.com/kjannette/coinledger/internal/models"
	"github.com/kjannette/coinledger/internal/profit"
)

func TestFormatMoney(t *testing.T) {
	cases := []struct {
		v    float64
		cur  string
		want string
	}{
		{1234.5, "usd", "$1,234.50"},
		{0.004, "USD", "$0.00"},
		{99.999, "usd", "$100.00"},
	}
	for _, tc := range cases {
		if got := formatMoney(tc.v, tc.cur); got != tc.want {
			t.Errorf("formatMoney(%v, %q) = %q, want %q", tc.v, tc.cur, got, tc.want)
		}
	}
}

func TestFormatPercent(t *testing.T) {
	if got := formatPercent(0.12345); got != "12.35%" {
		t.Fatalf("got %q", got)
	}
}

func TestCoinsOf(t *testing.T) {
	invs := []models.Investment{{CoinID: "solana"}, {CoinID: "bitcoin"}, {CoinID: "solana"}}
	got := coinsOf(invs)
	if strings.Join(got, ",") != "bitcoin,solana" {
		t.Fatalf("got %v", got)
	}
}

func TestPrintProfit(t *testing.T) {
	d := civil.Date{Year: 2024, Month: 1, Day: 1}
	rep := &profit.Report{
		Results: []profit.Result{{
			Investment:   models.Investment{CoinID: "bitcoin", Date: d, Investor: "alice", Amount: 100},
			CurrentValue: 200,
			Gain:         100,
			ROI:          1,
		}},
		Skipped: []profit.Skip{{
			Investment: models.Investment{CoinID: "dogecoin", Date: d, Investor: "bob"},
			Reason:     "no stored prices",
		}},
		TotalInvested: 100,
		TotalValue:    200,
		TotalGain:     100,
		ROI:           1,
	}
	var buf bytes.Buffer
	printProfit(&buf, rep, "usd")
	out := buf.String()
	for _, want := range []string{"bitcoin", "$200.00", "100.00%", "TOTAL", "skipped dogecoin 2024-01-01 bob: no stored prices"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
