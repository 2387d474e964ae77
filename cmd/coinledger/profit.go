package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/google/subcommands"

	"github.com/kjannette/coinledger/internal/csvio"
	"github.com/kjannette/coinledger/internal/models"
	"github.com/kjannette/coinledger/internal/profit"
)

type profitCmd struct {
	coin    string
	csvOut  string
	refresh bool
}

func (*profitCmd) Name() string     { return "profit" }
func (*profitCmd) Synopsis() string { return "value every investment against stored prices" }
func (*profitCmd) Usage() string {
	return `profit [-coin <id>] [-refresh] [-csv <file.csv>]

  Values each investment at the latest stored price. Investments without a
  price on or before their date are listed as skipped.
`
}

func (c *profitCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.coin, "coin", "", "Only this coin")
	f.BoolVar(&c.refresh, "refresh", false, "Sync the prices of every invested coin first")
	f.StringVar(&c.csvOut, "csv", "", "Also write the report as CSV to this file")
}

func (c *profitCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a := openApp(ctx)
	if a == nil {
		return subcommands.ExitFailure
	}
	defer a.Close()

	var (
		invs []models.Investment
		err  error
	)
	if c.coin != "" {
		invs, err = a.Investments.ListByCoin(ctx, c.coin)
	} else {
		invs, err = a.Investments.ListAll(ctx)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error listing investments: %v\n", err)
		return subcommands.ExitFailure
	}

	if c.refresh {
		rep := a.Sync.SyncMany(ctx, coinsOf(invs), a.Config.VsCurrency, a.Config.MaxDays)
		for _, res := range rep.Failed() {
			fmt.Fprintf(os.Stderr, "⚠️  sync %s: %v\n", res.CoinID, res.Err)
		}
	}

	rep, err := profit.Calculate(ctx, a.Prices, invs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error calculating profit: %v\n", err)
		return subcommands.ExitFailure
	}
	printProfit(os.Stdout, rep, a.Config.VsCurrency)

	if c.csvOut != "" {
		if err := writeOutput(c.csvOut, func(w io.Writer) error { return csvio.WriteProfit(w, rep) }); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing CSV: %v\n", err)
			return subcommands.ExitFailure
		}
	}
	return subcommands.ExitSuccess
}

func coinsOf(invs []models.Investment) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, inv := range invs {
		if _, ok := seen[inv.CoinID]; ok {
			continue
		}
		seen[inv.CoinID] = struct{}{}
		out = append(out, inv.CoinID)
	}
	sort.Strings(out)
	return out
}

func printProfit(out io.Writer, rep *profit.Report, currency string) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "COIN\tDATE\tINVESTOR\tINVESTED\tVALUE\tGAIN\tROI\t")
	for _, r := range rep.Results {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
			r.CoinID, r.Date, r.Investor,
			formatMoney(r.Amount, currency),
			formatMoney(r.CurrentValue, currency),
			formatMoney(r.Gain, currency),
			formatPercent(r.ROI))
	}
	fmt.Fprintf(w, "TOTAL\t\t\t%s\t%s\t%s\t%s\t\n",
		formatMoney(rep.TotalInvested, currency),
		formatMoney(rep.TotalValue, currency),
		formatMoney(rep.TotalGain, currency),
		formatPercent(rep.ROI))
	w.Flush()

	for _, s := range rep.Skipped {
		fmt.Fprintf(out, "skipped %s %s %s: %s\n", s.Investment.CoinID, s.Investment.Date, s.Investment.Investor, s.Reason)
	}
}
