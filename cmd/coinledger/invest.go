package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/google/subcommands"

	"github.com/kjannette/coinledger/internal/csvio"
	"github.com/kjannette/coinledger/internal/models"
)

type investCmd struct {
	coin     string
	date     string
	investor string
	amount   float64
	note     string
}

func (*investCmd) Name() string     { return "invest" }
func (*investCmd) Synopsis() string { return "record an investment" }
func (*investCmd) Usage() string {
	return `invest -coin <id> -date <YYYY-MM-DD> -investor <name> -amount <usd> [-note <text>]

  Records one investment. The same investor can record only one investment
  per coin and date.
`
}

func (c *investCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.coin, "coin", "", "Coin id as used by the market-data API (required)")
	f.StringVar(&c.date, "date", "", "Investment date, YYYY-MM-DD (required)")
	f.StringVar(&c.investor, "investor", "", "Exchange, broker or wallet used (required)")
	f.Float64Var(&c.amount, "amount", 0, "Amount invested (required)")
	f.StringVar(&c.note, "note", "", "Free text")
}

func (c *investCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	inv := models.Investment{CoinID: c.coin, Investor: c.investor, Amount: c.amount, Note: c.note}.Normalize()
	if inv.CoinID == "" || inv.Investor == "" || c.date == "" {
		fmt.Fprintln(os.Stderr, "Error: -coin, -date and -investor are required.")
		return subcommands.ExitUsageError
	}
	if inv.Amount <= 0 {
		fmt.Fprintln(os.Stderr, "Error: -amount must be positive.")
		return subcommands.ExitUsageError
	}
	d, err := csvio.ParseDate(c.date)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	inv.Date = d

	a := openApp(ctx)
	if a == nil {
		return subcommands.ExitFailure
	}
	defer a.Close()

	ok, err := a.Investments.Insert(ctx, inv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error recording investment: %v\n", err)
		return subcommands.ExitFailure
	}
	if !ok {
		fmt.Fprintf(os.Stderr, "Error: %s already has an investment in %s on %s.\n", inv.Investor, inv.CoinID, inv.Date)
		return subcommands.ExitFailure
	}
	fmt.Printf("✅ Recorded %s in %s on %s via %s.\n", formatMoney(inv.Amount, a.Config.VsCurrency), inv.CoinID, inv.Date, inv.Investor)
	return subcommands.ExitSuccess
}

type deleteCmd struct {
	coin     string
	date     string
	investor string
}

func (*deleteCmd) Name() string     { return "delete" }
func (*deleteCmd) Synopsis() string { return "delete an investment" }
func (*deleteCmd) Usage() string {
	return `delete -coin <id> -date <YYYY-MM-DD> -investor <name>
`
}

func (c *deleteCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.coin, "coin", "", "Coin id (required)")
	f.StringVar(&c.date, "date", "", "Investment date, YYYY-MM-DD (required)")
	f.StringVar(&c.investor, "investor", "", "Investor (required)")
}

func (c *deleteCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.coin == "" || c.date == "" || c.investor == "" {
		fmt.Fprintln(os.Stderr, "Error: -coin, -date and -investor are required.")
		return subcommands.ExitUsageError
	}
	d, err := csvio.ParseDate(c.date)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}

	a := openApp(ctx)
	if a == nil {
		return subcommands.ExitFailure
	}
	defer a.Close()

	if err := a.Investments.Delete(ctx, strings.ToLower(c.coin), d, c.investor); err != nil {
		fmt.Fprintf(os.Stderr, "Error deleting investment: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Println("✅ Deleted.")
	return subcommands.ExitSuccess
}

type listCmd struct {
	coin string
}

func (*listCmd) Name() string     { return "list" }
func (*listCmd) Synopsis() string { return "list recorded investments" }
func (*listCmd) Usage() string {
	return `list [-coin <id>]

  Lists every investment, newest first, or the investments in one coin,
  oldest first.
`
}

func (c *listCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.coin, "coin", "", "Only this coin (case-insensitive)")
}

func (c *listCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
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

	total, err := a.Investments.Count(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error counting investments: %v\n", err)
		return subcommands.ExitFailure
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "COIN\tDATE\tINVESTOR\tAMOUNT\tNOTE")
	for _, inv := range invs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", inv.CoinID, inv.Date, inv.Investor, formatMoney(inv.Amount, a.Config.VsCurrency), inv.Note)
	}
	w.Flush()
	fmt.Printf("\n%d shown, %d in ledger\n", len(invs), total)
	return subcommands.ExitSuccess
}
