package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/subcommands"
)

type syncCmd struct {
	days int
}

func (*syncCmd) Name() string     { return "sync" }
func (*syncCmd) Synopsis() string { return "bring stored daily prices up to date" }
func (*syncCmd) Usage() string {
	return `sync [-days <n>] <coin> [<coin>...]

  Downloads the days missing since the last stored price of each coin.
  A coin with nothing stored gets a full download of -days days. Prices are
  fetched and stored in VS_CURRENCY.
`
}

func (c *syncCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.days, "days", 0, "Window for a first download (default MAX_DAYS)")
}

func (c *syncCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "Error: at least one coin id is required.")
		return subcommands.ExitUsageError
	}
	a := openApp(ctx)
	if a == nil {
		return subcommands.ExitFailure
	}
	defer a.Close()

	days := c.days
	if days <= 0 {
		days = a.Config.MaxDays
	}
	coins := make([]string, 0, f.NArg())
	for _, arg := range f.Args() {
		coins = append(coins, strings.ToLower(arg))
	}
	rep := a.Sync.SyncMany(ctx, coins, a.Config.VsCurrency, days)
	for _, res := range rep.Results {
		if res.Err != nil {
			fmt.Printf("❌ %-16s %v\n", res.CoinID, res.Err)
			continue
		}
		fmt.Printf("✅ %-16s %5d days, last %s\n", res.CoinID, res.Points, res.Last)
	}
	if len(rep.Failed()) > 0 {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
