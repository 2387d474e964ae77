package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/google/subcommands"
)

type candlesCmd struct {
	days int
}

func (*candlesCmd) Name() string     { return "candles" }
func (*candlesCmd) Synopsis() string { return "show daily OHLC candles with volume" }
func (*candlesCmd) Usage() string {
	return `candles [-days <n>] <coin>

  -days is snapped to the nearest of 1, 7, 14, 30, 90, 180 or 365.
`
}

func (c *candlesCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.days, "days", 30, "Window in days")
}

func (c *candlesCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Error: exactly one coin id is required.")
		return subcommands.ExitUsageError
	}
	a := openApp(ctx)
	if a == nil {
		return subcommands.ExitFailure
	}
	defer a.Close()

	set, err := a.Charts.Candles(ctx, strings.ToLower(f.Arg(0)), c.days)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error fetching candles: %v\n", err)
		return subcommands.ExitFailure
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "TIME\tOPEN\tHIGH\tLOW\tCLOSE\tVOLUME\t\t")
	for _, k := range set.Candles {
		dir := "▼"
		if k.Rising {
			dir = "▲"
		}
		fmt.Fprintf(w, "%s\t%.4f\t%.4f\t%.4f\t%.4f\t%.0f\t%s\t\n",
			k.Time.UTC().Format("2006-01-02 15:04"), k.Open, k.High, k.Low, k.Close, k.Volume, dir)
	}
	w.Flush()
	fmt.Printf("\n%s, %d days, %d candles\n", set.CoinID, set.Days, len(set.Candles))
	return subcommands.ExitSuccess
}
