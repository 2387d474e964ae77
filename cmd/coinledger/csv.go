package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/google/subcommands"

	"github.com/kjannette/coinledger/internal/csvio"
)

type importCmd struct{}

func (*importCmd) Name() string     { return "import" }
func (*importCmd) Synopsis() string { return "bulk insert investments from CSV" }
func (*importCmd) Usage() string {
	return `import <file.csv | ->

  Reads a CSV with the columns coin_id, date, investor, amount, note in any
  order. Rows already in the ledger are skipped; malformed rows are reported.
`
}

func (*importCmd) SetFlags(*flag.FlagSet) {}

func (c *importCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Error: exactly one file is required.")
		return subcommands.ExitUsageError
	}

	var in io.Reader = os.Stdin
	if name := f.Arg(0); name != "-" {
		file, err := os.Open(name)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return subcommands.ExitFailure
		}
		defer file.Close()
		in = file
	}

	invs, rowErrs, err := csvio.ReadInvestments(in)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading CSV: %v\n", err)
		return subcommands.ExitFailure
	}
	for _, re := range rowErrs {
		fmt.Fprintf(os.Stderr, "⚠️  %v\n", re)
	}

	a := openApp(ctx)
	if a == nil {
		return subcommands.ExitFailure
	}
	defer a.Close()

	res, err := a.Investments.BulkInsert(ctx, invs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error after %d inserted: %v\n", res.Inserted, err)
		return subcommands.ExitFailure
	}
	fmt.Printf("✅ %d inserted, %d already recorded, %d malformed.\n", res.Inserted, res.Skipped, len(rowErrs))
	return subcommands.ExitSuccess
}

type exportCmd struct {
	out string
}

func (*exportCmd) Name() string     { return "export" }
func (*exportCmd) Synopsis() string { return "write the ledger as CSV" }
func (*exportCmd) Usage() string {
	return `export [-o <file.csv>]
`
}

func (c *exportCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.out, "o", "", "Output file (default stdout)")
}

func (c *exportCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a := openApp(ctx)
	if a == nil {
		return subcommands.ExitFailure
	}
	defer a.Close()

	invs, err := a.Investments.ListAll(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error listing investments: %v\n", err)
		return subcommands.ExitFailure
	}
	if err := writeOutput(c.out, func(w io.Writer) error { return csvio.WriteInvestments(w, invs) }); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing CSV: %v\n", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// writeOutput runs write against the named file, or stdout when name is empty.
func writeOutput(name string, write func(io.Writer) error) error {
	if name == "" {
		return write(os.Stdout)
	}
	file, err := os.Create(name)
	if err != nil {
		return err
	}
	if err := write(file); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
