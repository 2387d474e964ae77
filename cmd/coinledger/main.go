package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path"
	"syscall"

	"github.com/google/subcommands"
)

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(commander.CommandsCommand(), "")
	register(commander)

	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	os.Exit(int(commander.Execute(ctx)))
}

// register adds the ledger subcommands.
func register(c *subcommands.Commander) {
	c.Register(&syncCmd{}, "prices")
	c.Register(&candlesCmd{}, "prices")

	c.Register(&investCmd{}, "ledger")
	c.Register(&deleteCmd{}, "ledger")
	c.Register(&listCmd{}, "ledger")
	c.Register(&importCmd{}, "ledger")
	c.Register(&exportCmd{}, "ledger")

	c.Register(&profitCmd{}, "reports")
}
