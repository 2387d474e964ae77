package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kjannette/coinledger/internal/api"
	"github.com/kjannette/coinledger/internal/app"
	"github.com/kjannette/coinledger/internal/config"
	"github.com/kjannette/coinledger/internal/logging"
	"github.com/kjannette/coinledger/internal/notifications"
	"github.com/kjannette/coinledger/internal/scheduler"
)

const banner = `
╔══════════════════════════════════════╗
║        CoinLedger Server v0.3        ║
║                                      ║
╚══════════════════════════════════════╝
`

func main() {
	fmt.Print(banner)

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	cfg.Print()
	log := logging.NewLogger(logging.ParseLevel(cfg.LogLevel))

	// Graceful shutdown context
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Database, market data, cache
	fmt.Printf("\n[DB] Connecting to %s:%d/%s ...\n", cfg.DBHost, cfg.DBPort, cfg.DBName)
	a, err := app.Open(ctx, cfg, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[DB] Startup failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		a.Close()
		fmt.Println("[DB] Connection pool closed")
	}()

	// Notifications
	notify := notifications.NewSender(cfg.WebhookURL, cfg.BotName, log)

	// 1. API server
	srv := api.NewServer(api.Deps{
		Prices:     a.Prices,
		Sync:       a.Sync,
		Ledger:     a.Investments,
		Charts:     a.Charts,
		DB:         a.Pool,
		VsCurrency: cfg.VsCurrency,
		MaxDays:    cfg.MaxDays,
		Logger:     log,
	}, cfg.APIPort, cfg.APIKey, cfg.CORSAllowOrigin)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintf(os.Stderr, "[API] Server error: %v\n", err)
			os.Exit(1)
		}
	}()

	// 2. Refresh scheduler
	var refresh *scheduler.RefreshScheduler
	if cfg.RefreshIntervalMinutes > 0 {
		refresh = scheduler.NewRefreshScheduler(a.Sync, a.Prices, notify, scheduler.RefreshConfig{
			Interval:     cfg.RefreshInterval(),
			TrackedCoins: cfg.TrackedCoins,
			VsCurrency:   cfg.VsCurrency,
			MaxDays:      cfg.MaxDays,
			RunOnStart:   cfg.RefreshOnStart,
			Logger:       log,
		})
		refresh.Start()
	} else {
		fmt.Println("[SCHEDULER] Skipped - REFRESH_INTERVAL_MINUTES is 0")
	}

	fmt.Println("\nAll services started successfully")

	// Wait for shutdown signal
	<-ctx.Done()
	fmt.Println("\nShutting down gracefully...")

	if refresh != nil {
		refresh.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "[API] Shutdown error: %v\n", err)
	}
	fmt.Println("[API] Server closed")
	fmt.Println("Shutdown complete")
}
