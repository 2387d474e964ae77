// Package app wires the storage, market-data and chart components shared by
// the server and the CLI.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kjannette/coinledger/internal/cache"
	"github.com/kjannette/coinledger/internal/charts"
	"github.com/kjannette/coinledger/internal/config"
	"github.com/kjannette/coinledger/internal/db"
	"github.com/kjannette/coinledger/internal/external"
	"github.com/kjannette/coinledger/internal/httputil"
	"github.com/kjannette/coinledger/internal/pricesync"
	"github.com/kjannette/coinledger/internal/repository"
)

type candleCache interface {
	charts.CandleCache
	Close() error
}

type App struct {
	Config      *config.Config
	Log         *slog.Logger
	Pool        *pgxpool.Pool
	Prices      *repository.PriceRepo
	Investments *repository.InvestmentRepo
	CoinGecko   *external.CoinGeckoClient
	Sync        *pricesync.Synchronizer
	Charts      *charts.Builder

	cache candleCache
}

// Open connects to Postgres, ensures the schema and builds every component.
// A Redis cache is used when REDIS_ADDR is set and reachable; otherwise
// candles are cached in memory.
func Open(ctx context.Context, cfg *config.Config, log *slog.Logger) (*App, error) {
	pool, err := db.Connect(ctx, cfg.DSN(), db.PoolOptions{})
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := db.TestConnection(ctx, pool, log); err != nil {
		pool.Close()
		return nil, err
	}
	if err := db.EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	a := &App{
		Config:      cfg,
		Log:         log,
		Pool:        pool,
		Prices:      repository.NewPriceRepo(pool),
		Investments: repository.NewInvestmentRepo(pool),
	}

	a.CoinGecko = external.NewCoinGeckoClient(external.CoinGeckoOptions{
		BaseURL: cfg.CoinGeckoBaseURL,
		APIKey:  cfg.CoinGeckoAPIKey,
		Retry: httputil.RetryConfig{
			MaxAttempts: cfg.RetryMaxAttempts,
			BaseDelay:   cfg.RetryBaseDelay(),
			MaxDelay:    httputil.DefaultRetry.MaxDelay,
		},
		Logger: log,
	})
	a.Sync = pricesync.New(a.Prices, a.CoinGecko, pricesync.WithLogger(log))

	a.cache = openCache(ctx, cfg, log)
	a.Charts = charts.NewBuilder(a.Sync, a.Investments, a.CoinGecko, a.cache, charts.Options{
		VsCurrency: cfg.VsCurrency,
		MaxDays:    cfg.MaxDays,
		Logger:     log,
	})
	return a, nil
}

func openCache(ctx context.Context, cfg *config.Config, log *slog.Logger) candleCache {
	if cfg.RedisAddr == "" {
		return cache.NewMemoryCache(cfg.CandleCacheTTL())
	}
	rc, err := cache.NewRedisCache(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.CandleCacheTTL(), log)
	if err != nil {
		log.Warn("redis unavailable, caching candles in memory", "addr", cfg.RedisAddr, "err", err)
		return cache.NewMemoryCache(cfg.CandleCacheTTL())
	}
	return rc
}

func (a *App) Close() {
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.Log.Warn("close cache", "err", err)
		}
	}
	a.Pool.Close()
}
