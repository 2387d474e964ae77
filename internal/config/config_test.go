package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"DATABASE_URL", "VS_CURRENCY", "MAX_DAYS", "TRACKED_COINS", "COINGECKO_PLAN", "COINGECKO_BASE_URL", "RETRY_BASE_DELAY_MS"} {
		t.Setenv(k, "")
	}
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "usd", cfg.VsCurrency)
	assert.Equal(t, 365, cfg.MaxDays)
	assert.Equal(t, []string{"bitcoin", "ethereum"}, cfg.TrackedCoins)
	assert.Equal(t, "https://api.coingecko.com/api/v3", cfg.CoinGeckoBaseURL)
	assert.Equal(t, 2*time.Second, cfg.RetryBaseDelay())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("TRACKED_COINS", " Bitcoin, ,solana ")
	t.Setenv("COINGECKO_PLAN", "pro")
	t.Setenv("COINGECKO_BASE_URL", "")
	t.Setenv("MAX_DAYS", "not-a-number")
	t.Setenv("REFRESH_ON_START", "no")
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/x")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"bitcoin", "solana"}, cfg.TrackedCoins)
	assert.Equal(t, "https://pro-api.coingecko.com/api/v3", cfg.CoinGeckoBaseURL)
	assert.Equal(t, 365, cfg.MaxDays, "unparsable int falls back")
	assert.False(t, cfg.RefreshOnStart)
	assert.Equal(t, "postgres://u:p@db:5432/x", cfg.DSN())
}

func TestValidate(t *testing.T) {
	cfg := &Config{DBUser: "u", MaxDays: 365, RetryMaxAttempts: 4, APIPort: 3001, APIKey: "k", CoinGeckoAPIKey: "k"}
	require.NoError(t, cfg.Validate())

	cfg.DBUser = ""
	cfg.MaxDays = 0
	cfg.APIPort = 70000
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL or DB_USER is required")
	assert.Contains(t, err.Error(), "MAX_DAYS must be at least 1")
	assert.Contains(t, err.Error(), "API_PORT 70000 is out of range")
}

func TestDSNFromParts(t *testing.T) {
	cfg := &Config{DBUser: "u", DBPassword: "p", DBHost: "h", DBPort: 5433, DBName: "n"}
	assert.Equal(t, "postgres://u:p@h:5433/n?sslmode=disable", cfg.DSN())
}
