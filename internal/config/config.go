package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/kjannette/coinledger/internal/external"
)

type Config struct {
	// Secrets (from .env)
	CoinGeckoAPIKey string
	WebhookURL      string
	BotName         string
	APIKey          string
	CORSAllowOrigin string
	RedisPassword   string

	// Database
	DatabaseURL string
	DBHost      string
	DBPort      int
	DBName      string
	DBUser      string
	DBPassword  string

	// API
	APIPort int

	// Market data
	CoinGeckoPlan    string
	CoinGeckoBaseURL string
	VsCurrency       string
	MaxDays          int
	RetryMaxAttempts int
	RetryBaseDelayMs int

	// Background refresh
	TrackedCoins           []string
	RefreshIntervalMinutes int
	RefreshOnStart         bool

	// Candle cache
	RedisAddr             string
	RedisDB               int
	CandleCacheTTLSeconds int

	LogLevel string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	plan := envStr("COINGECKO_PLAN", "demo")
	cfg := &Config{
		// Secrets
		CoinGeckoAPIKey: envStr("COINGECKO_API_KEY", ""),
		WebhookURL:      envStr("WEBHOOK_URL", ""),
		BotName:         envStr("BOT_NAME", "CoinLedger"),
		APIKey:          envStr("API_KEY", ""),
		CORSAllowOrigin: envStr("CORS_ALLOW_ORIGIN", "*"),
		RedisPassword:   envStr("REDIS_PASSWORD", ""),

		// Database
		DatabaseURL: envStr("DATABASE_URL", ""),
		DBHost:      envStr("DB_HOST", "localhost"),
		DBPort:      envInt("DB_PORT", 5432),
		DBName:      envStr("DB_NAME", "coinledger"),
		DBUser:      envStr("DB_USER", ""),
		DBPassword:  envStr("DB_PASSWORD", ""),

		APIPort: envInt("API_PORT", 3001),

		// Market data
		CoinGeckoPlan:    plan,
		CoinGeckoBaseURL: envStr("COINGECKO_BASE_URL", external.CoinGeckoDefaultBaseURL(plan)),
		VsCurrency:       strings.ToLower(envStr("VS_CURRENCY", "usd")),
		MaxDays:          envInt("MAX_DAYS", 365),
		RetryMaxAttempts: envInt("RETRY_MAX_ATTEMPTS", 4),
		RetryBaseDelayMs: envInt("RETRY_BASE_DELAY_MS", 2000),

		// Background refresh
		TrackedCoins:           envList("TRACKED_COINS", []string{"bitcoin", "ethereum"}),
		RefreshIntervalMinutes: envInt("REFRESH_INTERVAL_MINUTES", 60),
		RefreshOnStart:         envBool("REFRESH_ON_START", true),

		// Candle cache
		RedisAddr:             envStr("REDIS_ADDR", ""),
		RedisDB:               envInt("REDIS_DB", 0),
		CandleCacheTTLSeconds: envInt("CANDLE_CACHE_TTL_SECONDS", 300),

		LogLevel: envStr("LOG_LEVEL", "info"),
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []string

	if c.DatabaseURL == "" && c.DBUser == "" {
		errs = append(errs, "DATABASE_URL or DB_USER is required")
	}
	if c.MaxDays < 1 {
		errs = append(errs, "MAX_DAYS must be at least 1")
	}
	if c.RetryMaxAttempts < 1 {
		errs = append(errs, "RETRY_MAX_ATTEMPTS must be at least 1")
	}
	if c.RefreshIntervalMinutes < 0 {
		errs = append(errs, "REFRESH_INTERVAL_MINUTES must not be negative")
	}
	if c.APIPort <= 0 || c.APIPort > 65535 {
		errs = append(errs, fmt.Sprintf("API_PORT %d is out of range", c.APIPort))
	}
	if c.CoinGeckoAPIKey == "" {
		fmt.Println("[WARN] COINGECKO_API_KEY not set — requests use the keyless rate limit")
	}
	if c.APIKey == "" {
		fmt.Println("[WARN] API_KEY not set — REST API has no authentication")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  %s", strings.Join(errs, "\n  "))
	}
	return nil
}

func (c *Config) Print() {
	fmt.Println("=== CoinLedger Configuration ===")
	fmt.Printf("Database: %s\n", boolLabel(c.DatabaseURL != "", "DATABASE_URL", fmt.Sprintf("%s:%d/%s", c.DBHost, c.DBPort, c.DBName)))
	fmt.Printf("API Port: %d\n", c.APIPort)
	fmt.Println("--------------------------------------")
	fmt.Println("Market Data:")
	fmt.Printf("  Base URL: %s\n", c.CoinGeckoBaseURL)
	fmt.Printf("  API Key: %s\n", boolLabel(c.CoinGeckoAPIKey != "", "configured", "not set"))
	fmt.Printf("  Currency: %s\n", c.VsCurrency)
	fmt.Printf("  Max Days: %d\n", c.MaxDays)
	fmt.Printf("  Retry: %d attempts, %dms base delay\n", c.RetryMaxAttempts, c.RetryBaseDelayMs)
	fmt.Println("--------------------------------------")
	fmt.Println("Refresh:")
	fmt.Printf("  Tracked Coins: %s\n", strings.Join(c.TrackedCoins, ", "))
	fmt.Printf("  Interval: %s\n", boolLabel(c.RefreshIntervalMinutes > 0, fmt.Sprintf("every %d minutes", c.RefreshIntervalMinutes), "disabled"))
	fmt.Printf("  Candle Cache: %s (ttl %ds)\n", boolLabel(c.RedisAddr != "", "redis "+c.RedisAddr, "in-memory"), c.CandleCacheTTLSeconds)
	fmt.Printf("  Webhook: %s\n", boolLabel(c.WebhookURL != "", "configured", "not set"))
	fmt.Println("======================================")
}

func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
}

func (c *Config) RetryBaseDelay() time.Duration {
	return time.Duration(c.RetryBaseDelayMs) * time.Millisecond
}

func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshIntervalMinutes) * time.Minute
}

func (c *Config) CandleCacheTTL() time.Duration {
	return time.Duration(c.CandleCacheTTLSeconds) * time.Second
}

// --- helpers ---

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		v = strings.ToLower(v)
		return v == "true" || v == "1" || v == "yes"
	}
	return fallback
}

// envList splits a comma-separated value, lowercasing and dropping blanks.
func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.ToLower(strings.TrimSpace(part)); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

func boolLabel(cond bool, ifTrue, ifFalse string) string {
	if cond {
		return ifTrue
	}
	return ifFalse
}
