package testutil

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/kjannette/coinledger/internal/db"
)

// SetupPool creates a pgxpool.Pool for integration tests against
// TEST_DATABASE_URL with the schema applied. The test is skipped when no
// test database is configured or reachable.
func SetupPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	_ = godotenv.Load("../../.env")

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		t.Skipf("test database unreachable: %v", err)
	}
	t.Cleanup(func() { pool.Close() })

	if err := db.EnsureSchema(ctx, pool); err != nil {
		t.Fatalf("schema: %v", err)
	}
	return pool
}

// UniqueCoin returns a coin id no other test run uses and removes its rows
// when the test ends.
func UniqueCoin(t *testing.T, pool *pgxpool.Pool) string {
	t.Helper()
	coin := fmt.Sprintf("test-coin-%d", time.Now().UnixNano())
	t.Cleanup(func() {
		ctx := context.Background()
		pool.Exec(ctx, `DELETE FROM prices WHERE coin_id = $1`, coin)
		pool.Exec(ctx, `DELETE FROM investments WHERE LOWER(coin_id) = LOWER($1)`, coin)
	})
	return coin
}
