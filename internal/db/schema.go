package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS prices (
		coin_id   TEXT             NOT NULL,
		date      DATE             NOT NULL,
		price_usd DOUBLE PRECISION NOT NULL,
		PRIMARY KEY (coin_id, date)
	)`,
	`CREATE TABLE IF NOT EXISTS investments (
		coin_id  TEXT             NOT NULL,
		date     DATE             NOT NULL,
		investor TEXT             NOT NULL,
		amount   DOUBLE PRECISION NOT NULL,
		note     TEXT             NOT NULL DEFAULT '',
		PRIMARY KEY (coin_id, date, investor)
	)`,
	`CREATE INDEX IF NOT EXISTS investments_coin_lower_idx ON investments (LOWER(coin_id))`,
}

// EnsureSchema creates the tables if they are missing. It is safe to run on
// every start.
func EnsureSchema(ctx context.Context, p *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := p.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
