package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kjannette/coinledger/internal/models"
)

type PriceRepo struct {
	pool *pgxpool.Pool
}

func NewPriceRepo(pool *pgxpool.Pool) *PriceRepo {
	return &PriceRepo{pool: pool}
}

// Read returns every stored point for coinID ascending by date. An unknown
// coin yields an empty series, not an error.
func (r *PriceRepo) Read(ctx context.Context, coinID string) (models.PriceSeries, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT date, price_usd FROM prices WHERE coin_id = $1 ORDER BY date ASC`,
		coinID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPrices(rows)
}

// Append inserts the points whose date is not yet stored for coinID. Existing
// dates are left untouched, so repeated or concurrent appends of the same
// points are harmless.
func (r *PriceRepo) Append(ctx context.Context, coinID string, points []models.PricePoint) (int, error) {
	if len(points) == 0 {
		return 0, nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	br := tx.SendBatch(ctx, appendBatch(coinID, points))
	inserted := 0
	for range points {
		tag, err := br.Exec()
		if err != nil {
			br.Close()
			return 0, fmt.Errorf("insert price: %w", err)
		}
		inserted += int(tag.RowsAffected())
	}
	if err := br.Close(); err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return inserted, nil
}

const insertPriceSQL = `INSERT INTO prices (coin_id, date, price_usd)
	 VALUES ($1, $2, $3)
	 ON CONFLICT (coin_id, date) DO NOTHING`

func appendBatch(coinID string, points []models.PricePoint) *pgx.Batch {
	batch := &pgx.Batch{}
	for _, p := range points {
		batch.Queue(insertPriceSQL, coinID, dateValue(p.Date), p.PriceUSD)
	}
	return batch
}

func (r *PriceRepo) Latest(ctx context.Context, coinID string) (*models.PricePoint, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT date, price_usd FROM prices WHERE coin_id = $1 ORDER BY date DESC LIMIT 1`,
		coinID,
	)
	p, err := scanPrice(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return p, nil
}

// Coins lists the coin ids that have at least one stored price.
func (r *PriceRepo) Coins(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT coin_id FROM prices ORDER BY coin_id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var coins []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		coins = append(coins, c)
	}
	return coins, rows.Err()
}

// --- scan helpers ---

type scannable interface {
	Scan(dest ...any) error
}

type rowsIter interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanPrice(row scannable) (*models.PricePoint, error) {
	var p models.PricePoint
	var d time.Time
	if err := row.Scan(&d, &p.PriceUSD); err != nil {
		return nil, err
	}
	p.Date = civil.DateOf(d)
	return &p, nil
}

func collectPrices(rows rowsIter) (models.PriceSeries, error) {
	out := models.PriceSeries{}
	for rows.Next() {
		p, err := scanPrice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// dateValue is how a calendar date is bound to a DATE parameter.
func dateValue(d civil.Date) time.Time {
	return d.In(time.UTC)
}
