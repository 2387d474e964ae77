package repository

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/civil"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kjannette/coinledger/internal/models"
)

const uniqueViolation = "23505"

type InvestmentRepo struct {
	pool *pgxpool.Pool
}

func NewInvestmentRepo(pool *pgxpool.Pool) *InvestmentRepo {
	return &InvestmentRepo{pool: pool}
}

// Insert records inv and reports false when an investment with the same
// (coin, date, investor) already exists.
func (r *InvestmentRepo) Insert(ctx context.Context, inv models.Investment) (bool, error) {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO investments (coin_id, date, investor, amount, note)
		 VALUES ($1, $2, $3, $4, $5)`,
		inv.CoinID, dateValue(inv.Date), inv.Investor, inv.Amount, inv.Note,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// BulkInsert inserts each record on its own; duplicates are counted as
// skipped and do not abort the batch. Any other error stops the batch and is
// returned with the tally so far.
func (r *InvestmentRepo) BulkInsert(ctx context.Context, invs []models.Investment) (models.BulkResult, error) {
	var res models.BulkResult
	for _, inv := range invs {
		ok, err := r.Insert(ctx, inv)
		if err != nil {
			return res, err
		}
		if ok {
			res.Inserted++
		} else {
			res.Skipped++
		}
	}
	return res, nil
}

// ListByCoin matches coinID case-insensitively, ordered by date.
func (r *InvestmentRepo) ListByCoin(ctx context.Context, coinID string) ([]models.Investment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT coin_id, date, investor, amount, note FROM investments
		 WHERE LOWER(coin_id) = LOWER($1)
		 ORDER BY date ASC, investor ASC`,
		coinID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectInvestments(rows)
}

// ListAll returns every investment, newest first.
func (r *InvestmentRepo) ListAll(ctx context.Context) ([]models.Investment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT coin_id, date, investor, amount, note FROM investments
		 ORDER BY date DESC, coin_id ASC, investor ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectInvestments(rows)
}

// Delete removes the investment with the given key. Missing keys are not an error.
func (r *InvestmentRepo) Delete(ctx context.Context, coinID string, date civil.Date, investor string) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM investments WHERE coin_id = $1 AND date = $2 AND investor = $3`,
		coinID, dateValue(date), investor,
	)
	return err
}

func (r *InvestmentRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM investments`).Scan(&n)
	return n, err
}

// --- scan helpers ---

func collectInvestments(rows rowsIter) ([]models.Investment, error) {
	out := []models.Investment{}
	for rows.Next() {
		var inv models.Investment
		var d time.Time
		if err := rows.Scan(&inv.CoinID, &d, &inv.Investor, &inv.Amount, &inv.Note); err != nil {
			return nil, err
		}
		inv.Date = civil.DateOf(d)
		out = append(out, inv)
	}
	return out, rows.Err()
}
