package repository_test

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"cloud.google.com/go/civil"

	"github.com/kjannette/coinledger/internal/models"
	"github.com/kjannette/coinledger/internal/repository"
	"github.com/kjannette/coinledger/internal/testutil"
)

func day(s string) civil.Date {
	d, err := civil.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// ---------- PriceRepo ----------

func TestPriceRepo(t *testing.T) {
	pool := testutil.SetupPool(t)
	repo := repository.NewPriceRepo(pool)
	ctx := context.Background()
	coin := testutil.UniqueCoin(t, pool)

	// Read on an unknown coin
	empty, err := repo.Read(ctx, coin)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected empty series, got %d points", len(empty))
	}

	latest, err := repo.Latest(ctx, coin)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if latest != nil {
		t.Fatalf("expected nil latest, got %+v", latest)
	}

	points := []models.PricePoint{
		{Date: day("2024-01-03"), PriceUSD: 101},
		{Date: day("2024-01-01"), PriceUSD: 100},
		{Date: day("2024-01-02"), PriceUSD: 102},
	}

	n, err := repo.Append(ctx, coin, points)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 inserted, got %d", n)
	}

	first, err := repo.Read(ctx, coin)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(first) != 3 || first[0].Date != day("2024-01-01") || first[2].Date != day("2024-01-03") {
		t.Fatalf("unexpected series: %+v", first)
	}

	// Idempotent append: same points again, plus a conflicting price for an existing date
	again := append(points, models.PricePoint{Date: day("2024-01-02"), PriceUSD: 999})
	n, err = repo.Append(ctx, coin, again)
	if err != nil {
		t.Fatalf("second Append: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected 0 inserted on repeat, got %d", n)
	}

	second, err := repo.Read(ctx, coin)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(second) != len(first) {
		t.Fatalf("series changed size after repeat append: %d -> %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("point %d changed: %+v -> %+v", i, first[i], second[i])
		}
	}

	latest, err = repo.Latest(ctx, coin)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if latest == nil || latest.Date != day("2024-01-03") || latest.PriceUSD != 101 {
		t.Fatalf("unexpected latest: %+v", latest)
	}

	coins, err := repo.Coins(ctx)
	if err != nil {
		t.Fatalf("Coins: %v", err)
	}
	found := false
	for _, c := range coins {
		found = found || c == coin
	}
	if !found {
		t.Fatalf("expected %s in %v", coin, coins)
	}
}

// ---------- InvestmentRepo ----------

func TestInvestmentRepo_Uniqueness(t *testing.T) {
	pool := testutil.SetupPool(t)
	repo := repository.NewInvestmentRepo(pool)
	ctx := context.Background()
	coin := testutil.UniqueCoin(t, pool)

	inv := models.Investment{CoinID: coin, Date: day("2024-06-01"), Investor: "bitso", Amount: 500}

	ok, err := repo.Insert(ctx, inv)
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if !ok {
		t.Fatal("first insert should succeed")
	}

	dup := inv
	dup.Amount = 750
	dup.Note = "second try"
	ok, err = repo.Insert(ctx, dup)
	if err != nil {
		t.Fatalf("duplicate Insert returned error instead of false: %v", err)
	}
	if ok {
		t.Fatal("duplicate insert should report false")
	}

	rows, err := repo.ListByCoin(ctx, coin)
	if err != nil {
		t.Fatalf("ListByCoin: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected exactly one row, got %d", len(rows))
	}
	if rows[0].Amount != 500 || rows[0].Note != "" {
		t.Fatalf("row was modified by the duplicate insert: %+v", rows[0])
	}
}

func TestInvestmentRepo_BulkInsertPartial(t *testing.T) {
	pool := testutil.SetupPool(t)
	repo := repository.NewInvestmentRepo(pool)
	ctx := context.Background()
	coin := testutil.UniqueCoin(t, pool)

	var batch []models.Investment
	for i := 0; i < 10; i++ {
		batch = append(batch, models.Investment{
			CoinID:   coin,
			Date:     day("2024-01-01").AddDays(i),
			Investor: "binance",
			Amount:   float64(100 + i),
		})
	}
	// pre-existing keys for three of them
	for _, i := range []int{2, 5, 8} {
		if ok, err := repo.Insert(ctx, batch[i]); err != nil || !ok {
			t.Fatalf("seed %d: ok=%v err=%v", i, ok, err)
		}
	}

	before, err := repo.ListByCoin(ctx, coin)
	if err != nil {
		t.Fatalf("ListByCoin: %v", err)
	}

	res, err := repo.BulkInsert(ctx, batch)
	if err != nil {
		t.Fatalf("BulkInsert: %v", err)
	}
	if res.Inserted != 7 || res.Skipped != 3 {
		t.Fatalf("expected inserted=7 skipped=3, got %+v", res)
	}

	after, err := repo.ListByCoin(ctx, coin)
	if err != nil {
		t.Fatalf("ListByCoin: %v", err)
	}
	if len(after)-len(before) != 7 {
		t.Fatalf("expected ledger to gain 7 rows, gained %d", len(after)-len(before))
	}
}

func TestInvestmentRepo_ListAndDelete(t *testing.T) {
	pool := testutil.SetupPool(t)
	repo := repository.NewInvestmentRepo(pool)
	ctx := context.Background()
	coin := testutil.UniqueCoin(t, pool)

	for i, investor := range []string{"bitso", "kraken", "ledger"} {
		inv := models.Investment{
			CoinID:   coin,
			Date:     day("2024-03-01").AddDays(i * 10),
			Investor: investor,
			Amount:   float64(i+1) * 50,
			Note:     fmt.Sprintf("note %d", i),
		}
		if _, err := repo.Insert(ctx, inv); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	// Case-insensitive lookup
	rows, err := repo.ListByCoin(ctx, strings.ToUpper(coin))
	if err != nil {
		t.Fatalf("ListByCoin: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows for upper-cased coin id, got %d", len(rows))
	}
	if rows[0].Date != day("2024-03-01") || rows[0].Investor != "bitso" || rows[0].Note != "note 0" {
		t.Fatalf("unexpected first row: %+v", rows[0])
	}

	all, err := repo.ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	for i := 1; i < len(all); i++ {
		if all[i].Date.After(all[i-1].Date) {
			t.Fatalf("ListAll not descending by date at %d", i)
		}
	}

	if err := repo.Delete(ctx, coin, day("2024-03-11"), "kraken"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	// Deleting again is a no-op
	if err := repo.Delete(ctx, coin, day("2024-03-11"), "kraken"); err != nil {
		t.Fatalf("Delete missing key: %v", err)
	}

	rows, err = repo.ListByCoin(ctx, coin)
	if err != nil {
		t.Fatalf("ListByCoin: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows after delete, got %d", len(rows))
	}
	for _, r := range rows {
		if r.Investor == "kraken" {
			t.Fatal("deleted row still present")
		}
	}
}
