package repository_test

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/spec-kit/maintenance-service/internal/clock"
	"github.com/spec-kit/maintenance-service/internal/domain"
	"github.com/spec-kit/maintenance-service/internal/ledger"
	"github.com/spec-kit/maintenance-service/internal/persistence"
	"github.com/spec-kit/maintenance-service/internal/repository"
)

// openStore connects to TEST_DB_DSN and applies migrations. Tests are
// skipped when the variable is unset.
func openStore(t *testing.T) *repository.PostgresStore {
	t.Helper()
	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN not set")
	}
	ctx := context.Background()
	if err := persistence.RunMigrations(ctx, dsn, zap.NewNop()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)
	return repository.NewPostgresStore(pool, 2*time.Second)
}

func createMaterial(t *testing.T, store *repository.PostgresStore, opening int64) string {
	t.Helper()
	id := uuid.NewString()
	now := time.Now().UTC()
	l := ledger.New(clock.Real())
	err := store.WithinTx(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		if err := tx.CreateMaterial(ctx, &domain.Material{
			ID:        id,
			Code:      "IT-" + id[:8],
			Name:      "integration material",
			Unit:      "pcs",
			UnitPrice: decimal.RequireFromString("2.50"),
			CreatedAt: now,
			UpdatedAt: now,
		}); err != nil {
			return err
		}
		_, err := l.Receive(ctx, tx, ledger.ReceiveRequest{MaterialID: id, Quantity: decimal.NewFromInt(opening), ActorID: "it", Reason: "opening balance"})
		return err
	})
	if err != nil {
		t.Fatalf("create material: %v", err)
	}
	return id
}

func TestPostgresLedgerRoundTrip(t *testing.T) {
	store := openStore(t)
	materialID := createMaterial(t, store, 10)
	l := ledger.New(clock.Real())
	ctx := context.Background()

	var issued *domain.StockTransaction
	err := store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		issued, err = l.Issue(ctx, tx, ledger.IssueRequest{MaterialID: materialID, Quantity: decimal.NewFromInt(4), ActorID: "it"})
		return err
	})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	err = store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		_, err := l.Reverse(ctx, tx, ledger.ReverseRequest{TransactionID: issued.ID, ActorID: "it", Reason: "returned"})
		return err
	})
	if err != nil {
		t.Fatalf("reverse: %v", err)
	}

	err = store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		_, err := l.Reverse(ctx, tx, ledger.ReverseRequest{TransactionID: issued.ID, ActorID: "it", Reason: "again"})
		return err
	})
	if domain.KindOf(err) != domain.KindAlreadyReversed {
		t.Fatalf("second reverse: %v", err)
	}

	rec, err := ledger.Reconcile(ctx, store, materialID)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if !rec.Consistent || !rec.Cached.Equal(decimal.NewFromInt(10)) || rec.EntryCount != 3 {
		t.Fatalf("unexpected reconciliation %+v", rec)
	}
}

func TestPostgresConcurrentIssuesNeverOversell(t *testing.T) {
	store := openStore(t)
	materialID := createMaterial(t, store, 5)
	l := ledger.New(clock.Real())

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.WithinTx(context.Background(), func(ctx context.Context, tx repository.Tx) error {
				_, err := l.Issue(ctx, tx, ledger.IssueRequest{MaterialID: materialID, Quantity: decimal.NewFromInt(1), ActorID: "it"})
				return err
			})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if succeeded != 5 {
		t.Fatalf("expected 5 successful issues, got %d", succeeded)
	}
	material, err := store.GetMaterial(context.Background(), materialID)
	if err != nil {
		t.Fatalf("get material: %v", err)
	}
	if !material.CurrentStock.IsZero() {
		t.Fatalf("stock = %s, want 0", material.CurrentStock)
	}
}
