package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/spec-kit/maintenance-service/internal/domain"
	"github.com/spec-kit/maintenance-service/internal/repository"
)

func seedMaterial(t *testing.T, s *Store, id string, stock int64) {
	t.Helper()
	err := s.WithinTx(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		return tx.CreateMaterial(ctx, &domain.Material{
			ID:           id,
			Code:         "CODE-" + id,
			Unit:         "pcs",
			CurrentStock: decimal.NewFromInt(stock),
		})
	})
	if err != nil {
		t.Fatalf("seed material: %v", err)
	}
}

func TestRollbackDiscardsStagedWrites(t *testing.T) {
	s := NewStore(time.Second)
	seedMaterial(t, s, "m1", 10)

	boom := errors.New("boom")
	err := s.WithinTx(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		m, err := tx.LockMaterial(ctx, "m1")
		if err != nil {
			return err
		}
		m.CurrentStock = decimal.NewFromInt(3)
		if err := tx.SaveMaterial(ctx, m); err != nil {
			return err
		}
		if err := tx.AppendTransaction(ctx, &domain.StockTransaction{ID: "tx1", MaterialID: "m1", Sequence: 1}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	m, err := s.GetMaterial(context.Background(), "m1")
	if err != nil {
		t.Fatalf("get material: %v", err)
	}
	if !m.CurrentStock.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("stock = %s, want 10", m.CurrentStock)
	}
	entries, _ := s.ListTransactionsByMaterial(context.Background(), "m1")
	if len(entries) != 0 {
		t.Fatalf("ledger has %d entries after rollback", len(entries))
	}
}

func TestLockTimeoutIsConcurrencyConflict(t *testing.T) {
	s := NewStore(20 * time.Millisecond)
	seedMaterial(t, s, "m1", 1)

	held := make(chan struct{})
	done := make(chan struct{})
	go func() {
		_ = s.WithinTx(context.Background(), func(ctx context.Context, tx repository.Tx) error {
			if _, err := tx.LockMaterial(ctx, "m1"); err != nil {
				return err
			}
			close(held)
			<-done
			return nil
		})
	}()
	<-held
	defer close(done)

	err := s.WithinTx(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		_, err := tx.LockMaterial(ctx, "m1")
		return err
	})
	if !errors.Is(err, domain.ErrConcurrencyConflict) {
		t.Fatalf("expected ErrConcurrencyConflict, got %v", err)
	}
}

func TestLockOrderViolationFailsFast(t *testing.T) {
	s := NewStore(time.Second)
	seedMaterial(t, s, "m1", 1)
	seedMaterial(t, s, "m2", 1)

	err := s.WithinTx(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		if _, err := tx.LockMaterial(ctx, "m2"); err != nil {
			return err
		}
		_, err := tx.LockMaterial(ctx, "m1")
		return err
	})
	if !errors.Is(err, repository.ErrLockOrder) {
		t.Fatalf("expected ErrLockOrder, got %v", err)
	}
}

func TestSaveTicketRejectsStaleVersion(t *testing.T) {
	s := NewStore(time.Second)
	ctx := context.Background()
	err := s.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		return tx.CreateTicket(ctx, &domain.Ticket{ID: "t1", Number: "MNT-000001", Status: domain.TicketStatusPending})
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	err = s.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		ticket, err := tx.LockTicket(ctx, "t1")
		if err != nil {
			return err
		}
		ticket.Version = 7
		return tx.SaveTicket(ctx, ticket)
	})
	if !errors.Is(err, domain.ErrConcurrencyConflict) {
		t.Fatalf("expected ErrConcurrencyConflict, got %v", err)
	}
}

func TestSaveRequiresLock(t *testing.T) {
	s := NewStore(time.Second)
	seedMaterial(t, s, "m1", 1)
	err := s.WithinTx(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		m, err := tx.GetMaterial(ctx, "m1")
		if err != nil {
			return err
		}
		return tx.SaveMaterial(ctx, m)
	})
	if !errors.Is(err, errNotLocked) {
		t.Fatalf("expected errNotLocked, got %v", err)
	}
}

func TestCancelledContextAbortsCommit(t *testing.T) {
	s := NewStore(time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	err := s.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		cancel()
		return tx.CreateMaterial(ctx, &domain.Material{ID: "m1", Code: "X"})
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if _, err := s.GetMaterial(context.Background(), "m1"); domain.KindOf(err) != domain.KindNotFound {
		t.Fatalf("material committed despite cancelled context: %v", err)
	}
}
