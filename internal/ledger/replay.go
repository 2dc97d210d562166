package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/spec-kit/maintenance-service/internal/domain"
)

// ErrLedgerInconsistent reports a ledger whose history does not fold into
// its own snapshots.
var ErrLedgerInconsistent = errors.New("ledger inconsistent")

// Replay folds entries in sequence order and returns the resulting stock.
func Replay(entries []domain.StockTransaction) decimal.Decimal {
	stock := decimal.Zero
	for _, entry := range sortedBySequence(entries) {
		stock = stock.Add(entry.Delta)
	}
	return stock
}

// Verify checks that sequences strictly increase from 1 without gaps and
// that every ResultingStock matches the running total.
func Verify(entries []domain.StockTransaction) error {
	stock := decimal.Zero
	for i, entry := range sortedBySequence(entries) {
		if entry.Sequence != int64(i+1) {
			return fmt.Errorf("%w: expected sequence %d, found %d", ErrLedgerInconsistent, i+1, entry.Sequence)
		}
		stock = stock.Add(entry.Delta)
		if !stock.Equal(entry.ResultingStock) {
			return fmt.Errorf("%w: sequence %d records %s, replay gives %s",
				ErrLedgerInconsistent, entry.Sequence, entry.ResultingStock, stock)
		}
		if stock.IsNegative() {
			return fmt.Errorf("%w: sequence %d drives stock negative", ErrLedgerInconsistent, entry.Sequence)
		}
	}
	return nil
}

// Reader is the lookup surface needed for reconciliation.
type Reader interface {
	GetMaterial(ctx context.Context, id string) (*domain.Material, error)
	ListTransactionsByMaterial(ctx context.Context, materialID string) ([]domain.StockTransaction, error)
}

// Reconciliation compares the cached stock with the replayed ledger.
type Reconciliation struct {
	MaterialID   string
	Cached       decimal.Decimal
	Replayed     decimal.Decimal
	LastSequence int64
	EntryCount   int
	Consistent   bool
	Problem      string
}

// Reconcile replays a material's ledger and compares it with the cache.
func Reconcile(ctx context.Context, r Reader, materialID string) (*Reconciliation, error) {
	material, err := r.GetMaterial(ctx, materialID)
	if err != nil {
		return nil, err
	}
	entries, err := r.ListTransactionsByMaterial(ctx, materialID)
	if err != nil {
		return nil, err
	}
	result := &Reconciliation{
		MaterialID:   materialID,
		Cached:       material.CurrentStock,
		Replayed:     Replay(entries),
		LastSequence: material.LastSequence,
		EntryCount:   len(entries),
	}
	result.Consistent = result.Cached.Equal(result.Replayed) && result.LastSequence == int64(len(entries))
	if err := Verify(entries); err != nil {
		result.Consistent = false
		result.Problem = err.Error()
	} else if !result.Consistent {
		result.Problem = fmt.Sprintf("cached stock %s at sequence %d, ledger replays to %s over %d entries",
			result.Cached, result.LastSequence, result.Replayed, result.EntryCount)
	}
	return result, nil
}

func sortedBySequence(entries []domain.StockTransaction) []domain.StockTransaction {
	sorted := append([]domain.StockTransaction(nil), entries...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Sequence < sorted[j].Sequence })
	return sorted
}
