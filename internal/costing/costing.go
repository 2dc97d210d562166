// Package costing derives a ticket's cost snapshot from its labor entries,
// its linked ledger entries and directly recorded charges.
package costing

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/spec-kit/maintenance-service/internal/domain"
)

// ErrCostMismatch reports a stored snapshot that disagrees with the ledger.
var ErrCostMismatch = errors.New("cost snapshot mismatch")

// MaterialCost sums TotalValue over issue entries that have not been
// reversed. Reversal entries themselves contribute nothing.
func MaterialCost(entries []domain.StockTransaction) decimal.Decimal {
	reversed := make(map[string]struct{})
	for _, entry := range entries {
		if entry.ReversalOf != nil {
			reversed[*entry.ReversalOf] = struct{}{}
		}
	}
	total := decimal.Zero
	for _, entry := range entries {
		if entry.Type != domain.StockTransactionIssue {
			continue
		}
		if _, ok := reversed[entry.ID]; ok {
			continue
		}
		total = total.Add(entry.TotalValue)
	}
	return total
}

// LaborCost sums the amount of every labor entry.
func LaborCost(labor []domain.LaborEntry) decimal.Decimal {
	total := decimal.Zero
	for _, entry := range labor {
		total = total.Add(entry.Amount)
	}
	return total
}

// Compute builds a snapshot. Missing figures count as zero.
func Compute(labor []domain.LaborEntry, entries []domain.StockTransaction, overhead, external decimal.Decimal, now time.Time) domain.CostSnapshot {
	snap := domain.CostSnapshot{
		LaborCost:           LaborCost(labor),
		MaterialCost:        MaterialCost(entries),
		OverheadCost:        overhead,
		ExternalServiceCost: external,
		ComputedAt:          now,
	}
	snap.TotalCost = snap.LaborCost.Add(snap.MaterialCost).Add(snap.OverheadCost).Add(snap.ExternalServiceCost)
	return snap
}

// Recompute refreshes the ticket's snapshot from entries. A frozen snapshot
// is left as is and false is returned.
func Recompute(ticket *domain.Ticket, entries []domain.StockTransaction, now time.Time) bool {
	if ticket.Cost.Frozen {
		return false
	}
	ticket.Cost = Compute(ticket.Labor, entries, ticket.OverheadCost, ticket.ExternalServiceCost, now)
	return true
}

// Freeze recomputes the snapshot one last time and marks it immutable.
func Freeze(ticket *domain.Ticket, entries []domain.StockTransaction, now time.Time) {
	Recompute(ticket, entries, now)
	ticket.Cost.Frozen = true
	frozenAt := now
	ticket.Cost.FrozenAt = &frozenAt
}

// Verify checks a stored snapshot against the ledger and labor it was
// derived from.
func Verify(ticket *domain.Ticket, entries []domain.StockTransaction) error {
	want := Compute(ticket.Labor, entries, ticket.OverheadCost, ticket.ExternalServiceCost, ticket.Cost.ComputedAt)
	got := ticket.Cost
	switch {
	case !got.MaterialCost.Equal(want.MaterialCost):
		return fmt.Errorf("%w: material cost %s, ledger gives %s", ErrCostMismatch, got.MaterialCost, want.MaterialCost)
	case !got.LaborCost.Equal(want.LaborCost):
		return fmt.Errorf("%w: labor cost %s, entries give %s", ErrCostMismatch, got.LaborCost, want.LaborCost)
	case !got.TotalCost.Equal(want.TotalCost):
		return fmt.Errorf("%w: total cost %s, parts give %s", ErrCostMismatch, got.TotalCost, want.TotalCost)
	}
	return nil
}
