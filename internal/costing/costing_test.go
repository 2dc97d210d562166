package costing

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/spec-kit/maintenance-service/internal/domain"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func ptr(s string) *string { return &s }

func TestMaterialCostExcludesReversedEntries(t *testing.T) {
	entries := []domain.StockTransaction{
		{ID: "a", Type: domain.StockTransactionIssue, Delta: d("-3"), TotalValue: d("7.50")},
		{ID: "b", Type: domain.StockTransactionIssue, Delta: d("-5"), TotalValue: d("12.50")},
		{ID: "c", Type: domain.StockTransactionReversal, Delta: d("5"), TotalValue: d("12.50"), ReversalOf: ptr("b")},
		{ID: "e", Type: domain.StockTransactionReceive, Delta: d("10"), TotalValue: d("25")},
	}
	if got := MaterialCost(entries); !got.Equal(d("7.50")) {
		t.Fatalf("MaterialCost() = %s, want 7.50", got)
	}
}

func TestComputeTotals(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	labor := []domain.LaborEntry{{Amount: d("40")}, {Amount: d("12.5")}}
	entries := []domain.StockTransaction{{ID: "a", Type: domain.StockTransactionIssue, TotalValue: d("10")}}

	snap := Compute(labor, entries, d("5"), decimal.Zero, now)
	if !snap.LaborCost.Equal(d("52.5")) || !snap.MaterialCost.Equal(d("10")) {
		t.Fatalf("labor=%s material=%s", snap.LaborCost, snap.MaterialCost)
	}
	if !snap.TotalCost.Equal(d("67.5")) {
		t.Fatalf("total = %s, want 67.5", snap.TotalCost)
	}
	if !snap.ComputedAt.Equal(now) {
		t.Fatalf("computed at = %v", snap.ComputedAt)
	}
}

func TestFrozenSnapshotIsNotRecomputed(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	ticket := &domain.Ticket{}
	entries := []domain.StockTransaction{{ID: "a", Type: domain.StockTransactionIssue, TotalValue: d("10")}}

	Freeze(ticket, entries, now)
	if !ticket.Cost.Frozen || ticket.Cost.FrozenAt == nil {
		t.Fatalf("snapshot not frozen")
	}
	more := append(entries, domain.StockTransaction{ID: "b", Type: domain.StockTransactionIssue, TotalValue: d("99")})
	if Recompute(ticket, more, now.Add(time.Hour)) {
		t.Fatalf("Recompute() changed a frozen snapshot")
	}
	if !ticket.Cost.TotalCost.Equal(d("10")) {
		t.Fatalf("total = %s, want 10", ticket.Cost.TotalCost)
	}
}

func TestVerify(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	ticket := &domain.Ticket{OverheadCost: d("3")}
	entries := []domain.StockTransaction{{ID: "a", Type: domain.StockTransactionIssue, TotalValue: d("10")}}
	Recompute(ticket, entries, now)
	if err := Verify(ticket, entries); err != nil {
		t.Fatalf("Verify() = %v", err)
	}

	ticket.Cost.MaterialCost = d("11")
	if err := Verify(ticket, entries); !errors.Is(err, ErrCostMismatch) {
		t.Fatalf("expected ErrCostMismatch, got %v", err)
	}
}
