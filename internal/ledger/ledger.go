// Package ledger is the append-only stock ledger. It is the single source of
// truth for material quantities; Material.CurrentStock is a cache it keeps
// in step with the entries it writes.
package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/spec-kit/maintenance-service/internal/clock"
	"github.com/spec-kit/maintenance-service/internal/domain"
)

// Tx is the slice of a storage transaction the ledger needs.
type Tx interface {
	LockMaterial(ctx context.Context, id string) (*domain.Material, error)
	SaveMaterial(ctx context.Context, material *domain.Material) error
	GetTransaction(ctx context.Context, id string) (*domain.StockTransaction, error)
	FindReversal(ctx context.Context, transactionID string) (*domain.StockTransaction, error)
	AppendTransaction(ctx context.Context, entry *domain.StockTransaction) error
}

// IssueRequest describes an outbound movement.
type IssueRequest struct {
	MaterialID string
	Quantity   decimal.Decimal
	TicketID   *string
	TaskID     *string
	ActorID    string
	Reason     string
}

// ReceiveRequest describes an inbound movement. A non-nil UnitPrice
// replaces the catalog price before the entry is valued.
type ReceiveRequest struct {
	MaterialID string
	Quantity   decimal.Decimal
	UnitPrice  *decimal.Decimal
	ActorID    string
	Reason     string
}

// ReverseRequest identifies the entry to negate.
type ReverseRequest struct {
	TransactionID string
	ActorID       string
	Reason        string
}

// Ledger writes stock movements inside a caller-supplied transaction.
type Ledger struct {
	clock clock.Clock
}

// New builds a Ledger.
func New(clk clock.Clock) *Ledger {
	return &Ledger{clock: clk}
}

// Issue removes stock. It fails with InsufficientStockError, writing
// nothing, when the material holds less than the requested quantity.
func (l *Ledger) Issue(ctx context.Context, tx Tx, req IssueRequest) (*domain.StockTransaction, error) {
	if !req.Quantity.IsPositive() {
		return nil, domain.NewValidationError("quantity", "must be greater than zero")
	}
	if err := domain.CheckScale("quantity", req.Quantity, domain.AmountScale); err != nil {
		return nil, err
	}
	material, err := tx.LockMaterial(ctx, req.MaterialID)
	if err != nil {
		return nil, err
	}
	if material.CurrentStock.LessThan(req.Quantity) {
		return nil, &domain.InsufficientStockError{
			MaterialID: material.ID,
			Available:  material.CurrentStock,
			Requested:  req.Quantity,
		}
	}
	entry := l.newEntry(material, domain.StockTransactionIssue, req.Quantity.Neg(), material.UnitPrice)
	entry.TicketID = req.TicketID
	entry.TaskID = req.TaskID
	entry.ActorID = req.ActorID
	entry.Reason = req.Reason
	if err := l.append(ctx, tx, material, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// Receive adds stock. MaxStockLevel is advisory and never blocks a receipt.
func (l *Ledger) Receive(ctx context.Context, tx Tx, req ReceiveRequest) (*domain.StockTransaction, error) {
	if !req.Quantity.IsPositive() {
		return nil, domain.NewValidationError("quantity", "must be greater than zero")
	}
	if err := domain.CheckScale("quantity", req.Quantity, domain.AmountScale); err != nil {
		return nil, err
	}
	if req.UnitPrice != nil {
		if req.UnitPrice.IsNegative() {
			return nil, domain.NewValidationError("unit_price", "must not be negative")
		}
		if err := domain.CheckScale("unit_price", *req.UnitPrice, domain.AmountScale); err != nil {
			return nil, err
		}
	}
	material, err := tx.LockMaterial(ctx, req.MaterialID)
	if err != nil {
		return nil, err
	}
	if req.UnitPrice != nil {
		material.UnitPrice = *req.UnitPrice
	}
	entry := l.newEntry(material, domain.StockTransactionReceive, req.Quantity, material.UnitPrice)
	entry.ActorID = req.ActorID
	entry.Reason = req.Reason
	if err := l.append(ctx, tx, material, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// Reverse appends an entry negating the original. An entry can be reversed
// at most once and reversal entries cannot be reversed themselves.
func (l *Ledger) Reverse(ctx context.Context, tx Tx, req ReverseRequest) (*domain.StockTransaction, error) {
	original, err := tx.GetTransaction(ctx, req.TransactionID)
	if err != nil {
		return nil, err
	}
	if original.IsReversal() {
		return nil, domain.NewValidationError("transaction_id", "reversal entries cannot be reversed")
	}
	material, err := tx.LockMaterial(ctx, original.MaterialID)
	if err != nil {
		return nil, err
	}
	existing, err := tx.FindReversal(ctx, original.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, &domain.AlreadyReversedError{TransactionID: original.ID, ReversalID: existing.ID}
	}

	delta := original.Delta.Neg()
	if material.CurrentStock.Add(delta).IsNegative() {
		return nil, &domain.InsufficientStockError{
			MaterialID: material.ID,
			Available:  material.CurrentStock,
			Requested:  delta.Abs(),
		}
	}
	entry := l.newEntry(material, domain.StockTransactionReversal, delta, original.UnitPrice)
	entry.TicketID = original.TicketID
	entry.TaskID = original.TaskID
	entry.ActorID = req.ActorID
	entry.Reason = req.Reason
	entry.ReversalOf = &original.ID
	if err := l.append(ctx, tx, material, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

func (l *Ledger) newEntry(material *domain.Material, kind domain.StockTransactionType, delta, unitPrice decimal.Decimal) *domain.StockTransaction {
	return &domain.StockTransaction{
		ID:             uuid.NewString(),
		MaterialID:     material.ID,
		Sequence:       material.LastSequence + 1,
		Type:           kind,
		Delta:          delta,
		ResultingStock: material.CurrentStock.Add(delta),
		UnitPrice:      unitPrice,
		TotalValue:     domain.RoundAmount(delta.Abs().Mul(unitPrice)),
		CreatedAt:      l.clock.Now(),
	}
}

// append writes the entry and moves the cached stock to its resulting value.
func (l *Ledger) append(ctx context.Context, tx Tx, material *domain.Material, entry *domain.StockTransaction) error {
	if err := tx.AppendTransaction(ctx, entry); err != nil {
		return fmt.Errorf("append ledger entry: %w", err)
	}
	material.CurrentStock = entry.ResultingStock
	material.LastSequence = entry.Sequence
	material.UpdatedAt = entry.CreatedAt
	if err := tx.SaveMaterial(ctx, material); err != nil {
		return fmt.Errorf("update cached stock: %w", err)
	}
	return nil
}
