package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// StockTransactionType classifies ledger entries.
type StockTransactionType string

const (
	StockTransactionIssue    StockTransactionType = "ISSUE"
	StockTransactionReceive  StockTransactionType = "RECEIVE"
	StockTransactionReversal StockTransactionType = "REVERSAL"
)

// StockTransaction is an immutable ledger entry. Delta is signed: inbound
// movements are positive, outbound negative.
type StockTransaction struct {
	ID             string
	MaterialID     string
	Sequence       int64
	Type           StockTransactionType
	Delta          decimal.Decimal
	ResultingStock decimal.Decimal
	UnitPrice      decimal.Decimal
	TotalValue     decimal.Decimal
	TicketID       *string
	TaskID         *string
	ActorID        string
	Reason         string
	ReversalOf     *string
	CreatedAt      time.Time
}

// IsReversal reports whether the entry negates another entry.
func (t *StockTransaction) IsReversal() bool {
	return t.Type == StockTransactionReversal
}
