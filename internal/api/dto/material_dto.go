package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/spec-kit/maintenance-service/internal/domain"
)

// CreateMaterialRequest payload.
type CreateMaterialRequest struct {
	Code          string           `json:"code"`
	Name          string           `json:"name"`
	Unit          string           `json:"unit"`
	UnitPrice     decimal.Decimal  `json:"unit_price"`
	MinStockLevel decimal.Decimal  `json:"min_stock_level"`
	MaxStockLevel *decimal.Decimal `json:"max_stock_level"`
	Perishable    bool             `json:"perishable"`
	ExpiryDate    *time.Time       `json:"expiry_date"`
	OpeningStock  decimal.Decimal  `json:"opening_stock"`
}

// MaterialResponse represents a catalog entry and its cached stock.
type MaterialResponse struct {
	ID            string           `json:"id"`
	Code          string           `json:"code"`
	Name          string           `json:"name"`
	Unit          string           `json:"unit"`
	UnitPrice     decimal.Decimal  `json:"unit_price"`
	CurrentStock  decimal.Decimal  `json:"current_stock"`
	MinStockLevel decimal.Decimal  `json:"min_stock_level"`
	MaxStockLevel *decimal.Decimal `json:"max_stock_level"`
	Perishable    bool             `json:"perishable"`
	ExpiryDate    *time.Time       `json:"expiry_date"`
	LastSequence  int64            `json:"last_sequence"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// ReceiveStockRequest payload.
type ReceiveStockRequest struct {
	Quantity  decimal.Decimal  `json:"quantity"`
	UnitPrice *decimal.Decimal `json:"unit_price"`
	Reason    string           `json:"reason"`
}

// StockTransactionResponse is one ledger entry.
type StockTransactionResponse struct {
	ID             string                      `json:"id"`
	MaterialID     string                      `json:"material_id"`
	Sequence       int64                       `json:"sequence"`
	Type           domain.StockTransactionType `json:"type"`
	Delta          decimal.Decimal             `json:"delta"`
	ResultingStock decimal.Decimal             `json:"resulting_stock"`
	UnitPrice      decimal.Decimal             `json:"unit_price"`
	TotalValue     decimal.Decimal             `json:"total_value"`
	TicketID       *string                     `json:"ticket_id"`
	TaskID         *string                     `json:"task_id"`
	ActorID        string                      `json:"actor_id"`
	Reason         string                      `json:"reason"`
	ReversalOf     *string                     `json:"reversal_of"`
	CreatedAt      time.Time                   `json:"created_at"`
}

// ReconciliationResponse compares cached stock with the replayed ledger.
type ReconciliationResponse struct {
	MaterialID   string          `json:"material_id"`
	Cached       decimal.Decimal `json:"cached"`
	Replayed     decimal.Decimal `json:"replayed"`
	LastSequence int64           `json:"last_sequence"`
	EntryCount   int             `json:"entry_count"`
	Consistent   bool            `json:"consistent"`
	Problem      string          `json:"problem,omitempty"`
}

// AlertItemResponse is one material in an alert set.
type AlertItemResponse struct {
	MaterialID    string           `json:"material_id"`
	Code          string           `json:"code"`
	Name          string           `json:"name"`
	Unit          string           `json:"unit"`
	CurrentStock  decimal.Decimal  `json:"current_stock"`
	MinStockLevel decimal.Decimal  `json:"min_stock_level"`
	MaxStockLevel *decimal.Decimal `json:"max_stock_level,omitempty"`
	ExpiryDate    *time.Time       `json:"expiry_date,omitempty"`
}

// AlertReportResponse holds the independent alert sets.
type AlertReportResponse struct {
	GeneratedAt  time.Time           `json:"generated_at"`
	LowStock     []AlertItemResponse `json:"low_stock"`
	OutOfStock   []AlertItemResponse `json:"out_of_stock"`
	ExpiringSoon []AlertItemResponse `json:"expiring_soon"`
	OverStock    []AlertItemResponse `json:"over_stock"`
}
