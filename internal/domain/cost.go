package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CostSnapshot is the aggregated cost attached to a ticket.
type CostSnapshot struct {
	LaborCost           decimal.Decimal
	MaterialCost        decimal.Decimal
	OverheadCost        decimal.Decimal
	ExternalServiceCost decimal.Decimal
	TotalCost           decimal.Decimal
	Frozen              bool
	FrozenAt            *time.Time
	ComputedAt          time.Time
}
