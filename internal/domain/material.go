package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Material is catalog reference data together with its cached stock level.
// CurrentStock and LastSequence are maintained by the stock ledger only.
type Material struct {
	ID            string
	Code          string
	Name          string
	Unit          string
	UnitPrice     decimal.Decimal
	CurrentStock  decimal.Decimal
	MinStockLevel decimal.Decimal
	MaxStockLevel *decimal.Decimal
	Perishable    bool
	ExpiryDate    *time.Time
	LastSequence  int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Clone returns a copy safe to mutate.
func (m *Material) Clone() *Material {
	if m == nil {
		return nil
	}
	cp := *m
	if m.MaxStockLevel != nil {
		level := *m.MaxStockLevel
		cp.MaxStockLevel = &level
	}
	cp.ExpiryDate = cloneTime(m.ExpiryDate)
	return &cp
}
