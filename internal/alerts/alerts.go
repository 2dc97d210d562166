// Package alerts classifies materials into stock and expiry alert sets.
package alerts

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/spec-kit/maintenance-service/internal/domain"
)

// DefaultExpiryWindow is how far ahead perishable expiry is flagged.
const DefaultExpiryWindow = 30 * 24 * time.Hour

// Item is one material appearing in an alert set.
type Item struct {
	MaterialID    string
	Code          string
	Name          string
	Unit          string
	CurrentStock  decimal.Decimal
	MinStockLevel decimal.Decimal
	MaxStockLevel *decimal.Decimal
	ExpiryDate    *time.Time
}

// Report holds independent alert sets; a material may appear in several.
type Report struct {
	GeneratedAt  time.Time
	LowStock     []Item
	OutOfStock   []Item
	ExpiringSoon []Item
	OverStock    []Item
}

// Empty reports whether no alert set has members.
func (r Report) Empty() bool {
	return len(r.LowStock) == 0 && len(r.OutOfStock) == 0 && len(r.ExpiringSoon) == 0 && len(r.OverStock) == 0
}

// Evaluate sweeps materials at now. It has no side effects.
//
//	lowStock:     0 < stock <= min
//	outOfStock:   stock == 0
//	expiringSoon: perishable and expiry <= now + window
//	overStock:    max set and stock > max
func Evaluate(materials []domain.Material, now time.Time, window time.Duration) Report {
	if window <= 0 {
		window = DefaultExpiryWindow
	}
	sorted := append([]domain.Material(nil), materials...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Code < sorted[j].Code })

	report := Report{
		GeneratedAt:  now,
		LowStock:     []Item{},
		OutOfStock:   []Item{},
		ExpiringSoon: []Item{},
		OverStock:    []Item{},
	}
	horizon := now.Add(window)
	for _, m := range sorted {
		item := itemFor(m)
		stock := m.CurrentStock
		switch {
		case stock.IsZero():
			report.OutOfStock = append(report.OutOfStock, item)
		case stock.IsPositive() && stock.LessThanOrEqual(m.MinStockLevel):
			report.LowStock = append(report.LowStock, item)
		}
		if m.Perishable && m.ExpiryDate != nil && !m.ExpiryDate.After(horizon) {
			report.ExpiringSoon = append(report.ExpiringSoon, item)
		}
		if m.MaxStockLevel != nil && stock.GreaterThan(*m.MaxStockLevel) {
			report.OverStock = append(report.OverStock, item)
		}
	}
	return report
}

func itemFor(m domain.Material) Item {
	return Item{
		MaterialID:    m.ID,
		Code:          m.Code,
		Name:          m.Name,
		Unit:          m.Unit,
		CurrentStock:  m.CurrentStock,
		MinStockLevel: m.MinStockLevel,
		MaxStockLevel: m.MaxStockLevel,
		ExpiryDate:    m.ExpiryDate,
	}
}
