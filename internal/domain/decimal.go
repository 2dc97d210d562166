package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Storage precision. Quantities, stock and money are kept with four
// fractional digits and labor hours with two; values with more digits
// would be rounded by the database and drift from the ledger replay.
const (
	AmountScale = 4
	HoursScale  = 2
)

// CheckScale rejects d when it carries more than scale fractional digits.
func CheckScale(field string, d decimal.Decimal, scale int32) error {
	if !d.Equal(d.Truncate(scale)) {
		return NewValidationError(field, fmt.Sprintf("must have at most %d decimal places", scale))
	}
	return nil
}

// RoundAmount rounds a derived money value to storage precision.
func RoundAmount(d decimal.Decimal) decimal.Decimal {
	return d.Round(AmountScale)
}
