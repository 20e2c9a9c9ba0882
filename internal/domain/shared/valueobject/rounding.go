package valueobject

import "github.com/shopspring/decimal"

// MinorUnitPlaces is the number of decimal places of the currency minor unit.
// All persisted monetary amounts are rounded to this precision.
const MinorUnitPlaces int32 = 2

// RoundHalfUp rounds d to the currency minor unit, with ties going away
// from zero. Line amounts are rounded individually before they are summed.
func RoundHalfUp(d decimal.Decimal) decimal.Decimal {
	return d.Round(MinorUnitPlaces)
}
