package sales

import (
	"github.com/google/uuid"
	"github.com/retailcore/backend/internal/domain/shared"
	"github.com/retailcore/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// TaxMode determines how the tax rate is applied to line amounts
type TaxMode string

const (
	// TaxInclusive means unit prices already embed tax; tax is extracted
	TaxInclusive TaxMode = "inclusive"
	// TaxExclusive means tax is added on top of unit prices
	TaxExclusive TaxMode = "exclusive"
)

// IsValid returns true for a known tax mode
func (m TaxMode) IsValid() bool {
	return m == TaxInclusive || m == TaxExclusive
}

// CartLine is one validated, normalized cart line as received from the
// upstream caller. The tax rate is resolved server-side from the product.
type CartLine struct {
	ProductID      uuid.UUID
	Quantity       decimal.Decimal
	UnitPrice      decimal.Decimal
	DiscountAmount decimal.Decimal
	TaxRate        decimal.Decimal // Percent
}

// LineAmounts holds the computed amounts for one cart line
type LineAmounts struct {
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
}

// Totals is the server-computed result for a whole cart
type Totals struct {
	Subtotal       decimal.Decimal
	TaxAmount      decimal.Decimal
	DiscountAmount decimal.Decimal
	Total          decimal.Decimal
}

var oneHundred = decimal.NewFromInt(100)

// ComputeLine computes the amounts for a single line. Rounding half-up to the
// currency minor unit happens here, once per line; totals are then summed
// from already-rounded line amounts so no drift can accumulate. The discount
// is applied before tax extraction or addition.
func ComputeLine(line CartLine, mode TaxMode) (LineAmounts, error) {
	if !mode.IsValid() {
		return LineAmounts{}, shared.NewValidationError("unknown tax mode: " + string(mode))
	}
	if line.Quantity.LessThanOrEqual(decimal.Zero) {
		return LineAmounts{}, shared.NewValidationError("line quantity must be positive")
	}
	if line.UnitPrice.IsNegative() {
		return LineAmounts{}, shared.NewValidationError("unit price cannot be negative")
	}
	if line.TaxRate.IsNegative() || line.TaxRate.GreaterThanOrEqual(oneHundred) {
		return LineAmounts{}, shared.NewValidationError("tax rate must be in [0, 100)")
	}

	subtotal := valueobject.RoundHalfUp(line.UnitPrice.Mul(line.Quantity))

	if line.DiscountAmount.IsNegative() {
		return LineAmounts{}, shared.NewValidationError("discount cannot be negative")
	}
	if line.DiscountAmount.GreaterThan(subtotal) {
		return LineAmounts{}, shared.NewValidationError("discount cannot exceed line subtotal")
	}

	base := subtotal.Sub(line.DiscountAmount)

	var tax, total decimal.Decimal
	switch mode {
	case TaxInclusive:
		tax = valueobject.RoundHalfUp(base.Mul(line.TaxRate).Div(oneHundred.Add(line.TaxRate)))
		total = base
	case TaxExclusive:
		tax = valueobject.RoundHalfUp(base.Mul(line.TaxRate).Div(oneHundred))
		total = base.Add(tax)
	}

	return LineAmounts{Subtotal: subtotal, Tax: tax, Total: total}, nil
}

// ComputeTotals computes cart totals deterministically. The result is
// independent of line order because each line is rounded independently and
// addition is commutative over the rounded values.
func ComputeTotals(lines []CartLine, mode TaxMode) (Totals, error) {
	if len(lines) == 0 {
		return Totals{}, shared.NewValidationError("cart must contain at least one line")
	}

	totals := Totals{
		Subtotal:       decimal.Zero,
		TaxAmount:      decimal.Zero,
		DiscountAmount: decimal.Zero,
		Total:          decimal.Zero,
	}

	for _, line := range lines {
		amounts, err := ComputeLine(line, mode)
		if err != nil {
			return Totals{}, err
		}
		totals.Subtotal = totals.Subtotal.Add(amounts.Subtotal)
		totals.TaxAmount = totals.TaxAmount.Add(amounts.Tax)
		totals.DiscountAmount = totals.DiscountAmount.Add(line.DiscountAmount)
		totals.Total = totals.Total.Add(amounts.Total)
	}

	return totals, nil
}
