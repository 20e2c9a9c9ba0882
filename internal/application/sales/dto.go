package sales

import (
	"time"

	"github.com/google/uuid"
	"github.com/retailcore/backend/internal/domain/sales"
	"github.com/shopspring/decimal"
)

// SaleLineRequest is one cart line as submitted by the terminal. The unit
// price may be omitted to charge the current catalog price; the tax rate is
// always resolved server-side from the product.
type SaleLineRequest struct {
	ProductID      uuid.UUID        `json:"product_id" binding:"required"`
	Quantity       decimal.Decimal  `json:"quantity" binding:"required"`
	UnitPrice      *decimal.Decimal `json:"unit_price,omitempty"`
	DiscountAmount decimal.Decimal  `json:"discount_amount"`
}

// ProcessSaleRequest represents a checkout submission
type ProcessSaleRequest struct {
	LocationID     uuid.UUID         `json:"location_id" binding:"required"`
	OperatorID     uuid.UUID         `json:"operator_id" binding:"required"`
	ShiftID        *uuid.UUID        `json:"shift_id,omitempty"`
	Lines          []SaleLineRequest `json:"lines" binding:"required,min=1"`
	TaxMode        string            `json:"tax_mode"` // inclusive (default) or exclusive
	AmountPaid     decimal.Decimal   `json:"amount_paid"`
	PaymentMethod  string            `json:"payment_method" binding:"required"`
	IdempotencyKey *string           `json:"idempotency_key,omitempty"`
}

// VoidSaleRequest voids a committed sale and restores its stock
type VoidSaleRequest struct {
	SaleID     uuid.UUID `json:"sale_id" binding:"required"`
	OperatorID uuid.UUID `json:"operator_id" binding:"required"`
	Reason     string    `json:"reason" binding:"required"`
}

// SaleItemResponse represents one frozen sale line in API responses
type SaleItemResponse struct {
	ProductID      uuid.UUID       `json:"product_id"`
	ProductName    string          `json:"product_name"`
	ProductSKU     string          `json:"product_sku"`
	Quantity       decimal.Decimal `json:"quantity"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	TaxRate        decimal.Decimal `json:"tax_rate"`
	LineSubtotal   decimal.Decimal `json:"line_subtotal"`
	LineTax        decimal.Decimal `json:"line_tax"`
	LineTotal      decimal.Decimal `json:"line_total"`
}

// SaleResponse represents a committed sale in API responses
type SaleResponse struct {
	ID             uuid.UUID          `json:"id"`
	SaleNumber     string             `json:"sale_number"`
	LocationID     uuid.UUID          `json:"location_id"`
	OperatorID     uuid.UUID          `json:"operator_id"`
	ShiftID        *uuid.UUID         `json:"shift_id,omitempty"`
	Status         string             `json:"status"`
	TaxMode        string             `json:"tax_mode"`
	Subtotal       decimal.Decimal    `json:"subtotal"`
	TaxAmount      decimal.Decimal    `json:"tax_amount"`
	DiscountAmount decimal.Decimal    `json:"discount_amount"`
	Total          decimal.Decimal    `json:"total"`
	AmountPaid     decimal.Decimal    `json:"amount_paid"`
	ChangeDue      decimal.Decimal    `json:"change_due"`
	PaymentMethod  string             `json:"payment_method"`
	VoidedAt       *time.Time         `json:"voided_at,omitempty"`
	VoidReason     string             `json:"void_reason,omitempty"`
	Items          []SaleItemResponse `json:"items"`
	CreatedAt      time.Time          `json:"created_at"`
}

// ToSaleResponse converts a domain sale to a response DTO
func ToSaleResponse(sale *sales.Sale) SaleResponse {
	items := make([]SaleItemResponse, 0, len(sale.Items))
	for i := range sale.Items {
		item := &sale.Items[i]
		items = append(items, SaleItemResponse{
			ProductID:      item.ProductID,
			ProductName:    item.ProductName,
			ProductSKU:     item.ProductSKU,
			Quantity:       item.Quantity,
			UnitPrice:      item.UnitPrice,
			DiscountAmount: item.DiscountAmount,
			TaxRate:        item.TaxRate,
			LineSubtotal:   item.LineSubtotal,
			LineTax:        item.LineTax,
			LineTotal:      item.LineTotal,
		})
	}
	return SaleResponse{
		ID:             sale.ID,
		SaleNumber:     sale.SaleNumber,
		LocationID:     sale.LocationID,
		OperatorID:     sale.OperatorID,
		ShiftID:        sale.ShiftID,
		Status:         string(sale.Status),
		TaxMode:        string(sale.TaxMode),
		Subtotal:       sale.Subtotal,
		TaxAmount:      sale.TaxAmount,
		DiscountAmount: sale.DiscountAmount,
		Total:          sale.Total,
		AmountPaid:     sale.AmountPaid,
		ChangeDue:      sale.ChangeDue,
		PaymentMethod:  string(sale.PaymentMethod),
		VoidedAt:       sale.VoidedAt,
		VoidReason:     sale.VoidReason,
		Items:          items,
		CreatedAt:      sale.CreatedAt,
	}
}
