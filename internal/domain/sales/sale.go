package sales

import (
	"time"

	"github.com/google/uuid"
	"github.com/retailcore/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// SaleStatus represents the lifecycle state of a committed sale
type SaleStatus string

const (
	SaleStatusCompleted SaleStatus = "completed"
	SaleStatusVoided    SaleStatus = "voided"
	SaleStatusRefunded  SaleStatus = "refunded"
)

// PaymentMethod is how the sale was paid
type PaymentMethod string

const (
	PaymentMethodCash         PaymentMethod = "cash"
	PaymentMethodCard         PaymentMethod = "card"
	PaymentMethodMobile       PaymentMethod = "mobile"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
)

// IsValid returns true for a known payment method
func (p PaymentMethod) IsValid() bool {
	switch p {
	case PaymentMethodCash, PaymentMethodCard, PaymentMethodMobile, PaymentMethodBankTransfer:
		return true
	}
	return false
}

// Sale is the committed sale header. Totals are always the server-recomputed
// values; the aggregate never trusts client-supplied amounts.
type Sale struct {
	shared.TenantAggregateRoot
	SaleNumber     string          `gorm:"type:varchar(50);not null;uniqueIndex:idx_sales_tenant_number,priority:2"`
	LocationID     uuid.UUID       `gorm:"type:uuid;not null;index"`
	OperatorID     uuid.UUID       `gorm:"type:uuid;not null;index"`
	ShiftID        *uuid.UUID      `gorm:"type:uuid;index"`
	Status         SaleStatus      `gorm:"type:varchar(20);not null;default:'completed'"`
	TaxMode        TaxMode         `gorm:"type:varchar(20);not null"`
	Subtotal       decimal.Decimal `gorm:"type:decimal(15,2);not null"`
	TaxAmount      decimal.Decimal `gorm:"type:decimal(15,2);not null"`
	DiscountAmount decimal.Decimal `gorm:"type:decimal(15,2);not null"`
	Total          decimal.Decimal `gorm:"type:decimal(15,2);not null"`
	AmountPaid     decimal.Decimal `gorm:"type:decimal(15,2);not null"`
	ChangeDue      decimal.Decimal `gorm:"type:decimal(15,2);not null"`
	PaymentMethod  PaymentMethod   `gorm:"type:varchar(20);not null"`
	IdempotencyKey *string         `gorm:"type:varchar(100);uniqueIndex:idx_sales_tenant_idem,priority:2"`
	VoidedAt       *time.Time
	VoidReason     string `gorm:"type:varchar(255)"`

	Items []SaleItem `gorm:"foreignKey:SaleID;references:ID"`
}

// TableName returns the table name for GORM
func (Sale) TableName() string {
	return "sales"
}

// SaleItem is one cart line frozen at commit time. Product name, SKU, prices,
// cost and tax rate are snapshots; later product edits never alter them.
type SaleItem struct {
	shared.BaseEntity
	SaleID         uuid.UUID       `gorm:"type:uuid;not null;index"`
	ProductID      uuid.UUID       `gorm:"type:uuid;not null;index"`
	ProductName    string          `gorm:"type:varchar(255);not null"`
	ProductSKU     string          `gorm:"type:varchar(100);not null"`
	Quantity       decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	UnitPrice      decimal.Decimal `gorm:"type:decimal(15,2);not null"`
	UnitCost       decimal.Decimal `gorm:"type:decimal(15,2);not null"`
	TaxRate        decimal.Decimal `gorm:"type:decimal(5,2);not null"`
	DiscountAmount decimal.Decimal `gorm:"type:decimal(15,2);not null"`
	LineSubtotal   decimal.Decimal `gorm:"type:decimal(15,2);not null"`
	LineTax        decimal.Decimal `gorm:"type:decimal(15,2);not null"`
	LineTotal      decimal.Decimal `gorm:"type:decimal(15,2);not null"`
	LineProfit     decimal.Decimal `gorm:"type:decimal(15,2);not null"` // Derived at write time
}

// TableName returns the table name for GORM
func (SaleItem) TableName() string {
	return "sale_items"
}

// NewSaleParams carries everything needed to build a committed sale
type NewSaleParams struct {
	TenantID       uuid.UUID
	SaleNumber     string
	LocationID     uuid.UUID
	OperatorID     uuid.UUID
	ShiftID        *uuid.UUID
	TaxMode        TaxMode
	Totals         Totals
	AmountPaid     decimal.Decimal
	PaymentMethod  PaymentMethod
	IdempotencyKey *string
	Items          []SaleItem
}

// NewSale builds a Sale in completed status. Payment sufficiency must have
// been verified by the caller against the same totals.
func NewSale(p NewSaleParams) (*Sale, error) {
	if p.SaleNumber == "" {
		return nil, shared.NewValidationError("sale number cannot be empty")
	}
	if p.LocationID == uuid.Nil || p.OperatorID == uuid.Nil {
		return nil, shared.NewValidationError("location and operator are required")
	}
	if !p.TaxMode.IsValid() {
		return nil, shared.NewValidationError("unknown tax mode: " + string(p.TaxMode))
	}
	if !p.PaymentMethod.IsValid() {
		return nil, shared.NewValidationError("unknown payment method: " + string(p.PaymentMethod))
	}
	if len(p.Items) == 0 {
		return nil, shared.NewValidationError("sale must contain at least one item")
	}
	if p.AmountPaid.LessThan(p.Totals.Total) {
		return nil, shared.NewInsufficientPaymentError(p.AmountPaid, p.Totals.Total)
	}

	sale := &Sale{
		TenantAggregateRoot: shared.NewTenantAggregateRootWithCreator(p.TenantID, p.OperatorID),
		SaleNumber:          p.SaleNumber,
		LocationID:          p.LocationID,
		OperatorID:          p.OperatorID,
		ShiftID:             p.ShiftID,
		Status:              SaleStatusCompleted,
		TaxMode:             p.TaxMode,
		Subtotal:            p.Totals.Subtotal,
		TaxAmount:           p.Totals.TaxAmount,
		DiscountAmount:      p.Totals.DiscountAmount,
		Total:               p.Totals.Total,
		AmountPaid:          p.AmountPaid,
		ChangeDue:           p.AmountPaid.Sub(p.Totals.Total),
		PaymentMethod:       p.PaymentMethod,
		IdempotencyKey:      p.IdempotencyKey,
	}

	for i := range p.Items {
		p.Items[i].SaleID = sale.ID
	}
	sale.Items = p.Items

	sale.AddDomainEvent(NewSaleCompletedEvent(sale))

	return sale, nil
}

// NewSaleItem freezes one cart line plus product snapshot into a sale item.
// LineProfit is derived at write time: (total net of tax and discount) minus
// cost of goods for the line.
func NewSaleItem(line CartLine, amounts LineAmounts, productName, productSKU string, unitCost decimal.Decimal) SaleItem {
	// In both tax modes the line total carries the tax, so net revenue is
	// total minus tax.
	netRevenue := amounts.Total.Sub(amounts.Tax)

	return SaleItem{
		BaseEntity:     shared.NewBaseEntity(),
		ProductID:      line.ProductID,
		ProductName:    productName,
		ProductSKU:     productSKU,
		Quantity:       line.Quantity,
		UnitPrice:      line.UnitPrice,
		UnitCost:       unitCost,
		TaxRate:        line.TaxRate,
		DiscountAmount: line.DiscountAmount,
		LineSubtotal:   amounts.Subtotal,
		LineTax:        amounts.Tax,
		LineTotal:      amounts.Total,
		LineProfit:     netRevenue.Sub(unitCost.Mul(line.Quantity)).Round(2),
	}
}

// IsCompleted returns true while the sale has not been voided or refunded
func (s *Sale) IsCompleted() bool {
	return s.Status == SaleStatusCompleted
}

// Void marks a completed sale as voided. Stock compensation is handled by
// the sale processor; the items themselves are never mutated.
func (s *Sale) Void(reason string) error {
	if s.Status != SaleStatusCompleted {
		return shared.NewConflictError("only completed sales can be voided")
	}
	now := time.Now()
	s.Status = SaleStatusVoided
	s.VoidedAt = &now
	s.VoidReason = reason
	s.UpdatedAt = now
	s.IncrementVersion()

	s.AddDomainEvent(NewSaleVoidedEvent(s, reason))
	return nil
}
