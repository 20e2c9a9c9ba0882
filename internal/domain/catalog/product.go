package catalog

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/retailcore/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// ProductStatus represents the status of a product
type ProductStatus string

const (
	ProductStatusActive   ProductStatus = "active"
	ProductStatusInactive ProductStatus = "inactive"
)

// Product is a catalog entry. Its prices and tax rate are mutable over time;
// committed sales snapshot these fields so later edits never alter history.
type Product struct {
	shared.TenantAggregateRoot
	SKU          string          `gorm:"type:varchar(100);not null;uniqueIndex:idx_products_tenant_sku,priority:2"`
	Barcode      string          `gorm:"type:varchar(100);index"`
	Name         string          `gorm:"type:varchar(255);not null"`
	Description  string          `gorm:"type:text"`
	SellPrice    decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0"`
	CostPrice    decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0"`
	TaxRate      decimal.Decimal `gorm:"type:decimal(5,2);not null;default:19"` // Percent, VAT default
	ReorderLevel decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Category     string          `gorm:"type:varchar(100);index"`
	Status       ProductStatus   `gorm:"type:varchar(20);not null;default:'active'"`
}

// TableName returns the table name for GORM
func (Product) TableName() string {
	return "products"
}

// NewProduct creates a new product
func NewProduct(tenantID uuid.UUID, sku, name string) (*Product, error) {
	sku = strings.TrimSpace(sku)
	if sku == "" {
		return nil, shared.NewValidationError("product SKU cannot be empty")
	}
	if strings.TrimSpace(name) == "" {
		return nil, shared.NewValidationError("product name cannot be empty")
	}

	return &Product{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		SKU:                 strings.ToUpper(sku),
		Name:                name,
		SellPrice:           decimal.Zero,
		CostPrice:           decimal.Zero,
		TaxRate:             decimal.NewFromInt(19),
		ReorderLevel:        decimal.Zero,
		Status:              ProductStatusActive,
	}, nil
}

// IsActive returns true if the product can be sold
func (p *Product) IsActive() bool {
	return p.Status == ProductStatusActive
}

// SetPrices updates the sell and cost prices
func (p *Product) SetPrices(sellPrice, costPrice decimal.Decimal) error {
	if sellPrice.IsNegative() || costPrice.IsNegative() {
		return shared.NewValidationError("prices cannot be negative")
	}
	p.SellPrice = sellPrice
	p.CostPrice = costPrice
	p.touch()
	return nil
}

// SetTaxRate updates the tax rate percentage
func (p *Product) SetTaxRate(rate decimal.Decimal) error {
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(100)) {
		return shared.NewValidationError("tax rate must be between 0 and 100")
	}
	p.TaxRate = rate
	p.touch()
	return nil
}

// SetReorderLevel updates the reorder threshold
func (p *Product) SetReorderLevel(level decimal.Decimal) error {
	if level.IsNegative() {
		return shared.NewValidationError("reorder level cannot be negative")
	}
	p.ReorderLevel = level
	p.touch()
	return nil
}

// Deactivate removes the product from sale without deleting history
func (p *Product) Deactivate() {
	p.Status = ProductStatusInactive
	p.touch()
}

func (p *Product) touch() {
	p.UpdatedAt = time.Now()
	p.IncrementVersion()
}
