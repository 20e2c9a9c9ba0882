package persistence

import (
	"strings"
)

// ValidateSortOrder validates and normalizes the sort order to ASC or DESC.
// Returns "DESC" as the default if the input is invalid or empty.
func ValidateSortOrder(orderDir string) string {
	normalized := strings.ToUpper(strings.TrimSpace(orderDir))
	if normalized == "ASC" {
		return "ASC"
	}
	return "DESC"
}

// ValidateSortField validates the sort field against a whitelist of allowed fields.
// Returns the defaultField if the input is invalid, empty, or not in the whitelist.
func ValidateSortField(sortField string, allowedFields map[string]bool, defaultField string) string {
	trimmed := strings.TrimSpace(sortField)
	if trimmed == "" {
		return defaultField
	}
	if allowedFields[trimmed] {
		return trimmed
	}
	return defaultField
}

// ProductSortFields contains allowed sort fields for products
var ProductSortFields = map[string]bool{
	"id":         true,
	"created_at": true,
	"updated_at": true,
	"sku":        true,
	"barcode":    true,
	"name":       true,
	"sell_price": true,
	"cost_price": true,
	"category":   true,
	"status":     true,
}

// StockLevelSortFields contains allowed sort fields for stock levels
var StockLevelSortFields = map[string]bool{
	"id":               true,
	"created_at":       true,
	"updated_at":       true,
	"location_id":      true,
	"product_id":       true,
	"on_hand_quantity": true,
	"average_cost":     true,
	"reorder_level":    true,
}

// SaleSortFields contains allowed sort fields for sales
var SaleSortFields = map[string]bool{
	"id":             true,
	"created_at":     true,
	"updated_at":     true,
	"sale_number":    true,
	"location_id":    true,
	"operator_id":    true,
	"status":         true,
	"total":          true,
	"payment_method": true,
}

// ShiftSortFields contains allowed sort fields for shifts
var ShiftSortFields = map[string]bool{
	"id":          true,
	"created_at":  true,
	"updated_at":  true,
	"operator_id": true,
	"location_id": true,
	"status":      true,
	"opened_at":   true,
	"closed_at":   true,
}
