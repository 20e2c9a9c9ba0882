package shared

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors. Anything outside this taxonomy is an infrastructure
// failure and is propagated as a wrapped error instead.
var (
	ErrNotFound   = NewDomainError("NOT_FOUND", "Resource not found")
	ErrValidation = NewDomainError("VALIDATION", "Invalid input provided")
	ErrConflict   = NewDomainError("CONFLICT", "Resource was modified by another process")
)

// InsufficientStockError is returned when a requested quantity exceeds the
// available quantity at a location. It carries enough detail for the caller
// to report the shortfall.
type InsufficientStockError struct {
	ProductID uuid.UUID
	Available decimal.Decimal
	Requested decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: available %s, requested %s",
		e.ProductID, e.Available, e.Requested)
}

// NewInsufficientStockError creates an InsufficientStockError
func NewInsufficientStockError(productID uuid.UUID, available, requested decimal.Decimal) *InsufficientStockError {
	return &InsufficientStockError{ProductID: productID, Available: available, Requested: requested}
}

// InsufficientPaymentError is returned when the amount paid is below the
// server-computed total.
type InsufficientPaymentError struct {
	Paid  decimal.Decimal
	Total decimal.Decimal
}

func (e *InsufficientPaymentError) Error() string {
	return fmt.Sprintf("insufficient payment: paid %s, total %s", e.Paid, e.Total)
}

// NewInsufficientPaymentError creates an InsufficientPaymentError
func NewInsufficientPaymentError(paid, total decimal.Decimal) *InsufficientPaymentError {
	return &InsufficientPaymentError{Paid: paid, Total: total}
}

// IsConflict reports whether err is a conflict-class domain error.
// Conflicts are retryable by the caller after a short delay.
func IsConflict(err error) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code == "CONFLICT"
	}
	return false
}

// IsNotFound reports whether err is a not-found domain error.
func IsNotFound(err error) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code == "NOT_FOUND"
	}
	return false
}

// IsValidation reports whether err is a validation domain error.
func IsValidation(err error) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code == "VALIDATION"
	}
	return false
}

// NewValidationError creates a validation error with a specific message.
func NewValidationError(message string) *DomainError {
	return NewDomainError("VALIDATION", message)
}

// NewConflictError creates a conflict error with a specific message.
func NewConflictError(message string) *DomainError {
	return NewDomainError("CONFLICT", message)
}
