package model

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// Standard error codes for API responses
const (
	ErrCodeInvalidJSON         = "INVALID_JSON"
	ErrCodeInvalidQuantity     = "INVALID_QUANTITY"
	ErrCodeEmptyCart           = "EMPTY_CART"
	ErrCodeCartLocked          = "CART_LOCKED"
	ErrCodeCartNotConfirmed    = "CART_NOT_CONFIRMED"
	ErrCodeCheckoutMissing     = "CHECKOUT_MISSING"
	ErrCodeCheckoutIncomplete  = "CHECKOUT_INCOMPLETE"
	ErrCodeInsufficientStock   = "INSUFFICIENT_STOCK"
	ErrCodeOrderNotCancellable = "ORDER_NOT_CANCELLABLE"
	ErrCodeOrderNotConfirmed   = "ORDER_NOT_CONFIRMED"
	ErrCodeOrderNotPayable     = "ORDER_NOT_PAYABLE"
	ErrCodePaymentFailed       = "PAYMENT_FAILED"
	ErrCodeInvalidReference    = "INVALID_REFERENCE"
	ErrCodeNotFound            = "NOT_FOUND"
	ErrCodeMethodNotAllowed    = "METHOD_NOT_ALLOWED"
	ErrCodeUnauthorised        = "UNAUTHORIZED"
	ErrCodeInternalError       = "INTERNAL_ERROR"
)

// StockShortage describes a single product whose requested quantity exceeds
// the available stock.
type StockShortage struct {
	ProductID   string `json:"productId"`
	ProductName string `json:"productName"`
	Requested   int    `json:"requested"`
	Available   int    `json:"available"`
}

// ValidationError is a user-correctable failure. It carries enough structure
// for the caller to drive a corrective action: the list of missing checkout
// fields or the full list of stock shortages, never just the first.
type ValidationError struct {
	Code          string          `json:"code"`
	Message       string          `json:"message"`
	MissingFields []string        `json:"missingFields,omitempty"`
	Shortages     []StockShortage `json:"shortages,omitempty"`
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError creates a validation error with the given code.
func NewValidationError(code, message string) *ValidationError {
	return &ValidationError{Code: code, Message: message}
}

// NewInsufficientStockError builds the structured insufficient-stock error
// enumerating every offending product.
func NewInsufficientStockError(shortages []StockShortage) *ValidationError {
	names := make([]string, len(shortages))
	for i, s := range shortages {
		names[i] = s.ProductName
	}
	return &ValidationError{
		Code:      ErrCodeInsufficientStock,
		Message:   fmt.Sprintf("insufficient stock for: %s", strings.Join(names, ", ")),
		Shortages: shortages,
	}
}

// NewCheckoutIncompleteError names every missing checkout field.
func NewCheckoutIncompleteError(missing []string) *ValidationError {
	return &ValidationError{
		Code:          ErrCodeCheckoutIncomplete,
		Message:       fmt.Sprintf("checkout is incomplete: %s required", strings.Join(missing, ", ")),
		MissingFields: missing,
	}
}

// StateConflictError indicates the cart, order or payment is in the wrong
// lifecycle state for the requested operation.
type StateConflictError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *StateConflictError) Error() string {
	return e.Message
}

// NewStateConflictError creates a state-conflict error with the given code.
func NewStateConflictError(code, message string) *StateConflictError {
	return &StateConflictError{Code: code, Message: message}
}

// NotFoundError indicates a missing entity or reference.
type NotFoundError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *NotFoundError) Error() string {
	return e.Message
}

// NewNotFoundError creates a not-found error for the given entity.
func NewNotFoundError(entity string) *NotFoundError {
	return &NotFoundError{Code: ErrCodeNotFound, Message: entity + " not found"}
}

// TransientError wraps an infrastructure failure that is safe to retry,
// such as a lost database or broker connection.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return "transient infrastructure error: " + e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsStateConflict reports whether err is (or wraps) a StateConflictError.
func IsStateConflict(err error) bool {
	var sc *StateConflictError
	return errors.As(err, &sc)
}

// IsNotFound reports whether err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsTransient classifies an error as a retryable infrastructure failure.
// Connection-class postgres errors (SQLSTATE 08xxx), network errors and
// deadline expiry qualify; everything else is treated as fatal.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
		return true
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return strings.HasPrefix(pgErr.Code, "08")
	}

	return pgconn.SafeToRetry(err)
}

// ErrorResponse represents a standardised error response.
type ErrorResponse struct {
	Error         string          `json:"error"`
	Message       string          `json:"message"`
	MissingFields []string        `json:"missingFields,omitempty"`
	Shortages     []StockShortage `json:"shortages,omitempty"`
}
