package domain

import "errors"

// Sentinel errors for domain-level error handling.
// The handler layer maps these to HTTP status codes.
var (
	ErrInvalidOrder          = errors.New("invalid_order")
	ErrSymbolMismatch        = errors.New("symbol_mismatch")
	ErrSymbolNotFound        = errors.New("symbol_not_found")
	ErrSymbolAlreadyExists   = errors.New("symbol_already_exists")
	ErrOrderNotFound         = errors.New("order_not_found")
	ErrDuplicateOrder        = errors.New("duplicate_order")
	ErrNoLiquidity           = errors.New("no_liquidity")
	ErrInsufficientLiquidity = errors.New("insufficient_liquidity")
	ErrWebhookNotFound       = errors.New("webhook_not_found")
)

// ValidationError represents a request or order validation failure.
// It matches ErrInvalidOrder under errors.Is.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Is reports ErrInvalidOrder as the kind of every validation failure.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidOrder
}
