package domain

import "errors"

// Sentinel errors for domain-level error handling.
// The handler layer maps these to HTTP status codes.
var (
	ErrOrderNotFound   = errors.New("order_not_found")
	ErrNotOrderOwner   = errors.New("not_order_owner")
	ErrSymbolNotFound  = errors.New("symbol_not_found")
	ErrWebhookNotFound = errors.New("webhook_not_found")
)

// ValidationError represents a request validation failure: a malformed
// order is rejected before it touches the book, with no partial effect.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
