package payment

import "errors"

var (
	ErrPaymentNotFound = errors.New("payment not found")
	ErrEmptyCart       = errors.New("cart has no seats")
	ErrInvalidAmount   = errors.New("cart total must be positive")
	ErrRateLimited     = errors.New("too many payment attempts")
)
