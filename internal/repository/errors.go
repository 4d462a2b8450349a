// Package repository defines error types that are reused across multiple
// repositories and the transaction service. These sentinel values allow
// higher layers such as handlers to distinguish between different
// failure scenarios and map each to a specific HTTP status. All of
// them abort the enclosing database transaction; no operation ever
// succeeds with partial effect.
package repository

import "errors"

// ErrForbidden is returned when the caller attempts an operation
// on a resource they do not own. Handlers should translate this
// into an HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrEventNotFound is returned when the referenced event does not
// exist or has been soft-deleted.
var ErrEventNotFound = errors.New("event not found")

// ErrTransactionNotFound is returned when the referenced transaction
// does not exist.
var ErrTransactionNotFound = errors.New("transaction not found")

// ErrInvalidState is returned when a lifecycle transition is
// attempted from a status it is not legal from, including a second
// rollback of an already rolled-back transaction.
var ErrInvalidState = errors.New("invalid transaction state")

// ErrInsufficientSeats is returned when the event does not have
// enough seats left for the requested quantity at the moment of the
// guarded decrement.
var ErrInsufficientSeats = errors.New("not enough seats available")

// ErrInsufficientPoints is returned when the user's unexpired point
// balance is smaller than the amount asked to be redeemed.
var ErrInsufficientPoints = errors.New("not enough points available")

// ErrVoucherInvalid is returned when a voucher code is unknown,
// belongs to a different event, or is outside its validity window.
var ErrVoucherInvalid = errors.New("invalid or expired voucher")

// ErrVoucherExhausted is returned when a voucher has already reached
// its usage cap.
var ErrVoucherExhausted = errors.New("voucher usage limit reached")

// ErrCouponExpired is returned when a coupon code is unknown, past
// its expiry, or (with single-use enforcement on) already spent.
var ErrCouponExpired = errors.New("invalid or expired coupon")

// ErrTransactionExpired is returned when a payment proof arrives
// after the transaction's payment deadline.
var ErrTransactionExpired = errors.New("transaction expired")
