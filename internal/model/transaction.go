package model

import "time"

// Transaction statuses.  WAITING_PAYMENT, WAITING_ADMIN and DONE are
// seat-holding statuses: while a transaction sits in one of them its
// reserved seats are not returned to inventory.  The remaining four
// are terminal.
const (
	StatusWaitingPayment = "WAITING_PAYMENT"
	StatusWaitingAdmin   = "WAITING_ADMIN"
	StatusDone           = "DONE"
	StatusRejected       = "REJECTED"
	StatusExpired        = "EXPIRED"
	StatusCanceled       = "CANCELED"
)

// IsTerminalStatus reports whether s is one of the four terminal
// transaction statuses.  Transactions are never hard-deleted; a
// terminal status records their final disposition.
func IsTerminalStatus(s string) bool {
	switch s {
	case StatusDone, StatusRejected, StatusExpired, StatusCanceled:
		return true
	}
	return false
}

// Transaction records a ticket purchase and its position in the
// payment-verification lifecycle.  TotalPrice is the pre-discount sum;
// FinalPrice is always re-derivable from TotalPrice, the recorded
// discount sources and PointsUsed, and is never mutated after
// creation.
//
// Fields:
//
//	ID           – primary key identifier.
//	UserID       – purchasing customer.
//	EventID      – event the tickets belong to.
//	TotalPrice   – price * quantity before any discount.
//	FinalPrice   – amount due after voucher, coupon and points (>= 0).
//	PointsUsed   – points actually redeemed for this purchase (>= 0).
//	VoucherID    – voucher applied at creation (null when none).
//	CouponID     – coupon applied at creation (null when none).
//	Status       – lifecycle status, see the Status* constants.
//	PaymentProof – opaque URL of the uploaded payment proof (null until
//	               submitted).
//	ExpiresAt    – payment deadline, creation time + 2 hours.
//	CreatedAt    – timestamp of creation.
//	UpdatedAt    – timestamp of the last status change.
type Transaction struct {
	ID           uint64    // transactions.id
	UserID       uint64    // transactions.user_id
	EventID      uint64    // transactions.event_id
	TotalPrice   int64     // transactions.total_price
	FinalPrice   int64     // transactions.final_price
	PointsUsed   int64     // transactions.points_used
	VoucherID    *uint64   // transactions.voucher_id (nullable)
	CouponID     *uint64   // transactions.coupon_id (nullable)
	Status       string    // transactions.status
	PaymentProof *string   // transactions.payment_proof (nullable)
	ExpiresAt    time.Time // transactions.expires_at
	CreatedAt    time.Time // transactions.created_at
	UpdatedAt    time.Time // transactions.updated_at
}

// TransactionItem is a line item of a transaction.  Price snapshots
// the event's unit price at the time of purchase and is immutable
// afterwards, so historical totals survive later price changes.
//
// Fields:
//
//	ID            – primary key identifier.
//	TransactionID – owning transaction.
//	Quantity      – number of tickets purchased.
//	Price         – unit price at the time of purchase.
//	CreatedAt     – timestamp of creation.
type TransactionItem struct {
	ID            uint64    // transaction_items.id
	TransactionID uint64    // transaction_items.transaction_id
	Quantity      int       // transaction_items.quantity
	Price         int64     // transaction_items.price
	CreatedAt     time.Time // transaction_items.created_at
}
