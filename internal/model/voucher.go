package model

import "time"

// Voucher is an organizer-issued discount code bound to one event.
// Either DiscountAmount or DiscountPercent is meaningful; when both
// are set the flat amount wins.  UsedCount obeys
// 0 <= UsedCount <= MaxUsage: it is incremented atomically with the
// transaction that redeems the voucher and decremented exactly once
// if that transaction is rolled back.
//
// Fields:
//
//	ID              – primary key identifier.
//	EventID         – event this voucher applies to.
//	Code            – unique redemption code.
//	DiscountAmount  – flat discount in minor currency units (0 = unused).
//	DiscountPercent – percentage discount of the pre-discount total.
//	MaxUsage        – redemption cap.
//	UsedCount       – redemptions currently held by live or completed
//	                  transactions.
//	StartDate       – beginning of the validity window.
//	EndDate         – end of the validity window.
//	CreatedAt       – timestamp of creation.
//	UpdatedAt       – timestamp of last update.
type Voucher struct {
	ID              uint64    // vouchers.id
	EventID         uint64    // vouchers.event_id
	Code            string    // vouchers.code
	DiscountAmount  int64     // vouchers.discount_amount
	DiscountPercent int64     // vouchers.discount_percent
	MaxUsage        int       // vouchers.max_usage
	UsedCount       int       // vouchers.used_count
	StartDate       time.Time // vouchers.start_date
	EndDate         time.Time // vouchers.end_date
	CreatedAt       time.Time // vouchers.created_at
	UpdatedAt       time.Time // vouchers.updated_at
}
