package model

import "time"

// Coupon is a system-wide flat discount code, usable on any event by
// whoever holds the code until it expires.  The base schema carries
// no owner binding or usage counter; single-use enforcement is an
// optional configuration of the transaction service (see
// COUPON_SINGLE_USE).  Referral registration issues one coupon per
// referred user.
//
// Fields:
//
//	ID        – primary key identifier.
//	Code      – unique redemption code.
//	Discount  – flat discount in minor currency units.
//	ExpiresAt – expiry timestamp; the only validity condition.
//	CreatedAt – timestamp of creation.
type Coupon struct {
	ID        uint64    // coupons.id
	Code      string    // coupons.code
	Discount  int64     // coupons.discount
	ExpiresAt time.Time // coupons.expires_at
	CreatedAt time.Time // coupons.created_at
}
