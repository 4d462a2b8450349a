package model

import "time"

// Point is a single grant of loyalty points awarded at one time with
// one expiry.  A user may hold several grants; redemption consumes
// the oldest-expiring grants first, decrementing a grant to zero or
// deleting it once exhausted.  Rolling back a purchase restores the
// redeemed amount as one new grant with a fresh expiry rather than
// patching the original grants, which other purchases may have
// partially consumed in the meantime.
//
// Fields:
//
//	ID        – primary key identifier.
//	UserID    – owner of the grant.
//	Amount    – remaining points in this grant (>= 0).
//	ExpiresAt – when the grant stops being redeemable.
//	CreatedAt – timestamp of creation.
type Point struct {
	ID        uint64    // points.id
	UserID    uint64    // points.user_id
	Amount    int64     // points.amount
	ExpiresAt time.Time // points.expires_at
	CreatedAt time.Time // points.created_at
}
