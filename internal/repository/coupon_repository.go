package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/ticketon/backend/internal/model"
)

// CouponRepo provides data access to the coupons table.  Coupons are
// system-wide flat discounts with expiry as their only base validity
// condition; the schema carries no usage counter, so unless the
// transaction service is configured for single-use enforcement a
// coupon stays redeemable until it expires.
type CouponRepo struct {
	db *sql.DB
}

// NewCouponRepo returns a new CouponRepo bound to the given database.
func NewCouponRepo(db *sql.DB) *CouponRepo { return &CouponRepo{db: db} }

// CreateTx inserts a coupon inside an existing transaction.  Referral
// registration uses this to issue the new user's welcome coupon in
// the same unit of work as the user row itself.
func (r *CouponRepo) CreateTx(ctx context.Context, tx *sql.Tx, c *model.Coupon, now time.Time) error {
	const q = `INSERT INTO coupons (code, discount, expires_at, created_at) VALUES (?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q, c.Code, c.Discount, c.ExpiresAt.UTC(), now.UTC())
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	c.ID = uint64(id)
	return nil
}

// GetByCodeTx loads a coupon by code inside an existing transaction.
// Unknown codes come back as ErrCouponExpired for the same reason
// voucher lookups collapse to ErrVoucherInvalid: the caller's error
// message should not reveal whether the code ever existed.
func (r *CouponRepo) GetByCodeTx(ctx context.Context, tx *sql.Tx, code string) (*model.Coupon, error) {
	const q = `SELECT id, code, discount, expires_at, created_at FROM coupons WHERE code = ?`
	var c model.Coupon
	err := tx.QueryRowContext(ctx, q, code).Scan(&c.ID, &c.Code, &c.Discount, &c.ExpiresAt, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrCouponExpired
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks a coupon code against the clock without consuming
// anything.  Customers use this to preview a discount before
// purchasing.
func (r *CouponRepo) Validate(ctx context.Context, code string, now time.Time) (*model.Coupon, error) {
	const q = `SELECT id, code, discount, expires_at, created_at FROM coupons WHERE code = ?`
	var c model.Coupon
	err := r.db.QueryRowContext(ctx, q, code).Scan(&c.ID, &c.Code, &c.Discount, &c.ExpiresAt, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrCouponExpired
	}
	if err != nil {
		return nil, err
	}
	if now.UTC().After(c.ExpiresAt) {
		return nil, ErrCouponExpired
	}
	return &c, nil
}
