package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/ticketon/backend/internal/model"
)

// RestoredGrantTTL is how long a grant created by rolling back a
// purchase stays redeemable.  A fixed number of days sidesteps
// calendar-month arithmetic edge cases such as restoring on Jan 31.
const RestoredGrantTTL = 90 * 24 * time.Hour

// PointRepo provides data access to the points table.  Each row is
// one grant; a user's balance is the sum of their unexpired grants.
// Redemption consumes oldest-expiring grants first so the points most
// at risk of being wasted are spent before longer-lived ones.
type PointRepo struct {
	db *sql.DB
}

// NewPointRepo returns a new PointRepo bound to the given database.
func NewPointRepo(db *sql.DB) *PointRepo { return &PointRepo{db: db} }

// GrantDeduction describes how much to take from one grant when
// redeeming points.  Exhausted reports whether the grant should be
// deleted rather than decremented.
type GrantDeduction struct {
	GrantID   uint64
	Amount    int64
	Exhausted bool
}

// PlanRedemption walks grants in the order given (callers supply them
// sorted by ascending expiry) and greedily assigns deductions until
// amount is covered.  It returns ErrInsufficientPoints when the
// grants cannot cover the amount.  Pure function; the transactional
// write happens in RedeemTx.
func PlanRedemption(grants []model.Point, amount int64) ([]GrantDeduction, error) {
	remaining := amount
	plan := make([]GrantDeduction, 0, len(grants))
	for _, g := range grants {
		if remaining <= 0 {
			break
		}
		if g.Amount <= remaining {
			plan = append(plan, GrantDeduction{GrantID: g.ID, Amount: g.Amount, Exhausted: true})
			remaining -= g.Amount
		} else {
			plan = append(plan, GrantDeduction{GrantID: g.ID, Amount: remaining})
			remaining = 0
		}
	}
	if remaining > 0 {
		return nil, ErrInsufficientPoints
	}
	return plan, nil
}

// unexpiredTx loads a user's unexpired grants ordered by ascending
// expiry, inside an existing transaction.
func (r *PointRepo) unexpiredTx(ctx context.Context, tx *sql.Tx, userID uint64, now time.Time) ([]model.Point, error) {
	const q = `SELECT id, user_id, amount, expires_at, created_at FROM points
               WHERE user_id = ? AND expires_at > ? ORDER BY expires_at ASC, id ASC`
	rows, err := tx.QueryContext(ctx, q, userID, now.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var grants []model.Point
	for rows.Next() {
		var p model.Point
		if err := rows.Scan(&p.ID, &p.UserID, &p.Amount, &p.ExpiresAt, &p.CreatedAt); err != nil {
			return nil, err
		}
		grants = append(grants, p)
	}
	return grants, rows.Err()
}

// BalanceTx returns the user's unexpired point balance inside an
// existing transaction.  The pricing calculator clamps the applied
// points to this value before RedeemTx is ever called.
func (r *PointRepo) BalanceTx(ctx context.Context, tx *sql.Tx, userID uint64, now time.Time) (int64, error) {
	const q = `SELECT COALESCE(SUM(amount), 0) FROM points WHERE user_id = ? AND expires_at > ?`
	var balance int64
	err := tx.QueryRowContext(ctx, q, userID, now.UTC()).Scan(&balance)
	return balance, err
}

// Balance is BalanceTx against the bare connection, for read-only
// display paths.
func (r *PointRepo) Balance(ctx context.Context, userID uint64, now time.Time) (int64, error) {
	const q = `SELECT COALESCE(SUM(amount), 0) FROM points WHERE user_id = ? AND expires_at > ?`
	var balance int64
	err := r.db.QueryRowContext(ctx, q, userID, now.UTC()).Scan(&balance)
	return balance, err
}

// RedeemTx consumes amount points from the user's unexpired grants,
// oldest expiry first, deleting grants it exhausts and decrementing
// the one it only partially consumes.  It fails with
// ErrInsufficientPoints before writing anything when the balance is
// short.  Must run in the same transaction as the purchase row that
// records the redemption.
func (r *PointRepo) RedeemTx(ctx context.Context, tx *sql.Tx, userID uint64, amount int64, now time.Time) error {
	if amount <= 0 {
		return nil
	}
	grants, err := r.unexpiredTx(ctx, tx, userID, now)
	if err != nil {
		return err
	}
	plan, err := PlanRedemption(grants, amount)
	if err != nil {
		return err
	}
	for _, d := range plan {
		if d.Exhausted {
			if _, err := tx.ExecContext(ctx, `DELETE FROM points WHERE id = ?`, d.GrantID); err != nil {
				return err
			}
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE points SET amount = amount - ? WHERE id = ?`, d.Amount, d.GrantID); err != nil {
			return err
		}
	}
	return nil
}

// RestoreTx returns previously redeemed points as one new grant
// expiring RestoredGrantTTL from now.  The original grants may have
// been partially consumed by other purchases since, so they are never
// patched back.
func (r *PointRepo) RestoreTx(ctx context.Context, tx *sql.Tx, userID uint64, amount int64, now time.Time) error {
	if amount <= 0 {
		return nil
	}
	const q = `INSERT INTO points (user_id, amount, expires_at, created_at) VALUES (?, ?, ?, ?)`
	_, err := tx.ExecContext(ctx, q, userID, amount, now.UTC().Add(RestoredGrantTTL), now.UTC())
	return err
}

// GrantTx awards a fresh grant, used by referral registration to
// reward the referrer.
func (r *PointRepo) GrantTx(ctx context.Context, tx *sql.Tx, userID uint64, amount int64, expiresAt, now time.Time) error {
	const q = `INSERT INTO points (user_id, amount, expires_at, created_at) VALUES (?, ?, ?, ?)`
	_, err := tx.ExecContext(ctx, q, userID, amount, expiresAt.UTC(), now.UTC())
	return err
}

// ListByUser returns a user's unexpired grants ordered by ascending
// expiry, for display.
func (r *PointRepo) ListByUser(ctx context.Context, userID uint64, now time.Time) ([]model.Point, error) {
	const q = `SELECT id, user_id, amount, expires_at, created_at FROM points
               WHERE user_id = ? AND expires_at > ? ORDER BY expires_at ASC, id ASC`
	rows, err := r.db.QueryContext(ctx, q, userID, now.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	grants := make([]model.Point, 0)
	for rows.Next() {
		var p model.Point
		if err := rows.Scan(&p.ID, &p.UserID, &p.Amount, &p.ExpiresAt, &p.CreatedAt); err != nil {
			return nil, err
		}
		grants = append(grants, p)
	}
	return grants, rows.Err()
}
