package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/ticketon/backend/internal/model"
)

// VoucherRepo provides data access to the vouchers table.  The
// used_count column is only ever moved through IncrementUsageTx and
// DecrementUsageTx, both of which run inside the same database
// transaction as the purchase record they accompany, so the counter
// can never drift from the set of transactions referencing the
// voucher.
type VoucherRepo struct {
	db *sql.DB
}

// NewVoucherRepo returns a new VoucherRepo bound to the given database.
func NewVoucherRepo(db *sql.DB) *VoucherRepo { return &VoucherRepo{db: db} }

const voucherColumns = `id, event_id, code, discount_amount, discount_percent,
    max_usage, used_count, start_date, end_date, created_at, updated_at`

func scanVoucher(row interface{ Scan(...interface{}) error }) (*model.Voucher, error) {
	var v model.Voucher
	if err := row.Scan(
		&v.ID, &v.EventID, &v.Code, &v.DiscountAmount, &v.DiscountPercent,
		&v.MaxUsage, &v.UsedCount, &v.StartDate, &v.EndDate, &v.CreatedAt, &v.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &v, nil
}

// Create inserts a new voucher after verifying that the issuing user
// owns the event.  ErrEventNotFound and ErrForbidden are returned for
// the corresponding failures; a duplicate code surfaces as a driver
// uniqueness error containing "1062" (MySQL) or "UNIQUE" (SQLite).
func (r *VoucherRepo) Create(ctx context.Context, v *model.Voucher, organizerID uint64, now time.Time) error {
	var actual uint64
	err := r.db.QueryRowContext(ctx,
		`SELECT organizer_id FROM events WHERE id = ? AND deleted_at IS NULL`, v.EventID).Scan(&actual)
	if err == sql.ErrNoRows {
		return ErrEventNotFound
	}
	if err != nil {
		return err
	}
	if actual != organizerID {
		return ErrForbidden
	}
	const q = `INSERT INTO vouchers
        (event_id, code, discount_amount, discount_percent, max_usage, used_count,
         start_date, end_date, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, 0, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q,
		v.EventID, v.Code, v.DiscountAmount, v.DiscountPercent, v.MaxUsage,
		v.StartDate.UTC(), v.EndDate.UTC(), now.UTC(), now.UTC())
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	v.ID = uint64(id)
	return nil
}

// IsDuplicateCode reports whether err looks like a unique-constraint
// violation on the code column.
func IsDuplicateCode(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "1062") || strings.Contains(msg, "unique")
}

// GetByCodeTx loads a voucher by code inside an existing transaction.
// ErrVoucherInvalid is returned for unknown codes: callers cannot
// distinguish a missing voucher from an inapplicable one, and the
// error message should not leak which it was.
func (r *VoucherRepo) GetByCodeTx(ctx context.Context, tx *sql.Tx, code string) (*model.Voucher, error) {
	const q = `SELECT ` + voucherColumns + ` FROM vouchers WHERE code = ?`
	v, err := scanVoucher(tx.QueryRowContext(ctx, q, code))
	if err == sql.ErrNoRows {
		return nil, ErrVoucherInvalid
	}
	return v, err
}

// ListByEvent returns an event's vouchers for its organizer, newest
// first.
func (r *VoucherRepo) ListByEvent(ctx context.Context, eventID, organizerID uint64) ([]model.Voucher, error) {
	var actual uint64
	err := r.db.QueryRowContext(ctx,
		`SELECT organizer_id FROM events WHERE id = ? AND deleted_at IS NULL`, eventID).Scan(&actual)
	if err == sql.ErrNoRows {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, err
	}
	if actual != organizerID {
		return nil, ErrForbidden
	}
	const q = `SELECT ` + voucherColumns + ` FROM vouchers WHERE event_id = ? ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, q, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	vouchers := make([]model.Voucher, 0)
	for rows.Next() {
		v, err := scanVoucher(rows)
		if err != nil {
			return nil, err
		}
		vouchers = append(vouchers, *v)
	}
	return vouchers, rows.Err()
}

// IncrementUsageTx atomically increments used_count, bounded by
// max_usage.  The cap check lives in the WHERE clause of the same
// UPDATE: when the voucher is already at its cap zero rows are
// affected and ErrVoucherExhausted is returned, so two concurrent
// redemptions of the last slot cannot both pass.
func (r *VoucherRepo) IncrementUsageTx(ctx context.Context, tx *sql.Tx, voucherID uint64, now time.Time) error {
	const q = `UPDATE vouchers SET used_count = used_count + 1, updated_at = ?
               WHERE id = ? AND used_count < max_usage`
	res, err := tx.ExecContext(ctx, q, now.UTC(), voucherID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrVoucherExhausted
	}
	return nil
}

// DecrementUsageTx atomically decrements used_count, floored at zero.
// The state machine's status guards already restrict rollbacks to
// at-most-once per transaction; the floor is a safety net, not the
// primary defense.
func (r *VoucherRepo) DecrementUsageTx(ctx context.Context, tx *sql.Tx, voucherID uint64, now time.Time) error {
	const q = `UPDATE vouchers SET used_count = used_count - 1, updated_at = ?
               WHERE id = ? AND used_count > 0`
	_, err := tx.ExecContext(ctx, q, now.UTC(), voucherID)
	return err
}
