package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/ticketon/backend/internal/model"
)

// TransactionRepo provides persistence for transactions and their
// line items.  Status changes go through guarded conditional updates:
// the legal source statuses are part of the WHERE clause, so a
// transition observed from the wrong status affects zero rows and the
// caller reports ErrInvalidState without ever touching seat or reward
// state.  All timestamps are stored in UTC and written explicitly by
// the caller; the database never stamps its own clock on core rows.
type TransactionRepo struct {
	db *sql.DB
}

// NewTransactionRepo returns a new TransactionRepo bound to the given database.
func NewTransactionRepo(db *sql.DB) *TransactionRepo { return &TransactionRepo{db: db} }

const transactionColumns = `id, user_id, event_id, total_price, final_price, points_used,
    voucher_id, coupon_id, status, payment_proof, expires_at, created_at, updated_at`

func scanTransaction(row interface{ Scan(...interface{}) error }) (*model.Transaction, error) {
	var t model.Transaction
	var voucherID, couponID sql.NullInt64
	var proof sql.NullString
	if err := row.Scan(
		&t.ID, &t.UserID, &t.EventID, &t.TotalPrice, &t.FinalPrice, &t.PointsUsed,
		&voucherID, &couponID, &t.Status, &proof, &t.ExpiresAt, &t.CreatedAt, &t.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if voucherID.Valid {
		v := uint64(voucherID.Int64)
		t.VoucherID = &v
	}
	if couponID.Valid {
		c := uint64(couponID.Int64)
		t.CouponID = &c
	}
	if proof.Valid {
		p := proof.String
		t.PaymentProof = &p
	}
	return &t, nil
}

// CreateTx inserts a new transaction together with its single line
// item inside an existing transaction, populating the generated ID on
// the provided model.  The caller must commit or roll back.
func (r *TransactionRepo) CreateTx(ctx context.Context, tx *sql.Tx, t *model.Transaction, item *model.TransactionItem, now time.Time) error {
	const q = `INSERT INTO transactions
        (user_id, event_id, total_price, final_price, points_used, voucher_id, coupon_id,
         status, expires_at, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	var voucherID, couponID interface{}
	if t.VoucherID != nil {
		voucherID = *t.VoucherID
	}
	if t.CouponID != nil {
		couponID = *t.CouponID
	}
	res, err := tx.ExecContext(ctx, q,
		t.UserID, t.EventID, t.TotalPrice, t.FinalPrice, t.PointsUsed,
		voucherID, couponID, t.Status, t.ExpiresAt.UTC(), now.UTC(), now.UTC())
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	t.ID = uint64(id)
	t.CreatedAt = now.UTC()
	t.UpdatedAt = now.UTC()

	const itemQ = `INSERT INTO transaction_items (transaction_id, quantity, price, created_at)
                   VALUES (?, ?, ?, ?)`
	itemRes, err := tx.ExecContext(ctx, itemQ, t.ID, item.Quantity, item.Price, now.UTC())
	if err != nil {
		return err
	}
	itemID, err := itemRes.LastInsertId()
	if err != nil {
		return err
	}
	item.ID = uint64(itemID)
	item.TransactionID = t.ID
	return nil
}

// GetByID returns a single transaction.  ErrTransactionNotFound is
// returned when it does not exist.
func (r *TransactionRepo) GetByID(ctx context.Context, id uint64) (*model.Transaction, error) {
	const q = `SELECT ` + transactionColumns + ` FROM transactions WHERE id = ?`
	t, err := scanTransaction(r.db.QueryRowContext(ctx, q, id))
	if err == sql.ErrNoRows {
		return nil, ErrTransactionNotFound
	}
	return t, err
}

// GetByIDTx is GetByID executed inside an existing transaction.
func (r *TransactionRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Transaction, error) {
	const q = `SELECT ` + transactionColumns + ` FROM transactions WHERE id = ?`
	t, err := scanTransaction(tx.QueryRowContext(ctx, q, id))
	if err == sql.ErrNoRows {
		return nil, ErrTransactionNotFound
	}
	return t, err
}

// TotalQuantityTx sums the line-item quantities of a transaction.
// Rollback paths release exactly this many seats.
func (r *TransactionRepo) TotalQuantityTx(ctx context.Context, tx *sql.Tx, transactionID uint64) (int, error) {
	const q = `SELECT COALESCE(SUM(quantity), 0) FROM transaction_items WHERE transaction_id = ?`
	var total int
	err := tx.QueryRowContext(ctx, q, transactionID).Scan(&total)
	return total, err
}

// UpdateStatusTx moves a transaction from one of the allowed source
// statuses to the target status.  The source set is embedded in the
// WHERE clause so the transition is atomic with its own guard:
// affecting zero rows means the row was already elsewhere in the
// lifecycle and the caller must treat the transition as illegal.
// Reports whether the transition happened.
func (r *TransactionRepo) UpdateStatusTx(ctx context.Context, tx *sql.Tx, id uint64, from []string, to string, now time.Time) (bool, error) {
	placeholders := strings.Repeat("?,", len(from))
	placeholders = placeholders[:len(placeholders)-1]
	q := `UPDATE transactions SET status = ?, updated_at = ? WHERE id = ? AND status IN (` + placeholders + `)`
	args := make([]interface{}, 0, len(from)+3)
	args = append(args, to, now.UTC(), id)
	for _, s := range from {
		args = append(args, s)
	}
	res, err := tx.ExecContext(ctx, q, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// AttachProofTx records the payment proof URL and advances the
// transaction from WAITING_PAYMENT to WAITING_ADMIN in one guarded
// statement.  Reports whether the transition happened.
func (r *TransactionRepo) AttachProofTx(ctx context.Context, tx *sql.Tx, id uint64, proofURL string, now time.Time) (bool, error) {
	const q = `UPDATE transactions
               SET status = ?, payment_proof = ?, updated_at = ?
               WHERE id = ? AND status = ?`
	res, err := tx.ExecContext(ctx, q, model.StatusWaitingAdmin, proofURL, now.UTC(), id, model.StatusWaitingPayment)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ListByUser returns all transactions of a user, newest first, with
// line items attached.
func (r *TransactionRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Transaction, map[uint64][]model.TransactionItem, error) {
	const q = `SELECT ` + transactionColumns + ` FROM transactions WHERE user_id = ? ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()
	txns := make([]model.Transaction, 0)
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, nil, err
		}
		txns = append(txns, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	items, err := r.itemsFor(ctx, txns)
	if err != nil {
		return nil, nil, err
	}
	return txns, items, nil
}

// ListByOrganizer returns all transactions against the organizer's
// events, newest first, with line items attached.
func (r *TransactionRepo) ListByOrganizer(ctx context.Context, organizerID uint64) ([]model.Transaction, map[uint64][]model.TransactionItem, error) {
	const q = `SELECT t.id, t.user_id, t.event_id, t.total_price, t.final_price, t.points_used,
                      t.voucher_id, t.coupon_id, t.status, t.payment_proof, t.expires_at, t.created_at, t.updated_at
               FROM transactions t
               JOIN events e ON e.id = t.event_id
               WHERE e.organizer_id = ?
               ORDER BY t.created_at DESC`
	rows, err := r.db.QueryContext(ctx, q, organizerID)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()
	txns := make([]model.Transaction, 0)
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, nil, err
		}
		txns = append(txns, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	items, err := r.itemsFor(ctx, txns)
	if err != nil {
		return nil, nil, err
	}
	return txns, items, nil
}

// itemsFor loads line items for a batch of transactions in one query.
func (r *TransactionRepo) itemsFor(ctx context.Context, txns []model.Transaction) (map[uint64][]model.TransactionItem, error) {
	items := make(map[uint64][]model.TransactionItem, len(txns))
	if len(txns) == 0 {
		return items, nil
	}
	ids := make([]interface{}, 0, len(txns))
	placeholders := make([]string, 0, len(txns))
	for _, t := range txns {
		ids = append(ids, t.ID)
		placeholders = append(placeholders, "?")
	}
	q := `SELECT id, transaction_id, quantity, price, created_at FROM transaction_items
          WHERE transaction_id IN (` + strings.Join(placeholders, ",") + `) ORDER BY transaction_id, id`
	rows, err := r.db.QueryContext(ctx, q, ids...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var it model.TransactionItem
		if err := rows.Scan(&it.ID, &it.TransactionID, &it.Quantity, &it.Price, &it.CreatedAt); err != nil {
			return nil, err
		}
		items[it.TransactionID] = append(items[it.TransactionID], it)
	}
	return items, rows.Err()
}

// ItemsByTransaction returns the line items of a single transaction.
func (r *TransactionRepo) ItemsByTransaction(ctx context.Context, transactionID uint64) ([]model.TransactionItem, error) {
	const q = `SELECT id, transaction_id, quantity, price, created_at FROM transaction_items
               WHERE transaction_id = ? ORDER BY id`
	rows, err := r.db.QueryContext(ctx, q, transactionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := make([]model.TransactionItem, 0)
	for rows.Next() {
		var it model.TransactionItem
		if err := rows.Scan(&it.ID, &it.TransactionID, &it.Quantity, &it.Price, &it.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// ListExpiredPayment returns IDs of WAITING_PAYMENT transactions
// whose payment deadline has passed.  The sweeper drives each one
// through the Expire transition independently.
func (r *TransactionRepo) ListExpiredPayment(ctx context.Context, now time.Time) ([]uint64, error) {
	const q = `SELECT id FROM transactions WHERE status = ? AND expires_at < ? ORDER BY id`
	return r.listIDs(ctx, q, model.StatusWaitingPayment, now.UTC())
}

// ListStaleAdmin returns IDs of WAITING_ADMIN transactions that have
// not been touched since before the cutoff.  The sweeper cancels each
// one so organizer inaction cannot lock seats forever.
func (r *TransactionRepo) ListStaleAdmin(ctx context.Context, cutoff time.Time) ([]uint64, error) {
	const q = `SELECT id FROM transactions WHERE status = ? AND updated_at < ? ORDER BY id`
	return r.listIDs(ctx, q, model.StatusWaitingAdmin, cutoff.UTC())
}

func (r *TransactionRepo) listIDs(ctx context.Context, q string, args ...interface{}) ([]uint64, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CountActiveByCouponTx counts transactions that redeemed the coupon
// and have not been rolled back.  Used only when single-use coupon
// enforcement is enabled.
func (r *TransactionRepo) CountActiveByCouponTx(ctx context.Context, tx *sql.Tx, couponID uint64) (int, error) {
	const q = `SELECT COUNT(*) FROM transactions
               WHERE coupon_id = ? AND status NOT IN (?, ?, ?)`
	var n int
	err := tx.QueryRowContext(ctx, q, couponID,
		model.StatusCanceled, model.StatusExpired, model.StatusRejected).Scan(&n)
	return n, err
}
