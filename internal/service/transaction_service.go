// Package service contains the transaction lifecycle engine: the
// state machine that takes a ticket purchase from creation through
// payment-proof submission, organizer approval or rejection,
// customer cancellation and sweeper-driven expiry, keeping seat
// inventory, point balances and voucher usage counters consistent
// with the transaction statuses that hold them.
package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ticketon/backend/internal/model"
	"github.com/ticketon/backend/internal/pricing"
	"github.com/ticketon/backend/internal/repository"
)

// PaymentWindow is how long a customer has to submit payment proof
// after creating a transaction.
const PaymentWindow = 2 * time.Hour

// StaleAdminTTL bounds how long a transaction may sit in
// WAITING_ADMIN without organizer action before the sweeper cancels
// it and returns its resources.
const StaleAdminTTL = 72 * time.Hour

// Notifier delivers a message to a user.  Implementations are
// fire-and-forget: the state machine logs delivery failures and never
// lets them block or roll back a transition.
type Notifier interface {
	Send(ctx context.Context, userID uint64, subject, body string) error
}

// CreateTransactionInput is a purchase request.  VoucherCode and
// CouponCode are optional; PointsRequested is clamped by the pricing
// calculator to the user's unexpired balance and the remaining price.
type CreateTransactionInput struct {
	EventID         uint64
	Quantity        int
	VoucherCode     string
	CouponCode      string
	PointsRequested int64
}

// TransactionWithItems bundles a transaction with its line items for
// read paths.
type TransactionWithItems struct {
	model.Transaction
	Items []model.TransactionItem
}

// Lifecycle is the surface handlers program against.  Every method
// that mutates state runs as one all-or-nothing database transaction.
type Lifecycle interface {
	Create(ctx context.Context, userID uint64, in CreateTransactionInput) (*model.Transaction, error)
	SubmitProof(ctx context.Context, id, userID uint64, proofURL string) (*model.Transaction, error)
	Approve(ctx context.Context, id, organizerID uint64) error
	Reject(ctx context.Context, id, organizerID uint64) error
	Cancel(ctx context.Context, id, userID uint64) error
	ListForUser(ctx context.Context, userID uint64) ([]TransactionWithItems, error)
	GetForUser(ctx context.Context, id, userID uint64) (*TransactionWithItems, error)
	ListForOrganizer(ctx context.Context, organizerID uint64) ([]TransactionWithItems, error)
}

// TransactionService implements Lifecycle over the relational store.
// The injected clock is authoritative for every expiry comparison and
// timestamp the service writes; tests replace it with a fixed or
// stepped time source.
type TransactionService struct {
	db       *sql.DB
	events   *repository.EventRepo
	txns     *repository.TransactionRepo
	vouchers *repository.VoucherRepo
	coupons  *repository.CouponRepo
	points   *repository.PointRepo
	notifier Notifier
	logger   *zap.Logger

	// Now supplies the current time.  Overridable in tests.
	Now func() time.Time

	// CouponSingleUse additionally rejects coupons already redeemed by
	// a transaction that has not been rolled back.  Off by default;
	// the base schema has no usage counter on coupons.
	CouponSingleUse bool
}

// NewTransactionService wires the lifecycle engine.  notifier and
// logger may be nil; a nil logger falls back to a no-op one.
func NewTransactionService(db *sql.DB, events *repository.EventRepo, txns *repository.TransactionRepo,
	vouchers *repository.VoucherRepo, coupons *repository.CouponRepo, points *repository.PointRepo,
	notifier Notifier, logger *zap.Logger) *TransactionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TransactionService{
		db:       db,
		events:   events,
		txns:     txns,
		vouchers: vouchers,
		coupons:  coupons,
		points:   points,
		notifier: notifier,
		logger:   logger,
		Now:      func() time.Time { return time.Now().UTC() },
	}
}

// Create validates a purchase, reserves its resources and persists
// the transaction in WAITING_PAYMENT, all inside one database
// transaction.  The seat-availability guard and the decrement are a
// single conditional UPDATE, so two purchases racing for the last
// seats serialize on the event row: one commits, the other fails with
// ErrInsufficientSeats and leaves nothing behind.
func (s *TransactionService) Create(ctx context.Context, userID uint64, in CreateTransactionInput) (*model.Transaction, error) {
	if in.Quantity <= 0 {
		return nil, fmt.Errorf("quantity must be positive")
	}
	now := s.Now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	event, err := s.events.GetByIDTx(ctx, tx, in.EventID)
	if err != nil {
		return nil, err
	}

	var voucher *model.Voucher
	var voucherTerms *pricing.VoucherTerms
	if in.VoucherCode != "" {
		voucher, err = s.vouchers.GetByCodeTx(ctx, tx, in.VoucherCode)
		if err != nil {
			return nil, err
		}
		if voucher.EventID != in.EventID || now.Before(voucher.StartDate) || now.After(voucher.EndDate) {
			return nil, repository.ErrVoucherInvalid
		}
		voucherTerms = &pricing.VoucherTerms{Amount: voucher.DiscountAmount, Percent: voucher.DiscountPercent}
	}

	var coupon *model.Coupon
	if in.CouponCode != "" {
		coupon, err = s.coupons.GetByCodeTx(ctx, tx, in.CouponCode)
		if err != nil {
			return nil, err
		}
		if now.After(coupon.ExpiresAt) {
			return nil, repository.ErrCouponExpired
		}
		if s.CouponSingleUse {
			used, err := s.txns.CountActiveByCouponTx(ctx, tx, coupon.ID)
			if err != nil {
				return nil, err
			}
			if used > 0 {
				return nil, repository.ErrCouponExpired
			}
		}
	}

	balance := int64(0)
	if in.PointsRequested > 0 {
		balance, err = s.points.BalanceTx(ctx, tx, userID, now)
		if err != nil {
			return nil, err
		}
	}

	quote := pricing.Calculate(pricing.Input{
		UnitPrice:       event.Price,
		Quantity:        in.Quantity,
		Voucher:         voucherTerms,
		CouponDiscount:  couponDiscount(coupon),
		PointsRequested: in.PointsRequested,
		PointsAvailable: balance,
	})

	if err := s.events.ReserveSeatsTx(ctx, tx, event.ID, in.Quantity); err != nil {
		return nil, err
	}
	if voucher != nil {
		if err := s.vouchers.IncrementUsageTx(ctx, tx, voucher.ID, now); err != nil {
			return nil, err
		}
	}
	if err := s.points.RedeemTx(ctx, tx, userID, quote.PointsUsed, now); err != nil {
		return nil, err
	}

	t := &model.Transaction{
		UserID:     userID,
		EventID:    event.ID,
		TotalPrice: quote.TotalPrice,
		FinalPrice: quote.FinalPrice,
		PointsUsed: quote.PointsUsed,
		Status:     model.StatusWaitingPayment,
		ExpiresAt:  now.Add(PaymentWindow),
	}
	if voucher != nil {
		t.VoucherID = &voucher.ID
	}
	if coupon != nil {
		t.CouponID = &coupon.ID
	}
	item := &model.TransactionItem{Quantity: in.Quantity, Price: event.Price}
	if err := s.txns.CreateTx(ctx, tx, t, item, now); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return t, nil
}

func couponDiscount(c *model.Coupon) int64 {
	if c == nil {
		return 0
	}
	return c.Discount
}

// SubmitProof attaches a payment proof URL and moves the transaction
// to WAITING_ADMIN.  Only the owning user may submit, only from
// WAITING_PAYMENT, and only before the payment deadline; a late
// submission gets ErrTransactionExpired and leaves the record for the
// sweeper.
func (s *TransactionService) SubmitProof(ctx context.Context, id, userID uint64, proofURL string) (*model.Transaction, error) {
	now := s.Now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	t, err := s.txns.GetByIDTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if t.UserID != userID {
		return nil, repository.ErrForbidden
	}
	if t.Status != model.StatusWaitingPayment {
		return nil, repository.ErrInvalidState
	}
	if now.After(t.ExpiresAt) {
		return nil, repository.ErrTransactionExpired
	}
	ok, err := s.txns.AttachProofTx(ctx, tx, id, proofURL, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, repository.ErrInvalidState
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true

	t.Status = model.StatusWaitingAdmin
	t.PaymentProof = &proofURL
	t.UpdatedAt = now
	return t, nil
}

// Approve marks a transaction DONE.  Only the event's organizer may
// approve, and only from WAITING_ADMIN.  Seats, points and voucher
// usage were committed at creation, so approval has no resource side
// effects; it only finalizes the status and notifies the customer.
func (s *TransactionService) Approve(ctx context.Context, id, organizerID uint64) error {
	now := s.Now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	t, err := s.txns.GetByIDTx(ctx, tx, id)
	if err != nil {
		return err
	}
	if err := s.requireOrganizerTx(ctx, tx, t.EventID, organizerID); err != nil {
		return err
	}
	ok, err := s.txns.UpdateStatusTx(ctx, tx, id, []string{model.StatusWaitingAdmin}, model.StatusDone, now)
	if err != nil {
		return err
	}
	if !ok {
		return repository.ErrInvalidState
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true

	s.notify(ctx, t.UserID, "Payment approved",
		fmt.Sprintf("Your payment for transaction #%d was approved. See you at the event!", t.ID))
	return nil
}

// Reject returns a WAITING_ADMIN transaction's resources and marks it
// REJECTED.  Only the event's organizer may reject.  The rollback and
// the status write are one atomic unit, and the status guard makes a
// second rollback structurally impossible.
func (s *TransactionService) Reject(ctx context.Context, id, organizerID uint64) error {
	userID, err := s.rollback(ctx, id, rollbackSpec{
		from:      []string{model.StatusWaitingAdmin},
		to:        model.StatusRejected,
		organizer: &organizerID,
	})
	if err != nil {
		return err
	}
	s.notify(ctx, userID, "Payment rejected",
		fmt.Sprintf("Your payment for transaction #%d was rejected. Seats and rewards have been returned.", id))
	return nil
}

// Cancel lets the owning user abandon a transaction from either
// pre-terminal status, with the same rollback as Reject.
func (s *TransactionService) Cancel(ctx context.Context, id, userID uint64) error {
	_, err := s.rollback(ctx, id, rollbackSpec{
		from:  []string{model.StatusWaitingPayment, model.StatusWaitingAdmin},
		to:    model.StatusCanceled,
		owner: &userID,
	})
	return err
}

// ExpireOne drives a WAITING_PAYMENT transaction whose deadline has
// passed through the Expire rollback.  Sweeper-only.
func (s *TransactionService) ExpireOne(ctx context.Context, id uint64) error {
	now := s.Now()
	_, err := s.rollback(ctx, id, rollbackSpec{
		from:     []string{model.StatusWaitingPayment},
		to:       model.StatusExpired,
		deadline: func(t *model.Transaction) bool { return now.After(t.ExpiresAt) },
	})
	return err
}

// CancelStaleOne cancels a WAITING_ADMIN transaction untouched for
// longer than StaleAdminTTL, so organizer inaction cannot lock seats
// forever.  Sweeper-only.
func (s *TransactionService) CancelStaleOne(ctx context.Context, id uint64) error {
	now := s.Now()
	_, err := s.rollback(ctx, id, rollbackSpec{
		from:     []string{model.StatusWaitingAdmin},
		to:       model.StatusCanceled,
		deadline: func(t *model.Transaction) bool { return t.UpdatedAt.Before(now.Add(-StaleAdminTTL)) },
	})
	return err
}

// rollbackSpec parameterizes the shared rollback path.  Exactly one
// of owner/organizer is set for actor-initiated transitions; deadline
// gates the sweeper-initiated ones.
type rollbackSpec struct {
	from      []string
	to        string
	owner     *uint64
	organizer *uint64
	deadline  func(*model.Transaction) bool
}

// rollback releases the transaction's seats, restores its points as a
// fresh grant and decrements its voucher usage, atomically with the
// guarded status write.  The conditional status update runs first: if
// the row is not in one of the allowed source statuses, zero rows are
// affected, ErrInvalidState is returned and none of the resource
// writes happen.  Returns the owning user's ID for notification.
func (s *TransactionService) rollback(ctx context.Context, id uint64, spec rollbackSpec) (uint64, error) {
	now := s.Now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	t, err := s.txns.GetByIDTx(ctx, tx, id)
	if err != nil {
		return 0, err
	}
	if spec.owner != nil && t.UserID != *spec.owner {
		return 0, repository.ErrForbidden
	}
	if spec.organizer != nil {
		if err := s.requireOrganizerTx(ctx, tx, t.EventID, *spec.organizer); err != nil {
			return 0, err
		}
	}
	if spec.deadline != nil && !spec.deadline(t) {
		return 0, repository.ErrInvalidState
	}

	ok, err := s.txns.UpdateStatusTx(ctx, tx, id, spec.from, spec.to, now)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, repository.ErrInvalidState
	}

	quantity, err := s.txns.TotalQuantityTx(ctx, tx, id)
	if err != nil {
		return 0, err
	}
	if err := s.events.ReleaseSeatsTx(ctx, tx, t.EventID, quantity); err != nil {
		return 0, err
	}
	if err := s.points.RestoreTx(ctx, tx, t.UserID, t.PointsUsed, now); err != nil {
		return 0, err
	}
	if t.VoucherID != nil {
		if err := s.vouchers.DecrementUsageTx(ctx, tx, *t.VoucherID, now); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	committed = true
	return t.UserID, nil
}

// requireOrganizerTx checks that organizerID owns the event.  The
// lookup deliberately sees soft-deleted events, so transactions on a
// deleted event stay actionable by their organizer.
func (s *TransactionService) requireOrganizerTx(ctx context.Context, tx *sql.Tx, eventID, organizerID uint64) error {
	actual, err := s.events.OrganizerIDTx(ctx, tx, eventID)
	if err != nil {
		return err
	}
	if actual != organizerID {
		return repository.ErrForbidden
	}
	return nil
}

// notify delivers fire-and-forget; failures are logged, never
// propagated.
func (s *TransactionService) notify(ctx context.Context, userID uint64, subject, body string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Send(ctx, userID, subject, body); err != nil {
		s.logger.Warn("notification failed",
			zap.Uint64("user_id", userID),
			zap.String("subject", subject),
			zap.Error(err))
	}
}

// ListForUser returns the user's transactions with line items, newest
// first.
func (s *TransactionService) ListForUser(ctx context.Context, userID uint64) ([]TransactionWithItems, error) {
	txns, items, err := s.txns.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return withItems(txns, items), nil
}

// GetForUser returns one transaction for its owner.  ErrForbidden is
// returned when the transaction belongs to someone else.
func (s *TransactionService) GetForUser(ctx context.Context, id, userID uint64) (*TransactionWithItems, error) {
	t, err := s.txns.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.UserID != userID {
		return nil, repository.ErrForbidden
	}
	items, err := s.txns.ItemsByTransaction(ctx, id)
	if err != nil {
		return nil, err
	}
	return &TransactionWithItems{Transaction: *t, Items: items}, nil
}

// ListForOrganizer returns transactions against the organizer's
// events with line items, newest first.
func (s *TransactionService) ListForOrganizer(ctx context.Context, organizerID uint64) ([]TransactionWithItems, error) {
	txns, items, err := s.txns.ListByOrganizer(ctx, organizerID)
	if err != nil {
		return nil, err
	}
	return withItems(txns, items), nil
}

func withItems(txns []model.Transaction, items map[uint64][]model.TransactionItem) []TransactionWithItems {
	out := make([]TransactionWithItems, 0, len(txns))
	for _, t := range txns {
		out = append(out, TransactionWithItems{Transaction: t, Items: items[t.ID]})
	}
	return out
}
