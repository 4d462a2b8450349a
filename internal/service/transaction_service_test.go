package service_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ticketon/backend/internal/model"
	"github.com/ticketon/backend/internal/repository"
	"github.com/ticketon/backend/internal/service"
)

// The suite runs the full lifecycle engine against an in-memory
// SQLite database.  Every statement the repositories emit is portable
// between MySQL and SQLite because timestamps are bound as parameters
// and placeholders are always `?`.
const testSchema = `
CREATE TABLE users (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL,
    email TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    role TEXT NOT NULL,
    referral_code TEXT NOT NULL UNIQUE,
    referred_by_id INTEGER,
    is_active INTEGER NOT NULL DEFAULT 1,
    created_at DATETIME NOT NULL,
    updated_at DATETIME NOT NULL
);
CREATE TABLE refresh_tokens (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id INTEGER NOT NULL,
    token_hash TEXT NOT NULL UNIQUE,
    expires_at DATETIME NOT NULL,
    revoked_at DATETIME,
    created_at DATETIME NOT NULL
);
CREATE TABLE events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    organizer_id INTEGER NOT NULL,
    title TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    location TEXT NOT NULL DEFAULT '',
    price INTEGER NOT NULL,
    seat_total INTEGER NOT NULL,
    seat_left INTEGER NOT NULL,
    start_date DATETIME NOT NULL,
    end_date DATETIME NOT NULL,
    deleted_at DATETIME,
    created_at DATETIME NOT NULL,
    updated_at DATETIME NOT NULL
);
CREATE TABLE vouchers (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    event_id INTEGER NOT NULL,
    code TEXT NOT NULL UNIQUE,
    discount_amount INTEGER NOT NULL DEFAULT 0,
    discount_percent INTEGER NOT NULL DEFAULT 0,
    max_usage INTEGER NOT NULL,
    used_count INTEGER NOT NULL DEFAULT 0,
    start_date DATETIME NOT NULL,
    end_date DATETIME NOT NULL,
    created_at DATETIME NOT NULL,
    updated_at DATETIME NOT NULL
);
CREATE TABLE coupons (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    code TEXT NOT NULL UNIQUE,
    discount INTEGER NOT NULL,
    expires_at DATETIME NOT NULL,
    created_at DATETIME NOT NULL
);
CREATE TABLE points (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id INTEGER NOT NULL,
    amount INTEGER NOT NULL,
    expires_at DATETIME NOT NULL,
    created_at DATETIME NOT NULL
);
CREATE TABLE transactions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id INTEGER NOT NULL,
    event_id INTEGER NOT NULL,
    total_price INTEGER NOT NULL,
    final_price INTEGER NOT NULL,
    points_used INTEGER NOT NULL DEFAULT 0,
    voucher_id INTEGER,
    coupon_id INTEGER,
    status TEXT NOT NULL,
    payment_proof TEXT,
    expires_at DATETIME NOT NULL,
    created_at DATETIME NOT NULL,
    updated_at DATETIME NOT NULL
);
CREATE TABLE transaction_items (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    transaction_id INTEGER NOT NULL,
    quantity INTEGER NOT NULL,
    price INTEGER NOT NULL,
    created_at DATETIME NOT NULL
);
`

type recordingNotifier struct {
	sent []string
}

func (n *recordingNotifier) Send(_ context.Context, userID uint64, subject, _ string) error {
	n.sent = append(n.sent, fmt.Sprintf("%d:%s", userID, subject))
	return nil
}

type fixture struct {
	db       *sql.DB
	svc      *service.TransactionService
	events   *repository.EventRepo
	txns     *repository.TransactionRepo
	vouchers *repository.VoucherRepo
	points   *repository.PointRepo
	notifier *recordingNotifier
	now      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	// One connection only: each pooled connection would otherwise get
	// its own private in-memory database.
	db.SetMaxOpenConns(1)
	_, err = db.Exec(testSchema)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	fx := &fixture{
		db:       db,
		events:   repository.NewEventRepo(db),
		txns:     repository.NewTransactionRepo(db),
		vouchers: repository.NewVoucherRepo(db),
		points:   repository.NewPointRepo(db),
		notifier: &recordingNotifier{},
		now:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	fx.svc = service.NewTransactionService(db,
		fx.events, fx.txns, fx.vouchers, repository.NewCouponRepo(db), fx.points,
		fx.notifier, nil)
	fx.svc.Now = func() time.Time { return fx.now }
	return fx
}

func (fx *fixture) advance(d time.Duration) { fx.now = fx.now.Add(d) }

func (fx *fixture) seedUser(t *testing.T, role string) uint64 {
	t.Helper()
	res, err := fx.db.Exec(
		`INSERT INTO users (name, email, password_hash, role, referral_code, is_active, created_at, updated_at)
         VALUES (?, ?, 'x', ?, ?, 1, ?, ?)`,
		role, fmt.Sprintf("%s-%d@test.local", role, time.Now().UnixNano()),
		role, fmt.Sprintf("CODE%d", time.Now().UnixNano()), fx.now, fx.now)
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return uint64(id)
}

func (fx *fixture) seedEvent(t *testing.T, organizerID uint64, price int64, seats int) *model.Event {
	t.Helper()
	ev := &model.Event{
		OrganizerID: organizerID,
		Title:       "Test Event",
		Price:       price,
		SeatTotal:   seats,
		StartDate:   fx.now.Add(30 * 24 * time.Hour),
		EndDate:     fx.now.Add(31 * 24 * time.Hour),
	}
	require.NoError(t, fx.events.Create(context.Background(), ev, fx.now))
	return ev
}

func (fx *fixture) seedVoucher(t *testing.T, organizerID, eventID uint64, percent int64, maxUsage int) *model.Voucher {
	t.Helper()
	v := &model.Voucher{
		EventID:         eventID,
		Code:            fmt.Sprintf("SAVE%d", time.Now().UnixNano()),
		DiscountPercent: percent,
		MaxUsage:        maxUsage,
		StartDate:       fx.now.Add(-time.Hour),
		EndDate:         fx.now.Add(30 * 24 * time.Hour),
	}
	require.NoError(t, fx.vouchers.Create(context.Background(), v, organizerID, fx.now))
	return v
}

func (fx *fixture) seedPoints(t *testing.T, userID uint64, amount int64, expiresIn time.Duration) {
	t.Helper()
	_, err := fx.db.Exec(
		`INSERT INTO points (user_id, amount, expires_at, created_at) VALUES (?, ?, ?, ?)`,
		userID, amount, fx.now.Add(expiresIn), fx.now)
	require.NoError(t, err)
}

func (fx *fixture) seatLeft(t *testing.T, eventID uint64) int {
	t.Helper()
	var n int
	require.NoError(t, fx.db.QueryRow(`SELECT seat_left FROM events WHERE id = ?`, eventID).Scan(&n))
	return n
}

func (fx *fixture) voucherUsed(t *testing.T, voucherID uint64) int {
	t.Helper()
	var n int
	require.NoError(t, fx.db.QueryRow(`SELECT used_count FROM vouchers WHERE id = ?`, voucherID).Scan(&n))
	return n
}

func (fx *fixture) balance(t *testing.T, userID uint64) int64 {
	t.Helper()
	b, err := fx.points.Balance(context.Background(), userID, fx.now)
	require.NoError(t, err)
	return b
}

func (fx *fixture) status(t *testing.T, id uint64) string {
	t.Helper()
	txn, err := fx.txns.GetByID(context.Background(), id)
	require.NoError(t, err)
	return txn.Status
}

func TestCreate_PricesAndReservesAtomically(t *testing.T) {
	fx := newFixture(t)
	organizer := fx.seedUser(t, model.RoleOrganizer)
	customer := fx.seedUser(t, model.RoleCustomer)
	ev := fx.seedEvent(t, organizer, 100000, 10)
	v := fx.seedVoucher(t, organizer, ev.ID, 10, 5)
	fx.seedPoints(t, customer, 20000, 30*24*time.Hour)

	txn, err := fx.svc.Create(context.Background(), customer, service.CreateTransactionInput{
		EventID:         ev.ID,
		Quantity:        2,
		VoucherCode:     v.Code,
		PointsRequested: 5000,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(200000), txn.TotalPrice)
	assert.Equal(t, int64(175000), txn.FinalPrice)
	assert.Equal(t, int64(5000), txn.PointsUsed)
	assert.Equal(t, model.StatusWaitingPayment, txn.Status)
	assert.Equal(t, fx.now.Add(service.PaymentWindow), txn.ExpiresAt)

	assert.Equal(t, 8, fx.seatLeft(t, ev.ID))
	assert.Equal(t, 1, fx.voucherUsed(t, v.ID))
	assert.Equal(t, int64(15000), fx.balance(t, customer))
}

func TestCreate_InsufficientSeatsLeavesNothingBehind(t *testing.T) {
	fx := newFixture(t)
	organizer := fx.seedUser(t, model.RoleOrganizer)
	customer := fx.seedUser(t, model.RoleCustomer)
	ev := fx.seedEvent(t, organizer, 50000, 3)

	_, err := fx.svc.Create(context.Background(), customer, service.CreateTransactionInput{
		EventID: ev.ID, Quantity: 5,
	})
	assert.ErrorIs(t, err, repository.ErrInsufficientSeats)

	assert.Equal(t, 3, fx.seatLeft(t, ev.ID))
	var count int
	require.NoError(t, fx.db.QueryRow(`SELECT COUNT(*) FROM transactions`).Scan(&count))
	assert.Zero(t, count)
}

func TestCreate_LastSeatsGoToOneBuyer(t *testing.T) {
	fx := newFixture(t)
	organizer := fx.seedUser(t, model.RoleOrganizer)
	a := fx.seedUser(t, model.RoleCustomer)
	b := fx.seedUser(t, model.RoleCustomer)
	ev := fx.seedEvent(t, organizer, 50000, 3)

	_, err := fx.svc.Create(context.Background(), a, service.CreateTransactionInput{EventID: ev.ID, Quantity: 2})
	require.NoError(t, err)

	_, err = fx.svc.Create(context.Background(), b, service.CreateTransactionInput{EventID: ev.ID, Quantity: 2})
	assert.ErrorIs(t, err, repository.ErrInsufficientSeats)
	assert.Equal(t, 1, fx.seatLeft(t, ev.ID))
}

func TestSubmitProofThenApprove(t *testing.T) {
	fx := newFixture(t)
	organizer := fx.seedUser(t, model.RoleOrganizer)
	customer := fx.seedUser(t, model.RoleCustomer)
	ev := fx.seedEvent(t, organizer, 80000, 5)

	txn, err := fx.svc.Create(context.Background(), customer, service.CreateTransactionInput{EventID: ev.ID, Quantity: 1})
	require.NoError(t, err)

	updated, err := fx.svc.SubmitProof(context.Background(), txn.ID, customer, "https://bank.example/proof.png")
	require.NoError(t, err)
	assert.Equal(t, model.StatusWaitingAdmin, updated.Status)

	require.NoError(t, fx.svc.Approve(context.Background(), txn.ID, organizer))
	assert.Equal(t, model.StatusDone, fx.status(t, txn.ID))
	// Approval never touches inventory.
	assert.Equal(t, 4, fx.seatLeft(t, ev.ID))
	assert.Equal(t, []string{fmt.Sprintf("%d:Payment approved", customer)}, fx.notifier.sent)

	// A second approval observes DONE and must refuse.
	err = fx.svc.Approve(context.Background(), txn.ID, organizer)
	assert.ErrorIs(t, err, repository.ErrInvalidState)
}

func TestCreate_ConcurrentBuyersRaceForLastSeat(t *testing.T) {
	fx := newFixture(t)
	organizer := fx.seedUser(t, model.RoleOrganizer)
	a := fx.seedUser(t, model.RoleCustomer)
	b := fx.seedUser(t, model.RoleCustomer)
	ev := fx.seedEvent(t, organizer, 50000, 1)

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for _, buyer := range []uint64{a, b} {
		wg.Add(1)
		go func(userID uint64) {
			defer wg.Done()
			_, err := fx.svc.Create(context.Background(), userID, service.CreateTransactionInput{
				EventID: ev.ID, Quantity: 1,
			})
			errs <- err
		}(buyer)
	}
	wg.Wait()
	close(errs)

	var won, lost int
	for err := range errs {
		switch {
		case err == nil:
			won++
		case errors.Is(err, repository.ErrInsufficientSeats):
			lost++
		default:
			t.Fatalf("unexpected create error: %v", err)
		}
	}
	assert.Equal(t, 1, won)
	assert.Equal(t, 1, lost)
	assert.Equal(t, 0, fx.seatLeft(t, ev.ID))
}

func TestSubmitProof_Guards(t *testing.T) {
	fx := newFixture(t)
	organizer := fx.seedUser(t, model.RoleOrganizer)
	customer := fx.seedUser(t, model.RoleCustomer)
	stranger := fx.seedUser(t, model.RoleCustomer)
	ev := fx.seedEvent(t, organizer, 80000, 5)

	txn, err := fx.svc.Create(context.Background(), customer, service.CreateTransactionInput{EventID: ev.ID, Quantity: 1})
	require.NoError(t, err)

	_, err = fx.svc.SubmitProof(context.Background(), txn.ID, stranger, "https://x/proof")
	assert.ErrorIs(t, err, repository.ErrForbidden)

	fx.advance(service.PaymentWindow + time.Minute)
	_, err = fx.svc.SubmitProof(context.Background(), txn.ID, customer, "https://x/proof")
	assert.ErrorIs(t, err, repository.ErrTransactionExpired)
	// Late proof leaves the record for the sweeper.
	assert.Equal(t, model.StatusWaitingPayment, fx.status(t, txn.ID))
}

func TestCancel_RollsBackExactlyOnce(t *testing.T) {
	fx := newFixture(t)
	organizer := fx.seedUser(t, model.RoleOrganizer)
	customer := fx.seedUser(t, model.RoleCustomer)
	ev := fx.seedEvent(t, organizer, 100000, 10)
	v := fx.seedVoucher(t, organizer, ev.ID, 10, 5)
	fx.seedPoints(t, customer, 8000, 30*24*time.Hour)

	txn, err := fx.svc.Create(context.Background(), customer, service.CreateTransactionInput{
		EventID: ev.ID, Quantity: 3, VoucherCode: v.Code, PointsRequested: 8000,
	})
	require.NoError(t, err)
	require.Equal(t, 7, fx.seatLeft(t, ev.ID))
	require.Equal(t, int64(0), fx.balance(t, customer))

	require.NoError(t, fx.svc.Cancel(context.Background(), txn.ID, customer))
	assert.Equal(t, model.StatusCanceled, fx.status(t, txn.ID))
	assert.Equal(t, 10, fx.seatLeft(t, ev.ID))
	assert.Equal(t, int64(8000), fx.balance(t, customer))
	assert.Equal(t, 0, fx.voucherUsed(t, v.ID))

	// Second cancel hits the status guard and must not release again.
	err = fx.svc.Cancel(context.Background(), txn.ID, customer)
	assert.ErrorIs(t, err, repository.ErrInvalidState)
	assert.Equal(t, 10, fx.seatLeft(t, ev.ID))
	assert.Equal(t, int64(8000), fx.balance(t, customer))
	assert.Equal(t, 0, fx.voucherUsed(t, v.ID))
}

func TestReject_OrganizerOnly(t *testing.T) {
	fx := newFixture(t)
	organizer := fx.seedUser(t, model.RoleOrganizer)
	other := fx.seedUser(t, model.RoleOrganizer)
	customer := fx.seedUser(t, model.RoleCustomer)
	ev := fx.seedEvent(t, organizer, 60000, 4)

	txn, err := fx.svc.Create(context.Background(), customer, service.CreateTransactionInput{EventID: ev.ID, Quantity: 2})
	require.NoError(t, err)
	_, err = fx.svc.SubmitProof(context.Background(), txn.ID, customer, "https://x/proof")
	require.NoError(t, err)

	err = fx.svc.Reject(context.Background(), txn.ID, other)
	assert.ErrorIs(t, err, repository.ErrForbidden)
	assert.Equal(t, model.StatusWaitingAdmin, fx.status(t, txn.ID))

	require.NoError(t, fx.svc.Reject(context.Background(), txn.ID, organizer))
	assert.Equal(t, model.StatusRejected, fx.status(t, txn.ID))
	assert.Equal(t, 4, fx.seatLeft(t, ev.ID))
	assert.Contains(t, fx.notifier.sent, fmt.Sprintf("%d:Payment rejected", customer))
}

func TestApprove_AfterEventSoftDeleted(t *testing.T) {
	fx := newFixture(t)
	organizer := fx.seedUser(t, model.RoleOrganizer)
	customer := fx.seedUser(t, model.RoleCustomer)
	ev := fx.seedEvent(t, organizer, 60000, 4)

	txn, err := fx.svc.Create(context.Background(), customer, service.CreateTransactionInput{EventID: ev.ID, Quantity: 1})
	require.NoError(t, err)
	_, err = fx.svc.SubmitProof(context.Background(), txn.ID, customer, "https://x/proof")
	require.NoError(t, err)

	// Deleting the event hides it from browse and purchase, but the
	// organizer must still be able to settle pending reviews.
	require.NoError(t, fx.events.SoftDelete(context.Background(), ev.ID, organizer, fx.now))

	require.NoError(t, fx.svc.Approve(context.Background(), txn.ID, organizer))
	assert.Equal(t, model.StatusDone, fx.status(t, txn.ID))
}

func TestExpireOne_RestoresPointsAsNewGrant(t *testing.T) {
	fx := newFixture(t)
	organizer := fx.seedUser(t, model.RoleOrganizer)
	customer := fx.seedUser(t, model.RoleCustomer)
	ev := fx.seedEvent(t, organizer, 100000, 10)
	fx.seedPoints(t, customer, 5000, 10*24*time.Hour)

	txn, err := fx.svc.Create(context.Background(), customer, service.CreateTransactionInput{
		EventID: ev.ID, Quantity: 1, PointsRequested: 5000,
	})
	require.NoError(t, err)

	// Before the deadline expiry is illegal.
	err = fx.svc.ExpireOne(context.Background(), txn.ID)
	assert.ErrorIs(t, err, repository.ErrInvalidState)

	fx.advance(service.PaymentWindow + time.Minute)
	require.NoError(t, fx.svc.ExpireOne(context.Background(), txn.ID))
	assert.Equal(t, model.StatusExpired, fx.status(t, txn.ID))
	assert.Equal(t, 10, fx.seatLeft(t, ev.ID))
	assert.Equal(t, int64(5000), fx.balance(t, customer))

	// The restored grant is a fresh row with a fresh expiry, not a
	// patch of the original.
	grants, err := fx.points.ListByUser(context.Background(), customer, fx.now)
	require.NoError(t, err)
	require.Len(t, grants, 1)
	assert.True(t, grants[0].ExpiresAt.Equal(fx.now.Add(repository.RestoredGrantTTL)))
}

func TestCancelStaleOne_Boundary(t *testing.T) {
	fx := newFixture(t)
	organizer := fx.seedUser(t, model.RoleOrganizer)
	customer := fx.seedUser(t, model.RoleCustomer)
	ev := fx.seedEvent(t, organizer, 60000, 4)

	txn, err := fx.svc.Create(context.Background(), customer, service.CreateTransactionInput{EventID: ev.ID, Quantity: 1})
	require.NoError(t, err)
	_, err = fx.svc.SubmitProof(context.Background(), txn.ID, customer, "https://x/proof")
	require.NoError(t, err)

	// At exactly the TTL the transaction is not yet stale.
	fx.advance(service.StaleAdminTTL)
	err = fx.svc.CancelStaleOne(context.Background(), txn.ID)
	assert.ErrorIs(t, err, repository.ErrInvalidState)

	fx.advance(time.Second)
	require.NoError(t, fx.svc.CancelStaleOne(context.Background(), txn.ID))
	assert.Equal(t, model.StatusCanceled, fx.status(t, txn.ID))
	assert.Equal(t, 4, fx.seatLeft(t, ev.ID))
}

func TestSweepOnce_HandlesBothPasses(t *testing.T) {
	fx := newFixture(t)
	organizer := fx.seedUser(t, model.RoleOrganizer)
	customer := fx.seedUser(t, model.RoleCustomer)
	ev := fx.seedEvent(t, organizer, 60000, 10)

	// One transaction stuck in review.
	stale, err := fx.svc.Create(context.Background(), customer, service.CreateTransactionInput{EventID: ev.ID, Quantity: 1})
	require.NoError(t, err)
	_, err = fx.svc.SubmitProof(context.Background(), stale.ID, customer, "https://x/proof")
	require.NoError(t, err)

	fx.advance(service.StaleAdminTTL + time.Hour)

	// One past its payment deadline, one fresh.
	expired, err := fx.svc.Create(context.Background(), customer, service.CreateTransactionInput{EventID: ev.ID, Quantity: 1})
	require.NoError(t, err)
	fx.advance(service.PaymentWindow + time.Minute)
	fresh, err := fx.svc.Create(context.Background(), customer, service.CreateTransactionInput{EventID: ev.ID, Quantity: 1})
	require.NoError(t, err)

	sweeper := service.NewSweeper(fx.txns, fx.svc, time.Minute, nil)
	sweeper.Now = fx.svc.Now
	swept := sweeper.SweepOnce(context.Background())

	assert.Equal(t, 2, swept)
	assert.Equal(t, model.StatusExpired, fx.status(t, expired.ID))
	assert.Equal(t, model.StatusCanceled, fx.status(t, stale.ID))
	assert.Equal(t, model.StatusWaitingPayment, fx.status(t, fresh.ID))
	assert.Equal(t, 9, fx.seatLeft(t, ev.ID))
}

func TestCreate_VoucherWindowAndEventMatch(t *testing.T) {
	fx := newFixture(t)
	organizer := fx.seedUser(t, model.RoleOrganizer)
	customer := fx.seedUser(t, model.RoleCustomer)
	ev := fx.seedEvent(t, organizer, 60000, 4)
	otherEv := fx.seedEvent(t, organizer, 60000, 4)
	v := fx.seedVoucher(t, organizer, otherEv.ID, 10, 5)

	// Voucher bound to another event.
	_, err := fx.svc.Create(context.Background(), customer, service.CreateTransactionInput{
		EventID: ev.ID, Quantity: 1, VoucherCode: v.Code,
	})
	assert.ErrorIs(t, err, repository.ErrVoucherInvalid)

	// Voucher outside its validity window.
	v2 := fx.seedVoucher(t, organizer, ev.ID, 10, 5)
	fx.advance(40 * 24 * time.Hour)
	_, err = fx.svc.Create(context.Background(), customer, service.CreateTransactionInput{
		EventID: ev.ID, Quantity: 1, VoucherCode: v2.Code,
	})
	assert.ErrorIs(t, err, repository.ErrVoucherInvalid)
}

func TestCreate_VoucherExhausted(t *testing.T) {
	fx := newFixture(t)
	organizer := fx.seedUser(t, model.RoleOrganizer)
	a := fx.seedUser(t, model.RoleCustomer)
	b := fx.seedUser(t, model.RoleCustomer)
	ev := fx.seedEvent(t, organizer, 60000, 10)
	v := fx.seedVoucher(t, organizer, ev.ID, 10, 1)

	_, err := fx.svc.Create(context.Background(), a, service.CreateTransactionInput{
		EventID: ev.ID, Quantity: 1, VoucherCode: v.Code,
	})
	require.NoError(t, err)

	_, err = fx.svc.Create(context.Background(), b, service.CreateTransactionInput{
		EventID: ev.ID, Quantity: 1, VoucherCode: v.Code,
	})
	assert.ErrorIs(t, err, repository.ErrVoucherExhausted)
	// The failed attempt must not hold a seat.
	assert.Equal(t, 9, fx.seatLeft(t, ev.ID))
}

func TestCreate_PointsClampedToBalance(t *testing.T) {
	fx := newFixture(t)
	organizer := fx.seedUser(t, model.RoleOrganizer)
	customer := fx.seedUser(t, model.RoleCustomer)
	ev := fx.seedEvent(t, organizer, 100000, 5)
	fx.seedPoints(t, customer, 3000, 30*24*time.Hour)

	txn, err := fx.svc.Create(context.Background(), customer, service.CreateTransactionInput{
		EventID: ev.ID, Quantity: 1, PointsRequested: 50000,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3000), txn.PointsUsed)
	assert.Equal(t, int64(97000), txn.FinalPrice)
	assert.Equal(t, int64(0), fx.balance(t, customer))
}

func TestCreate_ExpiredPointsDontCount(t *testing.T) {
	fx := newFixture(t)
	organizer := fx.seedUser(t, model.RoleOrganizer)
	customer := fx.seedUser(t, model.RoleCustomer)
	ev := fx.seedEvent(t, organizer, 100000, 5)
	fx.seedPoints(t, customer, 5000, -time.Hour) // already expired
	fx.seedPoints(t, customer, 2000, 30*24*time.Hour)

	txn, err := fx.svc.Create(context.Background(), customer, service.CreateTransactionInput{
		EventID: ev.ID, Quantity: 1, PointsRequested: 7000,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2000), txn.PointsUsed)
}

func TestGetForUser_OwnershipEnforced(t *testing.T) {
	fx := newFixture(t)
	organizer := fx.seedUser(t, model.RoleOrganizer)
	customer := fx.seedUser(t, model.RoleCustomer)
	stranger := fx.seedUser(t, model.RoleCustomer)
	ev := fx.seedEvent(t, organizer, 60000, 4)

	txn, err := fx.svc.Create(context.Background(), customer, service.CreateTransactionInput{EventID: ev.ID, Quantity: 2})
	require.NoError(t, err)

	got, err := fx.svc.GetForUser(context.Background(), txn.ID, customer)
	require.NoError(t, err)
	assert.Equal(t, txn.ID, got.ID)
	require.Len(t, got.Items, 1)
	assert.Equal(t, 2, got.Items[0].Quantity)

	_, err = fx.svc.GetForUser(context.Background(), txn.ID, stranger)
	assert.ErrorIs(t, err, repository.ErrForbidden)

	_, err = fx.svc.GetForUser(context.Background(), 9999, customer)
	assert.ErrorIs(t, err, repository.ErrTransactionNotFound)
}
