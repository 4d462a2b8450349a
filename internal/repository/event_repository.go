package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/ticketon/backend/internal/model"
)

// EventRepo provides CRUD operations for events and owns every
// mutation of the seat_left counter.  Inventory adjustments happen
// exclusively through ReserveSeatsTx and ReleaseSeatsTx so that the
// availability guard and the decrement are one atomic statement
// executed inside the same transaction as the purchase record they
// accompany.  All timestamp fields are stored in UTC.
type EventRepo struct {
	db *sql.DB
}

// NewEventRepo returns a new EventRepo bound to the given database.
func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

// DB exposes the underlying handle so callers can open transactions
// spanning multiple repositories.
func (r *EventRepo) DB() *sql.DB { return r.db }

const eventColumns = `id, organizer_id, title, description, location, price,
    seat_total, seat_left, start_date, end_date, deleted_at, created_at, updated_at`

func scanEvent(row interface{ Scan(...interface{}) error }) (*model.Event, error) {
	var ev model.Event
	var deletedAt sql.NullTime
	if err := row.Scan(
		&ev.ID, &ev.OrganizerID, &ev.Title, &ev.Description, &ev.Location, &ev.Price,
		&ev.SeatTotal, &ev.SeatLeft, &ev.StartDate, &ev.EndDate, &deletedAt,
		&ev.CreatedAt, &ev.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if deletedAt.Valid {
		t := deletedAt.Time
		ev.DeletedAt = &t
	}
	return &ev, nil
}

// Create inserts a new event and populates the generated ID on the
// provided model.  seat_left starts equal to seat_total.
func (r *EventRepo) Create(ctx context.Context, ev *model.Event, now time.Time) error {
	const q = `INSERT INTO events
        (organizer_id, title, description, location, price, seat_total, seat_left,
         start_date, end_date, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q,
		ev.OrganizerID, ev.Title, ev.Description, ev.Location, ev.Price,
		ev.SeatTotal, ev.SeatTotal, ev.StartDate.UTC(), ev.EndDate.UTC(),
		now.UTC(), now.UTC())
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	ev.ID = uint64(id)
	ev.SeatLeft = ev.SeatTotal
	ev.CreatedAt = now.UTC()
	ev.UpdatedAt = now.UTC()
	return nil
}

// GetByID returns a single event that has not been soft-deleted.
// ErrEventNotFound is returned when no such event exists.
func (r *EventRepo) GetByID(ctx context.Context, id uint64) (*model.Event, error) {
	const q = `SELECT ` + eventColumns + ` FROM events WHERE id = ? AND deleted_at IS NULL`
	ev, err := scanEvent(r.db.QueryRowContext(ctx, q, id))
	if err == sql.ErrNoRows {
		return nil, ErrEventNotFound
	}
	return ev, err
}

// GetByIDTx is GetByID executed inside an existing transaction.  The
// soft-delete predicate applies here as well: a deleted event cannot
// accept new purchases even though historical transactions keep
// referencing it.
func (r *EventRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Event, error) {
	const q = `SELECT ` + eventColumns + ` FROM events WHERE id = ? AND deleted_at IS NULL`
	ev, err := scanEvent(tx.QueryRowContext(ctx, q, id))
	if err == sql.ErrNoRows {
		return nil, ErrEventNotFound
	}
	return ev, err
}

// List returns all visible (non-deleted) events, newest first.
func (r *EventRepo) List(ctx context.Context) ([]model.Event, error) {
	const q = `SELECT ` + eventColumns + ` FROM events WHERE deleted_at IS NULL ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	events := make([]model.Event, 0)
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *ev)
	}
	return events, rows.Err()
}

// ListByOrganizer returns the organizer's visible events, newest first.
func (r *EventRepo) ListByOrganizer(ctx context.Context, organizerID uint64) ([]model.Event, error) {
	const q = `SELECT ` + eventColumns + ` FROM events
               WHERE organizer_id = ? AND deleted_at IS NULL ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, q, organizerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	events := make([]model.Event, 0)
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *ev)
	}
	return events, rows.Err()
}

// OrganizerIDTx resolves an event's organizer inside an existing
// transaction.  Unlike the read paths it looks past soft-deletion:
// transactions against a deleted event must stay actionable by their
// organizer.
func (r *EventRepo) OrganizerIDTx(ctx context.Context, tx *sql.Tx, eventID uint64) (uint64, error) {
	var organizerID uint64
	err := tx.QueryRowContext(ctx,
		`SELECT organizer_id FROM events WHERE id = ?`, eventID).Scan(&organizerID)
	if err == sql.ErrNoRows {
		return 0, ErrEventNotFound
	}
	return organizerID, err
}

// ReserveSeatsTx atomically decrements seat_left by quantity.  The
// availability check lives in the WHERE clause of the same UPDATE, so
// two concurrent purchases racing for the last seats are serialized
// by the row lock: one succeeds, the other observes the updated count
// and fails with ErrInsufficientSeats.  No rows affected can also
// mean the event is gone; callers that need to distinguish should
// load the event first within the same transaction.
func (r *EventRepo) ReserveSeatsTx(ctx context.Context, tx *sql.Tx, eventID uint64, quantity int) error {
	const q = `UPDATE events
               SET seat_left = seat_left - ?
               WHERE id = ? AND deleted_at IS NULL AND seat_left >= ?`
	res, err := tx.ExecContext(ctx, q, quantity, eventID, quantity)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrInsufficientSeats
	}
	return nil
}

// ReleaseSeatsTx atomically returns quantity seats to the event,
// capped at seat_total.  The cap is a safety net only: which
// transitions may release seats is constrained to at-most-once per
// transaction by the state machine's status guards, so the cap should
// never actually bind.
func (r *EventRepo) ReleaseSeatsTx(ctx context.Context, tx *sql.Tx, eventID uint64, quantity int) error {
	const q = `UPDATE events
               SET seat_left = CASE WHEN seat_left + ? > seat_total THEN seat_total ELSE seat_left + ? END
               WHERE id = ?`
	_, err := tx.ExecContext(ctx, q, quantity, quantity, eventID)
	return err
}

// Update modifies the mutable fields of an event after verifying
// ownership.  It returns ErrEventNotFound when the event does not
// exist and ErrForbidden when it belongs to another organizer.
func (r *EventRepo) Update(ctx context.Context, ev *model.Event, organizerID uint64, now time.Time) error {
	var actual uint64
	err := r.db.QueryRowContext(ctx,
		`SELECT organizer_id FROM events WHERE id = ? AND deleted_at IS NULL`, ev.ID).Scan(&actual)
	if err == sql.ErrNoRows {
		return ErrEventNotFound
	}
	if err != nil {
		return err
	}
	if actual != organizerID {
		return ErrForbidden
	}
	const q = `UPDATE events
               SET title = ?, description = ?, location = ?, price = ?, start_date = ?, end_date = ?, updated_at = ?
               WHERE id = ?`
	_, err = r.db.ExecContext(ctx, q,
		ev.Title, ev.Description, ev.Location, ev.Price,
		ev.StartDate.UTC(), ev.EndDate.UTC(), now.UTC(), ev.ID)
	return err
}

// SoftDelete marks an event deleted without destroying the row, so
// historical transactions keep a valid reference.  Ownership is
// verified the same way as Update.
func (r *EventRepo) SoftDelete(ctx context.Context, eventID, organizerID uint64, now time.Time) error {
	var actual uint64
	err := r.db.QueryRowContext(ctx,
		`SELECT organizer_id FROM events WHERE id = ? AND deleted_at IS NULL`, eventID).Scan(&actual)
	if err == sql.ErrNoRows {
		return ErrEventNotFound
	}
	if err != nil {
		return err
	}
	if actual != organizerID {
		return ErrForbidden
	}
	_, err = r.db.ExecContext(ctx,
		`UPDATE events SET deleted_at = ?, updated_at = ? WHERE id = ?`,
		now.UTC(), now.UTC(), eventID)
	return err
}
