package model

import "time"

// Event is a published event with a fixed ticket inventory.  Prices
// are stored in minor currency units (no fractional values).  The
// seat counters obey 0 <= SeatLeft <= SeatTotal on every mutation;
// SeatLeft is only ever changed through the guarded reserve/release
// statements in the event repository, inside the same database
// transaction as the purchase record they accompany.
//
// Fields:
//
//	ID          – primary key identifier.
//	OrganizerID – user who owns this event.
//	Title       – event title shown to customers.
//	Description – free-form description.
//	Location    – city or venue name.
//	Price       – ticket price per seat in minor currency units.
//	SeatTotal   – total inventory when the event was published.
//	SeatLeft    – seats still available for purchase.
//	StartDate   – when the event starts.
//	EndDate     – when the event ends.
//	DeletedAt   – soft-delete marker; deleted events stay referenceable
//	              by historical transactions but are hidden from reads.
//	CreatedAt   – timestamp of creation.
//	UpdatedAt   – timestamp of last update.
type Event struct {
	ID          uint64     // events.id
	OrganizerID uint64     // events.organizer_id
	Title       string     // events.title
	Description string     // events.description
	Location    string     // events.location
	Price       int64      // events.price
	SeatTotal   int        // events.seat_total
	SeatLeft    int        // events.seat_left
	StartDate   time.Time  // events.start_date
	EndDate     time.Time  // events.end_date
	DeletedAt   *time.Time // events.deleted_at (nullable)
	CreatedAt   time.Time  // events.created_at
	UpdatedAt   time.Time  // events.updated_at
}
