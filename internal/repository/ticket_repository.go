package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/popcorn-palace/internal/database"
	"github.com/iliyamo/popcorn-palace/internal/model"
)

// TicketRepo manages persistence for tickets. Seat uniqueness is enforced by
// the uq_tickets_showtime_seat constraint; the repository only translates
// its rejections.
type TicketRepo struct {
	db *sql.DB
	d  database.Dialect
}

// NewTicketRepo constructs a TicketRepo with the given DB handle and dialect.
func NewTicketRepo(db *sql.DB, d database.Dialect) *TicketRepo {
	return &TicketRepo{db: db, d: d}
}

// SeatTaken reports whether a ticket already exists for the seat.
func (r *TicketRepo) SeatTaken(ctx context.Context, showtimeID uint64, seat int) (bool, error) {
	q := r.d.Rebind(`SELECT 1 FROM tickets WHERE showtime_id = ? AND seat_number = ? LIMIT 1`)
	var one int
	if err := r.db.QueryRowContext(ctx, q, showtimeID, seat).Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Create inserts t and assigns the generated id. Constraint rejections map to
// ErrSeatTaken, ErrDuplicateBookingID or ErrShowtimeNotFound.
func (r *TicketRepo) Create(ctx context.Context, t *model.Ticket) error {
	const q = `INSERT INTO tickets (booking_id, showtime_id, seat_number, user_id) VALUES (?, ?, ?, ?)`
	id, err := r.d.InsertID(ctx, r.db, r.d.Rebind(q), t.BookingID, t.ShowtimeID, t.SeatNumber, t.UserID)
	if err != nil {
		switch {
		case r.d.IsUniqueViolation(err, constraintTicketSeat):
			return ErrSeatTaken
		case r.d.IsUniqueViolation(err, constraintTicketBookID):
			return ErrDuplicateBookingID
		case r.d.IsForeignKeyViolation(err):
			return ErrShowtimeNotFound
		}
		return err
	}
	t.ID = id
	return nil
}
