package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/iliyamo/popcorn-palace/internal/model"
	"github.com/iliyamo/popcorn-palace/internal/queue"
	"github.com/iliyamo/popcorn-palace/internal/repository"
)

// maxBookingIDAttempts bounds how often a colliding booking id is regenerated.
const maxBookingIDAttempts = 3

const maxUserIDLen = 255

// Reservations owns the ticket records. Seat uniqueness is decided by the
// TicketStore; the pre-checks here only produce the precise error early.
type Reservations struct {
	showtimes ShowtimeStore
	tickets   TicketStore
	events    EventPublisher
	newID     func() string
}

// NewReservations constructs a Reservations service with UUID booking ids.
// It panics when a store is nil.
func NewReservations(showtimes ShowtimeStore, tickets TicketStore, events EventPublisher) *Reservations {
	if showtimes == nil || tickets == nil {
		panic("service: nil store passed to NewReservations")
	}
	return &Reservations{showtimes: showtimes, tickets: tickets, events: events, newID: uuid.NewString}
}

// Book sells the seat of the showtime to userID and returns the booking id.
func (r *Reservations) Book(ctx context.Context, showtimeID uint64, seat int, userID string) (string, error) {
	switch {
	case seat <= 0:
		return "", newError(ValidationError, "Seat number must be positive")
	case seat > math.MaxInt32:
		return "", newError(ValidationError, "Seat number is too large")
	case strings.TrimSpace(userID) == "":
		return "", newError(ValidationError, "User ID is required")
	case utf8.RuneCountInString(userID) > maxUserIDLen:
		return "", newError(ValidationError, fmt.Sprintf("User ID must be at most %d characters", maxUserIDLen))
	}
	if err := r.precheck(ctx, showtimeID, seat); err != nil {
		return "", err
	}

	t := model.Ticket{ShowtimeID: showtimeID, SeatNumber: seat, UserID: userID}
	err := r.insert(ctx, &t)
	if errors.Is(err, repository.ErrSeatTaken) {
		// The constraint rejected the write. Run the pre-check once more to
		// report the exact cause; retry only if it finds nothing.
		if err := r.precheck(ctx, showtimeID, seat); err != nil {
			return "", err
		}
		err = r.insert(ctx, &t)
	}
	switch {
	case errors.Is(err, repository.ErrSeatTaken):
		return "", seatTaken(seat)
	case errors.Is(err, repository.ErrShowtimeNotFound):
		return "", bookingShowtimeNotFound(showtimeID)
	case err != nil:
		return "", internal(err)
	}

	slog.Info("ticket booked", "booking_id", t.BookingID, "showtime_id", showtimeID, "seat", seat)
	r.publish(ctx, t)
	return t.BookingID, nil
}

// precheck returns the domain error for a missing showtime or a taken seat.
func (r *Reservations) precheck(ctx context.Context, showtimeID uint64, seat int) error {
	ok, err := r.showtimes.Exists(ctx, showtimeID)
	if err != nil {
		return internal(err)
	}
	if !ok {
		return bookingShowtimeNotFound(showtimeID)
	}
	taken, err := r.tickets.SeatTaken(ctx, showtimeID, seat)
	if err != nil {
		return internal(err)
	}
	if taken {
		return seatTaken(seat)
	}
	return nil
}

// insert stores t under a fresh booking id, regenerating the id on collision.
func (r *Reservations) insert(ctx context.Context, t *model.Ticket) error {
	var err error
	for i := 0; i < maxBookingIDAttempts; i++ {
		t.BookingID = r.newID()
		err = r.tickets.Create(ctx, t)
		if !errors.Is(err, repository.ErrDuplicateBookingID) {
			return err
		}
	}
	return err
}

func (r *Reservations) publish(ctx context.Context, t model.Ticket) {
	if r.events == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	ev := queue.TicketBookedEvent{
		BookingID:  t.BookingID,
		ShowtimeID: t.ShowtimeID,
		SeatNumber: t.SeatNumber,
		UserID:     t.UserID,
		BookedAt:   time.Now().UTC().Format(time.RFC3339),
	}
	if err := r.events.TicketBooked(ctx, ev); err != nil {
		slog.Warn("publish ticket booked failed", "booking_id", t.BookingID, "error", err)
	}
}

func seatTaken(seat int) *Error {
	return newError(SeatAlreadyBooked, fmt.Sprintf("Seat %d is already booked for this showtime", seat))
}

func bookingShowtimeNotFound(id uint64) *Error {
	return newError(ShowtimeNotFound, fmt.Sprintf("Showtime not found with ID '%d'", id))
}
