// Package repository contains the SQL data access for movies, showtimes and
// tickets. Errors that callers need to tell apart are exposed as sentinel
// values; everything else is a raw driver error.
package repository

import (
	"errors"
	"fmt"

	"github.com/iliyamo/popcorn-palace/internal/model"
)

// ErrMovieNotFound is returned when no movie matches the id or title, and when
// a showtime write references a movie that no longer exists.
var ErrMovieNotFound = errors.New("movie not found")

// ErrShowtimeNotFound is returned when no showtime matches the id, and when a
// ticket insert references a showtime that no longer exists.
var ErrShowtimeNotFound = errors.New("showtime not found")

// ErrDuplicateTitle is returned when the movies title constraint rejects a write.
var ErrDuplicateTitle = errors.New("duplicate movie title")

// ErrSeatTaken is returned when the (showtime, seat) constraint rejects a ticket.
var ErrSeatTaken = errors.New("seat already booked")

// ErrDuplicateBookingID is returned when a generated booking id collides.
var ErrDuplicateBookingID = errors.New("duplicate booking id")

// ErrOverlap matches any *OverlapError through errors.Is.
var ErrOverlap = errors.New("overlapping showtime")

// Unique constraint names shared by both dialects.
const (
	constraintMovieTitle   = "uq_movies_title"
	constraintTicketSeat   = "uq_tickets_showtime_seat"
	constraintTicketBookID = "uq_tickets_booking_id"
)

// OverlapError lists the showtimes in the same theater that conflict with
// the requested window.
type OverlapError struct {
	Theater   string
	Conflicts []model.Showtime
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("%d overlapping showtime(s) in theater %q", len(e.Conflicts), e.Theater)
}

// Is makes errors.Is(err, ErrOverlap) true for an *OverlapError.
func (e *OverlapError) Is(target error) bool { return target == ErrOverlap }
