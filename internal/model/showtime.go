package model

import "time"

// Showtime is a scheduled screening of a movie in a theater.
type Showtime struct {
	ID        uint64
	MovieID   uint64
	Theater   string
	StartTime time.Time
	EndTime   time.Time
	Price     float64
}

// ShowtimeDetail is a showtime joined with the title and release year of its movie.
type ShowtimeDetail struct {
	Showtime
	MovieTitle       string
	MovieReleaseYear int
}

// Length returns the scheduled window of the showtime.
func (s Showtime) Length() time.Duration {
	return s.EndTime.Sub(s.StartTime)
}

// Conflicts reports whether s and o are in the same theater and their
// windows overlap.
func (s Showtime) Conflicts(o Showtime) bool {
	return s.Theater == o.Theater && Overlaps(s.StartTime, s.EndTime, o.StartTime, o.EndTime)
}

// Overlaps reports whether the closed intervals [s1, e1] and [s2, e2] share at
// least one instant. Intervals that only touch at a boundary overlap.
func Overlaps(s1, e1, s2, e2 time.Time) bool {
	return !s1.After(e2) && !s2.After(e1)
}

// CancelledShowtime records a showtime removed by a cascade delete together
// with the bookings that went with it.
type CancelledShowtime struct {
	ShowtimeID uint64
	MovieID    uint64
	Theater    string
	BookingIDs []string
}
