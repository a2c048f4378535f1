package model

// Ticket is a single seat sold for a showtime. Tickets are never updated;
// they disappear only when their showtime (or its movie) is deleted.
type Ticket struct {
	ID         uint64 // surrogate key
	BookingID  string // opaque identifier returned to the customer
	ShowtimeID uint64 // showtime the seat belongs to
	SeatNumber int    // positive seat number, unique per showtime
	UserID     string // customer identifier supplied by the caller
}
