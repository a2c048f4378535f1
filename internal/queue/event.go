// Package queue defines message payloads exchanged over the message broker
// together with the publisher and the log consumer.
package queue

// Queue names. Each event type travels on its own durable queue.
const (
	TicketBookedQueue      = "ticket.booked"
	ShowtimeCancelledQueue = "showtime.cancelled"
)

// Reasons carried by ShowtimeCancelledEvent.
const (
	ReasonShowtimeDeleted = "showtime_deleted"
	ReasonMovieDeleted    = "movie_deleted"
)

// TicketBookedEvent is published once a ticket has been committed. It holds
// enough for downstream consumers to log or notify without reading the
// primary database.
type TicketBookedEvent struct {
	BookingID  string `json:"booking_id"`
	ShowtimeID uint64 `json:"showtime_id"`
	SeatNumber int    `json:"seat_number"`
	UserID     string `json:"user_id"`
	BookedAt   string `json:"booked_at"`
}

// ShowtimeCancelledEvent is published for every showtime removed by a delete,
// listing the bookings that were cancelled with it.
type ShowtimeCancelledEvent struct {
	ShowtimeID  uint64   `json:"showtime_id"`
	MovieID     uint64   `json:"movie_id"`
	Theater     string   `json:"theater"`
	BookingIDs  []string `json:"booking_ids"`
	Reason      string   `json:"reason"`
	CancelledAt string   `json:"cancelled_at"`
}
