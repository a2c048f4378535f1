package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

type bookingRequest struct {
	ShowtimeID *uint64 `json:"showtimeId" validate:"required"`
	SeatNumber *int    `json:"seatNumber" validate:"required,gt=0,max=2147483647"`
	UserID     string  `json:"userId" validate:"notblank,max=255"`
}

type bookingResponse struct {
	BookingID string `json:"bookingId"`
}

// BookingHandler serves /bookings.
type BookingHandler struct {
	bookings BookingService
	timeout  time.Duration
}

// NewBookingHandler panics when bookings is nil.
func NewBookingHandler(bookings BookingService, timeout time.Duration) *BookingHandler {
	if bookings == nil {
		panic("nil BookingService passed to NewBookingHandler")
	}
	return &BookingHandler{bookings: bookings, timeout: timeout}
}

// Book handles POST /bookings.
func (h *BookingHandler) Book(c echo.Context) error {
	var req bookingRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()
	id, err := h.bookings.Book(ctx, *req.ShowtimeID, *req.SeatNumber, req.UserID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, bookingResponse{BookingID: id})
}
