// Package handler exposes the catalog, scheduler and reservation services
// over HTTP. Handlers bind and validate the request, call one service
// operation and return either the result or the error for ErrorHandler.
package handler

import (
	"context"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/popcorn-palace/internal/model"
)

// MovieService is implemented by *service.Catalog.
type MovieService interface {
	List(ctx context.Context) ([]model.Movie, error)
	Create(ctx context.Context, m model.Movie) (*model.Movie, error)
	Update(ctx context.Context, title string, p model.MoviePatch) (*model.Movie, error)
	Delete(ctx context.Context, title string) error
}

// ShowtimeService is implemented by *service.Scheduler.
type ShowtimeService interface {
	Get(ctx context.Context, id uint64) (*model.ShowtimeDetail, error)
	Create(ctx context.Context, s model.Showtime) (*model.ShowtimeDetail, error)
	Update(ctx context.Context, id uint64, s model.Showtime) (*model.ShowtimeDetail, error)
	Delete(ctx context.Context, id uint64) error
}

// BookingService is implemented by *service.Reservations.
type BookingService interface {
	Book(ctx context.Context, showtimeID uint64, seat int, userID string) (string, error)
}

// DefaultTimeout bounds the storage work of one request when no timeout is
// configured.
const DefaultTimeout = 5 * time.Second

func requestContext(c echo.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = DefaultTimeout
	}
	return context.WithTimeout(c.Request().Context(), d)
}

// bindAndValidate decodes the JSON body into dst and runs the registered
// validator over it.
func bindAndValidate(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return badRequest("Malformed request body", err)
	}
	return c.Validate(dst)
}

func parseID(c echo.Context, what string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return 0, badRequest("Invalid "+what+" id", err)
	}
	return id, nil
}
