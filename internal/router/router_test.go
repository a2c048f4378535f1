package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"github.com/iliyamo/popcorn-palace/internal/handler"
	"github.com/iliyamo/popcorn-palace/internal/model"
)

type noopMovies struct{}

func (noopMovies) List(context.Context) ([]model.Movie, error) { return nil, nil }
func (noopMovies) Create(_ context.Context, m model.Movie) (*model.Movie, error) {
	return &m, nil
}
func (noopMovies) Update(_ context.Context, _ string, _ model.MoviePatch) (*model.Movie, error) {
	return &model.Movie{}, nil
}
func (noopMovies) Delete(context.Context, string) error { return nil }

type noopShowtimes struct{}

func (noopShowtimes) Get(context.Context, uint64) (*model.ShowtimeDetail, error) {
	return &model.ShowtimeDetail{}, nil
}
func (noopShowtimes) Create(context.Context, model.Showtime) (*model.ShowtimeDetail, error) {
	return &model.ShowtimeDetail{}, nil
}
func (noopShowtimes) Update(context.Context, uint64, model.Showtime) (*model.ShowtimeDetail, error) {
	return &model.ShowtimeDetail{}, nil
}
func (noopShowtimes) Delete(context.Context, uint64) error { return nil }

type noopBookings struct{}

func (noopBookings) Book(context.Context, uint64, int, string) (string, error) { return "b", nil }

func TestRegisterRoutes(t *testing.T) {
	e := echo.New()
	var cached, invalidated []string
	tag := func(dst *[]string) echo.MiddlewareFunc {
		return func(next echo.HandlerFunc) echo.HandlerFunc {
			return func(c echo.Context) error {
				*dst = append(*dst, c.Request().Method+" "+c.Path())
				return next(c)
			}
		}
	}
	RegisterRoutes(e, Handlers{
		Movies:    handler.NewMovieHandler(noopMovies{}, time.Second),
		Showtimes: handler.NewShowtimeHandler(noopShowtimes{}, time.Second),
		Bookings:  handler.NewBookingHandler(noopBookings{}, time.Second),
	}, Middleware{Cache: tag(&cached), Invalidate: tag(&invalidated)})

	routes := map[string]bool{}
	for _, r := range e.Routes() {
		routes[r.Method+" "+r.Path] = true
	}
	for _, want := range []string{
		"GET /healthz",
		"GET /movies/all",
		"POST /movies",
		"POST /movies/update/:title",
		"DELETE /movies/:title",
		"GET /showtimes/:id",
		"POST /showtimes",
		"POST /showtimes/update/:id",
		"DELETE /showtimes/:id",
		"POST /bookings",
	} {
		assert.True(t, routes[want], "missing route %s", want)
	}
	assert.False(t, routes["GET /readyz"])

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/movies/all", nil),
		httptest.NewRequest(http.MethodGet, "/showtimes/1", nil),
		httptest.NewRequest(http.MethodDelete, "/movies/Heat", nil),
		httptest.NewRequest(http.MethodDelete, "/showtimes/1", nil),
	} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	}
	assert.Equal(t, []string{"GET /movies/all", "GET /showtimes/:id"}, cached)
	assert.Equal(t, []string{"DELETE /movies/:title", "DELETE /showtimes/:id"}, invalidated)
}
