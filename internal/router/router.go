// Package router defines how HTTP routes are registered for the API.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/popcorn-palace/internal/handler"
)

// Handlers bundles everything RegisterRoutes mounts.
type Handlers struct {
	Movies    *handler.MovieHandler
	Showtimes *handler.ShowtimeHandler
	Bookings  *handler.BookingHandler
	Ready     echo.HandlerFunc // optional readiness probe
}

// Middleware wraps routes by role. Cache is applied to the reads that may be
// served from Redis; Invalidate to every write that changes them.
type Middleware struct {
	Cache      echo.MiddlewareFunc
	Invalidate echo.MiddlewareFunc
}

func (m Middleware) cache() []echo.MiddlewareFunc      { return nonNil(m.Cache) }
func (m Middleware) invalidate() []echo.MiddlewareFunc { return nonNil(m.Invalidate) }

func nonNil(mw echo.MiddlewareFunc) []echo.MiddlewareFunc {
	if mw == nil {
		return nil
	}
	return []echo.MiddlewareFunc{mw}
}

// RegisterRoutes mounts the health probes and the movie, showtime and
// booking endpoints on e.
func RegisterRoutes(e *echo.Echo, h Handlers, mw Middleware) {
	e.GET("/healthz", handler.Health)
	if h.Ready != nil {
		e.GET("/readyz", h.Ready)
	}

	movies := e.Group("/movies")
	movies.GET("/all", h.Movies.List, mw.cache()...)
	movies.POST("", h.Movies.Create, mw.invalidate()...)
	movies.POST("/update/:title", h.Movies.Update, mw.invalidate()...)
	movies.DELETE("/:title", h.Movies.Delete, mw.invalidate()...)

	showtimes := e.Group("/showtimes")
	showtimes.GET("/:id", h.Showtimes.Get, mw.cache()...)
	showtimes.POST("", h.Showtimes.Create, mw.invalidate()...)
	showtimes.POST("/update/:id", h.Showtimes.Update, mw.invalidate()...)
	showtimes.DELETE("/:id", h.Showtimes.Delete, mw.invalidate()...)

	// Bookings do not change any cached representation.
	e.POST("/bookings", h.Bookings.Book)
}
