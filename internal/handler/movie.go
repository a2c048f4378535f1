package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/popcorn-palace/internal/model"
)

type movieRequest struct {
	Title       string   `json:"title" validate:"notblank,max=255"`
	Genre       string   `json:"genre" validate:"notblank,max=100"`
	Duration    *int     `json:"duration" validate:"required,min=0,max=2147483647"`
	Rating      *float64 `json:"rating" validate:"omitempty,min=0,max=10"`
	ReleaseYear *int     `json:"releaseYear" validate:"required,min=0,max=2147483647"`
}

// movieUpdateRequest carries only the fields to change; validation of the
// present fields is done by the catalog.
type movieUpdateRequest struct {
	Title       *string  `json:"title"`
	Genre       *string  `json:"genre"`
	Duration    *int     `json:"duration"`
	Rating      *float64 `json:"rating"`
	ReleaseYear *int     `json:"releaseYear"`
}

type movieResponse struct {
	ID          uint64   `json:"id"`
	Title       string   `json:"title"`
	Genre       string   `json:"genre"`
	Duration    int      `json:"duration"`
	Rating      *float64 `json:"rating"`
	ReleaseYear int      `json:"releaseYear"`
}

func toMovieResponse(m model.Movie) movieResponse {
	return movieResponse{
		ID:          m.ID,
		Title:       m.Title,
		Genre:       m.Genre,
		Duration:    m.Duration,
		Rating:      m.Rating,
		ReleaseYear: m.ReleaseYear,
	}
}

// MovieHandler serves /movies.
type MovieHandler struct {
	movies  MovieService
	timeout time.Duration
}

// NewMovieHandler panics when movies is nil.
func NewMovieHandler(movies MovieService, timeout time.Duration) *MovieHandler {
	if movies == nil {
		panic("nil MovieService passed to NewMovieHandler")
	}
	return &MovieHandler{movies: movies, timeout: timeout}
}

// List handles GET /movies/all.
func (h *MovieHandler) List(c echo.Context) error {
	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()
	movies, err := h.movies.List(ctx)
	if err != nil {
		return err
	}
	out := make([]movieResponse, 0, len(movies))
	for _, m := range movies {
		out = append(out, toMovieResponse(m))
	}
	return c.JSON(http.StatusOK, out)
}

// Create handles POST /movies.
func (h *MovieHandler) Create(c echo.Context) error {
	var req movieRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()
	m, err := h.movies.Create(ctx, model.Movie{
		Title:       req.Title,
		Genre:       req.Genre,
		Duration:    *req.Duration,
		Rating:      req.Rating,
		ReleaseYear: *req.ReleaseYear,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toMovieResponse(*m))
}

// Update handles POST /movies/update/:title.
func (h *MovieHandler) Update(c echo.Context) error {
	var req movieUpdateRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("Malformed request body", err)
	}
	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()
	m, err := h.movies.Update(ctx, c.Param("title"), model.MoviePatch(req))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toMovieResponse(*m))
}

// Delete handles DELETE /movies/:title.
func (h *MovieHandler) Delete(c echo.Context) error {
	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()
	if err := h.movies.Delete(ctx, c.Param("title")); err != nil {
		return err
	}
	return c.NoContent(http.StatusOK)
}
