package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/popcorn-palace/internal/model"
)

type showtimeRequest struct {
	MovieID   *uint64    `json:"movieId" validate:"required"`
	Theater   string     `json:"theater" validate:"notblank,max=255"`
	StartTime *Timestamp `json:"startTime" validate:"required"`
	EndTime   *Timestamp `json:"endTime" validate:"required"`
	Price     *float64   `json:"price" validate:"required,gt=0,lte=99999999.99"`
}

// check adds the cross-field rule to the per-field validation.
func (r showtimeRequest) check(c echo.Context) error {
	err := c.Validate(r)
	fe, _ := err.(FieldErrors)
	if err != nil && fe == nil {
		return err
	}
	if r.StartTime != nil && r.EndTime != nil && r.StartTime.After(r.EndTime.Time) {
		if fe == nil {
			fe = FieldErrors{}
		}
		fe["startTimeBeforeEndTime"] = "Start time must be before end time"
	}
	if len(fe) > 0 {
		return fe
	}
	return nil
}

func (r showtimeRequest) model() model.Showtime {
	return model.Showtime{
		MovieID:   *r.MovieID,
		Theater:   r.Theater,
		StartTime: r.StartTime.Time,
		EndTime:   r.EndTime.Time,
		Price:     *r.Price,
	}
}

type showtimeResponse struct {
	ID               uint64    `json:"id"`
	MovieID          uint64    `json:"movieId"`
	Theater          string    `json:"theater"`
	StartTime        Timestamp `json:"startTime"`
	EndTime          Timestamp `json:"endTime"`
	Price            float64   `json:"price"`
	MovieTitle       string    `json:"movieTitle"`
	MovieReleaseYear int       `json:"movieReleaseYear"`
}

func toShowtimeResponse(d model.ShowtimeDetail) showtimeResponse {
	return showtimeResponse{
		ID:               d.ID,
		MovieID:          d.MovieID,
		Theater:          d.Theater,
		StartTime:        Timestamp{d.StartTime},
		EndTime:          Timestamp{d.EndTime},
		Price:            d.Price,
		MovieTitle:       d.MovieTitle,
		MovieReleaseYear: d.MovieReleaseYear,
	}
}

// ShowtimeHandler serves /showtimes.
type ShowtimeHandler struct {
	showtimes ShowtimeService
	timeout   time.Duration
}

// NewShowtimeHandler panics when showtimes is nil.
func NewShowtimeHandler(showtimes ShowtimeService, timeout time.Duration) *ShowtimeHandler {
	if showtimes == nil {
		panic("nil ShowtimeService passed to NewShowtimeHandler")
	}
	return &ShowtimeHandler{showtimes: showtimes, timeout: timeout}
}

// Get handles GET /showtimes/:id.
func (h *ShowtimeHandler) Get(c echo.Context) error {
	id, err := parseID(c, "showtime")
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()
	d, err := h.showtimes.Get(ctx, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toShowtimeResponse(*d))
}

// Create handles POST /showtimes.
func (h *ShowtimeHandler) Create(c echo.Context) error {
	var req showtimeRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("Malformed request body", err)
	}
	if err := req.check(c); err != nil {
		return err
	}
	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()
	d, err := h.showtimes.Create(ctx, req.model())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toShowtimeResponse(*d))
}

// Update handles POST /showtimes/update/:id. The body replaces the showtime.
func (h *ShowtimeHandler) Update(c echo.Context) error {
	id, err := parseID(c, "showtime")
	if err != nil {
		return err
	}
	var req showtimeRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("Malformed request body", err)
	}
	if err := req.check(c); err != nil {
		return err
	}
	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()
	d, err := h.showtimes.Update(ctx, id, req.model())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toShowtimeResponse(*d))
}

// Delete handles DELETE /showtimes/:id.
func (h *ShowtimeHandler) Delete(c echo.Context) error {
	id, err := parseID(c, "showtime")
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()
	if err := h.showtimes.Delete(ctx, id); err != nil {
		return err
	}
	return c.NoContent(http.StatusOK)
}
