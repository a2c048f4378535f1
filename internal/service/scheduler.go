package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/iliyamo/popcorn-palace/internal/model"
	"github.com/iliyamo/popcorn-palace/internal/queue"
	"github.com/iliyamo/popcorn-palace/internal/repository"
)

const timeLayout = "2006-01-02T15:04:05"

// Column limits of the showtimes table.
const (
	maxTheaterLen = 255
	maxPrice      = 99999999.99
	timePrecision = time.Microsecond
)

// Scheduler owns the showtime records. It relies on the ShowtimeStore to run
// the overlap check and the write as one atomic step per theater.
type Scheduler struct {
	movies    MovieStore
	showtimes ShowtimeStore
	events    EventPublisher
}

// NewScheduler constructs a Scheduler. It panics when a store is nil.
func NewScheduler(movies MovieStore, showtimes ShowtimeStore, events EventPublisher) *Scheduler {
	if movies == nil || showtimes == nil {
		panic("service: nil store passed to NewScheduler")
	}
	return &Scheduler{movies: movies, showtimes: showtimes, events: events}
}

// Get returns the showtime with its movie's title and release year.
func (s *Scheduler) Get(ctx context.Context, id uint64) (*model.ShowtimeDetail, error) {
	d, err := s.showtimes.GetDetail(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrShowtimeNotFound) {
			return nil, showtimeNotFound(id)
		}
		return nil, internal(err)
	}
	return d, nil
}

// Create schedules a new showtime.
func (s *Scheduler) Create(ctx context.Context, st model.Showtime) (*model.ShowtimeDetail, error) {
	if err := normalizeShowtime(&st); err != nil {
		return nil, err
	}
	movie, err := s.movie(ctx, st.MovieID)
	if err != nil {
		return nil, err
	}
	if err := checkDuration(st, movie); err != nil {
		return nil, err
	}

	st.ID = 0
	if err := s.showtimes.Create(ctx, &st); err != nil {
		return nil, s.writeError(err, st)
	}
	slog.Info("showtime created", "showtime_id", st.ID, "theater", st.Theater, "movie_id", st.MovieID)
	return &model.ShowtimeDetail{Showtime: st, MovieTitle: movie.Title, MovieReleaseYear: movie.ReleaseYear}, nil
}

// Update replaces every field of the showtime with the given id. The
// showtime never conflicts with itself.
func (s *Scheduler) Update(ctx context.Context, id uint64, st model.Showtime) (*model.ShowtimeDetail, error) {
	if err := normalizeShowtime(&st); err != nil {
		return nil, err
	}
	ok, err := s.showtimes.Exists(ctx, id)
	if err != nil {
		return nil, internal(err)
	}
	if !ok {
		return nil, showtimeNotFound(id)
	}
	movie, err := s.movie(ctx, st.MovieID)
	if err != nil {
		return nil, err
	}
	if err := checkDuration(st, movie); err != nil {
		return nil, err
	}

	st.ID = id
	if err := s.showtimes.Update(ctx, &st); err != nil {
		return nil, s.writeError(err, st)
	}
	return &model.ShowtimeDetail{Showtime: st, MovieTitle: movie.Title, MovieReleaseYear: movie.ReleaseYear}, nil
}

// Delete removes the showtime and all of its tickets.
func (s *Scheduler) Delete(ctx context.Context, id uint64) error {
	c, err := s.showtimes.DeleteCascade(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrShowtimeNotFound) {
			return newErrorDetails(ShowtimeNotFound, "showtime not found",
				fmt.Sprintf("Showtime with ID '%d' does not exist", id))
		}
		return internal(err)
	}
	slog.Info("showtime deleted", "showtime_id", id, "tickets", len(c.BookingIDs))
	publishCancelled(ctx, s.events, queue.ReasonShowtimeDeleted, []model.CancelledShowtime{*c})
	return nil
}

func (s *Scheduler) movie(ctx context.Context, id uint64) (*model.Movie, error) {
	m, err := s.movies.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrMovieNotFound) {
			return nil, movieIDNotFound(id)
		}
		return nil, internal(err)
	}
	return m, nil
}

func (s *Scheduler) writeError(err error, st model.Showtime) error {
	var oe *repository.OverlapError
	switch {
	case errors.As(err, &oe):
		ids := make([]string, 0, len(oe.Conflicts))
		for _, c := range oe.Conflicts {
			ids = append(ids, strconv.FormatUint(c.ID, 10))
		}
		return newErrorDetails(OverlappingShowtime,
			fmt.Sprintf("There is already a showtime scheduled in theater '%s' that overlaps with the specified time period.", st.Theater),
			fmt.Sprintf("Conflicting showtimes found in theater '%s' between %s and %s (showtime ids: %s)",
				st.Theater, st.StartTime.Format(timeLayout), st.EndTime.Format(timeLayout), strings.Join(ids, ", ")))
	case errors.Is(err, repository.ErrShowtimeNotFound):
		return showtimeNotFound(st.ID)
	case errors.Is(err, repository.ErrMovieNotFound):
		return movieIDNotFound(st.MovieID)
	}
	return internal(err)
}

// normalizeShowtime validates st and brings it to the precision the store
// keeps: times to the microsecond, price to the cent. What is returned to the
// caller then matches what a later read yields.
func normalizeShowtime(st *model.Showtime) error {
	st.StartTime = st.StartTime.Truncate(timePrecision)
	st.EndTime = st.EndTime.Truncate(timePrecision)
	st.Price = math.Round(st.Price*100) / 100
	switch {
	case strings.TrimSpace(st.Theater) == "":
		return newError(ValidationError, "Theater is required")
	case utf8.RuneCountInString(st.Theater) > maxTheaterLen:
		return newError(ValidationError, fmt.Sprintf("Theater must be at most %d characters", maxTheaterLen))
	case st.StartTime.IsZero() || st.EndTime.IsZero():
		return newError(ValidationError, "Start time and end time are required")
	case st.EndTime.Before(st.StartTime):
		return newError(ValidationError, "Start time must be before end time")
	case !(st.Price > 0):
		return newError(ValidationError, "Price must be greater than 0")
	case st.Price > maxPrice:
		return newError(ValidationError, "Price must be at most 99999999.99")
	}
	return nil
}

// checkDuration rejects a window shorter than the movie's running time.
// The comparison is in whole minutes so a huge duration cannot overflow.
func checkDuration(st model.Showtime, m *model.Movie) error {
	if int64(st.Length()/time.Minute) < int64(m.Duration) {
		return newErrorDetails(InvalidShowtime,
			"Showtime duration is shorter than the movie duration",
			fmt.Sprintf("Showtime duration (%d minutes) is shorter than the movie duration (%d minutes)",
				int64(st.Length()/time.Minute), m.Duration))
	}
	return nil
}

func showtimeNotFound(id uint64) *Error {
	return newError(ShowtimeNotFound, fmt.Sprintf("Showtime with ID '%d' not found", id))
}

func movieIDNotFound(id uint64) *Error {
	return newError(MovieNotFound, fmt.Sprintf("Movie with ID '%d' not found", id))
}
