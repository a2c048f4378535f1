package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/iliyamo/popcorn-palace/internal/model"
	"github.com/iliyamo/popcorn-palace/internal/queue"
	"github.com/iliyamo/popcorn-palace/internal/repository"
)

// Catalog owns the movie records.
type Catalog struct {
	movies MovieStore
	events EventPublisher
}

// NewCatalog constructs a Catalog. It panics when movies is nil.
func NewCatalog(movies MovieStore, events EventPublisher) *Catalog {
	if movies == nil {
		panic("service: nil MovieStore")
	}
	return &Catalog{movies: movies, events: events}
}

// List returns all movies.
func (c *Catalog) List(ctx context.Context) ([]model.Movie, error) {
	movies, err := c.movies.List(ctx)
	if err != nil {
		return nil, internal(err)
	}
	return movies, nil
}

// Create adds a movie. The title must not match an existing one ignoring case.
func (c *Catalog) Create(ctx context.Context, m model.Movie) (*model.Movie, error) {
	if err := validateMovie(m); err != nil {
		return nil, err
	}
	taken, err := c.movies.TitleTaken(ctx, m.Title, 0)
	if err != nil {
		return nil, internal(err)
	}
	if taken {
		return nil, duplicateTitle(m.Title)
	}

	err = c.movies.Create(ctx, &m)
	if errors.Is(err, repository.ErrDuplicateTitle) {
		// Another request won the race; confirm with the pre-check once.
		taken, cerr := c.movies.TitleTaken(ctx, m.Title, 0)
		if cerr != nil {
			return nil, internal(cerr)
		}
		if !taken {
			err = c.movies.Create(ctx, &m)
		}
	}
	switch {
	case errors.Is(err, repository.ErrDuplicateTitle):
		return nil, duplicateTitle(m.Title)
	case err != nil:
		return nil, internal(err)
	}
	return &m, nil
}

// Update applies a partial update to the movie with the given title. Absent
// fields are kept, and so is the genre when an empty string is supplied.
func (c *Catalog) Update(ctx context.Context, title string, p model.MoviePatch) (*model.Movie, error) {
	existing, err := c.movies.GetByTitle(ctx, title)
	if err != nil {
		if errors.Is(err, repository.ErrMovieNotFound) {
			return nil, newError(MovieNotFound, fmt.Sprintf("Movie with title '%s' not found", title))
		}
		return nil, internal(err)
	}

	if err := validatePatch(p); err != nil {
		return nil, err
	}
	if p.Title != nil {
		taken, err := c.movies.TitleTaken(ctx, *p.Title, existing.ID)
		if err != nil {
			return nil, internal(err)
		}
		if taken {
			return nil, duplicateTitle(*p.Title)
		}
	}

	updated := *existing
	p.Apply(&updated)

	err = c.movies.Update(ctx, &updated)
	if errors.Is(err, repository.ErrDuplicateTitle) {
		taken, cerr := c.movies.TitleTaken(ctx, updated.Title, updated.ID)
		if cerr != nil {
			return nil, internal(cerr)
		}
		if !taken {
			err = c.movies.Update(ctx, &updated)
		}
	}
	switch {
	case errors.Is(err, repository.ErrDuplicateTitle):
		return nil, duplicateTitle(updated.Title)
	case errors.Is(err, repository.ErrMovieNotFound):
		return nil, newError(MovieNotFound, fmt.Sprintf("Movie with title '%s' not found", title))
	case err != nil:
		return nil, internal(err)
	}
	return &updated, nil
}

// Delete removes the movie with the given title together with its
// showtimes and their tickets. Either everything goes or nothing does.
func (c *Catalog) Delete(ctx context.Context, title string) error {
	notFound := newErrorDetails(MovieNotFound, "Movie not found",
		fmt.Sprintf("Movie with title '%s' does not exist", title))

	m, err := c.movies.GetByTitle(ctx, title)
	if err != nil {
		if errors.Is(err, repository.ErrMovieNotFound) {
			return notFound
		}
		return internal(err)
	}
	cancelled, err := c.movies.DeleteCascade(ctx, m.ID)
	if err != nil {
		if errors.Is(err, repository.ErrMovieNotFound) {
			return notFound
		}
		return internal(err)
	}
	slog.Info("movie deleted", "movie_id", m.ID, "title", m.Title, "showtimes", len(cancelled))
	publishCancelled(ctx, c.events, queue.ReasonMovieDeleted, cancelled)
	return nil
}

func duplicateTitle(title string) *Error {
	return newError(DuplicateMovieTitle, fmt.Sprintf("A movie titled '%s' already exists in the system", title))
}

func validateMovie(m model.Movie) error {
	switch {
	case strings.TrimSpace(m.Title) == "":
		return newError(ValidationError, "Title is required")
	case strings.TrimSpace(m.Genre) == "":
		return newError(ValidationError, "Genre is required")
	}
	return validatePatch(model.MoviePatch{Title: &m.Title, Genre: &m.Genre, Duration: &m.Duration, Rating: m.Rating, ReleaseYear: &m.ReleaseYear})
}

// Column limits of the movies table.
const (
	maxTitleLen = 255
	maxGenreLen = 100
)

func validatePatch(p model.MoviePatch) error {
	switch {
	case p.Title != nil && utf8.RuneCountInString(*p.Title) > maxTitleLen:
		return newError(ValidationError, fmt.Sprintf("Title must be at most %d characters", maxTitleLen))
	case p.Genre != nil && utf8.RuneCountInString(*p.Genre) > maxGenreLen:
		return newError(ValidationError, fmt.Sprintf("Genre must be at most %d characters", maxGenreLen))
	case p.Duration != nil && *p.Duration < 0:
		return newError(ValidationError, "Duration cannot be negative")
	case p.Duration != nil && *p.Duration > math.MaxInt32:
		return newError(ValidationError, "Duration is too large")
	case p.Rating != nil && !(*p.Rating >= 0 && *p.Rating <= 10):
		return newError(ValidationError, "Rating must be between 0 and 10")
	case p.ReleaseYear != nil && *p.ReleaseYear < 0:
		return newError(ValidationError, "ReleaseYear cannot be negative")
	case p.ReleaseYear != nil && *p.ReleaseYear > math.MaxInt32:
		return newError(ValidationError, "ReleaseYear is too large")
	}
	return nil
}
