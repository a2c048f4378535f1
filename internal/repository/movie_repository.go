package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/popcorn-palace/internal/database"
	"github.com/iliyamo/popcorn-palace/internal/model"
)

// MovieRepo manages persistence for movies.
type MovieRepo struct {
	db *sql.DB
	d  database.Dialect
}

// NewMovieRepo constructs a MovieRepo with the given DB handle and dialect.
func NewMovieRepo(db *sql.DB, d database.Dialect) *MovieRepo {
	return &MovieRepo{db: db, d: d}
}

const movieColumns = `id, title, genre, duration, rating, release_year`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMovie(row rowScanner) (model.Movie, error) {
	var (
		m      model.Movie
		rating sql.NullFloat64
	)
	if err := row.Scan(&m.ID, &m.Title, &m.Genre, &m.Duration, &rating, &m.ReleaseYear); err != nil {
		return model.Movie{}, err
	}
	if rating.Valid {
		r := rating.Float64
		m.Rating = &r
	}
	return m, nil
}

func nullRating(r *float64) sql.NullFloat64 {
	if r == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *r, Valid: true}
}

// List returns every movie ordered by id. An empty catalog yields an empty
// slice and a nil error.
func (r *MovieRepo) List(ctx context.Context) ([]model.Movie, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+movieColumns+` FROM movies ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	movies := []model.Movie{}
	for rows.Next() {
		m, err := scanMovie(rows)
		if err != nil {
			return nil, err
		}
		movies = append(movies, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return movies, nil
}

// GetByID retrieves a movie by id, or ErrMovieNotFound.
func (r *MovieRepo) GetByID(ctx context.Context, id uint64) (*model.Movie, error) {
	q := r.d.Rebind(`SELECT ` + movieColumns + ` FROM movies WHERE id = ?`)
	m, err := scanMovie(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMovieNotFound
		}
		return nil, err
	}
	return &m, nil
}

// GetByTitle retrieves a movie by title ignoring case, or ErrMovieNotFound.
func (r *MovieRepo) GetByTitle(ctx context.Context, title string) (*model.Movie, error) {
	q := r.d.Rebind(`SELECT ` + movieColumns + ` FROM movies WHERE LOWER(title) = LOWER(?)`)
	m, err := scanMovie(r.db.QueryRowContext(ctx, q, title))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMovieNotFound
		}
		return nil, err
	}
	return &m, nil
}

// TitleTaken reports whether a movie other than excludeID already uses title,
// compared case-insensitively. Pass 0 to consider every movie.
func (r *MovieRepo) TitleTaken(ctx context.Context, title string, excludeID uint64) (bool, error) {
	q := r.d.Rebind(`SELECT 1 FROM movies WHERE LOWER(title) = LOWER(?) AND id <> ? LIMIT 1`)
	var one int
	if err := r.db.QueryRowContext(ctx, q, title, excludeID).Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Create inserts m and assigns the generated id. A title collision rejected
// by the database is reported as ErrDuplicateTitle.
func (r *MovieRepo) Create(ctx context.Context, m *model.Movie) error {
	const q = `INSERT INTO movies (title, genre, duration, rating, release_year) VALUES (?, ?, ?, ?, ?)`
	id, err := r.d.InsertID(ctx, r.db, r.d.Rebind(q), m.Title, m.Genre, m.Duration, nullRating(m.Rating), m.ReleaseYear)
	if err != nil {
		if r.d.IsUniqueViolation(err, constraintMovieTitle) {
			return ErrDuplicateTitle
		}
		return err
	}
	m.ID = id
	return nil
}

// Update overwrites every column of the movie identified by m.ID.
func (r *MovieRepo) Update(ctx context.Context, m *model.Movie) error {
	const q = `UPDATE movies
               SET title = ?, genre = ?, duration = ?, rating = ?, release_year = ?, updated_at = CURRENT_TIMESTAMP
               WHERE id = ?`
	res, err := r.db.ExecContext(ctx, r.d.Rebind(q),
		m.Title, m.Genre, m.Duration, nullRating(m.Rating), m.ReleaseYear, m.ID)
	if err != nil {
		if r.d.IsUniqueViolation(err, constraintMovieTitle) {
			return ErrDuplicateTitle
		}
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	// MySQL reports zero affected rows when nothing changed; tell that apart from a missing row.
	var one int
	if err := r.db.QueryRowContext(ctx, r.d.Rebind(`SELECT 1 FROM movies WHERE id = ?`), m.ID).Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrMovieNotFound
		}
		return err
	}
	return nil
}

// DeleteCascade removes the movie, all of its showtimes and all tickets of
// those showtimes in one transaction. The returned slice describes every
// removed showtime with its cancelled booking ids. Any failure rolls the
// whole delete back.
func (r *MovieRepo) DeleteCascade(ctx context.Context, id uint64) ([]model.CancelledShowtime, error) {
	var cancelled []model.CancelledShowtime
	err := inTx(ctx, r.db, func(tx *sql.Tx) error {
		var locked uint64
		if err := tx.QueryRowContext(ctx, r.d.Rebind(`SELECT id FROM movies WHERE id = ? FOR UPDATE`), id).Scan(&locked); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrMovieNotFound
			}
			return err
		}

		// Locking the showtime rows also blocks new tickets for them until commit.
		rows, err := tx.QueryContext(ctx,
			r.d.Rebind(`SELECT id, theater FROM showtimes WHERE movie_id = ? ORDER BY id FOR UPDATE`), id)
		if err != nil {
			return err
		}
		index := map[uint64]int{}
		for rows.Next() {
			c := model.CancelledShowtime{MovieID: id}
			if err := rows.Scan(&c.ShowtimeID, &c.Theater); err != nil {
				rows.Close()
				return err
			}
			index[c.ShowtimeID] = len(cancelled)
			cancelled = append(cancelled, c)
		}
		if err := rows.Close(); err != nil {
			return err
		}
		if err := rows.Err(); err != nil {
			return err
		}

		if len(cancelled) > 0 {
			const qBookings = `SELECT t.showtime_id, t.booking_id
                               FROM tickets t
                               JOIN showtimes s ON s.id = t.showtime_id
                               WHERE s.movie_id = ?
                               ORDER BY t.id`
			brows, err := tx.QueryContext(ctx, r.d.Rebind(qBookings), id)
			if err != nil {
				return err
			}
			for brows.Next() {
				var (
					showtimeID uint64
					bookingID  string
				)
				if err := brows.Scan(&showtimeID, &bookingID); err != nil {
					brows.Close()
					return err
				}
				if i, ok := index[showtimeID]; ok {
					cancelled[i].BookingIDs = append(cancelled[i].BookingIDs, bookingID)
				}
			}
			if err := brows.Close(); err != nil {
				return err
			}
			if err := brows.Err(); err != nil {
				return err
			}
		}

		// Children first: tickets -> showtimes -> movie.
		if _, err := tx.ExecContext(ctx,
			r.d.Rebind(`DELETE FROM tickets WHERE showtime_id IN (SELECT id FROM showtimes WHERE movie_id = ?)`), id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, r.d.Rebind(`DELETE FROM showtimes WHERE movie_id = ?`), id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, r.d.Rebind(`DELETE FROM movies WHERE id = ?`), id); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cancelled, nil
}
