package repository

import (
	"context"
	"database/sql"
	"errors"
	"sort"

	"github.com/iliyamo/popcorn-palace/internal/database"
	"github.com/iliyamo/popcorn-palace/internal/model"
)

// ShowtimeRepo manages persistence for showtimes. Writes that can change a
// theater's schedule take a row lock on that theater first, so concurrent
// creates and updates for the same theater run one after another and each
// sees the rows committed by the previous one.
type ShowtimeRepo struct {
	db *sql.DB
	d  database.Dialect
}

// NewShowtimeRepo constructs a ShowtimeRepo with the given DB handle and dialect.
func NewShowtimeRepo(db *sql.DB, d database.Dialect) *ShowtimeRepo {
	return &ShowtimeRepo{db: db, d: d}
}

func scanShowtime(row rowScanner) (model.Showtime, error) {
	var s model.Showtime
	if err := row.Scan(&s.ID, &s.MovieID, &s.Theater, &s.StartTime, &s.EndTime, &s.Price); err != nil {
		return model.Showtime{}, err
	}
	s.StartTime = s.StartTime.UTC()
	s.EndTime = s.EndTime.UTC()
	return s, nil
}

// GetDetail returns the showtime joined with its movie's title and release
// year, or ErrShowtimeNotFound.
func (r *ShowtimeRepo) GetDetail(ctx context.Context, id uint64) (*model.ShowtimeDetail, error) {
	const q = `SELECT s.id, s.movie_id, s.theater, s.start_time, s.end_time, s.price, m.title, m.release_year
               FROM showtimes s
               JOIN movies m ON m.id = s.movie_id
               WHERE s.id = ?`
	var d model.ShowtimeDetail
	err := r.db.QueryRowContext(ctx, r.d.Rebind(q), id).Scan(
		&d.ID, &d.MovieID, &d.Theater, &d.StartTime, &d.EndTime, &d.Price, &d.MovieTitle, &d.MovieReleaseYear,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrShowtimeNotFound
		}
		return nil, err
	}
	d.StartTime = d.StartTime.UTC()
	d.EndTime = d.EndTime.UTC()
	return &d, nil
}

// Exists reports whether a showtime with the given id is stored.
func (r *ShowtimeRepo) Exists(ctx context.Context, id uint64) (bool, error) {
	var one int
	if err := r.db.QueryRowContext(ctx, r.d.Rebind(`SELECT 1 FROM showtimes WHERE id = ?`), id).Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Create inserts s after verifying, under the theater lock, that no other
// showtime of the theater overlaps it. Conflicts are reported as an
// *OverlapError; a vanished movie as ErrMovieNotFound.
func (r *ShowtimeRepo) Create(ctx context.Context, s *model.Showtime) error {
	return inTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := r.lockTheaters(ctx, tx, s.Theater); err != nil {
			return err
		}
		if err := r.checkOverlap(ctx, tx, s); err != nil {
			return err
		}
		const q = `INSERT INTO showtimes (movie_id, theater, start_time, end_time, price) VALUES (?, ?, ?, ?, ?)`
		id, err := r.d.InsertID(ctx, tx, r.d.Rebind(q), s.MovieID, s.Theater, s.StartTime.UTC(), s.EndTime.UTC(), s.Price)
		if err != nil {
			if r.d.IsForeignKeyViolation(err) {
				return ErrMovieNotFound
			}
			return err
		}
		s.ID = id
		return nil
	})
}

// Update replaces every column of the showtime identified by s.ID. The
// overlap check ignores the showtime itself. When the theater changes both
// the old and the new theater are locked.
func (r *ShowtimeRepo) Update(ctx context.Context, s *model.Showtime) error {
	return inTx(ctx, r.db, func(tx *sql.Tx) error {
		var current string
		err := tx.QueryRowContext(ctx, r.d.Rebind(`SELECT theater FROM showtimes WHERE id = ? FOR UPDATE`), s.ID).Scan(&current)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrShowtimeNotFound
			}
			return err
		}
		if err := r.lockTheaters(ctx, tx, current, s.Theater); err != nil {
			return err
		}
		if err := r.checkOverlap(ctx, tx, s); err != nil {
			return err
		}
		const q = `UPDATE showtimes
                   SET movie_id = ?, theater = ?, start_time = ?, end_time = ?, price = ?
                   WHERE id = ?`
		if _, err := tx.ExecContext(ctx, r.d.Rebind(q),
			s.MovieID, s.Theater, s.StartTime.UTC(), s.EndTime.UTC(), s.Price, s.ID); err != nil {
			if r.d.IsForeignKeyViolation(err) {
				return ErrMovieNotFound
			}
			return err
		}
		return nil
	})
}

// DeleteCascade removes the showtime and its tickets in one transaction and
// returns what was cancelled.
func (r *ShowtimeRepo) DeleteCascade(ctx context.Context, id uint64) (*model.CancelledShowtime, error) {
	c := &model.CancelledShowtime{ShowtimeID: id}
	err := inTx(ctx, r.db, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx,
			r.d.Rebind(`SELECT movie_id, theater FROM showtimes WHERE id = ? FOR UPDATE`), id,
		).Scan(&c.MovieID, &c.Theater)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrShowtimeNotFound
			}
			return err
		}

		rows, err := tx.QueryContext(ctx, r.d.Rebind(`SELECT booking_id FROM tickets WHERE showtime_id = ? ORDER BY id`), id)
		if err != nil {
			return err
		}
		for rows.Next() {
			var b string
			if err := rows.Scan(&b); err != nil {
				rows.Close()
				return err
			}
			c.BookingIDs = append(c.BookingIDs, b)
		}
		if err := rows.Close(); err != nil {
			return err
		}
		if err := rows.Err(); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, r.d.Rebind(`DELETE FROM tickets WHERE showtime_id = ?`), id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, r.d.Rebind(`DELETE FROM showtimes WHERE id = ?`), id); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// lockTheaters makes sure a row exists for every named theater and locks
// them in name order, so two transactions touching the same pair of
// theaters cannot deadlock.
func (r *ShowtimeRepo) lockTheaters(ctx context.Context, tx *sql.Tx, names ...string) error {
	uniq := make([]string, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		if !seen[n] {
			seen[n] = true
			uniq = append(uniq, n)
		}
	}
	sort.Strings(uniq)
	for _, n := range uniq {
		if _, err := tx.ExecContext(ctx, r.d.Rebind(r.d.EnsureTheater()), n); err != nil {
			return err
		}
		var id uint64
		if err := tx.QueryRowContext(ctx, r.d.Rebind(`SELECT id FROM theaters WHERE name = ? FOR UPDATE`), n).Scan(&id); err != nil {
			return err
		}
	}
	return nil
}

// checkOverlap reads the candidate rows of the theater with the inclusive
// window predicate and confirms each one with model.Showtime.Conflicts.
func (r *ShowtimeRepo) checkOverlap(ctx context.Context, tx *sql.Tx, s *model.Showtime) error {
	const q = `SELECT id, movie_id, theater, start_time, end_time, price
               FROM showtimes
               WHERE theater = ? AND id <> ? AND start_time <= ? AND end_time >= ?
               ORDER BY start_time`
	rows, err := tx.QueryContext(ctx, r.d.Rebind(q), s.Theater, s.ID, s.EndTime.UTC(), s.StartTime.UTC())
	if err != nil {
		return err
	}
	defer rows.Close()
	var conflicts []model.Showtime
	for rows.Next() {
		o, err := scanShowtime(rows)
		if err != nil {
			return err
		}
		if o.ID != s.ID && s.Conflicts(o) {
			conflicts = append(conflicts, o)
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if len(conflicts) > 0 {
		return &OverlapError{Theater: s.Theater, Conflicts: conflicts}
	}
	return nil
}
