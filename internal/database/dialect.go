package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
)

// Supported values for Options.Driver.
const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
)

// Execer is satisfied by both *sql.DB and *sql.Tx.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Dialect hides the differences between the supported SQL engines. Queries
// are written with "?" placeholders and passed through Rebind.
type Dialect interface {
	// DriverName is the database/sql driver to open.
	DriverName() string
	// Rebind rewrites "?" placeholders into the engine's native form.
	Rebind(query string) string
	// InsertID runs an INSERT and returns the generated primary key.
	InsertID(ctx context.Context, ex Execer, query string, args ...any) (uint64, error)
	// EnsureTheater is an INSERT that creates the named theater row if it is
	// missing and is a no-op otherwise.
	EnsureTheater() string
	// IsUniqueViolation reports whether err was raised by a unique constraint.
	// A non-empty constraint narrows the match to that constraint name.
	IsUniqueViolation(err error, constraint string) bool
	// IsForeignKeyViolation reports whether err was raised by a missing parent row.
	IsForeignKeyViolation(err error) bool
	// Schema returns the idempotent DDL statements for the application tables.
	Schema() []string
}

// DialectFor returns the dialect for a driver name. An empty name selects MySQL.
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case "", DriverMySQL:
		return MySQL{}, nil
	case DriverPostgres:
		return Postgres{}, nil
	}
	return nil, fmt.Errorf("database: unsupported driver %q", driver)
}

// MySQL error numbers used by the repositories.
const (
	mysqlDuplicateEntry  = 1062
	mysqlNoReferencedRow = 1452
)

// MySQL is the dialect for github.com/go-sql-driver/mysql.
type MySQL struct{}

func (MySQL) DriverName() string         { return DriverMySQL }
func (MySQL) Rebind(query string) string { return query }

func (MySQL) InsertID(ctx context.Context, ex Execer, query string, args ...any) (uint64, error) {
	res, err := ex.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

func (MySQL) EnsureTheater() string {
	return `INSERT INTO theaters (name) VALUES (?) ON DUPLICATE KEY UPDATE name = name`
}

func (MySQL) IsUniqueViolation(err error, constraint string) bool {
	var me *mysql.MySQLError
	if !errors.As(err, &me) || me.Number != mysqlDuplicateEntry {
		return false
	}
	// Message: Duplicate entry '3-12' for key 'tickets.uq_tickets_showtime_seat'
	return constraint == "" || strings.Contains(me.Message, constraint)
}

func (MySQL) IsForeignKeyViolation(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlNoReferencedRow
}

func (MySQL) Schema() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS movies (
			id           BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
			title        VARCHAR(255) NOT NULL,
			title_key    VARCHAR(255) COLLATE utf8mb4_bin AS (LOWER(title)) STORED,
			genre        VARCHAR(100) NOT NULL,
			duration     INT NOT NULL,
			rating       DOUBLE NULL,
			release_year INT NOT NULL,
			created_at   DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
			updated_at   DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6) ON UPDATE CURRENT_TIMESTAMP(6),
			UNIQUE KEY uq_movies_title (title_key),
			CONSTRAINT chk_movies_duration CHECK (duration >= 0),
			CONSTRAINT chk_movies_rating CHECK (rating IS NULL OR (rating >= 0 AND rating <= 10)),
			CONSTRAINT chk_movies_release_year CHECK (release_year >= 0)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		`CREATE TABLE IF NOT EXISTS theaters (
			id   BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
			name VARCHAR(255) COLLATE utf8mb4_bin NOT NULL,
			UNIQUE KEY uq_theaters_name (name)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		`CREATE TABLE IF NOT EXISTS showtimes (
			id         BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
			movie_id   BIGINT UNSIGNED NOT NULL,
			theater    VARCHAR(255) COLLATE utf8mb4_bin NOT NULL,
			start_time DATETIME(6) NOT NULL,
			end_time   DATETIME(6) NOT NULL,
			price      DECIMAL(10,2) NOT NULL,
			KEY idx_showtimes_theater_window (theater, start_time, end_time),
			CONSTRAINT fk_showtimes_movie FOREIGN KEY (movie_id) REFERENCES movies (id),
			CONSTRAINT chk_showtimes_window CHECK (start_time <= end_time),
			CONSTRAINT chk_showtimes_price CHECK (price > 0)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		`CREATE TABLE IF NOT EXISTS tickets (
			id          BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
			booking_id  CHAR(36) NOT NULL,
			showtime_id BIGINT UNSIGNED NOT NULL,
			seat_number INT NOT NULL,
			user_id     VARCHAR(255) NOT NULL,
			created_at  DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
			UNIQUE KEY uq_tickets_booking_id (booking_id),
			UNIQUE KEY uq_tickets_showtime_seat (showtime_id, seat_number),
			CONSTRAINT fk_tickets_showtime FOREIGN KEY (showtime_id) REFERENCES showtimes (id),
			CONSTRAINT chk_tickets_seat CHECK (seat_number > 0)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	}
}

// PostgreSQL SQLSTATE codes used by the repositories.
const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

// Postgres is the dialect for github.com/lib/pq.
type Postgres struct{}

func (Postgres) DriverName() string { return DriverPostgres }

// Rebind turns "?" into "$1", "$2", ... outside of quoted literals.
func (Postgres) Rebind(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	inQuote := false
	for i := 0; i < len(query); i++ {
		ch := query[i]
		switch {
		case ch == '\'':
			inQuote = !inQuote
			b.WriteByte(ch)
		case ch == '?' && !inQuote:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteByte(ch)
		}
	}
	return b.String()
}

func (p Postgres) InsertID(ctx context.Context, ex Execer, query string, args ...any) (uint64, error) {
	var id uint64
	if err := ex.QueryRowContext(ctx, p.Rebind(query)+" RETURNING id", args...).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func (Postgres) EnsureTheater() string {
	return `INSERT INTO theaters (name) VALUES (?) ON CONFLICT (name) DO NOTHING`
}

func (Postgres) IsUniqueViolation(err error, constraint string) bool {
	var pe *pq.Error
	if !errors.As(err, &pe) || pe.Code != pqUniqueViolation {
		return false
	}
	return constraint == "" || pe.Constraint == constraint
}

func (Postgres) IsForeignKeyViolation(err error) bool {
	var pe *pq.Error
	return errors.As(err, &pe) && pe.Code == pqForeignKeyViolation
}

func (Postgres) Schema() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS movies (
			id           BIGSERIAL PRIMARY KEY,
			title        VARCHAR(255) NOT NULL,
			genre        VARCHAR(100) NOT NULL,
			duration     INTEGER NOT NULL CHECK (duration >= 0),
			rating       DOUBLE PRECISION CHECK (rating IS NULL OR (rating >= 0 AND rating <= 10)),
			release_year INTEGER NOT NULL CHECK (release_year >= 0),
			created_at   TIMESTAMP NOT NULL DEFAULT (NOW() AT TIME ZONE 'UTC'),
			updated_at   TIMESTAMP NOT NULL DEFAULT (NOW() AT TIME ZONE 'UTC')
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_movies_title ON movies (LOWER(title))`,
		`CREATE TABLE IF NOT EXISTS theaters (
			id   BIGSERIAL PRIMARY KEY,
			name VARCHAR(255) NOT NULL CONSTRAINT uq_theaters_name UNIQUE
		)`,
		`CREATE TABLE IF NOT EXISTS showtimes (
			id         BIGSERIAL PRIMARY KEY,
			movie_id   BIGINT NOT NULL CONSTRAINT fk_showtimes_movie REFERENCES movies (id),
			theater    VARCHAR(255) NOT NULL,
			start_time TIMESTAMP NOT NULL,
			end_time   TIMESTAMP NOT NULL,
			price      NUMERIC(10,2) NOT NULL CHECK (price > 0),
			CHECK (start_time <= end_time)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_showtimes_theater_window ON showtimes (theater, start_time, end_time)`,
		`CREATE TABLE IF NOT EXISTS tickets (
			id          BIGSERIAL PRIMARY KEY,
			booking_id  VARCHAR(36) NOT NULL CONSTRAINT uq_tickets_booking_id UNIQUE,
			showtime_id BIGINT NOT NULL CONSTRAINT fk_tickets_showtime REFERENCES showtimes (id),
			seat_number INTEGER NOT NULL CHECK (seat_number > 0),
			user_id     VARCHAR(255) NOT NULL,
			created_at  TIMESTAMP NOT NULL DEFAULT (NOW() AT TIME ZONE 'UTC'),
			CONSTRAINT uq_tickets_showtime_seat UNIQUE (showtime_id, seat_number)
		)`,
	}
}
