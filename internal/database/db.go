package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
)

// Options describes how to reach the database.
type Options struct {
	Driver  string // "mysql" or "postgres"
	User    string
	Pass    string
	Host    string
	Port    string
	Name    string
	SSLMode string // postgres only
}

// DSN renders the connection string for the configured driver.
func (o Options) DSN() (string, error) {
	switch o.Driver {
	case "", DriverMySQL:
		auth := o.User
		if o.Pass != "" {
			auth = fmt.Sprintf("%s:%s", o.User, o.Pass)
		}
		// parseTime=true -> DATETIME -> time.Time | loc=UTC keeps times consistent
		return fmt.Sprintf("%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=UTC",
			auth, o.Host, o.Port, o.Name), nil
	case DriverPostgres:
		u := url.URL{
			Scheme: "postgres",
			Host:   o.Host + ":" + o.Port,
			Path:   "/" + o.Name,
		}
		if o.Pass != "" {
			u.User = url.UserPassword(o.User, o.Pass)
		} else {
			u.User = url.User(o.User)
		}
		mode := o.SSLMode
		if mode == "" {
			mode = "disable"
		}
		u.RawQuery = url.Values{"sslmode": {mode}, "timezone": {"UTC"}}.Encode()
		return u.String(), nil
	default:
		return "", fmt.Errorf("database: unsupported driver %q", o.Driver)
	}
}

// Open connects to the configured database, verifies the connection and
// returns it together with the matching SQL dialect.
func Open(o Options) (*sql.DB, Dialect, error) {
	d, err := DialectFor(o.Driver)
	if err != nil {
		return nil, nil, err
	}
	dsn, err := o.DSN()
	if err != nil {
		return nil, nil, err
	}

	db, err := sql.Open(d.DriverName(), dsn)
	if err != nil {
		return nil, nil, err
	}

	// Pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)

	// Ping with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return db, d, nil
}
