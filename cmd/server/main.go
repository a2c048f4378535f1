package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/popcorn-palace/internal/config"
	"github.com/iliyamo/popcorn-palace/internal/database"
	"github.com/iliyamo/popcorn-palace/internal/handler"
	"github.com/iliyamo/popcorn-palace/internal/middleware"
	"github.com/iliyamo/popcorn-palace/internal/queue"
	"github.com/iliyamo/popcorn-palace/internal/repository"
	"github.com/iliyamo/popcorn-palace/internal/router"
	"github.com/iliyamo/popcorn-palace/internal/service"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	if err := run(); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Load()

	db, dialect, err := database.Open(cfg.Database())
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.DBMigrate {
		if err := database.Migrate(ctx, db, dialect); err != nil {
			return err
		}
	}

	movies := repository.NewMovieRepo(db, dialect)
	showtimes := repository.NewShowtimeRepo(db, dialect)
	tickets := repository.NewTicketRepo(db, dialect)

	var events service.EventPublisher
	evCfg := config.LoadEventsConfig()
	if evCfg.Enabled {
		events = queue.NewPublisher(evCfg.URL, evCfg.DialTimeout)
		if evCfg.Consume {
			consumer := queue.NewConsumer(evCfg.URL, evCfg.LogPath)
			go func() {
				if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
					slog.Error("event consumer stopped", "error", err)
				}
			}()
		}
	}

	catalog := service.NewCatalog(movies, events)
	scheduler := service.NewScheduler(movies, showtimes, events)
	reservations := service.NewReservations(showtimes, tickets, events)

	rdb := config.NewRedisClient()
	if rdb != nil {
		defer rdb.Close()
	}
	cacheCfg := config.LoadCacheConfig()

	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = handler.ErrorHandler
	e.Use(echomw.Recover())
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
				"remote_ip", v.RemoteIP,
			}
			if v.Error != nil {
				slog.Warn("request", append(attrs, "error", v.Error)...)
				return nil
			}
			slog.Info("request", attrs...)
			return nil
		},
	}))
	e.Use(middleware.NewRateLimiter(config.LoadRateLimitConfig(), rdb))

	router.RegisterRoutes(e, router.Handlers{
		Movies:    handler.NewMovieHandler(catalog, cfg.RequestTimeout),
		Showtimes: handler.NewShowtimeHandler(scheduler, cfg.RequestTimeout),
		Bookings:  handler.NewBookingHandler(reservations, cfg.RequestTimeout),
		Ready:     handler.Ready(db),
	}, router.Middleware{
		Cache:      middleware.NewRedisCache(cacheCfg, rdb),
		Invalidate: middleware.InvalidateCache(cacheCfg, rdb),
	})

	addr := ":" + cfg.Port
	errc := make(chan error, 1)
	go func() {
		slog.Info("listening", "addr", addr, "env", cfg.Env, "driver", dialect.DriverName())
		errc <- e.Start(addr)
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down", "timeout", cfg.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
