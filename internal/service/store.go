// Package service implements the catalog, scheduling and reservation rules on
// top of the storage interfaces below. Handlers call into the services;
// services never see HTTP types.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/iliyamo/popcorn-palace/internal/model"
	"github.com/iliyamo/popcorn-palace/internal/queue"
	"github.com/iliyamo/popcorn-palace/internal/repository"
)

// MovieStore is the persistence the Catalog and Scheduler need for movies.
type MovieStore interface {
	List(ctx context.Context) ([]model.Movie, error)
	GetByID(ctx context.Context, id uint64) (*model.Movie, error)
	GetByTitle(ctx context.Context, title string) (*model.Movie, error)
	TitleTaken(ctx context.Context, title string, excludeID uint64) (bool, error)
	Create(ctx context.Context, m *model.Movie) error
	Update(ctx context.Context, m *model.Movie) error
	DeleteCascade(ctx context.Context, id uint64) ([]model.CancelledShowtime, error)
}

// ShowtimeStore is the persistence the Scheduler and Reservations need for
// showtimes. Create and Update must check for overlap atomically with the write.
type ShowtimeStore interface {
	GetDetail(ctx context.Context, id uint64) (*model.ShowtimeDetail, error)
	Exists(ctx context.Context, id uint64) (bool, error)
	Create(ctx context.Context, s *model.Showtime) error
	Update(ctx context.Context, s *model.Showtime) error
	DeleteCascade(ctx context.Context, id uint64) (*model.CancelledShowtime, error)
}

// TicketStore is the persistence Reservations needs for tickets. Create must
// reject a second ticket for the same seat with repository.ErrSeatTaken.
type TicketStore interface {
	SeatTaken(ctx context.Context, showtimeID uint64, seat int) (bool, error)
	Create(ctx context.Context, t *model.Ticket) error
}

var (
	_ MovieStore    = (*repository.MovieRepo)(nil)
	_ ShowtimeStore = (*repository.ShowtimeRepo)(nil)
	_ TicketStore   = (*repository.TicketRepo)(nil)
)

// EventPublisher receives domain events after the corresponding write has
// been committed. A nil EventPublisher disables events.
type EventPublisher interface {
	TicketBooked(ctx context.Context, ev queue.TicketBookedEvent) error
	ShowtimeCancelled(ctx context.Context, ev queue.ShowtimeCancelledEvent) error
}

const publishTimeout = 3 * time.Second

// publishCancelled emits one event per cancelled showtime. Failures are
// logged; the delete has already been committed.
func publishCancelled(ctx context.Context, events EventPublisher, reason string, cancelled []model.CancelledShowtime) {
	if events == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	now := time.Now().UTC().Format(time.RFC3339)
	for _, c := range cancelled {
		ev := queue.ShowtimeCancelledEvent{
			ShowtimeID:  c.ShowtimeID,
			MovieID:     c.MovieID,
			Theater:     c.Theater,
			BookingIDs:  c.BookingIDs,
			Reason:      reason,
			CancelledAt: now,
		}
		if err := events.ShowtimeCancelled(ctx, ev); err != nil {
			slog.Warn("publish showtime cancelled failed", "showtime_id", c.ShowtimeID, "error", err)
		}
	}
}
