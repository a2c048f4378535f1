package service

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/popcorn-palace/internal/model"
)

func TestScheduler_OverlapPerTheater(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	m := f.movie("Heat", 120)

	a, err := f.scheduler.Create(ctx, model.Showtime{MovieID: m.ID, Theater: "Hall A", StartTime: at(12, 0), EndTime: at(14, 0), Price: 10})
	require.NoError(t, err)
	assert.Equal(t, "Heat", a.MovieTitle)
	assert.Equal(t, 2020, a.MovieReleaseYear)

	_, err = f.scheduler.Create(ctx, model.Showtime{MovieID: m.ID, Theater: "Hall A", StartTime: at(13, 0), EndTime: at(15, 0), Price: 10})
	var se *Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, OverlappingShowtime, se.Type)
	assert.Contains(t, se.Details, "Hall A")

	_, err = f.scheduler.Create(ctx, model.Showtime{MovieID: m.ID, Theater: "Hall B", StartTime: at(12, 0), EndTime: at(14, 0), Price: 10})
	assert.NoError(t, err)
}

func TestScheduler_TouchingBoundariesConflict(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	m := f.movie("Heat", 120)
	f.showtime(m.ID, "Hall A", at(12, 0), at(14, 0))

	_, err := f.scheduler.Create(ctx, model.Showtime{MovieID: m.ID, Theater: "Hall A", StartTime: at(14, 0), EndTime: at(16, 0), Price: 10})
	assert.ErrorIs(t, err, OverlappingShowtime)

	_, err = f.scheduler.Create(ctx, model.Showtime{MovieID: m.ID, Theater: "Hall A", StartTime: at(14, 1), EndTime: at(16, 1), Price: 10})
	assert.NoError(t, err)
}

func TestScheduler_Duration(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	m := f.movie("Heat", 120)

	_, err := f.scheduler.Create(ctx, model.Showtime{MovieID: m.ID, Theater: "Hall A", StartTime: at(12, 0), EndTime: at(13, 30), Price: 10})
	var se *Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, InvalidShowtime, se.Type)
	assert.Equal(t, "Showtime duration (90 minutes) is shorter than the movie duration (120 minutes)", se.Details)

	_, err = f.scheduler.Create(ctx, model.Showtime{MovieID: m.ID, Theater: "Hall A", StartTime: at(12, 0), EndTime: at(14, 0), Price: 10})
	assert.NoError(t, err)

	// Minutes beyond what time.Duration can hold must still be compared.
	epic := f.movie("Epic", 200000000)
	_, err = f.scheduler.Create(ctx, model.Showtime{MovieID: epic.ID, Theater: "Hall B", StartTime: at(12, 0), EndTime: at(13, 0), Price: 10})
	require.ErrorAs(t, err, &se)
	assert.Equal(t, InvalidShowtime, se.Type)
	assert.Equal(t, "Showtime duration (60 minutes) is shorter than the movie duration (200000000 minutes)", se.Details)
	assert.Len(t, f.db.sortedShowtimes(), 1)
}

func TestScheduler_StoredPrecision(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	m := f.movie("Heat", 0)

	start := at(12, 0).Add(1500 * time.Nanosecond)
	got, err := f.scheduler.Create(ctx, model.Showtime{MovieID: m.ID, Theater: "Hall A", StartTime: start, EndTime: at(14, 0).Add(999), Price: 12.346})
	require.NoError(t, err)
	assert.Equal(t, 12.35, got.Price)
	assert.Equal(t, at(12, 0).Add(time.Microsecond), got.StartTime)
	assert.Equal(t, at(14, 0), got.EndTime)

	stored, err := f.scheduler.Get(ctx, got.ID)
	require.NoError(t, err)
	assert.Equal(t, got.Showtime, stored.Showtime)

	updated, err := f.scheduler.Update(ctx, got.ID, model.Showtime{MovieID: m.ID, Theater: "Hall A", StartTime: start, EndTime: at(14, 0), Price: 7.004})
	require.NoError(t, err)
	assert.Equal(t, 7.0, updated.Price)
}

func TestScheduler_CreateValidation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	m := f.movie("Heat", 0)

	tests := []struct {
		name string
		st   model.Showtime
		want ErrorType
	}{
		{"unknown movie", model.Showtime{MovieID: 999, Theater: "Hall A", StartTime: at(1, 0), EndTime: at(2, 0), Price: 1}, MovieNotFound},
		{"end before start", model.Showtime{MovieID: m.ID, Theater: "Hall A", StartTime: at(2, 0), EndTime: at(1, 0), Price: 1}, ValidationError},
		{"zero price", model.Showtime{MovieID: m.ID, Theater: "Hall A", StartTime: at(1, 0), EndTime: at(2, 0)}, ValidationError},
		{"blank theater", model.Showtime{MovieID: m.ID, Theater: " ", StartTime: at(1, 0), EndTime: at(2, 0), Price: 1}, ValidationError},
		{"theater too long", model.Showtime{MovieID: m.ID, Theater: strings.Repeat("h", 256), StartTime: at(1, 0), EndTime: at(2, 0), Price: 1}, ValidationError},
		{"price rounds to zero", model.Showtime{MovieID: m.ID, Theater: "Hall A", StartTime: at(1, 0), EndTime: at(2, 0), Price: 0.001}, ValidationError},
		{"price too high", model.Showtime{MovieID: m.ID, Theater: "Hall A", StartTime: at(1, 0), EndTime: at(2, 0), Price: 100000000}, ValidationError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.scheduler.Create(ctx, tt.st)
			assert.Equal(t, tt.want, TypeOf(err))
		})
	}
}

func TestScheduler_Update(t *testing.T) {
	ctx := context.Background()

	t.Run("self overlap is not a conflict", func(t *testing.T) {
		f := newFixture()
		m := f.movie("Heat", 120)
		s := f.showtime(m.ID, "Hall A", at(12, 0), at(14, 0))

		got, err := f.scheduler.Update(ctx, s.ID, model.Showtime{MovieID: m.ID, Theater: "Hall A", StartTime: at(12, 30), EndTime: at(14, 30), Price: 15})
		require.NoError(t, err)
		assert.Equal(t, s.ID, got.ID)
		assert.Equal(t, 15.0, got.Price)

		stored, err := f.scheduler.Get(ctx, s.ID)
		require.NoError(t, err)
		assert.Equal(t, at(12, 30), stored.StartTime)
	})

	t.Run("conflict with another showtime", func(t *testing.T) {
		f := newFixture()
		m := f.movie("Heat", 120)
		f.showtime(m.ID, "Hall A", at(12, 0), at(14, 0))
		s := f.showtime(m.ID, "Hall B", at(12, 0), at(14, 0))

		_, err := f.scheduler.Update(ctx, s.ID, model.Showtime{MovieID: m.ID, Theater: "Hall A", StartTime: at(13, 0), EndTime: at(15, 0), Price: 10})
		assert.ErrorIs(t, err, OverlappingShowtime)
	})

	t.Run("missing showtime", func(t *testing.T) {
		f := newFixture()
		m := f.movie("Heat", 120)
		_, err := f.scheduler.Update(ctx, 999, model.Showtime{MovieID: m.ID, Theater: "Hall A", StartTime: at(12, 0), EndTime: at(14, 0), Price: 10})
		assert.ErrorIs(t, err, ShowtimeNotFound)
	})

	t.Run("missing movie", func(t *testing.T) {
		f := newFixture()
		m := f.movie("Heat", 120)
		s := f.showtime(m.ID, "Hall A", at(12, 0), at(14, 0))
		_, err := f.scheduler.Update(ctx, s.ID, model.Showtime{MovieID: 999, Theater: "Hall A", StartTime: at(12, 0), EndTime: at(14, 0), Price: 10})
		assert.ErrorIs(t, err, MovieNotFound)
	})

	t.Run("too short for the new movie", func(t *testing.T) {
		f := newFixture()
		short := f.movie("Short", 60)
		long := f.movie("Long", 180)
		s := f.showtime(short.ID, "Hall A", at(12, 0), at(13, 0))
		_, err := f.scheduler.Update(ctx, s.ID, model.Showtime{MovieID: long.ID, Theater: "Hall A", StartTime: at(12, 0), EndTime: at(13, 0), Price: 10})
		assert.ErrorIs(t, err, InvalidShowtime)
	})
}

func TestScheduler_Delete(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	m := f.movie("Heat", 120)
	s := f.showtime(m.ID, "Hall A", at(12, 0), at(14, 0))
	bookingID, err := f.booking.Book(ctx, s.ID, 7, "u-1")
	require.NoError(t, err)

	require.NoError(t, f.scheduler.Delete(ctx, s.ID))
	_, err = f.scheduler.Get(ctx, s.ID)
	assert.ErrorIs(t, err, ShowtimeNotFound)
	assert.Zero(t, f.tickets.count())
	require.Len(t, f.events.cancelled, 1)
	assert.Equal(t, []string{bookingID}, f.events.cancelled[0].BookingIDs)

	assert.ErrorIs(t, f.scheduler.Delete(ctx, s.ID), ShowtimeNotFound)
}

// Accepted showtimes never overlap in the same theater and always fit the
// movie, no matter how many requests race.
func TestScheduler_ConcurrentCreatesKeepInvariants(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	m := f.movie("Heat", 30)
	theaters := []string{"Hall A", "Hall B", "Hall C"}
	rng := rand.New(rand.NewSource(42))

	type req struct {
		theater    string
		start, end time.Time
	}
	reqs := make([]req, 200)
	for i := range reqs {
		start := at(8, 0).Add(time.Duration(rng.Intn(12*60)) * time.Minute)
		reqs[i] = req{theaters[rng.Intn(len(theaters))], start, start.Add(time.Duration(20+rng.Intn(90)) * time.Minute)}
	}

	var wg sync.WaitGroup
	for _, r := range reqs {
		wg.Add(1)
		go func(r req) {
			defer wg.Done()
			_, _ = f.scheduler.Create(ctx, model.Showtime{MovieID: m.ID, Theater: r.theater, StartTime: r.start, EndTime: r.end, Price: 5})
		}(r)
	}
	wg.Wait()

	accepted := f.db.sortedShowtimes()
	require.NotEmpty(t, accepted)
	for i, a := range accepted {
		assert.GreaterOrEqual(t, a.Length(), 30*time.Minute)
		for _, b := range accepted[i+1:] {
			if a.Theater == b.Theater {
				assert.False(t, model.Overlaps(a.StartTime, a.EndTime, b.StartTime, b.EndTime),
					"showtimes %d and %d overlap in %s", a.ID, b.ID, a.Theater)
			}
		}
	}
}
