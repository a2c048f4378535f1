package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/popcorn-palace/internal/model"
	"github.com/iliyamo/popcorn-palace/internal/queue"
	"github.com/iliyamo/popcorn-palace/internal/repository"
)

// memDB is an in-memory store that enforces the same constraints as the SQL
// schema: unique case-folded titles, unique (showtime, seat), unique booking
// ids, parent rows for every child and atomic overlap checks per write.
type memDB struct {
	mu         sync.Mutex
	nextID     uint64
	movies     map[uint64]model.Movie
	showtimes  map[uint64]model.Showtime
	tickets    map[uint64]model.Ticket
	failDelete error
}

func newMemDB() *memDB {
	return &memDB{
		movies:    map[uint64]model.Movie{},
		showtimes: map[uint64]model.Showtime{},
		tickets:   map[uint64]model.Ticket{},
	}
}

func (db *memDB) id() uint64 {
	db.nextID++
	return db.nextID
}

type fakeMovies struct{ db *memDB }

func (f *fakeMovies) List(ctx context.Context) ([]model.Movie, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	out := make([]model.Movie, 0, len(f.db.movies))
	for _, m := range f.db.movies {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeMovies) GetByID(ctx context.Context, id uint64) (*model.Movie, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	m, ok := f.db.movies[id]
	if !ok {
		return nil, repository.ErrMovieNotFound
	}
	return &m, nil
}

func (f *fakeMovies) GetByTitle(ctx context.Context, title string) (*model.Movie, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for _, m := range f.db.movies {
		if strings.EqualFold(m.Title, title) {
			return &m, nil
		}
	}
	return nil, repository.ErrMovieNotFound
}

func (f *fakeMovies) TitleTaken(ctx context.Context, title string, excludeID uint64) (bool, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	return f.db.titleTaken(title, excludeID), nil
}

func (db *memDB) titleTaken(title string, excludeID uint64) bool {
	for _, m := range db.movies {
		if m.ID != excludeID && strings.EqualFold(m.Title, title) {
			return true
		}
	}
	return false
}

func (f *fakeMovies) Create(ctx context.Context, m *model.Movie) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if f.db.titleTaken(m.Title, 0) {
		return repository.ErrDuplicateTitle
	}
	m.ID = f.db.id()
	f.db.movies[m.ID] = *m
	return nil
}

func (f *fakeMovies) Update(ctx context.Context, m *model.Movie) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if _, ok := f.db.movies[m.ID]; !ok {
		return repository.ErrMovieNotFound
	}
	if f.db.titleTaken(m.Title, m.ID) {
		return repository.ErrDuplicateTitle
	}
	f.db.movies[m.ID] = *m
	return nil
}

func (f *fakeMovies) DeleteCascade(ctx context.Context, id uint64) ([]model.CancelledShowtime, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if f.db.failDelete != nil {
		return nil, f.db.failDelete
	}
	if _, ok := f.db.movies[id]; !ok {
		return nil, repository.ErrMovieNotFound
	}
	var out []model.CancelledShowtime
	for _, s := range f.db.sortedShowtimes() {
		if s.MovieID == id {
			out = append(out, f.db.removeShowtime(s))
		}
	}
	delete(f.db.movies, id)
	return out, nil
}

func (db *memDB) sortedShowtimes() []model.Showtime {
	out := make([]model.Showtime, 0, len(db.showtimes))
	for _, s := range db.showtimes {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (db *memDB) removeShowtime(s model.Showtime) model.CancelledShowtime {
	c := model.CancelledShowtime{ShowtimeID: s.ID, MovieID: s.MovieID, Theater: s.Theater}
	ids := make([]uint64, 0)
	for id, t := range db.tickets {
		if t.ShowtimeID == s.ID {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		c.BookingIDs = append(c.BookingIDs, db.tickets[id].BookingID)
		delete(db.tickets, id)
	}
	delete(db.showtimes, s.ID)
	return c
}

type fakeShowtimes struct{ db *memDB }

func (f *fakeShowtimes) GetDetail(ctx context.Context, id uint64) (*model.ShowtimeDetail, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	s, ok := f.db.showtimes[id]
	if !ok {
		return nil, repository.ErrShowtimeNotFound
	}
	m := f.db.movies[s.MovieID]
	return &model.ShowtimeDetail{Showtime: s, MovieTitle: m.Title, MovieReleaseYear: m.ReleaseYear}, nil
}

func (f *fakeShowtimes) Exists(ctx context.Context, id uint64) (bool, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	_, ok := f.db.showtimes[id]
	return ok, nil
}

func (db *memDB) conflicts(s model.Showtime) []model.Showtime {
	var out []model.Showtime
	for _, o := range db.sortedShowtimes() {
		if o.ID != s.ID && s.Conflicts(o) {
			out = append(out, o)
		}
	}
	return out
}

func (f *fakeShowtimes) Create(ctx context.Context, s *model.Showtime) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if c := f.db.conflicts(*s); len(c) > 0 {
		return &repository.OverlapError{Theater: s.Theater, Conflicts: c}
	}
	if _, ok := f.db.movies[s.MovieID]; !ok {
		return repository.ErrMovieNotFound
	}
	s.ID = f.db.id()
	f.db.showtimes[s.ID] = *s
	return nil
}

func (f *fakeShowtimes) Update(ctx context.Context, s *model.Showtime) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if _, ok := f.db.showtimes[s.ID]; !ok {
		return repository.ErrShowtimeNotFound
	}
	if c := f.db.conflicts(*s); len(c) > 0 {
		return &repository.OverlapError{Theater: s.Theater, Conflicts: c}
	}
	if _, ok := f.db.movies[s.MovieID]; !ok {
		return repository.ErrMovieNotFound
	}
	f.db.showtimes[s.ID] = *s
	return nil
}

func (f *fakeShowtimes) DeleteCascade(ctx context.Context, id uint64) (*model.CancelledShowtime, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	s, ok := f.db.showtimes[id]
	if !ok {
		return nil, repository.ErrShowtimeNotFound
	}
	c := f.db.removeShowtime(s)
	return &c, nil
}

type fakeTickets struct {
	db *memDB
	// blind makes SeatTaken always answer false, as if a concurrent writer
	// slipped in between the pre-check and the insert.
	blind   bool
	creates int
}

func (f *fakeTickets) SeatTaken(ctx context.Context, showtimeID uint64, seat int) (bool, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if f.blind {
		return false, nil
	}
	for _, t := range f.db.tickets {
		if t.ShowtimeID == showtimeID && t.SeatNumber == seat {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeTickets) Create(ctx context.Context, t *model.Ticket) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	f.creates++
	for _, o := range f.db.tickets {
		if o.ShowtimeID == t.ShowtimeID && o.SeatNumber == t.SeatNumber {
			return repository.ErrSeatTaken
		}
		if o.BookingID == t.BookingID {
			return repository.ErrDuplicateBookingID
		}
	}
	if _, ok := f.db.showtimes[t.ShowtimeID]; !ok {
		return repository.ErrShowtimeNotFound
	}
	t.ID = f.db.id()
	f.db.tickets[t.ID] = *t
	return nil
}

func (f *fakeTickets) count() int {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	return len(f.db.tickets)
}

type fakeEvents struct {
	mu        sync.Mutex
	booked    []queue.TicketBookedEvent
	cancelled []queue.ShowtimeCancelledEvent
}

func (f *fakeEvents) TicketBooked(ctx context.Context, ev queue.TicketBookedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.booked = append(f.booked, ev)
	return nil
}

func (f *fakeEvents) ShowtimeCancelled(ctx context.Context, ev queue.ShowtimeCancelledEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, ev)
	return nil
}

// fixture wires the three services over one memDB.
type fixture struct {
	db        *memDB
	movies    *fakeMovies
	showtimes *fakeShowtimes
	tickets   *fakeTickets
	events    *fakeEvents
	catalog   *Catalog
	scheduler *Scheduler
	booking   *Reservations
}

func newFixture() *fixture {
	db := newMemDB()
	f := &fixture{
		db:        db,
		movies:    &fakeMovies{db: db},
		showtimes: &fakeShowtimes{db: db},
		tickets:   &fakeTickets{db: db},
		events:    &fakeEvents{},
	}
	f.catalog = NewCatalog(f.movies, f.events)
	f.scheduler = NewScheduler(f.movies, f.showtimes, f.events)
	f.booking = NewReservations(f.showtimes, f.tickets, f.events)
	return f
}

func ptr[T any](v T) *T { return &v }

func at(hour, min int) time.Time {
	return time.Date(2025, 3, 1, hour, min, 0, 0, time.UTC)
}

func (f *fixture) movie(title string, duration int) *model.Movie {
	m, err := f.catalog.Create(context.Background(), model.Movie{
		Title: title, Genre: "Drama", Duration: duration, Rating: ptr(7.5), ReleaseYear: 2020,
	})
	if err != nil {
		panic(err)
	}
	return m
}

func (f *fixture) showtime(movieID uint64, theater string, start, end time.Time) *model.ShowtimeDetail {
	s, err := f.scheduler.Create(context.Background(), model.Showtime{
		MovieID: movieID, Theater: theater, StartTime: start, EndTime: end, Price: 10,
	})
	if err != nil {
		panic(err)
	}
	return s
}
