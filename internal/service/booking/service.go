// Package booking implements the seat/food selection wizard: an ordered
// sequence of stages that accumulates a cart and releases it to the payment
// engine only once it is internally consistent.
package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hoangtm/cinebook/internal/domain"
	"github.com/hoangtm/cinebook/internal/monitoring"
	"github.com/hoangtm/cinebook/internal/repository"
	redisrepo "github.com/hoangtm/cinebook/internal/repository/redis"
)

// Catalog is the read side of the upstream cinema API.
type Catalog interface {
	ListMovies(ctx context.Context, token string) ([]domain.Movie, error)
	ListShowtimes(ctx context.Context, token string) ([]domain.Showtime, error)
	ListRoomSeats(ctx context.Context, token string, roomID int64) ([]domain.Seat, error)
}

// StateStore persists wizard state between requests.
type StateStore interface {
	Get(ctx context.Context, id string) (*domain.BookingState, error)
	Save(ctx context.Context, st *domain.BookingState) error
	Delete(ctx context.Context, id string) error
}

type Config struct {
	CatalogTTL time.Duration
}

type Service struct {
	catalog Catalog
	store   StateStore
	cache   *redisrepo.Cache
	cfg     Config
	now     func() time.Time
}

func New(catalog Catalog, store StateStore, cache *redisrepo.Cache, cfg Config) *Service {
	if cfg.CatalogTTL <= 0 {
		cfg.CatalogTTL = 60 * time.Second
	}

	return &Service{
		catalog: catalog,
		store:   store,
		cache:   cache,
		cfg:     cfg,
		now:     time.Now,
	}
}

// Start opens a fresh wizard at the movie-selection stage.
func (s *Service) Start(ctx context.Context, sess domain.Session) (*domain.BookingState, error) {
	const op = "service.booking.Start"

	st := &domain.BookingState{
		ID:        uuid.New(),
		UserID:    sess.UserID,
		Stage:     domain.StageSelectMovie,
		UpdatedAt: s.now(),
	}

	if err := s.store.Save(ctx, st); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	monitoring.StageEntered(domain.StageSelectMovie)

	return st, nil
}

// Get loads a wizard owned by the caller. Somebody else's booking reads as
// not found.
func (s *Service) Get(ctx context.Context, sess domain.Session, id string) (*domain.BookingState, error) {
	const op = "service.booking.Get"

	st, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrBookingNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if st.UserID != sess.UserID {
		return nil, fmt.Errorf("%s: %w", op, ErrBookingNotFound)
	}

	return st, nil
}

// Movies lists what is currently on screen.
func (s *Service) Movies(ctx context.Context, sess domain.Session) ([]domain.Movie, error) {
	const op = "service.booking.Movies"

	movies, err := s.cachedMovies(ctx, sess.Token)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var showing []domain.Movie
	for _, m := range movies {
		if m.Status == domain.MovieNowShowing {
			showing = append(showing, m)
		}
	}

	return showing, nil
}

// Showtimes lists upcoming showtimes for the movie chosen in the wizard.
func (s *Service) Showtimes(ctx context.Context, sess domain.Session, id string) ([]domain.Showtime, error) {
	const op = "service.booking.Showtimes"

	st, err := s.Get(ctx, sess, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if st.Movie == nil {
		return nil, fmt.Errorf("%s: %w", op, ErrWrongStage)
	}

	shows, err := s.futureShowtimes(ctx, sess.Token, st.Movie.ID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return shows, nil
}

// ChooseMovie picks a movie and advances to showtime selection. The guard:
// the movie must be on screen and have at least one upcoming showtime.
// Picking a different movie than before invalidates every downstream
// selection.
func (s *Service) ChooseMovie(ctx context.Context, sess domain.Session, id string, movieID int64) (*domain.BookingState, error) {
	const op = "service.booking.ChooseMovie"

	st, err := s.Get(ctx, sess, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	movies, err := s.cachedMovies(ctx, sess.Token)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var movie *domain.Movie
	for i := range movies {
		if movies[i].ID == movieID && movies[i].Status == domain.MovieNowShowing {
			movie = &movies[i]
			break
		}
	}
	if movie == nil {
		return nil, fmt.Errorf("%s: %w", op, ErrMovieNotFound)
	}

	shows, err := s.futureShowtimes(ctx, sess.Token, movieID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if len(shows) == 0 {
		return nil, fmt.Errorf("%s: %w", op, ErrNoFutureShowtimes)
	}

	if st.Movie == nil || st.Movie.ID != movieID {
		st.Showtime = nil
		st.SeatMap = nil
		st.SeatIDs = nil
		st.FoodLines = nil
	}
	st.Movie = movie
	st.Stage = domain.StageSelectShowtime

	if err := s.save(ctx, st); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return st, nil
}

// ChooseShowtime picks a showtime of the chosen movie, fetches the seat map
// of its room and advances to seat selection. Switching showtimes drops the
// seat and food selections so seats always belong to the current room.
func (s *Service) ChooseShowtime(ctx context.Context, sess domain.Session, id string, showtimeID int64) (*domain.BookingState, error) {
	const op = "service.booking.ChooseShowtime"

	st, err := s.Get(ctx, sess, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if st.Movie == nil || stageRank(st.Stage) < stageRank(domain.StageSelectShowtime) {
		return nil, fmt.Errorf("%s: %w", op, ErrWrongStage)
	}

	shows, err := s.cachedShowtimes(ctx, sess.Token)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var show *domain.Showtime
	for i := range shows {
		if shows[i].ID == showtimeID && shows[i].Movie.ID == st.Movie.ID {
			show = &shows[i]
			break
		}
	}
	if show == nil {
		return nil, fmt.Errorf("%s: %w", op, ErrShowtimeNotFound)
	}
	if !show.StartTime.After(s.now()) {
		return nil, fmt.Errorf("%s: %w", op, ErrShowtimeStarted)
	}

	changed := st.Showtime == nil || st.Showtime.ID != showtimeID
	if changed {
		seats, err := s.cachedSeatMap(ctx, sess.Token, show.Room.ID)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		st.SeatMap = seats
		st.SeatIDs = nil
		st.FoodLines = nil
	}
	st.Showtime = show
	st.Stage = domain.StageSelectSeats

	if err := s.save(ctx, st); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return st, nil
}

// SeatMap returns the cached seat map of the chosen showtime's room.
func (s *Service) SeatMap(ctx context.Context, sess domain.Session, id string) ([]domain.Seat, error) {
	const op = "service.booking.SeatMap"

	st, err := s.Get(ctx, sess, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if st.Showtime == nil {
		return nil, fmt.Errorf("%s: %w", op, ErrWrongStage)
	}

	return st.SeatMap, nil
}

// ChooseSeats records the seat selection and advances to food selection.
// The selection must be non-empty, belong to the current room, and contain
// only seats the upstream reports as available.
func (s *Service) ChooseSeats(ctx context.Context, sess domain.Session, id string, seatIDs []int64) (*domain.BookingState, error) {
	const op = "service.booking.ChooseSeats"

	st, err := s.Get(ctx, sess, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if st.Showtime == nil || stageRank(st.Stage) < stageRank(domain.StageSelectSeats) {
		return nil, fmt.Errorf("%s: %w", op, ErrWrongStage)
	}

	// Dedupe while keeping the map lookup one pass.
	uniq := make([]int64, 0, len(seatIDs))
	seen := make(map[int64]struct{}, len(seatIDs))
	for _, sid := range seatIDs {
		if _, ok := seen[sid]; ok {
			continue
		}
		seen[sid] = struct{}{}
		uniq = append(uniq, sid)
	}
	if len(uniq) == 0 {
		return nil, fmt.Errorf("%s: %w", op, ErrNoSeatsSelected)
	}

	byID := make(map[int64]domain.Seat, len(st.SeatMap))
	for _, seat := range st.SeatMap {
		byID[seat.ID] = seat
	}
	for _, sid := range uniq {
		seat, ok := byID[sid]
		if !ok {
			return nil, fmt.Errorf("%s: seat %d: %w", op, sid, ErrUnknownSeat)
		}
		if seat.Status != domain.SeatAvailable {
			return nil, fmt.Errorf("%s: seat %d: %w", op, sid, ErrSeatUnavailable)
		}
	}

	st.SeatIDs = uniq
	st.Stage = domain.StageSelectFood

	if err := s.save(ctx, st); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return st, nil
}

// ChooseFood records concession lines and marks the wizard Ready. Food is
// optional: an empty selection is a valid one.
func (s *Service) ChooseFood(ctx context.Context, sess domain.Session, id string, lines map[int64]int) (*domain.BookingState, error) {
	const op = "service.booking.ChooseFood"

	st, err := s.Get(ctx, sess, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if stageRank(st.Stage) < stageRank(domain.StageSelectFood) {
		return nil, fmt.Errorf("%s: %w", op, ErrWrongStage)
	}

	clean := make(map[int64]int, len(lines))
	for itemID, qty := range lines {
		if qty <= 0 {
			return nil, fmt.Errorf("%s: item %d: %w", op, itemID, ErrBadQuantity)
		}
		if _, ok := foodItem(itemID); !ok {
			return nil, fmt.Errorf("%s: item %d: %w", op, itemID, ErrUnknownFoodItem)
		}
		clean[itemID] = qty
	}

	st.FoodLines = clean
	st.Stage = domain.StageReady

	if err := s.save(ctx, st); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return st, nil
}

// Back steps one stage backwards. Selections are kept; they are invalidated
// only when a different movie or showtime is picked afterwards.
func (s *Service) Back(ctx context.Context, sess domain.Session, id string) (*domain.BookingState, error) {
	const op = "service.booking.Back"

	st, err := s.Get(ctx, sess, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	switch st.Stage {
	case domain.StageReady:
		st.Stage = domain.StageSelectFood
	case domain.StageSelectFood:
		st.Stage = domain.StageSelectSeats
	case domain.StageSelectSeats:
		st.Stage = domain.StageSelectShowtime
	case domain.StageSelectShowtime:
		st.Stage = domain.StageSelectMovie
	case domain.StageSelectMovie:
		// Nowhere further back to go.
	}

	if err := s.save(ctx, st); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return st, nil
}

// Totals prices the current selection: per-seat prices with the VIP
// surcharge, plus concession lines.
func (s *Service) Totals(st *domain.BookingState) (ticket, food, total int64) {
	if st.Showtime != nil {
		for _, seat := range st.SelectedSeats() {
			ticket += seat.SeatPrice(st.Showtime.Price)
		}
	}
	food = foodTotal(st.FoodLines)
	return ticket, food, ticket + food
}

// Cart freezes a Ready wizard into the cart handed to the payment engine.
// The wizard state itself stays put until Discard; the payment screen only
// consumes the cart once the provider accepted the order.
func (s *Service) Cart(ctx context.Context, sess domain.Session, id string) (*domain.Cart, error) {
	const op = "service.booking.Cart"

	st, err := s.Get(ctx, sess, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if st.Stage != domain.StageReady || st.Showtime == nil {
		return nil, fmt.Errorf("%s: %w", op, ErrNotReady)
	}

	seats := st.SelectedSeats()
	if len(seats) == 0 {
		return nil, fmt.Errorf("%s: %w", op, ErrNoSeatsSelected)
	}

	return &domain.Cart{
		ShowtimeID: st.Showtime.ID,
		ShowPrice:  st.Showtime.Price,
		Seats:      seats,
		FoodLines:  st.FoodLines,
		FoodTotal:  foodTotal(st.FoodLines),
	}, nil
}

// Discard drops the wizard state, ending the booking's life on our side.
func (s *Service) Discard(ctx context.Context, sess domain.Session, id string) error {
	const op = "service.booking.Discard"

	if _, err := s.Get(ctx, sess, id); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Service) save(ctx context.Context, st *domain.BookingState) error {
	st.UpdatedAt = s.now()
	if err := s.store.Save(ctx, st); err != nil {
		return err
	}
	monitoring.StageEntered(st.Stage)
	return nil
}

func (s *Service) futureShowtimes(ctx context.Context, token string, movieID int64) ([]domain.Showtime, error) {
	shows, err := s.cachedShowtimes(ctx, token)
	if err != nil {
		return nil, err
	}

	now := s.now()
	var out []domain.Showtime
	for _, sh := range shows {
		if sh.Movie.ID == movieID && sh.StartTime.After(now) {
			out = append(out, sh)
		}
	}

	return out, nil
}

func (s *Service) cachedMovies(ctx context.Context, token string) ([]domain.Movie, error) {
	if s.cache == nil {
		return s.catalog.ListMovies(ctx, token)
	}

	return redisrepo.GetOrSetJSON(ctx, s.cache, redisrepo.KeyMovieCatalog(), s.cfg.CatalogTTL,
		func(ctx context.Context) ([]domain.Movie, error) {
			return s.catalog.ListMovies(ctx, token)
		})
}

func (s *Service) cachedShowtimes(ctx context.Context, token string) ([]domain.Showtime, error) {
	if s.cache == nil {
		return s.catalog.ListShowtimes(ctx, token)
	}

	return redisrepo.GetOrSetJSON(ctx, s.cache, redisrepo.KeyShowtimeCatalog(), s.cfg.CatalogTTL,
		func(ctx context.Context) ([]domain.Showtime, error) {
			return s.catalog.ListShowtimes(ctx, token)
		})
}

func (s *Service) cachedSeatMap(ctx context.Context, token string, roomID int64) ([]domain.Seat, error) {
	if s.cache == nil {
		return s.catalog.ListRoomSeats(ctx, token, roomID)
	}

	return redisrepo.GetOrSetJSON(ctx, s.cache, redisrepo.KeyRoomSeatMap(roomID), s.cfg.CatalogTTL,
		func(ctx context.Context) ([]domain.Seat, error) {
			return s.catalog.ListRoomSeats(ctx, token, roomID)
		})
}

func stageRank(st domain.Stage) int {
	switch st {
	case domain.StageSelectMovie:
		return 0
	case domain.StageSelectShowtime:
		return 1
	case domain.StageSelectSeats:
		return 2
	case domain.StageSelectFood:
		return 3
	case domain.StageReady:
		return 4
	}
	return -1
}
