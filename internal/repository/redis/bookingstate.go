package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hoangtm/cinebook/internal/domain"
	"github.com/hoangtm/cinebook/internal/repository"
)

// StateStore persists in-progress wizard state as JSON. Each save refreshes
// the idle TTL, so abandoned bookings age out on their own.
type StateStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewStateStore(rdb *redis.Client, ttl time.Duration) *StateStore {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}

	return &StateStore{rdb: rdb, ttl: ttl}
}

func (s *StateStore) Get(ctx context.Context, id string) (*domain.BookingState, error) {
	const op = "repository.redis.StateStore.Get"

	raw, err := s.rdb.Get(ctx, KeyBookingState(id)).Result()
	if err == redis.Nil {
		return nil, fmt.Errorf("%s: %w", op, repository.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var st domain.BookingState
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		return nil, fmt.Errorf("%s: json.Unmarshal: %w", op, err)
	}

	return &st, nil
}

func (s *StateStore) Save(ctx context.Context, st *domain.BookingState) error {
	const op = "repository.redis.StateStore.Save"

	b, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("%s: json.Marshal: %w", op, err)
	}

	if err := s.rdb.Set(ctx, KeyBookingState(st.ID.String()), b, s.ttl).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *StateStore) Delete(ctx context.Context, id string) error {
	const op = "repository.redis.StateStore.Delete"

	if err := s.rdb.Del(ctx, KeyBookingState(id)).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
