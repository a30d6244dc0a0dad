package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/hoangtm/cinebook/internal/domain"
	"github.com/hoangtm/cinebook/internal/repository"
)

// TicketCache keeps a per-user copy of materialized tickets so the ticket
// list survives the upstream listing endpoint being unreachable. The cache
// has no TTL: it is the fallback source of truth, not a hot-path cache.
type TicketCache struct {
	rdb *redis.Client
}

func NewTicketCache(rdb *redis.Client) *TicketCache {
	return &TicketCache{rdb: rdb}
}

func (c *TicketCache) Get(ctx context.Context, userID int64) ([]domain.Ticket, error) {
	const op = "repository.redis.TicketCache.Get"

	raw, err := c.rdb.Get(ctx, KeyUserTickets(userID)).Result()
	if err == redis.Nil {
		return nil, fmt.Errorf("%s: %w", op, repository.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var tickets []domain.Ticket
	if err := json.Unmarshal([]byte(raw), &tickets); err != nil {
		return nil, fmt.Errorf("%s: json.Unmarshal: %w", op, err)
	}

	return tickets, nil
}

// Replace overwrites the cached list with a fresh upstream snapshot.
func (c *TicketCache) Replace(ctx context.Context, userID int64, tickets []domain.Ticket) error {
	const op = "repository.redis.TicketCache.Replace"

	b, err := json.Marshal(tickets)
	if err != nil {
		return fmt.Errorf("%s: json.Marshal: %w", op, err)
	}

	if err := c.rdb.Set(ctx, KeyUserTickets(userID), b, 0).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Append adds freshly created tickets to the cached list. Read-modify-write
// rather than blind overwrite, so entries written by another flow in the
// meantime survive. Duplicate ticket IDs are dropped. Best effort, not
// transactional.
func (c *TicketCache) Append(ctx context.Context, userID int64, tickets []domain.Ticket) error {
	const op = "repository.redis.TicketCache.Append"

	existing, err := c.Get(ctx, userID)
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("%s: %w", op, err)
	}

	seen := make(map[int64]struct{}, len(existing))
	for _, t := range existing {
		seen[t.ID] = struct{}{}
	}

	merged := existing
	for _, t := range tickets {
		if _, ok := seen[t.ID]; ok {
			continue
		}
		merged = append(merged, t)
	}

	if err := c.Replace(ctx, userID, merged); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func isNotFound(err error) bool {
	return errors.Is(err, repository.ErrNotFound)
}
