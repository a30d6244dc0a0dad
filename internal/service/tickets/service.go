// Package tickets serves a user's ticket wallet, preferring the upstream's
// view and falling back to the locally cached copy when the upstream is
// unreachable.
package tickets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hoangtm/cinebook/internal/domain"
	"github.com/hoangtm/cinebook/internal/repository"
)

var ErrNoTickets = errors.New("no tickets")

// Lister is the upstream ticket listing.
type Lister interface {
	ListUserTickets(ctx context.Context, token string, userID int64) ([]domain.Ticket, error)
}

// Cache is the local per-user ticket copy.
type Cache interface {
	Get(ctx context.Context, userID int64) ([]domain.Ticket, error)
	Replace(ctx context.Context, userID int64, tickets []domain.Ticket) error
}

type Service struct {
	lister Lister
	cache  Cache
	log    *slog.Logger
}

func New(lister Lister, cache Cache, log *slog.Logger) *Service {
	return &Service{lister: lister, cache: cache, log: log}
}

// List returns the user's tickets. The upstream answer wins and refreshes
// the cache; when the upstream fails, the cached copy is served instead so
// a backend outage does not make already-bought tickets disappear.
func (s *Service) List(ctx context.Context, sess domain.Session) ([]domain.Ticket, error) {
	const op = "service.tickets.List"

	tickets, err := s.lister.ListUserTickets(ctx, sess.Token, sess.UserID)
	if err == nil {
		if s.cache != nil && len(tickets) > 0 {
			if cerr := s.cache.Replace(ctx, sess.UserID, tickets); cerr != nil {
				s.log.Warn("ticket cache refresh failed", "user_id", sess.UserID, "error", cerr)
			}
		}
		return tickets, nil
	}

	if s.cache == nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Warn("upstream ticket listing failed, serving cache",
		"user_id", sess.UserID, "error", err)

	cached, cerr := s.cache.Get(ctx, sess.UserID)
	if cerr != nil {
		if errors.Is(cerr, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return nil, fmt.Errorf("%s: %w", op, cerr)
	}

	return cached, nil
}
