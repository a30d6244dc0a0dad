package tickets

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hoangtm/cinebook/internal/domain"
	"github.com/hoangtm/cinebook/internal/repository"
)

type fakeLister struct {
	tickets []domain.Ticket
	err     error
}

func (f *fakeLister) ListUserTickets(ctx context.Context, token string, userID int64) ([]domain.Ticket, error) {
	return f.tickets, f.err
}

type fakeCache struct {
	tickets  []domain.Ticket
	replaced []domain.Ticket
}

func (f *fakeCache) Get(ctx context.Context, userID int64) ([]domain.Ticket, error) {
	if f.tickets == nil {
		return nil, repository.ErrNotFound
	}
	return f.tickets, nil
}

func (f *fakeCache) Replace(ctx context.Context, userID int64, tickets []domain.Ticket) error {
	f.replaced = tickets
	return nil
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestListUpstreamWinsAndRefreshesCache(t *testing.T) {
	upstream := []domain.Ticket{{ID: 1}, {ID: 2}}
	cache := &fakeCache{tickets: []domain.Ticket{{ID: 1}}}
	svc := New(&fakeLister{tickets: upstream}, cache, discard())

	got, err := svc.List(context.Background(), domain.Session{UserID: 42})
	require.NoError(t, err)
	assert.Equal(t, upstream, got)
	assert.Equal(t, upstream, cache.replaced)
}

func TestListFallsBackToCache(t *testing.T) {
	cached := []domain.Ticket{{ID: 7}}
	svc := New(&fakeLister{err: fmt.Errorf("upstream down")}, &fakeCache{tickets: cached}, discard())

	got, err := svc.List(context.Background(), domain.Session{UserID: 42})
	require.NoError(t, err)
	assert.Equal(t, cached, got)
}

func TestListFailsWhenBothEmpty(t *testing.T) {
	svc := New(&fakeLister{err: fmt.Errorf("upstream down")}, &fakeCache{}, discard())

	_, err := svc.List(context.Background(), domain.Session{UserID: 42})
	assert.ErrorContains(t, err, "upstream down")
}
