package redis

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hoangtm/cinebook/internal/domain"
	"github.com/hoangtm/cinebook/internal/repository"
)

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func TestTicketCacheGetMiss(t *testing.T) {
	db, mock := redismock.NewClientMock()
	cache := NewTicketCache(db)

	mock.ExpectGet(KeyUserTickets(42)).RedisNil()

	_, err := cache.Get(context.Background(), 42)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTicketCacheAppendToEmpty(t *testing.T) {
	db, mock := redismock.NewClientMock()
	cache := NewTicketCache(db)

	fresh := []domain.Ticket{{ID: 1, SeatID: 3, Status: domain.TicketBooked}}

	mock.ExpectGet(KeyUserTickets(42)).RedisNil()
	mock.ExpectSet(KeyUserTickets(42), mustJSON(t, fresh), 0).SetVal("OK")

	err := cache.Append(context.Background(), 42, fresh)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTicketCacheAppendMergesAndDedupes(t *testing.T) {
	db, mock := redismock.NewClientMock()
	cache := NewTicketCache(db)

	existing := []domain.Ticket{{ID: 1, SeatID: 3, Status: domain.TicketBooked}}
	fresh := []domain.Ticket{
		{ID: 1, SeatID: 3, Status: domain.TicketBooked}, // already cached
		{ID: 2, SeatID: 4, Status: domain.TicketBooked},
	}
	merged := []domain.Ticket{existing[0], fresh[1]}

	mock.ExpectGet(KeyUserTickets(42)).SetVal(string(mustJSON(t, existing)))
	mock.ExpectSet(KeyUserTickets(42), mustJSON(t, merged), 0).SetVal("OK")

	err := cache.Append(context.Background(), 42, fresh)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTicketCacheReplace(t *testing.T) {
	db, mock := redismock.NewClientMock()
	cache := NewTicketCache(db)

	tickets := []domain.Ticket{{ID: 7}, {ID: 8}}

	mock.ExpectSet(KeyUserTickets(42), mustJSON(t, tickets), 0).SetVal("OK")

	require.NoError(t, cache.Replace(context.Background(), 42, tickets))
	assert.NoError(t, mock.ExpectationsWereMet())
}
