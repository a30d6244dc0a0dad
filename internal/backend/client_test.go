package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hoangtm/cinebook/internal/domain"
)

func TestListRoomSeats(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/customer/seats/room/7", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"id":1,"rowSeat":"A","number":1,"type":"NORMAL","status":"AVAILABLE"},
			{"id":2,"rowSeat":"A","number":2,"type":"VIP","status":"BOOKED"}
		]`))
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)

	seats, err := c.ListRoomSeats(context.Background(), "tok", 7)
	require.NoError(t, err)
	require.Len(t, seats, 2)
	assert.Equal(t, "A", seats[0].Row)
	assert.Equal(t, domain.SeatVIP, seats[1].Type)
	assert.Equal(t, domain.SeatBooked, seats[1].Status)
}

func TestListMoviesUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)

	_, err := c.ListMovies(context.Background(), "stale")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestCreateTicket(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/customer/tickets", r.URL.Path)

		var req CreateTicketRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, int64(10), req.ShowtimeID)
		assert.Equal(t, int64(3), req.SeatID)
		assert.Equal(t, int64(42), req.UserID)

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(domain.Ticket{ID: 99, SeatID: req.SeatID, Status: domain.TicketBooked})
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)

	ticket, err := c.CreateTicket(context.Background(), "tok", CreateTicketRequest{
		ShowtimeID: 10, SeatID: 3, UserID: 42,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(99), ticket.ID)
}

func TestCreateTicketConflict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)

	_, err := c.CreateTicket(context.Background(), "tok", CreateTicketRequest{ShowtimeID: 10, SeatID: 3, UserID: 42})
	assert.ErrorIs(t, err, ErrSeatTaken)
}

func TestCreateTicketServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)

	_, err := c.CreateTicket(context.Background(), "tok", CreateTicketRequest{ShowtimeID: 10, SeatID: 3, UserID: 42})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrSeatTaken)
}
