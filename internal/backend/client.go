// Package backend is the HTTP client for the upstream cinema REST API. The
// gateway owns no movie, showtime, seat or ticket records; this client is the
// only way they are read or written.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hoangtm/cinebook/internal/domain"
)

var (
	// ErrUnauthorized means the upstream rejected the bearer token. There is
	// no token refresh; the caller has to sign in again.
	ErrUnauthorized = errors.New("session expired")

	// ErrSeatTaken is the 409 response to ticket creation: somebody else got
	// the seat first.
	ErrSeatTaken = errors.New("seat already taken")

	ErrNotFound = errors.New("not found")
)

type Client struct {
	baseURL string
	hc      *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &Client{
		baseURL: baseURL,
		hc:      &http.Client{Timeout: timeout},
	}
}

// ListMovies returns the movie catalog. The upstream endpoint is unfiltered;
// callers that only want what is on screen filter by status themselves.
func (c *Client) ListMovies(ctx context.Context, token string) ([]domain.Movie, error) {
	const op = "backend.ListMovies"

	var movies []domain.Movie
	if err := c.get(ctx, token, "/customer/movies", &movies); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return movies, nil
}

// ListShowtimes returns every published showtime. Movie filtering happens on
// our side; the upstream has no query parameter for it.
func (c *Client) ListShowtimes(ctx context.Context, token string) ([]domain.Showtime, error) {
	const op = "backend.ListShowtimes"

	var showtimes []domain.Showtime
	if err := c.get(ctx, token, "/customer/showtimes", &showtimes); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return showtimes, nil
}

// ListRoomSeats returns the full seat map of a room, taken and free alike.
func (c *Client) ListRoomSeats(ctx context.Context, token string, roomID int64) ([]domain.Seat, error) {
	const op = "backend.ListRoomSeats"

	var seats []domain.Seat
	if err := c.get(ctx, token, fmt.Sprintf("/customer/seats/room/%d", roomID), &seats); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return seats, nil
}

type CreateTicketRequest struct {
	ShowtimeID int64 `json:"showtimeId"`
	SeatID     int64 `json:"seatId"`
	UserID     int64 `json:"userId"`
}

// CreateTicket materializes one ticket for one seat. A 409 maps to
// ErrSeatTaken so the caller can skip the seat and keep going.
func (c *Client) CreateTicket(ctx context.Context, token string, req CreateTicketRequest) (*domain.Ticket, error) {
	const op = "backend.CreateTicket"

	b, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("%s: json.Marshal: %w", op, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/customer/tickets", bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("%s: http.NewRequestWithContext: %w", op, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.hc.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
	case http.StatusConflict:
		return nil, fmt.Errorf("%s: %w", op, ErrSeatTaken)
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, fmt.Errorf("%s: %w", op, ErrUnauthorized)
	default:
		rbody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%s: resp.StatusCode: %d, resp.Body: %s", op, resp.StatusCode, rbody)
	}

	var ticket domain.Ticket
	if err := json.NewDecoder(resp.Body).Decode(&ticket); err != nil {
		return nil, fmt.Errorf("%s: json.Decode: %w", op, err)
	}

	return &ticket, nil
}

// ListUserTickets returns the upstream's view of a user's tickets.
func (c *Client) ListUserTickets(ctx context.Context, token string, userID int64) ([]domain.Ticket, error) {
	const op = "backend.ListUserTickets"

	var tickets []domain.Ticket
	if err := c.get(ctx, token, fmt.Sprintf("/customer/tickets/user/%d", userID), &tickets); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return tickets, nil
}

func (c *Client) get(ctx context.Context, token, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("http.NewRequestWithContext: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrUnauthorized
	case http.StatusNotFound:
		return ErrNotFound
	default:
		rbody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("resp.StatusCode: %d, resp.Body: %s", resp.StatusCode, rbody)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("json.Decode: %w", err)
	}

	return nil
}
