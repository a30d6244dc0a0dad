package payment

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hoangtm/cinebook/internal/backend"
	"github.com/hoangtm/cinebook/internal/domain"
	"github.com/hoangtm/cinebook/internal/payos"
)

type fakeProvider struct {
	mu         sync.Mutex
	status     string
	createErr  error
	checkErr   error
	checkCalls int
}

func (f *fakeProvider) CreateOrder(ctx context.Context, token string, req payos.CreateOrderRequest) (*payos.CheckoutInfo, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &payos.CheckoutInfo{
		CheckoutURL: fmt.Sprintf("https://pay.example/%d", req.OrderCode),
		QRCode:      "qr-data",
	}, nil
}

func (f *fakeProvider) CheckOrder(ctx context.Context, token string, orderCode int64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checkCalls++
	if f.checkErr != nil {
		return "", f.checkErr
	}
	return f.status, nil
}

func (f *fakeProvider) setStatus(s string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status = s
}

func (f *fakeProvider) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.checkCalls
}

type fakeTickets struct {
	mu     sync.Mutex
	taken  map[int64]bool
	failOn int64
	calls  int
	nextID int64
}

func (f *fakeTickets) CreateTicket(ctx context.Context, token string, req backend.CreateTicketRequest) (*domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	if f.taken[req.SeatID] {
		return nil, backend.ErrSeatTaken
	}
	if f.failOn != 0 && req.SeatID == f.failOn {
		return nil, fmt.Errorf("backend unavailable")
	}

	f.nextID++
	return &domain.Ticket{
		ID:         f.nextID,
		ShowtimeID: req.ShowtimeID,
		SeatID:     req.SeatID,
		UserID:     req.UserID,
		Status:     domain.TicketBooked,
	}, nil
}

func (f *fakeTickets) created() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeKeeper struct {
	mu      sync.Mutex
	appends [][]domain.Ticket
}

func (f *fakeKeeper) Append(ctx context.Context, userID int64, tickets []domain.Ticket) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appends = append(f.appends, tickets)
	return nil
}

type fakeLimiter struct{ allow bool }

func (f *fakeLimiter) Allow(ctx context.Context, id string) (bool, time.Duration, error) {
	return f.allow, 30 * time.Second, nil
}

var testStart = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func testCart() *domain.Cart {
	return &domain.Cart{
		ShowtimeID: 10,
		ShowPrice:  85000,
		Seats: []domain.Seat{
			{ID: 1, Row: "A", Number: 1, Type: domain.SeatNormal, Status: domain.SeatAvailable},
			{ID: 2, Row: "A", Number: 2, Type: domain.SeatVIP, Status: domain.SeatAvailable},
		},
	}
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestEngine(p *fakeProvider, tk *fakeTickets) (*Engine, *fakeKeeper, *clock) {
	keeper := &fakeKeeper{}
	clk := &clock{t: testStart}

	e := NewEngine(p, tk, keeper, nil, nil,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		Config{PollInterval: time.Hour, SessionTTL: 900 * time.Second})
	e.now = clk.now

	var next int64 = 1000
	e.orderCode = func() int64 { next++; return next }

	return e, keeper, clk
}

func createSession(t *testing.T, e *Engine, cart *domain.Cart) *domain.PaymentSession {
	t.Helper()
	ps, err := e.CreateOrder(context.Background(), domain.Session{UserID: 42, Token: "tok"}, cart)
	require.NoError(t, err)
	return ps
}

func TestCreateOrderAmountAndHandle(t *testing.T) {
	e, _, _ := newTestEngine(&fakeProvider{status: "PENDING"}, &fakeTickets{})

	ps := createSession(t, e, testCart())

	// One normal seat at 85000 and one VIP at 105000.
	assert.Equal(t, int64(190000), ps.Amount)
	assert.Equal(t, domain.PaymentPending, ps.Status)
	assert.NotEmpty(t, ps.CheckoutURL)
	assert.Equal(t, testStart.Add(900*time.Second), ps.ExpiresAt)
}

func TestCreateOrderEmptyCart(t *testing.T) {
	e, _, _ := newTestEngine(&fakeProvider{}, &fakeTickets{})

	_, err := e.CreateOrder(context.Background(), domain.Session{UserID: 42}, &domain.Cart{})
	assert.ErrorIs(t, err, ErrEmptyCart)
}

func TestCreateOrderNonPositiveTotal(t *testing.T) {
	e, _, _ := newTestEngine(&fakeProvider{}, &fakeTickets{})

	cart := testCart()
	cart.ShowPrice = 0
	cart.Seats = []domain.Seat{{ID: 1, Row: "A", Number: 1, Type: domain.SeatNormal}}

	_, err := e.CreateOrder(context.Background(), domain.Session{UserID: 42}, cart)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestCreateOrderProviderRejection(t *testing.T) {
	p := &fakeProvider{createErr: &payos.ProviderError{Code: "13", Desc: "merchant suspended"}}
	e, _, _ := newTestEngine(p, &fakeTickets{})

	_, err := e.CreateOrder(context.Background(), domain.Session{UserID: 42}, testCart())
	require.Error(t, err)

	var perr *payos.ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "13", perr.Code)

	// No session registered, so nothing to find afterwards.
	e.mu.Lock()
	assert.Empty(t, e.byOrder)
	e.mu.Unlock()
}

func TestCreateOrderRateLimited(t *testing.T) {
	e, _, _ := newTestEngine(&fakeProvider{}, &fakeTickets{})
	e.limiter = &fakeLimiter{allow: false}

	_, err := e.CreateOrder(context.Background(), domain.Session{UserID: 42}, testCart())
	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestGetOwnership(t *testing.T) {
	e, _, _ := newTestEngine(&fakeProvider{status: "PENDING"}, &fakeTickets{})
	ps := createSession(t, e, testCart())

	_, _, err := e.Get(context.Background(), domain.Session{UserID: 7}, ps.OrderCode)
	assert.ErrorIs(t, err, ErrPaymentNotFound)

	_, _, err = e.Get(context.Background(), domain.Session{UserID: 42}, 999999)
	assert.ErrorIs(t, err, ErrPaymentNotFound)
}

func TestTickSettlesAndMaterializesOnce(t *testing.T) {
	ctx := context.Background()
	p := &fakeProvider{status: "PENDING"}
	tk := &fakeTickets{}
	e, keeper, _ := newTestEngine(p, tk)

	ps := createSession(t, e, testCart())
	r, err := e.reconciler(domain.Session{UserID: 42}, ps.OrderCode)
	require.NoError(t, err)

	status, err := r.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentPending, status)

	p.setStatus("paid") // mixed case on purpose

	status, err = r.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentPaid, status)
	assert.Equal(t, 2, tk.calls)

	// Further paid polls change nothing and create nothing.
	for i := 0; i < 5; i++ {
		status, err = r.Tick(ctx)
		require.NoError(t, err)
		assert.Equal(t, domain.PaymentPaid, status)
	}
	assert.Equal(t, 2, tk.calls)

	got, tickets, err := e.Get(ctx, domain.Session{UserID: 42}, ps.OrderCode)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentPaid, got.Status)
	assert.Empty(t, got.Reason)
	require.Len(t, tickets, 2)

	require.Len(t, keeper.appends, 1)
	assert.Len(t, keeper.appends[0], 2)
}

func TestTickPartialSeatConflict(t *testing.T) {
	ctx := context.Background()
	p := &fakeProvider{status: "PAID"}
	tk := &fakeTickets{taken: map[int64]bool{2: true}}
	e, _, _ := newTestEngine(p, tk)

	cart := testCart()
	cart.Seats = append(cart.Seats, domain.Seat{ID: 3, Row: "A", Number: 3, Type: domain.SeatNormal})

	ps := createSession(t, e, cart)
	r, err := e.reconciler(domain.Session{UserID: 42}, ps.OrderCode)
	require.NoError(t, err)

	status, err := r.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentPaid, status)

	_, tickets, err := e.Get(ctx, domain.Session{UserID: 42}, ps.OrderCode)
	require.NoError(t, err)
	assert.Len(t, tickets, 2, "the conflicted seat is skipped, the rest are booked")

	got, _, _ := e.Get(ctx, domain.Session{UserID: 42}, ps.OrderCode)
	assert.Equal(t, "1 of 3 seats could not be booked", got.Reason)
}

func TestTickAllSeatsConflict(t *testing.T) {
	ctx := context.Background()
	p := &fakeProvider{status: "COMPLETED"}
	tk := &fakeTickets{taken: map[int64]bool{1: true, 2: true}}
	e, keeper, _ := newTestEngine(p, tk)

	ps := createSession(t, e, testCart())
	r, err := e.reconciler(domain.Session{UserID: 42}, ps.OrderCode)
	require.NoError(t, err)

	status, err := r.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentPaid, status)

	got, tickets, err := e.Get(ctx, domain.Session{UserID: 42}, ps.OrderCode)
	require.NoError(t, err)
	assert.Empty(t, tickets)
	assert.Contains(t, got.Reason, "contact support")
	assert.Empty(t, keeper.appends, "nothing created, nothing cached")
}

func TestTickAbortsBatchOnBackendError(t *testing.T) {
	ctx := context.Background()
	p := &fakeProvider{status: "PAID"}
	tk := &fakeTickets{failOn: 2}
	e, _, _ := newTestEngine(p, tk)

	cart := testCart()
	cart.Seats = append(cart.Seats, domain.Seat{ID: 3, Row: "A", Number: 3, Type: domain.SeatNormal})

	ps := createSession(t, e, cart)
	r, err := e.reconciler(domain.Session{UserID: 42}, ps.OrderCode)
	require.NoError(t, err)

	_, err = r.Tick(ctx)
	require.NoError(t, err)

	// Seat 1 succeeded, seat 2 failed hard, seat 3 was never attempted.
	_, tickets, err := e.Get(ctx, domain.Session{UserID: 42}, ps.OrderCode)
	require.NoError(t, err)
	require.Len(t, tickets, 1)
	assert.Equal(t, int64(1), tickets[0].SeatID)
	assert.Equal(t, 2, tk.calls)
}

func TestTickExpiry(t *testing.T) {
	ctx := context.Background()
	p := &fakeProvider{status: "PENDING"}
	tk := &fakeTickets{}
	e, _, clk := newTestEngine(p, tk)

	ps := createSession(t, e, testCart())
	r, err := e.reconciler(domain.Session{UserID: 42}, ps.OrderCode)
	require.NoError(t, err)

	clk.advance(899 * time.Second)
	status, err := r.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentPending, status, "one second before the deadline is still live")

	clk.advance(time.Second)
	status, err = r.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentExpired, status)

	// Expired absorbs even if the provider would now report paid.
	p.setStatus("PAID")
	status, err = r.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentExpired, status)
	assert.Zero(t, tk.calls)
}

func TestTickPollErrorKeepsPending(t *testing.T) {
	ctx := context.Background()
	p := &fakeProvider{checkErr: fmt.Errorf("gateway timeout")}
	e, _, _ := newTestEngine(p, &fakeTickets{})

	ps := createSession(t, e, testCart())
	r, err := e.reconciler(domain.Session{UserID: 42}, ps.OrderCode)
	require.NoError(t, err)

	status, err := r.Tick(ctx)
	require.Error(t, err)
	assert.Equal(t, domain.PaymentPending, status)
}

func TestTeardown(t *testing.T) {
	ctx := context.Background()
	e, _, _ := newTestEngine(&fakeProvider{status: "PENDING"}, &fakeTickets{})

	ps := createSession(t, e, testCart())
	sess := domain.Session{UserID: 42}

	require.NoError(t, e.Teardown(ctx, sess, ps.OrderCode))

	_, _, err := e.Get(ctx, sess, ps.OrderCode)
	assert.ErrorIs(t, err, ErrPaymentNotFound)

	assert.ErrorIs(t, e.Teardown(ctx, sess, ps.OrderCode), ErrPaymentNotFound)
}

func TestTeardownStopsPolling(t *testing.T) {
	ctx := context.Background()
	p := &fakeProvider{status: "PENDING"}
	tk := &fakeTickets{}
	clk := &clock{t: testStart}

	e := NewEngine(p, tk, &fakeKeeper{}, nil, nil,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		Config{PollInterval: 5 * time.Millisecond, SessionTTL: 900 * time.Second})
	e.now = clk.now

	ps := createSession(t, e, testCart())
	sess := domain.Session{UserID: 42}

	require.Eventually(t, func() bool { return p.calls() >= 3 },
		time.Second, time.Millisecond, "loop never started polling")

	require.NoError(t, e.Teardown(ctx, sess, ps.OrderCode))

	// Let any in-flight tick drain, then the count must hold still.
	time.Sleep(20 * time.Millisecond)
	after := p.calls()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, after, p.calls(), "provider polled after teardown")
	assert.Zero(t, tk.created())
}

func TestLoopStopsOnTerminalStatus(t *testing.T) {
	p := &fakeProvider{status: "PENDING"}
	tk := &fakeTickets{}
	clk := &clock{t: testStart}

	e := NewEngine(p, tk, &fakeKeeper{}, nil, nil,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		Config{PollInterval: 5 * time.Millisecond, SessionTTL: 900 * time.Second})
	e.now = clk.now

	ps := createSession(t, e, testCart())
	sess := domain.Session{UserID: 42}

	p.setStatus("PAID")

	require.Eventually(t, func() bool {
		got, _, err := e.Get(context.Background(), sess, ps.OrderCode)
		return err == nil && got.Status == domain.PaymentPaid
	}, time.Second, time.Millisecond)

	// Settled sessions are not polled again.
	time.Sleep(20 * time.Millisecond)
	after := p.calls()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, after, p.calls(), "provider polled after settlement")
	assert.Equal(t, 2, tk.created())
}

func TestCheckForcesTick(t *testing.T) {
	ctx := context.Background()
	p := &fakeProvider{status: "PAID"}
	tk := &fakeTickets{}
	e, _, _ := newTestEngine(p, tk)

	ps := createSession(t, e, testCart())

	got, tickets, err := e.Check(ctx, domain.Session{UserID: 42, Token: "tok"}, ps.OrderCode)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentPaid, got.Status)
	assert.Len(t, tickets, 2)
}
