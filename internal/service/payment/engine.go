// Package payment owns checkout sessions: creating provider orders,
// reconciling their status against the provider, and materializing tickets
// upstream once the money arrives.
package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hoangtm/cinebook/internal/backend"
	"github.com/hoangtm/cinebook/internal/domain"
	"github.com/hoangtm/cinebook/internal/payos"
)

// Provider is the PayOS surface the engine needs.
type Provider interface {
	CreateOrder(ctx context.Context, token string, req payos.CreateOrderRequest) (*payos.CheckoutInfo, error)
	CheckOrder(ctx context.Context, token string, orderCode int64) (string, error)
}

// TicketCreator materializes a single ticket upstream.
type TicketCreator interface {
	CreateTicket(ctx context.Context, token string, req backend.CreateTicketRequest) (*domain.Ticket, error)
}

// TicketKeeper records tickets on our side after materialization.
type TicketKeeper interface {
	Append(ctx context.Context, userID int64, tickets []domain.Ticket) error
}

// Publisher announces settled payments to whoever listens.
type Publisher interface {
	PublishSettled(ctx context.Context, sess *domain.PaymentSession) error
}

// Limiter throttles order creation per user.
type Limiter interface {
	Allow(ctx context.Context, id string) (bool, time.Duration, error)
}

type Config struct {
	PollInterval time.Duration
	SessionTTL   time.Duration
	TicketDelay  time.Duration
}

func (c *Config) withDefaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = 3 * time.Second
	}
	if c.SessionTTL <= 0 {
		c.SessionTTL = 900 * time.Second
	}
	if c.TicketDelay < 0 {
		c.TicketDelay = 0
	}
}

// Engine tracks live payment sessions. Each session gets its own reconciler
// goroutine; the engine itself is just the registry and the entry points.
// Sessions live in memory: the authoritative money state is the provider's,
// and a restart simply stops reconciling orders nobody can reach anymore.
type Engine struct {
	provider Provider
	tickets  TicketCreator
	keeper   TicketKeeper
	pub      Publisher
	limiter  Limiter
	log      *slog.Logger
	cfg      Config

	now       func() time.Time
	orderCode func() int64

	mu      sync.Mutex
	root    context.Context
	byOrder map[int64]*Reconciler
}

func NewEngine(provider Provider, tickets TicketCreator, keeper TicketKeeper, pub Publisher, limiter Limiter, log *slog.Logger, cfg Config) *Engine {
	cfg.withDefaults()

	return &Engine{
		provider:  provider,
		tickets:   tickets,
		keeper:    keeper,
		pub:       pub,
		limiter:   limiter,
		log:       log,
		cfg:       cfg,
		now:       time.Now,
		orderCode: func() int64 { return time.Now().UnixMilli() },
		root:      context.Background(),
		byOrder:   make(map[int64]*Reconciler),
	}
}

// Run parents every reconciler to ctx and blocks until it is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	e.mu.Lock()
	e.root = ctx
	e.mu.Unlock()

	<-ctx.Done()

	e.mu.Lock()
	for _, r := range e.byOrder {
		r.stop()
	}
	e.mu.Unlock()

	return ctx.Err()
}

// CreateOrder registers a checkout attempt with the provider and starts
// reconciling it. A provider rejection comes straight back to the caller;
// no session is registered, so the cart stays retryable.
func (e *Engine) CreateOrder(ctx context.Context, sess domain.Session, cart *domain.Cart) (*domain.PaymentSession, error) {
	const op = "service.payment.CreateOrder"

	if cart == nil || len(cart.Seats) == 0 {
		return nil, fmt.Errorf("%s: %w", op, ErrEmptyCart)
	}
	amount := cart.Total()
	if amount <= 0 {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidAmount)
	}

	if e.limiter != nil {
		ok, retryAfter, err := e.limiter.Allow(ctx, fmt.Sprintf("%d", sess.UserID))
		if err != nil {
			e.log.Warn("payment rate limiter unavailable", "error", err)
		} else if !ok {
			return nil, fmt.Errorf("%s: retry after %s: %w", op, retryAfter, ErrRateLimited)
		}
	}

	orderCode := e.orderCode()

	req := payos.CreateOrderRequest{
		OrderCode:   orderCode,
		Amount:      amount,
		Description: fmt.Sprintf("CineBook order %d", orderCode),
		Items:       orderItems(cart),
	}

	info, err := e.provider.CreateOrder(ctx, sess.Token, req)
	if err != nil {
		var perr *payos.ProviderError
		if errors.As(err, &perr) {
			e.log.Warn("provider rejected order",
				"order_code", orderCode, "code", perr.Code, "desc", perr.Desc)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	now := e.now()
	ps := &domain.PaymentSession{
		OrderCode:   orderCode,
		UserID:      sess.UserID,
		Amount:      amount,
		Description: req.Description,
		CheckoutURL: info.CheckoutURL,
		QRCode:      info.QRCode,
		CreatedAt:   now,
		ExpiresAt:   now.Add(e.cfg.SessionTTL),
		Status:      domain.PaymentPending,
	}

	r := newReconciler(e, ps, cart, sess.Token)

	e.mu.Lock()
	e.byOrder[orderCode] = r
	root := e.root
	e.mu.Unlock()

	r.start(root, e.cfg.PollInterval)

	e.log.Info("payment session created",
		"order_code", orderCode, "user_id", sess.UserID, "amount", amount)

	return ps.Clone(), nil
}

// Get returns the current session snapshot and any tickets materialized so
// far. Sessions belonging to other users read as not found.
func (e *Engine) Get(ctx context.Context, sess domain.Session, orderCode int64) (*domain.PaymentSession, []domain.Ticket, error) {
	const op = "service.payment.Get"

	r, err := e.reconciler(sess, orderCode)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	ps, tickets := r.snapshot()
	return ps, tickets, nil
}

// Check forces a reconciliation step right now, for the manual re-check
// button, and returns the resulting snapshot.
func (e *Engine) Check(ctx context.Context, sess domain.Session, orderCode int64) (*domain.PaymentSession, []domain.Ticket, error) {
	const op = "service.payment.Check"

	r, err := e.reconciler(sess, orderCode)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	if _, err := r.Tick(ctx); err != nil {
		e.log.Warn("manual payment check failed", "order_code", orderCode, "error", err)
	}

	ps, tickets := r.snapshot()
	return ps, tickets, nil
}

// Teardown stops reconciling a session and drops it from the registry. The
// provider-side order is left as is.
func (e *Engine) Teardown(ctx context.Context, sess domain.Session, orderCode int64) error {
	const op = "service.payment.Teardown"

	r, err := e.reconciler(sess, orderCode)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	r.stop()

	e.mu.Lock()
	delete(e.byOrder, orderCode)
	e.mu.Unlock()

	e.log.Info("payment session torn down", "order_code", orderCode)

	return nil
}

func (e *Engine) reconciler(sess domain.Session, orderCode int64) (*Reconciler, error) {
	e.mu.Lock()
	r, ok := e.byOrder[orderCode]
	e.mu.Unlock()

	if !ok || r.userID() != sess.UserID {
		return nil, ErrPaymentNotFound
	}

	return r, nil
}

// orderItems flattens the cart for the provider: one line per seat, plus a
// single aggregate concessions line.
func orderItems(cart *domain.Cart) []payos.Item {
	items := make([]payos.Item, 0, len(cart.Seats)+1)
	for _, seat := range cart.Seats {
		items = append(items, payos.Item{
			Name:     fmt.Sprintf("Seat %s%d", seat.Row, seat.Number),
			Quantity: 1,
			Price:    seat.SeatPrice(cart.ShowPrice),
		})
	}
	if cart.FoodTotal > 0 {
		items = append(items, payos.Item{
			Name:     "Concessions",
			Quantity: 1,
			Price:    cart.FoodTotal,
		})
	}
	return items
}
