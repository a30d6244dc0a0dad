package payment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hoangtm/cinebook/internal/backend"
	"github.com/hoangtm/cinebook/internal/domain"
	"github.com/hoangtm/cinebook/internal/monitoring"
	"github.com/hoangtm/cinebook/internal/payos"
)

// Reconciler drives one payment session to a terminal state. Tick is the
// whole algorithm; the background loop just calls it on an interval. All
// state transitions happen inside Tick under the lock, so concurrent ticks
// (the loop plus a manual check) cannot double-apply anything.
type Reconciler struct {
	engine *Engine
	token  string
	cart   *domain.Cart

	mu           sync.Mutex
	sess         *domain.PaymentSession
	tickets      []domain.Ticket
	materialized bool

	stopOnce sync.Once
	stopCh   chan struct{}
}

func newReconciler(e *Engine, sess *domain.PaymentSession, cart *domain.Cart, token string) *Reconciler {
	return &Reconciler{
		engine: e,
		token:  token,
		cart:   cart,
		sess:   sess,
		stopCh: make(chan struct{}),
	}
}

func (r *Reconciler) userID() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sess.UserID
}

func (r *Reconciler) snapshot() (*domain.PaymentSession, []domain.Ticket) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tickets := make([]domain.Ticket, len(r.tickets))
	copy(tickets, r.tickets)

	return r.sess.Clone(), tickets
}

func (r *Reconciler) start(ctx context.Context, interval time.Duration) {
	go r.run(ctx, interval)
}

func (r *Reconciler) stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
}

func (r *Reconciler) run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopCh:
			return
		case <-ticker.C:
			status, err := r.Tick(ctx)
			if err != nil {
				r.engine.log.Warn("payment poll failed",
					"order_code", r.orderCode(), "error", err)
				continue
			}
			if status.Terminal() {
				return
			}
		}
	}
}

// Tick advances the session one step: expire it if its deadline passed,
// otherwise poll the provider and settle on a paid status. Terminal states
// absorb: once reached, Tick returns them unchanged without touching the
// provider again.
func (r *Reconciler) Tick(ctx context.Context) (domain.PaymentStatus, error) {
	const op = "service.payment.Tick"

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sess.Status.Terminal() {
		return r.sess.Status, nil
	}

	now := r.engine.now()
	if !now.Before(r.sess.ExpiresAt) {
		r.advanceLocked(domain.PaymentExpired, "payment window elapsed")
		return r.sess.Status, nil
	}

	monitoring.PaymentPolled()

	raw, err := r.engine.provider.CheckOrder(ctx, r.token, r.sess.OrderCode)
	if err != nil {
		return r.sess.Status, fmt.Errorf("%s: %w", op, err)
	}

	if !payos.Paid(raw) {
		return r.sess.Status, nil
	}

	r.advanceLocked(domain.PaymentPaid, "")
	r.materializeLocked(ctx)

	return r.sess.Status, nil
}

// advanceLocked moves the session status forward if the transition is legal
// and emits the settled notification for terminal states.
func (r *Reconciler) advanceLocked(next domain.PaymentStatus, reason string) {
	if !r.sess.Status.CanAdvance(next) {
		return
	}

	r.sess.Status = next
	r.sess.Reason = reason

	if !next.Terminal() {
		return
	}

	monitoring.PaymentOutcome(next)

	r.engine.log.Info("payment session settled",
		"order_code", r.sess.OrderCode, "status", string(next), "reason", reason)

	if r.engine.pub != nil {
		// Fire and forget: pubsub failing must not fail settlement.
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := r.engine.pub.PublishSettled(ctx, r.sess.Clone()); err != nil {
			r.engine.log.Warn("publish settled failed",
				"order_code", r.sess.OrderCode, "error", err)
		}
	}
}

// materializeLocked creates one upstream ticket per paid seat, exactly once
// for the session's lifetime. A seat conflict skips that seat and carries on;
// any other error aborts the batch, keeping what was already created. If not
// a single ticket could be created the session keeps its paid status but
// carries a reason telling the user to contact support.
func (r *Reconciler) materializeLocked(ctx context.Context) {
	if r.materialized {
		return
	}
	r.materialized = true

	var created []domain.Ticket
	var skipped int

	for i, seat := range r.cart.Seats {
		if i > 0 && r.engine.cfg.TicketDelay > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(r.engine.cfg.TicketDelay):
			}
			if ctx.Err() != nil {
				break
			}
		}

		t, err := r.engine.tickets.CreateTicket(ctx, r.token, backend.CreateTicketRequest{
			ShowtimeID: r.cart.ShowtimeID,
			SeatID:     seat.ID,
			UserID:     r.sess.UserID,
		})
		if err != nil {
			if errors.Is(err, backend.ErrSeatTaken) {
				skipped++
				monitoring.TicketSkipped()
				r.engine.log.Warn("seat taken during materialization",
					"order_code", r.sess.OrderCode, "seat_id", seat.ID)
				continue
			}

			r.engine.log.Error("ticket creation aborted",
				"order_code", r.sess.OrderCode, "seat_id", seat.ID, "error", err)
			break
		}

		created = append(created, *t)
	}

	r.tickets = created
	monitoring.TicketsMaterialized(len(created))

	switch {
	case len(created) == 0:
		r.sess.Reason = "payment received but no tickets could be created, contact support"
	case len(created) < len(r.cart.Seats):
		r.sess.Reason = fmt.Sprintf("%d of %d seats could not be booked", len(r.cart.Seats)-len(created), len(r.cart.Seats))
	}

	if len(created) > 0 && r.engine.keeper != nil {
		if err := r.engine.keeper.Append(ctx, r.sess.UserID, created); err != nil {
			r.engine.log.Warn("ticket cache append failed",
				"order_code", r.sess.OrderCode, "error", err)
		}
	}
}

func (r *Reconciler) orderCode() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sess.OrderCode
}
