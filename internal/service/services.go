package service

import (
	"log/slog"

	"github.com/hoangtm/cinebook/internal/backend"
	"github.com/hoangtm/cinebook/internal/payos"
	redisrepo "github.com/hoangtm/cinebook/internal/repository/redis"
	"github.com/hoangtm/cinebook/internal/service/booking"
	"github.com/hoangtm/cinebook/internal/service/payment"
	"github.com/hoangtm/cinebook/internal/service/tickets"
)

type Services struct {
	Booking *booking.Service
	Payment *payment.Engine
	Tickets *tickets.Service
}

type Config struct {
	Booking booking.Config
	Payment payment.Config
}

func NewServices(
	backendClient *backend.Client,
	payosClient *payos.Client,
	states *redisrepo.StateStore,
	cache *redisrepo.Cache,
	ticketCache *redisrepo.TicketCache,
	pubsub *redisrepo.PaymentsPubSub,
	limiter *redisrepo.SlidingWindowLimiter,
	log *slog.Logger,
	cfg Config,
) *Services {
	return &Services{
		Booking: booking.New(backendClient, states, cache, cfg.Booking),
		Payment: payment.NewEngine(payosClient, backendClient, ticketCache, pubsub, limiter, log, cfg.Payment),
		Tickets: tickets.New(backendClient, ticketCache, log),
	}
}
