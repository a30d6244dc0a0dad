package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hoangtm/cinebook/internal/backend"
	"github.com/hoangtm/cinebook/internal/config"
	"github.com/hoangtm/cinebook/internal/domain"
	"github.com/hoangtm/cinebook/internal/payos"
	"github.com/hoangtm/cinebook/internal/redis"
	redisrepo "github.com/hoangtm/cinebook/internal/repository/redis"
	"github.com/hoangtm/cinebook/internal/service"
	"github.com/hoangtm/cinebook/internal/service/booking"
	"github.com/hoangtm/cinebook/internal/service/payment"
	httpgin "github.com/hoangtm/cinebook/internal/transport/http/gin"
)

type App struct {
	cfg        *config.Config
	logger     *slog.Logger
	httpServer *http.Server
	payments   *payment.Engine
	pubsub     *redisrepo.PaymentsPubSub
}

func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	// Initialize dependencies
	rdb, err := redis.New(context.Background(), redis.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize redis: %w", err)
	}

	backendClient := backend.New(cfg.Backend.BaseURL, cfg.Backend.Timeout)
	payosClient := payos.New(cfg.PayOS.BaseURL, cfg.PayOS.Timeout)

	// Initialize repositories
	states := redisrepo.NewStateStore(rdb, cfg.Booking.StateTTL)
	cache := redisrepo.NewCache(rdb)
	ticketCache := redisrepo.NewTicketCache(rdb)
	pubsub := redisrepo.NewPaymentsPubSub(rdb)
	limiter := redisrepo.NewSlidingWindowLimiter(rdb, "pay", 10, 1*time.Minute)

	// Initialize services
	services := service.NewServices(backendClient, payosClient, states, cache, ticketCache, pubsub, limiter, logger, service.Config{
		Booking: booking.Config{CatalogTTL: cfg.Booking.CatalogTTL},
		Payment: payment.Config{
			PollInterval: cfg.Engine.PollInterval,
			SessionTTL:   cfg.Engine.SessionTTL,
			TicketDelay:  cfg.Engine.TicketDelay,
		},
	})

	// Initialize Gin router
	router := httpgin.NewRouter(services, logger)

	return &App{
		cfg:    cfg,
		logger: logger,
		httpServer: &http.Server{
			Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
			Handler: router,
		},
		payments: services.Payment,
		pubsub:   pubsub,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	g, gCtx := errgroup.WithContext(ctx)

	// Start HTTP server
	g.Go(func() error {
		a.logger.Info("HTTP server listening", "host", a.cfg.Server.Host, "port", a.cfg.Server.Port)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
		return nil
	})

	// Payment reconciliation engine
	g.Go(func() error {
		if err := a.payments.Run(gCtx); err != nil && err != context.Canceled {
			return fmt.Errorf("payment engine stopped: %w", err)
		}
		return nil
	})

	// Settled-payment notifications, logged for operators
	g.Go(func() error {
		err := a.pubsub.Subscribe(gCtx, func(ctx context.Context, orderCode int64, status domain.PaymentStatus) {
			a.logger.Info("payment settled", "order_code", orderCode, "status", string(status))
		})
		if err != nil && err != context.Canceled {
			return fmt.Errorf("payments subscription stopped: %w", err)
		}
		return nil
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gCtx.Done()
		a.logger.Info("shutting down HTTP server")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return a.httpServer.Shutdown(ctx)
	})

	return g.Wait()
}
