package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server  ServerConfig
	Backend BackendConfig
	PayOS   PayOSConfig
	Redis   RedisConfig
	Engine  EngineConfig
	Booking BookingConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type BackendConfig struct {
	BaseURL string
	Timeout time.Duration
}

type PayOSConfig struct {
	BaseURL string
	Timeout time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// EngineConfig holds the payment reconciliation knobs. Defaults follow the
// PayOS checkout contract: a 15 minute session window polled every 3 seconds.
type EngineConfig struct {
	PollInterval time.Duration
	SessionTTL   time.Duration
	TicketDelay  time.Duration
}

type BookingConfig struct {
	StateTTL   time.Duration
	CatalogTTL time.Duration
}

func New() (*Config, error) {
	const op = "config.New"

	_ = godotenv.Load()

	serverHost := os.Getenv("SERVER_HOST")
	if serverHost == "" {
		serverHost = "localhost"
	}

	serverPortStr := os.Getenv("SERVER_PORT")
	if serverPortStr == "" {
		serverPortStr = "8080"
	}

	serverPort, err := strconv.Atoi(serverPortStr)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid SERVER_PORT: %w", op, err)
	}

	backendURL := os.Getenv("BACKEND_BASE_URL")
	if backendURL == "" {
		return nil, fmt.Errorf("%s: missing BACKEND_BASE_URL", op)
	}

	backendTimeout, err := durationEnv("BACKEND_TIMEOUT", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	payosURL := os.Getenv("PAYOS_BASE_URL")
	if payosURL == "" {
		payosURL = backendURL
	}

	payosTimeout, err := durationEnv("PAYOS_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	redisDBStr := os.Getenv("REDIS_DB")
	if redisDBStr == "" {
		redisDBStr = "0"
	}

	redisDB, err := strconv.Atoi(redisDBStr)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid REDIS_DB: %w", op, err)
	}

	pollInterval, err := durationEnv("PAYMENT_POLL_INTERVAL", 3*time.Second)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	sessionTTL, err := durationEnv("PAYMENT_SESSION_TTL", 900*time.Second)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	ticketDelay, err := durationEnv("TICKET_CREATE_DELAY", 200*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	stateTTL, err := durationEnv("BOOKING_STATE_TTL", 30*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	catalogTTL, err := durationEnv("CATALOG_CACHE_TTL", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Config{
		Server: ServerConfig{
			Host: serverHost,
			Port: serverPort,
		},
		Backend: BackendConfig{
			BaseURL: backendURL,
			Timeout: backendTimeout,
		},
		PayOS: PayOSConfig{
			BaseURL: payosURL,
			Timeout: payosTimeout,
		},
		Redis: RedisConfig{
			Addr:     redisAddr,
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Engine: EngineConfig{
			PollInterval: pollInterval,
			SessionTTL:   sessionTTL,
			TicketDelay:  ticketDelay,
		},
		Booking: BookingConfig{
			StateTTL:   stateTTL,
			CatalogTTL: catalogTTL,
		},
	}, nil
}

func durationEnv(name string, def time.Duration) (time.Duration, error) {
	s := os.Getenv(name)
	if s == "" {
		return def, nil
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}

	return d, nil
}
