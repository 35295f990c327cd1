package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/calmspace/practice/libs/config"
	"github.com/calmspace/practice/services/scheduling-service/internal/scheduling"
)

const (
	driverMemory   = "memory"
	driverPostgres = "postgres"
)

type settings struct {
	Service  string
	Port     string
	GRPCPort string

	StorageDriver string
	DatabaseURL   string
	DBMaxConns    int
	KafkaBrokers  string

	JWTSecret     string
	JWKSURL       string
	JWKSCacheTTL  time.Duration
	JWTIssuer     string
	WebhookSecret string

	Scheduling scheduling.Config

	RedisAddr         string
	RedisPassword     string
	RateLimitPerMin   int
	RateLimitFailOpen bool

	BodyLimit      int64
	RequestTimeout time.Duration
	CORS           []string
}

func loadSettings() (settings, error) {
	s := settings{
		Service:       config.String("SERVICE_NAME", "scheduling-service"),
		StorageDriver: strings.ToLower(config.String("STORAGE_DRIVER", driverPostgres)),
		DatabaseURL:   config.String("DATABASE_URL", ""),
		DBMaxConns:    config.Int("DB_MAX_CONNS", 10),
		KafkaBrokers:  config.String("KAFKA_BROKERS", ""),

		JWTSecret:     config.String("JWT_SECRET", ""),
		JWKSURL:       config.String("JWKS_URL", ""),
		JWKSCacheTTL:  config.Duration("JWKS_CACHE_SECONDS", 5*time.Minute),
		JWTIssuer:     config.String("JWT_ISSUER", ""),
		WebhookSecret: config.String("STRIPE_WEBHOOK_SECRET", ""),

		RedisAddr:         config.String("REDIS_ADDR", ""),
		RedisPassword:     config.String("REDIS_PASSWORD", ""),
		RateLimitPerMin:   config.Int("RATE_LIMIT_PER_MINUTE", 60),
		RateLimitFailOpen: config.Bool("RATE_LIMIT_FAIL_OPEN", true),

		BodyLimit:      int64(config.Int("REQUEST_BODY_LIMIT_BYTES", 1<<20)),
		RequestTimeout: config.Duration("REQUEST_TIMEOUT_SECONDS", 10*time.Second),
		CORS:           config.List("CORS_ALLOWED_ORIGINS", ""),
	}

	var err error
	if s.Port, err = config.Port("PORT", "8080"); err != nil {
		return settings{}, err
	}
	if s.GRPCPort, err = config.Port("GRPC_PORT", "9080"); err != nil {
		return settings{}, err
	}

	switch s.StorageDriver {
	case driverMemory:
	case driverPostgres:
		if s.DatabaseURL == "" {
			return settings{}, fmt.Errorf("DATABASE_URL is required for the %s driver", driverPostgres)
		}
	default:
		return settings{}, fmt.Errorf("unknown STORAGE_DRIVER %q", s.StorageDriver)
	}
	if s.JWTSecret == "" && s.JWKSURL == "" {
		return settings{}, fmt.Errorf("one of JWT_SECRET or JWKS_URL is required")
	}

	loc, err := time.LoadLocation(config.String("PRACTICE_TIMEZONE", "UTC"))
	if err != nil {
		return settings{}, fmt.Errorf("PRACTICE_TIMEZONE: %w", err)
	}
	s.Scheduling = scheduling.Config{
		AllowSundayBookings: config.Bool("ALLOW_SUNDAY_BOOKINGS", false),
		SlotMinutes:         config.Int("SLOT_MINUTES", 60),
		EnforceHours:        config.Bool("ENFORCE_HOURS", true),
		Location:            loc,
	}
	return s, nil
}
