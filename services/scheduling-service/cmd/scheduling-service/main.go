package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"
	_ "time/tzdata"

	"github.com/calmspace/practice/libs/auth"
	"github.com/calmspace/practice/libs/config"
	"github.com/calmspace/practice/libs/db"
	"github.com/calmspace/practice/libs/grpcx"
	"github.com/calmspace/practice/libs/httpx"
	"github.com/calmspace/practice/libs/kafkax"
	otelx "github.com/calmspace/practice/libs/otel"
	"github.com/calmspace/practice/libs/runtime"
	"github.com/calmspace/practice/services/scheduling-service/internal/handlers"
	"github.com/calmspace/practice/services/scheduling-service/internal/model"
	"github.com/calmspace/practice/services/scheduling-service/internal/outbox"
	"github.com/calmspace/practice/services/scheduling-service/internal/scheduling"
	"github.com/calmspace/practice/services/scheduling-service/internal/storage"
	"github.com/calmspace/practice/services/scheduling-service/internal/storage/memory"
	"github.com/calmspace/practice/services/scheduling-service/internal/storage/postgres"
	"github.com/calmspace/practice/services/scheduling-service/migrations"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	if err := config.Load(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	rootCmd := &cobra.Command{
		Use:          "scheduling-service",
		Short:        "Practice appointments, availability and schedule API",
		SilenceUsage: true,
	}
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP and gRPC servers",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := runtime.SignalContext()
			defer stop()
			return runServer(ctx)
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd.Context(), func(ctx context.Context, m *db.Migrator) error {
				count, err := m.Up(ctx)
				if err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s).\n", count)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd.Context(), func(ctx context.Context, m *db.Migrator) error {
				statuses, err := m.Status(ctx)
				if err != nil {
					return fmt.Errorf("failed to get migration status: %w", err)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%-10s %-40s %s\n", "VERSION", "NAME", "APPLIED AT")
				for _, s := range statuses {
					applied := "pending"
					if s.AppliedAt != nil {
						applied = s.AppliedAt.Format(time.RFC3339)
					}
					fmt.Fprintf(out, "%-10d %-40s %s\n", s.Version, s.Name, applied)
				}
				return nil
			})
		},
	})
	return cmd
}

func withMigrator(ctx context.Context, fn func(context.Context, *db.Migrator) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		return err
	}
	pool, err := db.Open(ctx, dbURL, db.Options{MaxConns: 2})
	if err != nil {
		return err
	}
	defer pool.Close()
	return fn(ctx, db.NewMigrator(pool, migrations.FS, "."))
}

func runServer(ctx context.Context) error {
	cfg, err := loadSettings()
	if err != nil {
		return err
	}
	logger := runtime.NewLogger(cfg.Service)

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(cfg.Service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	var (
		store    storage.Storage
		notifier scheduling.Notifier
		checks   []runtime.ReadyCheck
	)
	switch cfg.StorageDriver {
	case driverMemory:
		logger.Warn("using in-memory storage; data is lost on restart")
		store = memory.New(memory.WithTreatments(defaultTreatment(cfg)))
	default:
		pool, err := db.Open(ctx, cfg.DatabaseURL, db.Options{MaxConns: int32(cfg.DBMaxConns)})
		if err != nil {
			logger.Error("db connection failed", "err", err)
			return err
		}
		defer pool.Close()
		store = postgres.New(pool)

		brokers := kafkax.SplitBrokers(cfg.KafkaBrokers)
		outboxRepo := outbox.NewRepository()
		notifier = outbox.NewNotifier(pool, outboxRepo)
		publisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
			Brokers:   brokers,
			PollEvery: 2 * time.Second,
			BatchSize: 50,
		})
		if publisher != nil {
			go publisher.Run(ctx)
			checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})
		}
		checks = append(checks, runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)})
	}

	svc := scheduling.NewService(store, notifier, logger, cfg.Scheduling)

	verifierCfg := auth.VerifierConfig{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer}
	if cfg.JWKSURL != "" {
		verifierCfg.JWKS = auth.NewJWKSClient(cfg.JWKSURL, cfg.JWKSCacheTTL)
	}

	publicLimit, closeLimiter := rateLimiter(cfg, logger)
	defer closeLimiter()

	mux := runtime.NewBaseMuxWithReady(checks...)
	handlers.Routes{
		Appointments: handlers.NewAppointmentHandler(svc, logger),
		Schedule:     handlers.NewScheduleHandler(svc, logger),
		Payments:     handlers.NewPaymentHandler(svc, logger, cfg.WebhookSecret, 0),
		Verifier:     auth.NewVerifier(verifierCfg),
		PublicLimit:  publicLimit,
	}.Register(mux)

	httpHandler := httpx.Chain(mux,
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: cfg.CORS,
			AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Authorization", "Content-Type", httpx.RequestIDHeader, "Idempotency-Key"},
			ExposedHeaders: []string{httpx.RequestIDHeader, "Idempotent-Replayed"},
			MaxAge:         10 * time.Minute,
		}),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithRecover(logger),
		httpx.WithBodyLimit(cfg.BodyLimit),
		httpx.WithTimeout(cfg.RequestTimeout),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "scheduling")
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcServer := grpcx.NewServer(logger)
	go grpcServer.WatchReadiness(ctx, 10*time.Second, checks...)
	go func() {
		if err := grpcServer.ListenAndServe(ctx, ":"+cfg.GRPCPort); err != nil {
			logger.Error("grpc server error", "err", err)
		}
	}()

	logger.Info("scheduling service configured", "storage", cfg.StorageDriver, "timezone", cfg.Scheduling.Location.String())
	return runtime.ServeHTTP(ctx, srv, logger)
}

// rateLimiter prefers the shared redis counter so limits hold across replicas.
func rateLimiter(cfg settings, logger *slog.Logger) (httpx.Middleware, func()) {
	if cfg.RedisAddr == "" {
		logger.Info("rate limiting enabled (in-memory)", "per_minute", cfg.RateLimitPerMin)
		return httpx.RateLimit(httpx.NewRateLimiter(cfg.RateLimitPerMin, time.Minute), logger, true), func() {}
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	rl := httpx.NewRedisRateLimiter(rdb, cfg.RateLimitPerMin, time.Minute, "rl:scheduling")
	logger.Info("rate limiting enabled (redis)", "per_minute", cfg.RateLimitPerMin, "redis_addr", cfg.RedisAddr)
	return httpx.RateLimit(rl, logger, cfg.RateLimitFailOpen), func() { _ = rdb.Close() }
}

func defaultTreatment(cfg settings) model.Treatment {
	return model.Treatment{
		ID:              "individual-session",
		Kind:            model.KindTreatment,
		Name:            "Individual session",
		DurationMinutes: cfg.Scheduling.SlotMinutes,
		Active:          true,
	}
}
