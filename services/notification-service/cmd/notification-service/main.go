package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/calmspace/practice/libs/config"
	"github.com/calmspace/practice/libs/db"
	"github.com/calmspace/practice/libs/events"
	"github.com/calmspace/practice/libs/httpx"
	"github.com/calmspace/practice/libs/kafkax"
	otelx "github.com/calmspace/practice/libs/otel"
	"github.com/calmspace/practice/libs/runtime"
	"github.com/calmspace/practice/services/notification-service/internal/consumer"
	"github.com/calmspace/practice/services/notification-service/internal/email"
	"github.com/calmspace/practice/services/notification-service/internal/inbox"
	"github.com/calmspace/practice/services/notification-service/internal/notify"
	"github.com/calmspace/practice/services/notification-service/internal/reminders"
	"github.com/calmspace/practice/services/notification-service/internal/sms"
	"github.com/calmspace/practice/services/notification-service/internal/storage"
	"github.com/calmspace/practice/services/notification-service/migrations"
	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	if err := config.Load(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	rootCmd := &cobra.Command{
		Use:          "notification-service",
		Short:        "Delivers appointment emails, SMS and reminders",
		SilenceUsage: true,
	}
	rootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Consume appointment events and run the reminder worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := runtime.SignalContext()
			defer stop()
			return run(ctx)
		},
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dbURL, err := config.RequiredString("DATABASE_URL")
			if err != nil {
				return err
			}
			pool, err := db.Open(cmd.Context(), dbURL, db.Options{MaxConns: 2})
			if err != nil {
				return err
			}
			defer pool.Close()
			count, err := db.NewMigrator(pool, migrations.FS, ".").Up(cmd.Context())
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s).\n", count)
			return nil
		},
	})

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	service := config.String("SERVICE_NAME", "notification-service")
	port, err := config.Port("PORT", "8085")
	if err != nil {
		return err
	}
	logger := runtime.NewLogger(service)

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		return err
	}
	pool, err := db.Open(ctx, dbURL, db.Options{MaxConns: int32(config.Int("DB_MAX_CONNS", 5))})
	if err != nil {
		logger.Error("db connection failed", "err", err)
		return err
	}
	defer pool.Close()

	loc, err := time.LoadLocation(config.String("PRACTICE_TIMEZONE", "UTC"))
	if err != nil {
		return fmt.Errorf("PRACTICE_TIMEZONE: %w", err)
	}

	emailSender := email.NewSMTPSender(
		config.String("SMTP_HOST", "mailpit"),
		config.String("SMTP_PORT", "1025"),
		config.String("SMTP_FROM", "no-reply@calmspace.local"),
	)

	var smsSender sms.Sender
	switch strings.ToLower(config.String("SMS_PROVIDER", "none")) {
	case "webhook":
		smsSender = sms.NewWebhookSender(
			config.String("SMS_WEBHOOK_URL", ""),
			config.String("SMS_WEBHOOK_TOKEN", ""),
			config.String("SMS_SENDER_ID", ""),
		)
	case "noop":
		smsSender = sms.NewNoopSender()
	}

	var (
		reminderSched notify.Reminders
		worker        *asynq.Server
	)
	redisAddr := config.String("REDIS_ADDR", "")
	if redisAddr != "" {
		redisOpt := asynq.RedisClientOpt{
			Addr:     redisAddr,
			Password: config.String("REDIS_PASSWORD", ""),
			DB:       config.Int("REDIS_REMINDER_DB", 0),
		}
		client := asynq.NewClient(redisOpt)
		defer client.Close()
		inspector := asynq.NewInspector(redisOpt)
		defer inspector.Close()

		reminderSched = reminders.NewScheduler(client, inspector, logger, reminders.Config{
			Lead:     config.Duration("REMINDER_LEAD", 24*time.Hour),
			Location: loc,
		})
		worker = asynq.NewServer(redisOpt, asynq.Config{
			Concurrency: config.Int("REMINDER_CONCURRENCY", 5),
			Queues:      map[string]int{reminders.DefaultQueue: 1},
		})
	} else {
		logger.Warn("reminders disabled (no REDIS_ADDR configured)")
	}

	dispatcher := notify.NewDispatcher(emailSender, smsSender, storage.NewRepository(pool), reminderSched, logger, notify.Config{
		Practice:      config.String("PRACTICE_NAME", "Calm Space"),
		PracticeInbox: config.String("PRACTICE_INBOX", ""),
		FailSuffix:    config.String("NOTIFICATION_FAIL_SUFFIX", ""),
	})

	if worker != nil {
		if err := worker.Start(reminders.NewServeMux(dispatcher.Remind, logger)); err != nil {
			return fmt.Errorf("start reminder worker: %w", err)
		}
		defer worker.Shutdown()
	}

	brokers := kafkax.SplitBrokers(config.String("KAFKA_BROKERS", ""))
	eventConsumer := consumer.New(logger, inbox.NewRepository(pool), consumer.Config{
		Brokers: brokers,
		GroupID: config.String("KAFKA_GROUP_ID", "notification-service"),
		Topics:  events.Topics,
	}, dispatcher.Handle)
	go eventConsumer.Run(ctx)

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)},
	)
	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	handler = otelhttp.NewHandler(handler, "notification")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return runtime.ServeHTTP(ctx, srv, logger)
}
