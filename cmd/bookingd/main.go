package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/example/room-booking/internal/application"
	"github.com/example/room-booking/internal/auth"
	"github.com/example/room-booking/internal/config"
	"github.com/example/room-booking/internal/events"
	httptransport "github.com/example/room-booking/internal/http"
	"github.com/example/room-booking/internal/logging"
	"github.com/example/room-booking/internal/notify"
	"github.com/example/room-booking/internal/persistence/sqlite"
	"github.com/example/room-booking/internal/persistence/sqlite/migration"
	"github.com/example/room-booking/internal/scheduler"
	"github.com/example/room-booking/internal/security"
)

const sessionSweepInterval = 15 * time.Minute

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stderr, nil)).Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger := logging.NewLogger(os.Stdout, cfg.LogLevel)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("booking service stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	storage, err := sqlite.Open(ctx, migration.DefaultSQLiteConfig(cfg.DatabasePath), logger)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer func() {
		if cerr := storage.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	hub := events.NewHub(logger)
	go hub.Run(ctx)

	publishers := events.Fanout{hub}
	if len(cfg.Events.KafkaBrokers) > 0 {
		kafka, err := events.NewKafkaPublisher(cfg.Events.KafkaBrokers, cfg.Events.KafkaTopic)
		if err != nil {
			return fmt.Errorf("configure kafka: %w", err)
		}
		defer closeQuietly(logger, "kafka publisher", kafka)
		publishers = append(publishers, kafka)
		logger.Info("kafka event stream enabled", "topic", cfg.Events.KafkaTopic)
	}

	var notifier notify.Notifier = notify.NewLogNotifier(logger)
	if cfg.Notification.AMQPURL != "" {
		amqp, err := notify.DialAMQP(notify.AMQPConfig{URL: cfg.Notification.AMQPURL, QueueName: cfg.Notification.Queue})
		if err != nil {
			return fmt.Errorf("connect notification queue: %w", err)
		}
		defer closeQuietly(logger, "notification queue", amqp)
		notifier = amqp
		logger.Info("notification queue enabled", "queue", cfg.Notification.Queue)
	}

	idGenerator := uuid.NewString
	now := time.Now
	sinks := application.Sinks{Audit: storage.Audit, Events: publishers, Notifier: notifier}
	engine := scheduler.NewEngine(cfg.Booking.Scheduler(), now)

	userRepo := newUserRepositoryAdapter(storage.Users)
	roomRepo := newRoomRepositoryAdapter(storage.Rooms)
	bookingRepo := newBookingRepositoryAdapter(storage.Bookings)
	noteRepo := newNoteRepositoryAdapter(storage.Notes)
	sessionRepo := newSessionRepositoryAdapter(storage.Sessions)

	securityService := application.NewSecurityServiceWithLogger(storage.OTP, storage.LoginAttempts, storage.Audit, application.SecurityPolicy{
		OTP:     security.NewGenerator(cfg.Security.OTPLength, cfg.Security.OTPTTL, cfg.Security.OTPMaxAttempts),
		Lockout: security.NewLockoutPolicy(cfg.Security.LoginAttemptLimit, cfg.Security.LockoutWindow),
		Domains: security.NewDomainPolicy(cfg.Security.AllowedEmailDomains),
	}, idGenerator, now, logger)
	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.SessionTTL, now)
	authService := application.NewAuthServiceWithLogger(userRepo, sessionRepo, securityService, tokens, sinks, idGenerator, now, logger)
	roomService := application.NewRoomServiceWithLogger(roomRepo, bookingRepo, engine, sinks, idGenerator, now, logger)
	bookingService := application.NewBookingServiceWithLogger(bookingRepo, roomRepo, noteRepo, userRepo, engine, sinks, idGenerator, now, logger)
	userService := application.NewUserServiceWithLogger(userRepo, roomRepo, sinks, idGenerator, now, logger)

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Auth:     httptransport.NewAuthHandler(authService, logger),
		Users:    httptransport.NewUserHandler(userService, logger),
		Rooms:    httptransport.NewRoomHandler(roomService, logger),
		Bookings: httptransport.NewBookingHandler(bookingService, logger),
		Events:   httptransport.NewEventsHandler(hub, logger),
		Session:  httptransport.RequireSession(authService, logger),
		Middleware: []func(http.Handler) http.Handler{
			httptransport.RequestLogger(logger),
			httptransport.SecurityHeaders,
			httptransport.BlockedIPGuard(securityService, logger),
		},
		Logger: logger,
	})

	go sweepSessions(ctx, sessionRepo, now, logger)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("booking API listening", "addr", server.Addr, "database", cfg.DatabasePath)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

// sweepSessions deletes expired sessions until ctx is cancelled.
func sweepSessions(ctx context.Context, sessions application.SessionRepository, now func() time.Time, logger *slog.Logger) {
	ticker := time.NewTicker(sessionSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := sessions.DeleteExpiredSessions(ctx, now()); err != nil {
				logger.WarnContext(ctx, "session sweep failed", "error", err)
			}
		}
	}
}

func closeQuietly(logger *slog.Logger, name string, c io.Closer) {
	if err := c.Close(); err != nil {
		logger.Error("failed to close "+name, "error", err)
	}
}
