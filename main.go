package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"ms-booking/internal/api"
	"ms-booking/internal/auth"
	"ms-booking/internal/booking"
	bookingdb "ms-booking/internal/booking/db"
	"ms-booking/internal/booking/qr"
	bookingredis "ms-booking/internal/booking/redis"
	"ms-booking/internal/config"
	"ms-booking/internal/database/migrations"
	"ms-booking/internal/kafka"
	"ms-booking/internal/logger"
	"ms-booking/internal/payment"
	"ms-booking/internal/sse"
	"ms-booking/internal/trips"
	tripdb "ms-booking/internal/trips/db"
	userdb "ms-booking/internal/users/db"
)

func verifyConnections(ctx context.Context, cfg *config.Config, logger *logger.Logger) (*bun.DB, *redis.Client) {
	if cfg.Database.DSN == "" {
		logger.Fatal("CONFIG", "POSTGRES_DSN not set")
	}

	var sqldb *sql.DB
	var err error
	maxRetries := 5

	for i := 0; i < maxRetries; i++ {
		logger.Info("DATABASE", fmt.Sprintf("Attempting to connect to PostgreSQL (attempt %d/%d)", i+1, maxRetries))
		sqldb, err = sql.Open("postgres", cfg.Database.DSN)
		if err != nil {
			logger.Error("DATABASE", fmt.Sprintf("Failed to open PostgreSQL: %v", err))
			time.Sleep(2 * time.Second)
			continue
		}

		err = sqldb.PingContext(ctx)
		if err == nil {
			break
		}

		logger.Error("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
		if i < maxRetries-1 {
			time.Sleep(2 * time.Second)
		}
	}

	if err != nil {
		logger.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL after %d attempts: %v", maxRetries, err))
	}

	sqldb.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.Database.MaxLifetime)
	logger.Info("DATABASE", "✅ PostgreSQL connection successful")

	bunDB := bun.NewDB(sqldb, pgdialect.New())

	if cfg.Redis.Addr == "" {
		logger.Fatal("CONFIG", "REDIS_ADDR not set")
	}
	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.Redis.Addr,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal("DATABASE", fmt.Sprintf("Redis connection error: %v", err))
	}

	logger.Info("DATABASE", fmt.Sprintf("✅ Redis connection successful to %s (DB: %d)", cfg.Redis.Addr, redisClient.Options().DB))
	return bunDB, redisClient
}

func runMigrations(bunDB *bun.DB, cfg *config.Config, logger *logger.Logger) {
	runner := migrations.NewRunner(bunDB, migrations.Options{Dir: cfg.Database.MigrationsDir}, logger)
	defer runner.Close()

	if err := runner.RunMigrations(); err != nil {
		logger.Fatal("DATABASE", fmt.Sprintf("Migration failed: %v", err))
	}
}

func newGateway(cfg config.PaymentConfig, logger *logger.Logger) payment.Gateway {
	switch cfg.Provider {
	case "stripe":
		gateway, err := payment.NewStripeCheckout(cfg.StripeSecret, cfg.CallbackURL, cfg.Currency, logger)
		if err != nil {
			logger.Fatal("PAYMENT", fmt.Sprintf("Stripe setup failed: %v", err))
		}
		return gateway
	default:
		if cfg.PaystackSecret == "" {
			logger.Warn("PAYMENT", "PAYSTACK_SECRET_KEY not set, payment calls will be rejected")
		}
		return payment.NewPaystack(cfg.PaystackSecret, cfg.PaystackBaseURL, cfg.CallbackURL, cfg.Currency, cfg.Timeout, logger)
	}
}

func newVerifier(ctx context.Context, cfg config.AuthConfig, logger *logger.Logger) auth.Verifier {
	if cfg.OIDCIssuer != "" {
		verifier, err := auth.NewOIDCVerifier(ctx, cfg.OIDCIssuer)
		if err != nil {
			logger.Fatal("AUTH", err.Error())
		}
		logger.Info("AUTH", fmt.Sprintf("Verifying bearer tokens against %s", cfg.OIDCIssuer))
		return verifier
	}
	if cfg.JWTSecret == "" {
		logger.Warn("AUTH", "Neither OIDC_ISSUER nor JWT_SECRET set, protected routes will reject every request")
	}
	return auth.NewHMACVerifier(cfg.JWTSecret)
}

func newPublisher(cfg config.KafkaConfig, logger *logger.Logger) (booking.EventPublisher, func()) {
	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		logger.Info("KAFKA", "Kafka disabled, booking events will not be published")
		return kafka.NopPublisher{Logger: logger}, func() {}
	}

	if err := kafka.EnsureTopicsExist(cfg.Brokers, cfg.Topics.All(), logger); err != nil {
		logger.Error("KAFKA", fmt.Sprintf("Failed to ensure Kafka topics exist: %v", err))
	}
	producer := kafka.NewProducer(cfg.Brokers, logger)
	return producer, func() {
		if err := producer.Close(); err != nil {
			logger.Error("KAFKA", fmt.Sprintf("Failed to close Kafka producer: %v", err))
		}
	}
}

// sweepStaleIntents abandons pending intents whose expiry event was missed.
func sweepStaleIntents(ctx context.Context, svc *booking.BookingService, staleAfter time.Duration, logger *logger.Logger) {
	ticker := time.NewTicker(staleAfter / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := svc.AbandonStaleIntents(ctx, time.Now().UTC().Add(-staleAfter))
			if err != nil {
				logger.Error("BOOKING", fmt.Sprintf("Stale intent sweep failed: %v", err))
				continue
			}
			if n > 0 {
				logger.Info("BOOKING", fmt.Sprintf("Abandoned %d stale booking intents", n))
			}
		}
	}
}

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found, using environment variables")
	}

	logger := logger.NewLogger("booking-service")
	defer logger.Close()

	logger.Info("APP", "Starting Booking Service initialization")
	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bunDB, redisClient := verifyConnections(ctx, cfg, logger)
	defer bunDB.Close()
	defer redisClient.Close()

	if cfg.Database.AutoMigrate {
		runMigrations(bunDB, cfg, logger)
	}

	producer, closeProducer := newPublisher(cfg.Kafka, logger)
	defer closeProducer()
	emitter := sse.NewBookingEventEmitter()
	events := booking.Publishers{producer, emitter}

	holds := bookingredis.NewRedis(redisClient, cfg.Booking.HoldTTL, logger)
	if err := holds.EnableExpiryEvents(ctx); err != nil {
		logger.Warn("REDIS", fmt.Sprintf("Failed to enable keyspace notifications: %v", err))
	} else {
		logger.Info("REDIS", "Keyspace notifications enabled for expired events")
	}

	tripStore := &tripdb.DB{Bun: bunDB}
	userStore := &userdb.DB{Bun: bunDB}

	bookingService := booking.NewBookingService(tripStore, userStore, &bookingdb.DB{Bun: bunDB}, newGateway(cfg.Payment, logger), logger)
	bookingService.Holds = holds
	bookingService.Events = events
	bookingService.Tickets = qr.NewGenerator(cfg.Booking.QRSecret)
	bookingService.Topics = cfg.Kafka.Topics

	tripService := trips.NewTripService(tripStore, userStore, logger)
	tripService.Events = events
	tripService.CreatedTopic = cfg.Kafka.Topics.TripCreated

	if err := holds.SubscribeExpiredHolds(ctx, func(ctx context.Context, reference string) {
		if err := bookingService.AbandonBooking(ctx, reference); err != nil {
			logger.Error("BOOKING", fmt.Sprintf("Failed to abandon booking %s: %v", reference, err))
		}
	}); err != nil {
		logger.Error("REDIS", fmt.Sprintf("Failed to subscribe to hold expiry events: %v", err))
	}
	if cfg.Booking.StaleIntent > 0 {
		go sweepStaleIntents(ctx, bookingService, cfg.Booking.StaleIntent, logger)
	}

	logger.Info("HTTP", "Setting up router and middleware")
	handler := api.NewHandler(bookingService, tripService, logger)
	handler.Stream = emitter
	router := api.NewRouter(handler, newVerifier(ctx, cfg.Auth, logger), logger, api.RouterOptions{
		RequestTimeout: cfg.Server.RequestTimeout,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	})

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("HTTP", fmt.Sprintf("Booking service listening on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	logger.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	logger.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	cancel()
	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		logger.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	}
	logger.Info("APP", "Booking service stopped")
}
