package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"blinddate-backend/internal/config"
	"blinddate-backend/internal/docstore"
	"blinddate-backend/internal/handlers"
	"blinddate-backend/internal/middleware"
	"blinddate-backend/internal/queue"
	"blinddate-backend/internal/repository"
	"blinddate-backend/internal/scheduler"
	"blinddate-backend/internal/services"
	"blinddate-backend/internal/sms"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func Run() {
	// Load configuration
	cfg, err := config.Load(configPath())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Setup logger
	setupLogger(cfg.Log.Level)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Open document store
	store, pool := openStore(ctx, cfg.Database)
	defer store.Close()

	// Redis is optional; it backs the SMS queue when selected
	var redisClient *redis.Client
	if cfg.Queue.Backend == "redis" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:         cfg.Redis.Addr,
			DialTimeout:  2 * time.Second,
			ReadTimeout:  time.Second,
			WriteTimeout: time.Second,
		})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("Redis not reachable yet")
		}
	}
	smsQueue := newQueue(cfg.Queue, redisClient)
	sender := newDispatcher(cfg.SMS)

	// Initialize repositories
	studentRepo := repository.NewStudentRepository(store)
	eventRepo := repository.NewEventRepository(store)
	partneringRepo := repository.NewPartneringRepository(store)
	announcementRepo := repository.NewAnnouncementRepository(store)
	identityRepo := repository.NewIdentityRepository(store)

	// Initialize services
	wsHub := services.NewWSHub()
	tokens := services.NewTokenService(cfg.JWT.Secret, cfg.JWT.TTL)
	adminAuth := services.NewAdminAuth(cfg.Admin.Email, cfg.Admin.PasswordHash, tokens)
	identityService := services.NewIdentityService(identityRepo, studentRepo)
	otpService := services.NewOTPService(store, studentRepo, sender, services.OTPOptions{
		Sender:    cfg.SMS.OTPSender,
		SingleUse: cfg.OTP.SingleUse,
	})
	studentService := services.NewStudentService(store, studentRepo, identityRepo)
	eventService := services.NewEventService(eventRepo, studentRepo)
	pairingService := services.NewPairingService(store, partneringRepo, studentRepo, eventRepo, wsHub)
	announcementService := services.NewAnnouncementService(
		studentRepo, announcementRepo, smsQueue, sender, cfg.SMS.AnnouncementSender, wsHub,
	)
	statsService := services.NewStatsService(studentRepo, eventRepo, partneringRepo)

	var photoHandler *handlers.PhotoHandler
	if cfg.AWS.S3Bucket != "" {
		photoService, err := services.NewPhotoService(ctx, studentRepo, cfg.AWS)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create photo service")
		}
		photoHandler = handlers.NewPhotoHandler(photoService)
	} else {
		log.Warn().Msg("aws.s3_bucket not set, profile photo uploads disabled")
	}

	// Background jobs
	sweeps, err := scheduler.New(cfg.OTP.SweepSchedule, otpService, 50*time.Second)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create scheduler")
	}
	sweeps.Start()

	worker := services.NewSMSWorker(smsQueue, sender)
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		if err := worker.Run(ctx); err != nil {
			log.Error().Err(err).Msg("SMS worker exited")
		}
	}()

	// Setup router
	router := handlers.NewRouter(handlers.RouterOptions{
		Tokens:        tokens,
		Identities:    identityService,
		Limiter:       middleware.NewTokenBucket(cfg.Server.RateLimitPerMin, cfg.Server.RateLimitPerMin),
		Health:        healthCheck(pool, redisClient),
		OTP:           handlers.NewOTPHandler(otpService, identityService, tokens),
		Auth:          handlers.NewAuthHandler(tokens, adminAuth),
		Announcements: handlers.NewAnnouncementHandler(announcementService),
		Pairings:      handlers.NewPairingHandler(pairingService),
		Students:      handlers.NewStudentHandler(studentService, pairingService),
		Events:        handlers.NewEventHandler(eventService),
		Photos:        photoHandler,
		Stats:         handlers.NewStatsHandler(statsService),
		WebSocket:     handlers.NewWebSocketHandler(wsHub, tokens, identityService, pairingService),
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("host", cfg.Server.Host).
			Int("port", cfg.Server.Port).
			Str("store", cfg.Database.Driver).
			Str("queue", cfg.Queue.Backend).
			Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	log.Info().Int("connections", wsHub.Online()).Msg("Closing WebSocket connections")
	wsHub.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	sweeps.Stop(shutdownCtx)

	cancel()
	select {
	case <-workerDone:
	case <-shutdownCtx.Done():
		log.Warn().Msg("SMS worker did not stop in time")
	}

	log.Info().Msg("Server exited")
}

func configPath() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return "config.yaml"
}

// openStore connects the document store selected by database.driver. The
// pool is nil for the memory driver.
func openStore(ctx context.Context, cfg config.DatabaseConfig) (docstore.Store, *pgxpool.Pool) {
	if cfg.Driver == "memory" {
		log.Warn().Msg("Using in-memory document store, data is lost on restart")
		return docstore.NewMemory(), nil
	}

	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	if err := pool.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to ping database")
	}
	log.Info().Msg("Database connection established")

	store := docstore.NewPostgres(pool)
	if err := store.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate database")
	}
	return store, pool
}

func newQueue(cfg config.QueueConfig, client *redis.Client) queue.Queue {
	if cfg.Backend == "redis" && client != nil {
		return queue.NewRedisQueue(client, cfg.Key)
	}
	return queue.NewInMemory(cfg.Size)
}

func newDispatcher(cfg config.SMSConfig) sms.Dispatcher {
	switch cfg.Provider {
	case "log":
		log.Warn().Msg("SMS provider is 'log', messages are not delivered")
		return sms.LogDispatcher{}
	case "arkesel":
		return sms.NewArkesel(cfg.BaseURL, cfg.Key)
	default:
		log.Fatal().Str("provider", cfg.Provider).Msg("Unknown SMS provider")
		return nil
	}
}

func healthCheck(pool *pgxpool.Pool, client *redis.Client) func(ctx context.Context) map[string]bool {
	return func(ctx context.Context) map[string]bool {
		out := map[string]bool{}
		if pool != nil {
			out["db"] = pool.Ping(ctx) == nil
		}
		if client != nil {
			out["redis"] = client.Ping(ctx).Err() == nil
		}
		return out
	}
}

// setupLogger configures zerolog logger
func setupLogger(level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
