package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"careerlink/auth"
	"careerlink/infrastructure/ws"
	"careerlink/moderation"
	"careerlink/repositories"
	"careerlink/runtime"
	"careerlink/runtime/workers"
	"careerlink/services"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the server lifecycle, and centralizes error reporting.
// This pattern is preferred over calling os.Exit or panic directly because:
// 1. It ensures all 'defer' statements (like database cleanup) are executed before the program exits.
// 2. It improves testability by decoupling the initialization logic from the main entry point.
// 3. It provides a structured way to handle graceful shutdowns for the HTTP server and background workers.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Database (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.INFO))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Repositories
	conversationRepository := repositories.NewConversationRepository(db, log)
	messageRepository := repositories.NewMessageRepository(db, log, config.LimitMessages)
	notificationRepository := repositories.NewNotificationRepository(db, log)

	// 4. Moderation
	words, err := moderation.LoadDefaultWords()
	if err != nil {
		return fmt.Errorf("loading moderation blacklist: %w", err)
	}
	maskChar, err := characterRune(config.ModerationCharReplacement)
	if err != nil {
		return err
	}
	moderator, err := moderation.NewModerator(words, maskChar)
	if err != nil {
		return fmt.Errorf("building moderator: %w", err)
	}
	log.Info(fmt.Sprintf("%d censored words loaded", len(words)))

	// 5. Realtime core
	registry := runtime.NewPresenceRegistry(log)
	queue := runtime.NewOfflineQueue(log, messageRepository)
	mux := runtime.NewMultiplexer(log, registry, queue, conversationRepository)

	notificationService := services.NewNotificationService(
		log, notificationRepository, mux, config.NotificationListLimit)
	deliveryService := services.NewDeliveryService(
		log, &moderator, registry, mux, queue, notificationService,
		messageRepository, conversationRepository, config.TypingTTL)

	// 6. Supervision & background workers
	sup := workers.NewSupervisor(log, config.RestartInterval)
	sup.Add(workers.NewPresenceSweepWorker(
		log, registry, mux,
		config.PresenceSweepInterval, config.PresenceAwayAfter, config.PresenceOfflineAfter))
	sup.Add(workers.NewHealthWorker(log, config.HealthInterval))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	supDone := make(chan struct{})
	go func() {
		defer close(supDone)
		sup.Run(ctx)
	}()

	// 7. Transport gateway
	identity := auth.NewIdentity(config.JWTSecret)
	gateway := ws.NewGateway(
		log, identity, registry, mux, deliveryService, notificationService,
		config.ConnectionBufferSize, config.DeliveryTimeout, config.PongWait)

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	server := &http.Server{
		Addr:    address,
		Handler: gateway.Router(),
	}

	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting realtime gateway", "address", address, "at", time.Now().UTC())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	// 8. Wait for stop or error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	}

	// 9. Final cleanup
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
	sup.Stop()
	<-supDone
	log.Info("Program stopped cleanly")

	return nil
}

func characterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"MODERATION_CHARACTER_REPLACEMENT must be a single character, got %q", str)
	}
	return r[0], nil
}
