package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"

	"ms-redemption/internal/auth"
	"ms-redemption/internal/bookings"
	bookings_api "ms-redemption/internal/bookings/api"
	"ms-redemption/internal/config"
	"ms-redemption/internal/database"
	"ms-redemption/internal/kafka"
	"ms-redemption/internal/logger"
	"ms-redemption/internal/qr"
	"ms-redemption/internal/redemption"
	scanner_api "ms-redemption/internal/scanner/api"
	"ms-redemption/internal/scanner/dedup"
	"ms-redemption/internal/utils"
)

func healthHandler(backend string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("ok", map[string]string{"store": backend}))
	}
}

func main() {
	envErr := godotenv.Load()
	cfg := config.Load()

	logger := logger.NewLogger(cfg.Log.Dir, cfg.Log.Service)
	defer logger.Close()

	logger.Info("APP", "Starting Redemption Service initialization")
	if envErr != nil {
		logger.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		logger.Info("CONFIG", "Loaded environment variables from .env file")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info("APP", fmt.Sprintf("Opening %s booking store", cfg.Store.Backend))
	backend, err := database.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("DATABASE", err.Error())
	}
	defer backend.Close()

	var events redemption.EventPublisher
	if cfg.Kafka.Enabled {
		topics := []string{cfg.Kafka.Topics.BookingIssued, cfg.Kafka.Topics.BookingRedeemed, cfg.Kafka.Topics.BookingCancelled}
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, topics, logger); err != nil {
			logger.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		}
		producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topics, logger)
		defer producer.Close()
		events = producer
		logger.Info("KAFKA", "Kafka producer initialized successfully")
	} else {
		logger.Warn("KAFKA", "Kafka disabled, booking events are not published")
	}

	bookingService := bookings.NewService(backend.Repo, events, logger)
	engine := redemption.NewEngine(backend.Repo, events, logger)

	if cfg.Kafka.Enabled {
		consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topics.BookingIssued, cfg.Kafka.GroupID, bookingService, logger)
		defer consumer.Close()
		go consumer.Start(ctx)
		logger.Info("KAFKA", fmt.Sprintf("Importing bookings from %s", cfg.Kafka.Topics.BookingIssued))
	}

	var guard dedup.Guard
	if backend.Redis != nil {
		guard = dedup.NewRedisGuard(backend.Redis, cfg.Scanner.DedupWindow)
	} else {
		guard = dedup.NewMemoryGuard(cfg.Scanner.DedupWindow)
	}

	scannerHandler := scanner_api.NewHandler(engine, guard, logger)
	bookingsHandler := bookings_api.NewHandler(bookingService, qr.NewGenerator(cfg.Scanner.QRSize), logger)

	if cfg.Auth.Skip {
		logger.Warn("AUTH", "SKIP_AUTH is set, all requests are trusted")
	} else if cfg.Auth.JWTSecret == "" {
		logger.Fatal("CONFIG", "JWT_SECRET not set")
	}

	r := chi.NewRouter()
	r.Use(logger.Middleware)

	// --- Public Routes ---
	r.Get("/health", healthHandler(backend.Name))

	// --- Protected Routes ---
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(cfg.Auth.JWTSecret, cfg.Auth.Skip, logger))

		r.Route("/api", func(r chi.Router) {
			scannerHandler.RegisterRoutes(r)
			logger.Info("ROUTER", "Scanner routes registered under /api/scanner")

			bookingsHandler.RegisterRoutes(r)
			logger.Info("ROUTER", "Booking routes registered under /api/bookings")
		})
	})

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("HTTP", fmt.Sprintf("🚀 Redemption Service running on %s", cfg.Server.Port))
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
	} else {
		logger.Info("HTTP", "✅ Redemption Service shutdown complete")
	}
}
