package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"blinkfit-backend/internal/config"
	"blinkfit-backend/internal/database"
	"blinkfit-backend/internal/handlers"
	"blinkfit-backend/internal/middleware"
	"blinkfit-backend/internal/repository"
	"blinkfit-backend/internal/router"
	"blinkfit-backend/internal/services"
	"blinkfit-backend/internal/websocket"
	"blinkfit-backend/internal/worker"
)

func main() {
	log.Println("🚀 Starting Blink-Fit Backend...")

	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()
	log.Println("✓ Environment variables loaded")

	// ──── Step 2: Initialize PostgreSQL Connection Pool ────
	pool, err := database.NewPostgresPool(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("✗ PostgreSQL connection failed: %v", err)
	}
	defer pool.Close()
	log.Println("✓ PostgreSQL connected")

	// ──── Step 3: Initialize Redis Clients ────
	redisClients, err := database.NewRedisClients(cfg.RedisURL)
	if err != nil {
		log.Fatalf("✗ Redis connection failed: %v", err)
	}
	defer redisClients.Close()
	log.Println("✓ Redis connected")

	// ──── Step 4: Run Database Migrations ────
	migrateCtx, cancelMigrate := context.WithTimeout(context.Background(), time.Minute)
	err = database.RunMigrations(migrateCtx, pool, os.DirFS("migrations"))
	cancelMigrate()
	if err != nil {
		log.Fatalf("✗ Database migration failed: %v", err)
	}
	log.Println("✓ Database migrations applied")

	// ──── Initialize Repositories ────
	userRepo := repository.NewUserRepo(pool)
	quizRepo := repository.NewQuizRepo(pool)
	sessionRepo := repository.NewSessionRepo(pool)

	// ──── Step 5: Initialize Gemini Client ────
	// Left as a nil interface without a key so guides take the fallback path.
	var generator services.Generator
	if cfg.GeminiEnabled() {
		geminiService, err := services.NewGeminiService(context.Background(), cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GeminiConcurrentReqs)
		if err != nil {
			log.Fatalf("✗ Gemini client initialization failed: %v", err)
		}
		defer geminiService.Close()
		generator = geminiService
		log.Printf("✓ Gemini client initialized (%s)", cfg.GeminiModel)
	} else {
		log.Println("✗ GEMINI_API_KEY not set, guides use the built-in fallback")
	}

	// ──── Initialize Services ────
	jwtAuth := middleware.NewJWTAuth(cfg.JWTSecret)
	publisher := websocket.NewPublisher(redisClients.PubSub)
	summaryQueue := worker.NewQueue(redisClients.Data)

	authService := services.NewAuthService(userRepo, quizRepo, redisClients.Data, jwtAuth)
	guideService := services.NewGuideService(generator, quizRepo, redisClients.Data)
	profileService := services.NewProfileService(userRepo, quizRepo, sessionRepo, guideService)
	trackingService := services.NewTrackingService(summaryQueue, publisher, cfg.EARThreshold)

	// ──── Initialize Handlers ────
	authHandler := handlers.NewAuthHandler(authService)
	userHandler := handlers.NewUserHandler(profileService)
	guideHandler := handlers.NewGuideHandler(guideService)
	sessionHandler := handlers.NewSessionHandler(trackingService)

	// ──── Step 6: Start Summary Worker Pool ────
	workerPool := worker.NewPool(redisClients.Data, profileService, publisher, cfg.SummaryWorkers)
	workerPool.Start()
	log.Printf("✓ Worker pool started (%d goroutines)", cfg.SummaryWorkers)

	reaper := services.NewSessionReaper(trackingService, cfg.SessionIdleTimeout)
	reaper.Start()

	// ──── Step 7: Start WebSocket Hub ────
	wsHub := websocket.NewHub(redisClients.PubSub, jwtAuth, trackingService)
	log.Println("✓ WebSocket hub started")

	// ──── Step 8: Start HTTP Server ────
	r := router.New(
		jwtAuth,
		redisClients.Data,
		authHandler,
		userHandler,
		guideHandler,
		sessionHandler,
		wsHub,
		cfg.FrontendURL,
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(ctx)

		// Live sessions enqueue their summaries before the workers stop.
		reaper.Stop()
		trackingService.Shutdown()
		workerPool.Stop()
		wsHub.Close()
	}()

	log.Printf("✓ Blink-Fit Backend ready on http://localhost:%s", cfg.Port)
	log.Printf("  API: http://localhost:%s/api/v1", cfg.Port)
	log.Printf("  WS:  ws://localhost:%s/api/v1/ws", cfg.Port)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
	<-stopped
	log.Println("✓ Shutdown complete")
}
