// main.go - quizparty server entry point
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"github.com/joho/godotenv"

	"quizparty/config"
	"quizparty/database"
	"quizparty/handlers"
	"quizparty/middleware"
	"quizparty/models"
	"quizparty/services"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using system environment variables")
	}

	cfg := config.Load()
	validateEnvironment(cfg)

	// Initialize database
	database.InitDB()
	defer database.CloseDB()

	quizRepo := database.NewQuizRepository(database.GetDB())
	sessionRepo := database.NewGameSessionRepository(database.GetDB())
	userRepo := database.NewUserRepository(database.GetDB())

	// Wire the game core
	registry := services.NewRoomRegistry()
	hub := handlers.NewHub(registry)
	timers := services.NewGameTimerService(hub)
	roomUC := services.NewRoomUseCases(registry, quizRepo, cfg)
	gameUC := services.NewGameUseCases(registry, quizRepo, sessionRepo, userRepo, cfg)
	limiter := middleware.NewEventRateLimiter()
	defer limiter.Close()

	cleanup := services.NewRoomCleanupService(registry, gameUC, roomUC, timers, hub, cfg)
	cleanup.Start()
	defer cleanup.Stop()

	gameHandler := handlers.NewGameHandler(hub, roomUC, gameUC, timers, limiter, registry, cfg)
	sessionHandler := handlers.NewSessionHandler(sessionRepo)
	debugHandler := handlers.NewDebugHandler(registry, hub, timers)

	// Create Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		BodyLimit:    4 * 1024 * 1024, // 4MB
		ReadTimeout:  10 * time.Second,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${method} ${path} (${latency})\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
	}))

	// WebSocket endpoint
	app.Use("/ws", middleware.WebSocketAuthMiddleware(cfg.JWTSecret), func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(gameHandler.HandleConnection))

	// API Routes
	api := app.Group("/api")

	// Session archive routes
	sessionGroup := api.Group("/sessions")
	sessionGroup.Get("/recent", sessionHandler.GetRecentSessions)
	sessionGroup.Get("/quiz/:quizId", sessionHandler.GetQuizSessions)
	sessionGroup.Get("/mine", middleware.AuthMiddleware(cfg.JWTSecret), sessionHandler.GetMySessions)
	sessionGroup.Delete("/quiz/:quizId", middleware.AuthMiddleware(cfg.JWTSecret), sessionHandler.DeleteQuizSessions)
	sessionGroup.Delete("/mine", middleware.AuthMiddleware(cfg.JWTSecret), sessionHandler.DeleteMySessions)

	// Stats routes
	api.Get("/stats/players", debugHandler.Stats)

	// Debug endpoints for troubleshooting multiplayer (disabled in production)
	if cfg.AppEnv != "production" {
		api.Get("/debug/rooms", debugHandler.ListRooms)
		api.Get("/debug/rooms/:pin", debugHandler.GetRoom)
	}

	// Health check endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":    "healthy",
			"timestamp": time.Now().Unix(),
			"rooms":     registry.Count(),
		})
	})

	// Graceful shutdown: archive every live game before the process exits.
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		log.Println("🛑 Shutting down...")
		cleanup.Stop()
		timers.StopAll()

		ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownDeadline)
		defer cancel()
		for _, room := range registry.All() {
			hub.ToRoom(room.PIN, "room_closed", map[string]interface{}{
				"reason": models.ReasonServerShutdown,
			})
			if _, err := gameUC.SaveInterruptedGame(ctx, services.SaveInterruptedInput{
				PIN:    room.PIN,
				Reason: models.ReasonServerShutdown,
			}); err != nil {
				log.Printf("⚠️ Failed to archive room %s on shutdown: %v", room.PIN, err)
			}
		}

		if err := app.ShutdownWithTimeout(cfg.ShutdownDeadline); err != nil {
			log.Printf("⚠️ Shutdown error: %v", err)
		}
	}()

	log.Printf("🚀 Server starting on port %s", cfg.Port)
	log.Printf("📊 Environment: %s", cfg.AppEnv)
	log.Printf("🌐 WebSocket available at ws://localhost:%s/ws", cfg.Port)

	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}

// validateEnvironment checks for required environment variables
func validateEnvironment(cfg *config.Config) {
	if cfg.JWTSecret == "" {
		log.Fatal("FATAL: JWT_SECRET environment variable must be set. Generate one with: openssl rand -base64 64")
	}
	if len(cfg.JWTSecret) < 32 {
		log.Fatal("FATAL: JWT_SECRET must be at least 32 characters long")
	}

	if cfg.AppEnv == "production" {
		if cfg.CORSOrigins == "" || cfg.CORSOrigins == "http://localhost:3000" {
			log.Println("WARNING: CORS_ORIGINS not properly configured for production")
		}
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	// Don't expose internal errors in production
	if os.Getenv("APP_ENV") == "production" && code == 500 {
		message = "An error occurred. Please try again later."
	}

	return c.Status(code).JSON(fiber.Map{
		"success": false,
		"error":   message,
	})
}
