package main

import (
	"log"
	"time"

	"agentarena/config"
	"agentarena/gateway"
	"agentarena/handlers"
	"agentarena/middleware"
	"agentarena/models"
	"agentarena/routes"
	"agentarena/services"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env if present, environment wins otherwise
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Load configuration
	cfg := config.Load()

	// Initialize database
	db, err := config.InitDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	// Auto-migrate database models
	err = db.AutoMigrate(
		&models.User{},
		&models.Game{},
		&models.Message{},
		&models.Guess{},
	)
	if err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	// Initialize Redis
	redisClient := config.InitRedis(cfg)

	// Upstream agent platform client
	aiClient := gateway.New(
		cfg.SecondMeAPIBase,
		cfg.SecondMeOAuthURL,
		cfg.SecondMeAppID,
		cfg.SecondMeAppSecret,
		cfg.SecondMeRedirectURI,
		time.Duration(cfg.AITimeoutSeconds)*time.Second,
	)

	// Initialize services
	gameLocks := services.NewGameLock(redisClient)
	authService := services.NewAuthService(db, aiClient, cfg.JWTSecret)
	gameService := services.NewGameService(db, aiClient, gameLocks, cfg.GameRounds)
	guessService := services.NewGuessService(db, aiClient, gameLocks)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService)
	gameHandler := handlers.NewGameHandler(gameService, guessService)

	// Setup Gin router
	router := gin.Default()

	// Add CORS middleware
	router.Use(middleware.CORS())

	// Setup routes
	routes.SetupRoutes(router, authHandler, gameHandler, cfg.JWTSecret)

	// Start server
	log.Printf("Server starting on port %s", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
