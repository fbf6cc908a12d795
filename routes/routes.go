package routes

import (
	"net/http"

	"agentarena/handlers"
	"agentarena/middleware"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(
	router *gin.Engine,
	authHandler *handlers.AuthHandler,
	gameHandler *handlers.GameHandler,
	jwtSecret string,
) {
	api := router.Group("/api")
	{
		// Auth routes (public)
		auth := api.Group("/auth")
		{
			auth.GET("/login", authHandler.Login)
			auth.GET("/callback", authHandler.Callback)
		}

		// Public leaderboard
		api.GET("/leaderboard", gameHandler.Leaderboard)

		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		// Protected routes
		protected := api.Group("/")
		protected.Use(middleware.AuthMiddleware(jwtSecret))
		{
			// User profile
			protected.GET("/auth/profile", authHandler.GetProfile)

			// Game routes
			games := protected.Group("/game")
			{
				games.POST("/match", gameHandler.Match)
				games.GET("/:id", gameHandler.GetGame)
				games.POST("/:id/chat", gameHandler.Advance)
				games.POST("/:id/guess", gameHandler.Guess)
				games.GET("/:id/result", gameHandler.Result)
			}
		}
	}

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}
