package main

import (
	"log"
	"net/http"
	"os"
	"time"

	"github.com/bellapacxx/raffle-backend/config"
	"github.com/bellapacxx/raffle-backend/routes"
	"github.com/bellapacxx/raffle-backend/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

// initEnv loads .env file and validates required vars
func initEnv() {
	if err := godotenv.Load(); err != nil {
		log.Println("[INFO] No .env file found, reading environment variables")
	}

	if os.Getenv("DATABASE_URL") == "" {
		log.Fatal("[FATAL] DATABASE_URL is required in .env or environment")
	}
}

// setupRouter initializes Gin routes and middleware
func setupRouter(cfg config.Raffle) *gin.Engine {
	r := gin.Default()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Oracle-Token"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Setup REST routes
	routes.SetupRoutes(r, cfg)

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now()})
	})

	// WebSocket observer endpoint
	r.GET("/ws/raffle", services.HandleWebSocket)

	return r
}

func main() {
	// Load env variables
	initEnv()

	// Connect to database
	config.SetupDatabase()

	// Load raffle parameters and start the round service
	cfg := config.LoadRaffle()
	services.InitRaffleService(cfg)

	// Setup Gin router
	router := setupRouter(cfg)

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = "4000" // default from config
	}

	log.Printf("🎟️ Raffle Backend server starting on port %s", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("[FATAL] Failed to start server: %v", err)
	}
}
