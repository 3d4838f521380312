package routes

import (
	"github.com/bellapacxx/raffle-backend/config"
	"github.com/bellapacxx/raffle-backend/controllers"
	"github.com/gin-gonic/gin"
)

func SetupRoutes(r *gin.Engine, cfg config.Raffle) {
	api := r.Group("/api")

	// ----------------------
	// User routes
	// ----------------------
	api.POST("/users", controllers.RegisterUser)        // Register user
	api.GET("/users/:telegram_id", controllers.GetUser) // Get user by Telegram ID

	// ----------------------
	// Raffle routes
	// ----------------------
	api.GET("/raffle", controllers.RaffleState)                              // Current round snapshot
	api.GET("/raffle/players/:index", controllers.GetPlayer)                 // Participant at index
	api.POST("/raffle/enter", controllers.EnterRaffle)                       // Enter the open round
	api.POST("/raffle/upkeep", controllers.PerformUpkeep)                    // Manual draw trigger
	api.POST("/raffle/fulfill", controllers.FulfillRandomness(cfg.OracleToken)) // Oracle callback

	// ----------------------
	// Round history routes
	// ----------------------
	api.GET("/rounds", controllers.ListRounds)
	api.GET("/rounds/:number", controllers.GetRound)

	// ----------------------
	// Transaction routes
	// ----------------------
	api.POST("/deposit", controllers.Deposit)   // Deposit funds
	api.POST("/withdraw", controllers.Withdraw) // Withdraw funds
}
