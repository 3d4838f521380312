package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bellapacxx/raffle-backend/config"
	"github.com/bellapacxx/raffle-backend/models"
)

// ListRounds returns the persisted round history, newest first.
func ListRounds(c *gin.Context) {
	var rounds []models.Round
	if err := config.DB.Order("round_number DESC").Limit(100).Find(&rounds).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch rounds"})
		return
	}
	c.JSON(http.StatusOK, rounds)
}

// GetRound returns a single round by round number.
func GetRound(c *gin.Context) {
	var round models.Round
	if err := config.DB.Where("round_number = ?", c.Param("number")).First(&round).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "round not found"})
		return
	}
	c.JSON(http.StatusOK, round)
}
