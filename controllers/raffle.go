package controllers

import (
	"errors"
	"math/big"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/bellapacxx/raffle-backend/raffle"
	"github.com/bellapacxx/raffle-backend/services"
)

// RaffleState returns the live snapshot: fee, interval, state, participant
// count, pot, recent winner and last draw time.
func RaffleState(c *gin.Context) {
	c.JSON(http.StatusOK, services.Raffle.Snapshot())
}

// GetPlayer returns the participant at the given entry-order index.
func GetPlayer(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid index"})
		return
	}

	p, err := services.Raffle.Round().GetParticipant(index)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"index": index, "participant": string(p)})
}

type enterRequest struct {
	TelegramID int64  `json:"telegram_id" binding:"required"`
	Amount     string `json:"amount" binding:"required"`
}

// EnterRaffle debits the caller's wallet and admits them into the open round.
func EnterRaffle(c *gin.Context) {
	var req enterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid amount"})
		return
	}

	if err := services.Raffle.Enter(req.TelegramID, amount); err != nil {
		switch {
		case errors.Is(err, raffle.ErrInsufficientEntry):
			c.JSON(http.StatusBadRequest, gin.H{"error": "entry value below entrance fee"})
		case errors.Is(err, raffle.ErrRoundNotOpen):
			c.JSON(http.StatusConflict, gin.H{"error": "round is calculating, retry after it reopens"})
		case errors.Is(err, services.ErrUserNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		case errors.Is(err, services.ErrInsufficientFunds):
			c.JSON(http.StatusBadRequest, gin.H{"error": "insufficient wallet balance"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to enter raffle"})
		}
		return
	}

	c.JSON(http.StatusCreated, services.Raffle.Snapshot())
}

// PerformUpkeep triggers a draw manually. When the round is not yet eligible
// the diagnostic snapshot is returned with 409 so the caller can decide when
// to retry.
func PerformUpkeep(c *gin.Context) {
	requestID, err := services.Raffle.TriggerDraw()
	if err != nil {
		var notNeeded *raffle.UpkeepNotNeededError
		if errors.As(err, &notNeeded) {
			c.JSON(http.StatusConflict, gin.H{
				"error":             "upkeep not needed",
				"pooled_balance":    notNeeded.Balance,
				"participant_count": notNeeded.ParticipantCount,
				"state":             notNeeded.State,
			})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"request_id": requestID})
}

type fulfillRequest struct {
	RequestID    string   `json:"request_id" binding:"required"`
	RandomValues []string `json:"random_values" binding:"required"`
}

// FulfillRandomness is the coordinator's callback. Only the configured oracle
// identity may reach the fulfillment path: the X-Oracle-Token header must
// match the shared secret from config.
func FulfillRandomness(cfgToken string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfgToken == "" || c.GetHeader("X-Oracle-Token") != cfgToken {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized oracle identity"})
			return
		}

		var req fulfillRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		values := make([]*big.Int, 0, len(req.RandomValues))
		for _, s := range req.RandomValues {
			v, ok := new(big.Int).SetString(s, 10)
			if !ok {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid random value"})
				return
			}
			values = append(values, v)
		}

		winner, err := services.Raffle.Fulfill(req.RequestID, values)
		if err != nil {
			switch {
			case errors.Is(err, raffle.ErrUnknownRequest):
				c.JSON(http.StatusConflict, gin.H{"error": "unknown or stale request id"})
			case errors.Is(err, raffle.ErrTransferFailed):
				// Round state is committed; only the payout is stuck.
				c.JSON(http.StatusOK, gin.H{"winner": string(winner), "payout": "failed"})
			default:
				c.JSON(http.StatusInternalServerError, gin.H{"error": "fulfillment failed"})
			}
			return
		}

		c.JSON(http.StatusOK, gin.H{"winner": string(winner)})
	}
}
