package services

import (
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/bellapacxx/raffle-backend/config"
	"github.com/bellapacxx/raffle-backend/models"
	"github.com/bellapacxx/raffle-backend/raffle"
	"github.com/bellapacxx/raffle-backend/utils/logger"
)

// WalletPayer delivers the pot by crediting the winner's wallet balance. The
// credit and its transaction record commit together or not at all.
type WalletPayer struct{}

func (p *WalletPayer) Pay(winner raffle.Participant, amount decimal.Decimal) error {
	telegramID, err := strconv.ParseInt(string(winner), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid winner identity %q: %v", winner, err)
	}

	err = config.DB.Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.Where("telegram_id = ?", telegramID).First(&user).Error; err != nil {
			return fmt.Errorf("winner %d not found: %v", telegramID, err)
		}

		user.Balance = user.Balance.Add(amount)
		if err := tx.Save(&user).Error; err != nil {
			return fmt.Errorf("failed to credit winner %d: %v", telegramID, err)
		}

		payout := models.Transaction{
			UserID:       user.ID,
			Type:         models.PayoutTransaction,
			Amount:       amount,
			BalanceAfter: user.Balance,
		}
		return tx.Create(&payout).Error
	})
	if err != nil {
		return err
	}

	logger.Infof("[Payout] credited %s to winner %d", amount, telegramID)
	return nil
}
