package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Entry records one admitted participation in a round.
type Entry struct {
	ID         uint            `gorm:"primaryKey" json:"id"`
	RoundID    uint            `gorm:"index" json:"round_id"`
	UserID     uint            `json:"user_id"`
	TelegramID int64           `gorm:"index" json:"telegram_id"`
	Amount     decimal.Decimal `gorm:"type:numeric" json:"amount"`
	CreatedAt  time.Time       `json:"created_at"`
}
